package billing

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAuditFee_BaseOnly(t *testing.T) {
	fee, err := AuditFee(0, 1, false)
	require.NoError(t, err)

	assert.Equal(t, int64(50_000_000), fee.Lamports)
	assert.InDelta(t, 0.05, fee.SOL, 1e-9)
	assert.Equal(t, 1.0, fee.RiskMultiplier)
	assert.Zero(t, fee.DiscountSOL)
}

func TestAuditFee_TokensAddLamports(t *testing.T) {
	fee, err := AuditFee(1500, 1, false)
	require.NoError(t, err)

	assert.Equal(t, int64(1500), fee.TokenLamports)
	assert.Equal(t, int64(50_001_500), fee.Lamports)
}

func TestAuditFee_RiskMultiplier(t *testing.T) {
	fee, err := AuditFee(0, 10, false)
	require.NoError(t, err)

	assert.Equal(t, 3.0, fee.RiskMultiplier)
	assert.Equal(t, int64(150_000_000), fee.Lamports)
}

func TestAuditFee_SubscriberDiscount(t *testing.T) {
	full, err := AuditFee(1000, 5, false)
	require.NoError(t, err)
	discounted, err := AuditFee(1000, 5, true)
	require.NoError(t, err)

	assert.InDelta(t, float64(full.Lamports)*0.8, float64(discounted.Lamports), 1)
	assert.Greater(t, discounted.DiscountSOL, 0.0)
}

func TestAuditFee_NegativeTokens(t *testing.T) {
	_, err := AuditFee(-1, 5, false)
	require.Error(t, err)
}

func TestRiskMultiplier_OutOfRange(t *testing.T) {
	assert.Equal(t, 1.0, RiskMultiplier(0))
	assert.Equal(t, 1.0, RiskMultiplier(11))
}

func TestSubscriptionFeeLamports(t *testing.T) {
	assert.Equal(t, int64(1_000_000_000), SubscriptionFeeLamports("premium"))
	assert.Equal(t, int64(100_000_000), SubscriptionFeeLamports("subscriber"))
}
