// Package billing prices completed audits in SOL. Fees scale with token
// spend and the assessed risk score, with a flat discount for subscribers.
package billing

import (
	"fmt"
	"log/slog"
)

// LamportsPerSOL is the Solana base-unit conversion factor.
const LamportsPerSOL = 1_000_000_000

const (
	// baseFeeLamports is the flat audit fee, 0.05 SOL.
	baseFeeLamports = 50_000_000
	// lamportsPerToken prices the LLM token spend passed through to the user.
	lamportsPerToken = 1

	// subscriberDiscount is taken off the subtotal for active subscribers.
	subscriberDiscount = 0.20
)

// Monthly subscription prices per tier.
const (
	SubscriberMonthlySOL = 0.1
	PremiumMonthlySOL    = 1.0
)

// riskMultipliers scales the fee by the 1-10 risk score. Riskier contracts
// take more review effort downstream, so they cost more to audit.
var riskMultipliers = map[int]float64{
	1:  1.0,
	2:  1.0,
	3:  1.1,
	4:  1.1,
	5:  1.2,
	6:  1.5,
	7:  1.8,
	8:  2.0,
	9:  2.5,
	10: 3.0,
}

// Fee is a priced audit with its breakdown, kept in lamports for precision.
type Fee struct {
	Lamports       int64   `json:"fee_lamports"`
	SOL            float64 `json:"fee_sol"`
	BaseLamports   int64   `json:"base_lamports"`
	TokenLamports  int64   `json:"token_lamports"`
	RiskMultiplier float64 `json:"risk_multiplier"`
	DiscountSOL    float64 `json:"discount_sol"`
	IsSubscriber   bool    `json:"is_subscriber"`
}

// RiskMultiplier returns the fee multiplier for a risk score. Scores outside
// 1-10 fall back to 1x rather than failing the billing path.
func RiskMultiplier(riskScore int) float64 {
	if m, ok := riskMultipliers[riskScore]; ok {
		return m
	}
	return 1.0
}

// AuditFee prices one audit.
func AuditFee(tokensUsed, riskScore int, isSubscriber bool) (Fee, error) {
	if tokensUsed < 0 {
		return Fee{}, fmt.Errorf("billing: negative token count %d", tokensUsed)
	}

	base := int64(baseFeeLamports)
	tokens := int64(tokensUsed) * lamportsPerToken
	mult := RiskMultiplier(riskScore)

	subtotal := float64(base+tokens) * mult

	var discount float64
	if isSubscriber {
		discount = subtotal * subscriberDiscount
		subtotal -= discount
	}

	fee := Fee{
		Lamports:       int64(subtotal),
		SOL:            subtotal / LamportsPerSOL,
		BaseLamports:   base,
		TokenLamports:  tokens,
		RiskMultiplier: mult,
		DiscountSOL:    discount / LamportsPerSOL,
		IsSubscriber:   isSubscriber,
	}

	slog.Debug("audit fee calculated",
		"fee_lamports", fee.Lamports,
		"risk_multiplier", mult,
		"tokens_used", tokensUsed,
		"subscriber", isSubscriber,
	)
	return fee, nil
}

// SubscriptionFeeLamports returns the monthly price for a tier name.
func SubscriptionFeeLamports(tier string) int64 {
	if tier == "premium" {
		return int64(PremiumMonthlySOL * LamportsPerSOL)
	}
	return int64(SubscriberMonthlySOL * LamportsPerSOL)
}
