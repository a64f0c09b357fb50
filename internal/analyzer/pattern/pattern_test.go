package pattern

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/auditgate-platform/auditgate/internal/analyzer"
)

const vulnerableWithdraw = `
function withdraw() public {
    uint balance = balances[msg.sender];
    (bool success, ) = msg.sender.call{value: balance}("");
    balances[msg.sender] = 0;
}
`

func TestAnalyze_ZeroCost(t *testing.T) {
	a := New()
	res, err := a.Analyze(context.Background(), analyzer.Request{
		Subject: "EvXNCtaoVuC1NQLQswAnqsbQKPgVTdjrrLKa8MpMJiLf",
		Source:  vulnerableWithdraw,
	})
	require.NoError(t, err)
	assert.Zero(t, res.CostSOL)
	assert.Zero(t, res.TokensUsed)
	assert.GreaterOrEqual(t, res.RiskScore, 1)
	assert.LessOrEqual(t, res.RiskScore, 10)
}

func TestAnalyze_EmptySubjectFails(t *testing.T) {
	a := New()
	_, err := a.Analyze(context.Background(), analyzer.Request{Source: "code"})
	require.Error(t, err)
}

func TestDetect_UncheckedCall(t *testing.T) {
	findings := Detect(`addr.call("");`)
	require.NotEmpty(t, findings)

	names := make([]string, 0, len(findings))
	for _, f := range findings {
		names = append(names, f.Name)
	}
	assert.Contains(t, names, "unchecked_call")
}

func TestDetect_CriticalFirst(t *testing.T) {
	findings := Detect(`
		x += 1;
		target.delegatecall(data);
	`)
	require.NotEmpty(t, findings)
	assert.Equal(t, SeverityCritical, findings[0].Severity)
}

func TestDetect_SafeMathSuppressesOverflow(t *testing.T) {
	src := `using SafeMath for uint256; total += amount;`
	for _, f := range Detect(src) {
		assert.NotEqual(t, "overflow", f.Name)
	}
}

func TestDetect_Solidity08SuppressesOverflow(t *testing.T) {
	src := `pragma solidity ^0.8.0; total += amount;`
	for _, f := range Detect(src) {
		assert.NotEqual(t, "overflow", f.Name)
	}
}

func TestDetect_CleanSource(t *testing.T) {
	assert.Empty(t, Detect(`function ping() public pure returns (bool) { return true; }`))
}

func TestRiskScore_Bounds(t *testing.T) {
	assert.Equal(t, 1, RiskScore(nil))

	many := []Finding{{Severity: SeverityCritical, MatchCount: 50}}
	assert.Equal(t, 10, RiskScore(many))
}

func TestRiskScore_CriticalFloor(t *testing.T) {
	one := []Finding{{Severity: SeverityCritical, MatchCount: 1}}
	assert.GreaterOrEqual(t, RiskScore(one), 6)
}

func TestReport_ListsFindings(t *testing.T) {
	a := New()
	res, err := a.Analyze(context.Background(), analyzer.Request{
		Subject: "addr",
		Source:  `target.delegatecall(data);`,
	})
	require.NoError(t, err)
	assert.True(t, strings.Contains(res.Findings, "delegatecall"))
	assert.True(t, strings.Contains(res.Findings, "CRITICAL"))
}
