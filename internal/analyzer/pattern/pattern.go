// Package pattern implements the zero-cost analysis tier: regex-based
// vulnerability heuristics with no upstream calls.
package pattern

import (
	"context"
	"fmt"
	"log/slog"
	"regexp"
	"sort"
	"strings"

	"github.com/auditgate-platform/auditgate/internal/analyzer"
)

// Severity classifies a detected pattern.
type Severity string

const (
	SeverityCritical Severity = "CRITICAL"
	SeverityHigh     Severity = "HIGH"
	SeverityMedium   Severity = "MEDIUM"
	SeverityLow      Severity = "LOW"
)

var severityWeights = map[Severity]float64{
	SeverityCritical: 3,
	SeverityHigh:     2,
	SeverityMedium:   1,
	SeverityLow:      0.5,
}

// severityRank orders findings in reports, critical first.
var severityRank = map[Severity]int{
	SeverityCritical: 0,
	SeverityHigh:     1,
	SeverityMedium:   2,
	SeverityLow:      3,
}

type rule struct {
	name        string
	severity    Severity
	re          *regexp.Regexp
	description string
	remediation string
}

var rules = []rule{
	{
		name:        "reentrancy",
		severity:    SeverityCritical,
		re:          regexp.MustCompile(`(?im)(call|transfer).*\.value|\.send\(|selfdestruct`),
		description: "potential reentrancy: unsafe external call before state update",
		remediation: "apply checks-effects-interactions or a reentrancy guard",
	},
	{
		name:        "unchecked_call",
		severity:    SeverityCritical,
		re:          regexp.MustCompile(`(?i)call\(|callcode\(|delegatecall\(`),
		description: "unchecked external call may fail silently",
		remediation: "check the return value: require(success, ...)",
	},
	{
		name:        "delegatecall",
		severity:    SeverityCritical,
		re:          regexp.MustCompile(`(?i)delegatecall\(`),
		description: "delegatecall executes foreign code in this contract's storage context",
		remediation: "restrict targets and use an audited proxy pattern",
	},
	{
		name:        "overflow",
		severity:    SeverityHigh,
		re:          regexp.MustCompile(`\+\+|--|\+=|-=`),
		description: "potential integer overflow/underflow",
		remediation: "use SafeMath or Solidity 0.8+ checked arithmetic",
	},
	{
		name:        "selfdestruct",
		severity:    SeverityHigh,
		re:          regexp.MustCompile(`(?i)selfdestruct\(`),
		description: "contract can be destroyed",
		remediation: "restrict selfdestruct to authorized parties",
	},
	{
		name:        "hardcoded_state",
		severity:    SeverityMedium,
		re:          regexp.MustCompile(`=\s*0x[0-9a-fA-F]+;|=\s*[0-9]+;`),
		description: "hardcoded values in contract state",
		remediation: "use constructor parameters or configuration",
	},
	{
		name:        "tx_origin_auth",
		severity:    SeverityHigh,
		re:          regexp.MustCompile(`tx\.origin`),
		description: "tx.origin used for authorization is phishable",
		remediation: "authorize against msg.sender",
	},
}

// Finding is one matched vulnerability pattern.
type Finding struct {
	Name        string   `json:"name"`
	Severity    Severity `json:"severity"`
	Description string   `json:"description"`
	Remediation string   `json:"remediation"`
	MatchCount  int      `json:"match_count"`
}

// Analyzer detects vulnerability patterns in contract source. It never
// fails except on a missing subject, and always reports zero cost.
type Analyzer struct{}

// New creates the pattern analyzer.
func New() *Analyzer {
	return &Analyzer{}
}

// Name implements analyzer.Analyzer.
func (a *Analyzer) Name() string { return "pattern" }

// Analyze implements analyzer.Analyzer.
func (a *Analyzer) Analyze(_ context.Context, req analyzer.Request) (*analyzer.Result, error) {
	if req.Subject == "" {
		return nil, fmt.Errorf("pattern analyzer: empty subject")
	}

	findings := Detect(req.Source)
	score := RiskScore(findings)

	slog.Debug("pattern analysis complete",
		"subject", req.Subject,
		"risk_score", score,
		"patterns_found", len(findings),
	)

	return &analyzer.Result{
		RiskScore:  score,
		Findings:   report(findings, score),
		TokensUsed: 0,
		CostSOL:    0,
	}, nil
}

// Detect returns every rule matched by the source, critical first.
func Detect(source string) []Finding {
	// Solidity 0.8+ and SafeMath both rule out the arithmetic heuristics.
	checkedArithmetic := strings.Contains(source, "SafeMath") ||
		regexp.MustCompile(`pragma solidity\s*[>^]?=?\s*0\.8`).MatchString(source)

	var findings []Finding
	for _, r := range rules {
		if r.name == "overflow" && checkedArithmetic {
			continue
		}
		matches := r.re.FindAllStringIndex(source, -1)
		if len(matches) == 0 {
			continue
		}
		findings = append(findings, Finding{
			Name:        r.name,
			Severity:    r.severity,
			Description: r.description,
			Remediation: r.remediation,
			MatchCount:  len(matches),
		})
	}

	sort.SliceStable(findings, func(i, j int) bool {
		return severityRank[findings[i].Severity] < severityRank[findings[j].Severity]
	})
	return findings
}

// RiskScore maps findings to a 1-10 score. Any critical finding floors the
// score at 6.
func RiskScore(findings []Finding) int {
	if len(findings) == 0 {
		return 1
	}

	var total float64
	critical := false
	for _, f := range findings {
		total += severityWeights[f.Severity] * float64(f.MatchCount)
		if f.Severity == SeverityCritical {
			critical = true
		}
	}

	score := min(10, max(1, int(total)))
	if critical {
		score = max(score, 6)
	}
	return score
}

func report(findings []Finding, score int) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Pattern analysis (risk %d/10)\n", score)
	if len(findings) == 0 {
		b.WriteString("No known vulnerability patterns detected.\n")
		return b.String()
	}
	for _, f := range findings {
		fmt.Fprintf(&b, "[%s] %s: %s (%d match(es)). Remediation: %s\n",
			f.Severity, f.Name, f.Description, f.MatchCount, f.Remediation)
	}
	return b.String()
}
