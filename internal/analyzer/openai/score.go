package openai

import (
	"regexp"
	"strconv"
)

// riskScoreRe matches "Risk Score: 7", "risk score (1-10): 7/10" and
// similar phrasings the model produces.
var riskScoreRe = regexp.MustCompile(`(?i)risk\s*score[^0-9]*(10|[0-9])\b`)

// extractRiskScore pulls the 1-10 risk score out of the report text. When
// the model omits a parseable score, a mid-scale 5 is assumed.
func extractRiskScore(findings string) int {
	m := riskScoreRe.FindStringSubmatch(findings)
	if m == nil {
		return 5
	}
	score, err := strconv.Atoi(m[1])
	if err != nil || score < 1 || score > 10 {
		return 5
	}
	return score
}
