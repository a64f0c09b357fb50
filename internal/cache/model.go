package cache

import (
	"time"

	"github.com/google/uuid"
)

// Entry is one cached audit result. The payload fields mirror what the
// analyzers produce; ReportURL and AnchorHash are filled in later by the
// downstream persistence path when available.
type Entry struct {
	ID         string    `json:"entry_id"`
	Requester  string    `json:"requester_key"`
	Subject    string    `json:"subject_key"`
	CreatedAt  time.Time `json:"created_at"`
	ExpiresAt  time.Time `json:"expires_at"`
	Tier       string    `json:"tier"`
	Analyzer   string    `json:"analyzer,omitempty"`
	RiskScore  int       `json:"risk_score"`
	Findings   string    `json:"findings"`
	TokensUsed int       `json:"tokens_used"`
	CostSOL    float64   `json:"cost_sol"`
	ReportURL  string    `json:"report_url,omitempty"`
	AnchorHash string    `json:"anchor_hash,omitempty"`
}

// Live reports whether the entry has not yet passed its TTL.
func (e *Entry) Live(now time.Time) bool {
	return now.Before(e.ExpiresAt)
}

// newEntryID returns a unique cache entry identifier.
func newEntryID() string {
	return "audit_" + uuid.NewString()
}
