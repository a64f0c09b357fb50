package history

import (
	"time"

	"github.com/google/uuid"
)

// AuditRecord matches the audit_records table schema. It is the durable
// counterpart of a cache entry: cache entries age out, records do not.
type AuditRecord struct {
	ID          uuid.UUID `json:"id"`
	AuditID     string    `json:"audit_id"`
	Requester   string    `json:"requester"`
	Subject     string    `json:"subject"`
	Tier        string    `json:"tier"`
	Analyzer    string    `json:"analyzer"`
	RiskScore   int       `json:"risk_score"`
	Findings    string    `json:"findings"`
	TokensUsed  int       `json:"tokens_used"`
	CostSOL     float64   `json:"cost_sol"`
	FeeLamports int64     `json:"fee_lamports"`
	ReportURL   string    `json:"report_url,omitempty"`
	CompletedAt time.Time `json:"completed_at"`
	CreatedAt   time.Time `json:"created_at"`
}

// ListParams holds pagination parameters for record queries.
type ListParams struct {
	Page     int
	PageSize int
}

// DefaultListParams returns sensible defaults.
func DefaultListParams() ListParams {
	return ListParams{Page: 1, PageSize: 20}
}
