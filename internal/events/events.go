package events

import (
	"time"
)

// FetchTimeout is the default timeout for batch fetching messages from consumers.
const FetchTimeout = 2 * time.Second

// StreamEvents holds every audit lifecycle event.
const StreamEvents = "AUDITGATE_EVENTS"

// Subject constants.
const (
	SubjectAuditCompleted        = "auditgate.audits.completed"
	SubjectSubscriptionActivated = "auditgate.subscriptions.activated"
)

// AuditCompleted is published after the pipeline finishes a fresh analysis.
// Cache hits and blocked requests never produce one.
type AuditCompleted struct {
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
	CompletedAt time.Time `json:"completed_at"`
}

// SubscriptionActivated is published when a requester purchases a paid tier.
type SubscriptionActivated struct {
	Requester    string    `json:"requester"`
	Tier         string    `json:"tier"`
	CostLamports int64     `json:"cost_lamports"`
	ExpiresAt    time.Time `json:"expires_at"`
	ActivatedAt  time.Time `json:"activated_at"`
}
