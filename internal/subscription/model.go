package subscription

import (
	"time"

	"github.com/google/uuid"

	"github.com/auditgate-platform/auditgate/internal/quota"
)

// Subscription is a paid tier grant for one requester.
type Subscription struct {
	ID              uuid.UUID  `json:"id"`
	Requester       string     `json:"requester"`
	Tier            quota.Tier `json:"tier"`
	StartedAt       time.Time  `json:"started_at"`
	ExpiresAt       time.Time  `json:"expires_at"`
	CostLamports    int64      `json:"cost_lamports"`
	TransactionHash string     `json:"transaction_hash,omitempty"`
}

// Active reports whether the grant is still in effect at now.
func (s *Subscription) Active(now time.Time) bool {
	return now.Before(s.ExpiresAt)
}

// DefaultDuration is one subscription period.
const DefaultDuration = 30 * 24 * time.Hour
