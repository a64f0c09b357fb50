package pipeline

import (
	"github.com/auditgate-platform/auditgate/internal/cache"
	"github.com/auditgate-platform/auditgate/internal/quota"
)

// Outcome is the terminal state of one submission. Every Submit call ends in
// exactly one of these; none of them is an error from the caller's point of
// view.
type Outcome string

const (
	// OutcomeCompleted means a fresh analysis ran and was recorded.
	OutcomeCompleted Outcome = "completed"
	// OutcomeCached means a recent prior result was returned. No analyzer
	// ran and no quota was consumed.
	OutcomeCached Outcome = "cached"
	// OutcomeQuotaExceeded means admission was refused before any work.
	OutcomeQuotaExceeded Outcome = "quota_exceeded"
	// OutcomeAnalysisFailed means the analyzer errored. No quota was
	// consumed; the caller may retry.
	OutcomeAnalysisFailed Outcome = "analysis_failed"
	// OutcomeRejected means the request was malformed, typically a missing
	// requester identity.
	OutcomeRejected Outcome = "rejected"
)

// Request is one audit submission.
type Request struct {
	// Requester is the stable identity the quota is tracked under. Required.
	Requester string
	// Subject is the contract address or program being audited. Required.
	Subject string
	// Source is the contract source when the caller has it.
	Source string
	// ForceRefresh skips the dedup lookup and always runs a fresh analysis.
	ForceRefresh bool
}

// Result is the outcome of one submission.
type Result struct {
	Outcome Outcome `json:"outcome"`

	// Entry is the audit payload for completed and cached outcomes.
	Entry *cache.Entry `json:"entry,omitempty"`
	// CacheHit distinguishes a cached outcome's entry from a fresh one.
	CacheHit bool `json:"cache_hit"`

	// TierUsed is the quota tier the request was routed under.
	TierUsed quota.Tier `json:"tier_used,omitempty"`
	// Analyzer names the analyzer that produced the entry.
	Analyzer string `json:"analyzer,omitempty"`

	// CostCharged is the SOL cost booked against the monthly budget. Zero
	// for cache hits, blocks, and the free analyzer.
	CostCharged float64 `json:"cost_charged"`
	// FeeLamports is the billable audit fee for completed outcomes.
	FeeLamports int64 `json:"fee_lamports,omitempty"`

	// Quota is the requester's quota state after this submission.
	Quota *quota.Snapshot `json:"quota,omitempty"`
	// BlockReason is set only for quota_exceeded outcomes.
	BlockReason quota.BlockReason `json:"block_reason,omitempty"`
	// Err carries the analyzer failure for analysis_failed outcomes.
	Err error `json:"-"`
}
