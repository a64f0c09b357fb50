// Package pipeline sequences one audit submission through admission,
// deduplication, tier routing, analyzer dispatch, and bookkeeping.
package pipeline

import (
	"context"
	"log/slog"
	"time"

	"github.com/auditgate-platform/auditgate/internal/analyzer"
	"github.com/auditgate-platform/auditgate/internal/billing"
	"github.com/auditgate-platform/auditgate/internal/cache"
	"github.com/auditgate-platform/auditgate/internal/events"
	"github.com/auditgate-platform/auditgate/internal/metrics"
	"github.com/auditgate-platform/auditgate/internal/quota"
)

// DefaultDedupWindow is how far back the dedup lookup reaches. It is
// deliberately shorter than the cache TTL: an old entry can still be fetched
// by ID after it stops satisfying dedup.
const DefaultDedupWindow = 24 * time.Hour

// notifyTimeout bounds the fire-and-forget event publish.
const notifyTimeout = 10 * time.Second

// SubscriptionChecker resolves a requester's current paid tier.
type SubscriptionChecker interface {
	ActiveTier(ctx context.Context, requester string) (quota.Tier, error)
}

// Notifier receives completed audits after the result has been assembled.
// Failures are logged and never affect the returned Result.
type Notifier interface {
	PublishAuditCompleted(ctx context.Context, event events.AuditCompleted) error
}

// Pipeline orchestrates submissions. All fields are set at construction and
// never mutated, so a single Pipeline serves concurrent callers. No lock on
// the tracker or cache is ever held across an analyzer dispatch.
type Pipeline struct {
	tracker *quota.Tracker
	cache   *cache.Cache
	free    analyzer.Analyzer
	paid    analyzer.Analyzer

	subs     SubscriptionChecker
	notifier Notifier

	dedupWindow time.Duration
}

// Option configures optional collaborators.
type Option func(*Pipeline)

// WithSubscriptions routes requesters with an active paid subscription to
// the paid analyzer. Without it every request uses the free analyzer.
func WithSubscriptions(subs SubscriptionChecker) Option {
	return func(p *Pipeline) { p.subs = subs }
}

// WithNotifier publishes an event for every completed fresh analysis.
func WithNotifier(n Notifier) Option {
	return func(p *Pipeline) { p.notifier = n }
}

// WithDedupWindow overrides the dedup lookback.
func WithDedupWindow(d time.Duration) Option {
	return func(p *Pipeline) {
		if d > 0 {
			p.dedupWindow = d
		}
	}
}

// New creates a Pipeline. The paid analyzer may be nil, in which case paid
// routing falls back to the free analyzer.
func New(tracker *quota.Tracker, results *cache.Cache, free, paid analyzer.Analyzer, opts ...Option) *Pipeline {
	p := &Pipeline{
		tracker:     tracker,
		cache:       results,
		free:        free,
		paid:        paid,
		dedupWindow: DefaultDedupWindow,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Submit runs one request to a terminal outcome. Every expected condition,
// including quota blocks and analyzer failures, comes back as a Result; the
// method itself never fails.
func (p *Pipeline) Submit(ctx context.Context, req Request) Result {
	if req.Requester == "" || req.Subject == "" {
		return p.finish(Result{Outcome: OutcomeRejected}, "")
	}

	// Admission. Cost is estimated at 0 because the tier, and with it the
	// real cost, is not known yet; the budget check still catches users who
	// have already exhausted their budget.
	decision := p.tracker.Check(ctx, req.Requester, 0)
	if !decision.Allowed {
		metrics.QuotaBlocksTotal.WithLabelValues(string(decision.Reason)).Inc()
		slog.Info("submission blocked",
			"requester", req.Requester,
			"subject", req.Subject,
			"reason", decision.Reason,
		)
		return p.finish(Result{
			Outcome:     OutcomeQuotaExceeded,
			BlockReason: decision.Reason,
			Quota:       &decision.Snapshot,
			TierUsed:    decision.Snapshot.Tier,
		}, string(decision.Snapshot.Tier))
	}

	// Deduplication. A hit returns the prior payload without touching the
	// quota: no new analysis work happened.
	if !req.ForceRefresh {
		if prior := p.cache.FindRecent(req.Requester, req.Subject, p.dedupWindow); prior != nil {
			metrics.CacheHitsTotal.Inc()
			snap := p.tracker.Status(req.Requester)
			return p.finish(Result{
				Outcome:  OutcomeCached,
				Entry:    prior,
				CacheHit: true,
				TierUsed: snap.Tier,
				Analyzer: prior.Analyzer,
				Quota:    &snap,
			}, string(snap.Tier))
		}
		metrics.CacheMissesTotal.Inc()
	}

	// Tier routing. Subscription store failures fall back to the free
	// analyzer rather than refusing or upcharging the request.
	tier := quota.TierFree
	if p.subs != nil {
		resolved, err := p.subs.ActiveTier(ctx, req.Requester)
		if err != nil {
			slog.Warn("tier resolution failed, routing to free analyzer",
				"requester", req.Requester, "error", err)
		} else {
			tier = resolved
		}
	}

	an := p.free
	if tier != quota.TierFree && p.paid != nil {
		an = p.paid
	}

	// Dispatch. No tracker or cache lock is held here.
	start := time.Now()
	res, err := an.Analyze(ctx, analyzer.Request{Subject: req.Subject, Source: req.Source})
	metrics.AnalyzerDuration.WithLabelValues(an.Name()).Observe(time.Since(start).Seconds())
	if err != nil {
		slog.Error("analysis failed",
			"requester", req.Requester,
			"subject", req.Subject,
			"analyzer", an.Name(),
			"error", err,
		)
		return p.finish(Result{
			Outcome:  OutcomeAnalysisFailed,
			TierUsed: tier,
			Analyzer: an.Name(),
			Err:      err,
		}, string(tier))
	}

	// Bookkeeping must run to completion even if the caller has gone away:
	// the analysis happened and its cost is owed.
	bookCtx := context.WithoutCancel(ctx)

	entry := p.cache.NewEntry(req.Requester, req.Subject, string(tier),
		res.RiskScore, res.Findings, res.TokensUsed, res.CostSOL)
	entry.Analyzer = an.Name()

	before := p.cache.Stats().Evictions
	p.cache.Put(entry)
	if evicted := p.cache.Stats().Evictions - before; evicted > 0 {
		metrics.CacheEvictionsTotal.Add(float64(evicted))
	}

	snap := p.tracker.Record(bookCtx, req.Requester, res.CostSOL)

	fee, feeErr := billing.AuditFee(res.TokensUsed, res.RiskScore, tier != quota.TierFree)
	if feeErr != nil {
		slog.Warn("fee calculation failed", "audit_id", entry.ID, "error", feeErr)
	}

	result := Result{
		Outcome:     OutcomeCompleted,
		Entry:       entry,
		TierUsed:    tier,
		Analyzer:    an.Name(),
		CostCharged: res.CostSOL,
		FeeLamports: fee.Lamports,
		Quota:       &snap,
	}

	p.notify(bookCtx, result)
	return p.finish(result, string(tier))
}

// Status exposes the requester's quota snapshot for display.
func (p *Pipeline) Status(requester string) quota.Snapshot {
	return p.tracker.Status(requester)
}

// CacheStats exposes result cache occupancy and counters.
func (p *Pipeline) CacheStats() cache.Stats {
	return p.cache.Stats()
}

func (p *Pipeline) finish(r Result, tier string) Result {
	if tier == "" {
		tier = "unknown"
	}
	metrics.AuditsTotal.WithLabelValues(string(r.Outcome), tier).Inc()
	return r
}

func (p *Pipeline) notify(ctx context.Context, r Result) {
	if p.notifier == nil {
		return
	}
	event := events.AuditCompleted{
		AuditID:     r.Entry.ID,
		Requester:   r.Entry.Requester,
		Subject:     r.Entry.Subject,
		Tier:        string(r.TierUsed),
		Analyzer:    r.Analyzer,
		RiskScore:   r.Entry.RiskScore,
		Findings:    r.Entry.Findings,
		TokensUsed:  r.Entry.TokensUsed,
		CostSOL:     r.Entry.CostSOL,
		FeeLamports: r.FeeLamports,
		CompletedAt: r.Entry.CreatedAt,
	}
	go func() {
		nctx, cancel := context.WithTimeout(ctx, notifyTimeout)
		defer cancel()
		if err := p.notifier.PublishAuditCompleted(nctx, event); err != nil {
			slog.Warn("audit event publish failed", "audit_id", event.AuditID, "error", err)
		}
	}()
}
