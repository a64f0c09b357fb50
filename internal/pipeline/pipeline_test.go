package pipeline

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/auditgate-platform/auditgate/internal/analyzer"
	"github.com/auditgate-platform/auditgate/internal/cache"
	"github.com/auditgate-platform/auditgate/internal/events"
	"github.com/auditgate-platform/auditgate/internal/quota"
)

type stubAnalyzer struct {
	name  string
	res   analyzer.Result
	err   error
	calls int
}

func (s *stubAnalyzer) Name() string { return s.name }

func (s *stubAnalyzer) Analyze(context.Context, analyzer.Request) (*analyzer.Result, error) {
	s.calls++
	if s.err != nil {
		return nil, s.err
	}
	res := s.res
	return &res, nil
}

type stubSubs struct {
	tier quota.Tier
	err  error
}

func (s *stubSubs) ActiveTier(context.Context, string) (quota.Tier, error) {
	return s.tier, s.err
}

type stubNotifier struct {
	got chan events.AuditCompleted
}

func newStubNotifier() *stubNotifier {
	return &stubNotifier{got: make(chan events.AuditCompleted, 8)}
}

func (s *stubNotifier) PublishAuditCompleted(_ context.Context, e events.AuditCompleted) error {
	s.got <- e
	return nil
}

func newPipeline(t *testing.T, opts ...Option) (*Pipeline, *stubAnalyzer, *stubAnalyzer) {
	t.Helper()
	free := &stubAnalyzer{name: "pattern", res: analyzer.Result{RiskScore: 3, Findings: "pattern findings"}}
	paid := &stubAnalyzer{name: "llm", res: analyzer.Result{RiskScore: 7, Findings: "llm findings", TokensUsed: 1500, CostSOL: 0.01}}

	tracker := quota.NewTracker(quota.DefaultTiers(), nil)
	p := New(tracker, cache.New(10, time.Hour), free, paid, opts...)
	return p, free, paid
}

func TestSubmit_Completed(t *testing.T) {
	p, free, _ := newPipeline(t)

	res := p.Submit(context.Background(), Request{Requester: "tg:1", Subject: "addr1"})

	assert.Equal(t, OutcomeCompleted, res.Outcome)
	assert.Equal(t, 1, free.calls)
	require.NotNil(t, res.Entry)
	assert.Equal(t, "pattern", res.Entry.Analyzer)
	assert.Equal(t, quota.TierFree, res.TierUsed)
	require.NotNil(t, res.Quota)
	assert.Equal(t, 1, res.Quota.CountHour)
	assert.Positive(t, res.FeeLamports)
}

func TestSubmit_CacheHitSkipsQuota(t *testing.T) {
	p, free, _ := newPipeline(t)

	first := p.Submit(context.Background(), Request{Requester: "tg:1", Subject: "addr1"})
	require.Equal(t, OutcomeCompleted, first.Outcome)

	second := p.Submit(context.Background(), Request{Requester: "tg:1", Subject: "addr1"})
	assert.Equal(t, OutcomeCached, second.Outcome)
	assert.True(t, second.CacheHit)
	assert.Equal(t, first.Entry.ID, second.Entry.ID)
	assert.Equal(t, 1, free.calls)
	assert.Equal(t, 1, second.Quota.CountHour)
	assert.Zero(t, second.CostCharged)
}

func TestSubmit_ForceRefreshBypassesCache(t *testing.T) {
	p, free, _ := newPipeline(t)

	p.Submit(context.Background(), Request{Requester: "tg:1", Subject: "addr1"})
	res := p.Submit(context.Background(), Request{Requester: "tg:1", Subject: "addr1", ForceRefresh: true})

	assert.Equal(t, OutcomeCompleted, res.Outcome)
	assert.Equal(t, 2, free.calls)
	assert.Equal(t, 2, res.Quota.CountHour)
}

func TestSubmit_HourlyBlockAfterLimit(t *testing.T) {
	p, free, _ := newPipeline(t)

	// Free tier allows 2 per hour. Distinct subjects avoid the dedup path.
	require.Equal(t, OutcomeCompleted, p.Submit(context.Background(), Request{Requester: "tg:1", Subject: "a"}).Outcome)
	require.Equal(t, OutcomeCompleted, p.Submit(context.Background(), Request{Requester: "tg:1", Subject: "b"}).Outcome)

	res := p.Submit(context.Background(), Request{Requester: "tg:1", Subject: "c"})
	assert.Equal(t, OutcomeQuotaExceeded, res.Outcome)
	assert.Equal(t, quota.ReasonHourly, res.BlockReason)
	require.NotNil(t, res.Quota)
	assert.Zero(t, res.Quota.Remaining.Hour)
	assert.Equal(t, 2, free.calls)
}

func TestSubmit_BlockedBeforeCacheLookup(t *testing.T) {
	p, free, _ := newPipeline(t)

	p.Submit(context.Background(), Request{Requester: "tg:1", Subject: "a"})
	p.Submit(context.Background(), Request{Requester: "tg:1", Subject: "b"})

	// Even a subject that would be a cache hit is refused at admission.
	res := p.Submit(context.Background(), Request{Requester: "tg:1", Subject: "a"})
	assert.Equal(t, OutcomeQuotaExceeded, res.Outcome)
	assert.Equal(t, 2, free.calls)
}

func TestSubmit_AnalysisFailed(t *testing.T) {
	p, free, _ := newPipeline(t)
	free.err = errors.New("boom")

	res := p.Submit(context.Background(), Request{Requester: "tg:1", Subject: "addr1"})

	assert.Equal(t, OutcomeAnalysisFailed, res.Outcome)
	require.Error(t, res.Err)
	assert.Nil(t, res.Entry)

	// No quota consumed and nothing cached, so a retry is a fresh run.
	assert.Zero(t, p.Status("tg:1").CountHour)
	free.err = nil
	retry := p.Submit(context.Background(), Request{Requester: "tg:1", Subject: "addr1"})
	assert.Equal(t, OutcomeCompleted, retry.Outcome)
}

func TestSubmit_AnonymousRejected(t *testing.T) {
	p, free, _ := newPipeline(t)

	res := p.Submit(context.Background(), Request{Subject: "addr1"})
	assert.Equal(t, OutcomeRejected, res.Outcome)
	assert.Zero(t, free.calls)

	res = p.Submit(context.Background(), Request{Requester: "tg:1"})
	assert.Equal(t, OutcomeRejected, res.Outcome)
}

func TestSubmit_SubscriberRoutedToPaid(t *testing.T) {
	p, free, paid := newPipeline(t, WithSubscriptions(&stubSubs{tier: quota.TierPremium}))

	res := p.Submit(context.Background(), Request{Requester: "tg:1", Subject: "addr1"})

	assert.Equal(t, OutcomeCompleted, res.Outcome)
	assert.Equal(t, 1, paid.calls)
	assert.Zero(t, free.calls)
	assert.Equal(t, quota.TierPremium, res.TierUsed)
	assert.InDelta(t, 0.01, res.CostCharged, 1e-9)
	assert.InDelta(t, 0.01, res.Quota.SpentThisMonth, 1e-9)
}

func TestSubmit_SubscriptionLookupFailureFallsBackToFree(t *testing.T) {
	p, free, paid := newPipeline(t, WithSubscriptions(&stubSubs{err: errors.New("db down")}))

	res := p.Submit(context.Background(), Request{Requester: "tg:1", Subject: "addr1"})

	assert.Equal(t, OutcomeCompleted, res.Outcome)
	assert.Equal(t, 1, free.calls)
	assert.Zero(t, paid.calls)
	assert.Equal(t, quota.TierFree, res.TierUsed)
}

func TestSubmit_NotifierReceivesCompletedOnly(t *testing.T) {
	n := newStubNotifier()
	p, _, _ := newPipeline(t, WithNotifier(n))

	res := p.Submit(context.Background(), Request{Requester: "tg:1", Subject: "addr1"})
	require.Equal(t, OutcomeCompleted, res.Outcome)

	select {
	case e := <-n.got:
		assert.Equal(t, res.Entry.ID, e.AuditID)
		assert.Equal(t, "addr1", e.Subject)
	case <-time.After(time.Second):
		t.Fatal("no event published for completed audit")
	}

	cached := p.Submit(context.Background(), Request{Requester: "tg:1", Subject: "addr1"})
	require.Equal(t, OutcomeCached, cached.Outcome)
	select {
	case <-n.got:
		t.Fatal("cache hit must not publish an event")
	case <-time.After(50 * time.Millisecond):
	}
}

func TestSubmit_RecordRunsAfterCallerCancels(t *testing.T) {
	p, _, _ := newPipeline(t)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	// The stub analyzer ignores cancellation, so dispatch succeeds; the
	// bookkeeping after it must too.
	res := p.Submit(ctx, Request{Requester: "tg:1", Subject: "addr1"})
	assert.Equal(t, OutcomeCompleted, res.Outcome)
	assert.Equal(t, 1, p.Status("tg:1").CountHour)
}

func TestCacheStats(t *testing.T) {
	p, _, _ := newPipeline(t)

	p.Submit(context.Background(), Request{Requester: "tg:1", Subject: "addr1"})
	p.Submit(context.Background(), Request{Requester: "tg:1", Subject: "addr1"})

	stats := p.CacheStats()
	assert.Equal(t, 1, stats.Size)
	assert.Equal(t, uint64(1), stats.Hits)
}
