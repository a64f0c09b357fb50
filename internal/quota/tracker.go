package quota

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// record is one user's mutable quota state. Each record carries its own
// mutex so concurrent requests for different users never contend.
type record struct {
	mu sync.Mutex

	tier       Tier
	countHour  int
	countDay   int
	countMonth int
	spentMonth float64
	hourStart  time.Time
	dayStart   time.Time
	monthStart time.Time
}

// Tracker enforces per-user rate limits and monthly budgets across
// hour/day/month windows, plus system-wide ceilings via the GlobalLimiter.
// Records are created lazily on first use, defaulting to the free tier, and
// live for the process lifetime.
type Tracker struct {
	mu      sync.Mutex
	records map[string]*record

	tiers  map[Tier]TierLimits
	global *GlobalLimiter

	now func() time.Time
}

// NewTracker creates a Tracker with the given tier table. global may be nil,
// in which case system-wide ceilings are not enforced.
func NewTracker(tiers map[Tier]TierLimits, global *GlobalLimiter) *Tracker {
	return &Tracker{
		records: make(map[string]*record),
		tiers:   tiers,
		global:  global,
		now:     time.Now,
	}
}

func (t *Tracker) get(userKey string) *record {
	t.mu.Lock()
	defer t.mu.Unlock()

	r, ok := t.records[userKey]
	if !ok {
		now := t.now()
		r = &record{
			tier:       TierFree,
			hourStart:  hourStart(now),
			dayStart:   dayStart(now),
			monthStart: monthStart(now),
		}
		t.records[userKey] = r
	}
	return r
}

// SetTier assigns a subscription tier to a user, creating the record if
// needed. Usage counters are preserved across tier changes.
func (t *Tracker) SetTier(userKey string, tier Tier) error {
	if _, ok := t.tiers[tier]; !ok {
		return &UnknownTierError{Tier: tier}
	}
	r := t.get(userKey)
	r.mu.Lock()
	r.tier = tier
	r.mu.Unlock()
	return nil
}

// UnknownTierError reports a tier missing from the tier table.
type UnknownTierError struct {
	Tier Tier
}

func (e *UnknownTierError) Error() string {
	return "unknown tier " + string(e.Tier)
}

// Check decides whether the user may run an audit with the given estimated
// cost. It performs lazy window resets but never increments counters; a
// blocked decision names exactly the first failing check. Redis failures on
// the global ceiling fail open with a warning, matching the rest of the
// admission path which must not error for a normal user.
func (t *Tracker) Check(ctx context.Context, userKey string, estimatedCost float64) Decision {
	r := t.get(userKey)
	r.mu.Lock()
	defer r.mu.Unlock()

	r.rollover(t.now())
	limits := t.tiers[r.tier]

	if t.global != nil {
		overloaded, err := t.global.Overloaded(ctx)
		if err != nil {
			slog.Warn("quota: global ceiling check failed, allowing request", "error", err)
		} else if overloaded {
			return t.blocked(userKey, r, limits, ReasonGlobalRate)
		}
	}

	switch {
	case r.countHour >= limits.MaxPerHour:
		return t.blocked(userKey, r, limits, ReasonHourly)
	case r.countDay >= limits.MaxPerDay:
		return t.blocked(userKey, r, limits, ReasonDaily)
	case r.countMonth >= limits.MaxPerMonth:
		return t.blocked(userKey, r, limits, ReasonMonthly)
	case r.spentMonth+estimatedCost > limits.MonthlyBudget:
		return t.blocked(userKey, r, limits, ReasonBudget)
	}

	return Decision{
		Allowed:   true,
		Remaining: remaining(r, limits),
		Snapshot:  snapshot(userKey, r, limits),
	}
}

// Record books one completed audit against the user: all three counters are
// incremented by one and the actual cost is added to the monthly spend. The
// caller must invoke Record exactly once per completed audit; duplicate
// calls double-count.
func (t *Tracker) Record(ctx context.Context, userKey string, actualCost float64) Snapshot {
	r := t.get(userKey)
	r.mu.Lock()

	r.rollover(t.now())
	r.countHour++
	r.countDay++
	r.countMonth++
	r.spentMonth += actualCost
	limits := t.tiers[r.tier]
	snap := snapshot(userKey, r, limits)
	r.mu.Unlock()

	if t.global != nil {
		if err := t.global.RecordHit(ctx); err != nil {
			slog.Warn("quota: recording global hit failed", "error", err)
		}
	}

	slog.Debug("quota: audit recorded",
		"user", userKey,
		"cost_sol", actualCost,
		"spent_month_sol", snap.SpentThisMonth,
	)
	return snap
}

// Status returns a display snapshot, applying the same lazy window resets as
// Check and Record.
func (t *Tracker) Status(userKey string) Snapshot {
	r := t.get(userKey)
	r.mu.Lock()
	defer r.mu.Unlock()

	r.rollover(t.now())
	return snapshot(userKey, r, t.tiers[r.tier])
}

func (t *Tracker) blocked(userKey string, r *record, limits TierLimits, reason BlockReason) Decision {
	return Decision{
		Allowed:   false,
		Reason:    reason,
		Remaining: remaining(r, limits),
		Snapshot:  snapshot(userKey, r, limits),
	}
}

func remaining(r *record, limits TierLimits) Remaining {
	return Remaining{
		Hour:   max(0, limits.MaxPerHour-r.countHour),
		Day:    max(0, limits.MaxPerDay-r.countDay),
		Month:  max(0, limits.MaxPerMonth-r.countMonth),
		Budget: max(0, limits.MonthlyBudget-r.spentMonth),
	}
}

func snapshot(userKey string, r *record, limits TierLimits) Snapshot {
	return Snapshot{
		UserKey:        userKey,
		Tier:           r.tier,
		CountHour:      r.countHour,
		CountDay:       r.countDay,
		CountMonth:     r.countMonth,
		SpentThisMonth: r.spentMonth,
		Limits:         limits,
		Remaining:      remaining(r, limits),
		HourStart:      r.hourStart,
		DayStart:       r.dayStart,
		MonthStart:     r.monthStart,
	}
}
