package quota

import (
	"fmt"
	"time"
)

// Tier is a named usage class determining rate and budget limits.
type Tier string

const (
	TierFree       Tier = "free"
	TierSubscriber Tier = "subscriber"
	TierPremium    Tier = "premium"
)

// ParseTier validates a tier name.
func ParseTier(s string) (Tier, error) {
	switch Tier(s) {
	case TierFree, TierSubscriber, TierPremium:
		return Tier(s), nil
	}
	return "", fmt.Errorf("unknown tier %q", s)
}

// TierLimits holds the per-window audit counts and the monthly spend
// ceiling (in SOL) for one tier.
type TierLimits struct {
	MaxPerHour    int     `json:"max_per_hour"`
	MaxPerDay     int     `json:"max_per_day"`
	MaxPerMonth   int     `json:"max_per_month"`
	MonthlyBudget float64 `json:"monthly_budget_sol"`
}

// DefaultTiers returns the built-in tier table.
func DefaultTiers() map[Tier]TierLimits {
	return map[Tier]TierLimits{
		TierFree:       {MaxPerHour: 2, MaxPerDay: 5, MaxPerMonth: 20, MonthlyBudget: 0.1},
		TierSubscriber: {MaxPerHour: 10, MaxPerDay: 50, MaxPerMonth: 999, MonthlyBudget: 10.0},
		TierPremium:    {MaxPerHour: 20, MaxPerDay: 100, MaxPerMonth: 9999, MonthlyBudget: 100.0},
	}
}

// ValidateTiers checks that every limit field is non-negative and ordered
// free <= subscriber <= premium.
func ValidateTiers(tiers map[Tier]TierLimits) error {
	for _, t := range []Tier{TierFree, TierSubscriber, TierPremium} {
		limits, ok := tiers[t]
		if !ok {
			return fmt.Errorf("tier table missing %q", t)
		}
		if limits.MaxPerHour < 0 || limits.MaxPerDay < 0 || limits.MaxPerMonth < 0 || limits.MonthlyBudget < 0 {
			return fmt.Errorf("tier %q has a negative limit", t)
		}
	}
	free, sub, prem := tiers[TierFree], tiers[TierSubscriber], tiers[TierPremium]
	ordered := free.MaxPerHour <= sub.MaxPerHour && sub.MaxPerHour <= prem.MaxPerHour &&
		free.MaxPerDay <= sub.MaxPerDay && sub.MaxPerDay <= prem.MaxPerDay &&
		free.MaxPerMonth <= sub.MaxPerMonth && sub.MaxPerMonth <= prem.MaxPerMonth &&
		free.MonthlyBudget <= sub.MonthlyBudget && sub.MonthlyBudget <= prem.MonthlyBudget
	if !ordered {
		return fmt.Errorf("tier limits must be ordered free <= subscriber <= premium")
	}
	return nil
}

// BlockReason identifies which admission check failed.
type BlockReason string

const (
	ReasonGlobalRate BlockReason = "global-rate-limited"
	ReasonHourly     BlockReason = "hourly-limit"
	ReasonDaily      BlockReason = "daily-limit"
	ReasonMonthly    BlockReason = "monthly-limit"
	ReasonBudget     BlockReason = "budget-exceeded"
)

// Remaining is the headroom left in each window for caller display.
type Remaining struct {
	Hour   int     `json:"hour"`
	Day    int     `json:"day"`
	Month  int     `json:"month"`
	Budget float64 `json:"budget_sol"`
}

// Snapshot is a read-only view of one user's quota record.
type Snapshot struct {
	UserKey        string     `json:"user_key"`
	Tier           Tier       `json:"tier"`
	CountHour      int        `json:"count_hour"`
	CountDay       int        `json:"count_day"`
	CountMonth     int        `json:"count_month"`
	SpentThisMonth float64    `json:"spent_this_month_sol"`
	Limits         TierLimits `json:"limits"`
	Remaining      Remaining  `json:"remaining"`
	HourStart      time.Time  `json:"window_start_hour"`
	DayStart       time.Time  `json:"window_start_day"`
	MonthStart     time.Time  `json:"window_start_month"`
}

// Decision is the result of an admission check. Blocked decisions carry
// exactly one reason; allowed decisions carry the remaining headroom.
type Decision struct {
	Allowed   bool        `json:"allowed"`
	Reason    BlockReason `json:"reason,omitempty"`
	Remaining Remaining   `json:"remaining"`
	Snapshot  Snapshot    `json:"snapshot"`
}
