package quota

import "time"

// Window boundaries are computed in UTC so counters reset at the same
// instant regardless of server locale.

func hourStart(t time.Time) time.Time {
	return t.UTC().Truncate(time.Hour)
}

func dayStart(t time.Time) time.Time {
	u := t.UTC()
	return time.Date(u.Year(), u.Month(), u.Day(), 0, 0, 0, 0, time.UTC)
}

func monthStart(t time.Time) time.Time {
	u := t.UTC()
	return time.Date(u.Year(), u.Month(), 1, 0, 0, 0, 0, time.UTC)
}

// rollover resets every counter whose window no longer contains now and
// advances the window start to the boundary containing now. It is the
// single rollover routine shared by Check, Record and Status so the call
// sites cannot drift.
func (r *record) rollover(now time.Time) {
	if h := hourStart(now); h.After(r.hourStart) {
		r.countHour = 0
		r.hourStart = h
	}
	if d := dayStart(now); d.After(r.dayStart) {
		r.countDay = 0
		r.dayStart = d
	}
	if m := monthStart(now); m.After(r.monthStart) {
		r.countMonth = 0
		r.spentMonth = 0
		r.monthStart = m
	}
}
