package engine

import "time"

// Candidate pairs a subject with its full schedule list for the
// active-subject selection.
type Candidate struct {
	Subject   Subject
	Schedules []Schedule
}

// SelectActive picks, among the candidates whose attendance window is open
// at the given instant, the one whose window opened earliest. It is the
// scan-station convenience that switches the station to the class currently
// in session; returns nil when no window is open.
func SelectActive(candidates []Candidate, st Settings, at time.Time) *Candidate {
	var (
		best      *Candidate
		bestStart time.Time
	)
	for i := range candidates {
		c := &candidates[i]
		res := ValidateWindow(c.Schedules, c.Subject, st, at)
		if !res.OK {
			continue
		}
		start := windowStart(c, res.Schedule, st, at)
		if best == nil || (!start.IsZero() && (bestStart.IsZero() || start.Before(bestStart))) {
			best = c
			bestStart = start
		}
	}
	return best
}

func windowStart(c *Candidate, sched *Schedule, st Settings, at time.Time) time.Time {
	switch {
	case sched != nil:
		return sched.Start.At(at).Add(-minutes(st.EarlyMinutes))
	case c.Subject.Start != nil:
		return c.Subject.Start.At(at).Add(-minutes(st.EarlyMinutes))
	case st.ClassStart != nil:
		return st.ClassStart.At(at).Add(-minutes(st.EarlyMinutes))
	}
	return time.Time{}
}
