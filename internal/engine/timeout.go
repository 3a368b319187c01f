package engine

import (
	"fmt"
	"time"
)

// ValidateTimeout reports whether a scan is late enough in the session to be
// accepted as a check-out rather than treated as a duplicate check-in.
// The class end is the matched schedule's, else the subject fallback, else
// the global default; with no end time resolvable there is no constraint.
func ValidateTimeout(sched *Schedule, subject Subject, st Settings, at time.Time) (bool, string) {
	end := ResolveClassEnd(sched, subject, st)
	if end == nil {
		return true, ""
	}
	endAt := end.At(at)
	earliest := endAt.Add(-minutes(st.TimeoutBeforeMinutes))
	if at.Before(earliest) {
		return false, fmt.Sprintf(
			"Time-out is only allowed %d minutes before class ends. Earliest time-out: %s (Class ends at %s)",
			st.TimeoutBeforeMinutes, clock(earliest), end.Clock())
	}
	return true, ""
}
