package engine

import (
	"fmt"
	"time"
)

// ProcessScan runs the per-(student, subject, date) state machine for one
// scan. rec is the current attendance row or nil; the caller must hold the
// row lock for the key so concurrent taps serialize. The engine never writes
// anything itself and never retries: same inputs, same Decision.
//
// States: no record -> checked in -> checked in and out (terminal for the
// day). A re-scan while checked in either sets the time-out (when the
// timeout window is open) or is acknowledged as a no-op so a mid-class
// re-scan can never disturb the recorded time-in.
func ProcessScan(entries []Schedule, subject Subject, st Settings, rec *Record, at time.Time) Decision {
	if rec != nil && rec.TimeIn != nil && rec.TimeOut != nil {
		return Decision{Kind: DecisionNoOp, Status: rec.Status, Reason: fmt.Sprintf(
			"Time in and time out already recorded for today. Time In: %s, Time Out: %s",
			clock(*rec.TimeIn), clock(*rec.TimeOut))}
	}

	res := ValidateWindow(entries, subject, st, at)
	if !res.OK {
		return Decision{Kind: DecisionRejected, Reason: res.Reason}
	}

	stored := at.Truncate(time.Minute)

	if rec != nil && rec.TimeIn != nil {
		// Checked in, no time-out yet. Measure the timeout window against
		// the session the record was checked in under when it still exists.
		sched := scheduleByID(entries, rec.ScheduleID)
		if sched == nil {
			sched = res.Schedule
		}
		if ok, _ := ValidateTimeout(sched, subject, st, at); ok {
			return Decision{Kind: DecisionCheckOut, Status: rec.Status, Schedule: sched, Stored: stored}
		}
		return Decision{Kind: DecisionNoOp, Status: rec.Status, Reason: fmt.Sprintf(
			"Time-in already recorded at %s. Time-out not yet recorded.", clock(*rec.TimeIn))}
	}

	status := StatusPresent
	if start := ResolveClassStart(res.Schedule, subject, st); start != nil {
		if at.Sub(start.At(at)) >= minutes(st.GraceMinutes) {
			status = StatusLate
		}
	}
	return Decision{Kind: DecisionCheckIn, Status: status, Schedule: res.Schedule, Stored: stored}
}

func scheduleByID(entries []Schedule, id *int64) *Schedule {
	if id == nil {
		return nil
	}
	for i := range entries {
		if entries[i].ID == *id {
			return &entries[i]
		}
	}
	return nil
}
