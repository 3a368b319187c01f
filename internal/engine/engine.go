// Package engine decides, for a single RFID scan, whether it is a valid
// time-in, a valid time-out, a duplicate, or a rejection. It is a pure
// decision layer: callers fetch schedules, settings and the existing
// attendance row, take the per-key lock, and act on the returned Decision.
package engine

import (
	"fmt"
	"time"
)

// TimeOfDay is a civil wall-clock time with no date attached.
type TimeOfDay struct {
	Hour   int
	Minute int
	Second int
}

// NewTimeOfDay builds a TimeOfDay from hours and minutes.
func NewTimeOfDay(hour, minute int) TimeOfDay {
	return TimeOfDay{Hour: hour, Minute: minute}
}

// TimeOfDayOf extracts the wall-clock portion of t.
func TimeOfDayOf(t time.Time) TimeOfDay {
	return TimeOfDay{Hour: t.Hour(), Minute: t.Minute(), Second: t.Second()}
}

// At anchors the time of day to the calendar date and location of ref.
// All window arithmetic goes through full datetimes so that grace periods
// reaching past midnight never wrap.
func (td TimeOfDay) At(ref time.Time) time.Time {
	y, m, d := ref.Date()
	return time.Date(y, m, d, td.Hour, td.Minute, td.Second, 0, ref.Location())
}

// Clock formats the time of day on a 12-hour clock, e.g. "08:05 AM".
func (td TimeOfDay) Clock() string {
	return td.At(time.Date(2000, 1, 1, 0, 0, 0, 0, time.UTC)).Format("03:04 PM")
}

// Schedule is one configured class session for a subject. Date set means a
// specific-date override; weekly entries carry Day with Date nil.
type Schedule struct {
	ID        int64
	SubjectID int64
	Day       *time.Weekday
	Start     TimeOfDay
	End       TimeOfDay
	Date      *time.Time
}

// Subject carries the identity and optional fallback session times used
// when a subject has no structured schedule entries at all.
type Subject struct {
	ID    int64
	Code  string
	Start *TimeOfDay
	End   *TimeOfDay
}

// Settings is the slice of system configuration the engine reads. It is
// passed explicitly into every call; the host owns caching and invalidation.
type Settings struct {
	EnableTimeValidation bool
	EarlyMinutes         int
	LateMinutes          int
	GraceMinutes         int
	TimeoutBeforeMinutes int
	ClassStart           *TimeOfDay
	ClassEnd             *TimeOfDay
}

// Status classifies an attendance record.
type Status string

// Attendance statuses.
const (
	StatusPresent Status = "PRESENT"
	StatusLate    Status = "LATE"
	StatusAbsent  Status = "ABSENT"
)

// Record is a snapshot of the existing attendance row for a
// (student, subject, date) key, taken under the row lock.
type Record struct {
	TimeIn     *time.Time
	TimeOut    *time.Time
	Status     Status
	ScheduleID *int64
}

// DecisionKind enumerates the possible outcomes of a scan.
type DecisionKind string

// Scan outcomes.
const (
	DecisionCheckIn  DecisionKind = "CHECK_IN"
	DecisionCheckOut DecisionKind = "CHECK_OUT"
	DecisionRejected DecisionKind = "REJECTED"
	DecisionNoOp     DecisionKind = "NO_OP"
)

// Decision is the engine's verdict for one scan. Stored is the timestamp to
// persist (seconds stripped); Reason is user-facing for rejections and no-ops.
type Decision struct {
	Kind     DecisionKind
	Status   Status
	Schedule *Schedule
	Stored   time.Time
	Reason   string
}

// Accepted reports whether the decision implies a write.
func (d Decision) Accepted() bool {
	return d.Kind == DecisionCheckIn || d.Kind == DecisionCheckOut
}

// ResolveClassStart returns the session start to measure lateness against:
// the matched schedule, else the subject fallback, else the global default.
func ResolveClassStart(sched *Schedule, subject Subject, st Settings) *TimeOfDay {
	if sched != nil {
		start := sched.Start
		return &start
	}
	if subject.Start != nil {
		return subject.Start
	}
	return st.ClassStart
}

// ResolveClassEnd returns the session end used by the timeout check, with
// the same precedence as ResolveClassStart.
func ResolveClassEnd(sched *Schedule, subject Subject, st Settings) *TimeOfDay {
	if sched != nil {
		end := sched.End
		return &end
	}
	if subject.End != nil {
		return subject.End
	}
	return st.ClassEnd
}

func clock(t time.Time) string {
	return t.Format("03:04 PM")
}

func minutes(n int) time.Duration {
	return time.Duration(n) * time.Minute
}

func formatDate(t time.Time) string {
	return t.Format("2006-01-02")
}

func windowLabel(s Schedule, ref time.Time, st Settings) string {
	openAt := s.Start.At(ref).Add(-minutes(st.EarlyMinutes))
	closeAt := s.End.At(ref).Add(minutes(st.LateMinutes))
	return fmt.Sprintf("%s - %s (Valid: %s - %s)",
		s.Start.Clock(), s.End.Clock(), clock(openAt), clock(closeAt))
}
