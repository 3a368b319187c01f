package engine

import (
	"fmt"
	"strings"
	"time"
)

// WindowResult is the outcome of a valid-window check. Schedule is nil when
// the scan was accepted through the subject fallback or validation is off.
type WindowResult struct {
	OK       bool
	Schedule *Schedule
	Reason   string
}

// ValidateWindow decides whether a scan at the given instant falls inside a
// valid attendance window for the subject. entries is the full schedule list
// for the subject; resolution for at's date happens here. The valid window
// for each session is [start - early, end + late], inclusive on both ends.
func ValidateWindow(entries []Schedule, subject Subject, st Settings, at time.Time) WindowResult {
	if !st.EnableTimeValidation {
		return WindowResult{OK: true}
	}

	dayName := at.Weekday().String()
	resolved := Resolve(entries, at)

	if len(resolved) > 0 {
		for i := range resolved {
			s := resolved[i]
			openAt := s.Start.At(at).Add(-minutes(st.EarlyMinutes))
			closeAt := s.End.At(at).Add(minutes(st.LateMinutes))
			if !at.Before(openAt) && !at.After(closeAt) {
				return WindowResult{OK: true, Schedule: &s}
			}
		}
		labels := make([]string, 0, len(resolved))
		for _, s := range resolved {
			labels = append(labels, windowLabel(s, at, st))
		}
		return WindowResult{Reason: fmt.Sprintf(
			"Attendance not allowed at this time for %s (%s). Valid time window: %s.",
			dayName, formatDate(at), strings.Join(labels, " | "))}
	}

	// Nothing scheduled today. Distinguish "has weekly sessions on other
	// days" from "no structured schedule at all".
	if days := WeeklyDays(entries); len(days) > 0 {
		return WindowResult{Reason: fmt.Sprintf(
			"No schedule found for %s on %s (%s). Available schedules: %s. Please add a schedule for %s or edit the subject to add schedules.",
			subject.Code, dayName, formatDate(at), strings.Join(days, ", "), dayName)}
	}

	if subject.Start != nil && subject.End != nil {
		openAt := subject.Start.At(at).Add(-minutes(st.EarlyMinutes))
		closeAt := subject.End.At(at).Add(minutes(st.LateMinutes))
		if !at.Before(openAt) && !at.After(closeAt) {
			return WindowResult{OK: true}
		}
		return WindowResult{Reason: fmt.Sprintf(
			"Attendance not allowed at this time for %s. Schedule: %s - %s (Valid: %s - %s).",
			dayName, subject.Start.Clock(), subject.End.Clock(), clock(openAt), clock(closeAt))}
	}

	return WindowResult{Reason: fmt.Sprintf(
		"No schedule found for %s on %s (%s). Please add schedules for this subject in the admin panel or subject management page.",
		subject.Code, dayName, formatDate(at))}
}
