package engine

import (
	"sort"
	"time"
)

// Resolve returns the schedule entries applicable on date, ordered by start
// time. Specific-date entries fully replace weekly entries for that date;
// they are never merged. An empty result is a valid outcome meaning the
// subject has no structured session that day.
func Resolve(entries []Schedule, date time.Time) []Schedule {
	var dated, weekly []Schedule
	weekday := date.Weekday()
	for _, e := range entries {
		switch {
		case e.Date != nil:
			if sameDate(*e.Date, date) {
				dated = append(dated, e)
			}
		case e.Day != nil && *e.Day == weekday:
			weekly = append(weekly, e)
		}
	}
	out := weekly
	if len(dated) > 0 {
		out = dated
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Start.At(date).Before(out[j].Start.At(date))
	})
	return out
}

// WeeklyDays returns the distinct day names that carry weekly entries,
// sorted alphabetically. Used for the "no schedule today" message.
func WeeklyDays(entries []Schedule) []string {
	seen := make(map[string]bool)
	var days []string
	for _, e := range entries {
		if e.Date != nil || e.Day == nil {
			continue
		}
		name := e.Day.String()
		if !seen[name] {
			seen[name] = true
			days = append(days, name)
		}
	}
	sort.Strings(days)
	return days
}

func sameDate(a, b time.Time) bool {
	ay, am, ad := a.Date()
	by, bm, bd := b.Date()
	return ay == by && am == bm && ad == bd
}
