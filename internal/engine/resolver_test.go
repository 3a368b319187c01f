package engine

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var manila = time.FixedZone("Asia/Manila", 8*3600)

// monday returns a clock reading on Monday 2026-01-05.
func monday(hour, min, sec int) time.Time {
	return time.Date(2026, time.January, 5, hour, min, sec, 0, manila)
}

func weekdayPtr(d time.Weekday) *time.Weekday { return &d }

func weekly(id int64, day time.Weekday, sh, sm, eh, em int) Schedule {
	return Schedule{
		ID:    id,
		Day:   weekdayPtr(day),
		Start: NewTimeOfDay(sh, sm),
		End:   NewTimeOfDay(eh, em),
	}
}

func dated(id int64, date time.Time, sh, sm, eh, em int) Schedule {
	return Schedule{
		ID:    id,
		Start: NewTimeOfDay(sh, sm),
		End:   NewTimeOfDay(eh, em),
		Date:  &date,
	}
}

func TestResolveDateOverrideReplacesWeekly(t *testing.T) {
	entries := []Schedule{
		weekly(1, time.Monday, 8, 0, 9, 0),
		dated(2, monday(0, 0, 0), 10, 0, 11, 0),
	}

	got := Resolve(entries, monday(8, 30, 0))

	require.Len(t, got, 1)
	assert.Equal(t, int64(2), got[0].ID, "date-specific entry must fully replace the weekly one")
}

func TestResolveWeeklyByWeekday(t *testing.T) {
	entries := []Schedule{
		weekly(1, time.Monday, 8, 0, 9, 0),
		weekly(2, time.Wednesday, 8, 0, 9, 0),
	}

	got := Resolve(entries, monday(12, 0, 0))

	require.Len(t, got, 1)
	assert.Equal(t, int64(1), got[0].ID)
}

func TestResolveOrdersByStartTime(t *testing.T) {
	entries := []Schedule{
		weekly(1, time.Monday, 13, 0, 14, 0),
		weekly(2, time.Monday, 8, 0, 9, 0),
		weekly(3, time.Monday, 10, 30, 11, 30),
	}

	got := Resolve(entries, monday(0, 0, 0))

	require.Len(t, got, 3)
	assert.Equal(t, []int64{2, 3, 1}, []int64{got[0].ID, got[1].ID, got[2].ID})
}

func TestResolveEmptyWhenNothingApplies(t *testing.T) {
	entries := []Schedule{
		weekly(1, time.Tuesday, 8, 0, 9, 0),
		dated(2, monday(0, 0, 0).AddDate(0, 0, 7), 8, 0, 9, 0),
	}

	assert.Empty(t, Resolve(entries, monday(8, 30, 0)))
}

func TestWeeklyDays(t *testing.T) {
	entries := []Schedule{
		weekly(1, time.Wednesday, 8, 0, 9, 0),
		weekly(2, time.Friday, 8, 0, 9, 0),
		weekly(3, time.Friday, 13, 0, 14, 0),
		dated(4, monday(0, 0, 0), 8, 0, 9, 0),
	}

	assert.Equal(t, []string{"Friday", "Wednesday"}, WeeklyDays(entries))
}
