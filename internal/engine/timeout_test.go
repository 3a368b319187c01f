package engine

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestValidateTimeoutWindow(t *testing.T) {
	sched := weekly(1, time.Monday, 8, 0, 9, 0)
	st := testSettings() // timeout opens 15 minutes before the 09:00 end

	tests := []struct {
		name string
		at   time.Time
		ok   bool
	}{
		{"well before window", monday(8, 30, 0), false},
		{"one second before window", monday(8, 44, 59), false},
		{"at window open", monday(8, 45, 0), true},
		{"after window open", monday(8, 46, 0), true},
		{"after class end", monday(9, 30, 0), true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ok, reason := ValidateTimeout(&sched, cs101(), st, tt.at)
			assert.Equal(t, tt.ok, ok)
			if !tt.ok {
				assert.Contains(t, reason, "Earliest time-out: 08:45 AM")
				assert.Contains(t, reason, "Class ends at 09:00 AM")
			}
		})
	}
}

func TestValidateTimeoutEndResolution(t *testing.T) {
	subjEnd := NewTimeOfDay(17, 0)
	globalEnd := NewTimeOfDay(12, 0)
	subj := Subject{ID: 1, Code: "CS101", End: &subjEnd}
	st := testSettings()
	st.ClassEnd = &globalEnd

	// Subject fallback end (17:00) applies when there is no schedule match.
	ok, _ := ValidateTimeout(nil, subj, st, monday(16, 40, 0))
	assert.False(t, ok)
	ok, _ = ValidateTimeout(nil, subj, st, monday(16, 45, 0))
	assert.True(t, ok)

	// Global default (12:00) applies when the subject defines no end.
	ok, _ = ValidateTimeout(nil, cs101(), st, monday(11, 44, 0))
	assert.False(t, ok)
	ok, _ = ValidateTimeout(nil, cs101(), st, monday(11, 45, 0))
	assert.True(t, ok)
}

func TestValidateTimeoutNoEndResolvable(t *testing.T) {
	ok, reason := ValidateTimeout(nil, cs101(), testSettings(), monday(0, 1, 0))

	assert.True(t, ok, "no resolvable end time means no constraint")
	assert.Empty(t, reason)
}
