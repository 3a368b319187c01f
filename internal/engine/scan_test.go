package engine

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func timePtr(t time.Time) *time.Time { return &t }
func int64Ptr(n int64) *int64        { return &n }

func TestProcessScanCheckInStatuses(t *testing.T) {
	// Weekly Monday 08:00-09:00, early=30, late=60, grace=15.
	tests := []struct {
		name   string
		at     time.Time
		kind   DecisionKind
		status Status
	}{
		{"early scan is present", monday(7, 30, 0), DecisionCheckIn, StatusPresent},
		{"before window rejected", monday(7, 29, 0), DecisionRejected, ""},
		{"within grace is present", monday(8, 14, 59), DecisionCheckIn, StatusPresent},
		{"at grace boundary is late", monday(8, 15, 0), DecisionCheckIn, StatusLate},
		{"past grace is late", monday(8, 16, 0), DecisionCheckIn, StatusLate},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := ProcessScan(mondayClass(), cs101(), testSettings(), nil, tt.at)
			assert.Equal(t, tt.kind, d.Kind)
			if d.Kind == DecisionCheckIn {
				assert.Equal(t, tt.status, d.Status)
				require.NotNil(t, d.Schedule)
			}
		})
	}
}

func TestProcessScanStripsSeconds(t *testing.T) {
	d := ProcessScan(mondayClass(), cs101(), testSettings(), nil, monday(8, 16, 45))

	require.Equal(t, DecisionCheckIn, d.Kind)
	assert.Equal(t, monday(8, 16, 0), d.Stored)
}

func TestProcessScanRescanBeforeTimeoutWindow(t *testing.T) {
	// Scenario: checked in at 08:05, re-scan at 08:40. The timeout window
	// opens at 08:45, so the scan is acknowledged without touching time-in.
	rec := &Record{
		TimeIn:     timePtr(monday(8, 5, 0)),
		Status:     StatusPresent,
		ScheduleID: int64Ptr(1),
	}

	d := ProcessScan(mondayClass(), cs101(), testSettings(), rec, monday(8, 40, 0))

	assert.Equal(t, DecisionNoOp, d.Kind)
	assert.Contains(t, d.Reason, "Time-in already recorded at 08:05 AM")
}

func TestProcessScanCheckOut(t *testing.T) {
	rec := &Record{
		TimeIn:     timePtr(monday(8, 5, 0)),
		Status:     StatusLate,
		ScheduleID: int64Ptr(1),
	}

	d := ProcessScan(mondayClass(), cs101(), testSettings(), rec, monday(8, 46, 30))

	require.Equal(t, DecisionCheckOut, d.Kind)
	assert.Equal(t, StatusLate, d.Status, "check-out keeps the check-in status")
	assert.Equal(t, monday(8, 46, 0), d.Stored)
}

func TestProcessScanTerminalState(t *testing.T) {
	rec := &Record{
		TimeIn:  timePtr(monday(8, 5, 0)),
		TimeOut: timePtr(monday(8, 50, 0)),
		Status:  StatusPresent,
	}

	// Terminal regardless of candidate time, even far outside any window.
	for _, at := range []time.Time{monday(8, 55, 0), monday(3, 0, 0), monday(23, 59, 0)} {
		d := ProcessScan(mondayClass(), cs101(), testSettings(), rec, at)
		assert.Equal(t, DecisionNoOp, d.Kind)
		assert.Contains(t, d.Reason, "Time In: 08:05 AM, Time Out: 08:50 AM")
	}
}

func TestProcessScanRejectedOutsideWindow(t *testing.T) {
	d := ProcessScan(mondayClass(), cs101(), testSettings(), nil, monday(11, 0, 0))

	assert.Equal(t, DecisionRejected, d.Kind)
	assert.Contains(t, d.Reason, "Attendance not allowed at this time")
}

func TestProcessScanNoScheduleRejected(t *testing.T) {
	d := ProcessScan(nil, cs101(), testSettings(), nil, monday(8, 30, 0))

	assert.Equal(t, DecisionRejected, d.Kind)
	assert.Contains(t, d.Reason, "No schedule found")
}

func TestProcessScanValidationDisabled(t *testing.T) {
	st := testSettings()
	st.EnableTimeValidation = false

	d := ProcessScan(nil, cs101(), st, nil, monday(3, 0, 0))

	assert.Equal(t, DecisionCheckIn, d.Kind)
	assert.Equal(t, StatusPresent, d.Status)
	assert.Nil(t, d.Schedule)
}

func TestProcessScanFillsPremarkedRecord(t *testing.T) {
	// A record pre-created by absentee marking has no time-in yet; the first
	// scan checks in onto it rather than being treated as a re-scan.
	rec := &Record{Status: StatusAbsent}

	d := ProcessScan(mondayClass(), cs101(), testSettings(), rec, monday(8, 5, 0))

	assert.Equal(t, DecisionCheckIn, d.Kind)
	assert.Equal(t, StatusPresent, d.Status)
}

func TestProcessScanTimeoutAgainstOriginalSession(t *testing.T) {
	// Two Monday sessions; the record was checked in under the morning one.
	// Its end, not the current match, anchors the timeout window.
	entries := []Schedule{
		weekly(1, time.Monday, 8, 0, 9, 0),
		weekly(2, time.Monday, 9, 30, 11, 0),
	}
	rec := &Record{
		TimeIn:     timePtr(monday(8, 5, 0)),
		Status:     StatusPresent,
		ScheduleID: int64Ptr(1),
	}

	d := ProcessScan(entries, cs101(), testSettings(), rec, monday(8, 50, 0))

	require.Equal(t, DecisionCheckOut, d.Kind)
	require.NotNil(t, d.Schedule)
	assert.Equal(t, int64(1), d.Schedule.ID)
}

func TestDecisionAccepted(t *testing.T) {
	assert.True(t, Decision{Kind: DecisionCheckIn}.Accepted())
	assert.True(t, Decision{Kind: DecisionCheckOut}.Accepted())
	assert.False(t, Decision{Kind: DecisionRejected}.Accepted())
	assert.False(t, Decision{Kind: DecisionNoOp}.Accepted())
}
