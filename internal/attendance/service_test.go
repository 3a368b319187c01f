package attendance

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"rfidattend/internal/engine"
)

func TestNotEnrolledErrorMessage(t *testing.T) {
	err := &NotEnrolledError{
		StudentName: "Juan Dela Cruz",
		RFID:        "04A1B2C3",
		SubjectCode: "CS101",
		SubjectName: "Intro to Computing",
		Enrolled:    []string{"CS102 - Data Structures", "GE01 - Ethics"},
	}

	assert.Equal(t,
		"Juan Dela Cruz (RFID: 04A1B2C3) is not enrolled in CS101 - Intro to Computing. "+
			"Student's enrolled subjects: CS102 - Data Structures, GE01 - Ethics",
		err.Error())

	err.Enrolled = nil
	assert.Contains(t, err.Error(), "enrolled subjects: None")
}

func TestHasSession(t *testing.T) {
	day := time.Monday
	weekly := []engine.Schedule{{ID: 1, Day: &day, Start: engine.NewTimeOfDay(8, 0), End: engine.NewTimeOfDay(9, 0)}}
	start := engine.NewTimeOfDay(8, 0)
	end := engine.NewTimeOfDay(9, 0)

	monday := time.Date(2026, time.January, 5, 0, 0, 0, 0, time.UTC)
	tuesday := monday.AddDate(0, 0, 1)

	assert.True(t, hasSession(weekly, Subject{}, monday))
	assert.False(t, hasSession(weekly, Subject{}, tuesday), "weekly entries on other days do not make a session")
	assert.False(t, hasSession(weekly, Subject{Start: &start, End: &end}, tuesday), "fallback only applies with no entries at all")
	assert.True(t, hasSession(nil, Subject{Start: &start, End: &end}, tuesday))
	assert.False(t, hasSession(nil, Subject{}, monday))
}

func TestAttendanceSnapshot(t *testing.T) {
	var missing *Attendance
	assert.Nil(t, missing.Snapshot())

	in := time.Date(2026, time.January, 5, 8, 5, 0, 0, time.UTC)
	schedID := int64(7)
	a := &Attendance{TimeIn: &in, Status: engine.StatusLate, ScheduleID: &schedID}

	snap := a.Snapshot()
	assert.Equal(t, &in, snap.TimeIn)
	assert.Nil(t, snap.TimeOut)
	assert.Equal(t, engine.StatusLate, snap.Status)
	assert.Equal(t, &schedID, snap.ScheduleID)
}
