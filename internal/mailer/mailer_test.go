package mailer

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestComposeCheckIn(t *testing.T) {
	n := Notification{
		Kind:        KindCheckIn,
		StudentName: "Juan Dela Cruz",
		SubjectCode: "CS101",
		SubjectName: "Intro to Computing",
		Date:        "2026-01-05",
		TimeIn:      "08:05 AM",
		Status:      "PRESENT",
	}

	subject, body := n.Compose()

	assert.Equal(t, "Attendance Check-In Confirmation - CS101", subject)
	assert.Contains(t, body, "Dear Juan Dela Cruz")
	assert.Contains(t, body, "Time In: 08:05 AM")
	assert.Contains(t, body, "Status: PRESENT")
}

func TestComposeCheckOut(t *testing.T) {
	n := Notification{
		Kind:        KindCheckOut,
		StudentName: "Juan Dela Cruz",
		SubjectCode: "CS101",
		SubjectName: "Intro to Computing",
		Date:        "2026-01-05",
		TimeIn:      "08:05 AM",
		TimeOut:     "08:50 AM",
		Status:      "LATE",
	}

	subject, body := n.Compose()

	assert.Equal(t, "Attendance Check-Out Confirmation - CS101", subject)
	assert.Contains(t, body, "Time Out: 08:50 AM")
}

func TestComposeCheckOutMissingTimes(t *testing.T) {
	_, body := Notification{Kind: KindCheckOut}.Compose()
	assert.Contains(t, body, "Time In: N/A")
}

func TestComposeWarning(t *testing.T) {
	n := Notification{
		Kind:        KindWarning,
		StudentName: "Juan Dela Cruz",
		SubjectCode: "CS101",
		SubjectName: "Intro to Computing",
		Absences:    4,
		Threshold:   3,
	}

	subject, body := n.Compose()

	assert.Equal(t, "Attendance Warning - CS101", subject)
	assert.Contains(t, body, "4 absence(s)")
	assert.Contains(t, body, "threshold of 3")
}
