// Package mailer sends attendance notification emails. Delivery is
// best-effort: failures are logged and never affect the attendance write.
package mailer

import (
	"context"
	"fmt"
)

// Mailer is any backend that can deliver a plain-text email.
type Mailer interface {
	Send(ctx context.Context, to, subject, body string) error
}

// Notification kinds.
const (
	KindCheckIn  = "check_in"
	KindCheckOut = "check_out"
	KindWarning  = "warning"
)

// Notification is the queue payload describing an email to send. The scan
// path publishes it after commit; the worker composes and delivers it.
type Notification struct {
	Kind        string `json:"kind"`
	To          string `json:"to"`
	StudentName string `json:"student_name"`
	SubjectCode string `json:"subject_code"`
	SubjectName string `json:"subject_name"`
	Date        string `json:"date"`
	TimeIn      string `json:"time_in,omitempty"`
	TimeOut     string `json:"time_out,omitempty"`
	Status      string `json:"status,omitempty"`
	Absences    int    `json:"absences,omitempty"`
	Threshold   int    `json:"threshold,omitempty"`
}

// Compose renders the email subject and body for the notification.
func (n Notification) Compose() (subject, body string) {
	switch n.Kind {
	case KindCheckOut:
		subject = fmt.Sprintf("Attendance Check-Out Confirmation - %s", n.SubjectCode)
		body = fmt.Sprintf(
			"Dear %s,\n\nYour check-out for %s - %s on %s has been recorded.\n\nTime In: %s\nTime Out: %s\nStatus: %s\n\nAttendance Monitoring System",
			n.StudentName, n.SubjectCode, n.SubjectName, n.Date, orNA(n.TimeIn), orNA(n.TimeOut), n.Status)
	case KindWarning:
		subject = fmt.Sprintf("Attendance Warning - %s", n.SubjectCode)
		body = fmt.Sprintf(
			"Dear %s,\n\nThis is an automated warning regarding your attendance in %s - %s.\n\nYou have accumulated %d absence(s), which has reached the warning threshold of %d absence(s). Continued absences may affect your academic standing.\n\nAttendance Monitoring System",
			n.StudentName, n.SubjectCode, n.SubjectName, n.Absences, n.Threshold)
	default:
		subject = fmt.Sprintf("Attendance Check-In Confirmation - %s", n.SubjectCode)
		body = fmt.Sprintf(
			"Dear %s,\n\nYour attendance for %s - %s on %s has been recorded.\n\nTime In: %s\nStatus: %s\n\nAttendance Monitoring System",
			n.StudentName, n.SubjectCode, n.SubjectName, n.Date, orNA(n.TimeIn), n.Status)
	}
	return subject, body
}

func orNA(s string) string {
	if s == "" {
		return "N/A"
	}
	return s
}
