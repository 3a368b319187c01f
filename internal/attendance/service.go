package attendance

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"rfidattend/internal/engine"
	"rfidattend/internal/mailer"
	"rfidattend/internal/metrics"
	"rfidattend/internal/queue"
)

// Host-level rejections: these never reach the engine.
var (
	ErrUnknownCard    = errors.New("RFID card not recognized")
	ErrUnknownSubject = errors.New("subject not found")
)

// NotEnrolledError reports a scan by a student not enrolled in the subject.
type NotEnrolledError struct {
	StudentName string
	RFID        string
	SubjectCode string
	SubjectName string
	Enrolled    []string
}

func (e *NotEnrolledError) Error() string {
	enrolled := "None"
	if len(e.Enrolled) > 0 {
		enrolled = strings.Join(e.Enrolled, ", ")
	}
	return fmt.Sprintf("%s (RFID: %s) is not enrolled in %s - %s. Student's enrolled subjects: %s",
		e.StudentName, e.RFID, e.SubjectCode, e.SubjectName, enrolled)
}

// Service coordinates scan processing: it owns the lock scope around the
// engine and the persistence and notification side effects of a Decision.
type Service struct {
	repo     *Repository
	settings *SettingsCache
	queue    queue.Queue
	locks    *keyMutex
	loc      *time.Location
}

// NewService creates a service. loc is the institution's timezone; every
// timestamp is converted into it before the engine sees it.
func NewService(repo *Repository, settings *SettingsCache, q queue.Queue, loc *time.Location) *Service {
	if loc == nil {
		loc = time.Local
	}
	return &Service{
		repo:     repo,
		settings: settings,
		queue:    q,
		locks:    newKeyMutex(),
		loc:      loc,
	}
}

// ScanResult is what the scan endpoint renders: the engine's decision plus
// the entities it concerned.
type ScanResult struct {
	Decision engine.Decision `json:"decision"`
	Student  Student         `json:"student"`
	Subject  Subject         `json:"subject"`
	Record   *Attendance     `json:"record,omitempty"`
}

// Scan processes one RFID tap. at is "now" as supplied by the caller, which
// keeps the decision path deterministic under test.
func (s *Service) Scan(ctx context.Context, rfid string, subjectID int64, at time.Time) (*ScanResult, error) {
	at = at.In(s.loc)

	student, err := s.repo.StudentByRFID(ctx, rfid)
	if err != nil {
		return nil, err
	}
	if student == nil {
		return nil, ErrUnknownCard
	}
	subject, err := s.repo.SubjectByID(ctx, subjectID)
	if err != nil {
		return nil, err
	}
	if subject == nil {
		return nil, ErrUnknownSubject
	}
	enrolled, err := s.repo.IsEnrolled(ctx, student.ID, subject.ID)
	if err != nil {
		return nil, err
	}
	if !enrolled {
		labels, err := s.repo.EnrolledSubjects(ctx, student.ID)
		if err != nil {
			return nil, err
		}
		return nil, &NotEnrolledError{
			StudentName: student.Name,
			RFID:        student.RFID,
			SubjectCode: subject.Code,
			SubjectName: subject.Name,
			Enrolled:    labels,
		}
	}

	entries, err := s.repo.SchedulesBySubject(ctx, subject.ID)
	if err != nil {
		return nil, err
	}
	st, err := s.settings.Get(ctx)
	if err != nil {
		return nil, err
	}

	result, err := s.applyScan(ctx, *student, *subject, entries, st, at)
	if err != nil {
		return nil, err
	}

	metrics.ScanDecisions.WithLabelValues(string(result.Decision.Kind)).Inc()
	// Notifications go out after the commit, outside the lock; a publish
	// failure must never undo the attendance write.
	if result.Decision.Accepted() {
		s.notifyScan(ctx, st, result)
	}
	return result, nil
}

// applyScan is the critical section: per-key mutex plus a transaction with
// a row lock on the day's record, so two rapid taps serialize.
func (s *Service) applyScan(ctx context.Context, student Student, subject Subject, entries []engine.Schedule, st Settings, at time.Time) (*ScanResult, error) {
	date := s.dateOf(at)
	key := fmt.Sprintf("%d:%d:%s", student.ID, subject.ID, date.Format("2006-01-02"))
	s.locks.Lock(key)
	defer s.locks.Unlock(key)

	tx, err := s.repo.BeginTx(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	rec, err := s.repo.RecordForUpdate(ctx, tx, student.ID, subject.ID, date)
	if err != nil {
		return nil, err
	}

	d := engine.ProcessScan(entries, subject.Engine(), st.Settings, rec.Snapshot(), at)

	switch d.Kind {
	case engine.DecisionCheckIn:
		var schedID *int64
		if d.Schedule != nil {
			schedID = &d.Schedule.ID
		}
		if rec == nil {
			stored := d.Stored
			created, err := s.repo.InsertCheckIn(ctx, tx, Attendance{
				StudentID:  student.ID,
				SubjectID:  subject.ID,
				Date:       date,
				TimeIn:     &stored,
				Status:     d.Status,
				ScheduleID: schedID,
			})
			if err != nil {
				return nil, err
			}
			rec = &created
		} else {
			// Record pre-created by absentee marking; fill its time-in.
			if err := s.repo.SetTimeIn(ctx, tx, rec.ID, d.Stored, d.Status, schedID); err != nil {
				return nil, err
			}
			stored := d.Stored
			rec.TimeIn = &stored
			rec.Status = d.Status
			if schedID != nil {
				rec.ScheduleID = schedID
			}
		}
	case engine.DecisionCheckOut:
		if err := s.repo.SetTimeOut(ctx, tx, rec.ID, d.Stored); err != nil {
			return nil, err
		}
		stored := d.Stored
		rec.TimeOut = &stored
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return &ScanResult{Decision: d, Student: student, Subject: subject, Record: rec}, nil
}

// ActiveSubject returns the subject whose attendance window is open at the
// given instant, preferring the window that opened earliest. Nil when no
// class is in session.
func (s *Service) ActiveSubject(ctx context.Context, at time.Time) (*Subject, error) {
	at = at.In(s.loc)
	subjects, err := s.repo.ActiveSubjects(ctx)
	if err != nil {
		return nil, err
	}
	st, err := s.settings.Get(ctx)
	if err != nil {
		return nil, err
	}

	candidates := make([]engine.Candidate, 0, len(subjects))
	for _, subj := range subjects {
		entries, err := s.repo.SchedulesBySubject(ctx, subj.ID)
		if err != nil {
			return nil, err
		}
		candidates = append(candidates, engine.Candidate{Subject: subj.Engine(), Schedules: entries})
	}

	best := engine.SelectActive(candidates, st.Settings, at)
	if best == nil {
		return nil, nil
	}
	for i := range subjects {
		if subjects[i].ID == best.Subject.ID {
			return &subjects[i], nil
		}
	}
	return nil, nil
}

// RecentScans lists the latest records for a subject.
func (s *Service) RecentScans(ctx context.Context, subjectID int64, limit int) ([]Attendance, error) {
	return s.repo.ListRecent(ctx, subjectID, limit)
}

// CurrentSettings returns the settings the scan path is using.
func (s *Service) CurrentSettings(ctx context.Context) (Settings, error) {
	return s.settings.Get(ctx)
}

// UpdateSettings saves the settings row and drops the cached copy so the
// next scan picks up the new values within one request.
func (s *Service) UpdateSettings(ctx context.Context, st Settings) error {
	if err := s.repo.UpdateSettings(ctx, st); err != nil {
		return err
	}
	s.settings.Invalidate(ctx)
	return nil
}

func (s *Service) dateOf(at time.Time) time.Time {
	y, m, d := at.In(s.loc).Date()
	return time.Date(y, m, d, 0, 0, 0, 0, s.loc)
}

func (s *Service) notifyScan(ctx context.Context, st Settings, res *ScanResult) {
	if !st.EmailNotificationsEnabled || res.Student.Email == nil {
		return
	}
	n := mailer.Notification{
		Kind:        mailer.KindCheckIn,
		To:          *res.Student.Email,
		StudentName: res.Student.Name,
		SubjectCode: res.Subject.Code,
		SubjectName: res.Subject.Name,
		Date:        res.Record.Date.Format("2006-01-02"),
		Status:      string(res.Record.Status),
	}
	if res.Record.TimeIn != nil {
		n.TimeIn = res.Record.TimeIn.Format("03:04 PM")
	}
	if res.Decision.Kind == engine.DecisionCheckOut {
		n.Kind = mailer.KindCheckOut
		if res.Record.TimeOut != nil {
			n.TimeOut = res.Record.TimeOut.Format("03:04 PM")
		}
	}
	s.publish(ctx, n)
}

func (s *Service) publish(ctx context.Context, n mailer.Notification) {
	if s.queue == nil {
		return
	}
	body, err := json.Marshal(n)
	if err != nil {
		log.Printf("notification marshal failed: %v", err)
		metrics.NotifyPublishFailures.Inc()
		return
	}
	if err := s.queue.Publish(ctx, queue.Message{Type: queue.TypeNotification, Body: body}); err != nil {
		log.Printf("notification publish failed: %v", err)
		metrics.NotifyPublishFailures.Inc()
	}
}
