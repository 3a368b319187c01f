package attendance

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"rfidattend/internal/engine"
)

// Student is a registered student with an RFID card.
type Student struct {
	ID       int64   `json:"id"`
	Name     string  `json:"name"`
	RFID     string  `json:"rfid_id"`
	Email    *string `json:"email,omitempty"`
	PhotoURL *string `json:"photo_url,omitempty"`
}

// Subject is a class students enroll in, with optional fallback session
// times for subjects that carry no structured schedule entries.
type Subject struct {
	ID     int64             `json:"id"`
	Code   string            `json:"code"`
	Name   string            `json:"name"`
	Start  *engine.TimeOfDay `json:"-"`
	End    *engine.TimeOfDay `json:"-"`
	Active bool              `json:"active"`
}

// Engine converts the row to the engine's subject shape.
func (s Subject) Engine() engine.Subject {
	return engine.Subject{ID: s.ID, Code: s.Code, Start: s.Start, End: s.End}
}

// Attendance is one persisted record for a (student, subject, date) key.
type Attendance struct {
	ID         string        `json:"id"`
	StudentID  int64         `json:"student_id"`
	SubjectID  int64         `json:"subject_id"`
	Date       time.Time     `json:"date"`
	TimeIn     *time.Time    `json:"time_in,omitempty"`
	TimeOut    *time.Time    `json:"time_out,omitempty"`
	Status     engine.Status `json:"status"`
	ScheduleID *int64        `json:"schedule_id,omitempty"`
	CreatedAt  time.Time     `json:"created_at"`
}

// Snapshot returns the engine-facing view of the record.
func (a *Attendance) Snapshot() *engine.Record {
	if a == nil {
		return nil
	}
	return &engine.Record{TimeIn: a.TimeIn, TimeOut: a.TimeOut, Status: a.Status, ScheduleID: a.ScheduleID}
}

// Repository persists attendance data in Postgres.
type Repository struct {
	db *sql.DB
}

// NewRepository creates a repo.
func NewRepository(db *sql.DB) *Repository {
	return &Repository{db: db}
}

// BeginTx opens a transaction for a scan's critical section.
func (r *Repository) BeginTx(ctx context.Context) (*sql.Tx, error) {
	return r.db.BeginTx(ctx, nil)
}

// StudentByRFID looks up a student by card id; nil when unknown.
func (r *Repository) StudentByRFID(ctx context.Context, rfid string) (*Student, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT id, name, rfid_id, email, photo_url
		FROM students WHERE rfid_id = $1
	`, rfid)
	var s Student
	if err := row.Scan(&s.ID, &s.Name, &s.RFID, &s.Email, &s.PhotoURL); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &s, nil
}

// SubjectByID fetches one subject; nil when missing.
func (r *Repository) SubjectByID(ctx context.Context, id int64) (*Subject, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT id, code, name, schedule_time_start::text, schedule_time_end::text, is_active
		FROM subjects WHERE id = $1
	`, id)
	s, err := scanSubject(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return s, nil
}

// ActiveSubjects lists subjects open for scanning.
func (r *Repository) ActiveSubjects(ctx context.Context) ([]Subject, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, code, name, schedule_time_start::text, schedule_time_end::text, is_active
		FROM subjects WHERE is_active ORDER BY code
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var subjects []Subject
	for rows.Next() {
		s, err := scanSubject(rows)
		if err != nil {
			return nil, err
		}
		subjects = append(subjects, *s)
	}
	return subjects, rows.Err()
}

// SchedulesBySubject returns every schedule entry configured for a subject,
// weekly and date-specific alike; the engine resolves which apply on a date.
func (r *Repository) SchedulesBySubject(ctx context.Context, subjectID int64) ([]engine.Schedule, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, subject_id, day_of_week, time_start::text, time_end::text, specific_date
		FROM subject_schedules WHERE subject_id = $1
		ORDER BY day_of_week, time_start
	`, subjectID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var entries []engine.Schedule
	for rows.Next() {
		var (
			e          engine.Schedule
			day        sql.NullInt64
			start, end string
			date       sql.NullTime
		)
		if err := rows.Scan(&e.ID, &e.SubjectID, &day, &start, &end, &date); err != nil {
			return nil, err
		}
		if day.Valid {
			wd := time.Weekday(day.Int64)
			e.Day = &wd
		}
		if date.Valid {
			d := date.Time
			e.Date = &d
		}
		if e.Start, err = parseTimeOfDay(start); err != nil {
			return nil, fmt.Errorf("schedule %d: %w", e.ID, err)
		}
		if e.End, err = parseTimeOfDay(end); err != nil {
			return nil, fmt.Errorf("schedule %d: %w", e.ID, err)
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// IsEnrolled reports whether the student is enrolled in the subject.
func (r *Repository) IsEnrolled(ctx context.Context, studentID, subjectID int64) (bool, error) {
	var enrolled bool
	err := r.db.QueryRowContext(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM student_subjects WHERE student_id = $1 AND subject_id = $2
		)
	`, studentID, subjectID).Scan(&enrolled)
	return enrolled, err
}

// EnrolledSubjects lists "CODE - Name" labels for a student's enrollments,
// used in the not-enrolled rejection message.
func (r *Repository) EnrolledSubjects(ctx context.Context, studentID int64) ([]string, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT s.code, s.name
		FROM student_subjects ss JOIN subjects s ON s.id = ss.subject_id
		WHERE ss.student_id = $1 ORDER BY s.code
	`, studentID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var labels []string
	for rows.Next() {
		var code, name string
		if err := rows.Scan(&code, &name); err != nil {
			return nil, err
		}
		labels = append(labels, code+" - "+name)
	}
	return labels, rows.Err()
}

// EnrolledStudents lists students enrolled in a subject.
func (r *Repository) EnrolledStudents(ctx context.Context, subjectID int64) ([]Student, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT st.id, st.name, st.rfid_id, st.email, st.photo_url
		FROM student_subjects ss JOIN students st ON st.id = ss.student_id
		WHERE ss.subject_id = $1 ORDER BY st.name
	`, subjectID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var students []Student
	for rows.Next() {
		var s Student
		if err := rows.Scan(&s.ID, &s.Name, &s.RFID, &s.Email, &s.PhotoURL); err != nil {
			return nil, err
		}
		students = append(students, s)
	}
	return students, rows.Err()
}

// RecordForUpdate loads the attendance row for a key under a row lock, so
// concurrent scans of the same student/subject/day serialize. Nil when the
// day has no record yet.
func (r *Repository) RecordForUpdate(ctx context.Context, tx *sql.Tx, studentID, subjectID int64, date time.Time) (*Attendance, error) {
	row := tx.QueryRowContext(ctx, `
		SELECT id, student_id, subject_id, date, time_in, time_out, status, schedule_id, created_at
		FROM attendance
		WHERE student_id = $1 AND subject_id = $2 AND date = $3
		FOR UPDATE
	`, studentID, subjectID, date)
	a, err := scanAttendance(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return a, nil
}

// InsertCheckIn creates the day's record with its time-in set.
func (r *Repository) InsertCheckIn(ctx context.Context, tx *sql.Tx, a Attendance) (Attendance, error) {
	if a.ID == "" {
		a.ID = uuid.NewString()
	}
	row := tx.QueryRowContext(ctx, `
		INSERT INTO attendance (id, student_id, subject_id, date, time_in, status, schedule_id)
		VALUES ($1,$2,$3,$4,$5,$6,$7)
		RETURNING created_at
	`, a.ID, a.StudentID, a.SubjectID, a.Date, a.TimeIn, a.Status, a.ScheduleID)
	if err := row.Scan(&a.CreatedAt); err != nil {
		return Attendance{}, err
	}
	return a, nil
}

// SetTimeIn fills the time-in on a pre-created (absent-marked) record.
func (r *Repository) SetTimeIn(ctx context.Context, tx *sql.Tx, id string, t time.Time, status engine.Status, scheduleID *int64) error {
	_, err := tx.ExecContext(ctx, `
		UPDATE attendance SET time_in = $2, status = $3, schedule_id = COALESCE($4, schedule_id)
		WHERE id = $1
	`, id, t, status, scheduleID)
	return err
}

// SetTimeOut records the check-out; time-in is never touched.
func (r *Repository) SetTimeOut(ctx context.Context, tx *sql.Tx, id string, t time.Time) error {
	_, err := tx.ExecContext(ctx, `UPDATE attendance SET time_out = $2 WHERE id = $1`, id, t)
	return err
}

// InsertAbsent writes an ABSENT record for a student who never scanned.
// The unique constraint on the key makes this a no-op when a record
// appeared concurrently.
func (r *Repository) InsertAbsent(ctx context.Context, studentID, subjectID int64, date time.Time) (bool, error) {
	res, err := r.db.ExecContext(ctx, `
		INSERT INTO attendance (id, student_id, subject_id, date, status)
		VALUES ($1,$2,$3,$4,$5)
		ON CONFLICT (student_id, subject_id, date) DO NOTHING
	`, uuid.NewString(), studentID, subjectID, date, engine.StatusAbsent)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	return n > 0, err
}

// CountAbsences returns the student's total ABSENT records for a subject.
func (r *Repository) CountAbsences(ctx context.Context, studentID, subjectID int64) (int, error) {
	var n int
	err := r.db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM attendance
		WHERE student_id = $1 AND subject_id = $2 AND status = $3
	`, studentID, subjectID, engine.StatusAbsent).Scan(&n)
	return n, err
}

// ListRecent returns the latest records for a subject, newest first.
func (r *Repository) ListRecent(ctx context.Context, subjectID int64, limit int) ([]Attendance, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, student_id, subject_id, date, time_in, time_out, status, schedule_id, created_at
		FROM attendance WHERE subject_id = $1
		ORDER BY created_at DESC LIMIT $2
	`, subjectID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var records []Attendance
	for rows.Next() {
		a, err := scanAttendance(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, *a)
	}
	return records, rows.Err()
}

// SetStudentPhoto stores the student's uploaded profile photo URL.
func (r *Repository) SetStudentPhoto(ctx context.Context, studentID int64, url string) error {
	_, err := r.db.ExecContext(ctx, `UPDATE students SET photo_url = $2 WHERE id = $1`, studentID, url)
	return err
}

// Settings loads the singleton settings row, falling back to defaults when
// the row was never saved.
func (r *Repository) Settings(ctx context.Context) (Settings, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT enable_time_validation, early_attendance_minutes, late_attendance_minutes,
		       grace_period_minutes, timeout_before_minutes,
		       class_start_time::text, class_end_time::text,
		       email_notifications_enabled, send_warnings_after
		FROM system_settings WHERE id = 1
	`)
	var (
		st         = DefaultSettings()
		start, end sql.NullString
	)
	err := row.Scan(&st.EnableTimeValidation, &st.EarlyMinutes, &st.LateMinutes,
		&st.GraceMinutes, &st.TimeoutBeforeMinutes, &start, &end,
		&st.EmailNotificationsEnabled, &st.SendWarningsAfter)
	if errors.Is(err, sql.ErrNoRows) {
		return DefaultSettings(), nil
	}
	if err != nil {
		return Settings{}, err
	}
	if start.Valid {
		if st.ClassStart, err = parseTimeOfDayPtr(start.String); err != nil {
			return Settings{}, err
		}
	}
	if end.Valid {
		if st.ClassEnd, err = parseTimeOfDayPtr(end.String); err != nil {
			return Settings{}, err
		}
	}
	return st, nil
}

// UpdateSettings upserts the singleton settings row.
func (r *Repository) UpdateSettings(ctx context.Context, st Settings) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO system_settings (id, enable_time_validation, early_attendance_minutes,
		       late_attendance_minutes, grace_period_minutes, timeout_before_minutes,
		       class_start_time, class_end_time, email_notifications_enabled, send_warnings_after)
		VALUES (1, $1, $2, $3, $4, $5, $6::time, $7::time, $8, $9)
		ON CONFLICT (id) DO UPDATE SET
		       enable_time_validation = EXCLUDED.enable_time_validation,
		       early_attendance_minutes = EXCLUDED.early_attendance_minutes,
		       late_attendance_minutes = EXCLUDED.late_attendance_minutes,
		       grace_period_minutes = EXCLUDED.grace_period_minutes,
		       timeout_before_minutes = EXCLUDED.timeout_before_minutes,
		       class_start_time = EXCLUDED.class_start_time,
		       class_end_time = EXCLUDED.class_end_time,
		       email_notifications_enabled = EXCLUDED.email_notifications_enabled,
		       send_warnings_after = EXCLUDED.send_warnings_after
	`, st.EnableTimeValidation, st.EarlyMinutes, st.LateMinutes,
		st.GraceMinutes, st.TimeoutBeforeMinutes,
		timeOfDayArg(st.ClassStart), timeOfDayArg(st.ClassEnd),
		st.EmailNotificationsEnabled, st.SendWarningsAfter)
	return err
}

func timeOfDayArg(td *engine.TimeOfDay) any {
	if td == nil {
		return nil
	}
	return fmt.Sprintf("%02d:%02d:%02d", td.Hour, td.Minute, td.Second)
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanAttendance(row rowScanner) (*Attendance, error) {
	var a Attendance
	var schedID sql.NullInt64
	if err := row.Scan(&a.ID, &a.StudentID, &a.SubjectID, &a.Date, &a.TimeIn, &a.TimeOut, &a.Status, &schedID, &a.CreatedAt); err != nil {
		return nil, err
	}
	if schedID.Valid {
		a.ScheduleID = &schedID.Int64
	}
	return &a, nil
}

func scanSubject(row rowScanner) (*Subject, error) {
	var (
		s          Subject
		start, end sql.NullString
	)
	if err := row.Scan(&s.ID, &s.Code, &s.Name, &start, &end, &s.Active); err != nil {
		return nil, err
	}
	var err error
	if start.Valid {
		if s.Start, err = parseTimeOfDayPtr(start.String); err != nil {
			return nil, err
		}
	}
	if end.Valid {
		if s.End, err = parseTimeOfDayPtr(end.String); err != nil {
			return nil, err
		}
	}
	return &s, nil
}

func parseTimeOfDay(s string) (engine.TimeOfDay, error) {
	t, err := time.Parse("15:04:05", s)
	if err != nil {
		// TIME columns may come back without seconds
		if t, err = time.Parse("15:04", s); err != nil {
			return engine.TimeOfDay{}, fmt.Errorf("bad time %q: %w", s, err)
		}
	}
	return engine.TimeOfDayOf(t), nil
}

func parseTimeOfDayPtr(s string) (*engine.TimeOfDay, error) {
	td, err := parseTimeOfDay(s)
	if err != nil {
		return nil, err
	}
	return &td, nil
}
