package attendance

import (
	"context"
	"fmt"
	"time"

	"rfidattend/internal/engine"
	"rfidattend/internal/mailer"
	"rfidattend/internal/metrics"
)

// MarkAbsent records an ABSENT row for every enrolled student who never
// scanned on a day the subject held a session. Each student is handled in
// its own lock scope; one failure does not stop the pass. Returns the
// number of records created.
func (s *Service) MarkAbsent(ctx context.Context, date time.Time) (int, error) {
	date = s.dateOf(date)
	st, err := s.settings.Get(ctx)
	if err != nil {
		return 0, err
	}
	subjects, err := s.repo.ActiveSubjects(ctx)
	if err != nil {
		return 0, err
	}

	marked := 0
	for _, subj := range subjects {
		entries, err := s.repo.SchedulesBySubject(ctx, subj.ID)
		if err != nil {
			return marked, err
		}
		if !hasSession(entries, subj, date) {
			continue
		}
		students, err := s.repo.EnrolledStudents(ctx, subj.ID)
		if err != nil {
			return marked, err
		}
		for _, student := range students {
			created, err := s.markOne(ctx, student, subj, date)
			if err != nil {
				return marked, fmt.Errorf("mark absent %s/%s: %w", student.RFID, subj.Code, err)
			}
			if !created {
				continue
			}
			marked++
			metrics.AbsenteesMarked.Inc()
			s.maybeWarn(ctx, st, student, subj)
		}
	}
	return marked, nil
}

func (s *Service) markOne(ctx context.Context, student Student, subj Subject, date time.Time) (bool, error) {
	key := fmt.Sprintf("%d:%d:%s", student.ID, subj.ID, date.Format("2006-01-02"))
	s.locks.Lock(key)
	defer s.locks.Unlock(key)
	return s.repo.InsertAbsent(ctx, student.ID, subj.ID, date)
}

// maybeWarn queues a warning email once a student's absences reach the
// configured threshold.
func (s *Service) maybeWarn(ctx context.Context, st Settings, student Student, subj Subject) {
	if !st.EmailNotificationsEnabled || st.SendWarningsAfter <= 0 || student.Email == nil {
		return
	}
	absences, err := s.repo.CountAbsences(ctx, student.ID, subj.ID)
	if err != nil || absences < st.SendWarningsAfter {
		return
	}
	s.publish(ctx, mailer.Notification{
		Kind:        mailer.KindWarning,
		To:          *student.Email,
		StudentName: student.Name,
		SubjectCode: subj.Code,
		SubjectName: subj.Name,
		Absences:    absences,
		Threshold:   st.SendWarningsAfter,
	})
}

// hasSession reports whether the subject held a class on the date: a
// resolved schedule entry, or the subject fallback times when it has no
// structured entries at all.
func hasSession(entries []engine.Schedule, subj Subject, date time.Time) bool {
	if len(engine.Resolve(entries, date)) > 0 {
		return true
	}
	return len(entries) == 0 && subj.Start != nil && subj.End != nil
}
