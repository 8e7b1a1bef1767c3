package services

import (
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/Swastik2002/Smart-Attendance-System/models"
	"github.com/Swastik2002/Smart-Attendance-System/repository"
	"gorm.io/gorm"
)

var (
	// ErrAlreadyMarked reports that a (student, subject, date) key already
	// holds a record; a strict mark refuses to touch it.
	ErrAlreadyMarked = errors.New("attendance already marked for this student, subject and date")

	// ErrInvalidStatus reports a status value outside Present/Absent.
	ErrInvalidStatus = errors.New("status must be 'Present' or 'Absent'")
)

// AttendanceService is the ledger: it enforces the once-per-(student,
// subject, date) rule. A strict mark never overwrites; an explicit update
// always does. The check-then-insert window is guarded by a per-key lock, and
// the composite unique index backstops anything that slips through (a lost
// insert race surfaces as gorm.ErrDuplicatedKey and is reported as already
// marked).
type AttendanceService struct {
	repo repository.AttendanceRepositoryInterface

	mu       sync.Mutex
	keyLocks map[string]*sync.Mutex
}

func NewAttendanceService(repo repository.AttendanceRepositoryInterface) *AttendanceService {
	return &AttendanceService{
		repo:     repo,
		keyLocks: make(map[string]*sync.Mutex),
	}
}

func (s *AttendanceService) lockKey(studentID, subjectID uint, date string) *sync.Mutex {
	key := fmt.Sprintf("%d:%d:%s", studentID, subjectID, date)
	s.mu.Lock()
	defer s.mu.Unlock()
	lock, ok := s.keyLocks[key]
	if !ok {
		lock = &sync.Mutex{}
		s.keyLocks[key] = lock
	}
	return lock
}

// NormalizeDate resolves a YYYY-MM-DD date string. An empty or unparseable
// input falls back to today's date so a bad date never blocks a mark.
func NormalizeDate(date string) string {
	if date == "" {
		return time.Now().Format("2006-01-02")
	}
	parsed, err := time.Parse("2006-01-02", date)
	if err != nil {
		log.Printf("attendance: failed to parse date %q, using today", date)
		return time.Now().Format("2006-01-02")
	}
	return parsed.Format("2006-01-02")
}

// normalizeTime resolves an optional HH:MM or HH:MM:SS time-of-day string,
// falling back to the current time.
func normalizeTime(markTime string) string {
	if markTime != "" {
		for _, layout := range []string{"15:04:05", "15:04"} {
			if parsed, err := time.Parse(layout, markTime); err == nil {
				return parsed.Format("15:04:05")
			}
		}
		log.Printf("attendance: failed to parse time %q, using now", markTime)
	}
	return time.Now().Format("15:04:05")
}

// Mark records a student's status for a subject and date, strictly once. The
// time of day is optional and defaults to now. When a record already exists
// for the key it is returned unchanged together with ErrAlreadyMarked; the
// existing status, time and confidence are preserved.
func (s *AttendanceService) Mark(studentID, subjectID uint, date, status, markTime string, confidence *float64) (*models.Attendance, error) {
	if status != models.AttendancePresent && status != models.AttendanceAbsent {
		return nil, fmt.Errorf("%w: got %q", ErrInvalidStatus, status)
	}
	normalized := NormalizeDate(date)

	lock := s.lockKey(studentID, subjectID, normalized)
	lock.Lock()
	defer lock.Unlock()

	existing, err := s.repo.GetByKey(studentID, subjectID, normalized)
	if err == nil {
		return existing, ErrAlreadyMarked
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}

	att := &models.Attendance{
		StudentID:  studentID,
		SubjectID:  subjectID,
		Date:       normalized,
		Time:       normalizeTime(markTime),
		Status:     status,
		Confidence: confidence,
	}
	if err := s.repo.Create(att); err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			winner, getErr := s.repo.GetByKey(studentID, subjectID, normalized)
			if getErr != nil {
				return nil, fmt.Errorf("attendance exists but could not be loaded: %w", getErr)
			}
			return winner, ErrAlreadyMarked
		}
		return nil, err
	}
	return att, nil
}

// Update explicitly transitions the status of an existing record. Unlike
// Mark, an update always overwrites.
func (s *AttendanceService) Update(id uint, status string) (*models.Attendance, error) {
	if status != models.AttendancePresent && status != models.AttendanceAbsent {
		return nil, fmt.Errorf("%w: got %q", ErrInvalidStatus, status)
	}

	att, err := s.repo.GetByID(id)
	if err != nil {
		return nil, err
	}

	att.Status = status
	att.Time = time.Now().Format("15:04:05")
	att.Confidence = nil
	if err := s.repo.Update(att); err != nil {
		return nil, err
	}
	return att, nil
}

// BulkEntry is one (student, status) decision in a full-class submission.
type BulkEntry struct {
	StudentID uint   `json:"student_id"`
	Status    string `json:"status"`
}

// BulkOutcome reports the per-student result of a bulk submission.
type BulkOutcome struct {
	StudentID uint   `json:"student_id"`
	Status    string `json:"status"`
	Updated   bool   `json:"updated"` // true when an existing record was overwritten
	Error     string `json:"error,omitempty"`
}

// SubmitBulk records a full-class sheet for a subject and date. Each entry is
// an explicit faculty decision, so existing records are overwritten via the
// update path rather than refused; missing ones are created. One bad entry
// never aborts the rest.
func (s *AttendanceService) SubmitBulk(subjectID uint, date, markTime string, entries []BulkEntry) ([]BulkOutcome, error) {
	normalized := NormalizeDate(date)
	timeOfDay := normalizeTime(markTime)

	outcomes := make([]BulkOutcome, 0, len(entries))
	for _, entry := range entries {
		outcome := BulkOutcome{StudentID: entry.StudentID, Status: entry.Status}
		if entry.Status != models.AttendancePresent && entry.Status != models.AttendanceAbsent {
			outcome.Error = ErrInvalidStatus.Error()
			outcomes = append(outcomes, outcome)
			continue
		}
		updated, err := s.upsert(entry.StudentID, subjectID, normalized, timeOfDay, entry.Status)
		if err != nil {
			log.Printf("attendance: bulk submit failed for student %d: %v", entry.StudentID, err)
			outcome.Error = err.Error()
		}
		outcome.Updated = updated
		outcomes = append(outcomes, outcome)
	}
	return outcomes, nil
}

func (s *AttendanceService) upsert(studentID, subjectID uint, date, timeOfDay, status string) (bool, error) {
	lock := s.lockKey(studentID, subjectID, date)
	lock.Lock()
	defer lock.Unlock()

	existing, err := s.repo.GetByKey(studentID, subjectID, date)
	if err == nil {
		existing.Status = status
		existing.Time = timeOfDay
		existing.Confidence = nil
		return true, s.repo.Update(existing)
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return false, err
	}

	att := &models.Attendance{
		StudentID: studentID,
		SubjectID: subjectID,
		Date:      date,
		Time:      timeOfDay,
		Status:    status,
	}
	if createErr := s.repo.Create(att); createErr != nil {
		if errors.Is(createErr, gorm.ErrDuplicatedKey) {
			winner, getErr := s.repo.GetByKey(studentID, subjectID, date)
			if getErr != nil {
				return false, getErr
			}
			winner.Status = status
			winner.Time = timeOfDay
			winner.Confidence = nil
			return true, s.repo.Update(winner)
		}
		return false, createErr
	}
	return false, nil
}

// MarkFaces marks every matched face from a recognition pass and mutates the
// results in place: a face whose mark lost to an existing record flips to
// already_marked, and a face whose write failed carries the failure in its
// Error field, so the API response reflects the ledger, not the race.
func (s *AttendanceService) MarkFaces(subjectID uint, date string, faces []FaceResult) error {
	normalized := NormalizeDate(date)

	for i := range faces {
		face := &faces[i]
		if face.StudentID == nil || face.Status == "unknown" {
			continue
		}
		if face.AlreadyMarked {
			continue
		}

		conf := face.Confidence
		_, err := s.Mark(*face.StudentID, subjectID, normalized, models.AttendancePresent, "", &conf)
		if errors.Is(err, ErrAlreadyMarked) {
			face.Status = "already_marked"
			face.AlreadyMarked = true
			continue
		}
		if err != nil {
			log.Printf("attendance: failed to mark student %d from face: %v", *face.StudentID, err)
			face.Error = "failed to record attendance, please retry"
		}
	}
	return nil
}

// ListDates returns the distinct dates with attendance for a subject.
func (s *AttendanceService) ListDates(subjectID uint) ([]string, error) {
	return s.repo.ListDatesBySubject(subjectID)
}

// ListForDate returns all records for a (subject, date) pair.
func (s *AttendanceService) ListForDate(subjectID uint, date string) ([]models.Attendance, error) {
	return s.repo.ListBySubjectAndDate(subjectID, NormalizeDate(date))
}

// ExportSheet returns the attendance grid for a subject.
func (s *AttendanceService) ExportSheet(subjectID uint) (*repository.ExportSheet, error) {
	return s.repo.ExportSheet(subjectID)
}

// DateStatus is one class date in a student's per-subject history.
type DateStatus struct {
	Date   string `json:"date"`
	Status string `json:"status"`
}

// SubjectSummary is a student's attendance history for one subject. A class
// date with no record for the student counts as Absent.
type SubjectSummary struct {
	SubjectID    uint         `json:"subject_id"`
	SubjectName  string       `json:"subject_name"`
	PresentCount int          `json:"present_count"`
	TotalClasses int          `json:"total_classes"`
	Dates        []DateStatus `json:"dates"` // newest first
}

// StudentSummary builds the per-subject attendance history of one student
// over the given subjects.
func (s *AttendanceService) StudentSummary(studentID uint, subjects []models.Subject) ([]SubjectSummary, error) {
	summaries := make([]SubjectSummary, 0, len(subjects))
	for _, subject := range subjects {
		classDates, err := s.repo.ListDatesBySubject(subject.ID)
		if err != nil {
			return nil, err
		}
		records, err := s.repo.ListByStudentAndSubject(studentID, subject.ID)
		if err != nil {
			return nil, err
		}

		statusByDate := make(map[string]string, len(records))
		for _, att := range records {
			statusByDate[att.Date] = att.Status
		}

		summary := SubjectSummary{
			SubjectID:    subject.ID,
			SubjectName:  subject.Name,
			TotalClasses: len(classDates),
			Dates:        make([]DateStatus, 0, len(classDates)),
		}
		// class dates come back oldest first; the history reads newest first
		for i := len(classDates) - 1; i >= 0; i-- {
			date := classDates[i]
			status, ok := statusByDate[date]
			if !ok || status != models.AttendancePresent {
				status = models.AttendanceAbsent
			} else {
				summary.PresentCount++
			}
			summary.Dates = append(summary.Dates, DateStatus{Date: date, Status: status})
		}
		summaries = append(summaries, summary)
	}
	return summaries, nil
}
