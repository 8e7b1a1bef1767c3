package repository

import (
	"errors"
	"fmt"
	"time"

	"github.com/Swastik2002/Smart-Attendance-System/models"
	"gorm.io/gorm"
)

// AttendanceRepository handles database operations for Attendance entities.
// The composite unique index on (student_id, subject_id, date) is the
// storage-layer guarantee that at most one insert per key ever succeeds;
// a lost race surfaces from Create as gorm.ErrDuplicatedKey.
type AttendanceRepository struct {
	DB *gorm.DB
}

var _ AttendanceRepositoryInterface = (*AttendanceRepository)(nil)

func NewAttendanceRepository(db *gorm.DB) *AttendanceRepository {
	return &AttendanceRepository{DB: db}
}

// Create inserts a new attendance record
func (r *AttendanceRepository) Create(att *models.Attendance) error {
	now := time.Now().Unix()
	if att.CreatedAt == 0 {
		att.CreatedAt = now
	}
	att.UpdatedAt = now

	err := r.DB.Create(att).Error
	if err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return err
		}
		return fmt.Errorf("failed to create attendance for student %d, subject %d, date %s: %w",
			att.StudentID, att.SubjectID, att.Date, err)
	}
	return nil
}

// GetByID retrieves an attendance record by its ID
func (r *AttendanceRepository) GetByID(id uint) (*models.Attendance, error) {
	var att models.Attendance
	err := r.DB.First(&att, id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to get attendance by ID %d: %w", id, err)
	}
	return &att, nil
}

// GetByKey retrieves the record for a (student, subject, date) key, if any
func (r *AttendanceRepository) GetByKey(studentID, subjectID uint, date string) (*models.Attendance, error) {
	var att models.Attendance
	err := r.DB.Where("student_id = ? AND subject_id = ? AND date = ?", studentID, subjectID, date).
		First(&att).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to query attendance for student %d, subject %d, date %s: %w",
			studentID, subjectID, date, err)
	}
	return &att, nil
}

// Update overwrites status, time and confidence of an existing record
func (r *AttendanceRepository) Update(att *models.Attendance) error {
	att.UpdatedAt = time.Now().Unix()
	result := r.DB.Model(&models.Attendance{ID: att.ID}).Updates(map[string]interface{}{
		"status":     att.Status,
		"time":       att.Time,
		"confidence": att.Confidence,
		"updated_at": att.UpdatedAt,
	})
	if result.Error != nil {
		return fmt.Errorf("failed to update attendance ID %d: %w", att.ID, result.Error)
	}
	if result.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

// ListDatesBySubject returns the distinct dates with attendance for a subject
func (r *AttendanceRepository) ListDatesBySubject(subjectID uint) ([]string, error) {
	var dates []string
	err := r.DB.Model(&models.Attendance{}).
		Where("subject_id = ?", subjectID).
		Distinct("date").
		Order("date asc").
		Pluck("date", &dates).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list attendance dates for subject %d: %w", subjectID, err)
	}
	return dates, nil
}

// ListByStudentAndSubject returns one student's records for a subject
func (r *AttendanceRepository) ListByStudentAndSubject(studentID, subjectID uint) ([]models.Attendance, error) {
	var records []models.Attendance
	err := r.DB.Where("student_id = ? AND subject_id = ?", studentID, subjectID).
		Order("date asc").
		Find(&records).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list attendance for student %d in subject %d: %w", studentID, subjectID, err)
	}
	return records, nil
}

// ListBySubjectAndDate returns all records for a (subject, date) pair
func (r *AttendanceRepository) ListBySubjectAndDate(subjectID uint, date string) ([]models.Attendance, error) {
	var records []models.Attendance
	err := r.DB.Where("subject_id = ? AND date = ?", subjectID, date).
		Preload("Student").
		Order("student_id asc").
		Find(&records).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list attendance for subject %d on %s: %w", subjectID, date, err)
	}
	return records, nil
}
