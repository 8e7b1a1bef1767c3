package repository

import (
	"errors"
	"fmt"
	"time"

	"github.com/Swastik2002/Smart-Attendance-System/models"
	"gorm.io/gorm"
)

// SubjectRepository handles database operations for Subject entities
type SubjectRepository struct {
	DB *gorm.DB
}

var _ SubjectRepositoryInterface = (*SubjectRepository)(nil)

func NewSubjectRepository(db *gorm.DB) *SubjectRepository {
	return &SubjectRepository{DB: db}
}

// Create creates a new subject record in the database
func (r *SubjectRepository) Create(subject *models.Subject) error {
	now := time.Now().Unix()
	if subject.CreatedAt == 0 {
		subject.CreatedAt = now
	}
	subject.UpdatedAt = now

	if err := r.DB.Create(subject).Error; err != nil {
		return fmt.Errorf("failed to create subject '%s': %w", subject.Code, err)
	}
	return nil
}

// GetByID retrieves a subject by its ID
func (r *SubjectRepository) GetByID(id uint) (*models.Subject, error) {
	var subject models.Subject
	err := r.DB.First(&subject, id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to get subject by ID %d: %w", id, err)
	}
	return &subject, nil
}

// ListAll retrieves all subjects
func (r *SubjectRepository) ListAll() ([]models.Subject, error) {
	var subjects []models.Subject
	if err := r.DB.Order("code asc").Find(&subjects).Error; err != nil {
		return nil, fmt.Errorf("failed to list subjects: %w", err)
	}
	return subjects, nil
}

// EnrollmentRepository handles database operations for Enrollment entities
type EnrollmentRepository struct {
	DB *gorm.DB
}

var _ EnrollmentRepositoryInterface = (*EnrollmentRepository)(nil)

func NewEnrollmentRepository(db *gorm.DB) *EnrollmentRepository {
	return &EnrollmentRepository{DB: db}
}

// EnrollInAllSubjects enrolls a student in every subject, skipping
// enrollments that already exist.
func (r *EnrollmentRepository) EnrollInAllSubjects(studentID uint) error {
	var subjects []models.Subject
	if err := r.DB.Find(&subjects).Error; err != nil {
		return fmt.Errorf("failed to list subjects for enrollment: %w", err)
	}

	now := time.Now().Unix()
	for _, subject := range subjects {
		enrollment := models.Enrollment{
			StudentID: studentID,
			SubjectID: subject.ID,
			CreatedAt: now,
		}
		err := r.DB.Create(&enrollment).Error
		if err != nil && !errors.Is(err, gorm.ErrDuplicatedKey) {
			return fmt.Errorf("failed to enroll student %d in subject %d: %w", studentID, subject.ID, err)
		}
	}
	return nil
}

// ListSubjectIDsByStudent lists the subject IDs a student is enrolled in
func (r *EnrollmentRepository) ListSubjectIDsByStudent(studentID uint) ([]uint, error) {
	var ids []uint
	err := r.DB.Model(&models.Enrollment{}).
		Where("student_id = ?", studentID).
		Pluck("subject_id", &ids).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list enrollments for student %d: %w", studentID, err)
	}
	return ids, nil
}
