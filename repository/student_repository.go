package repository

import (
	"errors"
	"fmt"
	"time"

	"github.com/Swastik2002/Smart-Attendance-System/models"
	"gorm.io/gorm"
)

// StudentRepository handles database operations for Student entities
type StudentRepository struct {
	DB *gorm.DB
}

var _ StudentRepositoryInterface = (*StudentRepository)(nil)

func NewStudentRepository(db *gorm.DB) *StudentRepository {
	return &StudentRepository{DB: db}
}

// Create creates a new student record in the database
func (r *StudentRepository) Create(student *models.Student) error {
	now := time.Now().Unix()
	if student.CreatedAt == 0 {
		student.CreatedAt = now
	}
	student.UpdatedAt = now

	if err := r.DB.Create(student).Error; err != nil {
		return fmt.Errorf("failed to create student '%s': %w", student.Roll, err)
	}
	return nil
}

// GetByID retrieves a student by its ID
func (r *StudentRepository) GetByID(id uint) (*models.Student, error) {
	var student models.Student
	err := r.DB.First(&student, id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to get student by ID %d: %w", id, err)
	}
	return &student, nil
}

// ListAll retrieves all students
func (r *StudentRepository) ListAll() ([]models.Student, error) {
	var students []models.Student
	if err := r.DB.Order("roll asc").Find(&students).Error; err != nil {
		return nil, fmt.Errorf("failed to list students: %w", err)
	}
	return students, nil
}

// ListBySubject retrieves the students enrolled in a subject
func (r *StudentRepository) ListBySubject(subjectID uint) ([]models.Student, error) {
	var students []models.Student
	err := r.DB.Joins("JOIN enrollments ON enrollments.student_id = students.id").
		Where("enrollments.subject_id = ?", subjectID).
		Order("students.roll asc").
		Find(&students).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list students for subject %d: %w", subjectID, err)
	}
	return students, nil
}
