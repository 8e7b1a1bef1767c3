package repository

import (
	"github.com/Swastik2002/Smart-Attendance-System/models"
)

// StudentRepositoryInterface defines the methods for student data operations
type StudentRepositoryInterface interface {
	Create(student *models.Student) error
	GetByID(id uint) (*models.Student, error)
	ListAll() ([]models.Student, error)
	ListBySubject(subjectID uint) ([]models.Student, error)
}

// SubjectRepositoryInterface defines the methods for subject data operations
type SubjectRepositoryInterface interface {
	Create(subject *models.Subject) error
	GetByID(id uint) (*models.Subject, error)
	ListAll() ([]models.Subject, error)
}

// EnrollmentRepositoryInterface defines the methods for enrollment data operations
type EnrollmentRepositoryInterface interface {
	EnrollInAllSubjects(studentID uint) error
	ListSubjectIDsByStudent(studentID uint) ([]uint, error)
}

// AttendanceRepositoryInterface defines the methods the attendance ledger
// persists through. Create must surface gorm.ErrDuplicatedKey when the
// composite (student, subject, date) unique index rejects the insert.
type AttendanceRepositoryInterface interface {
	Create(att *models.Attendance) error
	GetByID(id uint) (*models.Attendance, error)
	GetByKey(studentID, subjectID uint, date string) (*models.Attendance, error)
	Update(att *models.Attendance) error
	ListDatesBySubject(subjectID uint) ([]string, error)
	ListBySubjectAndDate(subjectID uint, date string) ([]models.Attendance, error)
	ListByStudentAndSubject(studentID, subjectID uint) ([]models.Attendance, error)
	ExportSheet(subjectID uint) (*ExportSheet, error)
}

// GalleryRepositoryInterface defines persistence for gallery embeddings
type GalleryRepositoryInterface interface {
	ReplaceForStudent(studentID uint, embeddings []models.GalleryEmbedding) error
	ListAll() ([]models.GalleryEmbedding, error)
	CountByStudent() (map[uint]int64, error)
}
