package models

// Enrollment links a student to a subject.
// It corresponds to the 'enrollments' table.
type Enrollment struct {
	ID        uint  `gorm:"primaryKey;autoIncrement" json:"id"`
	StudentID uint  `gorm:"not null;uniqueIndex:idx_enrollment_key" json:"student_id"`
	SubjectID uint  `gorm:"not null;uniqueIndex:idx_enrollment_key" json:"subject_id"`
	CreatedAt int64 `gorm:"not null" json:"created_at"`

	Student *Student `gorm:"foreignKey:StudentID" json:"student,omitempty"`
	Subject *Subject `gorm:"foreignKey:SubjectID" json:"subject,omitempty"`
}

// TableName explicitly sets the table name for GORM.
func (Enrollment) TableName() string {
	return "enrollments"
}
