package models

// Subject represents a taught subject using GORM.
// It corresponds to the 'subjects' table.
type Subject struct {
	ID        uint   `gorm:"primaryKey;autoIncrement" json:"id"`
	Name      string `gorm:"not null" json:"name"`
	Code      string `gorm:"not null;uniqueIndex" json:"code"`
	CreatedAt int64  `gorm:"not null" json:"created_at"`
	UpdatedAt int64  `gorm:"not null" json:"updated_at"`

	Enrollments []Enrollment `gorm:"foreignKey:SubjectID;constraint:OnDelete:CASCADE" json:"enrollments,omitempty"`
}

// TableName explicitly sets the table name for GORM.
func (Subject) TableName() string {
	return "subjects"
}
