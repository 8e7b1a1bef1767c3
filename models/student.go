package models

// Student represents an enrolled student using GORM.
// It corresponds to the 'students' table.
type Student struct {
	ID        uint   `gorm:"primaryKey;autoIncrement" json:"id"`
	Name      string `gorm:"not null" json:"name"`
	Roll      string `gorm:"not null;uniqueIndex" json:"roll"`
	Email     string `gorm:"index" json:"email"`
	CreatedAt int64  `gorm:"not null" json:"created_at"` // Stored as INTEGER in SQLite, Unix timestamp
	UpdatedAt int64  `gorm:"not null" json:"updated_at"` // Stored as INTEGER in SQLite, Unix timestamp

	// Relationships
	Enrollments []Enrollment       `gorm:"foreignKey:StudentID;constraint:OnDelete:CASCADE" json:"enrollments,omitempty"`
	Embeddings  []GalleryEmbedding `gorm:"foreignKey:StudentID;constraint:OnDelete:CASCADE" json:"embeddings,omitempty"`
}

// TableName explicitly sets the table name for GORM.
func (Student) TableName() string {
	return "students"
}
