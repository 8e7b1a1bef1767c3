package models

// Attendance status values stored in the 'status' column.
const (
	AttendancePresent = "Present"
	AttendanceAbsent  = "Absent"
)

// Attendance records a single Present/Absent decision for a student on a
// subject and date. The composite unique index is the storage-layer backstop
// for the once-per-(student, subject, date) invariant; the ledger also guards
// the check-then-insert window with a key-scoped lock.
type Attendance struct {
	ID         uint     `gorm:"primaryKey;autoIncrement" json:"id"`
	StudentID  uint     `gorm:"not null;uniqueIndex:idx_attendance_key" json:"student_id"`
	SubjectID  uint     `gorm:"not null;uniqueIndex:idx_attendance_key" json:"subject_id"`
	Date       string   `gorm:"not null;uniqueIndex:idx_attendance_key" json:"date"` // YYYY-MM-DD
	Time       string   `gorm:"not null" json:"time"`                                // HH:MM:SS
	Status     string   `gorm:"not null" json:"status"`
	Confidence *float64 `json:"confidence,omitempty"`
	CreatedAt  int64    `gorm:"not null" json:"created_at"` // Stored as INTEGER in SQLite, Unix timestamp
	UpdatedAt  int64    `gorm:"not null" json:"updated_at"` // Stored as INTEGER in SQLite, Unix timestamp

	Student *Student `gorm:"foreignKey:StudentID" json:"student,omitempty"`
	Subject *Subject `gorm:"foreignKey:SubjectID" json:"subject,omitempty"`
}

// TableName explicitly sets the table name for GORM.
func (Attendance) TableName() string {
	return "attendance"
}
