package repository

import (
	"database/sql"
	"fmt"
	"math"

	sq "github.com/Masterminds/squirrel"
)

var psql = sq.StatementBuilder.PlaceholderFormat(sq.Question)

// ExportRow is one student line in an attendance sheet.
type ExportRow struct {
	Roll       string   `json:"roll"`
	Name       string   `json:"name"`
	Marks      []string `json:"marks"` // "P"/"A" per date, aligned with ExportSheet.Dates
	Percentage float64  `json:"percentage"`
}

// ExportSheet is the full attendance grid for a subject: one column per
// recorded date, one row per enrolled student.
type ExportSheet struct {
	Dates []string    `json:"dates"`
	Rows  []ExportRow `json:"rows"`
}

// ExportSheet builds the attendance grid for a subject. A student is marked
// "P" for a date only when a Present record exists; missing records and
// Absent records both render as "A". Rows cover every enrolled student, in
// roll order, even those with no attendance at all.
func (r *AttendanceRepository) ExportSheet(subjectID uint) (*ExportSheet, error) {
	sqlDB, err := r.DB.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to access underlying database: %w", err)
	}

	dates, err := r.ListDatesBySubject(subjectID)
	if err != nil {
		return nil, err
	}
	dateIndex := make(map[string]int, len(dates))
	for i, d := range dates {
		dateIndex[d] = i
	}

	students, err := queryEnrolledStudents(sqlDB, subjectID)
	if err != nil {
		return nil, err
	}

	// present[studentID] -> set of dates with a Present record
	present, err := queryPresentDates(sqlDB, subjectID)
	if err != nil {
		return nil, err
	}

	sheet := &ExportSheet{Dates: dates, Rows: make([]ExportRow, 0, len(students))}
	for _, st := range students {
		marks := make([]string, len(dates))
		presentCount := 0
		for i := range marks {
			marks[i] = "A"
		}
		for _, d := range present[st.id] {
			if i, ok := dateIndex[d]; ok {
				marks[i] = "P"
				presentCount++
			}
		}
		pct := 0.0
		if len(dates) > 0 {
			pct = math.Round(float64(presentCount)/float64(len(dates))*100*100) / 100
		}
		sheet.Rows = append(sheet.Rows, ExportRow{
			Roll:       st.roll,
			Name:       st.name,
			Marks:      marks,
			Percentage: pct,
		})
	}
	return sheet, nil
}

type enrolledStudent struct {
	id   uint
	roll string
	name string
}

func queryEnrolledStudents(db *sql.DB, subjectID uint) ([]enrolledStudent, error) {
	queryBuilder := psql.Select("s.id", "s.roll", "s.name").
		From("students s").
		Join("enrollments e ON e.student_id = s.id").
		Where(sq.Eq{"e.subject_id": subjectID}).
		OrderBy("s.roll ASC")
	sqlStr, args, err := queryBuilder.ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build SQL for enrolled students: %w", err)
	}
	rows, err := db.Query(sqlStr, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query enrolled students for subject %d: %w", subjectID, err)
	}
	defer rows.Close()

	var students []enrolledStudent
	for rows.Next() {
		var st enrolledStudent
		if err := rows.Scan(&st.id, &st.roll, &st.name); err != nil {
			return nil, fmt.Errorf("failed to scan enrolled student row: %w", err)
		}
		students = append(students, st)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating enrolled student rows: %w", err)
	}
	return students, nil
}

func queryPresentDates(db *sql.DB, subjectID uint) (map[uint][]string, error) {
	queryBuilder := psql.Select("student_id", "date").
		From("attendance").
		Where(sq.Eq{"subject_id": subjectID, "status": "Present"})
	sqlStr, args, err := queryBuilder.ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build SQL for present dates: %w", err)
	}
	rows, err := db.Query(sqlStr, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query present dates for subject %d: %w", subjectID, err)
	}
	defer rows.Close()

	present := make(map[uint][]string)
	for rows.Next() {
		var studentID uint
		var date string
		if err := rows.Scan(&studentID, &date); err != nil {
			return nil, fmt.Errorf("failed to scan present date row: %w", err)
		}
		present[studentID] = append(present[studentID], date)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating present date rows: %w", err)
	}
	return present, nil
}
