package handlers

import (
	"bytes"
	"encoding/base64"
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"strconv"

	"github.com/Swastik2002/Smart-Attendance-System/media"
	"github.com/Swastik2002/Smart-Attendance-System/models"
	"github.com/Swastik2002/Smart-Attendance-System/repository"
	"github.com/Swastik2002/Smart-Attendance-System/services"
	"github.com/go-chi/chi/v5"
	"gorm.io/gorm"
)

type AttendanceHandler struct {
	Attendance    *services.AttendanceService
	Recognition   *services.RecognitionService
	Subjects      repository.SubjectRepositoryInterface
	Enrollments   repository.EnrollmentRepositoryInterface
	Store         media.Store
	MaxUploadSize int64
}

// Mark records a single student's status for a subject and date. Status
// defaults to Present and time to now. Marking is strict: if a record
// already exists for the key the response carries the existing record and
// already_marked is true.
func (ah *AttendanceHandler) Mark(w http.ResponseWriter, r *http.Request) {
	var req struct {
		StudentID  uint     `json:"student_id"`
		SubjectID  uint     `json:"subject_id"`
		Date       string   `json:"date"`
		Time       string   `json:"time"`
		Status     string   `json:"status"`
		Confidence *float64 `json:"confidence,omitempty"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "Invalid request body: " + err.Error()})
		return
	}
	if req.StudentID == 0 || req.SubjectID == 0 {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "Missing required fields: student_id, subject_id"})
		return
	}
	if req.Status == "" {
		req.Status = models.AttendancePresent
	}

	att, err := ah.Attendance.Mark(req.StudentID, req.SubjectID, req.Date, req.Status, req.Time, req.Confidence)
	if err != nil {
		if errors.Is(err, services.ErrAlreadyMarked) {
			writeJSON(w, http.StatusOK, map[string]interface{}{
				"attendance":     att,
				"already_marked": true,
			})
			return
		}
		if errors.Is(err, services.ErrInvalidStatus) {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
			return
		}
		log.Printf("Error marking attendance for student %d: %v", req.StudentID, err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "Failed to mark attendance"})
		return
	}

	writeJSON(w, http.StatusCreated, map[string]interface{}{
		"attendance":     att,
		"already_marked": false,
	})
}

// MarkFromFace runs the recognition pipeline over an uploaded classroom image
// and marks every matched student Present. The response carries per-face
// results plus the annotated image, inline as base64 and as a stored preview.
func (ah *AttendanceHandler) MarkFromFace(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(ah.MaxUploadSize); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "Invalid multipart form: " + err.Error()})
		return
	}

	subjectID, err := strconv.ParseUint(r.FormValue("subject_id"), 10, 32)
	if err != nil || subjectID == 0 {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "Missing or invalid subject_id"})
		return
	}
	if _, err := ah.Subjects.GetByID(uint(subjectID)); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			writeJSON(w, http.StatusNotFound, map[string]string{"error": "Subject not found"})
			return
		}
		log.Printf("Error loading subject %d: %v", subjectID, err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "Failed to verify subject"})
		return
	}

	date := services.NormalizeDate(r.FormValue("date"))

	file, _, err := r.FormFile("image")
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "Missing image file"})
		return
	}
	defer file.Close()

	imageData, err := io.ReadAll(io.LimitReader(file, ah.MaxUploadSize))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "Failed to read uploaded image"})
		return
	}

	result, err := ah.Recognition.RecognizeBytes(r.Context(), imageData, uint(subjectID), date)
	if err != nil {
		if errors.Is(err, media.ErrInvalidImage) {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "Uploaded file is not a decodable image"})
			return
		}
		log.Printf("Error recognizing faces for subject %d: %v", subjectID, err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "Face recognition failed"})
		return
	}

	if !result.Success {
		failure := map[string]interface{}{
			"success": false,
			"message": result.Message,
			"results": result.Faces,
		}
		if len(result.AnnotatedJPEG) > 0 {
			failure["annotated_base64"] = base64.StdEncoding.EncodeToString(result.AnnotatedJPEG)
		}
		writeJSON(w, http.StatusOK, failure)
		return
	}

	if err := ah.Attendance.MarkFaces(uint(subjectID), date, result.Faces); err != nil {
		log.Printf("Error marking recognized faces for subject %d: %v", subjectID, err)
	}

	response := map[string]interface{}{
		"success":          true,
		"results":          result.Faces,
		"annotated_base64": base64.StdEncoding.EncodeToString(result.AnnotatedJPEG),
	}
	if previewPath, err := ah.Store.Save(media.AssetTypePreview, "", "", bytes.NewReader(result.AnnotatedJPEG)); err != nil {
		log.Printf("Error saving annotated preview: %v", err)
	} else {
		response["preview_path"] = previewPath
	}

	writeJSON(w, http.StatusOK, response)
}

// Submit records a full-class attendance sheet for a subject and date.
// Entries overwrite existing records; this is the faculty's explicit
// decision path, not the strict mark.
func (ah *AttendanceHandler) Submit(w http.ResponseWriter, r *http.Request) {
	var req struct {
		SubjectID uint                 `json:"subject_id"`
		Date      string               `json:"date"`
		Time      string               `json:"time"`
		Entries   []services.BulkEntry `json:"entries"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "Invalid request body: " + err.Error()})
		return
	}
	if req.SubjectID == 0 || len(req.Entries) == 0 {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "Missing required fields: subject_id, entries"})
		return
	}

	outcomes, err := ah.Attendance.SubmitBulk(req.SubjectID, req.Date, req.Time, req.Entries)
	if err != nil {
		log.Printf("Error submitting attendance for subject %d: %v", req.SubjectID, err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "Failed to submit attendance"})
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{"results": outcomes})
}

// Update explicitly transitions the status of one attendance record.
func (ah *AttendanceHandler) Update(w http.ResponseWriter, r *http.Request) {
	idStr := chi.URLParam(r, "attendance_id")
	id, err := strconv.ParseUint(idStr, 10, 32)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "Invalid attendance ID format"})
		return
	}

	var req struct {
		Status string `json:"status"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "Invalid request body: " + err.Error()})
		return
	}

	att, err := ah.Attendance.Update(uint(id), req.Status)
	if err != nil {
		if errors.Is(err, services.ErrInvalidStatus) {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
			return
		}
		if errors.Is(err, gorm.ErrRecordNotFound) {
			writeJSON(w, http.StatusNotFound, map[string]string{"error": "Attendance record not found"})
			return
		}
		log.Printf("Error updating attendance %d: %v", id, err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "Failed to update attendance"})
		return
	}

	writeJSON(w, http.StatusOK, att)
}

// ListDates returns the distinct dates with recorded attendance for a subject.
func (ah *AttendanceHandler) ListDates(w http.ResponseWriter, r *http.Request) {
	subjectID, ok := ah.subjectIDParam(w, r)
	if !ok {
		return
	}

	dates, err := ah.Attendance.ListDates(subjectID)
	if err != nil {
		log.Printf("Error listing attendance dates for subject %d: %v", subjectID, err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "Failed to retrieve dates"})
		return
	}
	if dates == nil {
		dates = []string{}
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"dates": dates})
}

// ListForDate returns all attendance records for a subject on one date.
func (ah *AttendanceHandler) ListForDate(w http.ResponseWriter, r *http.Request) {
	subjectID, ok := ah.subjectIDParam(w, r)
	if !ok {
		return
	}

	records, err := ah.Attendance.ListForDate(subjectID, r.URL.Query().Get("date"))
	if err != nil {
		log.Printf("Error listing attendance for subject %d: %v", subjectID, err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "Failed to retrieve attendance"})
		return
	}
	if records == nil {
		records = []models.Attendance{}
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"records": records})
}

// ExportCSV streams the full attendance grid for a subject as a CSV download:
// one column per recorded date, one row per enrolled student, with a
// percentage column at the end.
func (ah *AttendanceHandler) ExportCSV(w http.ResponseWriter, r *http.Request) {
	subjectID, ok := ah.subjectIDParam(w, r)
	if !ok {
		return
	}

	subject, err := ah.Subjects.GetByID(subjectID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			writeJSON(w, http.StatusNotFound, map[string]string{"error": "Subject not found"})
			return
		}
		log.Printf("Error loading subject %d: %v", subjectID, err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "Failed to verify subject"})
		return
	}

	sheet, err := ah.Attendance.ExportSheet(subjectID)
	if err != nil {
		log.Printf("Error building export sheet for subject %d: %v", subjectID, err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "Failed to build export"})
		return
	}

	var buf bytes.Buffer
	cw := csv.NewWriter(&buf)
	header := append([]string{"Roll", "Name"}, sheet.Dates...)
	header = append(header, "Percentage")
	if err := cw.Write(header); err != nil {
		log.Printf("Error writing CSV header for subject %d: %v", subjectID, err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "Failed to build export"})
		return
	}
	for _, row := range sheet.Rows {
		record := append([]string{row.Roll, row.Name}, row.Marks...)
		record = append(record, strconv.FormatFloat(row.Percentage, 'f', 2, 64))
		if err := cw.Write(record); err != nil {
			log.Printf("Error writing CSV row for subject %d: %v", subjectID, err)
			writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "Failed to build export"})
			return
		}
	}
	cw.Flush()
	if err := cw.Error(); err != nil {
		log.Printf("Error flushing CSV for subject %d: %v", subjectID, err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "Failed to build export"})
		return
	}

	filename := fmt.Sprintf("attendance_%s.csv", subject.Code)
	// keep a server-side copy of every generated export
	if _, err := ah.Store.Save(media.AssetTypeExport, "", filename, bytes.NewReader(buf.Bytes())); err != nil {
		log.Printf("Error storing export copy for subject %d: %v", subjectID, err)
	}

	w.Header().Set("Content-Type", "text/csv")
	w.Header().Set("Content-Disposition", "attachment; filename=\""+filename+"\"")
	if _, err := w.Write(buf.Bytes()); err != nil {
		log.Printf("Error sending CSV for subject %d: %v", subjectID, err)
	}
}

// StudentSummary returns a student's per-subject attendance history across
// every subject they are enrolled in.
func (ah *AttendanceHandler) StudentSummary(w http.ResponseWriter, r *http.Request) {
	idStr := chi.URLParam(r, "student_id")
	if idStr == "" {
		idStr = r.URL.Query().Get("student_id")
	}
	studentID, err := strconv.ParseUint(idStr, 10, 32)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "Invalid student ID format"})
		return
	}

	subjectIDs, err := ah.Enrollments.ListSubjectIDsByStudent(uint(studentID))
	if err != nil {
		log.Printf("Error listing enrollments for student %d: %v", studentID, err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "Failed to retrieve enrollments"})
		return
	}

	subjects := make([]models.Subject, 0, len(subjectIDs))
	for _, sid := range subjectIDs {
		subject, err := ah.Subjects.GetByID(sid)
		if err != nil {
			log.Printf("Error loading subject %d: %v", sid, err)
			continue
		}
		subjects = append(subjects, *subject)
	}

	summaries, err := ah.Attendance.StudentSummary(uint(studentID), subjects)
	if err != nil {
		log.Printf("Error building attendance summary for student %d: %v", studentID, err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "Failed to build attendance summary"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"data": summaries})
}

// subjectIDParam accepts the subject either as a route parameter or as a
// ?subject_id= query parameter.
func (ah *AttendanceHandler) subjectIDParam(w http.ResponseWriter, r *http.Request) (uint, bool) {
	idStr := chi.URLParam(r, "subject_id")
	if idStr == "" {
		idStr = r.URL.Query().Get("subject_id")
	}
	id, err := strconv.ParseUint(idStr, 10, 32)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "Invalid subject ID format"})
		return 0, false
	}
	return uint(id), true
}
