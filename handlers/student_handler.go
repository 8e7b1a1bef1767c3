package handlers

import (
	"errors"
	"io"
	"log"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/Swastik2002/Smart-Attendance-System/models"
	"github.com/Swastik2002/Smart-Attendance-System/repository"
	"github.com/Swastik2002/Smart-Attendance-System/services"
	"github.com/Swastik2002/Smart-Attendance-System/utils"
	"github.com/Swastik2002/Smart-Attendance-System/workers"
	"github.com/go-chi/chi/v5"
	"gorm.io/gorm"
)

type StudentHandler struct {
	Students      repository.StudentRepositoryInterface
	Enrollments   repository.EnrollmentRepositoryInterface
	Trainer       *services.TrainingService
	TrainingQueue *workers.TrainingProcessor
	MaxUploadSize int64
}

// CreateStudent registers a student from a multipart form (name, roll, email,
// photos). Uploaded photos become the enrollment set: they are normalized
// into the student's photo directory and a training job is queued so the
// gallery picks the new identity up. The student is enrolled in every
// existing subject.
func (sh *StudentHandler) CreateStudent(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(sh.MaxUploadSize); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "Invalid multipart form: " + err.Error()})
		return
	}

	name := strings.TrimSpace(r.FormValue("name"))
	roll := strings.TrimSpace(r.FormValue("roll"))
	if name == "" || roll == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "Missing required fields: name, roll"})
		return
	}

	student := &models.Student{
		Name:  name,
		Roll:  roll,
		Email: strings.TrimSpace(r.FormValue("email")),
	}
	if err := sh.Students.Create(student); err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			writeJSON(w, http.StatusConflict, map[string]string{"error": "A student with this roll number already exists"})
			return
		}
		log.Printf("Error creating student '%s': %v", name, err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "Failed to create student"})
		return
	}

	if err := sh.Enrollments.EnrollInAllSubjects(student.ID); err != nil {
		log.Printf("Error enrolling student %d in subjects: %v", student.ID, err)
	}

	saved := 0
	if r.MultipartForm != nil {
		for _, fileHeader := range r.MultipartForm.File["photos"] {
			if !utils.IsRasterImage(fileHeader.Filename) {
				log.Printf("Skipping non-image upload '%s' for student %d", fileHeader.Filename, student.ID)
				continue
			}
			if err := sh.savePhoto(student.ID, fileHeader); err != nil {
				log.Printf("Error saving photo '%s' for student %d: %v", fileHeader.Filename, student.ID, err)
				continue
			}
			saved++
		}
	}

	if saved > 0 && sh.TrainingQueue != nil {
		sh.TrainingQueue.QueueJob(workers.TrainJob{StudentID: student.ID})
	}

	writeJSON(w, http.StatusCreated, map[string]interface{}{
		"student":      student,
		"photos_saved": saved,
	})
}

func (sh *StudentHandler) savePhoto(studentID uint, fileHeader *multipart.FileHeader) error {
	src, err := fileHeader.Open()
	if err != nil {
		return err
	}
	defer src.Close()

	targetDir := sh.Trainer.StudentPhotosDir(studentID)
	if err := os.MkdirAll(targetDir, 0755); err != nil {
		return err
	}

	tmp, err := os.CreateTemp(targetDir, "upload-*"+filepath.Ext(fileHeader.Filename))
	if err != nil {
		return err
	}
	tmpPath := tmp.Name()
	defer os.Remove(tmpPath)

	if _, err := io.Copy(tmp, src); err != nil {
		tmp.Close()
		return err
	}
	tmp.Close()

	_, err = utils.SaveEnrollmentImage(tmpPath, targetDir)
	return err
}

// ListStudents returns all registered students, or the students enrolled in
// one subject when ?subject_id= is given.
func (sh *StudentHandler) ListStudents(w http.ResponseWriter, r *http.Request) {
	if idStr := r.URL.Query().Get("subject_id"); idStr != "" {
		subjectID, err := strconv.ParseUint(idStr, 10, 32)
		if err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "Invalid subject ID format"})
			return
		}
		sh.listBySubject(w, uint(subjectID))
		return
	}

	students, err := sh.Students.ListAll()
	if err != nil {
		log.Printf("Error listing students: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "Failed to retrieve students"})
		return
	}
	if students == nil {
		students = []models.Student{}
	}
	writeJSON(w, http.StatusOK, students)
}

// GetStudent returns a single student by ID.
func (sh *StudentHandler) GetStudent(w http.ResponseWriter, r *http.Request) {
	idStr := chi.URLParam(r, "student_id")
	id, err := strconv.ParseUint(idStr, 10, 32)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "Invalid student ID format"})
		return
	}

	student, err := sh.Students.GetByID(uint(id))
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			writeJSON(w, http.StatusNotFound, map[string]string{"error": "Student not found"})
		} else {
			log.Printf("Error getting student %d: %v", id, err)
			writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "Failed to retrieve student"})
		}
		return
	}
	writeJSON(w, http.StatusOK, student)
}

// ListStudentsBySubject returns the students enrolled in a subject.
func (sh *StudentHandler) ListStudentsBySubject(w http.ResponseWriter, r *http.Request) {
	idStr := chi.URLParam(r, "subject_id")
	subjectID, err := strconv.ParseUint(idStr, 10, 32)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "Invalid subject ID format"})
		return
	}
	sh.listBySubject(w, uint(subjectID))
}

func (sh *StudentHandler) listBySubject(w http.ResponseWriter, subjectID uint) {
	students, err := sh.Students.ListBySubject(subjectID)
	if err != nil {
		log.Printf("Error listing students for subject %d: %v", subjectID, err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "Failed to retrieve students"})
		return
	}
	if students == nil {
		students = []models.Student{}
	}
	writeJSON(w, http.StatusOK, students)
}
