package handlers

import (
	"encoding/base64"
	"errors"
	"io"
	"log"
	"net/http"
	"strconv"

	"github.com/Swastik2002/Smart-Attendance-System/gallery"
	"github.com/Swastik2002/Smart-Attendance-System/repository"
	"github.com/Swastik2002/Smart-Attendance-System/services"
	"github.com/Swastik2002/Smart-Attendance-System/workers"
	"github.com/go-chi/chi/v5"
	"gorm.io/gorm"
)

type FaceHandler struct {
	Students      repository.StudentRepositoryInterface
	GalleryRepo   repository.GalleryRepositoryInterface
	Gallery       *gallery.Gallery
	TrainingQueue *workers.TrainingProcessor
}

// TrainStudent queues a gallery training job for one student. Training runs
// off the request path; a duplicate request while a job is pending is a no-op.
func (fh *FaceHandler) TrainStudent(w http.ResponseWriter, r *http.Request) {
	idStr := chi.URLParam(r, "student_id")
	id, err := strconv.ParseUint(idStr, 10, 32)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "Invalid student ID format"})
		return
	}

	if _, err := fh.Students.GetByID(uint(id)); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			writeJSON(w, http.StatusNotFound, map[string]string{"error": "Student not found"})
			return
		}
		log.Printf("Error loading student %d: %v", id, err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "Failed to verify student"})
		return
	}

	queued := fh.TrainingQueue.QueueJob(workers.TrainJob{StudentID: uint(id)})
	writeJSON(w, http.StatusAccepted, map[string]interface{}{
		"student_id": id,
		"queued":     queued,
	})
}

// TrainAll queues training jobs for every registered student.
func (fh *FaceHandler) TrainAll(w http.ResponseWriter, r *http.Request) {
	students, err := fh.Students.ListAll()
	if err != nil {
		log.Printf("Error listing students for training: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "Failed to retrieve students"})
		return
	}

	queued := 0
	for _, student := range students {
		if fh.TrainingQueue.QueueJob(workers.TrainJob{StudentID: student.ID}) {
			queued++
		}
	}
	writeJSON(w, http.StatusAccepted, map[string]interface{}{
		"students": len(students),
		"queued":   queued,
	})
}

// GalleryStatus reports the live index size and the stored embedding count
// per student.
func (fh *FaceHandler) GalleryStatus(w http.ResponseWriter, r *http.Request) {
	counts, err := fh.GalleryRepo.CountByStudent()
	if err != nil {
		log.Printf("Error counting gallery embeddings: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "Failed to retrieve gallery status"})
		return
	}

	perStudent := make(map[string]int64, len(counts))
	for studentID, n := range counts {
		perStudent[strconv.FormatUint(uint64(studentID), 10)] = n
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"embeddings":  fh.Gallery.Size(),
		"identities":  fh.Gallery.Identities(),
		"per_student": perStudent,
	})
}

// Recognize runs the pipeline over an uploaded image without touching the
// ledger: no subject, no date, no marking. Meant for previewing gallery
// quality after training.
func (fh *FaceHandler) Recognize(recognition *services.RecognitionService, maxUploadSize int64) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseMultipartForm(maxUploadSize); err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "Invalid multipart form: " + err.Error()})
			return
		}

		file, _, err := r.FormFile("image")
		if err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "Missing image file"})
			return
		}
		defer file.Close()

		buf, err := io.ReadAll(io.LimitReader(file, maxUploadSize))
		if err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "Failed to read uploaded image"})
			return
		}

		result, err := recognition.RecognizeBytes(r.Context(), buf, 0, "")
		if err != nil {
			log.Printf("Error running recognition preview: %v", err)
			writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "Face recognition failed"})
			return
		}

		response := map[string]interface{}{
			"success": result.Success,
			"message": result.Message,
			"results": result.Faces,
		}
		if len(result.AnnotatedJPEG) > 0 {
			response["annotated_base64"] = base64.StdEncoding.EncodeToString(result.AnnotatedJPEG)
		}
		writeJSON(w, http.StatusOK, response)
	}
}
