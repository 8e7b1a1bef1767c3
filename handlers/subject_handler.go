package handlers

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strings"

	"github.com/Swastik2002/Smart-Attendance-System/models"
	"github.com/Swastik2002/Smart-Attendance-System/repository"
	"gorm.io/gorm"
)

type SubjectHandler struct {
	Subjects repository.SubjectRepositoryInterface
}

func (sh *SubjectHandler) CreateSubject(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Name string `json:"name"`
		Code string `json:"code"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "Invalid request body: " + err.Error()})
		return
	}

	if strings.TrimSpace(req.Name) == "" || strings.TrimSpace(req.Code) == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "Missing required fields: name, code"})
		return
	}

	subject := &models.Subject{
		Name: strings.TrimSpace(req.Name),
		Code: strings.TrimSpace(req.Code),
	}
	if err := sh.Subjects.Create(subject); err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			writeJSON(w, http.StatusConflict, map[string]string{"error": "A subject with this code already exists"})
			return
		}
		log.Printf("Error creating subject '%s': %v", req.Name, err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "Failed to create subject"})
		return
	}

	writeJSON(w, http.StatusCreated, subject)
}

func (sh *SubjectHandler) ListSubjects(w http.ResponseWriter, r *http.Request) {
	subjects, err := sh.Subjects.ListAll()
	if err != nil {
		log.Printf("Error listing subjects: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "Failed to retrieve subjects"})
		return
	}
	if subjects == nil {
		subjects = []models.Subject{}
	}
	writeJSON(w, http.StatusOK, subjects)
}
