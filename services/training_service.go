package services

import (
	"bytes"
	"crypto/sha1"
	"encoding/hex"
	"errors"
	"fmt"
	"image"
	"log"
	"os"
	"path/filepath"
	"strconv"

	"github.com/Swastik2002/Smart-Attendance-System/gallery"
	"github.com/Swastik2002/Smart-Attendance-System/media"
	"github.com/Swastik2002/Smart-Attendance-System/models"
	"github.com/Swastik2002/Smart-Attendance-System/repository"
	"github.com/Swastik2002/Smart-Attendance-System/utils"
	"github.com/facette/natsort"
)

// ErrModelsUnavailable reports that training cannot run because the face
// detection or embedding network failed to load.
var ErrModelsUnavailable = errors.New("face detection or embedding models are not loaded")

// TrainReport summarizes one training pass over a student's photos.
type TrainReport struct {
	StudentID  uint `json:"student_id"`
	Photos     int  `json:"photos"`
	Embeddings int  `json:"embeddings"`
	Skipped    int  `json:"skipped"` // photos with no usable face
}

// TrainingService derives reference embeddings from stored enrollment photos.
// A pass over one student scans their upload directory, embeds the largest
// face in each photo and replaces the student's embedding set wholesale, in
// the database and in the live index. Source photos are hashed so retraining
// with unchanged images produces the same set.
type TrainingService struct {
	students    repository.StudentRepositoryInterface
	galleryRepo repository.GalleryRepositoryInterface
	gallery     *gallery.Gallery
	detector    *media.DNNFaceDetector
	embedder    *media.EmbeddingModel
	uploadsPath string
}

func NewTrainingService(
	students repository.StudentRepositoryInterface,
	galleryRepo repository.GalleryRepositoryInterface,
	idx *gallery.Gallery,
	detector *media.DNNFaceDetector,
	embedder *media.EmbeddingModel,
	uploadsPath string,
) *TrainingService {
	return &TrainingService{
		students:    students,
		galleryRepo: galleryRepo,
		gallery:     idx,
		detector:    detector,
		embedder:    embedder,
		uploadsPath: uploadsPath,
	}
}

// StudentPhotosDir returns the directory holding a student's enrollment
// photos.
func (s *TrainingService) StudentPhotosDir(studentID uint) string {
	return filepath.Join(s.uploadsPath, strconv.FormatUint(uint64(studentID), 10))
}

// Train rebuilds the embedding set for one student from their stored photos.
func (s *TrainingService) Train(studentID uint) (*TrainReport, error) {
	if s.detector == nil || !s.detector.Enabled || s.embedder == nil || !s.embedder.Enabled {
		return nil, ErrModelsUnavailable
	}

	if _, err := s.students.GetByID(studentID); err != nil {
		return nil, fmt.Errorf("failed to load student %d: %w", studentID, err)
	}

	photos, err := s.listPhotos(studentID)
	if err != nil {
		return nil, err
	}

	report := &TrainReport{StudentID: studentID, Photos: len(photos)}
	embeddings := make([]models.GalleryEmbedding, 0, len(photos))
	entries := make([]gallery.Entry, 0, len(photos))

	for _, photoPath := range photos {
		embedding, sourceHash, capturedAt, err := s.embedPhoto(photoPath)
		if err != nil {
			log.Printf("training: skipping %s for student %d: %v", filepath.Base(photoPath), studentID, err)
			report.Skipped++
			continue
		}

		row := models.GalleryEmbedding{
			StudentID:      studentID,
			EmbeddingModel: s.embedder.ModelName,
			SourceHash:     sourceHash,
			CapturedAt:     capturedAt,
		}
		row.SetEmbedding(embedding)
		embeddings = append(embeddings, row)
		entries = append(entries, gallery.Entry{
			StudentID:  studentID,
			Embedding:  embedding,
			SourceHash: sourceHash,
		})
	}

	if err := s.galleryRepo.ReplaceForStudent(studentID, embeddings); err != nil {
		return nil, err
	}
	s.gallery.ReplaceIdentity(studentID, entries)

	report.Embeddings = len(embeddings)
	log.Printf("training: student %d trained with %d embedding(s) from %d photo(s)",
		studentID, report.Embeddings, report.Photos)
	return report, nil
}

// TrainAll retrains every student. A failure for one student is logged and
// does not stop the rest.
func (s *TrainingService) TrainAll() ([]TrainReport, error) {
	students, err := s.students.ListAll()
	if err != nil {
		return nil, err
	}

	reports := make([]TrainReport, 0, len(students))
	for _, student := range students {
		report, err := s.Train(student.ID)
		if err != nil {
			if errors.Is(err, ErrModelsUnavailable) {
				return nil, err
			}
			log.Printf("training: failed for student %d: %v", student.ID, err)
			continue
		}
		reports = append(reports, *report)
	}
	return reports, nil
}

func (s *TrainingService) listPhotos(studentID uint) ([]string, error) {
	dir := s.StudentPhotosDir(studentID)
	dirEntries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read photo directory for student %d: %w", studentID, err)
	}

	names := make([]string, 0, len(dirEntries))
	for _, entry := range dirEntries {
		if entry.IsDir() || !utils.IsRasterImage(entry.Name()) {
			continue
		}
		names = append(names, entry.Name())
	}
	natsort.Sort(names)

	photos := make([]string, 0, len(names))
	for _, name := range names {
		photos = append(photos, filepath.Join(dir, name))
	}
	return photos, nil
}

// embedPhoto extracts the embedding of the largest detected face in a photo,
// together with the photo's content hash and EXIF capture time.
func (s *TrainingService) embedPhoto(photoPath string) ([]float32, string, *int64, error) {
	data, err := os.ReadFile(photoPath)
	if err != nil {
		return nil, "", nil, fmt.Errorf("failed to read photo: %w", err)
	}

	hash := sha1.Sum(data)
	sourceHash := hex.EncodeToString(hash[:])
	capturedAt := utils.TakenAt(bytes.NewReader(data))

	frame, err := media.DecodeFrame(data)
	if err != nil {
		return nil, "", nil, err
	}
	defer frame.Close()

	boxes := s.detector.DetectFaces(frame)
	if len(boxes) == 0 {
		return nil, "", nil, errors.New("no face detected")
	}

	best := boxes[0]
	for _, box := range boxes[1:] {
		if box.Area() > best.Area() {
			best = box
		}
	}

	crop := frame.Mat.Region(image.Rect(best.X, best.Y, best.X+best.W, best.Y+best.H))
	defer crop.Close()

	embedding := s.embedder.ExtractEmbedding(crop)
	if len(embedding) == 0 {
		return nil, "", nil, errors.New("embedding extraction produced no vector")
	}
	return embedding, sourceHash, capturedAt, nil
}
