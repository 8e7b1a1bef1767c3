package repository

import (
	"fmt"
	"time"

	"github.com/Swastik2002/Smart-Attendance-System/models"
	"gorm.io/gorm"
)

// GalleryRepository persists face embeddings so the in-memory index can be
// rebuilt on startup.
type GalleryRepository struct {
	DB *gorm.DB
}

var _ GalleryRepositoryInterface = (*GalleryRepository)(nil)

func NewGalleryRepository(db *gorm.DB) *GalleryRepository {
	return &GalleryRepository{DB: db}
}

// ReplaceForStudent atomically swaps the stored embedding set for a student.
// Re-training a student replaces everything derived from their enrollment
// photos, so stale vectors never linger after photos are removed.
func (r *GalleryRepository) ReplaceForStudent(studentID uint, embeddings []models.GalleryEmbedding) error {
	now := time.Now().Unix()
	err := r.DB.Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("student_id = ?", studentID).Delete(&models.GalleryEmbedding{}).Error; err != nil {
			return fmt.Errorf("failed to clear embeddings for student %d: %w", studentID, err)
		}
		for i := range embeddings {
			embeddings[i].ID = 0
			embeddings[i].StudentID = studentID
			if embeddings[i].CreatedAt == 0 {
				embeddings[i].CreatedAt = now
			}
			embeddings[i].UpdatedAt = now
		}
		if len(embeddings) == 0 {
			return nil
		}
		if err := tx.Create(&embeddings).Error; err != nil {
			return fmt.Errorf("failed to insert embeddings for student %d: %w", studentID, err)
		}
		return nil
	})
	if err != nil {
		return err
	}
	return nil
}

// ListAll returns every stored embedding, for index hydration on startup
func (r *GalleryRepository) ListAll() ([]models.GalleryEmbedding, error) {
	var embeddings []models.GalleryEmbedding
	err := r.DB.Order("student_id asc, id asc").Find(&embeddings).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list gallery embeddings: %w", err)
	}
	return embeddings, nil
}

// CountByStudent returns how many embeddings are stored per student
func (r *GalleryRepository) CountByStudent() (map[uint]int64, error) {
	type countRow struct {
		StudentID uint
		N         int64
	}
	var rows []countRow
	err := r.DB.Model(&models.GalleryEmbedding{}).
		Select("student_id, count(*) as n").
		Group("student_id").
		Scan(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("failed to count gallery embeddings: %w", err)
	}
	counts := make(map[uint]int64, len(rows))
	for _, row := range rows {
		counts[row.StudentID] = row.N
	}
	return counts, nil
}
