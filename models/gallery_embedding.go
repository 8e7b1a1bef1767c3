package models

import "math"

// GalleryEmbedding is one reference face embedding for a student, produced at
// enrollment/training time. Embeddings for one student form a set (one row per
// enrollment photo) and are replaced wholesale when that student is retrained.
// SourceHash is the SHA-1 of the source enrollment image; the unique
// (student_id, source_hash) index makes re-training with the same images a
// no-op instead of a duplicate insert.
// It corresponds to the 'gallery_embeddings' table.
type GalleryEmbedding struct {
	ID             uint   `gorm:"primaryKey;autoIncrement" json:"id"`
	StudentID      uint   `gorm:"not null;index;uniqueIndex:idx_gallery_source" json:"student_id"`
	EmbeddingData  []byte `gorm:"not null;column:embedding_data" json:"embedding_data"` // face embedding vector as BLOB
	EmbeddingModel string `gorm:"not null;column:embedding_model;default:'arcface'" json:"embedding_model"`
	SourceHash     string `gorm:"not null;uniqueIndex:idx_gallery_source" json:"source_hash"`
	CapturedAt     *int64 `json:"captured_at,omitempty"` // EXIF capture time of the source photo, if present
	CreatedAt      int64  `gorm:"not null" json:"created_at"`
	UpdatedAt      int64  `gorm:"not null" json:"updated_at"`

	Student *Student `gorm:"foreignKey:StudentID" json:"student,omitempty"`
}

// TableName explicitly sets the table name for GORM.
func (GalleryEmbedding) TableName() string {
	return "gallery_embeddings"
}

// GetEmbedding converts the BLOB data to []float32
func (ge *GalleryEmbedding) GetEmbedding() []float32 {
	if len(ge.EmbeddingData) == 0 {
		return nil
	}

	embedding := make([]float32, len(ge.EmbeddingData)/4) // 4 bytes per float32
	for i := 0; i < len(embedding); i++ {
		offset := i * 4
		bits := uint32(ge.EmbeddingData[offset]) |
			uint32(ge.EmbeddingData[offset+1])<<8 |
			uint32(ge.EmbeddingData[offset+2])<<16 |
			uint32(ge.EmbeddingData[offset+3])<<24
		embedding[i] = math.Float32frombits(bits)
	}
	return embedding
}

// SetEmbedding converts []float32 to BLOB data
func (ge *GalleryEmbedding) SetEmbedding(embedding []float32) {
	if len(embedding) == 0 {
		ge.EmbeddingData = nil
		return
	}

	ge.EmbeddingData = make([]byte, len(embedding)*4) // 4 bytes per float32
	for i, val := range embedding {
		offset := i * 4
		bits := math.Float32bits(val)
		ge.EmbeddingData[offset] = byte(bits)
		ge.EmbeddingData[offset+1] = byte(bits >> 8)
		ge.EmbeddingData[offset+2] = byte(bits >> 16)
		ge.EmbeddingData[offset+3] = byte(bits >> 24)
	}
}
