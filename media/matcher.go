package media

import (
	"context"
	"errors"
	"fmt"
	"image"
	"log"
)

var (
	// ErrMatcherUnavailable reports that the embedding matcher is disabled,
	// failed, or ran out of its time budget. Callers degrade to
	// secondary-detector-only results rather than failing the pipeline.
	ErrMatcherUnavailable = errors.New("media: embedding matcher unavailable")

	// ErrDetectorUnavailable reports a disabled optional sub-feature detector.
	ErrDetectorUnavailable = errors.New("media: detector unavailable")
)

// GalleryIndex is the nearest-neighbor lookup the matcher queries. The
// returned distance is cosine-style: 0 means identical, larger means more
// different, with no assumed upper bound.
type GalleryIndex interface {
	Nearest(query []float32) (studentID uint, distance float64, ok bool)
	Empty() bool
}

// Matcher is the embedding matcher collaborator contract: given a frame and a
// gallery, return zero or more raw detections, each carrying a bounding box
// and the single nearest (identity, distance) pair. Implementations must
// honor ctx cancellation and deadlines.
type Matcher interface {
	Detect(ctx context.Context, f *Frame, idx GalleryIndex) ([]Detection, error)
}

// DNNMatcher implements Matcher with an SSD face detector plus an embedding
// network queried against the gallery index.
type DNNMatcher struct {
	Detector *DNNFaceDetector
	Embedder *EmbeddingModel
}

func NewDNNMatcher(detector *DNNFaceDetector, embedder *EmbeddingModel) *DNNMatcher {
	return &DNNMatcher{Detector: detector, Embedder: embedder}
}

// Detect locates faces, embeds each crop and attaches the nearest gallery
// identity. The heavy network passes cannot be interrupted mid-forward, so
// the work runs on its own goroutine over a cloned frame and the caller's
// deadline is enforced with a select; on timeout the late result is discarded
// by the worker itself.
func (m *DNNMatcher) Detect(ctx context.Context, f *Frame, idx GalleryIndex) ([]Detection, error) {
	if m == nil || m.Detector == nil || !m.Detector.Enabled || m.Embedder == nil || !m.Embedder.Enabled {
		return nil, ErrMatcherUnavailable
	}
	if f == nil || f.Mat.Empty() {
		return nil, ErrInvalidImage
	}

	work := f.Clone()
	resultCh := make(chan []Detection, 1)

	go func() {
		defer work.Close()
		resultCh <- m.detectSync(work, idx)
	}()

	select {
	case detections := <-resultCh:
		return detections, nil
	case <-ctx.Done():
		return nil, fmt.Errorf("%w: %v", ErrMatcherUnavailable, ctx.Err())
	}
}

func (m *DNNMatcher) detectSync(f *Frame, idx GalleryIndex) []Detection {
	boxes := m.Detector.DetectFaces(f)
	log.Printf("recognition: matcher located %d face(s)", len(boxes))

	detections := make([]Detection, 0, len(boxes))
	for _, box := range boxes {
		det := Detection{
			BBox:       box,
			Distance:   1.0,
			Confidence: 0.0,
			Source:     SourcePrimary,
		}

		crop := f.Mat.Region(image.Rect(box.X, box.Y, box.X+box.W, box.Y+box.H))
		embedding := m.Embedder.ExtractEmbedding(crop)
		crop.Close()

		if len(embedding) > 0 && idx != nil && !idx.Empty() {
			if studentID, distance, ok := idx.Nearest(embedding); ok {
				sid := studentID
				det.IdentityID = &sid
				det.Distance = distance
				det.Confidence = Confidence(distance)
			}
		}

		detections = append(detections, det)
	}

	return detections
}
