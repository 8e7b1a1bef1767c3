package media

import (
	"encoding/json"
	"math"
)

// FaceStatus is the resolution outcome for a detected face.
type FaceStatus int

const (
	StatusUnknown FaceStatus = iota
	StatusMatched
	StatusAlreadyMarked
)

func (s FaceStatus) String() string {
	switch s {
	case StatusMatched:
		return "matched"
	case StatusAlreadyMarked:
		return "already_marked"
	default:
		return "unknown"
	}
}

// DetectionSource identifies which detector produced a detection.
type DetectionSource string

const (
	SourcePrimary   DetectionSource = "primary"   // embedding matcher
	SourceSecondary DetectionSource = "secondary" // cascade scan
)

// BoundingBox is a face region in raster pixel coordinates. On the wire it
// is a 4-element [x, y, w, h] array.
type BoundingBox struct {
	X int
	Y int
	W int
	H int
}

func (b BoundingBox) MarshalJSON() ([]byte, error) {
	return json.Marshal([4]int{b.X, b.Y, b.W, b.H})
}

func (b *BoundingBox) UnmarshalJSON(data []byte) error {
	var coords [4]int
	if err := json.Unmarshal(data, &coords); err != nil {
		return err
	}
	b.X, b.Y, b.W, b.H = coords[0], coords[1], coords[2], coords[3]
	return nil
}

func (b BoundingBox) Area() int {
	return b.W * b.H
}

// IoU calculates the Intersection over Union between two bounding boxes.
func (b BoundingBox) IoU(o BoundingBox) float64 {
	x1 := max(b.X, o.X)
	y1 := max(b.Y, o.Y)
	x2 := min(b.X+b.W, o.X+o.W)
	y2 := min(b.Y+b.H, o.Y+o.H)

	if x2 <= x1 || y2 <= y1 {
		return 0.0
	}

	intersection := float64((x2 - x1) * (y2 - y1))
	union := float64(b.Area()) + float64(o.Area()) - intersection
	if union <= 0 {
		return 0.0
	}

	return intersection / union
}

// Detection is a single raw face detection. IdentityID points at the nearest
// gallery identity and is informational only until the distance passes the
// match threshold; it must never surface as a display name otherwise.
type Detection struct {
	BBox       BoundingBox
	IdentityID *uint
	Distance   float64
	Confidence float64
	Source     DetectionSource
}

// MatchedAt reports whether this detection counts as a match under the given
// cosine-distance threshold.
func (d Detection) MatchedAt(threshold float64) bool {
	return d.IdentityID != nil && d.Distance < threshold
}

// Confidence derives the display confidence from a cosine distance:
// round((1 - distance) * 100, 2) for distance <= 1.0, else 0.0. This is a
// display heuristic, not a probability.
func Confidence(distance float64) float64 {
	if distance > 1.0 {
		return 0.0
	}
	if distance < 0 {
		distance = 0
	}
	return math.Round((1.0-distance)*100*100) / 100
}

// ResolvedFace is a Detection enriched with the student identity and the
// final status. It feeds both the annotator and the attendance ledger.
type ResolvedFace struct {
	Detection
	StudentID   *uint
	DisplayName string
	Status      FaceStatus
}
