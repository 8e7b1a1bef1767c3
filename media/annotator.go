package media

import (
	"fmt"
	"image"
	"image/color"
	"log"

	"gocv.io/x/gocv"
)

// status-keyed annotation colors (BGR-as-RGBA the way gocv takes them)
var (
	colorMatched       = color.RGBA{0, 200, 0, 0}
	colorUnknown       = color.RGBA{220, 0, 0, 0}
	colorAlreadyMarked = color.RGBA{70, 70, 70, 0}
	colorLabelText     = color.RGBA{255, 255, 255, 0}
)

// Annotator draws status-keyed bounding boxes and name labels.
type Annotator struct {
	BoxThickness int
	FontScale    float64
}

func NewAnnotator() *Annotator {
	return &Annotator{BoxThickness: 2, FontScale: 0.6}
}

// AnnotateFrame returns a new frame with every face drawn onto it; the input
// frame is left untouched. A drawing failure for one face never aborts the
// remaining faces.
func (a *Annotator) AnnotateFrame(f *Frame, faces []ResolvedFace) *Frame {
	out := f.Clone()
	for i := range faces {
		if err := a.drawFace(out, &faces[i]); err != nil {
			log.Printf("annotator: skipping face %d: %v", i, err)
		}
	}
	return out
}

// Annotate draws the faces and encodes the result as JPEG, leaving the input
// frame untouched for any other use by the caller.
func (a *Annotator) Annotate(f *Frame, faces []ResolvedFace) ([]byte, error) {
	annotated := a.AnnotateFrame(f, faces)
	defer annotated.Close()
	return annotated.EncodeJPEG()
}

func (a *Annotator) drawFace(f *Frame, face *ResolvedFace) error {
	b := face.BBox
	if b.W <= 0 || b.H <= 0 {
		return fmt.Errorf("degenerate box %dx%d", b.W, b.H)
	}

	boxColor := statusColor(face.Status)
	rect := image.Rect(max(0, b.X), max(0, b.Y), min(f.Width, b.X+b.W), min(f.Height, b.Y+b.H))
	gocv.Rectangle(&f.Mat, rect, boxColor, a.BoxThickness)

	label := face.DisplayName
	if label == "" {
		label = "UNKNOWN"
	}

	size := gocv.GetTextSize(label, gocv.FontHersheySimplex, a.FontScale, 1)
	labelTop := max(0, rect.Min.Y-size.Y-8)
	background := image.Rect(rect.Min.X, labelTop, rect.Min.X+size.X+6, labelTop+size.Y+8)
	gocv.Rectangle(&f.Mat, background, boxColor, -1) // filled label background for legibility
	gocv.PutText(&f.Mat, label, image.Pt(rect.Min.X+3, labelTop+size.Y+3), gocv.FontHersheySimplex, a.FontScale, colorLabelText, 1)

	return nil
}

func statusColor(s FaceStatus) color.RGBA {
	switch s {
	case StatusMatched:
		return colorMatched
	case StatusAlreadyMarked:
		return colorAlreadyMarked
	default:
		return colorUnknown
	}
}
