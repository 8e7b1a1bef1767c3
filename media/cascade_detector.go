package media

import (
	"image"
	"log"

	"gocv.io/x/gocv"
)

// CascadeFaceDetector is the coarse, identity-agnostic secondary detector. It
// exists to catch faces the embedding matcher missed; its detections carry no
// identity and the maximum cosine distance, so they can never outrank a
// primary detection of equal status during merging.
type CascadeFaceDetector struct {
	Classifier gocv.CascadeClassifier
	Enabled    bool

	MinFaceSize int
}

// NewCascadeFaceDetector loads the Haar cascade model
func NewCascadeFaceDetector(cascadePath string) *CascadeFaceDetector {
	if cascadePath == "" {
		log.Println("detection(cascade): cascade path is empty, disabling secondary detector")
		return &CascadeFaceDetector{Enabled: false}
	}

	classifier := gocv.NewCascadeClassifier()
	if !classifier.Load(cascadePath) {
		log.Printf("detection(cascade): ERROR loading cascade file: %s", cascadePath)
		classifier.Close()
		return &CascadeFaceDetector{Enabled: false}
	}
	log.Printf("detection(cascade): successfully loaded face cascade")

	return &CascadeFaceDetector{
		Classifier:  classifier,
		Enabled:     true,
		MinFaceSize: 60,
	}
}

func (c *CascadeFaceDetector) Close() {
	if c != nil && c.Enabled {
		c.Classifier.Close()
		log.Println("detection(cascade): closed classifier")
		c.Enabled = false
	}
}

// Detect runs the cascade scan over the frame. Results are identity-agnostic:
// Distance is pinned at 1.0 (confidence 0.0) and Source is secondary.
func (c *CascadeFaceDetector) Detect(f *Frame) []Detection {
	if c == nil || !c.Enabled || f == nil || f.Mat.Empty() {
		return nil
	}

	gray := gocv.NewMat()
	defer gray.Close()
	gocv.CvtColor(f.Mat, &gray, gocv.ColorBGRToGray)

	rects := c.Classifier.DetectMultiScaleWithParams(
		gray, 1.1, 4, 0,
		image.Pt(c.MinFaceSize, c.MinFaceSize), image.Pt(0, 0),
	)

	results := make([]Detection, 0, len(rects))
	for _, r := range rects {
		results = append(results, Detection{
			BBox:       BoundingBox{X: r.Min.X, Y: r.Min.Y, W: r.Dx(), H: r.Dy()},
			Distance:   1.0,
			Confidence: 0.0,
			Source:     SourceSecondary,
		})
	}

	return results
}

// CascadeEyeDetector implements the validator's eye-region check with a Haar
// eye cascade run inside the padded face crop.
type CascadeEyeDetector struct {
	Classifier gocv.CascadeClassifier
	Enabled    bool
}

// NewCascadeEyeDetector loads the eye cascade; a missing or broken model
// yields a disabled detector, which the validator treats as fail-open.
func NewCascadeEyeDetector(cascadePath string) *CascadeEyeDetector {
	if cascadePath == "" {
		log.Println("detection(eyes): cascade path is empty, disabling eye detector")
		return &CascadeEyeDetector{Enabled: false}
	}

	classifier := gocv.NewCascadeClassifier()
	if !classifier.Load(cascadePath) {
		log.Printf("detection(eyes): ERROR loading cascade file: %s", cascadePath)
		classifier.Close()
		return &CascadeEyeDetector{Enabled: false}
	}

	return &CascadeEyeDetector{Classifier: classifier, Enabled: true}
}

func (c *CascadeEyeDetector) Close() {
	if c != nil && c.Enabled {
		c.Classifier.Close()
		c.Enabled = false
	}
}

// HasEyes reports whether at least one eye-like region exists inside the
// given crop of the frame.
func (c *CascadeEyeDetector) HasEyes(f *Frame, region BoundingBox) (bool, error) {
	if c == nil || !c.Enabled {
		return false, ErrDetectorUnavailable
	}
	if f == nil || f.Mat.Empty() || region.W <= 0 || region.H <= 0 {
		return false, ErrInvalidImage
	}

	crop := f.Mat.Region(image.Rect(region.X, region.Y, region.X+region.W, region.Y+region.H))
	defer crop.Close()

	gray := gocv.NewMat()
	defer gray.Close()
	gocv.CvtColor(crop, &gray, gocv.ColorBGRToGray)

	rects := c.Classifier.DetectMultiScale(gray)
	return len(rects) > 0, nil
}
