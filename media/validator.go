package media

import "log"

// Validator heuristics. A candidate box is rejected when it is implausibly
// small relative to the frame, badly proportioned for a face, or outside the
// frame by more than a small tolerance.
const (
	minAreaRatio     = 0.001 // 0.1% of frame area
	minAspectRatio   = 0.5
	maxAspectRatio   = 1.8
	boundsToleranceP = 5    // px a box may exceed frame bounds
	eyeCropPadding   = 0.15 // padding around the box for the eye check
)

// EyeDetector finds eye-like sub-features inside a face region. It is an
// optional structural check; implementations report (found, error).
type EyeDetector interface {
	HasEyes(f *Frame, region BoundingBox) (bool, error)
}

// Validator is a pure predicate over (frame dimensions, bounding box) with an
// optional eye-region structural check.
type Validator struct {
	Eyes EyeDetector // nil disables the structural check
}

func NewValidator(eyes EyeDetector) *Validator {
	return &Validator{Eyes: eyes}
}

// Validate reports whether bbox is a plausible face region within the frame.
// If the eye detector is missing or errors, the structural check fails open
// and the box is accepted; an unavailable sub-feature detector must not block
// every detection.
func (v *Validator) Validate(f *Frame, bbox BoundingBox) bool {
	if !v.validateGeometry(f.Width, f.Height, bbox) {
		return false
	}

	if v.Eyes == nil {
		return true
	}

	region := padRegion(bbox, f.Width, f.Height, eyeCropPadding)
	found, err := v.Eyes.HasEyes(f, region)
	if err != nil {
		log.Printf("validator: eye check failed for box at (%d,%d): %v. Accepting.", bbox.X, bbox.Y, err)
		return true
	}
	return found
}

func (v *Validator) validateGeometry(frameW, frameH int, bbox BoundingBox) bool {
	if bbox.W <= 0 || bbox.H <= 0 || frameW <= 0 || frameH <= 0 {
		return false
	}

	frameArea := frameW * frameH
	if float64(bbox.Area()) < minAreaRatio*float64(frameArea) {
		return false
	}

	aspect := float64(bbox.W) / float64(bbox.H)
	if aspect < minAspectRatio || aspect > maxAspectRatio {
		return false
	}

	if bbox.X < -boundsToleranceP || bbox.Y < -boundsToleranceP {
		return false
	}
	if bbox.X+bbox.W > frameW+boundsToleranceP || bbox.Y+bbox.H > frameH+boundsToleranceP {
		return false
	}

	return true
}

// padRegion grows bbox by ratio on every side and clamps it to the frame.
func padRegion(bbox BoundingBox, frameW, frameH int, ratio float64) BoundingBox {
	padW := int(float64(bbox.W) * ratio)
	padH := int(float64(bbox.H) * ratio)

	x := max(0, bbox.X-padW)
	y := max(0, bbox.Y-padH)
	x2 := min(frameW, bbox.X+bbox.W+padW)
	y2 := min(frameH, bbox.Y+bbox.H+padH)

	return BoundingBox{X: x, Y: y, W: x2 - x, H: y2 - y}
}
