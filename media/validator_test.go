package media

import (
	"errors"
	"testing"
)

type fakeEyeDetector struct {
	found bool
	err   error
	calls int
}

func (f *fakeEyeDetector) HasEyes(_ *Frame, _ BoundingBox) (bool, error) {
	f.calls++
	return f.found, f.err
}

func TestValidateGeometry(t *testing.T) {
	frame := &Frame{Width: 1000, Height: 1000}
	v := NewValidator(nil)

	tests := []struct {
		name     string
		bbox     BoundingBox
		expected bool
	}{
		{"plausible face", BoundingBox{100, 100, 120, 150}, true},
		{"tiny speck", BoundingBox{100, 100, 20, 20}, false}, // 0.04% of frame area
		{"at minimum area", BoundingBox{100, 100, 40, 25}, true},
		{"too wide", BoundingBox{100, 100, 300, 100}, false}, // aspect 3.0
		{"too tall", BoundingBox{100, 100, 100, 300}, false}, // aspect 0.33
		{"square", BoundingBox{100, 100, 120, 120}, true},
		{"slightly out of bounds", BoundingBox{-3, 100, 120, 150}, true},
		{"far out of bounds", BoundingBox{-50, 100, 120, 150}, false},
		{"overflows right edge", BoundingBox{950, 100, 120, 150}, false},
		{"just inside right tolerance", BoundingBox{884, 100, 120, 150}, true},
		{"zero size", BoundingBox{100, 100, 0, 0}, false},
		{"negative size", BoundingBox{100, 100, -10, 50}, false},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if got := v.Validate(frame, tc.bbox); got != tc.expected {
				t.Errorf("Validate(%+v) = %v; want %v", tc.bbox, got, tc.expected)
			}
		})
	}
}

func TestValidateEyeCheck(t *testing.T) {
	frame := &Frame{Width: 1000, Height: 1000}
	bbox := BoundingBox{100, 100, 120, 150}

	t.Run("eyes found accepts", func(t *testing.T) {
		v := NewValidator(&fakeEyeDetector{found: true})
		if !v.Validate(frame, bbox) {
			t.Error("expected acceptance when eyes are found")
		}
	})

	t.Run("no eyes rejects", func(t *testing.T) {
		v := NewValidator(&fakeEyeDetector{found: false})
		if v.Validate(frame, bbox) {
			t.Error("expected rejection when no eyes are found")
		}
	})

	t.Run("detector error fails open", func(t *testing.T) {
		v := NewValidator(&fakeEyeDetector{err: errors.New("cascade exploded")})
		if !v.Validate(frame, bbox) {
			t.Error("expected acceptance when the eye detector errors")
		}
	})

	t.Run("unavailable detector fails open", func(t *testing.T) {
		v := NewValidator(&fakeEyeDetector{err: ErrDetectorUnavailable})
		if !v.Validate(frame, bbox) {
			t.Error("expected acceptance when the eye detector is unavailable")
		}
	})

	t.Run("geometry rejection skips eye check", func(t *testing.T) {
		eyes := &fakeEyeDetector{found: true}
		v := NewValidator(eyes)
		if v.Validate(frame, BoundingBox{100, 100, 20, 20}) {
			t.Error("expected geometry rejection")
		}
		if eyes.calls != 0 {
			t.Errorf("eye detector called %d times for a geometry-rejected box", eyes.calls)
		}
	})
}

func TestPadRegion(t *testing.T) {
	tests := []struct {
		name     string
		bbox     BoundingBox
		expected BoundingBox
	}{
		{"interior box", BoundingBox{100, 100, 100, 100}, BoundingBox{85, 85, 130, 130}},
		{"clamped at origin", BoundingBox{5, 5, 100, 100}, BoundingBox{0, 0, 120, 120}},
		{"clamped at far edge", BoundingBox{900, 900, 100, 100}, BoundingBox{885, 885, 115, 115}},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got := padRegion(tc.bbox, 1000, 1000, 0.15)
			if got != tc.expected {
				t.Errorf("padRegion(%+v) = %+v; want %+v", tc.bbox, got, tc.expected)
			}
		})
	}
}
