package media

import (
	"encoding/json"
	"math"
	"testing"
)

func TestConfidence(t *testing.T) {
	tests := []struct {
		name     string
		distance float64
		expected float64
	}{
		{"zero distance", 0.0, 100.0},
		{"quarter distance", 0.25, 75.0},
		{"threshold distance", 0.40, 60.0},
		{"near one", 0.999, 0.1},
		{"exactly one", 1.0, 0.0},
		{"beyond one", 1.5, 0.0},
		{"far beyond one", 2.0, 0.0},
		{"eighth distance", 0.125, 87.5},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			result := Confidence(tc.distance)
			if math.Abs(result-tc.expected) > 1e-9 {
				t.Errorf("Confidence(%v) = %v; want %v", tc.distance, result, tc.expected)
			}
		})
	}
}

func TestConfidenceMonotonic(t *testing.T) {
	prev := Confidence(0.0)
	for d := 0.01; d <= 1.0; d += 0.01 {
		c := Confidence(d)
		if c > prev {
			t.Fatalf("Confidence not monotonic: Confidence(%v) = %v > previous %v", d, c, prev)
		}
		prev = c
	}
}

func TestMatchedAt(t *testing.T) {
	id := uint(7)
	tests := []struct {
		name      string
		det       Detection
		threshold float64
		expected  bool
	}{
		{"below threshold", Detection{IdentityID: &id, Distance: 0.39}, 0.40, true},
		{"exactly at threshold", Detection{IdentityID: &id, Distance: 0.40}, 0.40, false},
		{"above threshold", Detection{IdentityID: &id, Distance: 0.41}, 0.40, false},
		{"no identity", Detection{Distance: 0.01}, 0.40, false},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if got := tc.det.MatchedAt(tc.threshold); got != tc.expected {
				t.Errorf("MatchedAt(%v) = %v; want %v", tc.threshold, got, tc.expected)
			}
		})
	}
}

func TestIoU(t *testing.T) {
	tests := []struct {
		name     string
		a        BoundingBox
		b        BoundingBox
		expected float64
	}{
		{"identical", BoundingBox{0, 0, 100, 100}, BoundingBox{0, 0, 100, 100}, 1.0},
		{"disjoint", BoundingBox{0, 0, 50, 50}, BoundingBox{100, 100, 50, 50}, 0.0},
		{"touching edges", BoundingBox{0, 0, 50, 50}, BoundingBox{50, 0, 50, 50}, 0.0},
		{"half overlap", BoundingBox{0, 0, 100, 100}, BoundingBox{50, 0, 100, 100}, 5000.0 / 15000.0},
		{"contained quarter", BoundingBox{0, 0, 100, 100}, BoundingBox{0, 0, 50, 50}, 0.25},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got := tc.a.IoU(tc.b)
			if math.Abs(got-tc.expected) > 1e-9 {
				t.Errorf("IoU(%v, %v) = %v; want %v", tc.a, tc.b, got, tc.expected)
			}
			// symmetric
			if rev := tc.b.IoU(tc.a); math.Abs(rev-got) > 1e-9 {
				t.Errorf("IoU not symmetric: %v vs %v", got, rev)
			}
		})
	}
}

func TestBoundingBoxJSON(t *testing.T) {
	box := BoundingBox{X: 10, Y: 20, W: 120, H: 150}

	encoded, err := json.Marshal(box)
	if err != nil {
		t.Fatalf("marshal failed: %v", err)
	}
	if string(encoded) != "[10,20,120,150]" {
		t.Errorf("expected [x,y,w,h] array, got %s", encoded)
	}

	var decoded BoundingBox
	if err := json.Unmarshal(encoded, &decoded); err != nil {
		t.Fatalf("unmarshal failed: %v", err)
	}
	if decoded != box {
		t.Errorf("round trip mismatch: %+v", decoded)
	}
}

func TestFaceStatusString(t *testing.T) {
	if StatusMatched.String() != "matched" {
		t.Errorf("StatusMatched.String() = %q", StatusMatched.String())
	}
	if StatusAlreadyMarked.String() != "already_marked" {
		t.Errorf("StatusAlreadyMarked.String() = %q", StatusAlreadyMarked.String())
	}
	if StatusUnknown.String() != "unknown" {
		t.Errorf("StatusUnknown.String() = %q", StatusUnknown.String())
	}
}
