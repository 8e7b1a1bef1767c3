package media

import (
	"reflect"
	"testing"
)

func det(x, y, w, h int, source DetectionSource) Detection {
	return Detection{
		BBox:     BoundingBox{X: x, Y: y, W: w, H: h},
		Distance: 1.0,
		Source:   source,
	}
}

func matchedDet(x, y, w, h int, id uint, distance float64) Detection {
	return Detection{
		BBox:       BoundingBox{X: x, Y: y, W: w, H: h},
		IdentityID: &id,
		Distance:   distance,
		Confidence: Confidence(distance),
		Source:     SourcePrimary,
	}
}

func TestMergeOverlappingKeepsDistinctFaces(t *testing.T) {
	// IoU below the overlap threshold; both must survive
	input := []Detection{
		det(0, 0, 100, 100, SourcePrimary),
		det(80, 80, 100, 100, SourceSecondary),
	}

	merged := MergeOverlapping(input, 0.40)
	if len(merged) != 2 {
		t.Fatalf("expected 2 detections, got %d", len(merged))
	}
}

func TestMergeOverlappingCollapsesDuplicates(t *testing.T) {
	input := []Detection{
		det(0, 0, 100, 100, SourcePrimary),
		det(5, 5, 100, 100, SourceSecondary),
	}

	merged := MergeOverlapping(input, 0.40)
	if len(merged) != 1 {
		t.Fatalf("expected 1 detection, got %d", len(merged))
	}
}

func TestMergeOverlappingMatchedBeatsConfidentUnknown(t *testing.T) {
	// the unmatched detection carries a higher raw confidence, but matched
	// status wins outright
	unknown := det(0, 0, 100, 100, SourceSecondary)
	unknown.Confidence = 95.0
	matched := matchedDet(5, 5, 100, 100, 3, 0.35)

	merged := MergeOverlapping([]Detection{unknown, matched}, 0.40)
	if len(merged) != 1 {
		t.Fatalf("expected 1 detection, got %d", len(merged))
	}
	if merged[0].IdentityID == nil || *merged[0].IdentityID != 3 {
		t.Errorf("expected matched detection to win, got %+v", merged[0])
	}
}

func TestMergeOverlappingHigherConfidenceWins(t *testing.T) {
	a := matchedDet(0, 0, 100, 100, 1, 0.30)
	b := matchedDet(5, 5, 100, 100, 2, 0.10)

	merged := MergeOverlapping([]Detection{a, b}, 0.40)
	if len(merged) != 1 {
		t.Fatalf("expected 1 detection, got %d", len(merged))
	}
	if *merged[0].IdentityID != 2 {
		t.Errorf("expected higher-confidence detection to win, got identity %d", *merged[0].IdentityID)
	}
}

func TestMergeOverlappingTieKeepsFirst(t *testing.T) {
	a := matchedDet(0, 0, 100, 100, 1, 0.20)
	b := matchedDet(5, 5, 100, 100, 2, 0.20)

	merged := MergeOverlapping([]Detection{a, b}, 0.40)
	if len(merged) != 1 {
		t.Fatalf("expected 1 detection, got %d", len(merged))
	}
	if *merged[0].IdentityID != 1 {
		t.Errorf("expected earlier detection on tie, got identity %d", *merged[0].IdentityID)
	}
}

func TestMergeOverlappingDeterministic(t *testing.T) {
	input := []Detection{
		det(0, 0, 100, 100, SourcePrimary),
		matchedDet(5, 5, 100, 100, 4, 0.25),
		det(300, 300, 80, 80, SourceSecondary),
	}

	first := MergeOverlapping(append([]Detection(nil), input...), 0.40)
	second := MergeOverlapping(append([]Detection(nil), input...), 0.40)
	if !reflect.DeepEqual(first, second) {
		t.Errorf("merge not deterministic: %+v vs %+v", first, second)
	}
}

func TestMergeOverlappingSurvivorsComeFromInput(t *testing.T) {
	input := []Detection{
		det(0, 0, 100, 100, SourcePrimary),
		det(10, 10, 90, 90, SourceSecondary),
		det(500, 500, 60, 60, SourceSecondary),
	}

	merged := MergeOverlapping(input, 0.40)
	for _, m := range merged {
		found := false
		for _, in := range input {
			if m.BBox == in.BBox {
				found = true
				break
			}
		}
		if !found {
			t.Errorf("merged box %+v not present in input", m.BBox)
		}
	}
}

func TestMergeOverlappingEmptyAndSingle(t *testing.T) {
	if got := MergeOverlapping(nil, 0.40); len(got) != 0 {
		t.Errorf("expected empty result for nil input, got %d", len(got))
	}
	single := []Detection{det(0, 0, 50, 50, SourcePrimary)}
	if got := MergeOverlapping(single, 0.40); len(got) != 1 {
		t.Errorf("expected single detection to pass through, got %d", len(got))
	}
}
