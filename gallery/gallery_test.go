package gallery

import (
	"math"
	"testing"
)

func TestCosineDistance(t *testing.T) {
	tests := []struct {
		name     string
		a        []float32
		b        []float32
		expected float64
	}{
		{"identical", []float32{1, 0, 0}, []float32{1, 0, 0}, 0.0},
		{"identical scaled", []float32{1, 2, 3}, []float32{2, 4, 6}, 0.0},
		{"orthogonal", []float32{1, 0, 0}, []float32{0, 1, 0}, 1.0},
		{"opposite", []float32{1, 0, 0}, []float32{-1, 0, 0}, 2.0},
		{"mismatched lengths", []float32{1, 0}, []float32{1, 0, 0}, 2.0},
		{"empty", nil, nil, 2.0},
		{"zero vector", []float32{0, 0, 0}, []float32{1, 0, 0}, 2.0},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got := CosineDistance(tc.a, tc.b)
			if math.Abs(got-tc.expected) > 1e-9 {
				t.Errorf("CosineDistance(%v, %v) = %v; want %v", tc.a, tc.b, got, tc.expected)
			}
		})
	}
}

func TestGalleryEmpty(t *testing.T) {
	g := New()
	if !g.Empty() {
		t.Error("new gallery should be empty")
	}
	if _, _, ok := g.Nearest([]float32{1, 0, 0, 0}); ok {
		t.Error("Nearest on an empty gallery should report ok=false")
	}
}

func TestGalleryNearestRoundTrip(t *testing.T) {
	g := New()
	g.Load([]Entry{
		{StudentID: 1, Embedding: []float32{1, 0, 0, 0}, SourceHash: "a"},
		{StudentID: 2, Embedding: []float32{0, 1, 0, 0}, SourceHash: "b"},
		{StudentID: 3, Embedding: []float32{0, 0, 1, 0}, SourceHash: "c"},
	})

	studentID, distance, ok := g.Nearest([]float32{0, 1, 0, 0})
	if !ok {
		t.Fatal("expected a nearest neighbor")
	}
	if studentID != 2 {
		t.Errorf("expected student 2, got %d", studentID)
	}
	if distance > 1e-6 {
		t.Errorf("expected near-zero distance for an exact embedding, got %v", distance)
	}
}

func TestGalleryLoadDeduplicatesBySource(t *testing.T) {
	g := New()
	g.Load([]Entry{
		{StudentID: 1, Embedding: []float32{1, 0, 0, 0}, SourceHash: "same"},
		{StudentID: 1, Embedding: []float32{1, 0, 0, 0}, SourceHash: "same"},
		{StudentID: 1, Embedding: []float32{0.9, 0.1, 0, 0}, SourceHash: "other"},
	})

	if g.Size() != 2 {
		t.Errorf("expected 2 embeddings after dedupe, got %d", g.Size())
	}
	if g.Identities() != 1 {
		t.Errorf("expected 1 identity, got %d", g.Identities())
	}
}

func TestGalleryLoadSkipsEmptyEmbeddings(t *testing.T) {
	g := New()
	g.Load([]Entry{
		{StudentID: 1, Embedding: nil, SourceHash: "a"},
		{StudentID: 2, Embedding: []float32{1, 0, 0, 0}, SourceHash: "b"},
	})
	if g.Size() != 1 {
		t.Errorf("expected 1 embedding, got %d", g.Size())
	}
}

func TestGalleryReplaceIdentity(t *testing.T) {
	g := New()
	g.Load([]Entry{
		{StudentID: 1, Embedding: []float32{1, 0, 0, 0}, SourceHash: "a"},
		{StudentID: 2, Embedding: []float32{0, 1, 0, 0}, SourceHash: "b"},
	})

	g.ReplaceIdentity(1, []Entry{
		{StudentID: 1, Embedding: []float32{0, 0, 1, 0}, SourceHash: "a2"},
		{StudentID: 1, Embedding: []float32{0, 0, 0, 1}, SourceHash: "a3"},
	})

	if g.Size() != 3 {
		t.Fatalf("expected 3 embeddings after replacement, got %d", g.Size())
	}

	// the old embedding for student 1 must be gone; querying it now lands on
	// whatever remains, never at distance zero
	_, distance, ok := g.Nearest([]float32{1, 0, 0, 0})
	if !ok {
		t.Fatal("expected a nearest neighbor")
	}
	if distance < 1e-6 {
		t.Error("replaced embedding still present in the index")
	}

	// the new embeddings resolve to student 1
	studentID, distance, ok := g.Nearest([]float32{0, 0, 0, 1})
	if !ok || studentID != 1 || distance > 1e-6 {
		t.Errorf("expected student 1 at distance 0, got student %d distance %v ok=%v", studentID, distance, ok)
	}
}

func TestGalleryReplaceIdentityWithEmptyRemoves(t *testing.T) {
	g := New()
	g.Load([]Entry{
		{StudentID: 1, Embedding: []float32{1, 0, 0, 0}, SourceHash: "a"},
	})

	g.ReplaceIdentity(1, nil)
	if !g.Empty() {
		t.Error("expected empty gallery after removing the only identity")
	}
}

func TestGalleryReplaceIdentityIgnoresForeignEntries(t *testing.T) {
	g := New()
	g.ReplaceIdentity(1, []Entry{
		{StudentID: 2, Embedding: []float32{1, 0, 0, 0}, SourceHash: "x"},
	})
	if !g.Empty() {
		t.Error("entries for another identity must be ignored")
	}
}
