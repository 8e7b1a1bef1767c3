// Package gallery owns the collection of known identities and their
// reference embeddings. It is the only component that mutates enrollment
// data, through ReplaceIdentity; lookups go through an in-memory HNSW index.
package gallery

import (
	"log"
	"sync"

	"github.com/coder/hnsw"
)

const maxNeighbors = 16

// Entry is one (identity, embedding) pair. Entries for one identity form a
// set and are replaced wholesale when that identity is retrained; SourceHash
// identifies the enrollment image the embedding came from.
type Entry struct {
	StudentID  uint
	Embedding  []float32
	SourceHash string
}

// Gallery is an append-per-identity collection of face embeddings with
// nearest-neighbor lookup. Safe for concurrent use: recognition runs read
// queries while training replaces identities.
type Gallery struct {
	mu       sync.RWMutex
	graph    *hnsw.Graph[int64]
	byID     map[int64]Entry // HNSW node ID -> entry
	identity map[uint][]Entry
	nextID   int64
}

func New() *Gallery {
	return &Gallery{
		byID:     make(map[int64]Entry),
		identity: make(map[uint][]Entry),
	}
}

// Load replaces the whole gallery with the given entries, deduplicating per
// (identity, source hash). Used to hydrate the index from the data store at
// startup.
func (g *Gallery) Load(entries []Entry) {
	g.mu.Lock()
	defer g.mu.Unlock()

	g.identity = make(map[uint][]Entry)
	for _, e := range entries {
		if len(e.Embedding) == 0 || g.hasSourceLocked(e.StudentID, e.SourceHash) {
			continue
		}
		g.identity[e.StudentID] = append(g.identity[e.StudentID], e)
	}
	g.rebuildLocked()
	log.Printf("gallery: loaded %d embedding(s) for %d identit(ies)", len(g.byID), len(g.identity))
}

// ReplaceIdentity swaps out every entry for one identity. Passing an empty
// slice removes the identity. Entries whose source hash already exists for
// the identity are dropped, so re-training with identical images is a no-op
// on the index contents.
func (g *Gallery) ReplaceIdentity(studentID uint, entries []Entry) {
	g.mu.Lock()
	defer g.mu.Unlock()

	delete(g.identity, studentID)
	for _, e := range entries {
		if e.StudentID != studentID || len(e.Embedding) == 0 {
			continue
		}
		if g.hasSourceLocked(studentID, e.SourceHash) {
			continue
		}
		g.identity[studentID] = append(g.identity[studentID], e)
	}
	g.rebuildLocked()
}

// Nearest returns the identity and cosine distance of the closest gallery
// embedding to the query, or ok=false when the gallery is empty.
func (g *Gallery) Nearest(query []float32) (uint, float64, bool) {
	g.mu.RLock()
	defer g.mu.RUnlock()

	if g.graph == nil || len(g.byID) == 0 {
		return 0, 0, false
	}

	neighbors := g.graph.Search(query, 1)
	if len(neighbors) == 0 {
		return 0, 0, false
	}

	n := neighbors[0]
	entry, ok := g.byID[n.Key]
	if !ok {
		return 0, 0, false
	}

	return entry.StudentID, CosineDistance(query, n.Value), true
}

// Empty reports whether no identities have been trained yet.
func (g *Gallery) Empty() bool {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return len(g.byID) == 0
}

// Size returns the number of stored embeddings.
func (g *Gallery) Size() int {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return len(g.byID)
}

// Identities returns the number of distinct identities in the gallery.
func (g *Gallery) Identities() int {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return len(g.identity)
}

func (g *Gallery) hasSourceLocked(studentID uint, sourceHash string) bool {
	if sourceHash == "" {
		return false
	}
	for _, e := range g.identity[studentID] {
		if e.SourceHash == sourceHash {
			return true
		}
	}
	return false
}

// rebuildLocked reconstructs the HNSW graph from the identity map. HNSW has
// no true deletion, so identity replacement rebuilds the whole graph.
func (g *Gallery) rebuildLocked() {
	g.byID = make(map[int64]Entry)
	g.nextID = 0

	total := 0
	for _, entries := range g.identity {
		total += len(entries)
	}
	if total == 0 {
		g.graph = nil
		return
	}

	graph := hnsw.NewGraph[int64]()
	graph.M = maxNeighbors
	graph.Ml = 1.0 / float64(maxNeighbors)
	graph.Distance = hnsw.CosineDistance

	for _, entries := range g.identity {
		for _, e := range entries {
			id := g.nextID
			g.nextID++
			graph.Add(hnsw.MakeNode(id, e.Embedding))
			g.byID[id] = e
		}
	}

	g.graph = graph
}
