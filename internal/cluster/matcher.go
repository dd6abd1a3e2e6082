// Package cluster implements the online nearest-centroid matcher and the
// offline density-based reclusterer that together assign face embeddings to
// person identities.
package cluster

import (
	"github.com/coder/hnsw"

	"github.com/mhoracek/homeframe/internal/database"
	"github.com/mhoracek/homeframe/internal/vector"
)

// annCutoff is the snapshot size above which matching goes through the HNSW
// index instead of a full linear scan. Below it the scan is cheaper than
// maintaining the graph.
const annCutoff = 128

// annCandidates is how many nearest neighbors the index returns for exact
// re-checking.
const annCandidates = 8

// MatchResult is the outcome of matching one embedding against a snapshot of
// known identities. When Matched is false, ID is empty and Distance is the
// distance to the nearest identity (informational; 1.0 for an empty snapshot).
type MatchResult struct {
	ID       string
	Distance float64
	Matched  bool
}

// Snapshot is the set of known identity centroids used for one photo's
// matching decisions. Identities created while processing the photo are
// appended so faces later in the same photo can match them. Not safe for
// concurrent use; the ingestion worker is the only writer.
type Snapshot struct {
	ids       []string
	centroids [][]float32
	graph     *hnsw.Graph[int] // node key is index into ids; nil below annCutoff
}

// NewSnapshot builds a matcher snapshot from the stored identities. Only
// identities with a centroid participate.
func NewSnapshot(identities []database.Identity) *Snapshot {
	s := &Snapshot{}
	for _, ident := range identities {
		if len(ident.Centroid) == 0 {
			continue
		}
		s.ids = append(s.ids, ident.ID)
		s.centroids = append(s.centroids, ident.Centroid)
	}

	if len(s.ids) >= annCutoff {
		s.buildGraph()
	}
	return s
}

func (s *Snapshot) buildGraph() {
	g := hnsw.NewGraph[int]()
	g.Distance = hnsw.CosineDistance
	for i, c := range s.centroids {
		g.Add(hnsw.MakeNode(i, c))
	}
	s.graph = g
}

// Len returns the number of identities in the snapshot.
func (s *Snapshot) Len() int {
	return len(s.ids)
}

// Add appends a newly created identity so subsequent faces in the same photo
// can match it.
func (s *Snapshot) Add(id string, centroid []float32) {
	s.ids = append(s.ids, id)
	s.centroids = append(s.centroids, centroid)
	if s.graph != nil {
		s.graph.Add(hnsw.MakeNode(len(s.ids)-1, centroid))
	}
}

// Update replaces the centroid of an identity already in the snapshot, so the
// running-average update is visible to later faces in the same photo.
func (s *Snapshot) Update(id string, centroid []float32) {
	for i, existing := range s.ids {
		if existing == id {
			s.centroids[i] = centroid
			if s.graph != nil {
				s.graph.Add(hnsw.MakeNode(i, centroid))
			}
			return
		}
	}
}

// Match finds the nearest identity to the embedding by cosine distance.
// The threshold is inclusive: distance == threshold is a match. Ties at the
// minimum distance resolve to the lexicographically lowest ID, so the result
// is deterministic for a given snapshot.
func (s *Snapshot) Match(embedding []float32, threshold float64) MatchResult {
	if len(s.ids) == 0 {
		return MatchResult{Distance: 1.0}
	}

	bestIdx := -1
	bestDist := 0.0

	consider := func(i int) {
		dist := vector.CosineDistance(embedding, s.centroids[i])
		if bestIdx < 0 || dist < bestDist || (dist == bestDist && s.ids[i] < s.ids[bestIdx]) {
			bestIdx = i
			bestDist = dist
		}
	}

	if s.graph != nil {
		// ANN candidates, re-checked with exact distances.
		for _, node := range s.graph.Search(embedding, annCandidates) {
			consider(node.Key)
		}
	} else {
		for i := range s.centroids {
			consider(i)
		}
	}

	if bestIdx < 0 {
		return MatchResult{Distance: 1.0}
	}
	if bestDist <= threshold {
		return MatchResult{ID: s.ids[bestIdx], Distance: bestDist, Matched: true}
	}
	return MatchResult{Distance: bestDist}
}

// UpdatedCentroid returns the centroid after folding one new embedding into
// an identity: the L2-normalized mean of the old centroid and the embedding.
// This is a lossy running update weighted as a count-of-two average, not a
// true population mean; the stored occurrence embeddings are not re-read.
func UpdatedCentroid(old, embedding []float32) []float32 {
	return vector.Centroid(old, embedding)
}
