package cluster

import (
	"fmt"
	"math"
	"testing"

	"github.com/mhoracek/homeframe/internal/database"
	"github.com/mhoracek/homeframe/internal/vector"
)

func ident(id string, centroid []float32) database.Identity {
	return database.Identity{ID: id, Centroid: vector.Normalize(centroid)}
}

func TestMatchEmptySnapshot(t *testing.T) {
	s := NewSnapshot(nil)
	result := s.Match([]float32{1, 0, 0}, 0.4)

	if result.Matched {
		t.Error("empty snapshot should never match")
	}
	if result.Distance != 1.0 {
		t.Errorf("Distance = %v; want 1.0", result.Distance)
	}
}

func TestMatchNearest(t *testing.T) {
	identities := []database.Identity{
		ident("face-a", []float32{1, 0, 0}),
		ident("face-b", []float32{0, 1, 0}),
		ident("face-c", []float32{0, 0, 1}),
	}
	s := NewSnapshot(identities)

	query := vector.Normalize([]float32{0.95, 0.05, 0})
	result := s.Match(query, 0.4)

	if !result.Matched {
		t.Fatalf("expected match, got distance %v", result.Distance)
	}
	if result.ID != "face-a" {
		t.Errorf("matched %s; want face-a", result.ID)
	}
	if result.Distance > 0.1 {
		t.Errorf("distance %v unexpectedly large", result.Distance)
	}
}

func TestMatchBeyondThreshold(t *testing.T) {
	s := NewSnapshot([]database.Identity{ident("face-a", []float32{1, 0, 0})})

	// Orthogonal vector: distance 1.0, well past 0.4
	result := s.Match([]float32{0, 1, 0}, 0.4)

	if result.Matched {
		t.Error("orthogonal vector should not match")
	}
	if math.Abs(result.Distance-1.0) > 1e-6 {
		t.Errorf("Distance = %v; want 1.0 (informational)", result.Distance)
	}
}

func TestMatchThresholdInclusive(t *testing.T) {
	// Build a centroid and a query at a known cosine distance.
	// cos(angle) = 0.6 -> distance = 0.4 exactly (within float tolerance).
	c := []float32{1, 0}
	q := []float32{0.6, float32(math.Sqrt(1 - 0.36))}
	s := NewSnapshot([]database.Identity{ident("face-a", c)})

	dist := vector.CosineDistance(q, c)
	result := s.Match(q, dist) // threshold exactly at the distance
	if !result.Matched {
		t.Errorf("distance == threshold must match (inclusive); dist=%v", dist)
	}

	result = s.Match(q, dist-1e-9)
	if result.Matched {
		t.Error("distance just above threshold must not match")
	}
}

func TestMatchTieBreakLowestID(t *testing.T) {
	// Two identities with identical centroids: same distance, lowest ID wins.
	c := []float32{1, 0, 0}
	identities := []database.Identity{
		ident("face-z", c),
		ident("face-a", c),
		ident("face-m", c),
	}
	s := NewSnapshot(identities)

	result := s.Match(c, 0.4)
	if !result.Matched {
		t.Fatal("identical vector should match")
	}
	if result.ID != "face-a" {
		t.Errorf("tie broke to %s; want face-a", result.ID)
	}
}

func TestSnapshotAddVisibleToLaterMatches(t *testing.T) {
	s := NewSnapshot(nil)

	emb := vector.Normalize([]float32{0.5, 0.5, 0})
	if got := s.Match(emb, 0.4); got.Matched {
		t.Fatal("should not match before Add")
	}

	s.Add("face-new", emb)
	got := s.Match(emb, 0.4)
	if !got.Matched || got.ID != "face-new" {
		t.Errorf("Match after Add = %+v; want match on face-new", got)
	}
}

func TestSnapshotUpdate(t *testing.T) {
	a := vector.Normalize([]float32{1, 0})
	b := vector.Normalize([]float32{0, 1})
	s := NewSnapshot([]database.Identity{{ID: "face-a", Centroid: a}})

	s.Update("face-a", b)

	got := s.Match(b, 0.1)
	if !got.Matched || got.ID != "face-a" {
		t.Errorf("Match after Update = %+v; want match on face-a", got)
	}
}

func TestMatchLargeSnapshotUsesIndex(t *testing.T) {
	// Above the ANN cutoff matching goes through the HNSW graph; the contract
	// must not change.
	var identities []database.Identity
	for i := 0; i < annCutoff+10; i++ {
		angle := float64(i) * 0.01
		identities = append(identities, ident(
			fmt.Sprintf("face-%04d", i),
			[]float32{float32(math.Cos(angle)), float32(math.Sin(angle)), 0},
		))
	}
	s := NewSnapshot(identities)
	if s.graph == nil {
		t.Fatal("expected HNSW graph above cutoff")
	}

	// Query exactly at one of the stored centroids.
	target := identities[50]
	result := s.Match(target.Centroid, 0.4)
	if !result.Matched {
		t.Fatal("expected match on exact centroid")
	}
	if result.Distance > 1e-6 {
		t.Errorf("distance to own centroid = %v; want ~0", result.Distance)
	}
}

func TestUpdatedCentroid(t *testing.T) {
	old := vector.Normalize([]float32{1, 0})
	emb := vector.Normalize([]float32{0, 1})

	got := UpdatedCentroid(old, emb)

	if math.Abs(vector.Norm(got)-1.0) > 1e-6 {
		t.Errorf("updated centroid norm = %v; want 1", vector.Norm(got))
	}
	// Count-of-two average of orthogonal unit vectors points at 45 degrees.
	if math.Abs(float64(got[0]-got[1])) > 1e-6 {
		t.Errorf("updated centroid = %v; want symmetric", got)
	}
}
