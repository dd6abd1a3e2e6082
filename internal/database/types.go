package database

import "time"

// Identity represents one inferred person: a centroid embedding plus the
// number of photo occurrences currently assigned to it.
type Identity struct {
	ID         string
	Name       string // human-assigned label, empty until tagged
	Centroid   []float32
	PhotoCount int
	CreatedAt  time.Time
}

// Occurrence links one detected face instance in a photo to an identity.
// BBox is [x, y, w, h] normalized to the original image dimensions.
// Embedding is the face's own vector, kept so occurrences can be re-matched
// without re-running inference; the identity centroid is derived from these.
type Occurrence struct {
	ID         int64
	PhotoID    string
	IdentityID string
	BBox       [4]float64
	Confidence float64
	Embedding  []float32
	CreatedAt  time.Time
}

// Photo is the minimal view of a photo record the pipeline needs:
// where the file lives and whether it should be processed at all.
type Photo struct {
	ID       string
	FilePath string
	IsVideo  bool
	Status   string
}

// PhotoStatusActive marks photos eligible for face processing.
const PhotoStatusActive = "active"
