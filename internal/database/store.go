// Package database defines the identity store accessor used by the face
// pipeline and the types that cross it. Implementations live in the postgres
// and mock subpackages.
package database

import (
	"context"
	"errors"
)

// ErrNotFound is returned when an identity or photo does not exist.
var ErrNotFound = errors.New("not found")

// IdentityCounts summarizes the identity store for status reporting.
type IdentityCounts struct {
	Identities  int
	Named       int
	Occurrences int
}

// ListOptions filters identity listings.
type ListOptions struct {
	NamedOnly bool
	MinPhotos int
	Limit     int
}

// FaceStore is the persistence contract for identities and occurrence links.
// The pipeline holds no long-lived copy of this state; it reads a snapshot
// per matching decision or reclustering pass and proposes mutations through
// this interface.
type FaceStore interface {
	GetIdentity(ctx context.Context, id string) (*Identity, error)
	// ListIdentities returns all identities that have a centroid,
	// ordered by ID for deterministic matching.
	ListIdentities(ctx context.Context) ([]Identity, error)
	ListIdentitiesFiltered(ctx context.Context, opts ListOptions) ([]Identity, error)
	CreateIdentity(ctx context.Context, identity *Identity) error
	// UpdateIdentity persists a new centroid and photo count.
	UpdateIdentity(ctx context.Context, identity *Identity) error
	RenameIdentity(ctx context.Context, id, name string) error
	DeleteIdentity(ctx context.Context, id string) error

	// RecordFace persists one matched face atomically: the identity
	// insert or update and the occurrence link succeed or fail together,
	// so a photo count never runs ahead of the stored links.
	RecordFace(ctx context.Context, identity *Identity, isNew bool, occ *Occurrence) error
	// ApplyMerge moves every occurrence from the sources onto the target,
	// recounts the target, writes its new centroid and count, and deletes
	// the sources, all as one unit. The recount is written back to
	// target.PhotoCount. Returns the number of occurrence links moved.
	ApplyMerge(ctx context.Context, target *Identity, sourceIDs []string) (int, error)

	InsertOccurrence(ctx context.Context, occ *Occurrence) error
	ListOccurrencesByPhoto(ctx context.Context, photoID string) ([]Occurrence, error)
	ListOccurrencesByIdentity(ctx context.Context, identityID string) ([]Occurrence, error)
	// ReassignOccurrences moves every occurrence from one identity to
	// another and returns the number moved.
	ReassignOccurrences(ctx context.Context, fromID, toID string) (int, error)
	CountOccurrences(ctx context.Context, identityID string) (int, error)
	// HasOccurrences reports whether a photo has already been processed.
	HasOccurrences(ctx context.Context, photoID string) (bool, error)

	Counts(ctx context.Context) (IdentityCounts, error)
}

// PhotoStore gives the worker read access to photo records. Photo lifecycle
// is owned by the upload service; the pipeline only reads.
type PhotoStore interface {
	GetPhoto(ctx context.Context, id string) (*Photo, error)
	// ListUnprocessedPhotoIDs returns active, non-video photos that have
	// no occurrence links yet (startup catch-up sweep).
	ListUnprocessedPhotoIDs(ctx context.Context) ([]string, error)
}
