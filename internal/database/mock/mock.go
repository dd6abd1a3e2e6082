// Package mock provides in-memory implementations of the database interfaces
// for testing.
package mock

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/mhoracek/homeframe/internal/database"
)

// FaceStore is an in-memory implementation of database.FaceStore.
type FaceStore struct {
	mu          sync.RWMutex
	identities  map[string]*database.Identity
	occurrences []*database.Occurrence
	nextOccID   int64

	// Error injection
	GetError    error
	ListError   error
	CreateError error
	UpdateError error
	DeleteError error
	InsertError error
	CountError  error
}

// NewFaceStore creates an empty in-memory face store.
func NewFaceStore() *FaceStore {
	return &FaceStore{
		identities: make(map[string]*database.Identity),
	}
}

// AddIdentity seeds the store with an identity (test setup helper).
func (m *FaceStore) AddIdentity(ident database.Identity) {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := ident
	cp.Centroid = append([]float32(nil), ident.Centroid...)
	m.identities[ident.ID] = &cp
}

// GetIdentity retrieves an identity by ID.
func (m *FaceStore) GetIdentity(ctx context.Context, id string) (*database.Identity, error) {
	if m.GetError != nil {
		return nil, m.GetError
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	ident, ok := m.identities[id]
	if !ok {
		return nil, database.ErrNotFound
	}
	cp := *ident
	cp.Centroid = append([]float32(nil), ident.Centroid...)
	return &cp, nil
}

// ListIdentities returns all identities with a centroid, ordered by ID.
func (m *FaceStore) ListIdentities(ctx context.Context) ([]database.Identity, error) {
	if m.ListError != nil {
		return nil, m.ListError
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []database.Identity
	for _, ident := range m.identities {
		if len(ident.Centroid) == 0 {
			continue
		}
		cp := *ident
		cp.Centroid = append([]float32(nil), ident.Centroid...)
		out = append(out, cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// ListIdentitiesFiltered returns identities matching the listing options.
// Unlike ListIdentities, identities without a centroid are included; the
// filter exists for the matcher, not the listing surface.
func (m *FaceStore) ListIdentitiesFiltered(ctx context.Context, opts database.ListOptions) ([]database.Identity, error) {
	if m.ListError != nil {
		return nil, m.ListError
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	minPhotos := opts.MinPhotos
	if minPhotos < 1 {
		minPhotos = 1
	}
	limit := opts.Limit
	if limit <= 0 {
		limit = 100
	}
	var out []database.Identity
	for _, ident := range m.identities {
		if ident.PhotoCount < minPhotos {
			continue
		}
		if opts.NamedOnly && ident.Name == "" {
			continue
		}
		cp := *ident
		cp.Centroid = append([]float32(nil), ident.Centroid...)
		out = append(out, cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	sort.SliceStable(out, func(i, j int) bool { return out[i].PhotoCount > out[j].PhotoCount })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// CreateIdentity inserts a new identity.
func (m *FaceStore) CreateIdentity(ctx context.Context, identity *database.Identity) error {
	if m.CreateError != nil {
		return m.CreateError
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if identity.CreatedAt.IsZero() {
		identity.CreatedAt = time.Now()
	}
	cp := *identity
	cp.Centroid = append([]float32(nil), identity.Centroid...)
	m.identities[identity.ID] = &cp
	return nil
}

// UpdateIdentity persists a new centroid and photo count.
func (m *FaceStore) UpdateIdentity(ctx context.Context, identity *database.Identity) error {
	if m.UpdateError != nil {
		return m.UpdateError
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	existing, ok := m.identities[identity.ID]
	if !ok {
		return database.ErrNotFound
	}
	existing.Centroid = append([]float32(nil), identity.Centroid...)
	existing.PhotoCount = identity.PhotoCount
	return nil
}

// RenameIdentity assigns a human label to an identity.
func (m *FaceStore) RenameIdentity(ctx context.Context, id, name string) error {
	if m.UpdateError != nil {
		return m.UpdateError
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	ident, ok := m.identities[id]
	if !ok {
		return database.ErrNotFound
	}
	ident.Name = name
	return nil
}

// DeleteIdentity removes an identity.
func (m *FaceStore) DeleteIdentity(ctx context.Context, id string) error {
	if m.DeleteError != nil {
		return m.DeleteError
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.identities[id]; !ok {
		return database.ErrNotFound
	}
	delete(m.identities, id)
	return nil
}

// RecordFace persists the identity mutation and the occurrence link as one
// unit. Mirrors the transactional store: an injected error on either half
// leaves the store untouched.
func (m *FaceStore) RecordFace(ctx context.Context, identity *database.Identity, isNew bool, occ *database.Occurrence) error {
	if isNew && m.CreateError != nil {
		return m.CreateError
	}
	if !isNew && m.UpdateError != nil {
		return m.UpdateError
	}
	if m.InsertError != nil {
		return m.InsertError
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if !isNew {
		if _, ok := m.identities[identity.ID]; !ok {
			return database.ErrNotFound
		}
	}
	if identity.CreatedAt.IsZero() {
		identity.CreatedAt = time.Now()
	}
	cp := *identity
	cp.Centroid = append([]float32(nil), identity.Centroid...)
	m.identities[identity.ID] = &cp

	m.nextOccID++
	occ.ID = m.nextOccID
	if occ.CreatedAt.IsZero() {
		occ.CreatedAt = time.Now()
	}
	ocp := *occ
	if occ.Embedding != nil {
		ocp.Embedding = append([]float32(nil), occ.Embedding...)
	}
	m.occurrences = append(m.occurrences, &ocp)
	return nil
}

// ApplyMerge reassigns, recounts, updates the target and deletes the sources
// as one unit. An injected error leaves the store untouched.
func (m *FaceStore) ApplyMerge(ctx context.Context, target *database.Identity, sourceIDs []string) (int, error) {
	if m.UpdateError != nil {
		return 0, m.UpdateError
	}
	if m.DeleteError != nil {
		return 0, m.DeleteError
	}
	if m.CountError != nil {
		return 0, m.CountError
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	existing, ok := m.identities[target.ID]
	if !ok {
		return 0, database.ErrNotFound
	}

	moved := 0
	for _, srcID := range sourceIDs {
		for _, occ := range m.occurrences {
			if occ.IdentityID == srcID {
				occ.IdentityID = target.ID
				moved++
			}
		}
		delete(m.identities, srcID)
	}

	count := 0
	for _, occ := range m.occurrences {
		if occ.IdentityID == target.ID {
			count++
		}
	}
	target.PhotoCount = count
	existing.Centroid = append([]float32(nil), target.Centroid...)
	existing.PhotoCount = count
	return moved, nil
}

// InsertOccurrence stores one detected face instance.
func (m *FaceStore) InsertOccurrence(ctx context.Context, occ *database.Occurrence) error {
	if m.InsertError != nil {
		return m.InsertError
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextOccID++
	occ.ID = m.nextOccID
	if occ.CreatedAt.IsZero() {
		occ.CreatedAt = time.Now()
	}
	cp := *occ
	if occ.Embedding != nil {
		cp.Embedding = append([]float32(nil), occ.Embedding...)
	}
	m.occurrences = append(m.occurrences, &cp)
	return nil
}

// ListOccurrencesByPhoto returns all occurrences detected in a photo.
func (m *FaceStore) ListOccurrencesByPhoto(ctx context.Context, photoID string) ([]database.Occurrence, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []database.Occurrence
	for _, occ := range m.occurrences {
		if occ.PhotoID == photoID {
			out = append(out, *occ)
		}
	}
	return out, nil
}

// ListOccurrencesByIdentity returns all occurrences assigned to an identity.
func (m *FaceStore) ListOccurrencesByIdentity(ctx context.Context, identityID string) ([]database.Occurrence, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []database.Occurrence
	for _, occ := range m.occurrences {
		if occ.IdentityID == identityID {
			out = append(out, *occ)
		}
	}
	return out, nil
}

// ReassignOccurrences moves all occurrences from one identity to another.
func (m *FaceStore) ReassignOccurrences(ctx context.Context, fromID, toID string) (int, error) {
	if m.UpdateError != nil {
		return 0, m.UpdateError
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	moved := 0
	for _, occ := range m.occurrences {
		if occ.IdentityID == fromID {
			occ.IdentityID = toID
			moved++
		}
	}
	return moved, nil
}

// CountOccurrences returns the number of occurrences referencing an identity.
func (m *FaceStore) CountOccurrences(ctx context.Context, identityID string) (int, error) {
	if m.CountError != nil {
		return 0, m.CountError
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	count := 0
	for _, occ := range m.occurrences {
		if occ.IdentityID == identityID {
			count++
		}
	}
	return count, nil
}

// HasOccurrences checks whether a photo has already been processed.
func (m *FaceStore) HasOccurrences(ctx context.Context, photoID string) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, occ := range m.occurrences {
		if occ.PhotoID == photoID {
			return true, nil
		}
	}
	return false, nil
}

// Counts returns summary counts for status reporting.
func (m *FaceStore) Counts(ctx context.Context) (database.IdentityCounts, error) {
	if m.CountError != nil {
		return database.IdentityCounts{}, m.CountError
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	counts := database.IdentityCounts{
		Identities:  len(m.identities),
		Occurrences: len(m.occurrences),
	}
	for _, ident := range m.identities {
		if ident.Name != "" {
			counts.Named++
		}
	}
	return counts, nil
}

// PhotoStore is an in-memory implementation of database.PhotoStore.
type PhotoStore struct {
	mu     sync.RWMutex
	photos map[string]*database.Photo
	faces  *FaceStore // optional, used to compute unprocessed photos

	GetError error
}

// NewPhotoStore creates an empty in-memory photo store. The face store is
// consulted to decide which photos count as unprocessed.
func NewPhotoStore(faces *FaceStore) *PhotoStore {
	return &PhotoStore{
		photos: make(map[string]*database.Photo),
		faces:  faces,
	}
}

// AddPhoto seeds the store with a photo (test setup helper).
func (m *PhotoStore) AddPhoto(photo database.Photo) {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := photo
	if cp.Status == "" {
		cp.Status = database.PhotoStatusActive
	}
	m.photos[photo.ID] = &cp
}

// GetPhoto retrieves a photo by ID.
func (m *PhotoStore) GetPhoto(ctx context.Context, id string) (*database.Photo, error) {
	if m.GetError != nil {
		return nil, m.GetError
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	photo, ok := m.photos[id]
	if !ok {
		return nil, database.ErrNotFound
	}
	cp := *photo
	return &cp, nil
}

// ListUnprocessedPhotoIDs returns active non-video photos with no occurrences.
func (m *PhotoStore) ListUnprocessedPhotoIDs(ctx context.Context) ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var ids []string
	for id, photo := range m.photos {
		if photo.Status != database.PhotoStatusActive || photo.IsVideo {
			continue
		}
		if m.faces != nil {
			processed, _ := m.faces.HasOccurrences(ctx, id)
			if processed {
				continue
			}
		}
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids, nil
}
