// Package faces implements the administrative and query surface over the
// identity store: merging, batch reclustering, tagging and listing person
// clusters.
package faces

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sort"
	"strings"

	"github.com/mhoracek/homeframe/internal/cluster"
	"github.com/mhoracek/homeframe/internal/database"
	"github.com/mhoracek/homeframe/internal/vector"
)

// Service coordinates identity mutations through the store. Merge and
// recluster calls must be serialized relative to each other by the caller;
// the service itself takes no locks.
type Service struct {
	store      database.FaceStore
	clusterEps float64
}

// NewService creates a face service. clusterEps is the DBSCAN radius for
// batch reclustering, intentionally looser than the online match threshold.
func NewService(store database.FaceStore, clusterEps float64) *Service {
	return &Service{store: store, clusterEps: clusterEps}
}

// MergeResult reports the outcome of merging identities.
type MergeResult struct {
	ID         string
	Name       string
	PhotoCount int
	Merged     int // occurrence links moved to the target
}

// Merge moves all occurrence links from the source identities onto the
// target, recomputes the target's centroid as the normalized mean of the
// prior centroids (count-of-clusters average, same approximation as online
// matching), recounts the target authoritatively, and deletes the sources.
// Sources that equal the target, repeat, or no longer exist are skipped so
// the operation is safe to retry. Returns database.ErrNotFound when the
// target does not exist. An empty source list leaves the target unchanged.
func (s *Service) Merge(ctx context.Context, targetID string, sourceIDs []string) (*MergeResult, error) {
	target, err := s.store.GetIdentity(ctx, targetID)
	if err != nil {
		return nil, err
	}

	var centroids [][]float32
	if len(target.Centroid) > 0 {
		centroids = append(centroids, target.Centroid)
	}

	seen := make(map[string]bool)
	var sources []string
	for _, srcID := range sourceIDs {
		if srcID == targetID || seen[srcID] {
			continue
		}
		seen[srcID] = true

		source, err := s.store.GetIdentity(ctx, srcID)
		if errors.Is(err, database.ErrNotFound) {
			// Already deleted (possibly by an earlier group in the same
			// reclustering pass); treat as resolved.
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("failed to load merge source %s: %w", srcID, err)
		}

		if len(source.Centroid) > 0 {
			centroids = append(centroids, source.Centroid)
		}
		sources = append(sources, srcID)
	}

	merged := 0
	if len(sources) > 0 {
		if len(centroids) > 0 {
			target.Centroid = vector.Centroid(centroids...)
		}
		// The store reassigns, recounts the target authoritatively and
		// deletes the sources as one unit, writing the recount back to
		// target.PhotoCount. Stale source counts cannot corrupt the
		// target, and a failure anywhere leaves all counts intact.
		merged, err = s.store.ApplyMerge(ctx, target, sources)
		if err != nil {
			return nil, fmt.Errorf("failed to apply merge: %w", err)
		}
	}

	return &MergeResult{
		ID:         target.ID,
		Name:       target.Name,
		PhotoCount: target.PhotoCount,
		Merged:     merged,
	}, nil
}

// ReclusterResult reports the outcome of a batch reclustering pass.
type ReclusterResult struct {
	Groups int // clusters found, including singletons
	Merged int // occurrence links moved by applied merges
}

// Recluster re-runs density-based clustering on all identity centroids and
// merges each group of two or more identities into the member with the most
// photos, which is the one most likely to carry a human-assigned name.
// Groups are processed independently; identities that vanish mid-pass are
// skipped. With fewer than two identities the pass is a no-op.
func (s *Service) Recluster(ctx context.Context) (ReclusterResult, error) {
	identities, err := s.store.ListIdentities(ctx)
	if err != nil {
		return ReclusterResult{}, fmt.Errorf("failed to list identities: %w", err)
	}
	if len(identities) < 2 {
		return ReclusterResult{Groups: len(identities)}, nil
	}

	groups := cluster.GroupIdentities(identities, s.clusterEps)

	result := ReclusterResult{Groups: len(groups)}
	for _, group := range groups {
		if len(group) < 2 {
			continue
		}

		// Re-fetch group members: an earlier group's merge may have deleted
		// some of them.
		var members []*database.Identity
		for _, id := range group {
			ident, err := s.store.GetIdentity(ctx, id)
			if err != nil {
				continue
			}
			members = append(members, ident)
		}
		if len(members) < 2 {
			continue
		}

		sort.SliceStable(members, func(i, j int) bool {
			return members[i].PhotoCount > members[j].PhotoCount
		})

		target := members[0]
		sources := make([]string, 0, len(members)-1)
		for _, m := range members[1:] {
			sources = append(sources, m.ID)
		}

		mergeResult, err := s.Merge(ctx, target.ID, sources)
		if err != nil {
			// One failed group must not fail the whole pass.
			log.Printf("recluster: merge into %s failed: %v", target.ID, err)
			continue
		}
		result.Merged += mergeResult.Merged
	}

	return result, nil
}

// Rename assigns a human label to an identity. The pipeline itself never
// sets names; this is the tagging entry point.
func (s *Service) Rename(ctx context.Context, id, name string) (*database.Identity, error) {
	if err := s.store.RenameIdentity(ctx, id, name); err != nil {
		return nil, err
	}
	return s.store.GetIdentity(ctx, id)
}

// List returns identities matching the options, most-photographed first.
func (s *Service) List(ctx context.Context, opts database.ListOptions) ([]database.Identity, error) {
	return s.store.ListIdentitiesFiltered(ctx, opts)
}

// Get returns one identity.
func (s *Service) Get(ctx context.Context, id string) (*database.Identity, error) {
	return s.store.GetIdentity(ctx, id)
}

// PhotosOf returns the occurrences assigned to an identity, or
// database.ErrNotFound if the identity does not exist.
func (s *Service) PhotosOf(ctx context.Context, id string) ([]database.Occurrence, error) {
	if _, err := s.store.GetIdentity(ctx, id); err != nil {
		return nil, err
	}
	return s.store.ListOccurrencesByIdentity(ctx, id)
}

// SearchByName returns named identities whose normalized name contains the
// normalized query (case- and diacritics-insensitive).
func (s *Service) SearchByName(ctx context.Context, name string) ([]database.Identity, error) {
	query := NormalizeName(name)
	if query == "" {
		return nil, nil
	}

	named, err := s.store.ListIdentitiesFiltered(ctx, database.ListOptions{NamedOnly: true, Limit: 500})
	if err != nil {
		return nil, err
	}

	var out []database.Identity
	for _, ident := range named {
		if strings.Contains(NormalizeName(ident.Name), query) {
			out = append(out, ident)
		}
	}
	return out, nil
}

// WorkerStatus is the part of the ingestion worker the status report needs.
type WorkerStatus interface {
	Available() bool
	QueueDepth() int
}

// Status summarizes pipeline availability and identity counts so operators
// can see why faces are or are not being grouped.
type Status struct {
	Available   bool `json:"ai_available"`
	QueueDepth  int  `json:"queue_depth"`
	Identities  int  `json:"total_faces"`
	Named       int  `json:"named_faces"`
	Occurrences int  `json:"total_photo_faces"`
}

// Status reports the pipeline status.
func (s *Service) Status(ctx context.Context, worker WorkerStatus) (Status, error) {
	counts, err := s.store.Counts(ctx)
	if err != nil {
		return Status{}, fmt.Errorf("failed to count identities: %w", err)
	}
	status := Status{
		Identities:  counts.Identities,
		Named:       counts.Named,
		Occurrences: counts.Occurrences,
	}
	if worker != nil {
		status.Available = worker.Available()
		status.QueueDepth = worker.QueueDepth()
	}
	return status, nil
}
