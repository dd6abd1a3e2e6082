package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pgvector/pgvector-go"

	"github.com/mhoracek/homeframe/internal/database"
	"github.com/mhoracek/homeframe/internal/vector"
)

// FaceRepository implements database.FaceStore on PostgreSQL.
type FaceRepository struct {
	pool *pgxpool.Pool
}

// NewFaceRepository creates a new face repository.
func NewFaceRepository(pool *pgxpool.Pool) *FaceRepository {
	return &FaceRepository{pool: pool}
}

func scanIdentity(row pgx.Row) (*database.Identity, error) {
	var ident database.Identity
	var vec *pgvector.Vector
	if err := row.Scan(&ident.ID, &ident.Name, &vec, &ident.PhotoCount, &ident.CreatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, database.ErrNotFound
		}
		return nil, err
	}
	if vec != nil {
		ident.Centroid = vec.Slice()
	}
	return &ident, nil
}

// GetIdentity retrieves an identity by ID.
func (r *FaceRepository) GetIdentity(ctx context.Context, id string) (*database.Identity, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT id, name, embedding, photo_count, created_at
		FROM faces
		WHERE id = $1
	`, id)
	return scanIdentity(row)
}

func (r *FaceRepository) listIdentities(ctx context.Context, query string, args ...any) ([]database.Identity, error) {
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var identities []database.Identity
	for rows.Next() {
		var ident database.Identity
		var vec *pgvector.Vector
		if err := rows.Scan(&ident.ID, &ident.Name, &vec, &ident.PhotoCount, &ident.CreatedAt); err != nil {
			return nil, err
		}
		if vec != nil {
			ident.Centroid = vec.Slice()
		}
		identities = append(identities, ident)
	}

	return identities, rows.Err()
}

// ListIdentities returns all identities with a centroid, ordered by ID.
func (r *FaceRepository) ListIdentities(ctx context.Context) ([]database.Identity, error) {
	return r.listIdentities(ctx, `
		SELECT id, name, embedding, photo_count, created_at
		FROM faces
		WHERE embedding IS NOT NULL
		ORDER BY id
	`)
}

// ListIdentitiesFiltered returns identities matching the listing options,
// most-photographed first.
func (r *FaceRepository) ListIdentitiesFiltered(ctx context.Context, opts database.ListOptions) ([]database.Identity, error) {
	query := `
		SELECT id, name, embedding, photo_count, created_at
		FROM faces
		WHERE photo_count >= $1
	`
	if opts.NamedOnly {
		query += " AND name <> ''"
	}
	query += " ORDER BY photo_count DESC, id LIMIT $2"

	minPhotos := opts.MinPhotos
	if minPhotos < 1 {
		minPhotos = 1
	}
	limit := opts.Limit
	if limit <= 0 {
		limit = 100
	}
	return r.listIdentities(ctx, query, minPhotos, limit)
}

// CreateIdentity inserts a new identity.
func (r *FaceRepository) CreateIdentity(ctx context.Context, identity *database.Identity) error {
	vec := pgvector.NewVector(identity.Centroid)
	err := r.pool.QueryRow(ctx, `
		INSERT INTO faces (id, name, embedding, photo_count, created_at)
		VALUES ($1, $2, $3, $4, NOW())
		RETURNING created_at
	`, identity.ID, identity.Name, vec, identity.PhotoCount).Scan(&identity.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to insert identity: %w", err)
	}
	return nil
}

// UpdateIdentity persists a new centroid and photo count.
func (r *FaceRepository) UpdateIdentity(ctx context.Context, identity *database.Identity) error {
	vec := pgvector.NewVector(identity.Centroid)
	tag, err := r.pool.Exec(ctx, `
		UPDATE faces SET embedding = $2, photo_count = $3 WHERE id = $1
	`, identity.ID, vec, identity.PhotoCount)
	if err != nil {
		return fmt.Errorf("failed to update identity: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return database.ErrNotFound
	}
	return nil
}

// RenameIdentity assigns a human label to an identity.
func (r *FaceRepository) RenameIdentity(ctx context.Context, id, name string) error {
	tag, err := r.pool.Exec(ctx, "UPDATE faces SET name = $2 WHERE id = $1", id, name)
	if err != nil {
		return fmt.Errorf("failed to rename identity: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return database.ErrNotFound
	}
	return nil
}

// DeleteIdentity removes an identity. Remaining occurrence links are removed
// by the ON DELETE CASCADE constraint; callers reassign them first.
func (r *FaceRepository) DeleteIdentity(ctx context.Context, id string) error {
	tag, err := r.pool.Exec(ctx, "DELETE FROM faces WHERE id = $1", id)
	if err != nil {
		return fmt.Errorf("failed to delete identity: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return database.ErrNotFound
	}
	return nil
}

// RecordFace persists an identity mutation and its occurrence link in one
// transaction. A failure on either statement rolls back both, so the photo
// count on the identity row always matches the stored links.
func (r *FaceRepository) RecordFace(ctx context.Context, identity *database.Identity, isNew bool, occ *database.Occurrence) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	vec := pgvector.NewVector(identity.Centroid)
	if isNew {
		err := tx.QueryRow(ctx, `
			INSERT INTO faces (id, name, embedding, photo_count, created_at)
			VALUES ($1, $2, $3, $4, NOW())
			RETURNING created_at
		`, identity.ID, identity.Name, vec, identity.PhotoCount).Scan(&identity.CreatedAt)
		if err != nil {
			return fmt.Errorf("failed to insert identity: %w", err)
		}
	} else {
		tag, err := tx.Exec(ctx, `
			UPDATE faces SET embedding = $2, photo_count = $3 WHERE id = $1
		`, identity.ID, vec, identity.PhotoCount)
		if err != nil {
			return fmt.Errorf("failed to update identity: %w", err)
		}
		if tag.RowsAffected() == 0 {
			return database.ErrNotFound
		}
	}

	bbox := []float64{occ.BBox[0], occ.BBox[1], occ.BBox[2], occ.BBox[3]}
	err = tx.QueryRow(ctx, `
		INSERT INTO photo_faces (photo_id, face_id, bbox, confidence, embedding, created_at)
		VALUES ($1, $2, $3, $4, $5, NOW())
		RETURNING id, created_at
	`, occ.PhotoID, occ.IdentityID, bbox, occ.Confidence, vector.Encode(occ.Embedding)).Scan(&occ.ID, &occ.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to insert occurrence: %w", err)
	}

	return tx.Commit(ctx)
}

// ApplyMerge reassigns the sources' occurrences to the target, recounts the
// target, writes its centroid and count, and deletes the sources in one
// transaction. The recount replaces target.PhotoCount before the row is
// written, so stale source counts cannot corrupt the target and a failure
// anywhere leaves every count matching its links.
func (r *FaceRepository) ApplyMerge(ctx context.Context, target *database.Identity, sourceIDs []string) (int, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return 0, err
	}
	defer tx.Rollback(ctx)

	moved := 0
	for _, srcID := range sourceIDs {
		tag, err := tx.Exec(ctx, "UPDATE photo_faces SET face_id = $2 WHERE face_id = $1", srcID, target.ID)
		if err != nil {
			return 0, fmt.Errorf("failed to reassign occurrences from %s: %w", srcID, err)
		}
		moved += int(tag.RowsAffected())
	}

	var count int
	if err := tx.QueryRow(ctx, "SELECT COUNT(*) FROM photo_faces WHERE face_id = $1", target.ID).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to recount occurrences: %w", err)
	}
	target.PhotoCount = count

	vec := pgvector.NewVector(target.Centroid)
	tag, err := tx.Exec(ctx, `
		UPDATE faces SET embedding = $2, photo_count = $3 WHERE id = $1
	`, target.ID, vec, target.PhotoCount)
	if err != nil {
		return 0, fmt.Errorf("failed to update merge target: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return 0, database.ErrNotFound
	}

	for _, srcID := range sourceIDs {
		if _, err := tx.Exec(ctx, "DELETE FROM faces WHERE id = $1", srcID); err != nil {
			return 0, fmt.Errorf("failed to delete merged identity %s: %w", srcID, err)
		}
	}

	return moved, tx.Commit(ctx)
}

// InsertOccurrence stores one detected face instance. The face embedding is
// serialized as little-endian float32 bytes.
func (r *FaceRepository) InsertOccurrence(ctx context.Context, occ *database.Occurrence) error {
	bbox := []float64{occ.BBox[0], occ.BBox[1], occ.BBox[2], occ.BBox[3]}
	err := r.pool.QueryRow(ctx, `
		INSERT INTO photo_faces (photo_id, face_id, bbox, confidence, embedding, created_at)
		VALUES ($1, $2, $3, $4, $5, NOW())
		RETURNING id, created_at
	`, occ.PhotoID, occ.IdentityID, bbox, occ.Confidence, vector.Encode(occ.Embedding)).Scan(&occ.ID, &occ.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to insert occurrence: %w", err)
	}
	return nil
}

func (r *FaceRepository) listOccurrences(ctx context.Context, query string, arg string) ([]database.Occurrence, error) {
	rows, err := r.pool.Query(ctx, query, arg)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var occs []database.Occurrence
	for rows.Next() {
		var occ database.Occurrence
		var bbox []float64
		var raw []byte
		if err := rows.Scan(&occ.ID, &occ.PhotoID, &occ.IdentityID, &bbox, &occ.Confidence, &raw, &occ.CreatedAt); err != nil {
			return nil, err
		}
		if len(bbox) == 4 {
			copy(occ.BBox[:], bbox)
		}
		if len(raw) > 0 {
			emb, err := vector.Decode(raw)
			if err != nil {
				return nil, fmt.Errorf("corrupt embedding on occurrence %d: %w", occ.ID, err)
			}
			occ.Embedding = emb
		}
		occs = append(occs, occ)
	}

	return occs, rows.Err()
}

// ListOccurrencesByPhoto returns all occurrences detected in a photo.
func (r *FaceRepository) ListOccurrencesByPhoto(ctx context.Context, photoID string) ([]database.Occurrence, error) {
	return r.listOccurrences(ctx, `
		SELECT id, photo_id, face_id, bbox, confidence, embedding, created_at
		FROM photo_faces
		WHERE photo_id = $1
		ORDER BY id
	`, photoID)
}

// ListOccurrencesByIdentity returns all occurrences assigned to an identity.
func (r *FaceRepository) ListOccurrencesByIdentity(ctx context.Context, identityID string) ([]database.Occurrence, error) {
	return r.listOccurrences(ctx, `
		SELECT id, photo_id, face_id, bbox, confidence, embedding, created_at
		FROM photo_faces
		WHERE face_id = $1
		ORDER BY id
	`, identityID)
}

// ReassignOccurrences moves all occurrences from one identity to another.
func (r *FaceRepository) ReassignOccurrences(ctx context.Context, fromID, toID string) (int, error) {
	tag, err := r.pool.Exec(ctx, "UPDATE photo_faces SET face_id = $2 WHERE face_id = $1", fromID, toID)
	if err != nil {
		return 0, fmt.Errorf("failed to reassign occurrences: %w", err)
	}
	return int(tag.RowsAffected()), nil
}

// CountOccurrences returns the number of occurrences referencing an identity.
func (r *FaceRepository) CountOccurrences(ctx context.Context, identityID string) (int, error) {
	var count int
	err := r.pool.QueryRow(ctx, "SELECT COUNT(*) FROM photo_faces WHERE face_id = $1", identityID).Scan(&count)
	return count, err
}

// HasOccurrences checks whether a photo has already been processed.
func (r *FaceRepository) HasOccurrences(ctx context.Context, photoID string) (bool, error) {
	var exists bool
	err := r.pool.QueryRow(ctx, `
		SELECT EXISTS(SELECT 1 FROM photo_faces WHERE photo_id = $1)
	`, photoID).Scan(&exists)
	return exists, err
}

// Counts returns summary counts for status reporting.
func (r *FaceRepository) Counts(ctx context.Context) (database.IdentityCounts, error) {
	var counts database.IdentityCounts
	err := r.pool.QueryRow(ctx, `
		SELECT
			(SELECT COUNT(*) FROM faces),
			(SELECT COUNT(*) FROM faces WHERE name <> ''),
			(SELECT COUNT(*) FROM photo_faces)
	`).Scan(&counts.Identities, &counts.Named, &counts.Occurrences)
	return counts, err
}
