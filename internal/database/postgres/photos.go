package postgres

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/mhoracek/homeframe/internal/database"
)

// PhotoRepository implements database.PhotoStore on PostgreSQL.
type PhotoRepository struct {
	pool *pgxpool.Pool
}

// NewPhotoRepository creates a new photo repository.
func NewPhotoRepository(pool *pgxpool.Pool) *PhotoRepository {
	return &PhotoRepository{pool: pool}
}

// GetPhoto retrieves a photo by ID.
func (r *PhotoRepository) GetPhoto(ctx context.Context, id string) (*database.Photo, error) {
	var photo database.Photo
	err := r.pool.QueryRow(ctx, `
		SELECT id, file_path, is_video, status
		FROM photos
		WHERE id = $1
	`, id).Scan(&photo.ID, &photo.FilePath, &photo.IsVideo, &photo.Status)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, database.ErrNotFound
		}
		return nil, err
	}
	return &photo, nil
}

// ListUnprocessedPhotoIDs returns active non-video photos with no occurrence
// links yet, oldest first so the catch-up sweep preserves upload order.
func (r *PhotoRepository) ListUnprocessedPhotoIDs(ctx context.Context) ([]string, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT p.id
		FROM photos p
		LEFT JOIN photo_faces pf ON pf.photo_id = p.id
		WHERE p.status = 'active' AND NOT p.is_video AND pf.id IS NULL
		GROUP BY p.id, p.created_at
		ORDER BY p.created_at
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}

	return ids, rows.Err()
}
