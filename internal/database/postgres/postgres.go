// Package postgres implements the identity store on PostgreSQL with the
// pgvector extension for centroid storage.
package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/mhoracek/homeframe/internal/config"
	"github.com/mhoracek/homeframe/internal/vector"
)

// Connect creates a connection pool and verifies the database is reachable.
func Connect(ctx context.Context, cfg *config.DatabaseConfig) (*pgxpool.Pool, error) {
	if cfg.URL == "" {
		return nil, fmt.Errorf("DATABASE_URL not set")
	}

	poolCfg, err := pgxpool.ParseConfig(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse database URL: %w", err)
	}
	if cfg.MaxConns > 0 {
		poolCfg.MaxConns = int32(cfg.MaxConns)
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return pool, nil
}

// Migrate creates the pgvector extension and the pipeline tables.
func Migrate(ctx context.Context, pool *pgxpool.Pool) error {
	if _, err := pool.Exec(ctx, "CREATE EXTENSION IF NOT EXISTS vector"); err != nil {
		return fmt.Errorf("failed to create vector extension: %w", err)
	}

	createFaces := fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS faces (
			id           VARCHAR(36) PRIMARY KEY,
			name         VARCHAR(255) NOT NULL DEFAULT '',
			embedding    vector(%d),
			photo_count  INTEGER NOT NULL DEFAULT 0,
			created_at   TIMESTAMP WITH TIME ZONE DEFAULT NOW()
		)
	`, vector.Dim)
	if _, err := pool.Exec(ctx, createFaces); err != nil {
		return fmt.Errorf("failed to create faces table: %w", err)
	}

	createPhotoFaces := `
		CREATE TABLE IF NOT EXISTS photo_faces (
			id           BIGSERIAL PRIMARY KEY,
			photo_id     VARCHAR(36) NOT NULL,
			face_id      VARCHAR(36) NOT NULL REFERENCES faces(id) ON DELETE CASCADE,
			bbox         DOUBLE PRECISION[4] NOT NULL,
			confidence   DOUBLE PRECISION NOT NULL,
			embedding    BYTEA,
			created_at   TIMESTAMP WITH TIME ZONE DEFAULT NOW()
		)
	`
	if _, err := pool.Exec(ctx, createPhotoFaces); err != nil {
		return fmt.Errorf("failed to create photo_faces table: %w", err)
	}

	indexes := []string{
		"CREATE INDEX IF NOT EXISTS idx_photo_faces_photo ON photo_faces (photo_id)",
		"CREATE INDEX IF NOT EXISTS idx_photo_faces_face ON photo_faces (face_id)",
	}
	for _, stmt := range indexes {
		if _, err := pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("failed to create index: %w", err)
		}
	}

	createPhotos := `
		CREATE TABLE IF NOT EXISTS photos (
			id           VARCHAR(36) PRIMARY KEY,
			file_path    TEXT NOT NULL,
			is_video     BOOLEAN NOT NULL DEFAULT FALSE,
			status       VARCHAR(32) NOT NULL DEFAULT 'active',
			created_at   TIMESTAMP WITH TIME ZONE DEFAULT NOW()
		)
	`
	if _, err := pool.Exec(ctx, createPhotos); err != nil {
		return fmt.Errorf("failed to create photos table: %w", err)
	}

	return nil
}
