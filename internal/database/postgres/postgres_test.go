//go:build integration

package postgres

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/mhoracek/homeframe/internal/config"
	"github.com/mhoracek/homeframe/internal/database"
	"github.com/mhoracek/homeframe/internal/vector"
)

func setupTestContainer(t *testing.T) (*pgxpool.Pool, func()) {
	ctx := context.Background()

	req := testcontainers.ContainerRequest{
		Image:        "pgvector/pgvector:pg16",
		ExposedPorts: []string{"5432/tcp"},
		Env: map[string]string{
			"POSTGRES_USER":     "test",
			"POSTGRES_PASSWORD": "test",
			"POSTGRES_DB":       "testdb",
		},
		WaitingFor: wait.ForLog("database system is ready to accept connections").
			WithOccurrence(2).
			WithStartupTimeout(60 * time.Second),
	}

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	if err != nil {
		t.Skipf("Docker not available or container failed to start, skipping integration test: %v", err)
		return nil, func() {}
	}
	if container == nil {
		t.Skip("Docker not available, skipping integration test")
		return nil, func() {}
	}

	host, err := container.Host(ctx)
	if err != nil {
		t.Fatalf("Failed to get container host: %v", err)
	}

	port, err := container.MappedPort(ctx, "5432")
	if err != nil {
		t.Fatalf("Failed to get container port: %v", err)
	}

	dbURL := fmt.Sprintf("postgres://test:test@%s:%s/testdb?sslmode=disable", host, port.Port())

	pool, err := Connect(ctx, &config.DatabaseConfig{URL: dbURL, MaxConns: 5})
	if err != nil {
		container.Terminate(ctx)
		t.Fatalf("Failed to connect: %v", err)
	}

	if err := Migrate(ctx, pool); err != nil {
		pool.Close()
		container.Terminate(ctx)
		t.Fatalf("Failed to run migrations: %v", err)
	}

	cleanup := func() {
		pool.Close()
		container.Terminate(ctx)
	}

	return pool, cleanup
}

func testCentroid(seed float32) []float32 {
	v := make([]float32, vector.Dim)
	v[0] = 1
	v[1] = seed
	return vector.Normalize(v)
}

func insertPhoto(t *testing.T, pool *pgxpool.Pool, id string) {
	t.Helper()
	_, err := pool.Exec(context.Background(), `
		INSERT INTO photos (id, file_path) VALUES ($1, $2)
	`, id, "/photos/"+id+".jpg")
	if err != nil {
		t.Fatalf("Failed to insert photo: %v", err)
	}
}

func TestFaceRepository(t *testing.T) {
	pool, cleanup := setupTestContainer(t)
	if pool == nil {
		return
	}
	defer cleanup()

	ctx := context.Background()
	repo := NewFaceRepository(pool)

	t.Run("CreateAndGet", func(t *testing.T) {
		ident := &database.Identity{
			ID:         "face-1",
			Centroid:   testCentroid(0.1),
			PhotoCount: 1,
		}
		if err := repo.CreateIdentity(ctx, ident); err != nil {
			t.Fatalf("Failed to create identity: %v", err)
		}

		got, err := repo.GetIdentity(ctx, "face-1")
		if err != nil {
			t.Fatalf("Failed to get identity: %v", err)
		}
		if got.ID != "face-1" || got.PhotoCount != 1 {
			t.Errorf("Unexpected identity: %+v", got)
		}
		if len(got.Centroid) != vector.Dim {
			t.Errorf("Expected %d dimensions, got %d", vector.Dim, len(got.Centroid))
		}
		if dist := vector.CosineDistance(got.Centroid, ident.Centroid); dist > 1e-5 {
			t.Errorf("Centroid round-trip drifted, distance %f", dist)
		}
	})

	t.Run("GetMissing", func(t *testing.T) {
		if _, err := repo.GetIdentity(ctx, "missing"); !errors.Is(err, database.ErrNotFound) {
			t.Errorf("Expected ErrNotFound, got %v", err)
		}
	})

	t.Run("Rename", func(t *testing.T) {
		if err := repo.RenameIdentity(ctx, "face-1", "Anna"); err != nil {
			t.Fatalf("Failed to rename: %v", err)
		}
		got, err := repo.GetIdentity(ctx, "face-1")
		if err != nil {
			t.Fatalf("Failed to get identity: %v", err)
		}
		if got.Name != "Anna" {
			t.Errorf("Expected name 'Anna', got '%s'", got.Name)
		}

		if err := repo.RenameIdentity(ctx, "missing", "Bob"); !errors.Is(err, database.ErrNotFound) {
			t.Errorf("Expected ErrNotFound, got %v", err)
		}
	})

	t.Run("Update", func(t *testing.T) {
		got, err := repo.GetIdentity(ctx, "face-1")
		if err != nil {
			t.Fatalf("Failed to get identity: %v", err)
		}
		got.Centroid = testCentroid(0.2)
		got.PhotoCount = 5
		if err := repo.UpdateIdentity(ctx, got); err != nil {
			t.Fatalf("Failed to update: %v", err)
		}

		updated, err := repo.GetIdentity(ctx, "face-1")
		if err != nil {
			t.Fatalf("Failed to get identity: %v", err)
		}
		if updated.PhotoCount != 5 {
			t.Errorf("Expected photo count 5, got %d", updated.PhotoCount)
		}
	})

	t.Run("OccurrencesAndReassign", func(t *testing.T) {
		second := &database.Identity{ID: "face-2", Centroid: testCentroid(0.3), PhotoCount: 0}
		if err := repo.CreateIdentity(ctx, second); err != nil {
			t.Fatalf("Failed to create identity: %v", err)
		}

		insertPhoto(t, pool, "p1")
		insertPhoto(t, pool, "p2")

		faceEmbedding := testCentroid(0.5)
		occs := []database.Occurrence{
			{PhotoID: "p1", IdentityID: "face-1", BBox: [4]float64{0.1, 0.2, 0.3, 0.4}, Confidence: 0.9, Embedding: faceEmbedding},
			{PhotoID: "p2", IdentityID: "face-2", BBox: [4]float64{0.2, 0.2, 0.2, 0.2}, Confidence: 0.8},
		}
		for i := range occs {
			if err := repo.InsertOccurrence(ctx, &occs[i]); err != nil {
				t.Fatalf("Failed to insert occurrence: %v", err)
			}
		}

		byPhoto, err := repo.ListOccurrencesByPhoto(ctx, "p1")
		if err != nil {
			t.Fatalf("Failed to list by photo: %v", err)
		}
		if len(byPhoto) != 1 || byPhoto[0].IdentityID != "face-1" {
			t.Errorf("Unexpected occurrences: %+v", byPhoto)
		}
		if byPhoto[0].BBox != [4]float64{0.1, 0.2, 0.3, 0.4} {
			t.Errorf("BBox round-trip failed: %v", byPhoto[0].BBox)
		}
		if len(byPhoto[0].Embedding) != vector.Dim {
			t.Fatalf("Expected %d-dim embedding, got %d", vector.Dim, len(byPhoto[0].Embedding))
		}
		for i := range faceEmbedding {
			if byPhoto[0].Embedding[i] != faceEmbedding[i] {
				t.Fatalf("Embedding round-trip not bitwise at index %d", i)
			}
		}

		has, err := repo.HasOccurrences(ctx, "p1")
		if err != nil {
			t.Fatalf("Failed to check occurrences: %v", err)
		}
		if !has {
			t.Error("Expected p1 to have occurrences")
		}

		moved, err := repo.ReassignOccurrences(ctx, "face-2", "face-1")
		if err != nil {
			t.Fatalf("Failed to reassign: %v", err)
		}
		if moved != 1 {
			t.Errorf("Expected 1 moved, got %d", moved)
		}

		count, err := repo.CountOccurrences(ctx, "face-1")
		if err != nil {
			t.Fatalf("Failed to count: %v", err)
		}
		if count != 2 {
			t.Errorf("Expected 2 occurrences, got %d", count)
		}
	})

	t.Run("ListFiltered", func(t *testing.T) {
		identities, err := repo.ListIdentitiesFiltered(ctx, database.ListOptions{NamedOnly: true, MinPhotos: 1, Limit: 10})
		if err != nil {
			t.Fatalf("Failed to list filtered: %v", err)
		}
		if len(identities) != 1 || identities[0].ID != "face-1" {
			t.Errorf("Expected only face-1, got %+v", identities)
		}
	})

	t.Run("Counts", func(t *testing.T) {
		counts, err := repo.Counts(ctx)
		if err != nil {
			t.Fatalf("Failed to count: %v", err)
		}
		if counts.Identities != 2 || counts.Named != 1 || counts.Occurrences != 2 {
			t.Errorf("Unexpected counts: %+v", counts)
		}
	})

	t.Run("DeleteCascades", func(t *testing.T) {
		if err := repo.DeleteIdentity(ctx, "face-2"); err != nil {
			t.Fatalf("Failed to delete: %v", err)
		}
		if _, err := repo.GetIdentity(ctx, "face-2"); !errors.Is(err, database.ErrNotFound) {
			t.Errorf("Expected ErrNotFound after delete, got %v", err)
		}
	})

	t.Run("RecordFaceAtomic", func(t *testing.T) {
		insertPhoto(t, pool, "p3")
		insertPhoto(t, pool, "p4")

		ident := &database.Identity{ID: "face-3", Centroid: testCentroid(0.7), PhotoCount: 1}
		occ := &database.Occurrence{PhotoID: "p3", IdentityID: "face-3", BBox: [4]float64{0.1, 0.1, 0.2, 0.2}, Confidence: 0.9, Embedding: testCentroid(0.7)}
		if err := repo.RecordFace(ctx, ident, true, occ); err != nil {
			t.Fatalf("Failed to record new face: %v", err)
		}
		if occ.ID == 0 {
			t.Error("Expected occurrence ID to be assigned")
		}

		ident.PhotoCount = 2
		occ2 := &database.Occurrence{PhotoID: "p4", IdentityID: "face-3", BBox: [4]float64{0.2, 0.2, 0.3, 0.3}, Confidence: 0.8}
		if err := repo.RecordFace(ctx, ident, false, occ2); err != nil {
			t.Fatalf("Failed to record matched face: %v", err)
		}

		// The occurrence insert violates the face_id constraint, which must
		// roll the count update back with it.
		ident.PhotoCount = 3
		bad := &database.Occurrence{PhotoID: "p4", IdentityID: "ghost", Confidence: 0.9}
		if err := repo.RecordFace(ctx, ident, false, bad); err == nil {
			t.Fatal("Expected constraint violation on unknown identity")
		}

		got, err := repo.GetIdentity(ctx, "face-3")
		if err != nil {
			t.Fatalf("Failed to get identity: %v", err)
		}
		if got.PhotoCount != 2 {
			t.Errorf("Expected count 2 after rolled-back write, got %d", got.PhotoCount)
		}
		count, err := repo.CountOccurrences(ctx, "face-3")
		if err != nil {
			t.Fatalf("Failed to count: %v", err)
		}
		if count != 2 {
			t.Errorf("Expected 2 occurrences, got %d", count)
		}
	})

	t.Run("ApplyMerge", func(t *testing.T) {
		target, err := repo.GetIdentity(ctx, "face-1")
		if err != nil {
			t.Fatalf("Failed to get target: %v", err)
		}
		target.Centroid = testCentroid(0.4)

		moved, err := repo.ApplyMerge(ctx, target, []string{"face-3"})
		if err != nil {
			t.Fatalf("Failed to apply merge: %v", err)
		}
		if moved != 2 {
			t.Errorf("Expected 2 occurrences moved, got %d", moved)
		}
		// The recount replaces the stale count written by the Update subtest.
		if target.PhotoCount != 4 {
			t.Errorf("Expected recount 4, got %d", target.PhotoCount)
		}

		got, err := repo.GetIdentity(ctx, "face-1")
		if err != nil {
			t.Fatalf("Failed to get identity: %v", err)
		}
		if got.PhotoCount != 4 {
			t.Errorf("Expected stored count 4, got %d", got.PhotoCount)
		}
		if _, err := repo.GetIdentity(ctx, "face-3"); !errors.Is(err, database.ErrNotFound) {
			t.Errorf("Expected merged source deleted, got %v", err)
		}
	})
}

func TestPhotoRepository(t *testing.T) {
	pool, cleanup := setupTestContainer(t)
	if pool == nil {
		return
	}
	defer cleanup()

	ctx := context.Background()
	photos := NewPhotoRepository(pool)
	faces := NewFaceRepository(pool)

	insertPhoto(t, pool, "p1")
	insertPhoto(t, pool, "p2")
	_, err := pool.Exec(ctx, `INSERT INTO photos (id, file_path, is_video) VALUES ('v1', '/v1.mp4', TRUE)`)
	if err != nil {
		t.Fatalf("Failed to insert video: %v", err)
	}

	t.Run("GetPhoto", func(t *testing.T) {
		photo, err := photos.GetPhoto(ctx, "p1")
		if err != nil {
			t.Fatalf("Failed to get photo: %v", err)
		}
		if photo.Status != database.PhotoStatusActive || photo.IsVideo {
			t.Errorf("Unexpected photo: %+v", photo)
		}

		if _, err := photos.GetPhoto(ctx, "missing"); !errors.Is(err, database.ErrNotFound) {
			t.Errorf("Expected ErrNotFound, got %v", err)
		}
	})

	t.Run("ListUnprocessed", func(t *testing.T) {
		ident := &database.Identity{ID: "face-1", Centroid: testCentroid(0.1), PhotoCount: 1}
		if err := faces.CreateIdentity(ctx, ident); err != nil {
			t.Fatalf("Failed to create identity: %v", err)
		}
		occ := &database.Occurrence{PhotoID: "p1", IdentityID: "face-1", BBox: [4]float64{0, 0, 0.5, 0.5}, Confidence: 0.9}
		if err := faces.InsertOccurrence(ctx, occ); err != nil {
			t.Fatalf("Failed to insert occurrence: %v", err)
		}

		ids, err := photos.ListUnprocessedPhotoIDs(ctx)
		if err != nil {
			t.Fatalf("Failed to list unprocessed: %v", err)
		}
		// p1 is processed, v1 is a video; only p2 remains.
		if len(ids) != 1 || ids[0] != "p2" {
			t.Errorf("Expected [p2], got %v", ids)
		}
	})
}
