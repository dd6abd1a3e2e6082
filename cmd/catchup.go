package cmd

import (
	"context"
	"errors"
	"fmt"

	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"

	"github.com/mhoracek/homeframe/internal/config"
	"github.com/mhoracek/homeframe/internal/database/postgres"
	"github.com/mhoracek/homeframe/internal/vision"
	"github.com/mhoracek/homeframe/internal/worker"
)

var catchupCmd = &cobra.Command{
	Use:   "catchup",
	Short: "Process photos that have not been scanned for faces",
	Long: `Scan every photo without face data through the detection and
embedding pipeline. The serve command does this automatically on startup;
use this to run the sweep in the foreground with a progress bar, for
example after importing a large library.

Processing is idempotent, photos that already have face data are skipped.`,
	RunE: runCatchup,
}

func init() {
	rootCmd.AddCommand(catchupCmd)
}

func runCatchup(cmd *cobra.Command, args []string) error {
	cfg := config.Load()

	if cfg.Database.URL == "" {
		return errors.New("DATABASE_URL environment variable is required")
	}

	ctx := context.Background()
	pool, err := postgres.Connect(ctx, &cfg.Database)
	if err != nil {
		return fmt.Errorf("failed to connect to PostgreSQL: %w", err)
	}
	defer pool.Close()

	if err := postgres.Migrate(ctx, pool); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	faceRepo := postgres.NewFaceRepository(pool)
	photoRepo := postgres.NewPhotoRepository(pool)

	client := vision.NewClient(cfg.Vision.URL)
	detector := vision.NewDetector(client, cfg.Models.Models.Detector.Name, cfg.Pipeline.DetectConfidence)
	embedder := vision.NewEmbedder(client, cfg.Models.Models.Embedder.Name, cfg.Models.Models.Embedder.Dim)

	if !detector.Load(ctx) || !embedder.Load(ctx) {
		return errors.New("vision service unavailable, cannot process photos")
	}

	ids, err := photoRepo.ListUnprocessedPhotoIDs(ctx)
	if err != nil {
		return fmt.Errorf("failed to list unprocessed photos: %w", err)
	}
	if len(ids) == 0 {
		fmt.Println("All photos already processed")
		return nil
	}

	fmt.Printf("Photos to process: %d\n\n", len(ids))

	bar := progressbar.NewOptions(len(ids),
		progressbar.OptionSetDescription("Detecting faces"),
		progressbar.OptionShowCount(),
		progressbar.OptionShowIts(),
		progressbar.OptionSetItsString("photos"),
		progressbar.OptionShowElapsedTimeOnFinish(),
		progressbar.OptionSetPredictTime(true),
		progressbar.OptionFullWidth(),
	)

	w := worker.New(faceRepo, photoRepo, detector, embedder, worker.Config{
		MatchThreshold: cfg.Pipeline.MatchThreshold,
	})

	errorCount := 0
	for _, id := range ids {
		if err := w.ProcessPhoto(ctx, id); err != nil {
			errorCount++
		}
		bar.Add(1)
	}
	fmt.Println()

	if errorCount > 0 {
		fmt.Printf("Done with %d errors\n", errorCount)
	} else {
		fmt.Println("Done")
	}
	return nil
}
