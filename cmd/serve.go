package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/mhoracek/homeframe/internal/config"
	"github.com/mhoracek/homeframe/internal/database/postgres"
	"github.com/mhoracek/homeframe/internal/faces"
	"github.com/mhoracek/homeframe/internal/vision"
	"github.com/mhoracek/homeframe/internal/web"
	"github.com/mhoracek/homeframe/internal/worker"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the photo server",
	Long: `Start the Homeframe server.
Runs database migrations, starts the face ingestion worker, sweeps any
photos uploaded while the server was down, and serves the HTTP API.`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().Int("port", 0, "Port to listen on (overrides WEB_PORT)")
	serveCmd.Flags().String("host", "", "Host to bind to (overrides WEB_HOST)")
}

// buildWorker wires the vision models and stores into an ingestion worker.
func buildWorker(cfg *config.Config, faceRepo *postgres.FaceRepository, photoRepo *postgres.PhotoRepository) *worker.Worker {
	client := vision.NewClient(cfg.Vision.URL)
	detector := vision.NewDetector(client, cfg.Models.Models.Detector.Name, cfg.Pipeline.DetectConfidence)
	embedder := vision.NewEmbedder(client, cfg.Models.Models.Embedder.Name, cfg.Models.Models.Embedder.Dim)

	return worker.New(faceRepo, photoRepo, detector, embedder, worker.Config{
		MatchThreshold: cfg.Pipeline.MatchThreshold,
	})
}

// resolveServeHostPort resolves host and port from flags, falling back to
// the environment-driven config.
func resolveServeHostPort(cmd *cobra.Command, cfg *config.Config) (string, int) {
	host := cfg.Web.Host
	port := cfg.Web.Port
	if flagHost := mustGetString(cmd, "host"); flagHost != "" {
		host = flagHost
	}
	if flagPort := mustGetInt(cmd, "port"); flagPort > 0 {
		port = flagPort
	}
	return host, port
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg := config.Load()

	if cfg.Database.URL == "" {
		return errors.New("DATABASE_URL environment variable is required")
	}

	ctx := context.Background()

	fmt.Printf("Connecting to PostgreSQL database...\n")
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
	service := faces.NewService(faceRepo, cfg.Pipeline.ClusterEps)

	w := buildWorker(cfg, faceRepo, photoRepo)
	if w.Start(ctx) {
		if n := w.CatchUp(ctx); n > 0 {
			fmt.Printf("Queued %d unprocessed photos for face detection\n", n)
		}
	} else {
		fmt.Println("Vision service unavailable, face detection disabled")
	}

	host, port := resolveServeHostPort(cmd, cfg)
	server := web.NewServer(service, photoRepo, w, host, port)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	go func() {
		<-sigChan
		fmt.Println("\nShutting down...")
		w.Stop()

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer shutdownCancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			fmt.Printf("Error during shutdown: %v\n", err)
		}
	}()

	fmt.Printf("Starting Homeframe on http://%s:%d\n", host, port)
	fmt.Println("Press Ctrl+C to stop")

	if err := server.Start(); err != nil {
		return fmt.Errorf("starting server: %w", err)
	}
	return nil
}
