package cmd

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/mhoracek/homeframe/internal/cluster"
	"github.com/mhoracek/homeframe/internal/config"
	"github.com/mhoracek/homeframe/internal/database/postgres"
	"github.com/mhoracek/homeframe/internal/faces"
)

var reclusterCmd = &cobra.Command{
	Use:   "recluster",
	Short: "Re-run face clustering over all identities",
	Long: `Re-run density-based clustering over all face identities and merge
clusters that belong to the same person. Online matching is greedy and can
split one person across several identities as their embeddings drift; this
command repairs that. Safe to run repeatedly.`,
	RunE: runRecluster,
}

func init() {
	rootCmd.AddCommand(reclusterCmd)

	reclusterCmd.Flags().Bool("dry-run", false, "Report groups without merging")
}

func runRecluster(cmd *cobra.Command, args []string) error {
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
	service := faces.NewService(faceRepo, cfg.Pipeline.ClusterEps)

	if mustGetBool(cmd, "dry-run") {
		identities, err := faceRepo.ListIdentities(ctx)
		if err != nil {
			return fmt.Errorf("failed to list identities: %w", err)
		}
		mergeable := 0
		groups := cluster.GroupIdentities(identities, cfg.Pipeline.ClusterEps)
		for _, group := range groups {
			if len(group) > 1 {
				mergeable++
				fmt.Printf("Would merge %d identities: %v\n", len(group), group)
			}
		}
		fmt.Printf("Found %d groups, %d of them mergeable\n", len(groups), mergeable)
		return nil
	}

	result, err := service.Recluster(ctx)
	if err != nil {
		return fmt.Errorf("recluster failed: %w", err)
	}

	fmt.Printf("Found %d groups, moved %d face occurrences\n", result.Groups, result.Merged)
	return nil
}
