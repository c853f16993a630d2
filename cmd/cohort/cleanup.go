package main

import (
	"context"
	"fmt"

	"github.com/alecgard/cohort/internal/config"
	"github.com/alecgard/cohort/internal/session"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/spf13/cobra"
)

var cleanupCmd = &cobra.Command{
	Use:   "cleanup",
	Short: "Delete expired sessions",
	Long:  "Deletes every session past its expiry in one sweep. Intended to be run from cron; live traffic cleans up lazily on read, this removes rows nobody reads anymore.",
	RunE:  runCleanup,
}

func init() {
	rootCmd.AddCommand(cleanupCmd)
}

func runCleanup(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return err
	}

	ctx := context.Background()
	pool, err := pgxpool.New(ctx, cfg.Database.URL)
	if err != nil {
		return err
	}
	defer pool.Close()

	store := session.NewStore(pool)
	purged, err := store.CleanupExpired(ctx)
	if err != nil {
		return fmt.Errorf("sweeping expired sessions: %w", err)
	}

	fmt.Printf("purged %d expired sessions\n", purged)
	return nil
}
