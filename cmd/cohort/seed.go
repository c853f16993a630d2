package main

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/alecgard/cohort/internal/config"
	"github.com/alecgard/cohort/internal/password"
	"github.com/alecgard/cohort/internal/team"
	"github.com/alecgard/cohort/internal/user"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/spf13/cobra"
)

var seedCmd = &cobra.Command{
	Use:   "seed",
	Short: "Seed the org hierarchy and an initial admin user",
	RunE:  runSeed,
}

func init() {
	rootCmd.AddCommand(seedCmd)
}

func runSeed(cmd *cobra.Command, args []string) error {
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

	teamStore := team.NewStore(pool)
	userStore := user.NewStore(pool)

	// Check if seed has already run.
	existing, err := teamStore.Root(ctx)
	if err != nil {
		return fmt.Errorf("checking existing root team: %w", err)
	}
	if existing != nil {
		slog.Info("root team already exists, skipping seed", "team_id", existing.ID)
		return nil
	}

	company, err := teamStore.Create(ctx, team.CreateParams{Name: "Company", IsRoot: true})
	if err != nil {
		return fmt.Errorf("creating root team: %w", err)
	}
	slog.Info("created team", "name", company.Name, "id", company.ID)

	operations, err := teamStore.Create(ctx, team.CreateParams{Name: "Operations", ParentID: &company.ID})
	if err != nil {
		return fmt.Errorf("creating operations team: %w", err)
	}
	slog.Info("created team", "name", operations.Name, "id", operations.ID)

	for _, name := range []string{"Finance", "Marketing"} {
		t, err := teamStore.Create(ctx, team.CreateParams{Name: name, ParentID: &operations.ID})
		if err != nil {
			return fmt.Errorf("creating %s team: %w", name, err)
		}
		slog.Info("created team", "name", t.Name, "id", t.ID)
	}

	// Initial admin with a generated password printed once.
	adminPassword, err := password.GenerateRandom(16)
	if err != nil {
		return fmt.Errorf("generating admin password: %w", err)
	}
	hash, err := password.Hash(adminPassword)
	if err != nil {
		return fmt.Errorf("hashing admin password: %w", err)
	}

	admin, err := userStore.Create(ctx, user.CreateParams{
		Email:        "admin@example.com",
		PasswordHash: hash,
		FirstName:    "Admin",
		LastName:     "User",
		Role:         user.RoleAdmin,
		TeamID:       company.ID,
	})
	if err != nil {
		return fmt.Errorf("creating admin user: %w", err)
	}

	slog.Info("created admin user", "id", admin.ID, "email", admin.Email)
	fmt.Printf("\n=== Seed Complete ===\n")
	fmt.Printf("Root team:  %s (%s)\n", company.Name, company.ID)
	fmt.Printf("Admin:      %s\n", admin.Email)
	fmt.Printf("Password:   %s\n", adminPassword)
	fmt.Printf("\nTry it:\n")
	fmt.Printf("  curl -X POST http://localhost:8080/api/v1/auth/login -d '{\"email\":\"%s\",\"password\":\"%s\"}'\n", admin.Email, adminPassword)

	return nil
}
