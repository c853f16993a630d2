package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/alecgard/cohort/internal/api"
	"github.com/alecgard/cohort/internal/auth"
	"github.com/alecgard/cohort/internal/cache"
	"github.com/alecgard/cohort/internal/config"
	"github.com/alecgard/cohort/internal/metrics"
	"github.com/alecgard/cohort/internal/session"
	"github.com/alecgard/cohort/internal/team"
	"github.com/alecgard/cohort/internal/user"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/spf13/cobra"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the Cohort server",
	RunE:  runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
	slog.SetDefault(logger)

	cfg, err := config.Load(cfgFile)
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	pool, err := pgxpool.New(ctx, cfg.Database.URL)
	if err != nil {
		return err
	}
	defer pool.Close()

	if err := pool.Ping(ctx); err != nil {
		return err
	}
	slog.Info("connected to database")

	m := metrics.New()
	m.RegisterDBPoolCollector(func() (total, idle, acquired int32) {
		stat := pool.Stat()
		return stat.TotalConns(), stat.IdleConns(), stat.AcquiredConns()
	})

	userStore := user.NewStore(pool)
	teamStore := team.NewStore(pool)
	sessionStore := session.NewStore(pool)

	resolver := team.NewResolver(teamStore)
	if cfg.Hierarchy.TreeCacheTTL > 0 {
		resolver.EnableTreeCache(cache.New(), cfg.Hierarchy.TreeCacheTTL)
		resolver.ObserveCache(m)
	}

	transport := session.NewCookieTransport(cfg.Session.CookieName, cfg.Session.SecureCookies, cfg.Session.CSRFLifetime)
	manager := session.NewManager(sessionStore, transport, cfg.Session.Duration)
	manager.ObserveLifecycle(m)

	authService := auth.NewService(userStore, sessionStore, auth.Defaults{
		Role:   cfg.Registration.DefaultRole,
		TeamID: cfg.Registration.DefaultTeamID,
	}, cfg.Session.Duration)

	router := api.NewRouter(api.RouterDeps{
		Auth:           authService,
		Sessions:       manager,
		Teams:          resolver,
		Metrics:        m,
		DBPool:         pool,
		AllowedOrigins: cfg.CORS.AllowedOrigins,
		LoginPath:      cfg.Session.LoginPath,
	})

	srv := &http.Server{
		Addr:         cfg.Addr(),
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		slog.Info("server starting", "addr", cfg.Addr())
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	<-sigCh
	slog.Info("shutting down")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	return srv.Shutdown(shutdownCtx)
}
