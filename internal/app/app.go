package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"

	"github.com/go-chi/httplog/v2"
	"github.com/robfig/cron/v3"
	"golang.org/x/sync/errgroup"

	"github.com/snaplink/snaplink/internal/admission"
	"github.com/snaplink/snaplink/internal/config"
	"github.com/snaplink/snaplink/internal/models"
	"github.com/snaplink/snaplink/internal/service"
	"github.com/snaplink/snaplink/internal/settings"
	"github.com/snaplink/snaplink/pkg/postgres"

	api "github.com/snaplink/snaplink/internal/api/http"
	db "github.com/snaplink/snaplink/internal/database/postgres"
)

// Schedules for the background maintenance jobs. The settings refresh keeps
// the admission layer in sync with the database without an explicit reload
// call; the sweep bounds the memory of the in-process counters.
const (
	settingsReloadSchedule = "@every 5m"
	admissionSweepSchedule = "@every 1m"
)

func Run(ctx context.Context, cfg *config.Config) error {
	const op = "app.Run"

	logger := setupLogger(cfg.Env)

	conn, err := postgres.New(
		ctx,
		cfg.Postgres.DSN(),
		postgres.WithConnMaxIdleTime(cfg.Postgres.ConnMaxIdleTime),
		postgres.WithConnMaxLifetime(cfg.Postgres.ConnMaxLifetime),
		postgres.WithMaxIdleConns(cfg.Postgres.MaxIdleConns),
		postgres.WithMaxOpenConns(cfg.Postgres.MaxOpenConns),
	)
	if err != nil {
		return fmt.Errorf("%s: failed to connect to database: %w", op, err)
	}
	defer conn.Close()

	if err := postgres.RunMigrations("file://migrations", cfg.Postgres.DSN()); err != nil {
		return fmt.Errorf("%s: failed to run migrations: %w", op, err)
	}

	linkRepo := db.NewLinkRepository(conn)
	settingsRepo := db.NewSettingsRepository(conn)

	provider := settings.NewProvider(settingsRepo, logger.Logger)
	provider.OnChange(func(s models.RateLimitSettings) {
		logger.Info("rate-limit settings updated", slog.Int64("version", s.Version))
	})
	provider.Reload(ctx)

	tracker := admission.NewReputationTracker(provider.Current)
	quotas := admission.NewQuotas(provider.Current)

	gate := service.NewResolutionGate(linkRepo)
	linkSvc := service.NewLinkService(linkRepo, cfg.SlugLength)

	r := api.NewRouter(logger, gate, linkSvc, tracker, quotas, provider)

	server := &http.Server{
		Addr:           cfg.HTTPServer.Addr(),
		Handler:        r,
		ReadTimeout:    cfg.HTTPServer.ReadTimeout,
		WriteTimeout:   cfg.HTTPServer.WriteTimeout,
		IdleTimeout:    cfg.HTTPServer.IdleTimeout,
		MaxHeaderBytes: cfg.HTTPServer.MaxHeaderBytes,
		BaseContext: func(_ net.Listener) context.Context {
			return ctx
		},
	}

	jobs := cron.New()
	if _, err := jobs.AddFunc(settingsReloadSchedule, func() {
		provider.Reload(ctx)
	}); err != nil {
		return fmt.Errorf("%s: failed to schedule settings reload: %w", op, err)
	}
	if _, err := jobs.AddFunc(admissionSweepSchedule, func() {
		tracker.SweepIdle()
		quotas.Sweep()
	}); err != nil {
		return fmt.Errorf("%s: failed to schedule admission sweep: %w", op, err)
	}
	jobs.Start()

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		var err error

		switch cfg.Env {
		case config.EnvProd:
			err = server.ListenAndServeTLS(cfg.HTTPServer.CertFile, cfg.HTTPServer.KeyFile)
		default:
			err = server.ListenAndServe()
		}

		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("%s: server error occurred: %w", op, err)
		}

		return nil
	})

	g.Go(func() error {
		<-ctx.Done()

		<-jobs.Stop().Done()

		if err := server.Shutdown(context.Background()); err != nil {
			return fmt.Errorf("%s: failed to shutdown server: %w", op, err)
		}

		return nil
	})

	return g.Wait()
}

func setupLogger(env string) *httplog.Logger {
	opts := httplog.Options{
		LogLevel:        slog.LevelDebug,
		Concise:         true,
		RequestHeaders:  true,
		ResponseHeaders: true,
	}

	switch env {
	case config.EnvStage:
		opts.LogLevel = slog.LevelInfo
		opts.JSON = true
	case config.EnvProd:
		opts.LogLevel = slog.LevelInfo
		opts.JSON = true
		opts.Concise = false
	}

	return httplog.NewLogger("snaplink", opts)
}
