package app

import (
	"context"
	"fmt"
	"log/slog"

	"newsreel/internal/assets"
	"newsreel/internal/cache"
	"newsreel/internal/config"
	"newsreel/internal/coordinator"
	"newsreel/internal/identity"
	"newsreel/internal/ledger"
	_ "newsreel/internal/ledger/sqlite"
	"newsreel/internal/platforms"
	"newsreel/internal/scheduler"
	"newsreel/internal/server"
	"newsreel/internal/sources"
)

// Application wires configuration into the running pieces: the attempt
// ledger, the discovery sources, the platform publishers, and the scheduler
// loop that connects them.
type Application struct {
	cfg       *config.Config
	store     ledger.Ledger
	scheduler *scheduler.Scheduler
	server    *server.Server
}

func New(ctx context.Context, cfg *config.Config) (*Application, error) {
	store, err := ledger.New(ctx, cfg.Storage)
	if err != nil {
		return nil, fmt.Errorf("failed to open attempt ledger: %w", err)
	}

	srcs, err := sources.Build(cfg.Sources)
	if err != nil {
		store.Close()
		return nil, fmt.Errorf("failed to build sources: %w", err)
	}

	publishers, err := platforms.Build(cfg.Platforms)
	if err != nil {
		store.Close()
		return nil, fmt.Errorf("failed to build publishers: %w", err)
	}

	preparer, err := assets.NewHTTPPreparer(cfg.Assets)
	if err != nil {
		store.Close()
		return nil, fmt.Errorf("failed to build asset preparer: %w", err)
	}

	seen := cache.NewIdentities(0)
	tracker := identity.NewTracker(store, seen)
	coord := coordinator.New(preparer, publishers, store, seen, cfg.Scheduler.RetryTransient)

	sched := scheduler.New(srcs, tracker, coord, scheduler.Config{
		Interval:         cfg.Scheduler.IntervalDuration(),
		MaxPerCycle:      cfg.Scheduler.MaxPerCycle,
		FailureThreshold: cfg.Scheduler.FailureThreshold,
		BackoffExtension: cfg.Scheduler.BackoffExtensionDuration(),
	})

	app := &Application{
		cfg:       cfg,
		store:     store,
		scheduler: sched,
	}
	if cfg.Server.Enabled {
		app.server = server.New(cfg.Server, store)
	}

	return app, nil
}

// Run starts the operational server and blocks in the scheduler loop until
// the context is cancelled.
func (a *Application) Run(ctx context.Context) error {
	if a.server != nil {
		if err := a.server.Start(ctx); err != nil {
			return fmt.Errorf("failed to start operational server: %w", err)
		}
	}

	return a.scheduler.Run(ctx)
}

// Shutdown stops the loop and releases resources. Safe to call after Run
// has already returned.
func (a *Application) Shutdown(ctx context.Context) error {
	a.scheduler.Stop()

	if a.server != nil {
		if err := a.server.Shutdown(ctx); err != nil {
			slog.Error("Operational server shutdown failed", "error", err)
		}
	}

	if err := a.store.Close(); err != nil {
		return fmt.Errorf("failed to close attempt ledger: %w", err)
	}

	return nil
}
