package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/Ironbeetle/TCN-Communications-sub000/internal/config"
	"github.com/Ironbeetle/TCN-Communications-sub000/internal/portal"
	"github.com/Ironbeetle/TCN-Communications-sub000/internal/storage/postgres"
	"github.com/Ironbeetle/TCN-Communications-sub000/internal/storage/sqlite"
	"github.com/Ironbeetle/TCN-Communications-sub000/internal/timesheet"
)

// backend is an opened timesheet store with its health check and cleanup.
type backend struct {
	store timesheet.Store
	ping  func(ctx context.Context) error
	close func()

	// audit is set when the backend keeps a local event trail.
	audit *sqlite.AuditStore
}

// openBackend opens and migrates the configured store.
func openBackend(ctx context.Context, cfg *config.LocalConfig) (*backend, error) {
	switch cfg.Storage.Backend {
	case config.BackendSQLite:
		if err := os.MkdirAll(filepath.Dir(cfg.Storage.SQLitePath), 0755); err != nil {
			return nil, fmt.Errorf("create data dir: %w", err)
		}
		db, err := sqlite.Open(cfg.Storage.SQLitePath)
		if err != nil {
			return nil, err
		}
		if err := db.Migrate(); err != nil {
			db.Close()
			return nil, fmt.Errorf("migrate sqlite: %w", err)
		}
		slog.Info("using sqlite backend", "path", cfg.Storage.SQLitePath)
		return &backend{
			store: sqlite.NewTimesheetStore(db),
			ping:  db.PingContext,
			close: func() { db.Close() },
			audit: sqlite.NewAuditStore(db),
		}, nil

	case config.BackendPostgres:
		db, err := postgres.Open(ctx, cfg.Storage.DatabaseURL)
		if err != nil {
			return nil, err
		}
		if err := db.Migrate(ctx); err != nil {
			db.Close()
			return nil, fmt.Errorf("migrate postgres: %w", err)
		}
		slog.Info("using postgres backend")
		return &backend{
			store: postgres.NewTimesheetStore(db),
			ping:  db.Ping,
			close: db.Close,
		}, nil

	case config.BackendPortal:
		client, err := portal.NewClient(portal.Config{
			BaseURL:     cfg.Portal.URL,
			APIKey:      cfg.Portal.APIKey,
			Timeout:     time.Duration(cfg.Portal.TimeoutSeconds) * time.Second,
			MaxAttempts: cfg.Portal.MaxAttempts,
			Logger:      slog.Default(),
		})
		if err != nil {
			return nil, err
		}
		slog.Info("using portal backend", "url", cfg.Portal.URL)
		return &backend{
			store: portal.NewStore(client),
			ping:  client.Ping,
			close: func() {},
		}, nil
	}
	return nil, fmt.Errorf("unknown storage backend %q", cfg.Storage.Backend)
}
