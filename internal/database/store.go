package database

import (
	"context"
	"fmt"
	"log/slog"

	"air-server/internal/auditlog"
	"air-server/internal/config"
)

// OpenStore returns the audit store selected by cfg.Driver. For postgres
// the pool is opened and the table created if missing.
func OpenStore(ctx context.Context, cfg config.DBConfig, logger *slog.Logger) (auditlog.Store, error) {
	if logger == nil {
		logger = slog.Default()
	}
	switch cfg.Driver {
	case config.DriverMemory:
		logger.Warn("using in-memory audit log; records are lost on exit")
		return auditlog.NewMemoryStore(), nil
	case config.DriverPostgres:
		logger.Info("connecting to database",
			"dsn", RedactedConnString(cfg),
			"table", cfg.Table,
		)
		pool, err := Connect(ctx, cfg)
		if err != nil {
			return nil, err
		}
		store := auditlog.NewPostgresStore(pool, cfg.Table, logger)
		if err := store.EnsureSchema(ctx); err != nil {
			pool.Close()
			return nil, fmt.Errorf("ensure schema: %w", err)
		}
		return store, nil
	default:
		return nil, fmt.Errorf("unknown database driver %q", cfg.Driver)
	}
}
