// Package store selects and opens the configured claim store.
package store

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/warp/benefit-engine/benefit"
	"github.com/warp/benefit-engine/config"
	"github.com/warp/benefit-engine/store/memory"
	"github.com/warp/benefit-engine/store/postgres"
	"github.com/warp/benefit-engine/store/sqlite"
)

// Open returns the store named by cfg.StoreDriver and a function releasing
// it. The postgres schema is migrated before the pool is returned.
func Open(ctx context.Context, cfg *config.Config, logger *slog.Logger) (benefit.TxStore, func(), error) {
	switch cfg.StoreDriver {
	case config.StoreMemory:
		logger.Warn("using in-memory store; data is lost on exit")
		return memory.New(), func() {}, nil

	case config.StoreSQLite:
		s, err := sqlite.New(cfg.SQLitePath)
		if err != nil {
			return nil, nil, fmt.Errorf("open sqlite %s: %w", cfg.SQLitePath, err)
		}
		logger.Info("sqlite store ready", slog.String("path", cfg.SQLitePath))
		return s, func() { _ = s.Close() }, nil

	case config.StorePostgres:
		if err := postgres.Migrate(cfg.PGDSN); err != nil {
			return nil, nil, err
		}
		pool, err := postgres.NewPool(ctx, cfg.PGDSN, cfg.PGMaxConns)
		if err != nil {
			return nil, nil, err
		}
		logger.Info("postgres store ready", slog.Int("max_conns", int(cfg.PGMaxConns)))
		return postgres.New(pool), pool.Close, nil
	}
	return nil, nil, fmt.Errorf("unknown store driver %q", cfg.StoreDriver)
}
