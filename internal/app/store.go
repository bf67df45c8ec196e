package app

import (
	"context"
	"fmt"

	"github.com/jwalitptl/care-portal/internal/config"
	"github.com/jwalitptl/care-portal/internal/repository"
	"github.com/jwalitptl/care-portal/internal/repository/memory"
	"github.com/jwalitptl/care-portal/internal/repository/postgres"
)

// OpenStore connects the configured store. The returned close func is never
// nil.
func OpenStore(ctx context.Context, cfg config.DatabaseConfig) (*repository.Store, func(), error) {
	if cfg.Driver == config.DriverMemory {
		return memory.NewStore(), func() {}, nil
	}

	db, err := postgres.NewDB(ctx, cfg)
	if err != nil {
		return nil, nil, err
	}
	if cfg.AutoMigrate {
		if err := postgres.Migrate(ctx, db); err != nil {
			db.Close()
			return nil, nil, fmt.Errorf("failed to migrate schema: %w", err)
		}
	}
	return postgres.NewStore(db), func() { db.Close() }, nil
}
