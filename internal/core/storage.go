package core

import (
	"context"
	"fmt"
	"strings"

	"medconnect/internal/config"
	"medconnect/internal/infra/persistence/memory"
	"medconnect/internal/infra/persistence/postgres"
	"medconnect/internal/infra/persistence/sqlite"
	"medconnect/pkg/domain"
)

// OpenPersistentStore constructs the entity store selected by cfg. The
// returned close function releases backend resources and is never nil.
func OpenPersistentStore(ctx context.Context, cfg config.Storage, engine *domain.RulesEngine, opts ...memory.Option) (domain.PersistentStore, func() error, error) {
	if engine == nil {
		engine = NewDefaultRulesEngine()
	}
	switch strings.ToLower(strings.TrimSpace(cfg.Driver)) {
	case "", "memory":
		return memory.NewStore(engine, opts...), func() error { return nil }, nil
	case "sqlite":
		store, err := sqlite.NewStore(cfg.SQLitePath, engine, opts...)
		if err != nil {
			return nil, nil, fmt.Errorf("open sqlite store: %w", err)
		}
		return store, store.Close, nil
	case "postgres":
		store, err := postgres.NewStore(ctx, cfg.PostgresDSN, engine, opts...)
		if err != nil {
			return nil, nil, fmt.Errorf("open postgres store: %w", err)
		}
		return store, store.Close, nil
	default:
		return nil, nil, fmt.Errorf("unsupported storage driver %q", cfg.Driver)
	}
}
