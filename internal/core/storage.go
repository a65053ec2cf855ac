package core

import (
	"context"
	"fmt"
	"strings"

	"labcore/internal/config"
	"labcore/internal/infra/persistence/memory"
	"labcore/internal/infra/persistence/postgres"
	"labcore/internal/infra/persistence/sqlite"
	"labcore/pkg/domain"
)

// StorageDriver identifies a concrete persistent storage implementation.
type StorageDriver string

const (
	StorageMemory   StorageDriver = "memory"   // in-memory only (tests / ephemeral)
	StorageSQLite   StorageDriver = "sqlite"   // embedded sqlite file
	StoragePostgres StorageDriver = "postgres" // PostgreSQL server
)

// OpenPersistentStore selects a backend from configuration. An empty driver
// means sqlite. The returned close function releases any database handle.
func OpenPersistentStore(ctx context.Context, cfg config.Storage, engine *domain.RulesEngine) (domain.PersistentStore, func() error, error) {
	driver := StorageDriver(strings.ToLower(strings.TrimSpace(cfg.Driver)))
	if driver == "" {
		driver = StorageSQLite
	}
	switch driver {
	case StorageMemory:
		return memory.NewStore(engine), func() error { return nil }, nil
	case StorageSQLite:
		store, err := sqlite.NewStore(cfg.SQLitePath, engine)
		if err != nil {
			return nil, nil, err
		}
		return store, store.Close, nil
	case StoragePostgres:
		store, err := postgres.NewStore(ctx, cfg.PostgresDSN, engine)
		if err != nil {
			return nil, nil, err
		}
		return store, store.Close, nil
	default:
		return nil, nil, fmt.Errorf("unknown storage driver %s", cfg.Driver)
	}
}
