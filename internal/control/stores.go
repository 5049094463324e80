package control

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/vietddude/syncwatch/internal/core/config"
	"github.com/vietddude/syncwatch/internal/health"
	redisclient "github.com/vietddude/syncwatch/internal/infra/redis"
	"github.com/vietddude/syncwatch/internal/infra/storage"
	"github.com/vietddude/syncwatch/internal/infra/storage/memory"
	"github.com/vietddude/syncwatch/internal/infra/storage/postgres"
)

// Stores holds the KV store selected by config plus the connection behind
// it, if any.
type Stores struct {
	KV    storage.KVStore
	DB    *postgres.DB
	Redis *redisclient.Client
}

// OpenStores connects the configured storage driver. Postgres schemas are
// migrated on open.
func OpenStores(ctx context.Context, cfg config.StorageConfig) (*Stores, error) {
	switch cfg.Driver {
	case "", config.DriverMemory:
		slog.Info("Using Memory storage")
		return &Stores{KV: memory.NewMemoryStorage()}, nil

	case config.DriverRedis:
		client, err := redisclient.NewClient(cfg.Redis)
		if err != nil {
			return nil, fmt.Errorf("failed to init redis: %w", err)
		}
		slog.Info("Using Redis storage")
		return &Stores{KV: client, Redis: client}, nil

	case config.DriverPostgres:
		db, err := postgres.NewDB(ctx, cfg.Database)
		if err != nil {
			return nil, fmt.Errorf("failed to init db: %w", err)
		}
		if err := db.Migrate(); err != nil {
			_ = db.Close()
			return nil, err
		}
		slog.Info("Using PostgreSQL storage")
		return &Stores{KV: postgres.NewKVRepo(db), DB: db}, nil

	default:
		return nil, fmt.Errorf("unknown storage driver %q", cfg.Driver)
	}
}

// Pinger returns the health check for the backing connection, or nil for
// in-memory storage.
func (s *Stores) Pinger() health.Pinger {
	switch {
	case s.DB != nil:
		return s.DB
	case s.Redis != nil:
		return s.Redis
	default:
		return nil
	}
}

// Close releases the underlying connection.
func (s *Stores) Close() error {
	return s.KV.Close()
}
