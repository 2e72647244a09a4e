package main

import (
	"context"
	"fmt"

	"github.com/nerrad567/gridswitch/internal/directory"
	"github.com/nerrad567/gridswitch/internal/infrastructure/config"
	"github.com/nerrad567/gridswitch/internal/infrastructure/database"
	"github.com/nerrad567/gridswitch/internal/infrastructure/etcd"
	_ "github.com/nerrad567/gridswitch/migrations" // Registers the embedded schema
)

// backend is an open directory store with its writer and lifecycle.
type backend struct {
	store  directory.Store
	writer directory.Writer
	health healthChecker
	close  func() error
}

// HealthCheck verifies the backing connection.
func (b *backend) HealthCheck(ctx context.Context) error {
	return b.health.HealthCheck(ctx)
}

// Close releases the backing connection.
func (b *backend) Close() error {
	return b.close()
}

// openBackend connects to the configured directory backend.
//
// Parameters:
//   - ctx: Bounds the etcd connectivity check
//   - cfg: Loaded configuration
//
// Returns:
//   - *backend: Ready for reads and writes
//   - error: If the backend cannot be reached or migrated
func openBackend(ctx context.Context, cfg *config.Config) (*backend, error) {
	switch cfg.Directory.Backend {
	case config.DirectoryBackendSQLite:
		db, err := database.Open(cfg.Directory.SQLite)
		if err != nil {
			return nil, fmt.Errorf("opening directory database: %w", err)
		}
		if err := db.Migrate(ctx); err != nil {
			db.Close() //nolint:errcheck // already failing
			return nil, fmt.Errorf("migrating directory database: %w", err)
		}
		store := directory.NewSQLiteStore(db.DB)
		return &backend{store: store, writer: store, health: db, close: db.Close}, nil

	default:
		client, err := etcd.Connect(ctx, cfg.Directory.Etcd)
		if err != nil {
			return nil, fmt.Errorf("connecting to etcd: %w", err)
		}
		return &backend{
			store:  directory.NewEtcdStore(client),
			writer: client,
			health: client,
			close:  client.Close,
		}, nil
	}
}
