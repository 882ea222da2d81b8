// Package storage provides key/blob persistence backends for the workout store.
package storage

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/meltforce/mapty/internal/config"
)

// Store is a key/blob persistence backend. A missing key is reported as
// ok == false with a nil error.
type Store interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, blob []byte) error
	Remove(ctx context.Context, key string) error
	Close() error
}

var (
	_ Store = (*Memory)(nil)
	_ Store = (*Files)(nil)
	_ Store = (*SQLite)(nil)
	_ Store = (*DB)(nil)
	_ Store = (*Redis)(nil)
)

// Open returns the backend selected by cfg.Storage.Driver. The postgres
// driver applies pending migrations before connecting.
func Open(ctx context.Context, cfg *config.Config, log *slog.Logger) (Store, error) {
	switch cfg.Storage.Driver {
	case config.DriverMemory:
		log.Warn("using in-memory storage, workouts will not survive a restart")
		return NewMemory(), nil

	case config.DriverFile:
		s, err := NewFiles(cfg.Storage.Path)
		if err != nil {
			return nil, err
		}
		log.Info("file storage ready", "dir", cfg.Storage.Path)
		return s, nil

	case config.DriverSQLite:
		s, err := OpenSQLite(cfg.Storage.Path)
		if err != nil {
			return nil, err
		}
		log.Info("sqlite storage ready", "path", cfg.Storage.Path)
		return s, nil

	case config.DriverPostgres:
		dsn := cfg.Database.DSN()
		if err := RunMigrations(dsn, cfg.Database.Migrations); err != nil {
			return nil, err
		}
		log.Info("migrations applied")
		db, err := New(ctx, dsn)
		if err != nil {
			return nil, err
		}
		log.Info("database connected")
		return db, nil

	case config.DriverRedis:
		r, err := ConnectRedis(ctx, cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
		if err != nil {
			return nil, err
		}
		if r == nil {
			return nil, fmt.Errorf("redis driver selected without redis.addr")
		}
		log.Info("redis storage ready", "addr", cfg.Redis.Addr)
		return r, nil
	}
	return nil, fmt.Errorf("unknown storage driver %q", cfg.Storage.Driver)
}
