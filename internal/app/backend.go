package app

import (
	"context"
	"errors"
	"fmt"
	"log"

	"elo-sync/internal/config"
	"elo-sync/internal/database/migration"
	dbpostgres "elo-sync/internal/database/postgres"
	"elo-sync/internal/delivery/http/handler"
	"elo-sync/internal/infrastructure/cache"
	"elo-sync/internal/infrastructure/natskv"
	"elo-sync/internal/infrastructure/persistence/postgres"
	"elo-sync/internal/infrastructure/persistence/sqlite"
	"elo-sync/internal/storage"
	"elo-sync/internal/storage/memory"
)

// Backend is the opened KV plus whatever has to be closed with it.
type Backend struct {
	Name   string
	KV     storage.KV
	Pinger handler.Pinger

	closers []func() error
}

func (b *Backend) Close() error {
	if b == nil {
		return nil
	}
	var errs []error
	if b.KV != nil {
		errs = append(errs, b.KV.Close())
	}
	for i := len(b.closers) - 1; i >= 0; i-- {
		errs = append(errs, b.closers[i]())
	}
	return errors.Join(errs...)
}

func OpenBackend(ctx context.Context, cfg config.Config, logger *log.Logger) (*Backend, error) {
	switch cfg.Store.Backend {
	case config.BackendMemory, "":
		return &Backend{Name: config.BackendMemory, KV: memory.New(logger)}, nil

	case config.BackendRedis:
		r, err := cache.NewRedis(ctx, cache.Options{
			URL:      cfg.Redis.URL,
			Addr:     cfg.Redis.Addr(),
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		}, logger)
		if err != nil {
			return nil, err
		}
		return &Backend{Name: config.BackendRedis, KV: r, Pinger: r}, nil

	case config.BackendPostgres:
		db, err := dbpostgres.Connect(ctx, cfg.Database)
		if err != nil {
			return nil, err
		}
		if cfg.Database.AutoMigrate {
			if err := migration.Default(logger).Run(ctx, db.SQLDB()); err != nil {
				_ = db.Close()
				return nil, fmt.Errorf("migrate: %w", err)
			}
		}
		return &Backend{
			Name:    config.BackendPostgres,
			KV:      postgres.NewKVRepository(db, logger),
			Pinger:  db,
			closers: []func() error{db.Close},
		}, nil

	case config.BackendSQLite:
		s, err := sqlite.Open(cfg.SQLite.Path, cfg.SQLite.PollInterval, logger)
		if err != nil {
			return nil, err
		}
		return &Backend{Name: config.BackendSQLite, KV: s}, nil

	case config.BackendNATS:
		kv, err := natskv.Connect(ctx, natskv.Options{
			URL:    cfg.NATS.URL,
			Bucket: cfg.NATS.Bucket,
			Name:   cfg.App.AppName,
		}, logger)
		if err != nil {
			return nil, err
		}
		return &Backend{Name: config.BackendNATS, KV: kv}, nil

	default:
		return nil, fmt.Errorf("unknown backend %q", cfg.Store.Backend)
	}
}
