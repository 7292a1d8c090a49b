package app

import (
	"context"
	"fmt"
	"log"
	"time"

	"elo-sync/internal/config"
	"elo-sync/internal/domain/rank"
	"elo-sync/internal/usecase/header"
	"elo-sync/internal/usecase/rating"
)

type Container struct {
	Config  config.Config
	Logger  *log.Logger
	Backend *Backend
	Table   rank.Table
	Store   *rating.Store
	Views   *header.Service
}

func NewContainer(cfg config.Config, logger *log.Logger) (*Container, error) {
	if logger == nil {
		logger = log.Default()
	}

	table, err := rank.Resolve(cfg.Store.TierPreset, cfg.Store.TierFile)
	if err != nil {
		return nil, err
	}
	policy, err := rating.ParsePolicy(cfg.Store.NoUserPolicy)
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	backend, err := OpenBackend(ctx, cfg, logger)
	if err != nil {
		return nil, fmt.Errorf("open %s backend: %w", cfg.Store.Backend, err)
	}

	store := rating.NewStore(backend.KV, rating.Options{
		Key:           cfg.Store.Key,
		DefaultRating: cfg.Store.DefaultRating,
		Policy:        policy,
		Origin:        cfg.Store.Origin,
		Logger:        logger,
	})

	return &Container{
		Config:  cfg,
		Logger:  logger,
		Backend: backend,
		Table:   table,
		Store:   store,
		Views:   header.NewService(store, table),
	}, nil
}

func (c *Container) Close() error {
	if c == nil {
		return nil
	}
	return c.Backend.Close()
}
