package main

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/cory-johannsen/idlebattle/internal/config"
	"github.com/cory-johannsen/idlebattle/internal/game/character"
	"github.com/cory-johannsen/idlebattle/internal/gameserver"
	"github.com/cory-johannsen/idlebattle/internal/pkg/clock"
	"github.com/cory-johannsen/idlebattle/internal/storage/postgres"
	"github.com/cory-johannsen/idlebattle/internal/storage/redis"
)

// characterBackend is a CharacterStore that can also create characters.
type characterBackend interface {
	gameserver.CharacterStore
	Create(ctx context.Context, c *character.Character) (*character.Character, error)
}

// backend bundles the selected character store with its health probe and teardown.
type backend struct {
	store  characterBackend
	health func(ctx context.Context) error
	close  func()
}

// openBackend connects the storage backend named by cfg.Storage.Backend.
//
// Postcondition: Returns a connected backend or a non-nil error.
func openBackend(ctx context.Context, cfg config.Config, logger *zap.Logger) (*backend, error) {
	start := time.Now()
	const probeTimeout = 2 * time.Second

	switch cfg.Storage.Backend {
	case "postgres":
		pool, err := postgres.NewPool(ctx, cfg.Database)
		if err != nil {
			return nil, fmt.Errorf("connecting to database: %w", err)
		}
		logger.Info("database connected",
			zap.String("host", cfg.Database.Host),
			zap.Duration("elapsed", time.Since(start)),
		)
		return &backend{
			store:  postgres.NewCharacterRepository(pool.DB()),
			health: pool.Health,
			close:  pool.Close,
		}, nil
	case "redis":
		client, err := redis.NewClient(ctx, cfg.Redis)
		if err != nil {
			return nil, err
		}
		logger.Info("redis connected",
			zap.String("addr", cfg.Redis.Addr),
			zap.Duration("elapsed", time.Since(start)),
		)
		repo := redis.NewCharacterRepository(client, cfg.Redis.KeyPrefix, clock.New())
		return &backend{
			store:  repo,
			health: func(ctx context.Context) error { return repo.Health(ctx, probeTimeout) },
			close:  func() { _ = client.Close() },
		}, nil
	default:
		return nil, fmt.Errorf("unknown storage backend %q", cfg.Storage.Backend)
	}
}
