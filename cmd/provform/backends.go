package main

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/kalambet/provform/internal/config"
	"github.com/kalambet/provform/internal/profile"
	"github.com/kalambet/provform/internal/storage"
)

// backends are the stores a command works against. The job queue always
// lives in SQLite; drafts and saved profiles go to the configured backend.
type backends struct {
	jobs   *storage.Store
	kv     profile.Store
	health interface{ Ping(ctx context.Context) error }
	redis  *storage.RedisStore
}

func openBackends(ctx context.Context, cfg config.Config) (*backends, error) {
	store, err := storage.Open(cfg.Storage.DataDir)
	if err != nil {
		return nil, fmt.Errorf("opening storage: %w", err)
	}
	b := &backends{jobs: store, kv: store, health: store}

	if cfg.Storage.Backend == config.BackendRedis {
		rs, err := storage.OpenRedis(ctx, storage.RedisOptions{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		if err != nil {
			store.Close()
			return nil, err
		}
		b.kv, b.health, b.redis = rs, rs, rs
	}

	slog.Debug("storage ready", "backend", cfg.Storage.Backend, "data_dir", cfg.Storage.DataDir)
	return b, nil
}

func (b *backends) Close() {
	if b.redis != nil {
		if err := b.redis.Close(); err != nil {
			printWarning("closing redis: %v", err)
		}
	}
	if err := b.jobs.Close(); err != nil {
		printWarning("closing storage: %v", err)
	}
}
