package main

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/goodtune/sitetime/internal/config"
	"github.com/goodtune/sitetime/internal/host/client"
	"github.com/goodtune/sitetime/internal/storage"
	"github.com/goodtune/sitetime/internal/storage/bolt"
	"github.com/goodtune/sitetime/internal/storage/redis"
	"github.com/rs/zerolog"
)

func openStorage(cfg config.StorageConfig, logger zerolog.Logger) (storage.Store, error) {
	switch cfg.Type {
	case "", "bolt":
		path, err := storage.ExpandHome(cfg.Path)
		if err != nil {
			return nil, fmt.Errorf("failed to resolve storage path: %w", err)
		}
		return bolt.Open(path, cfg.Key)
	case "redis":
		return redis.Open(cfg.Redis, cfg.Key, logger)
	default:
		return nil, fmt.Errorf("unsupported storage type: %s (must be 'bolt' or 'redis')", cfg.Type)
	}
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }

// openSource picks where read-only commands get their data. redis is read
// directly. bolt is locked by a running daemon, so its bridge API is asked
// first and the file is only opened when no daemon answers.
func openSource(ctx context.Context, cfg *config.Config, logger zerolog.Logger) (storage.Source, io.Closer, error) {
	if cfg.Dashboard.ServerURL != "" {
		return client.New(cfg.Dashboard.ServerURL, logger), nopCloser{}, nil
	}

	if cfg.Storage.Type == "redis" {
		store, err := openStorage(cfg.Storage, logger)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to open storage: %w", err)
		}
		return store, store, nil
	}

	c := client.New("http://"+cfg.Server.APIAddr(), logger)
	probeCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	_, err := storage.LoadOrEmpty(probeCtx, c)
	if err == nil {
		return c, nopCloser{}, nil
	}
	logger.Debug().Err(err).Msg("Daemon not reachable, opening storage directly")

	store, err := openStorage(cfg.Storage, logger)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open storage (is the daemon running on %s?): %w", cfg.Server.APIAddr(), err)
	}
	return store, store, nil
}
