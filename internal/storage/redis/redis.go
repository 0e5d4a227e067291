package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/goodtune/sitetime/internal/config"
	"github.com/goodtune/sitetime/internal/metrics"
	"github.com/goodtune/sitetime/internal/storage"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// Store implements the storage.Store interface using Redis. The map is a
// single JSON string; every Save also publishes the new value so readers in
// other processes see the change.
type Store struct {
	client  *redis.Client
	key     string
	channel string
	logger  zerolog.Logger
}

// Open creates a new Redis-backed storage instance.
func Open(cfg config.RedisConfig, key string, logger zerolog.Logger) (*Store, error) {
	if key == "" {
		key = storage.DefaultKey
	}

	dialTimeout, err := time.ParseDuration(cfg.DialTimeout)
	if err != nil {
		return nil, fmt.Errorf("invalid dial_timeout: %w", err)
	}

	readTimeout, err := time.ParseDuration(cfg.ReadTimeout)
	if err != nil {
		return nil, fmt.Errorf("invalid read_timeout: %w", err)
	}

	writeTimeout, err := time.ParseDuration(cfg.WriteTimeout)
	if err != nil {
		return nil, fmt.Errorf("invalid write_timeout: %w", err)
	}

	// Host may already carry the port (miniredis hands out "host:port").
	addr := cfg.Host
	if cfg.Port > 0 {
		addr = fmt.Sprintf("%s:%d", cfg.Host, cfg.Port)
	}

	client := redis.NewClient(&redis.Options{
		Addr:         addr,
		Password:     cfg.Password,
		DB:           cfg.DB,
		PoolSize:     cfg.PoolSize,
		MinIdleConns: cfg.MinIdleConns,
		DialTimeout:  dialTimeout,
		ReadTimeout:  readTimeout,
		WriteTimeout: writeTimeout,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	prefix := cfg.KeyPrefix
	if prefix == "" {
		prefix = "sitetime"
	}
	dataKey := fmt.Sprintf("%s:%s", prefix, key)

	return &Store{
		client:  client,
		key:     dataKey,
		channel: dataKey + ":changed",
		logger:  logger.With().Str("component", "redis-store").Logger(),
	}, nil
}

// Close closes the Redis connection.
func (s *Store) Close() error {
	return s.client.Close()
}

// Load returns the persisted map or storage.ErrNotFound.
func (s *Store) Load(ctx context.Context) (storage.AccumulatedMap, error) {
	value, err := s.client.Get(ctx, s.key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, storage.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get %s: %w", s.key, err)
	}
	return storage.Decode(value)
}

// Save writes the map and publishes it in one MULTI/EXEC.
func (s *Store) Save(ctx context.Context, data storage.AccumulatedMap) error {
	encoded, err := storage.Encode(data)
	if err != nil {
		return err
	}

	_, err = s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, s.key, encoded, 0)
		pipe.Publish(ctx, s.channel, encoded)
		return nil
	})
	if err != nil {
		return fmt.Errorf("save %s: %w", s.key, err)
	}
	return nil
}

// Subscribe listens on the change channel until ctx is done. The subscription
// is confirmed before Subscribe returns, so no later Save is missed.
func (s *Store) Subscribe(ctx context.Context) (<-chan storage.AccumulatedMap, error) {
	pubsub := s.client.Subscribe(ctx, s.channel)
	if _, err := pubsub.Receive(ctx); err != nil {
		_ = pubsub.Close()
		return nil, fmt.Errorf("subscribe %s: %w", s.channel, err)
	}

	out := make(chan storage.AccumulatedMap, 1)
	go func() {
		defer close(out)
		defer func() { _ = pubsub.Close() }()

		messages := pubsub.Channel()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-messages:
				if !ok {
					return
				}
				data, err := storage.Decode([]byte(msg.Payload))
				if err != nil {
					metrics.ChangesDropped.WithLabelValues("malformed").Inc()
					s.logger.Warn().Err(err).Str("channel", msg.Channel).Msg("Ignoring malformed change notification")
					continue
				}
				select {
				case out <- data:
				case <-ctx.Done():
					return
				}
			}
		}
	}()

	return out, nil
}
