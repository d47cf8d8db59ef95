// Package redisstore keeps the persisted inspector state in Redis.
package redisstore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"github.com/tinytelemetry/pageinspect/internal/logging"
)

// Config selects the Redis server.
type Config struct {
	Addr        string
	Password    string
	DB          int
	DialTimeout time.Duration
}

// client is the subset of the go-redis API the store needs.
type client interface {
	Get(ctx context.Context, key string) *redis.StringCmd
	Set(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.StatusCmd
	Del(ctx context.Context, keys ...string) *redis.IntCmd
	Ping(ctx context.Context) *redis.StatusCmd
	Close() error
}

// Store is a Redis-backed key-value store.
type Store struct {
	client client
	logger *logrus.Logger
}

// New connects to Redis and verifies the connection.
func New(ctx context.Context, cfg Config, logger *logrus.Logger) (*Store, error) {
	if cfg.Addr == "" {
		return nil, errors.New("redisstore: address is required")
	}
	dial := cfg.DialTimeout
	if dial <= 0 {
		dial = 5 * time.Second
	}
	c := redis.NewClient(&redis.Options{
		Addr:        cfg.Addr,
		Password:    cfg.Password,
		DB:          cfg.DB,
		DialTimeout: dial,
	})
	if err := c.Ping(ctx).Err(); err != nil {
		_ = c.Close()
		return nil, fmt.Errorf("redisstore: ping %s: %w", cfg.Addr, err)
	}

	logger = logging.OrDiscard(logger)
	logger.WithFields(logrus.Fields{"addr": cfg.Addr, "db": cfg.DB}).Info("connected to redis state store")
	return &Store{client: c, logger: logger}, nil
}

func newWithClient(c client) *Store {
	return &Store{client: c, logger: logging.OrDiscard(nil)}
}

// Get returns the value stored under key.
func (s *Store) Get(ctx context.Context, key string) ([]byte, bool, error) {
	value, err := s.client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("redisstore: get %q: %w", key, err)
	}
	return value, true, nil
}

// Set stores value under key without expiry.
func (s *Store) Set(ctx context.Context, key string, value []byte) error {
	if err := s.client.Set(ctx, key, value, 0).Err(); err != nil {
		return fmt.Errorf("redisstore: set %q: %w", key, err)
	}
	return nil
}

// Delete removes key.
func (s *Store) Delete(ctx context.Context, key string) error {
	if err := s.client.Del(ctx, key).Err(); err != nil {
		return fmt.Errorf("redisstore: delete %q: %w", key, err)
	}
	return nil
}

// Close closes the connection pool.
func (s *Store) Close() error {
	return s.client.Close()
}
