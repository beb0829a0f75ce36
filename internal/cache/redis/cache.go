// Package redis provides an identifier cache shared across crawler processes.
package redis

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

type commander interface {
	Get(ctx context.Context, key string) *redis.StringCmd
	Set(ctx context.Context, key string, value any, expiration time.Duration) *redis.StatusCmd
}

// Config scopes one cache to an entity type.
type Config struct {
	// Prefix namespaces keys, e.g. "insider".
	Prefix string
	// Entity is the cached table, e.g. "issuer".
	Entity string
	// TTL of 0 keeps keys forever.
	TTL time.Duration
}

// Cache is an edgar.IDCache stored in Redis.
type Cache struct {
	client commander
	cfg    Config
}

// New wraps a connected client.
func New(client commander, cfg Config) *Cache {
	return &Cache{client: client, cfg: cfg}
}

// Connect parses url, builds a client and checks connectivity.
func Connect(ctx context.Context, url string) (*redis.Client, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	client := redis.NewClient(opts)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	return client, nil
}

func (c *Cache) key(k string) string {
	if c.cfg.Prefix == "" {
		return c.cfg.Entity + ":" + k
	}
	return c.cfg.Prefix + ":" + c.cfg.Entity + ":" + k
}

// Get returns the cached id for key.
func (c *Cache) Get(ctx context.Context, key string) (int64, bool, error) {
	raw, err := c.client.Get(ctx, c.key(key)).Result()
	if errors.Is(err, redis.Nil) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, fmt.Errorf("redis get %s: %w", c.key(key), err)
	}
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0, false, fmt.Errorf("redis get %s: bad id %q: %w", c.key(key), raw, err)
	}
	return id, true, nil
}

// Set records id for key.
func (c *Cache) Set(ctx context.Context, key string, id int64) error {
	if err := c.client.Set(ctx, c.key(key), strconv.FormatInt(id, 10), c.cfg.TTL).Err(); err != nil {
		return fmt.Errorf("redis set %s: %w", c.key(key), err)
	}
	return nil
}
