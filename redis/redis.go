// Package redis provides the shared coordination store: key-value cells,
// the crawl frontier, per-domain token buckets, distributed locks, the
// fingerprint index, and the message bus, all backed by Redis.
package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/fwojciec/trawl"
)

// Client wraps a Redis connection shared by the coordination services.
type Client struct {
	rdb  *redis.Client
	addr string
}

// NewClient creates a Client for the given address.
func NewClient(addr string) *Client {
	return &Client{addr: addr}
}

// Open connects and verifies the connection.
func (c *Client) Open() error {
	rdb := redis.NewClient(&redis.Options{Addr: c.addr})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		rdb.Close()
		return fmt.Errorf("failed to connect to redis at %s: %w", c.addr, err)
	}

	c.rdb = rdb
	return nil
}

// Close closes the connection.
func (c *Client) Close() error {
	if c.rdb != nil {
		return c.rdb.Close()
	}
	return nil
}

// Compile-time interface verification.
var (
	_ trawl.KV    = (*KV)(nil)
	_ trawl.Cache = (*Cache)(nil)
)

// KV implements trawl.KV on the shared store.
type KV struct {
	client *Client
}

// NewKV creates a KV on the client.
func NewKV(client *Client) *KV {
	return &KV{client: client}
}

// Get retrieves a value. Returns ENOTFOUND if the key is absent or
// expired.
func (kv *KV) Get(ctx context.Context, key string) (string, error) {
	val, err := kv.client.rdb.Get(ctx, key).Result()
	if err == redis.Nil {
		return "", trawl.Errorf(trawl.ENOTFOUND, "key not found")
	}
	if err != nil {
		return "", err
	}
	return val, nil
}

// Set writes a value. A zero ttl means no expiry.
func (kv *KV) Set(ctx context.Context, key, value string, ttl time.Duration) error {
	return kv.client.rdb.Set(ctx, key, value, ttl).Err()
}

// SetNX writes a value only if the key is absent.
func (kv *KV) SetNX(ctx context.Context, key, value string, ttl time.Duration) (bool, error) {
	return kv.client.rdb.SetNX(ctx, key, value, ttl).Result()
}

// Del removes a key.
func (kv *KV) Del(ctx context.Context, key string) error {
	return kv.client.rdb.Del(ctx, key).Err()
}

// IncrByFloat atomically adds delta to a numeric cell.
func (kv *KV) IncrByFloat(ctx context.Context, key string, delta float64) (float64, error) {
	return kv.client.rdb.IncrByFloat(ctx, key, delta).Result()
}

// Cache implements trawl.Cache on the shared store.
type Cache struct {
	client *Client
}

// NewCache creates a Cache on the client.
func NewCache(client *Client) *Cache {
	return &Cache{client: client}
}

// GetBytes retrieves a cached blob. Returns ENOTFOUND on miss.
func (c *Cache) GetBytes(ctx context.Context, key string) ([]byte, error) {
	blob, err := c.client.rdb.Get(ctx, key).Bytes()
	if err == redis.Nil {
		return nil, trawl.Errorf(trawl.ENOTFOUND, "cache miss")
	}
	if err != nil {
		return nil, err
	}
	return blob, nil
}

// SetBytes stores a blob with the given ttl.
func (c *Cache) SetBytes(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	return c.client.rdb.Set(ctx, key, value, ttl).Err()
}
