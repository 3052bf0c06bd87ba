package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/aretw0/opera/pkg/domain"
	"github.com/aretw0/opera/pkg/ports"
	backend "github.com/redis/go-redis/v9"
)

// Cache implements ports.AnalysisCache using Redis. Entries live under
// prefix+"entry:"+key; a sorted set at prefix+"index" orders them by write
// time so the oldest writes are evicted first when over capacity.
type Cache struct {
	client   *backend.Client
	prefix   string
	ttl      time.Duration
	capacity atomic.Int64
}

type Option func(*Cache)

// WithTTL sets the expiration for entries.
func WithTTL(ttl time.Duration) Option {
	return func(c *Cache) {
		c.ttl = ttl
	}
}

// WithPrefix sets the key prefix.
func WithPrefix(prefix string) Option {
	return func(c *Cache) {
		c.prefix = prefix
	}
}

// WithSizeMB sets the initial capacity from a hash size.
func WithSizeMB(mb int) Option {
	return func(c *Cache) {
		c.capacity.Store(int64(ports.CapacityFor(mb)))
	}
}

// New creates a new Redis cache with options.
func New(address, password string, db int, opts ...Option) *Cache {
	rdb := backend.NewClient(&backend.Options{
		Addr:     address,
		Password: password,
		DB:       db,
	})
	return NewFromClient(rdb, opts...)
}

// NewFromClient creates a new Redis cache from an existing client.
func NewFromClient(client *backend.Client, opts ...Option) *Cache {
	c := &Cache{
		client: client,
		prefix: "opera:analysis:",
	}
	c.capacity.Store(int64(ports.CapacityFor(16)))

	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *Cache) key(k string) string {
	return c.prefix + "entry:" + k
}

func (c *Cache) indexKey() string {
	return c.prefix + "index"
}

// Ping checks connectivity.
func (c *Cache) Ping(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}

// Save stores the entry unless a deeper one is already cached.
func (c *Cache) Save(ctx context.Context, entry ports.AnalysisEntry) error {
	existing, err := c.Load(ctx, entry.Key)
	switch {
	case err == nil && existing.Depth > entry.Depth:
		return nil
	case err != nil && !errors.Is(err, domain.ErrCacheMiss):
		return err
	}

	data, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("failed to marshal analysis entry: %w", err)
	}

	pipe := c.client.Pipeline()
	pipe.Set(ctx, c.key(entry.Key), data, c.ttl)
	pipe.ZAdd(ctx, c.indexKey(), backend.Z{
		Score:  float64(time.Now().UnixMicro()) / 1e6,
		Member: entry.Key,
	})
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to save to redis: %w", err)
	}

	return c.evict(ctx)
}

// evict drops the oldest writes until the index fits the capacity.
func (c *Cache) evict(ctx context.Context) error {
	size, err := c.client.ZCard(ctx, c.indexKey()).Result()
	if err != nil {
		return fmt.Errorf("failed to count entries: %w", err)
	}
	excess := size - c.capacity.Load()
	if excess <= 0 {
		return nil
	}

	victims, err := c.client.ZPopMin(ctx, c.indexKey(), excess).Result()
	if err != nil {
		return fmt.Errorf("failed to evict entries: %w", err)
	}
	keys := make([]string, 0, len(victims))
	for _, v := range victims {
		if member, ok := v.Member.(string); ok {
			keys = append(keys, c.key(member))
		}
	}
	if len(keys) == 0 {
		return nil
	}
	return c.client.Del(ctx, keys...).Err()
}

// Load retrieves the entry for key.
func (c *Cache) Load(ctx context.Context, key string) (ports.AnalysisEntry, error) {
	val, err := c.client.Get(ctx, c.key(key)).Bytes()
	if err != nil {
		if errors.Is(err, backend.Nil) {
			return ports.AnalysisEntry{}, domain.ErrCacheMiss
		}
		return ports.AnalysisEntry{}, fmt.Errorf("failed to get from redis: %w", err)
	}

	var entry ports.AnalysisEntry
	if err := json.Unmarshal(val, &entry); err != nil {
		return ports.AnalysisEntry{}, fmt.Errorf("failed to unmarshal analysis entry: %w", err)
	}
	return entry, nil
}

// Clear removes every entry and the index.
func (c *Cache) Clear(ctx context.Context) error {
	members, err := c.client.ZRange(ctx, c.indexKey(), 0, -1).Result()
	if err != nil {
		return fmt.Errorf("failed to list entries: %w", err)
	}

	keys := make([]string, 0, len(members)+1)
	for _, m := range members {
		keys = append(keys, c.key(m))
	}
	keys = append(keys, c.indexKey())
	return c.client.Del(ctx, keys...).Err()
}

// Len returns the number of live entries, pruning expired ones from the
// index first.
func (c *Cache) Len(ctx context.Context) (int, error) {
	if c.ttl > 0 {
		cutoff := float64(time.Now().Add(-c.ttl).UnixMicro()) / 1e6
		err := c.client.ZRemRangeByScore(ctx, c.indexKey(), "-inf", strconv.FormatFloat(cutoff, 'f', 6, 64)).Err()
		if err != nil {
			return 0, fmt.Errorf("failed to prune expired entries: %w", err)
		}
	}

	n, err := c.client.ZCard(ctx, c.indexKey()).Result()
	if err != nil {
		return 0, fmt.Errorf("failed to count entries: %w", err)
	}
	return int(n), nil
}

// Resize changes the capacity, evicting the oldest writes as needed.
func (c *Cache) Resize(ctx context.Context, sizeMB int) error {
	c.capacity.Store(int64(ports.CapacityFor(sizeMB)))
	return c.evict(ctx)
}

// Capacity returns the maximum number of entries.
func (c *Cache) Capacity() int {
	return int(c.capacity.Load())
}

// Close closes the redis client.
func (c *Cache) Close() error {
	return c.client.Close()
}
