package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/vKaizen/graduation-backend/pkg/auth"
)

// RoleCache caches workspace role lookups in Redis for read-only display
// paths. Mutations never consult it: they re-resolve the role inside their
// own transaction. A stale entry can therefore only mislabel a badge in the
// UI, never a permission decision.
type RoleCache struct {
	client *redis.Client
	ttl    time.Duration

	hits   prometheus.Counter // optional
	misses prometheus.Counter
}

// NewRoleCache creates a role cache from a Redis URL
func NewRoleCache(url string, ttl time.Duration) (*RoleCache, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("invalid redis URL: %w", err)
	}

	opts.DialTimeout = 5 * time.Second
	opts.ReadTimeout = 3 * time.Second
	opts.WriteTimeout = 3 * time.Second

	client := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	return NewRoleCacheWithClient(client, ttl), nil
}

// NewRoleCacheWithClient wraps an existing Redis client
func NewRoleCacheWithClient(client *redis.Client, ttl time.Duration) *RoleCache {
	return &RoleCache{client: client, ttl: ttl}
}

// WithMetrics attaches hit and miss counters to the cache
func (c *RoleCache) WithMetrics(hits, misses prometheus.Counter) *RoleCache {
	c.hits = hits
	c.misses = misses
	return c
}

func (c *RoleCache) countHit() {
	if c.hits != nil {
		c.hits.Inc()
	}
}

func (c *RoleCache) countMiss() {
	if c.misses != nil {
		c.misses.Inc()
	}
}

func roleKey(workspaceID, userID int64) string {
	return fmt.Sprintf("workspace:%d:member:%d:role", workspaceID, userID)
}

// GetRole retrieves a cached role. The second return value reports a hit.
func (c *RoleCache) GetRole(ctx context.Context, workspaceID, userID int64) (auth.Role, bool, error) {
	val, err := c.client.Get(ctx, roleKey(workspaceID, userID)).Result()
	if err == redis.Nil {
		c.countMiss()
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("redis get failed: %w", err)
	}

	role := auth.Role(val)
	if !role.Valid() {
		// Corrupt entry; drop it and report a miss
		c.client.Del(ctx, roleKey(workspaceID, userID))
		c.countMiss()
		return "", false, nil
	}
	c.countHit()
	return role, true, nil
}

// SetRole caches a role lookup
func (c *RoleCache) SetRole(ctx context.Context, workspaceID, userID int64, role auth.Role) error {
	if err := c.client.Set(ctx, roleKey(workspaceID, userID), string(role), c.ttl).Err(); err != nil {
		return fmt.Errorf("redis set failed: %w", err)
	}
	return nil
}

// Invalidate drops a single member's cached role
func (c *RoleCache) Invalidate(ctx context.Context, workspaceID, userID int64) error {
	if err := c.client.Del(ctx, roleKey(workspaceID, userID)).Err(); err != nil {
		return fmt.Errorf("redis del failed: %w", err)
	}
	return nil
}

// InvalidateWorkspace drops all cached roles for a workspace
func (c *RoleCache) InvalidateWorkspace(ctx context.Context, workspaceID int64) error {
	pattern := fmt.Sprintf("workspace:%d:member:*:role", workspaceID)
	keys, err := c.client.Keys(ctx, pattern).Result()
	if err != nil {
		return fmt.Errorf("redis keys failed: %w", err)
	}
	if len(keys) == 0 {
		return nil
	}
	if err := c.client.Del(ctx, keys...).Err(); err != nil {
		return fmt.Errorf("redis del failed: %w", err)
	}
	return nil
}

// Close releases the underlying client
func (c *RoleCache) Close() error {
	return c.client.Close()
}
