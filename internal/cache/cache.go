// Package cache keeps resolved role permissions in a shared key-value store.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/frahmantamala/church-cms/internal"
	"github.com/go-redis/redis/v8"
)

var ErrMiss = errors.New("cache miss")

type KV interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key string, value string, ttl time.Duration) error
	Del(ctx context.Context, keys ...string) error
}

type RedisKV struct {
	c *redis.Client
}

func NewRedisClient(cfg internal.RedisConfig) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
}

func NewRedisKV(c *redis.Client) *RedisKV { return &RedisKV{c: c} }

func (r *RedisKV) Get(ctx context.Context, key string) (string, error) {
	val, err := r.c.Get(ctx, key).Result()
	if err != nil {
		if err == redis.Nil {
			return "", ErrMiss
		}
		return "", err
	}
	return val, nil
}

func (r *RedisKV) Set(ctx context.Context, key string, value string, ttl time.Duration) error {
	return r.c.Set(ctx, key, value, ttl).Err()
}

func (r *RedisKV) Del(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	return r.c.Del(ctx, keys...).Err()
}

// NoopKV never stores anything; every read misses.
type NoopKV struct{}

func (NoopKV) Get(context.Context, string) (string, error)              { return "", ErrMiss }
func (NoopKV) Set(context.Context, string, string, time.Duration) error { return nil }
func (NoopKV) Del(context.Context, ...string) error                     { return nil }

// PermissionCache maps a role name to the permission names it grants.
// Cache failures are logged and treated as misses.
type PermissionCache struct {
	kv     KV
	ttl    time.Duration
	logger *slog.Logger
}

func NewPermissionCache(kv KV, ttl time.Duration, logger *slog.Logger) *PermissionCache {
	if kv == nil {
		kv = NoopKV{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &PermissionCache{kv: kv, ttl: ttl, logger: logger}
}

func roleKey(role string) string {
	return "rbac:role:" + role + ":permissions"
}

func (c *PermissionCache) Get(ctx context.Context, role string) ([]string, bool) {
	raw, err := c.kv.Get(ctx, roleKey(role))
	if err != nil {
		if !errors.Is(err, ErrMiss) {
			c.logger.Warn("permission cache read failed", "role", role, "error", err)
		}
		return nil, false
	}
	var perms []string
	if err := json.Unmarshal([]byte(raw), &perms); err != nil {
		c.logger.Warn("permission cache entry unreadable", "role", role, "error", err)
		return nil, false
	}
	return perms, true
}

func (c *PermissionCache) Set(ctx context.Context, role string, perms []string) {
	if perms == nil {
		perms = []string{}
	}
	raw, err := json.Marshal(perms)
	if err != nil {
		return
	}
	if err := c.kv.Set(ctx, roleKey(role), string(raw), c.ttl); err != nil {
		c.logger.Warn("permission cache write failed", "role", role, "error", err)
	}
}

func (c *PermissionCache) Invalidate(ctx context.Context, roles ...string) {
	keys := make([]string, 0, len(roles))
	for _, r := range roles {
		keys = append(keys, roleKey(r))
	}
	if err := c.kv.Del(ctx, keys...); err != nil {
		c.logger.Warn("permission cache invalidation failed", "roles", roles, "error", err)
	}
}
