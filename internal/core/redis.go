// AngelaMos | 2026
// redis.go

package core

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/angelamos/consultancy-api/internal/config"
)

const (
	redisPoolTimeout = 30 * time.Second
	redisIdleTimeout = 5 * time.Minute
	redisPingTimeout = 5 * time.Second
)

// Redis backs rate limiting and the job locks shared across replicas.
type Redis struct {
	Client *redis.Client
	holder string
}

func NewRedis(ctx context.Context, cfg config.RedisConfig) (*Redis, error) {
	opts, err := redis.ParseURL(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}

	if cfg.PoolSize > 0 {
		opts.PoolSize = cfg.PoolSize
	}
	opts.MinIdleConns = cfg.MinIdleConns
	opts.PoolTimeout = redisPoolTimeout
	opts.ConnMaxIdleTime = redisIdleTimeout

	r := &Redis{
		Client: redis.NewClient(opts),
		holder: lockHolder(),
	}

	if err := r.Ping(ctx); err != nil {
		_ = r.Client.Close()
		return nil, err
	}

	return r, nil
}

func lockHolder() string {
	host, err := os.Hostname()
	if err != nil || host == "" {
		host = "unknown"
	}
	return host + ":" + strconv.Itoa(os.Getpid())
}

func (r *Redis) Ping(ctx context.Context) error {
	pingCtx, cancel := context.WithTimeout(ctx, redisPingTimeout)
	defer cancel()

	if err := r.Client.Ping(pingCtx).Err(); err != nil {
		return fmt.Errorf("ping redis: %w", err)
	}
	return nil
}

// TryLock claims key for ttl and reports whether this process now holds it.
// The lock is never released early; it lapses with the ttl.
func (r *Redis) TryLock(
	ctx context.Context,
	key string,
	ttl time.Duration,
) (bool, error) {
	ok, err := r.Client.SetNX(ctx, key, r.holder, ttl).Result()
	if err != nil {
		return false, fmt.Errorf("lock %s: %w", key, err)
	}
	return ok, nil
}

// LockHolder returns who holds key, or "" when it is free.
func (r *Redis) LockHolder(ctx context.Context, key string) (string, error) {
	holder, err := r.Client.Get(ctx, key).Result()
	if errors.Is(err, redis.Nil) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("read lock %s: %w", key, err)
	}
	return holder, nil
}

func (r *Redis) PoolStats() *redis.PoolStats {
	return r.Client.PoolStats()
}

func (r *Redis) Close() error {
	if r.Client == nil {
		return nil
	}
	return r.Client.Close()
}
