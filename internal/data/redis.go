package data

import (
	"context"
	"time"

	"FlapBoard/internal/conf"

	"github.com/go-kratos/kratos/v2/log"
	"github.com/redis/go-redis/v9"
)

// NewRedisClient creates the Redis client used for circuit state caching.
// Redis is optional: when the server is unreachable the client is still
// returned and the repositories fall back to direct database reads, so a
// cache outage never blocks startup.
func NewRedisClient(cfg *conf.Data, logger log.Logger) *redis.Client {
	helper := log.NewHelper(logger)

	if cfg.Redis == nil || cfg.Redis.Addr == "" {
		helper.Warn("redis not configured, circuit state caching disabled")
		return nil
	}

	rdb := redis.NewClient(&redis.Options{
		Network:      cfg.Redis.Network,
		Addr:         cfg.Redis.Addr,
		ReadTimeout:  cfg.Redis.ReadTimeout,
		WriteTimeout: cfg.Redis.WriteTimeout,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		helper.Warnw("redis unreachable, running in degraded mode",
			"addr", cfg.Redis.Addr,
			"error", err)
		return rdb
	}

	helper.Info("redis connected")
	return rdb
}
