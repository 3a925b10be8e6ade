package cache

import (
	"context"

	"github.com/lettercast/lettercast/internal/config"
	redis "github.com/redis/go-redis/v9"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

// NewRedisClient returns a shared redis client, or nil when no address is
// configured. Consumers nil-check and degrade (rate limiting becomes a
// pass-through, post notifications are dropped with a log line).
func NewRedisClient(lc fx.Lifecycle, cfg config.Config, log *zap.Logger) *redis.Client {
	if cfg.RedisAddr == "" {
		log.Warn("redis not configured, shared-state features degraded")
		return nil
	}

	client := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			return client.Ping(ctx).Err()
		},
		OnStop: func(ctx context.Context) error {
			return client.Close()
		},
	})

	return client
}

// Module wires the shared redis client.
var Module = fx.Module("cache",
	fx.Provide(NewRedisClient),
)
