package locker

import (
	redis "github.com/redis/go-redis/v9"
	"github.com/smallbiznis/flagship/internal/config"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

// NewRedisClient returns nil when no redis address is configured; the Locker
// built from it is nil and callers fall back to database arbitration.
func NewRedisClient(cfg config.Config, log *zap.Logger) *redis.Client {
	if cfg.RedisAddr == "" {
		log.Info("redis not configured, activation locking falls back to database CAS")
		return nil
	}
	return redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})
}

var Module = fx.Module("locker",
	fx.Provide(NewRedisClient),
	fx.Provide(NewLocker),
)
