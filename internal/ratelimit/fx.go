package ratelimit

import (
	"strings"

	redis "github.com/redis/go-redis/v9"
	"github.com/vouchnet/vouchnet/internal/config"
	"go.uber.org/fx"
)

// NewRedisClient returns nil when no redis address is configured. Consumers
// treat a nil client as "feature disabled" rather than an error.
func NewRedisClient(cfg config.Config) *redis.Client {
	addr := strings.TrimSpace(cfg.RedisAddr)
	if addr == "" {
		return nil
	}
	return redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: strings.TrimSpace(cfg.RedisPassword),
		DB:       cfg.RedisDB,
	})
}

var Module = fx.Module("rate.limit",
	fx.Provide(NewRedisClient),
	fx.Provide(NewLocker),
	fx.Provide(NewInviteSendLimiter),
)
