package ratelimit

import (
	"context"
	"fmt"

	"github.com/bwmarrin/snowflake"
	redis "github.com/redis/go-redis/v9"
	"github.com/vouchnet/vouchnet/internal/config"
)

const keyInviteSendAccount = "invite:send:account:%d"

// InviteSendLimiter throttles outbound invitations per sender account.
// When redis is not configured the limiter is disabled and every send
// is allowed.
type InviteSendLimiter struct {
	enabled bool

	bucket *TokenBucket
	rate   float64
	burst  int
}

func NewInviteSendLimiter(cfg config.Config, client *redis.Client) *InviteSendLimiter {
	if client == nil {
		return nil
	}
	if cfg.InviteSendRate <= 0 || cfg.InviteSendBurst <= 0 {
		return nil
	}
	return &InviteSendLimiter{
		enabled: true,
		bucket:  NewTokenBucket(client),
		rate:    cfg.InviteSendRate,
		burst:   cfg.InviteSendBurst,
	}
}

func (l *InviteSendLimiter) Enabled() bool {
	return l != nil && l.enabled
}

func (l *InviteSendLimiter) AllowSend(ctx context.Context, senderID snowflake.ID) (bool, error) {
	if !l.Enabled() {
		return true, nil
	}
	return l.bucket.Allow(ctx, fmt.Sprintf(keyInviteSendAccount, senderID.Int64()), l.rate, l.burst)
}
