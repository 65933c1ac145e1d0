package repository

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"

	"community_chat/pkg/logger"
)

// RateLimitRepository counts hits per key inside a fixed window. The
// increment and the window expiry are applied in one pipeline so
// concurrent requests cannot slip between a read and a write.
type RateLimitRepository interface {
	Hit(ctx context.Context, key string, window time.Duration) (int64, error)
}

type rateLimitRepository struct {
	redis *redis.Client
	log   logger.Logger
}

func NewRateLimitRepository(redis *redis.Client, log logger.Logger) RateLimitRepository {
	return &rateLimitRepository{redis: redis, log: log}
}

// Hit increments the counter and returns its new value. ExpireNX arms
// the window only on the first hit, so the counter resets a fixed
// interval after the window opened rather than sliding with traffic.
func (r *rateLimitRepository) Hit(ctx context.Context, key string, window time.Duration) (int64, error) {
	pipe := r.redis.TxPipeline()
	incr := pipe.Incr(ctx, key)
	pipe.ExpireNX(ctx, key, window)

	if _, err := pipe.Exec(ctx); err != nil {
		r.log.Error("Failed to record rate limit hit", "error", err)
		return 0, err
	}

	return incr.Val(), nil
}
