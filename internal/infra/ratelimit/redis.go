package ratelimit

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/abhinavprkash/ThreadBrief/internal/domain"
)

// RedisLimiter считает реакции пользователя в фиксированном окне.
// Счётчик живёт в Redis, поэтому лимит общий для всех экземпляров слушателя.
type RedisLimiter struct {
	client *redis.Client
	prefix string
	window time.Duration
}

// NewRedisLimiter создаёт лимитер с заданным окном.
func NewRedisLimiter(client *redis.Client, prefix string, window time.Duration) *RedisLimiter {
	if prefix == "" {
		prefix = "feedback_rate"
	}
	if window <= 0 {
		window = time.Hour
	}
	return &RedisLimiter{client: client, prefix: prefix, window: window}
}

var _ domain.RateLimiter = (*RedisLimiter)(nil)

// Incr атомарно увеличивает счётчик окна пользователя и возвращает
// новое значение. TTL выставляется только при создании ключа.
func (l *RedisLimiter) Incr(ctx context.Context, userID string) (int64, error) {
	key := fmt.Sprintf("%s:%s", l.prefix, userID)
	pipe := l.client.TxPipeline()
	incr := pipe.Incr(ctx, key)
	pipe.ExpireNX(ctx, key, l.window)
	if _, err := pipe.Exec(ctx); err != nil {
		return 0, fmt.Errorf("incr rate counter: %w", err)
	}
	return incr.Val(), nil
}
