package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/abhinavprkash/ThreadBrief/internal/domain"
)

// RedisDistributionQueue реализует очередь рассылок на базе Redis lists.
type RedisDistributionQueue struct {
	client *redis.Client
	key    string
}

// NewRedisDistributionQueue создаёт очередь по указанному ключу.
func NewRedisDistributionQueue(client *redis.Client, key string) *RedisDistributionQueue {
	return &RedisDistributionQueue{client: client, key: key}
}

var _ domain.DistributionQueue = (*RedisDistributionQueue)(nil)

// Enqueue публикует задачу в очередь. Пустой идентификатор задачи
// заполняется, чтобы воркер мог сослаться на неё в логах.
func (q *RedisDistributionQueue) Enqueue(ctx context.Context, job domain.DistributionJob) error {
	if job.ID == "" {
		job.ID = uuid.NewString()
	}
	payload, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("marshal job: %w", err)
	}
	if err := q.client.LPush(ctx, q.key, payload).Err(); err != nil {
		return fmt.Errorf("push job: %w", err)
	}
	return nil
}

// Receive блокирующе читает задачу из очереди.
// Подтверждение с success=false возвращает задачу в начало очереди.
func (q *RedisDistributionQueue) Receive(ctx context.Context) (domain.DistributionJob, domain.DistributionAckFunc, error) {
	for {
		if err := ctx.Err(); err != nil {
			return domain.DistributionJob{}, nil, err
		}

		res, err := q.client.BRPop(ctx, time.Second, q.key).Result()
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				if ctx.Err() != nil {
					return domain.DistributionJob{}, nil, ctx.Err()
				}
				continue
			}
			if errors.Is(err, redis.Nil) {
				continue
			}
			return domain.DistributionJob{}, nil, err
		}
		if len(res) != 2 {
			return domain.DistributionJob{}, nil, errors.New("redis queue: unexpected response")
		}
		payload := res[1]
		var job domain.DistributionJob
		if err := json.Unmarshal([]byte(payload), &job); err != nil {
			return domain.DistributionJob{}, nil, fmt.Errorf("decode job: %w", err)
		}
		ack := func(success bool) error {
			if success {
				return nil
			}
			requeueCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := q.client.LPush(requeueCtx, q.key, payload).Err(); err != nil {
				return fmt.Errorf("requeue job: %w", err)
			}
			return nil
		}
		return job, ack, nil
	}
}
