package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"taubsi/internal/domain"
	"taubsi/internal/infra/metrics"
)

// RedisNotificationQueue хранит уведомления в Redis list.
type RedisNotificationQueue struct {
	client *redis.Client
	key    string
}

var _ domain.NotificationQueue = (*RedisNotificationQueue)(nil)

// NewRedisNotificationQueue создаёт очередь по указанному ключу.
func NewRedisNotificationQueue(client *redis.Client, key string) *RedisNotificationQueue {
	return &RedisNotificationQueue{client: client, key: key}
}

// Enqueue публикует уведомление.
func (q *RedisNotificationQueue) Enqueue(ctx context.Context, job domain.NotificationJob) error {
	payload, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("marshal job: %w", err)
	}
	start := time.Now()
	err = q.client.LPush(ctx, q.key, payload).Err()
	metrics.ObserveNetworkRequest("redis", "lpush", q.key, start, err)
	if err != nil {
		return fmt.Errorf("push job: %w", err)
	}
	return nil
}

// Pop блокирующе читает уведомление.
func (q *RedisNotificationQueue) Pop(ctx context.Context) (domain.NotificationJob, error) {
	for {
		if err := ctx.Err(); err != nil {
			return domain.NotificationJob{}, err
		}

		res, err := q.client.BRPop(ctx, time.Second, q.key).Result()
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				if ctx.Err() != nil {
					return domain.NotificationJob{}, ctx.Err()
				}
				continue
			}
			if errors.Is(err, redis.Nil) {
				continue
			}
			return domain.NotificationJob{}, err
		}
		if len(res) != 2 {
			return domain.NotificationJob{}, errors.New("redis queue: unexpected response")
		}
		return decodeJob([]byte(res[1]))
	}
}

func decodeJob(data []byte) (domain.NotificationJob, error) {
	var job domain.NotificationJob
	if err := json.Unmarshal(data, &job); err != nil {
		return domain.NotificationJob{}, fmt.Errorf("decode job: %w", err)
	}
	return job, nil
}
