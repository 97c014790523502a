package queue

import (
	"context"
	"errors"

	"taubsi/internal/domain"
)

// ErrQueueFull возвращается, когда буфер очереди в памяти заполнен.
var ErrQueueFull = errors.New("очередь уведомлений переполнена")

// MemoryNotificationQueue держит очередь уведомлений внутри процесса.
type MemoryNotificationQueue struct {
	jobs chan domain.NotificationJob
}

var _ domain.NotificationQueue = (*MemoryNotificationQueue)(nil)

// NewMemoryNotificationQueue создаёт очередь с буфером size.
func NewMemoryNotificationQueue(size int) *MemoryNotificationQueue {
	if size <= 0 {
		size = 256
	}
	return &MemoryNotificationQueue{jobs: make(chan domain.NotificationJob, size)}
}

// Enqueue кладёт уведомление в буфер без ожидания.
func (q *MemoryNotificationQueue) Enqueue(ctx context.Context, job domain.NotificationJob) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	select {
	case q.jobs <- job:
		return nil
	default:
		return ErrQueueFull
	}
}

// Pop ждёт уведомление или отмену контекста.
func (q *MemoryNotificationQueue) Pop(ctx context.Context) (domain.NotificationJob, error) {
	select {
	case <-ctx.Done():
		return domain.NotificationJob{}, ctx.Err()
	case job := <-q.jobs:
		return job, nil
	}
}
