package queue

import (
	"context"
	"errors"
	"testing"

	"taubsi/internal/domain"
)

func TestDecodeJob(t *testing.T) {
	job, err := decodeJob([]byte(`{"job_id":"a1","user_id":"42","title":"Brunnen","text":"▶️ Ash (2)","cause":"ledger"}`))
	if err != nil {
		t.Fatalf("не ожидали ошибку: %v", err)
	}
	if job.ID != "a1" || job.UserID != "42" || job.Cause != "ledger" {
		t.Fatalf("неверно разобрано уведомление: %+v", job)
	}
	if _, err := decodeJob([]byte("{")); err == nil {
		t.Fatalf("ожидали ошибку для битого JSON")
	}
}

func TestRabbitQueueRequiresURL(t *testing.T) {
	if _, err := NewRabbitNotificationQueue("", "q"); err == nil {
		t.Fatalf("ожидали ошибку для пустого URL")
	}
	if _, err := NewRabbitNotificationQueue("amqp://localhost", ""); err == nil {
		t.Fatalf("ожидали ошибку для пустой очереди")
	}
}

func TestMemoryQueue(t *testing.T) {
	q := NewMemoryNotificationQueue(1)
	ctx := context.Background()
	if err := q.Enqueue(ctx, domain.NotificationJob{ID: "a"}); err != nil {
		t.Fatalf("не ожидали ошибку: %v", err)
	}
	if err := q.Enqueue(ctx, domain.NotificationJob{ID: "b"}); !errors.Is(err, ErrQueueFull) {
		t.Fatalf("ожидали ErrQueueFull, получили %v", err)
	}
	job, err := q.Pop(ctx)
	if err != nil || job.ID != "a" {
		t.Fatalf("ожидали задание a, получили %+v %v", job, err)
	}
	cancelled, cancel := context.WithCancel(ctx)
	cancel()
	if _, err := q.Pop(cancelled); !errors.Is(err, context.Canceled) {
		t.Fatalf("ожидали отмену, получили %v", err)
	}
}
