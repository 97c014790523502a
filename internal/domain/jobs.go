package domain

import (
	"context"
	"time"
)

// NotificationCause описывает источник уведомления.
type NotificationCause string

const (
	// NotifyLedger сообщает об изменении в журнале участия.
	NotifyLedger NotificationCause = "ledger"
	// NotifyStartsSoon сообщает, что рейд начинается через 5 минут.
	NotifyStartsSoon NotificationCause = "starts_soon"
	// NotifyHatched сообщает, что из яйца вылупился босс.
	NotifyHatched NotificationCause = "hatched"
)

// NotificationJob описывает личное сообщение подписчику рейда.
type NotificationJob struct {
	ID        string            `json:"job_id"`
	UserID    string            `json:"user_id"`
	Title     string            `json:"title"`
	URL       string            `json:"url,omitempty"`
	Text      string            `json:"text"`
	Cause     NotificationCause `json:"cause"`
	CreatedAt time.Time         `json:"created_at"`
}

// Notifier принимает уведомления к доставке.
type Notifier interface {
	Enqueue(ctx context.Context, job NotificationJob) error
}

// NotificationQueue передаёт уведомления отдельному воркеру.
type NotificationQueue interface {
	Notifier
	Pop(ctx context.Context) (NotificationJob, error)
}
