package notify

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"taubsi/internal/domain"
	"taubsi/internal/infra/metrics"
)

const (
	dedupeTTL  = 24 * time.Hour
	retryDelay = time.Second
)

// Sender отправляет личное сообщение.
type Sender interface {
	SendDirect(ctx context.Context, userID string, msg domain.Rendered) error
}

// Message строит личное сообщение из задания.
func Message(job domain.NotificationJob) domain.Rendered {
	msg := domain.Rendered{Title: job.Title, Description: job.Text}
	if job.URL != "" {
		msg.Buttons = []domain.Button{{Label: job.Title, URL: job.URL}}
	}
	return msg
}

// Worker читает очередь и доставляет уведомления с ограничением частоты.
type Worker struct {
	queue   domain.NotificationQueue
	sender  Sender
	dedupe  domain.Cache
	limiter *rate.Limiter
	log     zerolog.Logger
}

// NewWorker создаёт воркер. dedupe может быть nil.
func NewWorker(queue domain.NotificationQueue, sender Sender, dedupe domain.Cache, rps float64, logger zerolog.Logger) *Worker {
	limit := rate.Inf
	if rps > 0 {
		limit = rate.Limit(rps)
	}
	return &Worker{
		queue:   queue,
		sender:  sender,
		dedupe:  dedupe,
		limiter: rate.NewLimiter(limit, 1),
		log:     logger,
	}
}

// Run обрабатывает задания до отмены контекста.
func (w *Worker) Run(ctx context.Context) error {
	for {
		job, err := w.queue.Pop(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			metrics.IncNotification("pop_error")
			w.log.Error().Err(err).Msg("notify: не удалось прочитать очередь")
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(retryDelay):
			}
			continue
		}
		if err := w.Handle(ctx, job); err != nil {
			w.log.Warn().Err(err).Str("job_id", job.ID).Str("user_id", job.UserID).Msg("notify: уведомление не доставлено")
		}
	}
}

// Handle доставляет одно задание. Повторная доставка того же задания пропускается.
func (w *Worker) Handle(ctx context.Context, job domain.NotificationJob) error {
	send := func() error {
		if err := w.limiter.Wait(ctx); err != nil {
			return fmt.Errorf("ожидание лимита: %w", err)
		}
		start := time.Now()
		err := w.sender.SendDirect(ctx, job.UserID, Message(job))
		metrics.ObserveNetworkRequest("notify", "send_direct", string(job.Cause), start, err)
		if err != nil {
			return fmt.Errorf("отправка личного сообщения: %w", err)
		}
		return nil
	}

	var err error
	if w.dedupe != nil && job.ID != "" {
		err = w.dedupe.Once("notify:"+job.ID, dedupeTTL, send)
	} else {
		err = send()
	}
	switch {
	case err == nil:
		metrics.IncNotification("sent")
	case errors.Is(err, domain.ErrNotFound):
		metrics.IncNotification("unreachable")
	default:
		metrics.IncNotification("error")
	}
	return err
}
