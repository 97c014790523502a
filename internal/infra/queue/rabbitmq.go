package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"

	"taubsi/internal/domain"
	"taubsi/internal/infra/metrics"
)

// RabbitNotificationQueue передаёт уведомления через AMQP.
type RabbitNotificationQueue struct {
	conn  *amqp.Connection
	queue string

	mu         sync.Mutex
	pubCh      *amqp.Channel
	consumeCh  *amqp.Channel
	deliveries <-chan amqp.Delivery
}

var _ domain.NotificationQueue = (*RabbitNotificationQueue)(nil)

// NewRabbitNotificationQueue подключается к брокеру и объявляет durable очередь.
func NewRabbitNotificationQueue(amqpURL, queue string) (*RabbitNotificationQueue, error) {
	if amqpURL == "" {
		return nil, errors.New("amqp url is empty")
	}
	if queue == "" {
		return nil, errors.New("queue name is empty")
	}
	start := time.Now()
	conn, err := amqp.Dial(amqpURL)
	metrics.ObserveNetworkRequest("rabbitmq", "dial", queue, start, err)
	if err != nil {
		return nil, fmt.Errorf("dial amqp: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("open channel: %w", err)
	}
	if _, err := ch.QueueDeclare(queue, true, false, false, false, nil); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("declare queue: %w", err)
	}
	return &RabbitNotificationQueue{conn: conn, queue: queue, pubCh: ch}, nil
}

// Enqueue публикует уведомление как persistent сообщение.
func (q *RabbitNotificationQueue) Enqueue(ctx context.Context, job domain.NotificationJob) error {
	payload, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("marshal job: %w", err)
	}
	q.mu.Lock()
	defer q.mu.Unlock()
	start := time.Now()
	err = q.pubCh.PublishWithContext(ctx, "", q.queue, false, false, amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		MessageId:    job.ID,
		Timestamp:    job.CreatedAt,
		Body:         payload,
	})
	metrics.ObserveNetworkRequest("rabbitmq", "publish", q.queue, start, err)
	if err != nil {
		return fmt.Errorf("publish job: %w", err)
	}
	return nil
}

// Pop блокирующе читает уведомление. Сообщение подтверждается после декодирования.
func (q *RabbitNotificationQueue) Pop(ctx context.Context) (domain.NotificationJob, error) {
	deliveries, err := q.consume()
	if err != nil {
		return domain.NotificationJob{}, err
	}
	select {
	case <-ctx.Done():
		return domain.NotificationJob{}, ctx.Err()
	case d, ok := <-deliveries:
		if !ok {
			q.mu.Lock()
			q.deliveries = nil
			q.mu.Unlock()
			return domain.NotificationJob{}, errors.New("rabbitmq: delivery channel closed")
		}
		job, err := decodeJob(d.Body)
		if err != nil {
			_ = d.Nack(false, false)
			return domain.NotificationJob{}, err
		}
		if err := d.Ack(false); err != nil {
			return domain.NotificationJob{}, fmt.Errorf("ack job: %w", err)
		}
		return job, nil
	}
}

func (q *RabbitNotificationQueue) consume() (<-chan amqp.Delivery, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.deliveries != nil {
		return q.deliveries, nil
	}
	ch, err := q.conn.Channel()
	if err != nil {
		return nil, fmt.Errorf("open channel: %w", err)
	}
	if err := ch.Qos(1, 0, false); err != nil {
		_ = ch.Close()
		return nil, fmt.Errorf("set qos: %w", err)
	}
	deliveries, err := ch.Consume(q.queue, "", false, false, false, false, nil)
	if err != nil {
		_ = ch.Close()
		return nil, fmt.Errorf("consume: %w", err)
	}
	q.consumeCh = ch
	q.deliveries = deliveries
	return deliveries, nil
}

// Close закрывает каналы и соединение.
func (q *RabbitNotificationQueue) Close() error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.consumeCh != nil {
		_ = q.consumeCh.Close()
	}
	if q.pubCh != nil {
		_ = q.pubCh.Close()
	}
	return q.conn.Close()
}
