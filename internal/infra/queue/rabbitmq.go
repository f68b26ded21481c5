package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/abhinavprkash/ThreadBrief/internal/domain"
	"github.com/abhinavprkash/ThreadBrief/internal/infra/metrics"
)

// RabbitDistributionQueue реализует очередь рассылок через AMQP брокер.
type RabbitDistributionQueue struct {
	conn  *amqp.Connection
	ch    *amqp.Channel
	queue string

	deliveries <-chan amqp.Delivery
}

// NewRabbitDistributionQueue подключается к брокеру и объявляет durable-очередь.
func NewRabbitDistributionQueue(amqpURL, queue string) (*RabbitDistributionQueue, error) {
	if amqpURL == "" {
		return nil, errors.New("amqp url is empty")
	}
	if queue == "" {
		return nil, errors.New("queue name is empty")
	}
	conn, err := amqp.Dial(amqpURL)
	if err != nil {
		return nil, fmt.Errorf("dial amqp: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("open channel: %w", err)
	}
	if _, err := ch.QueueDeclare(queue, true, false, false, false, nil); err != nil {
		_ = ch.Close()
		_ = conn.Close()
		return nil, fmt.Errorf("declare queue: %w", err)
	}
	return &RabbitDistributionQueue{conn: conn, ch: ch, queue: queue}, nil
}

var _ domain.DistributionQueue = (*RabbitDistributionQueue)(nil)

// Enqueue публикует задачу в очередь. Пустой идентификатор задачи
// заполняется, чтобы воркер мог сослаться на неё в логах.
func (q *RabbitDistributionQueue) Enqueue(ctx context.Context, job domain.DistributionJob) error {
	if job.ID == "" {
		job.ID = uuid.NewString()
	}
	payload, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("marshal job: %w", err)
	}
	start := time.Now()
	err = q.ch.PublishWithContext(ctx, "", q.queue, false, false, amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		Body:         payload,
	})
	metrics.ObserveNetworkRequest("rabbitmq", "publish", q.queue, start, err)
	if err != nil {
		return fmt.Errorf("publish job: %w", err)
	}
	return nil
}

// Receive блокирующе читает задачу из очереди.
// Подтверждение с success=false возвращает задачу брокеру для повторной доставки.
func (q *RabbitDistributionQueue) Receive(ctx context.Context) (domain.DistributionJob, domain.DistributionAckFunc, error) {
	if q.deliveries == nil {
		if err := q.ch.Qos(1, 0, false); err != nil {
			return domain.DistributionJob{}, nil, fmt.Errorf("set qos: %w", err)
		}
		deliveries, err := q.ch.Consume(q.queue, "", false, false, false, false, nil)
		if err != nil {
			return domain.DistributionJob{}, nil, fmt.Errorf("start consume: %w", err)
		}
		q.deliveries = deliveries
	}

	select {
	case <-ctx.Done():
		return domain.DistributionJob{}, nil, ctx.Err()
	case d, ok := <-q.deliveries:
		if !ok {
			return domain.DistributionJob{}, nil, errors.New("amqp queue: deliveries channel closed")
		}
		var job domain.DistributionJob
		if err := json.Unmarshal(d.Body, &job); err != nil {
			_ = d.Nack(false, false)
			return domain.DistributionJob{}, nil, fmt.Errorf("decode job: %w", err)
		}
		ack := func(success bool) error {
			if success {
				return d.Ack(false)
			}
			return d.Nack(false, true)
		}
		return job, ack, nil
	}
}

// Close освобождает канал и соединение с брокером.
func (q *RabbitDistributionQueue) Close() error {
	if err := q.ch.Close(); err != nil {
		_ = q.conn.Close()
		return fmt.Errorf("close channel: %w", err)
	}
	if err := q.conn.Close(); err != nil {
		return fmt.Errorf("close connection: %w", err)
	}
	return nil
}
