package rabbitmq

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"

	"kontext/apps/processor/internal/queue"
)

// DeliveryHandler processes one delivery and decides its disposition.
type DeliveryHandler func(ctx context.Context, rec queue.Record) queue.Disposition

// Broker holds one connection and channel shared by the consumer and the
// response publisher.
type Broker struct {
	conn    *amqp.Connection
	channel *amqp.Channel
}

// Dial connects with a fixed number of attempts.
func Dial(ctx context.Context, url string, attempts int, delay time.Duration) (*Broker, error) {
	var conn *amqp.Connection
	var err error

	for i := 1; i <= attempts; i++ {
		conn, err = amqp.Dial(url)
		if err == nil {
			break
		}
		slog.WarnContext(ctx, "amqp connect failed", "attempt", i, "max_attempts", attempts, "error", err)
		if i < attempts {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(delay):
			}
		}
	}
	if err != nil {
		return nil, fmt.Errorf("amqp connect after %d attempts: %w", attempts, err)
	}

	channel, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("opening amqp channel: %w", err)
	}

	slog.InfoContext(ctx, "connected to amqp broker")
	return &Broker{conn: conn, channel: channel}, nil
}

// DeclareQueue declares a durable queue. Rejected messages are routed to
// deadLetterExchange when it is set and discarded otherwise.
func (b *Broker) DeclareQueue(name, deadLetterExchange string) error {
	var args amqp.Table
	if deadLetterExchange != "" {
		args = amqp.Table{"x-dead-letter-exchange": deadLetterExchange}
	}
	_, err := b.channel.QueueDeclare(
		name,
		true,  // durable
		false, // delete when unused
		false, // exclusive
		false, // no-wait
		args,
	)
	if err != nil {
		return fmt.Errorf("declaring queue %s: %w", name, err)
	}
	return nil
}

// Publish sends a persistent message to the named queue through the default
// exchange.
func (b *Broker) Publish(queueName string, body []byte) error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	err := b.channel.PublishWithContext(ctx, "", queueName, false, false, amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		Timestamp:    time.Now(),
		Body:         body,
	})
	if err != nil {
		return fmt.Errorf("publishing to %s: %w", queueName, err)
	}
	return nil
}

// Consume delivers messages from queueName to handle until ctx is done.
func (b *Broker) Consume(ctx context.Context, queueName string, prefetch int, handle DeliveryHandler) error {
	if err := b.channel.Qos(prefetch, 0, false); err != nil {
		return fmt.Errorf("setting qos: %w", err)
	}

	deliveries, err := b.channel.ConsumeWithContext(ctx,
		queueName,
		"",    // consumer
		false, // auto-ack
		false, // exclusive
		false, // no-local
		false, // no-wait
		nil,
	)
	if err != nil {
		return fmt.Errorf("registering consumer on %s: %w", queueName, err)
	}

	slog.InfoContext(ctx, "amqp consumer started", "queue", queueName, "prefetch", prefetch)
	return Drain(ctx, deliveries, handle)
}

// Drain settles every delivery by the handler's disposition. A delivery is
// requeued at most once: a redelivered message that fails again is rejected.
// It returns when ctx is done or the delivery channel closes.
func Drain(ctx context.Context, deliveries <-chan amqp.Delivery, handle DeliveryHandler) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case d, ok := <-deliveries:
			if !ok {
				return fmt.Errorf("amqp delivery channel closed")
			}
			rec := queue.Record{ID: d.MessageId, Body: d.Body}
			if rec.ID == "" {
				rec.ID = strconv.FormatUint(d.DeliveryTag, 10)
			}

			disposition := handle(ctx, rec)
			if disposition == queue.Requeue && d.Redelivered {
				disposition = queue.Reject
			}
			settle(ctx, d, rec.ID, disposition)
		}
	}
}

func settle(ctx context.Context, d amqp.Delivery, id string, disposition queue.Disposition) {
	var err error
	switch disposition {
	case queue.Ack:
		err = d.Ack(false)
	case queue.Requeue:
		slog.WarnContext(ctx, "amqp message failed, requeueing", "message_id", id)
		err = d.Nack(false, true)
	default:
		slog.WarnContext(ctx, "amqp message failed, rejecting", "message_id", id, "redelivered", d.Redelivered)
		err = d.Nack(false, false)
	}
	if err != nil {
		slog.ErrorContext(ctx, "amqp settle failed", "message_id", id, "disposition", disposition.String(), "error", err)
	}
}

func (b *Broker) Close() error {
	if b.channel != nil {
		_ = b.channel.Close()
	}
	if b.conn != nil {
		return b.conn.Close()
	}
	return nil
}
