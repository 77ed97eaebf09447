package mq

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/ryshoes/storefront/config"
)

// RabbitMQBroker publishes each channel to a fanout exchange of the same
// name. Every subscriber binds its own exclusive queue, so each one sees
// every event published while it is connected.
type RabbitMQBroker struct {
	conn     *amqp.Connection
	durable  bool
	prefetch int

	mu       sync.Mutex
	pub      *amqp.Channel
	declared map[string]bool
}

func NewRabbitMQBroker(cfg config.RabbitMQConfig) (*RabbitMQBroker, error) {
	if strings.TrimSpace(cfg.URL) == "" {
		return nil, errors.New("rabbitmq url is required")
	}

	conn, err := amqp.Dial(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("dial rabbitmq: %w", err)
	}

	pub, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("open rabbitmq channel: %w", err)
	}

	return &RabbitMQBroker{
		conn:     conn,
		durable:  cfg.Durable,
		prefetch: cfg.PrefetchCount,
		pub:      pub,
		declared: make(map[string]bool),
	}, nil
}

func (r *RabbitMQBroker) Publish(ctx context.Context, channel, eventType string, body []byte) (string, error) {
	if strings.TrimSpace(channel) == "" {
		return "", errors.New("rabbitmq channel is required")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if !r.declared[channel] {
		if err := r.declareExchange(r.pub, channel); err != nil {
			return "", err
		}
		r.declared[channel] = true
	}

	mode := amqp.Transient
	if r.durable {
		mode = amqp.Persistent
	}

	id := uuid.NewString()
	err := r.pub.PublishWithContext(ctx, channel, "", false, false, amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: mode,
		MessageId:    id,
		Type:         eventType,
		Timestamp:    time.Now().UTC(),
		Body:         body,
	})
	if err != nil {
		return "", fmt.Errorf("publish to %s: %w", channel, err)
	}
	return id, nil
}

// Subscribe consumes on a dedicated AMQP channel so a slow handler never
// blocks publishers. A failed delivery is requeued once, then dropped.
func (r *RabbitMQBroker) Subscribe(ctx context.Context, channel string, handler Handler) error {
	if strings.TrimSpace(channel) == "" {
		return errors.New("rabbitmq channel is required")
	}

	ch, err := r.conn.Channel()
	if err != nil {
		return fmt.Errorf("open rabbitmq channel: %w", err)
	}
	defer ch.Close()

	if r.prefetch > 0 {
		if err := ch.Qos(r.prefetch, 0, false); err != nil {
			return err
		}
	}
	if err := r.declareExchange(ch, channel); err != nil {
		return err
	}

	queue, err := ch.QueueDeclare("", false, true, true, false, nil)
	if err != nil {
		return fmt.Errorf("declare queue: %w", err)
	}
	if err := ch.QueueBind(queue.Name, "", channel, false, nil); err != nil {
		return fmt.Errorf("bind %s: %w", queue.Name, err)
	}

	deliveries, err := ch.ConsumeWithContext(ctx, queue.Name, "", false, true, false, false, nil)
	if err != nil {
		return fmt.Errorf("consume %s: %w", queue.Name, err)
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case msg, ok := <-deliveries:
			if !ok {
				return errors.New("rabbitmq delivery channel closed")
			}
			err := handler(ctx, Delivery{ID: msg.MessageId, Type: msg.Type, Body: msg.Body})
			if err != nil {
				_ = msg.Nack(false, !msg.Redelivered)
				continue
			}
			_ = msg.Ack(false)
		}
	}
}

func (r *RabbitMQBroker) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.pub != nil {
		_ = r.pub.Close()
	}
	return r.conn.Close()
}

func (r *RabbitMQBroker) declareExchange(ch *amqp.Channel, name string) error {
	if err := ch.ExchangeDeclare(name, amqp.ExchangeFanout, r.durable, false, false, false, nil); err != nil {
		return fmt.Errorf("declare exchange %s: %w", name, err)
	}
	return nil
}
