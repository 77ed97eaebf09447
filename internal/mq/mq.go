package mq

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/sirupsen/logrus"
)

// Delivery is one message handed to a subscriber, whatever broker carried it.
type Delivery struct {
	ID   string
	Type string
	Body []byte
}

// Handler processes a delivery. A non-nil error asks the broker to redeliver.
type Handler func(ctx context.Context, d Delivery) error

// Broker moves opaque event bodies between the publishers and subscribers of
// a channel.
type Broker interface {
	Publish(ctx context.Context, channel, eventType string, body []byte) (string, error)
	Subscribe(ctx context.Context, channel string, handler Handler) error
	Close() error
}

// EventHandler receives a decoded event together with its broker message id.
type EventHandler func(ctx context.Context, id string, event Event) error

// MQ publishes and consumes storefront events over a Broker.
type MQ struct {
	broker Broker
}

func New(broker Broker) *MQ {
	return &MQ{broker: broker}
}

// PublishEvent encodes event and sends it to channel.
func (m *MQ) PublishEvent(ctx context.Context, channel string, event Event) (string, error) {
	body, err := json.Marshal(event)
	if err != nil {
		return "", fmt.Errorf("encode %s event: %w", event.Type, err)
	}
	return m.broker.Publish(ctx, channel, event.Type, body)
}

// Subscribe hands every event on channel to handler until ctx is done.
// Deliveries that do not decode as events are logged and acknowledged so
// they never come back.
func (m *MQ) Subscribe(ctx context.Context, channel string, handler EventHandler) error {
	return m.broker.Subscribe(ctx, channel, func(ctx context.Context, d Delivery) error {
		var event Event
		if err := json.Unmarshal(d.Body, &event); err != nil || event.Type == "" {
			logrus.WithError(err).WithFields(logrus.Fields{
				"channel":    channel,
				"message_id": d.ID,
			}).Warn("skipping malformed event")
			return nil
		}
		return handler(ctx, d.ID, event)
	})
}

func (m *MQ) Close() error {
	return m.broker.Close()
}
