package mq

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/ryshoes/storefront/config"
)

const (
	ChannelOrders   = "storefront.orders"
	ChannelProducts = "storefront.products"
)

const (
	EventOrderCreated       = "order.created"
	EventOrderStatusChanged = "order.status_changed"
	EventProductCreated     = "product.created"
	EventProductUpdated     = "product.updated"
	EventProductDeleted     = "product.deleted"
)

// Event is the JSON envelope published for domain changes.
type Event struct {
	Type       string          `json:"type"`
	EntityID   int             `json:"entityId"`
	OccurredAt time.Time       `json:"occurredAt"`
	Payload    json.RawMessage `json:"payload,omitempty"`
}

// NewEvent builds an event with payload marshaled to JSON.
func NewEvent(eventType string, entityID int, payload any) (Event, error) {
	event := Event{
		Type:       eventType,
		EntityID:   entityID,
		OccurredAt: time.Now().UTC(),
	}
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return Event{}, fmt.Errorf("marshal %s payload: %w", eventType, err)
		}
		event.Payload = data
	}
	return event, nil
}

// Open builds the backend selected by cfg.Backend.
func Open(ctx context.Context, cfg config.MQConfig) (*MQ, error) {
	switch strings.ToLower(strings.TrimSpace(cfg.Backend)) {
	case "", "none":
		return New(DiscardBroker{}), nil
	case "rabbitmq":
		broker, err := NewRabbitMQBroker(cfg.RabbitMQ)
		if err != nil {
			return nil, err
		}
		return New(broker), nil
	case "pubsub":
		broker, err := NewPubSubBroker(ctx, cfg.PubSub)
		if err != nil {
			return nil, err
		}
		return New(broker), nil
	default:
		return nil, fmt.Errorf("unknown mq backend %q", cfg.Backend)
	}
}
