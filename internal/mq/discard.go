package mq

import "context"

// DiscardBroker drops every event. Used when MQ_BACKEND=none.
type DiscardBroker struct{}

func (DiscardBroker) Publish(ctx context.Context, channel, eventType string, body []byte) (string, error) {
	return "", nil
}

// Subscribe blocks until ctx is done; nothing is ever delivered.
func (DiscardBroker) Subscribe(ctx context.Context, channel string, handler Handler) error {
	<-ctx.Done()
	return ctx.Err()
}

func (DiscardBroker) Close() error {
	return nil
}
