package mq

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jjudge-oj/todolist/config"
)

// AttrType is the message attribute carrying the event type.
const AttrType = "type"

// Message represents a broker-agnostic payload delivered to subscribers.
type Message struct {
	ID         string
	Data       []byte
	Attributes map[string]string
}

// Handler processes a message. Return an error to signal a retry/nack.
type Handler func(ctx context.Context, msg Message) error

// Backend defines the broker-agnostic operations used by the app.
type Backend interface {
	Publish(ctx context.Context, channel string, data []byte, attrs map[string]string) (string, error)
	Subscribe(ctx context.Context, channel string, handler Handler) error
	Close() error
}

// MQ wraps a backend and fixes the channel events are published on.
type MQ struct {
	backend Backend
	channel string
}

func New(backend Backend, channel string) *MQ {
	return &MQ{backend: backend, channel: channel}
}

// Open connects the broker selected by cfg.MQ.Backend.
// It returns a nil *MQ when publishing is disabled.
func Open(ctx context.Context, cfg config.Config) (*MQ, error) {
	var (
		backend Backend
		err     error
	)
	switch cfg.MQ.Backend {
	case config.BackendNone, "":
		return nil, nil
	case config.BackendRabbitMQ:
		backend, err = NewRabbitMQClient(cfg.RabbitMQ)
	case config.BackendPubSub:
		backend, err = NewPubSubClient(ctx, cfg.PubSub)
	default:
		return nil, fmt.Errorf("unknown mq backend %q", cfg.MQ.Backend)
	}
	if err != nil {
		return nil, err
	}
	return New(backend, cfg.MQ.Channel), nil
}

// PublishEvent encodes payload as JSON and publishes it tagged with eventType.
func (m *MQ) PublishEvent(ctx context.Context, eventType string, payload any) (string, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("encode %s event: %w", eventType, err)
	}
	return m.backend.Publish(ctx, m.channel, data, map[string]string{AttrType: eventType})
}

// Subscribe consumes messages from the event channel.
func (m *MQ) Subscribe(ctx context.Context, handler Handler) error {
	return m.backend.Subscribe(ctx, m.channel, handler)
}

// Channel returns the channel events are published on.
func (m *MQ) Channel() string {
	return m.channel
}

func (m *MQ) Close() error {
	return m.backend.Close()
}
