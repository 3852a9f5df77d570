package mq

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jjudge-oj/todolist/config"
	amqp "github.com/rabbitmq/amqp091-go"
)

const rabbitAppID = "todolist"

// RabbitMQClient broadcasts activity through one fanout exchange per channel.
//
// With durable queues every subscriber shares the queue named after the channel,
// so events published while nobody listens are kept. Otherwise each subscriber
// binds its own exclusive queue and sees every event from the moment it joins.
type RabbitMQClient struct {
	conn            *amqp.Connection
	channel         *amqp.Channel
	queueDurable    bool
	queueAutoDelete bool

	mu       sync.Mutex
	declared map[string]bool
}

// NewRabbitMQClient constructs a RabbitMQ client from config.
func NewRabbitMQClient(cfg config.RabbitMQConfig) (*RabbitMQClient, error) {
	if strings.TrimSpace(cfg.URL) == "" {
		return nil, errors.New("rabbitmq url is required")
	}

	conn, err := amqp.Dial(cfg.URL)
	if err != nil {
		return nil, err
	}

	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, err
	}

	if cfg.PrefetchCount > 0 {
		if err := ch.Qos(cfg.PrefetchCount, 0, false); err != nil {
			_ = ch.Close()
			_ = conn.Close()
			return nil, err
		}
	}

	return &RabbitMQClient{
		conn:            conn,
		channel:         ch,
		queueDurable:    cfg.QueueDurable,
		queueAutoDelete: cfg.QueueAutoDelete,
		declared:        make(map[string]bool),
	}, nil
}

func (r *RabbitMQClient) Publish(ctx context.Context, channel string, data []byte, attrs map[string]string) (string, error) {
	if strings.TrimSpace(channel) == "" {
		return "", errors.New("rabbitmq channel is required")
	}
	if err := r.declareExchange(channel); err != nil {
		return "", err
	}

	msg := newPublishing(uuid.NewString(), time.Now().UTC(), data, attrs)
	if err := r.channel.PublishWithContext(ctx, channel, "", false, false, msg); err != nil {
		return "", fmt.Errorf("publish to %s: %w", channel, err)
	}
	return msg.MessageId, nil
}

// Subscribe consumes events broadcast on channel until ctx is done.
// A handler error requeues the event once; a second failure drops it.
func (r *RabbitMQClient) Subscribe(ctx context.Context, channel string, handler Handler) error {
	if strings.TrimSpace(channel) == "" {
		return errors.New("rabbitmq channel is required")
	}
	if err := r.declareExchange(channel); err != nil {
		return err
	}

	queue := channel
	if !r.queueDurable {
		q, err := r.channel.QueueDeclare("", false, true, true, false, nil)
		if err != nil {
			return fmt.Errorf("declare subscriber queue: %w", err)
		}
		if err := r.channel.QueueBind(q.Name, "", channel, false, nil); err != nil {
			return fmt.Errorf("bind subscriber queue: %w", err)
		}
		queue = q.Name
	}

	consumerTag := fmt.Sprintf("%s-%s", rabbitAppID, uuid.NewString())
	deliveries, err := r.channel.Consume(queue, consumerTag, false, false, false, false, nil)
	if err != nil {
		return err
	}
	defer func() {
		_ = r.channel.Cancel(consumerTag, false)
	}()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case delivery, ok := <-deliveries:
			if !ok {
				return errors.New("rabbitmq delivery channel closed")
			}
			err := handler(ctx, messageFromDelivery(delivery))
			switch settle(err, delivery.Redelivered) {
			case settleAck:
				_ = delivery.Ack(false)
			case settleRequeue:
				_ = delivery.Nack(false, true)
			case settleDrop:
				_ = delivery.Nack(false, false)
			}
		}
	}
}

func (r *RabbitMQClient) Close() error {
	if r.channel != nil {
		_ = r.channel.Close()
	}
	if r.conn != nil {
		return r.conn.Close()
	}
	return nil
}

// declareExchange declares the fanout exchange for channel once per client,
// plus the shared queue when queues are durable.
func (r *RabbitMQClient) declareExchange(channel string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.declared[channel] {
		return nil
	}
	if err := r.channel.ExchangeDeclare(channel, amqp.ExchangeFanout, true, false, false, false, nil); err != nil {
		return fmt.Errorf("declare exchange %s: %w", channel, err)
	}
	if r.queueDurable {
		if _, err := r.channel.QueueDeclare(channel, true, r.queueAutoDelete, false, false, nil); err != nil {
			return fmt.Errorf("declare queue %s: %w", channel, err)
		}
		if err := r.channel.QueueBind(channel, "", channel, false, nil); err != nil {
			return fmt.Errorf("bind queue %s: %w", channel, err)
		}
	}
	r.declared[channel] = true
	return nil
}

type settlement int

const (
	settleAck settlement = iota
	settleRequeue
	settleDrop
)

func settle(handlerErr error, redelivered bool) settlement {
	switch {
	case handlerErr == nil:
		return settleAck
	case redelivered:
		return settleDrop
	default:
		return settleRequeue
	}
}

func newPublishing(id string, now time.Time, data []byte, attrs map[string]string) amqp.Publishing {
	headers := make(amqp.Table, len(attrs))
	for key, value := range attrs {
		headers[key] = value
	}
	return amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		MessageId:    id,
		Timestamp:    now,
		Type:         attrs[AttrType],
		AppId:        rabbitAppID,
		Headers:      headers,
		Body:         data,
	}
}

// messageFromDelivery restores the attributes; the event type falls back to the
// AMQP type property for publishers that do not set headers.
func messageFromDelivery(d amqp.Delivery) Message {
	attrs := headersToAttributes(d.Headers)
	if attrs[AttrType] == "" && d.Type != "" {
		if attrs == nil {
			attrs = make(map[string]string, 1)
		}
		attrs[AttrType] = d.Type
	}
	return Message{ID: d.MessageId, Data: d.Body, Attributes: attrs}
}

func headersToAttributes(headers amqp.Table) map[string]string {
	if len(headers) == 0 {
		return nil
	}
	attrs := make(map[string]string, len(headers))
	for key, value := range headers {
		switch typed := value.(type) {
		case string:
			attrs[key] = typed
		case []byte:
			attrs[key] = string(typed)
		default:
			attrs[key] = fmt.Sprint(value)
		}
	}
	return attrs
}
