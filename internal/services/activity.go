package services

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// Activity event types.
const (
	EventUserRegistered   = "user.registered"
	EventUserImageUpdated = "user.image_updated"
	EventTodoCreated      = "todo.created"
	EventTodoUpdated      = "todo.updated"
	EventTodoDeleted      = "todo.deleted"
)

const publishTimeout = 5 * time.Second

// Publisher sends activity events to a message broker.
type Publisher interface {
	PublishEvent(ctx context.Context, eventType string, payload any) (string, error)
}

// UserEvent is the payload of user events.
type UserEvent struct {
	ID        string    `json:"id"`
	Username  string    `json:"username"`
	ImagePath string    `json:"image_path,omitempty"`
	At        time.Time `json:"at"`
}

// TodoEvent is the payload of todo events.
type TodoEvent struct {
	ID       string    `json:"id"`
	TodoName string    `json:"todo_name,omitempty"`
	At       time.Time `json:"at"`
}

// activity publishes best effort: failures are logged and never returned.
type activity struct {
	publisher Publisher
	log       *zap.Logger
}

func newActivity(publisher Publisher, log *zap.Logger) activity {
	if log == nil {
		log = zap.NewNop()
	}
	return activity{publisher: publisher, log: log}
}

func (a activity) publish(ctx context.Context, eventType string, payload any) {
	if a.publisher == nil {
		return
	}

	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), publishTimeout)
	defer cancel()

	if _, err := a.publisher.PublishEvent(ctx, eventType, payload); err != nil {
		a.log.Warn("failed to publish activity event", zap.String("type", eventType), zap.Error(err))
	}
}
