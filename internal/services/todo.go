package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/jjudge-oj/todolist/internal/store"
	"github.com/jjudge-oj/todolist/types"
	"go.uber.org/zap"
)

// TodoRepository defines persistence operations for todos.
type TodoRepository interface {
	List(ctx context.Context) ([]types.Todo, error)
	Get(ctx context.Context, id string) (types.Todo, error)
	Create(ctx context.Context, todo types.Todo) (types.Todo, error)
	Update(ctx context.Context, todo types.Todo) (types.Todo, error)
	Delete(ctx context.Context, id string) error
}

// TodoInput is the create and edit form.
type TodoInput struct {
	TodoName string `validate:"required"`
	Desc     string `validate:"required"`
}

// TodoService encapsulates todo use-cases.
type TodoService struct {
	repo     TodoRepository
	validate *validator.Validate
	events   activity
}

func NewTodoService(repo TodoRepository, publisher Publisher, log *zap.Logger) *TodoService {
	return &TodoService{
		repo:     repo,
		validate: validator.New(),
		events:   newActivity(publisher, log),
	}
}

// List returns all todos in creation order.
func (s *TodoService) List(ctx context.Context) ([]types.Todo, error) {
	return s.repo.List(ctx)
}

func (s *TodoService) Create(ctx context.Context, in TodoInput) (types.Todo, error) {
	in, err := s.clean(in)
	if err != nil {
		return types.Todo{}, err
	}

	todo, err := s.repo.Create(ctx, types.Todo{TodoName: in.TodoName, Desc: in.Desc})
	if err != nil {
		return types.Todo{}, fmt.Errorf("create todo: %w", err)
	}

	s.events.publish(ctx, EventTodoCreated, TodoEvent{ID: todo.ID, TodoName: todo.TodoName, At: todo.CreatedAt})
	return todo, nil
}

func (s *TodoService) GetByID(ctx context.Context, id string) (types.Todo, error) {
	todo, err := s.repo.Get(ctx, id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return types.Todo{}, &Error{Kind: ErrNotFound, Err: err}
		}
		return types.Todo{}, fmt.Errorf("get todo: %w", err)
	}
	return todo, nil
}

// Update overwrites both fields. A missing id is not an error and changes nothing.
func (s *TodoService) Update(ctx context.Context, id string, in TodoInput) error {
	in, err := s.clean(in)
	if err != nil {
		return err
	}

	todo, err := s.repo.Update(ctx, types.Todo{ID: id, TodoName: in.TodoName, Desc: in.Desc})
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil
		}
		return fmt.Errorf("update todo: %w", err)
	}

	s.events.publish(ctx, EventTodoUpdated, TodoEvent{ID: todo.ID, TodoName: todo.TodoName, At: todo.UpdatedAt})
	return nil
}

// Delete removes a todo. Deleting a missing id is a no-op.
func (s *TodoService) Delete(ctx context.Context, id string) error {
	if err := s.repo.Delete(ctx, id); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil
		}
		return fmt.Errorf("delete todo: %w", err)
	}

	s.events.publish(ctx, EventTodoDeleted, TodoEvent{ID: id, At: time.Now().UTC()})
	return nil
}

func (s *TodoService) clean(in TodoInput) (TodoInput, error) {
	in.TodoName = strings.TrimSpace(in.TodoName)
	in.Desc = strings.TrimSpace(in.Desc)
	if err := s.validate.Struct(in); err != nil {
		return in, &Error{Kind: ErrValidation, Messages: []string{MsgFillAllFields}, Err: err}
	}
	return in, nil
}
