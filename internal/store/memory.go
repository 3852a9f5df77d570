package store

import (
	"context"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jjudge-oj/todolist/types"
)

// MemoryUserRepository keeps users in process memory.
type MemoryUserRepository struct {
	mu    sync.RWMutex
	users map[string]types.User
}

func NewMemoryUserRepository() *MemoryUserRepository {
	return &MemoryUserRepository{users: make(map[string]types.User)}
}

func (r *MemoryUserRepository) GetByID(_ context.Context, id string) (types.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	user, ok := r.users[id]
	if !ok {
		return types.User{}, ErrNotFound
	}
	return user, nil
}

func (r *MemoryUserRepository) GetByUsername(_ context.Context, username string) (types.User, error) {
	return r.find(func(u types.User) bool { return u.Username == username })
}

func (r *MemoryUserRepository) GetByEmail(_ context.Context, email string) (types.User, error) {
	return r.find(func(u types.User) bool { return u.Email == email })
}

func (r *MemoryUserRepository) Create(_ context.Context, user types.User) (types.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, existing := range r.users {
		if existing.Email == user.Email {
			return types.User{}, &ConflictError{Field: "email"}
		}
		if existing.Username == user.Username {
			return types.User{}, &ConflictError{Field: "username"}
		}
	}

	now := time.Now().UTC()
	user.ID = uuid.NewString()
	user.CreatedAt = now
	user.UpdatedAt = now
	if user.ImagePath == "" {
		user.ImagePath = types.DefaultImagePath
	}
	r.users[user.ID] = user
	return user, nil
}

func (r *MemoryUserRepository) UpdateImagePath(_ context.Context, id, imagePath string) (types.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	user, ok := r.users[id]
	if !ok {
		return types.User{}, ErrNotFound
	}
	user.ImagePath = imagePath
	user.UpdatedAt = time.Now().UTC()
	r.users[id] = user
	return user, nil
}

func (r *MemoryUserRepository) find(match func(types.User) bool) (types.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, user := range r.users {
		if match(user) {
			return user, nil
		}
	}
	return types.User{}, ErrNotFound
}

// MemoryTodoRepository keeps todos in process memory, listed in insertion order.
type MemoryTodoRepository struct {
	mu    sync.RWMutex
	order []string
	todos map[string]types.Todo
}

func NewMemoryTodoRepository() *MemoryTodoRepository {
	return &MemoryTodoRepository{todos: make(map[string]types.Todo)}
}

func (r *MemoryTodoRepository) List(_ context.Context) ([]types.Todo, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	todos := make([]types.Todo, 0, len(r.order))
	for _, id := range r.order {
		todos = append(todos, r.todos[id])
	}
	return todos, nil
}

func (r *MemoryTodoRepository) Get(_ context.Context, id string) (types.Todo, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	todo, ok := r.todos[id]
	if !ok {
		return types.Todo{}, ErrNotFound
	}
	return todo, nil
}

func (r *MemoryTodoRepository) Create(_ context.Context, todo types.Todo) (types.Todo, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := time.Now().UTC()
	todo.ID = uuid.NewString()
	todo.CreatedAt = now
	todo.UpdatedAt = now
	r.todos[todo.ID] = todo
	r.order = append(r.order, todo.ID)
	return todo, nil
}

func (r *MemoryTodoRepository) Update(_ context.Context, todo types.Todo) (types.Todo, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	existing, ok := r.todos[todo.ID]
	if !ok {
		return types.Todo{}, ErrNotFound
	}
	existing.TodoName = todo.TodoName
	existing.Desc = todo.Desc
	existing.UpdatedAt = time.Now().UTC()
	r.todos[todo.ID] = existing
	return existing, nil
}

func (r *MemoryTodoRepository) Delete(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.todos[id]; !ok {
		return ErrNotFound
	}
	delete(r.todos, id)
	r.order = slices.DeleteFunc(r.order, func(existing string) bool { return existing == id })
	return nil
}
