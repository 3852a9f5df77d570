package store

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jjudge-oj/todolist/types"
)

// TodoRepository handles persistence for todos.
type TodoRepository struct {
	db *sql.DB
}

func NewTodoRepository(db *sql.DB) *TodoRepository {
	return &TodoRepository{db: db}
}

// List returns every todo in insertion order. seq is assigned by the database
// on insert, so todos created within the same timestamp still keep their order.
func (r *TodoRepository) List(ctx context.Context) ([]types.Todo, error) {
	const query = `
		SELECT id, todo_name, description, created_at, updated_at
		FROM todos
		ORDER BY seq`
	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	todos := make([]types.Todo, 0)
	for rows.Next() {
		var todo types.Todo
		if err := rows.Scan(
			&todo.ID,
			&todo.TodoName,
			&todo.Desc,
			&todo.CreatedAt,
			&todo.UpdatedAt,
		); err != nil {
			return nil, err
		}
		todos = append(todos, todo)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}
	return todos, nil
}

func (r *TodoRepository) Get(ctx context.Context, id string) (types.Todo, error) {
	if _, err := uuid.Parse(id); err != nil {
		return types.Todo{}, ErrNotFound
	}

	const query = `
		SELECT id, todo_name, description, created_at, updated_at
		FROM todos
		WHERE id = $1`
	var todo types.Todo
	err := r.db.QueryRowContext(ctx, query, id).Scan(
		&todo.ID,
		&todo.TodoName,
		&todo.Desc,
		&todo.CreatedAt,
		&todo.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return types.Todo{}, ErrNotFound
		}
		return types.Todo{}, err
	}
	return todo, nil
}

func (r *TodoRepository) Create(ctx context.Context, todo types.Todo) (types.Todo, error) {
	now := time.Now().UTC()
	todo.ID = uuid.NewString()
	todo.CreatedAt = now
	todo.UpdatedAt = now

	const query = `
		INSERT INTO todos (id, todo_name, description, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5)`
	if _, err := r.db.ExecContext(
		ctx,
		query,
		todo.ID,
		todo.TodoName,
		todo.Desc,
		todo.CreatedAt,
		todo.UpdatedAt,
	); err != nil {
		return types.Todo{}, err
	}
	return todo, nil
}

// Update overwrites the name and description of an existing todo.
func (r *TodoRepository) Update(ctx context.Context, todo types.Todo) (types.Todo, error) {
	if _, err := uuid.Parse(todo.ID); err != nil {
		return types.Todo{}, ErrNotFound
	}

	const query = `
		UPDATE todos
		SET todo_name = $1,
			description = $2,
			updated_at = $3
		WHERE id = $4
		RETURNING created_at, updated_at`
	err := r.db.QueryRowContext(
		ctx,
		query,
		todo.TodoName,
		todo.Desc,
		time.Now().UTC(),
		todo.ID,
	).Scan(&todo.CreatedAt, &todo.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return types.Todo{}, ErrNotFound
		}
		return types.Todo{}, err
	}
	return todo, nil
}

func (r *TodoRepository) Delete(ctx context.Context, id string) error {
	if _, err := uuid.Parse(id); err != nil {
		return ErrNotFound
	}

	const query = `DELETE FROM todos WHERE id = $1`
	result, err := r.db.ExecContext(ctx, query, id)
	if err != nil {
		return err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}
