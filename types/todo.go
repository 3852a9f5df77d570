package types

import "time"

// Todo is a single entry of the shared todo list.
// Todos carry no owner; every authenticated session sees all of them.
type Todo struct {
	// ID is the opaque unique identifier of the todo.
	ID string `json:"id" db:"id"`

	// TodoName is the short title of the todo.
	TodoName string `json:"todo_name" db:"todo_name"`

	// Desc is the free-form description of the todo.
	Desc string `json:"desc" db:"description"`

	// CreatedAt is the timestamp at which the todo was created.
	CreatedAt time.Time `json:"created_at" db:"created_at"`

	// UpdatedAt is the timestamp of the most recent edit.
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}
