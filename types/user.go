package types

import "time"

// DefaultImagePath is the profile picture shown until a user uploads one.
const DefaultImagePath = "/static/img/blank-pfp.svg"

// User represents an account in the system.
type User struct {
	// ID is the opaque unique identifier of the user, generated by the store.
	ID string `json:"id" db:"id"`

	// Username is the unique login name chosen by the user.
	Username string `json:"username" db:"username"`

	// Email is the user's email address. It is unique across users.
	Email string `json:"email" db:"email"`

	// PasswordHash stores the bcrypt hash of the user's password.
	// This field is never exposed in responses.
	PasswordHash string `json:"-" db:"password_hash"`

	// ImagePath is the public path of the user's profile picture.
	ImagePath string `json:"image_path" db:"image_path"`

	// CreatedAt is the timestamp when the user account was created.
	CreatedAt time.Time `json:"created_at" db:"created_at"`

	// UpdatedAt is the timestamp of the most recent update to the user account.
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}
