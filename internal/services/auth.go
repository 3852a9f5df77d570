package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/jjudge-oj/todolist/internal/store"
	"github.com/jjudge-oj/todolist/types"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

// Messages shown to users by the auth flows.
const (
	MsgFillAllFields      = "Please fill in all fields"
	MsgPasswordsMismatch  = "Passwords do not match"
	MsgPasswordTooShort   = "Password should be at least 6 characters"
	MsgEmailRegistered    = "Email is already registered"
	MsgUsernameTaken      = "Username is already taken"
	MsgRegistered         = "You are now registered and can log in"
	MsgMissingCredentials = "Missing credentials"
	MsgUnknownUsername    = "That username is not registered"
	MsgPasswordIncorrect  = "Password incorrect"
	MsgLoggedOut          = "You are logged out"
	MsgLoginRequired      = "Please log in to view this resource"
)

const DefaultHashCost = 10

// UserRepository defines persistence operations for users.
type UserRepository interface {
	GetByID(ctx context.Context, id string) (types.User, error)
	GetByUsername(ctx context.Context, username string) (types.User, error)
	GetByEmail(ctx context.Context, email string) (types.User, error)
	Create(ctx context.Context, user types.User) (types.User, error)
	UpdateImagePath(ctx context.Context, id, imagePath string) (types.User, error)
}

// RegisterInput is the registration form.
type RegisterInput struct {
	Username  string `validate:"required"`
	Email     string `validate:"required"`
	Password  string `validate:"required"`
	Password2 string `validate:"required"`
}

// AuthService encapsulates registration and credential checks.
type AuthService struct {
	users    UserRepository
	validate *validator.Validate
	hashCost int
	events   activity
}

type AuthOption func(*AuthService)

// WithHashCost overrides the bcrypt cost.
func WithHashCost(cost int) AuthOption {
	return func(s *AuthService) {
		s.hashCost = cost
	}
}

func NewAuthService(users UserRepository, publisher Publisher, log *zap.Logger, opts ...AuthOption) *AuthService {
	s := &AuthService{
		users:    users,
		validate: validator.New(),
		hashCost: DefaultHashCost,
		events:   newActivity(publisher, log),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Register validates the form, rejects duplicate emails and usernames and
// stores a new user with a bcrypt password hash.
func (s *AuthService) Register(ctx context.Context, in RegisterInput) (types.User, error) {
	in.Username = strings.TrimSpace(in.Username)
	in.Email = strings.TrimSpace(in.Email)

	if messages := s.registerMessages(in); len(messages) > 0 {
		return types.User{}, newError(ErrValidation, messages...)
	}

	if _, err := s.users.GetByEmail(ctx, in.Email); err == nil {
		return types.User{}, newError(ErrConflict, MsgEmailRegistered)
	} else if !errors.Is(err, store.ErrNotFound) {
		return types.User{}, fmt.Errorf("lookup email: %w", err)
	}

	if _, err := s.users.GetByUsername(ctx, in.Username); err == nil {
		return types.User{}, newError(ErrConflict, MsgUsernameTaken)
	} else if !errors.Is(err, store.ErrNotFound) {
		return types.User{}, fmt.Errorf("lookup username: %w", err)
	}

	hashed, err := bcrypt.GenerateFromPassword([]byte(in.Password), s.hashCost)
	if err != nil {
		return types.User{}, fmt.Errorf("hash password: %w", err)
	}

	user, err := s.users.Create(ctx, types.User{
		Username:     in.Username,
		Email:        in.Email,
		PasswordHash: string(hashed),
		ImagePath:    types.DefaultImagePath,
	})
	if err != nil {
		var conflict *store.ConflictError
		if errors.As(err, &conflict) {
			if conflict.Field == "username" {
				return types.User{}, &Error{Kind: ErrConflict, Messages: []string{MsgUsernameTaken}, Err: err}
			}
			return types.User{}, &Error{Kind: ErrConflict, Messages: []string{MsgEmailRegistered}, Err: err}
		}
		return types.User{}, fmt.Errorf("create user: %w", err)
	}

	s.events.publish(ctx, EventUserRegistered, UserEvent{
		ID:       user.ID,
		Username: user.Username,
		At:       user.CreatedAt,
	})
	return user, nil
}

// registerMessages returns the validation messages in the order the form shows them.
func (s *AuthService) registerMessages(in RegisterInput) []string {
	var messages []string
	if err := s.validate.Struct(in); err != nil {
		messages = append(messages, MsgFillAllFields)
	}
	if err := s.validate.VarWithValue(in.Password2, in.Password, "eqfield"); err != nil {
		messages = append(messages, MsgPasswordsMismatch)
	}
	if err := s.validate.Var(in.Password, "min=6"); err != nil {
		messages = append(messages, MsgPasswordTooShort)
	}
	return messages
}

// Login checks the credentials and returns the matching user.
func (s *AuthService) Login(ctx context.Context, username, password string) (types.User, error) {
	username = strings.TrimSpace(username)
	if username == "" || password == "" {
		return types.User{}, newError(ErrAuth, MsgMissingCredentials)
	}

	user, err := s.users.GetByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return types.User{}, newError(ErrAuth, MsgUnknownUsername)
		}
		return types.User{}, fmt.Errorf("lookup username: %w", err)
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		if errors.Is(err, bcrypt.ErrMismatchedHashAndPassword) {
			return types.User{}, newError(ErrAuth, MsgPasswordIncorrect)
		}
		return types.User{}, fmt.Errorf("compare password: %w", err)
	}
	return user, nil
}

// RestoreSession loads the user bound to a session. ok is false when the
// session is anonymous or the user no longer exists.
func (s *AuthService) RestoreSession(ctx context.Context, userID string) (user types.User, ok bool, err error) {
	if userID == "" {
		return types.User{}, false, nil
	}

	user, err = s.users.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return types.User{}, false, nil
		}
		return types.User{}, false, fmt.Errorf("restore session user: %w", err)
	}
	return user, true, nil
}

// RequireAuthenticated fails with an auth error unless user is set.
func RequireAuthenticated(user *types.User) error {
	if user == nil {
		return newError(ErrAuth, MsgLoginRequired)
	}
	return nil
}
