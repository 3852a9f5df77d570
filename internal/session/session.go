// Package session implements server-side sessions referenced by a signed cookie.
package session

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
)

// Flash kinds rendered by the page layout.
const (
	FlashSuccess = "success_msg"
	FlashError   = "error_msg"
	FlashAuth    = "error"
)

// ErrNotFound is returned by a Store when the id is unknown or expired.
var ErrNotFound = errors.New("session not found")

// Data is the persisted part of a session.
type Data struct {
	UserID  string              `json:"user_id,omitempty"`
	Flashes map[string][]string `json:"flashes,omitempty"`
}

func (d Data) empty() bool {
	return d.UserID == "" && len(d.Flashes) == 0
}

// Store persists session data keyed by session id.
type Store interface {
	Load(ctx context.Context, id string) (Data, error)
	Save(ctx context.Context, id string, data Data, ttl time.Duration) error
	Delete(ctx context.Context, id string) error
}

// Pruner is implemented by stores that do not expire records on their own.
type Pruner interface {
	DeleteExpired(ctx context.Context) (int64, error)
}

// Session is the per-request view of a stored session.
type Session struct {
	id        string
	data      Data
	persisted bool
	dirty     bool
	stale     []string
}

func newSession() *Session {
	return &Session{id: uuid.NewString()}
}

func (s *Session) ID() string {
	return s.id
}

// UserID returns the bound user id, or "" for anonymous sessions.
func (s *Session) UserID() string {
	return s.data.UserID
}

func (s *Session) IsAuthenticated() bool {
	return s.data.UserID != ""
}

// Login binds userID to the session under a fresh id.
func (s *Session) Login(userID string) {
	s.renew()
	s.data.UserID = userID
	s.dirty = true
}

// Logout drops the user binding and any pending flashes.
func (s *Session) Logout() {
	s.renew()
	s.data = Data{}
	s.dirty = true
}

// Anonymous clears a user binding that no longer resolves.
func (s *Session) Anonymous() {
	if s.data.UserID == "" {
		return
	}
	s.data.UserID = ""
	s.dirty = true
}

func (s *Session) AddFlash(kind, message string) {
	if s.data.Flashes == nil {
		s.data.Flashes = make(map[string][]string)
	}
	s.data.Flashes[kind] = append(s.data.Flashes[kind], message)
	s.dirty = true
}

// Flashes returns and consumes the messages queued under kind.
func (s *Session) Flashes(kind string) []string {
	messages, ok := s.data.Flashes[kind]
	if !ok {
		return nil
	}
	delete(s.data.Flashes, kind)
	if len(s.data.Flashes) == 0 {
		s.data.Flashes = nil
	}
	s.dirty = true
	return messages
}

func (s *Session) renew() {
	if s.persisted {
		s.stale = append(s.stale, s.id)
	}
	s.id = uuid.NewString()
	s.persisted = false
}
