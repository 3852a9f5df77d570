package session

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/jjudge-oj/todolist/config"
)

// Manager moves sessions between the cookie and the Store.
type Manager struct {
	store      Store
	secret     []byte
	cookieName string
	ttl        time.Duration
	secure     bool
}

func NewManager(store Store, cfg config.SessionConfig) (*Manager, error) {
	if strings.TrimSpace(cfg.Secret) == "" {
		return nil, errors.New("session secret is required")
	}
	if cfg.TTL <= 0 {
		return nil, errors.New("session ttl must be positive")
	}

	cookieName := cfg.CookieName
	if cookieName == "" {
		cookieName = "todolist.sid"
	}

	return &Manager{
		store:      store,
		secret:     []byte(cfg.Secret),
		cookieName: cookieName,
		ttl:        cfg.TTL,
		secure:     cfg.SecureCookie,
	}, nil
}

// Load resolves the session referenced by the request cookie.
// Missing, tampered, expired or unknown cookies yield a fresh anonymous session.
func (m *Manager) Load(r *http.Request) (*Session, error) {
	cookie, err := r.Cookie(m.cookieName)
	if err != nil {
		return newSession(), nil
	}

	id, err := parseTokenSubject(cookie.Value, m.secret)
	if err != nil {
		return newSession(), nil
	}

	data, err := m.store.Load(r.Context(), id)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return newSession(), nil
		}
		return nil, err
	}

	return &Session{id: id, data: data, persisted: true}, nil
}

// Save persists pending changes and updates the cookie. It must run before
// the response header is written.
func (m *Manager) Save(ctx context.Context, w http.ResponseWriter, s *Session) error {
	for _, id := range s.stale {
		if err := m.store.Delete(ctx, id); err != nil && !errors.Is(err, ErrNotFound) {
			return err
		}
	}
	s.stale = nil

	if !s.dirty {
		return nil
	}

	if s.data.empty() {
		if s.persisted {
			if err := m.store.Delete(ctx, s.id); err != nil && !errors.Is(err, ErrNotFound) {
				return err
			}
			s.persisted = false
		}
		m.expireCookie(w)
		s.dirty = false
		return nil
	}

	if err := m.store.Save(ctx, s.id, s.data, m.ttl); err != nil {
		return err
	}

	token, err := issueToken(s.id, m.secret, m.ttl)
	if err != nil {
		return err
	}
	http.SetCookie(w, &http.Cookie{
		Name:     m.cookieName,
		Value:    token,
		Path:     "/",
		MaxAge:   int(m.ttl.Seconds()),
		HttpOnly: true,
		Secure:   m.secure,
		SameSite: http.SameSiteLaxMode,
	})

	s.persisted = true
	s.dirty = false
	return nil
}

func (m *Manager) expireCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     m.cookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   m.secure,
		SameSite: http.SameSiteLaxMode,
	})
}

func issueToken(sessionID string, secret []byte, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := jwt.RegisteredClaims{
		Subject:   sessionID,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(secret)
}

func parseTokenSubject(tokenString string, secret []byte) (string, error) {
	claims := jwt.RegisteredClaims{}
	token, err := jwt.ParseWithClaims(tokenString, &claims, func(token *jwt.Token) (any, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("invalid signing method")
		}
		return secret, nil
	})
	if err != nil {
		return "", err
	}
	if !token.Valid {
		return "", errors.New("invalid token")
	}
	if strings.TrimSpace(claims.Subject) == "" {
		return "", errors.New("missing subject")
	}
	return claims.Subject, nil
}
