package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/jjudge-oj/todolist/internal/services"
	"github.com/jjudge-oj/todolist/internal/session"
	"github.com/jjudge-oj/todolist/types"
	"go.uber.org/zap"
)

const msgServerError = "Server error"

// SessionContext is the explicit per-request auth state handed to page handlers.
type SessionContext struct {
	Session *session.Session
	// User is nil for anonymous requests.
	User *types.User
}

// UserID returns the authenticated user's id, or "".
func (sc *SessionContext) UserID() string {
	if sc.User == nil {
		return ""
	}
	return sc.User.ID
}

// SessionHandlerFunc is a handler that receives the resolved session.
type SessionHandlerFunc func(w http.ResponseWriter, r *http.Request, sc *SessionContext)

// Pages carries what every page handler needs: session resolution, rendering and logging.
type Pages struct {
	sessions *session.Manager
	auth     *services.AuthService
	views    *Views
	log      *zap.Logger
	title    string
}

func NewPages(sessions *session.Manager, auth *services.AuthService, views *Views, log *zap.Logger, title string) *Pages {
	if log == nil {
		log = zap.NewNop()
	}
	return &Pages{
		sessions: sessions,
		auth:     auth,
		views:    views,
		log:      log,
		title:    title,
	}
}

// With resolves the session and its user before calling fn.
// A user id that no longer resolves downgrades the session to anonymous.
func (p *Pages) With(fn SessionHandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sess, err := p.sessions.Load(r)
		if err != nil {
			p.serverError(w, r, err)
			return
		}

		sc := &SessionContext{Session: sess}
		if sess.IsAuthenticated() {
			user, ok, err := p.auth.RestoreSession(r.Context(), sess.UserID())
			if err != nil {
				p.serverError(w, r, err)
				return
			}
			if ok {
				sc.User = &user
			} else {
				sess.Anonymous()
			}
		}

		fn(w, r, sc)
	}
}

// requireAuthenticated redirects anonymous requests to /login with a flash.
func (p *Pages) requireAuthenticated(w http.ResponseWriter, r *http.Request, sc *SessionContext) bool {
	if err := services.RequireAuthenticated(sc.User); err != nil {
		sc.Session.AddFlash(session.FlashError, services.Message(err, services.MsgLoginRequired))
		p.redirect(w, r, sc, "/login")
		return false
	}
	return true
}

func (p *Pages) render(w http.ResponseWriter, r *http.Request, sc *SessionContext, page string, data *pageData) {
	if data == nil {
		data = &pageData{}
	}
	data.Title = p.title
	data.User = sc.User
	data.Flash = flashes{
		Success:  sc.Session.Flashes(session.FlashSuccess),
		ErrorMsg: sc.Session.Flashes(session.FlashError),
		Error:    sc.Session.Flashes(session.FlashAuth),
	}

	body, err := p.views.Render(page, data)
	if err != nil {
		p.serverError(w, r, err)
		return
	}
	if !p.commit(w, r, sc) {
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(body)
}

func (p *Pages) redirect(w http.ResponseWriter, r *http.Request, sc *SessionContext, to string) {
	if !p.commit(w, r, sc) {
		return
	}
	http.Redirect(w, r, to, http.StatusFound)
}

func (p *Pages) text(w http.ResponseWriter, r *http.Request, sc *SessionContext, status int, message string) {
	if !p.commit(w, r, sc) {
		return
	}
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(status)
	_, _ = w.Write([]byte(message))
}

// commit saves the session; it must run before any header is written.
func (p *Pages) commit(w http.ResponseWriter, r *http.Request, sc *SessionContext) bool {
	if err := p.sessions.Save(r.Context(), w, sc.Session); err != nil {
		p.serverError(w, r, err)
		return false
	}
	return true
}

func (p *Pages) serverError(w http.ResponseWriter, r *http.Request, err error) {
	p.log.Error("request failed",
		zap.String("request_id", middleware.GetReqID(r.Context())),
		zap.String("method", r.Method),
		zap.String("uri", r.RequestURI),
		zap.Error(err),
	)
	http.Error(w, msgServerError, http.StatusInternalServerError)
}
