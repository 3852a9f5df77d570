package handlers

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/jjudge-oj/todolist/internal/services"
	"github.com/jjudge-oj/todolist/internal/session"
)

// AuthHandler serves registration, login and logout pages.
type AuthHandler struct {
	*Pages
	service *services.AuthService
}

func NewAuthHandler(pages *Pages, auth *services.AuthService) *AuthHandler {
	return &AuthHandler{Pages: pages, service: auth}
}

// AuthRouter registers auth routes on the given router.
func AuthRouter(r chi.Router, pages *Pages, auth *services.AuthService) {
	handler := NewAuthHandler(pages, auth)

	r.Get("/register", pages.With(handler.RegisterForm))
	r.Post("/register", pages.With(handler.Register))
	r.Get("/login", pages.With(handler.LoginForm))
	r.Post("/login", pages.With(handler.Login))
	r.Get("/logout", pages.With(handler.Logout))
}

func (h *AuthHandler) RegisterForm(w http.ResponseWriter, r *http.Request, sc *SessionContext) {
	h.render(w, r, sc, pageRegister, nil)
}

// Register creates an account, or re-renders the form with its problems.
func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request, sc *SessionContext) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, "invalid form", http.StatusBadRequest)
		return
	}

	in := services.RegisterInput{
		Username:  r.PostForm.Get("username"),
		Email:     r.PostForm.Get("email"),
		Password:  r.PostForm.Get("password"),
		Password2: r.PostForm.Get("password2"),
	}
	if _, err := h.service.Register(r.Context(), in); err != nil {
		if errors.Is(err, services.ErrValidation) || errors.Is(err, services.ErrConflict) {
			h.render(w, r, sc, pageRegister, &pageData{
				Errors: services.Messages(err),
				Form:   registerForm{Username: in.Username, Email: in.Email},
			})
			return
		}
		h.serverError(w, r, err)
		return
	}

	sc.Session.AddFlash(session.FlashSuccess, services.MsgRegistered)
	h.redirect(w, r, sc, "/login")
}

func (h *AuthHandler) LoginForm(w http.ResponseWriter, r *http.Request, sc *SessionContext) {
	h.render(w, r, sc, pageLogin, nil)
}

// Login binds the user to a renewed session and sends them to /profile.
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request, sc *SessionContext) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, "invalid form", http.StatusBadRequest)
		return
	}

	user, err := h.service.Login(r.Context(), r.PostForm.Get("username"), r.PostForm.Get("password"))
	if err != nil {
		if errors.Is(err, services.ErrAuth) {
			sc.Session.AddFlash(session.FlashAuth, services.Message(err, services.MsgPasswordIncorrect))
			h.redirect(w, r, sc, "/login")
			return
		}
		h.serverError(w, r, err)
		return
	}

	sc.Session.Login(user.ID)
	h.redirect(w, r, sc, "/profile")
}

// Logout destroys the session and always succeeds.
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request, sc *SessionContext) {
	sc.Session.Logout()
	sc.Session.AddFlash(session.FlashSuccess, services.MsgLoggedOut)
	h.redirect(w, r, sc, "/login")
}
