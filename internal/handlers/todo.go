package handlers

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/jjudge-oj/todolist/internal/services"
	"github.com/jjudge-oj/todolist/types"
)

// TodoHandler serves the todo list pages. Every route requires a logged in user.
type TodoHandler struct {
	*Pages
	todos *services.TodoService
}

func NewTodoHandler(pages *Pages, todos *services.TodoService) *TodoHandler {
	return &TodoHandler{Pages: pages, todos: todos}
}

// TodoRouter registers todo routes on the given router.
func TodoRouter(r chi.Router, pages *Pages, todos *services.TodoService) {
	handler := NewTodoHandler(pages, todos)

	r.Get("/", pages.With(handler.List))
	r.Post("/", pages.With(handler.Create))
	r.Get("/edit/{id}", pages.With(handler.EditForm))
	r.Post("/edit/{id}", pages.With(handler.Update))
	r.Post("/delete/{id}", pages.With(handler.Delete))
}

func (h *TodoHandler) List(w http.ResponseWriter, r *http.Request, sc *SessionContext) {
	if !h.requireAuthenticated(w, r, sc) {
		return
	}
	h.renderList(w, r, sc, &pageData{})
}

func (h *TodoHandler) Create(w http.ResponseWriter, r *http.Request, sc *SessionContext) {
	if !h.requireAuthenticated(w, r, sc) {
		return
	}
	in, ok := todoInput(w, r)
	if !ok {
		return
	}

	if _, err := h.todos.Create(r.Context(), in); err != nil {
		if errors.Is(err, services.ErrValidation) {
			h.renderList(w, r, sc, &pageData{
				Errors: services.Messages(err),
				Todo:   types.Todo{TodoName: in.TodoName, Desc: in.Desc},
			})
			return
		}
		h.serverError(w, r, err)
		return
	}
	h.redirect(w, r, sc, "/")
}

// EditForm renders the edit page, or goes back to the list when the todo is gone.
func (h *TodoHandler) EditForm(w http.ResponseWriter, r *http.Request, sc *SessionContext) {
	if !h.requireAuthenticated(w, r, sc) {
		return
	}

	todo, err := h.todos.GetByID(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		if errors.Is(err, services.ErrNotFound) {
			h.redirect(w, r, sc, "/")
			return
		}
		h.serverError(w, r, err)
		return
	}
	h.render(w, r, sc, pageEdit, &pageData{Todo: todo})
}

func (h *TodoHandler) Update(w http.ResponseWriter, r *http.Request, sc *SessionContext) {
	if !h.requireAuthenticated(w, r, sc) {
		return
	}
	in, ok := todoInput(w, r)
	if !ok {
		return
	}

	id := chi.URLParam(r, "id")
	if err := h.todos.Update(r.Context(), id, in); err != nil {
		if errors.Is(err, services.ErrValidation) {
			h.render(w, r, sc, pageEdit, &pageData{
				Errors: services.Messages(err),
				Todo:   types.Todo{ID: id, TodoName: in.TodoName, Desc: in.Desc},
			})
			return
		}
		h.serverError(w, r, err)
		return
	}
	h.redirect(w, r, sc, "/")
}

func (h *TodoHandler) Delete(w http.ResponseWriter, r *http.Request, sc *SessionContext) {
	if !h.requireAuthenticated(w, r, sc) {
		return
	}

	if err := h.todos.Delete(r.Context(), chi.URLParam(r, "id")); err != nil {
		h.serverError(w, r, err)
		return
	}
	h.redirect(w, r, sc, "/")
}

func (h *TodoHandler) renderList(w http.ResponseWriter, r *http.Request, sc *SessionContext, data *pageData) {
	todos, err := h.todos.List(r.Context())
	if err != nil {
		h.serverError(w, r, err)
		return
	}
	data.Todos = todos
	h.render(w, r, sc, pageIndex, data)
}

func todoInput(w http.ResponseWriter, r *http.Request) (services.TodoInput, bool) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, "invalid form", http.StatusBadRequest)
		return services.TodoInput{}, false
	}
	return services.TodoInput{
		TodoName: r.PostForm.Get("todoName"),
		Desc:     r.PostForm.Get("desc"),
	}, true
}
