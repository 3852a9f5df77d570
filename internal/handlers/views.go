package handlers

import (
	"bytes"
	"fmt"
	"html/template"
	"io/fs"
	"net/http"

	"github.com/jjudge-oj/todolist/types"
	"github.com/jjudge-oj/todolist/web"
)

// Page names.
const (
	pageIndex    = "index"
	pageEdit     = "edit"
	pageRegister = "register"
	pageLogin    = "login"
	pageProfile  = "profile"
)

var pages = []string{pageIndex, pageEdit, pageRegister, pageLogin, pageProfile}

// Views holds one parsed template set per page, each wrapped by the layout.
type Views struct {
	pages map[string]*template.Template
}

func NewViews() (*Views, error) {
	return newViews(web.Templates)
}

func newViews(fsys fs.FS) (*Views, error) {
	v := &Views{pages: make(map[string]*template.Template, len(pages))}
	for _, page := range pages {
		tmpl, err := template.ParseFS(fsys, "templates/layout.html", "templates/"+page+".html")
		if err != nil {
			return nil, fmt.Errorf("parse %s template: %w", page, err)
		}
		v.pages[page] = tmpl
	}
	return v, nil
}

// Render executes page into a buffer so a template failure never leaves a half written response.
func (v *Views) Render(page string, data *pageData) ([]byte, error) {
	tmpl, ok := v.pages[page]
	if !ok {
		return nil, fmt.Errorf("unknown page %q", page)
	}
	var buf bytes.Buffer
	if err := tmpl.ExecuteTemplate(&buf, "layout", data); err != nil {
		return nil, fmt.Errorf("render %s: %w", page, err)
	}
	return buf.Bytes(), nil
}

type flashes struct {
	Success  []string
	ErrorMsg []string
	Error    []string
}

type registerForm struct {
	Username string
	Email    string
}

type pageData struct {
	Title  string
	User   *types.User
	Flash  flashes
	Errors []string
	Todos  []types.Todo
	Todo   types.Todo
	Form   registerForm
}

// StaticHandler serves the embedded css and images under /static/.
func StaticHandler() http.Handler {
	sub, err := fs.Sub(web.Static, "static")
	if err != nil {
		panic(err)
	}
	return http.StripPrefix("/static/", http.FileServer(http.FS(sub)))
}
