package handlers

import (
	"errors"
	"io"
	"mime"
	"mime/multipart"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/jjudge-oj/todolist/internal/services"
)

const (
	formFileField   = "file"
	multipartMemory = 1 << 20
	msgTooLarge     = "File too large."
)

// ProfileHandler serves the profile page, picture uploads and stored files.
type ProfileHandler struct {
	*Pages
	uploads  *services.UploadService
	maxBytes int64
}

func NewProfileHandler(pages *Pages, uploads *services.UploadService, maxBytes int64) *ProfileHandler {
	return &ProfileHandler{Pages: pages, uploads: uploads, maxBytes: maxBytes}
}

// ProfileRouter registers profile and upload routes on the given router.
func ProfileRouter(r chi.Router, pages *Pages, uploads *services.UploadService, maxBytes int64) {
	handler := NewProfileHandler(pages, uploads, maxBytes)

	r.Get("/profile", pages.With(handler.Show))
	r.Post("/profile", pages.With(handler.Upload))
	r.Get("/uploads/{key}", handler.Serve)
}

func (h *ProfileHandler) Show(w http.ResponseWriter, r *http.Request, sc *SessionContext) {
	if !h.requireAuthenticated(w, r, sc) {
		return
	}
	h.render(w, r, sc, pageProfile, nil)
}

// Upload answers in plain text: 401 when anonymous, 400 without a file.
// The body is not read for anonymous requests.
func (h *ProfileHandler) Upload(w http.ResponseWriter, r *http.Request, sc *SessionContext) {
	if sc.User == nil {
		h.text(w, r, sc, http.StatusUnauthorized, services.MsgUnauthenticated)
		return
	}

	if h.maxBytes > 0 {
		r.Body = http.MaxBytesReader(w, r.Body, h.maxBytes)
	}

	if err := r.ParseMultipartForm(multipartMemory); isTooLarge(err) {
		h.text(w, r, sc, http.StatusBadRequest, msgTooLarge)
		return
	}
	if r.MultipartForm != nil {
		defer func(form *multipart.Form) { _ = form.RemoveAll() }(r.MultipartForm)
	}

	// A missing or unreadable file part reaches the service as nil.
	var upload *services.Upload
	if file, header, err := r.FormFile(formFileField); err == nil {
		defer file.Close()
		upload = &services.Upload{
			Filename:    header.Filename,
			Size:        header.Size,
			ContentType: header.Header.Get("Content-Type"),
			Body:        file,
		}
	}

	if _, err := h.uploads.UploadProfileImage(r.Context(), sc.UserID(), upload); err != nil {
		switch {
		case errors.Is(err, services.ErrAuth):
			h.text(w, r, sc, http.StatusUnauthorized, services.Message(err, services.MsgUnauthenticated))
		case errors.Is(err, services.ErrBadRequest):
			h.text(w, r, sc, http.StatusBadRequest, services.Message(err, services.MsgNoFile))
		default:
			h.serverError(w, r, err)
		}
		return
	}

	h.text(w, r, sc, http.StatusOK, services.MsgUploaded)
}

// inlineImageTypes are served as-is. Anything else, svg included, is sent as an
// attachment so it never renders from this origin.
var inlineImageTypes = map[string]bool{
	"image/png":  true,
	"image/jpeg": true,
	"image/gif":  true,
	"image/webp": true,
	"image/avif": true,
	"image/bmp":  true,
}

// Serve streams a stored upload.
func (h *ProfileHandler) Serve(w http.ResponseWriter, r *http.Request) {
	obj, err := h.uploads.Open(r.Context(), chi.URLParam(r, "key"))
	if err != nil {
		if errors.Is(err, services.ErrNotFound) {
			http.NotFound(w, r)
			return
		}
		h.serverError(w, r, err)
		return
	}
	defer obj.Body.Close()

	setUploadHeaders(w.Header(), chi.URLParam(r, "key"), obj.ContentType)
	if obj.Size > 0 {
		w.Header().Set("Content-Length", strconv.FormatInt(obj.Size, 10))
	}
	w.WriteHeader(http.StatusOK)
	_, _ = io.Copy(w, obj.Body)
}

func setUploadHeaders(h http.Header, key, contentType string) {
	mediaType, _, err := mime.ParseMediaType(contentType)
	if err == nil && inlineImageTypes[mediaType] {
		h.Set("Content-Type", mediaType)
	} else {
		h.Set("Content-Type", "application/octet-stream")
		h.Set("Content-Disposition", mime.FormatMediaType("attachment", map[string]string{"filename": key}))
	}
	h.Set("X-Content-Type-Options", "nosniff")
	h.Set("Content-Security-Policy", "default-src 'none'; sandbox")
}

func isTooLarge(err error) bool {
	var maxErr *http.MaxBytesError
	return errors.As(err, &maxErr)
}
