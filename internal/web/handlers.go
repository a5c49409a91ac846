// Package web serves the folio site: the listing, document pages, forms and
// the sign-in flow.
package web

import (
	"errors"
	"fmt"
	"html/template"
	"io"
	"log/slog"
	"mime"
	"net/http"
	"net/url"
	"path/filepath"
	"strings"

	"github.com/go-chi/chi/v5"
	validation "github.com/go-ozzo/ozzo-validation/v4"

	"github.com/starford/folio/internal/apperr"
	"github.com/starford/folio/internal/checksum"
	"github.com/starford/folio/internal/docservice"
	"github.com/starford/folio/internal/models"
	"github.com/starford/folio/internal/session"
	"github.com/starford/folio/internal/storage"
)

const (
	maxFormBytes   = 10 << 20 // 10 MB
	maxUploadBytes = 50 << 20 // 50 MB
)

// Messages shown after sign-in flow actions.
const (
	MsgWelcome            = "Welcome!"
	MsgInvalidCredentials = "Invalid Credentials"
	MsgSignedOut          = "You have been signed out."
	MsgUsernameTaken      = "That username already exists. Please try again."
	MsgSignUpFieldsBlank  = "A username and a password are required. Please try again."
)

// Credentials is the credential store used by the sign-in flow.
type Credentials interface {
	Register(username, password string) error
	Verify(username, password string) (bool, error)
}

// Handler holds the site's route handlers.
type Handler struct {
	docs     *docservice.Service
	users    Credentials
	sessions *session.Manager
	pages    pages
}

// NewHandler creates a new Handler.
func NewHandler(docs *docservice.Service, users Credentials, sessions *session.Manager) (*Handler, error) {
	p, err := loadPages()
	if err != nil {
		return nil, err
	}
	return &Handler{docs: docs, users: users, sessions: sessions, pages: p}, nil
}

// fileName extracts the {file} URL parameter, undoing percent-encoding.
func fileName(r *http.Request) string {
	raw := chi.URLParam(r, "file")
	decoded, err := url.PathUnescape(raw)
	if err != nil {
		return raw
	}
	return decoded
}

// render writes a full HTML page. Any pending flash message is shown and
// cleared.
func (h *Handler) render(w http.ResponseWriter, r *http.Request, status int, page string, errMsg string, data any) {
	st := session.FromContext(r.Context())
	flash := st.PopFlash()

	body, err := h.pages.execute(page, view{User: st.Username, Flash: flash, Error: errMsg, Data: data})
	if err != nil {
		slog.Error("render failed", slog.String("page", page), slog.String("error", err.Error()))
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	if flash != "" {
		h.saveSession(w, st)
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	_, _ = w.Write(body)
}

// redirect stores flash (if any) in the session and redirects to target.
func (h *Handler) redirect(w http.ResponseWriter, r *http.Request, target, flash string) {
	st := session.FromContext(r.Context())
	if flash != "" {
		st.Flash = flash
	}
	h.saveSession(w, st)
	http.Redirect(w, r, target, http.StatusFound)
}

func (h *Handler) saveSession(w http.ResponseWriter, st *session.State) {
	if err := h.sessions.Save(w, st); err != nil {
		slog.Error("save session failed", slog.String("error", err.Error()))
	}
}

// serverError logs err and renders the error page with status 500.
func (h *Handler) serverError(w http.ResponseWriter, r *http.Request, op string, err error) {
	slog.Error(op+" failed", slog.String("path", r.URL.Path), slog.String("error", err.Error()))
	h.render(w, r, http.StatusInternalServerError, "error", "", nil)
}

// missing redirects to the index saying name does not exist.
func (h *Handler) missing(w http.ResponseWriter, r *http.Request, name string) {
	h.redirect(w, r, "/", fmt.Sprintf("%s does not exist.", name))
}

// formError maps a rejected name or an existing target to the message shown
// on the re-rendered form. ok is false for any other error.
func formError(name string, err error) (string, bool) {
	var nameErr *apperr.NameError
	switch {
	case errors.As(err, &nameErr):
		return nameErr.Reason, true
	case errors.Is(err, apperr.ErrAlreadyExists):
		return fmt.Sprintf("%s already exists.", name), true
	default:
		return "", false
	}
}

type listing struct {
	Documents []models.Entry
	Images    []models.Entry
}

// Index handles GET /.
func (h *Handler) Index(w http.ResponseWriter, r *http.Request) {
	entries, err := h.docs.List(r.Context())
	if err != nil {
		h.serverError(w, r, "list documents", err)
		return
	}
	var l listing
	for _, e := range entries {
		switch e.Kind {
		case models.KindDocument:
			l.Documents = append(l.Documents, e)
		case models.KindImage:
			l.Images = append(l.Images, e)
		}
	}
	h.render(w, r, http.StatusOK, "index", "", l)
}

// Show handles GET /{file}: Markdown as an HTML page, images with their own
// content type, everything else as plain text.
func (h *Handler) Show(w http.ResponseWriter, r *http.Request) {
	name := fileName(r)
	doc, err := h.docs.Get(r.Context(), name)
	if err != nil {
		if errors.Is(err, apperr.ErrNotFound) || errors.Is(err, apperr.ErrInvalidName) {
			h.missing(w, r, name)
		} else {
			h.serverError(w, r, "read document", err)
		}
		return
	}

	if storage.IsMarkdown(name) {
		h.render(w, r, http.StatusOK, "document", "", struct {
			Name string
			HTML template.HTML
		}{name, template.HTML(doc.HTML)})
		return
	}

	etag := checksum.ETag(doc.Content)
	w.Header().Set("ETag", etag)
	if checksum.NoneMatch(r.Header.Get("If-None-Match"), etag) {
		w.WriteHeader(http.StatusNotModified)
		return
	}

	ctype := "text/plain; charset=utf-8"
	if doc.Kind == models.KindImage {
		if t := mime.TypeByExtension(strings.ToLower(filepath.Ext(name))); t != "" {
			ctype = t
		} else {
			ctype = http.DetectContentType(doc.Content)
		}
	}
	w.Header().Set("Content-Type", ctype)
	w.Header().Set("X-Content-Type-Options", "nosniff")
	_, _ = w.Write(doc.Content)
}

// SignInForm handles GET /users/signin.
func (h *Handler) SignInForm(w http.ResponseWriter, r *http.Request) {
	h.render(w, r, http.StatusOK, "signin", "", credentialsForm{})
}

type credentialsForm struct {
	Username string
}

// SignIn handles POST /users/signin.
func (h *Handler) SignIn(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxFormBytes)
	username := strings.TrimSpace(r.FormValue("username"))
	password := r.FormValue("password")

	ok, err := h.users.Verify(username, password)
	if err != nil {
		h.serverError(w, r, "verify credentials", err)
		return
	}
	if !ok {
		h.render(w, r, http.StatusUnprocessableEntity, "signin", MsgInvalidCredentials, credentialsForm{Username: username})
		return
	}

	session.FromContext(r.Context()).Username = username
	slog.Info("user signed in", slog.String("username", username))
	h.redirect(w, r, "/", MsgWelcome)
}

// SignOut handles POST /users/signout.
func (h *Handler) SignOut(w http.ResponseWriter, r *http.Request) {
	session.FromContext(r.Context()).Username = ""
	h.redirect(w, r, "/", MsgSignedOut)
}

// SignUpForm handles GET /users/signup.
func (h *Handler) SignUpForm(w http.ResponseWriter, r *http.Request) {
	h.render(w, r, http.StatusOK, "signup", "", credentialsForm{})
}

// SignUp handles POST /users/signup. A new user is signed in right away.
func (h *Handler) SignUp(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxFormBytes)
	username := strings.TrimSpace(r.FormValue("username"))
	password := r.FormValue("password")

	form := credentialsForm{Username: username}
	if err := validation.Errors{
		"username": validation.Validate(username, validation.Required),
		"password": validation.Validate(strings.TrimSpace(password), validation.Required),
	}.Filter(); err != nil {
		h.render(w, r, http.StatusUnprocessableEntity, "signup", MsgSignUpFieldsBlank, form)
		return
	}

	if err := h.users.Register(username, password); err != nil {
		if errors.Is(err, apperr.ErrAlreadyExists) {
			h.render(w, r, http.StatusUnprocessableEntity, "signup", MsgUsernameTaken, form)
		} else {
			h.serverError(w, r, "register user", err)
		}
		return
	}

	session.FromContext(r.Context()).Username = username
	slog.Info("user signed up", slog.String("username", username))
	h.redirect(w, r, "/", fmt.Sprintf("Welcome %s, our newest member!", username))
}

type newForm struct {
	Name       string
	Extensions []string
}

// NewForm handles GET /new.
func (h *Handler) NewForm(w http.ResponseWriter, r *http.Request) {
	h.render(w, r, http.StatusOK, "new", "", newForm{Extensions: storage.DocumentExtensions()})
}

// Create handles POST /new.
func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxFormBytes)
	name := strings.TrimSpace(r.FormValue("new_document"))
	content := r.FormValue("content")

	if err := h.docs.Create(r.Context(), name, []byte(content)); err != nil {
		if msg, ok := formError(name, err); ok {
			h.render(w, r, http.StatusUnprocessableEntity, "new", msg,
				newForm{Name: name, Extensions: storage.DocumentExtensions()})
		} else if errors.Is(err, apperr.ErrAuthorizationRequired) {
			h.redirect(w, r, "/", MsgSignInRequired)
		} else {
			h.serverError(w, r, "create document", err)
		}
		return
	}
	h.redirect(w, r, "/", fmt.Sprintf("%s has been created.", name))
}

// UploadForm handles GET /upload.
func (h *Handler) UploadForm(w http.ResponseWriter, r *http.Request) {
	h.render(w, r, http.StatusOK, "upload", "", newForm{Extensions: storage.ImageExtensions()})
}

// Upload handles POST /upload (multipart/form-data, field "image").
func (h *Handler) Upload(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxUploadBytes)
	form := newForm{Extensions: storage.ImageExtensions()}

	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		h.render(w, r, http.StatusUnprocessableEntity, "upload", "The file is too large or the upload is invalid.", form)
		return
	}
	file, header, err := r.FormFile("image")
	if err != nil {
		h.render(w, r, http.StatusUnprocessableEntity, "upload", "Please choose an image to upload.", form)
		return
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		h.serverError(w, r, "read upload", err)
		return
	}

	name := filepath.Base(header.Filename)
	if err := h.docs.Upload(r.Context(), name, data); err != nil {
		if msg, ok := formError(name, err); ok {
			h.render(w, r, http.StatusUnprocessableEntity, "upload", msg, form)
		} else if errors.Is(err, apperr.ErrAuthorizationRequired) {
			h.redirect(w, r, "/", MsgSignInRequired)
		} else {
			h.serverError(w, r, "upload image", err)
		}
		return
	}
	h.redirect(w, r, "/", fmt.Sprintf("%s has been uploaded.", name))
}

type editForm struct {
	Name    string
	Content string
}

// EditForm handles GET /{file}/edit.
func (h *Handler) EditForm(w http.ResponseWriter, r *http.Request) {
	name := fileName(r)
	doc, err := h.docs.Get(r.Context(), name)
	if err != nil {
		if errors.Is(err, apperr.ErrNotFound) || errors.Is(err, apperr.ErrInvalidName) {
			h.missing(w, r, name)
		} else {
			h.serverError(w, r, "read document", err)
		}
		return
	}
	h.render(w, r, http.StatusOK, "edit", "", editForm{Name: name, Content: string(doc.Content)})
}

// Edit handles POST /{file}/edit.
func (h *Handler) Edit(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxFormBytes)
	name := fileName(r)
	content := r.FormValue("contents")

	if err := h.docs.Update(r.Context(), name, []byte(content)); err != nil {
		switch {
		case errors.Is(err, apperr.ErrNotFound), errors.Is(err, apperr.ErrInvalidName):
			h.missing(w, r, name)
		case errors.Is(err, apperr.ErrAuthorizationRequired):
			h.redirect(w, r, "/", MsgSignInRequired)
		default:
			h.serverError(w, r, "update document", err)
		}
		return
	}
	h.redirect(w, r, "/", fmt.Sprintf("%s has been updated.", name))
}

// Alter handles POST /{file}/alter: "delete" removes the file, "duplicate"
// leads to the duplicate form.
func (h *Handler) Alter(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxFormBytes)
	name := fileName(r)

	switch {
	case r.FormValue("duplicate") != "":
		http.Redirect(w, r, "/"+url.PathEscape(name)+"/duplicate", http.StatusFound)
	case r.FormValue("delete") != "":
		if err := h.docs.Delete(r.Context(), name); err != nil {
			switch {
			case errors.Is(err, apperr.ErrNotFound), errors.Is(err, apperr.ErrInvalidName):
				h.missing(w, r, name)
			case errors.Is(err, apperr.ErrAuthorizationRequired):
				h.redirect(w, r, "/", MsgSignInRequired)
			default:
				h.serverError(w, r, "delete document", err)
			}
			return
		}
		slog.Info("document deleted", slog.String("name", name))
		h.redirect(w, r, "/", fmt.Sprintf("%s has been deleted.", name))
	default:
		http.Redirect(w, r, "/", http.StatusFound)
	}
}

type duplicateForm struct {
	Source    string
	Base      string
	Extension string
}

func newDuplicateForm(src, base string) duplicateForm {
	return duplicateForm{Source: src, Base: base, Extension: filepath.Ext(src)}
}

// DuplicateForm handles GET /{file}/duplicate.
func (h *Handler) DuplicateForm(w http.ResponseWriter, r *http.Request) {
	name := fileName(r)
	if _, err := h.docs.Get(r.Context(), name); err != nil {
		if errors.Is(err, apperr.ErrNotFound) || errors.Is(err, apperr.ErrInvalidName) {
			h.missing(w, r, name)
		} else {
			h.serverError(w, r, "read document", err)
		}
		return
	}
	h.render(w, r, http.StatusOK, "duplicate", "", newDuplicateForm(name, ""))
}

// Duplicate handles POST /{file}/duplicate.
func (h *Handler) Duplicate(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxFormBytes)
	src := fileName(r)
	base := strings.TrimSpace(r.FormValue("duplicate_document"))

	created, err := h.docs.Duplicate(r.Context(), src, base)
	if err != nil {
		if errors.Is(err, apperr.ErrNotFound) {
			h.missing(w, r, src)
		} else if msg, ok := formError(base+filepath.Ext(src), err); ok {
			h.render(w, r, http.StatusUnprocessableEntity, "duplicate", msg, newDuplicateForm(src, base))
		} else if errors.Is(err, apperr.ErrAuthorizationRequired) {
			h.redirect(w, r, "/", MsgSignInRequired)
		} else {
			h.serverError(w, r, "duplicate document", err)
		}
		return
	}
	h.redirect(w, r, "/", fmt.Sprintf("A duplicate copy of %s has been created as %s.", src, created))
}

// History handles GET /{file}/history.
func (h *Handler) History(w http.ResponseWriter, r *http.Request) {
	name := fileName(r)
	versions, err := h.docs.History(r.Context(), name)
	if err != nil {
		if errors.Is(err, apperr.ErrAuthorizationRequired) {
			h.redirect(w, r, "/", MsgSignInRequired)
		} else {
			h.serverError(w, r, "read history", err)
		}
		return
	}
	h.render(w, r, http.StatusOK, "history", "", struct {
		Name     string
		Versions []string
	}{name, versions})
}
