package web

import (
	"github.com/go-chi/chi/v5"
)

// NewRouter creates a chi router with every page of the site mounted. The
// session middleware runs first so handlers see the signed-in user.
func NewRouter(h *Handler) chi.Router {
	r := chi.NewRouter()
	r.Use(h.sessions.Middleware)

	r.Get("/", h.Index)

	r.Get("/users/signin", h.SignInForm)
	r.Post("/users/signin", h.SignIn)
	r.Post("/users/signout", h.SignOut)
	r.Get("/users/signup", h.SignUpForm)
	r.Post("/users/signup", h.SignUp)

	r.Get("/{file}", h.Show)

	// Everything below changes content or exposes old versions.
	r.Group(func(r chi.Router) {
		r.Use(h.RequireSignedIn)

		r.Get("/new", h.NewForm)
		r.Post("/new", h.Create)
		r.Get("/upload", h.UploadForm)
		r.Post("/upload", h.Upload)

		r.Get("/{file}/edit", h.EditForm)
		r.Post("/{file}/edit", h.Edit)
		r.Post("/{file}/alter", h.Alter)
		r.Get("/{file}/duplicate", h.DuplicateForm)
		r.Post("/{file}/duplicate", h.Duplicate)
		r.Get("/{file}/history", h.History)
	})

	return r
}
