// internal/app/features/authanon/routes.go
package authanon

import "github.com/go-chi/chi/v5"

// Routes returns a subrouter mounted at /auth.
func Routes(h *Handler) chi.Router {
	r := chi.NewRouter()
	r.Post("/anonymous", h.SignIn)
	return r
}
