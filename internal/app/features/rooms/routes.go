// internal/app/features/rooms/routes.go
package rooms

import "github.com/go-chi/chi/v5"

// Routes returns a subrouter with the room lifecycle endpoints.
// It is mounted at the site root.
func Routes(h *Handler) chi.Router {
	r := chi.NewRouter()
	r.Post("/createRoom", h.CreateRoom)
	r.Post("/joinRoom", h.JoinRoom)
	r.Get("/checkRoom/{roomId}", h.CheckRoom)
	r.Delete("/exitRoom", h.ExitRoom)
	return r
}
