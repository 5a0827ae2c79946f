// internal/app/features/locations/routes.go
package locations

import "github.com/go-chi/chi/v5"

// Routes returns a subrouter for member actions inside a room.
// It is mounted at /rooms.
func Routes(h *Handler) chi.Router {
	r := chi.NewRouter()
	r.Put("/{roomId}/location", h.ShareLocation)
	r.Delete("/{roomId}/location", h.StopSharing)
	r.Get("/{roomId}/members", h.Members)
	r.Patch("/{roomId}/members/me", h.UpdateProfile)
	if h.Hub != nil {
		r.Get("/{roomId}/live", h.Live)
	}
	return r
}
