// internal/app/features/locations/handler.go
package locations

import (
	"net/http"
	"time"

	"github.com/dalemusser/aimap/internal/app/features/rooms"
	"github.com/dalemusser/aimap/internal/app/system/jsonresp"
	"github.com/dalemusser/aimap/internal/app/system/livefeed"
	"github.com/dalemusser/aimap/internal/app/system/timeouts"
	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

const maxBodyBytes = 4 << 10

// Handler serves the in-room endpoints under /rooms/{roomId}.
type Handler struct {
	Svc      *Service
	Hub      *livefeed.Hub
	Upgrader websocket.Upgrader
	Log      *zap.Logger
}

// NewHandler constructs a locations Handler. A nil hub disables the live
// stream. allowedOrigins is the browser origin allow-list for websocket
// upgrades; "*" allows any origin.
func NewHandler(svc *Service, hub *livefeed.Hub, allowedOrigins []string, logger *zap.Logger) *Handler {
	return &Handler{
		Svc: svc,
		Hub: hub,
		Upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 4096,
			CheckOrigin:     originChecker(allowedOrigins),
		},
		Log: logger,
	}
}

type locationRequest struct {
	Lat *float64 `json:"lat"`
	Lng *float64 `json:"lng"`
}

type locationResponse struct {
	RoomID    string    `json:"roomId"`
	Lat       float64   `json:"lat"`
	Lng       float64   `json:"lng"`
	UpdatedAt time.Time `json:"updatedAt"`
}

type profileRequest struct {
	Nickname *string `json:"nickname"`
	Message  *string `json:"message"`
}

type successResponse struct {
	Success bool   `json:"success"`
	RoomID  string `json:"roomId"`
}

// ShareLocation handles PUT /rooms/{roomId}/location.
//
//	{ "lat": 35.68, "lng": 139.76 }  ->  200 { "roomId", "lat", "lng", "updatedAt" }
func (h *Handler) ShareLocation(w http.ResponseWriter, r *http.Request) {
	var req locationRequest
	if err := jsonresp.Decode(w, r, maxBodyBytes, &req); err != nil {
		rooms.WriteError(w, rooms.NewError(rooms.ErrInvalidInput, rooms.CodeInvalidBody))
		return
	}

	ctx, cancel := timeouts.WithTimeout(r.Context(), timeouts.Medium(), h.Log, "share location")
	defer cancel()

	roomID := chi.URLParam(r, "roomId")
	loc, err := h.Svc.ShareLocation(ctx, rooms.CallerFromRequest(r), roomID, req.Lat, req.Lng)
	if err != nil {
		rooms.WriteError(w, err)
		return
	}
	jsonresp.Write(w, http.StatusOK, locationResponse{
		RoomID:    roomID,
		Lat:       loc.Lat,
		Lng:       loc.Lng,
		UpdatedAt: loc.UpdatedAt,
	})
}

// StopSharing handles DELETE /rooms/{roomId}/location.
func (h *Handler) StopSharing(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := timeouts.WithTimeout(r.Context(), timeouts.Medium(), h.Log, "stop sharing")
	defer cancel()

	roomID := chi.URLParam(r, "roomId")
	if err := h.Svc.StopSharing(ctx, rooms.CallerFromRequest(r), roomID); err != nil {
		rooms.WriteError(w, err)
		return
	}
	jsonresp.Write(w, http.StatusOK, successResponse{Success: true, RoomID: roomID})
}

// Members handles GET /rooms/{roomId}/members.
func (h *Handler) Members(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := timeouts.WithTimeout(r.Context(), timeouts.Medium(), h.Log, "room snapshot")
	defer cancel()

	snap, err := h.Svc.Snapshot(ctx, rooms.CallerFromRequest(r), chi.URLParam(r, "roomId"))
	if err != nil {
		rooms.WriteError(w, err)
		return
	}
	jsonresp.Write(w, http.StatusOK, snap)
}

// UpdateProfile handles PATCH /rooms/{roomId}/members/me.
//
//	{ "nickname"?: "...", "message"?: "..." }  ->  200 MemberView
func (h *Handler) UpdateProfile(w http.ResponseWriter, r *http.Request) {
	var req profileRequest
	if err := jsonresp.Decode(w, r, maxBodyBytes, &req); err != nil {
		rooms.WriteError(w, rooms.NewError(rooms.ErrInvalidInput, rooms.CodeInvalidBody))
		return
	}

	ctx, cancel := timeouts.WithTimeout(r.Context(), timeouts.Medium(), h.Log, "update profile")
	defer cancel()

	view, err := h.Svc.UpdateProfile(ctx, rooms.CallerFromRequest(r), chi.URLParam(r, "roomId"),
		ProfileInput{Nickname: req.Nickname, Message: req.Message})
	if err != nil {
		rooms.WriteError(w, err)
		return
	}
	jsonresp.Write(w, http.StatusOK, view)
}
