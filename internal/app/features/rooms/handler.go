// internal/app/features/rooms/handler.go
package rooms

import (
	"errors"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/dalemusser/aimap/internal/app/system/idtoken"
	"github.com/dalemusser/aimap/internal/app/system/jsonresp"
	"github.com/dalemusser/aimap/internal/app/system/ratelimit"
	"github.com/dalemusser/aimap/internal/app/system/timeouts"
	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

// Handler serves the four room lifecycle endpoints.
type Handler struct {
	Svc *Service
	Log *zap.Logger
}

// NewHandler constructs a rooms Handler.
func NewHandler(svc *Service, logger *zap.Logger) *Handler {
	return &Handler{Svc: svc, Log: logger}
}

// CallerFromRequest collects identity and client details for the service.
func CallerFromRequest(r *http.Request) Caller {
	return Caller{
		Identity:  idtoken.FromRequest(r),
		IP:        ratelimit.ClientIP(r),
		UserAgent: r.UserAgent(),
	}
}

// callerWithBody decodes the JSON body into dst and attaches any decode
// failure to the caller. An empty body decodes to the zero request.
func callerWithBody(w http.ResponseWriter, r *http.Request, dst any) Caller {
	c := CallerFromRequest(r)
	if err := jsonresp.Decode(w, r, maxBodyBytes, dst); err != nil && !errors.Is(err, io.EOF) {
		c.BodyErr = err
	}
	return c
}

// CreateRoom handles POST /createRoom.
//
//	{ "nickname": "Alice" }  ->  200 { "roomId": "...", "url": "...", "expiresAt": "..." }
func (h *Handler) CreateRoom(w http.ResponseWriter, r *http.Request) {
	var req createRoomRequest
	c := callerWithBody(w, r, &req)

	ctx, cancel := timeouts.WithTimeout(r.Context(), timeouts.Long(), h.Log, "create room")
	defer cancel()

	res, err := h.Svc.Create(ctx, c, req.Nickname)
	if err != nil {
		h.writeError(w, err)
		return
	}
	jsonresp.Write(w, http.StatusOK, createRoomResponse{
		RoomID:    res.RoomID,
		URL:       res.URL,
		ExpiresAt: res.ExpiresAt.UTC().Format(time.RFC3339),
	})
}

// JoinRoom handles POST /joinRoom.
//
//	{ "roomId": "...", "nickname": "Bob" }  ->  200 { "success": true, "roomId": "...", "alreadyMember": false }
func (h *Handler) JoinRoom(w http.ResponseWriter, r *http.Request) {
	var req joinRoomRequest
	c := callerWithBody(w, r, &req)

	ctx, cancel := timeouts.WithTimeout(r.Context(), timeouts.Medium(), h.Log, "join room")
	defer cancel()

	res, err := h.Svc.Join(ctx, c, req.RoomID, req.Nickname)
	if err != nil {
		h.writeError(w, err)
		return
	}
	resp := joinRoomResponse{Success: true, RoomID: res.RoomID, AlreadyMember: res.AlreadyMember}
	if res.AlreadyMember {
		resp.Message = "Already a member of this room"
	}
	jsonresp.Write(w, http.StatusOK, resp)
}

// CheckRoom handles GET /checkRoom/{roomId}.
//
//	200 { "exists": true, "expired": false, "isMember": true }
func (h *Handler) CheckRoom(w http.ResponseWriter, r *http.Request) {
	roomID := chi.URLParam(r, "roomId")

	ctx, cancel := timeouts.WithTimeout(r.Context(), timeouts.Medium(), h.Log, "check room")
	defer cancel()

	res, err := h.Svc.Check(ctx, CallerFromRequest(r), roomID)
	if err != nil {
		code, msg := Message(err)
		jsonresp.Write(w, Status(err), checkRoomError{Exists: false, Expired: true, Error: msg, Code: code})
		return
	}
	jsonresp.Write(w, http.StatusOK, checkRoomResponse{
		Exists:   res.Exists,
		Expired:  res.Expired,
		IsMember: res.IsMember,
	})
}

// ExitRoom handles DELETE /exitRoom.
//
//	{ "roomId": "..." }  ->  200 { "success": true, "message": "...", "roomId": "..." }
func (h *Handler) ExitRoom(w http.ResponseWriter, r *http.Request) {
	var req exitRoomRequest
	c := callerWithBody(w, r, &req)

	ctx, cancel := timeouts.WithTimeout(r.Context(), timeouts.Long(), h.Log, "exit room")
	defer cancel()

	if err := h.Svc.Exit(ctx, c, req.RoomID); err != nil {
		h.writeError(w, err)
		return
	}
	jsonresp.Write(w, http.StatusOK, exitRoomResponse{
		Success: true,
		Message: ExitMessage,
		RoomID:  strings.TrimSpace(req.RoomID),
	})
}

func (h *Handler) writeError(w http.ResponseWriter, err error) {
	WriteError(w, err)
}
