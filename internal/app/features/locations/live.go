// internal/app/features/locations/live.go
package locations

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/dalemusser/aimap/internal/app/features/rooms"
	"github.com/dalemusser/aimap/internal/app/system/timeouts"
	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

const (
	// Time allowed to write a message to the peer.
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer.
	pongWait = 60 * time.Second

	// Send pings to peer with this period. Must be less than pongWait.
	pingPeriod = (pongWait * 9) / 10

	// Clients only send control frames; anything larger is a protocol error.
	maxMessageSize = 512
)

// liveMessage is the only frame the server sends on the live stream.
type liveMessage struct {
	Type     string    `json:"type"`
	Snapshot *Snapshot `json:"snapshot,omitempty"`
}

// Live handles GET /rooms/{roomId}/live. After the upgrade the server sends
// a snapshot immediately and again after every change to the room. The
// stream ends when the room expires, the caller leaves, or the peer goes away.
func (h *Handler) Live(w http.ResponseWriter, r *http.Request) {
	c := rooms.CallerFromRequest(r)
	roomID := chi.URLParam(r, "roomId")

	ctx, cancel := timeouts.WithTimeout(r.Context(), timeouts.Short(), h.Log, "live authorize")
	room, err := h.Svc.Authorize(ctx, c, roomID)
	cancel()
	if err != nil {
		rooms.WriteError(w, err)
		return
	}

	conn, err := h.Upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade has already written the HTTP error.
		h.Log.Debug("live upgrade failed", zap.String("room_id", roomID), zap.Error(err))
		return
	}
	defer conn.Close()

	sub := h.Hub.Subscribe(roomID)
	defer h.Hub.Unsubscribe(sub)

	log := h.Log.With(zap.String("room_id", roomID), zap.String("uid", c.Identity.UID))
	log.Debug("live client connected")

	gone := make(chan struct{})
	go readPump(conn, gone)

	ping := time.NewTicker(pingPeriod)
	defer ping.Stop()
	expiry := time.NewTimer(room.ExpiresAt.Sub(h.Svc.Now()))
	defer expiry.Stop()

	send := func() bool {
		ctx, cancel := timeouts.WithTimeout(context.Background(), timeouts.Medium(), h.Log, "live snapshot")
		snap, err := h.Svc.Snapshot(ctx, c, roomID)
		cancel()
		if err != nil {
			code, _ := rooms.Message(err)
			closeWith(conn, closeCode(err), code)
			log.Debug("live stream ended", zap.String("code", code))
			return false
		}
		_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
		if err := conn.WriteJSON(liveMessage{Type: "snapshot", Snapshot: &snap}); err != nil {
			log.Debug("live write failed", zap.Error(err))
			return false
		}
		return true
	}

	if !send() {
		return
	}
	for {
		select {
		case <-gone:
			log.Debug("live client disconnected")
			return
		case <-sub.C:
			if !send() {
				return
			}
		case <-ping.C:
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case <-expiry.C:
			closeWith(conn, websocket.CloseNormalClosure, rooms.CodeRoomExpired)
			return
		}
	}
}

// readPump discards client frames so pongs and close frames are processed,
// and closes gone when the connection drops.
func readPump(conn *websocket.Conn, gone chan<- struct{}) {
	defer close(gone)
	conn.SetReadLimit(maxMessageSize)
	_ = conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
	}
}

func closeWith(conn *websocket.Conn, code int, reason string) {
	msg := websocket.FormatCloseMessage(code, reason)
	_ = conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(writeWait))
}

func closeCode(err error) int {
	switch {
	case errors.Is(err, rooms.ErrGone), errors.Is(err, rooms.ErrForbidden), errors.Is(err, rooms.ErrNotFound):
		return websocket.CloseNormalClosure
	default:
		return websocket.CloseInternalServerErr
	}
}

// originChecker allows requests without an Origin header (native clients)
// and browser origins on the allow-list.
func originChecker(allowed []string) func(*http.Request) bool {
	set := make(map[string]bool, len(allowed))
	for _, o := range allowed {
		set[strings.TrimRight(strings.TrimSpace(o), "/")] = true
	}
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" || set["*"] {
			return true
		}
		return set[origin]
	}
}
