// internal/app/system/livefeed/hub.go
package livefeed

import (
	"context"
	"sync"
	"time"

	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"
)

// DefaultChannel is the Redis pub/sub channel carrying room ids between instances.
const DefaultChannel = "aimap:room-changed"

// Gauge tracks open subscriptions. *metrics.Metrics satisfies it.
type Gauge interface {
	LiveClientConnected()
	LiveClientDisconnected()
}

// Subscription receives a signal on C whenever its room changes. Signals
// coalesce: a subscriber that is busy sees one pending signal, not a backlog,
// and is expected to reload the room state when it wakes.
type Subscription struct {
	RoomID string
	C      <-chan struct{}

	c chan struct{}
}

// Hub fans room-change notifications out to live subscribers.
//
// Without Redis, RoomChanged signals local subscribers directly. With Redis,
// RoomChanged publishes the room id and every instance (this one included)
// signals its own subscribers from the Run loop.
type Hub struct {
	redis   *redis.Client
	channel string
	gauge   Gauge
	log     *zap.Logger

	mu    sync.Mutex
	rooms map[string]map[*Subscription]struct{}
}

// Options configure a Hub. Redis is optional.
type Options struct {
	Redis   *redis.Client
	Channel string
	Gauge   Gauge
}

// NewHub creates a Hub.
func NewHub(opts Options, logger *zap.Logger) *Hub {
	if opts.Channel == "" {
		opts.Channel = DefaultChannel
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Hub{
		redis:   opts.Redis,
		channel: opts.Channel,
		gauge:   opts.Gauge,
		log:     logger,
		rooms:   make(map[string]map[*Subscription]struct{}),
	}
}

// Subscribe registers interest in roomID. Callers must Unsubscribe.
func (h *Hub) Subscribe(roomID string) *Subscription {
	c := make(chan struct{}, 1)
	s := &Subscription{RoomID: roomID, C: c, c: c}

	h.mu.Lock()
	subs, ok := h.rooms[roomID]
	if !ok {
		subs = make(map[*Subscription]struct{})
		h.rooms[roomID] = subs
	}
	subs[s] = struct{}{}
	h.mu.Unlock()

	if h.gauge != nil {
		h.gauge.LiveClientConnected()
	}
	return s
}

// Unsubscribe removes s. It is safe to call more than once.
func (h *Hub) Unsubscribe(s *Subscription) {
	h.mu.Lock()
	subs, ok := h.rooms[s.RoomID]
	_, present := subs[s]
	if ok && present {
		delete(subs, s)
		if len(subs) == 0 {
			delete(h.rooms, s.RoomID)
		}
	}
	h.mu.Unlock()

	if present && h.gauge != nil {
		h.gauge.LiveClientDisconnected()
	}
}

// Count returns the number of subscriptions for roomID.
func (h *Hub) Count(roomID string) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.rooms[roomID])
}

// RoomChanged announces that roomID's members, profiles or positions changed.
// It never blocks on subscribers.
func (h *Hub) RoomChanged(roomID string) {
	if h.redis == nil {
		h.signal(roomID)
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := h.redis.Publish(ctx, h.channel, roomID).Err(); err != nil {
		// Keep this instance's clients current even when Redis is down.
		h.log.Warn("live publish failed, notifying local subscribers only",
			zap.String("room_id", roomID), zap.Error(err))
		h.signal(roomID)
	}
}

func (h *Hub) signal(roomID string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for s := range h.rooms[roomID] {
		select {
		case s.c <- struct{}{}:
		default:
		}
	}
}

// Run relays Redis notifications to local subscribers until ctx ends.
// It returns immediately when the hub has no Redis client.
func (h *Hub) Run(ctx context.Context) {
	if h.redis == nil {
		return
	}
	ps := h.redis.Subscribe(ctx, h.channel)
	defer ps.Close()

	h.log.Info("live feed subscribed", zap.String("channel", h.channel))
	ch := ps.Channel()
	for {
		select {
		case <-ctx.Done():
			h.log.Info("live feed stopped")
			return
		case msg, ok := <-ch:
			if !ok {
				return
			}
			h.signal(msg.Payload)
		}
	}
}
