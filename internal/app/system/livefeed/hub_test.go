package livefeed

import (
	"sync/atomic"
	"testing"
	"time"
)

type countingGauge struct{ open atomic.Int32 }

func (g *countingGauge) LiveClientConnected()    { g.open.Add(1) }
func (g *countingGauge) LiveClientDisconnected() { g.open.Add(-1) }

func received(s *Subscription) bool {
	select {
	case <-s.C:
		return true
	case <-time.After(50 * time.Millisecond):
		return false
	}
}

func TestHub_SignalsOnlyThatRoom(t *testing.T) {
	h := NewHub(Options{}, nil)
	a := h.Subscribe("roomaaaaaaaa")
	b := h.Subscribe("roombbbbbbbb")
	defer h.Unsubscribe(a)
	defer h.Unsubscribe(b)

	h.RoomChanged("roomaaaaaaaa")

	if !received(a) {
		t.Error("subscriber of changed room was not signalled")
	}
	if received(b) {
		t.Error("subscriber of another room was signalled")
	}
}

func TestHub_SignalsCoalesce(t *testing.T) {
	h := NewHub(Options{}, nil)
	s := h.Subscribe("roomaaaaaaaa")
	defer h.Unsubscribe(s)

	for i := 0; i < 10; i++ {
		h.RoomChanged("roomaaaaaaaa")
	}

	if !received(s) {
		t.Fatal("expected one pending signal")
	}
	if received(s) {
		t.Error("signals did not coalesce")
	}
}

func TestHub_UnsubscribeTracksGauge(t *testing.T) {
	g := &countingGauge{}
	h := NewHub(Options{Gauge: g}, nil)

	s1 := h.Subscribe("roomaaaaaaaa")
	s2 := h.Subscribe("roomaaaaaaaa")
	if got := h.Count("roomaaaaaaaa"); got != 2 {
		t.Fatalf("Count: got %d, want 2", got)
	}
	if got := g.open.Load(); got != 2 {
		t.Fatalf("gauge: got %d, want 2", got)
	}

	h.Unsubscribe(s1)
	h.Unsubscribe(s1)
	h.Unsubscribe(s2)

	if got := h.Count("roomaaaaaaaa"); got != 0 {
		t.Errorf("Count after unsubscribe: got %d, want 0", got)
	}
	if got := g.open.Load(); got != 0 {
		t.Errorf("gauge after unsubscribe: got %d, want 0", got)
	}

	// Signalling an empty room is a no-op.
	h.RoomChanged("roomaaaaaaaa")
}
