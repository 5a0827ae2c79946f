package workers

import (
	"testing"
	"time"

	"github.com/dalemusser/aimap/internal/domain/models"
	"github.com/dalemusser/aimap/internal/testutil"
	"go.mongodb.org/mongo-driver/bson"
	"go.uber.org/zap"
)

func TestRoomSweeper_Sweep(t *testing.T) {
	db := testutil.SetupTestDB(t)
	fx := testutil.NewFixtures(t, db)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	// Expired well past the grace period.
	fx.CreateRoom(ctx, "oldroom00001", now.Add(-4*time.Hour), 3*time.Hour)
	fx.AddMember(ctx, "oldroom00001", "u1", "Ann", now.Add(-4*time.Hour))
	fx.ShareLocation(ctx, "oldroom00001", "u1", 1, 2, now.Add(-4*time.Hour))

	// Expired five minutes ago: inside the grace period.
	fx.CreateRoom(ctx, "graceroom001", now.Add(-3*time.Hour-5*time.Minute), 3*time.Hour)
	fx.AddMember(ctx, "graceroom001", "u2", "Bo", now.Add(-3*time.Hour))

	// Live.
	fx.CreateRoom(ctx, "liveroom0001", now.Add(-time.Hour), 3*time.Hour)
	fx.AddMember(ctx, "liveroom0001", "u3", "Cy", now.Add(-time.Hour))
	fx.ShareLocation(ctx, "liveroom0001", "u3", 3, 4, now)

	logs := db.Collection("access_logs")
	if _, err := logs.InsertMany(ctx, []any{
		models.AccessLogEntry{Endpoint: "checkRoom", IP: "1.1.1.1", Timestamp: now.Add(-31 * 24 * time.Hour), ExpiresAt: now.Add(-24 * time.Hour)},
		models.AccessLogEntry{Endpoint: "checkRoom", IP: "1.1.1.1", Timestamp: now, ExpiresAt: now.Add(30 * 24 * time.Hour)},
	}); err != nil {
		t.Fatalf("seed access logs: %v", err)
	}
	counters := db.Collection("rate_limits")
	if _, err := counters.InsertMany(ctx, []any{
		models.RateLimitCounter{Key: "checkRoom_1.1.1.1", ExpiresAt: now.Add(-time.Minute)},
		models.RateLimitCounter{Key: "joinRoom_1.1.1.1", ExpiresAt: now.Add(time.Hour)},
	}); err != nil {
		t.Fatalf("seed counters: %v", err)
	}

	w := NewRoomSweeper(db, zap.NewNop(), SweepConfig{Grace: DefaultSweepGrace, Batch: 1})
	w.now = func() time.Time { return now }

	got := w.Sweep(ctx)
	want := SweepResult{Rooms: 1, Members: 1, Locations: 1, AccessLogs: 1, Counters: 1}
	if got != want {
		t.Fatalf("Sweep() = %+v, want %+v", got, want)
	}

	if n := fx.CountDocs(ctx, "rooms", bson.M{"_id": "oldroom00001"}); n != 0 {
		t.Error("expired room should be gone")
	}
	if n := fx.CountDocs(ctx, "room_members", bson.M{"room_id": "oldroom00001"}); n != 0 {
		t.Error("members of expired room should be gone")
	}
	if n := fx.CountDocs(ctx, "rooms", bson.M{}); n != 2 {
		t.Errorf("rooms left = %d, want 2", n)
	}
	if n := fx.CountDocs(ctx, "room_locations", bson.M{"room_id": "liveroom0001"}); n != 1 {
		t.Error("live room location should remain")
	}

	// A second pass has nothing left to do.
	if got := w.Sweep(ctx); got != (SweepResult{}) {
		t.Errorf("second Sweep() = %+v, want zero", got)
	}
}

func TestRoomSweeper_SkipCounters(t *testing.T) {
	db := testutil.SetupTestDB(t)
	fx := testutil.NewFixtures(t, db)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	now := time.Now().UTC()
	if _, err := db.Collection("rate_limits").InsertOne(ctx, models.RateLimitCounter{Key: "k", ExpiresAt: now.Add(-time.Hour)}); err != nil {
		t.Fatalf("seed counter: %v", err)
	}

	w := NewRoomSweeper(db, zap.NewNop(), SweepConfig{SkipCounters: true})
	w.Sweep(ctx)

	if n := fx.CountDocs(ctx, "rate_limits", bson.M{}); n != 1 {
		t.Errorf("counters should be left alone, got %d", n)
	}
}

func TestRoomSweeper_StartStop(t *testing.T) {
	db := testutil.SetupTestDB(t)
	w := NewRoomSweeper(db, zap.NewNop(), SweepConfig{Interval: 10 * time.Millisecond})
	w.Start()
	time.Sleep(30 * time.Millisecond)
	w.Stop()
}
