package accesslogstore_test

import (
	"testing"
	"time"

	accesslogstore "github.com/dalemusser/aimap/internal/app/store/accesslogs"
	"github.com/dalemusser/aimap/internal/domain/models"
	"github.com/dalemusser/aimap/internal/testutil"
)

func TestStore_InsertAndQuery(t *testing.T) {
	db := testutil.SetupTestDB(t)
	store := accesslogstore.New(db)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	base := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	entries := []models.AccessLogEntry{
		{Endpoint: "joinRoom", IP: "10.0.0.1", RoomID: "room00000001", Success: false, ErrorCode: "ROOM_NOT_FOUND", Timestamp: base},
		{Endpoint: "joinRoom", IP: "10.0.0.1", RoomID: "room00000001", Success: true, Timestamp: base.Add(time.Minute)},
		{Endpoint: "checkRoom", IP: "10.0.0.2", RoomID: "room00000001", Success: true, Note: "ROOM_VALID", Timestamp: base.Add(2 * time.Minute)},
	}
	for _, e := range entries {
		if err := store.Insert(ctx, e); err != nil {
			t.Fatalf("Insert failed: %v", err)
		}
	}

	all, err := store.Query(ctx, accesslogstore.QueryFilter{})
	if err != nil {
		t.Fatalf("Query failed: %v", err)
	}
	if len(all) != 3 {
		t.Fatalf("Query all: got %d, want 3", len(all))
	}
	if all[0].Endpoint != "checkRoom" {
		t.Errorf("Query order: newest first expected, got %s first", all[0].Endpoint)
	}
	if all[0].ID.IsZero() {
		t.Error("Insert did not assign an id")
	}

	failed := false
	got, err := store.Query(ctx, accesslogstore.QueryFilter{Endpoint: "joinRoom", Success: &failed})
	if err != nil {
		t.Fatalf("Query failures failed: %v", err)
	}
	if len(got) != 1 || got[0].ErrorCode != "ROOM_NOT_FOUND" {
		t.Errorf("Query failures: got %+v", got)
	}

	start := base.Add(30 * time.Second)
	got, err = store.Query(ctx, accesslogstore.QueryFilter{IP: "10.0.0.1", StartTime: &start})
	if err != nil {
		t.Fatalf("Query by time failed: %v", err)
	}
	if len(got) != 1 || !got[0].Success {
		t.Errorf("Query by time: got %+v", got)
	}
}

func TestStore_DeleteExpired(t *testing.T) {
	db := testutil.SetupTestDB(t)
	store := accesslogstore.New(db)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	now := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	_ = store.Insert(ctx, models.AccessLogEntry{Endpoint: "createRoom", Timestamp: now, ExpiresAt: now.Add(-time.Hour)})
	_ = store.Insert(ctx, models.AccessLogEntry{Endpoint: "createRoom", Timestamp: now, ExpiresAt: now.Add(time.Hour)})

	n, err := store.DeleteExpired(ctx, now)
	if err != nil {
		t.Fatalf("DeleteExpired failed: %v", err)
	}
	if n != 1 {
		t.Errorf("DeleteExpired: deleted %d, want 1", n)
	}
}
