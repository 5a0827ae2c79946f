package roomstore_test

import (
	"errors"
	"testing"
	"time"

	roomstore "github.com/dalemusser/aimap/internal/app/store/rooms"
	"github.com/dalemusser/aimap/internal/domain/models"
	"github.com/dalemusser/aimap/internal/testutil"
	"go.mongodb.org/mongo-driver/mongo"
)

func TestStore_CreateGetExists(t *testing.T) {
	db := testutil.SetupTestDB(t)
	store := roomstore.New(db)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	now := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	room := models.Room{ID: "abc123def456", CreatedAt: now, ExpiresAt: now.Add(3 * time.Hour)}

	if err := store.Create(ctx, room); err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	got, err := store.Get(ctx, room.ID)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if !got.ExpiresAt.Equal(room.ExpiresAt) || !got.CreatedAt.Equal(room.CreatedAt) {
		t.Errorf("Get: got %+v, want %+v", got, room)
	}

	ok, err := store.Exists(ctx, room.ID)
	if err != nil || !ok {
		t.Errorf("Exists(%q) = %v, %v; want true", room.ID, ok, err)
	}
	ok, err = store.Exists(ctx, "zzzzzzzzzzzz")
	if err != nil || ok {
		t.Errorf("Exists(missing) = %v, %v; want false", ok, err)
	}

	if _, err := store.Get(ctx, "zzzzzzzzzzzz"); !errors.Is(err, mongo.ErrNoDocuments) {
		t.Errorf("Get(missing): got %v, want ErrNoDocuments", err)
	}
}

func TestStore_Create_Duplicate(t *testing.T) {
	db := testutil.SetupTestDB(t)
	store := roomstore.New(db)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	room := models.Room{ID: "dupdupdupdup", CreatedAt: time.Now().UTC(), ExpiresAt: time.Now().UTC().Add(time.Hour)}
	if err := store.Create(ctx, room); err != nil {
		t.Fatalf("first Create failed: %v", err)
	}
	if err := store.Create(ctx, room); !errors.Is(err, roomstore.ErrDuplicateRoom) {
		t.Errorf("second Create: got %v, want ErrDuplicateRoom", err)
	}
}

func TestStore_ListExpiredIDsAndDeleteMany(t *testing.T) {
	db := testutil.SetupTestDB(t)
	store := roomstore.New(db)
	fx := testutil.NewFixtures(t, db)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	now := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	fx.CreateRoom(ctx, "oldoldold001", now.Add(-5*time.Hour), 3*time.Hour) // expired 2h ago
	fx.CreateRoom(ctx, "oldoldold002", now.Add(-4*time.Hour), 3*time.Hour) // expired 1h ago
	fx.CreateRoom(ctx, "livelive0001", now, 3*time.Hour)

	ids, err := store.ListExpiredIDs(ctx, now, 10)
	if err != nil {
		t.Fatalf("ListExpiredIDs failed: %v", err)
	}
	if len(ids) != 2 || ids[0] != "oldoldold001" || ids[1] != "oldoldold002" {
		t.Fatalf("ListExpiredIDs: got %v", ids)
	}

	ids, err = store.ListExpiredIDs(ctx, now, 1)
	if err != nil || len(ids) != 1 {
		t.Fatalf("ListExpiredIDs limit 1: got %v, %v", ids, err)
	}

	n, err := store.DeleteMany(ctx, []string{"oldoldold001", "oldoldold002"})
	if err != nil {
		t.Fatalf("DeleteMany failed: %v", err)
	}
	if n != 2 {
		t.Errorf("DeleteMany: deleted %d, want 2", n)
	}
	if n, _ := store.DeleteMany(ctx, nil); n != 0 {
		t.Errorf("DeleteMany(nil): deleted %d, want 0", n)
	}
	if ok, _ := store.Exists(ctx, "livelive0001"); !ok {
		t.Error("live room was deleted")
	}
}
