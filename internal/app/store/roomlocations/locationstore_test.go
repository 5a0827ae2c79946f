package locationstore_test

import (
	"errors"
	"testing"
	"time"

	locationstore "github.com/dalemusser/aimap/internal/app/store/roomlocations"
	"github.com/dalemusser/aimap/internal/testutil"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
)

func TestStore_SetOverwrites(t *testing.T) {
	db := testutil.SetupTestDB(t)
	store := locationstore.New(db)
	fx := testutil.NewFixtures(t, db)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	t1 := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	if _, err := store.Set(ctx, "room00000001", "alice", 1.5, 2.5, t1); err != nil {
		t.Fatalf("Set failed: %v", err)
	}
	t2 := t1.Add(time.Minute)
	if _, err := store.Set(ctx, "room00000001", "alice", -3.25, 4.75, t2); err != nil {
		t.Fatalf("second Set failed: %v", err)
	}

	if n := fx.CountDocs(ctx, locationstore.CollectionName, bson.M{}); n != 1 {
		t.Fatalf("documents: got %d, want 1", n)
	}
	got, err := store.Get(ctx, "room00000001", "alice")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if got.Lat != -3.25 || got.Lng != 4.75 || !got.UpdatedAt.Equal(t2) {
		t.Errorf("Get: got %+v", got)
	}
}

func TestStore_DeleteIsIdempotent(t *testing.T) {
	db := testutil.SetupTestDB(t)
	store := locationstore.New(db)
	fx := testutil.NewFixtures(t, db)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	fx.ShareLocation(ctx, "room00000001", "alice", 1, 2, time.Now())

	for i := 0; i < 2; i++ {
		if err := store.Delete(ctx, "room00000001", "alice"); err != nil {
			t.Fatalf("Delete #%d failed: %v", i+1, err)
		}
	}
	if _, err := store.Get(ctx, "room00000001", "alice"); !errors.Is(err, mongo.ErrNoDocuments) {
		t.Errorf("Get after Delete: got %v, want ErrNoDocuments", err)
	}
}

func TestStore_ListByRoomAndDeleteByRooms(t *testing.T) {
	db := testutil.SetupTestDB(t)
	store := locationstore.New(db)
	fx := testutil.NewFixtures(t, db)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	now := time.Now()
	fx.ShareLocation(ctx, "room00000001", "alice", 1, 1, now)
	fx.ShareLocation(ctx, "room00000001", "bob", 2, 2, now)
	fx.ShareLocation(ctx, "room00000002", "carol", 3, 3, now)

	locs, err := store.ListByRoom(ctx, "room00000001")
	if err != nil {
		t.Fatalf("ListByRoom failed: %v", err)
	}
	if len(locs) != 2 {
		t.Fatalf("ListByRoom: got %d, want 2", len(locs))
	}

	n, err := store.DeleteByRooms(ctx, []string{"room00000001", "room00000009"})
	if err != nil || n != 2 {
		t.Errorf("DeleteByRooms = %d, %v; want 2", n, err)
	}
	if locs, _ := store.ListByRoom(ctx, "room00000002"); len(locs) != 1 {
		t.Errorf("other room: got %d locations, want 1", len(locs))
	}
}
