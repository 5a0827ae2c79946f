package validators_test

import (
	"testing"
	"time"

	"github.com/dalemusser/aimap/internal/app/system/validators"
	"github.com/dalemusser/aimap/internal/testutil"
	"go.mongodb.org/mongo-driver/bson"
)

func TestEnsureAll(t *testing.T) {
	db := testutil.SetupTestDB(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	// EnsureAll should succeed on a clean database
	if err := validators.EnsureAll(ctx, db); err != nil {
		t.Fatalf("EnsureAll failed: %v", err)
	}
}

func TestEnsureAll_Idempotent(t *testing.T) {
	db := testutil.SetupTestDB(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	if err := validators.EnsureAll(ctx, db); err != nil {
		t.Fatalf("First EnsureAll failed: %v", err)
	}
	if err := validators.EnsureAll(ctx, db); err != nil {
		t.Fatalf("Second EnsureAll failed: %v", err)
	}
}

func TestEnsureAll_CreatesCollections(t *testing.T) {
	db := testutil.SetupTestDB(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	if err := validators.EnsureAll(ctx, db); err != nil {
		t.Fatalf("EnsureAll failed: %v", err)
	}

	names, err := db.ListCollectionNames(ctx, bson.M{})
	if err != nil {
		t.Fatalf("ListCollectionNames failed: %v", err)
	}
	collMap := make(map[string]bool)
	for _, name := range names {
		collMap[name] = true
	}

	for _, expected := range []string{"rooms", "room_members", "room_locations", "rate_limits", "access_logs"} {
		if !collMap[expected] {
			t.Errorf("expected collection %q to exist", expected)
		}
	}
}

func TestValidators_RejectAndAccept(t *testing.T) {
	db := testutil.SetupTestDB(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	if err := validators.EnsureAll(ctx, db); err != nil {
		t.Fatalf("EnsureAll failed: %v", err)
	}

	now := time.Now().UTC()

	tests := []struct {
		name    string
		coll    string
		doc     bson.M
		wantErr bool
	}{
		{
			name: "valid room",
			coll: "rooms",
			doc:  bson.M{"_id": "abc123def456", "created_at": now, "expires_at": now.Add(3 * time.Hour)},
		},
		{
			name:    "room id wrong shape",
			coll:    "rooms",
			doc:     bson.M{"_id": "ABC", "created_at": now, "expires_at": now},
			wantErr: true,
		},
		{
			name:    "room missing expiry",
			coll:    "rooms",
			doc:     bson.M{"_id": "abc123def457", "created_at": now},
			wantErr: true,
		},
		{
			name: "valid member",
			coll: "room_members",
			doc:  bson.M{"_id": "abc123def456/u1", "room_id": "abc123def456", "uid": "u1", "nickname": "Ann", "joined_at": now},
		},
		{
			name:    "member blank nickname",
			coll:    "room_members",
			doc:     bson.M{"_id": "abc123def456/u2", "room_id": "abc123def456", "uid": "u2", "nickname": "   ", "joined_at": now},
			wantErr: true,
		},
		{
			name: "valid location",
			coll: "room_locations",
			doc:  bson.M{"_id": "abc123def456/u1", "room_id": "abc123def456", "uid": "u1", "lat": 35.5, "lng": 139.7, "updated_at": now},
		},
		{
			name:    "latitude out of range",
			coll:    "room_locations",
			doc:     bson.M{"_id": "abc123def456/u3", "room_id": "abc123def456", "uid": "u3", "lat": 91.0, "lng": 0.5, "updated_at": now},
			wantErr: true,
		},
		{
			name:    "counter without expiry",
			coll:    "rate_limits",
			doc:     bson.M{"_id": "checkRoom_1.2.3.4"},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := db.Collection(tt.coll).InsertOne(ctx, tt.doc)
			if tt.wantErr && err == nil {
				t.Errorf("expected validation error inserting into %s", tt.coll)
			}
			if !tt.wantErr && err != nil {
				t.Errorf("insert into %s failed: %v", tt.coll, err)
			}
		})
	}
}
