package testutil

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/dalemusser/aimap/internal/domain/models"
	"github.com/go-chi/chi/v5"
	"go.mongodb.org/mongo-driver/mongo"
)

// WithChiURLParam adds a chi URL parameter to the request context.
// Use this in handler tests that need to access chi.URLParam values.
func WithChiURLParam(r *http.Request, key, value string) *http.Request {
	rctx := chi.NewRouteContext()
	rctx.URLParams.Add(key, value)
	return r.WithContext(context.WithValue(r.Context(), chi.RouteCtxKey, rctx))
}

// Fixtures provides helper methods for creating test data.
type Fixtures struct {
	db *mongo.Database
	t  *testing.T
}

// NewFixtures creates a new Fixtures instance for the given test database.
func NewFixtures(t *testing.T, db *mongo.Database) *Fixtures {
	t.Helper()
	return &Fixtures{db: db, t: t}
}

// DB returns the underlying database for direct access in tests.
func (f *Fixtures) DB() *mongo.Database {
	return f.db
}

// CreateRoom inserts a room created at createdAt that lives for ttl.
func (f *Fixtures) CreateRoom(ctx context.Context, id string, createdAt time.Time, ttl time.Duration) models.Room {
	f.t.Helper()

	room := models.Room{ID: id, CreatedAt: createdAt.UTC(), ExpiresAt: createdAt.Add(ttl).UTC()}
	if _, err := f.db.Collection("rooms").InsertOne(ctx, room); err != nil {
		f.t.Fatalf("failed to create test room: %v", err)
	}
	return room
}

// CreateExpiredRoom inserts a room whose expiry is already behind now.
func (f *Fixtures) CreateExpiredRoom(ctx context.Context, id string, now time.Time) models.Room {
	f.t.Helper()
	return f.CreateRoom(ctx, id, now.Add(-4*time.Hour), 3*time.Hour)
}

// AddMember inserts a membership for uid in roomID.
func (f *Fixtures) AddMember(ctx context.Context, roomID, uid, nickname string, joinedAt time.Time) models.RoomMember {
	f.t.Helper()

	m := models.RoomMember{
		ID:       models.MemberKey(roomID, uid),
		RoomID:   roomID,
		UID:      uid,
		Nickname: nickname,
		JoinedAt: joinedAt.UTC(),
	}
	if _, err := f.db.Collection("room_members").InsertOne(ctx, m); err != nil {
		f.t.Fatalf("failed to create test member: %v", err)
	}
	return m
}

// ShareLocation inserts a location for uid in roomID.
func (f *Fixtures) ShareLocation(ctx context.Context, roomID, uid string, lat, lng float64, at time.Time) models.RoomLocation {
	f.t.Helper()

	loc := models.RoomLocation{
		ID:        models.MemberKey(roomID, uid),
		RoomID:    roomID,
		UID:       uid,
		Lat:       lat,
		Lng:       lng,
		UpdatedAt: at.UTC(),
	}
	if _, err := f.db.Collection("room_locations").InsertOne(ctx, loc); err != nil {
		f.t.Fatalf("failed to create test location: %v", err)
	}
	return loc
}

// CountDocs counts documents in coll matching filter.
func (f *Fixtures) CountDocs(ctx context.Context, coll string, filter any) int64 {
	f.t.Helper()

	n, err := f.db.Collection(coll).CountDocuments(ctx, filter)
	if err != nil {
		f.t.Fatalf("count %s: %v", coll, err)
	}
	return n
}
