// internal/app/store/rooms/roomstore.go
package roomstore

import (
	"context"
	"errors"
	"time"

	"github.com/dalemusser/aimap/internal/domain/models"
	wafflemongo "github.com/dalemusser/waffle/pantry/mongo"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// CollectionName is the Mongo collection holding rooms.
const CollectionName = "rooms"

// ErrDuplicateRoom is returned by Create when the room id is already taken.
var ErrDuplicateRoom = errors.New("room id already exists")

type Store struct {
	c *mongo.Collection
}

func New(db *mongo.Database) *Store {
	return &Store{c: db.Collection(CollectionName)}
}

// Get loads a room by id. Returns mongo.ErrNoDocuments when absent.
func (s *Store) Get(ctx context.Context, id string) (models.Room, error) {
	var r models.Room
	if err := s.c.FindOne(ctx, bson.M{"_id": id}).Decode(&r); err != nil {
		return models.Room{}, err
	}
	return r, nil
}

// Exists reports whether a room document with this id is present (expired or not).
func (s *Store) Exists(ctx context.Context, id string) (bool, error) {
	err := s.c.FindOne(ctx, bson.M{"_id": id}, options.FindOne().SetProjection(bson.M{"_id": 1})).Err()
	if errors.Is(err, mongo.ErrNoDocuments) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// Create inserts the room. The insert is keyed by _id, so a concurrent creator
// that raced past Exists with the same id gets ErrDuplicateRoom.
func (s *Store) Create(ctx context.Context, r models.Room) error {
	if _, err := s.c.InsertOne(ctx, r); err != nil {
		if wafflemongo.IsDup(err) {
			return ErrDuplicateRoom
		}
		return err
	}
	return nil
}

// Delete removes a single room document.
func (s *Store) Delete(ctx context.Context, id string) error {
	_, err := s.c.DeleteOne(ctx, bson.M{"_id": id})
	return err
}

// ListExpiredIDs returns up to limit ids of rooms whose expires_at is at or before cutoff.
func (s *Store) ListExpiredIDs(ctx context.Context, cutoff time.Time, limit int64) ([]string, error) {
	opts := options.Find().
		SetProjection(bson.M{"_id": 1}).
		SetSort(bson.D{{Key: "expires_at", Value: 1}}).
		SetLimit(limit)
	cur, err := s.c.Find(ctx, bson.M{"expires_at": bson.M{"$lte": cutoff}}, opts)
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	var ids []string
	for cur.Next(ctx) {
		var row struct {
			ID string `bson:"_id"`
		}
		if err := cur.Decode(&row); err != nil {
			return nil, err
		}
		ids = append(ids, row.ID)
	}
	return ids, cur.Err()
}

// DeleteMany removes the given rooms. Returns the number deleted.
func (s *Store) DeleteMany(ctx context.Context, ids []string) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	res, err := s.c.DeleteMany(ctx, bson.M{"_id": bson.M{"$in": ids}})
	if err != nil {
		return 0, err
	}
	return res.DeletedCount, nil
}
