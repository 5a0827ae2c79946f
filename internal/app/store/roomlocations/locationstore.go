// internal/app/store/roomlocations/locationstore.go
package locationstore

import (
	"context"
	"time"

	"github.com/dalemusser/aimap/internal/domain/models"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// CollectionName is the Mongo collection holding last-known positions.
const CollectionName = "room_locations"

type Store struct {
	c *mongo.Collection
}

func New(db *mongo.Database) *Store {
	return &Store{c: db.Collection(CollectionName)}
}

// Set overwrites the caller's position. There is at most one document per (room_id, uid).
func (s *Store) Set(ctx context.Context, roomID, uid string, lat, lng float64, now time.Time) (models.RoomLocation, error) {
	loc := models.RoomLocation{
		ID:        models.MemberKey(roomID, uid),
		RoomID:    roomID,
		UID:       uid,
		Lat:       lat,
		Lng:       lng,
		UpdatedAt: now,
	}
	_, err := s.c.ReplaceOne(ctx, bson.M{"_id": loc.ID}, loc, options.Replace().SetUpsert(true))
	if err != nil {
		return models.RoomLocation{}, err
	}
	return loc, nil
}

// Get loads the position for (roomID, uid). Returns mongo.ErrNoDocuments when absent.
func (s *Store) Get(ctx context.Context, roomID, uid string) (models.RoomLocation, error) {
	var loc models.RoomLocation
	if err := s.c.FindOne(ctx, bson.M{"_id": models.MemberKey(roomID, uid)}).Decode(&loc); err != nil {
		return models.RoomLocation{}, err
	}
	return loc, nil
}

// Delete removes the position for (roomID, uid). Deleting a missing position is not an error.
func (s *Store) Delete(ctx context.Context, roomID, uid string) error {
	_, err := s.c.DeleteOne(ctx, bson.M{"_id": models.MemberKey(roomID, uid)})
	return err
}

// ListByRoom returns all positions shared in a room.
func (s *Store) ListByRoom(ctx context.Context, roomID string) ([]models.RoomLocation, error) {
	cur, err := s.c.Find(ctx, bson.M{"room_id": roomID})
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	var locs []models.RoomLocation
	if err := cur.All(ctx, &locs); err != nil {
		return nil, err
	}
	return locs, nil
}

// DeleteByRooms removes all positions for the given rooms.
func (s *Store) DeleteByRooms(ctx context.Context, roomIDs []string) (int64, error) {
	if len(roomIDs) == 0 {
		return 0, nil
	}
	res, err := s.c.DeleteMany(ctx, bson.M{"room_id": bson.M{"$in": roomIDs}})
	if err != nil {
		return 0, err
	}
	return res.DeletedCount, nil
}
