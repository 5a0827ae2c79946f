// internal/app/store/roommembers/memberstore.go
package memberstore

// Terminology: Identities
//   - UID / uid: the opaque subject id resolved from a verified identity token
//   - Nickname: the display string chosen by that identity for one room

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

// CollectionName is the Mongo collection holding room memberships.
const CollectionName = "room_members"

// ErrDuplicateMember is returned by Create when (room_id, uid) already exists.
var ErrDuplicateMember = errors.New("identity is already a member of this room")

type Store struct {
	c *mongo.Collection
}

func New(db *mongo.Database) *Store {
	return &Store{c: db.Collection(CollectionName)}
}

// Get loads the membership for (roomID, uid). Returns mongo.ErrNoDocuments when absent.
func (s *Store) Get(ctx context.Context, roomID, uid string) (models.RoomMember, error) {
	var m models.RoomMember
	if err := s.c.FindOne(ctx, bson.M{"_id": models.MemberKey(roomID, uid)}).Decode(&m); err != nil {
		return models.RoomMember{}, err
	}
	return m, nil
}

// Exists checks if a membership exists for the given room and identity.
func (s *Store) Exists(ctx context.Context, roomID, uid string) (bool, error) {
	err := s.c.FindOne(ctx, bson.M{"_id": models.MemberKey(roomID, uid)},
		options.FindOne().SetProjection(bson.M{"_id": 1})).Err()
	if err == mongo.ErrNoDocuments {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// Create inserts a new membership. The natural key makes a second insert for the
// same (room, identity) fail with ErrDuplicateMember instead of overwriting.
func (s *Store) Create(ctx context.Context, m models.RoomMember) error {
	m.ID = models.MemberKey(m.RoomID, m.UID)
	if m.JoinedAt.IsZero() {
		m.JoinedAt = time.Now().UTC()
	}
	if _, err := s.c.InsertOne(ctx, m); err != nil {
		if wafflemongo.IsDup(err) {
			return ErrDuplicateMember
		}
		return err
	}
	return nil
}

// Delete removes the membership for (roomID, uid). Reports whether a document was removed.
func (s *Store) Delete(ctx context.Context, roomID, uid string) (bool, error) {
	res, err := s.c.DeleteOne(ctx, bson.M{"_id": models.MemberKey(roomID, uid)})
	if err != nil {
		return false, err
	}
	return res.DeletedCount > 0, nil
}

// Touch bumps the membership's revision and reports whether it exists.
// Inside a transaction this makes a concurrent Delete of the same membership
// a write conflict instead of a silent interleaving.
func (s *Store) Touch(ctx context.Context, roomID, uid string) (bool, error) {
	res, err := s.c.UpdateOne(ctx,
		bson.M{"_id": models.MemberKey(roomID, uid)},
		bson.M{"$inc": bson.M{"rev": 1}},
	)
	if err != nil {
		return false, err
	}
	return res.MatchedCount > 0, nil
}

// ProfileUpdate carries optional nickname/message edits. Nil fields are left untouched.
type ProfileUpdate struct {
	Nickname *string
	Message  *string
}

// UpdateProfile applies a nickname/message edit. Returns mongo.ErrNoDocuments when
// the membership does not exist.
func (s *Store) UpdateProfile(ctx context.Context, roomID, uid string, upd ProfileUpdate, now time.Time) (models.RoomMember, error) {
	set := bson.M{"updated_at": now}
	if upd.Nickname != nil {
		set["nickname"] = *upd.Nickname
	}
	if upd.Message != nil {
		set["message"] = *upd.Message
	}

	var m models.RoomMember
	err := s.c.FindOneAndUpdate(ctx,
		bson.M{"_id": models.MemberKey(roomID, uid)},
		bson.M{"$set": set},
		options.FindOneAndUpdate().SetReturnDocument(options.After),
	).Decode(&m)
	if err != nil {
		return models.RoomMember{}, err
	}
	return m, nil
}

// ListByRoom returns all memberships of a room ordered by join time.
func (s *Store) ListByRoom(ctx context.Context, roomID string) ([]models.RoomMember, error) {
	opts := options.Find().SetSort(bson.D{{Key: "joined_at", Value: 1}, {Key: "_id", Value: 1}})
	cur, err := s.c.Find(ctx, bson.M{"room_id": roomID}, opts)
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	var members []models.RoomMember
	if err := cur.All(ctx, &members); err != nil {
		return nil, err
	}
	return members, nil
}

// CountByRoom returns the number of members in a room.
func (s *Store) CountByRoom(ctx context.Context, roomID string) (int64, error) {
	return s.c.CountDocuments(ctx, bson.M{"room_id": roomID})
}

// DeleteByRooms removes all memberships for the given rooms.
// Returns the number of documents deleted.
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
