// Package roompolicy decides whether an identity may act inside a room.
//
// Rules:
//   - The room must exist
//   - The room must not have reached its expiry
//   - The identity must hold a membership in the room
package roompolicy

import (
	"context"
	"errors"
	"time"

	"github.com/dalemusser/aimap/internal/domain/models"
	"go.mongodb.org/mongo-driver/mongo"
)

var (
	ErrRoomNotFound = errors.New("room not found")
	ErrRoomExpired  = errors.New("room expired")
	ErrNotMember    = errors.New("not a member of this room")
)

// RoomReader is the slice of the room store the policy needs.
type RoomReader interface {
	Get(ctx context.Context, id string) (models.Room, error)
}

// MemberReader is the slice of the membership store the policy needs.
type MemberReader interface {
	Get(ctx context.Context, roomID, uid string) (models.RoomMember, error)
}

// ActiveMember loads the room and the caller's membership and checks both.
// Store failures other than "not found" are returned unchanged.
func ActiveMember(ctx context.Context, rooms RoomReader, members MemberReader, roomID, uid string, now time.Time) (models.Room, models.RoomMember, error) {
	room, err := rooms.Get(ctx, roomID)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return models.Room{}, models.RoomMember{}, ErrRoomNotFound
	}
	if err != nil {
		return models.Room{}, models.RoomMember{}, err
	}
	if room.ClosedAt(now) {
		return room, models.RoomMember{}, ErrRoomExpired
	}

	member, err := members.Get(ctx, roomID, uid)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return room, models.RoomMember{}, ErrNotMember
	}
	if err != nil {
		return room, models.RoomMember{}, err
	}
	return room, member, nil
}
