// internal/domain/models/room.go
package models

import "time"

// Room is a time-boxed meeting space. The _id is the opaque 12-character room id.
// Rooms are written once (together with the creator's membership) and never updated.
type Room struct {
	ID        string    `bson:"_id" json:"id"`
	CreatedAt time.Time `bson:"created_at" json:"created_at"`
	ExpiresAt time.Time `bson:"expires_at" json:"expires_at"`
}

// ExpiredAt reports whether the room is past its expiry at now.
// A room is still alive at the exact instant of expires_at.
func (r Room) ExpiredAt(now time.Time) bool {
	return now.After(r.ExpiresAt)
}

// ClosedAt reports whether the room no longer accepts new members at now.
// Joining closes at expires_at inclusive.
func (r Room) ClosedAt(now time.Time) bool {
	return !r.ExpiresAt.After(now)
}
