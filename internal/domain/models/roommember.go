// internal/domain/models/roommember.go
package models

import "time"

// RoomMember is one identity's participation in one room.
// Exactly one document per (room_id, uid); the _id is MemberKey(roomID, uid).
type RoomMember struct {
	ID        string     `bson:"_id" json:"-"`
	RoomID    string     `bson:"room_id" json:"room_id"`
	UID       string     `bson:"uid" json:"uid"`
	Nickname  string     `bson:"nickname" json:"nickname"`
	Message   string     `bson:"message,omitempty" json:"message,omitempty"`
	JoinedAt  time.Time  `bson:"joined_at" json:"joined_at"`
	UpdatedAt *time.Time `bson:"updated_at,omitempty" json:"updated_at,omitempty"`

	// Rev is bumped by writes that depend on the membership still existing.
	Rev int64 `bson:"rev,omitempty" json:"-"`
}

// MemberKey builds the natural key shared by room_members and room_locations.
func MemberKey(roomID, uid string) string {
	return roomID + "/" + uid
}
