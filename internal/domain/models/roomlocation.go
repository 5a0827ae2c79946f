// internal/domain/models/roomlocation.go
package models

import "time"

// RoomLocation is the last known position of one identity within one room.
// Its existence means the identity is actively sharing; it never outlives the
// matching RoomMember.
type RoomLocation struct {
	ID        string    `bson:"_id" json:"-"`
	RoomID    string    `bson:"room_id" json:"room_id"`
	UID       string    `bson:"uid" json:"uid"`
	Lat       float64   `bson:"lat" json:"lat"`
	Lng       float64   `bson:"lng" json:"lng"`
	UpdatedAt time.Time `bson:"updated_at" json:"updated_at"`
}
