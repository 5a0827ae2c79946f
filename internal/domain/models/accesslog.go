// internal/domain/models/accesslog.go
package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// AccessLogEntry is one audited request outcome. Entries are append-only and are
// never read back by the request path.
type AccessLogEntry struct {
	ID        primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	Endpoint  string             `bson:"endpoint" json:"endpoint"`
	IP        string             `bson:"ip" json:"ip"`
	UID       string             `bson:"uid,omitempty" json:"uid,omitempty"`
	RoomID    string             `bson:"room_id,omitempty" json:"room_id,omitempty"`
	Success   bool               `bson:"success" json:"success"`
	ErrorCode string             `bson:"error_code,omitempty" json:"error_code,omitempty"`
	Note      string             `bson:"note,omitempty" json:"note,omitempty"` // informational code on success (ALREADY_MEMBER, ROOM_EXPIRED)
	UserAgent string             `bson:"user_agent,omitempty" json:"user_agent,omitempty"`
	Timestamp time.Time          `bson:"timestamp" json:"timestamp"`
	ExpiresAt time.Time          `bson:"expires_at" json:"expires_at"`
}
