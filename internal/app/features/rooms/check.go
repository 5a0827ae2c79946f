// internal/app/features/rooms/check.go
package rooms

import (
	"context"
	"errors"

	"github.com/dalemusser/aimap/internal/app/system/accesslog"
	"github.com/dalemusser/aimap/internal/app/system/ratelimit"
	"github.com/dalemusser/aimap/internal/app/system/roomid"
	"go.mongodb.org/mongo-driver/mongo"
)

// CheckResult is returned by Check. A missing room reports Exists=false and
// Expired=true so clients cannot tell "never existed" from "expired".
// IsMember is set only when the caller presented a valid token.
type CheckResult struct {
	Exists   bool
	Expired  bool
	IsMember *bool
}

// Check reports whether a room is usable. Identity is optional, but a token
// that is present and fails verification is rejected.
func (s *Service) Check(ctx context.Context, c Caller, roomID string) (CheckResult, error) {
	a := s.begin(accesslog.EndpointCheckRoom, c)

	if !roomid.Valid(roomID) {
		return CheckResult{}, s.reject(a, ErrInvalidRoomID, CodeInvalidRoomIDFormat)
	}
	a.roomID = roomID

	if err := s.admitWindow(ctx, a, s.CheckLimiter, ratelimit.ActionCheckRoom); err != nil {
		return CheckResult{}, err
	}
	if c.Identity.Present() && !c.Identity.OK() {
		return CheckResult{}, s.reject(a, ErrUnauthenticated, CodeInvalidAuthToken)
	}

	room, err := s.Rooms.Get(ctx, roomID)
	if errors.Is(err, mongo.ErrNoDocuments) {
		s.succeed(a, CodeRoomNotFound)
		return CheckResult{Exists: false, Expired: true}, nil
	}
	if err != nil {
		return CheckResult{}, s.fail(a, ErrInternal, CodeInternal, err)
	}

	res := CheckResult{Exists: true, Expired: room.ExpiredAt(a.now)}

	if c.Identity.OK() {
		member, err := s.Members.Exists(ctx, roomID, a.uid)
		if err != nil {
			return CheckResult{}, s.fail(a, ErrInternal, CodeInternal, err)
		}
		res.IsMember = &member
	}

	if res.Expired {
		s.succeed(a, CodeRoomExpired)
	} else {
		s.succeed(a, CodeRoomValid)
	}
	return res, nil
}
