// internal/app/features/rooms/exit.go
package rooms

import (
	"context"
	"errors"
	"strings"

	"github.com/dalemusser/aimap/internal/app/system/accesslog"
	"github.com/dalemusser/aimap/internal/app/system/roomid"
	"github.com/dalemusser/aimap/internal/app/system/txn"
	"go.mongodb.org/mongo-driver/mongo"
)

// ExitMessage is returned to the client after a successful exit.
const ExitMessage = "Successfully exited from room"

// Exit removes the caller's membership and shared position from a room.
// It is not rate limited. Expired rooms can still be exited.
func (s *Service) Exit(ctx context.Context, c Caller, rawRoomID string) error {
	a := s.begin(accesslog.EndpointExitRoom, c)

	if err := s.requireIdentity(a); err != nil {
		return err
	}
	if err := s.requireBody(a); err != nil {
		return err
	}

	id := strings.TrimSpace(rawRoomID)
	if !roomid.Valid(id) {
		return s.reject(a, ErrInvalidRoomID, CodeInvalidRoomID)
	}
	a.roomID = id

	if _, err := s.Rooms.Get(ctx, id); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return s.reject(a, ErrNotFound, CodeRoomNotFound)
		}
		return s.fail(a, ErrInternal, CodeInternal, err)
	}

	member, err := s.Members.Exists(ctx, id, a.uid)
	if err != nil {
		return s.fail(a, ErrInternal, CodeInternal, err)
	}
	if !member {
		return s.reject(a, ErrForbidden, CodeNotMember)
	}

	// Location goes first so that, without transactions, a failure between
	// the two deletes leaves a member without a position and never the reverse.
	// Sequentially, a share that passed its membership check may still land
	// before the membership is gone, so the position is deleted once more.
	err = txn.Run(ctx, s.DB, s.Log, func(ctx context.Context) error {
		if err := s.Locations.Delete(ctx, id, a.uid); err != nil {
			return err
		}
		if _, err := s.Members.Delete(ctx, id, a.uid); err != nil {
			return err
		}
		if txn.Active(ctx) {
			return nil
		}
		return s.Locations.Delete(ctx, id, a.uid)
	})
	if err != nil {
		return s.fail(a, ErrInternal, CodeInternal, err)
	}

	s.succeed(a, "")
	s.notify(id)
	return nil
}
