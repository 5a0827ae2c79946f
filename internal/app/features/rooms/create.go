// internal/app/features/rooms/create.go
package rooms

import (
	"context"
	"errors"
	"time"

	memberstore "github.com/dalemusser/aimap/internal/app/store/roommembers"
	roomstore "github.com/dalemusser/aimap/internal/app/store/rooms"
	"github.com/dalemusser/aimap/internal/app/system/accesslog"
	"github.com/dalemusser/aimap/internal/app/system/inputval"
	"github.com/dalemusser/aimap/internal/app/system/ratelimit"
	"github.com/dalemusser/aimap/internal/app/system/roomid"
	"github.com/dalemusser/aimap/internal/app/system/txn"
	"github.com/dalemusser/aimap/internal/domain/models"
	"go.uber.org/zap"
)

// CreateResult is returned by Create.
type CreateResult struct {
	RoomID    string
	URL       string
	ExpiresAt time.Time
}

// Create opens a new room with the caller as its first member.
//
// Order: rate limit, identity, nickname, id allocation, then one transaction
// writing the membership and the room.
func (s *Service) Create(ctx context.Context, c Caller, nickname string) (CreateResult, error) {
	a := s.begin(accesslog.EndpointCreateRoom, c)

	if err := s.admitWindow(ctx, a, s.CreateLimiter, ratelimit.ActionCreateRoom); err != nil {
		return CreateResult{}, err
	}
	if err := s.requireIdentity(a); err != nil {
		return CreateResult{}, err
	}
	if err := s.requireBody(a); err != nil {
		return CreateResult{}, err
	}

	nick, err := inputval.Nickname(nickname)
	if err != nil {
		return CreateResult{}, s.reject(a, ErrInvalidNickname, nicknameCode(err))
	}

	room := models.Room{CreatedAt: a.now, ExpiresAt: a.now.Add(s.RoomTTL)}

	for i := 0; i < roomid.MaxAttempts; i++ {
		id, err := s.NewID()
		if err != nil {
			return CreateResult{}, s.fail(a, ErrInternal, CodeInternal, err)
		}
		exists, err := s.Rooms.Exists(ctx, id)
		if err != nil {
			return CreateResult{}, s.fail(a, ErrInternal, CodeInternal, err)
		}
		if exists {
			s.Log.Info("room id collision, retrying", zap.Int("attempt", i+1))
			continue
		}

		room.ID = id
		a.roomID = id
		err = s.insertRoom(ctx, room, models.RoomMember{
			RoomID:   id,
			UID:      a.uid,
			Nickname: nick,
			JoinedAt: a.now,
		})
		if errors.Is(err, roomstore.ErrDuplicateRoom) || errors.Is(err, memberstore.ErrDuplicateMember) {
			// Another creator took the id between Exists and insert, or the
			// id still has leftovers from a swept room.
			a.roomID = ""
			continue
		}
		if err != nil {
			return CreateResult{}, s.fail(a, ErrInternal, CodeInternal, err)
		}

		s.succeed(a, "")
		return CreateResult{RoomID: id, URL: s.RoomURL(id), ExpiresAt: room.ExpiresAt}, nil
	}

	return CreateResult{}, s.fail(a, ErrIdentifierExhaustion, CodeRoomIDGenerationFail,
		errors.New("no free room id after max attempts"))
}

// insertRoom writes the creator membership and the room atomically. Without
// transaction support the membership goes first and is removed again if the
// room insert fails, so a room is never visible without its creator. Inside a
// transaction the abort discards the membership.
func (s *Service) insertRoom(ctx context.Context, room models.Room, creator models.RoomMember) error {
	return txn.Run(ctx, s.DB, s.Log, func(ctx context.Context) error {
		if err := s.Members.Create(ctx, creator); err != nil {
			return err
		}
		if err := s.Rooms.Create(ctx, room); err != nil {
			if txn.Active(ctx) {
				return err
			}
			if _, derr := s.Members.Delete(ctx, creator.RoomID, creator.UID); derr != nil {
				s.Log.Warn("failed to remove creator membership after room insert failure",
					zap.String("room_id", room.ID), zap.Error(derr))
			}
			return err
		}
		return nil
	})
}

func nicknameCode(err error) string {
	if errors.Is(err, inputval.ErrTooLong) {
		return CodeNicknameTooLong
	}
	return CodeInvalidNickname
}
