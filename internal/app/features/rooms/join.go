// internal/app/features/rooms/join.go
package rooms

import (
	"context"
	"errors"
	"strings"

	memberstore "github.com/dalemusser/aimap/internal/app/store/roommembers"
	"github.com/dalemusser/aimap/internal/app/system/accesslog"
	"github.com/dalemusser/aimap/internal/app/system/inputval"
	"github.com/dalemusser/aimap/internal/app/system/ratelimit"
	"github.com/dalemusser/aimap/internal/app/system/roomid"
	"github.com/dalemusser/aimap/internal/domain/models"
	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"
)

// JoinResult is returned by Join.
type JoinResult struct {
	RoomID        string
	AlreadyMember bool
}

// Join adds the caller to an existing, unexpired room. Joining a room the
// caller already belongs to succeeds without touching the membership.
//
// Joins are guarded by the consecutive-failure limiter: the gate runs first,
// and every client-caused failure after it counts toward the lockout.
func (s *Service) Join(ctx context.Context, c Caller, rawRoomID, nickname string) (JoinResult, error) {
	a := s.begin(accesslog.EndpointJoinRoom, c)
	key := ratelimit.Key(ratelimit.ActionJoinRoom, c.IP)

	if s.JoinLimiter != nil {
		ok, err := s.JoinLimiter.Admit(ctx, key, a.now)
		if err != nil {
			return JoinResult{}, s.fail(a, ErrRateLimited, CodeRateLimitUnavailable, err)
		}
		if !ok {
			return JoinResult{}, s.reject(a, ErrRateLimited, CodeRateLimitExceeded)
		}
	}

	res, err := s.join(ctx, a, rawRoomID, nickname)
	s.recordJoinOutcome(ctx, key, a, err)
	return res, err
}

func (s *Service) join(ctx context.Context, a *attempt, rawRoomID, nickname string) (JoinResult, error) {
	if err := s.requireIdentity(a); err != nil {
		return JoinResult{}, err
	}
	if err := s.requireBody(a); err != nil {
		return JoinResult{}, err
	}

	id := strings.TrimSpace(rawRoomID)
	if !roomid.Valid(id) {
		return JoinResult{}, s.reject(a, ErrInvalidRoomID, CodeInvalidRoomID)
	}
	a.roomID = id

	nick, err := inputval.Nickname(nickname)
	if err != nil {
		return JoinResult{}, s.reject(a, ErrInvalidNickname, nicknameCode(err))
	}

	room, err := s.Rooms.Get(ctx, id)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return JoinResult{}, s.reject(a, ErrNotFound, CodeRoomNotFound)
	}
	if err != nil {
		return JoinResult{}, s.fail(a, ErrInternal, CodeInternal, err)
	}
	if room.ClosedAt(a.now) {
		return JoinResult{}, s.reject(a, ErrGone, CodeRoomExpired)
	}

	exists, err := s.Members.Exists(ctx, id, a.uid)
	if err != nil {
		return JoinResult{}, s.fail(a, ErrInternal, CodeInternal, err)
	}
	if exists {
		s.succeed(a, CodeAlreadyMember)
		return JoinResult{RoomID: id, AlreadyMember: true}, nil
	}

	err = s.Members.Create(ctx, models.RoomMember{
		RoomID:   id,
		UID:      a.uid,
		Nickname: nick,
		JoinedAt: a.now,
	})
	if errors.Is(err, memberstore.ErrDuplicateMember) {
		// A concurrent join by the same identity won the insert.
		s.succeed(a, CodeAlreadyMember)
		return JoinResult{RoomID: id, AlreadyMember: true}, nil
	}
	if err != nil {
		return JoinResult{}, s.fail(a, ErrInternal, CodeInternal, err)
	}

	s.succeed(a, "")
	s.notify(id)
	return JoinResult{RoomID: id}, nil
}

// recordJoinOutcome feeds the failure limiter. Internal errors are not the
// client's fault and leave the streak unchanged. Limiter write failures are
// logged only; the response is already decided.
func (s *Service) recordJoinOutcome(ctx context.Context, key string, a *attempt, err error) {
	if s.JoinLimiter == nil {
		return
	}
	var rerr error
	switch {
	case err == nil:
		rerr = s.JoinLimiter.RecordSuccess(ctx, key, a.now)
	case errors.Is(err, ErrInternal):
		return
	default:
		rerr = s.JoinLimiter.RecordFailure(ctx, key, a.now)
	}
	if rerr != nil {
		s.Log.Warn("failed to update join limiter", zap.String("key", key), zap.Error(rerr))
	}
}
