// internal/app/features/locations/service.go
package locations

import (
	"context"
	"errors"
	"time"

	"github.com/dalemusser/aimap/internal/app/features/rooms"
	"github.com/dalemusser/aimap/internal/app/policy/roompolicy"
	locationstore "github.com/dalemusser/aimap/internal/app/store/roomlocations"
	memberstore "github.com/dalemusser/aimap/internal/app/store/roommembers"
	roomstore "github.com/dalemusser/aimap/internal/app/store/rooms"
	"github.com/dalemusser/aimap/internal/app/system/inputval"
	"github.com/dalemusser/aimap/internal/app/system/metrics"
	"github.com/dalemusser/aimap/internal/app/system/roomid"
	"github.com/dalemusser/aimap/internal/app/system/txn"
	"github.com/dalemusser/aimap/internal/domain/models"
	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"
)

// Endpoint names used for request metrics.
const (
	endpointShare    = "shareLocation"
	endpointStop     = "stopSharing"
	endpointSnapshot = "roomSnapshot"
	endpointProfile  = "updateProfile"
)

// Service implements what a member can do inside a live room: share or
// withdraw a position, read the room, and edit their profile.
type Service struct {
	DB        *mongo.Database
	Rooms     *roomstore.Store
	Members   *memberstore.Store
	Locations *locationstore.Store

	Notify  rooms.Notifier
	Metrics *metrics.Metrics

	Now func() time.Time
	Log *zap.Logger
}

// NewService wires a Service over db.
func NewService(db *mongo.Database, notify rooms.Notifier, m *metrics.Metrics, logger *zap.Logger) *Service {
	return &Service{
		DB:        db,
		Rooms:     roomstore.New(db),
		Members:   memberstore.New(db),
		Locations: locationstore.New(db),
		Notify:    notify,
		Metrics:   m,
		Now:       func() time.Time { return time.Now().UTC() },
		Log:       logger,
	}
}

// LocationView is a shared position as clients see it.
type LocationView struct {
	Lat       float64   `json:"lat"`
	Lng       float64   `json:"lng"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// MemberView is one member as clients see it.
type MemberView struct {
	UID      string        `json:"uid"`
	Nickname string        `json:"nickname"`
	Message  string        `json:"message"`
	JoinedAt time.Time     `json:"joinedAt"`
	Self     bool          `json:"self,omitempty"`
	Location *LocationView `json:"location,omitempty"`
}

// Snapshot is the full visible state of a room.
type Snapshot struct {
	RoomID    string       `json:"roomId"`
	ExpiresAt time.Time    `json:"expiresAt"`
	Members   []MemberView `json:"members"`
}

// ProfileInput carries an optional nickname and message. Nil leaves a field as is.
type ProfileInput struct {
	Nickname *string
	Message  *string
}

// Authorize checks that the caller is a member of a live room and returns it.
func (s *Service) Authorize(ctx context.Context, c rooms.Caller, roomID string) (models.Room, error) {
	room, _, err := s.activeMember(ctx, c, roomID)
	return room, err
}

// ShareLocation stores the caller's current position in the room.
func (s *Service) ShareLocation(ctx context.Context, c rooms.Caller, roomID string, lat, lng *float64) (loc models.RoomLocation, err error) {
	defer s.observe(endpointShare, time.Now(), &err)

	if _, _, err = s.activeMember(ctx, c, roomID); err != nil {
		return models.RoomLocation{}, err
	}
	if lat == nil || lng == nil || inputval.Coordinates(*lat, *lng) != nil {
		return models.RoomLocation{}, rooms.NewError(rooms.ErrInvalidInput, rooms.CodeInvalidCoordinates)
	}

	loc, err = s.storeLocation(ctx, roomID, c.Identity.UID, *lat, *lng)
	if errors.Is(err, errMemberGone) {
		return models.RoomLocation{}, rooms.NewError(rooms.ErrForbidden, rooms.CodeNotMember)
	}
	if err != nil {
		return models.RoomLocation{}, s.internal("store location", roomID, err)
	}
	s.notify(roomID)
	return loc, nil
}

var errMemberGone = errors.New("membership removed")

// storeLocation upserts the position only while the membership exists, so a
// concurrent exit can never leave a position behind. In a transaction the
// membership is touched first and an exit racing it conflicts. Sequentially,
// the membership is read again after the write and the position is removed
// if the member left in between; exit deletes positions again after the
// membership for the same reason.
func (s *Service) storeLocation(ctx context.Context, roomID, uid string, lat, lng float64) (models.RoomLocation, error) {
	var loc models.RoomLocation
	err := txn.Run(ctx, s.DB, s.Log, func(ctx context.Context) error {
		ok, err := s.Members.Touch(ctx, roomID, uid)
		if err != nil {
			return err
		}
		if !ok {
			return errMemberGone
		}
		if loc, err = s.Locations.Set(ctx, roomID, uid, lat, lng, s.Now()); err != nil {
			return err
		}
		if txn.Active(ctx) {
			return nil
		}

		still, err := s.Members.Exists(ctx, roomID, uid)
		if err != nil {
			return err
		}
		if !still {
			if err := s.Locations.Delete(ctx, roomID, uid); err != nil {
				return err
			}
			return errMemberGone
		}
		return nil
	})
	return loc, err
}

// StopSharing removes the caller's position. The membership stays.
func (s *Service) StopSharing(ctx context.Context, c rooms.Caller, roomID string) (err error) {
	defer s.observe(endpointStop, time.Now(), &err)

	if _, _, err = s.activeMember(ctx, c, roomID); err != nil {
		return err
	}
	if err = s.Locations.Delete(ctx, roomID, c.Identity.UID); err != nil {
		return s.internal("delete location", roomID, err)
	}
	s.notify(roomID)
	return nil
}

// Snapshot returns every member of the room with their shared position.
func (s *Service) Snapshot(ctx context.Context, c rooms.Caller, roomID string) (snap Snapshot, err error) {
	defer s.observe(endpointSnapshot, time.Now(), &err)

	room, _, err := s.activeMember(ctx, c, roomID)
	if err != nil {
		return Snapshot{}, err
	}

	members, err := s.Members.ListByRoom(ctx, roomID)
	if err != nil {
		return Snapshot{}, s.internal("list members", roomID, err)
	}
	locs, err := s.Locations.ListByRoom(ctx, roomID)
	if err != nil {
		return Snapshot{}, s.internal("list locations", roomID, err)
	}

	byUID := make(map[string]models.RoomLocation, len(locs))
	for _, l := range locs {
		byUID[l.UID] = l
	}

	snap = Snapshot{RoomID: room.ID, ExpiresAt: room.ExpiresAt, Members: make([]MemberView, 0, len(members))}
	for _, m := range members {
		v := memberView(m, c.Identity.UID)
		if l, ok := byUID[m.UID]; ok {
			v.Location = &LocationView{Lat: l.Lat, Lng: l.Lng, UpdatedAt: l.UpdatedAt}
		}
		snap.Members = append(snap.Members, v)
	}
	return snap, nil
}

// UpdateProfile edits the caller's nickname and/or message in the room.
func (s *Service) UpdateProfile(ctx context.Context, c rooms.Caller, roomID string, in ProfileInput) (view MemberView, err error) {
	defer s.observe(endpointProfile, time.Now(), &err)

	if _, _, err = s.activeMember(ctx, c, roomID); err != nil {
		return MemberView{}, err
	}
	if in.Nickname == nil && in.Message == nil {
		return MemberView{}, rooms.NewError(rooms.ErrInvalidInput, rooms.CodeEmptyUpdate)
	}

	var upd memberstore.ProfileUpdate
	if in.Nickname != nil {
		nick, verr := inputval.Nickname(*in.Nickname)
		if errors.Is(verr, inputval.ErrTooLong) {
			return MemberView{}, rooms.NewError(rooms.ErrInvalidNickname, rooms.CodeNicknameTooLong)
		}
		if verr != nil {
			return MemberView{}, rooms.NewError(rooms.ErrInvalidNickname, rooms.CodeInvalidNickname)
		}
		upd.Nickname = &nick
	}
	if in.Message != nil {
		msg, verr := inputval.Message(*in.Message)
		if verr != nil {
			return MemberView{}, rooms.NewError(rooms.ErrInvalidInput, rooms.CodeMessageTooLong)
		}
		upd.Message = &msg
	}

	m, err := s.Members.UpdateProfile(ctx, roomID, c.Identity.UID, upd, s.Now())
	if errors.Is(err, mongo.ErrNoDocuments) {
		// The member exited between the policy check and the update.
		return MemberView{}, rooms.NewError(rooms.ErrForbidden, rooms.CodeNotMember)
	}
	if err != nil {
		return MemberView{}, s.internal("update profile", roomID, err)
	}
	s.notify(roomID)
	return memberView(m, c.Identity.UID), nil
}

// activeMember runs the shared gate: a verified identity, a well-formed id,
// a live room and a membership in it.
func (s *Service) activeMember(ctx context.Context, c rooms.Caller, roomID string) (models.Room, models.RoomMember, error) {
	switch {
	case !c.Identity.Present():
		return models.Room{}, models.RoomMember{}, rooms.NewError(rooms.ErrUnauthenticated, rooms.CodeMissingAuthToken)
	case !c.Identity.OK():
		return models.Room{}, models.RoomMember{}, rooms.NewError(rooms.ErrUnauthenticated, rooms.CodeInvalidAuthToken)
	}
	if !roomid.Valid(roomID) {
		return models.Room{}, models.RoomMember{}, rooms.NewError(rooms.ErrInvalidRoomID, rooms.CodeInvalidRoomIDFormat)
	}

	room, member, err := roompolicy.ActiveMember(ctx, s.Rooms, s.Members, roomID, c.Identity.UID, s.Now())
	switch {
	case errors.Is(err, roompolicy.ErrRoomNotFound):
		return room, member, rooms.NewError(rooms.ErrNotFound, rooms.CodeRoomNotFound)
	case errors.Is(err, roompolicy.ErrRoomExpired):
		return room, member, rooms.NewError(rooms.ErrGone, rooms.CodeRoomExpired)
	case errors.Is(err, roompolicy.ErrNotMember):
		return room, member, rooms.NewError(rooms.ErrForbidden, rooms.CodeNotMember)
	case err != nil:
		return room, member, s.internal("load membership", roomID, err)
	}
	return room, member, nil
}

func (s *Service) internal(what, roomID string, err error) error {
	s.Log.Error("room member operation failed",
		zap.String("op", what),
		zap.String("room_id", roomID),
		zap.Error(err),
	)
	return rooms.NewError(rooms.ErrInternal, rooms.CodeInternal)
}

func (s *Service) observe(endpoint string, started time.Time, err *error) {
	outcome := ""
	if *err != nil {
		outcome, _ = rooms.Message(*err)
	}
	s.Metrics.ObserveRequest(endpoint, outcome, time.Since(started))
}

func (s *Service) notify(roomID string) {
	if s.Notify != nil {
		s.Notify.RoomChanged(roomID)
	}
}

func memberView(m models.RoomMember, self string) MemberView {
	return MemberView{
		UID:      m.UID,
		Nickname: m.Nickname,
		Message:  m.Message,
		JoinedAt: m.JoinedAt,
		Self:     m.UID == self,
	}
}
