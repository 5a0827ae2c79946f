package locations

import (
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/dalemusser/aimap/internal/app/features/rooms"
	"github.com/dalemusser/aimap/internal/app/system/idtoken"
	"github.com/dalemusser/aimap/internal/testutil"
	"go.mongodb.org/mongo-driver/bson"
	"go.uber.org/zap"
)

var t0 = time.Date(2025, 6, 1, 9, 0, 0, 0, time.UTC)

type recordingNotifier struct{ rooms []string }

func (n *recordingNotifier) RoomChanged(roomID string) { n.rooms = append(n.rooms, roomID) }

func member(uid string) rooms.Caller {
	return rooms.Caller{Identity: idtoken.Identity{UID: uid}, IP: "192.0.2.10"}
}

func ptr[T any](v T) *T { return &v }

func newTestService(t *testing.T) (*Service, *testutil.Fixtures, *recordingNotifier) {
	t.Helper()
	db := testutil.SetupTestDB(t)
	n := &recordingNotifier{}
	svc := NewService(db, n, nil, zap.NewNop())
	svc.Now = func() time.Time { return t0.Add(30 * time.Minute) }
	return svc, testutil.NewFixtures(t, db), n
}

func wantCode(t *testing.T, err error, kind error, code string) {
	t.Helper()
	if !errors.Is(err, kind) {
		t.Fatalf("err: got %v, want kind %v", err, kind)
	}
	if got, _ := rooms.Message(err); got != code {
		t.Fatalf("code: got %s, want %s", got, code)
	}
}

func TestShareLocation_UpsertsAndNotifies(t *testing.T) {
	svc, fx, n := newTestService(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()
	fx.CreateRoom(ctx, "roomloc00001", t0, 3*time.Hour)
	fx.AddMember(ctx, "roomloc00001", "alice", "Alice", t0)

	loc, err := svc.ShareLocation(ctx, member("alice"), "roomloc00001", ptr(35.6812), ptr(139.7671))
	if err != nil {
		t.Fatalf("ShareLocation: %v", err)
	}
	if loc.Lat != 35.6812 || !loc.UpdatedAt.Equal(t0.Add(30*time.Minute)) {
		t.Errorf("location: got %+v", loc)
	}
	if _, err := svc.ShareLocation(ctx, member("alice"), "roomloc00001", ptr(35.0), ptr(139.0)); err != nil {
		t.Fatalf("second ShareLocation: %v", err)
	}

	got, err := svc.Locations.Get(ctx, "roomloc00001", "alice")
	if err != nil {
		t.Fatalf("Locations.Get: %v", err)
	}
	if got.Lat != 35.0 || got.Lng != 139.0 {
		t.Errorf("stored location: got %+v", got)
	}
	if len(n.rooms) != 2 || n.rooms[0] != "roomloc00001" {
		t.Errorf("notifications: got %v", n.rooms)
	}
}

func TestShareLocation_Rejections(t *testing.T) {
	svc, fx, n := newTestService(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()
	fx.CreateRoom(ctx, "roomloc00002", t0, 3*time.Hour)
	fx.CreateRoom(ctx, "roomloc00003", t0.Add(-4*time.Hour), 3*time.Hour)
	fx.AddMember(ctx, "roomloc00002", "alice", "Alice", t0)
	fx.AddMember(ctx, "roomloc00003", "alice", "Alice", t0.Add(-4*time.Hour))

	tests := []struct {
		name   string
		caller rooms.Caller
		roomID string
		lat    *float64
		lng    *float64
		kind   error
		code   string
	}{
		{"no token", rooms.Caller{Identity: idtoken.Identity{Err: idtoken.ErrMissing}}, "roomloc00002", ptr(1.0), ptr(1.0), rooms.ErrUnauthenticated, rooms.CodeMissingAuthToken},
		{"bad room id", member("alice"), "Bad", ptr(1.0), ptr(1.0), rooms.ErrInvalidRoomID, rooms.CodeInvalidRoomIDFormat},
		{"missing room", member("alice"), "nosuchroom00", ptr(1.0), ptr(1.0), rooms.ErrNotFound, rooms.CodeRoomNotFound},
		{"expired room", member("alice"), "roomloc00003", ptr(1.0), ptr(1.0), rooms.ErrGone, rooms.CodeRoomExpired},
		{"not a member", member("bob"), "roomloc00002", ptr(1.0), ptr(1.0), rooms.ErrForbidden, rooms.CodeNotMember},
		{"lat out of range", member("alice"), "roomloc00002", ptr(90.5), ptr(1.0), rooms.ErrInvalidInput, rooms.CodeInvalidCoordinates},
		{"lng out of range", member("alice"), "roomloc00002", ptr(1.0), ptr(-180.1), rooms.ErrInvalidInput, rooms.CodeInvalidCoordinates},
		{"missing lng", member("alice"), "roomloc00002", ptr(1.0), nil, rooms.ErrInvalidInput, rooms.CodeInvalidCoordinates},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.ShareLocation(ctx, tt.caller, tt.roomID, tt.lat, tt.lng)
			wantCode(t, err, tt.kind, tt.code)
		})
	}
	if len(n.rooms) != 0 {
		t.Errorf("rejected calls notified: %v", n.rooms)
	}
}

func TestShareLocation_RacingExitLeavesNoOrphan(t *testing.T) {
	svc, fx, _ := newTestService(t)
	svc.Notify = nil
	roomSvc := rooms.NewService(svc.DB, rooms.Options{}, zap.NewNop())
	roomSvc.Now = svc.Now
	ctx, cancel := testutil.TestContext()
	defer cancel()

	const roomID = "roomrace0001"
	fx.CreateRoom(ctx, roomID, t0, 3*time.Hour)

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		uid := fmt.Sprintf("racer%02d", i)
		fx.AddMember(ctx, roomID, uid, "Racer", t0)

		wg.Add(2)
		go func() {
			defer wg.Done()
			for j := 0; j < 5; j++ {
				_, err := svc.ShareLocation(ctx, member(uid), roomID, ptr(35.0+float64(j)/10), ptr(139.0))
				if err != nil && !errors.Is(err, rooms.ErrForbidden) {
					t.Errorf("ShareLocation %s: %v", uid, err)
				}
			}
		}()
		go func() {
			defer wg.Done()
			if err := roomSvc.Exit(ctx, member(uid), roomID); err != nil {
				t.Errorf("Exit %s: %v", uid, err)
			}
		}()
	}
	wg.Wait()

	if n := fx.CountDocs(ctx, "room_members", bson.M{"room_id": roomID}); n != 0 {
		t.Errorf("members after exit: got %d, want 0", n)
	}
	if n := fx.CountDocs(ctx, "room_locations", bson.M{"room_id": roomID}); n != 0 {
		t.Errorf("positions left without a membership: %d", n)
	}
}

func TestStopSharing_KeepsMembership(t *testing.T) {
	svc, fx, _ := newTestService(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()
	fx.CreateRoom(ctx, "roomloc00004", t0, 3*time.Hour)
	fx.AddMember(ctx, "roomloc00004", "alice", "Alice", t0)
	fx.ShareLocation(ctx, "roomloc00004", "alice", 1, 2, t0)

	for i := 0; i < 2; i++ {
		if err := svc.StopSharing(ctx, member("alice"), "roomloc00004"); err != nil {
			t.Fatalf("StopSharing #%d: %v", i+1, err)
		}
	}
	if _, err := svc.Locations.Get(ctx, "roomloc00004", "alice"); err == nil {
		t.Error("location still present")
	}
	if ok, _ := svc.Members.Exists(ctx, "roomloc00004", "alice"); !ok {
		t.Error("membership removed by StopSharing")
	}
}

func TestSnapshot_ListsMembersWithLocations(t *testing.T) {
	svc, fx, _ := newTestService(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()
	room := fx.CreateRoom(ctx, "roomloc00005", t0, 3*time.Hour)
	fx.AddMember(ctx, "roomloc00005", "alice", "Alice", t0)
	fx.AddMember(ctx, "roomloc00005", "bob", "Bob", t0.Add(time.Minute))
	fx.ShareLocation(ctx, "roomloc00005", "bob", 10, 20, t0.Add(2*time.Minute))

	snap, err := svc.Snapshot(ctx, member("alice"), "roomloc00005")
	if err != nil {
		t.Fatalf("Snapshot: %v", err)
	}
	if snap.RoomID != "roomloc00005" || !snap.ExpiresAt.Equal(room.ExpiresAt) {
		t.Errorf("snapshot header: got %s %v", snap.RoomID, snap.ExpiresAt)
	}
	if len(snap.Members) != 2 {
		t.Fatalf("members: got %d, want 2", len(snap.Members))
	}
	alice, bob := snap.Members[0], snap.Members[1]
	if alice.UID != "alice" || !alice.Self || alice.Location != nil {
		t.Errorf("alice: got %+v", alice)
	}
	if bob.UID != "bob" || bob.Self || bob.Location == nil || bob.Location.Lat != 10 {
		t.Errorf("bob: got %+v", bob)
	}

	_, err = svc.Snapshot(ctx, member("carol"), "roomloc00005")
	wantCode(t, err, rooms.ErrForbidden, rooms.CodeNotMember)
}

func TestUpdateProfile(t *testing.T) {
	svc, fx, n := newTestService(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()
	fx.CreateRoom(ctx, "roomloc00006", t0, 3*time.Hour)
	fx.AddMember(ctx, "roomloc00006", "alice", "Alice", t0)

	view, err := svc.UpdateProfile(ctx, member("alice"), "roomloc00006",
		ProfileInput{Nickname: ptr("  <b>Ally</b> "), Message: ptr("at the gate")})
	if err != nil {
		t.Fatalf("UpdateProfile: %v", err)
	}
	if view.Nickname != "Ally" || view.Message != "at the gate" || !view.Self {
		t.Errorf("view: got %+v", view)
	}
	if len(n.rooms) != 1 {
		t.Errorf("notifications: got %v", n.rooms)
	}

	view, err = svc.UpdateProfile(ctx, member("alice"), "roomloc00006", ProfileInput{Message: ptr("")})
	if err != nil {
		t.Fatalf("clear message: %v", err)
	}
	if view.Nickname != "Ally" || view.Message != "" {
		t.Errorf("after clearing message: got %+v", view)
	}

	tests := []struct {
		name string
		in   ProfileInput
		kind error
		code string
	}{
		{"nothing", ProfileInput{}, rooms.ErrInvalidInput, rooms.CodeEmptyUpdate},
		{"blank nickname", ProfileInput{Nickname: ptr("   ")}, rooms.ErrInvalidNickname, rooms.CodeInvalidNickname},
		{"long nickname", ProfileInput{Nickname: ptr(strings.Repeat("a", 51))}, rooms.ErrInvalidNickname, rooms.CodeNicknameTooLong},
		{"long message", ProfileInput{Message: ptr(strings.Repeat("m", 101))}, rooms.ErrInvalidInput, rooms.CodeMessageTooLong},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.UpdateProfile(ctx, member("alice"), "roomloc00006", tt.in)
			wantCode(t, err, tt.kind, tt.code)
		})
	}
}
