// internal/app/features/rooms/service.go
package rooms

// Terminology: Identities
//   - UID / uid: the opaque subject id resolved from a verified identity token
//   - Caller: everything known about the requester (identity, client IP, user agent)

import (
	"context"
	"time"

	locationstore "github.com/dalemusser/aimap/internal/app/store/roomlocations"
	memberstore "github.com/dalemusser/aimap/internal/app/store/roommembers"
	roomstore "github.com/dalemusser/aimap/internal/app/store/rooms"
	"github.com/dalemusser/aimap/internal/app/system/accesslog"
	"github.com/dalemusser/aimap/internal/app/system/idtoken"
	"github.com/dalemusser/aimap/internal/app/system/metrics"
	"github.com/dalemusser/aimap/internal/app/system/ratelimit"
	"github.com/dalemusser/aimap/internal/app/system/roomid"
	"github.com/dalemusser/aimap/internal/domain/models"
	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"
)

// DefaultRoomTTL is the lifetime of a room from its creation.
const DefaultRoomTTL = 3 * time.Hour

// Caller describes who is making a request.
type Caller struct {
	Identity  idtoken.Identity
	IP        string
	UserAgent string

	// BodyErr is set when the request body could not be decoded. Operations
	// reject it once their rate limit and identity gates have passed.
	BodyErr error
}

// Notifier is told when a room's membership or shared positions change.
type Notifier interface {
	RoomChanged(roomID string)
}

// Options configure a Service. Nil limiters admit everything.
type Options struct {
	RoomTTL       time.Duration
	RoomURLBase   string
	CreateLimiter *ratelimit.WindowLimiter
	CheckLimiter  *ratelimit.WindowLimiter
	JoinLimiter   *ratelimit.FailureLimiter
	Access        *accesslog.Logger
	Metrics       *metrics.Metrics
	Notify        Notifier
}

// Service implements the room lifecycle: create, join, check and exit.
// It holds no per-request state; all coordination goes through the stores.
type Service struct {
	DB        *mongo.Database
	Rooms     *roomstore.Store
	Members   *memberstore.Store
	Locations *locationstore.Store

	CreateLimiter *ratelimit.WindowLimiter
	CheckLimiter  *ratelimit.WindowLimiter
	JoinLimiter   *ratelimit.FailureLimiter

	Access  *accesslog.Logger
	Metrics *metrics.Metrics
	Notify  Notifier

	RoomTTL     time.Duration
	RoomURLBase string

	// Now and NewID are replaceable for tests.
	Now   func() time.Time
	NewID func() (string, error)

	Log *zap.Logger
}

// NewService wires a Service over db.
func NewService(db *mongo.Database, opts Options, logger *zap.Logger) *Service {
	ttl := opts.RoomTTL
	if ttl <= 0 {
		ttl = DefaultRoomTTL
	}
	return &Service{
		DB:            db,
		Rooms:         roomstore.New(db),
		Members:       memberstore.New(db),
		Locations:     locationstore.New(db),
		CreateLimiter: opts.CreateLimiter,
		CheckLimiter:  opts.CheckLimiter,
		JoinLimiter:   opts.JoinLimiter,
		Access:        opts.Access,
		Metrics:       opts.Metrics,
		Notify:        opts.Notify,
		RoomTTL:       ttl,
		RoomURLBase:   opts.RoomURLBase,
		Now:           func() time.Time { return time.Now().UTC() },
		NewID:         roomid.Generate,
		Log:           logger,
	}
}

// RoomURL is the shareable link for a room.
func (s *Service) RoomURL(roomID string) string {
	return s.RoomURLBase + "/room/" + roomID
}

func (s *Service) notify(roomID string) {
	if s.Notify != nil {
		s.Notify.RoomChanged(roomID)
	}
}

/*─────────────────────────────────────────────────────────────────────────────*
| Outcome recording                                                           |
*─────────────────────────────────────────────────────────────────────────────*/

// attempt accumulates what an operation learned so its single access log
// entry can be written at whichever branch terminates it.
type attempt struct {
	endpoint string
	caller   Caller
	uid      string
	roomID   string
	now      time.Time
	started  time.Time
}

func (s *Service) begin(endpoint string, c Caller) *attempt {
	a := &attempt{
		endpoint: endpoint,
		caller:   c,
		now:      s.Now(),
		started:  time.Now(),
	}
	if c.Identity.OK() {
		a.uid = c.Identity.UID
	}
	return a
}

func (s *Service) succeed(a *attempt, note string) {
	s.record(a, true, "", note)
}

func (s *Service) reject(a *attempt, kind error, code string) error {
	s.record(a, false, code, "")
	return &Error{Kind: kind, Code: code}
}

// fail logs cause with full detail and returns an error carrying only code.
func (s *Service) fail(a *attempt, kind error, code string, cause error) error {
	s.Log.Error("room operation failed",
		zap.String("endpoint", a.endpoint),
		zap.String("code", code),
		zap.String("room_id", a.roomID),
		zap.String("uid", a.uid),
		zap.Error(cause),
	)
	s.record(a, false, code, "")
	return &Error{Kind: kind, Code: code, cause: cause}
}

func (s *Service) record(a *attempt, success bool, code, note string) {
	s.Access.Record(models.AccessLogEntry{
		Endpoint:  a.endpoint,
		IP:        a.caller.IP,
		UID:       a.uid,
		RoomID:    a.roomID,
		Success:   success,
		ErrorCode: code,
		Note:      note,
		UserAgent: a.caller.UserAgent,
		Timestamp: a.now,
	})
	outcome := code
	if success {
		outcome = note
	}
	s.Metrics.ObserveRequest(a.endpoint, outcome, time.Since(a.started))
}

// requireIdentity returns the rejection for a missing or unverifiable token.
func (s *Service) requireIdentity(a *attempt) error {
	id := a.caller.Identity
	switch {
	case !id.Present():
		return s.reject(a, ErrUnauthenticated, CodeMissingAuthToken)
	case !id.OK():
		return s.reject(a, ErrUnauthenticated, CodeInvalidAuthToken)
	}
	return nil
}

func (s *Service) requireBody(a *attempt) error {
	if a.caller.BodyErr != nil {
		return s.reject(a, ErrInvalidInput, CodeInvalidBody)
	}
	return nil
}

func (s *Service) admitWindow(ctx context.Context, a *attempt, l *ratelimit.WindowLimiter, action string) error {
	if l == nil {
		return nil
	}
	ok, err := l.Allow(ctx, ratelimit.Key(action, a.caller.IP), a.now)
	if err != nil {
		return s.fail(a, ErrRateLimited, CodeRateLimitUnavailable, err)
	}
	if !ok {
		return s.reject(a, ErrRateLimited, CodeRateLimitExceeded)
	}
	return nil
}
