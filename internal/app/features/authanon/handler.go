// internal/app/features/authanon/handler.go
package authanon

import (
	"net/http"
	"time"

	"github.com/dalemusser/aimap/internal/app/features/rooms"
	"github.com/dalemusser/aimap/internal/app/system/accesslog"
	"github.com/dalemusser/aimap/internal/app/system/jsonresp"
	"github.com/dalemusser/aimap/internal/app/system/metrics"
	"github.com/dalemusser/aimap/internal/app/system/ratelimit"
	"github.com/dalemusser/aimap/internal/app/system/timeouts"
	"github.com/dalemusser/aimap/internal/domain/models"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Issuer signs identity tokens.
type Issuer interface {
	Issue(uid string, anonymous bool, now time.Time) (string, time.Time, error)
}

// Handler hands out anonymous identities. Each call mints a new subject id;
// there is no account behind it.
type Handler struct {
	Tokens  Issuer
	Limiter *ratelimit.WindowLimiter // nil admits everything
	Access  *accesslog.Logger
	Metrics *metrics.Metrics
	Now     func() time.Time
	NewUID  func() string
	Log     *zap.Logger
}

func NewHandler(tokens Issuer, limiter *ratelimit.WindowLimiter, access *accesslog.Logger, m *metrics.Metrics, logger *zap.Logger) *Handler {
	return &Handler{
		Tokens:  tokens,
		Limiter: limiter,
		Access:  access,
		Metrics: m,
		Now:     func() time.Time { return time.Now().UTC() },
		NewUID:  uuid.NewString,
		Log:     logger,
	}
}

type anonymousResponse struct {
	Token     string `json:"token"`
	UID       string `json:"uid"`
	ExpiresAt string `json:"expiresAt"`
}

// SignIn handles POST /auth/anonymous.
//
//	->  200 { "token": "...", "uid": "...", "expiresAt": "..." }
func (h *Handler) SignIn(w http.ResponseWriter, r *http.Request) {
	started := time.Now()
	now := h.Now()
	ip := ratelimit.ClientIP(r)

	entry := models.AccessLogEntry{
		Endpoint:  accesslog.EndpointAnonymous,
		IP:        ip,
		UserAgent: r.UserAgent(),
		Timestamp: now,
	}
	finish := func(err *rooms.Error) {
		outcome := ""
		if err != nil {
			entry.ErrorCode = err.Code
			outcome = err.Code
		} else {
			entry.Success = true
		}
		h.Access.Record(entry)
		h.Metrics.ObserveRequest(accesslog.EndpointAnonymous, outcome, time.Since(started))
		if err != nil {
			rooms.WriteError(w, err)
		}
	}

	if h.Limiter != nil {
		ctx, cancel := timeouts.WithTimeout(r.Context(), timeouts.Short(), h.Log, "anonymous sign-in rate limit")
		ok, err := h.Limiter.Allow(ctx, ratelimit.Key(ratelimit.ActionAuth, ip), now)
		cancel()
		if err != nil {
			h.Log.Error("rate limit check failed", zap.String("endpoint", accesslog.EndpointAnonymous), zap.Error(err))
			finish(rooms.NewError(rooms.ErrRateLimited, rooms.CodeRateLimitUnavailable))
			return
		}
		if !ok {
			finish(rooms.NewError(rooms.ErrRateLimited, rooms.CodeRateLimitExceeded))
			return
		}
	}

	uid := h.NewUID()
	token, exp, err := h.Tokens.Issue(uid, true, now)
	if err != nil {
		h.Log.Error("failed to issue anonymous token", zap.Error(err))
		finish(rooms.NewError(rooms.ErrInternal, rooms.CodeInternal))
		return
	}

	entry.UID = uid
	finish(nil)
	jsonresp.Write(w, http.StatusOK, anonymousResponse{
		Token:     token,
		UID:       uid,
		ExpiresAt: exp.UTC().Format(time.RFC3339),
	})
}
