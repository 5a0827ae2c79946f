package authanon

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/dalemusser/aimap/internal/app/system/accesslog"
	"github.com/dalemusser/aimap/internal/app/system/idtoken"
	"github.com/dalemusser/aimap/internal/app/system/ratelimit"
	"github.com/dalemusser/aimap/internal/domain/models"
	"go.uber.org/zap"
)

var t0 = time.Date(2025, 6, 1, 9, 0, 0, 0, time.UTC)

type entrySink struct {
	mu      sync.Mutex
	entries []models.AccessLogEntry
}

func (s *entrySink) Insert(_ context.Context, e models.AccessLogEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries = append(s.entries, e)
	return nil
}

type brokenIssuer struct{}

func (brokenIssuer) Issue(string, bool, time.Time) (string, time.Time, error) {
	return "", time.Time{}, errors.New("signing key unavailable")
}

func newTestHandler(t *testing.T, tokens Issuer, limit int) (*Handler, *accesslog.Logger, *entrySink) {
	t.Helper()
	sink := &entrySink{}
	access := accesslog.New(sink, zap.NewNop(), nil, accesslog.Config{})
	access.Start()
	t.Cleanup(func() { _ = access.Stop(context.Background()) })

	limiter := ratelimit.NewWindow(ratelimit.NewMemoryStore(0), limit, time.Minute)
	h := NewHandler(tokens, limiter, access, nil, zap.NewNop())
	h.Now = func() time.Time { return t0 }
	return h, access, sink
}

func signIn(h *Handler, ip string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/anonymous", nil)
	req.RemoteAddr = ip + ":5555"
	rec := httptest.NewRecorder()
	Routes(h).ServeHTTP(rec, req)
	return rec
}

func TestSignIn_IssuesVerifiableToken(t *testing.T) {
	tokens := idtoken.NewHMAC("test-secret", "aimap-test", time.Hour)
	h, access, sink := newTestHandler(t, tokens, 10)
	h.Now = time.Now

	rec := signIn(h, "10.0.0.1")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200: %s", rec.Code, rec.Body.String())
	}
	var body anonymousResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body.UID == "" || body.Token == "" || body.ExpiresAt == "" {
		t.Fatalf("incomplete response: %+v", body)
	}

	uid, err := tokens.Verify(context.Background(), body.Token)
	if err != nil {
		t.Fatalf("Verify: %v", err)
	}
	if uid != body.UID {
		t.Errorf("token subject = %q, want %q", uid, body.UID)
	}

	// Each call is a fresh identity.
	rec = signIn(h, "10.0.0.1")
	var second anonymousResponse
	_ = json.Unmarshal(rec.Body.Bytes(), &second)
	if second.UID == body.UID {
		t.Error("second sign-in reused the subject id")
	}

	_ = access.Stop(context.Background())
	if len(sink.entries) != 2 || !sink.entries[0].Success || sink.entries[0].UID != body.UID {
		t.Errorf("access entries = %+v", sink.entries)
	}
}

func TestSignIn_RateLimitedPerIP(t *testing.T) {
	h, access, sink := newTestHandler(t, idtoken.NewHMAC("s", "i", time.Hour), 2)

	for i := 0; i < 2; i++ {
		if rec := signIn(h, "10.0.0.2"); rec.Code != http.StatusOK {
			t.Fatalf("call %d: status = %d", i, rec.Code)
		}
	}
	rec := signIn(h, "10.0.0.2")
	if rec.Code != http.StatusTooManyRequests {
		t.Fatalf("status = %d, want 429", rec.Code)
	}
	var body struct{ Code string }
	_ = json.Unmarshal(rec.Body.Bytes(), &body)
	if body.Code != "RATE_LIMIT_EXCEEDED" {
		t.Errorf("code = %q", body.Code)
	}

	// Another client is unaffected.
	if rec := signIn(h, "10.0.0.3"); rec.Code != http.StatusOK {
		t.Errorf("other ip status = %d, want 200", rec.Code)
	}

	_ = access.Stop(context.Background())
	last := sink.entries[2]
	if last.Success || last.ErrorCode != "RATE_LIMIT_EXCEEDED" || last.IP != "10.0.0.2" {
		t.Errorf("rejected entry = %+v", last)
	}
}

func TestSignIn_IssuerFailure(t *testing.T) {
	h, _, _ := newTestHandler(t, brokenIssuer{}, 10)

	rec := signIn(h, "10.0.0.4")
	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d, want 500", rec.Code)
	}
	if got := rec.Body.String(); strings.Contains(got, "signing key") {
		t.Errorf("internal detail leaked: %s", got)
	}
}
