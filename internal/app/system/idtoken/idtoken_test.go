package idtoken

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

func TestHMAC_IssueVerify(t *testing.T) {
	h := NewHMAC("test-secret", "aimap", time.Hour)
	tok, exp, err := h.Issue("uid-123", true, time.Now())
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}
	if time.Until(exp) < 59*time.Minute {
		t.Errorf("expiry too soon: %v", exp)
	}

	uid, err := h.Verify(context.Background(), tok)
	if err != nil {
		t.Fatalf("Verify: %v", err)
	}
	if uid != "uid-123" {
		t.Errorf("uid: got %q, want %q", uid, "uid-123")
	}
}

func TestHMAC_VerifyRejects(t *testing.T) {
	h := NewHMAC("test-secret", "aimap", time.Hour)
	now := time.Now()

	expired, _, _ := h.Issue("u", false, now.Add(-2*time.Hour))
	otherSecret, _, _ := NewHMAC("other", "aimap", time.Hour).Issue("u", false, now)
	otherIssuer, _, _ := NewHMAC("test-secret", "someone-else", time.Hour).Issue("u", false, now)
	noSubject, _, _ := h.Issue("", false, now)

	none := jwt.NewWithClaims(jwt.SigningMethodNone, jwt.RegisteredClaims{
		Subject:   "u",
		Issuer:    "aimap",
		ExpiresAt: jwt.NewNumericDate(now.Add(time.Hour)),
	})
	unsigned, _ := none.SignedString(jwt.UnsafeAllowNoneSignatureType)

	tests := []struct {
		name  string
		token string
	}{
		{"garbage", "not-a-jwt"},
		{"empty", ""},
		{"expired", expired},
		{"wrong secret", otherSecret},
		{"wrong issuer", otherIssuer},
		{"no subject", noSubject},
		{"alg none", unsigned},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := h.Verify(context.Background(), tt.token)
			if !errors.Is(err, ErrInvalid) {
				t.Errorf("Verify err = %v, want ErrInvalid", err)
			}
		})
	}
}

func TestLoad(t *testing.T) {
	h := NewHMAC("test-secret", "aimap", time.Hour)
	good, _, _ := h.Issue("uid-1", true, time.Now())

	tests := []struct {
		name    string
		setup   func(r *http.Request)
		wantUID string
		wantErr error
	}{
		{"no header", func(r *http.Request) {}, "", ErrMissing},
		{"valid bearer", func(r *http.Request) { r.Header.Set("Authorization", "Bearer "+good) }, "uid-1", nil},
		{"bad bearer", func(r *http.Request) { r.Header.Set("Authorization", "Bearer nope") }, "", ErrInvalid},
		{"wrong scheme", func(r *http.Request) { r.Header.Set("Authorization", "Basic abc") }, "", ErrInvalid},
		{"query token ignored without upgrade", func(r *http.Request) {
			q := r.URL.Query()
			q.Set("access_token", good)
			r.URL.RawQuery = q.Encode()
		}, "", ErrMissing},
		{"query token on websocket upgrade", func(r *http.Request) {
			q := r.URL.Query()
			q.Set("access_token", good)
			r.URL.RawQuery = q.Encode()
			r.Header.Set("Upgrade", "websocket")
		}, "uid-1", nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var got Identity
			next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				got = FromRequest(r)
			})
			req := httptest.NewRequest("GET", "/checkRoom/abcdefghijkl", nil)
			tt.setup(req)
			Load(h)(next).ServeHTTP(httptest.NewRecorder(), req)

			if got.UID != tt.wantUID {
				t.Errorf("uid: got %q, want %q", got.UID, tt.wantUID)
			}
			if !errors.Is(got.Err, tt.wantErr) && !(got.Err == nil && tt.wantErr == nil) {
				t.Errorf("err: got %v, want %v", got.Err, tt.wantErr)
			}
		})
	}
}

func TestFromRequest_WithoutLoad(t *testing.T) {
	id := FromRequest(httptest.NewRequest("GET", "/", nil))
	if id.Present() {
		t.Error("Present: got true, want false")
	}
	if id.OK() {
		t.Error("OK: got true, want false")
	}
}
