// Package idtoken verifies and issues the bearer identity tokens that gate the
// room endpoints. A verified token resolves to an opaque subject id (uid).
package idtoken

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var (
	// ErrMissing means the request carried no bearer token.
	ErrMissing = errors.New("identity token missing")
	// ErrInvalid means a token was presented but failed verification.
	ErrInvalid = errors.New("identity token invalid")
)

// Verifier resolves a raw token to a subject id.
type Verifier interface {
	Verify(ctx context.Context, token string) (string, error)
}

// Claims carried by tokens this service issues.
type Claims struct {
	Anonymous bool `json:"anon,omitempty"`
	jwt.RegisteredClaims
}

// HMAC signs and verifies HS256 tokens with a shared secret.
type HMAC struct {
	secret []byte
	issuer string
	ttl    time.Duration
}

// NewHMAC creates an HS256 signer/verifier. Tokens must name issuer.
func NewHMAC(secret, issuer string, ttl time.Duration) *HMAC {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &HMAC{secret: []byte(secret), issuer: issuer, ttl: ttl}
}

// Issue signs a token for uid valid from now for the configured TTL.
func (h *HMAC) Issue(uid string, anonymous bool, now time.Time) (string, time.Time, error) {
	exp := now.Add(h.ttl)
	claims := Claims{
		Anonymous: anonymous,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   uid,
			Issuer:    h.issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(exp),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(h.secret)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("sign identity token: %w", err)
	}
	return signed, exp, nil
}

// Verify checks signature, issuer and expiry and returns the subject.
// Every failure is reported as ErrInvalid.
func (h *HMAC) Verify(_ context.Context, token string) (string, error) {
	parsed, err := jwt.ParseWithClaims(token, &Claims{}, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return h.secret, nil
	},
		jwt.WithIssuer(h.issuer),
		jwt.WithExpirationRequired(),
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
	)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalid, err)
	}
	claims, ok := parsed.Claims.(*Claims)
	if !ok || !parsed.Valid || strings.TrimSpace(claims.Subject) == "" {
		return "", ErrInvalid
	}
	return claims.Subject, nil
}

/*─────────────────────────────────────────────────────────────────────────────*
| Request identity                                                            |
*─────────────────────────────────────────────────────────────────────────────*/

// Identity is the outcome of reading a request's bearer token.
// Exactly one of UID or Err is set.
type Identity struct {
	UID string
	Err error
}

// Present reports whether the request carried a token at all.
func (id Identity) Present() bool {
	return !errors.Is(id.Err, ErrMissing)
}

// OK reports whether the token verified.
func (id Identity) OK() bool {
	return id.Err == nil && id.UID != ""
}

type ctxKey string

const identityKey ctxKey = "identity"

// FromRequest returns the identity attached by Load. Requests that never went
// through Load report ErrMissing.
func FromRequest(r *http.Request) Identity {
	if id, ok := r.Context().Value(identityKey).(Identity); ok {
		return id
	}
	return Identity{Err: ErrMissing}
}

// WithIdentity attaches id to the request context.
func WithIdentity(r *http.Request, id Identity) *http.Request {
	return r.WithContext(context.WithValue(r.Context(), identityKey, id))
}

// Load resolves the bearer token (if any) and attaches the Identity to the
// request. It never rejects: handlers decide what a missing or bad token
// means so every outcome can be audited.
//
// Websocket upgrades may pass the token as the access_token query parameter
// because browsers cannot set headers on them.
func Load(v Verifier) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			raw, ok := bearerToken(r)
			if !ok {
				next.ServeHTTP(w, WithIdentity(r, Identity{Err: ErrMissing}))
				return
			}
			uid, err := v.Verify(r.Context(), raw)
			if err != nil {
				next.ServeHTTP(w, WithIdentity(r, Identity{Err: ErrInvalid}))
				return
			}
			next.ServeHTTP(w, WithIdentity(r, Identity{UID: uid}))
		})
	}
}

func bearerToken(r *http.Request) (string, bool) {
	if h := r.Header.Get("Authorization"); h != "" {
		parts := strings.SplitN(h, " ", 2)
		if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") || strings.TrimSpace(parts[1]) == "" {
			// A malformed header is still a presented credential.
			return "", true
		}
		return strings.TrimSpace(parts[1]), true
	}
	if isWebsocketUpgrade(r) {
		if tok := r.URL.Query().Get("access_token"); tok != "" {
			return tok, true
		}
	}
	return "", false
}

func isWebsocketUpgrade(r *http.Request) bool {
	return strings.EqualFold(r.Header.Get("Upgrade"), "websocket")
}
