package testutil

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"

	"github.com/dalemusser/aimap/internal/app/system/idtoken"
	"github.com/google/uuid"
)

// NewUID returns a random subject id for a test identity.
func NewUID() string {
	return uuid.NewString()
}

// WithIdentity attaches a verified identity to the request, bypassing token parsing.
func WithIdentity(r *http.Request, uid string) *http.Request {
	return idtoken.WithIdentity(r, idtoken.Identity{UID: uid})
}

// WithInvalidToken marks the request as carrying a token that failed verification.
func WithInvalidToken(r *http.Request) *http.Request {
	return idtoken.WithIdentity(r, idtoken.Identity{Err: idtoken.ErrInvalid})
}

// NewJSONRequest creates a request whose body is v encoded as JSON.
func NewJSONRequest(method, target string, v any) *http.Request {
	var body io.Reader
	if v != nil {
		b, _ := json.Marshal(v)
		body = bytes.NewReader(b)
	}
	req := httptest.NewRequest(method, target, body)
	req.Header.Set("Content-Type", "application/json")
	req.RemoteAddr = "192.0.2.1:40000"
	return req
}

// NewAuthenticatedJSONRequest creates a JSON request carrying identity uid.
func NewAuthenticatedJSONRequest(method, target string, v any, uid string) *http.Request {
	return WithIdentity(NewJSONRequest(method, target, v), uid)
}

// ResponseRecorder wraps httptest.ResponseRecorder with helper methods.
type ResponseRecorder struct {
	*httptest.ResponseRecorder
}

// NewRecorder creates a new ResponseRecorder.
func NewRecorder() *ResponseRecorder {
	return &ResponseRecorder{httptest.NewRecorder()}
}

// AssertStatus checks the response status code.
func (r *ResponseRecorder) AssertStatus(t interface{ Errorf(string, ...any) }, expected int) {
	if r.Code != expected {
		t.Errorf("status code: got %d, want %d (body %s)", r.Code, expected, r.Body.String())
	}
}

// AssertContains checks if the response body contains the expected string.
func (r *ResponseRecorder) AssertContains(t interface{ Errorf(string, ...any) }, expected string) {
	if !strings.Contains(r.Body.String(), expected) {
		t.Errorf("response body does not contain %q", expected)
	}
}

// DecodeJSON decodes the response body into v.
func (r *ResponseRecorder) DecodeJSON(t interface{ Fatalf(string, ...any) }, v any) {
	if err := json.Unmarshal(r.Body.Bytes(), v); err != nil {
		t.Fatalf("failed to parse response %q: %v", r.Body.String(), err)
	}
}
