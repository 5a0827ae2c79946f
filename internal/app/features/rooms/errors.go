// internal/app/features/rooms/errors.go
package rooms

import (
	"errors"
	"net/http"

	"github.com/dalemusser/aimap/internal/app/system/jsonresp"
)

// Error kinds. Every *Error unwraps to exactly one of these.
var (
	ErrUnauthenticated      = errors.New("unauthenticated")
	ErrInvalidNickname      = errors.New("invalid nickname")
	ErrInvalidRoomID        = errors.New("invalid room id")
	ErrInvalidInput         = errors.New("invalid input")
	ErrNotFound             = errors.New("room not found")
	ErrGone                 = errors.New("room expired")
	ErrForbidden            = errors.New("not a member")
	ErrRateLimited          = errors.New("rate limited")
	ErrIdentifierExhaustion = errors.New("room id generation exhausted")
	ErrInternal             = errors.New("internal error")
)

// Machine-readable outcome codes. They appear in responses, the access log
// and the request metrics.
const (
	CodeInvalidNickname      = "INVALID_NICKNAME"
	CodeNicknameTooLong      = "NICKNAME_TOO_LONG"
	CodeRateLimitExceeded    = "RATE_LIMIT_EXCEEDED"
	CodeRateLimitUnavailable = "RATE_LIMIT_UNAVAILABLE"
	CodeMissingAuthToken     = "MISSING_AUTH_TOKEN"
	CodeInvalidAuthToken     = "INVALID_AUTH_TOKEN"
	CodeRoomIDGenerationFail = "ROOM_ID_GENERATION_FAILED"
	CodeRoomNotFound         = "ROOM_NOT_FOUND"
	CodeRoomExpired          = "ROOM_EXPIRED"
	CodeNotMember            = "NOT_MEMBER"
	CodeInvalidRoomID        = "INVALID_ROOM_ID"
	CodeInvalidRoomIDFormat  = "INVALID_ROOM_ID_FORMAT"
	CodeInternal             = "INTERNAL_ERROR"
	CodeAlreadyMember        = "ALREADY_MEMBER"
	CodeRoomValid            = "ROOM_VALID"
	CodeInvalidCoordinates   = "INVALID_COORDINATES"
	CodeMessageTooLong       = "MESSAGE_TOO_LONG"
	CodeEmptyUpdate          = "EMPTY_UPDATE"
	CodeInvalidBody          = "INVALID_BODY"
)

// Error is a terminal operation failure.
type Error struct {
	Kind  error
	Code  string
	cause error
}

func (e *Error) Error() string {
	if e.cause != nil {
		return e.Code + ": " + e.cause.Error()
	}
	return e.Code
}

func (e *Error) Unwrap() error { return e.Kind }

// NewError returns an *Error of the given kind and code.
func NewError(kind error, code string) *Error {
	return &Error{Kind: kind, Code: code}
}

// Cause returns the underlying failure for internal errors, nil otherwise.
func (e *Error) Cause() error { return e.cause }

// Status maps an error kind to its HTTP status.
func Status(err error) int {
	switch {
	case errors.Is(err, ErrUnauthenticated):
		return http.StatusUnauthorized
	case errors.Is(err, ErrInvalidNickname), errors.Is(err, ErrInvalidRoomID), errors.Is(err, ErrInvalidInput):
		return http.StatusBadRequest
	case errors.Is(err, ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, ErrGone):
		return http.StatusGone
	case errors.Is(err, ErrForbidden):
		return http.StatusForbidden
	case errors.Is(err, ErrRateLimited):
		return http.StatusTooManyRequests
	default:
		return http.StatusInternalServerError
	}
}

// messages are the client-facing texts per code. Internal detail is never sent.
var messages = map[string]string{
	CodeInvalidNickname:      "Valid nickname is required",
	CodeNicknameTooLong:      "Nickname is too long",
	CodeRateLimitExceeded:    "Too many requests. Please try again later.",
	CodeRateLimitUnavailable: "Too many requests. Please try again later.",
	CodeMissingAuthToken:     "Authorization token required",
	CodeInvalidAuthToken:     "Invalid authorization token",
	CodeRoomIDGenerationFail: "Failed to generate unique room ID",
	CodeRoomNotFound:         "Room not found",
	CodeRoomExpired:          "Room has expired",
	CodeNotMember:            "You are not a member of this room",
	CodeInvalidRoomID:        "Valid roomId is required",
	CodeInvalidRoomIDFormat:  "Invalid room ID format",
	CodeInternal:             "Internal server error",
	CodeInvalidCoordinates:   "lat must be within [-90, 90] and lng within [-180, 180]",
	CodeMessageTooLong:       "Message is too long",
	CodeEmptyUpdate:          "Nothing to update",
	CodeInvalidBody:          "Request body is not valid JSON",
}

// Message returns the client-facing text for err.
func Message(err error) (code, message string) {
	var e *Error
	if errors.As(err, &e) {
		if m, ok := messages[e.Code]; ok {
			return e.Code, m
		}
		return e.Code, messages[CodeInternal]
	}
	return CodeInternal, messages[CodeInternal]
}

// WriteError sends err as a JSON error response with its mapped status.
func WriteError(w http.ResponseWriter, err error) {
	code, msg := Message(err)
	jsonresp.Error(w, Status(err), code, msg)
}
