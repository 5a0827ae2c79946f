// internal/app/system/inputval/inputval.go
package inputval

import (
	"errors"
	"html"
	"math"
	"strings"
	"unicode/utf8"

	"github.com/microcosm-cc/bluemonday"
)

const (
	MaxNicknameLength = 50
	MaxMessageLength  = 100
)

var (
	ErrEmpty      = errors.New("value is required")
	ErrTooLong    = errors.New("value is too long")
	ErrOutOfRange = errors.New("coordinate out of range")
)

// strict removes every tag; nicknames and messages are plain text.
var strict = bluemonday.StrictPolicy()

// PlainText trims s and strips any markup from it.
func PlainText(s string) string {
	cleaned := strict.Sanitize(strings.TrimSpace(s))
	return strings.TrimSpace(html.UnescapeString(cleaned))
}

// Nickname returns the cleaned nickname, ErrEmpty when nothing is left, or
// ErrTooLong past MaxNicknameLength characters.
func Nickname(raw string) (string, error) {
	return bounded(raw, 1, MaxNicknameLength)
}

// Message returns the cleaned status message. Empty is allowed.
func Message(raw string) (string, error) {
	return bounded(raw, 0, MaxMessageLength)
}

func bounded(raw string, min, max int) (string, error) {
	if utf8.RuneCountInString(strings.TrimSpace(raw)) > max {
		return "", ErrTooLong
	}
	s := PlainText(raw)
	n := utf8.RuneCountInString(s)
	if n < min {
		return "", ErrEmpty
	}
	if n > max {
		return "", ErrTooLong
	}
	return s, nil
}

// Coordinates checks a WGS84 latitude/longitude pair.
func Coordinates(lat, lng float64) error {
	if math.IsNaN(lat) || math.IsNaN(lng) || math.IsInf(lat, 0) || math.IsInf(lng, 0) {
		return ErrOutOfRange
	}
	if lat < -90 || lat > 90 || lng < -180 || lng > 180 {
		return ErrOutOfRange
	}
	return nil
}
