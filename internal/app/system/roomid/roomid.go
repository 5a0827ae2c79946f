// Package roomid generates opaque room identifiers.
package roomid

import (
	"crypto/rand"
	"fmt"
	"math/big"
)

const (
	// Length is the fixed length of every room id.
	Length = 12
	// Alphabet is the set of characters a room id is drawn from.
	Alphabet = "abcdefghijklmnopqrstuvwxyz0123456789"
	// MaxAttempts bounds the collision retry loop of callers.
	MaxAttempts = 10
)

var alphabetSize = big.NewInt(int64(len(Alphabet)))

// Generate returns a new random id. Uniqueness is not guaranteed; callers
// check it against the room store and retry.
func Generate() (string, error) {
	b := make([]byte, Length)
	for i := range b {
		n, err := rand.Int(rand.Reader, alphabetSize)
		if err != nil {
			return "", fmt.Errorf("roomid: read random: %w", err)
		}
		b[i] = Alphabet[n.Int64()]
	}
	return string(b), nil
}

// Valid reports whether s has the shape of a room id.
func Valid(s string) bool {
	if len(s) != Length {
		return false
	}
	for i := 0; i < len(s); i++ {
		c := s[i]
		if !(c >= 'a' && c <= 'z') && !(c >= '0' && c <= '9') {
			return false
		}
	}
	return true
}
