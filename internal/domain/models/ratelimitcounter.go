// internal/domain/models/ratelimitcounter.go
package models

import "time"

// RateLimitCounter is the persisted request history for one (action, client IP) pair.
//
// Attempts is used by the sliding-window policy (most recent last, capped).
// ConsecutiveFailures and LastFailure are used by the failure-lockout policy.
// ExpiresAt lets the sweeper (and the TTL index) drop idle counters.
type RateLimitCounter struct {
	Key                 string      `bson:"_id" json:"key"`
	Attempts            []time.Time `bson:"attempts,omitempty" json:"attempts,omitempty"`
	ConsecutiveFailures int         `bson:"consecutive_failures" json:"consecutive_failures"`
	LastFailure         *time.Time  `bson:"last_failure,omitempty" json:"last_failure,omitempty"`
	TotalAttempts       int64       `bson:"total_attempts" json:"total_attempts"`
	UpdatedAt           time.Time   `bson:"updated_at" json:"updated_at"`
	ExpiresAt           time.Time   `bson:"expires_at" json:"expires_at"`
}
