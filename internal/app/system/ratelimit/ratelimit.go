// internal/app/system/ratelimit/ratelimit.go
package ratelimit

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/dalemusser/aimap/internal/domain/models"
)

// Actions used as the first half of a counter key.
const (
	ActionCreateRoom = "createRoom"
	ActionJoinRoom   = "joinRoom"
	ActionCheckRoom  = "checkRoom"
	ActionAuth       = "auth"
)

// MaxAttempts caps the stored timestamp list of a counter.
const MaxAttempts = 50

// DefaultRetention is how long an idle counter is kept before the sweeper may drop it.
const DefaultRetention = 24 * time.Hour

// ErrUnavailable wraps counter store failures. Callers treat it as a rejection.
var ErrUnavailable = errors.New("rate limit store unavailable")

// CounterStore persists rate limit counters. Load returns found=false for an
// unknown key. Implementations are not required to make Load+Save atomic.
type CounterStore interface {
	Load(ctx context.Context, key string) (models.RateLimitCounter, bool, error)
	Save(ctx context.Context, c models.RateLimitCounter) error
}

// Key builds the counter key for an (action, client) pair.
func Key(action, clientIP string) string {
	return action + "_" + clientIP
}

// WindowLimiter admits at most Limit requests per key within a trailing Window.
type WindowLimiter struct {
	store     CounterStore
	limit     int
	window    time.Duration
	retention time.Duration
}

// NewWindow creates a sliding-window limiter over store.
func NewWindow(store CounterStore, limit int, window time.Duration) *WindowLimiter {
	return &WindowLimiter{
		store:     store,
		limit:     limit,
		window:    window,
		retention: maxDuration(window, DefaultRetention),
	}
}

// Allow records an attempt for key at now and reports whether it is admitted.
// A store failure yields (false, ErrUnavailable): the limiter fails closed.
// Rejected attempts are not appended.
func (l *WindowLimiter) Allow(ctx context.Context, key string, now time.Time) (bool, error) {
	c, found, err := l.store.Load(ctx, key)
	if err != nil {
		return false, fmt.Errorf("%w: load %s: %v", ErrUnavailable, key, err)
	}
	if !found {
		c = models.RateLimitCounter{Key: key}
	}

	recent := inWindow(c.Attempts, now.Add(-l.window))
	if len(recent) >= l.limit {
		return false, nil
	}

	recent = append(recent, now)
	if len(recent) > MaxAttempts {
		recent = recent[len(recent)-MaxAttempts:]
	}
	c.Attempts = recent
	c.TotalAttempts++
	c.UpdatedAt = now
	c.ExpiresAt = now.Add(l.retention)

	if err := l.store.Save(ctx, c); err != nil {
		return false, fmt.Errorf("%w: save %s: %v", ErrUnavailable, key, err)
	}
	return true, nil
}

// inWindow returns the timestamps strictly after since, preserving order.
func inWindow(attempts []time.Time, since time.Time) []time.Time {
	out := make([]time.Time, 0, len(attempts)+1)
	for _, t := range attempts {
		if t.After(since) {
			out = append(out, t)
		}
	}
	return out
}

// FailureLimiter locks a key out after Threshold consecutive failures until
// Cooldown has passed since the last failure.
//
// Admit is the gate and never writes. The outcome of the guarded operation is
// reported afterwards with RecordSuccess or RecordFailure.
type FailureLimiter struct {
	store     CounterStore
	threshold int
	cooldown  time.Duration
	retention time.Duration
}

// NewFailure creates a consecutive-failure limiter over store.
func NewFailure(store CounterStore, threshold int, cooldown time.Duration) *FailureLimiter {
	return &FailureLimiter{
		store:     store,
		threshold: threshold,
		cooldown:  cooldown,
		retention: maxDuration(cooldown, DefaultRetention),
	}
}

// Admit reports whether key may attempt the operation at now.
func (l *FailureLimiter) Admit(ctx context.Context, key string, now time.Time) (bool, error) {
	c, found, err := l.store.Load(ctx, key)
	if err != nil {
		return false, fmt.Errorf("%w: load %s: %v", ErrUnavailable, key, err)
	}
	if !found {
		return true, nil
	}
	return !l.lockedOut(c, now), nil
}

func (l *FailureLimiter) lockedOut(c models.RateLimitCounter, now time.Time) bool {
	if c.ConsecutiveFailures < l.threshold || c.LastFailure == nil {
		return false
	}
	return now.Sub(*c.LastFailure) < l.cooldown
}

// RecordFailure counts a failed attempt. The first failure after a served
// lockout starts a new streak at 1.
func (l *FailureLimiter) RecordFailure(ctx context.Context, key string, now time.Time) error {
	c, _, err := l.store.Load(ctx, key)
	if err != nil {
		return fmt.Errorf("%w: load %s: %v", ErrUnavailable, key, err)
	}
	c.Key = key
	if c.ConsecutiveFailures >= l.threshold {
		c.ConsecutiveFailures = 1
	} else {
		c.ConsecutiveFailures++
	}
	t := now
	c.LastFailure = &t
	return l.save(ctx, c, now)
}

// RecordSuccess clears the failure streak for key.
func (l *FailureLimiter) RecordSuccess(ctx context.Context, key string, now time.Time) error {
	c, _, err := l.store.Load(ctx, key)
	if err != nil {
		return fmt.Errorf("%w: load %s: %v", ErrUnavailable, key, err)
	}
	c.Key = key
	c.ConsecutiveFailures = 0
	c.LastFailure = nil
	return l.save(ctx, c, now)
}

func (l *FailureLimiter) save(ctx context.Context, c models.RateLimitCounter, now time.Time) error {
	c.TotalAttempts++
	c.UpdatedAt = now
	c.ExpiresAt = now.Add(l.retention)
	if err := l.store.Save(ctx, c); err != nil {
		return fmt.Errorf("%w: save %s: %v", ErrUnavailable, c.Key, err)
	}
	return nil
}

func maxDuration(a, b time.Duration) time.Duration {
	if a > b {
		return a
	}
	return b
}
