// Package circuitbreaker wraps sony/gobreaker/v2 with the project's
// defaults so every caller gets the same trip/reset behavior. State
// transitions are not logged.
package circuitbreaker

import (
	"time"

	"github.com/sony/gobreaker/v2"
)

// Config is gobreaker.Settings by another name, kept distinct so defaults
// live in one place.
type Config = gobreaker.Settings

// DefaultConfig returns settings tuned for a flaky upstream dependency:
// trip after 5 consecutive failures, stay open 30s, allow a single trial
// request in half-open before deciding.
func DefaultConfig(name string) Config {
	return Config{
		Name:        name,
		MaxRequests: 1,
		Interval:    0,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
	}
}

// New constructs a generic circuit breaker guarding calls that return T.
func New[T any](cfg Config) *gobreaker.CircuitBreaker[T] {
	return gobreaker.NewCircuitBreaker[T](cfg)
}
