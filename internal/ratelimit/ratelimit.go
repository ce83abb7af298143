// Package ratelimit enforces a single global minimum inter-request interval
// shared by every outbound HTTP call the acquisition engine makes.
package ratelimit

import (
	"context"
	"fmt"

	"golang.org/x/time/rate"
)

// DefaultRate is the default number of requests per second the limiter allows.
const DefaultRate = 8.0

// ConfigError is returned when the limiter is constructed with an invalid rate.
type ConfigError struct {
	Rate float64
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("ratelimit: rate must be > 0, got %v", e.Rate)
}

// Limiter suspends callers until the wall clock has advanced at least
// 1/rate seconds past the previous grant. It wraps golang.org/x/time/rate
// with a burst of 1 so it enforces strict spacing rather than allowing
// bursts above the configured rate.
type Limiter struct {
	rl *rate.Limiter
}

// New builds a Limiter allowing requestsPerSecond requests per second.
func New(requestsPerSecond float64) (*Limiter, error) {
	if requestsPerSecond <= 0 {
		return nil, &ConfigError{Rate: requestsPerSecond}
	}
	return &Limiter{rl: rate.NewLimiter(rate.Limit(requestsPerSecond), 1)}, nil
}

// Acquire suspends the caller until a permit is available, or returns early
// if ctx is cancelled.
func (l *Limiter) Acquire(ctx context.Context) error {
	return l.rl.Wait(ctx)
}
