package store

import (
	"math"
	"math/rand"
	"time"
)

// RetryConfig controls the exponential backoff applied around every
// remote operation.
type RetryConfig struct {
	// MaxRetries is the number of retries after the first attempt.
	MaxRetries int
	// BaseDelay is the delay before the first retry.
	BaseDelay time.Duration
	// MaxDelay caps the exponential growth.
	MaxDelay time.Duration
	// ExponentialBase is the growth factor per attempt.
	ExponentialBase float64
	// Jitter, when set, scales each delay by a uniform random factor in
	// [0.5, 1.0] so synchronized callers do not retry in lockstep.
	Jitter bool
}

// DefaultRetryConfig mirrors the quota limits of the hosted spreadsheet
// API: three retries starting at one second, capped at a minute.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxRetries:      3,
		BaseDelay:       time.Second,
		MaxDelay:        60 * time.Second,
		ExponentialBase: 2.0,
		Jitter:          true,
	}
}

// Delay returns the backoff before retry number attempt (0-based):
// min(BaseDelay * ExponentialBase^attempt, MaxDelay), jittered.
func (c RetryConfig) Delay(attempt int) time.Duration {
	d := float64(c.BaseDelay) * math.Pow(c.ExponentialBase, float64(attempt))
	if max := float64(c.MaxDelay); d > max {
		d = max
	}
	if c.Jitter {
		d *= 0.5 + rand.Float64()*0.5
	}
	return time.Duration(d)
}
