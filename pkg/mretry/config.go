// Package mretry holds the exponential-backoff-with-jitter configuration
// shared by the relay worker and the streaming transport's consumer retry
// path.
package mretry

import (
	"fmt"
	"math"
	"math/rand"
	"time"
)

// Defaults mirrored across every backoff policy in the pipeline unless a
// caller opts into a custom Config.
const (
	DefaultMaxRetries    = 10
	DefaultJitterFactor  = 0.25
)

// DefaultInitialBackoff, DefaultMaxBackoff, and DLQInitialBackoff are
// durations and so can't be untyped const alongside the above.
var (
	DefaultInitialBackoff = 1 * time.Second
	DefaultMaxBackoff     = 30 * time.Minute
	DLQInitialBackoff     = 1 * time.Minute
)

// ConfigValidationError names the specific field of a Config that failed
// Validate, so operators get an actionable message instead of a bare
// "invalid config".
type ConfigValidationError struct {
	Field   string
	Message string
}

func (e ConfigValidationError) Error() string {
	return fmt.Sprintf("mretry: invalid %s: %s", e.Field, e.Message)
}

// Config is a full exponential-backoff-with-jitter policy: delay doubles
// each attempt starting from InitialBackoff, caps at MaxBackoff, and is then
// perturbed by +/- JitterFactor to avoid thundering-herd retries across
// many relay workers.
type Config struct {
	MaxRetries     int
	InitialBackoff time.Duration
	MaxBackoff     time.Duration
	JitterFactor   float64
}

// DefaultMetadataOutboxConfig is the policy the relay worker applies to
// ordinary PROCESSING->FAILED->PROCESSING retries.
func DefaultMetadataOutboxConfig() Config {
	return Config{
		MaxRetries:     DefaultMaxRetries,
		InitialBackoff: DefaultInitialBackoff,
		MaxBackoff:     DefaultMaxBackoff,
		JitterFactor:   DefaultJitterFactor,
	}
}

// DefaultDLQConfig is the slower policy applied when replaying rows out of
// the dead-letter queue, where a longer initial delay avoids immediately
// re-failing on a dependency that's still recovering.
func DefaultDLQConfig() Config {
	return Config{
		MaxRetries:     DefaultMaxRetries,
		InitialBackoff: DLQInitialBackoff,
		MaxBackoff:     DefaultMaxBackoff,
		JitterFactor:   DefaultJitterFactor,
	}
}

func (c Config) WithMaxRetries(n int) Config     { c.MaxRetries = n; return c }
func (c Config) WithInitialBackoff(d time.Duration) Config { c.InitialBackoff = d; return c }
func (c Config) WithMaxBackoff(d time.Duration) Config     { c.MaxBackoff = d; return c }
func (c Config) WithJitterFactor(f float64) Config         { c.JitterFactor = f; return c }

// Validate reports whether c describes a sane backoff policy.
func (c Config) Validate() error {
	if c.MaxRetries < 1 {
		return ConfigValidationError{Field: "MaxRetries", Message: "must be >= 1"}
	}

	if c.InitialBackoff <= 0 {
		return ConfigValidationError{Field: "InitialBackoff", Message: "must be > 0"}
	}

	if c.MaxBackoff <= 0 {
		return ConfigValidationError{Field: "MaxBackoff", Message: "must be > 0"}
	}

	if c.MaxBackoff < c.InitialBackoff {
		return ConfigValidationError{Field: "MaxBackoff", Message: "must be >= InitialBackoff"}
	}

	if c.JitterFactor < 0 || c.JitterFactor > 1 {
		return ConfigValidationError{Field: "JitterFactor", Message: "must be in range [0.0, 1.0]"}
	}

	return nil
}

// Backoff returns the delay before retrying after the given attempt number,
// where attempt counts completed tries (0 means "about to make the first
// retry"). Attempt 0 returns InitialBackoff with no jitter, so the first
// retry after a fresh failure is deterministic; every later attempt doubles
// from there, caps at MaxBackoff, and is jittered by +/- JitterFactor.
func (c Config) Backoff(attempt int) time.Duration {
	if attempt <= 0 {
		return c.InitialBackoff
	}

	base := float64(c.InitialBackoff) * math.Pow(2, float64(attempt-1))
	if base > float64(c.MaxBackoff) {
		base = float64(c.MaxBackoff)
	}

	if c.JitterFactor == 0 {
		return time.Duration(base)
	}

	jitterRange := base * c.JitterFactor
	jittered := base - jitterRange + rand.Float64()*2*jitterRange //nolint:gosec

	if jittered < 0 {
		jittered = 0
	}

	if jittered > float64(c.MaxBackoff) {
		jittered = float64(c.MaxBackoff)
	}

	return time.Duration(jittered)
}
