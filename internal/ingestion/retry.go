package ingestion

import (
	"math"
	"math/rand/v2"
	"time"
)

const (
	// maxBackoffSeconds is the hard ceiling on computed delay, regardless
	// of attempt count or configured base.
	maxBackoffSeconds = 300
	// maxExponentAttempt is the highest attempt value the exponent clamps
	// to; attempts beyond this do not increase the delay further.
	maxExponentAttempt = 10

	// DefaultMaxAttempts is the default terminal-failure threshold.
	DefaultMaxAttempts = 5
	// DefaultBaseBackoffSeconds is the default exponential base.
	DefaultBaseBackoffSeconds = 2
)

// RetryConfig parameterises the retry policy. A zero-value RetryConfig is
// not valid; use DefaultRetryConfig or set both required fields.
type RetryConfig struct {
	MaxAttempts        int
	BaseBackoffSeconds int
	// JitterFraction is an optional, off-by-default (0.0) knob for callers
	// who want randomized jitter added to the deterministic delay. The
	// shipped default never sets this; the formula is otherwise
	// fully deterministic.
	JitterFraction float64
}

// DefaultRetryConfig returns the process-wide defaults (max_attempts=5,
// base_backoff_seconds=2, no jitter).
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxAttempts:        DefaultMaxAttempts,
		BaseBackoffSeconds: DefaultBaseBackoffSeconds,
	}
}

// RetryDecision is the outcome of evaluating the retry policy after a
// processing failure.
type RetryDecision struct {
	// Terminal is true when the job should transition to Failed.
	Terminal bool
	// Delay is the backoff before the job becomes eligible again. Only
	// meaningful when Terminal is false.
	Delay time.Duration
}

// NextRetry decides, given the attempt count reached by a failed claim and
// the configuration in effect for the job's tenant, whether the job is now
// terminally Failed or should be retried after an exponential backoff with
// a 300s ceiling.
//
// a = clamp(attempt, 1, 10); delay = min(300, base * 2^(a-1)).
// Terminal when attempt >= max_attempts.
func NextRetry(attempt int, cfg RetryConfig) RetryDecision {
	if attempt >= cfg.MaxAttempts {
		return RetryDecision{Terminal: true}
	}

	a := attempt
	if a < 1 {
		a = 1
	}

	if a > maxExponentAttempt {
		a = maxExponentAttempt
	}

	delaySeconds := float64(cfg.BaseBackoffSeconds) * math.Pow(2, float64(a-1))
	if delaySeconds > maxBackoffSeconds {
		delaySeconds = maxBackoffSeconds
	}

	if cfg.JitterFraction > 0 {
		delaySeconds += delaySeconds * cfg.JitterFraction * rand.Float64()
	}

	return RetryDecision{
		Terminal: false,
		Delay:    time.Duration(delaySeconds * float64(time.Second)),
	}
}
