package resilience

import "time"

// RetryPolicy bounds repeated calls of one operation. Attempts == 1 means the
// call is made once and its error is returned as-is.
type RetryPolicy struct {
	Attempts       int
	InitialBackoff time.Duration
	MaxBackoff     time.Duration
	Multiplier     float64
}

type BreakerPolicy struct {
	Enabled         bool
	MinRequests     uint32
	FailureRatio    float64
	OpenTimeout     time.Duration
	HalfOpenMaxCall uint32
}

type Config struct {
	Retry   RetryPolicy
	Breaker BreakerPolicy
	// OnStateChange is called after the built-in log event, e.g. to feed a gauge.
	OnStateChange func(operation, from, to string)
}

// DefaultConfig performs a single attempt per call behind a circuit breaker.
// Callers that process many items already skip failed ones and move on.
func DefaultConfig() Config {
	return Config{
		Retry: RetryPolicy{
			Attempts:       1,
			InitialBackoff: 200 * time.Millisecond,
			MaxBackoff:     2 * time.Second,
			Multiplier:     2.0,
		},
		Breaker: BreakerPolicy{
			Enabled:         true,
			MinRequests:     10,
			FailureRatio:    0.6,
			OpenTimeout:     30 * time.Second,
			HalfOpenMaxCall: 1,
		},
	}
}

func (c Config) withDefaults() Config {
	out := c
	def := DefaultConfig()

	if out.Retry.Attempts <= 0 {
		out.Retry.Attempts = def.Retry.Attempts
	}
	if out.Retry.InitialBackoff <= 0 {
		out.Retry.InitialBackoff = def.Retry.InitialBackoff
	}
	if out.Retry.MaxBackoff < out.Retry.InitialBackoff {
		out.Retry.MaxBackoff = out.Retry.InitialBackoff
	}
	if out.Retry.Multiplier < 1.0 {
		out.Retry.Multiplier = def.Retry.Multiplier
	}

	if out.Breaker.MinRequests == 0 {
		out.Breaker.MinRequests = def.Breaker.MinRequests
	}
	if out.Breaker.FailureRatio <= 0 || out.Breaker.FailureRatio > 1 {
		out.Breaker.FailureRatio = def.Breaker.FailureRatio
	}
	if out.Breaker.OpenTimeout <= 0 {
		out.Breaker.OpenTimeout = def.Breaker.OpenTimeout
	}
	if out.Breaker.HalfOpenMaxCall == 0 {
		out.Breaker.HalfOpenMaxCall = def.Breaker.HalfOpenMaxCall
	}
	return out
}
