package engine

import (
	"math"
	"math/rand/v2"
	"time"
)

const (
	baseRetryInterval = 500 * time.Millisecond
	maxRetryInterval  = 30 * time.Second
)

// calculateBackoff returns the reconnect delay for the given attempt
// count: exponential growth from the base interval with ±20% jitter,
// capped at maxRetryInterval. Attempt counts reset after a healthy
// connection, so the first retry after an outage is always fast.
func calculateBackoff(attempt int) time.Duration {
	if attempt <= 0 {
		return baseRetryInterval
	}

	backoff := float64(baseRetryInterval) * math.Pow(2, float64(attempt))

	// Clamp before converting: past ~attempt 35 the float exceeds int64
	// range and time.Duration(backoff) would wrap negative.
	if backoff >= float64(maxRetryInterval) {
		return maxRetryInterval
	}

	// ±20% jitter keeps reconnect storms from synchronizing.
	jitter := (rand.Float64()*0.4 - 0.2) * backoff

	duration := time.Duration(backoff + jitter)
	if duration > maxRetryInterval {
		return maxRetryInterval
	}
	return duration
}
