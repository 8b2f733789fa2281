package http

import (
	"time"

	"golang.org/x/time/rate"
)

// newSendLimiter returns a per-connection token bucket allowing perMinute sends
// with bursts of the same size. It returns nil when limiting is disabled.
func newSendLimiter(perMinute int) *rate.Limiter {
	if perMinute <= 0 {
		return nil
	}
	return rate.NewLimiter(rate.Every(time.Minute/time.Duration(perMinute)), perMinute)
}

func allowSend(limiter *rate.Limiter) bool {
	return limiter == nil || limiter.Allow()
}
