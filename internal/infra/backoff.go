package infra

import (
	"math/rand"
	"time"
)

const (
	reconnectBase = time.Second
	reconnectMax  = 30 * time.Second
)

// CalculateBackoff returns the reconnect delay for the given retry count:
// exponential from 1s capped at 30s, with up to 20% jitter.
func CalculateBackoff(retryCount int) time.Duration {
	delay := reconnectBase << uint(retryCount)
	if delay > reconnectMax || delay <= 0 {
		delay = reconnectMax
	}
	jitter := time.Duration(rand.Int63n(int64(delay) / 5))
	return delay + jitter
}
