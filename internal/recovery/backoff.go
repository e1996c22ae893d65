package recovery

import (
	"math"
	"time"
)

// Backoff computes exponential retry delays capped at Max. A server-supplied
// retry-after hint always wins over the computed delay.
type Backoff struct {
	Base       time.Duration
	Multiplier float64
	Max        time.Duration
}

func (b Backoff) Delay(attempt int, retryAfter time.Duration) time.Duration {
	if retryAfter > 0 {
		return retryAfter
	}
	if attempt < 1 {
		attempt = 1
	}

	d := float64(b.Base) * math.Pow(b.Multiplier, float64(attempt-1))
	if d > float64(b.Max) || d < 0 {
		return b.Max
	}
	return time.Duration(d)
}
