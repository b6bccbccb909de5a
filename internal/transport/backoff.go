package transport

import (
	"math"
	"math/rand/v2"
	"time"
)

// ReconnectPolicy controls redial pacing after the connection drops.
// MaxAttempts of 0 retries forever.
type ReconnectPolicy struct {
	BaseDelay   time.Duration
	MaxDelay    time.Duration
	MaxAttempts int
}

// DefaultReconnectPolicy is used for zero fields of Options.Reconnect.
var DefaultReconnectPolicy = ReconnectPolicy{
	BaseDelay: 500 * time.Millisecond,
	MaxDelay:  30 * time.Second,
}

type backoff struct {
	policy      ReconnectPolicy
	attempt     int
	connectedAt time.Time
}

func (b *backoff) shouldRetry() bool {
	return b.policy.MaxAttempts == 0 || b.attempt < b.policy.MaxAttempts
}

func (b *backoff) markConnected() {
	b.connectedAt = time.Now()
}

// next returns the delay before the next dial. A connection that stayed up
// for a minute starts the sequence over.
func (b *backoff) next() time.Duration {
	if !b.connectedAt.IsZero() && time.Since(b.connectedAt) > time.Minute {
		b.attempt = 0
		b.connectedAt = time.Time{}
	}
	base := float64(b.policy.BaseDelay)
	jitter := rand.Float64() * base * 0.5
	delay := time.Duration(math.Min(base*math.Pow(2, float64(b.attempt))+jitter, float64(b.policy.MaxDelay)))
	b.attempt++
	return delay
}
