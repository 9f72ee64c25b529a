package rabbitmq

import (
	"math/rand"
	"time"
)

// DefaultReconnectDelay is the pause between connection attempts.
const DefaultReconnectDelay = 5 * time.Second

// ReconnectPolicy decides how long to wait before the next connection attempt.
// Attempts are never capped: the bus keeps retrying for as long as the process runs.
type ReconnectPolicy struct {
	Delay time.Duration
	// Jitter spreads attempts by up to ±Jitter*Delay. Zero keeps the delay fixed.
	Jitter float64
}

// FixedReconnect returns a policy that always waits d.
func FixedReconnect(d time.Duration) ReconnectPolicy {
	return ReconnectPolicy{Delay: d}
}

// Next returns the delay before the next attempt.
func (p ReconnectPolicy) Next() time.Duration {
	delay := p.Delay
	if delay <= 0 {
		delay = DefaultReconnectDelay
	}
	if p.Jitter <= 0 {
		return delay
	}
	jitter := p.Jitter
	if jitter > 1 {
		jitter = 1
	}
	spread := float64(delay) * jitter
	return delay + time.Duration((rand.Float64()*2-1)*spread)
}
