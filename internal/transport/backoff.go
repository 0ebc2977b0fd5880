package transport

import (
	"time"

	"github.com/cenkalti/backoff"
)

const (
	// DefaultBaseDelay is the first reconnect delay
	DefaultBaseDelay = time.Second
	// DefaultMaxDelay caps the reconnect delay
	DefaultMaxDelay = 30 * time.Second
)

// Backoff yields reconnect delays that double from base up to max, without jitter
type Backoff struct {
	b *backoff.ExponentialBackOff
}

// NewBackoff creates a reset Backoff
func NewBackoff(base, max time.Duration) *Backoff {
	b := &backoff.ExponentialBackOff{
		InitialInterval:     base,
		RandomizationFactor: 0,
		Multiplier:          2,
		MaxInterval:         max,
		MaxElapsedTime:      0,
		Clock:               backoff.SystemClock,
	}
	b.Reset()
	return &Backoff{b: b}
}

// Next returns the delay to wait before the next attempt and advances the sequence
func (b *Backoff) Next() time.Duration {
	return b.b.NextBackOff()
}

// Reset restarts the sequence at the base delay
func (b *Backoff) Reset() {
	b.b.Reset()
}
