// Package debounce coalesces bursts of triggers into one delayed call.
package debounce

import (
	"sync"
	"time"
)

// Debouncer runs fn once after the most recent Trigger's delay has elapsed
// with no newer Trigger. It is safe for concurrent use.
type Debouncer struct {
	fn func()

	mu    sync.Mutex
	timer *time.Timer
	gen   uint64
}

// New creates a Debouncer for fn
func New(fn func()) *Debouncer {
	return &Debouncer{fn: fn}
}

// Trigger (re)starts the countdown. A pending call is replaced, so only the
// latest delay counts.
func (d *Debouncer) Trigger(delay time.Duration) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.timer != nil {
		d.timer.Stop()
	}
	d.gen++
	gen := d.gen
	d.timer = time.AfterFunc(delay, func() {
		d.mu.Lock()
		if d.gen != gen {
			d.mu.Unlock()
			return
		}
		d.timer = nil
		d.mu.Unlock()
		d.fn()
	})
}

// CancelPending drops the scheduled call, reporting whether one was pending
func (d *Debouncer) CancelPending() bool {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.timer == nil {
		return false
	}
	d.timer.Stop()
	d.timer = nil
	d.gen++
	return true
}

// Pending reports whether a call is scheduled
func (d *Debouncer) Pending() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.timer != nil
}
