package worker

import "time"

// Backoff computes reconnect delays: exponential from Base, doubling up
// to Max. The schedule only moves forward via Next; callers Reset it
// after sustained uptime.
type Backoff struct {
	Base time.Duration
	Max  time.Duration

	attempt int
}

// Next returns the delay for the upcoming attempt and advances the
// schedule.
func (b *Backoff) Next() time.Duration {
	// Past 30 doublings the shift overflows; the cap applies anyway.
	if b.attempt > 30 {
		return b.Max
	}

	d := b.Base << b.attempt
	b.attempt++

	if d <= 0 || d > b.Max {
		return b.Max
	}
	return d
}

// Reset returns the schedule to its initial delay.
func (b *Backoff) Reset() {
	b.attempt = 0
}
