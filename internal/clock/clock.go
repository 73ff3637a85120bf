// Package clock abstracts time so that batching windows, backoff delays and
// periodic reconciliation can be driven deterministically in tests.
//
// Production code uses Real(); tests use Fake() and move time with Advance.
package clock

import "time"

// Clock is the single time source shared by the store, the sync coordinator,
// the remote client and the reconciliation worker.
type Clock interface {
	// Now returns the current time.
	Now() time.Time

	// After returns a channel that receives once d has elapsed.
	// If d <= 0 the channel receives immediately.
	After(d time.Duration) <-chan time.Time

	// NewTimer returns a stoppable one-shot timer.
	NewTimer(d time.Duration) *Timer

	// NewTicker returns a ticker firing every d. Panics if d <= 0.
	NewTicker(d time.Duration) *Ticker
}

// Timer is a one-shot timer. Read the event from C.
type Timer struct {
	C <-chan time.Time

	stop func() bool
}

// Stop prevents the timer from firing. It reports whether the timer was
// still pending.
func (t *Timer) Stop() bool { return t.stop() }

// Ticker delivers ticks on C. The channel has capacity 1; ticks are dropped
// when the consumer falls behind.
type Ticker struct {
	C <-chan time.Time

	stop func()
}

// Stop turns the ticker off. C is not closed.
func (t *Ticker) Stop() { t.stop() }
