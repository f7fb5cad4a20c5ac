package recon

import (
	"sync"
	"time"
)

// AutoAdvancer defers the "move to the next unreconciled cell" action that
// follows an auto-accepted match. The delay gives the user a moment to see
// the decision and cancel it. Closing the advancer (session teardown) turns
// any pending action into a no-op.
type AutoAdvancer struct {
	mu     sync.Mutex
	timer  *time.Timer
	closed bool
}

// NewAutoAdvancer returns an advancer with no pending action.
func NewAutoAdvancer() *AutoAdvancer {
	return &AutoAdvancer{}
}

// Schedule queues fn to run after delay, replacing any action still pending.
func (a *AutoAdvancer) Schedule(delay time.Duration, fn func()) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.closed {
		return
	}
	if a.timer != nil {
		a.timer.Stop()
	}
	a.timer = time.AfterFunc(delay, func() {
		a.mu.Lock()
		closed := a.closed
		a.mu.Unlock()
		if !closed {
			fn()
		}
	})
}

// Cancel drops the pending action, if any.
func (a *AutoAdvancer) Cancel() {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.timer != nil {
		a.timer.Stop()
		a.timer = nil
	}
}

// Close cancels any pending action and refuses future ones. Safe to call
// more than once.
func (a *AutoAdvancer) Close() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.closed = true
	if a.timer != nil {
		a.timer.Stop()
		a.timer = nil
	}
}
