package manager

import (
	"sync"
	"time"
)

// idleTimer is a restartable single-shot deferred call. Each arm or cancel
// bumps a token; a callback that fires carries the token it was armed with
// so it can tell whether it is still the current one.
type idleTimer struct {
	mu    sync.Mutex
	t     *time.Timer
	token uint64
}

// arm cancels any pending callback, then schedules fn after d. d <= 0 leaves
// nothing scheduled. Returns the new token.
func (it *idleTimer) arm(d time.Duration, fn func(token uint64)) uint64 {
	it.mu.Lock()
	defer it.mu.Unlock()
	it.stopLocked()
	if d <= 0 {
		return it.token
	}
	tok := it.token
	it.t = time.AfterFunc(d, func() { fn(tok) })
	return tok
}

// cancel stops a pending callback. One that is already running will find
// its token stale.
func (it *idleTimer) cancel() {
	it.mu.Lock()
	defer it.mu.Unlock()
	it.stopLocked()
}

func (it *idleTimer) stopLocked() {
	if it.t != nil {
		it.t.Stop()
		it.t = nil
	}
	it.token++
}

// current reports whether tok belongs to the most recent arm.
func (it *idleTimer) current(tok uint64) bool {
	it.mu.Lock()
	defer it.mu.Unlock()
	return it.t != nil && it.token == tok
}

// pending reports whether a callback is scheduled.
func (it *idleTimer) pending() bool {
	it.mu.Lock()
	defer it.mu.Unlock()
	return it.t != nil
}
