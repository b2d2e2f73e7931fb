package cache

import "sync"

// inFlightHandle coordinates callers interested in the same key. fetching is
// true exactly while a fetch is outstanding for the key. Waiters block on
// the condition until the fetcher broadcasts completion.
//
// A handle lives from the first request for its key until the key is evicted
// or invalidated, so callers racing an outstanding fetch find the same
// handle on lookup.
type inFlightHandle struct {
	mu       sync.Mutex
	cond     *sync.Cond
	fetching bool
}

func newInFlightHandle() *inFlightHandle {
	handle := &inFlightHandle{}
	handle.cond = sync.NewCond(&handle.mu)
	return handle
}

// release clears the fetching flag and wakes every waiter. Waiters re-check
// the store themselves after waking.
func (h *inFlightHandle) release() {
	h.mu.Lock()
	h.fetching = false
	h.cond.Broadcast()
	h.mu.Unlock()
}

// awaitIdle blocks until no fetch is outstanding for the key.
func (h *inFlightHandle) awaitIdle() {
	h.mu.Lock()
	for h.fetching {
		h.cond.Wait()
	}
	h.mu.Unlock()
}
