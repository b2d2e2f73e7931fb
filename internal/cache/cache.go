// Package cache provides a bounded in-memory cache for the result of a
// fetch-and-process operation, keyed by the owning entity's identity.
//
// Eviction is strictly FIFO: the oldest insertion goes first, and neither
// lookups nor re-insertion change the order. At most one fetch is ever
// outstanding per key; callers that request a key while its fetch is in
// flight wait for that fetch's result instead of triggering a duplicate.
package cache

import (
	"context"
	"sync"

	"github.com/mkarstad/repolens/internal/logging"
)

// Outcome tells the continuation how (or whether) a value was obtained.
type Outcome string

const (
	// OutcomeCached means the value was served from the store, or the
	// caller waited on a fetch performed by someone else. A waiter always
	// reports OutcomeCached, with ok=false when that fetch failed.
	OutcomeCached Outcome = "cached"
	// OutcomeFetched means this call performed the fetch and stored the
	// processed value.
	OutcomeFetched Outcome = "fetched"
	// OutcomeBadRequest means the transport failed, returned a non-success
	// status, or returned an empty payload. Nothing was stored; the next
	// call for the key retries.
	OutcomeBadRequest Outcome = "bad_request"
	// OutcomeProcessingFailed means the transport succeeded but the
	// processor rejected the payload. Nothing was stored.
	OutcomeProcessingFailed Outcome = "processing_failed"
	// OutcomeNoSource means the key carries no retrieval target.
	OutcomeNoSource Outcome = "no_source"
)

// Key is the identity a cache entry is addressed by. SourceURL exposes the
// retrieval target handed to the Fetcher, or ok=false if the key has none.
type Key interface {
	comparable
	SourceURL() (url string, ok bool)
}

// Fetcher retrieves the raw payload for a retrieval target. A non-nil error
// means the transport itself failed; otherwise the status code decides
// whether the payload is processed.
type Fetcher interface {
	Fetch(ctx context.Context, url string) (payload []byte, statusCode int, err error)
}

// ProcessFunc turns a raw payload into a domain value, or rejects it.
type ProcessFunc[V any] func(ctx context.Context, payload []byte) (V, error)

// Callback receives the result of a Fetch call. ok is false when no value
// was obtained.
type Callback[V any] func(value V, ok bool, outcome Outcome)

// Cache is the public entry point. It owns the capped store and the
// per-key coordination handles, and runs the fetch-or-wait protocol.
type Cache[K Key, V any] struct {
	// mu guards the store and the handle registry. It is only held for
	// map and queue mutation, never across the fetch itself.
	mu      sync.Mutex
	store   *cappedStore[K, V]
	handles map[K]*inFlightHandle

	fetcher Fetcher
	process ProcessFunc[V]
}

// New creates a cache holding at most maxSize processed values. maxSize
// values below 1 are clamped to 1.
func New[K Key, V any](maxSize int, fetcher Fetcher, process ProcessFunc[V]) *Cache[K, V] {
	c := &Cache[K, V]{
		handles: make(map[K]*inFlightHandle),
		fetcher: fetcher,
		process: process,
	}
	// Evicted keys lose their coordination state as well, so the next
	// request for them starts a fresh fetch. The callback runs under mu.
	c.store = newCappedStore[K, V](maxSize, func(key K) {
		delete(c.handles, key)
	})
	return c
}

// Fetch resolves the value for key and invokes onComplete exactly once with
// the result.
//
// If the value is cached, onComplete runs synchronously before Fetch
// returns. If a fetch for the key is already outstanding, onComplete runs
// on a separate goroutine once that fetch finishes. Otherwise this call
// claims the key and performs the fetch and processing on a separate
// goroutine; a fetch, once started, always runs to completion.
func (c *Cache[K, V]) Fetch(ctx context.Context, key K, onComplete Callback[V]) {
	handle := c.handleFor(key)

	handle.mu.Lock()
	for !c.handleCurrent(key, handle) {
		// The key was evicted between resolving the handle and locking
		// it. Start over on the registry's current handle so two callers
		// never claim fetches on different handles for the same key.
		handle.mu.Unlock()
		handle = c.handleFor(key)
		handle.mu.Lock()
	}

	if value, ok := c.lookup(key); ok {
		handle.mu.Unlock()
		logging.FromContext(ctx).InfoContext(ctx, "Resolved value", "cache", "hit")
		onComplete(value, true, OutcomeCached)
		return
	}

	if handle.fetching {
		handle.mu.Unlock()
		logging.FromContext(ctx).InfoContext(ctx, "Resolved value", "cache", "wait")
		go c.awaitAndReport(handle, key, onComplete)
		return
	}

	url, ok := key.SourceURL()
	if !ok {
		handle.mu.Unlock()
		var zero V
		onComplete(zero, false, OutcomeNoSource)
		return
	}

	handle.fetching = true
	handle.mu.Unlock()

	logging.FromContext(ctx).InfoContext(ctx, "Resolved value", "cache", "miss")
	// The fetch outlives the claiming caller: its result is shared with
	// every waiter, so the caller's cancellation must not abort it.
	go c.fetchAndStore(context.WithoutCancel(ctx), handle, key, url, onComplete)
}

// FetchSync is Fetch for callers that want to block until the outcome.
func (c *Cache[K, V]) FetchSync(ctx context.Context, key K) (V, bool, Outcome) {
	type result struct {
		value   V
		ok      bool
		outcome Outcome
	}

	done := make(chan result, 1)
	c.Fetch(ctx, key, func(value V, ok bool, outcome Outcome) {
		done <- result{value: value, ok: ok, outcome: outcome}
	})

	res := <-done
	return res.value, res.ok, res.outcome
}

// RemoveValue evicts the key's entry and its coordination state. A fetch
// currently running for the key is not interrupted and may re-insert the
// key when it completes.
func (c *Cache[K, V]) RemoveValue(key K) (V, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	delete(c.handles, key)
	return c.store.invalidate(key)
}

// SetMaxSize updates the maximum size, evicting the oldest entries until
// the store fits when shrinking.
func (c *Cache[K, V]) SetMaxSize(maxSize int) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.store.resize(maxSize)
}

func (c *Cache[K, V]) MaxSize() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.store.maxSize
}

func (c *Cache[K, V]) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.store.len()
}

// handleFor finds or creates the handle for key. Creation happens under mu
// so two callers racing on a never-seen key still share one handle.
func (c *Cache[K, V]) handleFor(key K) *inFlightHandle {
	c.mu.Lock()
	defer c.mu.Unlock()

	handle, ok := c.handles[key]
	if !ok {
		handle = newInFlightHandle()
		c.handles[key] = handle
	}
	return handle
}

// handleCurrent reports whether handle is still the registered handle for
// key. It goes stale when the key is evicted or invalidated after handleFor
// returned but before the handle's lock was taken.
func (c *Cache[K, V]) handleCurrent(key K, handle *inFlightHandle) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.handles[key] == handle
}

func (c *Cache[K, V]) lookup(key K) (V, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.store.get(key)
}

func (c *Cache[K, V]) awaitAndReport(handle *inFlightHandle, key K, onComplete Callback[V]) {
	handle.awaitIdle()

	// The waiter did not perform any I/O itself, so it reports
	// OutcomeCached even when the fetch it waited on failed and the store
	// holds nothing.
	value, ok := c.lookup(key)
	onComplete(value, ok, OutcomeCached)
}

func (c *Cache[K, V]) fetchAndStore(ctx context.Context, handle *inFlightHandle, key K, url string, onComplete Callback[V]) {
	logger := logging.FromContext(ctx)

	var value V
	var stored bool
	outcome := OutcomeBadRequest

	payload, statusCode, err := c.fetcher.Fetch(ctx, url)
	switch {
	case err != nil:
		logger.ErrorContext(ctx, "Fetch failed", "error", err.Error())
	case statusCode < 200 || statusCode >= 300:
		logger.InfoContext(ctx, "Fetch returned non-success status", "statusCode", statusCode)
	case len(payload) == 0:
		logger.InfoContext(ctx, "Fetch returned empty payload", "statusCode", statusCode)
	default:
		processed, err := c.process(ctx, payload)
		if err != nil {
			logger.ErrorContext(ctx, "Failed to process payload", "error", err.Error())
			outcome = OutcomeProcessingFailed
			break
		}

		c.mu.Lock()
		c.store.set(key, processed)
		c.mu.Unlock()

		value = processed
		stored = true
		outcome = OutcomeFetched
	}

	handle.release()

	onComplete(value, stored, outcome)
}
