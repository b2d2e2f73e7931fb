package cache

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type testKey string

func (k testKey) SourceURL() (string, bool) {
	if k == "" {
		return "", false
	}
	return fmt.Sprintf("https://example.com/items/%s", string(k)), true
}

type stubFetcher struct {
	mu         sync.Mutex
	calls      int
	payload    []byte
	statusCode int
	err        error

	// gate, when set, blocks every fetch until the channel is closed
	gate chan struct{}
}

func (f *stubFetcher) Fetch(ctx context.Context, url string) ([]byte, int, error) {
	f.mu.Lock()
	f.calls++
	gate := f.gate
	f.mu.Unlock()

	if gate != nil {
		<-gate
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	return f.payload, f.statusCode, f.err
}

func (f *stubFetcher) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

func (f *stubFetcher) setResponse(payload []byte, statusCode int, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.payload = payload
	f.statusCode = statusCode
	f.err = err
}

func passthroughProcess(ctx context.Context, payload []byte) (string, error) {
	return string(payload), nil
}

func rejectingProcess(ctx context.Context, payload []byte) (string, error) {
	return "", errors.New("unusable payload")
}

func TestFetchMissThenHit(t *testing.T) {
	t.Parallel()

	fetcher := &stubFetcher{payload: []byte("value1"), statusCode: 200}
	c := New[testKey](10, fetcher, passthroughProcess)

	value, ok, outcome := c.FetchSync(context.Background(), testKey("k1"))
	require.True(t, ok)
	assert.Equal(t, "value1", value)
	assert.Equal(t, OutcomeFetched, outcome)
	assert.Equal(t, 1, fetcher.callCount())

	value, ok, outcome = c.FetchSync(context.Background(), testKey("k1"))
	require.True(t, ok)
	assert.Equal(t, "value1", value)
	assert.Equal(t, OutcomeCached, outcome)
	assert.Equal(t, 1, fetcher.callCount(), "cached value must not trigger another fetch")
}

func TestConcurrentFetchesShareOneCall(t *testing.T) {
	t.Parallel()

	const callers = 16

	gate := make(chan struct{})
	fetcher := &stubFetcher{payload: []byte("shared"), statusCode: 200, gate: gate}
	c := New[testKey](10, fetcher, passthroughProcess)

	type result struct {
		value   string
		ok      bool
		outcome Outcome
	}
	results := make(chan result, callers)

	// Fetch returns before the fetch itself completes, and the claim is
	// taken synchronously, so every later call is guaranteed to find the
	// fetch outstanding.
	for i := 0; i < callers; i++ {
		c.Fetch(context.Background(), testKey("k1"), func(value string, ok bool, outcome Outcome) {
			results <- result{value: value, ok: ok, outcome: outcome}
		})
	}

	close(gate)

	fetched := 0
	waited := 0
	for i := 0; i < callers; i++ {
		res := <-results
		require.True(t, res.ok)
		assert.Equal(t, "shared", res.value)

		switch res.outcome {
		case OutcomeFetched:
			fetched++
		case OutcomeCached:
			waited++
		default:
			t.Fatalf("unexpected outcome %q", res.outcome)
		}
	}

	assert.Equal(t, 1, fetcher.callCount())
	assert.Equal(t, 1, fetched)
	assert.Equal(t, callers-1, waited)
}

// ctxAwareFetcher aborts when the fetch context is canceled, like a real
// HTTP client would.
type ctxAwareFetcher struct {
	mu    sync.Mutex
	calls int
	gate  chan struct{}
}

func (f *ctxAwareFetcher) Fetch(ctx context.Context, url string) ([]byte, int, error) {
	f.mu.Lock()
	f.calls++
	f.mu.Unlock()

	select {
	case <-ctx.Done():
		return nil, -1, ctx.Err()
	case <-f.gate:
		return []byte("value"), 200, nil
	}
}

func (f *ctxAwareFetcher) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

func TestCallerCancellationDoesNotAbortFetch(t *testing.T) {
	t.Parallel()

	gate := make(chan struct{})
	fetcher := &ctxAwareFetcher{gate: gate}
	c := New[testKey](10, fetcher, passthroughProcess)

	type result struct {
		value   string
		ok      bool
		outcome Outcome
	}
	fetcherDone := make(chan result, 1)
	waiterDone := make(chan result, 1)

	ctx, cancel := context.WithCancel(context.Background())

	c.Fetch(ctx, testKey("k1"), func(value string, ok bool, outcome Outcome) {
		fetcherDone <- result{value: value, ok: ok, outcome: outcome}
	})
	c.Fetch(context.Background(), testKey("k1"), func(value string, ok bool, outcome Outcome) {
		waiterDone <- result{value: value, ok: ok, outcome: outcome}
	})

	// The claiming caller goes away mid-fetch; the fetch keeps running
	cancel()
	close(gate)

	res := <-fetcherDone
	require.True(t, res.ok)
	assert.Equal(t, "value", res.value)
	assert.Equal(t, OutcomeFetched, res.outcome)

	res = <-waiterDone
	require.True(t, res.ok, "a waiter must not lose its value because the claiming caller canceled")
	assert.Equal(t, "value", res.value)
	assert.Equal(t, OutcomeCached, res.outcome)

	assert.Equal(t, 1, fetcher.callCount())
}

func TestStaleHandleIsNotReused(t *testing.T) {
	t.Parallel()

	fetcher := &stubFetcher{payload: []byte("value"), statusCode: 200}
	c := New[testKey](10, fetcher, passthroughProcess)

	stale := c.handleFor(testKey("k1"))
	c.RemoveValue(testKey("k1"))

	assert.False(t, c.handleCurrent(testKey("k1"), stale))

	fresh := c.handleFor(testKey("k1"))
	assert.NotSame(t, stale, fresh)
	assert.True(t, c.handleCurrent(testKey("k1"), fresh))

	// A fetch after the swap resolves on the fresh handle
	_, ok, outcome := c.FetchSync(context.Background(), testKey("k1"))
	require.True(t, ok)
	assert.Equal(t, OutcomeFetched, outcome)
}

func TestWaitersWakeOnFailedFetch(t *testing.T) {
	t.Parallel()

	gate := make(chan struct{})
	fetcher := &stubFetcher{err: errors.New("connection refused"), gate: gate}
	c := New[testKey](10, fetcher, passthroughProcess)

	type result struct {
		ok      bool
		outcome Outcome
	}
	first := make(chan result, 1)
	second := make(chan result, 1)

	c.Fetch(context.Background(), testKey("k1"), func(value string, ok bool, outcome Outcome) {
		first <- result{ok: ok, outcome: outcome}
	})
	c.Fetch(context.Background(), testKey("k1"), func(value string, ok bool, outcome Outcome) {
		second <- result{ok: ok, outcome: outcome}
	})

	close(gate)

	res := <-first
	assert.False(t, res.ok)
	assert.Equal(t, OutcomeBadRequest, res.outcome)

	res = <-second
	assert.False(t, res.ok)
	assert.Equal(t, OutcomeCached, res.outcome, "a waiter reports the cached outcome even when the fetch it waited on failed")

	assert.Equal(t, 1, fetcher.callCount())

	// The failure is not cached, so the next call retries
	fetcher.setResponse([]byte("recovered"), 200, nil)
	value, ok, outcome := c.FetchSync(context.Background(), testKey("k1"))
	require.True(t, ok)
	assert.Equal(t, "recovered", value)
	assert.Equal(t, OutcomeFetched, outcome)
	assert.Equal(t, 2, fetcher.callCount())
}

func TestFetchNonSuccessStatus(t *testing.T) {
	t.Parallel()

	fetcher := &stubFetcher{payload: []byte(`{"message":"Not Found"}`), statusCode: 404}
	c := New[testKey](10, fetcher, passthroughProcess)

	_, ok, outcome := c.FetchSync(context.Background(), testKey("k1"))
	assert.False(t, ok)
	assert.Equal(t, OutcomeBadRequest, outcome)
	assert.Equal(t, 0, c.Len(), "failed fetches must not be stored")

	// Retry permitted on the next call
	c.FetchSync(context.Background(), testKey("k1"))
	assert.Equal(t, 2, fetcher.callCount())
}

func TestFetchEmptyPayload(t *testing.T) {
	t.Parallel()

	fetcher := &stubFetcher{payload: nil, statusCode: 200}
	c := New[testKey](10, fetcher, passthroughProcess)

	_, ok, outcome := c.FetchSync(context.Background(), testKey("k1"))
	assert.False(t, ok)
	assert.Equal(t, OutcomeBadRequest, outcome)
	assert.Equal(t, 0, c.Len())
}

func TestFetchProcessingFailure(t *testing.T) {
	t.Parallel()

	fetcher := &stubFetcher{payload: []byte("garbage"), statusCode: 200}
	c := New[testKey](10, fetcher, rejectingProcess)

	_, ok, outcome := c.FetchSync(context.Background(), testKey("k1"))
	assert.False(t, ok)
	assert.Equal(t, OutcomeProcessingFailed, outcome)
	assert.Equal(t, 0, c.Len(), "rejected payloads must not be stored")
	assert.Equal(t, 1, fetcher.callCount())
}

func TestFetchNoSource(t *testing.T) {
	t.Parallel()

	fetcher := &stubFetcher{payload: []byte("value"), statusCode: 200}
	c := New[testKey](10, fetcher, passthroughProcess)

	_, ok, outcome := c.FetchSync(context.Background(), testKey(""))
	assert.False(t, ok)
	assert.Equal(t, OutcomeNoSource, outcome)
	assert.Equal(t, 0, fetcher.callCount())
}

func TestEvictionStartsFreshFetch(t *testing.T) {
	t.Parallel()

	fetcher := &stubFetcher{payload: []byte("value"), statusCode: 200}
	c := New[testKey](2, fetcher, passthroughProcess)

	c.FetchSync(context.Background(), testKey("k1"))
	c.FetchSync(context.Background(), testKey("k2"))
	c.FetchSync(context.Background(), testKey("k3"))
	require.Equal(t, 3, fetcher.callCount())
	require.Equal(t, 2, c.Len())

	// k1 was evicted along with its coordination state, so this is a
	// fresh fetch rather than a hit or a wait
	_, ok, outcome := c.FetchSync(context.Background(), testKey("k1"))
	require.True(t, ok)
	assert.Equal(t, OutcomeFetched, outcome)
	assert.Equal(t, 4, fetcher.callCount())
}

func TestRemoveValue(t *testing.T) {
	t.Parallel()

	fetcher := &stubFetcher{payload: []byte("value"), statusCode: 200}
	c := New[testKey](10, fetcher, passthroughProcess)

	c.FetchSync(context.Background(), testKey("k1"))

	value, ok := c.RemoveValue(testKey("k1"))
	require.True(t, ok)
	assert.Equal(t, "value", value)
	assert.Equal(t, 0, c.Len())

	_, ok = c.RemoveValue(testKey("k1"))
	assert.False(t, ok)

	// The next request starts over
	_, ok, outcome := c.FetchSync(context.Background(), testKey("k1"))
	require.True(t, ok)
	assert.Equal(t, OutcomeFetched, outcome)
	assert.Equal(t, 2, fetcher.callCount())
}

func TestSetMaxSize(t *testing.T) {
	t.Parallel()

	fetcher := &stubFetcher{payload: []byte("value"), statusCode: 200}
	c := New[testKey](5, fetcher, passthroughProcess)
	require.Equal(t, 5, c.MaxSize())

	c.FetchSync(context.Background(), testKey("k1"))
	c.FetchSync(context.Background(), testKey("k2"))
	c.FetchSync(context.Background(), testKey("k3"))
	require.Equal(t, 3, c.Len())

	c.SetMaxSize(1)
	assert.Equal(t, 1, c.MaxSize())
	assert.Equal(t, 1, c.Len())

	// Only the newest insertion survives the shrink
	_, _, outcome := c.FetchSync(context.Background(), testKey("k3"))
	assert.Equal(t, OutcomeCached, outcome)
}
