package cache

// cappedStore maps keys to values and evicts the oldest insertion once the
// configured maximum is reached. Lookups never promote entries, and writing
// to a present key keeps its position in the eviction order.
//
// The store is not synchronized. The owning Cache serializes all access.
type cappedStore[K comparable, V any] struct {
	values  map[K]V
	queue   *keyQueue[K]
	maxSize int

	// onEvict is called for every key removed to make room, while the
	// owner's lock is held. Not called for explicit invalidation.
	onEvict func(key K)
}

func newCappedStore[K comparable, V any](maxSize int, onEvict func(key K)) *cappedStore[K, V] {
	if maxSize < 1 {
		maxSize = 1
	}
	return &cappedStore[K, V]{
		values:  make(map[K]V),
		queue:   newKeyQueue[K](),
		maxSize: maxSize,
		onEvict: onEvict,
	}
}

func (s *cappedStore[K, V]) get(key K) (V, bool) {
	value, ok := s.values[key]
	return value, ok
}

func (s *cappedStore[K, V]) set(key K, value V) {
	if _, ok := s.values[key]; ok {
		// Keep the original queue position
		s.values[key] = value
		return
	}

	for s.queue.len() >= s.maxSize {
		if !s.evictOldest() {
			break
		}
	}

	s.queue.pushBack(key)
	s.values[key] = value
}

// invalidate removes the key from both the map and the queue, wherever it
// sits in the eviction order.
func (s *cappedStore[K, V]) invalidate(key K) (V, bool) {
	value, ok := s.values[key]
	if !ok {
		var zero V
		return zero, false
	}

	s.queue.remove(key)
	delete(s.values, key)
	return value, true
}

// resize updates the maximum size, evicting from the front until the store
// fits when shrinking below the current size.
func (s *cappedStore[K, V]) resize(maxSize int) {
	if maxSize < 1 {
		maxSize = 1
	}
	s.maxSize = maxSize

	for s.queue.len() > s.maxSize {
		if !s.evictOldest() {
			break
		}
	}
}

func (s *cappedStore[K, V]) evictOldest() bool {
	key, ok := s.queue.popFront()
	if !ok {
		return false
	}

	delete(s.values, key)
	if s.onEvict != nil {
		s.onEvict(key)
	}
	return true
}

func (s *cappedStore[K, V]) len() int {
	return s.queue.len()
}
