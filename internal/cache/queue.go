package cache

import "container/list"

// keyQueue records insertion order for eviction. The front holds the oldest
// key. A side map from key to list element gives O(1) arbitrary removal.
type keyQueue[K comparable] struct {
	order    *list.List
	elements map[K]*list.Element
}

func newKeyQueue[K comparable]() *keyQueue[K] {
	return &keyQueue[K]{
		order:    list.New(),
		elements: make(map[K]*list.Element),
	}
}

// pushBack appends the key to the queue. Keys already in the queue keep
// their original position.
func (q *keyQueue[K]) pushBack(key K) {
	if _, ok := q.elements[key]; ok {
		return
	}
	q.elements[key] = q.order.PushBack(key)
}

func (q *keyQueue[K]) popFront() (K, bool) {
	front := q.order.Front()
	if front == nil {
		var zero K
		return zero, false
	}

	key := front.Value.(K)
	q.order.Remove(front)
	delete(q.elements, key)
	return key, true
}

func (q *keyQueue[K]) remove(key K) bool {
	element, ok := q.elements[key]
	if !ok {
		return false
	}

	q.order.Remove(element)
	delete(q.elements, key)
	return true
}

func (q *keyQueue[K]) len() int {
	return q.order.Len()
}
