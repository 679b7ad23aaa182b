package resilience

import (
	"fmt"
	"sync"
)

// Queue is a bounded FIFO buffer with drop-oldest-on-full semantics. It
// backs the publisher's outbound message buffer and deferred write
// operations. Evictions are counted so silent drops stay observable.
type Queue[T any] struct {
	mu      sync.Mutex
	items   []T
	cap     int
	dropped uint64
}

// NewQueue creates a queue with the given capacity. Capacity must be
// positive; anything else is a construction error, not a runtime condition.
func NewQueue[T any](capacity int) (*Queue[T], error) {
	if capacity <= 0 {
		return nil, fmt.Errorf("queue capacity must be positive, got %d", capacity)
	}
	return &Queue[T]{
		items: make([]T, 0, capacity),
		cap:   capacity,
	}, nil
}

// Enqueue appends v at the tail. When the queue is full the oldest entry is
// evicted first; the return value reports whether an eviction happened.
func (q *Queue[T]) Enqueue(v T) (evicted bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if len(q.items) >= q.cap {
		q.items = q.items[1:]
		q.dropped++
		evicted = true
	}
	q.items = append(q.items, v)
	return evicted
}

// Dequeue removes and returns the oldest entry.
func (q *Queue[T]) Dequeue() (T, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	var zero T
	if len(q.items) == 0 {
		return zero, false
	}
	v := q.items[0]
	q.items[0] = zero // release reference
	q.items = q.items[1:]
	return v, true
}

// Peek returns the oldest entry without removing it.
func (q *Queue[T]) Peek() (T, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	var zero T
	if len(q.items) == 0 {
		return zero, false
	}
	return q.items[0], true
}

// Len returns the current number of buffered entries.
func (q *Queue[T]) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}

// Cap returns the configured capacity.
func (q *Queue[T]) Cap() int { return q.cap }

// QueueStats reports queue occupancy and total evictions.
type QueueStats struct {
	Size    int    `json:"size"`
	Cap     int    `json:"cap"`
	Dropped uint64 `json:"dropped"`
}

// Stats returns occupancy and the eviction counter.
func (q *Queue[T]) Stats() QueueStats {
	q.mu.Lock()
	defer q.mu.Unlock()
	return QueueStats{Size: len(q.items), Cap: q.cap, Dropped: q.dropped}
}
