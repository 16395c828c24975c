// Package queue provides the bounded span buffer between producers and the
// export worker. Enqueue never blocks: when the buffer is full the oldest
// span is evicted, on the theory that fresh telemetry is worth more than
// stale telemetry.
package queue

import (
	"sync"

	"github.com/exesolution-com/tracepipe/trace"
)

// Queue is a fixed-capacity FIFO ring buffer. Safe for concurrent use.
type Queue struct {
	mu      sync.Mutex
	buf     []*trace.Span
	head    int
	size    int
	evicted uint64
}

// New builds a queue holding at most capacity spans. Capacities below one
// are raised to one.
func New(capacity int) *Queue {
	if capacity < 1 {
		capacity = 1
	}
	return &Queue{buf: make([]*trace.Span, capacity)}
}

// Capacity returns the fixed buffer size.
func (q *Queue) Capacity() int {
	return len(q.buf)
}

// Len returns the number of buffered spans.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.size
}

// Evictions returns the total number of spans dropped to make room, both
// from Enqueue overflow and RequeueFront overflow.
func (q *Queue) Evictions() uint64 {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.evicted
}

// Enqueue appends a span, evicting the oldest buffered span when full.
// Returns true when an eviction happened. Never blocks.
func (q *Queue) Enqueue(s *trace.Span) bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	evicted := false
	if q.size == len(q.buf) {
		q.buf[q.head] = nil
		q.head = (q.head + 1) % len(q.buf)
		q.size--
		q.evicted++
		evicted = true
	}
	q.buf[(q.head+q.size)%len(q.buf)] = s
	q.size++
	return evicted
}

// Drain removes and returns up to max spans in FIFO order. Never blocks;
// returns nil when the queue is empty or max is not positive.
func (q *Queue) Drain(max int) []*trace.Span {
	q.mu.Lock()
	defer q.mu.Unlock()
	n := min(max, q.size)
	if n <= 0 {
		return nil
	}
	out := make([]*trace.Span, 0, n)
	for i := 0; i < n; i++ {
		out = append(out, q.buf[q.head])
		q.buf[q.head] = nil
		q.head = (q.head + 1) % len(q.buf)
	}
	q.size -= n
	return out
}

// RequeueFront puts a drained batch back at the head of the queue, making
// it the oldest again so retry preserves FIFO export order. If the batch no
// longer fits alongside what was enqueued meanwhile, the overflow is evicted
// oldest-first (from the batch itself before anything newer) and counted.
// Returns the number of spans evicted.
func (q *Queue) RequeueFront(spans []*trace.Span) int {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(spans) == 0 {
		return 0
	}

	capacity := len(q.buf)
	dropped := 0
	front := spans
	if overflow := len(spans) + q.size - capacity; overflow > 0 {
		fromBatch := min(overflow, len(spans))
		front = spans[fromBatch:]
		dropped += fromBatch
		for i := 0; i < overflow-fromBatch; i++ {
			q.buf[q.head] = nil
			q.head = (q.head + 1) % capacity
			q.size--
			dropped++
		}
	}

	next := make([]*trace.Span, capacity)
	n := copy(next, front)
	for i := 0; i < q.size; i++ {
		next[n] = q.buf[(q.head+i)%capacity]
		n++
	}
	q.buf = next
	q.head = 0
	q.size = n
	q.evicted += uint64(dropped)
	return dropped
}
