package broadcast

import (
	"context"
	"sync"
	"time"
)

// fifo is an unbounded first-in first-out queue. Push never blocks; poll waits
// for an item, a timeout or cancellation.
type fifo[T any] struct {
	mu     sync.Mutex
	items  []T
	closed bool
	signal chan struct{}
}

func newFIFO[T any]() *fifo[T] {
	return &fifo[T]{signal: make(chan struct{}, 1)}
}

// push appends v and reports whether it was accepted. A closed queue drops it.
func (q *fifo[T]) push(v T) bool {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return false
	}
	q.items = append(q.items, v)
	q.mu.Unlock()

	q.wake()
	return true
}

func (q *fifo[T]) wake() {
	select {
	case q.signal <- struct{}{}:
	default:
	}
}

func (q *fifo[T]) pop() (T, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	var zero T
	if len(q.items) == 0 {
		return zero, false
	}
	v := q.items[0]
	q.items[0] = zero
	q.items = q.items[1:]
	return v, true
}

// close stops accepting new items. Items already queued can still be popped.
func (q *fifo[T]) close() {
	q.mu.Lock()
	q.closed = true
	q.mu.Unlock()
	q.wake()
}

// drained reports whether the queue is closed and empty.
func (q *fifo[T]) drained() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.closed && len(q.items) == 0
}

func (q *fifo[T]) len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}

// poll returns the head of the queue. It waits at most timeout; a timeout of
// zero or less waits until an item arrives, the queue is drained, or ctx is
// done. ok is false on timeout and on a drained queue; err is only set when
// ctx ends first.
func (q *fifo[T]) poll(ctx context.Context, timeout time.Duration) (v T, ok bool, err error) {
	if err := ctx.Err(); err != nil {
		return v, false, err
	}
	if v, ok := q.pop(); ok {
		return v, true, nil
	}

	var expired <-chan time.Time
	if timeout > 0 {
		t := time.NewTimer(timeout)
		defer t.Stop()
		expired = t.C
	}

	for {
		select {
		case <-ctx.Done():
			return v, false, ctx.Err()

		case <-expired:
			// something may have landed right at the deadline
			v, ok = q.pop()
			return v, ok, nil

		case <-q.signal:
			if v, ok := q.pop(); ok {
				return v, true, nil
			}
			if q.drained() {
				return v, false, nil
			}
		}
	}
}
