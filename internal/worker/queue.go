package worker

import (
	"sync"
	"time"
)

// fifo is an unbounded FIFO queue of photo IDs with a non-blocking push and
// a bounded-wait pop so the worker loop can observe its stop signal.
type fifo struct {
	mu    sync.Mutex
	items []string
	wake  chan struct{}
}

func newFIFO() *fifo {
	return &fifo{wake: make(chan struct{}, 1)}
}

// push appends an item. Never blocks.
func (q *fifo) push(id string) {
	q.mu.Lock()
	q.items = append(q.items, id)
	q.mu.Unlock()

	select {
	case q.wake <- struct{}{}:
	default:
	}
}

// pop removes the oldest item, waiting up to the given duration. Returns
// false on timeout or when stop closes.
func (q *fifo) pop(wait time.Duration, stop <-chan struct{}) (string, bool) {
	timer := time.NewTimer(wait)
	defer timer.Stop()

	for {
		q.mu.Lock()
		if len(q.items) > 0 {
			id := q.items[0]
			q.items = q.items[1:]
			q.mu.Unlock()
			return id, true
		}
		q.mu.Unlock()

		select {
		case <-q.wake:
			// Re-check; the item may have been taken already.
		case <-timer.C:
			return "", false
		case <-stop:
			return "", false
		}
	}
}

// depth returns the number of queued items.
func (q *fifo) depth() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}
