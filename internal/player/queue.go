package player

import "sync"

// loopQueue is an unbounded FIFO of closures feeding the event loop. Pushes
// never block, so backend goroutines can always post, even to a loop that
// has already stopped.
type loopQueue struct {
	mu     sync.Mutex
	items  []func()
	wake   chan struct{}
	closed bool
}

func newLoopQueue() *loopQueue {
	return &loopQueue{wake: make(chan struct{}, 1)}
}

// push appends fn and reports whether it was accepted.
func (q *loopQueue) push(fn func()) bool {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return false
	}
	q.items = append(q.items, fn)
	q.mu.Unlock()

	select {
	case q.wake <- struct{}{}:
	default:
	}
	return true
}

// pop removes and returns the oldest item.
func (q *loopQueue) pop() (func(), bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.items) == 0 {
		return nil, false
	}
	fn := q.items[0]
	q.items[0] = nil
	q.items = q.items[1:]
	return fn, true
}

func (q *loopQueue) close() {
	q.mu.Lock()
	q.closed = true
	q.items = nil
	q.mu.Unlock()
}
