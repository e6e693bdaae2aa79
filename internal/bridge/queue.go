package bridge

import "sync"

// queue is an unbounded FIFO of loop tasks. push never blocks, so capture
// goroutines can post at any rate while the loop is busy.
type queue struct {
	mu     sync.Mutex
	items  []func()
	notify chan struct{}
}

func newQueue() *queue {
	return &queue{notify: make(chan struct{}, 1)}
}

func (q *queue) push(task func()) {
	q.mu.Lock()
	q.items = append(q.items, task)
	q.mu.Unlock()

	select {
	case q.notify <- struct{}{}:
	default:
	}
}

// drain removes and returns every queued task.
func (q *queue) drain() []func() {
	q.mu.Lock()
	defer q.mu.Unlock()
	items := q.items
	q.items = nil
	return items
}

func (q *queue) len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}
