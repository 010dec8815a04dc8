package executor

import "sync"

// taskQueue is a thread-safe FIFO of pending tasks.
//
// The queue is unbounded: AddOrExecute never blocks on a slow coordinator.
// The coordinator waits on a signal channel instead of a condition variable
// so that it can also be woken by Close.
type taskQueue struct {
	mu     sync.Mutex
	tasks  []*task
	closed bool
	signal chan struct{} // buffered, size 1
}

func newTaskQueue() *taskQueue {
	return &taskQueue{
		tasks:  make([]*task, 0, 64),
		signal: make(chan struct{}, 1),
	}
}

// Enqueue appends t. Returns false if the queue is closed.
func (q *taskQueue) Enqueue(t *task) bool {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return false
	}
	q.tasks = append(q.tasks, t)

	// Non-blocking: the buffer coalesces signals.
	select {
	case q.signal <- struct{}{}:
	default:
	}
	return true
}

// TryDequeue pops the front task without blocking.
func (q *taskQueue) TryDequeue() (*task, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if len(q.tasks) == 0 {
		return nil, false
	}
	t := q.tasks[0]
	q.tasks[0] = nil // release for GC
	if len(q.tasks) == 1 {
		q.tasks = q.tasks[:0]
	} else {
		q.tasks = q.tasks[1:]
	}
	return t, true
}

// Drain removes and returns every queued task, front first.
func (q *taskQueue) Drain() []*task {
	q.mu.Lock()
	defer q.mu.Unlock()

	out := make([]*task, len(q.tasks))
	copy(out, q.tasks)
	clear(q.tasks)
	q.tasks = q.tasks[:0]
	return out
}

// Wait returns a channel that fires when tasks may be available. The
// channel is closed by Close, so it fires forever after.
func (q *taskQueue) Wait() <-chan struct{} {
	return q.signal
}

// Len returns the number of queued tasks.
func (q *taskQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.tasks)
}

// Closed reports whether Close has been called.
func (q *taskQueue) Closed() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.closed
}

// Close rejects further Enqueue calls and wakes the coordinator.
func (q *taskQueue) Close() {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return
	}
	q.closed = true
	close(q.signal)
}
