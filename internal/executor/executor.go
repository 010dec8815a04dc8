package executor

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"sync"
	"sync/atomic"
)

// State is the lifecycle state of an Executor.
type State int

const (
	// StateActive accepts new units.
	StateActive State = iota
	// StateShuttingDown rejects new units and drains the queue.
	StateShuttingDown
	// StateShutDown has stopped the coordinator.
	StateShutDown
)

func (s State) String() string {
	switch s {
	case StateActive:
		return "active"
	case StateShuttingDown:
		return "shutting_down"
	case StateShutDown:
		return "shut_down"
	default:
		return "unknown"
	}
}

// Option configures an Executor.
type Option func(*Executor)

// WithLogger sets the logger for task lifecycle events.
//
// Default: slog.Default()
func WithLogger(l *slog.Logger) Option {
	return func(e *Executor) {
		e.logger = l
	}
}

// WithClock sets the clock that issues task ids.
func WithClock(c *Clock) Option {
	return func(e *Executor) {
		e.clock = c
	}
}

// Executor runs units either inline on the submitting goroutine or, in
// async mode, through a single coordinator goroutine fed by a FIFO queue.
//
// Thread-safety model:
//   - AddOrExecute, the Wait methods, ShutDown, ClearError and Close are
//     safe from any goroutine
//   - completion callbacks of async units may arrive on any goroutine
//   - unit methods are never called with the executor mutex held
//
// INVARIANTS:
//   - task ids are strictly increasing in submission order
//   - the first failure becomes the sticky status; later failures are logged
//   - while the status is an error no unit is started
type Executor struct {
	async  bool
	logger *slog.Logger
	clock  *Clock
	queue  *taskQueue

	mu         sync.Mutex
	state      State
	closed     bool
	status     error
	unfinished map[uint64]*task
	order      []uint64 // ids of unfinished tasks, ascending
	waiters    map[uint64][]chan struct{}

	stopOnce sync.Once
	exited   chan struct{}
}

// New creates an executor. In async mode a coordinator goroutine is
// started; it runs until ShutDown or Close.
func New(async bool, opts ...Option) *Executor {
	e := &Executor{
		async:      async,
		logger:     slog.Default(),
		clock:      NewClock(),
		queue:      newTaskQueue(),
		unfinished: make(map[uint64]*task),
		waiters:    make(map[uint64][]chan struct{}),
		exited:     make(chan struct{}),
	}
	for _, opt := range opts {
		opt(e)
	}

	if async {
		go e.run()
	} else {
		close(e.exited)
	}
	return e
}

// Async reports whether the executor runs units on its coordinator.
func (e *Executor) Async() bool { return e.async }

// Status returns the sticky error, or nil.
func (e *Executor) Status() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.status
}

// State returns the lifecycle state.
func (e *Executor) State() State {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state
}

// Unfinished returns the number of submitted tasks that are not done.
func (e *Executor) Unfinished() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.order)
}

// AddOrExecute submits u and returns its task id.
//
// If the executor is shutting down, closed, or holds a sticky error, u is
// aborted with that error before AddOrExecute returns. A failing Prepare
// aborts u and becomes the sticky error. In sync mode u runs before
// AddOrExecute returns and its failure is returned as a *TaskError; in
// async mode u is queued and failures surface through the Wait methods.
func (e *Executor) AddOrExecute(u Unit) (uint64, error) {
	e.mu.Lock()
	err := e.admitLocked()
	e.mu.Unlock()
	if err != nil {
		u.Abort(err)
		return 0, err
	}

	if err := u.Prepare(); err != nil {
		te := &TaskError{Unit: u.String(), Err: err}
		e.mu.Lock()
		aborted := e.recordLocked(te)
		e.notifyLocked()
		e.mu.Unlock()
		abortAll(aborted, te)
		u.Abort(err)
		return 0, te
	}

	e.mu.Lock()
	if err := e.admitLocked(); err != nil {
		e.mu.Unlock()
		u.Abort(err)
		return 0, err
	}
	t := &task{id: e.clock.Next(), unit: u, state: TaskPending}
	e.unfinished[t.id] = t
	e.order = append(e.order, t.id)
	if e.async {
		e.queue.Enqueue(t)
		e.mu.Unlock()
		e.logger.Debug("task queued", "id", t.id, "unit", u.String())
		return t.id, nil
	}
	t.state = TaskScheduled
	e.mu.Unlock()

	e.logger.Debug("task running inline", "id", t.id, "unit", u.String())
	if err := e.complete(t, e.runInline(t)); err != nil {
		return t.id, err
	}
	return t.id, nil
}

// admitLocked returns the reason new units are rejected, if any.
func (e *Executor) admitLocked() error {
	switch {
	case e.closed:
		return ErrClosed
	case e.state != StateActive:
		return ErrShutDown
	default:
		return e.status
	}
}

// runInline runs t on the calling goroutine. Async units are awaited.
func (e *Executor) runInline(t *task) error {
	au, ok := t.unit.(AsyncUnit)
	if !ok {
		return t.unit.Run()
	}
	result := make(chan error, 1)
	au.RunAsync(e.callback(t, func(err error) { result <- err }))
	return <-result
}

// callback wraps a completion function so a second call panics.
func (e *Executor) callback(t *task, f func(error)) func(error) {
	var called atomic.Bool
	return func(err error) {
		if called.Swap(true) {
			panic(fmt.Sprintf("executor: task %d (%s) completed twice", t.id, t.unit))
		}
		f(err)
	}
}

// run is the coordinator loop. It dispatches queued tasks in FIFO order
// and returns once the queue is closed and empty.
func (e *Executor) run() {
	defer close(e.exited)
	e.logger.Debug("executor coordinator starting")

	for {
		if t, ok := e.queue.TryDequeue(); ok {
			e.dispatch(t)
			continue
		}
		<-e.queue.Wait()
		if e.queue.Closed() && e.queue.Len() == 0 {
			e.logger.Debug("executor coordinator stopping")
			return
		}
	}
}

// dispatch starts t. Async units are not awaited: several tasks may be
// scheduled at once.
func (e *Executor) dispatch(t *task) {
	e.mu.Lock()
	if t.state != TaskPending {
		e.mu.Unlock()
		return
	}
	if e.status != nil || e.closed {
		err := e.status
		if err == nil {
			err = ErrClosed
		}
		e.finishLocked(t)
		e.notifyLocked()
		e.mu.Unlock()
		t.unit.Abort(err)
		return
	}
	t.state = TaskScheduled
	e.mu.Unlock()

	e.logger.Debug("task scheduled", "id", t.id, "unit", t.unit.String())
	if au, ok := t.unit.(AsyncUnit); ok {
		au.RunAsync(e.callback(t, func(err error) { e.complete(t, err) }))
		return
	}
	e.complete(t, t.unit.Run())
}

// complete marks t done with its result and wakes waiters. It returns the
// task's error as a *TaskError.
func (e *Executor) complete(t *task, err error) error {
	var te *TaskError
	var aborted []*task

	e.mu.Lock()
	e.finishLocked(t)
	if err != nil {
		te = &TaskError{TaskID: t.id, Unit: t.unit.String(), Err: err}
		aborted = e.recordLocked(te)
	}
	e.notifyLocked()
	e.mu.Unlock()

	if te == nil {
		e.logger.Debug("task done", "id", t.id, "unit", t.unit.String())
		return nil
	}
	abortAll(aborted, te)
	return te
}

// recordLocked makes te the sticky status unless one is already set. The
// first failure also removes every queued task; the caller aborts them
// once the mutex is released.
func (e *Executor) recordLocked(te *TaskError) []*task {
	if e.status != nil {
		e.logger.Warn("task failed while executor holds an error",
			"id", te.TaskID,
			"unit", te.Unit,
			"error", te.Err,
			"status", e.status,
		)
		return nil
	}
	e.status = te
	e.logger.Error("task failed",
		"id", te.TaskID,
		"unit", te.Unit,
		"error", te.Err,
	)

	pending := e.queue.Drain()
	for _, p := range pending {
		e.finishLocked(p)
	}
	if len(pending) > 0 {
		e.logger.Info("aborting queued tasks", "count", len(pending))
	}
	return pending
}

func abortAll(tasks []*task, err error) {
	for _, t := range tasks {
		t.unit.Abort(err)
	}
}

// finishLocked moves t to done and drops it from the unfinished set.
func (e *Executor) finishLocked(t *task) {
	t.state = TaskDone
	delete(e.unfinished, t.id)
	if i, ok := slices.BinarySearch(e.order, t.id); ok {
		e.order = slices.Delete(e.order, i, i+1)
	}
}

// doneLocked reports whether every task with an id up to id is done.
func (e *Executor) doneLocked(id uint64) bool {
	return len(e.order) == 0 || e.order[0] > id
}

// notifyLocked wakes the waiters whose condition now holds. An error or a
// closed executor wakes everyone.
func (e *Executor) notifyLocked() {
	release := e.status != nil || e.closed
	for id, chans := range e.waiters {
		if !release && !e.doneLocked(id) {
			continue
		}
		for _, ch := range chans {
			close(ch)
		}
		delete(e.waiters, id)
	}
}

// WaitForNode blocks until the task with the given id and every earlier
// task are done, or the status becomes an error. It returns the status.
func (e *Executor) WaitForNode(id uint64) error {
	return e.wait(context.Background(), id, false)
}

// WaitForAllPendingNodes blocks until every task submitted before the call
// is done, or the status becomes an error. It returns the status.
func (e *Executor) WaitForAllPendingNodes() error {
	return e.wait(context.Background(), 0, true)
}

// Wait is WaitForAllPendingNodes with cancellation. It returns ctx.Err()
// if ctx is done first.
func (e *Executor) Wait(ctx context.Context) error {
	return e.wait(ctx, 0, true)
}

func (e *Executor) wait(ctx context.Context, id uint64, all bool) error {
	e.mu.Lock()
	if all {
		id = e.clock.Current()
	}
	if e.status != nil || e.closed || e.doneLocked(id) {
		defer e.mu.Unlock()
		return e.waitResultLocked()
	}
	ch := make(chan struct{})
	e.waiters[id] = append(e.waiters[id], ch)
	e.mu.Unlock()

	select {
	case <-ch:
	case <-ctx.Done():
		return ctx.Err()
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	return e.waitResultLocked()
}

func (e *Executor) waitResultLocked() error {
	if e.status != nil {
		return e.status
	}
	if e.closed {
		return ErrClosed
	}
	return nil
}

// ClearError resets the sticky status so new units are accepted again.
// Units aborted because of the error stay aborted.
func (e *Executor) ClearError() {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.status != nil {
		e.logger.Info("executor error cleared", "status", e.status)
	}
	e.status = nil
}

// ShutDown stops accepting units, waits for every pending unit, then stops
// the coordinator. It returns the final status. Calling it again returns
// the status without waiting.
func (e *Executor) ShutDown() error {
	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return ErrClosed
	}
	if e.state == StateActive {
		e.state = StateShuttingDown
		e.logger.Debug("executor shutting down", "unfinished", len(e.order))
	}
	e.mu.Unlock()

	err := e.WaitForAllPendingNodes()

	e.mu.Lock()
	e.state = StateShutDown
	e.mu.Unlock()

	e.stop()
	<-e.exited
	return err
}

// Close aborts every queued unit with ErrClosed and stops the coordinator
// without waiting. Units already scheduled keep running; their completions
// are still recorded but nobody waits for them. Use ShutDown unless the
// process is exiting.
func (e *Executor) Close() {
	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return
	}
	e.closed = true
	e.state = StateShutDown
	pending := e.queue.Drain()
	for _, p := range pending {
		e.finishLocked(p)
	}
	e.notifyLocked()
	e.mu.Unlock()

	e.stop()
	abortAll(pending, ErrClosed)
	if len(pending) > 0 {
		e.logger.Warn("executor closed with queued tasks", "aborted", len(pending))
	}
}

func (e *Executor) stop() {
	e.stopOnce.Do(e.queue.Close)
}
