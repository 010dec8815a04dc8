package executor

// Unit is a piece of work submitted to an Executor, such as dispatching a
// kernel or copying a value between devices.
type Unit interface {
	// Prepare validates the unit before it is accepted. A failing unit is
	// aborted with the returned error and never runs.
	Prepare() error

	// Run executes the unit and blocks until it is done.
	Run() error

	// Abort is called with a non-nil error when the unit will never run.
	// A unit that would have produced values should poison them here.
	Abort(err error)

	// String describes the unit for logs and errors.
	String() string
}

// AsyncUnit is a Unit that completes through a callback. The executor
// calls RunAsync instead of Run; done must be called exactly once, from
// any goroutine.
type AsyncUnit interface {
	Unit
	RunAsync(done func(error))
}

// BaseUnit provides a Prepare that always succeeds. Embed it in units
// that need no validation.
type BaseUnit struct{}

// Prepare implements Unit.
func (BaseUnit) Prepare() error { return nil }

// TaskState is the lifecycle state of a submitted unit.
type TaskState int

const (
	// TaskPending means the task is queued and has not started.
	TaskPending TaskState = iota
	// TaskScheduled means the coordinator started the task.
	TaskScheduled
	// TaskDone means the task completed or was aborted.
	TaskDone
)

func (s TaskState) String() string {
	switch s {
	case TaskPending:
		return "pending"
	case TaskScheduled:
		return "scheduled"
	case TaskDone:
		return "done"
	default:
		return "unknown"
	}
}

// task is the executor's record of a submitted unit. state is guarded by
// the executor mutex.
type task struct {
	id    uint64
	unit  Unit
	state TaskState
}
