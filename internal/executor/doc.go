// Package executor runs units of work in submission order, either inline or
// on a single coordinator goroutine.
//
// Every submitted unit gets a task id from the executor's Clock. Callers
// wait on an id with WaitForNode, or on everything submitted so far with
// WaitForAllPendingNodes. The first failing unit becomes the executor's
// sticky status: queued units are aborted with it, new units are rejected
// with it, and every wait returns it until ClearError is called.
//
// Units that implement AsyncUnit complete through a callback. The
// coordinator starts them and moves on without waiting, so several async
// units may be in flight at once.
package executor
