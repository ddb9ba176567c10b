package core

import "context"

// WorkUnit is the unit of work executed by a Worker. The context passed to it
// carries the cooperative cancellation signal; long-running units should
// observe ctx.Done() at checkpoints of their own choosing.
type WorkUnit func(ctx context.Context) (any, error)

// =============================================================================
// State: Execution lifecycle of a submitted unit
// =============================================================================

type State int32

const (
	// StatePending: submitted but not yet started.
	StatePending State = iota

	// StateRunning: the unit is executing on its goroutine.
	StateRunning

	// StateSucceeded: the unit returned normally.
	StateSucceeded

	// StateFailed: the unit returned an error or panicked.
	StateFailed

	// StateCancelled: cancellation was requested and the unit honored it.
	StateCancelled
)

// Terminal reports whether s is a final state. Terminal states are monotonic:
// once reached, a unit's state never changes again.
func (s State) Terminal() bool { return s >= StateSucceeded }

func (s State) String() string {
	switch s {
	case StatePending:
		return "pending"
	case StateRunning:
		return "running"
	case StateSucceeded:
		return "succeeded"
	case StateFailed:
		return "failed"
	case StateCancelled:
		return "cancelled"
	default:
		return "unknown"
	}
}

// ExecutionResult is the outcome of a WorkUnit. It is written exactly once by
// the worker goroutine before the handle's done channel closes, so readers
// never observe a partially written result.
type ExecutionResult struct {
	// State is the terminal state reached (StateRunning on a Join timeout).
	State State

	// Value is the unit's return value when State is StateSucceeded.
	Value any

	// Err is a *WorkerError when State is StateFailed, or the cancellation
	// error when State is StateCancelled.
	Err error
}
