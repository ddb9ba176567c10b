package threader

import "github.com/threadwell/threader/core"

// Re-export commonly used types from core package for convenience.
// This allows users to import only the threader package for most use cases.

// WorkUnit is the unit of work executed by a Worker.
type WorkUnit = core.WorkUnit

// ExecutionResult is the one-shot outcome of a submitted unit.
type ExecutionResult = core.ExecutionResult

// State is the execution lifecycle state of a submitted unit.
type State = core.State

// Handle references the result slot of one submitted unit.
type Handle = core.Handle

// Gate bounds how many units may run simultaneously.
type Gate = core.Gate

// Token represents one unit of gate capacity.
type Token = core.Token

// Worker starts units on dedicated goroutines and captures their outcomes.
type Worker = core.Worker

// Coordinator is a shared one-shot cooperative stop signal.
type Coordinator = core.Coordinator

// Logger is the structured logging interface used across the library.
type Logger = core.Logger

// Field is a structured logging key-value pair.
type Field = core.Field

// State constants
const (
	StatePending   State = core.StatePending
	StateRunning   State = core.StateRunning
	StateSucceeded State = core.StateSucceeded
	StateFailed    State = core.StateFailed
	StateCancelled State = core.StateCancelled
)

// Error types
type (
	// TimeoutError reports an elapsed Acquire or Join deadline.
	TimeoutError = core.TimeoutError

	// WorkerError wraps a failure raised by a submitted unit.
	WorkerError = core.WorkerError

	// InvalidTokenError reports gate token misuse.
	InvalidTokenError = core.InvalidTokenError
)

// Convenience constructors and helpers re-exported from core.
var (
	NewGate        = core.NewGate
	NewWorker      = core.NewWorker
	NewCoordinator = core.NewCoordinator
	IsTimeout      = core.IsTimeout
	F              = core.F
)
