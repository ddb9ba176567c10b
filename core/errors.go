package core

import (
	"errors"
	"fmt"
	"time"
)

// =============================================================================
// Error taxonomy
// =============================================================================

// TimeoutError reports that an Acquire or Join deadline elapsed before the
// operation completed. It is not a failure of the work itself; the underlying
// unit may still be pending or running.
type TimeoutError struct {
	// Op is the operation that timed out ("acquire" or "join").
	Op string

	// Wait is how long the caller was willing to wait.
	Wait time.Duration
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("threader: %s timed out after %s", e.Op, e.Wait)
}

// IsTimeout reports whether err is (or wraps) a TimeoutError.
func IsTimeout(err error) bool {
	var te *TimeoutError
	return errors.As(err, &te)
}

// WorkerError wraps a failure raised by a submitted unit. The original
// error's dynamic type and message are preserved so callers can inspect the
// real failure at Join instead of a generic "worker failed" message.
// Unwrap returns the original error, keeping errors.Is/errors.As chains
// intact.
type WorkerError struct {
	// Worker is the display name of the worker, empty for unnamed submissions.
	Worker string

	// Kind is the dynamic type of the original error or panic value.
	Kind string

	// Message is the original error message or panic text.
	Message string

	// Stack holds the goroutine stack trace, captured only for recovered
	// panics.
	Stack []byte

	cause error
}

func newWorkerError(worker string, cause error) *WorkerError {
	return &WorkerError{
		Worker:  worker,
		Kind:    fmt.Sprintf("%T", cause),
		Message: cause.Error(),
		cause:   cause,
	}
}

func newWorkerPanicError(worker string, panicInfo any, stack []byte) *WorkerError {
	we := &WorkerError{
		Worker:  worker,
		Kind:    fmt.Sprintf("%T", panicInfo),
		Message: fmt.Sprint(panicInfo),
		Stack:   stack,
	}
	// A panic value that is itself an error stays reachable via Unwrap.
	if err, ok := panicInfo.(error); ok {
		we.cause = err
	}
	return we
}

func (e *WorkerError) Error() string {
	if e.Worker != "" {
		return fmt.Sprintf("threader: worker %q failed: %s: %s", e.Worker, e.Kind, e.Message)
	}
	return fmt.Sprintf("threader: worker failed: %s: %s", e.Kind, e.Message)
}

func (e *WorkerError) Unwrap() error { return e.cause }

// InvalidTokenError reports gate token misuse: releasing a token twice, or
// releasing a token issued by a different gate. This is a programming error
// and is surfaced loudly at the call site rather than silently ignored.
type InvalidTokenError struct {
	Reason string
}

func (e *InvalidTokenError) Error() string {
	return "threader: invalid token: " + e.Reason
}
