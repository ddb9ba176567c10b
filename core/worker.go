package core

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"sync/atomic"
	"time"
)

// Worker starts WorkUnits, one dedicated goroutine each, and captures each
// unit's outcome into a one-shot result slot. The goroutine is the sole
// writer of the slot; callers read it after Join.
type Worker struct {
	cfg *Config
}

// NewWorker creates a worker factory. A nil cfg uses DefaultConfig.
func NewWorker(cfg *Config) *Worker {
	return &Worker{cfg: cfg.withDefaults()}
}

// Handle references the result slot of one submitted unit.
//
// The result is published exactly once, before the done channel closes, so a
// reader that returned from Join (or observed Done closed) always sees the
// fully written result. Repeated Join calls after termination return the
// identical ExecutionResult.
type Handle struct {
	name   string
	worker *Worker

	ctx             context.Context
	cancel          context.CancelFunc
	cancelRequested atomic.Bool

	// state mirrors result.State for non-blocking inspection.
	state atomic.Int32

	token *Token

	// result is written once by the run goroutine, then published by closing
	// done.
	result ExecutionResult
	done   chan struct{}
}

// Submit starts unit on a new goroutine and returns immediately.
func (w *Worker) Submit(unit WorkUnit) *Handle {
	return w.SubmitNamed("", unit)
}

// SubmitNamed starts unit with a caller-provided display name used in logs,
// metrics labels and error messages.
func (w *Worker) SubmitNamed(name string, unit WorkUnit) *Handle {
	return w.submit(context.Background(), name, unit, nil)
}

// SubmitGated acquires a permit from gate, then starts unit. The permit is
// released by the worker goroutine on every exit path: success, failure,
// cancellation and panic. ctx bounds the permit wait and carries caller
// cancellation into the unit.
func (w *Worker) SubmitGated(ctx context.Context, gate *Gate, unit WorkUnit) (*Handle, error) {
	return w.SubmitGatedNamed(ctx, gate, "", unit)
}

// SubmitGatedNamed is SubmitGated with a display name.
func (w *Worker) SubmitGatedNamed(ctx context.Context, gate *Gate, name string, unit WorkUnit) (*Handle, error) {
	token, err := gate.Acquire(ctx)
	if err != nil {
		return nil, err
	}
	return w.submit(ctx, name, unit, token), nil
}

func (w *Worker) submit(parent context.Context, name string, unit WorkUnit, token *Token) *Handle {
	if parent == nil {
		parent = context.Background()
	}
	ctx, cancel := context.WithCancel(parent)
	h := &Handle{
		name:   name,
		worker: w,
		ctx:    ctx,
		cancel: cancel,
		token:  token,
		done:   make(chan struct{}),
	}
	h.state.Store(int32(StatePending))
	go w.run(h, unit)
	return h
}

// run executes the unit on its own goroutine. Deferred cleanup order on exit:
// panic recovery publishes a Failed result, then the gate token is released,
// then done is closed, then the unit context is cancelled.
func (w *Worker) run(h *Handle, unit WorkUnit) {
	defer h.cancel()
	defer close(h.done)
	defer func() {
		if h.token != nil {
			// Unconditional release; misuse is impossible here because the
			// goroutine owns the token exclusively.
			_ = h.token.Release()
		}
	}()
	defer func() {
		if rec := recover(); rec != nil {
			stack := debug.Stack()
			w.cfg.PanicHandler.HandlePanic(h.ctx, h.name, rec, stack)
			w.cfg.Metrics.RecordWorkerPanic(h.name)
			h.publish(ExecutionResult{
				State: StateFailed,
				Err:   newWorkerPanicError(h.name, rec, stack),
			})
		}
	}()

	h.state.Store(int32(StateRunning))
	start := time.Now()
	value, err := unit(h.ctx)

	var res ExecutionResult
	switch {
	case err == nil:
		res = ExecutionResult{State: StateSucceeded, Value: value}
	case errors.Is(err, context.Canceled) && h.ctx.Err() != nil:
		// Cancellation was requested (Cancel, caller context or shutdown)
		// and the unit honored it.
		res = ExecutionResult{State: StateCancelled, Err: err}
	default:
		res = ExecutionResult{State: StateFailed, Err: newWorkerError(h.name, err)}
	}
	h.publish(res)
	w.cfg.Metrics.RecordWorkerDuration(h.name, res.State.String(), time.Since(start))
}

func (h *Handle) publish(res ExecutionResult) {
	h.result = res
	h.state.Store(int32(res.State))
}

// Name returns the display name given at submission.
func (h *Handle) Name() string { return h.name }

// State returns the current execution state without blocking.
func (h *Handle) State() State { return State(h.state.Load()) }

// Done returns a channel closed once the result has been published.
func (h *Handle) Done() <-chan struct{} { return h.done }

// Join blocks until the unit reaches a terminal state or timeout elapses.
// A non-positive timeout waits indefinitely.
//
// On timeout Join returns a *TimeoutError together with the current
// (non-terminal) state; this is distinguishable from a unit failure, which is
// reported through the result's Err. The result slot is untouched by a
// timeout, so later Join calls still succeed.
func (h *Handle) Join(timeout time.Duration) (ExecutionResult, error) {
	if timeout <= 0 {
		<-h.done
		return h.result, nil
	}
	timer := time.NewTimer(timeout)
	defer timer.Stop()
	select {
	case <-h.done:
		return h.result, nil
	case <-timer.C:
		return ExecutionResult{State: h.State()}, &TimeoutError{Op: "join", Wait: timeout}
	}
}

// JoinContext blocks until the unit reaches a terminal state or ctx is done.
// A context deadline expiry is reported as *TimeoutError.
func (h *Handle) JoinContext(ctx context.Context) (ExecutionResult, error) {
	select {
	case <-h.done:
		return h.result, nil
	case <-ctx.Done():
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return ExecutionResult{State: h.State()}, &TimeoutError{Op: "join"}
		}
		return ExecutionResult{State: h.State()}, ctx.Err()
	}
}

// Cancel requests cooperative cancellation by cancelling the unit's context.
// It never forcibly terminates the goroutine; a unit that does not observe
// its context runs to natural completion.
//
// Cancel reports whether the cancellation flag transitioned from unset to
// set. It returns false when the unit already reached a terminal state.
func (h *Handle) Cancel() bool {
	if h.State().Terminal() {
		return false
	}
	if !h.cancelRequested.CompareAndSwap(false, true) {
		return false
	}
	h.cancel()
	return true
}

// JoinAs joins h and asserts the succeeded value to T. Failures, cancellation
// and timeouts are returned as errors.
func JoinAs[T any](h *Handle, timeout time.Duration) (T, error) {
	var zero T
	res, err := h.Join(timeout)
	if err != nil {
		return zero, err
	}
	if res.Err != nil {
		return zero, res.Err
	}
	v, ok := res.Value.(T)
	if !ok {
		return zero, fmt.Errorf("threader: result value is %T, not %T", res.Value, zero)
	}
	return v, nil
}
