package core_test

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	core "github.com/threadwell/threader/core"
)

// valueError mimics a domain error type whose identity must survive the
// thread boundary.
type valueError string

func (e valueError) Error() string { return string(e) }

func quietConfig() *core.Config {
	return &core.Config{Logger: core.NewNoOpLogger()}
}

func TestWorker_Submit_Success(t *testing.T) {
	worker := core.NewWorker(quietConfig())

	handle := worker.Submit(func(ctx context.Context) (any, error) {
		return 42, nil
	})

	res, err := handle.Join(0)
	if err != nil {
		t.Fatalf("Join failed: %v", err)
	}
	if res.State != core.StateSucceeded {
		t.Fatalf("State = %v, want %v", res.State, core.StateSucceeded)
	}
	if res.Value != 42 {
		t.Fatalf("Value = %v, want 42", res.Value)
	}
	if res.Err != nil {
		t.Fatalf("Err = %v, want nil", res.Err)
	}
}

// TestWorker_FailurePreservesErrorIdentity verifies the original error's
// kind and message survive to Join instead of a generic wrapper.
func TestWorker_FailurePreservesErrorIdentity(t *testing.T) {
	worker := core.NewWorker(quietConfig())
	original := valueError("x")

	handle := worker.SubmitNamed("failing-unit", func(ctx context.Context) (any, error) {
		return nil, original
	})

	res, err := handle.Join(0)
	if err != nil {
		t.Fatalf("Join failed: %v", err)
	}
	if res.State != core.StateFailed {
		t.Fatalf("State = %v, want %v", res.State, core.StateFailed)
	}

	var workerErr *core.WorkerError
	if !errors.As(res.Err, &workerErr) {
		t.Fatalf("Err = %T, want *WorkerError", res.Err)
	}
	if workerErr.Kind != "core_test.valueError" {
		t.Errorf("Kind = %q, want %q", workerErr.Kind, "core_test.valueError")
	}
	if workerErr.Message != "x" {
		t.Errorf("Message = %q, want %q", workerErr.Message, "x")
	}
	if !errors.Is(res.Err, original) {
		t.Error("errors.Is does not reach the original error through the wrapper")
	}
}

// TestWorker_JoinIdempotent verifies repeated joins return the identical result
func TestWorker_JoinIdempotent(t *testing.T) {
	worker := core.NewWorker(quietConfig())

	handle := worker.Submit(func(ctx context.Context) (any, error) {
		return "done", nil
	})

	first, err := handle.Join(0)
	if err != nil {
		t.Fatalf("first Join failed: %v", err)
	}
	for i := 0; i < 3; i++ {
		again, err := handle.Join(time.Second)
		if err != nil {
			t.Fatalf("Join #%d failed: %v", i+2, err)
		}
		if again != first {
			t.Fatalf("Join #%d = %+v, want %+v", i+2, again, first)
		}
	}
}

// TestWorker_JoinTimeout verifies a join timeout is distinguishable from a failure
func TestWorker_JoinTimeout(t *testing.T) {
	worker := core.NewWorker(quietConfig())
	release := make(chan struct{})

	handle := worker.Submit(func(ctx context.Context) (any, error) {
		<-release
		return "late", nil
	})

	res, err := handle.Join(20 * time.Millisecond)
	if !core.IsTimeout(err) {
		t.Fatalf("Join error = %v, want TimeoutError", err)
	}
	if res.State.Terminal() {
		t.Fatalf("State = %v on timeout, want non-terminal", res.State)
	}

	close(release)
	res, err = handle.Join(0)
	if err != nil {
		t.Fatalf("Join after release failed: %v", err)
	}
	if res.State != core.StateSucceeded || res.Value != "late" {
		t.Fatalf("result = %+v, want succeeded %q", res, "late")
	}
}

// TestWorker_CooperativeCancel verifies a unit honoring its context yields
// a cancelled result
func TestWorker_CooperativeCancel(t *testing.T) {
	worker := core.NewWorker(quietConfig())
	started := make(chan struct{})

	handle := worker.Submit(func(ctx context.Context) (any, error) {
		close(started)
		<-ctx.Done()
		return nil, ctx.Err()
	})

	<-started
	if !handle.Cancel() {
		t.Fatal("Cancel returned false for a running unit")
	}

	res, err := handle.Join(0)
	if err != nil {
		t.Fatalf("Join failed: %v", err)
	}
	if res.State != core.StateCancelled {
		t.Fatalf("State = %v, want %v", res.State, core.StateCancelled)
	}
	if !errors.Is(res.Err, context.Canceled) {
		t.Fatalf("Err = %v, want context.Canceled", res.Err)
	}
}

// TestWorker_CancelAfterTerminal verifies cancel after completion is a no-op
func TestWorker_CancelAfterTerminal(t *testing.T) {
	worker := core.NewWorker(quietConfig())

	handle := worker.Submit(func(ctx context.Context) (any, error) {
		return "finished", nil
	})

	first, err := handle.Join(0)
	if err != nil {
		t.Fatalf("Join failed: %v", err)
	}

	if handle.Cancel() {
		t.Fatal("Cancel returned true after the unit terminated")
	}

	again, err := handle.Join(0)
	if err != nil {
		t.Fatalf("Join after Cancel failed: %v", err)
	}
	if again != first {
		t.Fatalf("result changed after Cancel: %+v != %+v", again, first)
	}
}

// TestWorker_CancelUnchecked verifies an ignoring unit runs to natural completion
func TestWorker_CancelUnchecked(t *testing.T) {
	worker := core.NewWorker(quietConfig())
	started := make(chan struct{})

	handle := worker.Submit(func(ctx context.Context) (any, error) {
		close(started)
		// Deliberately ignores ctx.
		time.Sleep(30 * time.Millisecond)
		return "completed anyway", nil
	})

	<-started
	if !handle.Cancel() {
		t.Fatal("Cancel returned false for a running unit")
	}

	res, err := handle.Join(0)
	if err != nil {
		t.Fatalf("Join failed: %v", err)
	}
	if res.State != core.StateSucceeded {
		t.Fatalf("State = %v, want %v", res.State, core.StateSucceeded)
	}
	if res.Value != "completed anyway" {
		t.Fatalf("Value = %v, want %q", res.Value, "completed anyway")
	}
}

type recordingPanicHandler struct {
	mu     sync.Mutex
	calls  int
	worker string
	info   any
}

func (h *recordingPanicHandler) HandlePanic(ctx context.Context, workerName string, panicInfo any, stackTrace []byte) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.calls++
	h.worker = workerName
	h.info = panicInfo
}

// TestWorker_PanicRecovered verifies panics become Failed results with the
// panic value preserved
func TestWorker_PanicRecovered(t *testing.T) {
	panicHandler := &recordingPanicHandler{}
	worker := core.NewWorker(&core.Config{
		Logger:       core.NewNoOpLogger(),
		PanicHandler: panicHandler,
	})

	handle := worker.SubmitNamed("panicking-unit", func(ctx context.Context) (any, error) {
		panic("boom")
	})

	res, err := handle.Join(0)
	if err != nil {
		t.Fatalf("Join failed: %v", err)
	}
	if res.State != core.StateFailed {
		t.Fatalf("State = %v, want %v", res.State, core.StateFailed)
	}

	var workerErr *core.WorkerError
	if !errors.As(res.Err, &workerErr) {
		t.Fatalf("Err = %T, want *WorkerError", res.Err)
	}
	if workerErr.Kind != "string" || workerErr.Message != "boom" {
		t.Errorf("WorkerError = %q/%q, want string/boom", workerErr.Kind, workerErr.Message)
	}
	if len(workerErr.Stack) == 0 {
		t.Error("WorkerError.Stack is empty for a recovered panic")
	}

	panicHandler.mu.Lock()
	defer panicHandler.mu.Unlock()
	if panicHandler.calls != 1 {
		t.Errorf("panic handler called %d times, want 1", panicHandler.calls)
	}
	if panicHandler.worker != "panicking-unit" {
		t.Errorf("panic handler worker = %q, want %q", panicHandler.worker, "panicking-unit")
	}
}

// TestWorker_GatedReleasesOnEveryPath verifies the token returns to the gate
// on success, failure and panic
func TestWorker_GatedReleasesOnEveryPath(t *testing.T) {
	worker := core.NewWorker(&core.Config{
		Logger:       core.NewNoOpLogger(),
		PanicHandler: &recordingPanicHandler{},
	})
	gate := core.NewGate(1)

	units := []core.WorkUnit{
		func(ctx context.Context) (any, error) { return 1, nil },
		func(ctx context.Context) (any, error) { return nil, valueError("fail") },
		func(ctx context.Context) (any, error) { panic("boom") },
	}

	for i, unit := range units {
		handle, err := worker.SubmitGated(context.Background(), gate, unit)
		if err != nil {
			t.Fatalf("unit %d: SubmitGated failed: %v", i, err)
		}
		if _, err := handle.Join(0); err != nil {
			t.Fatalf("unit %d: Join failed: %v", i, err)
		}
		// The permit must be reusable immediately after termination.
		token, err := gate.AcquireTimeout(time.Second)
		if err != nil {
			t.Fatalf("unit %d: permit not released: %v", i, err)
		}
		if err := gate.Release(token); err != nil {
			t.Fatalf("unit %d: Release failed: %v", i, err)
		}
	}
}

// TestWorker_GatedBoundedThroughput runs the capacity-2 scenario:
// 5 units of 50ms each must take at least 3 batches and never exceed
// 2 observed running at once.
func TestWorker_GatedBoundedThroughput(t *testing.T) {
	worker := core.NewWorker(quietConfig())
	gate := core.NewGate(2)

	var running atomic.Int32
	var maxRunning atomic.Int32
	var wg sync.WaitGroup

	start := time.Now()
	for i := 0; i < 5; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			handle, err := worker.SubmitGated(context.Background(), gate, func(ctx context.Context) (any, error) {
				cur := running.Add(1)
				for {
					max := maxRunning.Load()
					if cur <= max || maxRunning.CompareAndSwap(max, cur) {
						break
					}
				}
				time.Sleep(50 * time.Millisecond)
				running.Add(-1)
				return nil, nil
			})
			if err != nil {
				t.Errorf("SubmitGated failed: %v", err)
				return
			}
			if _, err := handle.Join(0); err != nil {
				t.Errorf("Join failed: %v", err)
			}
		}()
	}
	wg.Wait()
	elapsed := time.Since(start)

	// ceil(5/2) batches of 50ms.
	if elapsed < 140*time.Millisecond {
		t.Errorf("elapsed = %v, want >= ~150ms for 3 serialized batches", elapsed)
	}
	if max := maxRunning.Load(); max > 2 {
		t.Errorf("observed %d concurrent units, gate capacity is 2", max)
	}
}

// TestWorker_SubmitGated_AcquireTimeout verifies the permit wait is bounded
// by the caller context
func TestWorker_SubmitGated_AcquireTimeout(t *testing.T) {
	worker := core.NewWorker(quietConfig())
	gate := core.NewGate(1)
	release := make(chan struct{})
	defer close(release)

	blocker, err := worker.SubmitGated(context.Background(), gate, func(ctx context.Context) (any, error) {
		<-release
		return nil, nil
	})
	if err != nil {
		t.Fatalf("SubmitGated failed: %v", err)
	}
	_ = blocker

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	_, err = worker.SubmitGated(ctx, gate, func(ctx context.Context) (any, error) {
		return nil, nil
	})
	if !core.IsTimeout(err) {
		t.Fatalf("SubmitGated error = %v, want TimeoutError", err)
	}
}

func TestJoinAs(t *testing.T) {
	worker := core.NewWorker(quietConfig())

	handle := worker.Submit(func(ctx context.Context) (any, error) {
		return "typed", nil
	})
	got, err := core.JoinAs[string](handle, time.Second)
	if err != nil {
		t.Fatalf("JoinAs failed: %v", err)
	}
	if got != "typed" {
		t.Fatalf("JoinAs = %q, want %q", got, "typed")
	}

	handle = worker.Submit(func(ctx context.Context) (any, error) {
		return 7, nil
	})
	if _, err := core.JoinAs[string](handle, time.Second); err == nil {
		t.Fatal("JoinAs accepted a mismatched type")
	}
}

func TestHandle_State_Transitions(t *testing.T) {
	worker := core.NewWorker(quietConfig())
	started := make(chan struct{})
	release := make(chan struct{})

	handle := worker.Submit(func(ctx context.Context) (any, error) {
		close(started)
		<-release
		return nil, nil
	})

	<-started
	if got := handle.State(); got != core.StateRunning {
		t.Fatalf("State() = %v while unit runs, want %v", got, core.StateRunning)
	}

	close(release)
	<-handle.Done()
	if got := handle.State(); got != core.StateSucceeded {
		t.Fatalf("State() = %v after done, want %v", got, core.StateSucceeded)
	}
}
