package threader_test

import (
	"context"
	"errors"
	"fmt"
	"time"

	threader "github.com/threadwell/threader"
	"github.com/threadwell/threader/core"
)

// ExampleThreader demonstrates bounded submission with captured results.
func ExampleThreader() {
	th := threader.New(&threader.Config{
		GateCapacity: 2,
		Logger:       core.NewNoOpLogger(),
	})
	defer th.Shutdown(context.Background())

	handle, err := th.Go(context.Background(), func(ctx context.Context) (any, error) {
		return 21 * 2, nil
	})
	if err != nil {
		fmt.Println("submit failed:", err)
		return
	}

	res, _ := handle.Join(0)
	fmt.Println(res.State, res.Value)
	// Output: succeeded 42
}

// ExampleHandle_Join shows that a unit failure surfaces the original error.
func ExampleHandle_Join() {
	worker := core.NewWorker(&core.Config{Logger: core.NewNoOpLogger()})
	sentinel := errors.New("disk full")

	handle := worker.Submit(func(ctx context.Context) (any, error) {
		return nil, sentinel
	})

	res, _ := handle.Join(time.Second)
	fmt.Println(res.State, errors.Is(res.Err, sentinel))
	// Output: failed true
}

// ExampleGate shows a saturated gate rejecting with a timeout.
func ExampleGate() {
	gate := core.NewGate(1)

	token, _ := gate.Acquire(context.Background())

	_, err := gate.AcquireTimeout(10 * time.Millisecond)
	fmt.Println(core.IsTimeout(err))

	_ = gate.Release(token)
	// Output: true
}
