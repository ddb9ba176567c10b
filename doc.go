// Package threader provides bounded concurrent execution with captured
// results and background resource monitoring.
//
// The library couples three primitives:
//
// Gate: a counting permit pool bounding how many units may run
// simultaneously. Callers acquire a Token before starting work and release it
// exactly once; waiters are served in FIFO arrival order.
//
// Worker: starts each unit of work on its own goroutine and captures its
// outcome (value, error or recovered panic) into a one-shot result slot read
// through Join. Cancellation is cooperative: Cancel signals the unit's
// context and never kills the goroutine.
//
// Sampler: a background goroutine that periodically reads process CPU and
// resident memory and appends samples to a caller-supplied sink until
// stopped. See the monitor subpackage.
//
// # Quick Start
//
// Initialize the package-level Threader at application startup:
//
//	threader.InitDefault(nil) // gate sized to NumCPU
//	defer threader.ShutdownDefault(context.Background())
//
//	h, err := threader.Go(ctx, func(ctx context.Context) (any, error) {
//		return compute(ctx)
//	})
//	if err != nil {
//		return err // gate wait timed out or ctx was cancelled
//	}
//	res, err := h.Join(0) // 0 waits until the unit terminates
//
// # Key Concepts
//
// ExecutionResult: the one-shot outcome of a unit. It reaches exactly one
// terminal state (Succeeded, Failed or Cancelled) and every Join after
// termination returns the identical result. A failed unit's original error
// is preserved through errors.Is/errors.As chains; a caller who never joins
// never observes the failure.
//
// Coordinator: a shared one-shot cooperative stop flag consulted by samplers
// and by units that choose to observe their context.
//
// # Thread Safety
//
// The result slot has single-writer/multiple-reader discipline: the worker
// goroutine writes it once and publishes it by closing the handle's done
// channel, so readers never observe a partially written result. The gate's
// outstanding token count never exceeds its configured capacity.
//
// For observability, the observability/prometheus subpackage exports
// execution metrics and gate/sampler snapshots as Prometheus collectors.
package threader
