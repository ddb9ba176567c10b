package core

import (
	"context"
	"sync"
)

// Coordinator is a shared, one-shot cooperative stop signal. Any number of
// workers and samplers may watch it; it is triggered at most once per
// shutdown cycle and never resets. Construct a fresh Coordinator for a fresh
// run.
//
// Watchers consult the signal only at their own natural check points (gate
// wait, sleep interval, unit-defined checkpoints); nothing polls it.
type Coordinator struct {
	once sync.Once
	ch   chan struct{}
}

// NewCoordinator creates an untriggered coordinator.
func NewCoordinator() *Coordinator {
	return &Coordinator{ch: make(chan struct{})}
}

// Trigger signals shutdown. Only the first call has any effect; repeated
// calls are safe no-ops.
func (c *Coordinator) Trigger() {
	c.once.Do(func() { close(c.ch) })
}

// Done returns a channel closed once shutdown has been triggered.
func (c *Coordinator) Done() <-chan struct{} { return c.ch }

// Triggered reports whether shutdown has been requested.
func (c *Coordinator) Triggered() bool {
	select {
	case <-c.ch:
		return true
	default:
		return false
	}
}

// Context derives a context from parent that is cancelled when the
// coordinator triggers. The returned CancelFunc releases the watcher
// goroutine and must be called once the context is no longer needed.
func (c *Coordinator) Context(parent context.Context) (context.Context, context.CancelFunc) {
	if parent == nil {
		parent = context.Background()
	}
	ctx, cancel := context.WithCancel(parent)
	go func() {
		select {
		case <-c.ch:
			cancel()
		case <-ctx.Done():
		}
	}()
	return ctx, cancel
}

// Wait blocks until shutdown is triggered or ctx is done.
func (c *Coordinator) Wait(ctx context.Context) error {
	select {
	case <-c.ch:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
