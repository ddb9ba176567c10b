package core

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"golang.org/x/sync/semaphore"
)

const (
	// maxAllowedCapacity is the maximum allowed gate capacity. Values higher
	// than this could lead to excessive goroutine creation and memory
	// exhaustion.
	maxAllowedCapacity = 10000
)

// Gate bounds how many workers may run simultaneously. Callers acquire a
// Token before starting work and must release it exactly once on every exit
// path. Waiters are served in FIFO arrival order; each release wakes at most
// one blocked acquirer.
type Gate struct {
	name     string
	capacity int
	sem      *semaphore.Weighted
	inUse    atomic.Int32
	waiting  atomic.Int32
	metrics  Metrics
}

// Token represents one unit of gate capacity. It carries no identity beyond
// its issuing gate and must be released exactly once per acquisition.
type Token struct {
	gate     *Gate
	released atomic.Bool
}

// Release returns the token's permit to its issuing gate.
func (t *Token) Release() error {
	if t == nil || t.gate == nil {
		return &InvalidTokenError{Reason: "nil token"}
	}
	return t.gate.Release(t)
}

// NewGate creates a gate with the given capacity.
// Panics if capacity is out of the valid range [1, 10000].
func NewGate(capacity int) *Gate {
	return NewGateWithConfig("", capacity, nil)
}

// NewGateWithConfig creates a named gate wired to the config's metrics sink.
// Panics if capacity is out of the valid range [1, 10000].
func NewGateWithConfig(name string, capacity int, cfg *Config) *Gate {
	if capacity < 1 {
		panic("threader: gate capacity must be at least 1")
	}
	if capacity > maxAllowedCapacity {
		panic(fmt.Sprintf("threader: gate capacity must not exceed %d", maxAllowedCapacity))
	}
	cfg = cfg.withDefaults()
	return &Gate{
		name:     name,
		capacity: capacity,
		sem:      semaphore.NewWeighted(int64(capacity)),
		metrics:  cfg.Metrics,
	}
}

// Acquire blocks until a permit is available or ctx is done. A deadline
// expiry is reported as *TimeoutError; any other context error is returned
// as-is.
func (g *Gate) Acquire(ctx context.Context) (*Token, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	start := time.Now()
	g.waiting.Add(1)
	err := g.sem.Acquire(ctx, 1)
	g.waiting.Add(-1)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return nil, &TimeoutError{Op: "acquire", Wait: time.Since(start)}
		}
		return nil, err
	}
	g.inUse.Add(1)
	g.metrics.RecordGateWait(g.observabilityName(), time.Since(start))
	return &Token{gate: g}, nil
}

// AcquireTimeout waits up to timeout for a permit. A non-positive timeout
// waits indefinitely.
func (g *Gate) AcquireTimeout(timeout time.Duration) (*Token, error) {
	ctx := context.Background()
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}
	return g.Acquire(ctx)
}

// TryAcquire grabs a permit without blocking. It reports false when the gate
// is saturated.
func (g *Gate) TryAcquire() (*Token, bool) {
	if !g.sem.TryAcquire(1) {
		return nil, false
	}
	g.inUse.Add(1)
	return &Token{gate: g}, true
}

// Release returns t's permit to the gate, waking at most one blocked
// acquirer. Releasing a token twice, or a token issued by a different gate,
// returns *InvalidTokenError.
func (g *Gate) Release(t *Token) error {
	if t == nil {
		return &InvalidTokenError{Reason: "nil token"}
	}
	if t.gate != g {
		return &InvalidTokenError{Reason: "token issued by a different gate"}
	}
	if !t.released.CompareAndSwap(false, true) {
		return &InvalidTokenError{Reason: "token already released"}
	}
	g.inUse.Add(-1)
	g.sem.Release(1)
	return nil
}

// Name returns the gate's display name.
func (g *Gate) Name() string { return g.name }

// Capacity returns the fixed permit count.
func (g *Gate) Capacity() int { return g.capacity }

// InUse returns the number of outstanding tokens. Never exceeds Capacity.
func (g *Gate) InUse() int { return int(g.inUse.Load()) }

// Waiting returns the number of acquirers currently blocked.
func (g *Gate) Waiting() int { return int(g.waiting.Load()) }

// Stats returns current observability data for this gate.
func (g *Gate) Stats() GateStats {
	return GateStats{
		Name:     g.observabilityName(),
		Capacity: g.capacity,
		InUse:    g.InUse(),
		Waiting:  g.Waiting(),
	}
}

func (g *Gate) observabilityName() string {
	if g.name == "" {
		return "gate"
	}
	return g.name
}

// GateStats is a point-in-time snapshot of gate occupancy.
type GateStats struct {
	Name     string
	Capacity int
	InUse    int
	Waiting  int
}
