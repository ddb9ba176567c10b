package threader

import (
	"context"
	"runtime"
	"sync"
	"time"

	"github.com/threadwell/threader/core"
	"github.com/threadwell/threader/monitor"
)

// Config holds construction-time settings for a Threader.
type Config struct {
	// GateCapacity bounds how many units may run simultaneously.
	// Must be at least 1. Defaults to runtime.NumCPU().
	GateCapacity int

	// DefaultJoinTimeout applies to Join calls made through the Threader.
	// Zero waits indefinitely.
	DefaultJoinTimeout time.Duration

	// SamplerInterval is the resource sampling period used by StartSampler.
	// Must be positive when a sampler is started. Defaults to one second.
	SamplerInterval time.Duration

	// Logger receives diagnostic output. Defaults to core.DefaultLogger.
	Logger core.Logger

	// PanicHandler is called when a unit panics. Defaults to core.DefaultPanicHandler.
	PanicHandler core.PanicHandler

	// Metrics receives execution metrics. Defaults to core.NilMetrics.
	Metrics core.Metrics
}

// DefaultConfig returns a config sized to the host.
func DefaultConfig() *Config {
	return &Config{
		GateCapacity:    runtime.NumCPU(),
		SamplerInterval: time.Second,
	}
}

// Threader couples a concurrency gate, a worker factory and a shutdown
// coordinator behind a single handle. Go acquires a permit, starts the unit
// and guarantees the permit's release; Shutdown triggers the shared
// cooperative stop signal and reaps any samplers started through the
// Threader.
type Threader struct {
	cfg    *Config
	gate   *core.Gate
	worker *core.Worker
	coord  *core.Coordinator

	samplersMu sync.Mutex
	samplers   []*monitor.Sampler
}

// New creates a Threader. A nil cfg uses DefaultConfig.
// Panics if cfg.GateCapacity is out of the valid range.
func New(cfg *Config) *Threader {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	if cfg.GateCapacity == 0 {
		cfg.GateCapacity = runtime.NumCPU()
	}
	if cfg.SamplerInterval == 0 {
		cfg.SamplerInterval = time.Second
	}
	coreCfg := &core.Config{
		Logger:       cfg.Logger,
		PanicHandler: cfg.PanicHandler,
		Metrics:      cfg.Metrics,
	}
	return &Threader{
		cfg:    cfg,
		gate:   core.NewGateWithConfig("threader", cfg.GateCapacity, coreCfg),
		worker: core.NewWorker(coreCfg),
		coord:  core.NewCoordinator(),
	}
}

// Go acquires a gate permit, then starts unit on its own goroutine. The
// permit is released when the unit terminates, on every exit path. ctx bounds
// the permit wait and carries caller cancellation into the unit; the unit's
// context is additionally cancelled when Shutdown triggers the coordinator.
func (t *Threader) Go(ctx context.Context, unit core.WorkUnit) (*core.Handle, error) {
	return t.GoNamed(ctx, "", unit)
}

// GoNamed is Go with a display name used in logs and metrics labels.
func (t *Threader) GoNamed(ctx context.Context, name string, unit core.WorkUnit) (*core.Handle, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	runCtx, cancelWatch := t.coord.Context(ctx)
	h, err := t.worker.SubmitGatedNamed(runCtx, t.gate, name, unit)
	if err != nil {
		cancelWatch()
		return nil, err
	}
	// Reap the coordinator watcher once the unit terminates.
	go func() {
		<-h.Done()
		cancelWatch()
	}()
	return h, nil
}

// Join joins h using the configured default join timeout.
func (t *Threader) Join(h *core.Handle) (core.ExecutionResult, error) {
	return h.Join(t.cfg.DefaultJoinTimeout)
}

// Gate returns the underlying concurrency gate.
func (t *Threader) Gate() *core.Gate { return t.gate }

// Worker returns the underlying worker factory.
func (t *Threader) Worker() *core.Worker { return t.worker }

// Coordinator returns the shared shutdown signal.
func (t *Threader) Coordinator() *core.Coordinator { return t.coord }

// StartSampler starts a resource sampler for the current process, appending
// to sink at the configured interval. The sampler stops on Shutdown or its
// own Stop.
func (t *Threader) StartSampler(sink monitor.Sink) (*monitor.Sampler, error) {
	source, err := monitor.NewProcessSource()
	if err != nil {
		return nil, err
	}
	return t.StartSamplerWithSource(source, sink), nil
}

// StartSamplerWithSource starts a sampler reading from a caller-provided
// snapshot source.
func (t *Threader) StartSamplerWithSource(source monitor.SnapshotSource, sink Sink) *monitor.Sampler {
	s := monitor.NewSampler(source, sink, t.cfg.SamplerInterval, &monitor.Options{
		Logger:      t.cfg.Logger,
		Metrics:     t.cfg.Metrics,
		Coordinator: t.coord,
	})
	s.Start()
	t.samplersMu.Lock()
	t.samplers = append(t.samplers, s)
	t.samplersMu.Unlock()
	return s
}

// Shutdown triggers the coordinator and waits for all samplers started
// through this Threader to exit. Running units are signalled through their
// contexts but keep their permits until natural completion; Shutdown does not
// wait for them. Repeated calls are safe.
func (t *Threader) Shutdown(ctx context.Context) error {
	t.coord.Trigger()

	t.samplersMu.Lock()
	samplers := make([]*monitor.Sampler, len(t.samplers))
	copy(samplers, t.samplers)
	t.samplersMu.Unlock()

	var firstErr error
	for _, s := range samplers {
		s.Stop()
		if err := s.Join(ctx); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// Sink is re-exported for type compatibility.
type Sink = monitor.Sink

// =============================================================================
// Global Threader Helper (Singleton)
// =============================================================================

var (
	defaultThreader *Threader
	defaultMu       sync.Mutex
)

// InitDefault initializes the package-level Threader. A nil cfg uses
// DefaultConfig. Repeated calls are no-ops.
func InitDefault(cfg *Config) {
	defaultMu.Lock()
	defer defaultMu.Unlock()

	if defaultThreader != nil {
		return // Already initialized
	}
	defaultThreader = New(cfg)
}

// Default returns the package-level Threader instance.
// It panics if InitDefault has not been called.
func Default() *Threader {
	defaultMu.Lock()
	defer defaultMu.Unlock()

	if defaultThreader == nil {
		panic("threader: default Threader not initialized. Call InitDefault() first.")
	}
	return defaultThreader
}

// ShutdownDefault shuts down and clears the package-level Threader.
func ShutdownDefault(ctx context.Context) error {
	defaultMu.Lock()
	defer defaultMu.Unlock()

	if defaultThreader == nil {
		return nil
	}
	err := defaultThreader.Shutdown(ctx)
	defaultThreader = nil
	return err
}

// Go submits a unit through the package-level Threader.
func Go(ctx context.Context, unit core.WorkUnit) (*core.Handle, error) {
	return Default().Go(ctx, unit)
}
