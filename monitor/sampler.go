package monitor

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/threadwell/threader/core"
)

// =============================================================================
// State: Sampler lifecycle
// =============================================================================

type State int32

const (
	// StateIdle: constructed, not yet started.
	StateIdle State = iota

	// StateRunning: the sampling goroutine is active.
	StateRunning

	// StateStopRequested: Stop was called; the loop exits at its next wake
	// point, after at most one more in-flight sample.
	StateStopRequested

	// StateStopped: the sampling goroutine has fully exited. No sample is
	// ever recorded after this state is reached. Never reverts.
	StateStopped
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateRunning:
		return "running"
	case StateStopRequested:
		return "stop_requested"
	case StateStopped:
		return "stopped"
	default:
		return "unknown"
	}
}

// Options configures optional sampler collaborators.
// All fields are optional.
type Options struct {
	// Name is the display name used in logs and metrics labels.
	Name string

	// Logger receives skipped-interval warnings. Defaults to DefaultLogger.
	Logger core.Logger

	// Metrics receives skipped-sample counts. Defaults to NilMetrics.
	Metrics core.Metrics

	// Coordinator is a shared stop signal; when it triggers, the sampler
	// stops as if Stop had been called.
	Coordinator *core.Coordinator
}

// Sampler periodically reads one resource snapshot and appends it to the
// sink. The lifecycle is scoped to the Sampler value itself: Start spawns a
// dedicated goroutine, Stop requests a cooperative stop without blocking, and
// Join waits for the goroutine to fully exit.
//
// A failed snapshot read is logged and counted as a skipped interval; it
// never terminates the loop.
type Sampler struct {
	name     string
	source   SnapshotSource
	sink     Sink
	interval time.Duration
	logger   core.Logger
	metrics  core.Metrics
	coord    *core.Coordinator

	state     atomic.Int32
	collected atomic.Uint64
	skipped   atomic.Uint64

	lastMu  sync.RWMutex
	last    Sample
	hasLast bool

	stopOnce sync.Once
	stopCh   chan struct{}
	done     chan struct{}
}

// NewSampler creates a sampler reading from source into sink every interval.
// Panics if source or sink is nil, or interval is not positive.
func NewSampler(source SnapshotSource, sink Sink, interval time.Duration, opts *Options) *Sampler {
	if source == nil {
		panic("monitor: source must not be nil")
	}
	if sink == nil {
		panic("monitor: sink must not be nil")
	}
	if interval <= 0 {
		panic(fmt.Sprintf("monitor: interval must be positive, got %s", interval))
	}
	if opts == nil {
		opts = &Options{}
	}
	logger := opts.Logger
	if logger == nil {
		logger = core.NewDefaultLogger()
	}
	metrics := opts.Metrics
	if metrics == nil {
		metrics = &core.NilMetrics{}
	}
	return &Sampler{
		name:     opts.Name,
		source:   source,
		sink:     sink,
		interval: interval,
		logger:   logger,
		metrics:  metrics,
		coord:    opts.Coordinator,
		stopCh:   make(chan struct{}),
		done:     make(chan struct{}),
	}
}

// Start spawns the sampling goroutine. Repeated calls, or calls after Stop,
// are no-ops.
func (s *Sampler) Start() {
	if !s.state.CompareAndSwap(int32(StateIdle), int32(StateRunning)) {
		return
	}
	go s.loop()
}

// Stop requests a cooperative stop and returns without blocking. The loop
// observes the request at its next wake point and exits; at most one
// in-flight sample is still recorded. Repeated calls are safe.
func (s *Sampler) Stop() {
	s.stopOnce.Do(func() {
		s.state.CompareAndSwap(int32(StateRunning), int32(StateStopRequested))
		// Stop before Start: there is no loop to close done.
		if s.state.CompareAndSwap(int32(StateIdle), int32(StateStopped)) {
			close(s.done)
		}
		close(s.stopCh)
	})
}

// Join blocks until the sampling goroutine has fully exited (no leaked
// goroutine after Stop+Join), or until ctx is done.
func (s *Sampler) Join(ctx context.Context) error {
	select {
	case <-s.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *Sampler) loop() {
	defer close(s.done)
	defer s.state.Store(int32(StateStopped))

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	var coordDone <-chan struct{}
	if s.coord != nil {
		coordDone = s.coord.Done()
	}

	for {
		select {
		case <-s.stopCh:
			return
		case <-coordDone:
			s.state.CompareAndSwap(int32(StateRunning), int32(StateStopRequested))
			return
		case <-ticker.C:
			// Stop may have won the race with this tick.
			if State(s.state.Load()) != StateRunning {
				return
			}
			s.collectOnce()
		}
	}
}

func (s *Sampler) collectOnce() {
	sample, err := s.source.Snapshot()
	if err != nil {
		s.skipped.Add(1)
		s.metrics.RecordSampleSkipped(s.observabilityName())
		s.logger.Warn("resource snapshot failed, skipping interval",
			core.F("sampler", s.observabilityName()),
			core.F("error", err))
		return
	}
	if sample.Timestamp.IsZero() {
		sample.Timestamp = time.Now()
	}
	s.sink.Append(sample)
	s.collected.Add(1)

	s.lastMu.Lock()
	s.last = sample
	s.hasLast = true
	s.lastMu.Unlock()
}

// Name returns the sampler's display name.
func (s *Sampler) Name() string { return s.name }

// Interval returns the configured sampling period.
func (s *Sampler) Interval() time.Duration { return s.interval }

// State returns the current lifecycle state.
func (s *Sampler) State() State { return State(s.state.Load()) }

// Collected returns how many samples have been appended.
func (s *Sampler) Collected() uint64 { return s.collected.Load() }

// Skipped returns how many intervals were skipped due to snapshot failures.
func (s *Sampler) Skipped() uint64 { return s.skipped.Load() }

// Last returns the most recently appended sample, if any.
func (s *Sampler) Last() (Sample, bool) {
	s.lastMu.RLock()
	defer s.lastMu.RUnlock()
	return s.last, s.hasLast
}

// Stats returns current observability data for this sampler.
func (s *Sampler) Stats() SamplerStats {
	stats := SamplerStats{
		Name:      s.observabilityName(),
		State:     s.State().String(),
		Collected: s.Collected(),
		Skipped:   s.Skipped(),
	}
	if last, ok := s.Last(); ok {
		stats.LastCPUPercent = last.CPUPercent
		stats.LastRSSBytes = last.RSSBytes
	}
	return stats
}

func (s *Sampler) observabilityName() string {
	if s.name == "" {
		return "sampler"
	}
	return s.name
}

// SamplerStats is a point-in-time snapshot of a sampler's progress.
type SamplerStats struct {
	Name           string
	State          string
	Collected      uint64
	Skipped        uint64
	LastCPUPercent float64
	LastRSSBytes   uint64
}
