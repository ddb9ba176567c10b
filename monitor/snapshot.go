// Package monitor provides periodic background sampling of process resource
// usage. A Sampler reads one snapshot per interval from a SnapshotSource and
// appends it to a caller-supplied Sink until stopped.
package monitor

import (
	"fmt"
	"os"
	"time"

	"github.com/shirou/gopsutil/v4/process"
)

// Sample is one immutable observation of process resource usage. Samples are
// appended to a sink in production order with monotonic timestamps.
type Sample struct {
	Timestamp  time.Time
	CPUPercent float64
	RSSBytes   uint64
}

// SnapshotSource reads the current resource usage of the host process.
type SnapshotSource interface {
	Snapshot() (Sample, error)
}

// SampleError wraps a single failed snapshot read. The sampler logs these
// and skips the interval; they never terminate the sampling loop.
type SampleError struct {
	cause error
}

func (e *SampleError) Error() string {
	return "monitor: snapshot failed: " + e.cause.Error()
}

func (e *SampleError) Unwrap() error { return e.cause }

// processSource reads the current process through gopsutil.
type processSource struct {
	proc *process.Process
}

// NewProcessSource returns a SnapshotSource observing the current process.
// CPUPercent is the percentage of total CPU time used since the previous
// snapshot; RSSBytes is the resident set size.
func NewProcessSource() (SnapshotSource, error) {
	proc, err := process.NewProcess(int32(os.Getpid()))
	if err != nil {
		return nil, fmt.Errorf("monitor: open current process: %w", err)
	}
	return &processSource{proc: proc}, nil
}

func (s *processSource) Snapshot() (Sample, error) {
	cpuPct, err := s.proc.CPUPercent()
	if err != nil {
		return Sample{}, &SampleError{cause: err}
	}
	memInfo, err := s.proc.MemoryInfo()
	if err != nil {
		return Sample{}, &SampleError{cause: err}
	}
	return Sample{
		Timestamp:  time.Now(),
		CPUPercent: cpuPct,
		RSSBytes:   memInfo.RSS,
	}, nil
}
