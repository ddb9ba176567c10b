package monitor

import (
	"sync"
	"time"

	"github.com/threadwell/threader/core"
)

// Sink receives samples in production order. Append is called from the
// sampler goroutine only (single writer); implementations shared across
// threads for reads must only expose fully appended entries.
type Sink interface {
	Append(sample Sample)
}

// MemorySink stores samples in an ordered in-memory sequence. Readers always
// observe a fully appended prefix, never a torn entry.
type MemorySink struct {
	mu      sync.RWMutex
	samples []Sample
}

// NewMemorySink creates an empty in-memory sink.
func NewMemorySink() *MemorySink {
	return &MemorySink{}
}

// Append adds one sample to the sequence.
func (s *MemorySink) Append(sample Sample) {
	s.mu.Lock()
	s.samples = append(s.samples, sample)
	s.mu.Unlock()
}

// Len returns the number of appended samples.
func (s *MemorySink) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.samples)
}

// Samples returns a copy of the sequence appended so far.
func (s *MemorySink) Samples() []Sample {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Sample, len(s.samples))
	copy(out, s.samples)
	return out
}

// Last returns the most recent sample, if any.
func (s *MemorySink) Last() (Sample, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if len(s.samples) == 0 {
		return Sample{}, false
	}
	return s.samples[len(s.samples)-1], true
}

// LogSink writes one structured log line per sample.
type LogSink struct {
	logger core.Logger
}

// NewLogSink creates a sink logging through logger. A nil logger uses the
// default logger.
func NewLogSink(logger core.Logger) *LogSink {
	if logger == nil {
		logger = core.NewDefaultLogger()
	}
	return &LogSink{logger: logger}
}

// Append logs the sample.
func (s *LogSink) Append(sample Sample) {
	s.logger.Info("resource sample",
		core.F("cpu_percent", sample.CPUPercent),
		core.F("rss_bytes", sample.RSSBytes),
		core.F("ts", sample.Timestamp.Format(time.RFC3339Nano)))
}
