package core

import (
	"context"
	"fmt"
	"time"
)

// =============================================================================
// PanicHandler: Interface for handling unit panics
// =============================================================================

// PanicHandler is called when a submitted unit panics during execution.
// This allows custom panic handling, logging, and recovery strategies.
//
// Implementations should be thread-safe as they may be called concurrently.
type PanicHandler interface {
	// HandlePanic is called when a unit panics.
	//
	// Parameters:
	// - ctx: The context of the panicked unit
	// - workerName: The display name of the worker, empty for unnamed submissions
	// - panicInfo: The panic value recovered from the unit
	// - stackTrace: The stack trace at the time of panic
	HandlePanic(ctx context.Context, workerName string, panicInfo any, stackTrace []byte)
}

// DefaultPanicHandler provides a basic panic handler that logs to stdout.
type DefaultPanicHandler struct{}

// HandlePanic prints panic information to stdout.
func (h *DefaultPanicHandler) HandlePanic(ctx context.Context, workerName string, panicInfo any, stackTrace []byte) {
	if workerName != "" {
		fmt.Printf("[Worker %s] Panic: %v\nStack trace:\n%s", workerName, panicInfo, stackTrace)
	} else {
		fmt.Printf("[Worker] Panic: %v\nStack trace:\n%s", panicInfo, stackTrace)
	}
}

// =============================================================================
// Metrics: Interface for observability and monitoring
// =============================================================================

// Metrics defines the interface for collecting execution metrics.
// Implementations can send metrics to monitoring systems (Prometheus, StatsD,
// etc.).
//
// Methods should be non-blocking and fast to avoid impacting execution
// performance.
type Metrics interface {
	// RecordWorkerDuration records how long a unit took to execute and the
	// terminal outcome it reached ("succeeded", "failed", "cancelled").
	RecordWorkerDuration(workerName string, outcome string, duration time.Duration)

	// RecordWorkerPanic records that a unit panicked during execution.
	RecordWorkerPanic(workerName string)

	// RecordGateWait records how long an acquirer waited for a gate permit.
	RecordGateWait(gateName string, wait time.Duration)

	// RecordSampleSkipped records that a resource snapshot read failed and
	// the sampling interval was skipped.
	RecordSampleSkipped(samplerName string)
}

// NilMetrics provides a no-op metrics implementation that does nothing.
// This is the default when no metrics interface is provided.
type NilMetrics struct{}

// RecordWorkerDuration is a no-op.
func (m *NilMetrics) RecordWorkerDuration(workerName string, outcome string, duration time.Duration) {
}

// RecordWorkerPanic is a no-op.
func (m *NilMetrics) RecordWorkerPanic(workerName string) {}

// RecordGateWait is a no-op.
func (m *NilMetrics) RecordGateWait(gateName string, wait time.Duration) {}

// RecordSampleSkipped is a no-op.
func (m *NilMetrics) RecordSampleSkipped(samplerName string) {}

// =============================================================================
// Config: Shared collaborators for gates and workers
// =============================================================================

// Config holds the pluggable collaborators used by gates and workers.
// All fields are optional; nil fields are replaced by default implementations.
type Config struct {
	// PanicHandler is called when a unit panics. Defaults to DefaultPanicHandler.
	PanicHandler PanicHandler

	// Metrics receives execution metrics. Defaults to NilMetrics.
	Metrics Metrics

	// Logger receives diagnostic output. Defaults to DefaultLogger.
	Logger Logger
}

// DefaultConfig returns a config with default collaborators.
func DefaultConfig() *Config {
	return &Config{
		PanicHandler: &DefaultPanicHandler{},
		Metrics:      &NilMetrics{},
		Logger:       NewDefaultLogger(),
	}
}

// withDefaults returns a copy of c with nil fields filled in. A nil receiver
// yields DefaultConfig().
func (c *Config) withDefaults() *Config {
	if c == nil {
		return DefaultConfig()
	}
	out := *c
	if out.PanicHandler == nil {
		out.PanicHandler = &DefaultPanicHandler{}
	}
	if out.Metrics == nil {
		out.Metrics = &NilMetrics{}
	}
	if out.Logger == nil {
		out.Logger = NewDefaultLogger()
	}
	return &out
}
