package prometheus

import (
	"errors"
	"fmt"
	"time"

	prom "github.com/prometheus/client_golang/prometheus"
	"github.com/threadwell/threader/core"
)

// ExporterOptions controls collector configuration.
type ExporterOptions struct {
	DurationBuckets []float64
	WaitBuckets     []float64
}

// MetricsExporter adapts core.Metrics to Prometheus collectors.
type MetricsExporter struct {
	workerDurationSeconds *prom.HistogramVec
	workerPanicTotal      *prom.CounterVec
	gateWaitSeconds       *prom.HistogramVec
	sampleSkippedTotal    *prom.CounterVec
}

var _ core.Metrics = (*MetricsExporter)(nil)

// NewMetricsExporter creates and registers Prometheus collectors for core.Metrics.
func NewMetricsExporter(namespace string, reg prom.Registerer, opts ExporterOptions) (*MetricsExporter, error) {
	if namespace == "" {
		namespace = "threader"
	}
	if reg == nil {
		reg = prom.DefaultRegisterer
	}
	durationBuckets := opts.DurationBuckets
	if len(durationBuckets) == 0 {
		durationBuckets = prom.DefBuckets
	}
	waitBuckets := opts.WaitBuckets
	if len(waitBuckets) == 0 {
		waitBuckets = prom.DefBuckets
	}

	durationVec := prom.NewHistogramVec(prom.HistogramOpts{
		Namespace: namespace,
		Name:      "worker_duration_seconds",
		Help:      "Unit execution duration in seconds.",
		Buckets:   durationBuckets,
	}, []string{"worker", "outcome"})
	panicVec := prom.NewCounterVec(prom.CounterOpts{
		Namespace: namespace,
		Name:      "worker_panic_total",
		Help:      "Total number of unit panics.",
	}, []string{"worker"})
	waitVec := prom.NewHistogramVec(prom.HistogramOpts{
		Namespace: namespace,
		Name:      "gate_wait_seconds",
		Help:      "Time spent waiting for a gate permit in seconds.",
		Buckets:   waitBuckets,
	}, []string{"gate"})
	skippedVec := prom.NewCounterVec(prom.CounterOpts{
		Namespace: namespace,
		Name:      "sample_skipped_total",
		Help:      "Total number of skipped sampling intervals.",
	}, []string{"sampler"})

	var err error
	if durationVec, err = registerCollector(reg, durationVec); err != nil {
		return nil, err
	}
	if panicVec, err = registerCollector(reg, panicVec); err != nil {
		return nil, err
	}
	if waitVec, err = registerCollector(reg, waitVec); err != nil {
		return nil, err
	}
	if skippedVec, err = registerCollector(reg, skippedVec); err != nil {
		return nil, err
	}

	return &MetricsExporter{
		workerDurationSeconds: durationVec,
		workerPanicTotal:      panicVec,
		gateWaitSeconds:       waitVec,
		sampleSkippedTotal:    skippedVec,
	}, nil
}

// RecordWorkerDuration records unit execution duration and outcome.
func (m *MetricsExporter) RecordWorkerDuration(workerName string, outcome string, duration time.Duration) {
	if m == nil {
		return
	}
	m.workerDurationSeconds.WithLabelValues(normalizeLabel(workerName, "unknown"), normalizeLabel(outcome, "unknown")).Observe(duration.Seconds())
}

// RecordWorkerPanic records unit panic events.
func (m *MetricsExporter) RecordWorkerPanic(workerName string) {
	if m == nil {
		return
	}
	m.workerPanicTotal.WithLabelValues(normalizeLabel(workerName, "unknown")).Inc()
}

// RecordGateWait records permit wait time.
func (m *MetricsExporter) RecordGateWait(gateName string, wait time.Duration) {
	if m == nil {
		return
	}
	m.gateWaitSeconds.WithLabelValues(normalizeLabel(gateName, "unknown")).Observe(wait.Seconds())
}

// RecordSampleSkipped records skipped sampling intervals.
func (m *MetricsExporter) RecordSampleSkipped(samplerName string) {
	if m == nil {
		return
	}
	m.sampleSkippedTotal.WithLabelValues(normalizeLabel(samplerName, "unknown")).Inc()
}

func normalizeLabel(v string, fallback string) string {
	if v == "" {
		return fallback
	}
	return v
}

func registerCollector[T prom.Collector](reg prom.Registerer, collector T) (T, error) {
	err := reg.Register(collector)
	if err == nil {
		return collector, nil
	}

	var alreadyRegisteredErr prom.AlreadyRegisteredError
	if errors.As(err, &alreadyRegisteredErr) {
		existing, ok := alreadyRegisteredErr.ExistingCollector.(T)
		if !ok {
			return collector, fmt.Errorf("collector type mismatch for %T", collector)
		}
		return existing, nil
	}

	return collector, err
}
