package prometheus

import (
	"context"
	"sync"
	"time"

	prom "github.com/prometheus/client_golang/prometheus"
	"github.com/threadwell/threader/core"
	"github.com/threadwell/threader/monitor"
)

// GateSnapshotProvider provides current gate occupancy snapshots.
type GateSnapshotProvider interface {
	Stats() core.GateStats
}

// SamplerSnapshotProvider provides current sampler progress snapshots.
type SamplerSnapshotProvider interface {
	Stats() monitor.SamplerStats
}

// SnapshotPoller periodically exports gate/sampler Stats() snapshots into
// Prometheus gauges.
type SnapshotPoller struct {
	interval time.Duration

	gatesMu sync.RWMutex
	gates   map[string]GateSnapshotProvider

	samplersMu sync.RWMutex
	samplers   map[string]SamplerSnapshotProvider

	gateCapacity *prom.GaugeVec
	gateInUse    *prom.GaugeVec
	gateWaiting  *prom.GaugeVec

	samplerRunning   *prom.GaugeVec
	samplerCollected *prom.GaugeVec
	samplerSkipped   *prom.GaugeVec
	processCPU       *prom.GaugeVec
	processRSS       *prom.GaugeVec

	stateMu sync.Mutex
	running bool
	cancel  context.CancelFunc
	done    chan struct{}
}

// NewSnapshotPoller creates a snapshot poller and registers its collectors.
func NewSnapshotPoller(reg prom.Registerer, interval time.Duration) (*SnapshotPoller, error) {
	if reg == nil {
		reg = prom.DefaultRegisterer
	}
	if interval <= 0 {
		interval = time.Second
	}

	gateCapacity := prom.NewGaugeVec(prom.GaugeOpts{
		Namespace: "threader",
		Name:      "gate_capacity",
		Help:      "Configured permit capacity per gate.",
	}, []string{"gate"})
	gateInUse := prom.NewGaugeVec(prom.GaugeOpts{
		Namespace: "threader",
		Name:      "gate_in_use",
		Help:      "Outstanding permits per gate.",
	}, []string{"gate"})
	gateWaiting := prom.NewGaugeVec(prom.GaugeOpts{
		Namespace: "threader",
		Name:      "gate_waiting",
		Help:      "Blocked acquirers per gate.",
	}, []string{"gate"})

	samplerRunning := prom.NewGaugeVec(prom.GaugeOpts{
		Namespace: "threader",
		Name:      "sampler_running",
		Help:      "Sampler running state (1=running, 0=not running).",
	}, []string{"sampler"})
	samplerCollected := prom.NewGaugeVec(prom.GaugeOpts{
		Namespace: "threader",
		Name:      "sampler_collected",
		Help:      "Sampler collected sample count snapshot.",
	}, []string{"sampler"})
	samplerSkipped := prom.NewGaugeVec(prom.GaugeOpts{
		Namespace: "threader",
		Name:      "sampler_skipped",
		Help:      "Sampler skipped interval count snapshot.",
	}, []string{"sampler"})
	processCPU := prom.NewGaugeVec(prom.GaugeOpts{
		Namespace: "threader",
		Name:      "process_cpu_percent",
		Help:      "Last observed process CPU percentage.",
	}, []string{"sampler"})
	processRSS := prom.NewGaugeVec(prom.GaugeOpts{
		Namespace: "threader",
		Name:      "process_resident_memory_bytes",
		Help:      "Last observed process resident memory in bytes.",
	}, []string{"sampler"})

	var err error
	if gateCapacity, err = registerCollector(reg, gateCapacity); err != nil {
		return nil, err
	}
	if gateInUse, err = registerCollector(reg, gateInUse); err != nil {
		return nil, err
	}
	if gateWaiting, err = registerCollector(reg, gateWaiting); err != nil {
		return nil, err
	}
	if samplerRunning, err = registerCollector(reg, samplerRunning); err != nil {
		return nil, err
	}
	if samplerCollected, err = registerCollector(reg, samplerCollected); err != nil {
		return nil, err
	}
	if samplerSkipped, err = registerCollector(reg, samplerSkipped); err != nil {
		return nil, err
	}
	if processCPU, err = registerCollector(reg, processCPU); err != nil {
		return nil, err
	}
	if processRSS, err = registerCollector(reg, processRSS); err != nil {
		return nil, err
	}

	return &SnapshotPoller{
		interval:         interval,
		gates:            make(map[string]GateSnapshotProvider),
		samplers:         make(map[string]SamplerSnapshotProvider),
		gateCapacity:     gateCapacity,
		gateInUse:        gateInUse,
		gateWaiting:      gateWaiting,
		samplerRunning:   samplerRunning,
		samplerCollected: samplerCollected,
		samplerSkipped:   samplerSkipped,
		processCPU:       processCPU,
		processRSS:       processRSS,
	}, nil
}

// AddGate adds or replaces a gate snapshot provider by name.
func (p *SnapshotPoller) AddGate(name string, provider GateSnapshotProvider) {
	if p == nil || provider == nil {
		return
	}
	name = normalizeLabel(name, "gate")
	p.gatesMu.Lock()
	p.gates[name] = provider
	p.gatesMu.Unlock()
}

// AddSampler adds or replaces a sampler snapshot provider by name.
func (p *SnapshotPoller) AddSampler(name string, provider SamplerSnapshotProvider) {
	if p == nil || provider == nil {
		return
	}
	name = normalizeLabel(name, "sampler")
	p.samplersMu.Lock()
	p.samplers[name] = provider
	p.samplersMu.Unlock()
}

// Start begins periodic polling; repeated calls are no-ops.
func (p *SnapshotPoller) Start(ctx context.Context) {
	if p == nil {
		return
	}

	p.stateMu.Lock()
	if p.running {
		p.stateMu.Unlock()
		return
	}
	pollCtx, cancel := context.WithCancel(ctx)
	p.cancel = cancel
	p.done = make(chan struct{})
	p.running = true
	p.stateMu.Unlock()

	go p.loop(pollCtx)
}

// Stop stops periodic polling; repeated calls are safe.
func (p *SnapshotPoller) Stop() {
	if p == nil {
		return
	}

	p.stateMu.Lock()
	if !p.running {
		p.stateMu.Unlock()
		return
	}
	cancel := p.cancel
	done := p.done
	p.stateMu.Unlock()

	if cancel != nil {
		cancel()
	}
	if done != nil {
		<-done
	}

	p.stateMu.Lock()
	p.running = false
	p.cancel = nil
	p.done = nil
	p.stateMu.Unlock()
}

func (p *SnapshotPoller) loop(ctx context.Context) {
	defer close(p.done)

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	p.collectOnce()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			p.collectOnce()
		}
	}
}

func (p *SnapshotPoller) collectOnce() {
	p.gatesMu.RLock()
	for name, provider := range p.gates {
		stats := provider.Stats()
		p.gateCapacity.WithLabelValues(name).Set(float64(stats.Capacity))
		p.gateInUse.WithLabelValues(name).Set(float64(stats.InUse))
		p.gateWaiting.WithLabelValues(name).Set(float64(stats.Waiting))
	}
	p.gatesMu.RUnlock()

	p.samplersMu.RLock()
	for name, provider := range p.samplers {
		stats := provider.Stats()
		if stats.State == monitor.StateRunning.String() {
			p.samplerRunning.WithLabelValues(name).Set(1)
		} else {
			p.samplerRunning.WithLabelValues(name).Set(0)
		}
		p.samplerCollected.WithLabelValues(name).Set(float64(stats.Collected))
		p.samplerSkipped.WithLabelValues(name).Set(float64(stats.Skipped))
		p.processCPU.WithLabelValues(name).Set(stats.LastCPUPercent)
		p.processRSS.WithLabelValues(name).Set(float64(stats.LastRSSBytes))
	}
	p.samplersMu.RUnlock()
}
