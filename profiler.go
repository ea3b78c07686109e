package particles

import (
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
)

// Profiler scopes used by Simulation.
const (
	ScopeReset   = "reset"
	ScopeInit    = "init"
	ScopePrewarm = "prewarm"
	ScopeUpdate  = "update"
	ScopeDraw    = "draw"
)

// Profiler records the CPU time of named frame phases and a few counters. When
// registered it also exports them as Prometheus collectors.
type Profiler struct {
	mu         sync.Mutex
	scopes     map[string]time.Duration
	startTimes map[string]time.Time
	counts     map[string]int
	order      []string

	steps    prometheus.Counter
	resets   prometheus.Counter
	stepTime prometheus.Histogram
	capacity prometheus.Gauge
}

func NewProfiler() *Profiler {
	return &Profiler{
		scopes:     make(map[string]time.Duration),
		startTimes: make(map[string]time.Time),
		counts:     make(map[string]int),
		steps: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "particles",
			Name:      "steps_total",
			Help:      "Simulation ticks submitted to the device.",
		}),
		resets: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "particles",
			Name:      "resets_total",
			Help:      "Resource resets caused by shape or particle count changes.",
		}),
		stepTime: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "particles",
			Name:      "step_seconds",
			Help:      "CPU time spent encoding and submitting one tick.",
			Buckets:   prometheus.ExponentialBuckets(0.0001, 2, 14),
		}),
		capacity: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "particles",
			Name:      "capacity",
			Help:      "Particle slots in the allocated state buffers.",
		}),
	}
}

// Register adds the profiler's collectors to reg.
func (p *Profiler) Register(reg prometheus.Registerer) error {
	for _, c := range []prometheus.Collector{p.steps, p.resets, p.stepTime, p.capacity} {
		if err := reg.Register(c); err != nil {
			return errors.Wrap(err, "profiler: register collector")
		}
	}
	return nil
}

func (p *Profiler) BeginScope(name string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.startTimes[name] = time.Now()
	for _, n := range p.order {
		if n == name {
			return
		}
	}
	p.order = append(p.order, name)
}

func (p *Profiler) EndScope(name string) time.Duration {
	p.mu.Lock()
	defer p.mu.Unlock()
	start, ok := p.startTimes[name]
	if !ok {
		return 0
	}
	d := time.Since(start)
	p.scopes[name] = d
	if name == ScopeUpdate {
		p.steps.Inc()
		p.stepTime.Observe(d.Seconds())
	}
	if name == ScopeReset {
		p.resets.Inc()
	}
	return d
}

func (p *Profiler) SetCount(name string, count int) {
	p.mu.Lock()
	p.counts[name] = count
	p.mu.Unlock()
	if name == "capacity" {
		p.capacity.Set(float64(count))
	}
}

func (p *Profiler) Scope(name string) time.Duration {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.scopes[name]
}

func (p *Profiler) Count(name string) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.counts[name]
}

// Reset zeroes the scope timings and keeps their display order.
func (p *Profiler) Reset() {
	p.mu.Lock()
	defer p.mu.Unlock()
	for k := range p.scopes {
		p.scopes[k] = 0
	}
}

func (p *Profiler) String() string {
	p.mu.Lock()
	defer p.mu.Unlock()

	var sb strings.Builder
	sb.WriteString("Timings (CPU):\n")
	for _, name := range p.order {
		ms := float64(p.scopes[name].Microseconds()) / 1000.0
		sb.WriteString(fmt.Sprintf("  %-10s: %.2f ms\n", name, ms))
	}

	sb.WriteString("\nStats:\n")
	keys := make([]string, 0, len(p.counts))
	for k := range p.counts {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		sb.WriteString(fmt.Sprintf("  %-10s: %d\n", k, p.counts[k]))
	}
	return sb.String()
}
