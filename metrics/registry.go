// Package metrics provides a small per-component wrapper around the
// global prometheus registry so packages can register gauges,
// counters and histograms without reaching for prometheus directly.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// CountBuckets are histogram buckets suited for small integer counts.
var CountBuckets = []float64{1, 2, 5, 10, 20, 50, 100, 200, 500}

// LatencyBuckets are histogram buckets suited for sub-minute latencies.
var LatencyBuckets = []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10, 30, 60}

var defaultRegistry = prometheus.NewRegistry()

func init() {
	defaultRegistry.MustRegister(prometheus.NewGoCollector())
	defaultRegistry.MustRegister(prometheus.NewProcessCollector(prometheus.ProcessCollectorOpts{}))
}

// GetRegistry returns the process-wide prometheus registry, suitable
// for mounting with promhttp.HandlerFor.
func GetRegistry() *prometheus.Registry {
	return defaultRegistry
}

// ComponentRegistry namespaces metric names under "<component>_<subsystem>_"
// and registers them against the shared process registry.
type ComponentRegistry struct {
	namespace string
	subsystem string
}

// NewComponentRegistry returns a registry that prefixes every metric it
// creates with component/subsystem.
func NewComponentRegistry(component, subsystem string) *ComponentRegistry {
	return &ComponentRegistry{namespace: component, subsystem: subsystem}
}

// register registers c against the shared process registry, tolerating
// re-registration of an identically-named collector: components may be
// constructed more than once within a process (tests building several
// coordinators, a supervised component restarting in place), and the
// second registration should reuse the collector already in place rather
// than panic.
func register(c prometheus.Collector) prometheus.Collector {
	if err := defaultRegistry.Register(c); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			return are.ExistingCollector
		}
		panic(err)
	}
	return c
}

func (r *ComponentRegistry) NewGauge(opts prometheus.GaugeOpts) prometheus.Gauge {
	opts.Namespace = r.namespace
	opts.Subsystem = r.subsystem
	return register(prometheus.NewGauge(opts)).(prometheus.Gauge)
}

func (r *ComponentRegistry) NewGaugeVec(opts prometheus.GaugeOpts, labels []string) *prometheus.GaugeVec {
	opts.Namespace = r.namespace
	opts.Subsystem = r.subsystem
	return register(prometheus.NewGaugeVec(opts, labels)).(*prometheus.GaugeVec)
}

func (r *ComponentRegistry) NewCounter(opts prometheus.CounterOpts) prometheus.Counter {
	opts.Namespace = r.namespace
	opts.Subsystem = r.subsystem
	return register(prometheus.NewCounter(opts)).(prometheus.Counter)
}

func (r *ComponentRegistry) NewCounterVec(opts prometheus.CounterOpts, labels []string) *prometheus.CounterVec {
	opts.Namespace = r.namespace
	opts.Subsystem = r.subsystem
	return register(prometheus.NewCounterVec(opts, labels)).(*prometheus.CounterVec)
}

func (r *ComponentRegistry) NewHistogram(opts prometheus.HistogramOpts) prometheus.Histogram {
	opts.Namespace = r.namespace
	opts.Subsystem = r.subsystem
	return register(prometheus.NewHistogram(opts)).(prometheus.Histogram)
}
