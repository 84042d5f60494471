package middleware

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/vango-dev/frp/pkg/frp"
)

// MetricsConfig configures the Prometheus metrics middleware.
type MetricsConfig struct {
	// Namespace is the metrics namespace (default: "frp").
	Namespace string

	// Subsystem is the metrics subsystem (default: "").
	Subsystem string

	// ConstLabels are constant labels added to all metrics.
	ConstLabels prometheus.Labels

	// Buckets are the histogram buckets for step duration.
	// Default: prometheus.DefBuckets
	Buckets []float64

	// Registry is the Prometheus registry to use.
	// Default: prometheus.DefaultRegisterer
	Registry prometheus.Registerer

	// Stats, when set, backs the live_nodes, free_slots and
	// deferred_pending gauges. It is called once per collection from the
	// scraping goroutine. When it fails the gauges are left out.
	Stats func() (frp.Stats, error)
}

// MetricsOption configures the Prometheus metrics middleware.
type MetricsOption func(*MetricsConfig)

// WithNamespace sets the metrics namespace.
func WithNamespace(namespace string) MetricsOption {
	return func(c *MetricsConfig) {
		c.Namespace = namespace
	}
}

// WithSubsystem sets the metrics subsystem.
func WithSubsystem(subsystem string) MetricsOption {
	return func(c *MetricsConfig) {
		c.Subsystem = subsystem
	}
}

// WithConstLabels sets constant labels for all metrics.
func WithConstLabels(labels prometheus.Labels) MetricsOption {
	return func(c *MetricsConfig) {
		c.ConstLabels = labels
	}
}

// WithBuckets sets the histogram buckets.
func WithBuckets(buckets []float64) MetricsOption {
	return func(c *MetricsConfig) {
		c.Buckets = buckets
	}
}

// WithRegistry sets the Prometheus registry.
func WithRegistry(registry prometheus.Registerer) MetricsOption {
	return func(c *MetricsConfig) {
		c.Registry = registry
	}
}

// WithStats exports arena gauges read through fn. A Runtime is not safe
// for concurrent use, so fn must hop onto the goroutine that owns it.
func WithStats(fn func() (frp.Stats, error)) MetricsOption {
	return func(c *MetricsConfig) {
		c.Stats = fn
	}
}

func defaultMetricsConfig() MetricsConfig {
	return MetricsConfig{
		Namespace: "frp",
		Buckets:   prometheus.DefBuckets,
		Registry:  prometheus.DefaultRegisterer,
	}
}

// Metrics holds the Prometheus collectors fed by the step middleware.
type Metrics struct {
	steps        *prometheus.CounterVec
	stepDuration prometheus.Histogram
	emissions    prometheus.Counter
	purged       prometheus.Counter
	scheduled    prometheus.Counter
	aborted      *prometheus.CounterVec
}

// NewMetrics registers the step collectors with the configured registry.
//
// Metrics collected:
//   - frp_steps_total: Counter of steps by kind (immediate, deferred)
//   - frp_step_duration_seconds: Histogram of step duration
//   - frp_emissions_total: Counter of notifications delivered
//   - frp_purged_edges_total: Counter of dead consumer registrations removed
//   - frp_deferred_scheduled_total: Counter of emissions queued for later
//   - frp_steps_aborted_total: Counter of aborted steps by error code
//   - frp_live_nodes, frp_free_slots, frp_deferred_pending: gauges (WithStats)
//
// NewMetrics panics if the collectors are already registered.
func NewMetrics(opts ...MetricsOption) *Metrics {
	config := defaultMetricsConfig()
	for _, opt := range opts {
		opt(&config)
	}
	factory := promauto.With(config.Registry)

	m := &Metrics{
		steps: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace:   config.Namespace,
			Subsystem:   config.Subsystem,
			Name:        "steps_total",
			Help:        "Total number of propagation steps",
			ConstLabels: config.ConstLabels,
		}, []string{"kind"}),

		stepDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace:   config.Namespace,
			Subsystem:   config.Subsystem,
			Name:        "step_duration_seconds",
			Help:        "Propagation step duration in seconds",
			ConstLabels: config.ConstLabels,
			Buckets:     config.Buckets,
		}),

		emissions: factory.NewCounter(prometheus.CounterOpts{
			Namespace:   config.Namespace,
			Subsystem:   config.Subsystem,
			Name:        "emissions_total",
			Help:        "Total notifications delivered to consumers",
			ConstLabels: config.ConstLabels,
		}),

		purged: factory.NewCounter(prometheus.CounterOpts{
			Namespace:   config.Namespace,
			Subsystem:   config.Subsystem,
			Name:        "purged_edges_total",
			Help:        "Total dead consumer registrations removed during propagation",
			ConstLabels: config.ConstLabels,
		}),

		scheduled: factory.NewCounter(prometheus.CounterOpts{
			Namespace:   config.Namespace,
			Subsystem:   config.Subsystem,
			Name:        "deferred_scheduled_total",
			Help:        "Total emissions scheduled for a later step",
			ConstLabels: config.ConstLabels,
		}),

		aborted: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace:   config.Namespace,
			Subsystem:   config.Subsystem,
			Name:        "steps_aborted_total",
			Help:        "Total propagation steps aborted by a panic",
			ConstLabels: config.ConstLabels,
		}, []string{"code"}),
	}

	if config.Stats != nil {
		config.Registry.MustRegister(newStatsCollector(config))
	}

	return m
}

// Prometheus creates metrics with NewMetrics and returns their middleware.
//
//	rt := frp.NewRuntime(frp.WithMiddleware(
//	    middleware.Prometheus(middleware.WithNamespace("myapp")),
//	))
//	http.Handle("/metrics", promhttp.Handler())
func Prometheus(opts ...MetricsOption) frp.Middleware {
	return NewMetrics(opts...).Middleware()
}

// Middleware returns the step middleware that feeds m.
func (m *Metrics) Middleware() frp.Middleware {
	return func(step *frp.Step, next func()) {
		start := time.Now()
		completed := false
		defer func() {
			m.stepDuration.Observe(time.Since(start).Seconds())
			m.emissions.Add(float64(step.Emissions))
			m.purged.Add(float64(step.Purged))
			m.scheduled.Add(float64(step.Scheduled))
			m.steps.WithLabelValues(stepKind(step)).Inc()
			if !completed {
				r := recover()
				m.aborted.WithLabelValues(abortCode(r)).Inc()
				panic(r)
			}
		}()

		next()
		completed = true
	}
}

// statsCollector exports the arena gauges from a single Stats read.
type statsCollector struct {
	read      func() (frp.Stats, error)
	liveNodes *prometheus.Desc
	freeSlots *prometheus.Desc
	deferred  *prometheus.Desc
}

func newStatsCollector(config MetricsConfig) *statsCollector {
	desc := func(name, help string) *prometheus.Desc {
		return prometheus.NewDesc(
			prometheus.BuildFQName(config.Namespace, config.Subsystem, name),
			help, nil, config.ConstLabels)
	}
	return &statsCollector{
		read:      config.Stats,
		liveNodes: desc("live_nodes", "Nodes currently allocated in the arena"),
		freeSlots: desc("free_slots", "Arena slots awaiting reuse"),
		deferred:  desc("deferred_pending", "Emissions waiting in the deferred queue"),
	}
}

func (c *statsCollector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.liveNodes
	ch <- c.freeSlots
	ch <- c.deferred
}

func (c *statsCollector) Collect(ch chan<- prometheus.Metric) {
	st, err := c.read()
	if err != nil {
		return
	}
	ch <- prometheus.MustNewConstMetric(c.liveNodes, prometheus.GaugeValue, float64(st.LiveNodes))
	ch <- prometheus.MustNewConstMetric(c.freeSlots, prometheus.GaugeValue, float64(st.FreeSlots))
	ch <- prometheus.MustNewConstMetric(c.deferred, prometheus.GaugeValue, float64(st.Deferred))
}

func stepKind(step *frp.Step) string {
	if step.Deferred {
		return "deferred"
	}
	return "immediate"
}

// abortCode labels a recovered panic by its error code.
func abortCode(r any) string {
	if ne, ok := frp.AsNodeError(r); ok {
		return ne.Code
	}
	return "panic"
}
