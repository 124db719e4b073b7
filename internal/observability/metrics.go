package observability

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Collector holds the Prometheus metrics for the core runtime. Callers hand
// its Registry to promhttp for scraping.
type Collector struct {
	registry *prometheus.Registry

	// Container metrics
	Registrations      *prometheus.CounterVec
	Resolutions        *prometheus.CounterVec
	ResolutionFailures prometheus.Counter

	// Locator metrics
	CacheHits   prometheus.Counter
	CacheMisses prometheus.Counter

	// Lifecycle metrics
	ManagersInitialized prometheus.Counter
	ManagersFailed      prometheus.Counter
	PhaseDuration       *prometheus.HistogramVec
	ManagerInitDuration *prometheus.HistogramVec
	BringUpTotal        *prometheus.CounterVec
}

// NewCollector creates a metrics collector with its own registry so repeated
// construction in tests never trips duplicate registration.
func NewCollector(namespace string) *Collector {
	registry := prometheus.NewRegistry()

	registrations := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "container_registrations_total",
			Help:      "Total service registrations by lifetime",
		},
		[]string{"lifetime"},
	)
	resolutions := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "container_resolutions_total",
			Help:      "Total successful service resolutions by lifetime",
		},
		[]string{"lifetime"},
	)
	resolutionFailures := prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "container_resolution_failures_total",
			Help:      "Total failed service resolutions",
		},
	)
	cacheHits := prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "locator_cache_hits_total",
			Help:      "Total locator cache hits",
		},
	)
	cacheMisses := prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "locator_cache_misses_total",
			Help:      "Total locator cache misses",
		},
	)
	managersInitialized := prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "managers_initialized_total",
			Help:      "Total managers successfully initialized",
		},
	)
	managersFailed := prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "managers_failed_total",
			Help:      "Total managers that exhausted their initialization retries",
		},
	)
	phaseDuration := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "phase_duration_seconds",
			Help:      "Duration of each initialization phase",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"phase"},
	)
	managerInitDuration := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "manager_init_duration_seconds",
			Help:      "Duration of individual manager initialization attempts",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"manager"},
	)
	bringUpTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "bring_up_total",
			Help:      "Bring-up attempts by terminal outcome",
		},
		[]string{"outcome"},
	)

	registry.MustRegister(
		registrations, resolutions, resolutionFailures,
		cacheHits, cacheMisses,
		managersInitialized, managersFailed,
		phaseDuration, managerInitDuration, bringUpTotal,
	)

	return &Collector{
		registry:            registry,
		Registrations:       registrations,
		Resolutions:         resolutions,
		ResolutionFailures:  resolutionFailures,
		CacheHits:           cacheHits,
		CacheMisses:         cacheMisses,
		ManagersInitialized: managersInitialized,
		ManagersFailed:      managersFailed,
		PhaseDuration:       phaseDuration,
		ManagerInitDuration: managerInitDuration,
		BringUpTotal:        bringUpTotal,
	}
}

// Registry exposes the underlying registry for promhttp.
func (c *Collector) Registry() *prometheus.Registry {
	return c.registry
}

// ObservePhase records one phase execution.
func (c *Collector) ObservePhase(phase string, elapsed time.Duration) {
	c.PhaseDuration.WithLabelValues(phase).Observe(elapsed.Seconds())
}

// ObserveManagerInit records one manager initialization attempt.
func (c *Collector) ObserveManagerInit(manager string, elapsed time.Duration, success bool) {
	c.ManagerInitDuration.WithLabelValues(manager).Observe(elapsed.Seconds())
	if success {
		c.ManagersInitialized.Inc()
	} else {
		c.ManagersFailed.Inc()
	}
}
