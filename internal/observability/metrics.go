package observability

import (
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "joana_weather"

// Metrics holds the Prometheus collectors for weather resolution.
type Metrics struct {
	// Provider calls. labels: provider, op={current,forecast}, outcome={success,error}
	ProviderRequests *prometheus.CounterVec
	ProviderDuration *prometheus.HistogramVec // labels: provider, op

	// Resolver cache. labels: cache={current,forecast}, result={hit,miss}
	CacheLookups *prometheus.CounterVec
	CacheExpired *prometheus.CounterVec // labels: cache; entries removed by sweeps

	// Total failures after every provider was tried. labels: op
	ResolverFailures *prometheus.CounterVec

	// City name normalization. labels: rule
	NormalizerRules *prometheus.CounterVec
}

func newMetrics() *Metrics {
	return &Metrics{
		ProviderRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "provider_requests_total",
			Help:      "Weather provider calls by provider, operation and outcome.",
		}, []string{"provider", "op", "outcome"}),
		ProviderDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "provider_request_duration_seconds",
			Help:      "Weather provider call duration in seconds.",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		}, []string{"provider", "op"}),
		CacheLookups: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cache_lookups_total",
			Help:      "Resolver cache lookups by cache and result.",
		}, []string{"cache", "result"}),
		CacheExpired: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cache_expired_total",
			Help:      "Expired cache entries removed by background sweeps.",
		}, []string{"cache"}),
		ResolverFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "resolver_failures_total",
			Help:      "Lookups that failed on every configured provider.",
		}, []string{"op"}),
		NormalizerRules: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "normalizer_rules_total",
			Help:      "City name normalizations by the rule that decided them.",
		}, []string{"rule"}),
	}
}

// NewMetrics creates and registers all metrics with the default Prometheus registry.
func NewMetrics() *Metrics {
	m := newMetrics()
	prometheus.MustRegister(
		m.ProviderRequests,
		m.ProviderDuration,
		m.CacheLookups,
		m.CacheExpired,
		m.ResolverFailures,
		m.NormalizerRules,
	)
	return m
}

// NewMetricsForTesting creates unregistered Metrics to avoid
// "already registered" panics when called from multiple tests.
func NewMetricsForTesting() *Metrics {
	return newMetrics()
}
