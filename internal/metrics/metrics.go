package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "ipmi2mqtt"

// Metrics holds the service counters on a private registry.
type Metrics struct {
	registry *prometheus.Registry

	successfulFetch prometheus.Counter
	fetchErrors     prometheus.Counter
	publishedValues prometheus.Counter
	fetchDuration   prometheus.Histogram
}

// New registers the service collectors plus the Go and process collectors.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		successfulFetch: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "successful_fetch_total",
			Help:      "Update cycles whose sensor readings were fetched and published.",
		}),
		fetchErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "fetch_errors_total",
			Help:      "Update cycles aborted by a timeout, execution or parse failure.",
		}),
		publishedValues: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "published_values_total",
			Help:      "Sensor values published because they changed or their cache entry expired.",
		}),
		fetchDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "fetch_duration_seconds",
			Help:      "Wall-clock duration of ipmi-sensors invocations.",
			Buckets:   prometheus.ExponentialBuckets(0.05, 2, 10),
		}),
	}

	m.registry.MustRegister(
		m.successfulFetch,
		m.fetchErrors,
		m.publishedValues,
		m.fetchDuration,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

// IncSuccessfulFetch counts a cycle that reached publishing.
func (m *Metrics) IncSuccessfulFetch() { m.successfulFetch.Inc() }

// IncFetchError counts a cycle aborted before publishing.
func (m *Metrics) IncFetchError() { m.fetchErrors.Inc() }

// IncPublishedValue counts one sensor value sent to the bus.
func (m *Metrics) IncPublishedValue() { m.publishedValues.Inc() }

// ObserveFetchDuration records how long ipmi-sensors ran.
func (m *Metrics) ObserveFetchDuration(d time.Duration) { m.fetchDuration.Observe(d.Seconds()) }

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}
