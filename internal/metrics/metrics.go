// Package metrics exposes catalog build, cache and HTTP measurements in
// Prometheus format.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/agentstation/aliasmap/pkg/catalogs"
)

const namespace = "aliasmap"

// Metrics holds every collector. A nil *Metrics is valid and records nothing.
type Metrics struct {
	registry *prometheus.Registry

	fetchAttempts    *prometheus.CounterVec
	providerFailures prometheus.Counter
	buildDuration    prometheus.Histogram
	aliases          prometheus.Gauge
	namespaces       prometheus.Gauge
	providersFailed  prometheus.Gauge
	rebuilds         *prometheus.CounterVec
	cacheRequests    *prometheus.CounterVec
	snapshotBuiltAt  prometheus.Gauge
	httpDuration     *prometheus.HistogramVec
	events           *prometheus.CounterVec
	streamSkips      *prometheus.CounterVec
}

// New registers all collectors on a fresh registry, together with the
// process and Go runtime collectors.
func New() *Metrics {
	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		collectors.NewGoCollector(),
	)
	factory := promauto.With(registry)

	return &Metrics{
		registry: registry,
		fetchAttempts: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "fetch_attempts_total",
				Help:      "Remote call attempts by outcome (success, retry, failed, canceled)",
			},
			[]string{"outcome"},
		),
		providerFailures: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "provider_failures_total",
			Help:      "Providers left out of a snapshot because their fetch failed",
		}),
		buildDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "build_duration_seconds",
			Help:      "Duration of successful catalog builds in seconds",
			Buckets:   []float64{1, 5, 10, 30, 60, 120, 300, 600},
		}),
		aliases: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "snapshot_aliases",
			Help:      "Aliases in the most recently built snapshot",
		}),
		namespaces: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "snapshot_namespaces",
			Help:      "Namespaces in the most recently built snapshot",
		}),
		providersFailed: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "snapshot_failed_providers",
			Help:      "Providers missing from the most recently built snapshot",
		}),
		rebuilds: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "rebuilds_total",
				Help:      "Cache rebuilds by result (success, error)",
			},
			[]string{"result"},
		),
		cacheRequests: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "cache_requests_total",
				Help:      "Cache reads by result (fresh, rebuilt, stale, error)",
			},
			[]string{"result"},
		),
		snapshotBuiltAt: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "snapshot_built_timestamp_seconds",
			Help:      "Unix time the current snapshot was built",
		}),
		httpDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "http_request_duration_seconds",
				Help:      "Duration of HTTP requests in seconds",
				Buckets:   []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10, 30},
			},
			[]string{"route", "method", "status"},
		),
		events: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "events_total",
				Help:      "Rebuild events offered to the broker by type and result (published, dropped)",
			},
			[]string{"type", "result"},
		),
		streamSkips: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "stream_skips_total",
				Help:      "Events a lagging stream client missed, by transport",
			},
			[]string{"transport"},
		),
	}
}

// Registry returns the registry the collectors live on.
func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// FetchAttempt counts one remote call attempt.
func (m *Metrics) FetchAttempt(outcome string) {
	if m == nil {
		return
	}
	m.fetchAttempts.WithLabelValues(outcome).Inc()
}

// ProviderFailed counts a provider left out of a snapshot.
func (m *Metrics) ProviderFailed(string) {
	if m == nil {
		return
	}
	m.providerFailures.Inc()
}

// BuildCompleted records a finished build.
func (m *Metrics) BuildCompleted(d time.Duration, snap *catalogs.Snapshot) {
	if m == nil || snap == nil {
		return
	}
	stats := snap.Statistics()
	m.buildDuration.Observe(d.Seconds())
	m.aliases.Set(float64(stats.TotalAliases))
	m.namespaces.Set(float64(stats.TotalNamespaces))
	m.providersFailed.Set(float64(len(snap.Providers().Failed)))
}

// Rebuild counts a cache rebuild and, on success, the new snapshot time.
func (m *Metrics) Rebuild(snap *catalogs.Snapshot, err error) {
	if m == nil {
		return
	}
	if err != nil {
		m.rebuilds.WithLabelValues("error").Inc()
		return
	}
	m.rebuilds.WithLabelValues("success").Inc()
	if snap != nil {
		m.snapshotBuiltAt.Set(float64(snap.BuiltAt().Unix()))
	}
}

// CacheRequest counts a cache read by how it was served.
func (m *Metrics) CacheRequest(result string) {
	if m == nil {
		return
	}
	m.cacheRequests.WithLabelValues(result).Inc()
}

// ObserveRequest records one HTTP request.
func (m *Metrics) ObserveRequest(route, method string, status int, d time.Duration) {
	if m == nil {
		return
	}
	m.httpDuration.WithLabelValues(route, method, strconv.Itoa(status)).Observe(d.Seconds())
}

// EventPublished counts an event the broker queued.
func (m *Metrics) EventPublished(eventType string) {
	if m == nil {
		return
	}
	m.events.WithLabelValues(eventType, "published").Inc()
}

// EventDropped counts an event the broker had no room for.
func (m *Metrics) EventDropped(eventType string) {
	if m == nil {
		return
	}
	m.events.WithLabelValues(eventType, "dropped").Inc()
}

// StreamSkipped counts an event a slow stream client did not get.
func (m *Metrics) StreamSkipped(transport string) {
	if m == nil {
		return
	}
	m.streamSkips.WithLabelValues(transport).Inc()
}
