// Package metrics exposes Prometheus collectors for the resolve pipeline.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Recorder holds the collectors on its own registry. A nil *Recorder
// discards every observation.
type Recorder struct {
	registry *prometheus.Registry

	resolves       *prometheus.CounterVec
	resolveLatency *prometheus.HistogramVec
	scrapes        *prometheus.CounterVec
	scrapeLatency  prometheus.Histogram
	httpRequests   *prometheus.CounterVec
}

// New creates a Recorder whose metric names start with namespace.
func New(namespace string) *Recorder {
	registry := prometheus.NewRegistry()

	r := &Recorder{
		registry: registry,
		resolves: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "resolves_total",
				Help:      "Resolve calls by outcome.",
			},
			[]string{"outcome"},
		),
		resolveLatency: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "resolve_duration_seconds",
				Help:      "Resolve latency by outcome.",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"outcome"},
		),
		scrapes: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "scrapes_total",
				Help:      "Scraper runs by result (ok or failure kind).",
			},
			[]string{"result"},
		),
		scrapeLatency: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "scrape_duration_seconds",
				Help:      "Wall-clock time of scraper runs.",
				Buckets:   []float64{0.25, 0.5, 1, 2, 4, 8, 15, 30},
			},
		),
		httpRequests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "http_requests_total",
				Help:      "HTTP requests by route pattern and status code.",
			},
			[]string{"method", "route", "status"},
		),
	}

	registry.MustRegister(
		r.resolves,
		r.resolveLatency,
		r.scrapes,
		r.scrapeLatency,
		r.httpRequests,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return r
}

func (r *Recorder) ObserveResolve(outcome string, d time.Duration) {
	if r == nil {
		return
	}
	r.resolves.WithLabelValues(outcome).Inc()
	r.resolveLatency.WithLabelValues(outcome).Observe(d.Seconds())
}

func (r *Recorder) ObserveScrape(result string, d time.Duration) {
	if r == nil {
		return
	}
	r.scrapes.WithLabelValues(result).Inc()
	r.scrapeLatency.Observe(d.Seconds())
}

// ObserveRequest counts one HTTP request. route is the matched pattern,
// not the raw path, to keep label cardinality bounded.
func (r *Recorder) ObserveRequest(method, route, status string) {
	if r == nil {
		return
	}
	r.httpRequests.WithLabelValues(method, route, status).Inc()
}

// Registry returns the registry the collectors are registered on.
func (r *Recorder) Registry() *prometheus.Registry {
	return r.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (r *Recorder) Handler() http.Handler {
	if r == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{Registry: r.registry})
}
