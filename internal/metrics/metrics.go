// Package metrics exposes request and sync cycle counters in Prometheus format.
package metrics

import (
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/peteski22/sitebridge/internal/sync"
)

const namespace = "sitebridge"

// Collector records provider request outcomes and sync cycle results.
type Collector struct {
	// cycles counts provider cycles by status.
	cycles *prometheus.CounterVec

	// exported counts exported records by outcome.
	exported *prometheus.CounterVec

	// imported counts imported records.
	imported *prometheus.CounterVec

	// lastSuccess is the Unix time of each provider's last successful cycle.
	lastSuccess *prometheus.GaugeVec

	// registry holds every metric the collector owns.
	registry *prometheus.Registry

	// requestDuration observes request latency including retries.
	requestDuration *prometheus.HistogramVec

	// requests counts provider requests by outcome.
	requests *prometheus.CounterVec
}

// New creates a Collector with its own registry.
func New() (*Collector, error) {
	c := &Collector{
		cycles: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sync_cycles_total",
			Help:      "Provider sync cycles by status.",
		}, []string{"provider", "status"}),
		exported: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "records_exported_total",
			Help:      "Records pushed to providers by outcome.",
		}, []string{"provider", "record_type", "result"}),
		imported: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "records_imported_total",
			Help:      "Records pulled from providers.",
		}, []string{"provider", "record_type"}),
		lastSuccess: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "last_success_timestamp_seconds",
			Help:      "Unix time of the provider's last successful sync cycle.",
		}, []string{"provider"}),
		registry: prometheus.NewRegistry(),
		requestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "request_duration_seconds",
			Help:      "Provider request latency including pacing and retries.",
			Buckets:   prometheus.ExponentialBuckets(0.25, 2, 10),
		}, []string{"provider"}),
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "requests_total",
			Help:      "Provider requests by outcome.",
		}, []string{"provider", "outcome"}),
	}

	for _, col := range []prometheus.Collector{
		c.cycles,
		c.exported,
		c.imported,
		c.lastSuccess,
		c.requestDuration,
		c.requests,
	} {
		if err := c.registry.Register(col); err != nil {
			return nil, fmt.Errorf("registering metric: %w", err)
		}
	}

	return c, nil
}

// Handler serves the collector's metrics.
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{})
}

// ObserveRequest records one completed provider request.
func (c *Collector) ObserveRequest(provider string, outcome string, elapsed time.Duration) {
	c.requests.WithLabelValues(provider, outcome).Inc()
	c.requestDuration.WithLabelValues(provider).Observe(elapsed.Seconds())
}

// RecordResult records a finished provider cycle.
func (c *Collector) RecordResult(result *sync.Result) {
	if result == nil {
		return
	}

	c.cycles.WithLabelValues(result.Provider, string(result.Status)).Inc()

	for t, n := range result.Imported {
		c.imported.WithLabelValues(result.Provider, string(t)).Add(float64(n))
	}
	for t, count := range result.Exported {
		c.exported.WithLabelValues(result.Provider, string(t), "succeeded").Add(float64(count.Succeeded))
		c.exported.WithLabelValues(result.Provider, string(t), "failed").Add(float64(count.Failed))
	}

	if result.Status == sync.StatusSuccess && !result.DryRun {
		c.lastSuccess.WithLabelValues(result.Provider).SetToCurrentTime()
	}
}
