// Package metrics collects and exposes Prometheus metrics for publishing.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Batch outcome labels.
const (
	OutcomeFull    = "full"
	OutcomePartial = "partial"
	OutcomeFailed  = "failed"
)

// Recorder is the subset used by the publisher and CMS handlers.
type Recorder interface {
	RecordDestination(status string)
	RecordBatch(succeeded, failed int, latency time.Duration)
	RecordCMSPublish(status string)
}

// Collector is the Prometheus-backed Recorder.
type Collector struct {
	destinations *prometheus.CounterVec
	batches      *prometheus.CounterVec
	latency      prometheus.Histogram
	cmsPublish   *prometheus.CounterVec
}

// NewCollector creates a Collector and registers its metrics with reg.
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		destinations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "broadcaster_publish_destinations_total",
			Help: "Per-destination publish attempts by outcome.",
		}, []string{"status"}),
		batches: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "broadcaster_publish_batches_total",
			Help: "Fan-out batches by overall outcome.",
		}, []string{"outcome"}),
		latency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "broadcaster_publish_latency_seconds",
			Help:    "Wall time of a fan-out batch.",
			Buckets: prometheus.DefBuckets,
		}),
		cmsPublish: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "broadcaster_cms_publish_total",
			Help: "Content items sent to the CMS by outcome.",
		}, []string{"status"}),
	}

	reg.MustRegister(c.destinations, c.batches, c.latency, c.cmsPublish)
	return c
}

// RecordDestination counts one destination outcome.
func (c *Collector) RecordDestination(status string) {
	c.destinations.WithLabelValues(status).Inc()
}

// RecordBatch counts a finished batch and observes its latency.
func (c *Collector) RecordBatch(succeeded, failed int, latency time.Duration) {
	c.batches.WithLabelValues(BatchOutcome(succeeded, failed)).Inc()
	c.latency.Observe(latency.Seconds())
}

// RecordCMSPublish counts a CMS create-content call.
func (c *Collector) RecordCMSPublish(status string) {
	c.cmsPublish.WithLabelValues(status).Inc()
}

// BatchOutcome classifies a batch as full, partial or failed.
func BatchOutcome(succeeded, failed int) string {
	switch {
	case succeeded == 0:
		return OutcomeFailed
	case failed > 0:
		return OutcomePartial
	default:
		return OutcomeFull
	}
}

// Handler returns the scrape handler for gatherer.
func Handler(gatherer prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}

// Nop discards everything. Used where metrics are not wired.
type Nop struct{}

func (Nop) RecordDestination(string) {}
func (Nop) RecordBatch(int, int, time.Duration) {}
func (Nop) RecordCMSPublish(string) {}
