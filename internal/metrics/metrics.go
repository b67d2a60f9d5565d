// Package metrics holds the Prometheus collectors for an ingestion process.
package metrics

import (
	"fmt"
	"net/http"
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Job outcomes.
const (
	OutcomeArchived = "archived"
	OutcomeSkipped  = "skipped"
	OutcomeEmpty    = "empty"
	OutcomeFailed   = "failed"
	OutcomeNotFound = "not_found"
	OutcomeCached   = "cached"
)

// Collector owns a private registry so tests can create as many as they like.
type Collector struct {
	registry *prometheus.Registry

	Jobs         *prometheus.CounterVec
	Links        *prometheus.CounterVec
	Media        *prometheus.CounterVec
	HTTPRequests *prometheus.CounterVec
}

// NewCollector creates and registers all metrics under namespace.
func NewCollector(namespace string) *Collector {
	c := &Collector{
		registry: prometheus.NewRegistry(),
		Jobs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "jobs_total",
			Help:      "Ingestion jobs by outcome",
		}, []string{"outcome"}),
		Links: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "links_total",
			Help:      "Links routed by kind and outcome",
		}, []string{"kind", "outcome"}),
		Media: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "media_total",
			Help:      "Media items by kind and outcome",
		}, []string{"kind", "outcome"}),
		HTTPRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "Outbound HTTP requests by host and status code",
		}, []string{"host", "code"}),
	}
	c.registry.MustRegister(c.Jobs, c.Links, c.Media, c.HTTPRequests)
	return c
}

// Job counts one job outcome. Safe on a nil Collector.
func (c *Collector) Job(outcome string) {
	if c == nil {
		return
	}
	c.Jobs.WithLabelValues(outcome).Inc()
}

// Link counts one routed link.
func (c *Collector) Link(kind, outcome string) {
	if c == nil {
		return
	}
	c.Links.WithLabelValues(kind, outcome).Inc()
}

// MediaItem counts one media item.
func (c *Collector) MediaItem(kind, outcome string) {
	if c == nil {
		return
	}
	c.Media.WithLabelValues(kind, outcome).Inc()
}

// Request counts one outbound HTTP request; code 0 means a transport error.
func (c *Collector) Request(host string, code int) {
	if c == nil {
		return
	}
	c.HTTPRequests.WithLabelValues(host, strconv.Itoa(code)).Inc()
}

// Handler serves the registry in the Prometheus exposition format.
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{})
}

// WriteTextfile dumps the registry for the node-exporter textfile collector.
func (c *Collector) WriteTextfile(path string) error {
	if err := prometheus.WriteToTextfile(path, c.registry); err != nil {
		return fmt.Errorf("metrics: write textfile: %w", err)
	}
	return nil
}

// Registry exposes the underlying registry for tests.
func (c *Collector) Registry() *prometheus.Registry { return c.registry }
