// Package metrics exposes Prometheus metrics for the HTTP surface, upstream
// calls and recorded activities.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Collector records service metrics. All methods are no-ops on a nil
// *Collector so tests and tools can run without a registry.
type Collector struct {
	httpRequests    *prometheus.CounterVec
	httpDuration    *prometheus.HistogramVec
	upstreamCalls   *prometheus.CounterVec
	upstreamLatency *prometheus.HistogramVec
	activities      *prometheus.CounterVec
	oauthLinks      *prometheus.CounterVec
}

// NewCollector creates a Collector and registers it with reg.
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		httpRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "agentdesk_http_requests_total",
			Help: "HTTP requests by method, route and status code.",
		}, []string{"method", "route", "status_code"}),
		httpDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "agentdesk_http_request_duration_seconds",
			Help:    "HTTP request latency in seconds.",
			Buckets: prometheus.DefBuckets,
		}, []string{"route"}),
		upstreamCalls: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "agentdesk_upstream_calls_total",
			Help: "Calls to external services by service and outcome.",
		}, []string{"service", "outcome"}),
		upstreamLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "agentdesk_upstream_latency_seconds",
			Help:    "Latency of external service calls in seconds.",
			Buckets: prometheus.DefBuckets,
		}, []string{"service"}),
		activities: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "agentdesk_activities_recorded_total",
			Help: "Activity records appended, by type.",
		}, []string{"type"}),
		oauthLinks: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "agentdesk_oauth_link_transitions_total",
			Help: "Twitter OAuth link state transitions.",
		}, []string{"state"}),
	}

	reg.MustRegister(
		c.httpRequests,
		c.httpDuration,
		c.upstreamCalls,
		c.upstreamLatency,
		c.activities,
		c.oauthLinks,
	)
	return c
}

// RecordHTTPRequest records one served request.
func (c *Collector) RecordHTTPRequest(method, route string, status int, d time.Duration) {
	if c == nil {
		return
	}
	c.httpRequests.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	c.httpDuration.WithLabelValues(route).Observe(d.Seconds())
}

// RecordUpstream records one external call.
func (c *Collector) RecordUpstream(service string, err error, d time.Duration) {
	if c == nil {
		return
	}
	outcome := "success"
	if err != nil {
		outcome = "failure"
	}
	c.upstreamCalls.WithLabelValues(service, outcome).Inc()
	c.upstreamLatency.WithLabelValues(service).Observe(d.Seconds())
}

// RecordActivity counts an appended activity.
func (c *Collector) RecordActivity(activityType string) {
	if c == nil {
		return
	}
	c.activities.WithLabelValues(activityType).Inc()
}

// RecordLinkTransition counts an OAuth link state change.
func (c *Collector) RecordLinkTransition(state string) {
	if c == nil {
		return
	}
	c.oauthLinks.WithLabelValues(state).Inc()
}

// Handler serves the metrics of gatherer in the Prometheus text format.
func Handler(gatherer prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}
