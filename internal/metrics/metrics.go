// Package metrics exposes the service's Prometheus collectors on a private registry.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the collectors recorded by nodes, the dialer, triggers and the REST API.
type Metrics struct {
	nodeExecutions *prometheus.CounterVec
	nodeDuration   *prometheus.HistogramVec
	callsPlaced    *prometheus.CounterVec
	triggerFires   *prometheus.CounterVec
	activeTriggers prometheus.Gauge

	httpRequestsTotal   *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec

	registry *prometheus.Registry
}

// New registers all collectors, plus Go and process collectors, on a fresh registry.
func New() *Metrics {
	registry := prometheus.NewRegistry()
	m := &Metrics{
		nodeExecutions: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "callflow_node_executions_total",
				Help: "Node executions by node type and outcome",
			},
			[]string{"node_type", "outcome"},
		),
		nodeDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "callflow_node_duration_seconds",
				Help:    "Node execution latency in seconds",
				Buckets: []float64{0.05, 0.1, 0.5, 1, 5, 15, 60, 300},
			},
			[]string{"node_type"},
		),
		callsPlaced: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "callflow_calls_total",
				Help: "Outbound call attempts by call type and outcome",
			},
			[]string{"call_type", "outcome"},
		),
		triggerFires: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "callflow_trigger_fires_total",
				Help: "Schedule trigger fires by result (emitted, throttled, not_started, error)",
			},
			[]string{"result"},
		),
		activeTriggers: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "callflow_active_triggers",
				Help: "Workflows with registered schedule triggers",
			},
		),
		httpRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "callflow_http_requests_total",
				Help: "REST API requests by method, route and status",
			},
			[]string{"method", "route", "status"},
		),
		httpRequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "callflow_http_request_duration_seconds",
				Help:    "REST API latency in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "route"},
		),
		registry: registry,
	}
	registry.MustRegister(
		m.nodeExecutions, m.nodeDuration, m.callsPlaced, m.triggerFires, m.activeTriggers,
		m.httpRequestsTotal, m.httpRequestDuration,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

// Registry returns the underlying registry.
func (m *Metrics) Registry() *prometheus.Registry { return m.registry }

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// RecordNode records one node execution. Nil-safe.
func (m *Metrics) RecordNode(nodeType, outcome string, d time.Duration) {
	if m == nil {
		return
	}
	m.nodeExecutions.WithLabelValues(nodeType, outcome).Inc()
	m.nodeDuration.WithLabelValues(nodeType).Observe(d.Seconds())
}

// RecordCall records one call attempt. Nil-safe.
func (m *Metrics) RecordCall(callType, outcome string) {
	if m == nil {
		return
	}
	m.callsPlaced.WithLabelValues(callType, outcome).Inc()
}

// RecordTriggerFire records one cron fire. Nil-safe.
func (m *Metrics) RecordTriggerFire(result string) {
	if m == nil {
		return
	}
	m.triggerFires.WithLabelValues(result).Inc()
}

// SetActiveTriggers sets the registered-workflow gauge. Nil-safe.
func (m *Metrics) SetActiveTriggers(n int) {
	if m == nil {
		return
	}
	m.activeTriggers.Set(float64(n))
}

// GinMiddleware records request counts and latency by matched route.
func (m *Metrics) GinMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		m.httpRequestsTotal.WithLabelValues(c.Request.Method, route, strconv.Itoa(c.Writer.Status())).Inc()
		m.httpRequestDuration.WithLabelValues(c.Request.Method, route).Observe(time.Since(start).Seconds())
	}
}
