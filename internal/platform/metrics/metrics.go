// Copyright (c) 2026 Tablegate. All rights reserved.
// Author: tai.buivan.jp@gmail.com

/*
Package metrics exposes Prometheus instrumentation for the gateway.

It tracks the request surface (per-table traffic and latency) and the health
of the three cache planes, which is the primary operational signal for this
system: a rising miss or error rate on any plane changes the database load
profile immediately.
*/
package metrics

import (
	"net/http"
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Plane label values for cache event counters.
const (
	PlaneCode    = "code"
	PlaneControl = "control"
	PlaneData    = "data"
)

// Event label values for cache event counters.
const (
	EventHit     = "hit"
	EventMiss    = "miss"
	EventBypass  = "bypass"
	EventRefresh = "refresh"
	EventPurge   = "purge"
	EventError   = "error"
)

// Metrics holds all gateway-level Prometheus collectors.
type Metrics struct {
	registry *prometheus.Registry

	requests        *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
	cacheEvents     *prometheus.CounterVec
	bundleBuilds    *prometheus.CounterVec
	versionBumps    *prometheus.CounterVec
}

// New creates a self-contained registry with all gateway collectors plus the
// standard Go runtime and process collectors.
func New() *Metrics {
	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	factory := promauto.With(registry)

	return &Metrics{
		registry: registry,

		requests: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "tablegate_requests_total",
			Help: "Requests handled, by table, method and response status.",
		}, []string{"table", "method", "status"}),

		requestDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "tablegate_request_duration_seconds",
			Help:    "Request latency by method.",
			Buckets: prometheus.DefBuckets,
		}, []string{"method"}),

		cacheEvents: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "tablegate_cache_events_total",
			Help: "Cache plane events (hit, miss, bypass, refresh, purge, error).",
		}, []string{"plane", "event"}),

		bundleBuilds: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "tablegate_bundle_builds_total",
			Help: "Handler bundle builds by outcome (built, reused, failed).",
		}, []string{"outcome"}),

		versionBumps: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "tablegate_version_bumps_total",
			Help: "Control-plane version token bumps, by table.",
		}, []string{"table"}),
	}
}

// Handler returns the /metrics scrape handler backed by this registry.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// ObserveRequest records one handled request.
func (m *Metrics) ObserveRequest(table, method string, status int, seconds float64) {
	if m == nil {
		return
	}
	m.requests.WithLabelValues(table, method, strconv.Itoa(status)).Inc()
	m.requestDuration.WithLabelValues(method).Observe(seconds)
}

// CacheEvent records one cache plane event.
func (m *Metrics) CacheEvent(plane, event string) {
	if m == nil {
		return
	}
	m.cacheEvents.WithLabelValues(plane, event).Inc()
}

// BundleBuild records a handler bundle build outcome.
func (m *Metrics) BundleBuild(outcome string) {
	if m == nil {
		return
	}
	m.bundleBuilds.WithLabelValues(outcome).Inc()
}

// VersionBump records a write-path version token bump.
func (m *Metrics) VersionBump(table string) {
	if m == nil {
		return
	}
	m.versionBumps.WithLabelValues(table).Inc()
}
