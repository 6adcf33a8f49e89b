package metrics

import (
    "net/http"
    "time"

    "github.com/prometheus/client_golang/prometheus"
    "github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics provides Prometheus metrics collection for the proxy.
// Tracks request outcomes, cache occupancy/eviction, dispatch queue
// depth, and upstream connect latency for monitoring.
// Each instance owns a private registry so tests can construct more
// than one Metrics without colliding on the default global registry.
type Metrics struct {
    registry *prometheus.Registry

    requestsTotal      *prometheus.CounterVec   // outcome: hit, miss, error
    requestDuration    *prometheus.HistogramVec // seconds, by outcome
    cacheBytesUsed      prometheus.Gauge         // cachedTotal
    cacheEntries        prometheus.Gauge         // in-use entry count
    cacheEvictionsTotal prometheus.Counter
    queueDepth          prometheus.Gauge // pending work-queue slots
    idleWorkers         prometheus.Gauge // workers currently idle
    upstreamConnect     *prometheus.HistogramVec
    addressHealth       *prometheus.GaugeVec // resolved-address health (1/0)
}

// NewMetrics creates a new metrics collector with its own registry and
// registers every instrument. Time Complexity: O(1).
func NewMetrics() *Metrics {
    registry := prometheus.NewRegistry()

    m := &Metrics{
        registry: registry,
        requestsTotal: prometheus.NewCounterVec(
            prometheus.CounterOpts{
                Name: "proxy_requests_total",
                Help: "Total number of proxied requests by outcome",
            },
            []string{"outcome"},
        ),
        requestDuration: prometheus.NewHistogramVec(
            prometheus.HistogramOpts{
                Name:    "proxy_request_duration_seconds",
                Help:    "Request pipeline duration in seconds",
                Buckets: prometheus.DefBuckets,
            },
            []string{"outcome"},
        ),
        cacheBytesUsed: prometheus.NewGauge(prometheus.GaugeOpts{
            Name: "proxy_cache_bytes_used",
            Help: "Current total bytes held by in-use cache entries",
        }),
        cacheEntries: prometheus.NewGauge(prometheus.GaugeOpts{
            Name: "proxy_cache_entries",
            Help: "Current number of in-use cache entries",
        }),
        cacheEvictionsTotal: prometheus.NewCounter(prometheus.CounterOpts{
            Name: "proxy_cache_evictions_total",
            Help: "Total number of LRU cache evictions",
        }),
        queueDepth: prometheus.NewGauge(prometheus.GaugeOpts{
            Name: "proxy_queue_depth",
            Help: "Current number of pending entries in the work queue",
        }),
        idleWorkers: prometheus.NewGauge(prometheus.GaugeOpts{
            Name: "proxy_idle_workers",
            Help: "Current number of idle worker goroutines",
        }),
        upstreamConnect: prometheus.NewHistogramVec(
            prometheus.HistogramOpts{
                Name:    "proxy_upstream_connect_duration_seconds",
                Help:    "Upstream dial latency in seconds",
                Buckets: prometheus.DefBuckets,
            },
            []string{"result"},
        ),
        addressHealth: prometheus.NewGaugeVec(
            prometheus.GaugeOpts{
                Name: "proxy_upstream_address_health",
                Help: "Resolved upstream address health (1=healthy, 0=unhealthy)",
            },
            []string{"address"},
        ),
    }

    registry.MustRegister(
        m.requestsTotal,
        m.requestDuration,
        m.cacheBytesUsed,
        m.cacheEntries,
        m.cacheEvictionsTotal,
        m.queueDepth,
        m.idleWorkers,
        m.upstreamConnect,
        m.addressHealth,
    )

    return m
}

// RecordRequest records a completed pipeline run's outcome and duration.
// outcome is one of "hit", "miss", or "error".
func (m *Metrics) RecordRequest(outcome string, duration time.Duration) {
    m.requestsTotal.WithLabelValues(outcome).Inc()
    m.requestDuration.WithLabelValues(outcome).Observe(duration.Seconds())
}

// SetCacheOccupancy reports the cache's current bytes-used and entry count
func (m *Metrics) SetCacheOccupancy(bytesUsed int, entries int) {
    m.cacheBytesUsed.Set(float64(bytesUsed))
    m.cacheEntries.Set(float64(entries))
}

// IncCacheEvictions increments the eviction counter
func (m *Metrics) IncCacheEvictions() {
    m.cacheEvictionsTotal.Inc()
}

// SetQueueDepth reports the work queue's current pending slot count
func (m *Metrics) SetQueueDepth(depth int) {
    m.queueDepth.Set(float64(depth))
}

// SetIdleWorkers reports the current idle-worker count
func (m *Metrics) SetIdleWorkers(n int) {
    m.idleWorkers.Set(float64(n))
}

// RecordUpstreamConnect records a dial attempt's latency and result,
// result is "ok" or "error".
func (m *Metrics) RecordUpstreamConnect(result string, duration time.Duration) {
    m.upstreamConnect.WithLabelValues(result).Observe(duration.Seconds())
}

// SetAddressHealth reports a resolved address's health state
func (m *Metrics) SetAddressHealth(address string, healthy bool) {
    value := 0.0
    if healthy {
        value = 1.0
    }
    m.addressHealth.WithLabelValues(address).Set(value)
}

// Handler returns the HTTP handler exposing this instance's metrics
// in Prometheus exposition format for the admin surface.
func (m *Metrics) Handler() http.Handler {
    return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
