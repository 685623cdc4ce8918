package metrics

import (
	"context"
	"database/sql"
	"runtime"
	"strconv"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

const (
	// Namespace for all alicorn metrics
	namespace = "alicorn"

	// Subsystems
	subsystemComparison = "comparison"
	subsystemSystem     = "system"
	subsystemAPI        = "api"
)

// PrometheusMetrics holds all Prometheus metric collectors
type PrometheusMetrics struct {
	// Comparison metrics
	savesTotal      *prometheus.CounterVec
	removalsTotal   *prometheus.CounterVec
	exportsTotal    *prometheus.CounterVec
	fetchDuration   *prometheus.HistogramVec
	cacheLookups    *prometheus.CounterVec
	activeSessions  prometheus.Gauge
	expiredSessions prometheus.Counter

	// API metrics
	httpRequests *prometheus.CounterVec
	httpDuration *prometheus.HistogramVec
	httpErrors   *prometheus.CounterVec

	// System metrics
	memoryUsage prometheus.Gauge
	goroutines  prometheus.Gauge
	uptime      prometheus.Gauge

	startTime  time.Time
	lastUpdate time.Time
	mu         sync.RWMutex
	registry   *prometheus.Registry
}

// NewPrometheusMetrics creates a new Prometheus metrics instance with all collectors
func NewPrometheusMetrics() *PrometheusMetrics {
	registry := prometheus.NewRegistry()

	pm := &PrometheusMetrics{
		startTime: time.Now(),
		registry:  registry,
	}

	pm.initComparisonMetrics()
	pm.initAPIMetrics()
	pm.initSystemMetrics()
	pm.registerMetrics()

	// Standard Go and process collectors for runtime visibility
	registry.MustRegister(collectors.NewGoCollector())
	registry.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	return pm
}

func (pm *PrometheusMetrics) initComparisonMetrics() {
	pm.savesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystemComparison,
			Name:      "saves_total",
			Help:      "Saved-comparison writes by trigger and status",
		},
		[]string{"trigger", "status"},
	)

	pm.removalsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystemComparison,
			Name:      "removals_total",
			Help:      "Confirmed saved-comparison removals by status",
		},
		[]string{"status"},
	)

	pm.exportsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystemComparison,
			Name:      "exports_total",
			Help:      "Comparison exports by format and status",
		},
		[]string{"format", "status"},
	)

	pm.fetchDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: subsystemComparison,
			Name:      "fetch_duration_seconds",
			Help:      "Duration of comparison data fetches in seconds",
			Buckets:   []float64{0.005, 0.01, 0.05, 0.1, 0.25, 0.5, 1.0, 2.5, 5.0},
		},
		[]string{"status"},
	)

	pm.cacheLookups = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystemComparison,
			Name:      "cache_lookups_total",
			Help:      "Comparison data cache lookups by result",
		},
		[]string{"result"},
	)

	pm.activeSessions = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: subsystemComparison,
			Name:      "sessions_active",
			Help:      "Number of open comparison sessions",
		},
	)

	pm.expiredSessions = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystemComparison,
			Name:      "sessions_expired_total",
			Help:      "Comparison sessions closed after going idle",
		},
	)
}

func (pm *PrometheusMetrics) initAPIMetrics() {
	pm.httpRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystemAPI,
			Name:      "requests_total",
			Help:      "Total number of HTTP requests by method, route and status",
		},
		[]string{"method", "route", "status"},
	)

	pm.httpDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: subsystemAPI,
			Name:      "request_duration_seconds",
			Help:      "Duration of HTTP requests in seconds",
			Buckets:   []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1.0, 2.0, 5.0},
		},
		[]string{"method", "route"},
	)

	pm.httpErrors = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystemAPI,
			Name:      "errors_total",
			Help:      "Total number of HTTP errors by method, route and error class",
		},
		[]string{"method", "route", "error_type"},
	)
}

func (pm *PrometheusMetrics) initSystemMetrics() {
	pm.memoryUsage = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: subsystemSystem,
			Name:      "memory_bytes",
			Help:      "Current memory usage in bytes",
		},
	)

	pm.goroutines = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: subsystemSystem,
			Name:      "goroutines",
			Help:      "Current number of goroutines",
		},
	)

	pm.uptime = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: subsystemSystem,
			Name:      "uptime_seconds",
			Help:      "Application uptime in seconds",
		},
	)
}

func (pm *PrometheusMetrics) registerMetrics() {
	pm.registry.MustRegister(
		pm.savesTotal,
		pm.removalsTotal,
		pm.exportsTotal,
		pm.fetchDuration,
		pm.cacheLookups,
		pm.activeSessions,
		pm.expiredSessions,

		pm.httpRequests,
		pm.httpDuration,
		pm.httpErrors,

		pm.memoryUsage,
		pm.goroutines,
		pm.uptime,
	)
}

// GetRegistry returns the Prometheus registry for HTTP handler
func (pm *PrometheusMetrics) GetRegistry() *prometheus.Registry {
	return pm.registry
}

// RegisterDBStats exposes connection pool statistics for db.
func (pm *PrometheusMetrics) RegisterDBStats(db *sql.DB, name string) error {
	return pm.registry.Register(collectors.NewDBStatsCollector(db, name))
}

// Comparison Metrics Methods

// RecordSave counts a save attempt.
func (pm *PrometheusMetrics) RecordSave(trigger, status string) {
	pm.savesTotal.WithLabelValues(trigger, status).Inc()
}

// RecordRemoval counts a removal attempt.
func (pm *PrometheusMetrics) RecordRemoval(status string) {
	pm.removalsTotal.WithLabelValues(status).Inc()
}

// RecordExport counts an export attempt.
func (pm *PrometheusMetrics) RecordExport(format, status string) {
	pm.exportsTotal.WithLabelValues(format, status).Inc()
}

// RecordFetch observes a comparison data fetch.
func (pm *PrometheusMetrics) RecordFetch(status string, duration time.Duration) {
	pm.fetchDuration.WithLabelValues(status).Observe(duration.Seconds())
}

// RecordCacheLookup counts a cache hit or miss.
func (pm *PrometheusMetrics) RecordCacheLookup(hit bool) {
	result := "miss"
	if hit {
		result = "hit"
	}
	pm.cacheLookups.WithLabelValues(result).Inc()
}

// SetActiveSessions sets the number of open sessions.
func (pm *PrometheusMetrics) SetActiveSessions(count int) {
	pm.activeSessions.Set(float64(count))
}

// IncrementSessionsExpired counts idle sessions that were closed.
func (pm *PrometheusMetrics) IncrementSessionsExpired(count int) {
	pm.expiredSessions.Add(float64(count))
}

// API Metrics Methods

// RecordHTTPRequest records one served request. Route should be the route
// template rather than the raw path to keep label cardinality bounded.
func (pm *PrometheusMetrics) RecordHTTPRequest(method, route string, status int, duration time.Duration) {
	pm.httpRequests.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	pm.httpDuration.WithLabelValues(method, route).Observe(duration.Seconds())

	switch {
	case status >= 500:
		pm.httpErrors.WithLabelValues(method, route, "server_error").Inc()
	case status >= 400:
		pm.httpErrors.WithLabelValues(method, route, "client_error").Inc()
	}
}

// System Metrics Methods

// UpdateSystemMetrics updates all system metrics with current values
func (pm *PrometheusMetrics) UpdateSystemMetrics() {
	pm.mu.Lock()
	defer pm.mu.Unlock()

	var memStats runtime.MemStats
	runtime.ReadMemStats(&memStats)

	pm.memoryUsage.Set(float64(memStats.Alloc))
	pm.goroutines.Set(float64(runtime.NumGoroutine()))
	pm.uptime.Set(time.Since(pm.startTime).Seconds())

	pm.lastUpdate = time.Now()
}

// GetUptime returns the application uptime
func (pm *PrometheusMetrics) GetUptime() time.Duration {
	return time.Since(pm.startTime)
}

// GetLastUpdate returns the last metrics update time
func (pm *PrometheusMetrics) GetLastUpdate() time.Time {
	pm.mu.RLock()
	defer pm.mu.RUnlock()
	return pm.lastUpdate
}

// StartPeriodicUpdates updates system metrics every interval until ctx is done.
func (pm *PrometheusMetrics) StartPeriodicUpdates(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	pm.UpdateSystemMetrics()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			pm.UpdateSystemMetrics()
		}
	}
}
