// Package metrics provides basic monitoring and metrics collection for alicorn.
// The in-memory Registry backs the JSON metrics endpoint and HTTP middleware;
// PrometheusMetrics backs the Prometheus exposition endpoint.
package metrics

import (
	"maps"
	"slices"
	"strings"
	"sync"
	"time"
)

// MetricType represents the type of metric.
type MetricType string

const (
	TypeCounter   MetricType = "counter"
	TypeGauge     MetricType = "gauge"
	TypeHistogram MetricType = "histogram"
)

// Labels represents key-value pairs for metric labels.
type Labels map[string]string

// Metric represents a single metric with its metadata. For histograms Value
// holds the most recent observation while Count and Sum accumulate.
type Metric struct {
	Name      string     `json:"name"`
	Type      MetricType `json:"type"`
	Value     float64    `json:"value"`
	Count     uint64     `json:"count,omitempty"`
	Sum       float64    `json:"sum,omitempty"`
	Labels    Labels     `json:"labels,omitempty"`
	Timestamp time.Time  `json:"timestamp"`
}

// Registry holds all metrics and provides collection functionality.
type Registry struct {
	mu      sync.RWMutex
	metrics map[string]*Metric
	enabled bool
	now     func() time.Time
}

// NewRegistry creates a new metrics registry.
func NewRegistry() *Registry {
	return &Registry{
		metrics: make(map[string]*Metric),
		enabled: true,
		now:     time.Now,
	}
}

// SetEnabled enables or disables metrics collection.
func (r *Registry) SetEnabled(enabled bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.enabled = enabled
}

// IsEnabled returns whether metrics collection is enabled.
func (r *Registry) IsEnabled() bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.enabled
}

// Counter increments a counter metric.
func (r *Registry) Counter(name string, labels Labels) {
	r.update(name, TypeCounter, labels, func(m *Metric) {
		m.Value++
	})
}

// Gauge sets a gauge metric value.
func (r *Registry) Gauge(name string, value float64, labels Labels) {
	r.update(name, TypeGauge, labels, func(m *Metric) {
		m.Value = value
	})
}

// Histogram records a value in a histogram metric.
func (r *Registry) Histogram(name string, value float64, labels Labels) {
	r.update(name, TypeHistogram, labels, func(m *Metric) {
		m.Value = value
		m.Count++
		m.Sum += value
	})
}

func (r *Registry) update(name string, typ MetricType, labels Labels, apply func(*Metric)) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if !r.enabled {
		return
	}

	key := makeKey(name, labels)
	metric, exists := r.metrics[key]
	if !exists || metric.Type != typ {
		metric = &Metric{Name: name, Type: typ, Labels: copyLabels(labels)}
		r.metrics[key] = metric
	}
	apply(metric)
	metric.Timestamp = r.now()
}

// GetMetrics returns a snapshot of all current metrics.
func (r *Registry) GetMetrics() map[string]*Metric {
	r.mu.RLock()
	defer r.mu.RUnlock()

	result := make(map[string]*Metric, len(r.metrics))
	for key, metric := range r.metrics {
		snapshot := *metric
		snapshot.Labels = copyLabels(metric.Labels)
		result[key] = &snapshot
	}
	return result
}

// Reset clears all metrics.
func (r *Registry) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.metrics = make(map[string]*Metric)
}

// makeKey creates a unique key for a metric based on name and labels.
// Labels are sorted so equal label sets always produce the same key.
func makeKey(name string, labels Labels) string {
	if len(labels) == 0 {
		return name
	}

	var b strings.Builder
	b.WriteString(name)
	for _, k := range slices.Sorted(maps.Keys(labels)) {
		b.WriteString(":")
		b.WriteString(k)
		b.WriteString("=")
		b.WriteString(labels[k])
	}
	return b.String()
}

// copyLabels creates a copy of labels map.
func copyLabels(labels Labels) Labels {
	if labels == nil {
		return nil
	}
	return maps.Clone(labels)
}

// Metric names recorded in the in-memory registry.
const (
	MetricHTTPRequests     = "http_requests_total"
	MetricHTTPDuration     = "http_request_duration_seconds"
	MetricHTTPResponseSize = "http_response_size_bytes"
	MetricHTTPErrors       = "http_errors_total"
)

// Common label keys.
const (
	LabelMethod = "method"
	LabelPath   = "path"
	LabelStatus = "status"
)
