// Package metrics provides interfaces for metrics collection and monitoring.
package metrics

import "time"

//go:generate mockgen -destination=mocks/mock_metrics.go -package=mocks . MetricsRegistry,ComparisonRecorder

// MetricsRegistry defines the interface for metrics collection and management.
// This interface allows for easy mocking and testing of metrics functionality.
type MetricsRegistry interface {
	// SetEnabled enables or disables metrics collection.
	SetEnabled(enabled bool)

	// IsEnabled returns whether metrics collection is enabled.
	IsEnabled() bool

	// Counter increments a counter metric with the given name and labels.
	Counter(name string, labels Labels)

	// Gauge sets a gauge metric to the specified value with the given name and labels.
	Gauge(name string, value float64, labels Labels)

	// Histogram records a value in a histogram metric with the given name and labels.
	Histogram(name string, value float64, labels Labels)

	// GetMetrics returns a snapshot of all current metrics.
	GetMetrics() map[string]*Metric

	// Reset clears all metrics from the registry.
	Reset()
}

// ComparisonRecorder receives comparison session events.
type ComparisonRecorder interface {
	// RecordSave counts a save attempt. Trigger is "debounce" or "manual".
	RecordSave(trigger, status string)

	// RecordRemoval counts a confirmed removal attempt.
	RecordRemoval(status string)

	// RecordExport counts an export attempt for the given format.
	RecordExport(format, status string)

	// RecordFetch observes a comparison data fetch.
	RecordFetch(status string, duration time.Duration)

	// RecordCacheLookup counts a comparison data cache hit or miss.
	RecordCacheLookup(hit bool)

	// SetActiveSessions publishes the number of open sessions.
	SetActiveSessions(count int)

	// IncrementSessionsExpired counts sessions closed for being idle.
	IncrementSessionsExpired(count int)
}

// HTTPRecorder receives per-request HTTP observations.
type HTTPRecorder interface {
	RecordHTTPRequest(method, route string, status int, duration time.Duration)
}

// Status label values.
const (
	StatusSuccess = "success"
	StatusError   = "error"
)

// Discard is a ComparisonRecorder that drops every observation.
var Discard ComparisonRecorder = discard{}

type discard struct{}

func (discard) RecordSave(string, string) {}
func (discard) RecordRemoval(string) {}
func (discard) RecordExport(string, string) {}
func (discard) RecordFetch(string, time.Duration) {}
func (discard) RecordCacheLookup(bool) {}
func (discard) SetActiveSessions(int) {}
func (discard) IncrementSessionsExpired(int) {}

// Ensure that the implementations satisfy their interfaces.
var (
	_ MetricsRegistry    = (*Registry)(nil)
	_ ComparisonRecorder = (*PrometheusMetrics)(nil)
	_ HTTPRecorder       = (*PrometheusMetrics)(nil)
)
