// Package metrics exposes the archive engine's Prometheus instrumentation:
// storage backend operation counts/latencies, compress+encrypt pipeline
// throughput, part rotations, volume-controller waits, buffer pool
// efficiency, and process-level gauges, all served from a single
// registry behind an HTTP handler.
package metrics

import (
	"context"
	"net/http"
	"runtime"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel/trace"
)

var defaultRegistry = prometheus.DefaultRegisterer

// Config holds metrics configuration.
type Config struct {
	// EnableBackendLabel controls whether the storage backend kind is
	// used as a label value directly, versus collapsed to "*" to bound
	// cardinality when many distinct stems/URLs are in play.
	EnableBackendLabel bool
}

// Metrics holds every metric the archive engine records.
type Metrics struct {
	config Config

	storageOperationsTotal   *prometheus.CounterVec
	storageOperationDuration *prometheus.HistogramVec
	storageOperationErrors   *prometheus.CounterVec

	archiveOperations *prometheus.CounterVec
	archiveDuration   *prometheus.HistogramVec
	archiveErrors     *prometheus.CounterVec
	archiveBytes      *prometheus.CounterVec

	partRotations  *prometheus.CounterVec
	volumeWaits    prometheus.Histogram
	volumeFailures prometheus.Counter

	bufferPoolHits   *prometheus.CounterVec
	bufferPoolMisses *prometheus.CounterVec

	goroutines       prometheus.Gauge
	memoryAllocBytes prometheus.Gauge
	memorySysBytes   prometheus.Gauge

	hardwareAccelerationEnabled *prometheus.GaugeVec
}

// NewMetrics creates a metrics instance registered on the default
// Prometheus registerer.
func NewMetrics() *Metrics {
	return NewMetricsWithConfig(Config{EnableBackendLabel: true})
}

// NewMetricsWithConfig creates a metrics instance with the given
// configuration, registered on the default registerer.
func NewMetricsWithConfig(cfg Config) *Metrics {
	return newMetricsWithRegistry(defaultRegistry, cfg)
}

// NewMetricsWithRegistry creates a metrics instance on a custom
// registry, to avoid registration conflicts across parallel tests.
func NewMetricsWithRegistry(reg prometheus.Registerer) *Metrics {
	return newMetricsWithRegistry(reg, Config{EnableBackendLabel: true})
}

func newMetricsWithRegistry(reg prometheus.Registerer, cfg Config) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		config: cfg,
		storageOperationsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "storage_operations_total",
				Help: "Total number of storage backend operations (create, open, read, write, close)",
			},
			[]string{"operation", "backend"},
		),
		storageOperationDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "storage_operation_duration_seconds",
				Help:    "Storage backend operation duration in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"operation", "backend"},
		),
		storageOperationErrors: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "storage_operation_errors_total",
				Help: "Total number of storage backend operation errors",
			},
			[]string{"operation", "backend", "error_type"},
		),
		archiveOperations: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "archive_operations_total",
				Help: "Total number of compress+encrypt/decrypt+decompress pipeline operations",
			},
			[]string{"operation"}, // "pack" or "restore"
		),
		archiveDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "archive_operation_duration_seconds",
				Help:    "Pack/restore operation duration in seconds",
				Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0, 2.5, 5.0},
			},
			[]string{"operation"},
		),
		archiveErrors: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "archive_operation_errors_total",
				Help: "Total number of pack/restore operation errors",
			},
			[]string{"operation", "error_type"},
		),
		archiveBytes: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "archive_bytes_total",
				Help: "Total plaintext bytes packed or restored",
			},
			[]string{"operation"},
		),
		partRotations: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "archive_part_rotations_total",
				Help: "Total number of archive part rotations",
			},
			[]string{"stem"},
		),
		volumeWaits: factory.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "volume_wait_seconds",
				Help:    "Time spent waiting for a volume change to complete",
				Buckets: prometheus.ExponentialBuckets(1, 2, 10),
			},
		),
		volumeFailures: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "volume_change_failures_total",
				Help: "Total number of failed volume change attempts",
			},
		),
		bufferPoolHits: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "buffer_pool_hits_total",
				Help: "Total number of buffer pool hits",
			},
			[]string{"size_class"},
		),
		bufferPoolMisses: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "buffer_pool_misses_total",
				Help: "Total number of buffer pool misses",
			},
			[]string{"size_class"},
		),
		goroutines: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "goroutines_total",
				Help: "Number of goroutines",
			},
		),
		memoryAllocBytes: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "memory_alloc_bytes",
				Help: "Number of bytes allocated and not yet freed",
			},
		),
		memorySysBytes: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "memory_sys_bytes",
				Help: "Total bytes of memory obtained from OS",
			},
		),
		hardwareAccelerationEnabled: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "hardware_acceleration_enabled",
				Help: "Hardware acceleration status (1=enabled, 0=disabled)",
			},
			[]string{"type"},
		),
	}
}

// SetHardwareAccelerationStatus sets the hardware acceleration status metric.
func (m *Metrics) SetHardwareAccelerationStatus(accelType string, enabled bool) {
	val := 0.0
	if enabled {
		val = 1.0
	}
	m.hardwareAccelerationEnabled.WithLabelValues(accelType).Set(val)
}

// GetHardwareAccelerationEnabledMetric returns the hardware acceleration metric, for tests.
func (m *Metrics) GetHardwareAccelerationEnabledMetric() *prometheus.GaugeVec {
	return m.hardwareAccelerationEnabled
}

func (m *Metrics) backendLabel(backend string) string {
	if !m.config.EnableBackendLabel {
		return "*"
	}
	return backend
}

// RecordStorageOperation records a storage backend operation.
func (m *Metrics) RecordStorageOperation(ctx context.Context, operation, backend string, duration time.Duration) {
	label := m.backendLabel(backend)
	if exemplar := getExemplar(ctx); exemplar != nil {
		if adder, ok := m.storageOperationsTotal.WithLabelValues(operation, label).(prometheus.ExemplarAdder); ok {
			adder.AddWithExemplar(1, exemplar)
		} else {
			m.storageOperationsTotal.WithLabelValues(operation, label).Inc()
		}
		if observer, ok := m.storageOperationDuration.WithLabelValues(operation, label).(prometheus.ExemplarObserver); ok {
			observer.ObserveWithExemplar(duration.Seconds(), exemplar)
		} else {
			m.storageOperationDuration.WithLabelValues(operation, label).Observe(duration.Seconds())
		}
		return
	}
	m.storageOperationsTotal.WithLabelValues(operation, label).Inc()
	m.storageOperationDuration.WithLabelValues(operation, label).Observe(duration.Seconds())
}

// RecordStorageError records a storage backend operation error.
func (m *Metrics) RecordStorageError(ctx context.Context, operation, backend, errorType string) {
	label := m.backendLabel(backend)
	if exemplar := getExemplar(ctx); exemplar != nil {
		if adder, ok := m.storageOperationErrors.WithLabelValues(operation, label, errorType).(prometheus.ExemplarAdder); ok {
			adder.AddWithExemplar(1, exemplar)
			return
		}
	}
	m.storageOperationErrors.WithLabelValues(operation, label, errorType).Inc()
}

// RecordArchiveOperation records one pack or restore operation.
func (m *Metrics) RecordArchiveOperation(ctx context.Context, operation string, duration time.Duration, bytes int64) {
	if exemplar := getExemplar(ctx); exemplar != nil {
		if adder, ok := m.archiveOperations.WithLabelValues(operation).(prometheus.ExemplarAdder); ok {
			adder.AddWithExemplar(1, exemplar)
		} else {
			m.archiveOperations.WithLabelValues(operation).Inc()
		}
		if observer, ok := m.archiveDuration.WithLabelValues(operation).(prometheus.ExemplarObserver); ok {
			observer.ObserveWithExemplar(duration.Seconds(), exemplar)
		} else {
			m.archiveDuration.WithLabelValues(operation).Observe(duration.Seconds())
		}
	} else {
		m.archiveOperations.WithLabelValues(operation).Inc()
		m.archiveDuration.WithLabelValues(operation).Observe(duration.Seconds())
	}
	m.archiveBytes.WithLabelValues(operation).Add(float64(bytes))
}

// RecordArchiveError records a pack or restore operation error.
func (m *Metrics) RecordArchiveError(ctx context.Context, operation, errorType string) {
	if exemplar := getExemplar(ctx); exemplar != nil {
		if adder, ok := m.archiveErrors.WithLabelValues(operation, errorType).(prometheus.ExemplarAdder); ok {
			adder.AddWithExemplar(1, exemplar)
			return
		}
	}
	m.archiveErrors.WithLabelValues(operation, errorType).Inc()
}

// RecordPartRotation records one archive part rotation for stem.
func (m *Metrics) RecordPartRotation(stem string) {
	m.partRotations.WithLabelValues(stem).Inc()
}

// RecordVolumeWait records time spent in the volume controller's
// Waiting state before a volume reached Loaded.
func (m *Metrics) RecordVolumeWait(d time.Duration) {
	m.volumeWaits.Observe(d.Seconds())
}

// RecordVolumeFailure records a failed volume change attempt.
func (m *Metrics) RecordVolumeFailure() {
	m.volumeFailures.Inc()
}

// RecordBufferPoolHit records a buffer pool hit.
func (m *Metrics) RecordBufferPoolHit(sizeClass string) {
	m.bufferPoolHits.WithLabelValues(sizeClass).Inc()
}

// RecordBufferPoolMiss records a buffer pool miss.
func (m *Metrics) RecordBufferPoolMiss(sizeClass string) {
	m.bufferPoolMisses.WithLabelValues(sizeClass).Inc()
}

// UpdateSystemMetrics refreshes goroutine and memory gauges from the
// Go runtime.
func (m *Metrics) UpdateSystemMetrics() {
	var memStats runtime.MemStats
	runtime.ReadMemStats(&memStats)

	m.goroutines.Set(float64(runtime.NumGoroutine()))
	m.memoryAllocBytes.Set(float64(memStats.Alloc))
	m.memorySysBytes.Set(float64(memStats.Sys))
}

// StartSystemMetricsCollector starts a goroutine that periodically
// refreshes system-level gauges until ctx is cancelled.
func (m *Metrics) StartSystemMetricsCollector(ctx context.Context) {
	ticker := time.NewTicker(5 * time.Second)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				m.UpdateSystemMetrics()
			case <-ctx.Done():
				return
			}
		}
	}()
}

// Handler returns the HTTP handler serving metrics in the Prometheus
// exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.Handler()
}

// getExemplar extracts a trace ID from ctx, if it carries a valid span
// context (recording or not), for attachment to the next counter/histogram observation.
func getExemplar(ctx context.Context) prometheus.Labels {
	if ctx == nil {
		return nil
	}
	spanContext := trace.SpanFromContext(ctx).SpanContext()
	if spanContext.IsValid() {
		return prometheus.Labels{"trace_id": spanContext.TraceID().String()}
	}
	return nil
}
