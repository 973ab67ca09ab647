package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Upload-API Metrics
var (
	// Request counters
	RequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "postora",
			Subsystem: "upload_api",
			Name:      "requests_total",
			Help:      "Total number of HTTP requests",
		},
		[]string{"method", "endpoint", "status"},
	)

	// Request duration histogram
	RequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "postora",
			Subsystem: "upload_api",
			Name:      "request_duration_seconds",
			Help:      "HTTP request duration in seconds",
			Buckets:   []float64{0.1, 0.5, 1, 2, 5, 10, 30},
		},
		[]string{"method", "endpoint"},
	)

	// Upload counters, labelled with the terminal stage for failures
	UploadsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "postora",
			Subsystem: "upload_api",
			Name:      "uploads_total",
			Help:      "Total file uploads by category and outcome",
		},
		[]string{"category", "status", "stage"},
	)

	UploadBytesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "postora",
			Subsystem: "upload_api",
			Name:      "upload_bytes_total",
			Help:      "Total bytes stored after optimization",
		},
		[]string{"category"},
	)

	OptimizeDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "postora",
			Subsystem: "upload_api",
			Name:      "optimize_duration_seconds",
			Help:      "Image optimization duration in seconds",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5},
		},
		[]string{"status"},
	)

	OptimizeSavedBytes = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: "postora",
			Subsystem: "upload_api",
			Name:      "optimize_saved_bytes_total",
			Help:      "Bytes saved by image optimization",
		},
	)

	RollbacksTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "postora",
			Subsystem: "upload_api",
			Name:      "rollback_steps_total",
			Help:      "Compensating actions executed during rollback",
		},
		[]string{"step", "status"},
	)

	CleanupFailuresTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "postora",
			Subsystem: "upload_api",
			Name:      "cleanup_failures_total",
			Help:      "Best-effort file removals that failed",
		},
		[]string{"operation"},
	)

	StagingSweptTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: "postora",
			Subsystem: "upload_api",
			Name:      "staging_swept_files_total",
			Help:      "Stale staging files removed by the sweeper",
		},
	)
)

// RecordRequest records an HTTP request
func RecordRequest(method, endpoint, status string, durationSec float64) {
	RequestsTotal.WithLabelValues(method, endpoint, status).Inc()
	RequestDuration.WithLabelValues(method, endpoint).Observe(durationSec)
}

// RecordUpload records a stored file
func RecordUpload(category string, bytes int64) {
	UploadsTotal.WithLabelValues(category, "success", "").Inc()
	UploadBytesTotal.WithLabelValues(category).Add(float64(bytes))
}

// RecordUploadRolledBack records a processed file undone because its request failed
func RecordUploadRolledBack(category string) {
	UploadsTotal.WithLabelValues(category, "rolled_back", "").Inc()
}

// RecordUploadFailure records a file that ended in a failed state
func RecordUploadFailure(category, stage string) {
	UploadsTotal.WithLabelValues(category, "failed", stage).Inc()
}

// RecordOptimize records an optimization attempt and the bytes it saved
func RecordOptimize(status string, durationSec float64, savedBytes int64) {
	OptimizeDuration.WithLabelValues(status).Observe(durationSec)
	if savedBytes > 0 {
		OptimizeSavedBytes.Add(float64(savedBytes))
	}
}

// RecordRollbackStep records one compensating action
func RecordRollbackStep(step, status string) {
	RollbacksTotal.WithLabelValues(step, status).Inc()
}

// RecordCleanupFailure records a failed best-effort removal
func RecordCleanupFailure(operation string) {
	CleanupFailuresTotal.WithLabelValues(operation).Inc()
}

// RecordSweep records staging leftovers removed by the sweeper
func RecordSweep(removed int) {
	StagingSweptTotal.Add(float64(removed))
}

// Handler exposes the default registry.
func Handler() http.Handler {
	return promhttp.Handler()
}
