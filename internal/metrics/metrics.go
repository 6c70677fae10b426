package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// HTTP metrics
var (
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "media_board_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "media_board_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: []float64{0.01, 0.05, 0.1, 0.5, 1, 5, 10, 30, 60, 120, 300},
		},
		[]string{"method", "path"},
	)

	HTTPRequestsInFlight = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "media_board_http_requests_in_flight",
			Help: "Number of HTTP requests currently being processed",
		},
	)
)

// Pipeline metrics
var (
	UploadsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "media_board_uploads_total",
			Help: "Total number of processed uploads by media class and status",
		},
		[]string{"class", "status"}, // status: "success", "invalid", "error"
	)

	UploadBytes = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "media_board_upload_bytes",
			Help:    "Size of stored originals in bytes",
			Buckets: prometheus.ExponentialBuckets(16*1024, 4, 10), // 16KiB .. 4GiB
		},
		[]string{"class"},
	)

	UploadsInProgress = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "media_board_uploads_in_progress",
			Help: "Number of upload pipelines currently running",
		},
	)

	StageDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "media_board_stage_duration_seconds",
			Help:    "Duration of each pipeline stage in seconds",
			Buckets: []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60, 120, 300, 600},
		},
		[]string{"class", "stage"}, // stage: "original", "preview", "thumbnails", "aspect", "probe"
	)
)

// Preview metrics
var (
	PreviewOutcomes = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "media_board_preview_outcomes_total",
			Help: "Preview generation outcomes by media class",
		},
		[]string{"class", "outcome"}, // outcome: "kept", "no_benefit", "error", "disabled"
	)

	PreviewScale = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "media_board_preview_scale_percent",
			Help:    "Preview scale of kept previews as a percentage of the original",
			Buckets: []float64{5, 10, 20, 30, 40, 50, 60, 70, 80, 90, 100},
		},
		[]string{"class"},
	)
)

// Thumbnail metrics
var (
	ThumbnailGenerationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "media_board_thumbnail_generations_total",
			Help: "Total number of thumbnail encodes by size label and status",
		},
		[]string{"size", "status"},
	)

	ThumbnailFrameExtractions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "media_board_thumbnail_frame_extractions_total",
			Help: "Representative frame extractions for video and animated sources",
		},
		[]string{"class", "status"},
	)
)

// Encoder metrics
var (
	EncoderProbeInvocations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "media_board_encoder_probe_invocations_total",
			Help: "Toolchain introspection invocations (encoders, hwaccels)",
		},
		[]string{"probe", "status"},
	)

	EncoderSmokeTests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "media_board_encoder_smoke_tests_total",
			Help: "Encoder smoke test invocations by implementation and result",
		},
		[]string{"encoder", "result"}, // result: "pass", "fail"
	)

	EncoderSelected = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "media_board_encoder_selected",
			Help: "Encoder implementation chosen per codec family (1 = selected)",
		},
		[]string{"family", "encoder"},
	)
)

// External process metrics
var (
	ProcessDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "media_board_process_duration_seconds",
			Help:    "Duration of external process invocations",
			Buckets: []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60, 120, 300, 600},
		},
		[]string{"tool"},
	)

	ProcessFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "media_board_process_failures_total",
			Help: "External process invocations that exited unsuccessfully",
		},
		[]string{"tool"},
	)
)

// Artifact lifecycle metrics
var (
	PurgeRunsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "media_board_purge_runs_total",
			Help: "Artifact purge runs by scope",
		},
		[]string{"scope"}, // "all", "thumbnails"
	)

	PurgeFilesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "media_board_purge_files_total",
			Help: "Artifact files considered by purge runs, by status",
		},
		[]string{"status"}, // "deleted", "error"
	)

	ArtifactFiles = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "media_board_artifact_files",
			Help: "Number of files per artifact folder",
		},
		[]string{"folder"},
	)

	ArtifactBytes = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "media_board_artifact_bytes",
			Help: "Total size of files per artifact folder in bytes",
		},
		[]string{"folder"},
	)
)

// Result store metrics
var (
	DBQueryTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "media_board_db_queries_total",
			Help: "Total number of database queries",
		},
		[]string{"operation", "status"},
	)

	DBQueryDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "media_board_db_query_duration_seconds",
			Help:    "Database query duration in seconds",
			Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
		},
		[]string{"operation"},
	)
)

// Filesystem metrics
var (
	FilesystemOperationDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "media_board_filesystem_operation_duration_seconds",
			Help:    "Duration of filesystem operations on artifact folders",
			Buckets: []float64{0.0001, 0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 5},
		},
		[]string{"volume", "operation"},
	)

	FilesystemOperationErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "media_board_filesystem_operation_errors_total",
			Help: "Filesystem operations that returned an error",
		},
		[]string{"volume", "operation"},
	)

	FilesystemRetryAttempts = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "media_board_filesystem_retry_attempts_total",
			Help: "Retry attempts after NFS stale file handle errors",
		},
		[]string{"operation", "volume"},
	)

	FilesystemRetrySuccess = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "media_board_filesystem_retry_success_total",
			Help: "Operations that succeeded after at least one retry",
		},
		[]string{"operation", "volume"},
	)

	FilesystemRetryFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "media_board_filesystem_retry_failures_total",
			Help: "Operations that still failed after exhausting retries",
		},
		[]string{"operation", "volume"},
	)

	FilesystemStaleErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "media_board_filesystem_stale_errors_total",
			Help: "NFS stale file handle (ESTALE) errors observed",
		},
		[]string{"operation", "volume"},
	)

	FilesystemRetryDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "media_board_filesystem_retry_duration_seconds",
			Help:    "Total duration of retried filesystem operations",
			Buckets: []float64{0.001, 0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5},
		},
		[]string{"operation", "volume"},
	)
)

// Memory metrics
var (
	MemoryLimitBytes = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "media_board_memory_limit_bytes",
			Help: "Heap limit used by the memory monitor (0 = no limit)",
		},
	)

	MemoryUsageRatio = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "media_board_memory_usage_ratio",
			Help: "Heap allocation as a ratio of the memory limit",
		},
	)

	MemoryPaused = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "media_board_memory_paused",
			Help: "1 while new uploads are held back by memory pressure",
		},
	)

	MemoryPauses = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "media_board_memory_pauses_total",
			Help: "Number of times memory pressure held back new uploads",
		},
	)
)

// Application info metric
var (
	AppInfo = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "media_board_app_info",
			Help: "Application information",
		},
		[]string{"version", "commit", "go_version"},
	)
)

// SetAppInfo sets the application info metric
func SetAppInfo(version, commit, goVersion string) {
	AppInfo.WithLabelValues(version, commit, goVersion).Set(1)
}
