// Package metrics provides Prometheus instrumentation for media board.
//
// All metrics are registered with the default registry through promauto and
// prefixed with "media_board_".
//
// # Metric Categories
//
// ## HTTP Metrics
//   - HTTPRequestsTotal, HTTPRequestDuration: by method and route template
//   - HTTPRequestsInFlight
//
// ## Pipeline Metrics
//   - UploadsTotal: by class and status (success/invalid/error)
//   - UploadBytes, UploadsInProgress
//   - StageDuration: by class and stage (original/preview/thumbnails/aspect/probe)
//   - PreviewOutcomes, PreviewScale
//   - ThumbnailGenerationsTotal, ThumbnailFrameExtractions
//
// ## Toolchain Metrics
//   - EncoderProbeInvocations, EncoderSmokeTests, EncoderSelected
//   - ProcessDuration, ProcessFailures: per external tool
//
// ## Artifact Metrics
//   - PurgeRunsTotal, PurgeFilesTotal
//   - ArtifactFiles, ArtifactBytes: sampled by [Collector]
//
// ## Storage Metrics
//   - DBQueryTotal, DBQueryDuration: by operation
//   - Filesystem*: operation latency, errors and NFS retries by volume
//
// ## Memory Metrics
//   - MemoryLimitBytes, MemoryUsageRatio
//   - MemoryPaused, MemoryPauses: upload backpressure
//
// # Collector
//
// [Collector] samples a [StatsProvider] on an interval:
//
//	collector := metrics.NewCollector(layout, time.Minute)
//	collector.Start()
//	defer collector.Stop()
//
// # Prometheus Queries
//
// Upload error rate by class:
//
//	sum(rate(media_board_uploads_total{status="error"}[5m])) by (class)
//
// Share of video previews that did not beat the original:
//
//	rate(media_board_preview_outcomes_total{class="video",outcome="no_benefit"}[1h]) /
//	rate(media_board_preview_outcomes_total{class="video"}[1h])
//
// P95 preview stage latency:
//
//	histogram_quantile(0.95, sum(rate(media_board_stage_duration_seconds_bucket{stage="preview"}[5m])) by (le, class))
package metrics
