package metrics

// Label sets pre-populated by InitializeMetrics. They mirror the values used
// by the pipeline packages.
var (
	classLabels       = []string{"image", "animated", "video"}
	stageLabels       = []string{"original", "preview", "thumbnails", "aspect", "probe"}
	previewOutcomes   = []string{"kept", "no_benefit", "error", "disabled"}
	thumbnailLabels   = []string{"small", "med", "large"}
	toolLabels        = []string{"ffmpeg", "ffprobe", "gifsicle"}
	artifactFolders   = []string{"uploads/image", "uploads/video", "uploads/animated", "previews/image", "previews/animated", "previews/video", "thumbnails"}
	filesystemVolumes = []string{"data", "database", "unknown"}
)

// InitializeMetrics pre-populates all expected label combinations so that
// every metric is exported from the first Prometheus scrape.
// Call this once at startup after metric registration.
func InitializeMetrics() {
	for _, class := range classLabels {
		for _, status := range []string{"success", "invalid", "conflict", "error"} {
			UploadsTotal.WithLabelValues(class, status)
		}
		UploadBytes.WithLabelValues(class)
		for _, stage := range stageLabels {
			StageDuration.WithLabelValues(class, stage)
		}
		for _, outcome := range previewOutcomes {
			PreviewOutcomes.WithLabelValues(class, outcome)
		}
		PreviewScale.WithLabelValues(class)
	}
	UploadsTotal.WithLabelValues("other", "invalid")

	for _, size := range thumbnailLabels {
		ThumbnailGenerationsTotal.WithLabelValues(size, "success")
		ThumbnailGenerationsTotal.WithLabelValues(size, "error")
	}
	for _, class := range []string{"animated", "video"} {
		ThumbnailFrameExtractions.WithLabelValues(class, "success")
		ThumbnailFrameExtractions.WithLabelValues(class, "error")
	}

	for _, probe := range []string{"encoders", "hwaccels"} {
		EncoderProbeInvocations.WithLabelValues(probe, "success")
		EncoderProbeInvocations.WithLabelValues(probe, "error")
	}

	for _, tool := range toolLabels {
		ProcessDuration.WithLabelValues(tool)
		ProcessFailures.WithLabelValues(tool)
	}

	for _, scope := range []string{"all", "thumbnails"} {
		PurgeRunsTotal.WithLabelValues(scope)
	}
	for _, status := range []string{"deleted", "error"} {
		PurgeFilesTotal.WithLabelValues(status)
	}
	for _, folder := range artifactFolders {
		ArtifactFiles.WithLabelValues(folder)
		ArtifactBytes.WithLabelValues(folder)
	}

	for _, op := range []string{"initialize_schema", "save_media", "get_media", "delete_media", "get_stats"} {
		DBQueryTotal.WithLabelValues(op, "success")
		DBQueryTotal.WithLabelValues(op, "error")
		DBQueryDuration.WithLabelValues(op)
	}

	fsOps := []string{"readdir", "remove", "write", "stat"}
	for _, vol := range filesystemVolumes {
		for _, op := range fsOps {
			FilesystemOperationDuration.WithLabelValues(vol, op)
			FilesystemOperationErrors.WithLabelValues(vol, op)
			FilesystemRetryAttempts.WithLabelValues(op, vol)
			FilesystemRetrySuccess.WithLabelValues(op, vol)
			FilesystemRetryFailures.WithLabelValues(op, vol)
			FilesystemStaleErrors.WithLabelValues(op, vol)
			FilesystemRetryDuration.WithLabelValues(op, vol)
		}
	}
}
