// Package startup handles configuration loading and startup/shutdown logging.
//
// # Configuration
//
// Configuration is read with viper from environment variables and, when
// CONFIG_FILE names one, a config file. Environment variables win. Invalid
// values fall back to their defaults with a warning.
//
//   - DATA_DIR: Root of the artifact folders (default: ./data)
//   - DATABASE_DIR: Directory of the result store (default: ./database)
//   - PORT: HTTP API port (default: 8080)
//   - METRICS_PORT: Prometheus metrics port (default: 9090)
//   - METRICS_ENABLED: Serve metrics (default: true)
//   - LOG_LEVEL: debug, info, warn, error (default: info)
//   - LOG_HEALTH_CHECKS: Log /healthz requests (default: true)
//   - DISABLE_VIDEO_PREVIEWS: Skip video preview encoding (default: false)
//   - VIDEO_CODEC: h264, h265, vp9 or av1 (default: h264)
//   - VIDEO_ENCODER: Force an encoder implementation, e.g. h264_nvenc
//   - GIF_QUALITY, GIF_EFFORT, GIF_MAX_WIDTH: Animated preview tuning
//     (defaults: 50, 3, 600)
//   - MAX_UPLOAD_SIZE: Largest accepted file in bytes (default: 512 MiB)
//   - FFMPEG_PATH, FFPROBE_PATH, GIFSICLE_PATH: Tool locations
//
// The data and database directories are created and write-tested by
// [LoadConfig].
//
// # Build Information
//
// Build-time variables are injected via ldflags and exposed via [GetBuildInfo].
//
// # Lifecycle Logging
//
// [LogToolchain], [LogEncoderSelection], [LogDatabaseInit], [LogHTTPRoutes],
// [LogServerStarted] and the shutdown helpers print the sectioned startup
// and shutdown log.
package startup
