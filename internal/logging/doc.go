// Package logging provides the leveled logger shared by every stage of the
// media pipeline.
//
// It supports the following log levels:
//   - DEBUG: child process command lines, per-file decisions
//   - INFO: upload results, encoder selection, startup configuration
//   - WARN: recoverable stage failures (preview, thumbnails, aspect ratio)
//   - ERROR: failed uploads and toolchain problems
//   - FATAL: configuration errors that terminate the process
//
// The level is read from DEBUG or LOG_LEVEL and can be overridden with SetLevel.
package logging
