// Package main provides the entry point for the Media Board server.
//
// Media Board accepts uploaded images, animated images and videos, stores
// the original and derives a preview and three thumbnails for each. The
// outcome of every upload is kept in a SQLite result store.
//
// # Application Lifecycle
//
//  1. Memory Configuration: Sets GOMEMLIMIT from MEMORY_LIMIT when given
//  2. Configuration Loading: Environment and optional config file via viper
//  3. libvips Startup: Falls back to pure Go image processing when missing
//  4. Toolchain Check: Logs ffmpeg, ffprobe and gifsicle versions and
//     selects the video encoder once
//  5. Component Initialization:
//     - Upload pipeline with preview and thumbnail generators
//     - Memory monitor holding new uploads back under pressure
//     - Result store
//     - Metrics collector sampling artifact folder usage
//  6. HTTP Server Setup: Routes, middleware, optional metrics server
//  7. Graceful Shutdown: Handles SIGINT/SIGTERM
//
// # HTTP Server
//
// The main server (default port 8080) serves:
//
//   - POST /api/media: upload (multipart "id" and "file")
//   - PUT /api/media/{id}: replace
//   - DELETE /api/media/{id}: delete every artifact and the record
//   - GET /api/media/{id}: stored result
//   - /healthz, /livez, /readyz, /version
//
// The metrics server (default port 9090) serves /metrics.
//
// # Graceful Shutdown
//
//  1. Stop the memory monitor, releasing uploads that wait for memory
//  2. Shutdown the HTTP server (30s timeout); running uploads complete
//  3. Stop the metrics collector and metrics server
//  4. Close the result store
//  5. Release libvips
//
// # Related Packages
//
//   - [media-board/internal/pipeline]: Upload orchestration
//   - [media-board/internal/preview]: Preview generation
//   - [media-board/internal/thumbnail]: Thumbnail generation
//   - [media-board/internal/encoder]: Video encoder selection
//   - [media-board/internal/artifacts]: Artifact layout and purge
//   - [media-board/internal/handlers]: HTTP request handlers
//   - [media-board/internal/startup]: Configuration and initialization
package main
