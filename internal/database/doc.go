// Package database stores pipeline results in SQLite.
//
// One row per content id records the class, extensions, preview scale,
// aspect ratio, sizes and video probe results of the last successful
// upload or replace. A small key/value metadata table tracks housekeeping
// values such as the time of the last upload.
//
// The database uses WAL mode and creates its schema on open. Store
// failures are reported to the caller, which logs them; the artifact
// folders remain the authoritative copy of the media.
package database
