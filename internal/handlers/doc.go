// Package handlers provides the HTTP handlers of the media board API.
//
// It includes handlers for:
//   - Uploading, replacing and deleting media (multipart/form-data)
//   - Reading the stored processing result of a content id
//   - Health, liveness, readiness and version
//
// Invalid input answers 400, an oversized file 413 and a processing
// failure 500. Results are persisted to the result store after every
// successful upload or replace.
package handlers
