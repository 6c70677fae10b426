/*
Package filesystem provides resilient filesystem operations with automatic retry logic
for NFS stale file handle errors.

The artifact tree (uploads, previews, thumbnails) is commonly mounted over NFS. Every
read, listing, removal and write the pipeline performs on it goes through these
helpers so a transient ESTALE does not turn into an orphaned or missing artifact.

# Operations

  - StatWithRetry: os.Stat
  - ReadDirWithRetry: os.ReadDir, used by the artifact purge
  - RemoveWithRetry: os.Remove; os.ErrNotExist is passed through untouched so callers
    can treat a concurrent removal as success
  - WriteFileWithRetry: temp file + rename into place, creating parent directories

Only ESTALE is retried, with exponential backoff capped at MaxBackoff. Any other error
is returned immediately.

# Metrics

Set an Observer (metrics.NewFilesystemObserver) at startup to record durations, errors
and retry counts labeled with the volume resolved by VolumeResolver.
*/
package filesystem
