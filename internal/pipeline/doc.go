/*
Package pipeline ties the upload stages together.

For a new item [Orchestrator.Upload] classifies the extension, stores the
original under uploads/<class>/<id>.<ext> (images are auto-rotated and
stripped of metadata), then generates the preview, the thumbnails and the
aspect ratio. Videos additionally get duration and audio-presence probes.

Only three things make an upload fail: invalid input (rejected before any
file is written), an original that cannot be stored, and a host without a
working toolchain or encoder. Everything else degrades to an absent field in
the [Result].

[Orchestrator.Replace] purges every artifact of the id and uploads again;
[Orchestrator.Delete] only purges.
*/
package pipeline
