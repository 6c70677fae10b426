package pipeline

import (
	"context"
	"errors"
	"fmt"
	"math"
	"os"
	"strings"
	"time"

	"media-board/internal/artifacts"
	"media-board/internal/database"
	"media-board/internal/filesystem"
	"media-board/internal/logging"
	"media-board/internal/media"
	"media-board/internal/mediatypes"
	"media-board/internal/metrics"
	"media-board/internal/preview"
	"media-board/internal/probe"
	"media-board/internal/thumbnail"
)

// ErrInvalidInput is returned before any file is touched when the content
// id, the payload or the media class cannot be processed.
var ErrInvalidInput = errors.New("invalid input")

// ErrExists is returned by Upload when the content id already has
// artifacts on disk. Replace is the way to overwrite them.
var ErrExists = errors.New("content id already has artifacts")

// SubFileUpload is the in-flight record of one upload.
type SubFileUpload struct {
	ContentID    string
	OriginalExt  string
	Class        mediatypes.MediaClass
	Buffer       []byte
	OriginalPath string
}

// Result is what the caller persists against its content record.
type Result struct {
	ContentID   string                `json:"contentId"`
	Class       mediatypes.MediaClass `json:"class"`
	OriginalExt string                `json:"originalExt"`
	// PreviewExt is the extension the preview has or would have had; empty
	// when video previews are disabled or generation failed.
	PreviewExt      string   `json:"previewExt"`
	PreviewScale    *int     `json:"previewScale"`
	AspectRatio     float64  `json:"aspectRatio"`
	FileSize        int64    `json:"fileSize"`
	PreviewFileSize int64    `json:"previewFileSize"`
	Duration        *float64 `json:"duration,omitempty"`
	HasAudio        *bool    `json:"hasAudio,omitempty"`
	ThumbnailsReady bool     `json:"thumbnailsReady"`

	Thumbnails thumbnail.Set `json:"-"`
}

// Orchestrator runs the upload sequence: store original, preview,
// thumbnails, aspect ratio and, for video, audio and duration probes.
type Orchestrator struct {
	layout     artifacts.Layout
	artifacts  *artifacts.Manager
	previews   *preview.Generator
	thumbnails *thumbnail.Generator
	prober     *probe.Prober
	retry      filesystem.RetryConfig
	gate       Backpressure
}

// Backpressure holds new uploads back while the host is short of memory.
type Backpressure interface {
	Wait(ctx context.Context) error
}

// New creates an Orchestrator.
func New(manager *artifacts.Manager, previews *preview.Generator, thumbnails *thumbnail.Generator, prober *probe.Prober) *Orchestrator {
	return &Orchestrator{
		layout:     manager.Layout(),
		artifacts:  manager,
		previews:   previews,
		thumbnails: thumbnails,
		prober:     prober,
		retry:      filesystem.DefaultRetryConfig(),
	}
}

// SetBackpressure makes Upload and Replace wait on b before touching any
// file. Call it before serving requests.
func (o *Orchestrator) SetBackpressure(b Backpressure) {
	o.gate = b
}

// validateID rejects ids that would escape or confuse the artifact layout.
func validateID(id string) error {
	switch {
	case id == "":
		return fmt.Errorf("%w: empty content id", ErrInvalidInput)
	case id == "." || id == "..", strings.ContainsAny(id, `/\`+"\x00"):
		return fmt.Errorf("%w: content id %q is not a valid file name", ErrInvalidInput, id)
	}
	return nil
}

func validate(id string, buf []byte, ext string) (mediatypes.MediaClass, error) {
	if err := validateID(id); err != nil {
		return mediatypes.ClassOther, err
	}
	if len(buf) == 0 {
		return mediatypes.ClassOther, fmt.Errorf("%w: empty file", ErrInvalidInput)
	}
	class := mediatypes.Resolve(ext)
	if !class.IsProcessable() {
		return class, fmt.Errorf("%w: unsupported file type %q", ErrInvalidInput, ext)
	}
	return class, nil
}

func stage(class mediatypes.MediaClass, name string, start time.Time) {
	metrics.StageDuration.WithLabelValues(string(class), name).Observe(time.Since(start).Seconds())
}

// Upload processes a new item. It fails for invalid input, an id that
// already has artifacts (ErrExists), an unwritable original, or a
// misconfigured toolchain; missing previews, thumbnails or probe results
// are logged and reported as absent fields.
func (o *Orchestrator) Upload(ctx context.Context, contentID string, buf []byte, ext string) (*Result, error) {
	return o.process(ctx, contentID, buf, ext, false)
}

// Replace removes every artifact of contentID and uploads the new file
// under the same id. Input is validated before anything is removed.
func (o *Orchestrator) Replace(ctx context.Context, contentID string, buf []byte, ext string) (*Result, error) {
	return o.process(ctx, contentID, buf, ext, true)
}

func (o *Orchestrator) process(ctx context.Context, contentID string, buf []byte, ext string, replace bool) (*Result, error) {
	class, err := validate(contentID, buf, ext)
	if err != nil {
		metrics.UploadsTotal.WithLabelValues(string(class), "invalid").Inc()
		return nil, err
	}

	if o.gate != nil {
		if err := o.gate.Wait(ctx); err != nil {
			metrics.UploadsTotal.WithLabelValues(string(class), "error").Inc()
			return nil, fmt.Errorf("waiting for memory to process %s: %w", contentID, err)
		}
	}

	// Once files are being touched the run completes even if the caller
	// goes away.
	ctx = context.WithoutCancel(ctx)

	if !replace {
		existing, err := o.artifacts.Find(contentID)
		if err != nil {
			metrics.UploadsTotal.WithLabelValues(string(class), "error").Inc()
			return nil, fmt.Errorf("checking existing artifacts of %s: %w", contentID, err)
		}
		if len(existing) > 0 {
			metrics.UploadsTotal.WithLabelValues(string(class), "conflict").Inc()
			return nil, fmt.Errorf("%w: %s (%d file(s))", ErrExists, contentID, len(existing))
		}
	}

	if replace {
		start := time.Now()
		report := o.artifacts.Purge(contentID, false)
		logging.Debug("Replace %s: purged %d artifact(s) in %v", contentID, len(report.Deleted()), time.Since(start))
	}

	metrics.UploadsInProgress.Inc()
	defer metrics.UploadsInProgress.Dec()

	res, err := o.run(ctx, SubFileUpload{
		ContentID:   contentID,
		OriginalExt: mediatypes.NormalizeExtension(ext),
		Class:       class,
		Buffer:      buf,
	})
	if err != nil {
		metrics.UploadsTotal.WithLabelValues(string(class), "error").Inc()
		return nil, err
	}
	metrics.UploadsTotal.WithLabelValues(string(class), "success").Inc()
	metrics.UploadBytes.WithLabelValues(string(class)).Observe(float64(res.FileSize))
	return res, nil
}

func (o *Orchestrator) run(ctx context.Context, sub SubFileUpload) (*Result, error) {
	id, class := sub.ContentID, sub.Class
	started := time.Now()

	start := time.Now()
	if err := o.storeOriginal(&sub); err != nil {
		return nil, err
	}
	stage(class, "original", start)

	res := &Result{
		ContentID:   id,
		Class:       class,
		OriginalExt: sub.OriginalExt,
		FileSize:    int64(len(sub.Buffer)),
	}

	start = time.Now()
	art, err := o.preview(ctx, sub, res.FileSize)
	if err != nil {
		o.discardOriginal(sub.OriginalPath)
		return nil, fmt.Errorf("generating preview for %s: %w", id, err)
	}
	stage(class, "preview", start)
	res.PreviewExt = art.Extension
	res.PreviewScale = art.Scale
	res.PreviewFileSize = res.FileSize
	if art.SizeBytes != nil {
		res.PreviewFileSize = *art.SizeBytes
	}

	start = time.Now()
	res.Thumbnails = o.thumbnails.Generate(ctx, id, class, sub.OriginalPath)
	res.ThumbnailsReady = res.Thumbnails.Complete()
	stage(class, "thumbnails", start)

	start = time.Now()
	ratio, err := o.AspectRatio(ctx, sub)
	if err != nil {
		logging.Warn("Aspect ratio for %s unavailable, reporting 0: %v", id, err)
	}
	res.AspectRatio = ratio
	stage(class, "aspect", start)

	if class == mediatypes.ClassVideo {
		start = time.Now()
		o.probeVideo(ctx, sub.OriginalPath, res)
		stage(class, "probe", start)
	}

	logging.Info("Processed %s %s (%s, %d bytes) in %v", class, id, sub.OriginalExt, res.FileSize, time.Since(started))
	return res, nil
}

// storeOriginal writes the upload to its layout path. Images are
// auto-rotated and stripped of metadata first; if that fails the bytes are
// stored as received.
func (o *Orchestrator) storeOriginal(sub *SubFileUpload) error {
	if sub.Class == mediatypes.ClassImage {
		normalized, err := media.NormalizeOriginal(sub.Buffer, sub.OriginalExt)
		if err != nil {
			logging.Warn("Could not normalize image %s, storing as uploaded: %v", sub.ContentID, err)
		} else {
			sub.Buffer = normalized
		}
	}

	sub.OriginalPath = o.layout.OriginalPath(sub.Class, sub.ContentID, sub.OriginalExt)
	if err := filesystem.WriteFileWithRetry(sub.OriginalPath, sub.Buffer, 0o644, o.retry); err != nil {
		return fmt.Errorf("storing original %s: %w", sub.OriginalPath, err)
	}
	return nil
}

func (o *Orchestrator) discardOriginal(path string) {
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		logging.Warn("Failed to remove original %s after a failed upload: %v", path, err)
	}
}

func (o *Orchestrator) preview(ctx context.Context, sub SubFileUpload, size int64) (preview.Artifact, error) {
	switch sub.Class {
	case mediatypes.ClassImage:
		return o.previews.Image(ctx, sub.ContentID, sub.Buffer)
	case mediatypes.ClassAnimated:
		return o.previews.Animated(ctx, sub.ContentID, sub.OriginalPath, sub.OriginalExt, size)
	case mediatypes.ClassVideo:
		return o.previews.Video(ctx, sub.ContentID, sub.OriginalPath, size)
	}
	return preview.Artifact{}, nil
}

// probeVideo fills HasAudio and Duration. Each probe is independent and a
// failure leaves its field nil.
func (o *Orchestrator) probeVideo(ctx context.Context, path string, res *Result) {
	if hasAudio, err := o.prober.HasAudio(ctx, path); err != nil {
		logging.Warn("Audio probe for %s failed: %v", res.ContentID, err)
	} else {
		res.HasAudio = &hasAudio
	}

	if d, err := o.prober.Duration(ctx, path); err != nil {
		logging.Warn("Duration probe for %s failed: %v", res.ContentID, err)
	} else {
		res.Duration = &d
	}
}

// AspectRatio returns width/height of the stored original, rounded to six
// decimal places. It returns 0 and an error wrapping
// probe.ErrDimensionUnavailable when either dimension is missing.
func (o *Orchestrator) AspectRatio(ctx context.Context, sub SubFileUpload) (float64, error) {
	var w, h int
	if sub.Class == mediatypes.ClassImage {
		dims, err := media.GetImageDimensions(sub.OriginalPath)
		if err != nil {
			return 0, fmt.Errorf("%w: %v", probe.ErrDimensionUnavailable, err)
		}
		w, h = dims.Width, dims.Height
	} else {
		var err error
		if w, h, err = o.prober.VideoDimensions(ctx, sub.OriginalPath); err != nil {
			return 0, err
		}
	}
	return Ratio(w, h)
}

// Ratio returns w/h rounded to six decimal places.
func Ratio(w, h int) (float64, error) {
	if w <= 0 || h <= 0 {
		return 0, fmt.Errorf("%w: %dx%d", probe.ErrDimensionUnavailable, w, h)
	}
	return math.Round(float64(w)/float64(h)*1e6) / 1e6, nil
}

// Delete removes every artifact of contentID.
func (o *Orchestrator) Delete(contentID string) (artifacts.Report, error) {
	if err := validateID(contentID); err != nil {
		return nil, err
	}
	return o.artifacts.Purge(contentID, false), nil
}

// Record converts the result into its result store row.
func (r *Result) Record() *database.MediaRecord {
	return &database.MediaRecord{
		ContentID:       r.ContentID,
		Class:           string(r.Class),
		OriginalExt:     r.OriginalExt,
		PreviewExt:      r.PreviewExt,
		PreviewScale:    r.PreviewScale,
		AspectRatio:     r.AspectRatio,
		FileSize:        r.FileSize,
		PreviewFileSize: r.PreviewFileSize,
		Duration:        r.Duration,
		HasAudio:        r.HasAudio,
		ThumbnailsReady: r.ThumbnailsReady,
	}
}
