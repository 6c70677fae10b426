// Package thumbnail produces the three fixed-width WEBP thumbnails of an upload.
package thumbnail

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"golang.org/x/sync/errgroup"

	"media-board/internal/artifacts"
	"media-board/internal/ffmpeg"
	"media-board/internal/filesystem"
	"media-board/internal/logging"
	"media-board/internal/media"
	"media-board/internal/mediatypes"
	"media-board/internal/metrics"
)

// Quality is the WEBP quality of every thumbnail.
const Quality = 50

// Size is one thumbnail bound.
type Size struct {
	Label string
	Width int
}

// Sizes are generated for every upload, small to large.
var Sizes = []Size{
	{Label: "small", Width: 400},
	{Label: "med", Width: 800},
	{Label: "large", Width: 1200},
}

// Thumbnail is the outcome for one size. Err is nil when Path was written.
type Thumbnail struct {
	Label string
	Width int
	Path  string
	Err   error
}

// Set holds one Thumbnail per entry of Sizes, in the same order.
type Set []Thumbnail

// Complete reports whether every thumbnail was written.
func (s Set) Complete() bool {
	if len(s) != len(Sizes) {
		return false
	}
	for _, t := range s {
		if t.Err != nil {
			return false
		}
	}
	return true
}

// Err joins the per-size errors, or returns nil.
func (s Set) Err() error {
	var errs []error
	for _, t := range s {
		if t.Err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", t.Label, t.Err))
		}
	}
	return errors.Join(errs...)
}

// Generator writes thumbnails into a Layout.
type Generator struct {
	runner ffmpeg.Runner
	layout artifacts.Layout
	retry  filesystem.RetryConfig
}

// New creates a Generator.
func New(runner ffmpeg.Runner, layout artifacts.Layout) *Generator {
	return &Generator{runner: runner, layout: layout, retry: filesystem.DefaultRetryConfig()}
}

// Generate writes the thumbnails of id from the stored original at srcPath.
// Videos and animations contribute one extracted frame. Failures are logged
// and recorded per entry; Generate itself never fails.
func (g *Generator) Generate(ctx context.Context, id string, class mediatypes.MediaClass, srcPath string) Set {
	set := make(Set, len(Sizes))
	for i, s := range Sizes {
		set[i] = Thumbnail{Label: s.Label, Width: s.Width, Path: g.layout.ThumbnailPath(id, s.Label)}
	}

	frame, err := g.frame(ctx, class, srcPath)
	if err != nil {
		logging.Warn("Thumbnails for %s skipped: %v", id, err)
		for i := range set {
			set[i].Err = err
			metrics.ThumbnailGenerationsTotal.WithLabelValues(set[i].Label, "error").Inc()
		}
		return set
	}

	var eg errgroup.Group
	for i := range set {
		eg.Go(func() error {
			set[i].Err = g.write(frame, set[i])
			return nil
		})
	}
	_ = eg.Wait()

	for _, t := range set {
		if t.Err != nil {
			metrics.ThumbnailGenerationsTotal.WithLabelValues(t.Label, "error").Inc()
			logging.Warn("Thumbnail %s for %s failed: %v", t.Label, id, t.Err)
			continue
		}
		metrics.ThumbnailGenerationsTotal.WithLabelValues(t.Label, "success").Inc()
	}
	return set
}

func (g *Generator) write(frame []byte, t Thumbnail) error {
	r, err := media.ResizeToWebP(frame, t.Width, Quality)
	if err != nil {
		return err
	}
	return filesystem.WriteFileWithRetry(t.Path, r.Data, 0o644, g.retry)
}

// frame returns the raster the thumbnails are cut from: the original for
// images, otherwise a single frame extracted with ffmpeg into a temporary
// PNG that is removed before returning.
func (g *Generator) frame(ctx context.Context, class mediatypes.MediaClass, srcPath string) ([]byte, error) {
	if class == mediatypes.ClassImage {
		return os.ReadFile(srcPath)
	}

	tmp, err := os.CreateTemp("", "frame-*.png")
	if err != nil {
		return nil, fmt.Errorf("creating frame file: %w", err)
	}
	tmpName := tmp.Name()
	_ = tmp.Close()
	defer func() {
		if err := os.Remove(tmpName); err != nil && !os.IsNotExist(err) {
			logging.Warn("Failed to remove frame file %s: %v", tmpName, err)
		}
	}()

	start := time.Now()
	_, err = g.runner.Run(ctx, ffmpeg.FFmpeg, ffmpeg.FrameExtractArgs(srcPath, tmpName)...)
	if err != nil {
		metrics.ThumbnailFrameExtractions.WithLabelValues(string(class), "error").Inc()
		return nil, fmt.Errorf("extracting frame: %w", err)
	}
	metrics.ThumbnailFrameExtractions.WithLabelValues(string(class), "success").Inc()
	logging.Debug("Extracted frame from %s in %v", srcPath, time.Since(start))

	return os.ReadFile(tmpName)
}
