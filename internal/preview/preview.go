package preview

import (
	"context"
	"errors"
	"math"
	"os"
	"path/filepath"
	"strconv"

	"media-board/internal/artifacts"
	"media-board/internal/encoder"
	"media-board/internal/ffmpeg"
	"media-board/internal/filesystem"
	"media-board/internal/logging"
	"media-board/internal/media"
	"media-board/internal/mediatypes"
	"media-board/internal/metrics"
	"media-board/internal/probe"
)

// Image preview policy.
const (
	ImageMaxWidth = 1280
	ImageQuality  = 90
	ImageExt      = "webp"
)

// Animated preview defaults.
const (
	DefaultGIFQuality  = 50
	DefaultGIFEffort   = 3
	DefaultGIFMaxWidth = 600
	AnimatedExt        = "gif"
)

// Audio is always re-encoded for video previews.
var audioArgs = []string{"-c:a", "libopus", "-b:a", "128k"}

// Artifact describes a generated preview. Nil fields mean "none": a zero
// Artifact is the "no preview" result.
type Artifact struct {
	Path      *string
	Extension string
	// Scale is the preview's size as a percentage of the original. For
	// images it is the width ratio.
	Scale     *int
	SizeBytes *int64
}

// Kept reports whether a preview file was written and kept.
func (a Artifact) Kept() bool {
	return a.Path != nil
}

// Options holds the operator-tunable preview settings.
type Options struct {
	DisableVideo bool
	VideoFamily  encoder.Family
	GIFQuality   int
	GIFEffort    int
	GIFMaxWidth  int
}

// DefaultOptions returns the stock preview settings.
func DefaultOptions() Options {
	return Options{
		VideoFamily: encoder.DefaultFamily,
		GIFQuality:  DefaultGIFQuality,
		GIFEffort:   DefaultGIFEffort,
		GIFMaxWidth: DefaultGIFMaxWidth,
	}
}

// Generator produces previews for each media class.
//
// Every method returns a non-nil error only for host misconfiguration
// (ErrToolchainUnavailable, ErrNoUsableEncoder). Any other failure is logged
// and reported as a zero Artifact so the upload can continue without a preview.
type Generator struct {
	runner   ffmpeg.Runner
	registry *encoder.Registry
	prober   *probe.Prober
	layout   artifacts.Layout
	opts     Options
	retry    filesystem.RetryConfig
}

// New creates a Generator.
func New(runner ffmpeg.Runner, registry *encoder.Registry, prober *probe.Prober, layout artifacts.Layout, opts Options) *Generator {
	if opts.VideoFamily == "" {
		opts.VideoFamily = encoder.DefaultFamily
	}
	if opts.GIFQuality <= 0 || opts.GIFQuality > 100 {
		opts.GIFQuality = DefaultGIFQuality
	}
	if opts.GIFEffort < 1 || opts.GIFEffort > 3 {
		opts.GIFEffort = DefaultGIFEffort
	}
	if opts.GIFMaxWidth <= 0 {
		opts.GIFMaxWidth = DefaultGIFMaxWidth
	}
	return &Generator{
		runner:   runner,
		registry: registry,
		prober:   prober,
		layout:   layout,
		opts:     opts,
		retry:    filesystem.DefaultRetryConfig(),
	}
}

// isFatal reports whether err must abort the upload.
func isFatal(err error) bool {
	return errors.Is(err, ffmpeg.ErrToolchainUnavailable) || errors.Is(err, encoder.ErrNoUsableEncoder)
}

// percent returns round(part/whole*100).
func percent(part, whole int64) int {
	if whole <= 0 {
		return 0
	}
	return int(math.Round(float64(part) / float64(whole) * 100))
}

func intPtr(v int) *int       { return &v }
func int64Ptr(v int64) *int64 { return &v }
func strPtr(v string) *string { return &v }

func record(class mediatypes.MediaClass, outcome string) {
	metrics.PreviewOutcomes.WithLabelValues(string(class), outcome).Inc()
}

// failed logs a recoverable preview failure, removes any partial output and
// returns the "no preview" result. Fatal errors are passed through.
func failed(class mediatypes.MediaClass, id, out string, err error) (Artifact, error) {
	if out != "" {
		_ = os.Remove(out)
	}
	record(class, "error")
	if isFatal(err) {
		return Artifact{}, err
	}
	logging.Warn("%s preview for %s failed, continuing without one: %v", class, id, err)
	return Artifact{}, nil
}

// compareSize keeps out when it is smaller than the source. Otherwise the
// file is removed and ok is false.
func compareSize(out string, srcSize int64) (size int64, ok bool, err error) {
	info, err := os.Stat(out)
	if err != nil {
		return 0, false, err
	}
	size = info.Size()
	if size >= srcSize {
		if err := os.Remove(out); err != nil && !os.IsNotExist(err) {
			logging.Warn("Failed to remove oversized preview %s: %v", out, err)
		}
		return size, false, nil
	}
	return size, true, nil
}

// Image writes a WEBP preview at most ImageMaxWidth wide. The preview is
// kept even when it is not smaller than the original.
func (g *Generator) Image(_ context.Context, id string, src []byte) (Artifact, error) {
	class := mediatypes.ClassImage
	out := g.layout.PreviewPath(class, id, ImageExt)

	r, err := media.ResizeToWebP(src, ImageMaxWidth, ImageQuality)
	if err != nil {
		return failed(class, id, "", err)
	}
	if err := filesystem.WriteFileWithRetry(out, r.Data, 0o644, g.retry); err != nil {
		return failed(class, id, out, err)
	}

	scale := percent(int64(r.Width), int64(r.OrigWidth))
	record(class, "kept")
	metrics.PreviewScale.WithLabelValues(string(class)).Observe(float64(scale))
	logging.Debug("Image preview for %s: %dx%d -> %dx%d (%d%%)", id, r.OrigWidth, r.OrigHeight, r.Width, r.Height, scale)

	return Artifact{
		Path:      strPtr(out),
		Extension: ImageExt,
		Scale:     intPtr(scale),
		SizeBytes: int64Ptr(int64(len(r.Data))),
	}, nil
}

// Animated compresses an animated GIF or APNG with gifsicle. A preview that
// is not smaller than the source is removed and reported with a nil Scale.
func (g *Generator) Animated(ctx context.Context, id, srcPath, srcExt string, srcSize int64) (Artifact, error) {
	class := mediatypes.ClassAnimated
	out := g.layout.PreviewPath(class, id, AnimatedExt)

	if err := os.MkdirAll(filepath.Dir(out), 0o755); err != nil {
		return failed(class, id, "", err)
	}

	input := srcPath
	if mediatypes.NormalizeExtension(srcExt) == "apng" {
		tmp, err := os.CreateTemp("", "apng-*.gif")
		if err != nil {
			return failed(class, id, "", err)
		}
		_ = tmp.Close()
		defer func() {
			if err := os.Remove(tmp.Name()); err != nil && !os.IsNotExist(err) {
				logging.Warn("Failed to remove temporary GIF %s: %v", tmp.Name(), err)
			}
		}()
		if _, err := g.runner.Run(ctx, ffmpeg.FFmpeg, ffmpeg.APNGToGIFArgs(srcPath, tmp.Name())...); err != nil {
			return failed(class, id, "", err)
		}
		input = tmp.Name()
	}

	if _, err := g.runner.Run(ctx, ffmpeg.Gifsicle, g.gifsicleArgs(input, out)...); err != nil {
		return failed(class, id, out, err)
	}

	size, ok, err := compareSize(out, srcSize)
	if err != nil {
		return failed(class, id, out, err)
	}
	if !ok {
		record(class, "no_benefit")
		logging.Debug("Animated preview for %s is %d bytes, original %d: keeping original", id, size, srcSize)
		return Artifact{Extension: AnimatedExt}, nil
	}

	scale := percent(size, srcSize)
	record(class, "kept")
	metrics.PreviewScale.WithLabelValues(string(class)).Observe(float64(scale))
	return Artifact{
		Path:      strPtr(out),
		Extension: AnimatedExt,
		Scale:     intPtr(scale),
		SizeBytes: int64Ptr(size),
	}, nil
}

// gifsicleArgs builds the compression command. Quality maps onto gifsicle's
// lossiness, where 0 is lossless and 200 is the roughest.
func (g *Generator) gifsicleArgs(input, out string) []string {
	lossy := 200 * (100 - g.opts.GIFQuality) / 100
	return []string{
		"-O" + strconv.Itoa(g.opts.GIFEffort),
		"--lossy=" + strconv.Itoa(lossy),
		"--resize-fit-width", strconv.Itoa(g.opts.GIFMaxWidth),
		input,
		"-o", out,
	}
}

// Video transcodes a preview with the best encoder for the configured codec
// family. A preview that is not smaller than the source is removed and
// reported with Scale 100 and the extension it would have had.
func (g *Generator) Video(ctx context.Context, id, srcPath string, srcSize int64) (Artifact, error) {
	class := mediatypes.ClassVideo
	if g.opts.DisableVideo {
		record(class, "disabled")
		return Artifact{Scale: intPtr(100)}, nil
	}

	enc, err := g.registry.SelectEncoder(ctx, g.opts.VideoFamily)
	if err != nil {
		return failed(class, id, "", err)
	}

	filter, err := g.videoFilter(ctx, enc, srcPath)
	if err != nil {
		return failed(class, id, "", err)
	}

	out := g.layout.PreviewPath(class, id, enc.Container)
	if err := os.MkdirAll(filepath.Dir(out), 0o755); err != nil {
		return failed(class, id, "", err)
	}

	if _, err := g.runner.Run(ctx, ffmpeg.FFmpeg, VideoArgs(enc, srcPath, out, filter)...); err != nil {
		return failed(class, id, out, err)
	}

	size, ok, err := compareSize(out, srcSize)
	if err != nil {
		return failed(class, id, out, err)
	}
	if !ok {
		record(class, "no_benefit")
		logging.Debug("Video preview for %s is %d bytes, original %d: keeping original", id, size, srcSize)
		return Artifact{Extension: enc.Container, Scale: intPtr(100)}, nil
	}

	scale := percent(size, srcSize)
	record(class, "kept")
	metrics.PreviewScale.WithLabelValues(string(class)).Observe(float64(scale))
	logging.Debug("Video preview for %s encoded with %s: %d%% of original", id, enc.Name, scale)
	return Artifact{
		Path:      strPtr(out),
		Extension: enc.Container,
		Scale:     intPtr(scale),
		SizeBytes: int64Ptr(size),
	}, nil
}

// videoFilter returns the -vf chain for enc. QSV scaling needs concrete
// dimensions, so the source is probed for those encoders.
func (g *Generator) videoFilter(ctx context.Context, enc encoder.Config, srcPath string) (string, error) {
	if !enc.UsesQSVScale() {
		filter := ffmpeg.PreviewFilter()
		if enc.FilterChain != "" {
			filter += "," + enc.FilterChain
		}
		return filter, nil
	}

	w, h, err := g.prober.VideoDimensions(ctx, srcPath)
	if err != nil {
		return "", err
	}
	tw, th := QSVDimensions(w, h)
	return ffmpeg.ColorspaceFilter + "," + enc.Filter(tw, th), nil
}

// QSVDimensions scales w x h to the preview width keeping the aspect ratio,
// with the width a multiple of 4 and the height a multiple of 2.
func QSVDimensions(w, h int) (int, int) {
	tw := ffmpeg.RoundDown(ffmpeg.PreviewWidth, 4)
	th := int(math.Round(float64(h) * float64(tw) / float64(w)))
	return tw, ffmpeg.RoundDown(th, 2)
}

// VideoArgs builds the full ffmpeg command for a video preview.
func VideoArgs(enc encoder.Config, src, out, filter string) []string {
	args := append([]string{}, ffmpeg.QuietArgs...)
	args = append(args, "-y")
	args = append(args, enc.HWInitArgs...)
	args = append(args, "-i", src, "-vf", filter)
	args = append(args, enc.CodecArgs()...)
	args = append(args, audioArgs...)
	return append(args, out)
}
