// Package probe reads stream properties of stored media with ffprobe.
package probe

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"media-board/internal/ffmpeg"
)

// ErrDimensionUnavailable is returned when ffprobe reports no usable width
// or height for the first video stream.
var ErrDimensionUnavailable = errors.New("dimensions unavailable")

// ErrDurationUnavailable is returned when the container has no duration.
var ErrDurationUnavailable = errors.New("duration unavailable")

// Prober runs ffprobe through a Runner.
type Prober struct {
	runner ffmpeg.Runner
}

// New creates a Prober.
func New(runner ffmpeg.Runner) *Prober {
	return &Prober{runner: runner}
}

// VideoDimensions returns the width and height of the first video stream.
func (p *Prober) VideoDimensions(ctx context.Context, path string) (int, int, error) {
	res, err := p.runner.Run(ctx, ffmpeg.FFprobe,
		"-v", "error",
		"-select_streams", "v:0",
		"-show_entries", "stream=width,height",
		"-of", "csv=s=,:p=0",
		path,
	)
	if err != nil {
		return 0, 0, err
	}
	return ParseDimensions(string(res.Stdout))
}

// Duration returns the container duration in seconds.
func (p *Prober) Duration(ctx context.Context, path string) (float64, error) {
	res, err := p.runner.Run(ctx, ffmpeg.FFprobe,
		"-v", "error",
		"-show_entries", "format=duration",
		"-of", "default=noprint_wrappers=1:nokey=1",
		path,
	)
	if err != nil {
		return 0, err
	}
	return ParseDuration(string(res.Stdout))
}

// HasAudio reports whether the file has at least one audio stream.
func (p *Prober) HasAudio(ctx context.Context, path string) (bool, error) {
	res, err := p.runner.Run(ctx, ffmpeg.FFprobe,
		"-v", "error",
		"-select_streams", "a:0",
		"-show_entries", "stream=index",
		"-of", "csv=p=0",
		path,
	)
	if err != nil {
		return false, err
	}
	return strings.TrimSpace(string(res.Stdout)) != "", nil
}

// ParseDimensions parses ffprobe's "width,height" csv line. Some builds
// append a trailing separator.
func ParseDimensions(out string) (int, int, error) {
	line := strings.TrimSpace(out)
	if i := strings.IndexByte(line, '\n'); i >= 0 {
		line = strings.TrimSpace(line[:i])
	}
	parts := strings.Split(strings.TrimSuffix(line, ","), ",")
	if len(parts) < 2 {
		return 0, 0, fmt.Errorf("%w: unexpected ffprobe output %q", ErrDimensionUnavailable, out)
	}

	w, errW := strconv.Atoi(strings.TrimSpace(parts[0]))
	h, errH := strconv.Atoi(strings.TrimSpace(parts[1]))
	if errW != nil || errH != nil || w <= 0 || h <= 0 {
		return 0, 0, fmt.Errorf("%w: width=%q height=%q", ErrDimensionUnavailable, parts[0], parts[1])
	}
	return w, h, nil
}

// ParseDuration parses the bare duration value ffprobe prints. "N/A" and
// empty output mean the container carries no duration.
func ParseDuration(out string) (float64, error) {
	s := strings.TrimSpace(out)
	if s == "" || s == "N/A" {
		return 0, ErrDurationUnavailable
	}
	d, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: %q", ErrDurationUnavailable, s)
	}
	return d, nil
}
