package ffmpeg

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"
	"time"

	"media-board/internal/logging"
	"media-board/internal/metrics"
)

// ErrToolchainUnavailable is returned when an external binary cannot be
// started at all. It indicates a misconfigured host and is never retried.
var ErrToolchainUnavailable = errors.New("media toolchain unavailable")

// Tool names an external program the pipeline drives.
type Tool string

const (
	// FFmpeg encodes video, extracts frames and converts APNG.
	FFmpeg Tool = "ffmpeg"
	// FFprobe reads stream dimensions, duration and audio presence.
	FFprobe Tool = "ffprobe"
	// Gifsicle compresses animated GIF previews.
	Gifsicle Tool = "gifsicle"
)

// Result holds the captured output of one invocation.
type Result struct {
	Stdout []byte
	Stderr string
}

// Runner starts external tools. The pipeline blocks on Run until the child
// exits; there is no timeout beyond the caller's context.
type Runner interface {
	Run(ctx context.Context, tool Tool, args ...string) (Result, error)
}

// Paths overrides binary locations. Empty fields resolve through PATH.
type Paths struct {
	FFmpeg   string
	FFprobe  string
	Gifsicle string
}

// ExecRunner runs tools with os/exec.
type ExecRunner struct {
	paths Paths
}

// NewExecRunner creates a Runner backed by real child processes.
func NewExecRunner(paths Paths) *ExecRunner {
	return &ExecRunner{paths: paths}
}

func (r *ExecRunner) binary(tool Tool) string {
	switch tool {
	case FFmpeg:
		if r.paths.FFmpeg != "" {
			return r.paths.FFmpeg
		}
	case FFprobe:
		if r.paths.FFprobe != "" {
			return r.paths.FFprobe
		}
	case Gifsicle:
		if r.paths.Gifsicle != "" {
			return r.paths.Gifsicle
		}
	}
	return string(tool)
}

// Run executes tool with args, capturing stdout and stderr.
func (r *ExecRunner) Run(ctx context.Context, tool Tool, args ...string) (Result, error) {
	bin := r.binary(tool)
	cmd := exec.CommandContext(ctx, bin, args...)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	logging.Debug("exec: %s %s", bin, strings.Join(args, " "))

	start := time.Now()
	err := cmd.Run()
	metrics.ProcessDuration.WithLabelValues(string(tool)).Observe(time.Since(start).Seconds())

	res := Result{Stdout: stdout.Bytes(), Stderr: stderr.String()}
	if err == nil {
		return res, nil
	}

	metrics.ProcessFailures.WithLabelValues(string(tool)).Inc()

	if ctx.Err() != nil {
		return res, ctx.Err()
	}
	// No ProcessState means the binary never started.
	if cmd.ProcessState == nil {
		return res, fmt.Errorf("%w: %s: %v", ErrToolchainUnavailable, bin, err)
	}
	return res, fmt.Errorf("%s error: %w - %s", tool, err, LastLine(res.Stderr))
}

// LastLine returns the last non-empty line of s, which is where ffmpeg and
// ffprobe put the actual failure reason.
func LastLine(s string) string {
	lines := strings.Split(strings.TrimSpace(s), "\n")
	for i := len(lines) - 1; i >= 0; i-- {
		if line := strings.TrimSpace(lines[i]); line != "" {
			return line
		}
	}
	return ""
}
