package ffmpeg

import (
	"context"
	"errors"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"
)

func TestExecRunner_MissingBinary(t *testing.T) {
	r := NewExecRunner(Paths{FFmpeg: filepath.Join(t.TempDir(), "no-such-ffmpeg")})

	_, err := r.Run(context.Background(), FFmpeg, "-version")
	if !errors.Is(err, ErrToolchainUnavailable) {
		t.Fatalf("Run() error = %v, want ErrToolchainUnavailable", err)
	}
}

func TestExecRunner_MissingBinaryOnPath(t *testing.T) {
	t.Setenv("PATH", t.TempDir())
	r := NewExecRunner(Paths{})

	_, err := r.Run(context.Background(), Gifsicle, "--version")
	if !errors.Is(err, ErrToolchainUnavailable) {
		t.Fatalf("Run() error = %v, want ErrToolchainUnavailable", err)
	}
}

func TestExecRunner_FFmpegVersion(t *testing.T) {
	if _, err := exec.LookPath("ffmpeg"); err != nil {
		t.Skip("ffmpeg not available")
	}

	res, err := NewExecRunner(Paths{}).Run(context.Background(), FFmpeg, "-hide_banner", "-version")
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if !strings.Contains(string(res.Stdout), "ffmpeg version") {
		t.Errorf("unexpected output: %q", res.Stdout)
	}
}

func TestExecRunner_NonZeroExitIsNotToolchainError(t *testing.T) {
	if _, err := exec.LookPath("ffmpeg"); err != nil {
		t.Skip("ffmpeg not available")
	}

	_, err := NewExecRunner(Paths{}).Run(context.Background(), FFmpeg, "-hide_banner", "-i", "/definitely/not/here.mp4")
	if err == nil {
		t.Fatal("expected an error for a missing input")
	}
	if errors.Is(err, ErrToolchainUnavailable) {
		t.Errorf("a failed encode must not be reported as a missing toolchain: %v", err)
	}
}

func TestLastLine(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"", ""},
		{"one", "one"},
		{"first\nsecond\n", "second"},
		{"first\nsecond\n\n  \n", "second"},
	}
	for _, tt := range tests {
		if got := LastLine(tt.in); got != tt.want {
			t.Errorf("LastLine(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestPreviewFilter(t *testing.T) {
	got := PreviewFilter()
	if !strings.HasPrefix(got, ColorspaceFilter+",") {
		t.Errorf("PreviewFilter() = %q, should start with the colorspace filter", got)
	}
	if !strings.HasSuffix(got, "scale=1280:-2") {
		t.Errorf("PreviewFilter() = %q, should end with scale=1280:-2", got)
	}
}

func TestFrameExtractArgs(t *testing.T) {
	args := FrameExtractArgs("/in.mp4", "/out.png")
	joined := strings.Join(args, " ")
	for _, want := range []string{"-i /in.mp4", "-frames:v 1", "-vf " + ColorspaceFilter} {
		if !strings.Contains(joined, want) {
			t.Errorf("FrameExtractArgs() = %q, missing %q", joined, want)
		}
	}
	if args[len(args)-1] != "/out.png" {
		t.Errorf("output path should be last, got %q", args[len(args)-1])
	}
}

func TestRoundDown(t *testing.T) {
	tests := []struct {
		n, m, want int
	}{
		{1280, 4, 1280},
		{1283, 4, 1280},
		{721, 2, 720},
		{3, 4, 4},
		{0, 2, 2},
		{10, 0, 10},
	}
	for _, tt := range tests {
		if got := RoundDown(tt.n, tt.m); got != tt.want {
			t.Errorf("RoundDown(%d, %d) = %d, want %d", tt.n, tt.m, got, tt.want)
		}
	}
}
