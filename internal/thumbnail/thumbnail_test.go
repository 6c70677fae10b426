package thumbnail

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/color"
	"image/png"
	"os"
	"os/exec"
	"path/filepath"
	"testing"

	"media-board/internal/artifacts"
	"media-board/internal/ffmpeg"
	"media-board/internal/ffmpeg/ffmpegtest"
	"media-board/internal/mediatypes"
)

func writePNG(t *testing.T, path string, w, h int) {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, color.RGBA{R: uint8(x), G: 80, B: uint8(y), A: 255})
		}
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, buf.Bytes(), 0o644); err != nil {
		t.Fatal(err)
	}
}

func widthOf(t *testing.T, path string) int {
	t.Helper()
	f, err := os.Open(path)
	if err != nil {
		t.Fatalf("open %s: %v", path, err)
	}
	defer f.Close()
	cfg, _, err := image.DecodeConfig(f)
	if err != nil {
		t.Fatalf("decode %s: %v", path, err)
	}
	return cfg.Width
}

func TestSizesMatchLayoutLabels(t *testing.T) {
	if len(Sizes) != len(artifacts.ThumbnailLabels) {
		t.Fatalf("%d sizes but %d labels", len(Sizes), len(artifacts.ThumbnailLabels))
	}
	for i, s := range Sizes {
		if s.Label != artifacts.ThumbnailLabels[i] {
			t.Errorf("Sizes[%d].Label = %s, want %s", i, s.Label, artifacts.ThumbnailLabels[i])
		}
	}
}

func TestGenerate_Image(t *testing.T) {
	tests := []struct {
		name  string
		srcW  int
		wantW map[string]int
	}{
		{"large source is bounded", 1600, map[string]int{"small": 400, "med": 800, "large": 1200}},
		{"small source is never upscaled", 600, map[string]int{"small": 400, "med": 600, "large": 600}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dir := t.TempDir()
			layout := artifacts.NewLayout(filepath.Join(dir, "data"))
			src := filepath.Join(dir, "src.png")
			writePNG(t, src, tt.srcW, tt.srcW/2)
			fake := &ffmpegtest.Fake{}

			set := New(fake, layout).Generate(context.Background(), "31", mediatypes.ClassImage, src)

			if !set.Complete() {
				t.Fatalf("Generate() incomplete: %v", set.Err())
			}
			for _, th := range set {
				want := layout.ThumbnailPath("31", th.Label)
				if th.Path != want {
					t.Errorf("%s path = %s, want %s", th.Label, th.Path, want)
				}
				if got := widthOf(t, th.Path); got != tt.wantW[th.Label] {
					t.Errorf("%s width = %d, want %d", th.Label, got, tt.wantW[th.Label])
				}
			}

			entries, err := os.ReadDir(layout.ThumbnailDir())
			if err != nil {
				t.Fatal(err)
			}
			if len(entries) != 3 {
				t.Errorf("expected exactly 3 thumbnail files, got %d", len(entries))
			}
			if n := len(fake.Calls()); n != 0 {
				t.Errorf("images need no frame extraction, got %d calls", n)
			}
		})
	}
}

func TestGenerate_VideoUsesExtractedFrame(t *testing.T) {
	dir := t.TempDir()
	layout := artifacts.NewLayout(filepath.Join(dir, "data"))
	fake := &ffmpegtest.Fake{Handler: func(_ context.Context, c ffmpegtest.Call) (ffmpeg.Result, error) {
		writePNG(t, c.OutputPath(), 1000, 500)
		return ffmpeg.Result{}, nil
	}}

	set := New(fake, layout).Generate(context.Background(), "8", mediatypes.ClassVideo, "/videos/8.mp4")
	if !set.Complete() {
		t.Fatalf("Generate() incomplete: %v", set.Err())
	}

	calls := fake.Calls()
	if len(calls) != 1 {
		t.Fatalf("expected one frame extraction, got %d", len(calls))
	}
	c := calls[0]
	if !c.HasArg("-i", "/videos/8.mp4") || !c.HasArg("-frames:v", "1") || !c.HasArg("-vf", ffmpeg.ColorspaceFilter) {
		t.Errorf("unexpected extraction args: %v", c.Args)
	}
	if _, err := os.Stat(c.OutputPath()); !os.IsNotExist(err) {
		t.Errorf("temporary frame %s should be removed, stat err = %v", c.OutputPath(), err)
	}
	if got := widthOf(t, layout.ThumbnailPath("8", "large")); got != 1000 {
		t.Errorf("large width = %d, want 1000 (source width)", got)
	}
}

func TestGenerate_ExtractionFailureIsSwallowed(t *testing.T) {
	dir := t.TempDir()
	layout := artifacts.NewLayout(filepath.Join(dir, "data"))
	var framePath string
	fake := &ffmpegtest.Fake{Handler: func(_ context.Context, c ffmpegtest.Call) (ffmpeg.Result, error) {
		framePath = c.OutputPath()
		return ffmpeg.Result{}, errors.New("exit status 1")
	}}

	set := New(fake, layout).Generate(context.Background(), "8", mediatypes.ClassAnimated, "/x.gif")

	if set.Complete() {
		t.Fatal("Generate() should report the failure")
	}
	if len(set) != 3 {
		t.Fatalf("expected 3 entries, got %d", len(set))
	}
	for _, th := range set {
		if th.Err == nil {
			t.Errorf("%s should carry the extraction error", th.Label)
		}
		if _, err := os.Stat(th.Path); !os.IsNotExist(err) {
			t.Errorf("%s should not exist", th.Path)
		}
	}
	if _, err := os.Stat(framePath); !os.IsNotExist(err) {
		t.Errorf("temporary frame should be removed on failure")
	}
}

func TestGenerate_CorruptImage(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "bad.png")
	if err := os.WriteFile(src, []byte("garbage"), 0o644); err != nil {
		t.Fatal(err)
	}

	set := New(&ffmpegtest.Fake{}, artifacts.NewLayout(dir)).Generate(context.Background(), "1", mediatypes.ClassImage, src)
	if set.Complete() || set.Err() == nil {
		t.Error("corrupt input should produce per-entry errors")
	}
}

func TestGenerate_RealVideo(t *testing.T) {
	if _, err := exec.LookPath("ffmpeg"); err != nil {
		t.Skip("ffmpeg not available")
	}

	dir := t.TempDir()
	runner := ffmpeg.NewExecRunner(ffmpeg.Paths{})
	src := filepath.Join(dir, "clip.mkv")
	args := append([]string{}, ffmpeg.QuietArgs...)
	args = append(args, "-y", "-f", "lavfi", "-i", "testsrc=duration=1:size=640x360:rate=10", "-c:v", "ffv1", src)
	if _, err := runner.Run(context.Background(), ffmpeg.FFmpeg, args...); err != nil {
		t.Skipf("could not create test clip: %v", err)
	}

	layout := artifacts.NewLayout(filepath.Join(dir, "data"))
	set := New(runner, layout).Generate(context.Background(), "2", mediatypes.ClassVideo, src)
	if !set.Complete() {
		t.Fatalf("Generate() incomplete: %v", set.Err())
	}
	if got := widthOf(t, layout.ThumbnailPath("2", "small")); got != 400 {
		t.Errorf("small width = %d, want 400", got)
	}
	if got := widthOf(t, layout.ThumbnailPath("2", "med")); got != 640 {
		t.Errorf("med width = %d, want 640", got)
	}
}
