package pipeline

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"media-board/internal/artifacts"
	"media-board/internal/encoder"
	"media-board/internal/ffmpeg"
	"media-board/internal/ffmpeg/ffmpegtest"
	"media-board/internal/mediatypes"
	"media-board/internal/preview"
	"media-board/internal/probe"
	"media-board/internal/thumbnail"
)

// =============================================================================
// Harness
// =============================================================================

func pngBytes(t *testing.T, w, h int) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, color.RGBA{R: uint8(x), G: uint8(y), B: 77, A: 255})
		}
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatal(err)
	}
	return buf.Bytes()
}

// toolchain fakes ffmpeg, ffprobe and gifsicle for a host with only libx264.
type toolchain struct {
	t           *testing.T
	encodeSize  int
	missing     bool
	dims        string
	audio       string
	duration    string
	frameWidth  int
	frameHeight int
}

func (tc *toolchain) handle(_ context.Context, c ffmpegtest.Call) (ffmpeg.Result, error) {
	if tc.missing {
		return ffmpeg.Result{}, fmt.Errorf("%w: %s: not found", ffmpeg.ErrToolchainUnavailable, c.Tool)
	}
	joined := c.Joined()
	switch {
	case c.Tool == ffmpeg.FFprobe && strings.Contains(joined, "stream=width,height"):
		return ffmpeg.Result{Stdout: []byte(tc.dims)}, nil
	case c.Tool == ffmpeg.FFprobe && strings.Contains(joined, "stream=index"):
		return ffmpeg.Result{Stdout: []byte(tc.audio)}, nil
	case c.Tool == ffmpeg.FFprobe && strings.Contains(joined, "format=duration"):
		return ffmpeg.Result{Stdout: []byte(tc.duration)}, nil
	case c.HasArg("-hide_banner", "-encoders"):
		return ffmpeg.Result{Stdout: []byte(" ------\n V....D libx264  H.264\n")}, nil
	case c.HasArg("-hide_banner", "-hwaccels"):
		return ffmpeg.Result{Stdout: []byte("Hardware acceleration methods:\n")}, nil
	case strings.Contains(joined, "testsrc="):
		return ffmpeg.Result{}, nil
	case c.HasArg("-frames:v", "1"):
		return ffmpeg.Result{}, os.WriteFile(c.OutputPath(), pngBytes(tc.t, tc.frameWidth, tc.frameHeight), 0o644)
	}
	return ffmpeg.Result{}, os.WriteFile(c.OutputPath(), bytes.Repeat([]byte{9}, tc.encodeSize), 0o644)
}

type harness struct {
	orch   *Orchestrator
	fake   *ffmpegtest.Fake
	tc     *toolchain
	layout artifacts.Layout
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	tc := &toolchain{
		t:           t,
		dims:        "1920,1080\n",
		audio:       "1\n",
		duration:    "3.500000\n",
		frameWidth:  640,
		frameHeight: 360,
	}
	fake := &ffmpegtest.Fake{Handler: tc.handle}
	layout := artifacts.NewLayout(filepath.Join(t.TempDir(), "data"))
	prober := probe.New(fake)
	reg := encoder.NewRegistry(fake, "")

	orch := New(
		artifacts.NewManager(layout),
		preview.New(fake, reg, prober, layout, preview.DefaultOptions()),
		thumbnail.New(fake, layout),
		prober,
	)
	return &harness{orch: orch, fake: fake, tc: tc, layout: layout}
}

func exists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

// filesMentioning lists every regular file under root whose name contains s.
func filesMentioning(t *testing.T, root, s string) []string {
	t.Helper()
	var out []string
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if os.IsNotExist(err) {
				return nil
			}
			return err
		}
		if !d.IsDir() && strings.Contains(d.Name(), s) {
			out = append(out, path)
		}
		return nil
	})
	if err != nil {
		t.Fatal(err)
	}
	return out
}

// =============================================================================
// Validation
// =============================================================================

func TestUpload_InvalidInput(t *testing.T) {
	tests := []struct {
		name string
		id   string
		buf  []byte
		ext  string
	}{
		{"unsupported extension", "1", []byte("x"), "txt"},
		{"no extension", "1", []byte("x"), ""},
		{"empty buffer", "1", nil, "png"},
		{"empty id", "", []byte("x"), "png"},
		{"path traversal", "../1", []byte("x"), "png"},
		{"dot dot", "..", []byte("x"), "png"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(t)

			res, err := h.orch.Upload(context.Background(), tt.id, tt.buf, tt.ext)
			if !errors.Is(err, ErrInvalidInput) {
				t.Fatalf("Upload() error = %v, want ErrInvalidInput", err)
			}
			if res != nil {
				t.Errorf("Upload() result = %+v, want nil", res)
			}
			if _, err := os.Stat(h.layout.Root); !os.IsNotExist(err) {
				t.Error("no file I/O should happen for invalid input")
			}
			if n := len(h.fake.Calls()); n != 0 {
				t.Errorf("no tools should run for invalid input, got %d calls", n)
			}
		})
	}
}

func TestReplace_InvalidInputKeepsArtifacts(t *testing.T) {
	h := newHarness(t)
	if _, err := h.orch.Upload(context.Background(), "42", pngBytes(t, 50, 50), "png"); err != nil {
		t.Fatal(err)
	}

	if _, err := h.orch.Replace(context.Background(), "42", []byte("x"), "exe"); !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("Replace() error = %v, want ErrInvalidInput", err)
	}
	if !exists(h.layout.OriginalPath(mediatypes.ClassImage, "42", "png")) {
		t.Error("an invalid replace must not purge the existing item")
	}
}

type blockingGate struct{ err error }

func (g blockingGate) Wait(context.Context) error { return g.err }

func TestUpload_BackpressureStopsBeforeAnyIO(t *testing.T) {
	h := newHarness(t)
	if _, err := h.orch.Upload(context.Background(), "42", pngBytes(t, 50, 50), "png"); err != nil {
		t.Fatal(err)
	}
	before := len(h.fake.Calls())

	stopped := errors.New("monitor stopped")
	h.orch.SetBackpressure(blockingGate{err: stopped})

	if _, err := h.orch.Replace(context.Background(), "42", pngBytes(t, 60, 60), "png"); !errors.Is(err, stopped) {
		t.Fatalf("Replace() error = %v, want the gate error", err)
	}
	if !exists(h.layout.OriginalPath(mediatypes.ClassImage, "42", "png")) {
		t.Error("a held-back replace must not purge the existing item")
	}
	if n := len(h.fake.Calls()); n != before {
		t.Errorf("no tools should run while held back, got %d new calls", n-before)
	}

	h.orch.SetBackpressure(blockingGate{})
	if _, err := h.orch.Upload(context.Background(), "43", pngBytes(t, 50, 50), "png"); err != nil {
		t.Errorf("Upload() with an open gate error = %v", err)
	}
}

// =============================================================================
// End-to-end scenarios
// =============================================================================

func TestUpload_SmallImage(t *testing.T) {
	h := newHarness(t)
	buf := pngBytes(t, 500, 500)

	res, err := h.orch.Upload(context.Background(), "1", buf, ".PNG")
	if err != nil {
		t.Fatalf("Upload() error = %v", err)
	}

	if res.Class != mediatypes.ClassImage || res.OriginalExt != "png" {
		t.Errorf("class/ext = %s/%s, want image/png", res.Class, res.OriginalExt)
	}
	if res.PreviewScale == nil || *res.PreviewScale != 100 {
		t.Errorf("PreviewScale = %v, want 100 (500px is below the bound)", res.PreviewScale)
	}
	if res.PreviewExt != "webp" {
		t.Errorf("PreviewExt = %q, want webp", res.PreviewExt)
	}
	if res.AspectRatio != 1 {
		t.Errorf("AspectRatio = %v, want 1", res.AspectRatio)
	}
	if res.Duration != nil || res.HasAudio != nil {
		t.Error("images carry no duration or audio fields")
	}

	original := h.layout.OriginalPath(mediatypes.ClassImage, "1", "png")
	info, err := os.Stat(original)
	if err != nil {
		t.Fatalf("original not stored: %v", err)
	}
	if info.Size() != res.FileSize {
		t.Errorf("FileSize = %d, stored file is %d bytes", res.FileSize, info.Size())
	}

	previewInfo, err := os.Stat(h.layout.PreviewPath(mediatypes.ClassImage, "1", "webp"))
	if err != nil {
		t.Fatalf("preview not stored: %v", err)
	}
	if previewInfo.Size() != res.PreviewFileSize {
		t.Errorf("PreviewFileSize = %d, preview is %d bytes", res.PreviewFileSize, previewInfo.Size())
	}

	if !res.ThumbnailsReady {
		t.Errorf("thumbnails not ready: %v", res.Thumbnails.Err())
	}
	for _, label := range artifacts.ThumbnailLabels {
		if !exists(h.layout.ThumbnailPath("1", label)) {
			t.Errorf("thumbnail %s missing", label)
		}
	}
}

func TestUpload_LargeImageScale(t *testing.T) {
	h := newHarness(t)

	res, err := h.orch.Upload(context.Background(), "2", pngBytes(t, 2000, 500), "png")
	if err != nil {
		t.Fatalf("Upload() error = %v", err)
	}
	if res.PreviewScale == nil || *res.PreviewScale != 64 {
		t.Errorf("PreviewScale = %v, want round(1280/2000*100) = 64", res.PreviewScale)
	}
	if res.AspectRatio != 4 {
		t.Errorf("AspectRatio = %v, want 4", res.AspectRatio)
	}
}

func TestUpload_VideoPreviewLargerThanSource(t *testing.T) {
	h := newHarness(t)
	h.tc.encodeSize = 4096
	src := bytes.Repeat([]byte{1}, 1024)

	res, err := h.orch.Upload(context.Background(), "3", src, "webm")
	if err != nil {
		t.Fatalf("Upload() error = %v", err)
	}

	if res.PreviewScale == nil || *res.PreviewScale != 100 {
		t.Errorf("PreviewScale = %v, want 100", res.PreviewScale)
	}
	if res.PreviewExt != "mp4" {
		t.Errorf("PreviewExt = %q, want the container that would have been used (mp4)", res.PreviewExt)
	}
	if exists(h.layout.PreviewPath(mediatypes.ClassVideo, "3", "mp4")) {
		t.Error("oversized preview should be deleted")
	}
	if res.PreviewFileSize != res.FileSize || res.FileSize != 1024 {
		t.Errorf("PreviewFileSize = %d, FileSize = %d; want both 1024", res.PreviewFileSize, res.FileSize)
	}
	if res.AspectRatio != 1.777778 {
		t.Errorf("AspectRatio = %v, want 1.777778", res.AspectRatio)
	}
	if res.HasAudio == nil || !*res.HasAudio {
		t.Errorf("HasAudio = %v, want true", res.HasAudio)
	}
	if res.Duration == nil || *res.Duration != 3.5 {
		t.Errorf("Duration = %v, want 3.5", res.Duration)
	}
	if !res.ThumbnailsReady {
		t.Errorf("thumbnails not ready: %v", res.Thumbnails.Err())
	}
}

func TestUpload_VideoProbeFailuresAreNotFatal(t *testing.T) {
	h := newHarness(t)
	h.tc.encodeSize = 10
	h.tc.dims = "0,0\n"
	h.tc.audio = ""
	h.tc.duration = "N/A\n"

	res, err := h.orch.Upload(context.Background(), "4", bytes.Repeat([]byte{1}, 100), "mp4")
	if err != nil {
		t.Fatalf("Upload() error = %v", err)
	}
	if res.AspectRatio != 0 {
		t.Errorf("AspectRatio = %v, want 0 when dimensions are unavailable", res.AspectRatio)
	}
	if res.Duration != nil {
		t.Errorf("Duration = %v, want nil", *res.Duration)
	}
	if res.HasAudio == nil || *res.HasAudio {
		t.Errorf("HasAudio = %v, want false", res.HasAudio)
	}
	if res.PreviewScale == nil || *res.PreviewScale != 10 || res.PreviewFileSize != 10 {
		t.Errorf("preview = %v / %d, want 10%% and 10 bytes", res.PreviewScale, res.PreviewFileSize)
	}
}

func TestUpload_AnimatedNoBenefit(t *testing.T) {
	h := newHarness(t)
	h.tc.encodeSize = 500
	h.tc.dims = "400,300\n"

	res, err := h.orch.Upload(context.Background(), "5", bytes.Repeat([]byte{1}, 200), "gif")
	if err != nil {
		t.Fatalf("Upload() error = %v", err)
	}
	if res.PreviewScale != nil {
		t.Errorf("PreviewScale = %d, want nil", *res.PreviewScale)
	}
	if res.PreviewExt != "gif" {
		t.Errorf("PreviewExt = %q, want gif", res.PreviewExt)
	}
	if res.PreviewFileSize != 200 {
		t.Errorf("PreviewFileSize = %d, want the original size", res.PreviewFileSize)
	}
	if res.AspectRatio != 1.333333 {
		t.Errorf("AspectRatio = %v, want 1.333333", res.AspectRatio)
	}
}

func TestUpload_ExistingIDIsRefused(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	h.tc.encodeSize = 50
	h.tc.dims = "320,240\n"

	if _, err := h.orch.Upload(ctx, "42", bytes.Repeat([]byte{1}, 100), "gif"); err != nil {
		t.Fatalf("first Upload() error = %v", err)
	}
	gif := []string{
		h.layout.OriginalPath(mediatypes.ClassAnimated, "42", "gif"),
		h.layout.PreviewPath(mediatypes.ClassAnimated, "42", "gif"),
	}

	_, err := h.orch.Upload(ctx, "42", pngBytes(t, 50, 50), "png")
	if !errors.Is(err, ErrExists) {
		t.Fatalf("second Upload() error = %v, want ErrExists", err)
	}
	for _, p := range gif {
		if !exists(p) {
			t.Errorf("%s removed by a refused upload", p)
		}
	}
	if exists(h.layout.OriginalPath(mediatypes.ClassImage, "42", "png")) {
		t.Error("refused upload wrote an original")
	}

	// Ids that only share a prefix are different items.
	for _, id := range []string{"42.5", "420"} {
		if _, err := h.orch.Upload(ctx, id, pngBytes(t, 50, 50), "png"); err != nil {
			t.Errorf("Upload(%s) error = %v", id, err)
		}
	}

	if _, err := h.orch.Replace(ctx, "42", pngBytes(t, 50, 50), "png"); err != nil {
		t.Fatalf("Replace() error = %v", err)
	}
	for _, p := range gif {
		if exists(p) {
			t.Errorf("%s left behind after replace", p)
		}
	}
	if !exists(h.layout.OriginalPath(mediatypes.ClassImage, "42.5", "png")) {
		t.Error("replace of 42 removed the original of 42.5")
	}
}

func TestUpload_MissingToolchainFails(t *testing.T) {
	h := newHarness(t)
	h.tc.missing = true

	_, err := h.orch.Upload(context.Background(), "6", bytes.Repeat([]byte{1}, 100), "mp4")
	if !errors.Is(err, ffmpeg.ErrToolchainUnavailable) {
		t.Fatalf("Upload() error = %v, want ErrToolchainUnavailable", err)
	}
	if exists(h.layout.OriginalPath(mediatypes.ClassVideo, "6", "mp4")) {
		t.Error("the original should be removed when the upload fails")
	}
}

func TestReplace_DifferentClassLeavesNoOldArtifacts(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	// Prior state: image, video and thumbnail artifacts under id 42.
	for _, p := range []string{
		h.layout.OriginalPath(mediatypes.ClassImage, "42", "png"),
		h.layout.PreviewPath(mediatypes.ClassImage, "42", "webp"),
		h.layout.OriginalPath(mediatypes.ClassVideo, "42", "mp4"),
		h.layout.PreviewPath(mediatypes.ClassVideo, "42", "mp4"),
		h.layout.ThumbnailPath("42", "small"),
		h.layout.ThumbnailPath("42", "med"),
		h.layout.ThumbnailPath("42", "large"),
	} {
		if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(p, []byte("old"), 0o644); err != nil {
			t.Fatal(err)
		}
	}
	neighbour := h.layout.OriginalPath(mediatypes.ClassImage, "420", "png")
	if err := os.WriteFile(neighbour, []byte("other item"), 0o644); err != nil {
		t.Fatal(err)
	}

	h.tc.encodeSize = 50
	h.tc.dims = "320,240\n"
	res, err := h.orch.Replace(ctx, "42", bytes.Repeat([]byte{1}, 100), "gif")
	if err != nil {
		t.Fatalf("Replace() error = %v", err)
	}
	if res.Class != mediatypes.ClassAnimated {
		t.Errorf("Class = %s, want animated", res.Class)
	}

	for _, dir := range []string{
		h.layout.UploadDir(mediatypes.ClassImage),
		h.layout.UploadDir(mediatypes.ClassVideo),
		h.layout.PreviewDir(mediatypes.ClassImage),
		h.layout.PreviewDir(mediatypes.ClassVideo),
	} {
		for _, f := range filesMentioning(t, dir, "42.") {
			t.Errorf("stale artifact from the previous class remains: %s", f)
		}
	}
	if !exists(h.layout.OriginalPath(mediatypes.ClassAnimated, "42", "gif")) {
		t.Error("new original missing")
	}
	if !exists(neighbour) {
		t.Error("replace of 42 must not touch 420")
	}
	for _, label := range artifacts.ThumbnailLabels {
		data, err := os.ReadFile(h.layout.ThumbnailPath("42", label))
		if err != nil {
			t.Errorf("thumbnail %s missing after replace: %v", label, err)
			continue
		}
		if string(data) == "old" {
			t.Errorf("thumbnail %s was not regenerated", label)
		}
	}
}

func TestDelete(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	if _, err := h.orch.Upload(ctx, "77", pngBytes(t, 64, 64), "png"); err != nil {
		t.Fatal(err)
	}

	report, err := h.orch.Delete("77")
	if err != nil {
		t.Fatalf("Delete() error = %v", err)
	}
	if len(report.Failed()) != 0 {
		t.Errorf("Delete() failures: %v", report.Failed())
	}
	if remaining := filesMentioning(t, h.layout.Root, "77"); len(remaining) != 0 {
		t.Errorf("files remain after delete: %v", remaining)
	}

	if _, err := h.orch.Delete(""); !errors.Is(err, ErrInvalidInput) {
		t.Errorf("Delete(\"\") error = %v, want ErrInvalidInput", err)
	}
}

// =============================================================================
// Aspect ratio
// =============================================================================

func TestRatio(t *testing.T) {
	tests := []struct {
		w, h    int
		want    float64
		wantErr bool
	}{
		{1920, 1080, 1.777778, false},
		{1080, 1920, 0.5625, false},
		{1, 3, 0.333333, false},
		{500, 500, 1, false},
		{0, 100, 0, true},
		{100, 0, 0, true},
	}
	for _, tt := range tests {
		got, err := Ratio(tt.w, tt.h)
		if tt.wantErr {
			if !errors.Is(err, probe.ErrDimensionUnavailable) {
				t.Errorf("Ratio(%d, %d) error = %v, want ErrDimensionUnavailable", tt.w, tt.h, err)
			}
			continue
		}
		if err != nil || got != tt.want {
			t.Errorf("Ratio(%d, %d) = %v, %v; want %v", tt.w, tt.h, got, err, tt.want)
		}
	}
}

func TestResultRecord(t *testing.T) {
	scale, dur, audio := 64, 3.5, true
	res := &Result{
		ContentID:       "7",
		Class:           mediatypes.ClassVideo,
		OriginalExt:     "mp4",
		PreviewExt:      "mp4",
		PreviewScale:    &scale,
		AspectRatio:     1.777778,
		FileSize:        1000,
		PreviewFileSize: 400,
		Duration:        &dur,
		HasAudio:        &audio,
		ThumbnailsReady: true,
	}

	rec := res.Record()
	if rec.ContentID != "7" || rec.Class != "video" || rec.OriginalExt != "mp4" || rec.PreviewExt != "mp4" {
		t.Errorf("identity fields not copied: %+v", rec)
	}
	if *rec.PreviewScale != 64 || *rec.Duration != 3.5 || !*rec.HasAudio {
		t.Errorf("optional fields not copied: %+v", rec)
	}
	if rec.FileSize != 1000 || rec.PreviewFileSize != 400 || !rec.ThumbnailsReady {
		t.Errorf("sizes not copied: %+v", rec)
	}
	if !rec.CreatedAt.IsZero() {
		t.Error("timestamps are assigned by the store")
	}
}
