package filesystem

import (
	"errors"
	"os"
	"path/filepath"
	"sync"
	"syscall"
	"testing"
	"time"
)

func TestDefaultRetryConfig(t *testing.T) {
	config := DefaultRetryConfig()

	if config.MaxRetries != 3 {
		t.Errorf("MaxRetries = %d, want 3", config.MaxRetries)
	}
	if config.InitialBackoff != 50*time.Millisecond {
		t.Errorf("InitialBackoff = %v, want 50ms", config.InitialBackoff)
	}
	if config.MaxBackoff != 500*time.Millisecond {
		t.Errorf("MaxBackoff = %v, want 500ms", config.MaxBackoff)
	}
	if config.VolumeResolver != nil {
		t.Error("VolumeResolver should be nil by default")
	}
}

func TestIsNFSStaleError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"nil error", nil, false},
		{"ESTALE error", syscall.ESTALE, true},
		{"wrapped ESTALE", &os.PathError{Op: "remove", Path: "/x", Err: syscall.ESTALE}, true},
		{"ENOENT error", syscall.ENOENT, false},
		{"generic error", os.ErrNotExist, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := isNFSStaleError(tt.err); got != tt.want {
				t.Errorf("isNFSStaleError() = %v, want %v", got, tt.want)
			}
		})
	}
}

// =============================================================================
// VolumeResolver Tests
// =============================================================================

func TestVolumeResolver_Resolve(t *testing.T) {
	vr := NewVolumeResolver(map[string]string{
		"data":     "/srv/data",
		"database": "/srv/database",
	})

	tests := []struct {
		path string
		want string
	}{
		{"/srv/data/uploads/image/1.png", "data"},
		{"/srv/data", "data"},
		{"/srv/database/media.db", "database"},
		{"/srv/database-old/media.db", "unknown"},
		{"/tmp/other", "unknown"},
	}

	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			if got := vr.Resolve(tt.path); got != tt.want {
				t.Errorf("Resolve(%q) = %q, want %q", tt.path, got, tt.want)
			}
		})
	}
}

func TestVolumeResolver_LongestPrefixWins(t *testing.T) {
	vr := NewVolumeResolver(map[string]string{
		"data":       "/srv/data",
		"thumbnails": "/srv/data/thumbnails",
	})

	if got := vr.Resolve("/srv/data/thumbnails/1_small.webp"); got != "thumbnails" {
		t.Errorf("Resolve() = %q, want thumbnails", got)
	}
	if got := vr.Resolve("/srv/data/previews/image/1.webp"); got != "data" {
		t.Errorf("Resolve() = %q, want data", got)
	}
}

func TestVolumeResolver_NilResolver(t *testing.T) {
	var vr *VolumeResolver
	if got := vr.Resolve("/anything"); got != "unknown" {
		t.Errorf("nil resolver Resolve() = %q, want unknown", got)
	}
}

// =============================================================================
// Retry helper Tests
// =============================================================================

type countingObserver struct {
	mu         sync.Mutex
	operations map[string]int
	stale      int
	attempts   int
	successes  int
	failures   int
}

func newCountingObserver() *countingObserver {
	return &countingObserver{operations: make(map[string]int)}
}

func (o *countingObserver) ObserveOperation(volume, operation string, _ float64, _ error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.operations[volume+"/"+operation]++
}
func (o *countingObserver) ObserveRetryAttempt(string, string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.attempts++
}

func (o *countingObserver) ObserveRetrySuccess(string, string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.successes++
}

func (o *countingObserver) ObserveRetryFailure(string, string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.failures++
}

func (o *countingObserver) ObserveRetryDuration(string, string, float64) {}

func (o *countingObserver) ObserveStaleError(string, string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.stale++
}

func fastConfig() RetryConfig {
	return RetryConfig{MaxRetries: 3, InitialBackoff: time.Millisecond, MaxBackoff: 2 * time.Millisecond}
}

func TestWithRetry_RecoversFromStaleHandle(t *testing.T) {
	obs := newCountingObserver()
	SetObserver(obs)
	defer SetObserver(nil)

	calls := 0
	err := withRetry("readdir", "/srv/data", fastConfig(), func() error {
		calls++
		if calls < 3 {
			return syscall.ESTALE
		}
		return nil
	})

	if err != nil {
		t.Fatalf("withRetry() error = %v", err)
	}
	if calls != 3 {
		t.Errorf("fn called %d times, want 3", calls)
	}
	if obs.stale != 2 || obs.attempts != 2 || obs.successes != 1 {
		t.Errorf("observer stale=%d attempts=%d successes=%d, want 2/2/1", obs.stale, obs.attempts, obs.successes)
	}
}

func TestWithRetry_GivesUpAfterBudget(t *testing.T) {
	obs := newCountingObserver()
	SetObserver(obs)
	defer SetObserver(nil)

	calls := 0
	err := withRetry("remove", "/srv/data/x", fastConfig(), func() error {
		calls++
		return syscall.ESTALE
	})

	if !errors.Is(err, syscall.ESTALE) {
		t.Fatalf("withRetry() error = %v, want ESTALE", err)
	}
	if calls != 4 {
		t.Errorf("fn called %d times, want 4 (1 + 3 retries)", calls)
	}
	if obs.failures != 1 {
		t.Errorf("failures = %d, want 1", obs.failures)
	}
}

func TestWithRetry_DoesNotRetryOtherErrors(t *testing.T) {
	calls := 0
	err := withRetry("stat", "/srv/data/x", fastConfig(), func() error {
		calls++
		return os.ErrPermission
	})

	if !errors.Is(err, os.ErrPermission) {
		t.Fatalf("withRetry() error = %v, want ErrPermission", err)
	}
	if calls != 1 {
		t.Errorf("fn called %d times, want 1", calls)
	}
}

func TestStatWithRetry(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "a.txt")
	if err := os.WriteFile(path, []byte("hello"), 0o644); err != nil {
		t.Fatal(err)
	}

	info, err := StatWithRetry(path, DefaultRetryConfig())
	if err != nil {
		t.Fatalf("StatWithRetry() error = %v", err)
	}
	if info.Size() != 5 {
		t.Errorf("Size() = %d, want 5", info.Size())
	}

	if _, err := StatWithRetry(filepath.Join(dir, "missing"), DefaultRetryConfig()); !os.IsNotExist(err) {
		t.Errorf("StatWithRetry(missing) error = %v, want not-exist", err)
	}
}

func TestReadDirWithRetry(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"1.png", "2.png"} {
		if err := os.WriteFile(filepath.Join(dir, name), nil, 0o644); err != nil {
			t.Fatal(err)
		}
	}

	entries, err := ReadDirWithRetry(dir, DefaultRetryConfig())
	if err != nil {
		t.Fatalf("ReadDirWithRetry() error = %v", err)
	}
	if len(entries) != 2 {
		t.Errorf("got %d entries, want 2", len(entries))
	}

	if _, err := ReadDirWithRetry(filepath.Join(dir, "nope"), DefaultRetryConfig()); !os.IsNotExist(err) {
		t.Errorf("ReadDirWithRetry(missing) error = %v, want not-exist", err)
	}
}

func TestRemoveWithRetry(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "12.png")
	if err := os.WriteFile(path, nil, 0o644); err != nil {
		t.Fatal(err)
	}

	if err := RemoveWithRetry(path, DefaultRetryConfig()); err != nil {
		t.Fatalf("RemoveWithRetry() error = %v", err)
	}
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Errorf("file still exists after removal")
	}

	if err := RemoveWithRetry(path, DefaultRetryConfig()); !errors.Is(err, os.ErrNotExist) {
		t.Errorf("second RemoveWithRetry() error = %v, want ErrNotExist", err)
	}
}

func TestWriteFileWithRetry(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "uploads", "image", "7.png")

	if err := WriteFileWithRetry(path, []byte("data"), 0o644, DefaultRetryConfig()); err != nil {
		t.Fatalf("WriteFileWithRetry() error = %v", err)
	}

	got, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile() error = %v", err)
	}
	if string(got) != "data" {
		t.Errorf("content = %q, want data", got)
	}

	entries, err := os.ReadDir(filepath.Dir(path))
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 1 {
		t.Errorf("temporary files left behind: %v", entries)
	}
}
