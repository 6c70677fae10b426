package memory

import (
	"context"
	"errors"
	"math"
	"os"
	"path/filepath"
	"runtime/debug"
	"testing"
	"time"
)

func testMonitor(limit int64) *Monitor {
	return NewMonitor(Config{
		MemoryLimitBytes:  limit,
		HighWaterMark:     0.7,
		CriticalWaterMark: 0.85,
		CheckInterval:     10 * time.Millisecond,
	})
}

// =============================================================================
// Monitor
// =============================================================================

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	if cfg.MemoryLimitBytes != 0 {
		t.Errorf("MemoryLimitBytes = %d, want 0", cfg.MemoryLimitBytes)
	}
	if cfg.HighWaterMark >= cfg.CriticalWaterMark {
		t.Errorf("HighWaterMark %.2f should be below CriticalWaterMark %.2f", cfg.HighWaterMark, cfg.CriticalWaterMark)
	}
	if cfg.CheckInterval <= 0 {
		t.Errorf("CheckInterval = %v, want > 0", cfg.CheckInterval)
	}
}

func TestMonitor_ObserveTransitions(t *testing.T) {
	m := testMonitor(1000)

	steps := []struct {
		alloc      uint64
		wantPaused bool
	}{
		{500, false},
		{849, false},
		{850, true},
		{950, true},
		{750, true}, // between the marks keeps the current state
		{699, false},
		{800, false},
	}

	for _, s := range steps {
		m.observe(s.alloc)
		if got := m.IsPaused(); got != s.wantPaused {
			t.Errorf("after alloc=%d IsPaused() = %v, want %v", s.alloc, got, s.wantPaused)
		}
	}
}

func TestMonitor_NoLimitNeverPauses(t *testing.T) {
	m := &Monitor{config: DefaultConfig(), stopChan: make(chan struct{}), pauseChan: make(chan struct{})}

	m.observe(math.MaxUint32)
	if m.IsPaused() {
		t.Error("monitor without a limit should never pause")
	}
	if err := m.Wait(context.Background()); err != nil {
		t.Errorf("Wait() error = %v", err)
	}
}

func TestMonitor_WaitReleasedOnRecovery(t *testing.T) {
	m := testMonitor(1000)
	m.observe(900)

	done := make(chan error, 1)
	go func() { done <- m.Wait(context.Background()) }()

	select {
	case err := <-done:
		t.Fatalf("Wait() returned early with %v", err)
	case <-time.After(20 * time.Millisecond):
	}

	m.observe(100)

	select {
	case err := <-done:
		if err != nil {
			t.Errorf("Wait() error = %v, want nil", err)
		}
	case <-time.After(time.Second):
		t.Fatal("Wait() not released after recovery")
	}
}

func TestMonitor_WaitContextCancelled(t *testing.T) {
	m := testMonitor(1000)
	m.observe(900)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if err := m.Wait(ctx); !errors.Is(err, context.Canceled) {
		t.Errorf("Wait() error = %v, want context.Canceled", err)
	}
}

func TestMonitor_WaitStopped(t *testing.T) {
	m := testMonitor(1000)
	m.observe(900)
	m.Stop()
	m.Stop() // idempotent

	if err := m.Wait(context.Background()); !errors.Is(err, ErrStopped) {
		t.Errorf("Wait() error = %v, want ErrStopped", err)
	}
}

func TestMonitor_GetStats(t *testing.T) {
	m := testMonitor(2000)
	m.observe(500)

	current, limit, usage := m.GetStats()
	if current != 500 || limit != 2000 {
		t.Errorf("GetStats() = %d/%d, want 500/2000", current, limit)
	}
	if usage != 0.25 {
		t.Errorf("usage = %v, want 0.25", usage)
	}
}

func TestMonitor_StartStop(_ *testing.T) {
	m := testMonitor(1 << 40)
	m.Start()
	time.Sleep(30 * time.Millisecond)
	m.Stop()
}

// =============================================================================
// GOMEMLIMIT configuration
// =============================================================================

func restoreMemoryLimit(t *testing.T) {
	t.Helper()
	prev := debug.SetMemoryLimit(-1)
	t.Cleanup(func() { debug.SetMemoryLimit(prev) })
}

// useCgroup points the cgroup lookup at a temp file holding content, or at
// a missing file when content is empty.
func useCgroup(t *testing.T, content string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "memory.max")
	if content != "" {
		if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
			t.Fatal(err)
		}
	}
	prev := cgroupLimitFiles
	cgroupLimitFiles = []string{path}
	t.Cleanup(func() { cgroupLimitFiles = prev })
}

func TestConfigureFromEnv(t *testing.T) {
	tests := []struct {
		name       string
		limit      string
		ratio      string
		cgroup     string
		wantSource string
		wantLimit  int64
		wantRatio  float64
	}{
		{name: "not set", wantSource: SourceNone},
		{name: "invalid limit", limit: "lots", cgroup: "2000000\n", wantSource: SourceNone},
		{name: "negative limit", limit: "-5", wantSource: SourceNone},
		{name: "default ratio", limit: "1000000", wantSource: SourceMemoryLimit, wantLimit: 750000, wantRatio: DefaultMemoryRatio},
		{name: "custom ratio", limit: "1000000", ratio: "0.5", wantSource: SourceMemoryLimit, wantLimit: 500000, wantRatio: 0.5},
		{name: "ratio out of range", limit: "1000000", ratio: "1.5", wantSource: SourceMemoryLimit, wantLimit: 750000, wantRatio: DefaultMemoryRatio},
		{name: "ratio not a number", limit: "1000000", ratio: "most", wantSource: SourceMemoryLimit, wantLimit: 750000, wantRatio: DefaultMemoryRatio},
		{name: "env wins over cgroup", limit: "1000000", cgroup: "4000000\n", wantSource: SourceMemoryLimit, wantLimit: 750000, wantRatio: DefaultMemoryRatio},
		{name: "cgroup v2 limit", cgroup: "2000000\n", wantSource: SourceCgroup, wantLimit: 1500000, wantRatio: DefaultMemoryRatio},
		{name: "cgroup v2 unlimited", cgroup: "max\n", wantSource: SourceNone},
		{name: "cgroup v1 unlimited", cgroup: "9223372036854771712\n", wantSource: SourceNone},
		{name: "cgroup garbage", cgroup: "what\n", wantSource: SourceNone},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			restoreMemoryLimit(t)
			useCgroup(t, tt.cgroup)
			t.Setenv("GOMEMLIMIT", "")
			t.Setenv("MEMORY_LIMIT", tt.limit)
			t.Setenv("MEMORY_RATIO", tt.ratio)

			result := ConfigureFromEnv()

			if result.Source != tt.wantSource {
				t.Errorf("Source = %q, want %q", result.Source, tt.wantSource)
			}
			if result.GoMemLimit != tt.wantLimit {
				t.Errorf("GoMemLimit = %d, want %d", result.GoMemLimit, tt.wantLimit)
			}
			if result.Ratio != tt.wantRatio {
				t.Errorf("Ratio = %v, want %v", result.Ratio, tt.wantRatio)
			}
			if result.Configured != (tt.wantLimit > 0) {
				t.Errorf("Configured = %v", result.Configured)
			}
		})
	}
}

func TestConfigResultMonitorConfig(t *testing.T) {
	cfg := ConfigResult{GoMemLimit: 1 << 30}.MonitorConfig()
	def := DefaultConfig()

	if cfg.MemoryLimitBytes != 1<<30 {
		t.Errorf("MemoryLimitBytes = %d, want the heap limit", cfg.MemoryLimitBytes)
	}
	if cfg.HighWaterMark != def.HighWaterMark || cfg.CriticalWaterMark != def.CriticalWaterMark || cfg.CheckInterval != def.CheckInterval {
		t.Errorf("water marks changed: %+v", cfg)
	}
	if got := (ConfigResult{Source: SourceNone}).MonitorConfig(); got.MemoryLimitBytes != 0 {
		t.Errorf("no limit should leave the monitor to GOMEMLIMIT, got %d", got.MemoryLimitBytes)
	}
}

func TestFormatBytes(t *testing.T) {
	tests := []struct {
		bytes int64
		want  string
	}{
		{0, "0 B"},
		{1023, "1023 B"},
		{1024, "1.0 KiB"},
		{1536, "1.5 KiB"},
		{512 << 20, "512.0 MiB"},
		{3 << 30, "3.0 GiB"},
	}

	for _, tt := range tests {
		if got := formatBytes(tt.bytes); got != tt.want {
			t.Errorf("formatBytes(%d) = %q, want %q", tt.bytes, got, tt.want)
		}
	}
}
