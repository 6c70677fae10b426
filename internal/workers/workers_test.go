package workers

import (
	"runtime"
	"testing"
)

func TestCount(t *testing.T) {
	t.Setenv(OverrideEnv, "")

	available := runtime.GOMAXPROCS(0)

	tests := []struct {
		name       string
		multiplier float64
		limit      int
		want       int
	}{
		{name: "one per CPU", multiplier: 1.0, limit: 0, want: available},
		{name: "two per CPU", multiplier: 2.0, limit: 0, want: available * 2},
		{name: "capped by limit", multiplier: 2.0, limit: 1, want: 1},
		{name: "never below one", multiplier: 0.0001, limit: 0, want: 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Count(tt.multiplier, tt.limit); got != tt.want {
				t.Errorf("Count(%v, %d) = %d, want %d", tt.multiplier, tt.limit, got, tt.want)
			}
		})
	}
}

func TestCountWithEnvOverride(t *testing.T) {
	tests := []struct {
		name     string
		envValue string
		limit    int
		want     int
	}{
		{name: "valid override", envValue: "8", limit: 0, want: 8},
		{name: "override capped by limit", envValue: "8", limit: 3, want: 3},
		{name: "zero ignored", envValue: "0", limit: 0, want: runtime.GOMAXPROCS(0)},
		{name: "negative ignored", envValue: "-2", limit: 0, want: runtime.GOMAXPROCS(0)},
		{name: "garbage ignored", envValue: "many", limit: 0, want: runtime.GOMAXPROCS(0)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv(OverrideEnv, tt.envValue)
			if got := Count(1.0, tt.limit); got != tt.want {
				t.Errorf("Count(1.0, %d) with %s=%q = %d, want %d", tt.limit, OverrideEnv, tt.envValue, got, tt.want)
			}
		})
	}
}

func TestForCPU(t *testing.T) {
	t.Setenv(OverrideEnv, "")

	got := ForCPU(4)
	if got < 1 || got > 4 {
		t.Errorf("ForCPU(4) = %d, want 1..4", got)
	}
	if want := min(runtime.GOMAXPROCS(0), 4); got != want {
		t.Errorf("ForCPU(4) = %d, want %d", got, want)
	}
}
