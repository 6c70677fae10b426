package memory

import (
	"math"
	"os"
	"runtime/debug"
	"strconv"
	"strings"

	"media-board/internal/logging"
)

// DefaultMemoryRatio is the share of container memory given to the Go heap.
// Every upload spawns ffmpeg or gifsicle and buffers the original in
// memory, and libvips allocates outside the heap.
const DefaultMemoryRatio = 0.75

// Limit sources reported in ConfigResult.Source.
const (
	SourceGoMemLimit  = "GOMEMLIMIT"
	SourceMemoryLimit = "MEMORY_LIMIT"
	SourceCgroup      = "cgroup"
	SourceNone        = "none"
)

// cgroupLimitFiles are read in order when MEMORY_LIMIT is unset: cgroup v2
// first, then v1.
var cgroupLimitFiles = []string{
	"/sys/fs/cgroup/memory.max",
	"/sys/fs/cgroup/memory/memory.limit_in_bytes",
}

// cgroup v1 reports "unlimited" as a page-rounded MaxInt64.
const cgroupUnlimited = int64(1) << 62

// ConfigResult describes the heap limit picked at startup.
type ConfigResult struct {
	// Configured is true when a GOMEMLIMIT is in effect.
	Configured bool

	// Source is one of the Source* constants.
	Source string

	// ContainerLimit is the container memory limit in bytes, 0 if unknown.
	ContainerLimit int64

	// GoMemLimit is the GOMEMLIMIT in bytes, 0 if none.
	GoMemLimit int64

	// Ratio is the share of ContainerLimit given to the heap, 0 if not derived.
	Ratio float64
}

// MonitorConfig returns the upload backpressure configuration for this
// limit: the default water marks applied to GoMemLimit.
func (r ConfigResult) MonitorConfig() Config {
	cfg := DefaultConfig()
	cfg.MemoryLimitBytes = r.GoMemLimit
	return cfg
}

// ConfigureFromEnv sets GOMEMLIMIT from the container memory limit.
// Call it first in main, before upload buffers are allocated.
//
// Environment variables:
//   - GOMEMLIMIT: taken as is when set (standard Go env var)
//   - MEMORY_LIMIT: container limit in bytes, e.g. from the Kubernetes
//     Downward API; without it the cgroup limit is read
//   - MEMORY_RATIO: share of the limit given to the heap (default: 0.75)
func ConfigureFromEnv() ConfigResult {
	if env := os.Getenv("GOMEMLIMIT"); env != "" {
		result := ConfigResult{Source: SourceGoMemLimit}
		if limit := debug.SetMemoryLimit(-1); limit > 0 && limit < math.MaxInt64 {
			result.Configured = true
			result.GoMemLimit = limit
		}
		logging.Info("GOMEMLIMIT set via environment: %s", env)
		return result
	}

	containerLimit, source := containerMemoryLimit()
	if containerLimit == 0 {
		logging.Debug("No container memory limit found, GOMEMLIMIT not configured")
		return ConfigResult{Source: SourceNone}
	}

	ratio := parseRatio(os.Getenv("MEMORY_RATIO"))
	goMemLimit := int64(float64(containerLimit) * ratio)
	debug.SetMemoryLimit(goMemLimit)

	logging.Info("Configured GOMEMLIMIT: %s (%.1f%% of %s %s limit)",
		formatBytes(goMemLimit), ratio*100, formatBytes(containerLimit), source)

	return ConfigResult{
		Configured:     true,
		Source:         source,
		ContainerLimit: containerLimit,
		GoMemLimit:     goMemLimit,
		Ratio:          ratio,
	}
}

// containerMemoryLimit returns the limit from MEMORY_LIMIT, or from the
// cgroup when that is unset. A malformed MEMORY_LIMIT disables the limit
// rather than falling through to the cgroup.
func containerMemoryLimit() (int64, string) {
	if s := os.Getenv("MEMORY_LIMIT"); s != "" {
		limit, err := strconv.ParseInt(strings.TrimSpace(s), 10, 64)
		if err != nil || limit <= 0 {
			logging.Warn("Ignoring MEMORY_LIMIT %q: not a positive byte count", s)
			return 0, SourceNone
		}
		return limit, SourceMemoryLimit
	}

	for _, path := range cgroupLimitFiles {
		data, err := os.ReadFile(path)
		if err != nil {
			continue
		}
		s := strings.TrimSpace(string(data))
		if s == "max" {
			return 0, SourceNone
		}
		limit, err := strconv.ParseInt(s, 10, 64)
		if err != nil || limit <= 0 || limit >= cgroupUnlimited {
			return 0, SourceNone
		}
		return limit, SourceCgroup
	}
	return 0, SourceNone
}

func parseRatio(s string) float64 {
	if s == "" {
		return DefaultMemoryRatio
	}
	ratio, err := strconv.ParseFloat(s, 64)
	if err != nil {
		logging.Warn("Failed to parse MEMORY_RATIO %q: %v, using default %.2f", s, err, DefaultMemoryRatio)
		return DefaultMemoryRatio
	}
	if ratio <= 0 || ratio > 1 {
		logging.Warn("MEMORY_RATIO %q out of range (0.0-1.0], using default %.2f", s, DefaultMemoryRatio)
		return DefaultMemoryRatio
	}
	return ratio
}

// formatBytes formats bytes into human-readable string
func formatBytes(b int64) string {
	const unit = 1024
	if b < unit {
		return strconv.FormatInt(b, 10) + " B"
	}
	div, exp := int64(unit), 0
	for n := b / unit; n >= unit; n /= unit {
		div *= unit
		exp++
	}
	return strconv.FormatFloat(float64(b)/float64(div), 'f', 1, 64) + " " + string("KMGTPE"[exp]) + "iB"
}
