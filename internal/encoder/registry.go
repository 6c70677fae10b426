package encoder

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"maps"
	"slices"
	"strings"
	"sync"

	"golang.org/x/sync/singleflight"

	"media-board/internal/ffmpeg"
	"media-board/internal/logging"
	"media-board/internal/metrics"
)

var (
	// ErrToolchainUnavailable is returned when ffmpeg cannot be started.
	ErrToolchainUnavailable = ffmpeg.ErrToolchainUnavailable

	// ErrNoUsableEncoder is returned when no candidate of a family passes
	// the hardware, capability and smoke-test checks.
	ErrNoUsableEncoder = errors.New("no usable encoder")
)

// Smoke test input: one second of synthetic video at a size every backend accepts.
const (
	smokeWidth  = 320
	smokeHeight = 240
)

// Set is a collection of names reported by ffmpeg.
type Set map[string]struct{}

// Has reports whether name is in the set.
func (s Set) Has(name string) bool {
	_, ok := s[name]
	return ok
}

// Sorted returns the names in lexical order.
func (s Set) Sorted() []string {
	return slices.Sorted(maps.Keys(s))
}

// Registry owns the host's encoder capability snapshot and the per-family
// selection cache. Create one per process and share it.
//
// Neither cache is ever invalidated: encoders or GPUs that appear or vanish
// while the process runs are not noticed until restart.
type Registry struct {
	runner   ffmpeg.Runner
	override string

	encodersOnce sync.Once
	encoders     Set
	encodersErr  error

	hwOnce sync.Once
	hw     Set
	hwErr  error

	mu     sync.Mutex
	usable map[Family]Config
	group  singleflight.Group
}

// NewRegistry creates a Registry. override is the operator's VIDEO_ENCODER
// value; when it names a known implementation it is returned by every
// SelectEncoder call without any checks.
func NewRegistry(runner ffmpeg.Runner, override string) *Registry {
	override = strings.TrimSpace(override)
	if override != "" {
		if _, ok := Lookup(override); !ok {
			logging.Warn("Ignoring unknown VIDEO_ENCODER %q (known: %s)", override, strings.Join(Names(), ", "))
			override = ""
		}
	}
	return &Registry{
		runner:   runner,
		override: override,
		usable:   make(map[Family]Config),
	}
}

// Override returns the accepted operator override, or "".
func (r *Registry) Override() string {
	return r.override
}

// AvailableEncoders returns the encoders ffmpeg was built with. ffmpeg is
// invoked at most once per Registry; a failure is remembered too.
func (r *Registry) AvailableEncoders(ctx context.Context) (Set, error) {
	r.encodersOnce.Do(func() {
		r.encoders, r.encodersErr = r.probe(ctx, "encoders", parseEncoders)
	})
	return maps.Clone(r.encoders), r.encodersErr
}

// AvailableHWAccels returns the hardware acceleration backends ffmpeg
// reports. Same memoization as AvailableEncoders.
func (r *Registry) AvailableHWAccels(ctx context.Context) (Set, error) {
	r.hwOnce.Do(func() {
		r.hw, r.hwErr = r.probe(ctx, "hwaccels", parseHWAccels)
	})
	return maps.Clone(r.hw), r.hwErr
}

func (r *Registry) probe(ctx context.Context, what string, parse func([]byte) Set) (Set, error) {
	// The result is shared by every later caller, so one request's
	// cancellation must not poison it.
	res, err := r.runner.Run(context.WithoutCancel(ctx), ffmpeg.FFmpeg, "-hide_banner", "-"+what)
	if err != nil {
		metrics.EncoderProbeInvocations.WithLabelValues(what, "error").Inc()
		if errors.Is(err, ErrToolchainUnavailable) {
			return nil, err
		}
		return nil, fmt.Errorf("listing ffmpeg %s: %w", what, err)
	}
	metrics.EncoderProbeInvocations.WithLabelValues(what, "success").Inc()

	set := parse(res.Stdout)
	logging.Debug("ffmpeg reports %d %s", len(set), what)
	return set, nil
}

// parseEncoders reads `ffmpeg -encoders`: a legend, a "------" line, then
// one encoder per line with its name in the second column.
func parseEncoders(out []byte) Set {
	set := make(Set)
	pastHeader := false
	sc := bufio.NewScanner(bytes.NewReader(out))
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if !pastHeader {
			if strings.HasPrefix(line, "---") {
				pastHeader = true
			}
			continue
		}
		fields := strings.Fields(line)
		if len(fields) >= 2 {
			set[fields[1]] = struct{}{}
		}
	}
	return set
}

// parseHWAccels reads `ffmpeg -hwaccels`: a header line followed by one
// backend name per line.
func parseHWAccels(out []byte) Set {
	set := make(Set)
	sc := bufio.NewScanner(bytes.NewReader(out))
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasSuffix(line, ":") {
			continue
		}
		set[line] = struct{}{}
	}
	return set
}

// SelectEncoder returns the encoder to use for family. Candidates are tried
// in priority order; the first one that passes every check is cached for the
// life of the Registry. Concurrent first calls for a family share one probe.
func (r *Registry) SelectEncoder(ctx context.Context, family Family) (Config, error) {
	if r.override != "" {
		c, _ := Lookup(r.override)
		return c, nil
	}

	r.mu.Lock()
	c, ok := r.usable[family]
	r.mu.Unlock()
	if ok {
		return c, nil
	}

	v, err, _ := r.group.Do(string(family), func() (interface{}, error) {
		r.mu.Lock()
		c, ok := r.usable[family]
		r.mu.Unlock()
		if ok {
			return c, nil
		}

		c, err := r.selectUncached(context.WithoutCancel(ctx), family)
		if err != nil {
			return Config{}, err
		}

		r.mu.Lock()
		r.usable[family] = c
		r.mu.Unlock()
		metrics.EncoderSelected.WithLabelValues(string(family), c.Name).Set(1)
		logging.Info("Selected %s encoder for %s previews", c.Name, family)
		return c, nil
	})
	if err != nil {
		return Config{}, err
	}
	return v.(Config), nil
}

func (r *Registry) selectUncached(ctx context.Context, family Family) (Config, error) {
	candidates := PriorityList(family)
	if len(candidates) == 0 {
		return Config{}, fmt.Errorf("%w: unknown codec family %q", ErrNoUsableEncoder, family)
	}

	encoders, err := r.AvailableEncoders(ctx)
	if err != nil {
		return Config{}, err
	}
	hw, err := r.AvailableHWAccels(ctx)
	if err != nil {
		return Config{}, err
	}

	for _, c := range candidates {
		if reason := hardwareRejection(c, hw); reason != "" {
			logging.Debug("Skipping %s: %s", c.Name, reason)
			continue
		}
		if !encoders.Has(c.Name) {
			logging.Debug("Skipping %s: not built into ffmpeg", c.Name)
			continue
		}
		if err := r.smokeTest(ctx, c); err != nil {
			if errors.Is(err, ErrToolchainUnavailable) {
				return Config{}, err
			}
			logging.Warn("Encoder %s failed its test encode: %v", c.Name, err)
			continue
		}
		return c, nil
	}
	return Config{}, fmt.Errorf("%w for %s", ErrNoUsableEncoder, family)
}

// hardwareRejection returns why c cannot run on this host, or "".
func hardwareRejection(c Config, hw Set) string {
	if c.IsAMF() {
		return "AMF encoders are not supported"
	}
	if backend := c.RequiredBackend(); backend != "" && !hw.Has(backend) {
		return "hwaccel " + backend + " not available"
	}
	return ""
}

// SmokeTestArgs returns the ffmpeg arguments that encode one second of
// synthetic input with c and discard the result.
func SmokeTestArgs(c Config) []string {
	args := append([]string{}, ffmpeg.QuietArgs...)
	args = append(args, c.HWInitArgs...)
	args = append(args,
		"-f", "lavfi",
		"-i", fmt.Sprintf("testsrc=duration=1:size=%dx%d:rate=30", smokeWidth, smokeHeight),
	)
	if c.FilterChain != "" {
		args = append(args, "-vf", c.Filter(smokeWidth, smokeHeight))
	}
	args = append(args, c.CodecArgs()...)
	return append(args, "-an", "-f", "null", "-")
}

func (r *Registry) smokeTest(ctx context.Context, c Config) error {
	_, err := r.runner.Run(ctx, ffmpeg.FFmpeg, SmokeTestArgs(c)...)
	if err != nil {
		metrics.EncoderSmokeTests.WithLabelValues(c.Name, "fail").Inc()
		return err
	}
	metrics.EncoderSmokeTests.WithLabelValues(c.Name, "pass").Inc()
	return nil
}
