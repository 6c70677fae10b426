package startup

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"sort"
	"strconv"
	"strings"
	"time"

	"media-board/internal/encoder"
	"media-board/internal/ffmpeg"
	"media-board/internal/logging"
	"media-board/internal/preview"

	"github.com/gorilla/mux"
	"github.com/spf13/viper"
)

// Build-time variables (injected via -ldflags)
var (
	Version   = "dev"
	Commit    = "unknown"
	BuildTime = "unknown"
	GoVersion = runtime.Version()
)

// BuildInfo contains version and build information
type BuildInfo struct {
	Version   string `json:"version"`
	Commit    string `json:"commit"`
	BuildTime string `json:"buildTime"`
	GoVersion string `json:"goVersion"`
	OS        string `json:"os"`
	Arch      string `json:"arch"`
}

// GetBuildInfo returns the current build information
func GetBuildInfo() BuildInfo {
	return BuildInfo{
		Version:   Version,
		Commit:    Commit,
		BuildTime: BuildTime,
		GoVersion: GoVersion,
		OS:        runtime.GOOS,
		Arch:      runtime.GOARCH,
	}
}

// RouteInfo contains information about a registered route
type RouteInfo struct {
	Method string
	Path   string
	Name   string
}

// Configuration keys. Each is read from the environment variable of the
// same name, or from the optional CONFIG_FILE.
const (
	KeyConfigFile           = "CONFIG_FILE"
	KeyDataDir              = "DATA_DIR"
	KeyDatabaseDir          = "DATABASE_DIR"
	KeyPort                 = "PORT"
	KeyMetricsPort          = "METRICS_PORT"
	KeyMetricsEnabled       = "METRICS_ENABLED"
	KeyLogLevel             = "LOG_LEVEL"
	KeyLogHealthChecks      = "LOG_HEALTH_CHECKS"
	KeyDisableVideoPreviews = "DISABLE_VIDEO_PREVIEWS"
	KeyVideoCodec           = "VIDEO_CODEC"
	KeyVideoEncoder         = "VIDEO_ENCODER"
	KeyGIFQuality           = "GIF_QUALITY"
	KeyGIFEffort            = "GIF_EFFORT"
	KeyGIFMaxWidth          = "GIF_MAX_WIDTH"
	KeyMaxUploadSize        = "MAX_UPLOAD_SIZE"
	KeyFFmpegPath           = "FFMPEG_PATH"
	KeyFFprobePath          = "FFPROBE_PATH"
	KeyGifsiclePath         = "GIFSICLE_PATH"
)

// DefaultMaxUploadSize caps a single multipart file at 512 MiB.
const DefaultMaxUploadSize int64 = 512 << 20

// Config holds all application configuration
type Config struct {
	DataDir         string
	DatabaseDir     string
	Port            string
	MetricsPort     string
	MetricsEnabled  bool
	LogLevel        logging.LogLevel
	LogHealthChecks bool

	DisableVideoPreviews bool
	VideoFamily          encoder.Family
	VideoEncoder         string
	GIFQuality           int
	GIFEffort            int
	GIFMaxWidth          int
	MaxUploadSize        int64

	FFmpegPath   string
	FFprobePath  string
	GifsiclePath string

	// Derived paths
	DatabasePath string
}

// ToolPaths returns the configured binary locations for the process runner.
func (c *Config) ToolPaths() ffmpeg.Paths {
	return ffmpeg.Paths{
		FFmpeg:   c.FFmpegPath,
		FFprobe:  c.FFprobePath,
		Gifsicle: c.GifsiclePath,
	}
}

// PreviewOptions returns the preview settings derived from the configuration.
func (c *Config) PreviewOptions() preview.Options {
	return preview.Options{
		DisableVideo: c.DisableVideoPreviews,
		VideoFamily:  c.VideoFamily,
		GIFQuality:   c.GIFQuality,
		GIFEffort:    c.GIFEffort,
		GIFMaxWidth:  c.GIFMaxWidth,
	}
}

// NewViper returns a viper instance with every default registered and the
// environment bound. When CONFIG_FILE is set, that file is read as well;
// environment variables still win over file values.
func NewViper() (*viper.Viper, error) {
	v := viper.New()

	v.SetDefault(KeyDataDir, "./data")
	v.SetDefault(KeyDatabaseDir, "./database")
	v.SetDefault(KeyPort, "8080")
	v.SetDefault(KeyMetricsPort, "9090")
	v.SetDefault(KeyMetricsEnabled, "true")
	v.SetDefault(KeyLogLevel, "info")
	v.SetDefault(KeyLogHealthChecks, "true")
	v.SetDefault(KeyDisableVideoPreviews, "false")
	v.SetDefault(KeyVideoCodec, string(encoder.DefaultFamily))
	v.SetDefault(KeyVideoEncoder, "")
	v.SetDefault(KeyGIFQuality, strconv.Itoa(preview.DefaultGIFQuality))
	v.SetDefault(KeyGIFEffort, strconv.Itoa(preview.DefaultGIFEffort))
	v.SetDefault(KeyGIFMaxWidth, strconv.Itoa(preview.DefaultGIFMaxWidth))
	v.SetDefault(KeyMaxUploadSize, strconv.FormatInt(DefaultMaxUploadSize, 10))
	v.SetDefault(KeyFFmpegPath, "ffmpeg")
	v.SetDefault(KeyFFprobePath, "ffprobe")
	v.SetDefault(KeyGifsiclePath, "gifsicle")

	v.AutomaticEnv()

	if file := v.GetString(KeyConfigFile); file != "" {
		v.SetConfigFile(file)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", file, err)
		}
	}
	return v, nil
}

// Decode builds a Config from v. Invalid values fall back to their
// defaults with a warning; only unresolvable paths are errors.
func Decode(v *viper.Viper) (*Config, error) {
	config := &Config{
		DataDir:              v.GetString(KeyDataDir),
		DatabaseDir:          v.GetString(KeyDatabaseDir),
		Port:                 v.GetString(KeyPort),
		MetricsPort:          v.GetString(KeyMetricsPort),
		MetricsEnabled:       getBool(v, KeyMetricsEnabled, true),
		LogHealthChecks:      getBool(v, KeyLogHealthChecks, true),
		DisableVideoPreviews: getBool(v, KeyDisableVideoPreviews, false),
		VideoEncoder:         strings.TrimSpace(v.GetString(KeyVideoEncoder)),
		GIFQuality:           getIntInRange(v, KeyGIFQuality, preview.DefaultGIFQuality, 1, 100),
		GIFEffort:            getIntInRange(v, KeyGIFEffort, preview.DefaultGIFEffort, 1, 3),
		GIFMaxWidth:          getIntInRange(v, KeyGIFMaxWidth, preview.DefaultGIFMaxWidth, 1, 1<<15),
		MaxUploadSize:        getSize(v, KeyMaxUploadSize, DefaultMaxUploadSize),
		FFmpegPath:           v.GetString(KeyFFmpegPath),
		FFprobePath:          v.GetString(KeyFFprobePath),
		GifsiclePath:         v.GetString(KeyGifsiclePath),
	}

	level, ok := logging.ParseLevel(v.GetString(KeyLogLevel))
	if !ok {
		logging.Warn("Invalid %s %q, using default: info", KeyLogLevel, v.GetString(KeyLogLevel))
	}
	config.LogLevel = level

	family, ok := encoder.ParseFamily(v.GetString(KeyVideoCodec))
	if !ok {
		logging.Warn("Invalid %s %q, using default: %s", KeyVideoCodec, v.GetString(KeyVideoCodec), encoder.DefaultFamily)
		family = encoder.DefaultFamily
	}
	config.VideoFamily = family

	var err error
	if config.DataDir, err = filepath.Abs(config.DataDir); err != nil {
		return nil, fmt.Errorf("failed to resolve data directory path: %w", err)
	}
	if config.DatabaseDir, err = filepath.Abs(config.DatabaseDir); err != nil {
		return nil, fmt.Errorf("failed to resolve database directory path: %w", err)
	}
	config.DatabasePath = filepath.Join(config.DatabaseDir, "media-board.db")

	return config, nil
}

// LoadConfig loads and validates configuration from the environment
func LoadConfig() (*Config, error) {
	printBanner()
	logSystemInfo()

	logging.Info("------------------------------------------------------------")
	logging.Info("CONFIGURATION")
	logging.Info("------------------------------------------------------------")

	v, err := NewViper()
	if err != nil {
		return nil, err
	}
	config, err := Decode(v)
	if err != nil {
		return nil, err
	}
	// DEBUG=true from the environment outranks a configured level.
	if !logging.IsDebugEnabled() {
		logging.SetLevel(config.LogLevel)
	}

	if file := v.ConfigFileUsed(); file != "" {
		logging.Info("  CONFIG_FILE:             %s", file)
	}
	logging.Info("  DATA_DIR:                %s", config.DataDir)
	logging.Info("  DATABASE_DIR:            %s", config.DatabaseDir)
	logging.Info("  PORT:                    %s", config.Port)
	logging.Info("  METRICS_PORT:            %s", config.MetricsPort)
	logging.Info("  METRICS_ENABLED:         %v", config.MetricsEnabled)
	logging.Info("  LOG_LEVEL:               %s", config.LogLevel)
	logging.Info("  LOG_HEALTH_CHECKS:       %v", config.LogHealthChecks)
	logging.Info("  DISABLE_VIDEO_PREVIEWS:  %v", config.DisableVideoPreviews)
	logging.Info("  VIDEO_CODEC:             %s", config.VideoFamily)
	if config.VideoEncoder != "" {
		logging.Info("  VIDEO_ENCODER:           %s", config.VideoEncoder)
	} else {
		logging.Info("  VIDEO_ENCODER:           (auto)")
	}
	logging.Info("  GIF_QUALITY:             %d", config.GIFQuality)
	logging.Info("  GIF_EFFORT:              %d", config.GIFEffort)
	logging.Info("  GIF_MAX_WIDTH:           %d", config.GIFMaxWidth)
	logging.Info("  MAX_UPLOAD_SIZE:         %d bytes", config.MaxUploadSize)
	logging.Info("  FFMPEG_PATH:             %s", config.FFmpegPath)
	logging.Info("  FFPROBE_PATH:            %s", config.FFprobePath)
	logging.Info("  GIFSICLE_PATH:           %s", config.GifsiclePath)

	logging.Info("")
	logging.Info("------------------------------------------------------------")
	logging.Info("DIRECTORY SETUP")
	logging.Info("------------------------------------------------------------")

	for _, dir := range []struct{ path, name string }{
		{config.DataDir, "data"},
		{config.DatabaseDir, "database"},
	} {
		if err := ensureDirectory(dir.path, dir.name); err != nil {
			return nil, fmt.Errorf("%s directory error: %w", dir.name, err)
		}
		logging.Debug("  Testing %s directory write access...", dir.name)
		if err := testWriteAccess(dir.path); err != nil {
			return nil, fmt.Errorf("%s directory is not writable: %w", dir.name, err)
		}
		logging.Info("  [OK] %s directory is writable: %s", dir.name, dir.path)
	}

	return config, nil
}

func getBool(v *viper.Viper, key string, defaultValue bool) bool {
	value := strings.TrimSpace(v.GetString(key))
	if value == "" {
		return defaultValue
	}
	parsed, err := strconv.ParseBool(value)
	if err != nil {
		logging.Warn("Invalid boolean value for %s: %q, using default: %v", key, value, defaultValue)
		return defaultValue
	}
	return parsed
}

func getIntInRange(v *viper.Viper, key string, defaultValue, lo, hi int) int {
	value := strings.TrimSpace(v.GetString(key))
	if value == "" {
		return defaultValue
	}
	parsed, err := strconv.Atoi(value)
	if err != nil || parsed < lo || parsed > hi {
		logging.Warn("Invalid value for %s: %q (want %d-%d), using default: %d", key, value, lo, hi, defaultValue)
		return defaultValue
	}
	return parsed
}

func getSize(v *viper.Viper, key string, defaultValue int64) int64 {
	value := strings.TrimSpace(v.GetString(key))
	if value == "" {
		return defaultValue
	}
	parsed, err := strconv.ParseInt(value, 10, 64)
	if err != nil || parsed <= 0 {
		logging.Warn("Invalid value for %s: %q, using default: %d", key, value, defaultValue)
		return defaultValue
	}
	return parsed
}

// LogDatabaseInit logs database initialization
func LogDatabaseInit(duration time.Duration) {
	logging.Info("")
	logging.Info("------------------------------------------------------------")
	logging.Info("DATABASE INITIALIZATION")
	logging.Info("------------------------------------------------------------")
	logging.Info("  [OK] Database initialized in %v", duration)
}

// LogToolchain checks that every external tool starts and logs its version.
// Missing tools are warnings here; uploads that need them will fail.
func LogToolchain(config *Config) {
	logging.Info("")
	logging.Info("------------------------------------------------------------")
	logging.Info("MEDIA TOOLCHAIN")
	logging.Info("------------------------------------------------------------")

	for _, tool := range []struct{ name, path, versionFlag string }{
		{"ffmpeg", config.FFmpegPath, "-version"},
		{"ffprobe", config.FFprobePath, "-version"},
		{"gifsicle", config.GifsiclePath, "--version"},
	} {
		version, err := checkTool(tool.path, tool.versionFlag)
		if err != nil {
			logging.Warn("  [MISSING] %s: %v", tool.name, err)
			continue
		}
		logging.Info("  [OK] %s: %s", tool.name, version)
	}
}

// LogEncoderSelection logs the encoder chosen for the configured family.
func LogEncoderSelection(family encoder.Family, selected encoder.Config, err error) {
	if err != nil {
		logging.Warn("  [FAIL] No usable %s encoder: %v", family, err)
		logging.Warn("  Video uploads will fail until the toolchain is fixed")
		return
	}
	kind := "software"
	if selected.IsHardware() {
		kind = "hardware"
	}
	logging.Info("  [OK] %s encoder: %s (%s)", family, selected.Name, kind)
}

// LogPreviewsDisabled logs that video previews are turned off.
func LogPreviewsDisabled() {
	logging.Info("  Video previews disabled (DISABLE_VIDEO_PREVIEWS=true)")
	logging.Info("  Encoder selection skipped")
}

// GetRoutes extracts all registered routes from a mux.Router
func GetRoutes(router *mux.Router) ([]RouteInfo, error) {
	var routes []RouteInfo

	err := router.Walk(func(route *mux.Route, _ *mux.Router, _ []*mux.Route) error {
		pathTemplate, err := route.GetPathTemplate()
		if err != nil {
			return err
		}

		methods, err := route.GetMethods()
		if err != nil {
			methods = []string{"*"}
		}

		for _, method := range methods {
			routes = append(routes, RouteInfo{
				Method: method,
				Path:   pathTemplate,
				Name:   route.GetName(),
			})
		}
		return nil
	})

	return routes, err
}

// LogHTTPRoutes logs all registered HTTP routes
func LogHTTPRoutes(router *mux.Router, logHealthChecks bool) {
	logging.Info("")
	logging.Info("------------------------------------------------------------")
	logging.Info("HTTP SERVER SETUP")
	logging.Info("------------------------------------------------------------")

	if logging.IsDebugEnabled() {
		routes, err := GetRoutes(router)
		if err != nil {
			logging.Warn("error walking routes: %v", err)
		}

		logging.Debug("  Registered routes (%d total):", len(routes))

		groups := make(map[string][]RouteInfo)
		for _, route := range routes {
			prefix := getRouteGroup(route.Path)
			groups[prefix] = append(groups[prefix], route)
		}

		groupKeys := make([]string, 0, len(groups))
		for k := range groups {
			groupKeys = append(groupKeys, k)
		}
		sort.Strings(groupKeys)

		for _, group := range groupKeys {
			if group != "" {
				logging.Debug("  [%s]", group)
			} else {
				logging.Debug("  [root]")
			}
			for _, route := range groups[group] {
				logging.Debug("    %-6s %s", route.Method, route.Path)
			}
		}
	}

	logging.Info("  HTTP logging enabled")
	if logHealthChecks {
		logging.Info("    Health check logging: ON")
	} else {
		logging.Info("    Health check logging: OFF (set LOG_HEALTH_CHECKS=true to enable)")
	}
}

// getRouteGroup extracts a group name from a route path
func getRouteGroup(path string) string {
	path = strings.TrimPrefix(path, "/")

	parts := strings.SplitN(path, "/", 2)
	first := parts[0]

	if first == "api" && len(parts) > 1 {
		subParts := strings.SplitN(parts[1], "/", 2)
		return "api/" + subParts[0]
	}

	return first
}

// ServerConfig holds configuration for the server startup log
type ServerConfig struct {
	Port            string
	MetricsPort     string
	MetricsEnabled  bool
	StartupDuration time.Duration
}

// LogServerStarted logs successful server start with all endpoint information
func LogServerStarted(config ServerConfig) {
	logging.Info("")
	logging.Info("------------------------------------------------------------")
	logging.Info("SERVER STARTED")
	logging.Info("------------------------------------------------------------")
	logging.Info("  Startup time:    %v", config.StartupDuration)
	logging.Info("")
	logging.Info("  Endpoints:")
	logging.Info("    API:           http://0.0.0.0:%s/api/media", config.Port)
	if config.MetricsEnabled {
		logging.Info("    Metrics:       http://0.0.0.0:%s/metrics", config.MetricsPort)
	} else {
		logging.Info("    Metrics:       DISABLED")
	}
	logging.Info("")
	logging.Info("  Press Ctrl+C to stop the server")
	logging.Info("------------------------------------------------------------")
	logging.Info("")
}

// LogShutdownInitiated logs shutdown start
func LogShutdownInitiated(signal string) {
	logging.Info("")
	logging.Info("------------------------------------------------------------")
	logging.Info("SHUTDOWN INITIATED (received %s)", signal)
	logging.Info("------------------------------------------------------------")
}

// LogShutdownStep logs a shutdown step
func LogShutdownStep(step string) {
	logging.Debug("  %s...", step)
}

// LogShutdownStepComplete logs a completed shutdown step
func LogShutdownStepComplete(step string) {
	logging.Info("  [OK] %s", step)
}

// LogShutdownComplete logs shutdown completion
func LogShutdownComplete() {
	logging.Info("  [OK] Shutdown complete")
}

// LogFatal logs a fatal error and exits
func LogFatal(format string, args ...interface{}) {
	logging.Fatal(format, args...)
}

func printBanner() {
	banner := `
------------------------------------------------------------
                    _ _         _                         _
  _ __ ___   ___  __| (_) __ _  | |__   ___   __ _ _ __ __| |
 | '_ ' _ \ / _ \/ _' | |/ _' | | '_ \ / _ \ / _' | '__/ _' |
 | | | | | |  __/ (_| | | (_| | | |_) | (_) | (_| | | | (_| |
 |_| |_| |_|\___|\__,_|_|\__,_| |_.__/ \___/ \__,_|_|  \__,_|

------------------------------------------------------------`
	fmt.Println(banner)
	logging.Info("  Version:    %s", Version)
	logging.Info("  Commit:     %s", Commit)
	logging.Info("  Build Time: %s", BuildTime)
	logging.Info("  Started:    %s", time.Now().Format(time.RFC1123))
	logging.Info("")
}

func logSystemInfo() {
	logging.Info("------------------------------------------------------------")
	logging.Info("SYSTEM INFORMATION")
	logging.Info("------------------------------------------------------------")
	logging.Info("  Go version:      %s", runtime.Version())
	logging.Info("  OS/Arch:         %s/%s", runtime.GOOS, runtime.GOARCH)
	logging.Info("  CPUs available:  %d", runtime.NumCPU())
	logging.Info("  GOMAXPROCS:      %d", runtime.GOMAXPROCS(0))

	if runtime.GOMAXPROCS(0) < runtime.NumCPU() {
		logging.Info("  (Container CPU limit detected)")
	}

	if logging.IsDebugEnabled() {
		if wd, err := os.Getwd(); err == nil {
			logging.Debug("  Working dir:     %s", wd)
		}
		if hostname, err := os.Hostname(); err == nil {
			logging.Debug("  Hostname:        %s", hostname)
		}
	}

	logging.Info("")
}

func ensureDirectory(path, name string) error {
	logging.Debug("  Checking %s directory: %s", name, path)

	info, err := os.Stat(path)
	if os.IsNotExist(err) {
		logging.Debug("    Directory does not exist, creating...")
		if err := os.MkdirAll(path, 0o755); err != nil {
			return fmt.Errorf("failed to create directory: %w", err)
		}
		logging.Debug("    [OK] Created directory: %s", path)
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to stat directory: %w", err)
	}
	if !info.IsDir() {
		return fmt.Errorf("path exists but is not a directory")
	}

	logging.Debug("    [OK] Directory exists")
	return nil
}

func testWriteAccess(dir string) error {
	testFile := filepath.Join(dir, ".write-test")
	if err := os.WriteFile(testFile, []byte("test"), 0o644); err != nil {
		return err
	}
	if err := os.Remove(testFile); err != nil {
		logging.Warn("failed to remove write test file %s: %v", testFile, err)
	}
	return nil
}

// checkTool resolves path and returns the first line of its version output.
func checkTool(path, versionFlag string) (string, error) {
	resolved, err := exec.LookPath(path)
	if err != nil {
		return "", fmt.Errorf("%s not found", path)
	}
	logging.Debug("  %s resolved to %s", path, resolved)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	output, err := exec.CommandContext(ctx, resolved, versionFlag).Output()
	if err != nil {
		return "", fmt.Errorf("failed to get version: %w", err)
	}

	first, _, _ := strings.Cut(string(output), "\n")
	return strings.TrimSpace(first), nil
}
