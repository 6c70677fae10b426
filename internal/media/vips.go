package media

import (
	"sync"

	"media-board/internal/logging"
	"media-board/internal/workers"

	"github.com/davidbyttow/govips/v2/vips"
)

// maxVipsConcurrency caps libvips worker threads per operation. Uploads
// already run in parallel, one pipeline per request.
const maxVipsConcurrency = 4

var (
	vipsInitialized bool
	vipsInitMutex   sync.Mutex
	vipsAvailable   bool
)

// vipsLogSettings maps the application log level to the minimum libvips
// level worth forwarding.
func vipsLogSettings(appLevel logging.LogLevel) vips.LogLevel {
	switch appLevel {
	case logging.LevelDebug:
		return vips.LogLevelInfo
	case logging.LevelWarn:
		return vips.LogLevelError
	case logging.LevelError:
		return vips.LogLevelCritical
	default:
		return vips.LogLevelWarning
	}
}

// bridgeVipsLog forwards a libvips message to our logger at the matching level.
func bridgeVipsLog(domain string, level vips.LogLevel, msg string) {
	switch level {
	case vips.LogLevelError, vips.LogLevelCritical:
		logging.Error("[%s] %s", domain, msg)
	case vips.LogLevelWarning:
		logging.Warn("[%s] %s", domain, msg)
	default:
		logging.Debug("[%s] %s", domain, msg)
	}
}

// InitVips starts libvips. Safe to call more than once; later calls are no-ops.
// Must run before any raster operation that should use libvips. Until it does,
// the pure Go fallback in this package is used.
func InitVips() error {
	vipsInitMutex.Lock()
	defer vipsInitMutex.Unlock()

	if vipsInitialized {
		return nil
	}

	// Logging must be configured before Startup so startup messages respect LOG_LEVEL.
	vips.LoggingSettings(bridgeVipsLog, vipsLogSettings(logging.GetLevel()))

	concurrency := workers.ForCPU(maxVipsConcurrency)
	vips.Startup(&vips.Config{
		ConcurrencyLevel: concurrency,
		MaxCacheMem:      50 * 1024 * 1024,
		MaxCacheSize:     100,
		ReportLeaks:      false,
		CacheTrace:       false,
		CollectStats:     false,
	})

	vipsInitialized = true
	vipsAvailable = true
	logging.Info("libvips initialized (version: %s, concurrency: %d)", vips.Version, concurrency)
	return nil
}

// ShutdownVips releases libvips. libvips cannot be restarted afterwards in
// the same process; raster operations fall back to pure Go.
func ShutdownVips() {
	vipsInitMutex.Lock()
	defer vipsInitMutex.Unlock()

	if vipsInitialized {
		vips.Shutdown()
		vipsInitialized = false
		vipsAvailable = false
		logging.Info("libvips shutdown complete")
	}
}

// IsVipsAvailable reports whether libvips is initialized.
func IsVipsAvailable() bool {
	vipsInitMutex.Lock()
	defer vipsInitMutex.Unlock()
	return vipsAvailable
}
