package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"runtime"
	"syscall"
	"time"

	"media-board/internal/artifacts"
	"media-board/internal/database"
	"media-board/internal/encoder"
	"media-board/internal/ffmpeg"
	"media-board/internal/filesystem"
	"media-board/internal/handlers"
	"media-board/internal/logging"
	"media-board/internal/media"
	"media-board/internal/memory"
	"media-board/internal/metrics"
	"media-board/internal/middleware"
	"media-board/internal/pipeline"
	"media-board/internal/preview"
	"media-board/internal/probe"
	"media-board/internal/startup"
	"media-board/internal/thumbnail"

	"github.com/gorilla/mux"
)

const (
	metricsInterval = time.Minute
	encoderWarmup   = 2 * time.Minute
	shutdownTimeout = 30 * time.Second
)

func main() {
	startTime := time.Now()

	memResult := memory.ConfigureFromEnv()

	config, err := startup.LoadConfig()
	if err != nil {
		startup.LogFatal("Configuration error: %v", err)
	}
	logging.Debug("Memory limit source: %s", memResult.Source)

	filesystem.SetDefaultVolumeResolver(filesystem.NewVolumeResolver(map[string]string{
		"data":     config.DataDir,
		"database": config.DatabaseDir,
	}))
	filesystem.SetObserver(metrics.NewFilesystemObserver())

	if err := media.InitVips(); err != nil {
		logging.Warn("libvips unavailable, using the pure Go image path: %v", err)
	}

	layout := artifacts.NewLayout(config.DataDir)
	if err := layout.Ensure(); err != nil {
		startup.LogFatal("Failed to create artifact folders: %v", err)
	}

	// Toolchain and encoder selection
	runner := ffmpeg.NewExecRunner(config.ToolPaths())
	registry := encoder.NewRegistry(runner, config.VideoEncoder)
	startup.LogToolchain(config)
	if config.DisableVideoPreviews {
		startup.LogPreviewsDisabled()
	} else {
		warmEncoder(registry, config.VideoFamily)
	}

	prober := probe.New(runner)
	orch := pipeline.New(
		artifacts.NewManager(layout),
		preview.New(runner, registry, prober, layout, config.PreviewOptions()),
		thumbnail.New(runner, layout),
		prober,
	)

	monitor := memory.NewMonitor(memResult.MonitorConfig())
	monitor.Start()
	orch.SetBackpressure(monitor)

	// Result store
	dbStart := time.Now()
	db, err := database.New(context.Background(), config.DatabasePath)
	if err != nil {
		startup.LogFatal("Failed to initialize database: %v", err)
	}
	startup.LogDatabaseInit(time.Since(dbStart))

	// Metrics
	buildInfo := startup.GetBuildInfo()
	metrics.SetAppInfo(buildInfo.Version, buildInfo.Commit, runtime.Version())
	metrics.InitializeMetrics()
	collector := metrics.NewCollector(layout, metricsInterval)
	collector.Start()

	h := handlers.New(orch, db, monitor, config)
	router := setupRouter(h)
	startup.LogHTTPRoutes(router, config.LogHealthChecks)

	srv := &http.Server{
		Addr:              ":" + config.Port,
		Handler:           wrapMiddleware(router, config),
		ReadHeaderTimeout: 15 * time.Second,
		// Uploads of large videos are processed before the response is written.
		WriteTimeout: 0,
		IdleTimeout:  60 * time.Second,
	}

	var metricsSrv *http.Server
	if config.MetricsEnabled {
		metricsSrv = startMetricsServer(config.MetricsPort, h)
	}

	go handleShutdown(srv, metricsSrv, collector, monitor, db)

	startup.LogServerStarted(startup.ServerConfig{
		Port:            config.Port,
		MetricsPort:     config.MetricsPort,
		MetricsEnabled:  config.MetricsEnabled,
		StartupDuration: time.Since(startTime),
	})
	if err := srv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
		startup.LogFatal("Server error: %v", err)
	}

	// Block until the shutdown goroutine has finished its steps.
	<-shutdownDone
}

var shutdownDone = make(chan struct{})

// warmEncoder resolves the encoder once at startup so the first video
// upload does not pay for the probes. A failure is only logged; selection
// is retried on the next video upload.
func warmEncoder(registry *encoder.Registry, family encoder.Family) {
	ctx, cancel := context.WithTimeout(context.Background(), encoderWarmup)
	defer cancel()
	selected, err := registry.SelectEncoder(ctx, family)
	startup.LogEncoderSelection(family, selected, err)
}

func setupRouter(h *handlers.Handlers) *mux.Router {
	r := mux.NewRouter()

	r.HandleFunc("/healthz", h.HealthCheck).Methods("GET")
	r.HandleFunc("/livez", h.LivenessCheck).Methods("GET", "HEAD")
	r.HandleFunc("/readyz", h.ReadinessCheck).Methods("GET")
	r.HandleFunc("/version", h.GetVersion).Methods("GET")

	api := r.PathPrefix("/api").Subrouter()
	api.HandleFunc("/media", h.UploadMedia).Methods("POST")
	api.HandleFunc("/media/{id}", h.GetMedia).Methods("GET")
	api.HandleFunc("/media/{id}", h.ReplaceMedia).Methods("PUT")
	api.HandleFunc("/media/{id}", h.DeleteMedia).Methods("DELETE")

	return r
}

// wrapMiddleware applies request ids, metrics and logging, outermost first.
func wrapMiddleware(router *mux.Router, config *startup.Config) http.Handler {
	loggingConfig := middleware.DefaultLoggingConfig()
	loggingConfig.LogHealthChecks = config.LogHealthChecks

	router.Use(mux.MiddlewareFunc(middleware.Metrics(middleware.DefaultMetricsConfig())))
	return middleware.RequestID(middleware.Logger(loggingConfig)(router))
}

func startMetricsServer(port string, h *handlers.Handlers) *http.Server {
	sm := http.NewServeMux()
	sm.Handle("/metrics", h.MetricsHandler())
	sm.HandleFunc("/healthz", h.LivenessCheck)

	srv := &http.Server{
		Addr:              ":" + port,
		Handler:           sm,
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		if err := srv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			logging.Error("Metrics server error: %v", err)
		}
	}()
	return srv
}

func handleShutdown(srv, metricsSrv *http.Server, collector *metrics.Collector, monitor *memory.Monitor, db *database.Database) {
	defer close(shutdownDone)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigChan

	startup.LogShutdownInitiated(sig.String())

	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	// Stopping the monitor first releases uploads still waiting for memory.
	startup.LogShutdownStep("Stopping memory monitor")
	monitor.Stop()
	startup.LogShutdownStepComplete("Memory monitor stopped")

	startup.LogShutdownStep("Shutting down HTTP server")
	if err := srv.Shutdown(ctx); err != nil {
		logging.Warn("Server shutdown error: %v", err)
	} else {
		startup.LogShutdownStepComplete("HTTP server stopped")
	}

	startup.LogShutdownStep("Stopping metrics collector")
	collector.Stop()
	if metricsSrv != nil {
		if err := metricsSrv.Shutdown(ctx); err != nil {
			logging.Warn("Metrics server shutdown error: %v", err)
		}
	}
	startup.LogShutdownStepComplete("Metrics stopped")

	startup.LogShutdownStep("Closing database")
	if err := db.Close(); err != nil {
		logging.Warn("Database close error: %v", err)
	} else {
		startup.LogShutdownStepComplete("Database closed")
	}

	startup.LogShutdownStep("Releasing libvips")
	media.ShutdownVips()
	startup.LogShutdownStepComplete("libvips released")

	startup.LogShutdownComplete()
}
