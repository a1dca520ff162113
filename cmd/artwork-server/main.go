package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gorilla/mux"

	"media-artwork/internal/artwork"
	"media-artwork/internal/fetch"
	"media-artwork/internal/handlers"
	"media-artwork/internal/kvstore"
	"media-artwork/internal/logging"
	"media-artwork/internal/memory"
	"media-artwork/internal/metrics"
	"media-artwork/internal/middleware"
	"media-artwork/internal/render"
	"media-artwork/internal/startup"
	"media-artwork/internal/validation"
	"media-artwork/internal/video"
)

// storeStatsAdapter feeds the metrics collector from the stores and the
// renderer.
type storeStatsAdapter struct {
	persistent kvstore.Store
	session    kvstore.Store
	renderer   *render.Renderer
	monitor    *memory.Monitor
}

func (a *storeStatsAdapter) GetStats() metrics.Stats {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	var stats metrics.Stats
	if st, err := a.persistent.Stats(ctx); err == nil {
		stats.PersistentEntries, stats.PersistentBytes = st.Entries, st.Bytes
	} else {
		logging.Warn("failed to read thumbnail cache stats: %v", err)
	}
	if st, err := a.session.Stats(ctx); err == nil {
		stats.SessionEntries, stats.SessionBytes = st.Entries, st.Bytes
	}
	usage := a.renderer.Usage()
	stats.ObjectURLs = usage.ActiveObjectURLs
	stats.CanvasPoolEntries = usage.CanvasPoolEntries
	if a.monitor != nil {
		snap := a.monitor.Snapshot()
		stats.MemoryUsageRatio = snap.Ratio
		stats.MemoryPaused = snap.Paused
	}
	return stats
}

// openThumbnailCache opens the SQLite cache, falling back to memory.
func openThumbnailCache(ctx context.Context, config *startup.Config) (kvstore.Store, func()) {
	start := time.Now()
	if config.PersistentCache {
		db, err := kvstore.OpenSQLite(ctx, config.DatabasePath, config.ThumbnailCacheQuota)
		if err == nil {
			startup.LogCacheStoreInit(true, config.DatabasePath, time.Since(start))
			return db, func() {
				if err := db.Close(); err != nil {
					logging.Error("failed to close cache database: %v", err)
				}
			}
		}
		logging.Error("Failed to open cache database: %v", err)
	}
	startup.LogCacheStoreInit(false, "", 0)
	return kvstore.NewMemory(config.ThumbnailCacheQuota), func() {}
}

func publicOrigin(config *startup.Config) string {
	if config.PublicURL != "" {
		return config.PublicURL
	}
	return "http://localhost:" + config.Port
}

func setupRouter(h *handlers.Handlers, config *startup.Config) *mux.Router {
	router := mux.NewRouter()

	loggingConfig := middleware.DefaultLoggingConfig()
	loggingConfig.LogHealthChecks = config.LogHealthChecks
	router.Use(middleware.Logger(loggingConfig))
	router.Use(middleware.Metrics(middleware.DefaultMetricsConfig()))
	router.Use(middleware.Compression(middleware.DefaultCompressionConfig()))

	h.RegisterRoutes(router)
	return router
}

func setupMetricsServer(h *handlers.Handlers, port string) *http.Server {
	metricsRouter := http.NewServeMux()
	metricsRouter.Handle("/metrics", h.MetricsHandler())
	metricsRouter.HandleFunc("/health", h.LivenessCheck)

	return &http.Server{
		Addr:              ":" + port,
		Handler:           metricsRouter,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      10 * time.Second,
	}
}

func main() {
	startTime := time.Now()

	memResult := memory.ConfigureFromEnv()

	config, err := startup.LoadConfig()
	if err != nil {
		startup.LogFatal("Failed to load configuration: %v", err)
	}
	startup.LogMemoryConfig(memResult)

	metrics.InitializeMetrics()

	var vipsErr error
	if config.VipsEnabled {
		vipsErr = render.InitVips()
		defer render.ShutdownVips()
	} else {
		vipsErr = errors.New("disabled by VIPS_ENABLED")
	}
	startup.LogRendererInit(vipsErr)

	ctx := context.Background()
	thumbCache, closeCache := openThumbnailCache(ctx, config)
	defer closeCache()
	session := kvstore.NewMemory(0)

	client := fetch.NewClient(fetch.ClientConfig{
		Timeout:   config.FetchTimeout,
		RetryMax:  fetch.DefaultClientConfig().RetryMax,
		RateLimit: config.ProbeRateLimit,
		RateBurst: config.ProbeRateBurst,
		FileRoot:  config.MediaDir,
	})
	renderer := render.NewRenderer(publicOrigin(config))
	validator := validation.New()

	artEngine, err := artwork.NewEngine(artwork.Config{
		Doer:      client,
		BaseURL:   config.PublicURL,
		Session:   session,
		Renderer:  renderer,
		Validator: validator,
	})
	if err != nil {
		startup.LogFatal("Failed to create artwork engine: %v", err)
	}

	startup.LogVideoInit(config.FFmpegPath, config.FFprobePath)
	vidEngine, err := video.NewEngine(video.Config{
		Players:   video.NewFFmpegFactory(config.FFmpegPath, config.FFprobePath, config.MediaDir),
		Cache:     thumbCache,
		Renderer:  renderer,
		Validator: validator,
		BaseURL:   config.PublicURL,
	})
	if err != nil {
		startup.LogFatal("Failed to create video engine: %v", err)
	}

	memMonitor := memory.NewMonitor(memory.DefaultConfig())
	memMonitor.Start()

	collector := metrics.NewCollector(&storeStatsAdapter{
		persistent: thumbCache,
		session:    session,
		renderer:   renderer,
		monitor:    memMonitor,
	}, time.Minute)
	collector.Start()

	h := handlers.New(artEngine, vidEngine, renderer, memMonitor)
	router := setupRouter(h, config)
	startup.LogHTTPRoutes(router, config.LogHealthChecks)

	var metricsServer *http.Server
	if config.MetricsEnabled {
		metricsServer = setupMetricsServer(h, config.MetricsPort)
		go func() {
			if err := metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logging.Error("Metrics server error: %v", err)
			}
		}()
	}

	srv := &http.Server{
		Addr:              ":" + config.Port,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		// Video thumbnails may wait out a full load timeout plus seeks.
		WriteTimeout: 2 * video.DefaultLoadTimeout,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			startup.LogFatal("Server error: %v", err)
		}
	}()

	h.SetReady(true)
	startup.LogServerStarted(startup.ServerConfig{
		Port:            config.Port,
		MetricsPort:     config.MetricsPort,
		MetricsEnabled:  config.MetricsEnabled,
		StartupDuration: time.Since(startTime),
	})

	handleShutdown(h, srv, metricsServer, collector, memMonitor, renderer)
}

func handleShutdown(h *handlers.Handlers, srv, metricsServer *http.Server, collector *metrics.Collector, memMonitor *memory.Monitor, renderer *render.Renderer) {
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigChan

	startup.LogShutdownInitiated(sig.String())
	h.SetReady(false)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	startup.LogShutdownStep("Shutting down HTTP server")
	if err := srv.Shutdown(ctx); err != nil {
		logging.Warn("Server shutdown error: %v", err)
	} else {
		startup.LogShutdownStepComplete("HTTP server stopped")
	}

	if metricsServer != nil {
		startup.LogShutdownStep("Shutting down metrics server")
		if err := metricsServer.Shutdown(ctx); err != nil {
			logging.Warn("Metrics server shutdown error: %v", err)
		} else {
			startup.LogShutdownStepComplete("Metrics server stopped")
		}
	}

	startup.LogShutdownStep("Stopping metrics collector")
	collector.Stop()
	startup.LogShutdownStepComplete("Metrics collector stopped")

	startup.LogShutdownStep("Stopping memory monitor")
	memMonitor.Stop()
	startup.LogShutdownStepComplete("Memory monitor stopped")

	revoked := renderer.URLs.RevokeAll()
	startup.LogShutdownStepComplete(fmt.Sprintf("Revoked %d object URLs", revoked))

	startup.LogShutdownComplete()
}
