package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"photo-librarian/internal/backup"
	"photo-librarian/internal/config"
	"photo-librarian/internal/exiftool"
	"photo-librarian/internal/handlers"
	"photo-librarian/internal/health"
	"photo-librarian/internal/index"
	"photo-librarian/internal/ingest"
	"photo-librarian/internal/logging"
	"photo-librarian/internal/memory"
	"photo-librarian/internal/middleware"
	"photo-librarian/internal/recon"
	"photo-librarian/internal/startup"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// hashCacheMaxAge bounds how long memoized digests survive; entries for
// files that never come back just waste index space.
const hashCacheMaxAge = 30 * 24 * time.Hour

func main() {
	startTime := time.Now()
	ctx := context.Background()

	memory.ConfigureFromEnv()

	startup.PrintBanner()
	startup.LogSystemInfo()

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		startup.LogFatal("Configuration error: %v", err)
	}

	startup.LogToolCheck()

	// Inspect the index before opening it. An unusable file is set aside so
	// the service comes up with an empty index instead of failing on open;
	// a reconciliation batch over the library repopulates it.
	report, err := health.Check(ctx, cfg.Library.IndexPath)
	if err != nil {
		startup.LogFatal("Index health check failed: %v", err)
	}
	startup.LogHealthReport(report)
	if report.Action == health.ActionChooseDifferent {
		startup.LogFatal("Index path %s is not a library index (%s); point LIBRARY_ROOT at a library or remove the file",
			cfg.Library.IndexPath, report.Detail)
	}
	if report.Action == health.ActionRebuild && report.State != health.StateMissing {
		aside := cfg.Library.IndexPath + ".unusable-" + time.Now().Format("20060102_150405")
		if err := os.Rename(cfg.Library.IndexPath, aside); err != nil {
			startup.LogFatal("Failed to set aside unusable index: %v", err)
		}
		logging.Warn("Unusable index moved to %s", aside)
	}

	// Open (or create) the index
	idxStart := time.Now()
	idx, err := index.Open(ctx, cfg.Library.IndexPath)
	if err != nil {
		startup.LogFatal("Failed to open index: %v", err)
	}
	defer idx.Close()
	startup.LogIndexInit(time.Since(idxStart))

	sweepStaging(cfg.Library.StagingDir)

	if pruned, err := idx.PruneHashCache(ctx, hashCacheMaxAge); err != nil {
		logging.Warn("Hash cache pruning failed: %v", err)
	} else if pruned > 0 {
		logging.Info("Pruned %d stale hash cache entries", pruned)
	}

	// Wire the ingestion pipeline
	rotator, err := backup.New(cfg.Library.BackupDir, cfg.BackupRetention)
	if err != nil {
		startup.LogFatal("Backup setup error: %v", err)
	}
	runner := exiftool.NewRunner(cfg.ToolTimeout)
	transactor := ingest.New(cfg.Library, idx, runner)
	scanner := recon.New(cfg.Library, idx, transactor)

	memMonitor := memory.NewMonitor()
	memMonitor.Start()
	scanner.SetMemoryMonitor(memMonitor)

	// Setup router
	h := handlers.New(cfg, idx, scanner, rotator)
	router := mux.NewRouter()
	h.Register(router)
	startup.LogHTTPRoutes(router)

	handler := middleware.Logger()(middleware.Metrics()(router))

	// Remember the active library for the next start
	state := &config.State{LibraryRoot: cfg.Library.Root, SwitchedAt: time.Now()}
	if err := config.SaveState(cfg.StatePath, state); err != nil {
		logging.Warn("Failed to save library state: %v", err)
	}

	// WriteTimeout stays zero: batch progress streams are open-ended.
	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      handler,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 0,
		IdleTimeout:  60 * time.Second,
	}

	var metricsSrv *http.Server
	if cfg.MetricsEnabled && cfg.MetricsPort != cfg.Port {
		metricsMux := http.NewServeMux()
		metricsMux.Handle("/metrics", promhttp.Handler())
		metricsSrv = &http.Server{
			Addr:         ":" + cfg.MetricsPort,
			Handler:      metricsMux,
			ReadTimeout:  15 * time.Second,
			WriteTimeout: 15 * time.Second,
		}
		go func() {
			if err := metricsSrv.ListenAndServe(); err != http.ErrServerClosed {
				logging.Error("Metrics server error: %v", err)
			}
		}()
	}

	// Start graceful shutdown handler
	go handleShutdown(srv, metricsSrv, scanner, memMonitor)

	startup.LogServerStarted(startup.ServerConfig{
		Port:            cfg.Port,
		MetricsPort:     cfg.MetricsPort,
		MetricsEnabled:  cfg.MetricsEnabled,
		LibraryRoot:     cfg.Library.Root,
		StartupDuration: time.Since(startTime),
	})
	if err := srv.ListenAndServe(); err != http.ErrServerClosed {
		startup.LogFatal("Server error: %v", err)
	}
}

// sweepStaging removes copies orphaned by an interrupted batch. Files here
// are never referenced by the index, so removal is always safe.
func sweepStaging(dir string) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		logging.Warn("Failed to read staging directory: %v", err)
		return
	}
	for _, e := range entries {
		path := filepath.Join(dir, e.Name())
		if err := os.RemoveAll(path); err != nil {
			logging.Warn("Failed to remove stale staged file %s: %v", path, err)
		}
	}
	if len(entries) > 0 {
		logging.Info("Swept %d stale staged file(s)", len(entries))
	}
}

func handleShutdown(srv, metricsSrv *http.Server, scanner *recon.Scanner, memMonitor *memory.Monitor) {
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigChan

	startup.LogShutdownInitiated(sig.String())

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if scanner.Running() {
		logging.Warn("  A reconciliation batch is still running; leftover staged")
		logging.Warn("  copies are swept on the next start")
	}

	startup.LogShutdownStep("Shutting down HTTP server")
	if err := srv.Shutdown(ctx); err != nil {
		logging.Warn("Server shutdown error: %v", err)
	} else {
		startup.LogShutdownStepComplete("HTTP server stopped")
	}

	if metricsSrv != nil {
		startup.LogShutdownStep("Shutting down metrics server")
		if err := metricsSrv.Shutdown(ctx); err != nil {
			logging.Warn("Metrics server shutdown error: %v", err)
		} else {
			startup.LogShutdownStepComplete("Metrics server stopped")
		}
	}

	startup.LogShutdownStep("Stopping memory monitor")
	memMonitor.Stop()
	startup.LogShutdownStepComplete("Memory monitor stopped")

	startup.LogShutdownComplete()
}
