package main

import (
	"context"
	"errors"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/aouyang1/pckiosk/api"
	"github.com/aouyang1/pckiosk/api/client"
	"github.com/aouyang1/pckiosk/config"
	"github.com/aouyang1/pckiosk/liveness"
	"github.com/aouyang1/pckiosk/slideshow"
	"github.com/aouyang1/pckiosk/store"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: cfg.SlogLevel()})))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Initialize database
	database, err := store.NewDatabase(filepath.Join(cfg.RootPath, "kiosk.db"))
	if err != nil {
		log.Fatalf("Failed to initialize database: %v", err)
	}
	defer database.Close()

	backend := client.NewBackendClient(cfg.Backend.URL, cfg.Backend.MacroURL)

	source, err := newSource(ctx, cfg, backend)
	if err != nil {
		log.Fatal(err)
	}
	cache, err := slideshow.NewCache(cfg.Slideshow.CacheDir, source)
	if err != nil {
		log.Fatalf("Failed to initialize media cache: %v", err)
	}

	surface := slideshow.NewWebSurface(api.MediaURL)
	scheduler, err := slideshow.NewScheduler(source, surface, cache, slideshow.Config{
		Dwell:        cfg.Slideshow.Dwell,
		ReadyTimeout: cfg.Slideshow.ReadyTimeout,
		Settle:       cfg.Slideshow.Settle,
		StallTimeout: cfg.Slideshow.StallTimeout,
	})
	if err != nil {
		log.Fatal(err)
	}

	// the monitor needs the server's trip handler and the server reports the
	// monitor's state
	var webServer *api.WebServer
	monitor, err := liveness.NewMonitor(backend, liveness.Config{
		Interval:         cfg.Liveness.Interval,
		Timeout:          cfg.Liveness.Timeout,
		FailureThreshold: cfg.Liveness.FailureThreshold,
		OfflineAfter:     cfg.Liveness.OfflineAfter,
	}, func() { webServer.HandleOffline() })
	if err != nil {
		log.Fatal(err)
	}

	webServer, err = api.NewWebServer(api.Options{
		DB:        database,
		Backend:   backend,
		Liveness:  monitor,
		Slideshow: scheduler,
		Surface:   surface,
		Cache:     cache,
	})
	if err != nil {
		log.Fatal(err)
	}

	watcher, err := slideshow.NewWatcher(source, cfg.Slideshow.WatchInterval, func() {
		slog.Info("found new updates to slideshow media, restarting slideshow")
		webServer.RequestReload()
	})
	if err != nil {
		log.Fatal(err)
	}

	go scheduler.Run(ctx)
	if err := scheduler.Load(ctx); err != nil {
		if errors.Is(err, slideshow.ErrEmptyPlaylist) {
			slog.Warn("slideshow has no media yet")
		} else {
			slog.Error("failed to load slideshow", "error", err)
		}
	}
	go watcher.Run(ctx)
	go monitor.Run(ctx)

	if err := webServer.Start(ctx, cfg.Server.Addr); err != nil {
		slog.Error("web server exited", "error", err)
		os.Exit(1)
	}
	slog.Info("kiosk stopped")
}

func newSource(ctx context.Context, cfg *config.Config, backend *client.BackendClient) (slideshow.Source, error) {
	if cfg.Slideshow.Source == config.SourceS3 {
		s3Source, err := slideshow.NewS3Source(ctx, cfg.S3.Profile, cfg.S3.Bucket, cfg.S3.Prefix)
		if err != nil {
			return nil, err
		}
		return s3Source, nil
	}
	return slideshow.NewBackendSource(backend), nil
}
