package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/feedspout/feedspout/app/api"
	"github.com/feedspout/feedspout/app/cfg"
	"github.com/feedspout/feedspout/app/checkpoint"
	"github.com/feedspout/feedspout/app/feed"
	"github.com/feedspout/feedspout/app/sink"
	"github.com/feedspout/feedspout/app/tasks"
)

func main() {
	appCfg, err := cfg.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}
	if appCfg == nil {
		// Help was shown, exit gracefully
		return
	}

	logLevel := slog.LevelInfo
	if appCfg.Debug {
		logLevel = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: logLevel}))
	slog.SetDefault(logger)

	logger.Info("Starting feedspout", "version", appCfg.Version)

	store, err := newCheckpointStore(appCfg, logger)
	if err != nil {
		logger.Error("Failed to initialize checkpoint store", "error", err)
		os.Exit(1)
	}
	defer store.Close()
	logger.Info("Checkpoint store initialized", "backend", appCfg.CheckpointBackend)

	eventSink, err := sink.New(sink.Options{
		Kind:         appCfg.Sink,
		CollectorURL: appCfg.CollectorURL,
		Token:        appCfg.CollectorToken,
		KafkaBrokers: appCfg.KafkaBrokers,
		KafkaTopic:   appCfg.KafkaTopic,
		NATSURL:      appCfg.NATSURL,
		NATSSubject:  appCfg.NATSSubject,
	}, logger)
	if err != nil {
		logger.Error("Failed to initialize event sink", "error", err)
		os.Exit(1)
	}
	defer eventSink.Close()
	logger.Info("Event sink initialized", "sink", appCfg.Sink)

	configCache := feed.NewConfigCache(appCfg.FeedsDir, logger)
	if err := configCache.Run(); err != nil {
		logger.Error("Failed to load feed configurations", "error", err)
		os.Exit(1)
	}
	logger.Info("Feed configurations loaded", "count", configCache.GetConfigCount(), "dir", appCfg.FeedsDir)

	httpClient := &http.Client{}
	fetcher := feed.NewFetcher(httpClient, appCfg.UserAgent, logger)
	contentExtractor := feed.NewContentExtractor(logger)

	scheduler := tasks.NewScheduler(configCache, store, eventSink, httpClient, fetcher, contentExtractor, logger)
	scheduler.Start()
	defer scheduler.Stop()
	logger.Info("Background scheduler started", "workers", appCfg.WorkerCount, "interval", appCfg.SchedulerInterval)

	apiHandler := api.NewHandler(configCache, store, scheduler, logger)
	server := api.NewServer(apiHandler, appCfg.APIAccessKey)

	httpServer := &http.Server{
		Addr:         ":" + appCfg.Port,
		Handler:      server,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	serverErrChan := make(chan error, 1)
	go func() {
		logger.Info("HTTP server listening", "port", appCfg.Port)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			serverErrChan <- fmt.Errorf("HTTP server error: %w", err)
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	select {
	case sig := <-sigChan:
		logger.Info("Received signal", "signal", sig.String())
	case err := <-serverErrChan:
		logger.Error("Server error", "error", err)
	}

	logger.Info("Shutting down gracefully")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("HTTP server shutdown error", "error", err)
	}

	logger.Info("Shutdown complete")
}

func newCheckpointStore(appCfg *cfg.Cfg, logger *slog.Logger) (checkpoint.Store, error) {
	switch appCfg.CheckpointBackend {
	case "", "sqlite":
		return checkpoint.NewSQLiteStore(appCfg.StateDir, logger)
	case "redis":
		return checkpoint.NewRedisStore(appCfg.RedisAddr, appCfg.RedisPassword, appCfg.RedisDB, logger)
	default:
		return nil, fmt.Errorf("unknown checkpoint backend '%s'", appCfg.CheckpointBackend)
	}
}
