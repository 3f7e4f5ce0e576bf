package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/raaihank/rcp-pseudonymizer/internal/audit"
	"github.com/raaihank/rcp-pseudonymizer/internal/cache"
	"github.com/raaihank/rcp-pseudonymizer/internal/config"
	"github.com/raaihank/rcp-pseudonymizer/internal/logger"
	"github.com/raaihank/rcp-pseudonymizer/internal/pseudonym"
	"github.com/raaihank/rcp-pseudonymizer/internal/server"
	"go.uber.org/zap"
)

var (
	version = server.Version
	commit  = "dev"
	date    = "unknown"
)

func main() {
	var (
		configPath  = flag.String("config", "", "Path to configuration file")
		showVersion = flag.Bool("version", false, "Show version information")
		healthCheck = flag.String("health-check", "", "Check the server at this base URL and exit")
	)
	flag.Parse()

	if *showVersion {
		fmt.Printf("rcp-pseudonymizer %s (commit: %s, built: %s)\n", version, commit, date)
		os.Exit(0)
	}

	if *healthCheck != "" {
		performHealthCheck(*healthCheck)
		return
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	loggerConfig := logger.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
	}
	if cfg.Logging.File.Enabled {
		loggerConfig.File = &logger.FileConfig{
			Enabled: cfg.Logging.File.Enabled,
			Path:    cfg.Logging.File.Path,
		}
	}

	log, err := logger.New(loggerConfig)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	log.Info("Starting rcp-pseudonymizer",
		zap.String("version", version),
		zap.String("commit", commit),
		zap.String("build_date", date),
		zap.Int("port", cfg.Server.Port),
	)

	// Only the log level is applied live; session parameters are captured
	// when each session opens
	if err := config.Watch(func(updated *config.Config) {
		if err := log.SetLevel(updated.Logging.Level); err != nil {
			log.Warn("Ignoring log level change", zap.Error(err))
			return
		}
		log.Info("Configuration reloaded", zap.String("log_level", updated.Logging.Level))
	}, func(err error) {
		log.Warn("Configuration change rejected", zap.Error(err))
	}); err != nil {
		log.Debug("Configuration watch disabled", zap.Error(err))
	}

	sink, err := audit.NewSink(&audit.Config{
		Sink:        cfg.Audit.Sink,
		Path:        cfg.Audit.Path,
		DatabaseURL: cfg.Audit.DatabaseURL,
		Table:       cfg.Audit.Table,
		MaxConns:    cfg.Audit.MaxConns,
		BatchSize:   cfg.Audit.BatchSize,
	}, log.WithComponent("audit").Logger)
	if err != nil {
		log.Fatal("Failed to create audit sink", zap.Error(err))
	}
	defer sink.Close()

	var backend pseudonym.Backend
	if cfg.Cache.Enabled {
		store, err := cache.NewSharedStore(&cache.Config{
			RedisURL:  cfg.Cache.RedisURL,
			PoolSize:  cfg.Cache.PoolSize,
			TTL:       cfg.Cache.TTL,
			KeyPrefix: cfg.Cache.KeyPrefix,
		}, log.WithComponent("cache").Logger)
		if err != nil {
			log.Fatal("Failed to connect shared store", zap.Error(err))
		}
		defer store.Close()
		backend = store
	}

	srv, err := server.New(cfg, log, backend, sink)
	if err != nil {
		log.Fatal("Failed to create server", zap.Error(err))
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	serverErrors := make(chan error, 1)
	go func() {
		log.Info("HTTP server listening", zap.Int("port", cfg.Server.Port))
		serverErrors <- srv.Start(ctx)
	}()

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-serverErrors:
		if err != nil {
			log.Error("Server error", zap.Error(err))
		}
	case sig := <-shutdown:
		log.Info("Shutdown signal received", zap.String("signal", sig.String()))

		stopCtx, stopCancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer stopCancel()

		if err := srv.Stop(stopCtx); err != nil {
			log.Error("Failed to shutdown server gracefully", zap.Error(err))
		}
		log.Info("Server shutdown complete")
	}
}

// performHealthCheck checks a running server and exits
func performHealthCheck(baseURL string) {
	client := &http.Client{
		Timeout: 5 * time.Second,
	}

	resp, err := client.Get(baseURL + "/health")
	if err != nil {
		fmt.Fprintf(os.Stderr, "Health check failed: %v\n", err)
		os.Exit(1)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		fmt.Fprintf(os.Stderr, "Health check failed: HTTP %d\n", resp.StatusCode)
		os.Exit(1)
	}

	fmt.Println("Health check passed")
}
