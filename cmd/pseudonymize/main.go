package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"math/rand"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"go.uber.org/zap"

	"github.com/raaihank/rcp-pseudonymizer/internal/audit"
	"github.com/raaihank/rcp-pseudonymizer/internal/batch"
	"github.com/raaihank/rcp-pseudonymizer/internal/cache"
	"github.com/raaihank/rcp-pseudonymizer/internal/config"
	"github.com/raaihank/rcp-pseudonymizer/internal/logger"
	"github.com/raaihank/rcp-pseudonymizer/internal/pseudonym"
)

var version = "0.1.0"

func main() {
	var (
		configPath = flag.String("config", "", "Configuration file path")
		inputs     = flag.String("input", "", "Span tables to pseudonymize, comma separated (CSV, JSON lines, or Parquet)")
		outputs    = flag.String("output", "", "Output tables, comma separated, one per input (default <input>.pseudo<ext>)")
		batchSize  = flag.Int("batch-size", 0, "Rows per batch (default from config)")
		workers    = flag.Int("workers", 0, "Number of worker goroutines (default from config)")
		dryRun     = flag.Bool("dry-run", false, "Resolve every span but write no output")
		seed       = flag.Int64("seed", 0, "Seed for reproducible runs (testing only)")
	)
	flag.Parse()

	if *inputs == "" {
		fmt.Fprintf(os.Stderr, "Usage: %s [options]\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "\nOptions:\n")
		flag.PrintDefaults()
		fmt.Fprintf(os.Stderr, "\nExamples:\n")
		fmt.Fprintf(os.Stderr, "  %s --input spans.csv --output spans.pseudo.csv\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "  %s --input cr1.parquet,cr2.parquet --workers 8\n", os.Args[0])
		os.Exit(1)
	}

	jobs, err := buildJobs(*inputs, *outputs)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Invalid arguments: %v\n", err)
		os.Exit(1)
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}

	log, err := newLogger(cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	log.Info("Starting pseudonymization run",
		zap.String("version", version),
		zap.Int("tables", len(jobs)))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigChan
		log.Info("Received shutdown signal, cancelling run...")
		cancel()
	}()

	svc, err := initializeServices(cfg, log)
	if err != nil {
		log.Fatal("Failed to initialize services", zap.Error(err))
	}
	defer svc.cleanup(log)

	options := pseudonym.DefaultOptions()
	options.Locale = cfg.Pseudonym.Locale
	options.MinOffsetDays = cfg.Pseudonym.MinOffsetDays
	options.MaxOffsetDays = cfg.Pseudonym.MaxOffsetDays
	if s := pickSeed(*seed, cfg.Pseudonym.Seed); s != 0 {
		log.Warn("Running with a fixed seed; substitutes and offset are reproducible")
		options.Source = rand.NewSource(s)
	}
	if svc.store != nil {
		options.Backend = svc.store
	}

	batchConfig := &batch.Config{
		BatchSize:      pickInt(*batchSize, cfg.Batch.BatchSize),
		WorkerCount:    pickInt(*workers, cfg.Batch.WorkerCount),
		ProgressReport: cfg.Batch.ProgressReport,
		DryRun:         *dryRun,
	}

	pipeline := batch.NewPipeline(options, svc.sink, batchConfig, log.WithComponent("batch").Logger)
	result, err := pipeline.Run(ctx, jobs)

	if result != nil {
		out, _ := json.MarshalIndent(result, "", "  ")
		fmt.Println(string(out))
	}

	if err != nil {
		log.Error("Pseudonymization run failed", zap.Error(err))
		svc.cleanup(log)
		os.Exit(1)
	}
	log.Info("Pseudonymization run completed successfully")
}

type services struct {
	sink   audit.Sink
	store  *cache.SharedStore
	closed bool
}

func initializeServices(cfg *config.Config, log *logger.Logger) (*services, error) {
	svc := &services{}

	sink, err := audit.NewSink(&audit.Config{
		Sink:        cfg.Audit.Sink,
		Path:        cfg.Audit.Path,
		DatabaseURL: cfg.Audit.DatabaseURL,
		Table:       cfg.Audit.Table,
		MaxConns:    cfg.Audit.MaxConns,
		BatchSize:   cfg.Audit.BatchSize,
	}, log.WithComponent("audit").Logger)
	if err != nil {
		return nil, fmt.Errorf("failed to create audit sink: %w", err)
	}
	svc.sink = sink

	if cfg.Cache.Enabled {
		store, err := cache.NewSharedStore(&cache.Config{
			RedisURL:  cfg.Cache.RedisURL,
			PoolSize:  cfg.Cache.PoolSize,
			TTL:       cfg.Cache.TTL,
			KeyPrefix: cfg.Cache.KeyPrefix,
		}, log.WithComponent("cache").Logger)
		if err != nil {
			_ = sink.Close()
			return nil, fmt.Errorf("failed to connect shared store: %w", err)
		}
		svc.store = store
	}
	return svc, nil
}

func (s *services) cleanup(log *logger.Logger) {
	if s.closed {
		return
	}
	s.closed = true
	if err := s.sink.Close(); err != nil {
		log.Error("Failed to close audit sink", zap.Error(err))
	}
	if s.store != nil {
		if err := s.store.Close(); err != nil {
			log.Error("Failed to close shared store", zap.Error(err))
		}
	}
}

// buildJobs pairs inputs with outputs; missing outputs are derived from
// the input name
func buildJobs(inputs, outputs string) ([]batch.Job, error) {
	in := splitList(inputs)
	out := splitList(outputs)
	if len(out) > 0 && len(out) != len(in) {
		return nil, fmt.Errorf("%d inputs but %d outputs", len(in), len(out))
	}

	jobs := make([]batch.Job, len(in))
	for i, input := range in {
		jobs[i].Input = input
		if len(out) > 0 {
			jobs[i].Output = out[i]
			continue
		}
		ext := filepath.Ext(input)
		jobs[i].Output = strings.TrimSuffix(input, ext) + ".pseudo" + ext
	}
	return jobs, nil
}

func splitList(s string) []string {
	var items []string
	for _, item := range strings.Split(s, ",") {
		if item = strings.TrimSpace(item); item != "" {
			items = append(items, item)
		}
	}
	return items
}

func pickInt(flagValue, configValue int) int {
	if flagValue > 0 {
		return flagValue
	}
	return configValue
}

func pickSeed(flagValue, configValue int64) int64 {
	if flagValue != 0 {
		return flagValue
	}
	return configValue
}

func newLogger(cfg *config.Config) (*logger.Logger, error) {
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
	return logger.New(loggerConfig)
}
