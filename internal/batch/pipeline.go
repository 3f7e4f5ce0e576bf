// Package batch runs one pseudonymization session over a set of span
// tables, the offline counterpart of the HTTP surface.
package batch

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/raaihank/rcp-pseudonymizer/internal/audit"
	"github.com/raaihank/rcp-pseudonymizer/internal/pseudonym"
	"go.uber.org/zap"
)

// Pipeline resolves span tables through a single session
type Pipeline struct {
	options pseudonym.Options
	sink    audit.Sink
	config  *Config
	logger  *zap.Logger

	processed atomic.Int64
}

// NewPipeline creates a pipeline. Every run opens its own session from
// options.
func NewPipeline(options pseudonym.Options, sink audit.Sink, config *Config, logger *zap.Logger) *Pipeline {
	if config.BatchSize <= 0 {
		config.BatchSize = 1000
	}
	if config.WorkerCount <= 0 {
		config.WorkerCount = 1
	}
	if sink == nil {
		sink = audit.NopSink{}
	}
	options.Logger = logger
	return &Pipeline{options: options, sink: sink, config: config, logger: logger}
}

// ProcessFile runs a one-table document set
func (p *Pipeline) ProcessFile(ctx context.Context, input, output string) (*ProcessingResult, error) {
	return p.Run(ctx, []Job{{Input: input, Output: output}})
}

// Run processes every job with the same session, so an identifier that
// appears in several tables gets the same substitute everywhere. The session
// is closed and its state discarded when Run returns.
func (p *Pipeline) Run(ctx context.Context, jobs []Job) (*ProcessingResult, error) {
	session, err := pseudonym.Open(p.options)
	if err != nil {
		return nil, fmt.Errorf("failed to open session: %w", err)
	}

	start := time.Now()
	result := &ProcessingResult{
		SessionID:   session.ID(),
		PerCategory: make(map[string]int64),
	}
	logger := p.logger.With(zap.String("session_id", session.ID()))

	logger.Info("Starting pseudonymization run",
		zap.Int("tables", len(jobs)),
		zap.Int("batch_size", p.config.BatchSize),
		zap.Int("workers", p.config.WorkerCount),
		zap.Bool("dry_run", p.config.DryRun))

	p.processed.Store(0)
	stopProgress := p.reportProgress(logger, start)

	var runErr error
	for _, job := range jobs {
		if err := p.processJob(ctx, session, job, result); err != nil {
			runErr = fmt.Errorf("%s: %w", job.Input, err)
			result.Errors = append(result.Errors, runErr.Error())
			break
		}
		result.Files++
	}
	stopProgress()

	diags := session.Diagnostics()
	result.Unparsed = len(diags)
	if len(diags) > 0 {
		records := audit.FromDiagnostics(session.ID(), diags)
		if err := p.sink.Write(ctx, records); err != nil {
			logger.Error("Failed to write audit records", zap.Error(err))
			result.Errors = append(result.Errors, err.Error())
		} else {
			result.AuditRecords = len(records)
		}
	}

	if err := session.Close(ctx); err != nil {
		logger.Warn("Session close reported an error", zap.Error(err))
	}
	result.Duration = time.Since(start)

	logger.Info("Pseudonymization run completed",
		zap.Int("tables", result.Files),
		zap.Int64("total_rows", result.TotalRows),
		zap.Int64("resolved", result.Resolved),
		zap.Int64("passthrough", result.Passthrough),
		zap.Int64("failed", result.Failed),
		zap.Int("unparsed_dates", result.Unparsed),
		zap.Duration("total_duration", result.Duration),
		zap.Duration("resolve_time", result.ResolveTime),
		zap.Duration("write_time", result.WriteTime))

	return result, runErr
}

func (p *Pipeline) processJob(ctx context.Context, session *pseudonym.Session, job Job, result *ProcessingResult) error {
	format := DetectFileFormat(job.Input)
	p.logger.Info("Processing span table",
		zap.String("file", job.Input),
		zap.String("format", string(format)))

	reader, err := openReader(job.Input)
	if err != nil {
		return err
	}
	defer reader.Close()

	var writer rowWriter
	if !p.config.DryRun {
		writer, err = createWriter(job.Output)
		if err != nil {
			return err
		}
	}

	err = p.processBatches(ctx, session, reader, writer, result)
	if writer != nil {
		if cerr := writer.Close(); cerr != nil && err == nil {
			err = fmt.Errorf("failed to finalize output table: %w", cerr)
		}
	}
	return err
}

// processBatches reads, resolves and writes batch by batch until the reader
// is drained
func (p *Pipeline) processBatches(ctx context.Context, session *pseudonym.Session, reader rowReader, writer rowWriter, result *ProcessingResult) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		batch, err := reader.Read(p.config.BatchSize)
		if err != nil {
			return fmt.Errorf("failed to read batch: %w", err)
		}
		if len(batch) == 0 {
			return nil
		}

		resolveStart := time.Now()
		p.processBatch(ctx, session, batch, result)
		result.ResolveTime += time.Since(resolveStart)

		if writer != nil {
			writeStart := time.Now()
			if err := writer.Write(batch); err != nil {
				return fmt.Errorf("failed to write batch: %w", err)
			}
			result.WriteTime += time.Since(writeStart)
		}
	}
}

// processBatch fills Substitute for every row in place. Workers pick row
// indices, so the batch keeps its order.
func (p *Pipeline) processBatch(ctx context.Context, session *pseudonym.Session, batch []SpanRow, result *ProcessingResult) {
	var (
		mu          sync.Mutex
		wg          sync.WaitGroup
		resolved    int64
		passthrough int64
		failed      int64
		perCategory = make(map[string]int64)
	)

	indices := make(chan int)
	workers := p.config.WorkerCount
	if workers > len(batch) {
		workers = len(batch)
	}

	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range indices {
				row := &batch[i]
				category := pseudonym.ParseLabel(row.Category)
				out, err := session.Pseudonymize(pseudonym.WithDocument(ctx, row.Document), row.Text, category)

				mu.Lock()
				switch {
				case err != nil:
					// A failed row never carries its original text out
					failed++
					row.Substitute = ""
				case category == pseudonym.CategoryOther:
					passthrough++
					row.Substitute = out
				default:
					resolved++
					perCategory[string(category)]++
					row.Substitute = out
				}
				mu.Unlock()
				p.processed.Add(1)
			}
		}()
	}

	for i := range batch {
		indices <- i
	}
	close(indices)
	wg.Wait()

	result.TotalRows += int64(len(batch))
	result.Resolved += resolved
	result.Passthrough += passthrough
	result.Failed += failed
	for k, v := range perCategory {
		result.PerCategory[k] += v
	}
}

// reportProgress logs throughput periodically until the returned func is
// called
func (p *Pipeline) reportProgress(logger *zap.Logger, start time.Time) func() {
	if p.config.ProgressReport <= 0 {
		return func() {}
	}

	done := make(chan struct{})
	ticker := time.NewTicker(p.config.ProgressReport)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-done:
				return
			case <-ticker.C:
				elapsed := time.Since(start)
				n := p.processed.Load()
				logger.Info("Processing progress",
					zap.Int64("rows_processed", n),
					zap.Float64("rate_per_sec", float64(n)/elapsed.Seconds()),
					zap.Duration("elapsed", elapsed))
			}
		}
	}()

	var once sync.Once
	return func() { once.Do(func() { close(done) }) }
}
