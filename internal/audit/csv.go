package audit

import (
	"context"
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"go.uber.org/zap"
)

var csvHeader = []string{"run_id", "document", "category", "original", "status", "recorded_at"}

// CSVSink appends records to a CSV file, writing the header when the file
// is new
type CSVSink struct {
	mu     sync.Mutex
	file   *os.File
	writer *csv.Writer
	logger *zap.Logger
}

// NewCSVSink opens path for appending
func NewCSVSink(path string, logger *zap.Logger) (*CSVSink, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return nil, fmt.Errorf("failed to create audit directory: %w", err)
	}

	file, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0600)
	if err != nil {
		return nil, fmt.Errorf("failed to open audit file: %w", err)
	}

	info, err := file.Stat()
	if err != nil {
		file.Close()
		return nil, fmt.Errorf("failed to stat audit file: %w", err)
	}

	sink := &CSVSink{file: file, writer: csv.NewWriter(file), logger: logger}
	if info.Size() == 0 {
		if err := sink.writer.Write(csvHeader); err != nil {
			file.Close()
			return nil, fmt.Errorf("failed to write audit header: %w", err)
		}
		sink.writer.Flush()
	}

	logger.Info("CSV audit sink opened", zap.String("path", path))
	return sink, nil
}

// Write implements Sink
func (s *CSVSink) Write(_ context.Context, records []Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, r := range records {
		row := []string{r.RunID, r.Document, r.Category, r.Original, r.Status, r.RecordedAt.UTC().Format(time.RFC3339)}
		if err := s.writer.Write(row); err != nil {
			return fmt.Errorf("failed to write audit record: %w", err)
		}
	}
	s.writer.Flush()
	if err := s.writer.Error(); err != nil {
		return fmt.Errorf("failed to flush audit records: %w", err)
	}

	s.logger.Debug("Audit records written", zap.Int("count", len(records)))
	return nil
}

// Close implements Sink
func (s *CSVSink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.writer.Flush()
	return s.file.Close()
}
