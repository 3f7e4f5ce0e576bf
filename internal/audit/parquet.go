package audit

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/segmentio/parquet-go"
	"go.uber.org/zap"
)

// parquetRecord is the on-disk row; timestamps are stored as Unix
// milliseconds
type parquetRecord struct {
	RunID        string `parquet:"run_id"`
	Document     string `parquet:"document"`
	Category     string `parquet:"category"`
	Original     string `parquet:"original"`
	Status       string `parquet:"status"`
	RecordedAtMS int64  `parquet:"recorded_at_ms"`
}

// ParquetSink writes records to a new Parquet file. The file is only
// readable after Close writes the footer.
type ParquetSink struct {
	mu     sync.Mutex
	file   *os.File
	writer *parquet.GenericWriter[parquetRecord]
	rows   int
	logger *zap.Logger
}

// NewParquetSink creates path, replacing an existing file
func NewParquetSink(path string, logger *zap.Logger) (*ParquetSink, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return nil, fmt.Errorf("failed to create audit directory: %w", err)
	}

	file, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0600)
	if err != nil {
		return nil, fmt.Errorf("failed to create audit file: %w", err)
	}

	logger.Info("Parquet audit sink opened", zap.String("path", path))
	return &ParquetSink{
		file:   file,
		writer: parquet.NewGenericWriter[parquetRecord](file),
		logger: logger,
	}, nil
}

// Write implements Sink
func (s *ParquetSink) Write(_ context.Context, records []Record) error {
	rows := make([]parquetRecord, len(records))
	for i, r := range records {
		rows[i] = parquetRecord{
			RunID:        r.RunID,
			Document:     r.Document,
			Category:     r.Category,
			Original:     r.Original,
			Status:       r.Status,
			RecordedAtMS: r.RecordedAt.UnixMilli(),
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	n, err := s.writer.Write(rows)
	s.rows += n
	if err != nil {
		return fmt.Errorf("failed to write audit rows: %w", err)
	}
	return nil
}

// Close flushes the footer and closes the file
func (s *ParquetSink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.writer.Close(); err != nil {
		s.file.Close()
		return fmt.Errorf("failed to finalize audit file: %w", err)
	}
	s.logger.Info("Parquet audit sink closed", zap.Int("rows", s.rows))
	return s.file.Close()
}

// ReadParquet loads records written by a ParquetSink
func ReadParquet(path string) ([]Record, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open audit file: %w", err)
	}
	defer file.Close()

	reader := parquet.NewGenericReader[parquetRecord](file)
	defer reader.Close()

	rows := make([]parquetRecord, reader.NumRows())
	if len(rows) > 0 {
		if _, err := reader.Read(rows); err != nil && !isEOF(err) {
			return nil, fmt.Errorf("failed to read audit rows: %w", err)
		}
	}

	records := make([]Record, len(rows))
	for i, r := range rows {
		records[i] = Record{
			RunID:      r.RunID,
			Document:   r.Document,
			Category:   r.Category,
			Original:   r.Original,
			Status:     r.Status,
			RecordedAt: time.UnixMilli(r.RecordedAtMS).UTC(),
		}
	}
	return records, nil
}

func isEOF(err error) bool {
	return errors.Is(err, io.EOF)
}
