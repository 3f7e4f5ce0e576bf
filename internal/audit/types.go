// Package audit persists the spans a pseudonymization run could not
// transform, so operators can review them.
package audit

import (
	"context"
	"time"

	"github.com/raaihank/rcp-pseudonymizer/internal/pseudonym"
)

// Record is one untransformed span. Original is clinical text: sinks must
// only write to locations with the same protection as the source documents.
type Record struct {
	RunID      string    `json:"run_id" db:"run_id"`
	Document   string    `json:"document" db:"document"`
	Category   string    `json:"category" db:"category"`
	Original   string    `json:"original" db:"original"`
	Status     string    `json:"status" db:"status"`
	RecordedAt time.Time `json:"recorded_at" db:"recorded_at"`
}

// Sink receives audit records
type Sink interface {
	Write(ctx context.Context, records []Record) error
	Close() error
}

// Sink kinds accepted by NewSink
const (
	KindNone     = "none"
	KindCSV      = "csv"
	KindParquet  = "parquet"
	KindPostgres = "postgres"
)

// Config selects and configures a sink
type Config struct {
	Sink        string `yaml:"sink" mapstructure:"sink"`
	Path        string `yaml:"path" mapstructure:"path"`
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url"`
	Table       string `yaml:"table" mapstructure:"table"`
	MaxConns    int    `yaml:"max_conns" mapstructure:"max_conns"`
	BatchSize   int    `yaml:"batch_size" mapstructure:"batch_size"`
}

// FromDiagnostics converts session diagnostics into records of one run
func FromDiagnostics(runID string, diags []pseudonym.Diagnostic) []Record {
	records := make([]Record, 0, len(diags))
	for _, d := range diags {
		records = append(records, Record{
			RunID:      runID,
			Document:   d.Document,
			Category:   string(d.Category),
			Original:   d.Original,
			Status:     d.Status,
			RecordedAt: d.RecordedAt,
		})
	}
	return records
}

// NopSink discards records
type NopSink struct{}

// Write implements Sink
func (NopSink) Write(context.Context, []Record) error { return nil }

// Close implements Sink
func (NopSink) Close() error { return nil }
