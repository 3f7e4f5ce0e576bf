package batch

import (
	"path/filepath"
	"strings"
	"time"
)

// SpanRow is one recognized span of a document-set run. Substitute is
// filled by the pipeline and left empty when the span could not be resolved.
type SpanRow struct {
	Document   string `parquet:"document" json:"document"`
	Page       int64  `parquet:"page" json:"page"`
	Text       string `parquet:"text" json:"text"`
	Category   string `parquet:"category" json:"category"`
	Substitute string `parquet:"substitute" json:"substitute"`
}

// ProcessingResult represents the result of a run
type ProcessingResult struct {
	SessionID    string           `json:"session_id"`
	Files        int              `json:"files"`
	TotalRows    int64            `json:"total_rows"`
	Resolved     int64            `json:"resolved"`
	Passthrough  int64            `json:"passthrough"`
	Failed       int64            `json:"failed"`
	Unparsed     int              `json:"unparsed_dates"`
	PerCategory  map[string]int64 `json:"per_category"`
	Duration     time.Duration    `json:"duration"`
	ResolveTime  time.Duration    `json:"resolve_time"`
	WriteTime    time.Duration    `json:"write_time"`
	AuditRecords int              `json:"audit_records"`
	Errors       []string         `json:"errors,omitempty"`
}

// Config contains pipeline configuration
type Config struct {
	BatchSize      int           `yaml:"batch_size" mapstructure:"batch_size"`
	WorkerCount    int           `yaml:"worker_count" mapstructure:"worker_count"`
	ProgressReport time.Duration `yaml:"progress_report" mapstructure:"progress_report"`
	// DryRun resolves every span but writes no output table
	DryRun bool `yaml:"dry_run" mapstructure:"dry_run"`
}

// Job pairs an input span table with the table to write
type Job struct {
	Input  string
	Output string
}

// FileFormat represents supported file formats
type FileFormat string

const (
	FormatCSV     FileFormat = "csv"
	FormatParquet FileFormat = "parquet"
	FormatJSON    FileFormat = "jsonl"
)

// DetectFileFormat detects file format from extension
func DetectFileFormat(filename string) FileFormat {
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".parquet":
		return FormatParquet
	case ".jsonl", ".json", ".ndjson":
		return FormatJSON
	default:
		return FormatCSV
	}
}
