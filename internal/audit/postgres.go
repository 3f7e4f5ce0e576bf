package audit

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	"go.uber.org/zap"
)

const recordColumns = 6

var tableNameRe = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// PostgresSink stores records in a PostgreSQL table
type PostgresSink struct {
	db        *sqlx.DB
	table     string
	batchSize int
	logger    *zap.Logger
}

// NewPostgresSink connects to the database and creates the audit table if
// needed
func NewPostgresSink(config *Config, logger *zap.Logger) (*PostgresSink, error) {
	db, err := sqlx.Connect("postgres", config.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	if config.MaxConns > 0 {
		db.SetMaxOpenConns(config.MaxConns)
		db.SetMaxIdleConns(config.MaxConns)
	}
	db.SetConnMaxLifetime(time.Hour)

	sink, err := newPostgresSink(db, config, logger)
	if err != nil {
		db.Close()
		return nil, err
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := sink.initialize(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize audit table: %w", err)
	}

	logger.Info("Postgres audit sink initialized",
		zap.String("database_url", maskDatabaseURL(config.DatabaseURL)),
		zap.String("table", sink.table),
		zap.Int("max_conns", config.MaxConns))

	return sink, nil
}

func newPostgresSink(db *sqlx.DB, config *Config, logger *zap.Logger) (*PostgresSink, error) {
	table := config.Table
	if table == "" {
		table = "unparsed_dates"
	}
	if !tableNameRe.MatchString(table) {
		return nil, fmt.Errorf("invalid audit table name: %q", table)
	}
	batchSize := config.BatchSize
	if batchSize <= 0 {
		batchSize = 500
	}
	return &PostgresSink{db: db, table: table, batchSize: batchSize, logger: logger}, nil
}

func (s *PostgresSink) initialize(ctx context.Context) error {
	query := fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS %s (
			id BIGSERIAL PRIMARY KEY,
			run_id TEXT NOT NULL,
			document TEXT NOT NULL DEFAULT '',
			category TEXT NOT NULL,
			original TEXT NOT NULL,
			status TEXT NOT NULL,
			recorded_at TIMESTAMPTZ NOT NULL
		)`, s.table)

	if _, err := s.db.ExecContext(ctx, query); err != nil {
		return err
	}
	return nil
}

// Write inserts records in multi-row batches
func (s *PostgresSink) Write(ctx context.Context, records []Record) error {
	start := time.Now()
	var inserted int64

	for i := 0; i < len(records); i += s.batchSize {
		end := i + s.batchSize
		if end > len(records) {
			end = len(records)
		}

		n, err := s.insertBatch(ctx, records[i:end])
		if err != nil {
			s.logger.Error("Audit batch insert failed", zap.Error(err), zap.Int("batch_size", end-i))
			return fmt.Errorf("audit batch insert failed: %w", err)
		}
		inserted += n
	}

	s.logger.Debug("Audit records inserted",
		zap.Int64("inserted", inserted),
		zap.Duration("duration", time.Since(start)))
	return nil
}

func (s *PostgresSink) insertBatch(ctx context.Context, batch []Record) (int64, error) {
	valueStrings := make([]string, 0, len(batch))
	valueArgs := make([]interface{}, 0, len(batch)*recordColumns)

	for i, r := range batch {
		n := i * recordColumns
		valueStrings = append(valueStrings, fmt.Sprintf("($%d, $%d, $%d, $%d, $%d, $%d)", n+1, n+2, n+3, n+4, n+5, n+6))
		valueArgs = append(valueArgs, r.RunID, r.Document, r.Category, r.Original, r.Status, r.RecordedAt)
	}

	query := fmt.Sprintf(`
		INSERT INTO %s (run_id, document, category, original, status, recorded_at)
		VALUES %s`, s.table, strings.Join(valueStrings, ","))

	res, err := s.db.ExecContext(ctx, query, valueArgs...)
	if err != nil {
		return 0, err
	}

	inserted, err := res.RowsAffected()
	if err != nil {
		s.logger.Warn("Could not get rows affected", zap.Error(err))
		inserted = int64(len(batch))
	}
	return inserted, nil
}

// RecordsForRun returns the records of one run in insertion order
func (s *PostgresSink) RecordsForRun(ctx context.Context, runID string) ([]Record, error) {
	query := fmt.Sprintf(`
		SELECT run_id, document, category, original, status, recorded_at
		FROM %s WHERE run_id = $1 ORDER BY id`, s.table)

	var records []Record
	if err := s.db.SelectContext(ctx, &records, query, runID); err != nil {
		return nil, fmt.Errorf("failed to load audit records: %w", err)
	}
	return records, nil
}

// Close closes the database connection
func (s *PostgresSink) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// maskDatabaseURL masks the password of a database URL for logging
func maskDatabaseURL(url string) string {
	if strings.Contains(url, "@") {
		parts := strings.Split(url, "@")
		if len(parts) >= 2 {
			userPart := parts[0]
			if strings.Contains(userPart, ":") {
				userParts := strings.Split(userPart, ":")
				if len(userParts) >= 3 {
					userParts[len(userParts)-1] = "***"
					parts[0] = strings.Join(userParts, ":")
				}
			}
			return strings.Join(parts, "@")
		}
	}
	return url
}
