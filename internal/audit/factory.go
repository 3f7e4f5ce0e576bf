package audit

import (
	"fmt"

	"go.uber.org/zap"
)

// NewSink builds the sink named by config.Sink
func NewSink(config *Config, logger *zap.Logger) (Sink, error) {
	switch config.Sink {
	case KindNone, "":
		return NopSink{}, nil
	case KindCSV:
		return NewCSVSink(config.Path, logger)
	case KindParquet:
		return NewParquetSink(config.Path, logger)
	case KindPostgres:
		return NewPostgresSink(config, logger)
	default:
		return nil, fmt.Errorf("unsupported audit sink: %s", config.Sink)
	}
}
