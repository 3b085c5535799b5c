package logging

import (
	"fmt"
	"strings"

	"go.uber.org/zap"
)

// NewLogger builds a production JSON logger at the given level. An empty
// level means info.
func NewLogger(level string) (*zap.Logger, error) {
	cfg := zap.NewProductionConfig()
	cfg.EncoderConfig.TimeKey = "timestamp"
	if level = strings.TrimSpace(level); level != "" {
		lvl, err := zap.ParseAtomicLevel(level)
		if err != nil {
			return nil, fmt.Errorf("invalid log level %q: %w", level, err)
		}
		cfg.Level = lvl
	}
	return cfg.Build()
}

// WithOperation enriches the logger with operation and job identifiers.
func WithOperation(logger *zap.Logger, operation, jobID string) *zap.Logger {
	fields := []zap.Field{zap.String("operation", operation)}
	if jobID != "" {
		fields = append(fields, zap.String("job_id", jobID))
	}
	return logger.With(fields...)
}

// WithClassifier scopes a job logger to one classifier call.
func WithClassifier(logger *zap.Logger, classifierID, url string) *zap.Logger {
	return logger.With(zap.String("classifier_id", classifierID), zap.String("url", url))
}
