package worker

import (
	"errors"
	"fmt"

	"github.com/example/assetmeta/internal/classifier"
	"github.com/example/assetmeta/internal/envelope"
	"github.com/example/assetmeta/internal/features"
)

// Failure categories reported to the harness.
const (
	CategorySourceCorrupt = "source_corrupt"
	CategoryClassifier    = "classifier_error"
	CategoryConfiguration = "configuration_error"
	CategoryGeneric       = "generic_error"
)

// SourceCorruptError reports an empty or unreadable source asset.
type SourceCorruptError struct {
	Path string
	Err  error
}

func (e *SourceCorruptError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("source asset %s is corrupt: %v", e.Path, e.Err)
	}
	return fmt.Sprintf("source asset %s is corrupt: zero length", e.Path)
}

func (e *SourceCorruptError) Unwrap() error { return e.Err }

// ConfigurationError reports job instructions that cannot be resolved.
type ConfigurationError struct {
	Err error
}

func (e *ConfigurationError) Error() string { return "invalid job configuration: " + e.Err.Error() }

func (e *ConfigurationError) Unwrap() error { return e.Err }

// FailureCategory maps a job error to the category the harness records.
func FailureCategory(err error) string {
	var (
		corrupt   *SourceCorruptError
		callErr   *classifier.CallError
		malformed *envelope.MalformedResponseError
		invalid   *features.InvalidFeatureError
		cfgErr    *ConfigurationError
	)
	switch {
	case err == nil:
		return ""
	case errors.As(err, &corrupt):
		return CategorySourceCorrupt
	case errors.As(err, &callErr), errors.As(err, &malformed), errors.As(err, &invalid):
		return CategoryClassifier
	case errors.As(err, &cfgErr):
		return CategoryConfiguration
	default:
		return CategoryGeneric
	}
}
