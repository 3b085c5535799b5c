package logging

import (
	"errors"
	"fmt"

	"go.uber.org/zap"
)

// OperationError annotates an infrastructure error with the operation and job it belongs to.
type OperationError struct {
	Operation string
	JobID     string
	Err       error
}

// Error implements the error interface.
func (e *OperationError) Error() string {
	if e == nil || e.Err == nil {
		return ""
	}
	if e.JobID != "" {
		return fmt.Sprintf("%s (job_id=%s): %v", e.Operation, e.JobID, e.Err)
	}
	return fmt.Sprintf("%s: %v", e.Operation, e.Err)
}

// Unwrap returns the underlying error for errors.Is/As support.
func (e *OperationError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// NewOperationError wraps an error with structured context about where it occurred.
func NewOperationError(operation, jobID string, err error) error {
	if err == nil {
		return nil
	}
	return &OperationError{Operation: operation, JobID: jobID, Err: err}
}

// ErrorFields describes err for a log entry. When err carries an
// OperationError the failed operation is added as its own field.
func ErrorFields(err error) []zap.Field {
	fields := []zap.Field{zap.Error(err)}
	var opErr *OperationError
	if errors.As(err, &opErr) {
		fields = append(fields, zap.String("failed_operation", opErr.Operation))
	}
	return fields
}
