package logging

import (
	"errors"
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestNewOperationErrorNil(t *testing.T) {
	if err := NewOperationError("cache.set", "job-1", nil); err != nil {
		t.Fatalf("expected nil, got %v", err)
	}
}

func TestOperationErrorMessageAndUnwrap(t *testing.T) {
	base := errors.New("boom")
	err := NewOperationError("cache.set", "job-1", base)
	if got := err.Error(); got != "cache.set (job_id=job-1): boom" {
		t.Fatalf("unexpected message: %s", got)
	}
	if !errors.Is(err, base) {
		t.Fatal("expected wrapped error to match")
	}

	err = NewOperationError("server.serve", "", base)
	if got := err.Error(); got != "server.serve: boom" {
		t.Fatalf("unexpected message without job id: %s", got)
	}
}

func TestWithOperationAddsFields(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	WithOperation(zap.New(core), "worker.process", "job-9").Info("hello")

	entries := logs.All()
	if len(entries) != 1 {
		t.Fatalf("expected 1 entry, got %d", len(entries))
	}
	fields := entries[0].ContextMap()
	if fields["operation"] != "worker.process" || fields["job_id"] != "job-9" {
		t.Fatalf("unexpected fields: %v", fields)
	}
}

func TestNewLoggerLevels(t *testing.T) {
	tests := []struct {
		level   string
		debug   bool
		wantErr bool
	}{
		{"", false, false},
		{"debug", true, false},
		{"warn", false, false},
		{"loud", false, true},
	}
	for _, tt := range tests {
		logger, err := NewLogger(tt.level)
		if (err != nil) != tt.wantErr {
			t.Fatalf("level %q: unexpected error state: %v", tt.level, err)
		}
		if tt.wantErr {
			continue
		}
		if got := logger.Core().Enabled(zapcore.DebugLevel); got != tt.debug {
			t.Fatalf("level %q: expected debug enabled=%v, got %v", tt.level, tt.debug, got)
		}
	}
}

func TestWithClassifierAddsFields(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	WithClassifier(zap.New(core), "tags", "https://sensei.test/tags").Debug("call")

	fields := logs.All()[0].ContextMap()
	if fields["classifier_id"] != "tags" || fields["url"] != "https://sensei.test/tags" {
		t.Fatalf("unexpected fields: %v", fields)
	}
}

func TestErrorFieldsIncludesFailedOperation(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	logger := zap.New(core)

	wrapped := NewOperationError("repository.save_log", "job-1", errors.New("db down"))
	logger.Error("failed", ErrorFields(wrapped)...)
	logger.Error("plain", ErrorFields(errors.New("boom"))...)

	entries := logs.All()
	if entries[0].ContextMap()["failed_operation"] != "repository.save_log" {
		t.Fatalf("unexpected fields: %v", entries[0].ContextMap())
	}
	if _, ok := entries[1].ContextMap()["failed_operation"]; ok {
		t.Fatalf("plain error must not carry an operation: %v", entries[1].ContextMap())
	}
}
