package worker

import (
	"context"
	"errors"
	"time"

	"github.com/sethvargo/go-retry"
	"go.uber.org/zap"

	"github.com/example/assetmeta/internal/classifier"
	"github.com/example/assetmeta/internal/logging"
	"github.com/example/assetmeta/internal/repository"
)

const recordTimeout = 10 * time.Second

// ErrJobNotFound is returned by GetJob for unknown job ids.
var ErrJobNotFound = errors.New("job not found")

// JobRecord is the outcome of a job as exposed to the harness.
type JobRecord struct {
	JobID         string    `json:"job_id"`
	Status        string    `json:"status"`
	Category      string    `json:"category,omitempty"`
	Kind          string    `json:"kind,omitempty"`
	ClassifierID  string    `json:"classifier_id,omitempty"`
	CorrelationID string    `json:"correlation_id,omitempty"`
	Message       string    `json:"message,omitempty"`
	FeatureCount  int       `json:"feature_count"`
	CreatedAt     time.Time `json:"created_at"`
}

func newJobRecord(jobID string, result *Result, err error) JobRecord {
	rec := JobRecord{JobID: jobID, CreatedAt: time.Now().UTC()}
	if err != nil {
		rec.Status = StatusFailed
		rec.Category = FailureCategory(err)
		rec.ClassifierID = classifier.ClassifierIDOf(err)
		rec.CorrelationID = classifier.CorrelationID(err)
		rec.Message = err.Error()
		return rec
	}
	rec.Status = StatusSucceeded
	rec.Kind = string(result.Kind)
	rec.FeatureCount = result.FeatureCount
	return rec
}

// record publishes the job outcome. Failures are logged and never change the
// job result.
func (w *Worker) record(ctx context.Context, jobID string, result *Result, jobErr error) {
	if w.cache == nil && w.repo == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), recordTimeout)
	defer cancel()

	rec := newJobRecord(jobID, result, jobErr)
	opLogger := logging.WithOperation(w.logger, "worker.record", jobID)

	if w.repo != nil {
		if err := w.repo.SaveLog(ctx, toLog(rec)); err != nil {
			opLogger.Error("failed to persist job log", logging.ErrorFields(err)...)
		}
	}
	if w.cache != nil {
		if err := w.withRedisRetry(ctx, jobID, "cache.set.job", func() error {
			return putJobRecord(ctx, w.cache, rec, w.resultTTL)
		}); err != nil {
			opLogger.Error("failed to cache job record", logging.ErrorFields(err)...)
		}
	}
}

// GetJob returns a recorded job outcome from the cache, falling back to the
// repository.
func (w *Worker) GetJob(ctx context.Context, jobID string) (*JobRecord, error) {
	opLogger := logging.WithOperation(w.logger, "worker.get_job", jobID)
	if w.cache != nil {
		var rec *JobRecord
		err := w.withRedisRetry(ctx, jobID, "cache.get.job", func() error {
			var getErr error
			rec, getErr = getJobRecord(ctx, w.cache, jobID)
			return getErr
		})
		if err == nil {
			return rec, nil
		}
		if !IsCacheMiss(err) {
			opLogger.Warn("failed to read cached job record", logging.ErrorFields(err)...)
		}
	}
	if w.repo == nil {
		return nil, ErrJobNotFound
	}
	log, err := w.repo.FindByJobID(ctx, jobID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrJobNotFound
		}
		return nil, err
	}
	rec := fromLog(log)
	return &rec, nil
}

func (w *Worker) withRedisRetry(ctx context.Context, jobID, operation string, fn func() error) error {
	opLogger := logging.WithOperation(w.logger, operation, jobID)
	backoff := retry.WithMaxRetries(2, retry.WithCappedDuration(time.Second, retry.NewExponential(50*time.Millisecond)))
	attempt := 0
	err := retry.Do(ctx, backoff, func(ctx context.Context) error {
		attempt++
		err := fn()
		if err == nil || IsCacheMiss(err) {
			return err
		}
		if repository.IsTransientError(err) {
			opLogger.Warn("transient redis error", zap.Error(err), zap.Int("attempt", attempt))
			return retry.RetryableError(err)
		}
		return err
	})
	if err == nil || IsCacheMiss(err) {
		return err
	}
	return logging.NewOperationError(operation, jobID, err)
}

func toLog(rec JobRecord) *repository.JobLog {
	return &repository.JobLog{
		JobID:         rec.JobID,
		Status:        rec.Status,
		Category:      rec.Category,
		Kind:          rec.Kind,
		ClassifierID:  rec.ClassifierID,
		CorrelationID: rec.CorrelationID,
		Message:       rec.Message,
		FeatureCount:  rec.FeatureCount,
		CreatedAt:     rec.CreatedAt,
	}
}

func fromLog(log *repository.JobLog) JobRecord {
	return JobRecord{
		JobID:         log.JobID,
		Status:        log.Status,
		Category:      log.Category,
		Kind:          log.Kind,
		ClassifierID:  log.ClassifierID,
		CorrelationID: log.CorrelationID,
		Message:       log.Message,
		FeatureCount:  log.FeatureCount,
		CreatedAt:     log.CreatedAt,
	}
}
