package repository

import (
	"context"
	"errors"
	"time"

	"github.com/sethvargo/go-retry"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/example/assetmeta/internal/logging"
)

// ErrNotFound is returned when no log exists for a job.
var ErrNotFound = errors.New("job log not found")

// JobLog represents the persisted outcome of one worker invocation.
type JobLog struct {
	ID            uint      `gorm:"primaryKey"`
	JobID         string    `gorm:"column:job_id;uniqueIndex;size:64"`
	Status        string    `gorm:"column:status;size:16"`
	Category      string    `gorm:"column:category;size:32"`
	Kind          string    `gorm:"column:kind;size:16"`
	ClassifierID  string    `gorm:"column:classifier_id;size:128"`
	CorrelationID string    `gorm:"column:correlation_id;size:128"`
	Message       string    `gorm:"column:message;type:text"`
	FeatureCount  int       `gorm:"column:feature_count"`
	CreatedAt     time.Time `gorm:"column:created_at"`
}

// TableName overrides the default table name.
func (JobLog) TableName() string {
	return "job_logs"
}

// JobRepository provides persistence APIs for job logs.
type JobRepository struct {
	db             *gorm.DB
	logger         *zap.Logger
	retryAttempts  int
	initialBackoff time.Duration
	maxBackoff     time.Duration
}

// NewJobRepository creates a new repository instance.
func NewJobRepository(db *gorm.DB, logger *zap.Logger) *JobRepository {
	return &JobRepository{
		db:             db,
		logger:         logger.Named("job_repository"),
		retryAttempts:  3,
		initialBackoff: 50 * time.Millisecond,
		maxBackoff:     time.Second,
	}
}

// AutoMigrate ensures the schema is available.
func (r *JobRepository) AutoMigrate(ctx context.Context) error {
	return r.executeWithRetry(ctx, "repository.auto_migrate", "", func() error {
		return r.db.WithContext(ctx).AutoMigrate(&JobLog{})
	})
}

// SaveLog persists a job log entry.
func (r *JobRepository) SaveLog(ctx context.Context, log *JobLog) error {
	return r.executeWithRetry(ctx, "repository.save_log", log.JobID, func() error {
		return r.db.WithContext(ctx).Create(log).Error
	})
}

// FindByJobID retrieves the log entry of a job.
func (r *JobRepository) FindByJobID(ctx context.Context, jobID string) (*JobLog, error) {
	var log JobLog
	err := r.executeWithRetry(ctx, "repository.find_by_job_id", jobID, func() error {
		return r.db.WithContext(ctx).First(&log, "job_id = ?", jobID).Error
	})
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &log, nil
}

// JobAggregation holds totals computed over all job logs.
type JobAggregation struct {
	TotalCount          int64
	SuccessCount        int64
	AverageFeatureCount float64
	FailuresByCategory  map[string]int64
}

type jobTotals struct {
	TotalCount          int64
	SuccessCount        int64
	AverageFeatureCount float64
}

type categoryCount struct {
	Category string
	Count    int64
}

// AggregateMetrics summarizes the persisted job logs. Jobs whose status equals
// successStatus count as successful; all others are grouped by category.
func (r *JobRepository) AggregateMetrics(ctx context.Context, successStatus string) (*JobAggregation, error) {
	agg := &JobAggregation{FailuresByCategory: make(map[string]int64)}
	err := r.executeWithRetry(ctx, "repository.aggregate_metrics", "", func() error {
		var (
			totals jobTotals
			rows   []categoryCount
		)
		if err := r.db.WithContext(ctx).Model(&JobLog{}).
			Select("COUNT(*) AS total_count, "+
				"COALESCE(SUM(CASE WHEN status = ? THEN 1 ELSE 0 END), 0) AS success_count, "+
				"COALESCE(AVG(CASE WHEN status = ? THEN feature_count END), 0) AS average_feature_count",
				successStatus, successStatus).
			Scan(&totals).Error; err != nil {
			return err
		}
		if err := r.db.WithContext(ctx).Model(&JobLog{}).
			Select("category, COUNT(*) AS count").
			Where("status <> ?", successStatus).
			Group("category").
			Scan(&rows).Error; err != nil {
			return err
		}
		agg.TotalCount = totals.TotalCount
		agg.SuccessCount = totals.SuccessCount
		agg.AverageFeatureCount = totals.AverageFeatureCount
		for _, row := range rows {
			agg.FailuresByCategory[row.Category] = row.Count
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return agg, nil
}

func (r *JobRepository) executeWithRetry(ctx context.Context, operation, jobID string, fn func() error) error {
	opLogger := logging.WithOperation(r.logger, operation, jobID)
	attempts := r.retryAttempts
	if attempts < 1 {
		attempts = 1
	}

	backoff := retry.WithCappedDuration(r.maxBackoff, retry.NewExponential(r.initialBackoff))
	backoff = retry.WithMaxRetries(uint64(attempts-1), backoff)

	attempt := 0
	err := retry.Do(ctx, backoff, func(ctx context.Context) error {
		attempt++
		err := fn()
		if err == nil {
			if attempt > 1 {
				opLogger.Info("database operation succeeded after retry", zap.Int("attempt", attempt))
			}
			return nil
		}
		if IsTransientError(err) {
			opLogger.Warn("transient database error", zap.Error(err), zap.Int("attempt", attempt))
			return retry.RetryableError(err)
		}
		return err
	})
	return logging.NewOperationError(operation, jobID, err)
}

// IsTransientError reports whether err is worth retrying.
func IsTransientError(err error) bool {
	if err == nil {
		return false
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}

	var netErr interface{ Timeout() bool }
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}

	var temporary interface{ Temporary() bool }
	if errors.As(err, &temporary) && temporary.Temporary() {
		return true
	}

	return false
}
