package worker

import (
	"context"
	"errors"
)

// ErrMetricsUnavailable is returned when no job repository is configured.
var ErrMetricsUnavailable = errors.New("job metrics unavailable")

// MetricsSummary represents aggregated job insights.
type MetricsSummary struct {
	TotalJobs           int64            `json:"total_jobs"`
	SucceededJobs       int64            `json:"succeeded_jobs"`
	SuccessRate         float64          `json:"success_rate"`
	AverageFeatureCount float64          `json:"average_feature_count"`
	FailuresByCategory  map[string]int64 `json:"failures_by_category"`
}

// GetMetricsSummary aggregates job metrics from persisted logs.
func (w *Worker) GetMetricsSummary(ctx context.Context) (*MetricsSummary, error) {
	if w.repo == nil {
		return nil, ErrMetricsUnavailable
	}
	aggregation, err := w.repo.AggregateMetrics(ctx, StatusSucceeded)
	if err != nil {
		return nil, err
	}

	summary := &MetricsSummary{
		TotalJobs:           aggregation.TotalCount,
		SucceededJobs:       aggregation.SuccessCount,
		AverageFeatureCount: aggregation.AverageFeatureCount,
		FailuresByCategory:  aggregation.FailuresByCategory,
	}
	if summary.FailuresByCategory == nil {
		summary.FailuresByCategory = map[string]int64{}
	}

	if aggregation.TotalCount > 0 {
		summary.SuccessRate = float64(aggregation.SuccessCount) / float64(aggregation.TotalCount)
	}

	return summary, nil
}
