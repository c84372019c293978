package usecase

import "context"

// MetricsSummary represents aggregated verification insights.
type MetricsSummary struct {
	TotalRequests     int64   `json:"total_requests"`
	VerifiedRequests  int64   `json:"verified_requests"`
	VerifiedRate      float64 `json:"verified_rate"`
	AverageSimilarity float64 `json:"average_similarity"`
}

// GetMetricsSummary aggregates verdict counts and similarity over all
// persisted verification reports.
func (uc *VerificationUseCase) GetMetricsSummary(ctx context.Context) (*MetricsSummary, error) {
	aggregation, err := uc.repo.AggregateMetrics(ctx)
	if err != nil {
		return nil, err
	}

	summary := &MetricsSummary{
		TotalRequests:     aggregation.TotalCount,
		VerifiedRequests:  aggregation.VerifiedCount,
		AverageSimilarity: aggregation.AverageSimilarity,
	}

	if aggregation.TotalCount > 0 {
		summary.VerifiedRate = float64(aggregation.VerifiedCount) / float64(aggregation.TotalCount)
	}

	return summary, nil
}
