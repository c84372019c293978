package repository

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/example/id-verify/internal/logging"
)

// VerificationReportLog is one persisted verification verdict.
type VerificationReportLog struct {
	ID             uint      `gorm:"primaryKey"`
	RequestID      string    `gorm:"column:request_id;uniqueIndex;size:64"`
	UserID         string    `gorm:"column:user_id;index;size:64"`
	Status         string    `gorm:"column:status;size:16"`
	OverallSuccess bool      `gorm:"column:overall_success"`
	Similarity     float64   `gorm:"column:similarity"`
	FaceMatch      bool      `gorm:"column:face_match"`
	FaceError      string    `gorm:"column:face_error;size:255"`
	DocumentValid  bool      `gorm:"column:document_valid"`
	DocumentErrors string    `gorm:"column:document_errors;type:text"`
	DocumentType   string    `gorm:"column:document_type;size:64"`
	DocumentSHA1   string    `gorm:"column:document_sha1;index;size:40"`
	CreatedAt      time.Time `gorm:"column:created_at"`
}

// TableName overrides the default table name.
func (VerificationReportLog) TableName() string {
	return "verification_reports"
}

// VerificationRepository provides persistence APIs for verification reports.
type VerificationRepository struct {
	db             *gorm.DB
	logger         *zap.Logger
	retryAttempts  int
	initialBackoff time.Duration
	maxBackoff     time.Duration
}

// NewVerificationRepository creates a new repository instance.
func NewVerificationRepository(db *gorm.DB, logger *zap.Logger) *VerificationRepository {
	return &VerificationRepository{
		db:             db,
		logger:         logger.Named("verification_repository"),
		retryAttempts:  3,
		initialBackoff: 50 * time.Millisecond,
		maxBackoff:     time.Second,
	}
}

// AutoMigrate ensures the schema is available.
func (r *VerificationRepository) AutoMigrate(ctx context.Context) error {
	return r.db.WithContext(ctx).AutoMigrate(&VerificationReportLog{})
}

// SaveReport persists one verification report.
func (r *VerificationRepository) SaveReport(ctx context.Context, report *VerificationReportLog) error {
	return r.executeWithRetry(ctx, "repository.save_report", report.RequestID, func() error {
		return r.db.WithContext(ctx).Create(report).Error
	})
}

// FindByRequestIDAndUser retrieves a report matching the request and owner.
func (r *VerificationRepository) FindByRequestIDAndUser(ctx context.Context, requestID, userID string) (*VerificationReportLog, error) {
	var report VerificationReportLog
	err := r.executeWithRetry(ctx, "repository.find_report", requestID, func() error {
		return r.db.WithContext(ctx).First(&report, "request_id = ? AND user_id = ?", requestID, userID).Error
	})
	if err != nil {
		return nil, err
	}
	return &report, nil
}

// FindDuplicatesByHash retrieves the user's other reports whose submitted
// document image carries the same hash, excluding the request being inspected.
func (r *VerificationRepository) FindDuplicatesByHash(ctx context.Context, userID, documentSHA1, excludeRequestID string) ([]*VerificationReportLog, error) {
	if documentSHA1 == "" {
		return nil, nil
	}
	var reports []*VerificationReportLog
	err := r.executeWithRetry(ctx, "repository.find_duplicates", excludeRequestID, func() error {
		return r.db.WithContext(ctx).
			Where("user_id = ? AND document_sha1 = ? AND request_id <> ?", userID, documentSHA1, excludeRequestID).
			Order("created_at DESC").
			Find(&reports).Error
	})
	if err != nil {
		return nil, err
	}
	return reports, nil
}

// MetricsAggregation holds the raw aggregates computed over all persisted reports.
type MetricsAggregation struct {
	TotalCount        int64   `gorm:"column:total_count"`
	VerifiedCount     int64   `gorm:"column:verified_count"`
	AverageSimilarity float64 `gorm:"column:average_similarity"`
}

// AggregateMetrics computes verdict counts and the average similarity across
// all persisted verification reports.
func (r *VerificationRepository) AggregateMetrics(ctx context.Context) (*MetricsAggregation, error) {
	var aggregation MetricsAggregation
	err := r.executeWithRetry(ctx, "repository.aggregate_metrics", "", func() error {
		return r.db.WithContext(ctx).
			Model(&VerificationReportLog{}).
			Select("COUNT(*) AS total_count, " +
				"COALESCE(SUM(CASE WHEN overall_success THEN 1 ELSE 0 END), 0) AS verified_count, " +
				"COALESCE(AVG(similarity), 0) AS average_similarity").
			Scan(&aggregation).Error
	})
	if err != nil {
		return nil, err
	}
	return &aggregation, nil
}

func (r *VerificationRepository) executeWithRetry(ctx context.Context, operation, requestID string, fn func() error) error {
	if r.retryAttempts <= 1 {
		return logging.NewOperationError(operation, requestID, fn())
	}

	backoff := r.initialBackoff
	opLogger := logging.WithOperation(r.logger, operation, requestID)
	var err error
	for attempt := 0; attempt < r.retryAttempts; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return logging.NewOperationError(operation, requestID, ctx.Err())
			case <-time.After(backoff):
			}
			if next := backoff * 2; next <= r.maxBackoff {
				backoff = next
			}
		}

		err = fn()
		if err == nil {
			if attempt > 0 {
				opLogger.Info("database operation succeeded after retry", zap.Int("attempt", attempt+1))
			}
			return nil
		}

		if !isTransientError(err) || attempt == r.retryAttempts-1 {
			opLogger.Error("database operation failed", zap.Error(err), zap.Int("attempt", attempt+1))
			return logging.NewOperationError(operation, requestID, err)
		}

		opLogger.Warn("transient database error", zap.Error(err), zap.Int("attempt", attempt+1))
	}
	return logging.NewOperationError(operation, requestID, err)
}

func isTransientError(err error) bool {
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
