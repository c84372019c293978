package usecase

import (
	"context"
	"crypto/sha1"
	"encoding/hex"
	"encoding/json"
	"errors"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/example/id-verify/internal/document"
	"github.com/example/id-verify/internal/facematch"
	"github.com/example/id-verify/internal/logging"
	"github.com/example/id-verify/internal/repository"
)

// Input validation errors, reported before any engine is called.
var (
	ErrMissingDocumentImage = errors.New("document image is required")
	ErrMissingSelfieImage   = errors.New("selfie image is required")
)

// DocumentProcessor is the slice of the document engine client used here.
type DocumentProcessor interface {
	Process(ctx context.Context, pageImage []byte) (document.Record, error)
}

// FaceComparer is the slice of the face matcher used here.
type FaceComparer interface {
	Compare(ctx context.Context, documentPortrait, liveCapture []byte) (facematch.Outcome, error)
}

// ReportRepository defines the persistence operations needed by the use case.
type ReportRepository interface {
	SaveReport(ctx context.Context, report *repository.VerificationReportLog) error
	FindByRequestIDAndUser(ctx context.Context, requestID, userID string) (*repository.VerificationReportLog, error)
	FindDuplicatesByHash(ctx context.Context, userID, documentSHA1, excludeRequestID string) ([]*repository.VerificationReportLog, error)
	AggregateMetrics(ctx context.Context) (*repository.MetricsAggregation, error)
}

// DuplicateReport lists the user's earlier submissions of the same document image.
type DuplicateReport struct {
	Request    *repository.VerificationReportLog   `json:"request"`
	Duplicates []*repository.VerificationReportLog `json:"duplicates"`
}

// VerificationUseCase orchestrates the verification decision pipeline:
// document extraction, rule validation, face matching, and verdict
// composition, plus result caching and persistence around it.
type VerificationUseCase struct {
	repo           ReportRepository
	cache          Cache
	documents      DocumentProcessor
	rules          *document.RuleSet
	faces          FaceComparer
	logger         *zap.Logger
	retryAttempts  int
	initialBackoff time.Duration
	maxBackoff     time.Duration
}

type cachedReport struct {
	RequestID    string    `json:"request_id"`
	UserID       string    `json:"user_id"`
	Report       Report    `json:"report"`
	DocumentSHA1 string    `json:"document_sha1"`
	CreatedAt    time.Time `json:"created_at"`
}

// NewVerificationUseCase constructs a new use case instance.
func NewVerificationUseCase(repo ReportRepository, cache Cache, documents DocumentProcessor, rules *document.RuleSet, faces FaceComparer, logger *zap.Logger) *VerificationUseCase {
	return &VerificationUseCase{
		repo:           repo,
		cache:          cache,
		documents:      documents,
		rules:          rules,
		faces:          faces,
		logger:         logger.Named("verification_usecase"),
		retryAttempts:  3,
		initialBackoff: 50 * time.Millisecond,
		maxBackoff:     time.Second,
	}
}

// VerifyIdentity runs the full decision pipeline for one document/selfie pair
// and returns the request id together with the composed report. Engine
// communication failures and the no-comparable-faces condition abort the
// request; document rule violations never do, they are folded into the
// report.
func (uc *VerificationUseCase) VerifyIdentity(ctx context.Context, userID string, documentImage, selfieImage []byte) (string, *Report, error) {
	if len(documentImage) == 0 {
		return "", nil, ErrMissingDocumentImage
	}
	if len(selfieImage) == 0 {
		return "", nil, ErrMissingSelfieImage
	}

	requestID := uuid.NewString()
	opLogger := logging.WithOperation(uc.logger, "usecase.verify_identity", requestID)

	cacheKey := reportCacheKey(requestID)
	if err := uc.withRedisRetry(ctx, requestID, "cache.set.processing", func() error {
		return uc.cache.Set(ctx, cacheKey, processingMarker, processingTTL)
	}); err != nil {
		opLogger.Error("failed to set processing flag", zap.Error(err))
		return "", nil, err
	}

	record, err := uc.documents.Process(ctx, documentImage)
	if err != nil {
		wrapped := logging.NewOperationError("usecase.document_extraction", requestID, err)
		opLogger.Error("document extraction failed", zap.Error(wrapped))
		return "", nil, wrapped
	}

	docCheck := uc.rules.Validate(record)

	var face FaceCheck
	if !record.HasPortrait() {
		// Short-circuit: matching never runs without a portrait, but the
		// document errors found so far are still reported.
		face = FaceCheck{Error: PortraitNotFoundReason}
		opLogger.Warn("no portrait extracted, skipping face match")
	} else {
		outcome, err := uc.faces.Compare(ctx, record.Portrait, selfieImage)
		if err != nil {
			wrapped := logging.NewOperationError("usecase.face_match", requestID, err)
			opLogger.Error("face match failed", zap.Error(wrapped))
			return "", nil, wrapped
		}
		face = faceCheckFromOutcome(outcome)
	}

	report := composeReport(record, docCheck, face)

	hash := sha1.Sum(documentImage)
	documentSHA1 := hex.EncodeToString(hash[:])

	now := time.Now().UTC()
	if err := uc.persistReport(ctx, requestID, userID, &report, documentSHA1, now); err != nil {
		opLogger.Error("failed to persist verification report", zap.Error(err))
		return "", nil, err
	}

	cached := cachedReport{RequestID: requestID, UserID: userID, Report: report, DocumentSHA1: documentSHA1, CreatedAt: now}
	serialized, err := json.Marshal(cached)
	if err != nil {
		opLogger.Error("failed to serialize verification report", zap.Error(err))
		return "", nil, err
	}
	if err := uc.withRedisRetry(ctx, requestID, "cache.set.result", func() error {
		return uc.cache.Set(ctx, cacheKey, string(serialized), reportTTL)
	}); err != nil {
		opLogger.Error("failed to cache verification report", zap.Error(err))
		return "", nil, err
	}

	opLogger.Info("verification completed",
		zap.String("status", report.Status),
		zap.Bool("overall_success", report.OverallSuccess),
	)
	return requestID, &report, nil
}

// GetResult retrieves a cached report or falls back to persistence.
func (uc *VerificationUseCase) GetResult(ctx context.Context, userID, requestID string) (*repository.VerificationReportLog, error) {
	cacheKey := reportCacheKey(requestID)
	if cached, err := uc.withRedisGet(ctx, requestID, "cache.get.result", cacheKey); err == nil {
		var payload cachedReport
		if err := json.Unmarshal([]byte(cached), &payload); err != nil {
			logging.WithOperation(uc.logger, "usecase.get_result", requestID).Warn("failed to decode cached report", zap.Error(err))
		} else if payload.UserID == userID {
			return logFromCached(payload), nil
		}
	} else if !errors.Is(err, redis.Nil) {
		logging.WithOperation(uc.logger, "usecase.get_result", requestID).Warn("failed to read cache", zap.Error(err))
	}

	return uc.repo.FindByRequestIDAndUser(ctx, requestID, userID)
}

// GetDuplicateReport builds a duplicate-submission report: other requests by
// the same user carrying an identical document image.
func (uc *VerificationUseCase) GetDuplicateReport(ctx context.Context, userID, requestID string) (*DuplicateReport, error) {
	report, err := uc.repo.FindByRequestIDAndUser(ctx, requestID, userID)
	if err != nil {
		return nil, err
	}

	duplicates, err := uc.repo.FindDuplicatesByHash(ctx, userID, report.DocumentSHA1, report.RequestID)
	if err != nil {
		return nil, err
	}

	return &DuplicateReport{
		Request:    report,
		Duplicates: duplicates,
	}, nil
}

func (uc *VerificationUseCase) persistReport(ctx context.Context, requestID, userID string, report *Report, documentSHA1 string, createdAt time.Time) error {
	docErrors, err := json.Marshal(report.DocumentCheck.Errors)
	if err != nil {
		return logging.NewOperationError("usecase.encode_document_errors", requestID, err)
	}

	return uc.repo.SaveReport(ctx, &repository.VerificationReportLog{
		RequestID:      requestID,
		UserID:         userID,
		Status:         report.Status,
		OverallSuccess: report.OverallSuccess,
		Similarity:     report.FaceCheck.Similarity,
		FaceMatch:      report.FaceCheck.Match,
		FaceError:      report.FaceCheck.Error,
		DocumentValid:  report.DocumentCheck.Valid,
		DocumentErrors: string(docErrors),
		DocumentType:   report.ExtractedData.DocumentType,
		DocumentSHA1:   documentSHA1,
		CreatedAt:      createdAt,
	})
}

func logFromCached(payload cachedReport) *repository.VerificationReportLog {
	docErrors, _ := json.Marshal(payload.Report.DocumentCheck.Errors)
	return &repository.VerificationReportLog{
		RequestID:      payload.RequestID,
		UserID:         payload.UserID,
		Status:         payload.Report.Status,
		OverallSuccess: payload.Report.OverallSuccess,
		Similarity:     payload.Report.FaceCheck.Similarity,
		FaceMatch:      payload.Report.FaceCheck.Match,
		FaceError:      payload.Report.FaceCheck.Error,
		DocumentValid:  payload.Report.DocumentCheck.Valid,
		DocumentErrors: string(docErrors),
		DocumentType:   payload.Report.ExtractedData.DocumentType,
		DocumentSHA1:   payload.DocumentSHA1,
		CreatedAt:      payload.CreatedAt,
	}
}

func (uc *VerificationUseCase) withRedisRetry(ctx context.Context, requestID, operation string, fn func() error) error {
	if uc.retryAttempts <= 1 {
		return logging.NewOperationError(operation, requestID, fn())
	}

	backoff := uc.initialBackoff
	opLogger := logging.WithOperation(uc.logger, operation, requestID)
	var err error
	for attempt := 0; attempt < uc.retryAttempts; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return logging.NewOperationError(operation, requestID, ctx.Err())
			case <-time.After(backoff):
			}
			if next := backoff * 2; next <= uc.maxBackoff {
				backoff = next
			}
		}

		err = fn()
		if err == nil {
			if attempt > 0 {
				opLogger.Info("redis operation succeeded after retry", zap.Int("attempt", attempt+1))
			}
			return nil
		}

		if !isTransientError(err) || attempt == uc.retryAttempts-1 {
			opLogger.Error("redis operation failed", zap.Error(err), zap.Int("attempt", attempt+1))
			return logging.NewOperationError(operation, requestID, err)
		}

		opLogger.Warn("transient redis error", zap.Error(err), zap.Int("attempt", attempt+1))
	}
	return logging.NewOperationError(operation, requestID, err)
}

func (uc *VerificationUseCase) withRedisGet(ctx context.Context, requestID, operation, cacheKey string) (string, error) {
	var result string
	err := uc.withRedisRetry(ctx, requestID, operation, func() error {
		value, err := uc.cache.Get(ctx, cacheKey)
		if err != nil {
			return err
		}
		result = value
		return nil
	})
	if err != nil {
		return "", err
	}
	return result, nil
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
