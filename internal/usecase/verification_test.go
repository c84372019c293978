package usecase

import (
	"context"
	"crypto/sha1"
	"encoding/hex"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"

	"github.com/example/id-verify/internal/docengine"
	"github.com/example/id-verify/internal/document"
	"github.com/example/id-verify/internal/facematch"
	"github.com/example/id-verify/internal/logging"
	"github.com/example/id-verify/internal/repository"
)

type stubRepository struct {
	savedReports []*repository.VerificationReportLog
	saveErr      error
	findReport   *repository.VerificationReportLog
	findErr      error
	findCalls    int
	duplicates   []*repository.VerificationReportLog
	dupErr       error
	dupHashes    []string
	aggregation  *repository.MetricsAggregation
	aggErr       error
}

func (s *stubRepository) SaveReport(ctx context.Context, report *repository.VerificationReportLog) error {
	s.savedReports = append(s.savedReports, report)
	return s.saveErr
}

func (s *stubRepository) FindByRequestIDAndUser(ctx context.Context, requestID, userID string) (*repository.VerificationReportLog, error) {
	s.findCalls++
	if s.findErr != nil {
		return nil, s.findErr
	}
	if s.findReport != nil {
		return s.findReport, nil
	}
	return nil, errors.New("not found")
}

func (s *stubRepository) FindDuplicatesByHash(ctx context.Context, userID, documentSHA1, excludeRequestID string) ([]*repository.VerificationReportLog, error) {
	s.dupHashes = append(s.dupHashes, documentSHA1)
	if s.dupErr != nil {
		return nil, s.dupErr
	}
	return s.duplicates, nil
}

func (s *stubRepository) AggregateMetrics(ctx context.Context) (*repository.MetricsAggregation, error) {
	if s.aggErr != nil {
		return nil, s.aggErr
	}
	if s.aggregation != nil {
		return s.aggregation, nil
	}
	return &repository.MetricsAggregation{}, nil
}

type stubCache struct {
	setErrs   []error
	getErrs   []error
	getValues []string
	setKeys   []string
	getKeys   []string
}

func (s *stubCache) Set(ctx context.Context, key string, value interface{}, expiration time.Duration) error {
	s.setKeys = append(s.setKeys, key)
	if len(s.setErrs) == 0 {
		return nil
	}
	err := s.setErrs[0]
	s.setErrs = s.setErrs[1:]
	return err
}

func (s *stubCache) Get(ctx context.Context, key string) (string, error) {
	s.getKeys = append(s.getKeys, key)
	var value string
	if len(s.getValues) > 0 {
		value = s.getValues[0]
		s.getValues = s.getValues[1:]
	}
	var err error
	if len(s.getErrs) > 0 {
		err = s.getErrs[0]
		s.getErrs = s.getErrs[1:]
	}
	return value, err
}

type stubDocuments struct {
	record document.Record
	err    error
	calls  int
}

func (s *stubDocuments) Process(ctx context.Context, pageImage []byte) (document.Record, error) {
	s.calls++
	if s.err != nil {
		return document.Record{}, s.err
	}
	return s.record, nil
}

type stubFaces struct {
	outcome facematch.Outcome
	err     error
	calls   int
}

func (s *stubFaces) Compare(ctx context.Context, documentPortrait, liveCapture []byte) (facematch.Outcome, error) {
	s.calls++
	if s.err != nil {
		return facematch.Outcome{}, s.err
	}
	return s.outcome, nil
}

type transientRedisError struct{}

func (transientRedisError) Error() string   { return "redis transient" }
func (transientRedisError) Timeout() bool   { return true }
func (transientRedisError) Temporary() bool { return true }

func fixedRules() *document.RuleSet {
	return document.NewRuleSetWithClock(func() time.Time {
		return time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	})
}

func validPassportRecord() document.Record {
	return document.Record{
		DocumentType:   "PASSPORT",
		DocumentNumber: "P123",
		FullName:       "JANE DOE",
		DateOfExpiry:   "2099-01-01",
		EngineStatus:   docengine.StatusOK,
		Portrait:       []byte("portrait"),
	}
}

func newUseCase(repo ReportRepository, cache Cache, documents DocumentProcessor, faces FaceComparer) *VerificationUseCase {
	return NewVerificationUseCase(repo, cache, documents, fixedRules(), faces, zap.NewNop())
}

func TestVerifyIdentityValidPassportAndMatchingFace(t *testing.T) {
	repo := &stubRepository{}
	faces := &stubFaces{outcome: facematch.Outcome{Similarity: 92.3, Match: true}}
	uc := newUseCase(repo, &stubCache{}, &stubDocuments{record: validPassportRecord()}, faces)

	requestID, report, err := uc.VerifyIdentity(context.Background(), "user-1", []byte("doc"), []byte("selfie"))
	if err != nil {
		t.Fatalf("expected success, got error: %v", err)
	}
	if requestID == "" {
		t.Fatal("expected a request id")
	}
	if !report.OverallSuccess || report.Status != StatusVerified {
		t.Fatalf("expected VERIFIED report, got %+v", report)
	}
	if report.FaceCheck.Similarity != 92.3 || !report.FaceCheck.Match {
		t.Fatalf("unexpected face check: %+v", report.FaceCheck)
	}
	if !report.DocumentCheck.Valid || len(report.DocumentCheck.Errors) != 0 {
		t.Fatalf("unexpected document check: %+v", report.DocumentCheck)
	}
	if report.ExtractedData.DocumentNumber != "P123" || report.ExtractedData.FullName != "JANE DOE" {
		t.Fatalf("unexpected extracted data: %+v", report.ExtractedData)
	}
	if len(repo.savedReports) != 1 {
		t.Fatalf("expected report to be persisted, got %d entries", len(repo.savedReports))
	}
	if repo.savedReports[0].Status != StatusVerified {
		t.Fatalf("persisted status mismatch: %s", repo.savedReports[0].Status)
	}
}

func TestVerifyIdentityUnknownDocumentWithLowSimilarity(t *testing.T) {
	record := document.Record{
		DocumentType: document.UnknownType,
		EngineStatus: docengine.StatusOK,
		Portrait:     []byte("portrait"),
	}
	faces := &stubFaces{outcome: facematch.Outcome{Similarity: 40.0, Match: false}}
	uc := newUseCase(&stubRepository{}, &stubCache{}, &stubDocuments{record: record}, faces)

	_, report, err := uc.VerifyIdentity(context.Background(), "user-1", []byte("doc"), []byte("selfie"))
	if err != nil {
		t.Fatalf("expected rejection verdict, got error: %v", err)
	}
	if report.OverallSuccess || report.Status != StatusRejected {
		t.Fatalf("expected REJECTED report, got %+v", report)
	}
	if !containsSubstring(report.DocumentCheck.Errors, "not recognized") {
		t.Errorf("missing unknown-type error: %v", report.DocumentCheck.Errors)
	}
	if !containsSubstring(report.DocumentCheck.Errors, "no text data extracted") {
		t.Errorf("missing no-text error: %v", report.DocumentCheck.Errors)
	}
	if report.FaceCheck.Match {
		t.Error("expected face check to fail")
	}
}

func TestVerifyIdentityMissingPortraitShortCircuitsFaceMatch(t *testing.T) {
	record := document.Record{
		DocumentType: document.UnknownType,
		EngineStatus: docengine.StatusOK,
	}
	faces := &stubFaces{outcome: facematch.Outcome{Similarity: 99, Match: true}}
	uc := newUseCase(&stubRepository{}, &stubCache{}, &stubDocuments{record: record}, faces)

	_, report, err := uc.VerifyIdentity(context.Background(), "user-1", []byte("doc"), []byte("selfie"))
	if err != nil {
		t.Fatalf("expected rejection verdict, got error: %v", err)
	}
	if faces.calls != 0 {
		t.Fatalf("matching engine must not be invoked without a portrait, got %d calls", faces.calls)
	}
	if report.OverallSuccess || report.Status != StatusRejected {
		t.Fatalf("expected REJECTED report, got %+v", report)
	}
	if report.FaceCheck.Error != PortraitNotFoundReason {
		t.Fatalf("expected portrait-not-found reason, got %q", report.FaceCheck.Error)
	}
	// Document errors are still reported alongside the missing portrait.
	if len(report.DocumentCheck.Errors) == 0 {
		t.Fatal("expected document errors to be reported")
	}
}

func TestVerifyIdentityExpiredDocumentSingleError(t *testing.T) {
	record := validPassportRecord()
	record.DateOfExpiry = "2020-01-01"
	faces := &stubFaces{outcome: facematch.Outcome{Similarity: 92.3, Match: true}}
	uc := newUseCase(&stubRepository{}, &stubCache{}, &stubDocuments{record: record}, faces)

	_, report, err := uc.VerifyIdentity(context.Background(), "user-1", []byte("doc"), []byte("selfie"))
	if err != nil {
		t.Fatalf("expected rejection verdict, got error: %v", err)
	}
	if len(report.DocumentCheck.Errors) != 1 {
		t.Fatalf("expected exactly one validation error, got %v", report.DocumentCheck.Errors)
	}
	if !strings.Contains(report.DocumentCheck.Errors[0], "expired") {
		t.Fatalf("expected expiry error, got %q", report.DocumentCheck.Errors[0])
	}
	// Face check passed, document check did not: never upgraded to success.
	if report.OverallSuccess || report.Status != StatusRejected {
		t.Fatalf("expected REJECTED report, got %+v", report)
	}
}

func TestVerifyIdentityEmptyInputsFailBeforeAnyEngineCall(t *testing.T) {
	documents := &stubDocuments{record: validPassportRecord()}
	faces := &stubFaces{}
	uc := newUseCase(&stubRepository{}, &stubCache{}, documents, faces)

	if _, _, err := uc.VerifyIdentity(context.Background(), "user-1", nil, []byte("selfie")); !errors.Is(err, ErrMissingDocumentImage) {
		t.Fatalf("expected ErrMissingDocumentImage, got %v", err)
	}
	if _, _, err := uc.VerifyIdentity(context.Background(), "user-1", []byte("doc"), nil); !errors.Is(err, ErrMissingSelfieImage) {
		t.Fatalf("expected ErrMissingSelfieImage, got %v", err)
	}
	if documents.calls != 0 || faces.calls != 0 {
		t.Fatalf("no engine may be called on empty input, got %d/%d calls", documents.calls, faces.calls)
	}
}

func TestVerifyIdentityDocumentEngineFailureAborts(t *testing.T) {
	boom := errors.New("engine unreachable")
	uc := newUseCase(&stubRepository{}, &stubCache{}, &stubDocuments{err: boom}, &stubFaces{})

	_, _, err := uc.VerifyIdentity(context.Background(), "user-1", []byte("doc"), []byte("selfie"))
	if !errors.Is(err, boom) {
		t.Fatalf("expected engine failure to propagate, got %v", err)
	}
	var opErr *logging.OperationError
	if !errors.As(err, &opErr) {
		t.Fatalf("expected OperationError, got %T", err)
	}
	if opErr.Operation != "usecase.document_extraction" {
		t.Fatalf("unexpected operation: %s", opErr.Operation)
	}
}

func TestVerifyIdentityRetriesRedisSet(t *testing.T) {
	cache := &stubCache{setErrs: []error{transientRedisError{}}}
	repo := &stubRepository{}
	faces := &stubFaces{outcome: facematch.Outcome{Similarity: 92.3, Match: true}}
	uc := newUseCase(repo, cache, &stubDocuments{record: validPassportRecord()}, faces)

	_, report, err := uc.VerifyIdentity(context.Background(), "user-1", []byte("doc"), []byte("selfie"))
	if err != nil {
		t.Fatalf("expected success, got error: %v", err)
	}
	if !report.OverallSuccess {
		t.Fatalf("expected successful report, got %+v", report)
	}
	if len(cache.setKeys) < 3 {
		t.Fatalf("expected at least 3 cache set calls (retry + result), got %d", len(cache.setKeys))
	}
	if cache.setKeys[0] != cache.setKeys[1] {
		t.Fatalf("expected retry to target same key, got %s and %s", cache.setKeys[0], cache.setKeys[1])
	}
	if len(repo.savedReports) != 1 {
		t.Fatalf("expected report to be saved, got %d entries", len(repo.savedReports))
	}
}

func TestVerifyIdentityReturnsOperationErrorOnCacheFailure(t *testing.T) {
	cache := &stubCache{setErrs: []error{errors.New("boom")}}
	uc := newUseCase(&stubRepository{}, cache, &stubDocuments{record: validPassportRecord()}, &stubFaces{outcome: facematch.Outcome{Match: true}})

	_, _, err := uc.VerifyIdentity(context.Background(), "user-1", []byte("doc"), []byte("selfie"))
	if err == nil {
		t.Fatal("expected error, got nil")
	}
	var opErr *logging.OperationError
	if !errors.As(err, &opErr) {
		t.Fatalf("expected OperationError, got %T", err)
	}
	if opErr.Operation != "cache.set.processing" {
		t.Fatalf("unexpected operation: %s", opErr.Operation)
	}
}

func TestGetResultFallsBackToRepositoryWhenCacheMiss(t *testing.T) {
	cache := &stubCache{getErrs: []error{redis.Nil}}
	expected := &repository.VerificationReportLog{RequestID: "req", UserID: "user", Status: StatusVerified}
	repo := &stubRepository{findReport: expected}
	uc := newUseCase(repo, cache, &stubDocuments{}, &stubFaces{})

	report, err := uc.GetResult(context.Background(), "user", "req")
	if err != nil {
		t.Fatalf("expected success, got error: %v", err)
	}
	if report != expected {
		t.Fatalf("expected %+v, got %+v", expected, report)
	}
	if repo.findCalls != 1 {
		t.Fatalf("expected repository to be queried once, got %d", repo.findCalls)
	}
}

func containsSubstring(errs []string, substr string) bool {
	for _, e := range errs {
		if strings.Contains(e, substr) {
			return true
		}
	}
	return false
}

func TestVerifyIdentityUsesScopedCacheKeys(t *testing.T) {
	cache := &stubCache{}
	faces := &stubFaces{outcome: facematch.Outcome{Similarity: 92.3, Match: true}}
	uc := newUseCase(&stubRepository{}, cache, &stubDocuments{record: validPassportRecord()}, faces)

	requestID, _, err := uc.VerifyIdentity(context.Background(), "user-1", []byte("doc"), []byte("selfie"))
	if err != nil {
		t.Fatalf("expected success, got error: %v", err)
	}
	want := "verification:" + requestID
	if len(cache.setKeys) == 0 {
		t.Fatal("expected cache writes")
	}
	for _, key := range cache.setKeys {
		if key != want {
			t.Fatalf("expected cache key %q, got %q", want, key)
		}
	}
}

func TestVerifyIdentityPersistsDocumentHash(t *testing.T) {
	repo := &stubRepository{}
	faces := &stubFaces{outcome: facematch.Outcome{Similarity: 92.3, Match: true}}
	uc := newUseCase(repo, &stubCache{}, &stubDocuments{record: validPassportRecord()}, faces)

	documentImage := []byte("doc")
	if _, _, err := uc.VerifyIdentity(context.Background(), "user-1", documentImage, []byte("selfie")); err != nil {
		t.Fatalf("expected success, got error: %v", err)
	}
	if len(repo.savedReports) != 1 {
		t.Fatalf("expected one persisted report, got %d", len(repo.savedReports))
	}

	hash := sha1.Sum(documentImage)
	want := hex.EncodeToString(hash[:])
	if repo.savedReports[0].DocumentSHA1 != want {
		t.Fatalf("expected document hash %s, got %s", want, repo.savedReports[0].DocumentSHA1)
	}
}

func TestGetDuplicateReportFindsMatchingSubmissions(t *testing.T) {
	repo := &stubRepository{
		findReport: &repository.VerificationReportLog{
			RequestID:    "req-1",
			UserID:       "user-1",
			DocumentSHA1: "abc123",
		},
		duplicates: []*repository.VerificationReportLog{
			{RequestID: "req-0", UserID: "user-1", DocumentSHA1: "abc123"},
		},
	}
	uc := newUseCase(repo, &stubCache{}, &stubDocuments{}, &stubFaces{})

	report, err := uc.GetDuplicateReport(context.Background(), "user-1", "req-1")
	if err != nil {
		t.Fatalf("expected duplicate report, got error: %v", err)
	}
	if report.Request.RequestID != "req-1" {
		t.Fatalf("unexpected request in report: %+v", report.Request)
	}
	if len(report.Duplicates) != 1 || report.Duplicates[0].RequestID != "req-0" {
		t.Fatalf("unexpected duplicates: %+v", report.Duplicates)
	}
	if len(repo.dupHashes) != 1 || repo.dupHashes[0] != "abc123" {
		t.Fatalf("expected duplicate lookup by stored hash, got %v", repo.dupHashes)
	}
}

func TestGetDuplicateReportUnknownRequest(t *testing.T) {
	repo := &stubRepository{}
	uc := newUseCase(repo, &stubCache{}, &stubDocuments{}, &stubFaces{})

	if _, err := uc.GetDuplicateReport(context.Background(), "user-1", "missing"); err == nil {
		t.Fatal("expected error for unknown request")
	}
}

func TestGetMetricsSummaryComputesVerifiedRate(t *testing.T) {
	repo := &stubRepository{
		aggregation: &repository.MetricsAggregation{
			TotalCount:        4,
			VerifiedCount:     3,
			AverageSimilarity: 81.5,
		},
	}
	uc := newUseCase(repo, &stubCache{}, &stubDocuments{}, &stubFaces{})

	summary, err := uc.GetMetricsSummary(context.Background())
	if err != nil {
		t.Fatalf("expected summary, got error: %v", err)
	}
	if summary.TotalRequests != 4 || summary.VerifiedRequests != 3 {
		t.Fatalf("unexpected counts: %+v", summary)
	}
	if summary.VerifiedRate != 0.75 {
		t.Fatalf("expected verified rate 0.75, got %f", summary.VerifiedRate)
	}
	if summary.AverageSimilarity != 81.5 {
		t.Fatalf("expected average similarity 81.5, got %f", summary.AverageSimilarity)
	}
}

func TestGetMetricsSummaryEmptyStore(t *testing.T) {
	repo := &stubRepository{aggregation: &repository.MetricsAggregation{}}
	uc := newUseCase(repo, &stubCache{}, &stubDocuments{}, &stubFaces{})

	summary, err := uc.GetMetricsSummary(context.Background())
	if err != nil {
		t.Fatalf("expected summary, got error: %v", err)
	}
	if summary.VerifiedRate != 0 {
		t.Fatalf("expected zero rate on empty store, got %f", summary.VerifiedRate)
	}
}
