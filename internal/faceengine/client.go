package faceengine

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/example/id-verify/internal/engine"
	"github.com/example/id-verify/internal/logging"
)

// Image source tags understood by the matching engine.
const (
	SourceDocumentPrint = "DOCUMENT_PRINT"
	SourceLiveCapture   = "LIVE_CAPTURE"
)

// ErrNoComparableFaces is returned when the engine answered but found no face
// pair to compare (for example no face detected in one of the images). It is
// deliberately distinct from a transport failure and from a low-similarity
// match.
var ErrNoComparableFaces = errors.New("no comparable faces found")

// MatchRequest carries the two tagged images submitted for comparison.
type MatchRequest struct {
	Images []MatchImage `json:"images"`
}

// MatchImage is one base64-encoded input image with its source tag and index.
type MatchImage struct {
	Index int    `json:"index"`
	Type  string `json:"type"`
	Data  string `json:"data"`
}

// MatchResponse is the raw engine response: zero or more pairwise results.
type MatchResponse struct {
	Results []MatchResult `json:"results"`
}

// MatchResult is one pairwise comparison with similarity in [0,1].
type MatchResult struct {
	FirstIndex  int     `json:"first_index"`
	SecondIndex int     `json:"second_index"`
	Similarity  float64 `json:"similarity"`
}

// Client exposes the subset of the matching engine used by the verification flow.
type Client interface {
	Match(ctx context.Context, documentPortrait, liveCapture []byte) (float64, error)
}

// HTTPClient talks JSON over HTTP to the matching engine.
type HTTPClient struct {
	baseURL    string
	httpClient *http.Client
	logger     *zap.Logger
}

// NewHTTPClient constructs a matching engine client.
func NewHTTPClient(baseURL string, timeout time.Duration, logger *zap.Logger) *HTTPClient {
	return &HTTPClient{
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: timeout},
		logger:     logging.WithEngine(logger.Named("faceengine"), "matching"),
	}
}

// Match submits the document portrait and the live capture and returns the
// engine's similarity in [0,1]. Zero results maps to ErrNoComparableFaces.
func (c *HTTPClient) Match(ctx context.Context, documentPortrait, liveCapture []byte) (float64, error) {
	payload := MatchRequest{
		Images: []MatchImage{
			{Index: 0, Type: SourceDocumentPrint, Data: base64.StdEncoding.EncodeToString(documentPortrait)},
			{Index: 1, Type: SourceLiveCapture, Data: base64.StdEncoding.EncodeToString(liveCapture)},
		},
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return 0, logging.NewOperationError("faceengine.marshal_request", "", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/match", bytes.NewReader(body))
	if err != nil {
		return 0, logging.NewOperationError("faceengine.build_request", "", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		wrapped := logging.NewEngineOperationError("faceengine.match", "matching", "", &engine.UnavailableError{Engine: "matching", Err: err})
		c.logger.Error("matching engine call failed", zap.Error(wrapped))
		return 0, wrapped
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		cause := fmt.Errorf("status %d: %s", resp.StatusCode, snippet)
		wrapped := logging.NewEngineOperationError("faceengine.match", "matching", "", &engine.UnavailableError{Engine: "matching", Err: cause})
		c.logger.Error("matching engine rejected request", zap.Error(wrapped), zap.Int("status", resp.StatusCode))
		return 0, wrapped
	}

	var decoded MatchResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return 0, logging.NewOperationError("faceengine.decode_response", "", err)
	}

	if len(decoded.Results) == 0 {
		return 0, ErrNoComparableFaces
	}

	best := decoded.Results[0].Similarity
	for _, r := range decoded.Results[1:] {
		if r.Similarity > best {
			best = r.Similarity
		}
	}
	return best, nil
}
