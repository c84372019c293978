package docengine

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/example/id-verify/internal/engine"
	"github.com/example/id-verify/internal/logging"
)

const (
	defaultLight    = "WHITE"
	defaultScenario = "FULL_PROCESS"
)

// Client exposes the subset of the document engine used by the verification flow.
type Client interface {
	Process(ctx context.Context, pageImage []byte) (*Response, error)
}

// HTTPClient talks JSON over HTTP to the document engine.
type HTTPClient struct {
	baseURL    string
	httpClient *http.Client
	logger     *zap.Logger
}

// NewHTTPClient constructs a document engine client.
func NewHTTPClient(baseURL string, timeout time.Duration, logger *zap.Logger) *HTTPClient {
	return &HTTPClient{
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: timeout},
		logger:     logging.WithEngine(logger.Named("docengine"), "document"),
	}
}

// Process submits one page image for extraction and returns the raw engine response.
func (c *HTTPClient) Process(ctx context.Context, pageImage []byte) (*Response, error) {
	payload := ProcessRequest{
		Image:    base64.StdEncoding.EncodeToString(pageImage),
		Light:    defaultLight,
		Scenario: defaultScenario,
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return nil, logging.NewOperationError("docengine.marshal_request", "", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/process", bytes.NewReader(body))
	if err != nil {
		return nil, logging.NewOperationError("docengine.build_request", "", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		wrapped := logging.NewEngineOperationError("docengine.process", "document", "", &engine.UnavailableError{Engine: "document", Err: err})
		c.logger.Error("document engine call failed", zap.Error(wrapped))
		return nil, wrapped
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		cause := fmt.Errorf("status %d: %s", resp.StatusCode, snippet)
		wrapped := logging.NewEngineOperationError("docengine.process", "document", "", &engine.UnavailableError{Engine: "document", Err: cause})
		c.logger.Error("document engine rejected request", zap.Error(wrapped), zap.Int("status", resp.StatusCode))
		return nil, wrapped
	}

	var decoded Response
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return nil, logging.NewOperationError("docengine.decode_response", "", err)
	}
	return &decoded, nil
}
