package faceengine

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/example/id-verify/internal/engine"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) (*HTTPClient, *httptest.Server) {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)
	return NewHTTPClient(server.URL, 2*time.Second, zap.NewNop()), server
}

func TestMatchReturnsBestSimilarity(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		var req MatchRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("failed to decode request: %v", err)
		}
		if len(req.Images) != 2 {
			t.Errorf("expected 2 tagged images, got %d", len(req.Images))
		}
		if req.Images[0].Type != SourceDocumentPrint || req.Images[1].Type != SourceLiveCapture {
			t.Errorf("unexpected image tags: %+v", req.Images)
		}
		json.NewEncoder(w).Encode(MatchResponse{Results: []MatchResult{
			{FirstIndex: 0, SecondIndex: 1, Similarity: 0.42},
			{FirstIndex: 0, SecondIndex: 1, Similarity: 0.87},
		}})
	})

	similarity, err := client.Match(context.Background(), []byte("portrait"), []byte("selfie"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if similarity != 0.87 {
		t.Fatalf("expected best similarity 0.87, got %v", similarity)
	}
}

func TestMatchZeroResultsIsNoComparableFaces(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(MatchResponse{})
	})

	_, err := client.Match(context.Background(), []byte("portrait"), []byte("selfie"))
	if !errors.Is(err, ErrNoComparableFaces) {
		t.Fatalf("expected ErrNoComparableFaces, got %v", err)
	}
}

func TestMatchServerErrorIsEngineUnavailable(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "overloaded", http.StatusServiceUnavailable)
	})

	_, err := client.Match(context.Background(), []byte("portrait"), []byte("selfie"))
	var unavailable *engine.UnavailableError
	if !errors.As(err, &unavailable) {
		t.Fatalf("expected UnavailableError, got %v", err)
	}
	if unavailable.Engine != "matching" {
		t.Fatalf("unexpected engine name: %s", unavailable.Engine)
	}
}

func TestMatchTransportFailureIsEngineUnavailable(t *testing.T) {
	client, server := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {})
	server.Close()

	_, err := client.Match(context.Background(), []byte("portrait"), []byte("selfie"))
	var unavailable *engine.UnavailableError
	if !errors.As(err, &unavailable) {
		t.Fatalf("expected UnavailableError, got %v", err)
	}
}
