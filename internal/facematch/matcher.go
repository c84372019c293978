package facematch

import (
	"context"
	"errors"

	"go.uber.org/zap"

	"github.com/example/id-verify/internal/faceengine"
)

// MatchThreshold is the similarity percentage a pair must strictly exceed to
// count as a match. Fixed policy, not configurable per request.
const MatchThreshold = 75.0

// ErrEmptyImage is returned when either input image has no bytes. The engine
// is never called in that case.
var ErrEmptyImage = errors.New("face match input image is empty")

// Outcome is the normalized result of one face comparison. Similarity is a
// percentage in [0,100]; Match holds iff Similarity strictly exceeds
// MatchThreshold.
type Outcome struct {
	Similarity float64 `json:"similarity"`
	Match      bool    `json:"is_match"`
}

// Matcher submits a document portrait and a live selfie to the matching
// engine and applies the match threshold.
type Matcher struct {
	engine faceengine.Client
	logger *zap.Logger
}

// NewMatcher constructs a Matcher on top of an engine client.
func NewMatcher(engine faceengine.Client, logger *zap.Logger) *Matcher {
	return &Matcher{engine: engine, logger: logger.Named("facematch")}
}

// Compare runs one comparison. Empty inputs fail fast with ErrEmptyImage;
// engine failures and faceengine.ErrNoComparableFaces propagate unchanged.
func (m *Matcher) Compare(ctx context.Context, documentPortrait, liveCapture []byte) (Outcome, error) {
	if len(documentPortrait) == 0 || len(liveCapture) == 0 {
		return Outcome{}, ErrEmptyImage
	}

	similarity, err := m.engine.Match(ctx, documentPortrait, liveCapture)
	if err != nil {
		return Outcome{}, err
	}

	percentage := similarity * 100
	outcome := Outcome{
		Similarity: percentage,
		Match:      percentage > MatchThreshold,
	}
	m.logger.Debug("face comparison completed",
		zap.Float64("similarity", outcome.Similarity),
		zap.Bool("is_match", outcome.Match),
	)
	return outcome, nil
}
