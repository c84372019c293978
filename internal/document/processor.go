package document

import (
	"context"

	"github.com/example/id-verify/internal/docengine"
)

// EngineProcessor runs one page image through the document engine and
// normalizes the raw response into a canonical Record. The raw response is
// discarded once normalized.
type EngineProcessor struct {
	engine docengine.Client
}

// NewEngineProcessor constructs a processor on top of an engine client.
func NewEngineProcessor(engine docengine.Client) *EngineProcessor {
	return &EngineProcessor{engine: engine}
}

// Process submits the page image and returns the canonical record.
func (p *EngineProcessor) Process(ctx context.Context, pageImage []byte) (Record, error) {
	raw, err := p.engine.Process(ctx, pageImage)
	if err != nil {
		return Record{}, err
	}
	return Normalize(raw), nil
}
