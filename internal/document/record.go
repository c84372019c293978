package document

import "github.com/example/id-verify/internal/docengine"

// UnknownType is the sentinel used when the engine could not classify the document.
const UnknownType = "UNKNOWN"

// Record is the canonical document record extracted from one engine response.
// Empty strings mean the field was absent; a nil Portrait means no portrait
// could be recovered from either source. A Record is built once per request
// and never mutated afterwards.
type Record struct {
	DocumentType   string
	DocumentNumber string
	FullName       string
	DateOfBirth    string
	DateOfExpiry   string
	EngineStatus   docengine.Status
	Portrait       []byte
}

// HasPortrait reports whether a portrait was recovered from the document.
func (r Record) HasPortrait() bool {
	return len(r.Portrait) > 0
}
