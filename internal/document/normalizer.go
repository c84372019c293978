package document

import (
	"strings"

	"github.com/example/id-verify/internal/docengine"
)

// Normalize maps a raw document engine response to a canonical Record.
// Extraction is best effort: a missing field becomes an absent value, never
// an error. Portrait image data prefers the visually scanned source and falls
// back to the chip (RFID) source.
func Normalize(raw *docengine.Response) Record {
	record := Record{
		DocumentType: UnknownType,
		EngineStatus: raw.OverallStatus,
	}

	if t := strings.TrimSpace(raw.DocumentType); t != "" {
		record.DocumentType = t
	}

	if v, ok := raw.TextField(docengine.FieldDocumentNumber); ok {
		record.DocumentNumber = v
	}
	if v, ok := raw.TextField(docengine.FieldFullName); ok {
		record.FullName = v
	}
	if v, ok := raw.TextField(docengine.FieldDateOfBirth); ok {
		record.DateOfBirth = v
	}
	if v, ok := raw.TextField(docengine.FieldDateOfExpiry); ok {
		record.DateOfExpiry = v
	}

	if portrait := raw.GraphicField(docengine.GraphicPortrait); portrait != nil {
		switch {
		case len(portrait.VisualImage) > 0:
			record.Portrait = portrait.VisualImage
		case len(portrait.RFIDImage) > 0:
			record.Portrait = portrait.RFIDImage
		}
	}

	return record
}
