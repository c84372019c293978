package docengine

// Field type identifiers used by the document engine for text fields.
const (
	FieldDocumentNumber = "DOCUMENT_NUMBER"
	FieldFullName       = "FULL_NAME"
	FieldDateOfBirth    = "DATE_OF_BIRTH"
	FieldDateOfExpiry   = "DATE_OF_EXPIRY"
)

// GraphicPortrait is the graphic field type carrying the document holder's photo.
const GraphicPortrait = "PORTRAIT"

// Status is the engine's overall confidence verdict for one processed page.
type Status string

const (
	StatusOK    Status = "OK"
	StatusWarn  Status = "WARN"
	StatusError Status = "ERROR"
)

// ProcessRequest is the payload sent to the document engine.
type ProcessRequest struct {
	Image    string `json:"image"` // base64 page image
	Light    string `json:"light"`
	Scenario string `json:"scenario"`
}

// Response is the raw structured response from the document engine. It is
// transient: the normalizer consumes it within the request and nothing is
// kept afterwards.
type Response struct {
	DocumentType  string         `json:"document_type"`
	OverallStatus Status         `json:"overall_status"`
	TextFields    []TextField    `json:"text_fields"`
	GraphicFields []GraphicField `json:"graphic_fields"`
}

// TextField is one extracted text field, addressed by field type.
type TextField struct {
	FieldType string `json:"field_type"`
	Value     string `json:"value"`
}

// GraphicField is one extracted graphic, with per-source image data. A field
// may carry a visually scanned image, a chip (RFID) image, or both.
type GraphicField struct {
	FieldType   string `json:"field_type"`
	VisualImage []byte `json:"visual_image,omitempty"`
	RFIDImage   []byte `json:"rfid_image,omitempty"`
}

// TextField returns the value of the first text field of the given type and
// whether it was present.
func (r *Response) TextField(fieldType string) (string, bool) {
	for _, f := range r.TextFields {
		if f.FieldType == fieldType {
			return f.Value, true
		}
	}
	return "", false
}

// GraphicField returns the first graphic field of the given type, or nil.
func (r *Response) GraphicField(fieldType string) *GraphicField {
	for i := range r.GraphicFields {
		if r.GraphicFields[i].FieldType == fieldType {
			return &r.GraphicFields[i]
		}
	}
	return nil
}
