package usecase

import (
	"github.com/example/id-verify/internal/document"
	"github.com/example/id-verify/internal/facematch"
)

// Verdict statuses.
const (
	StatusVerified = "VERIFIED"
	StatusRejected = "REJECTED"
)

// PortraitNotFoundReason is the face-check error reported when no portrait
// could be extracted from the document and face matching never ran.
const PortraitNotFoundReason = "portrait not found on document"

// FaceCheck is the biometric half of the report. When Error is set the
// comparison never produced a usable outcome and Similarity/Match are zero
// values.
type FaceCheck struct {
	Similarity float64 `json:"similarity"`
	Match      bool    `json:"is_match"`
	Error      string  `json:"error,omitempty"`
}

// ExtractedData is the caller-visible subset of the canonical record.
type ExtractedData struct {
	DocumentType   string `json:"document_type"`
	DocumentNumber string `json:"document_number,omitempty"`
	FullName       string `json:"full_name,omitempty"`
	DateOfBirth    string `json:"date_of_birth,omitempty"`
	DateOfExpiry   string `json:"date_of_expiry,omitempty"`
}

// Report is the final verification verdict returned to the caller.
type Report struct {
	OverallSuccess bool                       `json:"overall_success"`
	Status         string                     `json:"status"`
	FaceCheck      FaceCheck                  `json:"face_check"`
	DocumentCheck  document.ValidationOutcome `json:"document_check"`
	ExtractedData  ExtractedData              `json:"extracted_data"`
}

// composeReport combines the document check and the face check into the final
// verdict. Both checks must pass independently; a failed face check is never
// upgraded and a missing portrait (face.Error set) always rejects, while the
// document errors found so far are still reported alongside it.
func composeReport(record document.Record, docCheck document.ValidationOutcome, face FaceCheck) Report {
	success := docCheck.Valid && face.Match && face.Error == ""
	status := StatusRejected
	if success {
		status = StatusVerified
	}

	return Report{
		OverallSuccess: success,
		Status:         status,
		FaceCheck:      face,
		DocumentCheck:  docCheck,
		ExtractedData: ExtractedData{
			DocumentType:   record.DocumentType,
			DocumentNumber: record.DocumentNumber,
			FullName:       record.FullName,
			DateOfBirth:    record.DateOfBirth,
			DateOfExpiry:   record.DateOfExpiry,
		},
	}
}

// faceCheckFromOutcome adapts a matcher outcome into the report form.
func faceCheckFromOutcome(outcome facematch.Outcome) FaceCheck {
	return FaceCheck{Similarity: outcome.Similarity, Match: outcome.Match}
}
