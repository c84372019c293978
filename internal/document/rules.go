package document

import (
	"fmt"
	"time"

	"github.com/example/id-verify/internal/docengine"
)

const expiryDateLayout = "2006-01-02"

// ValidationOutcome collects every rule violation found on one record.
// Valid holds iff Errors is empty.
type ValidationOutcome struct {
	Valid  bool     `json:"is_valid"`
	Errors []string `json:"errors"`
}

// RuleSet evaluates a Record against the document validation rules. Rules are
// independent and run in a fixed order; every applicable violation is
// collected rather than stopping at the first.
type RuleSet struct {
	now func() time.Time
}

// NewRuleSet builds a rule set evaluating against the real clock.
func NewRuleSet() *RuleSet {
	return &RuleSet{now: time.Now}
}

// NewRuleSetWithClock builds a rule set with an injected clock, used by tests
// to pin "today" for the expiry rule.
func NewRuleSetWithClock(now func() time.Time) *RuleSet {
	return &RuleSet{now: now}
}

// Validate runs every rule and returns the collected outcome.
func (rs *RuleSet) Validate(record Record) ValidationOutcome {
	var errs []string

	if record.DocumentType == UnknownType {
		errs = append(errs, "document type not recognized")
	}

	if record.EngineStatus == docengine.StatusError {
		errs = append(errs, "engine reported critical validation failure")
	}

	errs = append(errs, rs.expiryErrors(record)...)

	if record.DocumentNumber == "" && record.FullName == "" {
		errs = append(errs, "no text data extracted: image too blurry or empty")
	}

	return ValidationOutcome{Valid: len(errs) == 0, Errors: errs}
}

func (rs *RuleSet) expiryErrors(record Record) []string {
	if record.DateOfExpiry == "" {
		if record.DocumentType == UnknownType {
			return []string{"no expiry date found on an unrecognized document"}
		}
		return nil
	}

	expiry, err := time.Parse(expiryDateLayout, record.DateOfExpiry)
	if err != nil {
		return []string{fmt.Sprintf("expiry date %q is not readable", record.DateOfExpiry)}
	}

	// Day granularity: a document expiring today is still valid today.
	today := rs.now().UTC().Truncate(24 * time.Hour)
	expiry = expiry.UTC().Truncate(24 * time.Hour)
	if expiry.Before(today) {
		return []string{fmt.Sprintf("document is expired (expiry date %s)", record.DateOfExpiry)}
	}
	return nil
}
