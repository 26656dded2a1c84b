package quota

import (
	"errors"
	"fmt"
)

// ErrExceeded matches any *ExceededError via errors.Is.
var ErrExceeded = errors.New("quota exceeded")

// ExceededError is the typed signal raised when the backend answers 429. It is
// the only error in this module that carries a Record.
type ExceededError struct {
	Record  Record
	Summary string
}

// Exceeded builds an ExceededError for rec. An empty summary is generated from
// the record.
func Exceeded(rec Record, summary string) *ExceededError {
	if summary == "" {
		summary = summarize(rec)
	}
	return &ExceededError{Record: rec, Summary: summary}
}

func (e *ExceededError) Error() string {
	if e == nil {
		return ErrExceeded.Error()
	}
	return e.Summary
}

// Is lets errors.Is(err, ErrExceeded) match.
func (e *ExceededError) Is(target error) bool {
	return target == ErrExceeded
}

// AsExceeded unwraps err to an *ExceededError when possible.
func AsExceeded(err error) (*ExceededError, bool) {
	var qe *ExceededError
	if errors.As(err, &qe) && qe != nil {
		return qe, true
	}
	return nil, false
}

func summarize(rec Record) string {
	name := rec.EntitlementType
	if name == "" {
		name = "request"
	}
	return fmt.Sprintf("quota exceeded for %s: %d/%d used (%s)", name, rec.Used, rec.Max, rec.Tier)
}
