package batch

import (
	"errors"
	"fmt"
)

// Skip reasons.
const (
	ReasonMissingData   = "missing required data"
	ReasonAlreadyExists = "already exists"
	ReasonNotFound      = "not found"
)

// SkipError is a precondition that makes a record informational rather than failed.
type SkipError struct {
	Reason string
	Fields []string
}

func (e *SkipError) Error() string {
	if len(e.Fields) > 0 {
		return fmt.Sprintf("%s (fields: %v)", e.Reason, e.Fields)
	}
	return e.Reason
}

// IsSkip reports whether err is or wraps a *SkipError.
func IsSkip(err error) bool {
	var se *SkipError
	return errors.As(err, &se)
}

// Classify maps the result of one record attempt to its outcome. A nil error
// is a success, a *SkipError is a skip, anything else is a failure.
func Classify(op Operation, label string, err error) Outcome {
	if err == nil {
		return Succeeded(label, op)
	}
	var se *SkipError
	if errors.As(err, &se) {
		return Skipped(label, se.Reason)
	}
	return Failed(label, err)
}
