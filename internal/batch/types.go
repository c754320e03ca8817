// Package batch drives batches of record operations against an entity page,
// isolating per-record failures and classifying every attempted record into
// exactly one outcome.
package batch

import (
	"fmt"
	"time"

	"github.com/dbsmedya/goerpcheck/internal/config"
)

// Operation is the kind of record operation a batch performs.
type Operation string

const (
	OpCreate Operation = config.OperationCreate
	OpUpdate Operation = config.OperationUpdate
	OpDelete Operation = config.OperationDelete
)

// ParseOperation validates s.
func ParseOperation(s string) (Operation, error) {
	switch op := Operation(s); op {
	case OpCreate, OpUpdate, OpDelete:
		return op, nil
	default:
		return "", fmt.Errorf("unknown operation %q", s)
	}
}

// PastTense returns the success label for the operation.
func (op Operation) PastTense() string {
	switch op {
	case OpCreate:
		return "created"
	case OpUpdate:
		return "updated"
	case OpDelete:
		return "deleted"
	default:
		return string(op)
	}
}

// Identifying field names.
const (
	FieldName = "name"
	FieldCode = "code"
)

// RecordSpec is one record to process. Fields holds identifying and optional
// fields; updates address an existing record by Key and apply Values.
type RecordSpec struct {
	Fields map[string]string `json:"fields,omitempty"`
	Key    string            `json:"existing,omitempty"`
	Values map[string]string `json:"values,omitempty"`
}

// Get returns the value of field, preferring update values.
func (r RecordSpec) Get(field string) string {
	if v, ok := r.Values[field]; ok {
		return v
	}
	return r.Fields[field]
}

// Label is the human-readable identity used in the tally.
func (r RecordSpec) Label(op Operation, labelField string) string {
	if op == OpUpdate {
		return r.Key
	}
	if labelField == "" {
		labelField = FieldName
	}
	return r.Fields[labelField]
}

// Key identifies a record on the listing.
type Key struct {
	Name string
	Code string
}

// Batch is an ordered list of records sharing one operation and rule set.
type Batch struct {
	Name       string
	Entity     string
	Operation  Operation
	Records    []RecordSpec
	Required   []string
	LabelField string
	Flags      map[string]bool
}

// ManualCodes reports whether codes are entered by hand for this batch.
func (b Batch) ManualCodes() bool {
	return b.Flags[config.FlagManualCodes]
}

// KeyFor builds the existence-check key for rec.
func (b Batch) KeyFor(rec RecordSpec) Key {
	if b.Operation == OpUpdate {
		return Key{Name: rec.Key}
	}
	k := Key{Name: rec.Label(b.Operation, b.LabelField)}
	if b.ManualCodes() {
		k.Code = rec.Fields[FieldCode]
	}
	return k
}

// FormFields returns the fields to fill on create. The code field is only
// filled when manual codes are enabled.
func (b Batch) FormFields(rec RecordSpec) map[string]string {
	out := make(map[string]string, len(rec.Fields))
	for k, v := range rec.Fields {
		if k == FieldCode && !b.ManualCodes() {
			continue
		}
		out[k] = v
	}
	return out
}

// UpdateValues returns the values to apply on update. Like FormFields, the
// code is left to the application unless manual codes are enabled.
func (b Batch) UpdateValues(rec RecordSpec) map[string]string {
	out := make(map[string]string, len(rec.Values))
	for k, v := range rec.Values {
		if k == FieldCode && !b.ManualCodes() {
			continue
		}
		out[k] = v
	}
	return out
}

// Status is the outcome bucket of a record.
type Status int

const (
	StatusSucceeded Status = iota
	StatusSkipped
	StatusFailed
)

func (s Status) String() string {
	switch s {
	case StatusSucceeded:
		return "succeeded"
	case StatusSkipped:
		return "skipped"
	case StatusFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// MarshalText renders the status name in reports.
func (s Status) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// UnmarshalText parses a status name written by MarshalText.
func (s *Status) UnmarshalText(text []byte) error {
	switch string(text) {
	case "succeeded":
		*s = StatusSucceeded
	case "skipped":
		*s = StatusSkipped
	case "failed":
		*s = StatusFailed
	default:
		return fmt.Errorf("unknown status %q", text)
	}
	return nil
}

// Outcome is the classification of one processed record.
type Outcome struct {
	Index    int           `json:"index"`
	Label    string        `json:"label"`
	Status   Status        `json:"status"`
	Result   string        `json:"result,omitempty"` // created, updated, deleted
	Reason   string        `json:"reason,omitempty"`
	Attempts int           `json:"attempts,omitempty"`
	Duration time.Duration `json:"duration_ns"`
	Err      error         `json:"-"`
}

// Succeeded builds a success outcome for op.
func Succeeded(label string, op Operation) Outcome {
	return Outcome{Label: label, Status: StatusSucceeded, Result: op.PastTense()}
}

// Skipped builds a skip outcome.
func Skipped(label, reason string) Outcome {
	return Outcome{Label: label, Status: StatusSkipped, Reason: reason}
}

// Failed builds a failure outcome carrying err.
func Failed(label string, err error) Outcome {
	reason := "unknown error"
	if err != nil {
		reason = err.Error()
	}
	return Outcome{Label: label, Status: StatusFailed, Reason: reason, Err: err}
}
