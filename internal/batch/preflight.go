package batch

import (
	"context"
	"fmt"
	"strings"
)

// RequiredFields returns the fields a record of b must carry.
func RequiredFields(b Batch) []string {
	seen := make(map[string]bool)
	var fields []string
	add := func(f string) {
		if f != "" && !seen[f] {
			seen[f] = true
			fields = append(fields, f)
		}
	}

	switch b.Operation {
	case OpCreate, OpDelete:
		if b.LabelField != "" {
			add(b.LabelField)
		} else {
			add(FieldName)
		}
		if b.ManualCodes() && b.Operation == OpCreate {
			add(FieldCode)
		}
	}
	for _, f := range b.Required {
		add(f)
	}
	return fields
}

// CheckRequired verifies required data without touching the view.
func CheckRequired(b Batch, rec RecordSpec) error {
	var missing []string
	if b.Operation == OpUpdate && strings.TrimSpace(rec.Key) == "" {
		missing = append(missing, "existing")
	}
	for _, f := range RequiredFields(b) {
		if strings.TrimSpace(rec.Get(f)) == "" {
			missing = append(missing, f)
		}
	}
	if len(missing) > 0 {
		return &SkipError{Reason: ReasonMissingData, Fields: missing}
	}
	return nil
}

// Preflight checks required data and then the record's presence on the
// listing: a create of an existing record and an update or delete of an
// absent one are skips. Errors from the existence check are returned as-is.
func Preflight(ctx context.Context, page EntityPage, b Batch, rec RecordSpec) error {
	if err := CheckRequired(b, rec); err != nil {
		return err
	}

	key := b.KeyFor(rec)
	exists, err := page.Exists(ctx, key)
	if err != nil {
		return fmt.Errorf("existence check for %q failed: %w", key.Name, err)
	}

	switch b.Operation {
	case OpCreate:
		if exists {
			return &SkipError{Reason: ReasonAlreadyExists}
		}
	case OpUpdate, OpDelete:
		if !exists {
			return &SkipError{Reason: ReasonNotFound}
		}
	}
	return nil
}
