// Package dataset loads batch test data from JSON files and validates it
// against per-operation schemas.
package dataset

import (
	"bytes"
	"embed"
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"sync"

	"github.com/xeipuuv/gojsonschema"

	"github.com/dbsmedya/goerpcheck/internal/batch"
)

//go:embed schemas/*.json
var schemaFiles embed.FS

var (
	schemasOnce sync.Once
	schemas     map[batch.Operation]*gojsonschema.Schema
	schemasErr  error
)

// SchemaError lists every schema violation found in a data file.
type SchemaError struct {
	Operation batch.Operation
	Issues    []string
}

func (e *SchemaError) Error() string {
	return fmt.Sprintf("data does not match %s schema: %s", e.Operation, strings.Join(e.Issues, "; "))
}

func loadSchemas() (map[batch.Operation]*gojsonschema.Schema, error) {
	schemasOnce.Do(func() {
		schemas = make(map[batch.Operation]*gojsonschema.Schema, 3)
		for _, op := range []batch.Operation{batch.OpCreate, batch.OpUpdate, batch.OpDelete} {
			raw, err := schemaFiles.ReadFile("schemas/" + string(op) + ".json")
			if err != nil {
				schemasErr = fmt.Errorf("failed to read %s schema: %w", op, err)
				return
			}
			s, err := gojsonschema.NewSchema(gojsonschema.NewBytesLoader(raw))
			if err != nil {
				schemasErr = fmt.Errorf("failed to compile %s schema: %w", op, err)
				return
			}
			schemas[op] = s
		}
	})
	return schemas, schemasErr
}

// Validate checks raw JSON against the schema for op.
func Validate(raw []byte, op batch.Operation) error {
	all, err := loadSchemas()
	if err != nil {
		return err
	}
	schema, ok := all[op]
	if !ok {
		return fmt.Errorf("no schema for operation %q", op)
	}

	result, err := schema.Validate(gojsonschema.NewBytesLoader(raw))
	if err != nil {
		return fmt.Errorf("failed to parse data: %w", err)
	}
	if result.Valid() {
		return nil
	}

	issues := make([]string, 0, len(result.Errors()))
	for _, e := range result.Errors() {
		issues = append(issues, e.String())
	}
	return &SchemaError{Operation: op, Issues: issues}
}

// Parse validates raw and converts it to record specs in file order.
func Parse(raw []byte, op batch.Operation) ([]batch.RecordSpec, error) {
	if err := Validate(raw, op); err != nil {
		return nil, err
	}

	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()

	if op == batch.OpUpdate {
		var rows []struct {
			Existing string                 `json:"existing"`
			Values   map[string]interface{} `json:"values"`
		}
		if err := dec.Decode(&rows); err != nil {
			return nil, fmt.Errorf("failed to decode update records: %w", err)
		}
		out := make([]batch.RecordSpec, 0, len(rows))
		for _, r := range rows {
			out = append(out, batch.RecordSpec{Key: r.Existing, Values: toStrings(r.Values)})
		}
		return out, nil
	}

	var rows []map[string]interface{}
	if err := dec.Decode(&rows); err != nil {
		return nil, fmt.Errorf("failed to decode %s records: %w", op, err)
	}
	out := make([]batch.RecordSpec, 0, len(rows))
	for _, r := range rows {
		out = append(out, batch.RecordSpec{Fields: toStrings(r)})
	}
	return out, nil
}

// Load reads and parses a data file.
func Load(path string, op batch.Operation) ([]batch.RecordSpec, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read data file: %w", err)
	}
	recs, err := Parse(raw, op)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return recs, nil
}
