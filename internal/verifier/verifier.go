// Package verifier cross-checks batch results against the ERP database.
package verifier

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/dbsmedya/goerpcheck/internal/batch"
	"github.com/dbsmedya/goerpcheck/internal/logger"
	"github.com/dbsmedya/goerpcheck/internal/sqlutil"
)

// DefaultChunkSize bounds the number of labels per IN clause.
const DefaultChunkSize = 500

// Result holds the outcome of one verification.
type Result struct {
	Table     string
	Operation batch.Operation
	Labels    int   // distinct labels checked
	Expected  int64 // rows expected to match
	Found     int64 // rows that matched
	Match     bool
}

// MismatchError reports a backend count that disagrees with the tally.
type MismatchError struct {
	Table     string
	Operation batch.Operation
	Expected  int64
	Found     int64
}

func (e *MismatchError) Error() string {
	return fmt.Sprintf("verification mismatch in %s after %s: expected %d matching rows, found %d",
		e.Table, e.Operation, e.Expected, e.Found)
}

// Verifier counts rows in the ERP database for labels a batch reported as
// succeeded.
type Verifier struct {
	db        *sql.DB
	chunkSize int
	logger    *logger.Logger
}

// New creates a verifier over db.
func New(db *sql.DB, log *logger.Logger) (*Verifier, error) {
	if db == nil {
		return nil, fmt.Errorf("database is nil")
	}
	if log == nil {
		log = logger.NewDefault()
	}
	return &Verifier{
		db:        db,
		chunkSize: DefaultChunkSize,
		logger:    log,
	}, nil
}

// SetChunkSize sets the number of labels per query.
func (v *Verifier) SetChunkSize(size int) {
	if size > 0 {
		v.chunkSize = size
	}
}

// Verify checks that every label is present in table.column after a create
// or update, and that none is present after a delete.
func (v *Verifier) Verify(ctx context.Context, table, column string, op batch.Operation, labels []string) (*Result, error) {
	qTable, err := sqlutil.QuoteQualified(table)
	if err != nil {
		return nil, err
	}
	if !sqlutil.IsValidIdentifier(column) {
		return nil, &sqlutil.InvalidIdentifierError{Name: column}
	}

	unique := dedupe(labels)
	result := &Result{Table: table, Operation: op, Labels: len(unique)}
	switch op {
	case batch.OpCreate, batch.OpUpdate:
		result.Expected = int64(len(unique))
	case batch.OpDelete:
		result.Expected = 0
	default:
		return nil, fmt.Errorf("unsupported operation %q", op)
	}

	for i := 0; i < len(unique); i += v.chunkSize {
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("verification interrupted: %w", err)
		}
		end := i + v.chunkSize
		if end > len(unique) {
			end = len(unique)
		}
		n, err := v.count(ctx, qTable, column, unique[i:end])
		if err != nil {
			return nil, fmt.Errorf("failed to count %s: %w", table, err)
		}
		result.Found += n
	}

	result.Match = result.Found == result.Expected
	if !result.Match {
		v.logger.Errorw("Verification failed",
			"table", table,
			"operation", string(op),
			"expected", result.Expected,
			"found", result.Found,
		)
		return result, &MismatchError{Table: table, Operation: op, Expected: result.Expected, Found: result.Found}
	}

	v.logger.Debugw("Verification passed",
		"table", table,
		"operation", string(op),
		"labels", result.Labels,
	)
	return result, nil
}

func (v *Verifier) count(ctx context.Context, qTable, column string, labels []string) (int64, error) {
	qColumn := sqlutil.QuoteIdentifier(column)
	query := fmt.Sprintf("SELECT COUNT(DISTINCT %s) FROM %s WHERE %s IN (%s)",
		qColumn, qTable, qColumn, sqlutil.Placeholders(len(labels)))

	args := make([]interface{}, len(labels))
	for i, l := range labels {
		args[i] = l
	}

	var n int64
	if err := v.db.QueryRowContext(ctx, query, args...).Scan(&n); err != nil {
		return 0, err
	}
	return n, nil
}

// dedupe drops empty and repeated labels, keeping first-seen order.
func dedupe(labels []string) []string {
	seen := make(map[string]bool, len(labels))
	out := make([]string, 0, len(labels))
	for _, l := range labels {
		if l == "" || seen[l] {
			continue
		}
		seen[l] = true
		out = append(out, l)
	}
	return out
}
