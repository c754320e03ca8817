// Package report renders batch tallies for people and machines.
package report

import (
	"context"
	"errors"

	"github.com/dbsmedya/goerpcheck/internal/batch"
)

// Multi fans a tally out to several reporters. Every reporter runs even if an
// earlier one fails.
type Multi []batch.Reporter

// Report implements batch.Reporter.
func (m Multi) Report(ctx context.Context, t *batch.Tally) error {
	var errs []error
	for _, r := range m {
		if r == nil {
			continue
		}
		if err := r.Report(ctx, t); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
