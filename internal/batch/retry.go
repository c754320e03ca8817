package batch

import (
	"context"
	"fmt"

	"github.com/dbsmedya/goerpcheck/internal/logger"
)

// RetryDeleter deletes a record with bounded retries. Each cycle re-verifies
// existence before attempting deletion, so a record that disappeared is
// reported as skipped instead of being deleted twice.
type RetryDeleter struct {
	page    EntityPage
	retries int
	logger  *logger.Logger
}

// NewRetryDeleter creates a deleter that makes at most retries+1 attempts.
func NewRetryDeleter(page EntityPage, retries int, log *logger.Logger) (*RetryDeleter, error) {
	if page == nil {
		return nil, fmt.Errorf("entity page is nil")
	}
	if retries < 0 {
		return nil, fmt.Errorf("retries cannot be negative")
	}
	if log == nil {
		log = logger.NewDefault()
	}
	return &RetryDeleter{page: page, retries: retries, logger: log}, nil
}

// Delete runs verify-delete cycles until one succeeds, the record is gone or
// retries are exhausted. Only the final outcome is returned.
func (d *RetryDeleter) Delete(ctx context.Context, key Key, label string) Outcome {
	var lastErr error
	attempts := 0
	acted := false

	for cycle := 0; cycle <= d.retries; cycle++ {
		if err := ctx.Err(); err != nil {
			lastErr = err
			break
		}
		if cycle > 0 {
			d.logger.Warnw("Retrying delete",
				"label", label,
				"cycle", cycle+1,
				"max_cycles", d.retries+1,
				"error", lastErr,
			)
			if acted {
				returnToListing(ctx, d.page, d.logger)
				acted = false
			}
		}

		exists, err := d.page.Exists(ctx, key)
		if err != nil {
			lastErr = fmt.Errorf("existence check for %q failed: %w", key.Name, err)
			continue
		}
		if !exists {
			out := Skipped(label, ReasonNotFound)
			out.Attempts = attempts
			return out
		}

		attempts++
		acted = true
		if err := d.page.Delete(ctx, key); err != nil {
			lastErr = err
			continue
		}

		out := Succeeded(label, OpDelete)
		out.Attempts = attempts
		return out
	}

	out := Failed(label, lastErr)
	out.Attempts = attempts
	return out
}

// returnToListing navigates back after an action, reloading when back fails.
// Its result never affects classification.
func returnToListing(ctx context.Context, page EntityPage, log *logger.Logger) {
	err := page.Back(ctx)
	if err == nil {
		return
	}
	log.Warnw("Navigation back failed, reloading view", "error", err)
	if err := page.Reload(ctx); err != nil {
		log.Errorw("View reload failed", "error", err)
	}
}
