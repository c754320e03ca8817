// Package lock provides MySQL advisory locks that keep two runs from driving
// the same batch at once.
package lock

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
)

// ErrLockHeld is returned when another instance holds the lock.
var ErrLockHeld = errors.New("lock is held by another instance")

// DefaultTimeoutSeconds is how long Acquire waits for a contended lock.
const DefaultTimeoutSeconds = 1

// maxNameLength is MySQL's limit for GET_LOCK names.
const maxNameLength = 64

// AdvisoryLock is a named MySQL lock. GET_LOCK is scoped to a session, so
// the lock pins one pooled connection from Acquire until Release.
type AdvisoryLock struct {
	db   *sql.DB
	conn *sql.Conn
	name string
}

// NewAdvisoryLock creates a lock called name. Nothing is acquired yet.
func NewAdvisoryLock(db *sql.DB, name string) *AdvisoryLock {
	return &AdvisoryLock{db: db, name: name}
}

// BatchLockName returns the lock name for a batch.
// Example: BatchLockName("create customers") -> "goerpcheck:batch:create_customers"
func BatchLockName(batchName string) string {
	sanitized := strings.Map(func(r rune) rune {
		if (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9') || r == '_' || r == '-' {
			return r
		}
		return '_'
	}, batchName)

	name := "goerpcheck:batch:" + sanitized
	if len(name) > maxNameLength {
		name = name[:maxNameLength]
	}
	return name
}

// NewBatchLock creates the advisory lock for a batch.
func NewBatchLock(db *sql.DB, batchName string) *AdvisoryLock {
	return NewAdvisoryLock(db, BatchLockName(batchName))
}

// Name returns the lock name.
func (a *AdvisoryLock) Name() string {
	return a.name
}

// IsHeld reports whether this instance holds the lock.
func (a *AdvisoryLock) IsHeld() bool {
	return a.conn != nil
}

// Acquire waits up to timeoutSeconds for the lock. It returns an error
// wrapping ErrLockHeld when another session keeps it.
//
// MySQL GET_LOCK() return values:
//   - 1: obtained
//   - 0: timed out
//   - NULL: error (out of memory, thread killed)
func (a *AdvisoryLock) Acquire(ctx context.Context, timeoutSeconds int) error {
	if a.conn != nil {
		return nil
	}
	if a.db == nil {
		return fmt.Errorf("database is nil")
	}

	conn, err := a.db.Conn(ctx)
	if err != nil {
		return fmt.Errorf("failed to reserve connection for lock %q: %w", a.name, err)
	}

	var result sql.NullInt64
	if err := conn.QueryRowContext(ctx, "SELECT GET_LOCK(?, ?)", a.name, timeoutSeconds).Scan(&result); err != nil {
		conn.Close()
		return fmt.Errorf("failed to execute GET_LOCK: %w", err)
	}

	switch {
	case !result.Valid:
		conn.Close()
		return fmt.Errorf("GET_LOCK returned NULL for lock %q", a.name)
	case result.Int64 == 1:
		a.conn = conn
		return nil
	case result.Int64 == 0:
		conn.Close()
		return fmt.Errorf("%w: %q", ErrLockHeld, a.name)
	default:
		conn.Close()
		return fmt.Errorf("unexpected GET_LOCK return value: %d", result.Int64)
	}
}

// Release gives the lock back and returns the pinned connection to the pool.
// Releasing a lock that is not held is a no-op.
func (a *AdvisoryLock) Release(ctx context.Context) error {
	if a.conn == nil {
		return nil
	}
	conn := a.conn
	a.conn = nil
	defer conn.Close()

	var result sql.NullInt64
	if err := conn.QueryRowContext(ctx, "SELECT RELEASE_LOCK(?)", a.name).Scan(&result); err != nil {
		return fmt.Errorf("failed to execute RELEASE_LOCK: %w", err)
	}
	if !result.Valid || result.Int64 != 1 {
		return fmt.Errorf("lock %q was not held by this session", a.name)
	}
	return nil
}

// WithLock runs fn while holding the lock. The lock is released even if fn
// panics.
func (a *AdvisoryLock) WithLock(ctx context.Context, timeoutSeconds int, fn func() error) error {
	if err := a.Acquire(ctx, timeoutSeconds); err != nil {
		return err
	}
	defer a.Release(context.WithoutCancel(ctx))
	return fn()
}
