package batch

import (
	"errors"
	"fmt"
	"time"

	"github.com/elliotchance/orderedmap/v2"
)

// ErrBatchFailed is returned after a batch in which at least one record failed
// (or was skipped, when skips are configured to fail the run).
var ErrBatchFailed = errors.New("batch failed")

// ReasonGroup lists the labels that share a non-success reason.
type ReasonGroup struct {
	Status Status   `json:"status"`
	Reason string   `json:"reason"`
	Labels []string `json:"labels"`
}

type reasonKey struct {
	status Status
	reason string
}

// Tally aggregates the outcomes of one batch. It is append-only while the
// batch runs.
type Tally struct {
	Batch      string    `json:"batch"`
	Operation  Operation `json:"operation"`
	Succeeded  []string  `json:"succeeded"`
	Skipped    []string  `json:"skipped"`
	Failed     []string  `json:"failed"`
	Attempted  int       `json:"attempted"`
	Outcomes   []Outcome `json:"outcomes"`
	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`

	reasons *orderedmap.OrderedMap[reasonKey, []string]
}

// NewTally starts an empty tally.
func NewTally(batchName string, op Operation) *Tally {
	return &Tally{
		Batch:     batchName,
		Operation: op,
		Succeeded: []string{},
		Skipped:   []string{},
		Failed:    []string{},
		StartedAt: time.Now(),
		reasons:   orderedmap.NewOrderedMap[reasonKey, []string](),
	}
}

// Add records one outcome.
func (t *Tally) Add(o Outcome) {
	t.Attempted++
	t.Outcomes = append(t.Outcomes, o)

	switch o.Status {
	case StatusSucceeded:
		t.Succeeded = append(t.Succeeded, o.Label)
		return
	case StatusSkipped:
		t.Skipped = append(t.Skipped, o.Label)
	default:
		t.Failed = append(t.Failed, o.Label)
	}

	key := reasonKey{status: o.Status, reason: o.Reason}
	labels, _ := t.reasons.Get(key)
	t.reasons.Set(key, append(labels, o.Label))
}

// Finish stamps the completion time.
func (t *Tally) Finish() {
	t.FinishedAt = time.Now()
}

// Duration is the wall time of the batch.
func (t *Tally) Duration() time.Duration {
	if t.FinishedAt.IsZero() {
		return time.Since(t.StartedAt)
	}
	return t.FinishedAt.Sub(t.StartedAt)
}

// Balanced reports whether every attempted record landed in exactly one bucket.
func (t *Tally) Balanced() bool {
	return len(t.Succeeded)+len(t.Skipped)+len(t.Failed) == t.Attempted
}

// Reasons groups skipped and failed labels by reason in first-seen order.
func (t *Tally) Reasons() []ReasonGroup {
	if t.reasons == nil {
		return nil
	}
	groups := make([]ReasonGroup, 0, t.reasons.Len())
	for el := t.reasons.Front(); el != nil; el = el.Next() {
		groups = append(groups, ReasonGroup{
			Status: el.Key.status,
			Reason: el.Key.reason,
			Labels: el.Value,
		})
	}
	return groups
}

// Verdict returns nil for a passing batch and an error wrapping
// ErrBatchFailed otherwise. Skips only fail the batch when failOnSkipped is set.
func (t *Tally) Verdict(failOnSkipped bool) error {
	if len(t.Failed) > 0 {
		return fmt.Errorf("%w: %s: %d of %d record(s) failed", ErrBatchFailed, t.Batch, len(t.Failed), t.Attempted)
	}
	if failOnSkipped && len(t.Skipped) > 0 {
		return fmt.Errorf("%w: %s: %d of %d record(s) skipped", ErrBatchFailed, t.Batch, len(t.Skipped), t.Attempted)
	}
	return nil
}
