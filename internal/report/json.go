package report

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/dbsmedya/goerpcheck/internal/batch"
)

// NewRunID returns a fresh run identifier.
func NewRunID() string {
	return uuid.NewString()
}

// Document is the JSON report layout.
type Document struct {
	RunID       string        `json:"run_id"`
	GeneratedAt time.Time     `json:"generated_at"`
	Totals      Totals        `json:"totals"`
	Batches     []BatchReport `json:"batches"`
}

// Totals sums all batches in the run.
type Totals struct {
	Succeeded int `json:"succeeded"`
	Skipped   int `json:"skipped"`
	Failed    int `json:"failed"`
	Attempted int `json:"attempted"`
}

// BatchReport is one tally plus its grouped reasons.
type BatchReport struct {
	*batch.Tally
	Reasons []batch.ReasonGroup `json:"reasons"`
}

// JSON accumulates tallies for a run and rewrites the report file after each
// batch, so an interrupted run still leaves a readable report.
type JSON struct {
	mu   sync.Mutex
	path string
	doc  Document
}

// NewJSON creates a JSON reporter writing to path. An empty runID gets a
// generated one.
func NewJSON(path, runID string) (*JSON, error) {
	if path == "" {
		return nil, fmt.Errorf("report path is empty")
	}
	if runID == "" {
		runID = NewRunID()
	}
	return &JSON{
		path: path,
		doc:  Document{RunID: runID, Batches: []BatchReport{}},
	}, nil
}

// RunID returns the run identifier written to the report.
func (j *JSON) RunID() string {
	return j.doc.RunID
}

// Report implements batch.Reporter.
func (j *JSON) Report(ctx context.Context, t *batch.Tally) error {
	j.mu.Lock()
	defer j.mu.Unlock()

	j.doc.Batches = append(j.doc.Batches, BatchReport{Tally: t, Reasons: t.Reasons()})
	j.doc.Totals.Succeeded += len(t.Succeeded)
	j.doc.Totals.Skipped += len(t.Skipped)
	j.doc.Totals.Failed += len(t.Failed)
	j.doc.Totals.Attempted += t.Attempted
	j.doc.GeneratedAt = time.Now().UTC()

	return j.write()
}

// write replaces the report file atomically.
func (j *JSON) write() error {
	data, err := json.MarshalIndent(j.doc, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode report: %w", err)
	}

	dir := filepath.Dir(j.path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create report directory: %w", err)
	}

	tmp, err := os.CreateTemp(dir, ".goerpcheck-report-*.json")
	if err != nil {
		return fmt.Errorf("failed to create report file: %w", err)
	}
	if _, err := tmp.Write(append(data, '\n')); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return fmt.Errorf("failed to write report: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("failed to write report: %w", err)
	}
	if err := os.Rename(tmp.Name(), j.path); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("failed to replace report: %w", err)
	}
	return nil
}
