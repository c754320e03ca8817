package batch

import (
	"context"
	"fmt"
	"time"

	"github.com/dbsmedya/goerpcheck/internal/config"
	"github.com/dbsmedya/goerpcheck/internal/logger"
)

// EntityPage is the page object a batch acts through.
type EntityPage interface {
	// Open navigates to the entity listing.
	Open(ctx context.Context) error
	// Exists reports whether a record with key is present on the listing.
	Exists(ctx context.Context, key Key) (bool, error)
	// Create fills and submits a new record, waiting for the success indicator.
	Create(ctx context.Context, fields map[string]string) error
	// Update opens the record addressed by key and applies values.
	Update(ctx context.Context, key Key, values map[string]string) error
	// Delete removes the record addressed by key.
	Delete(ctx context.Context, key Key) error
	Back(ctx context.Context) error
	Reload(ctx context.Context) error
}

// Reporter consumes the tally of a finished batch.
type Reporter interface {
	Report(ctx context.Context, t *Tally) error
}

// Options control orchestration.
type Options struct {
	DeleteRetries int
	FailOnSkipped bool
	// Pause between records.
	Pause    time.Duration
	Reporter Reporter
}

// OptionsFromConfig converts an effective processing configuration.
func OptionsFromConfig(p config.ProcessingConfig) Options {
	return Options{
		DeleteRetries: p.DeleteRetries,
		FailOnSkipped: p.FailOnSkipped,
		Pause:         time.Duration(p.SleepSeconds * float64(time.Second)),
	}
}

// Orchestrator runs batches sequentially against one entity page.
type Orchestrator struct {
	page    EntityPage
	opts    Options
	deleter *RetryDeleter
	logger  *logger.Logger
}

// NewOrchestrator creates an orchestrator for page.
func NewOrchestrator(page EntityPage, opts Options, log *logger.Logger) (*Orchestrator, error) {
	if page == nil {
		return nil, fmt.Errorf("entity page is nil")
	}
	if log == nil {
		log = logger.NewDefault()
	}
	deleter, err := NewRetryDeleter(page, opts.DeleteRetries, log)
	if err != nil {
		return nil, fmt.Errorf("failed to create retry deleter: %w", err)
	}
	return &Orchestrator{
		page:    page,
		opts:    opts,
		deleter: deleter,
		logger:  log,
	}, nil
}

// Run processes every record of b in order. A record's failure never stops
// the batch; only context cancellation ends it early. The tally is always
// returned; the error wraps ErrBatchFailed when the verdict is a failure.
func (o *Orchestrator) Run(ctx context.Context, b Batch) (*Tally, error) {
	if ctx == nil {
		return nil, fmt.Errorf("context is nil")
	}
	if _, err := ParseOperation(string(b.Operation)); err != nil {
		return nil, err
	}

	log := o.logger.WithBatch(b.Name)
	tally := NewTally(b.Name, b.Operation)

	log.Infow("Starting batch",
		"operation", b.Operation,
		"records", len(b.Records),
		"delete_retries", o.opts.DeleteRetries,
		"fail_on_skipped", o.opts.FailOnSkipped,
	)

	if err := o.page.Open(ctx); err != nil {
		log.Warnw("Failed to open entity listing", "error", err)
	}

	for i, rec := range b.Records {
		if err := ctx.Err(); err != nil {
			log.Warn("Context cancelled - stopping before next record")
			tally.Finish()
			o.report(context.WithoutCancel(ctx), log, tally)
			return tally, err
		}

		out := o.processRecord(ctx, log, b, i, rec)
		tally.Add(out)

		if i < len(b.Records)-1 && o.opts.Pause > 0 {
			sleep(ctx, o.opts.Pause)
		}
	}

	tally.Finish()
	o.report(ctx, log, tally)

	verdict := tally.Verdict(o.opts.FailOnSkipped)
	log.Infow("Batch completed",
		"duration", tally.Duration(),
		"succeeded", len(tally.Succeeded),
		"skipped", len(tally.Skipped),
		"failed", len(tally.Failed),
		"passed", verdict == nil,
	)
	return tally, verdict
}

// report hands the tally to the configured reporter. Reporter errors are
// logged and never change the verdict.
func (o *Orchestrator) report(ctx context.Context, log *logger.Logger, tally *Tally) {
	if o.opts.Reporter == nil {
		return
	}
	if err := o.opts.Reporter.Report(ctx, tally); err != nil {
		log.Warnw("Failed to report tally", "error", err)
	}
}

func (o *Orchestrator) processRecord(ctx context.Context, log *logger.Logger, b Batch, idx int, rec RecordSpec) Outcome {
	start := time.Now()
	label := rec.Label(b.Operation, b.LabelField)
	if label == "" {
		label = fmt.Sprintf("#%d", idx+1)
	}
	rlog := log.WithRecord(idx, label)

	var out Outcome
	if b.Operation == OpDelete {
		out = o.deleteRecord(ctx, b, rec, label)
	} else {
		out = o.writeRecord(ctx, b, rec, label)
	}
	out.Index = idx
	out.Duration = time.Since(start)

	switch out.Status {
	case StatusSucceeded:
		rlog.Infow("Record "+out.Result, "attempts", out.Attempts)
	case StatusSkipped:
		rlog.Warnw("Record skipped", "reason", out.Reason)
	case StatusFailed:
		rlog.Warnw("Record failed", "error", out.Reason)
	}
	return out
}

// writeRecord handles create and update: preflight, act, classify.
func (o *Orchestrator) writeRecord(ctx context.Context, b Batch, rec RecordSpec, label string) Outcome {
	if err := Preflight(ctx, o.page, b, rec); err != nil {
		return Classify(b.Operation, label, err)
	}

	var err error
	switch b.Operation {
	case OpCreate:
		err = o.page.Create(ctx, b.FormFields(rec))
	case OpUpdate:
		err = o.page.Update(ctx, b.KeyFor(rec), b.UpdateValues(rec))
	}
	returnToListing(ctx, o.page, o.logger)

	out := Classify(b.Operation, label, err)
	out.Attempts = 1
	return out
}

// deleteRecord checks required data and hands off to the retry wrapper.
func (o *Orchestrator) deleteRecord(ctx context.Context, b Batch, rec RecordSpec, label string) Outcome {
	if err := CheckRequired(b, rec); err != nil {
		return Classify(b.Operation, label, err)
	}
	out := o.deleter.Delete(ctx, b.KeyFor(rec), label)
	if out.Attempts > 0 {
		returnToListing(ctx, o.page, o.logger)
	}
	return out
}

func sleep(ctx context.Context, d time.Duration) {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
	case <-timer.C:
	}
}
