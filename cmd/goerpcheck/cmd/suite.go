package cmd

import (
	"fmt"
	"strings"

	"github.com/dbsmedya/goerpcheck/internal/batch"
	"github.com/dbsmedya/goerpcheck/internal/config"
	"github.com/dbsmedya/goerpcheck/internal/dataset"
	"github.com/dbsmedya/goerpcheck/internal/graph"
)

// suite is the set of batches selected for a run, in dependency order, with
// their data files already loaded and validated.
type suite struct {
	graph   *graph.Graph
	order   []string
	batches map[string]batch.Batch
}

// loadSuite orders the configured batches and loads their data. When only is
// set, the suite holds that batch and everything it depends on.
func loadSuite(cfg *config.Config, only string) (*suite, error) {
	g, err := graph.BuildFromBatches(cfg.Batches)
	if err != nil {
		return nil, fmt.Errorf("failed to build batch graph: %w", err)
	}

	var order []string
	if only != "" {
		order, err = g.OrderFor(strings.ToLower(only))
	} else {
		order, err = g.RunOrder()
	}
	if err != nil {
		return nil, err
	}

	s := &suite{graph: g, order: order, batches: make(map[string]batch.Batch, len(order))}
	for _, name := range order {
		b, err := loadBatch(cfg, name)
		if err != nil {
			return nil, err
		}
		s.batches[name] = b
	}
	return s, nil
}

// loadBatch builds one batch from its configuration and data file.
func loadBatch(cfg *config.Config, name string) (batch.Batch, error) {
	bc, err := cfg.GetBatch(name)
	if err != nil {
		return batch.Batch{}, err
	}
	op, err := batch.ParseOperation(bc.Operation)
	if err != nil {
		return batch.Batch{}, fmt.Errorf("batch %q: %w", name, err)
	}
	records, err := dataset.Load(bc.Data, op)
	if err != nil {
		return batch.Batch{}, fmt.Errorf("batch %q: %w", name, err)
	}
	return batch.Batch{
		Name:       name,
		Entity:     bc.Entity,
		Operation:  op,
		Records:    records,
		Required:   bc.Required,
		LabelField: bc.LabelField,
		Flags:      bc.Flags,
	}, nil
}

// verifiedLabels returns the labels a database cross-check should look up for
// the succeeded records of b. Updates that rename a record are checked under
// the new label.
func verifiedLabels(b batch.Batch, t *batch.Tally) []string {
	labelField := b.LabelField
	if labelField == "" {
		labelField = batch.FieldName
	}

	var labels []string
	for _, out := range t.Outcomes {
		if out.Status != batch.StatusSucceeded {
			continue
		}
		label := out.Label
		if b.Operation == batch.OpUpdate && out.Index >= 0 && out.Index < len(b.Records) {
			if renamed := b.Records[out.Index].Values[labelField]; renamed != "" {
				label = renamed
			}
		}
		labels = append(labels, label)
	}
	return labels
}
