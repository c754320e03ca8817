// Package pages implements configurable page objects for ERP entity listings.
package pages

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/dbsmedya/goerpcheck/internal/batch"
	"github.com/dbsmedya/goerpcheck/internal/config"
	"github.com/dbsmedya/goerpcheck/internal/logger"
	"github.com/dbsmedya/goerpcheck/internal/resolver"
	"github.com/dbsmedya/goerpcheck/internal/view"
)

// DefaultSuccessTimeout bounds the wait for a success indicator.
const DefaultSuccessTimeout = 10 * time.Second

// Entity drives one entity listing and its edit form as described by an
// EntityConfig.
type Entity struct {
	view           view.View
	resolver       *resolver.Resolver
	cfg            config.EntityConfig
	rowStrategy    resolver.Strategy
	successTimeout time.Duration
	logger         *logger.Logger
}

var _ batch.EntityPage = (*Entity)(nil)

// NewEntity creates a page object for cfg.
func NewEntity(v view.View, r *resolver.Resolver, cfg config.EntityConfig, log *logger.Logger) (*Entity, error) {
	if v == nil {
		return nil, fmt.Errorf("view is nil")
	}
	if r == nil {
		return nil, fmt.Errorf("resolver is nil")
	}
	if cfg.Path == "" || cfg.Rows == "" {
		return nil, fmt.Errorf("entity requires path and rows selector")
	}
	if log == nil {
		log = logger.NewDefault()
	}
	return &Entity{
		view:           v,
		resolver:       r,
		cfg:            cfg,
		rowStrategy:    &resolver.RowFilter{Offset: r.Options().RowClickOffset},
		successTimeout: DefaultSuccessTimeout,
		logger:         log,
	}, nil
}

// SetSuccessTimeout overrides the success indicator wait.
func (e *Entity) SetSuccessTimeout(d time.Duration) {
	if d > 0 {
		e.successTimeout = d
	}
}

func (e *Entity) rows() resolver.Collection {
	return resolver.Collection{Item: e.cfg.Rows}
}

// Open navigates to the listing.
func (e *Entity) Open(ctx context.Context) error {
	if err := e.view.Navigate(ctx, e.cfg.Path); err != nil {
		return err
	}
	_ = e.view.WaitForIdle(ctx, e.successTimeout)
	return nil
}

// filter narrows the listing through the server-side search input.
func (e *Entity) filter(ctx context.Context, text string) error {
	if e.cfg.Search == "" {
		return nil
	}
	if err := e.view.Fill(ctx, e.cfg.Search, text); err != nil {
		return fmt.Errorf("failed to filter listing: %w", err)
	}
	_ = e.view.WaitForIdle(ctx, e.successTimeout)
	return nil
}

// findRow opens the listing, filters it and locates the row for key. When
// sel is set the row is clicked to open the record.
func (e *Entity) findRow(ctx context.Context, key batch.Key, sel bool) (*resolver.Outcome, error) {
	if err := e.Open(ctx); err != nil {
		return nil, err
	}
	term := key.Name
	if key.Code != "" {
		term = key.Code
	}
	if err := e.filter(ctx, term); err != nil {
		return nil, err
	}

	// The code must appear as a whole word so "W-1" skips a "W-10" row.
	crit := resolver.Criterion{Text: key.Name, Token: key.Code}
	if sel {
		return e.resolver.Resolve(ctx, e.rowStrategy, e.rows(), crit)
	}
	return e.resolver.Locate(ctx, e.rowStrategy, e.rows(), crit)
}

// Exists reports whether a row for key is on the listing.
func (e *Entity) Exists(ctx context.Context, key batch.Key) (bool, error) {
	out, err := e.findRow(ctx, key, false)
	if err != nil {
		return false, err
	}
	return out.Found, nil
}

// Create opens a blank form, fills fields and saves.
func (e *Entity) Create(ctx context.Context, fields map[string]string) error {
	if err := e.view.Click(ctx, e.cfg.NewButton, view.ClickOptions{}); err != nil {
		return fmt.Errorf("failed to open new form: %w", err)
	}
	if err := e.waitForm(ctx); err != nil {
		return err
	}
	if err := e.fill(ctx, fields); err != nil {
		return err
	}
	return e.save(ctx)
}

// Update opens the record addressed by key and applies values.
func (e *Entity) Update(ctx context.Context, key batch.Key, values map[string]string) error {
	if err := e.openRecord(ctx, key); err != nil {
		return err
	}
	if err := e.fill(ctx, values); err != nil {
		return err
	}
	return e.save(ctx)
}

// Delete opens the record addressed by key, deletes it and confirms.
func (e *Entity) Delete(ctx context.Context, key batch.Key) error {
	if err := e.openRecord(ctx, key); err != nil {
		return err
	}
	if err := e.view.Click(ctx, e.cfg.DeleteButton, view.ClickOptions{}); err != nil {
		return fmt.Errorf("failed to click delete: %w", err)
	}
	if e.cfg.ConfirmButton != "" {
		if err := e.view.WaitForVisible(ctx, e.cfg.ConfirmButton, e.successTimeout); err != nil {
			return fmt.Errorf("delete confirmation not shown: %w", err)
		}
		if err := e.view.Click(ctx, e.cfg.ConfirmButton, view.ClickOptions{}); err != nil {
			return fmt.Errorf("failed to confirm delete: %w", err)
		}
	}
	return e.awaitSuccess(ctx)
}

// Back leaves the form, preferring the page's own back control.
func (e *Entity) Back(ctx context.Context) error {
	if e.cfg.BackButton != "" {
		if visible, err := e.view.IsVisible(ctx, e.cfg.BackButton); err == nil && visible {
			return e.view.Click(ctx, e.cfg.BackButton, view.ClickOptions{})
		}
	}
	return e.view.Back(ctx)
}

// Reload reloads the current view.
func (e *Entity) Reload(ctx context.Context) error {
	return e.view.Reload(ctx)
}

func (e *Entity) openRecord(ctx context.Context, key batch.Key) error {
	out, err := e.findRow(ctx, key, true)
	if err != nil {
		return err
	}
	if !out.Found {
		return out.Err()
	}
	return e.waitForm(ctx)
}

func (e *Entity) waitForm(ctx context.Context) error {
	if e.cfg.Form == "" {
		return nil
	}
	if err := e.view.WaitForVisible(ctx, e.cfg.Form, e.successTimeout); err != nil {
		return fmt.Errorf("form did not open: %w", err)
	}
	return nil
}

// fill writes values in field-definition order. Lookup fields go through
// their selection strategy.
func (e *Entity) fill(ctx context.Context, values map[string]string) error {
	for name := range values {
		if _, ok := e.cfg.Field(name); !ok {
			return fmt.Errorf("no field definition for %q", name)
		}
	}

	for _, field := range e.cfg.Fields {
		value, ok := values[field.Name]
		if !ok {
			continue
		}
		if field.Lookup != nil {
			if err := e.selectLookup(ctx, field, value); err != nil {
				return fmt.Errorf("field %s: %w", field.Name, err)
			}
			continue
		}
		if err := e.view.Fill(ctx, field.Selector, value); err != nil {
			return fmt.Errorf("field %s: %w", field.Name, err)
		}
	}
	return nil
}

func (e *Entity) selectLookup(ctx context.Context, field config.FieldConfig, value string) error {
	lk := field.Lookup
	if strings.TrimSpace(value) == "" {
		return resolver.ErrEmptyCriterion
	}
	strategy, err := resolver.StrategyByName(lk.Strategy, e.resolver.Options())
	if err != nil {
		return err
	}

	if lk.Trigger != "" {
		if err := e.view.Click(ctx, lk.Trigger, view.ClickOptions{}); err != nil {
			return fmt.Errorf("failed to open lookup: %w", err)
		}
	}
	if lk.Root != "" {
		if err := e.view.WaitForVisible(ctx, lk.Root, e.successTimeout); err != nil {
			return fmt.Errorf("lookup did not open: %w", err)
		}
	}

	out, err := e.resolver.Resolve(ctx, strategy, resolver.Collection{
		Item:         lk.Item,
		Root:         lk.Root,
		Next:         lk.Next,
		Filter:       lk.Filter,
		SelectedAttr: lk.SelectedAttr,
	}, resolver.Criterion{Text: value, Exact: lk.Exact})
	if err != nil {
		return err
	}
	if !out.Found {
		return out.Err()
	}
	e.logger.Debugw("Lookup selected",
		"field", field.Name,
		"value", out.Text,
		"strategy", lk.Strategy,
		"attempts", out.Attempts,
		"clicked", out.Clicked,
	)
	return nil
}

func (e *Entity) save(ctx context.Context) error {
	if err := e.view.Click(ctx, e.cfg.SaveButton, view.ClickOptions{}); err != nil {
		return fmt.Errorf("failed to click save: %w", err)
	}
	return e.awaitSuccess(ctx)
}

// awaitSuccess waits, bounded, for the configured success indicator.
func (e *Entity) awaitSuccess(ctx context.Context) error {
	if e.cfg.Toast != "" {
		if err := e.view.WaitForVisible(ctx, e.cfg.Toast, e.successTimeout); err != nil {
			return fmt.Errorf("success indicator not shown: %w", err)
		}
	}
	if e.cfg.ToastText != "" {
		if err := e.view.WaitForText(ctx, e.cfg.ToastText, false, e.successTimeout); err != nil {
			return fmt.Errorf("success message not shown: %w", err)
		}
	}
	if e.cfg.Toast == "" && e.cfg.ToastText == "" {
		_ = e.view.WaitForIdle(ctx, e.successTimeout)
	}
	return nil
}
