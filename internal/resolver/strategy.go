package resolver

import (
	"context"
	"fmt"
	"strings"

	"github.com/dbsmedya/goerpcheck/internal/view"
)

// Strategy adapts the resolver loop to one kind of UI collection.
type Strategy interface {
	Name() string
	// Candidates enumerates the currently rendered candidates in render order.
	Candidates(ctx context.Context, v view.View, c Collection) ([]view.Element, error)
	// Disclose performs one disclosure step. It returns false when nothing
	// more can be revealed.
	Disclose(ctx context.Context, v view.View, c Collection) (bool, error)
	// Select acts on the matched candidate and reports whether it clicked.
	Select(ctx context.Context, el view.Element, c Collection) (bool, error)
	// Limit is the maximum number of disclosure steps.
	Limit(opts Options) int
}

// Preparer is implemented by strategies that act on the surface once before
// the first scan.
type Preparer interface {
	Prepare(ctx context.Context, v view.View, c Collection, crit Criterion) error
}

// Strategy names as used in configuration.
const (
	NameRowFilter     = "row_filter"
	NameListBoxRow    = "list_box_row"
	NamePaginatedText = "paginated_text"
	NameAriaOption    = "aria_option"
	NameVirtualScroll = "virtual_scroll"
	NameTypeAhead     = "type_ahead"
)

// StrategyByName builds the named strategy from opts.
func StrategyByName(name string, opts Options) (Strategy, error) {
	switch name {
	case NameRowFilter:
		return &RowFilter{Offset: opts.RowClickOffset}, nil
	case NameListBoxRow:
		return &ListBoxRow{Delta: opts.ScrollDelta}, nil
	case NamePaginatedText:
		return &PaginatedText{}, nil
	case NameAriaOption:
		return &AriaOption{Delta: opts.ScrollDelta}, nil
	case NameVirtualScroll:
		return &VirtualScroll{Delta: opts.ScrollDelta}, nil
	case NameTypeAhead:
		return &TypeAhead{Inner: &AriaOption{Delta: opts.ScrollDelta}}, nil
	default:
		return nil, fmt.Errorf("unknown strategy %q", name)
	}
}

func query(ctx context.Context, v view.View, c Collection) ([]view.Element, error) {
	if c.Item == "" {
		return nil, fmt.Errorf("collection has no item selector")
	}
	return v.Query(ctx, c.Item)
}

func scrollRoot(c Collection) string {
	if c.Root != "" {
		return c.Root
	}
	return c.Item
}

func isSelected(ctx context.Context, el view.Element, attr string) bool {
	val, err := el.Attribute(ctx, attr)
	if err != nil {
		return false
	}
	return strings.EqualFold(strings.TrimSpace(val), "true")
}

// RowFilter matches rows of an already filtered table or grid and clicks at a
// fixed offset inside the row. It never discloses.
type RowFilter struct {
	Offset view.Point
}

func (s *RowFilter) Name() string { return NameRowFilter }

func (s *RowFilter) Candidates(ctx context.Context, v view.View, c Collection) ([]view.Element, error) {
	return query(ctx, v, c)
}

func (s *RowFilter) Disclose(context.Context, view.View, Collection) (bool, error) {
	return false, nil
}

func (s *RowFilter) Select(ctx context.Context, el view.Element, _ Collection) (bool, error) {
	offset := s.Offset
	if err := el.Click(ctx, view.ClickOptions{Offset: &offset}); err != nil {
		return false, err
	}
	return true, nil
}

func (s *RowFilter) Limit(Options) int { return 0 }

// ListBoxRow scans fixed-class list rows and scrolls the list box to reveal more.
type ListBoxRow struct {
	Delta int
}

func (s *ListBoxRow) Name() string { return NameListBoxRow }

func (s *ListBoxRow) Candidates(ctx context.Context, v view.View, c Collection) ([]view.Element, error) {
	return query(ctx, v, c)
}

func (s *ListBoxRow) Disclose(ctx context.Context, v view.View, c Collection) (bool, error) {
	if err := v.ScrollBy(ctx, scrollRoot(c), s.Delta); err != nil {
		return false, err
	}
	return true, nil
}

func (s *ListBoxRow) Select(ctx context.Context, el view.Element, c Collection) (bool, error) {
	if c.SelectedAttr != "" && isSelected(ctx, el, c.SelectedAttr) {
		return false, nil
	}
	if err := el.Click(ctx, view.ClickOptions{}); err != nil {
		return false, err
	}
	return true, nil
}

func (s *ListBoxRow) Limit(opts Options) int { return opts.MaxDisclosureAttempts }

// PaginatedText scans plain text nodes and follows the "next" control. It is
// capped at MaxPages and never wraps around to the first page.
type PaginatedText struct{}

func (s *PaginatedText) Name() string { return NamePaginatedText }

func (s *PaginatedText) Candidates(ctx context.Context, v view.View, c Collection) ([]view.Element, error) {
	return query(ctx, v, c)
}

func (s *PaginatedText) Disclose(ctx context.Context, v view.View, c Collection) (bool, error) {
	if c.Next == "" {
		return false, nil
	}
	controls, err := v.Query(ctx, c.Next)
	if err != nil {
		return false, err
	}
	if len(controls) == 0 {
		return false, nil
	}
	next := controls[0]
	if visible, err := next.Visible(ctx); err != nil || !visible {
		return false, nil
	}
	if disabled, _ := next.Attribute(ctx, "disabled"); disabled != "" {
		return false, nil
	}
	if isSelected(ctx, next, "aria-disabled") {
		return false, nil
	}
	if err := next.Click(ctx, view.ClickOptions{}); err != nil {
		return false, err
	}
	return true, nil
}

func (s *PaginatedText) Select(ctx context.Context, el view.Element, _ Collection) (bool, error) {
	if err := el.Click(ctx, view.ClickOptions{}); err != nil {
		return false, err
	}
	return true, nil
}

func (s *PaginatedText) Limit(opts Options) int { return opts.MaxPages }

// AriaOption selects ARIA list items or options. A candidate already marked
// selected is returned without clicking.
type AriaOption struct {
	Delta int
}

func (s *AriaOption) Name() string { return NameAriaOption }

func (s *AriaOption) Candidates(ctx context.Context, v view.View, c Collection) ([]view.Element, error) {
	return query(ctx, v, c)
}

func (s *AriaOption) Disclose(ctx context.Context, v view.View, c Collection) (bool, error) {
	if c.Root == "" || s.Delta <= 0 {
		return false, nil
	}
	if err := v.ScrollBy(ctx, c.Root, s.Delta); err != nil {
		return false, err
	}
	return true, nil
}

func (s *AriaOption) Select(ctx context.Context, el view.Element, c Collection) (bool, error) {
	if isSelected(ctx, el, c.selectedAttr()) {
		return false, nil
	}
	if err := el.Click(ctx, view.ClickOptions{}); err != nil {
		return false, err
	}
	return true, nil
}

func (s *AriaOption) Limit(opts Options) int { return opts.MaxDisclosureAttempts }

// VirtualScroll handles lists that only render a window of their items. The
// live subset is re-queried every attempt and the container is scrolled by a
// fixed delta.
type VirtualScroll struct {
	Delta int
}

func (s *VirtualScroll) Name() string { return NameVirtualScroll }

func (s *VirtualScroll) Candidates(ctx context.Context, v view.View, c Collection) ([]view.Element, error) {
	return query(ctx, v, c)
}

func (s *VirtualScroll) Disclose(ctx context.Context, v view.View, c Collection) (bool, error) {
	if err := v.ScrollBy(ctx, scrollRoot(c), s.Delta); err != nil {
		return false, err
	}
	return true, nil
}

func (s *VirtualScroll) Select(ctx context.Context, el view.Element, _ Collection) (bool, error) {
	if err := el.Click(ctx, view.ClickOptions{}); err != nil {
		return false, err
	}
	return true, nil
}

func (s *VirtualScroll) Limit(opts Options) int { return opts.MaxDisclosureAttempts }

// TypeAhead narrows a lookup popup by typing the criterion into its filter
// input, then resolves through Inner.
type TypeAhead struct {
	Inner Strategy
}

func (s *TypeAhead) Name() string { return NameTypeAhead }

func (s *TypeAhead) Prepare(ctx context.Context, v view.View, c Collection, crit Criterion) error {
	if c.Filter == "" {
		return fmt.Errorf("collection has no filter selector")
	}
	return v.Fill(ctx, c.Filter, strings.TrimSpace(crit.Text))
}

func (s *TypeAhead) Candidates(ctx context.Context, v view.View, c Collection) ([]view.Element, error) {
	return s.Inner.Candidates(ctx, v, c)
}

func (s *TypeAhead) Disclose(ctx context.Context, v view.View, c Collection) (bool, error) {
	return s.Inner.Disclose(ctx, v, c)
}

func (s *TypeAhead) Select(ctx context.Context, el view.Element, c Collection) (bool, error) {
	return s.Inner.Select(ctx, el, c)
}

func (s *TypeAhead) Limit(opts Options) int { return s.Inner.Limit(opts) }
