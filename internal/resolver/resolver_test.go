package resolver

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dbsmedya/goerpcheck/internal/logger"
	"github.com/dbsmedya/goerpcheck/internal/view"
	"github.com/dbsmedya/goerpcheck/internal/view/viewtest"
)

func testOptions(maxAttempts int) Options {
	return Options{
		MaxDisclosureAttempts: maxAttempts,
		MaxPages:              5,
		ScrollDelta:           300,
		RowClickOffset:        view.Point{X: 10, Y: 5},
	}
}

func newTestResolver(t *testing.T, v view.View, maxAttempts int) *Resolver {
	t.Helper()
	r, err := New(v, testOptions(maxAttempts), logger.NewNop())
	require.NoError(t, err)
	return r
}

func numbered(prefix string, n int) []*viewtest.Node {
	nodes := make([]*viewtest.Node, 0, n)
	for i := 0; i < n; i++ {
		nodes = append(nodes, &viewtest.Node{Text: fmt.Sprintf("%s %02d", prefix, i)})
	}
	return nodes
}

// ============================================================================
// Criterion
// ============================================================================

func TestCriterionMatches(t *testing.T) {
	tests := []struct {
		name      string
		crit      Criterion
		candidate string
		want      bool
	}{
		{"contains", Criterion{Text: "Acme"}, "Acme Ltd", true},
		{"contains trimmed", Criterion{Text: " Acme "}, "\n  Acme Ltd  ", true},
		{"contains miss", Criterion{Text: "Globex"}, "Acme Ltd", false},
		{"exact hit", Criterion{Text: "Acme", Exact: true}, "  Acme ", true},
		{"exact rejects superstring", Criterion{Text: "Acme", Exact: true}, "Acme Ltd", false},
		{"case sensitive", Criterion{Text: "acme"}, "Acme", false},
		{"token hit", Criterion{Text: "Widget", Token: "W-1"}, "Widget  W-1", true},
		{"token required", Criterion{Text: "Widget", Token: "W-1"}, "Widget Pro  W-2", false},
		{"token whole word", Criterion{Text: "Widget", Token: "W-1"}, "Widget  W-10", false},
		{"token at start", Criterion{Text: "Widget", Token: "W-1"}, "W-1 Widget", true},
		{"token repeated", Criterion{Text: "Widget", Token: "W-1"}, "W-10 Widget (W-1)", true},
		{"token only", Criterion{Token: "W-1"}, "Widget W-1", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.crit.Matches(tt.candidate))
		})
	}
}

// ============================================================================
// Construction
// ============================================================================

func TestNew_Validation(t *testing.T) {
	_, err := New(nil, testOptions(3), nil)
	assert.Error(t, err)

	_, err = New(viewtest.New(), testOptions(0), nil)
	assert.Error(t, err)

	r, err := New(viewtest.New(), testOptions(3), nil)
	require.NoError(t, err)
	assert.NotNil(t, r.logger, "nil logger should default")
}

func TestOptionsFromConfig(t *testing.T) {
	opts := DefaultOptions()
	assert.Equal(t, 10, opts.MaxDisclosureAttempts)
	assert.Equal(t, 50, opts.MaxPages)
	assert.Equal(t, 300, opts.ScrollDelta)
	assert.Equal(t, view.Point{X: 10, Y: 5}, opts.RowClickOffset)
	assert.Equal(t, 2*time.Second, opts.SettleTimeout)
	assert.Equal(t, 250*time.Millisecond, opts.SettleDelay)
}

// ============================================================================
// Virtualized scroll
// ============================================================================

func TestVirtualScroll_FoundAfterThreeScrolls(t *testing.T) {
	ctx := context.Background()
	v := viewtest.New()
	nodes := numbered("Item", 10)
	nodes[7].Text = "Target Account"
	v.SetWindowed(".vrow", ".vlist", 5, 1, nodes...)

	r := newTestResolver(t, v, 10)
	out, err := r.Resolve(ctx, &VirtualScroll{Delta: 300}, Collection{Item: ".vrow", Root: ".vlist"}, Criterion{Text: "Target"})
	require.NoError(t, err)

	require.True(t, out.Found)
	assert.Equal(t, 3, out.Attempts)
	assert.Equal(t, 3, v.Count(viewtest.OpScroll))
	assert.Equal(t, "Target Account", out.Text)
	assert.True(t, out.Clicked)
	assert.Equal(t, 1, nodes[7].Clicks)
	assert.NoError(t, out.Err())
}

func TestVirtualScroll_NotFoundAfterMaxAttempts(t *testing.T) {
	ctx := context.Background()
	v := viewtest.New()
	v.SetWindowed(".vrow", ".vlist", 5, 1, numbered("Item", 50)...)

	r := newTestResolver(t, v, 4)
	out, err := r.Resolve(ctx, &VirtualScroll{Delta: 300}, Collection{Item: ".vrow", Root: ".vlist"}, Criterion{Text: "Missing"})
	require.NoError(t, err)

	assert.False(t, out.Found)
	assert.Equal(t, 4, out.Attempts)
	assert.Equal(t, 4, v.Count(viewtest.OpScroll))
	assert.Equal(t, 0, v.Count(viewtest.OpClick))

	var nf *NotFoundError
	require.True(t, errors.As(out.Err(), &nf))
	assert.Equal(t, 4, nf.Attempts)
	assert.Equal(t, NameVirtualScroll, nf.Strategy)
	assert.Equal(t, "Missing", nf.Criterion.Text)
}

func TestVirtualScroll_RequeriesLiveSubset(t *testing.T) {
	ctx := context.Background()
	v := viewtest.New()
	v.SetWindowed(".vrow", ".vlist", 2, 2, viewtest.Texts("a", "b", "c", "d", "late")...)

	r := newTestResolver(t, v, 5)
	out, err := r.Resolve(ctx, &VirtualScroll{Delta: 100}, Collection{Item: ".vrow", Root: ".vlist"}, Criterion{Text: "late"})
	require.NoError(t, err)
	require.True(t, out.Found)
	assert.Equal(t, 2, out.Attempts)
}

// ============================================================================
// List-box rows
// ============================================================================

func TestListBoxRow_NotFoundAfterMaxAttempts(t *testing.T) {
	ctx := context.Background()
	v := viewtest.New()
	v.SetWindowed(".lb-row", ".lb", 3, 1, numbered("Row", 30)...)

	r := newTestResolver(t, v, 6)
	out, err := r.Resolve(ctx, &ListBoxRow{Delta: 40}, Collection{Item: ".lb-row", Root: ".lb"}, Criterion{Text: "Nope"})
	require.NoError(t, err)

	assert.False(t, out.Found)
	assert.Equal(t, 6, out.Attempts)
	assert.Equal(t, 6, v.CountOn(viewtest.OpScroll, ".lb"))
}

func TestListBoxRow_LinearScan(t *testing.T) {
	ctx := context.Background()
	v := viewtest.New()
	v.SetList(".lb-row", viewtest.Texts("Cash", "Bank", "Bank Charges")...)

	r := newTestResolver(t, v, 3)
	out, err := r.Resolve(ctx, &ListBoxRow{Delta: 40}, Collection{Item: ".lb-row"}, Criterion{Text: "Bank"})
	require.NoError(t, err)

	require.True(t, out.Found)
	assert.Equal(t, "Bank", out.Text, "first match in render order wins")
	assert.Equal(t, 0, out.Attempts)
}

func TestListBoxRow_AlreadySelectedIsIdempotent(t *testing.T) {
	ctx := context.Background()
	v := viewtest.New()
	row := &viewtest.Node{Text: "Bank", Attrs: map[string]string{"data-selected": "true"}}
	v.SetList(".lb-row", row)

	r := newTestResolver(t, v, 3)
	out, err := r.Resolve(ctx, &ListBoxRow{Delta: 40}, Collection{Item: ".lb-row", SelectedAttr: "data-selected"}, Criterion{Text: "Bank"})
	require.NoError(t, err)

	require.True(t, out.Found)
	assert.False(t, out.Clicked)
	assert.Equal(t, 0, row.Clicks)
}

// ============================================================================
// ARIA options
// ============================================================================

func TestAriaOption_AlreadySelectedShortCircuits(t *testing.T) {
	ctx := context.Background()
	v := viewtest.New()
	opt := &viewtest.Node{Text: "EUR", Attrs: map[string]string{"aria-selected": "true"}}
	v.SetList("[role=option]", &viewtest.Node{Text: "USD"}, opt)

	r := newTestResolver(t, v, 3)
	out, err := r.Resolve(ctx, &AriaOption{}, Collection{Item: "[role=option]"}, Criterion{Text: "EUR", Exact: true})
	require.NoError(t, err)

	require.True(t, out.Found)
	assert.False(t, out.Clicked)
	assert.Equal(t, 0, v.Count(viewtest.OpClick))
}

func TestAriaOption_ClicksUnselected(t *testing.T) {
	ctx := context.Background()
	v := viewtest.New()
	opt := &viewtest.Node{Text: "EUR", Attrs: map[string]string{"aria-selected": "false"}}
	v.SetList("[role=option]", opt)

	r := newTestResolver(t, v, 3)
	out, err := r.Resolve(ctx, &AriaOption{}, Collection{Item: "[role=option]"}, Criterion{Text: "EUR"})
	require.NoError(t, err)

	require.True(t, out.Found)
	assert.True(t, out.Clicked)
	assert.Equal(t, 1, opt.Clicks)
}

func TestAriaOption_NoRootDoesNotDisclose(t *testing.T) {
	ctx := context.Background()
	v := viewtest.New()
	v.SetList("[role=option]", viewtest.Texts("USD")...)

	r := newTestResolver(t, v, 3)
	out, err := r.Resolve(ctx, &AriaOption{Delta: 100}, Collection{Item: "[role=option]"}, Criterion{Text: "EUR"})
	require.NoError(t, err)

	assert.False(t, out.Found)
	assert.Equal(t, 0, out.Attempts)
	assert.Equal(t, 0, v.Count(viewtest.OpScroll))
}

// ============================================================================
// Row filter
// ============================================================================

func TestRowFilter_ClicksAtOffset(t *testing.T) {
	ctx := context.Background()
	v := viewtest.New()
	row := &viewtest.Node{Text: "Acme Ltd   ACM-01   Active"}
	v.SetList("tbody tr", &viewtest.Node{Text: "Globex"}, row)

	r := newTestResolver(t, v, 3)
	out, err := r.Resolve(ctx, &RowFilter{Offset: view.Point{X: 10, Y: 5}}, Collection{Item: "tbody tr"}, Criterion{Text: "Acme"})
	require.NoError(t, err)

	require.True(t, out.Found)
	require.Equal(t, 1, row.Clicks)
	require.NotNil(t, row.LastClick().Offset)
	assert.Equal(t, view.Point{X: 10, Y: 5}, *row.LastClick().Offset)
}

func TestRowFilter_NeverDiscloses(t *testing.T) {
	ctx := context.Background()
	v := viewtest.New()
	v.SetList("tbody tr", viewtest.Texts("Globex")...)

	r := newTestResolver(t, v, 10)
	out, err := r.Resolve(ctx, &RowFilter{}, Collection{Item: "tbody tr", Root: ".grid"}, Criterion{Text: "Acme"})
	require.NoError(t, err)

	assert.False(t, out.Found)
	assert.Equal(t, 0, out.Attempts)
	assert.Equal(t, 0, v.Count(viewtest.OpScroll))
}

// ============================================================================
// Paginated text
// ============================================================================

func TestPaginatedText_FollowsNext(t *testing.T) {
	ctx := context.Background()
	v := viewtest.New()
	v.SetPaged(".txt", ".next", viewtest.Texts("a", "b"), viewtest.Texts("c"), viewtest.Texts("Target"))

	r := newTestResolver(t, v, 10)
	out, err := r.Resolve(ctx, &PaginatedText{}, Collection{Item: ".txt", Next: ".next"}, Criterion{Text: "Target"})
	require.NoError(t, err)

	require.True(t, out.Found)
	assert.Equal(t, 2, out.Attempts)
	assert.Equal(t, 2, v.Page(".txt"))
}

func TestPaginatedText_StopsAtLastPageWithoutWrap(t *testing.T) {
	ctx := context.Background()
	v := viewtest.New()
	v.SetPaged(".txt", ".next", viewtest.Texts("a"), viewtest.Texts("b"))

	r := newTestResolver(t, v, 10)
	out, err := r.Resolve(ctx, &PaginatedText{}, Collection{Item: ".txt", Next: ".next"}, Criterion{Text: "zzz"})
	require.NoError(t, err)

	assert.False(t, out.Found)
	assert.Equal(t, 1, out.Attempts)
	assert.Equal(t, 1, v.Page(".txt"), "must not wrap back to the first page")
}

func TestPaginatedText_CappedByMaxPages(t *testing.T) {
	ctx := context.Background()
	v := viewtest.New()
	pages := make([][]*viewtest.Node, 20)
	for i := range pages {
		pages[i] = viewtest.Texts(fmt.Sprintf("p%d", i))
	}
	v.SetPaged(".txt", ".next", pages...)

	r := newTestResolver(t, v, 10) // MaxPages is 5
	out, err := r.Resolve(ctx, &PaginatedText{}, Collection{Item: ".txt", Next: ".next"}, Criterion{Text: "p19"})
	require.NoError(t, err)

	assert.False(t, out.Found)
	assert.Equal(t, 5, out.Attempts)
}

func TestPaginatedText_DisabledNext(t *testing.T) {
	ctx := context.Background()
	v := viewtest.New()
	v.SetList(".txt", viewtest.Texts("a")...)
	next := v.Show(".next")
	next.Attrs = map[string]string{"aria-disabled": "true"}

	r := newTestResolver(t, v, 10)
	out, err := r.Resolve(ctx, &PaginatedText{}, Collection{Item: ".txt", Next: ".next"}, Criterion{Text: "b"})
	require.NoError(t, err)

	assert.False(t, out.Found)
	assert.Equal(t, 0, next.Clicks)
}

// ============================================================================
// Type-ahead
// ============================================================================

func TestTypeAhead_FillsFilterThenResolves(t *testing.T) {
	ctx := context.Background()
	v := viewtest.New()
	v.SetList("[role=option]", viewtest.Texts("Main Warehouse")...)

	r := newTestResolver(t, v, 3)
	out, err := r.Resolve(ctx, &TypeAhead{Inner: &AriaOption{}},
		Collection{Item: "[role=option]", Filter: "input.filter"},
		Criterion{Text: " Main "})
	require.NoError(t, err)

	require.True(t, out.Found)
	filled, ok := v.Filled("input.filter")
	require.True(t, ok)
	assert.Equal(t, "Main", filled)
}

func TestTypeAhead_MissingFilter(t *testing.T) {
	r := newTestResolver(t, viewtest.New(), 3)
	_, err := r.Resolve(context.Background(), &TypeAhead{Inner: &AriaOption{}}, Collection{Item: "x"}, Criterion{Text: "a"})
	assert.Error(t, err)
}

// ============================================================================
// Loop behavior
// ============================================================================

func TestResolve_SkipsInvisibleCandidates(t *testing.T) {
	ctx := context.Background()
	v := viewtest.New()
	hidden := &viewtest.Node{Text: "Acme", Hidden: true}
	shown := &viewtest.Node{Text: "Acme"}
	v.SetList(".row", hidden, shown)

	r := newTestResolver(t, v, 3)
	out, err := r.Resolve(ctx, &ListBoxRow{}, Collection{Item: ".row"}, Criterion{Text: "Acme"})
	require.NoError(t, err)

	require.True(t, out.Found)
	assert.Equal(t, 0, hidden.Clicks)
	assert.Equal(t, 1, shown.Clicks)
}

func TestLocate_DoesNotSelect(t *testing.T) {
	ctx := context.Background()
	v := viewtest.New()
	row := &viewtest.Node{Text: "Acme"}
	v.SetList(".row", row)

	r := newTestResolver(t, v, 3)
	out, err := r.Locate(ctx, &RowFilter{}, Collection{Item: ".row"}, Criterion{Text: "Acme"})
	require.NoError(t, err)

	require.True(t, out.Found)
	assert.False(t, out.Clicked)
	assert.Equal(t, 0, row.Clicks)
}

func TestResolve_SelectErrorPropagates(t *testing.T) {
	v := viewtest.New()
	v.SetList(".row", &viewtest.Node{Text: "Acme", ClickErr: errors.New("detached")})

	r := newTestResolver(t, v, 3)
	_, err := r.Resolve(context.Background(), &RowFilter{}, Collection{Item: ".row"}, Criterion{Text: "Acme"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "detached")
}

func TestResolve_MissingItemSelector(t *testing.T) {
	r := newTestResolver(t, viewtest.New(), 3)
	_, err := r.Resolve(context.Background(), &RowFilter{}, Collection{}, Criterion{Text: "a"})
	assert.Error(t, err)
}

func TestResolve_CancelledContext(t *testing.T) {
	v := viewtest.New()
	v.SetList(".row", viewtest.Texts("a")...)
	r := newTestResolver(t, v, 3)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := r.Resolve(ctx, &RowFilter{}, Collection{Item: ".row"}, Criterion{Text: "a"})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestResolve_SettleFallsBackToDelay(t *testing.T) {
	ctx := context.Background()
	v := viewtest.New()
	v.IdleErr = errors.New("still loading")
	v.SetWindowed(".vrow", ".vlist", 1, 1, viewtest.Texts("a", "b")...)

	opts := testOptions(3)
	opts.SettleDelay = time.Millisecond
	r, err := New(v, opts, logger.NewNop())
	require.NoError(t, err)

	out, err := r.Resolve(ctx, &VirtualScroll{Delta: 10}, Collection{Item: ".vrow", Root: ".vlist"}, Criterion{Text: "b"})
	require.NoError(t, err)
	assert.True(t, out.Found)
	assert.Equal(t, 1, out.Attempts)
}

func TestCriterionEmpty(t *testing.T) {
	assert.True(t, Criterion{}.Empty())
	assert.True(t, Criterion{Text: "  ", Exact: true}.Empty())
	assert.False(t, Criterion{Text: "a"}.Empty())
	assert.False(t, Criterion{Token: "W-1"}.Empty())
}

func TestResolve_EmptyCriterionSelectsNothing(t *testing.T) {
	v := viewtest.New()
	options := viewtest.Texts("USD", "EUR")
	v.SetList(".opt", options...)
	r := newTestResolver(t, v, 3)

	_, err := r.Resolve(context.Background(), &ListBoxRow{}, Collection{Item: ".opt"}, Criterion{Text: " "})
	assert.ErrorIs(t, err, ErrEmptyCriterion)
	assert.Equal(t, 0, options[0].Clicks)
	assert.Equal(t, 0, v.Interactions())
}

func TestLocate_TokenSkipsSimilarEarlierRow(t *testing.T) {
	v := viewtest.New()
	v.SetList(".row", viewtest.Texts("Widget Pro  W-2", "Widget  W-10", "Widget  W-1")...)
	r := newTestResolver(t, v, 3)

	out, err := r.Locate(context.Background(), &RowFilter{}, Collection{Item: ".row"}, Criterion{Text: "Widget", Token: "W-1"})
	require.NoError(t, err)
	require.True(t, out.Found)
	assert.Equal(t, "Widget  W-1", out.Text)
}

func TestResolve_NilStrategy(t *testing.T) {
	r := newTestResolver(t, viewtest.New(), 3)
	_, err := r.Resolve(context.Background(), nil, Collection{Item: "x"}, Criterion{Text: "a"})
	assert.Error(t, err)
}

// ============================================================================
// Strategy registry
// ============================================================================

func TestStrategyByName(t *testing.T) {
	opts := testOptions(3)
	for _, name := range []string{NameRowFilter, NameListBoxRow, NamePaginatedText, NameAriaOption, NameVirtualScroll, NameTypeAhead} {
		t.Run(name, func(t *testing.T) {
			s, err := StrategyByName(name, opts)
			require.NoError(t, err)
			assert.Equal(t, name, s.Name())
		})
	}

	_, err := StrategyByName("telepathy", opts)
	assert.Error(t, err)
}

func TestStrategyLimits(t *testing.T) {
	opts := testOptions(7)
	assert.Equal(t, 0, (&RowFilter{}).Limit(opts))
	assert.Equal(t, 7, (&ListBoxRow{}).Limit(opts))
	assert.Equal(t, 5, (&PaginatedText{}).Limit(opts))
	assert.Equal(t, 7, (&AriaOption{}).Limit(opts))
	assert.Equal(t, 7, (&VirtualScroll{}).Limit(opts))
	assert.Equal(t, 5, (&TypeAhead{Inner: &PaginatedText{}}).Limit(opts))
}
