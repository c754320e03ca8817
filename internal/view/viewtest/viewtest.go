// Package viewtest provides a scripted, in-memory view.View for tests.
//
// Collections are registered by item selector. A collection can be static,
// windowed (only a slice is rendered and ScrollBy on its root moves the
// window) or paged (clicking its next control moves to the next page).
// Every interaction is recorded so tests can assert on counts.
package viewtest

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/dbsmedya/goerpcheck/internal/view"
)

// pollInterval is how often WaitForText re-checks the view.
const pollInterval = 5 * time.Millisecond

// Node is one scripted element.
type Node struct {
	Text   string
	Hidden bool
	Attrs  map[string]string
	// OnClick runs after the click is recorded.
	OnClick func(v *View)
	// ClickErr makes clicks on this node fail.
	ClickErr error

	Clicks int
	Value  string
	last   view.ClickOptions
}

// LastClick returns the options of the most recent click.
func (n *Node) LastClick() view.ClickOptions {
	return n.last
}

// Call is one recorded interaction.
type Call struct {
	Op       string
	Selector string
	Value    string
}

// Operation names recorded in Calls.
const (
	OpNavigate = "navigate"
	OpClick    = "click"
	OpFill     = "fill"
	OpScroll   = "scroll"
	OpBack     = "back"
	OpReload   = "reload"
)

type collection struct {
	nodes  []*Node
	root   string
	window int
	step   int
	offset int

	pages [][]*Node
	next  string
	page  int
}

func (c *collection) rendered() []*Node {
	if c.pages != nil {
		if c.page >= len(c.pages) {
			return nil
		}
		return c.pages[c.page]
	}
	if c.window <= 0 {
		return c.nodes
	}
	end := c.offset + c.window
	if end > len(c.nodes) {
		end = len(c.nodes)
	}
	return c.nodes[c.offset:end]
}

// View is a scripted view.View.
type View struct {
	mu          sync.Mutex
	collections map[string]*collection
	controls    map[string]*Node
	clickHooks  map[string]func(v *View)
	errors      map[string]error

	// BackErr makes Back fail.
	BackErr error
	// ReloadErr makes Reload fail.
	ReloadErr error
	// IdleErr makes WaitForIdle fail.
	IdleErr error

	Calls []Call
	URL   string
}

// New returns an empty scripted view.
func New() *View {
	return &View{
		collections: make(map[string]*collection),
		controls:    make(map[string]*Node),
		clickHooks:  make(map[string]func(v *View)),
		errors:      make(map[string]error),
	}
}

// Texts builds nodes from plain strings.
func Texts(texts ...string) []*Node {
	nodes := make([]*Node, 0, len(texts))
	for _, t := range texts {
		nodes = append(nodes, &Node{Text: t})
	}
	return nodes
}

// SetList registers a fully rendered collection under item.
func (v *View) SetList(item string, nodes ...*Node) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.collections[item] = &collection{nodes: nodes}
}

// SetWindowed registers a virtualized collection: only window nodes are
// rendered at once and each ScrollBy on root advances the window by step.
func (v *View) SetWindowed(item, root string, window, step int, nodes ...*Node) {
	v.mu.Lock()
	defer v.mu.Unlock()
	if step <= 0 {
		step = 1
	}
	v.collections[item] = &collection{nodes: nodes, root: root, window: window, step: step}
}

// SetPaged registers a paginated collection advanced by clicking next.
func (v *View) SetPaged(item, next string, pages ...[]*Node) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.collections[item] = &collection{pages: pages, next: next}
}

// Append adds nodes to a registered collection.
func (v *View) Append(item string, nodes ...*Node) {
	v.mu.Lock()
	defer v.mu.Unlock()
	c, ok := v.collections[item]
	if !ok {
		c = &collection{}
		v.collections[item] = c
	}
	c.nodes = append(c.nodes, nodes...)
}

// Remove deletes nodes whose text equals text from a collection.
func (v *View) Remove(item, text string) {
	v.mu.Lock()
	defer v.mu.Unlock()
	c, ok := v.collections[item]
	if !ok {
		return
	}
	kept := c.nodes[:0]
	for _, n := range c.nodes {
		if strings.TrimSpace(n.Text) != text {
			kept = append(kept, n)
		}
	}
	c.nodes = kept
}

// Show makes a single control visible under selector.
func (v *View) Show(selector string) *Node {
	v.mu.Lock()
	defer v.mu.Unlock()
	n, ok := v.controls[selector]
	if !ok {
		n = &Node{}
		v.controls[selector] = n
	}
	n.Hidden = false
	return n
}

// SetText shows the control under selector carrying text.
func (v *View) SetText(selector, text string) {
	v.mu.Lock()
	defer v.mu.Unlock()
	n, ok := v.controls[selector]
	if !ok {
		n = &Node{}
		v.controls[selector] = n
	}
	n.Text = text
	n.Hidden = false
}

// Hide hides the control under selector.
func (v *View) Hide(selector string) {
	v.mu.Lock()
	defer v.mu.Unlock()
	if n, ok := v.controls[selector]; ok {
		n.Hidden = true
	}
}

// OnClick registers a hook run when selector is clicked through View.Click.
func (v *View) OnClick(selector string, fn func(v *View)) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.clickHooks[selector] = fn
}

// FailOn makes Click and Fill on selector return err.
func (v *View) FailOn(selector string, err error) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.errors[selector] = err
}

// Control returns the control registered under selector.
func (v *View) Control(selector string) *Node {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.controls[selector]
}

// Offset returns the window offset of a virtualized collection.
func (v *View) Offset(item string) int {
	v.mu.Lock()
	defer v.mu.Unlock()
	if c, ok := v.collections[item]; ok {
		return c.offset
	}
	return 0
}

// Count returns how many recorded calls have op.
func (v *View) Count(op string) int {
	v.mu.Lock()
	defer v.mu.Unlock()
	n := 0
	for _, c := range v.Calls {
		if c.Op == op {
			n++
		}
	}
	return n
}

// CountOn returns how many recorded calls have op and selector.
func (v *View) CountOn(op, selector string) int {
	v.mu.Lock()
	defer v.mu.Unlock()
	n := 0
	for _, c := range v.Calls {
		if c.Op == op && c.Selector == selector {
			n++
		}
	}
	return n
}

// Interactions returns the number of clicks and fills.
func (v *View) Interactions() int {
	return v.Count(OpClick) + v.Count(OpFill)
}

// Filled returns the last value filled into selector.
func (v *View) Filled(selector string) (string, bool) {
	v.mu.Lock()
	defer v.mu.Unlock()
	for i := len(v.Calls) - 1; i >= 0; i-- {
		if v.Calls[i].Op == OpFill && v.Calls[i].Selector == selector {
			return v.Calls[i].Value, true
		}
	}
	return "", false
}

// Reset clears recorded calls.
func (v *View) Reset() {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.Calls = nil
}

func (v *View) record(op, selector, value string) {
	v.Calls = append(v.Calls, Call{Op: op, Selector: selector, Value: value})
}

// Navigate records the navigation.
func (v *View) Navigate(ctx context.Context, path string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	v.mu.Lock()
	defer v.mu.Unlock()
	v.record(OpNavigate, path, "")
	v.URL = path
	return v.errors[path]
}

// Query returns the rendered nodes of a collection, or the control under selector.
func (v *View) Query(ctx context.Context, selector string) ([]view.Element, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	v.mu.Lock()
	defer v.mu.Unlock()

	if c, ok := v.collections[selector]; ok {
		rendered := c.rendered()
		out := make([]view.Element, 0, len(rendered))
		for _, n := range rendered {
			out = append(out, &element{v: v, node: n, selector: selector})
		}
		return out, nil
	}
	if n, ok := v.controls[selector]; ok {
		return []view.Element{&element{v: v, node: n, selector: selector}}, nil
	}
	if c := v.pagedByNext(selector); c != nil {
		if c.page+1 < len(c.pages) {
			next := &Node{Text: "next", OnClick: func(v *View) { v.advance(selector) }}
			return []view.Element{&element{v: v, node: next, selector: selector}}, nil
		}
		return nil, nil
	}
	return nil, nil
}

// advance moves the paged collection controlled by next one page forward.
func (v *View) advance(next string) {
	v.mu.Lock()
	defer v.mu.Unlock()
	if c := v.pagedByNext(next); c != nil && c.page+1 < len(c.pages) {
		c.page++
	}
}

// Page returns the current page index of a paged collection.
func (v *View) Page(item string) int {
	v.mu.Lock()
	defer v.mu.Unlock()
	if c, ok := v.collections[item]; ok {
		return c.page
	}
	return 0
}

func (v *View) pagedByNext(selector string) *collection {
	for _, c := range v.collections {
		if c.pages != nil && c.next == selector {
			return c
		}
	}
	return nil
}

// FindByText searches rendered collection nodes and controls.
func (v *View) FindByText(ctx context.Context, text string, exact bool) (view.Element, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	v.mu.Lock()
	defer v.mu.Unlock()
	if el := v.findText(text, exact); el != nil {
		return el, nil
	}
	return nil, fmt.Errorf("%w: text %q", view.ErrNoElement, text)
}

// WaitForText polls until a visible node carries matching text or timeout
// elapses, so tests can reveal text from another goroutine with SetText.
func (v *View) WaitForText(ctx context.Context, text string, exact bool, timeout time.Duration) error {
	deadline := time.Now().Add(timeout)
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		v.mu.Lock()
		el := v.findText(text, exact)
		v.mu.Unlock()
		if el != nil {
			return nil
		}
		if !time.Now().Before(deadline) {
			return fmt.Errorf("%w: text %q", view.ErrNotVisible, text)
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(pollInterval):
		}
	}
}

// findText returns the first visible node with matching text. The caller
// holds v.mu.
func (v *View) findText(text string, exact bool) *element {
	match := func(candidate string) bool {
		candidate = strings.TrimSpace(candidate)
		if exact {
			return candidate == text
		}
		return strings.Contains(candidate, text)
	}
	for sel, c := range v.collections {
		for _, n := range c.rendered() {
			if !n.Hidden && match(n.Text) {
				return &element{v: v, node: n, selector: sel}
			}
		}
	}
	for sel, n := range v.controls {
		if !n.Hidden && match(n.Text) {
			return &element{v: v, node: n, selector: sel}
		}
	}
	return nil
}

// IsVisible reports whether a control or any collection node is visible.
func (v *View) IsVisible(ctx context.Context, selector string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.visible(selector), nil
}

func (v *View) visible(selector string) bool {
	if n, ok := v.controls[selector]; ok {
		return !n.Hidden
	}
	if c, ok := v.collections[selector]; ok {
		for _, n := range c.rendered() {
			if !n.Hidden {
				return true
			}
		}
		return false
	}
	if c := v.pagedByNext(selector); c != nil {
		return c.page+1 < len(c.pages)
	}
	return false
}

// Click records the click, advances paged collections and runs hooks.
func (v *View) Click(ctx context.Context, selector string, opts view.ClickOptions) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	v.mu.Lock()
	v.record(OpClick, selector, "")
	if err := v.errors[selector]; err != nil {
		v.mu.Unlock()
		return err
	}
	if c := v.pagedByNext(selector); c != nil {
		if c.page+1 >= len(c.pages) {
			v.mu.Unlock()
			return fmt.Errorf("%w: %s", view.ErrNoElement, selector)
		}
		c.page++
	}
	if n, ok := v.controls[selector]; ok {
		n.Clicks++
		n.last = opts
	}
	hook := v.clickHooks[selector]
	v.mu.Unlock()

	if hook != nil {
		hook(v)
	}
	return nil
}

// Fill records the value.
func (v *View) Fill(ctx context.Context, selector, value string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	v.mu.Lock()
	defer v.mu.Unlock()
	v.record(OpFill, selector, value)
	if err := v.errors[selector]; err != nil {
		return err
	}
	if n, ok := v.controls[selector]; ok {
		n.Value = value
	}
	return nil
}

// ScrollBy advances every windowed collection rooted at selector.
func (v *View) ScrollBy(ctx context.Context, selector string, delta int) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	v.mu.Lock()
	defer v.mu.Unlock()
	v.record(OpScroll, selector, fmt.Sprint(delta))
	for _, c := range v.collections {
		if c.root != selector || c.window <= 0 {
			continue
		}
		maxOffset := len(c.nodes) - c.window
		if maxOffset < 0 {
			maxOffset = 0
		}
		c.offset += c.step
		if c.offset > maxOffset {
			c.offset = maxOffset
		}
	}
	return nil
}

// WaitForVisible succeeds immediately when visible and fails otherwise.
func (v *View) WaitForVisible(ctx context.Context, selector string, timeout time.Duration) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.visible(selector) {
		return nil
	}
	return fmt.Errorf("%w: %s", view.ErrNotVisible, selector)
}

// WaitForIdle returns IdleErr.
func (v *View) WaitForIdle(ctx context.Context, timeout time.Duration) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return v.IdleErr
}

// Back records the navigation and returns BackErr.
func (v *View) Back(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	v.mu.Lock()
	defer v.mu.Unlock()
	v.record(OpBack, "", "")
	return v.BackErr
}

// Reload records the reload and returns ReloadErr.
func (v *View) Reload(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	v.mu.Lock()
	defer v.mu.Unlock()
	v.record(OpReload, "", "")
	return v.ReloadErr
}

type element struct {
	v        *View
	node     *Node
	selector string
}

func (e *element) Text(ctx context.Context) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	return e.node.Text, nil
}

func (e *element) Visible(ctx context.Context) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	return !e.node.Hidden, nil
}

func (e *element) Attribute(ctx context.Context, name string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	return e.node.Attrs[name], nil
}

func (e *element) Click(ctx context.Context, opts view.ClickOptions) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	e.v.mu.Lock()
	e.v.record(OpClick, e.selector, e.node.Text)
	e.node.Clicks++
	e.node.last = opts
	err := e.node.ClickErr
	hook := e.node.OnClick
	e.v.mu.Unlock()

	if err != nil {
		return err
	}
	if hook != nil {
		hook(e.v)
	}
	return nil
}

func (e *element) Fill(ctx context.Context, value string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	e.v.mu.Lock()
	defer e.v.mu.Unlock()
	e.v.record(OpFill, e.selector, value)
	e.node.Value = value
	return nil
}

var _ view.View = (*View)(nil)
