// Package view is the rendering-surface adapter used by the resolver and page
// objects. The production implementation drives a browser through
// playwright-go; tests use the scripted view in package viewtest.
package view

import (
	"context"
	"errors"
	"time"
)

// ErrNotVisible is returned when a bounded wait for visibility expires.
var ErrNotVisible = errors.New("element not visible")

// ErrNoElement is returned when a selector or text matches nothing.
var ErrNoElement = errors.New("no matching element")

// Point is an offset inside an element's bounding box.
type Point struct {
	X float64
	Y float64
}

// ClickOptions controls a click.
type ClickOptions struct {
	// Offset clicks at a fixed position inside the element instead of its center.
	Offset *Point
	// Timeout bounds the click; zero uses the session default.
	Timeout time.Duration
}

// Element is a reference to one rendered element. It belongs to the view
// session and must not be reused after navigation.
type Element interface {
	Text(ctx context.Context) (string, error)
	Visible(ctx context.Context) (bool, error)
	Attribute(ctx context.Context, name string) (string, error)
	Click(ctx context.Context, opts ClickOptions) error
	Fill(ctx context.Context, value string) error
}

// View is the set of surface operations the core depends on.
type View interface {
	// Navigate loads path relative to the application base URL.
	Navigate(ctx context.Context, path string) error
	// Query returns the currently rendered elements matching selector in render order.
	Query(ctx context.Context, selector string) ([]Element, error)
	// FindByText returns the first element whose text matches.
	FindByText(ctx context.Context, text string, exact bool) (Element, error)
	IsVisible(ctx context.Context, selector string) (bool, error)
	Click(ctx context.Context, selector string, opts ClickOptions) error
	Fill(ctx context.Context, selector, value string) error
	// ScrollBy scrolls the container matched by selector by delta pixels.
	ScrollBy(ctx context.Context, selector string, delta int) error
	WaitForVisible(ctx context.Context, selector string, timeout time.Duration) error
	// WaitForText waits up to timeout for an element with matching text to
	// become visible.
	WaitForText(ctx context.Context, text string, exact bool, timeout time.Duration) error
	WaitForIdle(ctx context.Context, timeout time.Duration) error
	Back(ctx context.Context) error
	Reload(ctx context.Context) error
}
