package view

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/playwright-community/playwright-go"
)

// PlaywrightView implements View on top of a playwright Page.
type PlaywrightView struct {
	page    playwright.Page
	baseURL string
}

// NewPlaywrightView wraps page. Relative navigation is resolved against baseURL.
func NewPlaywrightView(page playwright.Page, baseURL string) (*PlaywrightView, error) {
	if page == nil {
		return nil, fmt.Errorf("page cannot be nil")
	}
	return &PlaywrightView{
		page:    page,
		baseURL: strings.TrimRight(baseURL, "/"),
	}, nil
}

func (v *PlaywrightView) url(path string) string {
	if strings.HasPrefix(path, "http://") || strings.HasPrefix(path, "https://") {
		return path
	}
	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}
	return v.baseURL + path
}

// Navigate loads path and waits for the network to settle.
func (v *PlaywrightView) Navigate(ctx context.Context, path string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	url := v.url(path)
	if _, err := v.page.Goto(url, playwright.PageGotoOptions{
		WaitUntil: playwright.WaitUntilStateNetworkidle,
	}); err != nil {
		if strings.Contains(err.Error(), "ERR_TOO_MANY_REDIRECTS") {
			return fmt.Errorf("redirect loop navigating to %s (check base_url and storage state): %w", url, err)
		}
		return fmt.Errorf("failed to navigate to %s: %w", url, err)
	}
	return nil
}

// Query returns the rendered elements matching selector.
func (v *PlaywrightView) Query(ctx context.Context, selector string) ([]Element, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	locators, err := v.page.Locator(selector).All()
	if err != nil {
		return nil, fmt.Errorf("failed to query %q: %w", selector, err)
	}
	elements := make([]Element, 0, len(locators))
	for _, loc := range locators {
		elements = append(elements, &locatorElement{loc: loc})
	}
	return elements, nil
}

// FindByText returns the first element with matching text.
func (v *PlaywrightView) FindByText(ctx context.Context, text string, exact bool) (Element, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	loc := v.page.GetByText(text, playwright.PageGetByTextOptions{Exact: playwright.Bool(exact)})
	count, err := loc.Count()
	if err != nil {
		return nil, fmt.Errorf("failed to find text %q: %w", text, err)
	}
	if count == 0 {
		return nil, fmt.Errorf("%w: text %q", ErrNoElement, text)
	}
	return &locatorElement{loc: loc.First()}, nil
}

// IsVisible reports whether the first element matching selector is visible.
func (v *PlaywrightView) IsVisible(ctx context.Context, selector string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	visible, err := v.page.Locator(selector).First().IsVisible()
	if err != nil {
		return false, fmt.Errorf("failed to check visibility of %q: %w", selector, err)
	}
	return visible, nil
}

// Click clicks the first element matching selector.
func (v *PlaywrightView) Click(ctx context.Context, selector string, opts ClickOptions) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := v.page.Locator(selector).First().Click(clickOptions(opts)); err != nil {
		return fmt.Errorf("failed to click %q: %w", selector, err)
	}
	return nil
}

// Fill types value into the first element matching selector.
func (v *PlaywrightView) Fill(ctx context.Context, selector, value string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := v.page.Locator(selector).First().Fill(value); err != nil {
		return fmt.Errorf("failed to fill %q: %w", selector, err)
	}
	return nil
}

// ScrollBy hovers the container and scrolls it with the mouse wheel so
// virtualized lists re-render their window.
func (v *PlaywrightView) ScrollBy(ctx context.Context, selector string, delta int) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	container := v.page.Locator(selector).First()
	if err := container.Hover(); err != nil {
		return fmt.Errorf("failed to hover scroll container %q: %w", selector, err)
	}
	if err := v.page.Mouse().Wheel(0, float64(delta)); err != nil {
		return fmt.Errorf("failed to scroll %q: %w", selector, err)
	}
	return nil
}

// WaitForVisible waits up to timeout for selector to become visible.
func (v *PlaywrightView) WaitForVisible(ctx context.Context, selector string, timeout time.Duration) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	err := v.page.Locator(selector).First().WaitFor(playwright.LocatorWaitForOptions{
		State:   playwright.WaitForSelectorStateVisible,
		Timeout: playwright.Float(float64(timeout.Milliseconds())),
	})
	if err != nil {
		return fmt.Errorf("%w: %s: %v", ErrNotVisible, selector, err)
	}
	return nil
}

// WaitForText waits up to timeout for the first element with matching text
// to become visible.
func (v *PlaywrightView) WaitForText(ctx context.Context, text string, exact bool, timeout time.Duration) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	loc := v.page.GetByText(text, playwright.PageGetByTextOptions{Exact: playwright.Bool(exact)})
	err := loc.First().WaitFor(playwright.LocatorWaitForOptions{
		State:   playwright.WaitForSelectorStateVisible,
		Timeout: playwright.Float(float64(timeout.Milliseconds())),
	})
	if err != nil {
		return fmt.Errorf("%w: text %q: %v", ErrNotVisible, text, err)
	}
	return nil
}

// WaitForIdle waits up to timeout for network activity to stop.
func (v *PlaywrightView) WaitForIdle(ctx context.Context, timeout time.Duration) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return v.page.WaitForLoadState(playwright.PageWaitForLoadStateOptions{
		State:   playwright.LoadStateNetworkidle,
		Timeout: playwright.Float(float64(timeout.Milliseconds())),
	})
}

// Back navigates one step back in history.
func (v *PlaywrightView) Back(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	resp, err := v.page.GoBack()
	if err != nil {
		return fmt.Errorf("failed to navigate back: %w", err)
	}
	if resp == nil {
		return fmt.Errorf("failed to navigate back: no history entry")
	}
	return nil
}

// Reload reloads the current page.
func (v *PlaywrightView) Reload(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if _, err := v.page.Reload(playwright.PageReloadOptions{
		WaitUntil: playwright.WaitUntilStateNetworkidle,
	}); err != nil {
		return fmt.Errorf("failed to reload: %w", err)
	}
	return nil
}

func clickOptions(opts ClickOptions) playwright.LocatorClickOptions {
	var o playwright.LocatorClickOptions
	if opts.Offset != nil {
		o.Position = &playwright.Position{X: opts.Offset.X, Y: opts.Offset.Y}
	}
	if opts.Timeout > 0 {
		o.Timeout = playwright.Float(float64(opts.Timeout.Milliseconds()))
	}
	return o
}

// locatorElement adapts a single playwright Locator to Element.
type locatorElement struct {
	loc playwright.Locator
}

func (e *locatorElement) Text(ctx context.Context) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	return e.loc.InnerText()
}

func (e *locatorElement) Visible(ctx context.Context) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	return e.loc.IsVisible()
}

func (e *locatorElement) Attribute(ctx context.Context, name string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	return e.loc.GetAttribute(name)
}

func (e *locatorElement) Click(ctx context.Context, opts ClickOptions) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return e.loc.Click(clickOptions(opts))
}

func (e *locatorElement) Fill(ctx context.Context, value string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return e.loc.Fill(value)
}
