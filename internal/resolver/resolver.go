// Package resolver locates a target item inside a UI collection whose
// contents may be virtualized, paginated or incrementally revealed.
//
// A single Resolver loop is parameterized by a Strategy: the strategy says
// how to enumerate candidates, how to reveal more of the collection and how
// to select a match. Every disclosure loop is bounded and ends in a typed
// NotFoundError.
package resolver

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode"

	"github.com/dbsmedya/goerpcheck/internal/config"
	"github.com/dbsmedya/goerpcheck/internal/logger"
	"github.com/dbsmedya/goerpcheck/internal/view"
)

// ErrEmptyCriterion is returned when a criterion carries no text to match.
var ErrEmptyCriterion = errors.New("criterion is empty")

// Criterion describes the text a candidate must carry.
type Criterion struct {
	Text  string
	Exact bool
	// Token, when set, must also appear in the candidate as a whole word,
	// so "W-1" does not match "W-10".
	Token string
}

// Empty reports whether the criterion carries neither text nor token.
func (c Criterion) Empty() bool {
	return strings.TrimSpace(c.Text) == "" && strings.TrimSpace(c.Token) == ""
}

// Matches tests candidate text. Both sides are trimmed; containment is the
// default and equality is used only when Exact is set.
func (c Criterion) Matches(candidate string) bool {
	want := strings.TrimSpace(c.Text)
	got := strings.TrimSpace(candidate)
	if token := strings.TrimSpace(c.Token); token != "" && !containsWord(got, token) {
		return false
	}
	if c.Exact {
		return got == want
	}
	return strings.Contains(got, want)
}

func (c Criterion) String() string {
	s := fmt.Sprintf("%q", c.Text)
	if c.Exact {
		s += " (exact)"
	}
	if c.Token != "" {
		s += fmt.Sprintf(" with %q", c.Token)
	}
	return s
}

// containsWord reports whether word occurs in text bounded by non-alphanumeric
// runes or the ends of text.
func containsWord(text, word string) bool {
	isWordRune := func(r rune) bool { return unicode.IsLetter(r) || unicode.IsDigit(r) }
	for start := 0; start <= len(text)-len(word); {
		i := strings.Index(text[start:], word)
		if i < 0 {
			return false
		}
		i += start
		end := i + len(word)
		before := i == 0 || !isWordRune(lastRune(text[:i]))
		after := end == len(text) || !isWordRune(firstRune(text[end:]))
		if before && after {
			return true
		}
		start = i + 1
	}
	return false
}

func firstRune(s string) rune {
	for _, r := range s {
		return r
	}
	return 0
}

func lastRune(s string) rune {
	r := []rune(s)
	if len(r) == 0 {
		return 0
	}
	return r[len(r)-1]
}

// Collection references a candidate set on the current surface. It is only
// valid until the surface closes or the view navigates.
type Collection struct {
	// Item selects the candidates.
	Item string
	// Root is the scroll container, or the popup hosting the candidates.
	Root string
	// Next is the control that reveals the next page.
	Next string
	// Filter is the input narrowing a type-ahead popup.
	Filter string
	// SelectedAttr names the attribute carrying selection state.
	SelectedAttr string
}

func (c Collection) selectedAttr() string {
	if c.SelectedAttr == "" {
		return "aria-selected"
	}
	return c.SelectedAttr
}

// Options bound the resolver loop.
type Options struct {
	MaxDisclosureAttempts int
	MaxPages              int
	ScrollDelta           int
	RowClickOffset        view.Point
	SettleTimeout         time.Duration
	SettleDelay           time.Duration
}

// DefaultOptions mirrors the configuration defaults.
func DefaultOptions() Options {
	return OptionsFromConfig(config.DefaultConfig().Resolver)
}

// OptionsFromConfig converts the resolver section of the configuration.
func OptionsFromConfig(cfg config.ResolverConfig) Options {
	return Options{
		MaxDisclosureAttempts: cfg.MaxDisclosureAttempts,
		MaxPages:              cfg.MaxPages,
		ScrollDelta:           cfg.ScrollDelta,
		RowClickOffset:        view.Point{X: cfg.RowClickOffsetX, Y: cfg.RowClickOffsetY},
		SettleTimeout:         time.Duration(cfg.SettleTimeoutMs) * time.Millisecond,
		SettleDelay:           time.Duration(cfg.SettleDelayMs) * time.Millisecond,
	}
}

// Outcome is the result of a resolution: Found with the element, or not found
// after Attempts disclosure steps.
type Outcome struct {
	Found    bool
	Element  view.Element
	Text     string
	Attempts int
	// Clicked is false when selection was short-circuited because the
	// candidate was already selected, or when only locating.
	Clicked bool

	criterion Criterion
	strategy  string
}

// Err returns a *NotFoundError for a not-found outcome and nil otherwise.
func (o *Outcome) Err() error {
	if o.Found {
		return nil
	}
	return &NotFoundError{Criterion: o.criterion, Strategy: o.strategy, Attempts: o.Attempts}
}

// NotFoundError reports an exhausted resolution.
type NotFoundError struct {
	Criterion Criterion
	Strategy  string
	Attempts  int
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s: no candidate matching %s after %d disclosure step(s)", e.Strategy, e.Criterion, e.Attempts)
}

// Resolver runs the canonical resolution loop against one view.
type Resolver struct {
	view   view.View
	opts   Options
	logger *logger.Logger
}

// New creates a Resolver bound to v.
func New(v view.View, opts Options, log *logger.Logger) (*Resolver, error) {
	if v == nil {
		return nil, fmt.Errorf("view cannot be nil")
	}
	if opts.MaxDisclosureAttempts <= 0 {
		return nil, fmt.Errorf("max disclosure attempts must be positive")
	}
	if log == nil {
		log = logger.NewDefault()
	}
	return &Resolver{view: v, opts: opts, logger: log}, nil
}

// Options returns the resolver's bounds.
func (r *Resolver) Options() Options {
	return r.opts
}

// View returns the view the resolver operates on.
func (r *Resolver) View() view.View {
	return r.view
}

// Resolve finds the first candidate matching criterion and selects it.
func (r *Resolver) Resolve(ctx context.Context, s Strategy, c Collection, crit Criterion) (*Outcome, error) {
	return r.run(ctx, s, c, crit, true)
}

// Locate finds the first matching candidate without selecting it.
func (r *Resolver) Locate(ctx context.Context, s Strategy, c Collection, crit Criterion) (*Outcome, error) {
	return r.run(ctx, s, c, crit, false)
}

func (r *Resolver) run(ctx context.Context, s Strategy, c Collection, crit Criterion, sel bool) (*Outcome, error) {
	if s == nil {
		return nil, fmt.Errorf("strategy cannot be nil")
	}
	if crit.Empty() {
		return nil, fmt.Errorf("%s: %w", s.Name(), ErrEmptyCriterion)
	}
	log := r.logger.WithStrategy(s.Name())

	if p, ok := s.(Preparer); ok {
		if err := p.Prepare(ctx, r.view, c, crit); err != nil {
			return nil, fmt.Errorf("%s: prepare: %w", s.Name(), err)
		}
		r.settle(ctx)
	}

	limit := s.Limit(r.opts)
	attempts := 0
	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		el, text, err := r.scan(ctx, s, c, crit)
		if err != nil {
			return nil, err
		}
		if el != nil {
			out := &Outcome{Found: true, Element: el, Text: text, Attempts: attempts, criterion: crit, strategy: s.Name()}
			if sel {
				clicked, err := s.Select(ctx, el, c)
				if err != nil {
					return nil, fmt.Errorf("%s: select %q: %w", s.Name(), text, err)
				}
				out.Clicked = clicked
			}
			log.Debugw("Resolved candidate", "criterion", crit.Text, "text", text, "attempts", attempts)
			return out, nil
		}

		if attempts >= limit {
			break
		}
		more, err := s.Disclose(ctx, r.view, c)
		if err != nil {
			return nil, fmt.Errorf("%s: disclose: %w", s.Name(), err)
		}
		if !more {
			break
		}
		attempts++
		r.settle(ctx)
	}

	log.Debugw("Candidate not found", "criterion", crit.Text, "attempts", attempts)
	return &Outcome{Found: false, Attempts: attempts, criterion: crit, strategy: s.Name()}, nil
}

// scan returns the first visible candidate matching crit in render order.
func (r *Resolver) scan(ctx context.Context, s Strategy, c Collection, crit Criterion) (view.Element, string, error) {
	candidates, err := s.Candidates(ctx, r.view, c)
	if err != nil {
		return nil, "", fmt.Errorf("%s: enumerate candidates: %w", s.Name(), err)
	}
	for _, el := range candidates {
		visible, err := el.Visible(ctx)
		if err != nil || !visible {
			// Invisible or detached candidates are skipped, not treated as non-matches.
			continue
		}
		text, err := el.Text(ctx)
		if err != nil {
			continue
		}
		if crit.Matches(text) {
			return el, strings.TrimSpace(text), nil
		}
	}
	return nil, "", nil
}

// settle waits for the view to go idle, falling back to a bounded delay.
func (r *Resolver) settle(ctx context.Context) {
	if err := r.view.WaitForIdle(ctx, r.opts.SettleTimeout); err == nil {
		return
	}
	if r.opts.SettleDelay <= 0 {
		return
	}
	timer := time.NewTimer(r.opts.SettleDelay)
	defer timer.Stop()
	select {
	case <-ctx.Done():
	case <-timer.C:
	}
}
