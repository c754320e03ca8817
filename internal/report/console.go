package report

import (
	"context"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/gookit/color"
	"github.com/mattn/go-runewidth"

	"github.com/dbsmedya/goerpcheck/internal/batch"
)

const (
	maxLabelWidth  = 32
	maxDetailWidth = 48
)

// Console prints a per-batch summary table.
type Console struct {
	mu       sync.Mutex
	w        io.Writer
	colorize bool
}

// NewConsole creates a console reporter writing to w. Colors are enabled only
// when w is stdout and the terminal supports them.
func NewConsole(w io.Writer) *Console {
	if w == nil {
		w = os.Stdout
	}
	return &Console{
		w:        w,
		colorize: w == os.Stdout && color.SupportColor(),
	}
}

// SetColor forces colored output on or off.
func (c *Console) SetColor(enabled bool) {
	c.colorize = enabled
}

func (c *Console) paint(s batch.Status, text string) string {
	if !c.colorize {
		return text
	}
	switch s {
	case batch.StatusSucceeded:
		return color.Green.Sprint(text)
	case batch.StatusSkipped:
		return color.Yellow.Sprint(text)
	default:
		return color.Red.Sprint(text)
	}
}

func (c *Console) bold(text string) string {
	if !c.colorize {
		return text
	}
	return color.Bold.Sprint(text)
}

// Report implements batch.Reporter.
func (c *Console) Report(ctx context.Context, t *batch.Tally) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	var b strings.Builder
	title := fmt.Sprintf("Batch: %s (%s)", t.Batch, t.Operation)
	rule := strings.Repeat("=", runewidth.StringWidth(title)+4)
	fmt.Fprintln(&b, rule)
	fmt.Fprintf(&b, "  %s\n", c.bold(title))
	fmt.Fprintln(&b, rule)

	fmt.Fprintf(&b, "  %s %d\n", runewidth.FillRight("Succeeded", 10), len(t.Succeeded))
	fmt.Fprintf(&b, "  %s %d\n", runewidth.FillRight("Skipped", 10), len(t.Skipped))
	fmt.Fprintf(&b, "  %s %d\n", runewidth.FillRight("Failed", 10), len(t.Failed))
	fmt.Fprintf(&b, "  %s %d\n", runewidth.FillRight("Attempted", 10), t.Attempted)
	if !t.FinishedAt.IsZero() {
		fmt.Fprintf(&b, "  %s %s\n", runewidth.FillRight("Duration", 10), t.Duration().Round(time.Millisecond))
	}

	if len(t.Outcomes) > 0 {
		fmt.Fprintln(&b)
		c.writeOutcomes(&b, t.Outcomes)
	}

	if groups := t.Reasons(); len(groups) > 0 {
		fmt.Fprintln(&b)
		fmt.Fprintln(&b, "[Reasons]")
		for _, g := range groups {
			status := c.paint(g.Status, runewidth.FillRight(g.Status.String(), 9))
			fmt.Fprintf(&b, "  %s %s: %s\n", status, g.Reason, strings.Join(g.Labels, ", "))
		}
	}
	fmt.Fprintln(&b)

	_, err := io.WriteString(c.w, b.String())
	return err
}

func (c *Console) writeOutcomes(b *strings.Builder, outcomes []batch.Outcome) {
	labelWidth := runewidth.StringWidth("Label")
	numWidth := len(strconv.Itoa(len(outcomes)))
	for _, o := range outcomes {
		if w := runewidth.StringWidth(runewidth.Truncate(o.Label, maxLabelWidth, "…")); w > labelWidth {
			labelWidth = w
		}
	}

	fmt.Fprintf(b, "  %s  %s  %s  %s\n",
		runewidth.FillLeft("#", numWidth),
		runewidth.FillRight("Label", labelWidth),
		runewidth.FillRight("Status", 9),
		"Detail",
	)
	for _, o := range outcomes {
		label := runewidth.Truncate(o.Label, maxLabelWidth, "…")
		detail := o.Result
		if detail == "" {
			detail = o.Reason
		}
		if o.Attempts > 1 {
			detail += fmt.Sprintf(" (%d attempts)", o.Attempts)
		}
		fmt.Fprintf(b, "  %s  %s  %s  %s\n",
			runewidth.FillLeft(strconv.Itoa(o.Index+1), numWidth),
			runewidth.FillRight(label, labelWidth),
			c.paint(o.Status, runewidth.FillRight(o.Status.String(), 9)),
			runewidth.Truncate(detail, maxDetailWidth, "…"),
		)
	}
}
