package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/dbsmedya/goerpcheck/internal/config"
)

var planBatch string

var planCmd = &cobra.Command{
	Use:   "plan",
	Short: "Show the execution plan for the configured batches",
	Long: `Plan resolves batch dependencies and displays the order in which
batches will run, without opening a browser.

The plan shows:
  - Run order (dependencies first)
  - Entity, operation and record count per batch
  - Effective processing settings per batch

Example:
  goerpcheck plan --config goerpcheck.yaml
  goerpcheck plan --config goerpcheck.yaml --batch delete_customers`,
	RunE: runPlan,
}

func init() {
	planCmd.Flags().StringVarP(&planBatch, "batch", "b", "",
		"Show only this batch and the batches it depends on")

	rootCmd.AddCommand(planCmd)
}

func runPlan(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	s, err := loadSuite(cfg, planBatch)
	if err != nil {
		return err
	}

	printHeader("Execution Plan: %s", GetConfigFile())

	fmt.Fprintln(outputWriter)
	printSection("Application")
	fmt.Fprintf(outputWriter, "  Base URL:  %s\n", cfg.App.BaseURL)
	fmt.Fprintf(outputWriter, "  Browser:   %s (headless=%v)\n", cfg.Browser.Engine, cfg.Browser.Headless)
	fmt.Fprintf(outputWriter, "  Batches:   %d\n", len(s.order))

	fmt.Fprintln(outputWriter)
	printSection("Run Order (dependencies first)")
	for i, name := range s.order {
		b := s.batches[name]
		fmt.Fprintf(outputWriter, "  [%d] %s | %s %s | %d record(s)\n",
			i+1, name, b.Operation, b.Entity, len(b.Records))
		if deps := s.graph.GetParents(name); len(deps) > 0 {
			fmt.Fprintf(outputWriter, "      depends on: %s\n", strings.Join(deps, ", "))
		}
	}

	fmt.Fprintln(outputWriter)
	printSection("Dependency Tree")
	printDependencyTree(s)

	fmt.Fprintln(outputWriter)
	printSection("Processing")
	for _, name := range s.order {
		printProcessing(cfg, name)
	}

	return nil
}

// printDependencyTree prints each batch without dependencies followed by the
// batches that depend on it. A batch with several dependencies appears under
// each of them.
func printDependencyTree(s *suite) {
	selected := make(map[string]bool, len(s.order))
	for _, name := range s.order {
		selected[name] = true
	}

	var walk func(name, indent string, last bool)
	walk = func(name, indent string, last bool) {
		branch, next := "├─ ", "│  "
		if last {
			branch, next = "└─ ", "   "
		}
		fmt.Fprintf(outputWriter, "  %s%s%s\n", indent, branch, name)

		var children []string
		for _, c := range s.graph.GetChildren(name) {
			if selected[c] {
				children = append(children, c)
			}
		}
		for i, c := range children {
			walk(c, indent+next, i == len(children)-1)
		}
	}

	var roots []string
	for _, name := range s.order {
		if len(s.graph.GetParents(name)) == 0 {
			roots = append(roots, name)
		}
	}
	for i, name := range roots {
		walk(name, "", i == len(roots)-1)
	}
}

// printProcessing prints the effective processing settings of a batch.
func printProcessing(cfg *config.Config, name string) {
	proc := cfg.GetBatchProcessing(name)
	suffix := ""
	if bc, err := cfg.GetBatch(name); err == nil && bc.Processing != nil {
		suffix = " (batch-specific)"
	}
	fmt.Fprintf(outputWriter, "  %s: delete_retries=%d success_timeout=%.1fs fail_on_skipped=%v sleep=%.1fs%s\n",
		name, proc.DeleteRetries, proc.SuccessTimeoutSeconds, proc.FailOnSkipped, proc.SleepSeconds, suffix)
}

// printHeader prints a formatted header
func printHeader(format string, args ...interface{}) {
	title := fmt.Sprintf(format, args...)
	width := len(title) + 4
	fmt.Fprintln(outputWriter, strings.Repeat("=", width))
	fmt.Fprintf(outputWriter, "  %s\n", title)
	fmt.Fprintln(outputWriter, strings.Repeat("=", width))
}

// printSection prints a section header
func printSection(title string) {
	fmt.Fprintf(outputWriter, "[%s]\n", title)
	fmt.Fprintln(outputWriter, strings.Repeat("-", len(title)+2))
}
