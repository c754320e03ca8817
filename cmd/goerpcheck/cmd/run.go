package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/dbsmedya/goerpcheck/internal/batch"
	"github.com/dbsmedya/goerpcheck/internal/config"
	"github.com/dbsmedya/goerpcheck/internal/database"
	"github.com/dbsmedya/goerpcheck/internal/lock"
	"github.com/dbsmedya/goerpcheck/internal/logger"
	"github.com/dbsmedya/goerpcheck/internal/pages"
	"github.com/dbsmedya/goerpcheck/internal/report"
	"github.com/dbsmedya/goerpcheck/internal/resolver"
	"github.com/dbsmedya/goerpcheck/internal/verifier"
	"github.com/dbsmedya/goerpcheck/internal/view"
)

var (
	runBatch string
	runForce bool
)

// openView starts the browser and returns the view with its close function.
// Tests replace it with a scripted view.
var openView = func(ctx context.Context, cfg *config.Config, log *logger.Logger) (view.View, func(), error) {
	session, err := view.OpenSession(ctx, cfg, log)
	if err != nil {
		return nil, nil, err
	}
	return session.View(), session.Close, nil
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run batches against the ERP through the browser",
	Long: `Run executes the configured batches in dependency order. Each record is
checked, acted on through the entity page and classified as succeeded,
skipped or failed. A batch whose dependency failed is not run.

The run follows these steps:
  1. Validate configuration and load every selected data file
  2. Open the browser and sign in
  3. Run each batch and print its summary
  4. Cross-check succeeded records in the database (if enabled)

Example:
  goerpcheck run --config goerpcheck.yaml
  goerpcheck run --config goerpcheck.yaml --batch delete_customers`,
	RunE: runRun,
}

func init() {
	runCmd.Flags().StringVarP(&runBatch, "batch", "b", "",
		"Run only this batch and the batches it depends on")
	runCmd.Flags().BoolVar(&runForce, "force", false,
		"Run even if a batch lock cannot be acquired (use with caution)")

	rootCmd.AddCommand(runCmd)
}

func runRun(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	log, err := logger.New(&cfg.Logging)
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	defer log.Sync()

	runID := report.NewRunID()
	log = log.WithRun(runID)
	log.Infow("Starting run",
		"config", GetConfigFile(),
		"batch", runBatch,
	)

	ctx, stop := database.SetupSignalHandler(context.Background(), func(sig os.Signal) {
		log.Warnw("Received shutdown signal - finishing current record...", "signal", sig.String())
	})
	defer stop()

	return executeRun(ctx, cfg, runID, log)
}

// executeRun runs the selected batches and returns the joined batch failures.
func executeRun(ctx context.Context, cfg *config.Config, runID string, log *logger.Logger) error {
	s, err := loadSuite(cfg, runBatch)
	if err != nil {
		return err
	}

	reporter, err := newReporter(cfg, runID)
	if err != nil {
		return err
	}

	var (
		dbManager *database.Manager
		ver       *verifier.Verifier
	)
	if cfg.Database.Enabled {
		dbManager = database.NewManager(&cfg.Database)
		if err := dbManager.Connect(ctx); err != nil {
			return err
		}
		defer dbManager.Close()

		ver, err = verifier.New(dbManager.DB, log)
		if err != nil {
			return fmt.Errorf("failed to create verifier: %w", err)
		}
	}

	v, closeView, err := openView(ctx, cfg, log)
	if err != nil {
		return fmt.Errorf("failed to open browser: %w", err)
	}
	defer closeView()

	res, err := resolver.New(v, resolver.OptionsFromConfig(cfg.Resolver), log)
	if err != nil {
		return fmt.Errorf("failed to create resolver: %w", err)
	}

	var (
		errs   []error
		failed = make(map[string]bool)
	)
	for _, name := range s.order {
		if ctx.Err() != nil {
			errs = append(errs, fmt.Errorf("run interrupted before batch %q: %w", name, ctx.Err()))
			break
		}

		if dep := failedDependency(s, failed, name); dep != "" {
			log.Warnw("Skipping batch - dependency failed", "batch", name, "dependency", dep)
			fmt.Fprintf(outputWriter, "⏭  Batch %s not run: dependency %s failed\n\n", name, dep)
			failed[name] = true
			continue
		}

		if err := runOne(ctx, cfg, s.batches[name], v, res, reporter, dbManager, ver, log); err != nil {
			failed[name] = true
			errs = append(errs, err)
		}
	}

	passed := 0
	for _, name := range s.order {
		if !failed[name] {
			passed++
		}
	}
	fmt.Fprintf(outputWriter, "Run %s: %d of %d batch(es) passed\n", runID, passed, len(s.order))

	return errors.Join(errs...)
}

// failedDependency returns a direct dependency of name that failed or was
// not run.
func failedDependency(s *suite, failed map[string]bool, name string) string {
	for _, dep := range s.graph.GetParents(name) {
		if failed[dep] {
			return dep
		}
	}
	return ""
}

// runOne runs a single batch under its advisory lock and cross-checks the
// outcome when a verifier is available.
func runOne(ctx context.Context, cfg *config.Config, b batch.Batch, v view.View, res *resolver.Resolver,
	reporter batch.Reporter, dbManager *database.Manager, ver *verifier.Verifier, log *logger.Logger) error {

	entity, err := cfg.GetEntity(b.Entity)
	if err != nil {
		return fmt.Errorf("batch %q: %w", b.Name, err)
	}
	page, err := pages.NewEntity(v, res, *entity, log)
	if err != nil {
		return fmt.Errorf("batch %q: %w", b.Name, err)
	}

	proc := cfg.GetBatchProcessing(b.Name)
	if proc.SuccessTimeoutSeconds > 0 {
		page.SetSuccessTimeout(time.Duration(proc.SuccessTimeoutSeconds * float64(time.Second)))
	}

	opts := batch.OptionsFromConfig(proc)
	opts.Reporter = reporter
	orch, err := batch.NewOrchestrator(page, opts, log)
	if err != nil {
		return fmt.Errorf("batch %q: %w", b.Name, err)
	}

	run := func() error {
		tally, err := orch.Run(ctx, b)
		if err != nil {
			return fmt.Errorf("batch %q: %w", b.Name, err)
		}
		if ver == nil || entity.Table == "" {
			return nil
		}
		if _, err := ver.Verify(ctx, entity.Table, entity.NameColumn, b.Operation, verifiedLabels(b, tally)); err != nil {
			return fmt.Errorf("batch %q: %w", b.Name, err)
		}
		return nil
	}

	if dbManager == nil || runForce {
		if dbManager != nil {
			log.Warnw("Skipping batch lock (--force flag used)", "batch", b.Name)
		}
		return run()
	}

	batchLock := lock.NewBatchLock(dbManager.DB, b.Name)
	err = batchLock.WithLock(ctx, lock.DefaultTimeoutSeconds, run)
	if errors.Is(err, lock.ErrLockHeld) {
		return fmt.Errorf("batch %q is already running on another instance (use --force to override): %w", b.Name, err)
	}
	return err
}

// newReporter builds the summary reporters selected by report.format.
func newReporter(cfg *config.Config, runID string) (batch.Reporter, error) {
	console := report.NewConsole(outputWriter)

	switch cfg.Report.Format {
	case "json", "both":
		j, err := report.NewJSON(cfg.Report.Output, runID)
		if err != nil {
			return nil, fmt.Errorf("failed to create JSON report: %w", err)
		}
		if cfg.Report.Format == "json" {
			return j, nil
		}
		return report.Multi{console, j}, nil
	default:
		return console, nil
	}
}
