package cmd

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/dbsmedya/goerpcheck/internal/config"
	"github.com/dbsmedya/goerpcheck/internal/database"
	"github.com/dbsmedya/goerpcheck/internal/graph"
)

var validateDB bool

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate configuration and data files",
	Long: `Validate checks the configuration file and every batch data file
without opening a browser.

Checks performed:
  - Configuration syntax and required fields
  - Batch dependencies (unknown batches, cycles)
  - Data files against the schema for their operation
  - Database connectivity (with --db, when database is enabled)

Example:
  goerpcheck validate --config goerpcheck.yaml`,
	RunE: runValidate,
}

func init() {
	validateCmd.Flags().BoolVar(&validateDB, "db", false,
		"Also check the database connection")

	rootCmd.AddCommand(validateCmd)
}

func runValidate(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	fmt.Fprintf(outputWriter, "\n=== Configuration Validation ===\n")
	fmt.Fprintf(outputWriter, "Config file: %s\n", GetConfigFile())
	fmt.Fprintf(outputWriter, "Entities found: %d\n", len(cfg.Entities))
	fmt.Fprintf(outputWriter, "Batches found: %d\n\n", len(cfg.Batches))

	hasErrors := false

	if err := cfg.Validate(); err != nil {
		hasErrors = true
		var verrs config.ValidationErrors
		if errors.As(err, &verrs) {
			for _, ve := range verrs {
				fmt.Fprintf(outputWriter, "❌ %s\n", ve.Error())
			}
		} else {
			fmt.Fprintf(outputWriter, "❌ %v\n", err)
		}
		fmt.Fprintln(outputWriter)
	} else {
		fmt.Fprintf(outputWriter, "✅ Configuration is valid\n\n")
	}

	g, err := graph.BuildFromBatches(cfg.Batches)
	if err != nil {
		fmt.Fprintf(outputWriter, "❌ Batch graph: %v\n\n", err)
		return fmt.Errorf("validation failed")
	}
	order, err := g.RunOrder()
	if err != nil {
		fmt.Fprintf(outputWriter, "❌ Batch order: %v\n\n", err)
		return fmt.Errorf("validation failed")
	}

	for _, name := range order {
		fmt.Fprintf(outputWriter, "--- Batch: %s ---\n", name)
		b, err := loadBatch(cfg, name)
		if err != nil {
			fmt.Fprintf(outputWriter, "❌ %v\n\n", err)
			hasErrors = true
			continue
		}
		fmt.Fprintf(outputWriter, "Entity: %s\n", b.Entity)
		fmt.Fprintf(outputWriter, "Operation: %s\n", b.Operation)
		fmt.Fprintf(outputWriter, "✅ %d record(s) valid\n\n", len(b.Records))
	}

	if validateDB && cfg.Database.Enabled {
		if err := checkDatabase(cfg); err != nil {
			fmt.Fprintf(outputWriter, "❌ Database: %v\n\n", err)
			hasErrors = true
		} else {
			fmt.Fprintf(outputWriter, "✅ Database connection OK\n\n")
		}
	}

	if hasErrors {
		fmt.Fprintf(outputWriter, "=== Validation Failed ===\n")
		return fmt.Errorf("validation failed")
	}

	fmt.Fprintf(outputWriter, "=== All Checks Passed ===\n")
	return nil
}

func checkDatabase(cfg *config.Config) error {
	ctx := context.Background()
	dbManager := database.NewManager(&cfg.Database)
	if err := dbManager.Connect(ctx); err != nil {
		return err
	}
	defer dbManager.Close()
	return dbManager.Ping(ctx)
}
