package cmd

import (
	"fmt"
	"sort"
	"strings"

	"github.com/spf13/cobra"
)

var listBatchesCmd = &cobra.Command{
	Use:   "list-batches",
	Short: "List all batches defined in configuration",
	Long: `List-batches displays all batches defined in the configuration file
along with their basic settings.

Example:
  goerpcheck list-batches --config goerpcheck.yaml`,
	RunE: runListBatches,
}

func init() {
	rootCmd.AddCommand(listBatchesCmd)
}

func runListBatches(cmd *cobra.Command, args []string) error {
	configFile := GetConfigFile()

	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	batchNames := cfg.ListBatches()
	if len(batchNames) == 0 {
		cmd.Printf("No batches defined in %s\n", configFile)
		return nil
	}

	// Sort batch names for consistent output
	sort.Strings(batchNames)

	cmd.Printf("Batches defined in %s:\n\n", configFile)

	for i, name := range batchNames {
		b, err := cfg.GetBatch(name)
		if err != nil {
			return fmt.Errorf("failed to get batch %q: %w", name, err)
		}

		cmd.Printf("%d. %s\n", i+1, name)
		cmd.Printf("   Entity:        %s\n", b.Entity)
		cmd.Printf("   Operation:     %s\n", b.Operation)
		cmd.Printf("   Data:          %s\n", b.Data)

		if len(b.DependsOn) > 0 {
			cmd.Printf("   Depends On:    %s\n", strings.Join(b.DependsOn, ", "))
		} else {
			cmd.Printf("   Depends On:    (none)\n")
		}

		if len(b.Required) > 0 {
			cmd.Printf("   Required:      %s\n", strings.Join(b.Required, ", "))
		}

		if len(b.Flags) > 0 {
			flags := make([]string, 0, len(b.Flags))
			for flag, on := range b.Flags {
				if on {
					flags = append(flags, flag)
				}
			}
			sort.Strings(flags)
			cmd.Printf("   Flags:         %s\n", strings.Join(flags, ", "))
		}

		if b.Processing != nil {
			cmd.Printf("   Processing:    Custom (delete_retries=%d, fail_on_skipped=%v)\n",
				b.Processing.DeleteRetries, b.Processing.FailOnSkipped)
		}

		if i < len(batchNames)-1 {
			cmd.Println()
		}
	}

	cmd.Printf("\nTotal: %d batch(es)\n", len(batchNames))
	return nil
}
