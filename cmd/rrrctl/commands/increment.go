package commands

import (
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

// IncrementCmd creates the increment command
func IncrementCmd(app *AppContext) *cobra.Command {
	var processedBy string

	cmd := &cobra.Command{
		Use:   "increment",
		Short: "Run the annual step increment batch",
		Long:  "Advance every active employee one step within grade. Employees already incremented this calendar year, or at their grade's ceiling, are skipped",
		RunE: func(cmd *cobra.Command, args []string) error {
			app.Logger.Debug("increment command", zap.String("processed_by", processedBy))

			summary, err := app.Steps.IncrementAll(app.Ctx, processedBy)
			if err != nil {
				return fmt.Errorf("increment batch failed: %w", err)
			}

			fmt.Printf("\nAnnual Increment Batch\n\n")
			fmt.Printf("Total:       %d\n", summary.Total)
			fmt.Printf("Incremented: %d\n", summary.Incremented)
			fmt.Printf("Skipped:     %d\n", summary.Skipped)
			fmt.Printf("Failed:      %d\n", summary.Failed)
			return nil
		},
	}

	cmd.Flags().StringVar(&processedBy, "by", "", "name recorded as processor")
	return cmd
}
