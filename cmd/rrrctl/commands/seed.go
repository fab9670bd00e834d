package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/nbti/promotion-engine/api"
)

// SeedCmd creates the seed command
func SeedCmd(app *AppContext) *cobra.Command {
	return &cobra.Command{
		Use:   "seed",
		Short: "Load the demo dataset",
		Long:  "Populate the database with the CONRAISS salary table, a sample population, evaluations, exam submissions and vacancy configurations",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := api.SeedDemoData(app.Ctx, app.Store); err != nil {
				return fmt.Errorf("seeding failed: %w", err)
			}
			fmt.Println("Demo data seeded.")
			return nil
		},
	}
}
