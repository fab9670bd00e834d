package commands

import (
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/nbti/promotion-engine/engine"
)

// EligibilityCmd creates the eligibility command
func EligibilityCmd(app *AppContext) *cobra.Command {
	var (
		employeeID  string
		targetGrade int
		cycle       string
	)

	cmd := &cobra.Command{
		Use:   "eligibility",
		Short: "Check promotion eligibility",
		Long:  "With --id, evaluate one employee and print the verdict. Without it, evaluate the whole active population and print counts",
		RunE: func(cmd *cobra.Command, args []string) error {
			app.Logger.Debug("eligibility command",
				zap.String("id", employeeID),
				zap.Int("target_grade", targetGrade),
				zap.String("cycle", cycle))

			if employeeID == "" {
				summary, err := app.Evaluator.RefreshAll(app.Ctx, app.Store)
				if err != nil {
					return fmt.Errorf("eligibility refresh failed: %w", err)
				}
				fmt.Printf("\nEligibility Summary\n\n")
				fmt.Printf("Total:      %d\n", summary.Total)
				fmt.Printf("Eligible:   %d\n", summary.Eligible)
				fmt.Printf("Ineligible: %d\n", summary.Ineligible)
				fmt.Printf("Failed:     %d\n", summary.Failed)
				return nil
			}

			emp, err := app.Store.GetEmployee(app.Ctx, engine.EmployeeID(employeeID))
			if err != nil {
				return err
			}

			q := engine.EligibilityQuery{
				TargetGrade: targetGrade,
				Cycle:       engine.Cycle(cycle),
			}
			q.CheckVacancy = cycle != ""

			result, err := app.Evaluator.Evaluate(app.Ctx, *emp, q)
			if err != nil {
				return fmt.Errorf("evaluation failed: %w", err)
			}

			fmt.Printf("\n%s (grade %d step %d)\n\n", emp.Name, emp.Grade, emp.Step)
			if result.Eligible {
				fmt.Printf("Eligible: yes\n")
			} else {
				fmt.Printf("Eligible: no\n")
			}
			fmt.Printf("Reason:   %s\n", result.Reason)
			if result.Details.YearsInGrade > 0 {
				fmt.Printf("Years in grade: %.2f (requires %.0f)\n",
					result.Details.YearsInGrade, result.Details.RequiredYears)
			}
			if result.Details.FailedAttempts > 0 {
				fmt.Printf("Failed attempts: %d (retry wait relaxed to 1 year)\n",
					result.Details.FailedAttempts)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&employeeID, "id", "", "employee id (omit for population summary)")
	cmd.Flags().IntVar(&targetGrade, "target-grade", 0, "target grade (defaults to current + 1)")
	cmd.Flags().StringVar(&cycle, "cycle", "", "cycle for the vacancy check")
	return cmd
}
