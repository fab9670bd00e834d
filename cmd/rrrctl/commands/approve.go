package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/nbti/promotion-engine/engine"
)

// ApproveCmd creates the approve command
func ApproveCmd(app *AppContext) *cobra.Command {
	var approvedBy string

	cmd := &cobra.Command{
		Use:   "approve <recommendation-id>",
		Short: "Approve a pending recommendation",
		Long:  "Approve a pending recommendation. For a promotion this allocates the target step and commits the grade/step change and ledger entry atomically",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			rec, err := app.Approvals.Approve(app.Ctx, engine.RecommendationID(args[0]), approvedBy)
			if err != nil {
				return fmt.Errorf("approval failed: %w", err)
			}

			fmt.Printf("Approved recommendation %s for %s\n", rec.ID, rec.EmployeeID)
			if rec.Promoted {
				fmt.Printf("Promoted to grade %d step %d\n", rec.PromotedToGrade, rec.PromotedToStep)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&approvedBy, "by", "", "name recorded as approver")
	cmd.MarkFlagRequired("by")
	return cmd
}

// RejectCmd creates the reject command
func RejectCmd(app *AppContext) *cobra.Command {
	var reason string

	cmd := &cobra.Command{
		Use:   "reject <recommendation-id>",
		Short: "Reject a pending recommendation",
		Long:  "Reject a pending recommendation with a reason. A rejected promotion bumps the employee's failed-attempt counter, relaxing next cycle's wait to one year",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			rec, err := app.Approvals.Reject(app.Ctx, engine.RecommendationID(args[0]), reason)
			if err != nil {
				return fmt.Errorf("rejection failed: %w", err)
			}

			fmt.Printf("Rejected recommendation %s for %s: %s\n", rec.ID, rec.EmployeeID, rec.RejectionReason)
			return nil
		},
	}

	cmd.Flags().StringVar(&reason, "reason", "", "rejection reason")
	cmd.MarkFlagRequired("reason")
	return cmd
}
