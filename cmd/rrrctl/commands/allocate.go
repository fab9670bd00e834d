package commands

import (
	"fmt"
	"sort"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/nbti/promotion-engine/engine"
)

// AllocateCmd creates the allocate command
func AllocateCmd(app *AppContext) *cobra.Command {
	var (
		cycle         string
		recommendedBy string
	)

	cmd := &cobra.Command{
		Use:   "allocate",
		Short: "Run the RRR allocation for a cycle",
		Long:  "Rank candidates in every configured grade, distribute promotion/recognition/reward slots and materialize the recommendations",
		RunE: func(cmd *cobra.Command, args []string) error {
			app.Logger.Debug("allocate command",
				zap.String("cycle", cycle),
				zap.String("recommended_by", recommendedBy))

			results, err := app.Allocator.RunCycle(app.Ctx, engine.Cycle(cycle), recommendedBy)
			if err != nil {
				return fmt.Errorf("allocation failed: %w", err)
			}

			fmt.Printf("\nRRR Allocation Results - cycle %s\n\n", cycle)
			if len(results) == 0 {
				fmt.Println("No active vacancy configurations for this cycle.")
				return nil
			}

			grades := make([]int, 0, len(results))
			for g := range results {
				grades = append(grades, g)
			}
			sort.Ints(grades)

			for _, g := range grades {
				alloc := results[g]
				fmt.Printf("Grade %d: %d candidates (slots P=%d R=%d W=%d)\n",
					g, alloc.TotalCandidates,
					alloc.Slots.Promotion, alloc.Slots.Recognition, alloc.Slots.Reward)
				printTier("promoted", alloc.Promoted)
				printTier("recognized", alloc.Recognized)
				printTier("rewarded", alloc.Rewarded)
				if alloc.SkippedTerminal > 0 {
					fmt.Printf("  (%d finalized recommendations left untouched)\n", alloc.SkippedTerminal)
				}
				fmt.Println()
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&cycle, "cycle", "", "promotion cycle, e.g. 2026")
	cmd.Flags().StringVar(&recommendedBy, "by", "", "name recorded as recommender")
	cmd.MarkFlagRequired("cycle")
	return cmd
}

func printTier(label string, candidates []engine.RankedCandidate) {
	for _, c := range candidates {
		fmt.Printf("  #%-3d %-22s %-10s score %.2f (exam %.1f / perf %.1f / sen %.1f)\n",
			c.Rank, c.Employee.Name, label,
			c.Score.Combined, c.Score.Exam, c.Score.Performance, c.Score.Seniority)
	}
}
