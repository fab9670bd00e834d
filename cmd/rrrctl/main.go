/*
main.go - rrrctl command-line interface

PURPOSE:
  Operator tooling for the promotion engine: run allocations, run the
  annual increment batch, check eligibility and load demo data without
  going through the HTTP API.

COMMANDS:
  allocate     Run the RRR allocation for a cycle
  increment    Run the annual step increment batch
  eligibility  Check one employee or summarize the population
  approve      Approve a pending recommendation
  reject       Reject a pending recommendation
  seed         Load the demo dataset

All commands share the -db flag and operate on the SQLite database
directly.
*/
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/nbti/promotion-engine/cmd/rrrctl/commands"
	"github.com/nbti/promotion-engine/engine"
	"github.com/nbti/promotion-engine/logging"
	"github.com/nbti/promotion-engine/store/sqlite"
)

var (
	dbPath string
	app    *commands.AppContext
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "rrrctl",
		Short: "NBTI Promotion Engine CLI - manage RRR cycles",
		Long:  "A CLI tool for running promotion allocations, annual increments and eligibility checks.",
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return initApp()
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			if app != nil {
				if app.Logger != nil {
					app.Logger.Sync()
				}
				if app.Store != nil {
					app.Store.Close()
				}
			}
		},
	}

	rootCmd.PersistentFlags().StringVar(&dbPath, "db", "promotion.db", "SQLite database path")

	rootCmd.AddCommand(commands.AllocateCmd(appRef()))
	rootCmd.AddCommand(commands.IncrementCmd(appRef()))
	rootCmd.AddCommand(commands.EligibilityCmd(appRef()))
	rootCmd.AddCommand(commands.ApproveCmd(appRef()))
	rootCmd.AddCommand(commands.RejectCmd(appRef()))
	rootCmd.AddCommand(commands.SeedCmd(appRef()))

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// appRef hands commands the shared context before it is populated;
// initApp fills it in during PersistentPreRunE.
func appRef() *commands.AppContext {
	if app == nil {
		app = &commands.AppContext{}
	}
	return app
}

func initApp() error {
	logger, err := logging.Init("rrrctl")
	if err != nil {
		return fmt.Errorf("failed to initialize logging: %w", err)
	}

	store, err := sqlite.New(dbPath)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}

	scorer := &engine.Scorer{Performance: store, Exams: store}
	a := appRef()
	a.Store = store
	a.Evaluator = engine.NewEvaluator(store)
	a.Allocator = &engine.Allocator{Store: store, Scorer: scorer}
	a.Steps = engine.NewStepService(store)
	a.Approvals = engine.NewApprovalService(store)
	a.Logger = logger
	a.Ctx = context.Background()
	return nil
}
