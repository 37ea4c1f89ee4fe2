package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
	"github.com/viralforge/mesh/services/marketing/campaign-service/internal/migrations"
)

var rollbackSteps int

var rollbackCmd = &cobra.Command{
	Use:   "rollback",
	Short: "Revert the most recently applied migrations",
	Long: `Runs the DOWN section of the last applied migrations, newest first.

Rollback stops at the first migration without a DOWN section or whose file
is no longer present.`,
	RunE: runRollback,
}

func init() {
	rollbackCmd.Flags().IntVar(&rollbackSteps, "steps", 1, "Number of migrations to revert")
	rootCmd.AddCommand(rollbackCmd)
}

func runRollback(cmd *cobra.Command, args []string) error {
	out := cmd.OutOrStdout()
	return withRunner(cmd, func(ctx context.Context, runner *migrations.Runner) error {
		reverted, err := runner.Rollback(ctx, rollbackSteps)
		for _, name := range reverted {
			fmt.Fprintln(out, green("↩️  Rolled back: "+name))
		}
		if err != nil {
			return err
		}
		if len(reverted) == 0 {
			fmt.Fprintln(out, yellow("Nothing to roll back."))
			return nil
		}
		fmt.Fprintln(out, green(fmt.Sprintf("\n🎉 Rolled back %d migrations", len(reverted))))
		return nil
	})
}
