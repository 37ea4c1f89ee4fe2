package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
	"github.com/viralforge/mesh/services/marketing/campaign-service/internal/migrations"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Apply pending migrations",
	Long: `Applies every pending migration in filename order.

Files whose UP section is empty are skipped and stay pending. The run stops
at the first failure; migrations applied before it remain recorded.`,
	RunE: runMigrations,
}

func init() {
	rootCmd.AddCommand(runCmd)
}

func runMigrations(cmd *cobra.Command, args []string) error {
	out := cmd.OutOrStdout()
	return withRunner(cmd, func(ctx context.Context, runner *migrations.Runner) error {
		fmt.Fprintln(out, blue("🚀 Starting migration runner...\n"))

		status, err := runner.Status(ctx)
		if err != nil {
			return err
		}
		fmt.Fprintln(out, blue(fmt.Sprintf("📁 Found %d migration files", status.Total)))
		fmt.Fprintln(out, blue(fmt.Sprintf("✅ %d migrations already applied\n", status.Applied)))

		pending, err := runner.Pending(ctx)
		if err != nil {
			return err
		}
		if len(pending) == 0 {
			fmt.Fprintln(out, green("🎉 No pending migrations - database is up to date!"))
			return nil
		}
		fmt.Fprintln(out, yellow(fmt.Sprintf("📋 Found %d pending migrations:", len(pending))))
		for _, m := range pending {
			fmt.Fprintln(out, gray("   - "+m.Filename))
		}
		fmt.Fprintln(out)

		report, err := runner.Apply(ctx)
		for _, name := range report.Skipped {
			fmt.Fprintln(out, yellow("⚠️  Skipping empty migration: "+name))
		}
		for _, name := range report.Applied {
			fmt.Fprintln(out, green("✅ Applied: "+name))
		}
		if err != nil {
			fmt.Fprintln(out, red(fmt.Sprintf("\n❌ Migration failed after %d applied", len(report.Applied))))
			return err
		}
		fmt.Fprintln(out, green(fmt.Sprintf("\n🎉 Successfully applied %d migrations!", len(report.Applied))))
		return nil
	})
}
