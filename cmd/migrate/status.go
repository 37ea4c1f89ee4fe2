package main

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"github.com/viralforge/mesh/services/marketing/campaign-service/internal/migrations"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show applied and pending migrations",
	RunE:  runStatus,
}

func init() {
	rootCmd.AddCommand(statusCmd)
}

func runStatus(cmd *cobra.Command, args []string) error {
	out := cmd.OutOrStdout()
	return withRunner(cmd, func(ctx context.Context, runner *migrations.Runner) error {
		report, err := runner.Status(ctx)
		if err != nil {
			return err
		}
		fmt.Fprintln(out, blue("\n📊 Migration Status\n"))
		for _, f := range report.Files {
			switch {
			case f.Orphaned:
				fmt.Fprintln(out, gray(fmt.Sprintf("❔ %s (applied %s, file missing)", f.Filename, appliedAt(f))))
			case f.Applied && f.Drifted:
				fmt.Fprintln(out, yellow(fmt.Sprintf("✅ %s (applied %s, changed since)", f.Filename, appliedAt(f))))
			case f.Applied:
				fmt.Fprintln(out, green(fmt.Sprintf("✅ %s (applied %s)", f.Filename, appliedAt(f))))
			default:
				fmt.Fprintln(out, yellow(fmt.Sprintf("⏳ %s (pending)", f.Filename)))
			}
		}
		fmt.Fprintln(out, blue(fmt.Sprintf("\nTotal: %d migrations, %d applied, %d pending\n", report.Total, report.Applied, report.Pending)))
		return nil
	})
}

func appliedAt(f migrations.FileStatus) string {
	if f.AppliedAt == nil {
		return "unknown"
	}
	return f.AppliedAt.UTC().Format(time.RFC3339)
}
