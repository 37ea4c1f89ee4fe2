package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/viralforge/mesh/services/marketing/campaign-service/internal/migrations"
)

var inspectCmd = &cobra.Command{
	Use:   "inspect",
	Short: "List migration files and their UP/DOWN sections",
	Long: `Lists the migration files without connecting to a database, marking
which ones carry UP and DOWN sections.`,
	RunE: runInspect,
}

func init() {
	rootCmd.AddCommand(inspectCmd)
}

func runInspect(cmd *cobra.Command, args []string) error {
	out := cmd.OutOrStdout()
	files, err := loadMigrations()
	if err != nil {
		return err
	}
	fmt.Fprintln(out, blue("\n📊 Migration Files\n"))
	reports := migrations.Inspect(files)
	if len(reports) == 0 {
		fmt.Fprintln(out, yellow("No migration files found."))
		return nil
	}
	fmt.Fprintln(out, blue(fmt.Sprintf("Found %d migration files:\n", len(reports))))
	for _, r := range reports {
		fmt.Fprintln(out, gray(fmt.Sprintf("%02d. %s", r.Index, r.Filename)))
		fmt.Fprintln(out, gray(fmt.Sprintf("    UP: %s  DOWN: %s", mark(r.HasUp), mark(r.HasDown))))
		if r.Raw() {
			fmt.Fprintln(out, yellow("    ⚠️  No UP/DOWN sections found - raw SQL file"))
		}
	}
	return nil
}

func mark(ok bool) string {
	if ok {
		return "✅"
	}
	return "❌"
}
