package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"
	"github.com/viralforge/mesh/services/marketing/campaign-service/internal/migrations"
)

var (
	checkTable   string
	checkVersion string
)

var errTableMissing = errors.New("table check failed")

var checkCmd = &cobra.Command{
	Use:   "check",
	Short: "Verify the campaigns table exists and its migration is recorded",
	RunE:  runCheck,
}

func init() {
	checkCmd.Flags().StringVar(&checkTable, "table", migrations.CampaignsTable, "Table to probe")
	checkCmd.Flags().StringVar(&checkVersion, "version", migrations.CampaignsMigrationVersion, "Migration version expected in the history")
	rootCmd.AddCommand(checkCmd)
}

func runCheck(cmd *cobra.Command, args []string) error {
	out := cmd.OutOrStdout()
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	store, closeFn, err := openStoreFn(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = closeFn() }()

	fmt.Fprintln(out, blue("🚀 Checking database state...\n"))
	fmt.Fprintf(out, "🔍 Checking if %s table exists...\n", checkTable)
	check, err := migrations.CheckTable(ctx, store, checkTable, checkVersion)
	if err != nil {
		return err
	}
	if check.TableExists {
		fmt.Fprintln(out, green(fmt.Sprintf("✅ %s table exists and is accessible!", checkTable)))
	} else {
		fmt.Fprintln(out, red(fmt.Sprintf("❌ %s table does not exist", checkTable)))
		fmt.Fprintf(out, "\n💡 The %s table has not been created yet.\n", checkTable)
		fmt.Fprintln(out, "This means the migration has not been applied successfully.")
	}

	fmt.Fprintln(out, "\n🔍 Checking migration history...")
	if len(check.History) == 0 {
		fmt.Fprintln(out, "  No migrations found in history")
	} else {
		fmt.Fprintln(out, "📋 Migration history:")
		for _, v := range check.History {
			fmt.Fprintln(out, "  - "+v)
		}
		if check.MigrationRecorded {
			fmt.Fprintln(out, green(fmt.Sprintf("✅ Migration (%s) is in the history", checkVersion)))
		} else {
			fmt.Fprintln(out, red(fmt.Sprintf("❌ Migration (%s) is NOT in the history", checkVersion)))
		}
	}

	fmt.Fprintln(out, blue("\n📊 Summary:"))
	fmt.Fprintln(out, "  Table exists: "+yesNo(check.TableExists))
	fmt.Fprintln(out, "  Migration recorded: "+yesNo(check.MigrationRecorded))
	if recs := check.Recommendations(); len(recs) > 0 {
		fmt.Fprintln(out, yellow("\n🔧 Recommended actions:"))
		for i, r := range recs {
			fmt.Fprintf(out, "  %d. %s\n", i+1, r)
		}
		return fmt.Errorf("%w: %s", errTableMissing, checkTable)
	}
	return nil
}

func yesNo(ok bool) string {
	if ok {
		return "✅ Yes"
	}
	return "❌ No"
}
