package main

import (
	"bytes"
	"context"
	"io"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/fatih/color"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/viralforge/mesh/services/marketing/campaign-service/internal/migrations"
)

const widgetsSQL = `-- UP MIGRATION
CREATE TABLE widgets (id INT);

-- DOWN MIGRATION
DROP TABLE widgets;
`

func writeMigrations(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	files := map[string]string{
		"20250101000000_widgets.sql": widgetsSQL,
		"20250102000000_raw.sql":     "CREATE INDEX idx ON widgets(id);\n",
		"20250103000000_empty.sql":   "-- UP MIGRATION\n\n-- DOWN MIGRATION\n",
	}
	for name, body := range files {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(body), 0o600))
	}
	return dir
}

// execute runs the root command with fresh flag values and returns stdout.
func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	color.NoColor = true
	migrationsDir, databaseURL, dryRun, verbose = "", "", false, false
	rollbackSteps = 1
	checkTable, checkVersion = migrations.CampaignsTable, migrations.CampaignsMigrationVersion

	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(io.Discard)
	rootCmd.SetArgs(args)
	err := rootCmd.Execute()
	return out.String(), err
}

func useStore(t *testing.T, store migrations.Store) {
	t.Helper()
	original := openStoreFn
	openStoreFn = func(context.Context) (migrations.Store, func() error, error) {
		return store, func() error { return nil }, nil
	}
	t.Cleanup(func() { openStoreFn = original })
}

func TestInspectListsSections(t *testing.T) {
	dir := writeMigrations(t)

	out, err := execute(t, "inspect", "--dir", dir)
	require.NoError(t, err)
	assert.Contains(t, out, "Found 3 migration files:")
	assert.Contains(t, out, "01. 20250101000000_widgets.sql")
	assert.Contains(t, out, "UP: ✅  DOWN: ✅")
	assert.Contains(t, out, "02. 20250102000000_raw.sql")
	assert.Contains(t, out, "UP: ❌  DOWN: ❌")
	assert.Contains(t, out, "No UP/DOWN sections found - raw SQL file")
}

func TestInspectEmptyDir(t *testing.T) {
	out, err := execute(t, "inspect", "--dir", t.TempDir())
	require.NoError(t, err)
	assert.Contains(t, out, "No migration files found.")
}

func TestInspectEmbeddedMigrations(t *testing.T) {
	out, err := execute(t, "inspect")
	require.NoError(t, err)
	assert.Contains(t, out, "20250617092028_create_campaigns_table.sql")
}

func TestDefaultCommandAppliesInDryRun(t *testing.T) {
	dir := writeMigrations(t)

	out, err := execute(t, "--dry-run", "--dir", dir)
	require.NoError(t, err)
	assert.Contains(t, out, "Dry run")
	assert.Contains(t, out, "Found 3 migration files")
	assert.Contains(t, out, "Found 3 pending migrations:")
	assert.Contains(t, out, "✅ Applied: 20250101000000_widgets.sql")
	assert.Contains(t, out, "✅ Applied: 20250102000000_raw.sql")
	assert.Contains(t, out, "Skipping empty migration: 20250103000000_empty.sql")
	assert.Contains(t, out, "Successfully applied 2 migrations!")
}

func TestRunThenStatusAndRollback(t *testing.T) {
	dir := writeMigrations(t)
	store := migrations.NewMemoryStore()
	useStore(t, store)

	_, err := execute(t, "run", "--dir", dir)
	require.NoError(t, err)

	out, err := execute(t, "status", "--dir", dir)
	require.NoError(t, err)
	assert.Contains(t, out, "✅ 20250101000000_widgets.sql (applied ")
	assert.Contains(t, out, "⏳ 20250103000000_empty.sql (pending)")
	assert.Contains(t, out, "Total: 3 migrations, 2 applied, 1 pending")

	// the raw file was applied last and has no DOWN section
	_, err = execute(t, "rollback", "--dir", dir)
	assert.ErrorIs(t, err, migrations.ErrNoDownSection)

	out, err = execute(t, "run", "--dir", dir)
	require.NoError(t, err)
	assert.Contains(t, out, "2 migrations already applied")
}

func TestRollbackReverts(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "20250101000000_widgets.sql"), []byte(widgetsSQL), 0o600))
	store := migrations.NewMemoryStore()
	useStore(t, store)

	_, err := execute(t, "run", "--dir", dir)
	require.NoError(t, err)

	out, err := execute(t, "rollback", "--steps", "3", "--dir", dir)
	require.NoError(t, err)
	assert.Contains(t, out, "Rolled back: 20250101000000_widgets.sql")
	executed := store.Executed()
	assert.Equal(t, "DROP TABLE widgets;", executed[len(executed)-1])

	out, err = execute(t, "rollback", "--dir", dir)
	require.NoError(t, err)
	assert.Contains(t, out, "Nothing to roll back.")

	_, err = execute(t, "rollback", "--steps", "0", "--dir", dir)
	assert.ErrorIs(t, err, migrations.ErrInvalidStepSize)
}

func TestStatusReportsOrphans(t *testing.T) {
	dir := writeMigrations(t)
	store := migrations.NewMemoryStore()
	store.Record("20241231000000_gone.sql", "x", time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC))
	useStore(t, store)

	out, err := execute(t, "status", "--dir", dir)
	require.NoError(t, err)
	assert.Contains(t, out, "❔ 20241231000000_gone.sql (applied 2025-01-01T00:00:00Z, file missing)")
}

func TestCheckMissingTable(t *testing.T) {
	out, err := execute(t, "check", "--dry-run")
	assert.ErrorIs(t, err, errTableMissing)
	assert.Contains(t, out, "campaigns table does not exist")
	assert.Contains(t, out, "No migrations found in history")
	assert.Contains(t, out, "Table exists: ❌ No")
	assert.Contains(t, out, "Recommended actions:")
}

func TestCheckHealthyTable(t *testing.T) {
	store := migrations.NewMemoryStore(migrations.CampaignsTable, migrations.TrackingTable)
	store.Record("20250617092028_create_campaigns_table.sql", "x", time.Now())
	useStore(t, store)

	out, err := execute(t, "check")
	require.NoError(t, err)
	assert.Contains(t, out, "campaigns table exists and is accessible!")
	assert.Contains(t, out, "Migration (20250617092028) is in the history")
	assert.NotContains(t, out, "Recommended actions:")
}

func TestRunRequiresDatabaseURL(t *testing.T) {
	t.Setenv("DATABASE_URL", "")
	t.Setenv("SUPABASE_DB_URL", "")

	_, err := execute(t, "status", "--dir", t.TempDir())
	assert.ErrorIs(t, err, errDatabaseURL)
}

func TestResolveDatabaseURLPrefersFlag(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://env")
	t.Setenv("SUPABASE_DB_URL", "postgres://supabase")

	databaseURL = "postgres://flag"
	t.Cleanup(func() { databaseURL = "" })
	got, err := resolveDatabaseURL()
	require.NoError(t, err)
	assert.Equal(t, "postgres://flag", got)

	databaseURL = ""
	got, err = resolveDatabaseURL()
	require.NoError(t, err)
	assert.Equal(t, "postgres://env", got)
}
