package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/caarlos0/env/v11"
	"github.com/fatih/color"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/viralforge/mesh/services/marketing/campaign-service/internal/adapters/postgres"
	"github.com/viralforge/mesh/services/marketing/campaign-service/internal/migrations"
)

var (
	// Global flags
	migrationsDir string
	databaseURL   string
	dryRun        bool
	verbose       bool

	openStoreFn = openStore

	green  = color.New(color.FgGreen).SprintFunc()
	yellow = color.New(color.FgYellow).SprintFunc()
	red    = color.New(color.FgRed).SprintFunc()
	blue   = color.New(color.FgBlue).SprintFunc()
	gray   = color.New(color.FgHiBlack).SprintFunc()
)

var errDatabaseURL = errors.New("database url is required: pass --database-url or set DATABASE_URL or SUPABASE_DB_URL")

type dbEnv struct {
	DatabaseURL   string `env:"DATABASE_URL"`
	SupabaseDBURL string `env:"SUPABASE_DB_URL"`
}

var rootCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply and inspect the campaign service SQL migrations",
	Long: `Runs the SQL migration files shipped with the service against Postgres.

Files are applied in filename order and tracked in the _migrations table.
Each file may carry "-- UP MIGRATION" and "-- DOWN MIGRATION" sections;
a file without markers is applied as a whole.

Run without a subcommand to apply pending migrations.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		// a missing .env is fine
		_ = godotenv.Load()
		return nil
	},
	RunE: runMigrations,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&migrationsDir, "dir", "", "Migrations directory (defaults to the files embedded in the binary)")
	rootCmd.PersistentFlags().StringVar(&databaseURL, "database-url", "", "Postgres connection string (defaults to DATABASE_URL or SUPABASE_DB_URL)")
	rootCmd.PersistentFlags().BoolVar(&dryRun, "dry-run", false, "Track migrations in memory without touching a database")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Log every migration step")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "%s %v\n", red("❌"), err)
		os.Exit(1)
	}
}

func loadMigrations() ([]migrations.Migration, error) {
	if migrationsDir == "" {
		return migrations.Load(postgres.MigrationFS())
	}
	return migrations.LoadDir(migrationsDir)
}

func resolveDatabaseURL() (string, error) {
	if databaseURL != "" {
		return databaseURL, nil
	}
	var cfg dbEnv
	if err := env.Parse(&cfg); err != nil {
		return "", fmt.Errorf("parse environment: %w", err)
	}
	switch {
	case cfg.DatabaseURL != "":
		return cfg.DatabaseURL, nil
	case cfg.SupabaseDBURL != "":
		return cfg.SupabaseDBURL, nil
	}
	return "", errDatabaseURL
}

// openStore returns the tracking store and a close func. Dry runs get a
// fresh in-memory store.
func openStore(ctx context.Context) (migrations.Store, func() error, error) {
	if dryRun {
		return migrations.NewMemoryStore(), func() error { return nil }, nil
	}
	url, err := resolveDatabaseURL()
	if err != nil {
		return nil, nil, err
	}
	db, err := postgres.Connect(ctx, url, 2)
	if err != nil {
		return nil, nil, err
	}
	sqlDB, err := db.DB()
	if err != nil {
		return nil, nil, err
	}
	store, err := migrations.NewGormStore(db)
	if err != nil {
		_ = sqlDB.Close()
		return nil, nil, err
	}
	return store, sqlDB.Close, nil
}

func newLogger(w io.Writer) *slog.Logger {
	level := slog.LevelWarn
	if verbose {
		level = slog.LevelInfo
	}
	return slog.New(slog.NewJSONHandler(w, &slog.HandlerOptions{Level: level}))
}

// withRunner loads the files, opens the store and hands both to fn.
func withRunner(cmd *cobra.Command, fn func(ctx context.Context, runner *migrations.Runner) error) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	files, err := loadMigrations()
	if err != nil {
		return err
	}
	store, closeFn, err := openStoreFn(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = closeFn() }()
	if dryRun {
		fmt.Fprintln(cmd.OutOrStdout(), yellow("🧪 Dry run: nothing is written to the database"))
	}
	return fn(ctx, migrations.NewRunner(store, files, newLogger(cmd.ErrOrStderr())))
}
