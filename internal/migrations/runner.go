package migrations

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"
)

var (
	ErrNoDownSection   = errors.New("migration has no DOWN section")
	ErrMissingFile     = errors.New("applied migration file is missing")
	ErrInvalidStepSize = errors.New("steps must be positive")
)

type Runner struct {
	store      Store
	migrations []Migration
	logger     *slog.Logger
}

func NewRunner(store Store, migrations []Migration, logger *slog.Logger) *Runner {
	if logger == nil {
		logger = slog.Default()
	}
	return &Runner{store: store, migrations: migrations, logger: logger}
}

func (r *Runner) Migrations() []Migration {
	return append([]Migration(nil), r.migrations...)
}

// Pending lists files with no row in the tracking table, in filename order.
func (r *Runner) Pending(ctx context.Context) ([]Migration, error) {
	if err := r.store.EnsureTable(ctx); err != nil {
		return nil, err
	}
	applied, err := r.appliedSet(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]Migration, 0, len(r.migrations))
	for _, m := range r.migrations {
		if _, ok := applied[m.Filename]; !ok {
			out = append(out, m)
		}
	}
	return out, nil
}

type ApplyReport struct {
	Applied []string
	Skipped []string
}

// Apply runs every pending UP section in order. Files with an empty UP
// section are skipped and stay pending. The first failure stops the run;
// migrations applied before it remain recorded.
func (r *Runner) Apply(ctx context.Context) (ApplyReport, error) {
	var report ApplyReport
	pending, err := r.Pending(ctx)
	if err != nil {
		return report, err
	}
	for _, m := range pending {
		up := m.Up()
		if up == "" {
			r.logger.WarnContext(ctx, "Skipping empty migration",
				"module", "migrations",
				"layer", "runner",
				"operation", "apply",
				"outcome", "skipped",
				"filename", m.Filename,
			)
			report.Skipped = append(report.Skipped, m.Filename)
			continue
		}
		if err := r.store.Apply(ctx, m.Filename, m.Checksum, up); err != nil {
			r.logger.ErrorContext(ctx, "migration failed",
				"module", "migrations",
				"layer", "runner",
				"operation", "apply",
				"outcome", "failure",
				"filename", m.Filename,
				"error", err,
			)
			return report, fmt.Errorf("apply migration %s: %w", m.Filename, err)
		}
		r.logger.InfoContext(ctx, "migration applied",
			"module", "migrations",
			"layer", "runner",
			"operation", "apply",
			"outcome", "success",
			"filename", m.Filename,
		)
		report.Applied = append(report.Applied, m.Filename)
	}
	return report, nil
}

type FileStatus struct {
	Filename  string
	Applied   bool
	AppliedAt *time.Time
	// Drifted is set when the file changed after it was applied.
	Drifted bool
	// Orphaned is set for tracking rows whose file no longer exists.
	Orphaned bool
}

type StatusReport struct {
	Files   []FileStatus
	Total   int
	Applied int
	Pending int
}

func (r *Runner) Status(ctx context.Context) (StatusReport, error) {
	if err := r.store.EnsureTable(ctx); err != nil {
		return StatusReport{}, err
	}
	applied, err := r.appliedSet(ctx)
	if err != nil {
		return StatusReport{}, err
	}
	report := StatusReport{Total: len(r.migrations)}
	known := make(map[string]struct{}, len(r.migrations))
	for _, m := range r.migrations {
		known[m.Filename] = struct{}{}
		st := FileStatus{Filename: m.Filename}
		if row, ok := applied[m.Filename]; ok {
			at := row.AppliedAt
			st.Applied = true
			st.AppliedAt = &at
			st.Drifted = row.Checksum != m.Checksum
			report.Applied++
		} else {
			report.Pending++
		}
		report.Files = append(report.Files, st)
	}
	rows, err := r.store.Applied(ctx)
	if err != nil {
		return StatusReport{}, err
	}
	for _, row := range rows {
		if _, ok := known[row.Filename]; ok {
			continue
		}
		at := row.AppliedAt
		report.Files = append(report.Files, FileStatus{Filename: row.Filename, Applied: true, AppliedAt: &at, Orphaned: true})
	}
	return report, nil
}

// Rollback reverts the last steps applied migrations, newest first.
func (r *Runner) Rollback(ctx context.Context, steps int) ([]string, error) {
	if steps <= 0 {
		return nil, ErrInvalidStepSize
	}
	if err := r.store.EnsureTable(ctx); err != nil {
		return nil, err
	}
	rows, err := r.store.Applied(ctx)
	if err != nil {
		return nil, err
	}
	byName := make(map[string]Migration, len(r.migrations))
	for _, m := range r.migrations {
		byName[m.Filename] = m
	}
	reverted := make([]string, 0, steps)
	for i := len(rows) - 1; i >= 0 && len(reverted) < steps; i-- {
		row := rows[i]
		m, ok := byName[row.Filename]
		if !ok {
			return reverted, fmt.Errorf("%w: %s", ErrMissingFile, row.Filename)
		}
		if !m.HasDown {
			return reverted, fmt.Errorf("%w: %s", ErrNoDownSection, row.Filename)
		}
		if err := r.store.Revert(ctx, m.Filename, m.Down()); err != nil {
			return reverted, fmt.Errorf("rollback migration %s: %w", m.Filename, err)
		}
		r.logger.InfoContext(ctx, "migration rolled back",
			"module", "migrations",
			"layer", "runner",
			"operation", "rollback",
			"outcome", "success",
			"filename", m.Filename,
		)
		reverted = append(reverted, m.Filename)
	}
	return reverted, nil
}

func (r *Runner) appliedSet(ctx context.Context) (map[string]AppliedMigration, error) {
	rows, err := r.store.Applied(ctx)
	if err != nil {
		return nil, err
	}
	out := make(map[string]AppliedMigration, len(rows))
	for _, row := range rows {
		out[row.Filename] = row
	}
	return out, nil
}
