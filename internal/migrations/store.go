package migrations

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

const TrackingTable = "_migrations"

const createTrackingTableSQL = `CREATE TABLE IF NOT EXISTS _migrations (
  id SERIAL PRIMARY KEY,
  filename VARCHAR(255) UNIQUE NOT NULL,
  applied_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
  checksum VARCHAR(64) NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_migrations_filename ON _migrations(filename);`

var ErrNotRecorded = errors.New("migration not recorded")

type AppliedMigration struct {
	ID        int64
	Filename  string
	Checksum  string
	AppliedAt time.Time
}

// Store is the bookkeeping backend of a Runner.
type Store interface {
	EnsureTable(ctx context.Context) error
	// Applied lists recorded migrations in the order they were applied.
	Applied(ctx context.Context) ([]AppliedMigration, error)
	// Apply runs sql and records filename in one transaction.
	Apply(ctx context.Context, filename, checksum, sql string) error
	// Revert runs sql and removes the record of filename in one transaction.
	Revert(ctx context.Context, filename, sql string) error
	TableExists(ctx context.Context, table string) (bool, error)
}

type appliedMigrationModel struct {
	ID        int64     `gorm:"column:id;primaryKey;autoIncrement"`
	Filename  string    `gorm:"column:filename"`
	AppliedAt time.Time `gorm:"column:applied_at"`
	Checksum  string    `gorm:"column:checksum"`
}

func (appliedMigrationModel) TableName() string { return TrackingTable }

type GormStore struct {
	db *gorm.DB
}

// NewGormStore opens a second gorm handle over the connection pool of db
// with statement preparation off. Postgres refuses to prepare the
// multi-statement strings migration files hold, and a Session cannot undo
// PrepareStmt once the pool is wrapped.
func NewGormStore(db *gorm.DB) (*GormStore, error) {
	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("migration store pool: %w", err)
	}
	plain, err := gorm.Open(postgres.New(postgres.Config{Conn: sqlDB}), &gorm.Config{
		TranslateError: true,
		Logger:         db.Config.Logger,
	})
	if err != nil {
		return nil, fmt.Errorf("migration store handle: %w", err)
	}
	return &GormStore{db: plain}, nil
}

func (s *GormStore) EnsureTable(ctx context.Context) error {
	if err := s.db.WithContext(ctx).Exec(createTrackingTableSQL).Error; err != nil {
		return fmt.Errorf("create %s table: %w", TrackingTable, err)
	}
	return nil
}

func (s *GormStore) Applied(ctx context.Context) ([]AppliedMigration, error) {
	var rows []appliedMigrationModel
	if err := s.db.WithContext(ctx).Order("id ASC").Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("read %s: %w", TrackingTable, err)
	}
	out := make([]AppliedMigration, 0, len(rows))
	for _, row := range rows {
		out = append(out, AppliedMigration{
			ID:        row.ID,
			Filename:  row.Filename,
			Checksum:  row.Checksum,
			AppliedAt: row.AppliedAt,
		})
	}
	return out, nil
}

func (s *GormStore) Apply(ctx context.Context, filename, checksum, sql string) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Exec(sql).Error; err != nil {
			return err
		}
		return tx.Create(&appliedMigrationModel{
			Filename:  filename,
			Checksum:  checksum,
			AppliedAt: time.Now().UTC(),
		}).Error
	})
}

func (s *GormStore) Revert(ctx context.Context, filename, sql string) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if hasStatements(sql) {
			if err := tx.Exec(sql).Error; err != nil {
				return err
			}
		}
		res := tx.Where("filename = ?", filename).Delete(&appliedMigrationModel{})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return fmt.Errorf("%w: %s", ErrNotRecorded, filename)
		}
		return nil
	})
}

// TableExists accepts "name" (public schema) or "schema.name".
func (s *GormStore) TableExists(ctx context.Context, table string) (bool, error) {
	schema, name := "public", table
	if i := strings.IndexByte(table, '.'); i > 0 {
		schema, name = table[:i], table[i+1:]
	}
	var exists bool
	err := s.db.WithContext(ctx).Raw(
		`SELECT EXISTS (SELECT 1 FROM information_schema.tables WHERE table_schema = ? AND table_name = ?)`,
		schema, name,
	).Scan(&exists).Error
	if err != nil {
		return false, fmt.Errorf("probe table %s: %w", table, err)
	}
	return exists, nil
}

// hasStatements reports whether sql holds anything besides blank lines and
// line comments.
func hasStatements(sql string) bool {
	for _, line := range strings.Split(sql, "\n") {
		line = strings.TrimSpace(line)
		if line != "" && !strings.HasPrefix(line, "--") {
			return true
		}
	}
	return false
}
