package migrations

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// MemoryStore records migrations without executing them. It backs dry runs
// and tests.
type MemoryStore struct {
	mu       sync.Mutex
	rows     []AppliedMigration
	tables   map[string]bool
	executed []string
	nextID   int64
	// FailOn makes Apply fail for the named file.
	FailOn string
	nowFn  func() time.Time
}

func NewMemoryStore(tables ...string) *MemoryStore {
	s := &MemoryStore{tables: map[string]bool{}, nowFn: time.Now}
	for _, t := range tables {
		s.tables[t] = true
	}
	return s
}

func (s *MemoryStore) EnsureTable(context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tables[TrackingTable] = true
	return nil
}

func (s *MemoryStore) Applied(context.Context) ([]AppliedMigration, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]AppliedMigration(nil), s.rows...), nil
}

func (s *MemoryStore) Apply(_ context.Context, filename, checksum, sql string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if filename == s.FailOn {
		return fmt.Errorf("forced failure for %s", filename)
	}
	for _, row := range s.rows {
		if row.Filename == filename {
			return fmt.Errorf("duplicate migration record %s", filename)
		}
	}
	s.nextID++
	s.rows = append(s.rows, AppliedMigration{ID: s.nextID, Filename: filename, Checksum: checksum, AppliedAt: s.nowFn().UTC()})
	s.executed = append(s.executed, sql)
	return nil
}

func (s *MemoryStore) Revert(_ context.Context, filename, sql string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, row := range s.rows {
		if row.Filename == filename {
			s.rows = append(s.rows[:i], s.rows[i+1:]...)
			s.executed = append(s.executed, sql)
			return nil
		}
	}
	return fmt.Errorf("%w: %s", ErrNotRecorded, filename)
}

func (s *MemoryStore) TableExists(_ context.Context, table string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.tables[table], nil
}

// Executed returns the SQL handed to Apply and Revert, in call order.
func (s *MemoryStore) Executed() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.executed...)
}

// Record marks filename as applied without running anything.
func (s *MemoryStore) Record(filename, checksum string, at time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextID++
	s.rows = append(s.rows, AppliedMigration{ID: s.nextID, Filename: filename, Checksum: checksum, AppliedAt: at})
}
