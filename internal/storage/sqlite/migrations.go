package sqlite

import (
	"fmt"
)

// migration is one guarded schema change: applied only when the column it
// introduces is absent, so replaying on any store version is safe.
type migration struct {
	table  string
	column string
	ddl    string
}

// migrations lists the post-1.0 schema changes in application order. The
// base schema in schema.go already carries every column for fresh stores;
// these exist for stores created before the column was introduced.
var migrations = []migration{
	// Enrichment failure tracking (skip-window support)
	{"jobs_raw", "enrich_failed_at", "ALTER TABLE jobs_raw ADD COLUMN enrich_failed_at INTEGER"},
	// Consecutive not-found tracking for company deactivation
	{"companies", "not_found_streak", "ALTER TABLE companies ADD COLUMN not_found_streak INTEGER NOT NULL DEFAULT 0"},
	// Cascade parent pointer on sub-operation runs
	{"pipeline_runs", "parent_run_id", "ALTER TABLE pipeline_runs ADD COLUMN parent_run_id TEXT NOT NULL DEFAULT ''"},
	// Dismissal tracking on matches
	{"matches", "dismissed_at", "ALTER TABLE matches ADD COLUMN dismissed_at INTEGER"},
}

// RunMigrations applies every pending guarded migration
func (s *SQLiteDB) RunMigrations() error {
	for _, m := range migrations {
		exists, err := s.columnExists(m.table, m.column)
		if err != nil {
			return fmt.Errorf("failed to inspect %s.%s: %w", m.table, m.column, err)
		}
		if exists {
			continue
		}
		if _, err := s.db.Exec(m.ddl); err != nil {
			return fmt.Errorf("failed to apply migration for %s.%s: %w", m.table, m.column, err)
		}
		s.logger.Info().
			Str("table", m.table).
			Str("column", m.column).
			Msg("Applied schema migration")
	}
	return nil
}

// columnExists checks PRAGMA table_info for a column
func (s *SQLiteDB) columnExists(table, column string) (bool, error) {
	rows, err := s.db.Query(fmt.Sprintf("PRAGMA table_info(%s)", table))
	if err != nil {
		return false, err
	}
	defer rows.Close()

	for rows.Next() {
		var cid int
		var name, colType string
		var notNull, pk int
		var dfltValue interface{}
		if err := rows.Scan(&cid, &name, &colType, &notNull, &dfltValue, &pk); err != nil {
			return false, err
		}
		if name == column {
			return true, nil
		}
	}
	return false, rows.Err()
}
