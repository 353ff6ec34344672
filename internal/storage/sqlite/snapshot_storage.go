package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"sync"
	"time"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/hunt/internal/interfaces"
	"github.com/ternarybob/hunt/internal/models"
)

// SnapshotStorage implements interfaces.CrawlSnapshotStorage. Snapshots are
// immutable once written; garbage collection spares the most recent snapshot
// per URL while the company is active.
type SnapshotStorage struct {
	db     *SQLiteDB
	logger arbor.ILogger
	mu     sync.Mutex
}

// NewSnapshotStorage creates a new snapshot storage instance
func NewSnapshotStorage(db *SQLiteDB, logger arbor.ILogger) interfaces.CrawlSnapshotStorage {
	return &SnapshotStorage{db: db, logger: logger}
}

// SaveSnapshot writes one immutable snapshot row
func (s *SnapshotStorage) SaveSnapshot(ctx context.Context, snap *models.CrawlSnapshot) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if snap.CrawledAt.IsZero() {
		snap.CrawledAt = time.Now()
	}

	query := `
		INSERT INTO crawl_snapshots (id, company_id, url, html_content, html_hash, status_code, rendered, crawled_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`
	_, err := s.db.db.ExecContext(ctx, query,
		snap.ID,
		snap.CompanyID,
		snap.URL,
		snap.HTMLContent,
		snap.HTMLHash,
		snap.StatusCode,
		snap.Rendered,
		snap.CrawledAt.Unix(),
	)
	if err != nil {
		return fmt.Errorf("failed to save crawl snapshot: %w", err)
	}
	return nil
}

// GetLatestSnapshot returns the most recent snapshot for a (company, url),
// nil when none exists.
func (s *SnapshotStorage) GetLatestSnapshot(ctx context.Context, companyID, url string) (*models.CrawlSnapshot, error) {
	query := `
		SELECT id, company_id, url, html_content, html_hash, status_code, rendered, crawled_at
		FROM crawl_snapshots
		WHERE company_id = ? AND url = ?
		ORDER BY crawled_at DESC
		LIMIT 1
	`
	snap, err := scanSnapshot(s.db.db.QueryRowContext(ctx, query, companyID, url).Scan)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return snap, err
}

// ListSnapshotsForCompany returns all snapshots for a company, newest first
func (s *SnapshotStorage) ListSnapshotsForCompany(ctx context.Context, companyID string) ([]*models.CrawlSnapshot, error) {
	query := `
		SELECT id, company_id, url, html_content, html_hash, status_code, rendered, crawled_at
		FROM crawl_snapshots
		WHERE company_id = ?
		ORDER BY crawled_at DESC
	`
	rows, err := s.db.db.QueryContext(ctx, query, companyID)
	if err != nil {
		return nil, fmt.Errorf("failed to query snapshots: %w", err)
	}
	defer rows.Close()

	var snaps []*models.CrawlSnapshot
	for rows.Next() {
		snap, err := scanSnapshot(rows.Scan)
		if err != nil {
			return nil, err
		}
		snaps = append(snaps, snap)
	}
	return snaps, rows.Err()
}

// DeleteSnapshotsOlderThan garbage-collects snapshots past the retention
// window, always retaining the most recent snapshot per (company, url).
func (s *SnapshotStorage) DeleteSnapshotsOlderThan(ctx context.Context, olderThanDays int) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	cutoff := time.Now().AddDate(0, 0, -olderThanDays).Unix()
	query := `
		DELETE FROM crawl_snapshots
		WHERE crawled_at < ?
		AND id NOT IN (
			SELECT id FROM (
				SELECT id, MAX(crawled_at) FROM crawl_snapshots GROUP BY company_id, url
			)
		)
	`
	result, err := s.db.db.ExecContext(ctx, query, cutoff)
	if err != nil {
		return 0, fmt.Errorf("failed to delete old snapshots: %w", err)
	}
	deleted, _ := result.RowsAffected()
	if deleted > 0 {
		s.logger.Info().Int64("deleted", deleted).Msg("Garbage-collected old crawl snapshots")
	}
	return int(deleted), nil
}

func scanSnapshot(scan func(...interface{}) error) (*models.CrawlSnapshot, error) {
	var snap models.CrawlSnapshot
	var crawledAt int64
	err := scan(
		&snap.ID,
		&snap.CompanyID,
		&snap.URL,
		&snap.HTMLContent,
		&snap.HTMLHash,
		&snap.StatusCode,
		&snap.Rendered,
		&crawledAt,
	)
	if err != nil {
		return nil, err
	}
	snap.CrawledAt = time.Unix(crawledAt, 0)
	return &snap, nil
}
