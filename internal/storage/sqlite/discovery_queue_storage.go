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

// DiscoveryQueueStorage implements interfaces.DiscoveryQueueStorage. The
// claim operation moves pending -> processing under the write mutex plus the
// single-connection pool, making the locked-select atomic.
type DiscoveryQueueStorage struct {
	db     *SQLiteDB
	logger arbor.ILogger
	mu     sync.Mutex
}

// NewDiscoveryQueueStorage creates a new discovery queue storage instance
func NewDiscoveryQueueStorage(db *SQLiteDB, logger arbor.ILogger) interfaces.DiscoveryQueueStorage {
	return &DiscoveryQueueStorage{db: db, logger: logger}
}

const queueColumns = `id, dedupe_key, name, domain, careers_url, website_url, country, industry,
	employee_count, funding_stage, source, status, attempts, last_error, company_id,
	created_at, updated_at`

// UpsertQueueItem inserts or replaces a queue item on its dedupe key
func (d *DiscoveryQueueStorage) UpsertQueueItem(ctx context.Context, item *models.DiscoveryQueueItem) (*models.DiscoveryQueueItem, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	now := time.Now()
	if item.CreatedAt.IsZero() {
		item.CreatedAt = now
	}
	item.UpdatedAt = now
	if item.Status == "" {
		item.Status = models.QueueItemPending
	}

	query := `
		INSERT INTO discovery_queue (` + queueColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(dedupe_key) DO UPDATE SET
			name = excluded.name,
			domain = excluded.domain,
			careers_url = excluded.careers_url,
			website_url = excluded.website_url,
			country = excluded.country,
			industry = excluded.industry,
			employee_count = excluded.employee_count,
			funding_stage = excluded.funding_stage,
			updated_at = excluded.updated_at
	`
	_, err := d.db.db.ExecContext(ctx, query,
		item.ID,
		item.DedupeKey,
		item.Name,
		item.Domain,
		item.CareersURL,
		item.WebsiteURL,
		item.Country,
		item.Industry,
		item.EmployeeCount,
		item.FundingStage,
		item.Source,
		string(item.Status),
		item.Attempts,
		item.LastError,
		item.CompanyID,
		item.CreatedAt.Unix(),
		item.UpdatedAt.Unix(),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to upsert discovery queue item: %w", err)
	}

	return d.GetQueueItemByDedupeKey(ctx, item.DedupeKey)
}

// GetQueueItemByDedupeKey retrieves one item by dedupe key, nil when absent
func (d *DiscoveryQueueStorage) GetQueueItemByDedupeKey(ctx context.Context, dedupeKey string) (*models.DiscoveryQueueItem, error) {
	query := `SELECT ` + queueColumns + ` FROM discovery_queue WHERE dedupe_key = ?`
	item, err := scanQueueItem(d.db.db.QueryRowContext(ctx, query, dedupeKey).Scan)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return item, err
}

// ClaimNextPending atomically moves the oldest pending item to processing
// and returns it, or (nil, nil) when the queue is drained.
func (d *DiscoveryQueueStorage) ClaimNextPending(ctx context.Context) (*models.DiscoveryQueueItem, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	tx, err := d.db.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin claim transaction: %w", err)
	}
	defer tx.Rollback()

	query := `SELECT ` + queueColumns + ` FROM discovery_queue WHERE status = 'pending' ORDER BY created_at LIMIT 1`
	item, err := scanQueueItem(tx.QueryRowContext(ctx, query).Scan)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	_, err = tx.ExecContext(ctx,
		`UPDATE discovery_queue SET status = 'processing', updated_at = ? WHERE id = ?`,
		time.Now().Unix(), item.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to claim queue item: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit claim: %w", err)
	}

	item.Status = models.QueueItemProcessing
	return item, nil
}

// CompleteQueueItem marks an item completed, recording the promoted company
func (d *DiscoveryQueueStorage) CompleteQueueItem(ctx context.Context, id, companyID string) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	_, err := d.db.db.ExecContext(ctx,
		`UPDATE discovery_queue SET status = 'completed', company_id = ?, updated_at = ? WHERE id = ?`,
		companyID, time.Now().Unix(), id)
	return err
}

// SkipQueueItem marks an item skipped with the filter reason
func (d *DiscoveryQueueStorage) SkipQueueItem(ctx context.Context, id, reason string) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	_, err := d.db.db.ExecContext(ctx,
		`UPDATE discovery_queue SET status = 'skipped', last_error = ?, updated_at = ? WHERE id = ?`,
		reason, time.Now().Unix(), id)
	return err
}

// FailQueueItem records one processing failure: the item returns to pending
// until the retry cap, then parks as failed.
func (d *DiscoveryQueueStorage) FailQueueItem(ctx context.Context, id, errMsg string) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	query := `
		UPDATE discovery_queue SET
			attempts = attempts + 1,
			last_error = ?,
			status = CASE WHEN attempts + 1 >= ? THEN 'failed' ELSE 'pending' END,
			updated_at = ?
		WHERE id = ?
	`
	_, err := d.db.db.ExecContext(ctx, query, errMsg, models.MaxQueueRetries, time.Now().Unix(), id)
	return err
}

// CountByStatus counts queue items in one state
func (d *DiscoveryQueueStorage) CountByStatus(ctx context.Context, status models.QueueItemStatus) (int, error) {
	var count int
	err := d.db.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM discovery_queue WHERE status = ?`, string(status)).Scan(&count)
	return count, err
}

func scanQueueItem(scan func(...interface{}) error) (*models.DiscoveryQueueItem, error) {
	var item models.DiscoveryQueueItem
	var status string
	var createdAt, updatedAt int64

	err := scan(
		&item.ID,
		&item.DedupeKey,
		&item.Name,
		&item.Domain,
		&item.CareersURL,
		&item.WebsiteURL,
		&item.Country,
		&item.Industry,
		&item.EmployeeCount,
		&item.FundingStage,
		&item.Source,
		&status,
		&item.Attempts,
		&item.LastError,
		&item.CompanyID,
		&createdAt,
		&updatedAt,
	)
	if err != nil {
		return nil, err
	}

	item.Status = models.QueueItemStatus(status)
	item.CreatedAt = time.Unix(createdAt, 0)
	item.UpdatedAt = time.Unix(updatedAt, 0)
	return &item, nil
}
