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

// RawJobStorage implements interfaces.RawJobStorage. Upserts key on
// (company_id, source_url); re-extraction overwrites fields but preserves
// the row id and the canonical back-pointer.
type RawJobStorage struct {
	db     *SQLiteDB
	logger arbor.ILogger
	mu     sync.Mutex
}

// NewRawJobStorage creates a new raw job storage instance
func NewRawJobStorage(db *SQLiteDB, logger arbor.ILogger) interfaces.RawJobStorage {
	return &RawJobStorage{db: db, logger: logger}
}

const rawJobColumns = `id, company_id, source_url, title_raw, description_raw, location_raw,
	department_raw, employment_raw, salary_raw, posted_at_raw, external_id,
	canonical_job_id, enrich_failed_at, extracted_at`

// UpsertRawJob inserts or overwrites a raw job on (company, source_url) and
// returns the stored row (with the preserved id on conflict).
func (r *RawJobStorage) UpsertRawJob(ctx context.Context, job *models.RawJob) (*models.RawJob, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if job.ExtractedAt.IsZero() {
		job.ExtractedAt = time.Now()
	}

	query := `
		INSERT INTO jobs_raw (` + rawJobColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(company_id, source_url) DO UPDATE SET
			title_raw = excluded.title_raw,
			description_raw = excluded.description_raw,
			location_raw = excluded.location_raw,
			department_raw = excluded.department_raw,
			employment_raw = excluded.employment_raw,
			salary_raw = excluded.salary_raw,
			posted_at_raw = excluded.posted_at_raw,
			external_id = excluded.external_id,
			extracted_at = excluded.extracted_at
	`
	_, err := r.db.db.ExecContext(ctx, query,
		job.ID,
		job.CompanyID,
		job.SourceURL,
		job.TitleRaw,
		job.DescriptionRaw,
		job.LocationRaw,
		job.DepartmentRaw,
		job.EmploymentRaw,
		job.SalaryRaw,
		job.PostedAtRaw,
		job.ExternalID,
		job.CanonicalJobID,
		unixOrNil(job.EnrichFailedAt),
		job.ExtractedAt.Unix(),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to upsert raw job: %w", err)
	}

	// Read back so the caller sees the preserved id on conflict
	return r.GetRawJobBySourceURL(ctx, job.CompanyID, job.SourceURL)
}

// GetRawJob retrieves one raw job by id, nil when absent
func (r *RawJobStorage) GetRawJob(ctx context.Context, id string) (*models.RawJob, error) {
	query := `SELECT ` + rawJobColumns + ` FROM jobs_raw WHERE id = ?`
	job, err := scanRawJob(r.db.db.QueryRowContext(ctx, query, id).Scan)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return job, err
}

// GetRawJobBySourceURL retrieves one raw job by its unique key, nil when absent
func (r *RawJobStorage) GetRawJobBySourceURL(ctx context.Context, companyID, sourceURL string) (*models.RawJob, error) {
	query := `SELECT ` + rawJobColumns + ` FROM jobs_raw WHERE company_id = ? AND source_url = ?`
	job, err := scanRawJob(r.db.db.QueryRowContext(ctx, query, companyID, sourceURL).Scan)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return job, err
}

// ListRawJobsForCompany returns all raw jobs for a company
func (r *RawJobStorage) ListRawJobsForCompany(ctx context.Context, companyID string) ([]*models.RawJob, error) {
	query := `SELECT ` + rawJobColumns + ` FROM jobs_raw WHERE company_id = ? ORDER BY extracted_at DESC`
	return r.scanMany(ctx, query, companyID)
}

// ListRawJobsNeedingEnrichment returns description-less jobs outside the
// failure skip window, oldest first.
func (r *RawJobStorage) ListRawJobsNeedingEnrichment(ctx context.Context, skipWindowMinutes int, limit int) ([]*models.RawJob, error) {
	if limit <= 0 {
		limit = 100
	}
	cutoff := time.Now().Add(-time.Duration(skipWindowMinutes) * time.Minute).Unix()
	query := `
		SELECT ` + rawJobColumns + ` FROM jobs_raw
		WHERE description_raw = ''
		AND (enrich_failed_at IS NULL OR enrich_failed_at <= ?)
		ORDER BY extracted_at ASC
		LIMIT ?
	`
	return r.scanMany(ctx, query, cutoff, limit)
}

// MarkEnrichFailed stamps the job's enrichment failure time, starting its
// skip window.
func (r *RawJobStorage) MarkEnrichFailed(ctx context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	_, err := r.db.db.ExecContext(ctx,
		`UPDATE jobs_raw SET enrich_failed_at = ? WHERE id = ?`,
		time.Now().Unix(), id)
	return err
}

// ResetEnrichFailures clears the failure stamp on every description-less
// row, restoring enrichment eligibility for a new full pipeline run.
func (r *RawJobStorage) ResetEnrichFailures(ctx context.Context) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	result, err := r.db.db.ExecContext(ctx,
		`UPDATE jobs_raw SET enrich_failed_at = NULL WHERE description_raw = '' AND enrich_failed_at IS NOT NULL`)
	if err != nil {
		return 0, fmt.Errorf("failed to reset enrichment failures: %w", err)
	}
	rows, _ := result.RowsAffected()
	return int(rows), nil
}

// SetCanonicalJobID writes the raw row's canonical back-pointer
func (r *RawJobStorage) SetCanonicalJobID(ctx context.Context, rawJobID, canonicalJobID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	_, err := r.db.db.ExecContext(ctx,
		`UPDATE jobs_raw SET canonical_job_id = ? WHERE id = ?`,
		canonicalJobID, rawJobID)
	return err
}

func (r *RawJobStorage) scanMany(ctx context.Context, query string, args ...interface{}) ([]*models.RawJob, error) {
	rows, err := r.db.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query raw jobs: %w", err)
	}
	defer rows.Close()

	var jobs []*models.RawJob
	for rows.Next() {
		job, err := scanRawJob(rows.Scan)
		if err != nil {
			return nil, err
		}
		jobs = append(jobs, job)
	}
	return jobs, rows.Err()
}

func scanRawJob(scan func(...interface{}) error) (*models.RawJob, error) {
	var job models.RawJob
	var enrichFailed sql.NullInt64
	var extractedAt int64
	err := scan(
		&job.ID,
		&job.CompanyID,
		&job.SourceURL,
		&job.TitleRaw,
		&job.DescriptionRaw,
		&job.LocationRaw,
		&job.DepartmentRaw,
		&job.EmploymentRaw,
		&job.SalaryRaw,
		&job.PostedAtRaw,
		&job.ExternalID,
		&job.CanonicalJobID,
		&enrichFailed,
		&extractedAt,
	)
	if err != nil {
		return nil, err
	}
	job.EnrichFailedAt = timeFromNull(enrichFailed)
	job.ExtractedAt = time.Unix(extractedAt, 0)
	return &job, nil
}
