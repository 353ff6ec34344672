package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"math"
	"sort"
	"sync"
	"time"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/hunt/internal/interfaces"
	"github.com/ternarybob/hunt/internal/models"
)

// JobStorage implements interfaces.JobStorage. Upserts key on
// (company_id, source_url); the canonical row's id, embedding, and usage
// state survive re-normalization.
type JobStorage struct {
	db     *SQLiteDB
	logger arbor.ILogger
	mu     sync.Mutex
}

// NewJobStorage creates a new canonical job storage instance
func NewJobStorage(db *SQLiteDB, logger arbor.ILogger) interfaces.JobStorage {
	return &JobStorage{db: db, logger: logger}
}

const jobColumns = `id, company_id, raw_job_id, source_url, title, role_family, role_specialization,
	seniority, location_type, locations, skills, min_salary, max_salary, employment_type,
	posted_at, freshness_score, embedding, is_active, last_verified_at, delisted_at,
	delist_reason, created_at, updated_at`

// UpsertJob inserts or refreshes a canonical job on (company, source_url).
// On conflict the normalized fields are replaced; id, embedding, created_at,
// and delist state are preserved.
func (j *JobStorage) UpsertJob(ctx context.Context, job *models.Job) (*models.Job, error) {
	j.mu.Lock()
	defer j.mu.Unlock()

	now := time.Now()
	if job.CreatedAt.IsZero() {
		job.CreatedAt = now
	}
	job.UpdatedAt = now

	query := `
		INSERT INTO jobs (` + jobColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(company_id, source_url) DO UPDATE SET
			raw_job_id = excluded.raw_job_id,
			title = excluded.title,
			role_family = excluded.role_family,
			role_specialization = excluded.role_specialization,
			seniority = excluded.seniority,
			location_type = excluded.location_type,
			locations = excluded.locations,
			skills = excluded.skills,
			min_salary = excluded.min_salary,
			max_salary = excluded.max_salary,
			employment_type = excluded.employment_type,
			posted_at = excluded.posted_at,
			freshness_score = excluded.freshness_score,
			is_active = excluded.is_active,
			updated_at = excluded.updated_at
	`
	_, err := j.db.db.ExecContext(ctx, query,
		job.ID,
		job.CompanyID,
		job.RawJobID,
		job.SourceURL,
		job.Title,
		string(job.RoleFamily),
		job.RoleSpecialization,
		string(job.Seniority),
		string(job.LocationType),
		marshalJSON(job.Locations),
		marshalJSON(job.Skills),
		floatOrNil(job.MinSalary),
		floatOrNil(job.MaxSalary),
		string(job.EmploymentType),
		unixOrNil(job.PostedAt),
		job.FreshnessScore,
		encodeEmbedding(job.Embedding),
		job.IsActive,
		unixOrNil(job.LastVerifiedAt),
		unixOrNil(job.DelistedAt),
		string(job.DelistReason),
		job.CreatedAt.Unix(),
		job.UpdatedAt.Unix(),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to upsert job: %w", err)
	}

	// Read back so the caller sees the preserved id and embedding on conflict
	return j.GetJobBySourceURL(ctx, job.CompanyID, job.SourceURL)
}

// GetJob retrieves one canonical job by id, nil when absent
func (j *JobStorage) GetJob(ctx context.Context, id string) (*models.Job, error) {
	query := `SELECT ` + jobColumns + ` FROM jobs WHERE id = ?`
	job, err := scanJob(j.db.db.QueryRowContext(ctx, query, id).Scan)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return job, err
}

// GetJobBySourceURL retrieves one canonical job by its unique key
func (j *JobStorage) GetJobBySourceURL(ctx context.Context, companyID, sourceURL string) (*models.Job, error) {
	query := `SELECT ` + jobColumns + ` FROM jobs WHERE company_id = ? AND source_url = ?`
	job, err := scanJob(j.db.db.QueryRowContext(ctx, query, companyID, sourceURL).Scan)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return job, err
}

// ListJobs lists canonical jobs with filters and pagination
func (j *JobStorage) ListJobs(ctx context.Context, opts *interfaces.JobListOptions) ([]*models.Job, error) {
	query := `SELECT ` + jobColumns + ` FROM jobs WHERE 1=1`
	var args []interface{}

	if opts != nil {
		if opts.CompanyID != "" {
			query += ` AND company_id = ?`
			args = append(args, opts.CompanyID)
		}
		if opts.RoleFamily != "" {
			query += ` AND role_family = ?`
			args = append(args, string(opts.RoleFamily))
		}
		if opts.Seniority != "" {
			query += ` AND seniority = ?`
			args = append(args, string(opts.Seniority))
		}
		if opts.LocationType != "" {
			query += ` AND location_type = ?`
			args = append(args, string(opts.LocationType))
		}
		if opts.IsActive != nil {
			query += ` AND is_active = ?`
			args = append(args, *opts.IsActive)
		}
	}

	query += ` ORDER BY freshness_score DESC, updated_at DESC`

	limit, offset := 50, 0
	if opts != nil {
		if opts.Limit > 0 {
			limit = opts.Limit
		}
		if opts.Offset > 0 {
			offset = opts.Offset
		}
	}
	query += ` LIMIT ? OFFSET ?`
	args = append(args, limit, offset)

	return j.scanMany(ctx, query, args...)
}

// CountJobs counts canonical jobs matching the same filters as ListJobs
func (j *JobStorage) CountJobs(ctx context.Context, opts *interfaces.JobListOptions) (int, error) {
	query := `SELECT COUNT(*) FROM jobs WHERE 1=1`
	var args []interface{}
	if opts != nil {
		if opts.CompanyID != "" {
			query += ` AND company_id = ?`
			args = append(args, opts.CompanyID)
		}
		if opts.RoleFamily != "" {
			query += ` AND role_family = ?`
			args = append(args, string(opts.RoleFamily))
		}
		if opts.Seniority != "" {
			query += ` AND seniority = ?`
			args = append(args, string(opts.Seniority))
		}
		if opts.LocationType != "" {
			query += ` AND location_type = ?`
			args = append(args, string(opts.LocationType))
		}
		if opts.IsActive != nil {
			query += ` AND is_active = ?`
			args = append(args, *opts.IsActive)
		}
	}
	var count int
	err := j.db.db.QueryRowContext(ctx, query, args...).Scan(&count)
	return count, err
}

// ListActiveJobsForCompany returns a company's active jobs
func (j *JobStorage) ListActiveJobsForCompany(ctx context.Context, companyID string) ([]*models.Job, error) {
	query := `SELECT ` + jobColumns + ` FROM jobs WHERE company_id = ? AND is_active = 1`
	return j.scanMany(ctx, query, companyID)
}

// ListJobsMissingEmbedding returns active jobs without vectors
func (j *JobStorage) ListJobsMissingEmbedding(ctx context.Context, limit int) ([]*models.Job, error) {
	if limit <= 0 {
		limit = 500
	}
	query := `SELECT ` + jobColumns + ` FROM jobs WHERE is_active = 1 AND embedding IS NULL LIMIT ?`
	return j.scanMany(ctx, query, limit)
}

// SetEmbedding writes a job's vector
func (j *JobStorage) SetEmbedding(ctx context.Context, id string, embedding []float32) error {
	j.mu.Lock()
	defer j.mu.Unlock()

	_, err := j.db.db.ExecContext(ctx,
		`UPDATE jobs SET embedding = ?, updated_at = ? WHERE id = ?`,
		encodeEmbedding(embedding), time.Now().Unix(), id)
	return err
}

// DelistJob marks a job inactive with a reason
func (j *JobStorage) DelistJob(ctx context.Context, id string, reason models.DelistReason) error {
	j.mu.Lock()
	defer j.mu.Unlock()

	now := time.Now().Unix()
	_, err := j.db.db.ExecContext(ctx,
		`UPDATE jobs SET is_active = 0, delisted_at = ?, delist_reason = ?, updated_at = ? WHERE id = ?`,
		now, string(reason), now, id)
	return err
}

// MarkVerified stamps a job's last verification time
func (j *JobStorage) MarkVerified(ctx context.Context, id string) error {
	j.mu.Lock()
	defer j.mu.Unlock()

	now := time.Now().Unix()
	_, err := j.db.db.ExecContext(ctx,
		`UPDATE jobs SET last_verified_at = ?, updated_at = ? WHERE id = ?`,
		now, now, id)
	return err
}

// CountActiveJobs counts the active catalog
func (j *JobStorage) CountActiveJobs(ctx context.Context) (int, error) {
	var count int
	err := j.db.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM jobs WHERE is_active = 1`).Scan(&count)
	return count, err
}

// TopKByEmbedding scans active jobs with embeddings and returns the k
// closest to query by cosine similarity, filtered to those scoring at least
// minSimilarity. Brute-force, in-process; the candidate set is bounded by
// the active catalog size and the matcher's K.
func (j *JobStorage) TopKByEmbedding(ctx context.Context, query []float32, k int, minSimilarity float64) ([]*models.Job, error) {
	if len(query) == 0 {
		return nil, nil
	}
	if k <= 0 {
		k = 200
	}

	rows, err := j.db.db.QueryContext(ctx,
		`SELECT `+jobColumns+` FROM jobs WHERE is_active = 1 AND embedding IS NOT NULL`)
	if err != nil {
		return nil, fmt.Errorf("failed to scan embeddings: %w", err)
	}
	defer rows.Close()

	type scored struct {
		job *models.Job
		sim float64
	}
	var candidates []scored
	for rows.Next() {
		job, err := scanJob(rows.Scan)
		if err != nil {
			return nil, err
		}
		sim := cosineSimilarity(query, job.Embedding)
		if sim >= minSimilarity {
			candidates = append(candidates, scored{job, sim})
		}
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	sort.Slice(candidates, func(a, b int) bool { return candidates[a].sim > candidates[b].sim })
	if len(candidates) > k {
		candidates = candidates[:k]
	}

	jobs := make([]*models.Job, len(candidates))
	for i, c := range candidates {
		jobs[i] = c.job
	}
	return jobs, nil
}

func (j *JobStorage) scanMany(ctx context.Context, query string, args ...interface{}) ([]*models.Job, error) {
	rows, err := j.db.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query jobs: %w", err)
	}
	defer rows.Close()

	var jobs []*models.Job
	for rows.Next() {
		job, err := scanJob(rows.Scan)
		if err != nil {
			return nil, err
		}
		jobs = append(jobs, job)
	}
	return jobs, rows.Err()
}

func scanJob(scan func(...interface{}) error) (*models.Job, error) {
	var job models.Job
	var roleFamily, seniority, locationType, employmentType, delistReason string
	var locations, skills string
	var minSalary, maxSalary sql.NullFloat64
	var postedAt, lastVerified, delistedAt sql.NullInt64
	var embedding []byte
	var createdAt, updatedAt int64

	err := scan(
		&job.ID,
		&job.CompanyID,
		&job.RawJobID,
		&job.SourceURL,
		&job.Title,
		&roleFamily,
		&job.RoleSpecialization,
		&seniority,
		&locationType,
		&locations,
		&skills,
		&minSalary,
		&maxSalary,
		&employmentType,
		&postedAt,
		&job.FreshnessScore,
		&embedding,
		&job.IsActive,
		&lastVerified,
		&delistedAt,
		&delistReason,
		&createdAt,
		&updatedAt,
	)
	if err != nil {
		return nil, err
	}

	job.RoleFamily = models.RoleFamily(roleFamily)
	job.Seniority = models.Seniority(seniority)
	job.LocationType = models.LocationType(locationType)
	job.EmploymentType = models.EmploymentType(employmentType)
	job.DelistReason = models.DelistReason(delistReason)
	job.Locations = unmarshalStrings(locations)
	job.Skills = unmarshalStrings(skills)
	job.MinSalary = floatFromNull(minSalary)
	job.MaxSalary = floatFromNull(maxSalary)
	job.PostedAt = timeFromNull(postedAt)
	job.LastVerifiedAt = timeFromNull(lastVerified)
	job.DelistedAt = timeFromNull(delistedAt)
	job.Embedding = decodeEmbedding(embedding)
	job.CreatedAt = time.Unix(createdAt, 0)
	job.UpdatedAt = time.Unix(updatedAt, 0)
	return &job, nil
}

// cosineSimilarity computes the cosine of the angle between two vectors
func cosineSimilarity(a, b []float32) float64 {
	if len(a) == 0 || len(a) != len(b) {
		return 0
	}
	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}
