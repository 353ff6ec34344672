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

// CompanyStorage implements interfaces.CompanyStorage
type CompanyStorage struct {
	db     *SQLiteDB
	logger arbor.ILogger
	mu     sync.Mutex // Serializes writes to prevent SQLITE_BUSY errors
}

// NewCompanyStorage creates a new company storage instance
func NewCompanyStorage(db *SQLiteDB, logger arbor.ILogger) interfaces.CompanyStorage {
	return &CompanyStorage{db: db, logger: logger}
}

const companyColumns = `id, name, domain, careers_url, ats_type, ats_identifier, crawl_priority,
	is_active, last_crawled_at, last_maintenance_at, crawl_attempts, not_found_streak,
	source, country, industry, employee_count, funding_stage, created_at, updated_at`

// SaveCompany inserts a new company row
func (c *CompanyStorage) SaveCompany(ctx context.Context, company *models.Company) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if company.CreatedAt.IsZero() {
		company.CreatedAt = time.Now()
	}
	if company.UpdatedAt.IsZero() {
		company.UpdatedAt = company.CreatedAt
	}
	if company.ATSType == "" {
		company.ATSType = models.ATSUnknown
	}

	query := `
		INSERT INTO companies (` + companyColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`
	_, err := c.db.db.ExecContext(ctx, query,
		company.ID,
		company.Name,
		company.Domain,
		company.CareersURL,
		string(company.ATSType),
		company.ATSIdentifier,
		company.CrawlPriority,
		company.IsActive,
		unixOrNil(company.LastCrawledAt),
		unixOrNil(company.LastMaintenanceAt),
		company.CrawlAttempts,
		company.NotFoundStreak,
		company.Source,
		company.Country,
		company.Industry,
		company.EmployeeCount,
		company.FundingStage,
		company.CreatedAt.Unix(),
		company.UpdatedAt.Unix(),
	)
	if err != nil {
		return fmt.Errorf("failed to save company: %w", err)
	}
	return nil
}

// UpdateCompany rewrites every mutable field of an existing row
func (c *CompanyStorage) UpdateCompany(ctx context.Context, company *models.Company) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	company.UpdatedAt = time.Now()

	query := `
		UPDATE companies SET
			name = ?, domain = ?, careers_url = ?, ats_type = ?, ats_identifier = ?,
			crawl_priority = ?, is_active = ?, last_crawled_at = ?, last_maintenance_at = ?,
			crawl_attempts = ?, not_found_streak = ?, source = ?, country = ?, industry = ?,
			employee_count = ?, funding_stage = ?, updated_at = ?
		WHERE id = ?
	`
	result, err := c.db.db.ExecContext(ctx, query,
		company.Name,
		company.Domain,
		company.CareersURL,
		string(company.ATSType),
		company.ATSIdentifier,
		company.CrawlPriority,
		company.IsActive,
		unixOrNil(company.LastCrawledAt),
		unixOrNil(company.LastMaintenanceAt),
		company.CrawlAttempts,
		company.NotFoundStreak,
		company.Source,
		company.Country,
		company.Industry,
		company.EmployeeCount,
		company.FundingStage,
		company.UpdatedAt.Unix(),
		company.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update company: %w", err)
	}
	rows, _ := result.RowsAffected()
	if rows == 0 {
		return models.NewError(models.KindNotFound, fmt.Sprintf("company %s not found", company.ID))
	}
	return nil
}

// GetCompany retrieves one company by id, nil when absent
func (c *CompanyStorage) GetCompany(ctx context.Context, id string) (*models.Company, error) {
	query := `SELECT ` + companyColumns + ` FROM companies WHERE id = ?`
	return c.scanOne(c.db.db.QueryRowContext(ctx, query, id))
}

// GetCompanyByDomain retrieves one company by normalized domain, nil when absent
func (c *CompanyStorage) GetCompanyByDomain(ctx context.Context, domain string) (*models.Company, error) {
	query := `SELECT ` + companyColumns + ` FROM companies WHERE domain = ?`
	return c.scanOne(c.db.db.QueryRowContext(ctx, query, domain))
}

// ListCompanies lists companies with pagination
func (c *CompanyStorage) ListCompanies(ctx context.Context, opts *interfaces.ListOptions) ([]*models.Company, error) {
	limit, offset := 50, 0
	if opts != nil {
		if opts.Limit > 0 {
			limit = opts.Limit
		}
		if opts.Offset > 0 {
			offset = opts.Offset
		}
	}
	query := `SELECT ` + companyColumns + ` FROM companies ORDER BY name LIMIT ? OFFSET ?`
	return c.scanMany(ctx, query, limit, offset)
}

// ListActiveCompanies lists all active companies
func (c *CompanyStorage) ListActiveCompanies(ctx context.Context) ([]*models.Company, error) {
	query := `SELECT ` + companyColumns + ` FROM companies WHERE is_active = 1 ORDER BY crawl_priority DESC, name`
	return c.scanMany(ctx, query)
}

// ListCompaniesByATS lists active companies on one ATS, crawl priority first
func (c *CompanyStorage) ListCompaniesByATS(ctx context.Context, ats models.ATSType) ([]*models.Company, error) {
	query := `SELECT ` + companyColumns + ` FROM companies WHERE ats_type = ? AND is_active = 1 ORDER BY crawl_priority DESC, name`
	return c.scanMany(ctx, query, string(ats))
}

// ListCompaniesDueForMaintenance lists active companies unchecked for at
// least windowDays, longest-unchecked first.
func (c *CompanyStorage) ListCompaniesDueForMaintenance(ctx context.Context, windowDays int, limit int) ([]*models.Company, error) {
	cutoff := time.Now().AddDate(0, 0, -windowDays).Unix()
	if limit <= 0 {
		limit = 50
	}
	query := `
		SELECT ` + companyColumns + ` FROM companies
		WHERE is_active = 1 AND (last_maintenance_at IS NULL OR last_maintenance_at <= ?)
		ORDER BY last_maintenance_at ASC NULLS FIRST
		LIMIT ?
	`
	return c.scanMany(ctx, query, cutoff, limit)
}

// CountCompanies returns the total company count
func (c *CompanyStorage) CountCompanies(ctx context.Context) (int, error) {
	var count int
	err := c.db.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM companies`).Scan(&count)
	return count, err
}

// DeactivateCompany marks a company inactive
func (c *CompanyStorage) DeactivateCompany(ctx context.Context, id string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	_, err := c.db.db.ExecContext(ctx,
		`UPDATE companies SET is_active = 0, updated_at = ? WHERE id = ?`,
		time.Now().Unix(), id)
	return err
}

func (c *CompanyStorage) scanOne(row *sql.Row) (*models.Company, error) {
	company, err := scanCompany(row.Scan)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return company, err
}

func (c *CompanyStorage) scanMany(ctx context.Context, query string, args ...interface{}) ([]*models.Company, error) {
	rows, err := c.db.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query companies: %w", err)
	}
	defer rows.Close()

	var companies []*models.Company
	for rows.Next() {
		company, err := scanCompany(rows.Scan)
		if err != nil {
			return nil, err
		}
		companies = append(companies, company)
	}
	return companies, rows.Err()
}

// scanCompany maps one row via the provided scan function
func scanCompany(scan func(...interface{}) error) (*models.Company, error) {
	var company models.Company
	var atsType string
	var lastCrawled, lastMaintenance sql.NullInt64
	var createdAt, updatedAt int64

	err := scan(
		&company.ID,
		&company.Name,
		&company.Domain,
		&company.CareersURL,
		&atsType,
		&company.ATSIdentifier,
		&company.CrawlPriority,
		&company.IsActive,
		&lastCrawled,
		&lastMaintenance,
		&company.CrawlAttempts,
		&company.NotFoundStreak,
		&company.Source,
		&company.Country,
		&company.Industry,
		&company.EmployeeCount,
		&company.FundingStage,
		&createdAt,
		&updatedAt,
	)
	if err != nil {
		return nil, err
	}

	company.ATSType = models.ATSType(atsType)
	company.LastCrawledAt = timeFromNull(lastCrawled)
	company.LastMaintenanceAt = timeFromNull(lastMaintenance)
	company.CreatedAt = time.Unix(createdAt, 0)
	company.UpdatedAt = time.Unix(updatedAt, 0)
	return &company, nil
}
