package maintenance

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ternarybob/arbor"
	"github.com/ternarybob/hunt/internal/common"
	"github.com/ternarybob/hunt/internal/interfaces"
	"github.com/ternarybob/hunt/internal/models"
	"github.com/ternarybob/hunt/internal/services/extractor"
)

// scriptedExtractor returns a fixed listing or error per call.
type scriptedExtractor struct {
	ats     models.ATSType
	listing []*models.RawJob
	err     error
}

func (s *scriptedExtractor) ATSType() models.ATSType { return s.ats }
func (s *scriptedExtractor) List(ctx context.Context, company *models.Company) ([]*models.RawJob, error) {
	return s.listing, s.err
}

// memCompanies tracks updates.
type memCompanies struct {
	mu        sync.Mutex
	companies map[string]*models.Company
}

func (m *memCompanies) SaveCompany(ctx context.Context, c *models.Company) error { return nil }
func (m *memCompanies) GetCompany(ctx context.Context, id string) (*models.Company, error) {
	return m.companies[id], nil
}
func (m *memCompanies) GetCompanyByDomain(ctx context.Context, domain string) (*models.Company, error) {
	return nil, nil
}
func (m *memCompanies) UpdateCompany(ctx context.Context, c *models.Company) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.companies[c.ID] = c
	return nil
}
func (m *memCompanies) ListCompanies(ctx context.Context, opts *interfaces.ListOptions) ([]*models.Company, error) {
	return nil, nil
}
func (m *memCompanies) ListActiveCompanies(ctx context.Context) ([]*models.Company, error) {
	return nil, nil
}
func (m *memCompanies) ListCompaniesByATS(ctx context.Context, ats models.ATSType) ([]*models.Company, error) {
	return nil, nil
}
func (m *memCompanies) ListCompaniesDueForMaintenance(ctx context.Context, windowDays, limit int) ([]*models.Company, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var due []*models.Company
	for _, c := range m.companies {
		if c.IsActive {
			due = append(due, c)
		}
	}
	return due, nil
}
func (m *memCompanies) CountCompanies(ctx context.Context) (int, error) { return 0, nil }
func (m *memCompanies) DeactivateCompany(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if c, ok := m.companies[id]; ok {
		c.IsActive = false
	}
	return nil
}

// memJobs tracks verify/delist calls.
type memJobs struct {
	mu   sync.Mutex
	jobs map[string]*models.Job
}

func (m *memJobs) UpsertJob(ctx context.Context, job *models.Job) (*models.Job, error) {
	return job, nil
}
func (m *memJobs) GetJob(ctx context.Context, id string) (*models.Job, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.jobs[id], nil
}
func (m *memJobs) GetJobBySourceURL(ctx context.Context, companyID, sourceURL string) (*models.Job, error) {
	return nil, nil
}
func (m *memJobs) ListJobs(ctx context.Context, opts *interfaces.JobListOptions) ([]*models.Job, error) {
	return nil, nil
}
func (m *memJobs) CountJobs(ctx context.Context, opts *interfaces.JobListOptions) (int, error) {
	return 0, nil
}
func (m *memJobs) ListActiveJobsForCompany(ctx context.Context, companyID string) ([]*models.Job, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*models.Job
	for _, job := range m.jobs {
		if job.CompanyID == companyID && job.IsActive {
			out = append(out, job)
		}
	}
	return out, nil
}
func (m *memJobs) ListJobsMissingEmbedding(ctx context.Context, limit int) ([]*models.Job, error) {
	return nil, nil
}
func (m *memJobs) SetEmbedding(ctx context.Context, id string, embedding []float32) error {
	return nil
}
func (m *memJobs) DelistJob(ctx context.Context, id string, reason models.DelistReason) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if job, ok := m.jobs[id]; ok {
		job.Delist(reason, time.Now())
	}
	return nil
}
func (m *memJobs) MarkVerified(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if job, ok := m.jobs[id]; ok {
		now := time.Now()
		job.LastVerifiedAt = &now
	}
	return nil
}
func (m *memJobs) CountActiveJobs(ctx context.Context) (int, error) { return 0, nil }
func (m *memJobs) TopKByEmbedding(ctx context.Context, query []float32, k int, minSimilarity float64) ([]*models.Job, error) {
	return nil, nil
}

func setup(listing []*models.RawJob, extractErr error) (*Service, *memCompanies, *memJobs) {
	companies := &memCompanies{companies: map[string]*models.Company{
		"cmp_1": {ID: "cmp_1", Name: "Acme", ATSType: models.ATSGreenhouse, ATSIdentifier: "acme", IsActive: true},
	}}
	jobs := &memJobs{jobs: map[string]*models.Job{
		"job_kept": {ID: "job_kept", CompanyID: "cmp_1", SourceURL: "https://acme.test/kept", IsActive: true},
		"job_gone": {ID: "job_gone", CompanyID: "cmp_1", SourceURL: "https://acme.test/gone", IsActive: true},
	}}

	registry := extractor.NewRegistry()
	registry.Register(&scriptedExtractor{ats: models.ATSGreenhouse, listing: listing, err: extractErr})

	cfg := common.NewDefaultConfig().Maintenance
	svc := NewService(&cfg, companies, jobs, registry, nil, arbor.NewLogger())
	return svc, companies, jobs
}

func TestRun_VerifiesPresentAndDelistsAbsent(t *testing.T) {
	listing := []*models.RawJob{
		{SourceURL: "https://acme.test/kept"},
	}
	svc, companies, jobs := setup(listing, nil)

	stats, err := svc.Run(context.Background(), nil)
	require.NoError(t, err)
	assert.Equal(t, 1, stats.CompaniesChecked)
	assert.Equal(t, 1, stats.JobsVerified)
	assert.Equal(t, 1, stats.JobsDelisted)

	kept, _ := jobs.GetJob(context.Background(), "job_kept")
	assert.True(t, kept.IsActive)
	assert.NotNil(t, kept.LastVerifiedAt)

	gone, _ := jobs.GetJob(context.Background(), "job_gone")
	assert.False(t, gone.IsActive)
	assert.NotNil(t, gone.DelistedAt)
	assert.Equal(t, models.DelistRemovedFromATS, gone.DelistReason)

	company, _ := companies.GetCompany(context.Background(), "cmp_1")
	assert.NotNil(t, company.LastMaintenanceAt)
	assert.Equal(t, 0, company.NotFoundStreak)
}

func TestRun_TwoConsecutiveNotFoundDeactivates(t *testing.T) {
	svc, companies, jobs := setup(nil, models.NewError(models.KindNotFound, "careers page gone"))

	// First run: streak 1, company still active
	stats, err := svc.Run(context.Background(), nil)
	require.NoError(t, err)
	assert.Equal(t, 0, stats.CompaniesDeactivated)

	company, _ := companies.GetCompany(context.Background(), "cmp_1")
	assert.True(t, company.IsActive)
	assert.Equal(t, 1, company.NotFoundStreak)

	// Second run: deactivated, jobs delisted
	stats, err = svc.Run(context.Background(), nil)
	require.NoError(t, err)
	assert.Equal(t, 1, stats.CompaniesDeactivated)
	assert.Equal(t, 2, stats.JobsDelisted)

	company, _ = companies.GetCompany(context.Background(), "cmp_1")
	assert.False(t, company.IsActive)

	job, _ := jobs.GetJob(context.Background(), "job_kept")
	assert.False(t, job.IsActive)
	assert.Equal(t, models.DelistCompanyInactive, job.DelistReason)
}

func TestRun_RecoveredListingResetsStreak(t *testing.T) {
	svc, companies, _ := setup(nil, models.NewError(models.KindNotFound, "gone"))

	_, err := svc.Run(context.Background(), nil)
	require.NoError(t, err)

	// The page comes back before the second run
	registry := extractor.NewRegistry()
	registry.Register(&scriptedExtractor{ats: models.ATSGreenhouse, listing: []*models.RawJob{
		{SourceURL: "https://acme.test/kept"},
		{SourceURL: "https://acme.test/gone"},
	}})
	svc.extractors = registry

	_, err = svc.Run(context.Background(), nil)
	require.NoError(t, err)

	company, _ := companies.GetCompany(context.Background(), "cmp_1")
	assert.True(t, company.IsActive)
	assert.Equal(t, 0, company.NotFoundStreak)
}

func TestRun_TransportErrorDoesNotDelist(t *testing.T) {
	svc, companies, jobs := setup(nil, models.NewError(models.KindTransport, "timeout"))

	stats, err := svc.Run(context.Background(), nil)
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Errors)
	assert.Equal(t, 0, stats.JobsDelisted)

	company, _ := companies.GetCompany(context.Background(), "cmp_1")
	assert.True(t, company.IsActive)
	assert.Equal(t, 0, company.NotFoundStreak)

	job, _ := jobs.GetJob(context.Background(), "job_kept")
	assert.True(t, job.IsActive)
}
