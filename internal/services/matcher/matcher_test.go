package matcher

import (
	"context"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ternarybob/arbor"
	"github.com/ternarybob/hunt/internal/common"
	"github.com/ternarybob/hunt/internal/interfaces"
	"github.com/ternarybob/hunt/internal/models"
)

// memJobStore is an in-memory JobStorage with a brute-force TopKByEmbedding.
type memJobStore struct {
	mu   sync.Mutex
	jobs map[string]*models.Job
}

func newMemJobStore() *memJobStore { return &memJobStore{jobs: make(map[string]*models.Job)} }

func (m *memJobStore) add(job *models.Job) { m.jobs[job.ID] = job }

func (m *memJobStore) UpsertJob(ctx context.Context, job *models.Job) (*models.Job, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.jobs[job.ID] = job
	return job, nil
}
func (m *memJobStore) GetJob(ctx context.Context, id string) (*models.Job, error) {
	return m.jobs[id], nil
}
func (m *memJobStore) GetJobBySourceURL(ctx context.Context, companyID, sourceURL string) (*models.Job, error) {
	return nil, nil
}
func (m *memJobStore) ListJobs(ctx context.Context, opts *interfaces.JobListOptions) ([]*models.Job, error) {
	return nil, nil
}
func (m *memJobStore) CountJobs(ctx context.Context, opts *interfaces.JobListOptions) (int, error) {
	return 0, nil
}
func (m *memJobStore) ListActiveJobsForCompany(ctx context.Context, companyID string) ([]*models.Job, error) {
	return nil, nil
}
func (m *memJobStore) ListJobsMissingEmbedding(ctx context.Context, limit int) ([]*models.Job, error) {
	return nil, nil
}
func (m *memJobStore) SetEmbedding(ctx context.Context, id string, embedding []float32) error {
	return nil
}
func (m *memJobStore) DelistJob(ctx context.Context, id string, reason models.DelistReason) error {
	return nil
}
func (m *memJobStore) MarkVerified(ctx context.Context, id string) error { return nil }

func (m *memJobStore) CountActiveJobs(ctx context.Context) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	count := 0
	for _, job := range m.jobs {
		if job.IsActive {
			count++
		}
	}
	return count, nil
}

func (m *memJobStore) TopKByEmbedding(ctx context.Context, query []float32, k int, minSimilarity float64) ([]*models.Job, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	type scored struct {
		job *models.Job
		sim float64
	}
	var candidates []scored
	for _, job := range m.jobs {
		if !job.IsActive || !job.HasEmbedding() {
			continue
		}
		sim := CosineSimilarity(query, job.Embedding)
		if sim >= minSimilarity {
			candidates = append(candidates, scored{job, sim})
		}
	}
	sort.Slice(candidates, func(i, j int) bool { return candidates[i].sim > candidates[j].sim })
	if len(candidates) > k {
		candidates = candidates[:k]
	}
	out := make([]*models.Job, len(candidates))
	for i, c := range candidates {
		out[i] = c.job
	}
	return out, nil
}

// memCandidateStore is a minimal CandidateStorage.
type memCandidateStore struct {
	mu         sync.Mutex
	candidates map[string]*models.CandidateProfile
	matchedAt  map[string]time.Time
}

func newMemCandidateStore() *memCandidateStore {
	return &memCandidateStore{
		candidates: make(map[string]*models.CandidateProfile),
		matchedAt:  make(map[string]time.Time),
	}
}

func (m *memCandidateStore) SaveCandidate(ctx context.Context, c *models.CandidateProfile) error {
	m.candidates[c.ID] = c
	return nil
}
func (m *memCandidateStore) GetCandidate(ctx context.Context, id string) (*models.CandidateProfile, error) {
	return m.candidates[id], nil
}
func (m *memCandidateStore) GetCandidateByEmail(ctx context.Context, email string) (*models.CandidateProfile, error) {
	return nil, nil
}
func (m *memCandidateStore) UpdateCandidate(ctx context.Context, c *models.CandidateProfile) error {
	return nil
}
func (m *memCandidateStore) ListActiveCandidates(ctx context.Context) ([]*models.CandidateProfile, error) {
	var out []*models.CandidateProfile
	for _, c := range m.candidates {
		if c.IsActive {
			out = append(out, c)
		}
	}
	return out, nil
}
func (m *memCandidateStore) SetCandidateEmbedding(ctx context.Context, id string, embedding []float32) error {
	return nil
}
func (m *memCandidateStore) MarkMatched(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.matchedAt[id] = time.Now()
	return nil
}

// memMatchStore records upserts keyed by (candidate, job).
type memMatchStore struct {
	mu      sync.Mutex
	matches map[string]*models.Match
}

func newMemMatchStore() *memMatchStore { return &memMatchStore{matches: make(map[string]*models.Match)} }

func (m *memMatchStore) UpsertMatch(ctx context.Context, match *models.Match) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	key := match.CandidateID + "|" + match.JobID
	if existing, ok := m.matches[key]; ok {
		// Newer score overwrites; usage timestamps preserved
		existing.Score = match.Score
		existing.HardMatch = match.HardMatch
		existing.Reasons = match.Reasons
		existing.UpdatedAt = match.UpdatedAt
		return nil
	}
	m.matches[key] = match
	return nil
}
func (m *memMatchStore) GetMatch(ctx context.Context, candidateID, jobID string) (*models.Match, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.matches[candidateID+"|"+jobID], nil
}
func (m *memMatchStore) ListMatchesForCandidate(ctx context.Context, candidateID string, limit int) ([]*models.Match, error) {
	return nil, nil
}
func (m *memMatchStore) RecordShown(ctx context.Context, candidateID, jobID string) error    { return nil }
func (m *memMatchStore) RecordClicked(ctx context.Context, candidateID, jobID string) error  { return nil }
func (m *memMatchStore) RecordApplied(ctx context.Context, candidateID, jobID string) error  { return nil }
func (m *memMatchStore) RecordDismissed(ctx context.Context, candidateID, jobID string) error { return nil }

// memCompanyStore resolves company names.
type memCompanyStore struct {
	companies map[string]*models.Company
}

func (m *memCompanyStore) SaveCompany(ctx context.Context, c *models.Company) error   { return nil }
func (m *memCompanyStore) UpdateCompany(ctx context.Context, c *models.Company) error { return nil }
func (m *memCompanyStore) GetCompany(ctx context.Context, id string) (*models.Company, error) {
	return m.companies[id], nil
}
func (m *memCompanyStore) GetCompanyByDomain(ctx context.Context, domain string) (*models.Company, error) {
	return nil, nil
}
func (m *memCompanyStore) ListCompanies(ctx context.Context, opts *interfaces.ListOptions) ([]*models.Company, error) {
	return nil, nil
}
func (m *memCompanyStore) ListActiveCompanies(ctx context.Context) ([]*models.Company, error) {
	return nil, nil
}
func (m *memCompanyStore) ListCompaniesByATS(ctx context.Context, ats models.ATSType) ([]*models.Company, error) {
	return nil, nil
}
func (m *memCompanyStore) ListCompaniesDueForMaintenance(ctx context.Context, windowDays, limit int) ([]*models.Company, error) {
	return nil, nil
}
func (m *memCompanyStore) CountCompanies(ctx context.Context) (int, error)  { return 0, nil }
func (m *memCompanyStore) DeactivateCompany(ctx context.Context, id string) error { return nil }

// unitVector builds a D=384 embedding pointing mostly along one axis, giving
// controllable cosine similarity between test vectors.
func unitVector(axis int, spread float32) []float32 {
	v := make([]float32, models.EmbeddingDimension)
	v[axis] = 1
	v[(axis+1)%models.EmbeddingDimension] = spread
	return v
}

func float64Ptr(v float64) *float64 { return &v }

func testJob(id string, seniority models.Seniority, family models.RoleFamily, embedding []float32) *models.Job {
	return &models.Job{
		ID:             id,
		CompanyID:      "cmp_1",
		SourceURL:      "https://acme.test/" + id,
		Title:          "Job " + id,
		RoleFamily:     family,
		Seniority:      seniority,
		LocationType:   models.LocationRemote,
		Skills:         []string{"go", "kubernetes"},
		EmploymentType: models.EmploymentFullTime,
		FreshnessScore: 0.8,
		Embedding:      embedding,
		IsActive:       true,
	}
}

func testMatcher(jobs *memJobStore, matches *memMatchStore, candidates *memCandidateStore) *Service {
	cfg := common.NewDefaultConfig().Matcher
	companies := &memCompanyStore{companies: map[string]*models.Company{
		"cmp_1": {ID: "cmp_1", Name: "Acme"},
	}}
	return NewService(&cfg, jobs, candidates, matches, companies, nil, arbor.NewLogger())
}

func testCandidate() *models.CandidateProfile {
	return &models.CandidateProfile{
		ID:           "cand_1",
		Email:        "a@b.test",
		RoleFamilies: []models.RoleFamily{models.RoleSoftwareEngineering},
		Seniority:    models.SenioritySenior,
		Skills:       []string{"go"},
		Embedding:    unitVector(0, 0.1),
		IsActive:     true,
	}
}

func TestMatch_HardFilterDropsOutOfToleranceSeniority(t *testing.T) {
	jobs := newMemJobStore()
	// Senior SE job, very similar embedding
	jobs.add(testJob("job_senior", models.SenioritySenior, models.RoleSoftwareEngineering, unitVector(0, 0.1)))
	// Junior SE job, also similar embedding but two steps away from senior
	jobs.add(testJob("job_junior", models.SeniorityJunior, models.RoleSoftwareEngineering, unitVector(0, 0.2)))

	matches := newMemMatchStore()
	candidates := newMemCandidateStore()
	svc := testMatcher(jobs, matches, candidates)

	outcome, err := svc.Match(context.Background(), testCandidate(), Options{})
	require.NoError(t, err)
	require.Nil(t, outcome.NoMatch)
	require.Len(t, outcome.Results, 1)

	result := outcome.Results[0]
	assert.Equal(t, "job_senior", result.Job.ID)
	assert.True(t, result.HardMatch)
	assert.GreaterOrEqual(t, result.Score, 0.0)
	assert.LessOrEqual(t, result.Score, 1.0)

	// Persisted exactly one (candidate, job) pair
	persisted, _ := matches.GetMatch(context.Background(), "cand_1", "job_senior")
	require.NotNil(t, persisted)
	junior, _ := matches.GetMatch(context.Background(), "cand_1", "job_junior")
	assert.Nil(t, junior)
}

func TestMatch_SoftInclusiveRetainsFailedHardFilters(t *testing.T) {
	jobs := newMemJobStore()
	jobs.add(testJob("job_junior", models.SeniorityJunior, models.RoleSoftwareEngineering, unitVector(0, 0.1)))

	svc := testMatcher(jobs, newMemMatchStore(), newMemCandidateStore())

	// Default: dropped
	outcome, err := svc.Match(context.Background(), testCandidate(), Options{})
	require.NoError(t, err)
	require.NotNil(t, outcome.NoMatch)
	assert.Equal(t, models.NoMatchAllFilteredHard, outcome.NoMatch.Reason)

	// soft_inclusive: retained with hard_match=false
	outcome, err = svc.Match(context.Background(), testCandidate(), Options{SoftInclusive: true})
	require.NoError(t, err)
	require.Len(t, outcome.Results, 1)
	assert.False(t, outcome.Results[0].HardMatch)
}

func TestMatch_EmptyCatalogExplanation(t *testing.T) {
	svc := testMatcher(newMemJobStore(), newMemMatchStore(), newMemCandidateStore())

	outcome, err := svc.Match(context.Background(), testCandidate(), Options{})
	require.NoError(t, err)
	require.NotNil(t, outcome.NoMatch)
	assert.Equal(t, models.NoMatchEmptyCatalog, outcome.NoMatch.Reason)
	assert.Equal(t, 0, outcome.NoMatch.CatalogSize)
}

func TestMatch_MissingEmbeddingIsNoVectorCandidates(t *testing.T) {
	jobs := newMemJobStore()
	jobs.add(testJob("job_1", models.SenioritySenior, models.RoleSoftwareEngineering, unitVector(0, 0.1)))

	svc := testMatcher(jobs, newMemMatchStore(), newMemCandidateStore())
	candidate := testCandidate()
	candidate.Embedding = nil

	outcome, err := svc.Match(context.Background(), candidate, Options{})
	require.NoError(t, err)
	require.NotNil(t, outcome.NoMatch)
	assert.Equal(t, models.NoMatchNoVectorCandidates, outcome.NoMatch.Reason)
}

func TestMatch_DissimilarJobsFilteredByVectorFloor(t *testing.T) {
	jobs := newMemJobStore()
	// Orthogonal embedding: cosine similarity ~0 < 0.5 floor
	jobs.add(testJob("job_far", models.SenioritySenior, models.RoleSoftwareEngineering, unitVector(100, 0.1)))

	svc := testMatcher(jobs, newMemMatchStore(), newMemCandidateStore())
	outcome, err := svc.Match(context.Background(), testCandidate(), Options{})
	require.NoError(t, err)
	require.NotNil(t, outcome.NoMatch)
	assert.Equal(t, models.NoMatchNoVectorCandidates, outcome.NoMatch.Reason)
}

func TestMatch_ExclusionFilter(t *testing.T) {
	jobs := newMemJobStore()
	jobs.add(testJob("job_1", models.SenioritySenior, models.RoleSoftwareEngineering, unitVector(0, 0.1)))

	svc := testMatcher(jobs, newMemMatchStore(), newMemCandidateStore())
	candidate := testCandidate()
	candidate.Exclusions = []string{"Acme"}

	outcome, err := svc.Match(context.Background(), candidate, Options{})
	require.NoError(t, err)
	require.NotNil(t, outcome.NoMatch)
	assert.Equal(t, models.NoMatchAllFilteredHard, outcome.NoMatch.Reason)
}

func TestMatch_SalaryFloor(t *testing.T) {
	jobs := newMemJobStore()
	low := testJob("job_low", models.SenioritySenior, models.RoleSoftwareEngineering, unitVector(0, 0.1))
	low.MinSalary = float64Ptr(50000)
	low.MaxSalary = float64Ptr(70000)
	jobs.add(low)

	svc := testMatcher(jobs, newMemMatchStore(), newMemCandidateStore())
	candidate := testCandidate()
	candidate.MinSalary = float64Ptr(100000)

	outcome, err := svc.Match(context.Background(), candidate, Options{})
	require.NoError(t, err)
	require.NotNil(t, outcome.NoMatch)
	assert.Equal(t, models.NoMatchAllFilteredHard, outcome.NoMatch.Reason)
}

func TestMatch_NoRoleFamilyPreferenceScoresNeutral(t *testing.T) {
	jobs := newMemJobStore()
	jobs.add(testJob("job_1", models.SenioritySenior, models.RoleDesign, unitVector(0, 0.1)))

	svc := testMatcher(jobs, newMemMatchStore(), newMemCandidateStore())
	candidate := testCandidate()
	candidate.RoleFamilies = nil // no preference: no filter, neutral 0.5 signal

	outcome, err := svc.Match(context.Background(), candidate, Options{})
	require.NoError(t, err)
	require.Len(t, outcome.Results, 1)

	var roleDim *models.MatchReasonDimension
	for i := range outcome.Results[0].Reasons.Dimensions {
		if outcome.Results[0].Reasons.Dimensions[i].Dimension == "role_family" {
			roleDim = &outcome.Results[0].Reasons.Dimensions[i]
		}
	}
	require.NotNil(t, roleDim)
	assert.Equal(t, 0.5, roleDim.Signal)
}

func TestMatch_ReasonsOmitZeroContributions(t *testing.T) {
	jobs := newMemJobStore()
	job := testJob("job_1", models.SenioritySenior, models.RoleSoftwareEngineering, unitVector(0, 0.1))
	job.Skills = []string{"cobol"} // zero overlap with candidate's go
	jobs.add(job)

	svc := testMatcher(jobs, newMemMatchStore(), newMemCandidateStore())
	outcome, err := svc.Match(context.Background(), testCandidate(), Options{})
	require.NoError(t, err)
	require.Len(t, outcome.Results, 1)

	for _, dim := range outcome.Results[0].Reasons.Dimensions {
		assert.NotEqual(t, "skill_overlap", dim.Dimension, "zero-contribution dimensions must be omitted")
		assert.Greater(t, dim.Weight*dim.Signal, 0.0)
	}
}

func TestMatch_RematchOverwritesScorePreservesTimestamps(t *testing.T) {
	jobs := newMemJobStore()
	jobs.add(testJob("job_1", models.SenioritySenior, models.RoleSoftwareEngineering, unitVector(0, 0.1)))

	matches := newMemMatchStore()
	svc := testMatcher(jobs, matches, newMemCandidateStore())
	candidate := testCandidate()

	_, err := svc.Match(context.Background(), candidate, Options{})
	require.NoError(t, err)

	first, _ := matches.GetMatch(context.Background(), "cand_1", "job_1")
	require.NotNil(t, first)
	shown := time.Now()
	first.ShownAt = &shown

	_, err = svc.Match(context.Background(), candidate, Options{})
	require.NoError(t, err)

	second, _ := matches.GetMatch(context.Background(), "cand_1", "job_1")
	require.NotNil(t, second)
	assert.NotNil(t, second.ShownAt, "usage timestamps survive re-match")
}

func TestCosineSimilarity(t *testing.T) {
	a := []float32{1, 0, 0}
	assert.InDelta(t, 1.0, CosineSimilarity(a, []float32{1, 0, 0}), 1e-9)
	assert.InDelta(t, 0.0, CosineSimilarity(a, []float32{0, 1, 0}), 1e-9)
	assert.InDelta(t, -1.0, CosineSimilarity(a, []float32{-1, 0, 0}), 1e-9)
	assert.Equal(t, 0.0, CosineSimilarity(a, []float32{1, 0}))
	assert.Equal(t, 0.0, CosineSimilarity(nil, nil))
}

func TestScoreBounds(t *testing.T) {
	jobs := newMemJobStore()
	job := testJob("job_1", models.SenioritySenior, models.RoleSoftwareEngineering, unitVector(0, 0.1))
	job.MinSalary = float64Ptr(100000)
	job.MaxSalary = float64Ptr(150000)
	job.FreshnessScore = 1.0
	jobs.add(job)

	svc := testMatcher(jobs, newMemMatchStore(), newMemCandidateStore())
	candidate := testCandidate()
	candidate.MinSalary = float64Ptr(90000)
	candidate.Skills = []string{"go", "kubernetes"}

	outcome, err := svc.Match(context.Background(), candidate, Options{})
	require.NoError(t, err)
	require.Len(t, outcome.Results, 1)
	assert.GreaterOrEqual(t, outcome.Results[0].Score, 0.0)
	assert.LessOrEqual(t, outcome.Results[0].Score, 1.0)
}
