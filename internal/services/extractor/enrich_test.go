package extractor

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ternarybob/arbor"
	"github.com/ternarybob/hunt/internal/models"
)

// memRawJobStore is an in-memory RawJobStorage for enrichment tests.
type memRawJobStore struct {
	mu   sync.Mutex
	jobs map[string]*models.RawJob
}

func newMemRawJobStore() *memRawJobStore {
	return &memRawJobStore{jobs: make(map[string]*models.RawJob)}
}

func (m *memRawJobStore) UpsertRawJob(ctx context.Context, job *models.RawJob) (*models.RawJob, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.jobs[job.ID] = job
	return job, nil
}

func (m *memRawJobStore) GetRawJob(ctx context.Context, id string) (*models.RawJob, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.jobs[id], nil
}

func (m *memRawJobStore) GetRawJobBySourceURL(ctx context.Context, companyID, sourceURL string) (*models.RawJob, error) {
	return nil, nil
}

func (m *memRawJobStore) ListRawJobsForCompany(ctx context.Context, companyID string) ([]*models.RawJob, error) {
	return nil, nil
}

func (m *memRawJobStore) ListRawJobsNeedingEnrichment(ctx context.Context, skipWindowMinutes int, limit int) ([]*models.RawJob, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	now := time.Now()
	window := time.Duration(skipWindowMinutes) * time.Minute
	var out []*models.RawJob
	for _, job := range m.jobs {
		if job.NeedsEnrichment(window, now) {
			out = append(out, job)
		}
		if limit > 0 && len(out) >= limit {
			break
		}
	}
	return out, nil
}

func (m *memRawJobStore) MarkEnrichFailed(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if job, ok := m.jobs[id]; ok {
		now := time.Now()
		job.EnrichFailedAt = &now
	}
	return nil
}

func (m *memRawJobStore) ResetEnrichFailures(ctx context.Context) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	cleared := 0
	for _, job := range m.jobs {
		if job.DescriptionRaw == "" && job.EnrichFailedAt != nil {
			job.EnrichFailedAt = nil
			cleared++
		}
	}
	return cleared, nil
}

func (m *memRawJobStore) SetCanonicalJobID(ctx context.Context, rawJobID, canonicalJobID string) error {
	return nil
}

func TestEnricher_FillsDescription(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/robots.txt" {
			http.NotFound(w, r)
			return
		}
		w.Write([]byte(`<html><body><main>
			<h1>Data Engineer</h1>
			<p>You will build and operate batch and streaming pipelines across our platform.</p>
		</main></body></html>`))
	}))
	defer server.Close()

	store := newMemRawJobStore()
	store.jobs["rj1"] = &models.RawJob{
		ID:        "rj1",
		CompanyID: "cmp_1",
		SourceURL: server.URL + "/job/de-1",
		TitleRaw:  "Data Engineer",
	}

	enricher := NewEnricher(testFetcher(), store, testExtractorConfig(), arbor.NewLogger())
	stats, err := enricher.Run(context.Background(), 10, nil)

	require.NoError(t, err)
	assert.Equal(t, 1, stats.Attempted)
	assert.Equal(t, 1, stats.Enriched)
	assert.Equal(t, 0, stats.Failed)

	job, _ := store.GetRawJob(context.Background(), "rj1")
	assert.Contains(t, job.DescriptionRaw, "streaming pipelines")
}

func TestEnricher_FailureSetsSkipWindow(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	}))
	defer server.Close()

	store := newMemRawJobStore()
	store.jobs["rj1"] = &models.RawJob{
		ID:        "rj1",
		CompanyID: "cmp_1",
		SourceURL: server.URL + "/job/gone",
		TitleRaw:  "Gone Job",
	}

	enricher := NewEnricher(testFetcher(), store, testExtractorConfig(), arbor.NewLogger())
	stats, err := enricher.Run(context.Background(), 10, nil)

	require.NoError(t, err)
	assert.Equal(t, 1, stats.Failed)

	job, _ := store.GetRawJob(context.Background(), "rj1")
	require.NotNil(t, job.EnrichFailedAt)

	// Within the same run window the job is not retried
	stats, err = enricher.Run(context.Background(), 10, nil)
	require.NoError(t, err)
	assert.Equal(t, 0, stats.Attempted)
}

func TestEnricher_NewFullRunReattemptsFailedJobs(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	}))
	defer server.Close()

	store := newMemRawJobStore()
	store.jobs["rj1"] = &models.RawJob{
		ID:        "rj1",
		CompanyID: "cmp_1",
		SourceURL: server.URL + "/job/flaky",
		TitleRaw:  "Flaky Job",
	}

	enricher := NewEnricher(testFetcher(), store, testExtractorConfig(), arbor.NewLogger())

	// First run fails the job and stamps its skip window
	stats, err := enricher.Run(context.Background(), 10, nil)
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Failed)

	// A new full pipeline run clears the stamps before enrichment
	cleared, err := store.ResetEnrichFailures(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, cleared)

	job, _ := store.GetRawJob(context.Background(), "rj1")
	assert.Nil(t, job.EnrichFailedAt)

	// The fresh run re-attempts the job despite the recent failure
	stats, err = enricher.Run(context.Background(), 10, nil)
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Attempted)
}

func TestEnricher_SkipsJobsWithDescriptions(t *testing.T) {
	store := newMemRawJobStore()
	store.jobs["rj1"] = &models.RawJob{
		ID:             "rj1",
		CompanyID:      "cmp_1",
		SourceURL:      "https://acme.test/job/1",
		TitleRaw:       "Filled Job",
		DescriptionRaw: "already enriched",
	}

	enricher := NewEnricher(testFetcher(), store, testExtractorConfig(), arbor.NewLogger())
	stats, err := enricher.Run(context.Background(), 10, nil)

	require.NoError(t, err)
	assert.Equal(t, 0, stats.Attempted)
}
