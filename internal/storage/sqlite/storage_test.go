package sqlite

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ternarybob/arbor"
	"github.com/ternarybob/hunt/internal/common"
	"github.com/ternarybob/hunt/internal/interfaces"
	"github.com/ternarybob/hunt/internal/models"
)

// testManager opens a real SQLite database in a temp dir, exercising the
// actual schema and migrations rather than mocks.
func testManager(t *testing.T) interfaces.StorageManager {
	t.Helper()
	config := &common.SQLiteConfig{
		Path:          filepath.Join(t.TempDir(), "hunt_test.db"),
		CacheSizeMB:   16,
		BusyTimeoutMS: 5000,
		WALMode:       false,
	}
	manager, err := NewManager(arbor.NewLogger(), config, nil)
	require.NoError(t, err)
	t.Cleanup(func() { manager.Close() })
	return manager
}

func testCompanyRow(id, domain string) *models.Company {
	return &models.Company{
		ID:            id,
		Name:          "Acme",
		Domain:        domain,
		ATSType:       models.ATSGreenhouse,
		ATSIdentifier: "acme",
		CrawlPriority: 50,
		IsActive:      true,
	}
}

func TestCompanyStorage_RoundTrip(t *testing.T) {
	m := testManager(t)
	ctx := context.Background()

	company := testCompanyRow("cmp_1", "acme.test")
	company.Country = "US"
	require.NoError(t, m.CompanyStorage().SaveCompany(ctx, company))

	got, err := m.CompanyStorage().GetCompany(ctx, "cmp_1")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "Acme", got.Name)
	assert.Equal(t, models.ATSGreenhouse, got.ATSType)
	assert.Equal(t, "US", got.Country)

	byDomain, err := m.CompanyStorage().GetCompanyByDomain(ctx, "acme.test")
	require.NoError(t, err)
	require.NotNil(t, byDomain)
	assert.Equal(t, "cmp_1", byDomain.ID)

	missing, err := m.CompanyStorage().GetCompany(ctx, "cmp_nope")
	require.NoError(t, err)
	assert.Nil(t, missing)
}

func TestCompanyStorage_KnownATSRequiresIdentifier(t *testing.T) {
	m := testManager(t)

	company := testCompanyRow("cmp_1", "acme.test")
	company.ATSIdentifier = "" // violates the check constraint
	err := m.CompanyStorage().SaveCompany(context.Background(), company)
	require.Error(t, err)
}

func TestCompanyStorage_DomainUniqueWhenPresent(t *testing.T) {
	m := testManager(t)
	ctx := context.Background()

	require.NoError(t, m.CompanyStorage().SaveCompany(ctx, testCompanyRow("cmp_1", "acme.test")))
	err := m.CompanyStorage().SaveCompany(ctx, testCompanyRow("cmp_2", "acme.test"))
	require.Error(t, err)

	// Empty domains do not collide
	require.NoError(t, m.CompanyStorage().SaveCompany(ctx, testCompanyRow("cmp_3", "")))
	require.NoError(t, m.CompanyStorage().SaveCompany(ctx, testCompanyRow("cmp_4", "")))
}

func TestSnapshotStorage_LatestAndRetention(t *testing.T) {
	m := testManager(t)
	ctx := context.Background()
	require.NoError(t, m.CompanyStorage().SaveCompany(ctx, testCompanyRow("cmp_1", "acme.test")))

	first := models.NewCrawlSnapshot("cmp_1", "https://acme.test/careers", "<html>v1</html>", 200, false)
	first.CrawledAt = time.Now().Add(-2 * time.Hour)
	require.NoError(t, m.CrawlSnapshotStorage().SaveSnapshot(ctx, first))

	second := models.NewCrawlSnapshot("cmp_1", "https://acme.test/careers", "<html>v2</html>", 200, false)
	require.NoError(t, m.CrawlSnapshotStorage().SaveSnapshot(ctx, second))

	latest, err := m.CrawlSnapshotStorage().GetLatestSnapshot(ctx, "cmp_1", "https://acme.test/careers")
	require.NoError(t, err)
	require.NotNil(t, latest)
	assert.Equal(t, second.HTMLHash, latest.HTMLHash)
	assert.Equal(t, models.HashContent("<html>v2</html>"), latest.HTMLHash)
}

func TestRawJobStorage_UpsertPreservesID(t *testing.T) {
	m := testManager(t)
	ctx := context.Background()
	require.NoError(t, m.CompanyStorage().SaveCompany(ctx, testCompanyRow("cmp_1", "acme.test")))

	first := &models.RawJob{
		ID:        models.NewRawJobID(),
		CompanyID: "cmp_1",
		SourceURL: "https://acme.test/jobs/1",
		TitleRaw:  "Engineer",
	}
	stored, err := m.RawJobStorage().UpsertRawJob(ctx, first)
	require.NoError(t, err)

	// Re-extraction with a new candidate id overwrites fields, keeps the row id
	second := &models.RawJob{
		ID:        models.NewRawJobID(),
		CompanyID: "cmp_1",
		SourceURL: "https://acme.test/jobs/1",
		TitleRaw:  "Senior Engineer",
	}
	restored, err := m.RawJobStorage().UpsertRawJob(ctx, second)
	require.NoError(t, err)

	assert.Equal(t, stored.ID, restored.ID)
	assert.Equal(t, "Senior Engineer", restored.TitleRaw)
}

func TestRawJobStorage_EnrichmentQueue(t *testing.T) {
	m := testManager(t)
	ctx := context.Background()
	require.NoError(t, m.CompanyStorage().SaveCompany(ctx, testCompanyRow("cmp_1", "acme.test")))

	job := &models.RawJob{
		ID:        models.NewRawJobID(),
		CompanyID: "cmp_1",
		SourceURL: "https://acme.test/jobs/1",
		TitleRaw:  "Engineer",
	}
	stored, err := m.RawJobStorage().UpsertRawJob(ctx, job)
	require.NoError(t, err)

	needing, err := m.RawJobStorage().ListRawJobsNeedingEnrichment(ctx, 60, 10)
	require.NoError(t, err)
	require.Len(t, needing, 1)

	// A failure inside the current run window hides the job
	require.NoError(t, m.RawJobStorage().MarkEnrichFailed(ctx, stored.ID))
	needing, err = m.RawJobStorage().ListRawJobsNeedingEnrichment(ctx, 60, 10)
	require.NoError(t, err)
	assert.Empty(t, needing)

	// A new full pipeline run resets the window; the job is eligible again
	cleared, err := m.RawJobStorage().ResetEnrichFailures(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, cleared)

	needing, err = m.RawJobStorage().ListRawJobsNeedingEnrichment(ctx, 60, 10)
	require.NoError(t, err)
	require.Len(t, needing, 1)
	assert.Nil(t, needing[0].EnrichFailedAt)

	// Already-cleared rows are not counted again
	cleared, err = m.RawJobStorage().ResetEnrichFailures(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, cleared)
}

func TestJobStorage_UpsertPreservesEmbeddingAndID(t *testing.T) {
	m := testManager(t)
	ctx := context.Background()
	require.NoError(t, m.CompanyStorage().SaveCompany(ctx, testCompanyRow("cmp_1", "acme.test")))

	job := &models.Job{
		ID:             models.NewJobID(),
		CompanyID:      "cmp_1",
		SourceURL:      "https://acme.test/jobs/1",
		Title:          "Engineer",
		RoleFamily:     models.RoleSoftwareEngineering,
		Skills:         []string{"go"},
		FreshnessScore: 0.5,
		IsActive:       true,
	}
	stored, err := m.JobStorage().UpsertJob(ctx, job)
	require.NoError(t, err)

	vector := make([]float32, models.EmbeddingDimension)
	vector[0] = 0.25
	require.NoError(t, m.JobStorage().SetEmbedding(ctx, stored.ID, vector))

	// Re-normalization upserts a fresh candidate row; id and embedding survive
	renormalized := &models.Job{
		ID:             models.NewJobID(),
		CompanyID:      "cmp_1",
		SourceURL:      "https://acme.test/jobs/1",
		Title:          "Senior Engineer",
		RoleFamily:     models.RoleSoftwareEngineering,
		Skills:         []string{"go", "kubernetes"},
		FreshnessScore: 0.7,
		IsActive:       true,
	}
	restored, err := m.JobStorage().UpsertJob(ctx, renormalized)
	require.NoError(t, err)

	assert.Equal(t, stored.ID, restored.ID)
	assert.Equal(t, "Senior Engineer", restored.Title)
	require.Len(t, restored.Embedding, models.EmbeddingDimension)
	assert.InDelta(t, 0.25, restored.Embedding[0], 1e-6)
}

func TestJobStorage_SalaryInvariantEnforced(t *testing.T) {
	m := testManager(t)
	ctx := context.Background()
	require.NoError(t, m.CompanyStorage().SaveCompany(ctx, testCompanyRow("cmp_1", "acme.test")))

	lo, hi := 120000.0, 80000.0
	job := &models.Job{
		ID:             models.NewJobID(),
		CompanyID:      "cmp_1",
		SourceURL:      "https://acme.test/jobs/1",
		Title:          "Engineer",
		MinSalary:      &lo,
		MaxSalary:      &hi,
		FreshnessScore: 0.5,
		IsActive:       true,
	}
	_, err := m.JobStorage().UpsertJob(ctx, job)
	require.Error(t, err) // check constraint: min <= max
}

func TestJobStorage_TopKByEmbedding(t *testing.T) {
	m := testManager(t)
	ctx := context.Background()
	require.NoError(t, m.CompanyStorage().SaveCompany(ctx, testCompanyRow("cmp_1", "acme.test")))

	makeJob := func(url string, axis int) {
		job := &models.Job{
			ID:             models.NewJobID(),
			CompanyID:      "cmp_1",
			SourceURL:      url,
			Title:          "Job",
			FreshnessScore: 0.5,
			IsActive:       true,
		}
		stored, err := m.JobStorage().UpsertJob(ctx, job)
		require.NoError(t, err)
		vector := make([]float32, models.EmbeddingDimension)
		vector[axis] = 1
		require.NoError(t, m.JobStorage().SetEmbedding(ctx, stored.ID, vector))
	}

	makeJob("https://acme.test/1", 0) // aligned with the query
	makeJob("https://acme.test/2", 5) // orthogonal

	query := make([]float32, models.EmbeddingDimension)
	query[0] = 1

	top, err := m.JobStorage().TopKByEmbedding(ctx, query, 10, 0.5)
	require.NoError(t, err)
	require.Len(t, top, 1)
	assert.Equal(t, "https://acme.test/1", top[0].SourceURL)
}

func TestJobStorage_DelistAndVerify(t *testing.T) {
	m := testManager(t)
	ctx := context.Background()
	require.NoError(t, m.CompanyStorage().SaveCompany(ctx, testCompanyRow("cmp_1", "acme.test")))

	job := &models.Job{
		ID:             models.NewJobID(),
		CompanyID:      "cmp_1",
		SourceURL:      "https://acme.test/jobs/1",
		Title:          "Engineer",
		FreshnessScore: 0.5,
		IsActive:       true,
	}
	stored, err := m.JobStorage().UpsertJob(ctx, job)
	require.NoError(t, err)

	require.NoError(t, m.JobStorage().MarkVerified(ctx, stored.ID))
	got, _ := m.JobStorage().GetJob(ctx, stored.ID)
	assert.NotNil(t, got.LastVerifiedAt)

	require.NoError(t, m.JobStorage().DelistJob(ctx, stored.ID, models.DelistRemovedFromATS))
	got, _ = m.JobStorage().GetJob(ctx, stored.ID)
	assert.False(t, got.IsActive)
	assert.Equal(t, models.DelistRemovedFromATS, got.DelistReason)
	assert.NotNil(t, got.DelistedAt)

	count, err := m.JobStorage().CountActiveJobs(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, count)
}

func TestCandidateStorage_UpsertByEmail(t *testing.T) {
	m := testManager(t)
	ctx := context.Background()

	candidate := &models.CandidateProfile{
		ID:           models.NewCandidateID(),
		Email:        "a@b.test",
		Name:         "Alex",
		RoleFamilies: []models.RoleFamily{models.RoleSoftwareEngineering},
		Seniority:    models.SenioritySenior,
		Skills:       []string{"go"},
		IsActive:     true,
	}
	require.NoError(t, m.CandidateStorage().SaveCandidate(ctx, candidate))

	// Waitlist re-sync with the same email keeps one row
	again := &models.CandidateProfile{
		ID:       models.NewCandidateID(),
		Email:    "a@b.test",
		Name:     "Alexandra",
		IsActive: true,
	}
	require.NoError(t, m.CandidateStorage().SaveCandidate(ctx, again))

	got, err := m.CandidateStorage().GetCandidateByEmail(ctx, "a@b.test")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, candidate.ID, got.ID)
	assert.Equal(t, "Alexandra", got.Name)

	active, err := m.CandidateStorage().ListActiveCandidates(ctx)
	require.NoError(t, err)
	assert.Len(t, active, 1)
}

func TestMatchStorage_UniquePairAndTimestampPreservation(t *testing.T) {
	m := testManager(t)
	ctx := context.Background()
	require.NoError(t, m.CompanyStorage().SaveCompany(ctx, testCompanyRow("cmp_1", "acme.test")))

	job := &models.Job{
		ID: models.NewJobID(), CompanyID: "cmp_1", SourceURL: "https://acme.test/1",
		Title: "Engineer", FreshnessScore: 0.5, IsActive: true,
	}
	storedJob, err := m.JobStorage().UpsertJob(ctx, job)
	require.NoError(t, err)

	candidate := &models.CandidateProfile{ID: models.NewCandidateID(), Email: "a@b.test", IsActive: true}
	require.NoError(t, m.CandidateStorage().SaveCandidate(ctx, candidate))

	match := &models.Match{
		ID:          models.NewMatchID(),
		CandidateID: candidate.ID,
		JobID:       storedJob.ID,
		Score:       0.8,
		HardMatch:   true,
		Reasons: models.MatchReasons{Dimensions: []models.MatchReasonDimension{
			{Dimension: "semantic_similarity", Weight: 0.4, Signal: 0.9, Detail: "close"},
		}},
	}
	require.NoError(t, m.MatchStorage().UpsertMatch(ctx, match))
	require.NoError(t, m.MatchStorage().RecordClicked(ctx, candidate.ID, storedJob.ID))

	// Re-match overwrites the score but keeps the click timestamp
	rematch := &models.Match{
		ID:          models.NewMatchID(),
		CandidateID: candidate.ID,
		JobID:       storedJob.ID,
		Score:       0.6,
	}
	require.NoError(t, m.MatchStorage().UpsertMatch(ctx, rematch))

	got, err := m.MatchStorage().GetMatch(ctx, candidate.ID, storedJob.ID)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, match.ID, got.ID)
	assert.InDelta(t, 0.6, got.Score, 1e-9)
	assert.NotNil(t, got.ClickedAt)

	matches, err := m.MatchStorage().ListMatchesForCandidate(ctx, candidate.ID, 10)
	require.NoError(t, err)
	assert.Len(t, matches, 1)
}

func TestPipelineRunStorage_LifecycleAndLogs(t *testing.T) {
	m := testManager(t)
	ctx := context.Background()

	run := models.NewPipelineRun("crawl_greenhouse", false, "")
	require.NoError(t, m.PipelineRunStorage().CreateRun(ctx, run))

	require.NoError(t, m.PipelineRunStorage().UpdateRunProgress(ctx, run.ID, 5, 1, "crawling"))
	require.NoError(t, m.PipelineRunStorage().AppendRunLog(ctx, run.ID, models.RunLogEntry{
		Timestamp: time.Now(), Level: "info", Message: "first",
	}))
	require.NoError(t, m.PipelineRunStorage().AppendRunLog(ctx, run.ID, models.RunLogEntry{
		Timestamp: time.Now(), Level: "warn", Message: "second", Data: map[string]interface{}{"company": "Acme"},
	}))

	// completed_at absent while running
	open, err := m.PipelineRunStorage().GetRun(ctx, run.ID)
	require.NoError(t, err)
	assert.Nil(t, open.CompletedAt)
	assert.Equal(t, 5, open.Processed)
	require.Len(t, open.Logs, 2)
	assert.Equal(t, "first", open.Logs[0].Message)
	assert.Equal(t, "second", open.Logs[1].Message)

	require.NoError(t, m.PipelineRunStorage().CompleteRun(ctx, run.ID, models.RunStatusCompleted, ""))
	closed, err := m.PipelineRunStorage().GetRun(ctx, run.ID)
	require.NoError(t, err)
	assert.Equal(t, models.RunStatusCompleted, closed.Status)
	assert.NotNil(t, closed.CompletedAt)
}

func TestPipelineRunStorage_OrphanReconciliation(t *testing.T) {
	m := testManager(t)
	ctx := context.Background()

	run := models.NewPipelineRun("full_pipeline", true, "")
	require.NoError(t, m.PipelineRunStorage().CreateRun(ctx, run))

	count, err := m.PipelineRunStorage().MarkOrphanedRunsFailed(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, count)

	got, err := m.PipelineRunStorage().GetRun(ctx, run.ID)
	require.NoError(t, err)
	assert.Equal(t, models.RunStatusFailed, got.Status)
	assert.Equal(t, "orphaned", got.Error)
	assert.NotNil(t, got.CompletedAt)

	running, err := m.PipelineRunStorage().ListRunningRuns(ctx)
	require.NoError(t, err)
	assert.Empty(t, running)
}

func TestDiscoveryQueue_ClaimAndRetryCap(t *testing.T) {
	m := testManager(t)
	ctx := context.Background()

	item := &models.DiscoveryQueueItem{
		ID:        models.NewDiscoveryQueueItemID(),
		DedupeKey: models.DedupeKeyFor("acme.test", "Acme"),
		Name:      "Acme",
		Domain:    "acme.test",
		Status:    models.QueueItemPending,
	}
	_, err := m.DiscoveryQueueStorage().UpsertQueueItem(ctx, item)
	require.NoError(t, err)

	// Same dedupe key stays one row
	duplicate := &models.DiscoveryQueueItem{
		ID:        models.NewDiscoveryQueueItemID(),
		DedupeKey: models.DedupeKeyFor("www.acme.test", "Acme Inc"),
		Name:      "Acme Inc",
		Domain:    "acme.test",
		Industry:  "Robotics",
		Status:    models.QueueItemPending,
	}
	assert.Equal(t, item.DedupeKey, duplicate.DedupeKey)
	_, err = m.DiscoveryQueueStorage().UpsertQueueItem(ctx, duplicate)
	require.NoError(t, err)

	pending, _ := m.DiscoveryQueueStorage().CountByStatus(ctx, models.QueueItemPending)
	assert.Equal(t, 1, pending)

	// Claim moves pending -> processing atomically
	claimed, err := m.DiscoveryQueueStorage().ClaimNextPending(ctx)
	require.NoError(t, err)
	require.NotNil(t, claimed)
	assert.Equal(t, models.QueueItemProcessing, claimed.Status)

	// Nothing else pending
	empty, err := m.DiscoveryQueueStorage().ClaimNextPending(ctx)
	require.NoError(t, err)
	assert.Nil(t, empty)

	// Failures bounce back to pending until the cap
	for attempt := 1; attempt <= models.MaxQueueRetries; attempt++ {
		require.NoError(t, m.DiscoveryQueueStorage().FailQueueItem(ctx, claimed.ID, "detector offline"))
		if attempt < models.MaxQueueRetries {
			reclaimed, err := m.DiscoveryQueueStorage().ClaimNextPending(ctx)
			require.NoError(t, err)
			require.NotNil(t, reclaimed)
		}
	}

	failed, _ := m.DiscoveryQueueStorage().CountByStatus(ctx, models.QueueItemFailed)
	assert.Equal(t, 1, failed)
}

func TestKVStorage_RoundTrip(t *testing.T) {
	m := testManager(t)
	ctx := context.Background()

	require.NoError(t, m.KeyValueStorage().Set(ctx, "api-key", "sk-123", "test key"))

	value, err := m.KeyValueStorage().Get(ctx, "api-key")
	require.NoError(t, err)
	assert.Equal(t, "sk-123", value)

	all, err := m.KeyValueStorage().GetAll(ctx)
	require.NoError(t, err)
	assert.Equal(t, "sk-123", all["api-key"])

	_, err = m.KeyValueStorage().Get(ctx, "missing")
	assert.Error(t, err)
}

func TestSchemaReplayIdempotent(t *testing.T) {
	config := &common.SQLiteConfig{
		Path:          filepath.Join(t.TempDir(), "hunt_test.db"),
		CacheSizeMB:   16,
		BusyTimeoutMS: 5000,
	}
	logger := arbor.NewLogger()

	first, err := NewManager(logger, config, nil)
	require.NoError(t, err)
	require.NoError(t, first.Close())

	// Reopening replays schema + migrations on the existing file
	second, err := NewManager(logger, config, nil)
	require.NoError(t, err)
	require.NoError(t, second.Close())
}
