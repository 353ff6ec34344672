// -----------------------------------------------------------------------
// Last Modified: Wednesday, 5th November 2025 6:08:59 pm
// Modified By: Bob McAllan
// -----------------------------------------------------------------------

package interfaces

import (
	"context"

	"github.com/ternarybob/hunt/internal/models"
)

// ListOptions is the common pagination/ordering envelope shared by list
// queries across storage interfaces.
type ListOptions struct {
	Limit    int
	Offset   int
	OrderBy  string
	OrderDir string
}

// CompanyStorage persists company records and their ATS classification.
type CompanyStorage interface {
	SaveCompany(ctx context.Context, company *models.Company) error
	GetCompany(ctx context.Context, id string) (*models.Company, error)
	GetCompanyByDomain(ctx context.Context, domain string) (*models.Company, error)
	UpdateCompany(ctx context.Context, company *models.Company) error
	ListCompanies(ctx context.Context, opts *ListOptions) ([]*models.Company, error)
	ListActiveCompanies(ctx context.Context) ([]*models.Company, error)
	ListCompaniesByATS(ctx context.Context, ats models.ATSType) ([]*models.Company, error)
	ListCompaniesDueForMaintenance(ctx context.Context, windowDays int, limit int) ([]*models.Company, error)
	CountCompanies(ctx context.Context) (int, error)
	DeactivateCompany(ctx context.Context, id string) error
}

// CrawlSnapshotStorage persists immutable crawl snapshots.
type CrawlSnapshotStorage interface {
	SaveSnapshot(ctx context.Context, snap *models.CrawlSnapshot) error
	GetLatestSnapshot(ctx context.Context, companyID, url string) (*models.CrawlSnapshot, error)
	ListSnapshotsForCompany(ctx context.Context, companyID string) ([]*models.CrawlSnapshot, error)
	DeleteSnapshotsOlderThan(ctx context.Context, olderThanDays int) (int, error)
}

// RawJobStorage persists raw, unnormalized jobs as extracted.
type RawJobStorage interface {
	UpsertRawJob(ctx context.Context, job *models.RawJob) (*models.RawJob, error)
	GetRawJob(ctx context.Context, id string) (*models.RawJob, error)
	GetRawJobBySourceURL(ctx context.Context, companyID, sourceURL string) (*models.RawJob, error)
	ListRawJobsForCompany(ctx context.Context, companyID string) ([]*models.RawJob, error)
	ListRawJobsNeedingEnrichment(ctx context.Context, skipWindowMinutes int, limit int) ([]*models.RawJob, error)
	MarkEnrichFailed(ctx context.Context, id string) error

	// ResetEnrichFailures clears enrich_failed_at on description-less rows.
	// Called at the start of a full pipeline run so jobs that failed
	// enrichment during a prior run are re-attempted; the failure timestamp
	// only bounds retries within one run, it is not a global cooldown.
	ResetEnrichFailures(ctx context.Context) (int, error)
	SetCanonicalJobID(ctx context.Context, rawJobID, canonicalJobID string) error
}

// JobListOptions filters canonical job listing and match candidate retrieval.
type JobListOptions struct {
	CompanyID    string
	RoleFamily   models.RoleFamily
	Seniority    models.Seniority
	LocationType models.LocationType
	IsActive     *bool
	OrderBy      string
	OrderDir     string
	Limit        int
	Offset       int
}

// JobStorage persists canonical, normalized jobs.
type JobStorage interface {
	UpsertJob(ctx context.Context, job *models.Job) (*models.Job, error)
	GetJob(ctx context.Context, id string) (*models.Job, error)
	GetJobBySourceURL(ctx context.Context, companyID, sourceURL string) (*models.Job, error)
	ListJobs(ctx context.Context, opts *JobListOptions) ([]*models.Job, error)
	CountJobs(ctx context.Context, opts *JobListOptions) (int, error)
	ListActiveJobsForCompany(ctx context.Context, companyID string) ([]*models.Job, error)
	ListJobsMissingEmbedding(ctx context.Context, limit int) ([]*models.Job, error)
	SetEmbedding(ctx context.Context, id string, embedding []float32) error
	DelistJob(ctx context.Context, id string, reason models.DelistReason) error
	MarkVerified(ctx context.Context, id string) error
	CountActiveJobs(ctx context.Context) (int, error)

	// TopKByEmbedding scans active jobs with embeddings and returns the k
	// closest to query by cosine similarity, filtered to those scoring at
	// least minSimilarity. Brute-force, in-process; see DESIGN.md's vector
	// index open question for why no external index dependency is used.
	TopKByEmbedding(ctx context.Context, query []float32, k int, minSimilarity float64) ([]*models.Job, error)
}

// CandidateStorage persists candidate profiles used as the matching input.
type CandidateStorage interface {
	SaveCandidate(ctx context.Context, candidate *models.CandidateProfile) error
	GetCandidate(ctx context.Context, id string) (*models.CandidateProfile, error)
	GetCandidateByEmail(ctx context.Context, email string) (*models.CandidateProfile, error)
	UpdateCandidate(ctx context.Context, candidate *models.CandidateProfile) error
	ListActiveCandidates(ctx context.Context) ([]*models.CandidateProfile, error)
	SetCandidateEmbedding(ctx context.Context, id string, embedding []float32) error
	MarkMatched(ctx context.Context, id string) error
}

// MatchStorage persists candidate-job match scores.
type MatchStorage interface {
	UpsertMatch(ctx context.Context, match *models.Match) error
	GetMatch(ctx context.Context, candidateID, jobID string) (*models.Match, error)
	ListMatchesForCandidate(ctx context.Context, candidateID string, limit int) ([]*models.Match, error)
	RecordShown(ctx context.Context, candidateID, jobID string) error
	RecordClicked(ctx context.Context, candidateID, jobID string) error
	RecordApplied(ctx context.Context, candidateID, jobID string) error
	RecordDismissed(ctx context.Context, candidateID, jobID string) error
}

// PipelineRunStorage persists pipeline run rows and their append-only logs.
// ORDERING: ListRuns returns runs newest-first (DESC by started_at).
type PipelineRunStorage interface {
	CreateRun(ctx context.Context, run *models.PipelineRun) error
	GetRun(ctx context.Context, id string) (*models.PipelineRun, error)
	UpdateRunProgress(ctx context.Context, id string, processed, failed int, currentStep string) error
	AppendRunLog(ctx context.Context, id string, entry models.RunLogEntry) error
	CompleteRun(ctx context.Context, id string, status models.RunStatus, errMsg string) error
	ListRuns(ctx context.Context, opts *ListOptions) ([]*models.PipelineRun, error)
	ListRunsByStage(ctx context.Context, stage string, limit int) ([]*models.PipelineRun, error)
	GetLatestRunByStage(ctx context.Context, stage string) (*models.PipelineRun, error)
	ListRunningRuns(ctx context.Context) ([]*models.PipelineRun, error)

	// MarkOrphanedRunsFailed marks every running run as failed with reason
	// "orphaned". Called once at process startup before any new run begins.
	MarkOrphanedRunsFailed(ctx context.Context) (int, error)
}

// DiscoveryQueueStorage persists staged, deduplicated discovery candidates.
type DiscoveryQueueStorage interface {
	UpsertQueueItem(ctx context.Context, item *models.DiscoveryQueueItem) (*models.DiscoveryQueueItem, error)
	GetQueueItemByDedupeKey(ctx context.Context, dedupeKey string) (*models.DiscoveryQueueItem, error)

	// ClaimNextPending atomically moves one pending item to processing and
	// returns it, or (nil, nil) if the queue is empty.
	ClaimNextPending(ctx context.Context) (*models.DiscoveryQueueItem, error)
	CompleteQueueItem(ctx context.Context, id, companyID string) error
	SkipQueueItem(ctx context.Context, id, reason string) error
	FailQueueItem(ctx context.Context, id, errMsg string) error
	CountByStatus(ctx context.Context, status models.QueueItemStatus) (int, error)
}

// StorageManager is the composite interface exposing every entity storage
// plus lifecycle operations, backed by the sqlite database.
type StorageManager interface {
	CompanyStorage() CompanyStorage
	CrawlSnapshotStorage() CrawlSnapshotStorage
	RawJobStorage() RawJobStorage
	JobStorage() JobStorage
	CandidateStorage() CandidateStorage
	MatchStorage() MatchStorage
	PipelineRunStorage() PipelineRunStorage
	DiscoveryQueueStorage() DiscoveryQueueStorage
	KeyValueStorage() KeyValueStorage
	DB() interface{}
	Close() error

	// LoadVariablesFromFiles loads variables (key/value pairs) from TOML
	// files in the specified directory, used for secrets at startup.
	LoadVariablesFromFiles(ctx context.Context, dirPath string) error
}
