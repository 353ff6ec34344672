package maintenance

import (
	"context"
	"time"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/hunt/internal/common"
	"github.com/ternarybob/hunt/internal/interfaces"
	"github.com/ternarybob/hunt/internal/models"
	"github.com/ternarybob/hunt/internal/services/extractor"
)

// Service periodically re-verifies active jobs against their upstream
// listing. Jobs present in the new listing are stamped verified; absent jobs
// are delisted. Companies whose careers URL is gone for two consecutive runs
// are deactivated.
type Service struct {
	config     *common.MaintenanceConfig
	companies  interfaces.CompanyStorage
	jobs       interfaces.JobStorage
	extractors *extractor.Registry
	events     interfaces.EventService
	logger     arbor.ILogger

	// snapshots and snapshotRetentionDays enable the per-pass snapshot GC;
	// nil/zero disables it
	snapshots             interfaces.CrawlSnapshotStorage
	snapshotRetentionDays int
}

// EnableSnapshotGC turns on crawl-snapshot garbage collection at the end of
// each maintenance pass. The most recent snapshot per URL is always retained.
func (s *Service) EnableSnapshotGC(snapshots interfaces.CrawlSnapshotStorage, retentionDays int) {
	s.snapshots = snapshots
	s.snapshotRetentionDays = retentionDays
}

// Stats summarizes one maintenance pass.
type Stats struct {
	CompaniesChecked     int `json:"companies_checked"`
	JobsVerified         int `json:"jobs_verified"`
	JobsDelisted         int `json:"jobs_delisted"`
	CompaniesDeactivated int `json:"companies_deactivated"`
	Errors               int `json:"errors"`
}

// NewService creates the maintenance service. events may be nil.
func NewService(
	config *common.MaintenanceConfig,
	companies interfaces.CompanyStorage,
	jobs interfaces.JobStorage,
	extractors *extractor.Registry,
	events interfaces.EventService,
	logger arbor.ILogger,
) *Service {
	return &Service{
		config:     config,
		companies:  companies,
		jobs:       jobs,
		extractors: extractors,
		events:     events,
		logger:     logger,
	}
}

// Run re-verifies every company due for a maintenance pass.
func (s *Service) Run(ctx context.Context, progress func(done, failed int)) (*Stats, error) {
	due, err := s.companies.ListCompaniesDueForMaintenance(ctx, s.config.VerifyRefreshDays, s.config.CompanyBatchSize)
	if err != nil {
		return nil, err
	}

	stats := &Stats{}
	for _, company := range due {
		select {
		case <-ctx.Done():
			return stats, ctx.Err()
		default:
		}

		stats.CompaniesChecked++
		if err := s.verifyCompany(ctx, company, stats); err != nil {
			stats.Errors++
			s.logger.Warn().
				Err(err).
				Str("company_id", company.ID).
				Msg("Maintenance verification failed for company")
		}

		if progress != nil {
			progress(stats.CompaniesChecked, stats.Errors)
		}
	}

	if s.snapshots != nil && s.snapshotRetentionDays > 0 {
		if _, err := s.snapshots.DeleteSnapshotsOlderThan(ctx, s.snapshotRetentionDays); err != nil {
			s.logger.Warn().Err(err).Msg("Snapshot garbage collection failed")
		}
	}

	s.logger.Info().
		Int("companies_checked", stats.CompaniesChecked).
		Int("jobs_verified", stats.JobsVerified).
		Int("jobs_delisted", stats.JobsDelisted).
		Int("companies_deactivated", stats.CompaniesDeactivated).
		Msg("Maintenance pass complete")

	return stats, nil
}

// verifyCompany re-reads one company's listing and reconciles its jobs.
func (s *Service) verifyCompany(ctx context.Context, company *models.Company, stats *Stats) error {
	ext, err := s.extractors.Get(company.ATSType)
	if err != nil {
		return err
	}

	now := time.Now()
	listing, err := ext.List(ctx, company)
	if err != nil {
		if models.KindOf(err) == models.KindNotFound {
			return s.handleNotFound(ctx, company, stats, now)
		}
		return err
	}

	// A reachable listing resets the gone-page streak
	company.NotFoundStreak = 0
	company.LastMaintenanceAt = &now
	if err := s.companies.UpdateCompany(ctx, company); err != nil {
		return err
	}

	// Index the still-listed source URLs
	listed := make(map[string]bool, len(listing))
	for _, raw := range listing {
		listed[raw.SourceURL] = true
	}

	active, err := s.jobs.ListActiveJobsForCompany(ctx, company.ID)
	if err != nil {
		return err
	}

	for _, job := range active {
		if listed[job.SourceURL] {
			if err := s.jobs.MarkVerified(ctx, job.ID); err != nil {
				return err
			}
			stats.JobsVerified++
			continue
		}
		if err := s.delist(ctx, job, models.DelistRemovedFromATS); err != nil {
			return err
		}
		stats.JobsDelisted++
	}

	return nil
}

// handleNotFound tracks consecutive gone-page runs; the second one
// deactivates the company and delists its catalog.
func (s *Service) handleNotFound(ctx context.Context, company *models.Company, stats *Stats, now time.Time) error {
	company.NotFoundStreak++
	company.LastMaintenanceAt = &now

	if company.NotFoundStreak < 2 {
		s.logger.Debug().
			Str("company_id", company.ID).
			Int("streak", company.NotFoundStreak).
			Msg("Careers URL not found, waiting for a second consecutive miss")
		return s.companies.UpdateCompany(ctx, company)
	}

	company.IsActive = false
	if err := s.companies.UpdateCompany(ctx, company); err != nil {
		return err
	}
	stats.CompaniesDeactivated++

	active, err := s.jobs.ListActiveJobsForCompany(ctx, company.ID)
	if err != nil {
		return err
	}
	for _, job := range active {
		if err := s.delist(ctx, job, models.DelistCompanyInactive); err != nil {
			return err
		}
		stats.JobsDelisted++
	}

	s.logger.Info().
		Str("company_id", company.ID).
		Int("jobs_delisted", len(active)).
		Msg("Company deactivated after two consecutive not-found runs")

	return nil
}

// delist marks one job inactive and publishes the delist event
func (s *Service) delist(ctx context.Context, job *models.Job, reason models.DelistReason) error {
	if err := s.jobs.DelistJob(ctx, job.ID, reason); err != nil {
		return err
	}

	if s.events != nil {
		payload := map[string]interface{}{
			"job_id":     job.ID,
			"company_id": job.CompanyID,
			"reason":     string(reason),
			"timestamp":  time.Now(),
		}
		common.SafeGo(s.logger, "publishJobDelisted", func() {
			s.events.Publish(context.Background(), interfaces.Event{
				Type:    interfaces.EventJobDelisted,
				Payload: payload,
			})
		})
	}
	return nil
}
