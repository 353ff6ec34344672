package discovery

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/ternarybob/arbor"
	"github.com/ternarybob/hunt/internal/common"
	"github.com/ternarybob/hunt/internal/interfaces"
	"github.com/ternarybob/hunt/internal/models"
	"github.com/ternarybob/hunt/internal/services/detector"
)

// ATSDetector resolves a company's ATS vendor. Satisfied by detector.Service.
type ATSDetector interface {
	Detect(ctx context.Context, input detector.Input) (detector.Result, error)
}

// Service runs discovery intake (sources -> deduplicated queue) and queue
// processing (queue -> ATS detection -> companies).
type Service struct {
	config    *common.DiscoveryConfig
	registry  *Registry
	queue     interfaces.DiscoveryQueueStorage
	companies interfaces.CompanyStorage
	detector  ATSDetector
	events    interfaces.EventService
	validate  *validator.Validate
	logger    arbor.ILogger
}

// IntakeStats summarizes one discovery intake pass.
type IntakeStats struct {
	Produced int `json:"produced"`
	Inserted int `json:"inserted"`
	Merged   int `json:"merged"`
	Invalid  int `json:"invalid"`
}

// ProcessStats summarizes one queue processing pass.
type ProcessStats struct {
	Processed int `json:"processed"`
	Completed int `json:"completed"`
	Skipped   int `json:"skipped"`
	Failed    int `json:"failed"`
}

// NewService creates the discovery service. events may be nil.
func NewService(
	config *common.DiscoveryConfig,
	registry *Registry,
	queue interfaces.DiscoveryQueueStorage,
	companies interfaces.CompanyStorage,
	atsDetector ATSDetector,
	events interfaces.EventService,
	logger arbor.ILogger,
) *Service {
	return &Service{
		config:    config,
		registry:  registry,
		queue:     queue,
		companies: companies,
		detector:  atsDetector,
		events:    events,
		validate:  validator.New(),
		logger:    logger,
	}
}

// Registry exposes the source registry (admin API lists source names).
func (s *Service) Registry() *Registry {
	return s.registry
}

// RunIntake pulls candidates from the named sources (all enabled sources when
// sourceNames is empty) and stages them in the discovery queue, deduplicated
// by normalized domain with name fallback.
func (s *Service) RunIntake(ctx context.Context, sourceNames []string, limit int) (*IntakeStats, error) {
	if limit <= 0 {
		limit = s.config.DefaultProduceLimit
	}

	var sources []Source
	if len(sourceNames) == 0 {
		sources = s.registry.Enabled()
	} else {
		for _, name := range sourceNames {
			source, err := s.registry.Get(name)
			if err != nil {
				return nil, models.WrapError(models.KindInvalidArgument, "discovery source", err)
			}
			sources = append(sources, source)
		}
	}

	stats := &IntakeStats{}
	for _, source := range sources {
		select {
		case <-ctx.Done():
			return stats, ctx.Err()
		default:
		}

		candidates, err := source.Produce(ctx, limit)
		if err != nil {
			s.logger.Warn().Err(err).Str("source", source.Name()).Msg("Discovery source failed, continuing with remaining sources")
			continue
		}
		stats.Produced += len(candidates)

		for _, candidate := range candidates {
			if err := s.stage(ctx, candidate, stats); err != nil {
				s.logger.Warn().Err(err).Str("name", candidate.Name).Msg("Failed to stage discovery candidate")
			}
		}
	}

	s.logger.Info().
		Int("produced", stats.Produced).
		Int("inserted", stats.Inserted).
		Int("merged", stats.Merged).
		Int("invalid", stats.Invalid).
		Msg("Discovery intake complete")

	return stats, nil
}

// stage deduplicates one candidate into the queue
func (s *Service) stage(ctx context.Context, candidate Candidate, stats *IntakeStats) error {
	if err := s.validate.Struct(candidate); err != nil {
		stats.Invalid++
		return models.WrapError(models.KindInvalidArgument, "discovery candidate", err)
	}

	item := &models.DiscoveryQueueItem{
		ID:            models.NewDiscoveryQueueItemID(),
		DedupeKey:     models.DedupeKeyFor(candidate.Domain, candidate.Name),
		Name:          candidate.Name,
		Domain:        common.NormalizeDomain(candidate.Domain),
		CareersURL:    candidate.CareersURL,
		WebsiteURL:    candidate.WebsiteURL,
		Country:       candidate.Country,
		Industry:      candidate.Industry,
		EmployeeCount: candidate.EmployeeCount,
		FundingStage:  candidate.FundingStage,
		Source:        candidate.Source,
		Status:        models.QueueItemPending,
		CreatedAt:     time.Now(),
		UpdatedAt:     time.Now(),
	}

	existing, err := s.queue.GetQueueItemByDedupeKey(ctx, item.DedupeKey)
	if err != nil {
		return err
	}
	if existing != nil {
		// Newer metadata enriches the older row where the old row is empty
		existing.MergeFrom(item)
		existing.UpdatedAt = time.Now()
		if _, err := s.queue.UpsertQueueItem(ctx, existing); err != nil {
			return err
		}
		stats.Merged++
		return nil
	}

	if _, err := s.queue.UpsertQueueItem(ctx, item); err != nil {
		return err
	}
	stats.Inserted++
	return nil
}

// ProcessQueue drains up to limit pending items: each is claimed atomically,
// filtered, run through ATS detection, and promoted to a company row.
// Failures are recorded when the pass ends, so an item that fails goes back
// to pending for the next pass rather than being claimed again in this one.
func (s *Service) ProcessQueue(ctx context.Context, limit int) (*ProcessStats, error) {
	if limit <= 0 {
		limit = s.config.DefaultProduceLimit
	}

	stats := &ProcessStats{}
	type queueFailure struct{ id, msg string }
	var failures []queueFailure
	defer func() {
		for _, f := range failures {
			if failErr := s.queue.FailQueueItem(context.Background(), f.id, f.msg); failErr != nil {
				s.logger.Warn().Err(failErr).Str("item_id", f.id).Msg("Failed to record queue item failure")
			}
		}
	}()
	for i := 0; i < limit; i++ {
		select {
		case <-ctx.Done():
			return stats, ctx.Err()
		default:
		}

		item, err := s.queue.ClaimNextPending(ctx)
		if err != nil {
			return stats, err
		}
		if item == nil {
			break // queue drained
		}
		stats.Processed++

		if reason := s.skipReason(item); reason != "" {
			if err := s.queue.SkipQueueItem(ctx, item.ID, reason); err != nil {
				s.logger.Warn().Err(err).Str("item_id", item.ID).Msg("Failed to mark queue item skipped")
			}
			stats.Skipped++
			continue
		}

		if err := s.promote(ctx, item); err != nil {
			s.logger.Warn().
				Err(err).
				Str("item_id", item.ID).
				Str("name", item.Name).
				Int("attempts", item.Attempts).
				Msg("Queue item processing failed")
			failures = append(failures, queueFailure{id: item.ID, msg: err.Error()})
			stats.Failed++
			continue
		}
		stats.Completed++
	}

	s.logger.Info().
		Int("processed", stats.Processed).
		Int("completed", stats.Completed).
		Int("skipped", stats.Skipped).
		Int("failed", stats.Failed).
		Msg("Discovery queue processing complete")

	return stats, nil
}

// skipReason returns a non-empty reason when the item falls outside the
// configured target geography or allowed industries.
func (s *Service) skipReason(item *models.DiscoveryQueueItem) string {
	if len(s.config.TargetCountries) > 0 && item.Country != "" {
		found := false
		for _, country := range s.config.TargetCountries {
			if strings.EqualFold(country, item.Country) {
				found = true
				break
			}
		}
		if !found {
			return fmt.Sprintf("non-target geography: %s", item.Country)
		}
	}
	for _, industry := range s.config.DisallowedIndustry {
		if strings.EqualFold(industry, item.Industry) {
			return fmt.Sprintf("disallowed industry: %s", item.Industry)
		}
	}
	return ""
}

// promote runs ATS detection for the item and creates or updates its company.
func (s *Service) promote(ctx context.Context, item *models.DiscoveryQueueItem) error {
	detection, err := s.detector.Detect(ctx, detector.Input{
		Name:       item.Name,
		Domain:     item.Domain,
		WebsiteURL: item.WebsiteURL,
		CareersURL: item.CareersURL,
	})
	if err != nil {
		return fmt.Errorf("ats detection: %w", err)
	}

	company, err := s.companies.GetCompanyByDomain(ctx, item.Domain)
	if err != nil {
		return err
	}

	now := time.Now()
	isNew := company == nil
	if isNew {
		company = &models.Company{
			ID:            models.NewCompanyID(),
			Name:          item.Name,
			Domain:        item.Domain,
			CrawlPriority: 50,
			IsActive:      true,
			CreatedAt:     now,
		}
	}

	// Discovery metadata enriches, never clobbers, an existing row
	if company.Source == "" {
		company.Source = item.Source
	}
	if company.Country == "" {
		company.Country = item.Country
	}
	if company.Industry == "" {
		company.Industry = item.Industry
	}
	if company.EmployeeCount == 0 {
		company.EmployeeCount = item.EmployeeCount
	}
	if company.FundingStage == "" {
		company.FundingStage = item.FundingStage
	}

	// The detector is the sole writer of the ATS fields
	company.ATSType = detection.ATSType
	company.ATSIdentifier = detection.ATSIdentifier
	company.CareersURL = detection.CareersURL
	company.UpdatedAt = now

	if err := company.Validate(); err != nil {
		return err
	}

	if isNew {
		if err := s.companies.SaveCompany(ctx, company); err != nil {
			return err
		}
	} else {
		if err := s.companies.UpdateCompany(ctx, company); err != nil {
			return err
		}
	}

	if err := s.queue.CompleteQueueItem(ctx, item.ID, company.ID); err != nil {
		return err
	}

	if s.events != nil {
		common.SafeGo(s.logger, "publishCompanyDiscovered", func() {
			s.events.Publish(context.Background(), interfaces.Event{
				Type: interfaces.EventCompanyDiscovered,
				Payload: map[string]interface{}{
					"company_id": company.ID,
					"name":       company.Name,
					"source":     item.Source,
					"timestamp":  now,
				},
			})
		})
	}

	s.logger.Info().
		Str("company_id", company.ID).
		Str("name", company.Name).
		Str("ats_type", string(company.ATSType)).
		Bool("new", isNew).
		Msg("Discovery queue item promoted to company")

	return nil
}
