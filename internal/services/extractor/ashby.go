package extractor

import (
	"context"
	"fmt"
	"time"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/hunt/internal/models"
	"github.com/ternarybob/hunt/internal/services/fetcher"
)

// ashbyAPIBase is the vendor's public posting API.
const ashbyAPIBase = "https://api.ashbyhq.com/posting-api/job-board"

// ashbyJob is the wire shape of one posting from the posting API.
type ashbyJob struct {
	ID               string `json:"id"`
	Title            string `json:"title"`
	Location         string `json:"location"`
	Department       string `json:"department"`
	EmploymentType   string `json:"employmentType"`
	PublishedAt      string `json:"publishedAt"`
	JobURL           string `json:"jobUrl"`
	ApplyURL         string `json:"applyUrl"`
	DescriptionPlain string `json:"descriptionPlain"`
	IsListed         bool   `json:"isListed"`
	Compensation     *struct {
		CompensationTierSummary string `json:"compensationTierSummary"`
	} `json:"compensation"`
}

// AshbyExtractor reads the vendor's public JSON posting endpoint.
type AshbyExtractor struct {
	fetcher *fetcher.Service
	logger  arbor.ILogger
	apiBase string
}

// NewAshbyExtractor creates an Ashby posting API extractor
func NewAshbyExtractor(fetchSvc *fetcher.Service, logger arbor.ILogger) *AshbyExtractor {
	return &AshbyExtractor{
		fetcher: fetchSvc,
		logger:  logger,
		apiBase: ashbyAPIBase,
	}
}

func (e *AshbyExtractor) ATSType() models.ATSType { return models.ATSAshby }

// List fetches all listed postings for the company's board.
func (e *AshbyExtractor) List(ctx context.Context, company *models.Company) ([]*models.RawJob, error) {
	if company.ATSIdentifier == "" {
		return nil, models.NewError(models.KindInvalidArgument, "ashby extraction requires an ats_identifier")
	}

	url := fmt.Sprintf("%s/%s?includeCompensation=true", e.apiBase, company.ATSIdentifier)

	var payload struct {
		Jobs []ashbyJob `json:"jobs"`
	}
	if err := e.fetcher.GetJSON(ctx, url, &payload); err != nil {
		return nil, err
	}

	now := time.Now()
	jobs := make([]*models.RawJob, 0, len(payload.Jobs))
	for _, posting := range payload.Jobs {
		if posting.Title == "" {
			continue
		}
		// Unlisted postings are drafts or internal-only
		if !posting.IsListed {
			continue
		}

		sourceURL := posting.JobURL
		if sourceURL == "" {
			sourceURL = posting.ApplyURL
		}
		if sourceURL == "" {
			continue
		}

		salary := ""
		if posting.Compensation != nil {
			salary = posting.Compensation.CompensationTierSummary
		}

		jobs = append(jobs, &models.RawJob{
			ID:             models.NewRawJobID(),
			CompanyID:      company.ID,
			SourceURL:      sourceURL,
			TitleRaw:       posting.Title,
			DescriptionRaw: posting.DescriptionPlain,
			LocationRaw:    posting.Location,
			DepartmentRaw:  posting.Department,
			EmploymentRaw:  posting.EmploymentType,
			SalaryRaw:      salary,
			PostedAtRaw:    posting.PublishedAt,
			ExternalID:     posting.ID,
			ExtractedAt:    now,
		})
	}

	e.logger.Debug().
		Str("company_id", company.ID).
		Str("board", company.ATSIdentifier).
		Int("jobs", len(jobs)).
		Msg("Ashby extraction complete")

	return jobs, nil
}
