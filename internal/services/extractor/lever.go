package extractor

import (
	"context"
	"fmt"
	"time"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/hunt/internal/models"
	"github.com/ternarybob/hunt/internal/services/fetcher"
)

// leverAPIBase is the vendor's public postings API.
const leverAPIBase = "https://api.lever.co/v0/postings"

// leverPosting is the wire shape of one posting from the postings API.
type leverPosting struct {
	ID               string `json:"id"`
	Text             string `json:"text"`
	HostedURL        string `json:"hostedUrl"`
	CreatedAt        int64  `json:"createdAt"` // epoch millis
	DescriptionPlain string `json:"descriptionPlain"`
	Categories       struct {
		Location   string `json:"location"`
		Team       string `json:"team"`
		Commitment string `json:"commitment"`
	} `json:"categories"`
	Salary *struct {
		Currency string  `json:"currency"`
		Min      float64 `json:"min"`
		Max      float64 `json:"max"`
	} `json:"salaryRange"`
}

// LeverExtractor reads the vendor's public JSON postings endpoint.
type LeverExtractor struct {
	fetcher *fetcher.Service
	logger  arbor.ILogger
	apiBase string
}

// NewLeverExtractor creates a Lever postings API extractor
func NewLeverExtractor(fetchSvc *fetcher.Service, logger arbor.ILogger) *LeverExtractor {
	return &LeverExtractor{
		fetcher: fetchSvc,
		logger:  logger,
		apiBase: leverAPIBase,
	}
}

func (e *LeverExtractor) ATSType() models.ATSType { return models.ATSLever }

// List fetches all postings for the company's board.
func (e *LeverExtractor) List(ctx context.Context, company *models.Company) ([]*models.RawJob, error) {
	if company.ATSIdentifier == "" {
		return nil, models.NewError(models.KindInvalidArgument, "lever extraction requires an ats_identifier")
	}

	url := fmt.Sprintf("%s/%s?mode=json", e.apiBase, company.ATSIdentifier)

	var postings []leverPosting
	if err := e.fetcher.GetJSON(ctx, url, &postings); err != nil {
		return nil, err
	}

	now := time.Now()
	jobs := make([]*models.RawJob, 0, len(postings))
	for _, posting := range postings {
		if posting.Text == "" || posting.HostedURL == "" {
			continue
		}

		postedAt := ""
		if posting.CreatedAt > 0 {
			postedAt = time.UnixMilli(posting.CreatedAt).UTC().Format(time.RFC3339)
		}

		salary := ""
		if posting.Salary != nil && posting.Salary.Max > 0 {
			salary = fmt.Sprintf("%s %.0f - %.0f", posting.Salary.Currency, posting.Salary.Min, posting.Salary.Max)
		}

		jobs = append(jobs, &models.RawJob{
			ID:             models.NewRawJobID(),
			CompanyID:      company.ID,
			SourceURL:      posting.HostedURL,
			TitleRaw:       posting.Text,
			DescriptionRaw: posting.DescriptionPlain,
			LocationRaw:    posting.Categories.Location,
			DepartmentRaw:  posting.Categories.Team,
			EmploymentRaw:  posting.Categories.Commitment,
			SalaryRaw:      salary,
			PostedAtRaw:    postedAt,
			ExternalID:     posting.ID,
			ExtractedAt:    now,
		})
	}

	e.logger.Debug().
		Str("company_id", company.ID).
		Str("board", company.ATSIdentifier).
		Int("jobs", len(jobs)).
		Msg("Lever extraction complete")

	return jobs, nil
}
