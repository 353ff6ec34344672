package extractor

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/hunt/internal/models"
	"github.com/ternarybob/hunt/internal/services/fetcher"
)

// workdayPosting is the wire shape of one posting from the cxs search API.
type workdayPosting struct {
	Title         string   `json:"title"`
	ExternalPath  string   `json:"externalPath"`
	LocationsText string   `json:"locationsText"`
	PostedOn      string   `json:"postedOn"`
	BulletFields  []string `json:"bulletFields"`
}

// workdaySearchResponse is the paginated response envelope.
type workdaySearchResponse struct {
	Total       int              `json:"total"`
	JobPostings []workdayPosting `json:"jobPostings"`
}

// WorkdayExtractor issues the vendor's POST-based search API with pagination.
// Descriptions are not in the search response; the enrichment sub-stage
// fetches them from each posting's detail page.
type WorkdayExtractor struct {
	fetcher  *fetcher.Service
	logger   arbor.ILogger
	pageSize int

	// apiBaseOverride replaces the careers-URL-derived endpoint in tests
	apiBaseOverride string
}

// NewWorkdayExtractor creates a Workday search API extractor
func NewWorkdayExtractor(fetchSvc *fetcher.Service, pageSize int, logger arbor.ILogger) *WorkdayExtractor {
	if pageSize <= 0 {
		pageSize = 20
	}
	return &WorkdayExtractor{
		fetcher:  fetchSvc,
		logger:   logger,
		pageSize: pageSize,
	}
}

func (e *WorkdayExtractor) ATSType() models.ATSType { return models.ATSWorkday }

// List pages through the company's postings, respecting the vendor's offset
// cursor until the reported total is reached.
func (e *WorkdayExtractor) List(ctx context.Context, company *models.Company) ([]*models.RawJob, error) {
	apiURL, siteBase, err := e.endpoints(company)
	if err != nil {
		return nil, err
	}

	now := time.Now()
	var jobs []*models.RawJob
	offset := 0
	for {
		select {
		case <-ctx.Done():
			return jobs, ctx.Err()
		default:
		}

		payload := map[string]interface{}{
			"appliedFacets": map[string]interface{}{},
			"limit":         e.pageSize,
			"offset":        offset,
			"searchText":    "",
		}

		var page workdaySearchResponse
		if err := e.fetcher.PostJSON(ctx, apiURL, payload, &page); err != nil {
			return nil, err
		}

		for _, posting := range page.JobPostings {
			if posting.Title == "" || posting.ExternalPath == "" {
				continue
			}

			externalID := ""
			if len(posting.BulletFields) > 0 {
				externalID = posting.BulletFields[0]
			}

			jobs = append(jobs, &models.RawJob{
				ID:          models.NewRawJobID(),
				CompanyID:   company.ID,
				SourceURL:   siteBase + posting.ExternalPath,
				TitleRaw:    posting.Title,
				LocationRaw: posting.LocationsText,
				PostedAtRaw: posting.PostedOn,
				ExternalID:  externalID,
				ExtractedAt: now,
			})
		}

		offset += e.pageSize
		if offset >= page.Total || len(page.JobPostings) == 0 {
			break
		}
	}

	e.logger.Debug().
		Str("company_id", company.ID).
		Str("site", company.ATSIdentifier).
		Int("jobs", len(jobs)).
		Msg("Workday extraction complete")

	return jobs, nil
}

// endpoints derives the cxs search endpoint and the public site base from the
// company's careers URL: https://<org>.wd5.myworkdayjobs.com/<site> maps to
// https://<org>.wd5.myworkdayjobs.com/wday/cxs/<org>/<site>/jobs.
func (e *WorkdayExtractor) endpoints(company *models.Company) (apiURL, siteBase string, err error) {
	if e.apiBaseOverride != "" {
		return e.apiBaseOverride, strings.TrimSuffix(company.CareersURL, "/"), nil
	}

	if company.CareersURL == "" || company.ATSIdentifier == "" {
		return "", "", models.NewError(models.KindInvalidArgument, "workday extraction requires a careers_url and ats_identifier")
	}

	u, parseErr := url.Parse(company.CareersURL)
	if parseErr != nil {
		return "", "", models.WrapError(models.KindInvalidArgument, "workday careers url", parseErr)
	}

	org, _, _ := strings.Cut(u.Hostname(), ".")
	site := strings.Trim(u.Path, "/")
	if idx := strings.LastIndex(site, "/"); idx >= 0 {
		site = site[idx+1:]
	}
	if org == "" || site == "" {
		return "", "", models.NewError(models.KindInvalidArgument, fmt.Sprintf("cannot derive workday org/site from %s", company.CareersURL))
	}

	apiURL = fmt.Sprintf("%s://%s/wday/cxs/%s/%s/jobs", u.Scheme, u.Host, org, site)
	siteBase = strings.TrimSuffix(company.CareersURL, "/")
	return apiURL, siteBase, nil
}
