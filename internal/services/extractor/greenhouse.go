package extractor

import (
	"context"
	"fmt"
	"strings"
	"time"

	md "github.com/JohannesKaufmann/html-to-markdown"
	"github.com/ternarybob/arbor"
	"github.com/ternarybob/hunt/internal/models"
	"github.com/ternarybob/hunt/internal/services/fetcher"
)

// greenhouseAPIBase is the vendor's public boards API.
const greenhouseAPIBase = "https://boards-api.greenhouse.io/v1/boards"

// greenhouseJob is the wire shape of one posting from the boards API.
type greenhouseJob struct {
	ID          int64  `json:"id"`
	Title       string `json:"title"`
	Content     string `json:"content"`
	AbsoluteURL string `json:"absolute_url"`
	UpdatedAt   string `json:"updated_at"`
	Location    struct {
		Name string `json:"name"`
	} `json:"location"`
	Departments []struct {
		Name string `json:"name"`
	} `json:"departments"`
	Metadata []struct {
		Name  string      `json:"name"`
		Value interface{} `json:"value"`
	} `json:"metadata"`
}

// GreenhouseExtractor reads the vendor's public JSON boards endpoint.
type GreenhouseExtractor struct {
	fetcher   *fetcher.Service
	converter *md.Converter
	logger    arbor.ILogger

	// apiBase is overridable in tests
	apiBase string
}

// NewGreenhouseExtractor creates a Greenhouse boards API extractor
func NewGreenhouseExtractor(fetchSvc *fetcher.Service, logger arbor.ILogger) *GreenhouseExtractor {
	return &GreenhouseExtractor{
		fetcher:   fetchSvc,
		converter: md.NewConverter("", true, nil),
		logger:    logger,
		apiBase:   greenhouseAPIBase,
	}
}

func (e *GreenhouseExtractor) ATSType() models.ATSType { return models.ATSGreenhouse }

// List fetches all postings for the company's board with content included.
func (e *GreenhouseExtractor) List(ctx context.Context, company *models.Company) ([]*models.RawJob, error) {
	if company.ATSIdentifier == "" {
		return nil, models.NewError(models.KindInvalidArgument, "greenhouse extraction requires an ats_identifier")
	}

	url := fmt.Sprintf("%s/%s/jobs?content=true", e.apiBase, company.ATSIdentifier)

	var payload struct {
		Jobs []greenhouseJob `json:"jobs"`
	}
	if err := e.fetcher.GetJSON(ctx, url, &payload); err != nil {
		return nil, err
	}

	now := time.Now()
	jobs := make([]*models.RawJob, 0, len(payload.Jobs))
	for _, posting := range payload.Jobs {
		if posting.Title == "" || posting.AbsoluteURL == "" {
			continue
		}

		department := ""
		if len(posting.Departments) > 0 {
			department = posting.Departments[0].Name
		}

		jobs = append(jobs, &models.RawJob{
			ID:             models.NewRawJobID(),
			CompanyID:      company.ID,
			SourceURL:      posting.AbsoluteURL,
			TitleRaw:       posting.Title,
			DescriptionRaw: e.htmlToText(posting.Content),
			LocationRaw:    posting.Location.Name,
			DepartmentRaw:  department,
			PostedAtRaw:    posting.UpdatedAt,
			ExternalID:     fmt.Sprintf("%d", posting.ID),
			ExtractedAt:    now,
		})
	}

	e.logger.Debug().
		Str("company_id", company.ID).
		Str("board", company.ATSIdentifier).
		Int("jobs", len(jobs)).
		Msg("Greenhouse extraction complete")

	return jobs, nil
}

// htmlToText converts the API's HTML content field to markdown text for
// storage and embedding input.
func (e *GreenhouseExtractor) htmlToText(html string) string {
	if html == "" {
		return ""
	}
	text, err := e.converter.ConvertString(html)
	if err != nil {
		// Unconvertible content keeps the raw HTML rather than losing it
		return html
	}
	return strings.TrimSpace(text)
}
