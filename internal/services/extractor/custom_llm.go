package extractor

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	md "github.com/JohannesKaufmann/html-to-markdown"
	"github.com/PuerkitoBio/goquery"
	"github.com/ternarybob/arbor"
	"github.com/ternarybob/hunt/internal/common"
	"github.com/ternarybob/hunt/internal/interfaces"
	"github.com/ternarybob/hunt/internal/models"
	"github.com/ternarybob/hunt/internal/services/fetcher"
	"github.com/ternarybob/hunt/internal/services/llm"
)

// ContentGenerator is the slice of llm.ProviderFactory the extractor needs.
type ContentGenerator interface {
	GenerateContent(ctx context.Context, request *llm.ContentRequest) (*llm.ContentResponse, error)
}

// jobExtractionSchema is the strict JSON schema the model's output must
// satisfy. Responses failing validation are rejected, never persisted.
var jobExtractionSchema = map[string]interface{}{
	"type": "object",
	"properties": map[string]interface{}{
		"jobs": map[string]interface{}{
			"type": "array",
			"items": map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"title":           map[string]interface{}{"type": "string", "description": "Job title exactly as posted"},
					"url":             map[string]interface{}{"type": "string", "description": "Absolute URL of the job posting"},
					"location":        map[string]interface{}{"type": "string", "description": "Location text as posted, empty if absent"},
					"description":     map[string]interface{}{"type": "string", "description": "Job description text, empty if only a listing row is shown"},
					"employment_type": map[string]interface{}{"type": "string", "description": "Employment arrangement text as posted, empty if absent"},
					"salary":          map[string]interface{}{"type": "string", "description": "Salary text as posted, empty if absent"},
					"posted_at":       map[string]interface{}{"type": "string", "description": "Posting date text as posted, empty if absent"},
				},
				"required": []string{"title", "url"},
			},
		},
	},
	"required": []string{"jobs"},
}

const extractionSystemPrompt = `You extract job postings from careers page text.
Return ONLY a JSON object matching the provided schema. Every job must have a
non-empty title and an absolute url. Do not invent postings that are not in
the text. Leave fields you cannot find as empty strings.`

// extractedJob is the decoded model output for one posting.
type extractedJob struct {
	Title          string `json:"title"`
	URL            string `json:"url"`
	Location       string `json:"location"`
	Description    string `json:"description"`
	EmploymentType string `json:"employment_type"`
	Salary         string `json:"salary"`
	PostedAt       string `json:"posted_at"`
}

// CustomExtractor is the language-model fallback for companies without a
// recognized ATS. The careers page is fetched (rendered when the plain HTML
// carries no job links), converted to text, and fed to the model under a
// strict output schema.
type CustomExtractor struct {
	fetcher   *fetcher.Service
	generator ContentGenerator
	config    *common.ExtractorConfig
	converter *md.Converter
	logger    arbor.ILogger
}

// NewCustomExtractor creates the LLM fallback extractor
func NewCustomExtractor(fetchSvc *fetcher.Service, generator ContentGenerator, config *common.ExtractorConfig, logger arbor.ILogger) *CustomExtractor {
	return &CustomExtractor{
		fetcher:   fetchSvc,
		generator: generator,
		config:    config,
		converter: md.NewConverter("", true, nil),
		logger:    logger,
	}
}

func (e *CustomExtractor) ATSType() models.ATSType { return models.ATSCustom }

// List fetches the careers page and extracts postings via the model. Schema
// violations are retried once with a reduced excerpt; a second failure emits
// zero jobs (soft outcome, not a stage failure).
func (e *CustomExtractor) List(ctx context.Context, company *models.Company) ([]*models.RawJob, error) {
	if company.CareersURL == "" {
		return nil, models.NewError(models.KindInvalidArgument, "custom extraction requires a careers_url")
	}

	page, err := e.fetcher.Fetch(ctx, company.CareersURL, fetcher.Options{CompanyID: company.ID})
	if err != nil {
		return nil, err
	}

	// JS-rendered listings have no job links in the plain HTML; render once
	if !hasJobLinks(page.Content) {
		rendered, renderErr := e.fetcher.Fetch(ctx, company.CareersURL, fetcher.Options{
			CompanyID: company.ID,
			Render:    true,
		})
		if renderErr == nil {
			page = rendered
		} else {
			e.logger.Debug().Err(renderErr).Str("company_id", company.ID).Msg("Rendered fetch unavailable, using plain HTML")
		}
	}

	text := e.pageText(page.Content)

	extracted, err := e.extractWithRetry(ctx, company, text)
	if err != nil {
		e.logger.Warn().
			Err(err).
			Str("company_id", company.ID).
			Str("careers_url", company.CareersURL).
			Msg("extractor_llm_failed")
		return nil, nil // zero jobs, soft outcome
	}

	now := time.Now()
	jobs := make([]*models.RawJob, 0, len(extracted))
	for _, job := range extracted {
		sourceURL := common.EnsureAbsoluteURL(company.CareersURL, job.URL)
		if job.Title == "" || sourceURL == "" {
			continue
		}
		jobs = append(jobs, &models.RawJob{
			ID:             models.NewRawJobID(),
			CompanyID:      company.ID,
			SourceURL:      sourceURL,
			TitleRaw:       job.Title,
			DescriptionRaw: job.Description,
			LocationRaw:    job.Location,
			EmploymentRaw:  job.EmploymentType,
			SalaryRaw:      job.Salary,
			PostedAtRaw:    job.PostedAt,
			ExtractedAt:    now,
		})
	}

	e.logger.Debug().
		Str("company_id", company.ID).
		Int("jobs", len(jobs)).
		Msg("Custom LLM extraction complete")

	return jobs, nil
}

// extractWithRetry runs the model call, validating output against the schema;
// the single retry uses a reduced excerpt of the page text.
func (e *CustomExtractor) extractWithRetry(ctx context.Context, company *models.Company, text string) ([]extractedJob, error) {
	excerpt := truncate(text, e.config.LLMMaxInputChars)

	jobs, err := e.extractOnce(ctx, excerpt)
	if err == nil {
		return jobs, nil
	}

	e.logger.Debug().
		Err(err).
		Str("company_id", company.ID).
		Msg("LLM extraction failed schema validation, retrying with reduced excerpt")

	reduced := truncate(text, e.config.LLMRetryInputChars)
	return e.extractOnce(ctx, reduced)
}

// extractOnce issues one model call and validates the response shape.
func (e *CustomExtractor) extractOnce(ctx context.Context, excerpt string) ([]extractedJob, error) {
	response, err := e.generator.GenerateContent(ctx, &llm.ContentRequest{
		Messages: []interfaces.Message{
			{Role: "user", Content: "Careers page text:\n\n" + excerpt},
		},
		SystemInstruction: extractionSystemPrompt,
		OutputSchema:      jobExtractionSchema,
	})
	if err != nil {
		return nil, err
	}

	var payload struct {
		Jobs []extractedJob `json:"jobs"`
	}
	raw := stripCodeFence(response.Text)
	if err := json.Unmarshal([]byte(raw), &payload); err != nil {
		return nil, models.WrapError(models.KindSchemaViolation, "llm output is not valid JSON", err)
	}
	if payload.Jobs == nil {
		return nil, models.NewError(models.KindSchemaViolation, "llm output missing required jobs array")
	}
	for _, job := range payload.Jobs {
		if job.Title == "" || job.URL == "" {
			return nil, models.NewError(models.KindSchemaViolation, "llm output job missing required title or url")
		}
	}
	return payload.Jobs, nil
}

// pageText converts page HTML to markdown text for prompting
func (e *CustomExtractor) pageText(html string) string {
	text, err := e.converter.ConvertString(html)
	if err != nil {
		return html
	}
	return strings.TrimSpace(text)
}

// hasJobLinks is the render heuristic: a listing page served as static HTML
// links to individual postings.
func hasJobLinks(html string) bool {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return false
	}

	count := 0
	doc.Find("a[href]").Each(func(_ int, sel *goquery.Selection) {
		href, _ := sel.Attr("href")
		lowered := strings.ToLower(href + " " + sel.Text())
		if strings.Contains(lowered, "job") || strings.Contains(lowered, "position") || strings.Contains(lowered, "opening") || strings.Contains(lowered, "role") {
			count++
		}
	})
	return count > 0
}

// truncate bounds text to max characters on a rune-safe boundary
func truncate(text string, max int) string {
	if max <= 0 || len(text) <= max {
		return text
	}
	runes := []rune(text)
	if len(runes) <= max {
		return text
	}
	return string(runes[:max])
}

// stripCodeFence removes a markdown code fence wrapper from model output
func stripCodeFence(text string) string {
	trimmed := strings.TrimSpace(text)
	if !strings.HasPrefix(trimmed, "```") {
		return trimmed
	}
	trimmed = strings.TrimPrefix(trimmed, "```json")
	trimmed = strings.TrimPrefix(trimmed, "```")
	trimmed = strings.TrimSuffix(strings.TrimSpace(trimmed), "```")
	return strings.TrimSpace(trimmed)
}
