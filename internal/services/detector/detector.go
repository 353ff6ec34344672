package detector

import (
	"context"
	"fmt"
	"net/url"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/ternarybob/arbor"
	"github.com/ternarybob/hunt/internal/common"
	"github.com/ternarybob/hunt/internal/models"
	"github.com/ternarybob/hunt/internal/services/fetcher"
)

// Input is the minimum a detection needs: a name plus at least one of
// website URL, careers URL, or domain.
type Input struct {
	Name       string
	Domain     string
	WebsiteURL string
	CareersURL string
}

// Result is the detector's classification. The detector is the sole writer
// of the ATS fields on companies.
type Result struct {
	ATSType       models.ATSType
	ATSIdentifier string
	CareersURL    string
}

// Known ATS host URL patterns, checked in order; first hit wins.
var (
	greenhousePattern = regexp.MustCompile(`boards\.greenhouse\.io/([a-zA-Z0-9_-]+)`)
	leverPattern      = regexp.MustCompile(`jobs\.lever\.co/([a-zA-Z0-9_-]+)`)
	ashbyPattern      = regexp.MustCompile(`jobs\.ashbyhq\.com/([a-zA-Z0-9_-]+)`)
	workdayPattern    = regexp.MustCompile(`([a-zA-Z0-9_-]+)\.(?:wd\d+\.)?myworkdayjobs\.com(/[a-zA-Z0-9_/-]*)?`)
)

// Probe API endpoint templates per vendor, tried with candidate identifiers.
var (
	greenhouseProbeURL = "https://boards-api.greenhouse.io/v1/boards/%s/jobs"
	leverProbeURL      = "https://api.lever.co/v0/postings/%s?mode=json&limit=1"
	ashbyProbeURL      = "https://api.ashbyhq.com/posting-api/job-board/%s"
)

// Service classifies a company's ATS vendor and board identifier.
type Service struct {
	fetcher *fetcher.Service
	logger  arbor.ILogger

	// probe URL templates, overridable in tests
	greenhouseProbe string
	leverProbe      string
	ashbyProbe      string
}

// NewService creates an ATS detector
func NewService(fetchSvc *fetcher.Service, logger arbor.ILogger) *Service {
	return &Service{
		fetcher:         fetchSvc,
		logger:          logger,
		greenhouseProbe: greenhouseProbeURL,
		leverProbe:      leverProbeURL,
		ashbyProbe:      ashbyProbeURL,
	}
}

// Detect runs the ordered detection algorithm: URL-pattern match, HTML
// probing, API probing, then custom fallback. Idempotent on identical inputs.
func (s *Service) Detect(ctx context.Context, input Input) (Result, error) {
	if input.WebsiteURL == "" && input.CareersURL == "" && input.Domain == "" {
		return Result{}, models.NewError(models.KindInvalidArgument, "detection requires a website_url, careers_url, or domain")
	}

	// Step 1: URL-pattern match against known hosts
	for _, candidate := range []string{input.CareersURL, input.WebsiteURL} {
		if candidate == "" {
			continue
		}
		if result, ok := matchKnownHost(candidate); ok {
			s.logger.Debug().
				Str("name", input.Name).
				Str("ats_type", string(result.ATSType)).
				Str("identifier", result.ATSIdentifier).
				Msg("ATS detected by URL pattern")
			return result, nil
		}
	}

	// Step 2: HTML probing of the careers page (or well-known paths)
	probeURLs := []string{}
	if input.CareersURL != "" {
		probeURLs = append(probeURLs, input.CareersURL)
	}
	probeURLs = append(probeURLs, common.CareersURLCandidates(input.Domain)...)

	var fetchedCareersURL string
	for _, probeURL := range probeURLs {
		select {
		case <-ctx.Done():
			return Result{}, ctx.Err()
		default:
		}

		page, err := s.fetcher.Fetch(ctx, probeURL, fetcher.Options{})
		if err != nil {
			s.logger.Debug().Err(err).Str("url", probeURL).Msg("Careers page probe failed")
			continue
		}
		fetchedCareersURL = probeURL

		if result, ok := s.probeHTML(page.Content, probeURL); ok {
			s.logger.Debug().
				Str("name", input.Name).
				Str("ats_type", string(result.ATSType)).
				Msg("ATS detected by HTML probing")
			return result, nil
		}
		break // one fetched page is enough for the HTML step
	}

	// Step 3: API probing with candidate identifiers derived from the domain
	// and name
	for _, identifier := range identifierCandidates(input) {
		if result, ok := s.probeAPIs(ctx, identifier); ok {
			result.CareersURL = firstNonEmpty(input.CareersURL, fetchedCareersURL)
			if result.CareersURL == "" {
				result.CareersURL = defaultBoardURL(result.ATSType, result.ATSIdentifier)
			}
			s.logger.Debug().
				Str("name", input.Name).
				Str("ats_type", string(result.ATSType)).
				Str("identifier", result.ATSIdentifier).
				Msg("ATS detected by API probing")
			return result, nil
		}
	}

	// Step 4: all misses -> custom with whatever careers URL we found, or
	// unknown when no careers URL is known
	careersURL := firstNonEmpty(input.CareersURL, fetchedCareersURL)
	if careersURL == "" {
		return Result{ATSType: models.ATSUnknown}, nil
	}
	return Result{ATSType: models.ATSCustom, CareersURL: careersURL}, nil
}

// matchKnownHost applies the vendor URL patterns to a single URL
func matchKnownHost(rawURL string) (Result, bool) {
	if m := greenhousePattern.FindStringSubmatch(rawURL); m != nil {
		identifier := m[1]
		// Embedded boards carry the real identifier in the for= parameter
		if identifier == "embed" {
			if forParam := queryParam(rawURL, "for"); forParam != "" {
				identifier = forParam
			}
		}
		return Result{ATSType: models.ATSGreenhouse, ATSIdentifier: identifier, CareersURL: rawURL}, true
	}
	if m := leverPattern.FindStringSubmatch(rawURL); m != nil {
		return Result{ATSType: models.ATSLever, ATSIdentifier: m[1], CareersURL: rawURL}, true
	}
	if m := ashbyPattern.FindStringSubmatch(rawURL); m != nil {
		return Result{ATSType: models.ATSAshby, ATSIdentifier: m[1], CareersURL: rawURL}, true
	}
	if m := workdayPattern.FindStringSubmatch(rawURL); m != nil {
		identifier := m[1]
		if len(m) > 2 && m[2] != "" {
			identifier = m[1] + m[2] // org plus site path, the crawl needs both
		}
		return Result{ATSType: models.ATSWorkday, ATSIdentifier: identifier, CareersURL: rawURL}, true
	}
	return Result{}, false
}

// probeHTML inspects iframes, scripts, and links in a fetched page for known
// ATS host patterns.
func (s *Service) probeHTML(html, pageURL string) (Result, bool) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return Result{}, false
	}

	var found Result
	var ok bool
	check := func(value string) {
		if ok || value == "" {
			return
		}
		absolute := common.EnsureAbsoluteURL(pageURL, value)
		if result, matched := matchKnownHost(absolute); matched {
			result.CareersURL = pageURL
			found, ok = result, true
		}
	}

	doc.Find("iframe[src]").Each(func(_ int, sel *goquery.Selection) {
		src, _ := sel.Attr("src")
		check(src)
	})
	doc.Find("script[src]").Each(func(_ int, sel *goquery.Selection) {
		src, _ := sel.Attr("src")
		check(src)
	})
	doc.Find("a[href]").Each(func(_ int, sel *goquery.Selection) {
		href, _ := sel.Attr("href")
		check(href)
	})

	return found, ok
}

// probeAPIs tries each vendor's well-known JSON endpoint with the identifier.
// A 200 with a parseable shape confirms the vendor.
func (s *Service) probeAPIs(ctx context.Context, identifier string) (Result, bool) {
	var greenhouse struct {
		Jobs []interface{} `json:"jobs"`
	}
	if err := s.fetcher.GetJSON(ctx, fmt.Sprintf(s.greenhouseProbe, identifier), &greenhouse); err == nil && greenhouse.Jobs != nil {
		return Result{ATSType: models.ATSGreenhouse, ATSIdentifier: identifier}, true
	}

	var lever []interface{}
	if err := s.fetcher.GetJSON(ctx, fmt.Sprintf(s.leverProbe, identifier), &lever); err == nil && lever != nil {
		return Result{ATSType: models.ATSLever, ATSIdentifier: identifier}, true
	}

	var ashby struct {
		Jobs []interface{} `json:"jobs"`
	}
	if err := s.fetcher.GetJSON(ctx, fmt.Sprintf(s.ashbyProbe, identifier), &ashby); err == nil && ashby.Jobs != nil {
		return Result{ATSType: models.ATSAshby, ATSIdentifier: identifier}, true
	}

	return Result{}, false
}

// identifierCandidates derives plausible board identifiers from the domain
// label and a slugged company name.
func identifierCandidates(input Input) []string {
	seen := map[string]bool{}
	var candidates []string
	add := func(candidate string) {
		candidate = strings.ToLower(strings.TrimSpace(candidate))
		if candidate != "" && !seen[candidate] {
			seen[candidate] = true
			candidates = append(candidates, candidate)
		}
	}

	domain := common.NormalizeDomain(input.Domain)
	if domain == "" {
		domain = common.NormalizeDomain(input.WebsiteURL)
	}
	if domain != "" {
		if label, _, found := strings.Cut(domain, "."); found {
			add(label)
		}
	}

	slug := regexp.MustCompile(`[^a-z0-9]+`).ReplaceAllString(strings.ToLower(input.Name), "")
	add(slug)

	return candidates
}

// defaultBoardURL builds the vendor-hosted board URL for a confirmed vendor
func defaultBoardURL(ats models.ATSType, identifier string) string {
	switch ats {
	case models.ATSGreenhouse:
		return "https://boards.greenhouse.io/" + identifier
	case models.ATSLever:
		return "https://jobs.lever.co/" + identifier
	case models.ATSAshby:
		return "https://jobs.ashbyhq.com/" + identifier
	default:
		return ""
	}
}

// queryParam extracts a single query parameter from a raw URL
func queryParam(rawURL, key string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return ""
	}
	return u.Query().Get(key)
}

func firstNonEmpty(values ...string) string {
	for _, value := range values {
		if value != "" {
			return value
		}
	}
	return ""
}
