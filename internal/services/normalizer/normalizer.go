package normalizer

import (
	"regexp"
	"strings"
	"time"

	"github.com/ternarybob/hunt/internal/models"
)

// Normalize is the deterministic RawJob -> Job mapping. Given the same raw
// record and vocabulary version it produces identical canonical output; the
// only external input is now, passed in for reproducibility.
func Normalize(raw *models.RawJob, now time.Time) *models.Job {
	postedAt := ParsePostedAt(raw.PostedAtRaw, now)
	minSalary, maxSalary := ExtractSalary(raw.SalaryRaw)
	if minSalary == nil {
		// Salary sometimes only appears in the description body
		minSalary, maxSalary = ExtractSalary(firstSalaryLine(raw.DescriptionRaw))
	}

	job := &models.Job{
		ID:                 models.NewJobID(),
		CompanyID:          raw.CompanyID,
		RawJobID:           raw.ID,
		SourceURL:          raw.SourceURL,
		Title:              strings.TrimSpace(raw.TitleRaw),
		RoleFamily:         ClassifyRoleFamily(raw.TitleRaw),
		RoleSpecialization: Specialization(raw.TitleRaw, raw.DepartmentRaw),
		Seniority:          ClassifySeniority(raw.TitleRaw, raw.DescriptionRaw),
		LocationType:       ClassifyLocationType(raw.LocationRaw, raw.DescriptionRaw),
		Locations:          NormalizeLocations(raw.LocationRaw),
		Skills:             ExtractSkills(raw.DescriptionRaw),
		MinSalary:          minSalary,
		MaxSalary:          maxSalary,
		EmploymentType:     ClassifyEmploymentType(raw.EmploymentRaw, raw.TitleRaw),
		PostedAt:           postedAt,
		FreshnessScore:     models.ComputeFreshness(postedAt, now),
		IsActive:           true,
		CreatedAt:          now,
		UpdatedAt:          now,
	}
	return job
}

// seniorityRules scan title then description for explicit level words, most
// senior first so "Senior Staff Engineer" resolves to staff.
var seniorityRules = []struct {
	level   models.Seniority
	pattern *regexp.Regexp
}{
	{models.SeniorityCLevel, regexp.MustCompile(`\bc[eto]o\b|chief\s+\w+\s+officer`)},
	{models.SeniorityVP, regexp.MustCompile(`\bvp\b|vice\s+president`)},
	{models.SeniorityDirector, regexp.MustCompile(`director|head\s+of`)},
	{models.SeniorityPrincipal, regexp.MustCompile(`principal|distinguished`)},
	{models.SeniorityStaff, regexp.MustCompile(`staff`)},
	{models.SenioritySenior, regexp.MustCompile(`senior|\bsr\.?\b|\biii\b`)},
	{models.SeniorityMid, regexp.MustCompile(`mid.level|intermediate|\bii\b`)},
	{models.SeniorityJunior, regexp.MustCompile(`junior|\bjr\.?\b|entry.level|graduate|associate`)},
	{models.SeniorityIntern, regexp.MustCompile(`intern(ship)?\b`)},
}

// ClassifySeniority infers seniority from explicit level words, scanning the
// title first and the description only when the title is silent. Absence
// yields the empty Seniority.
func ClassifySeniority(title, description string) models.Seniority {
	for _, text := range []string{lower(title), lower(description)} {
		if text == "" {
			continue
		}
		for _, rule := range seniorityRules {
			if rule.pattern.MatchString(text) {
				return rule.level
			}
		}
	}
	return models.SeniorityNoLevel
}

// ClassifyEmploymentType keyword-matches the employment field then the title,
// defaulting to full time.
func ClassifyEmploymentType(employmentRaw, title string) models.EmploymentType {
	for _, text := range []string{lower(employmentRaw), lower(title)} {
		if text == "" {
			continue
		}
		switch {
		case strings.Contains(text, "intern"):
			return models.EmploymentInternship
		case strings.Contains(text, "contract"):
			return models.EmploymentContract
		case strings.Contains(text, "part-time") || strings.Contains(text, "part time"):
			return models.EmploymentPartTime
		case strings.Contains(text, "freelance"):
			return models.EmploymentFreelance
		}
	}
	return models.EmploymentFullTime
}

// Specialization derives the free-form specialization tag from the title's
// qualifier or the department, lowercased.
func Specialization(title, department string) string {
	lowered := lower(title)
	for _, qualifier := range []string{"backend", "back-end", "frontend", "front-end", "full-stack", "full stack", "mobile", "ios", "android", "platform", "infrastructure", "data", "ml", "embedded", "devops", "security"} {
		if strings.Contains(lowered, qualifier) {
			return strings.ReplaceAll(qualifier, " ", "-")
		}
	}
	if department != "" {
		return lower(strings.TrimSpace(department))
	}
	return ""
}

// relativePosted matches vendor phrasing like "Posted 3 Days Ago"
var relativePosted = regexp.MustCompile(`posted\s+(\d+)\+?\s+day`)

// postedAtLayouts are the absolute date formats seen across vendor APIs
var postedAtLayouts = []string{
	time.RFC3339,
	"2006-01-02T15:04:05Z0700",
	"2006-01-02",
	"Jan 2, 2006",
	"January 2, 2006",
	"02/01/2006",
}

// ParsePostedAt parses the raw posted-at string into a time, handling both
// absolute formats and the relative "Posted N Days Ago" phrasing. Returns nil
// when the string carries no parseable date.
func ParsePostedAt(raw string, now time.Time) *time.Time {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return nil
	}

	for _, layout := range postedAtLayouts {
		if parsed, err := time.Parse(layout, trimmed); err == nil {
			return &parsed
		}
	}

	lowered := lower(trimmed)
	if strings.Contains(lowered, "today") || strings.Contains(lowered, "just posted") {
		posted := now
		return &posted
	}
	if strings.Contains(lowered, "yesterday") {
		posted := now.AddDate(0, 0, -1)
		return &posted
	}
	if m := relativePosted.FindStringSubmatch(lowered); m != nil {
		days := 0
		for _, c := range m[1] {
			days = days*10 + int(c-'0')
		}
		posted := now.AddDate(0, 0, -days)
		return &posted
	}

	return nil
}

// firstSalaryLine returns the first description line mentioning compensation,
// bounding the salary regex scan to relevant text.
func firstSalaryLine(description string) string {
	for _, line := range strings.Split(description, "\n") {
		lowered := lower(line)
		if strings.Contains(lowered, "salary") || strings.Contains(lowered, "compensation") || strings.Contains(lowered, "pay range") {
			return line
		}
	}
	return ""
}
