package matcher

import (
	"context"
	"fmt"
	"math"
	"sort"
	"strings"
	"time"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/hunt/internal/common"
	"github.com/ternarybob/hunt/internal/interfaces"
	"github.com/ternarybob/hunt/internal/models"
)

// Scoring weights per dimension. The weighted sum is clamped to [0,1].
const (
	weightSemantic   = 0.40
	weightRoleFamily = 0.15
	weightSeniority  = 0.15
	weightSkills     = 0.15
	weightFreshness  = 0.10
	weightSalary     = 0.05
)

// Options controls one matching run.
type Options struct {
	// SoftInclusive retains jobs failing hard filters with hard_match=false
	// instead of dropping them.
	SoftInclusive bool

	// Limit caps the returned matches. Zero means no cap.
	Limit int
}

// Result is one scored candidate-job pair.
type Result struct {
	Job       *models.Job          `json:"job"`
	Score     float64              `json:"score"`
	HardMatch bool                 `json:"hard_match"`
	Reasons   models.MatchReasons  `json:"reasons"`
}

// Outcome is a full matching run's output: either ranked results or a
// structured no-matches explanation.
type Outcome struct {
	Results  []Result                   `json:"results"`
	NoMatch  *models.NoMatchExplanation `json:"no_match,omitempty"`
}

// Service matches candidates to jobs: vector candidate-set generation, hard
// filters, weighted soft scoring, and persisted reasons.
type Service struct {
	config     *common.MatcherConfig
	jobs       interfaces.JobStorage
	candidates interfaces.CandidateStorage
	matches    interfaces.MatchStorage
	companies  interfaces.CompanyStorage
	events     interfaces.EventService
	logger     arbor.ILogger
}

// NewService creates the matcher. events may be nil.
func NewService(
	config *common.MatcherConfig,
	jobs interfaces.JobStorage,
	candidates interfaces.CandidateStorage,
	matches interfaces.MatchStorage,
	companies interfaces.CompanyStorage,
	events interfaces.EventService,
	logger arbor.ILogger,
) *Service {
	return &Service{
		config:     config,
		jobs:       jobs,
		candidates: candidates,
		matches:    matches,
		companies:  companies,
		events:     events,
		logger:     logger,
	}
}

// Match produces the ranked result set for one candidate and persists each
// scored pair. The per-candidate timeout bounds the whole run.
func (s *Service) Match(ctx context.Context, candidate *models.CandidateProfile, opts Options) (*Outcome, error) {
	timeout := time.Duration(s.config.PerCandidateSecs) * time.Second
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	explanation := &models.NoMatchExplanation{}

	catalogSize, err := s.jobs.CountActiveJobs(ctx)
	if err != nil {
		return nil, err
	}
	explanation.CatalogSize = catalogSize
	if catalogSize == 0 {
		explanation.Reason = models.NoMatchEmptyCatalog
		return &Outcome{NoMatch: explanation}, nil
	}

	if !candidate.HasEmbedding() {
		explanation.Reason = models.NoMatchNoVectorCandidates
		return &Outcome{NoMatch: explanation}, nil
	}

	// 1. Candidate set generation: top-K active jobs by cosine similarity
	topK := s.config.TopK
	if topK <= 0 {
		topK = 200
	}
	vectorCandidates, err := s.jobs.TopKByEmbedding(ctx, candidate.Embedding, topK, s.config.MinSimilarity)
	if err != nil {
		return nil, err
	}
	explanation.VectorCandidates = len(vectorCandidates)
	if len(vectorCandidates) == 0 {
		explanation.Reason = models.NoMatchNoVectorCandidates
		return &Outcome{NoMatch: explanation}, nil
	}

	// Company names are needed for the exclusion filter
	companyNames, err := s.companyNames(ctx, vectorCandidates)
	if err != nil {
		return nil, err
	}

	// 2 + 3. Hard filters then soft scoring
	var results []Result
	afterHard := 0
	for _, job := range vectorCandidates {
		hardMatch := s.passesHardFilters(candidate, job, companyNames[job.CompanyID])
		if hardMatch {
			afterHard++
		} else if !opts.SoftInclusive {
			continue
		}

		score, reasons := s.score(candidate, job)
		if score < s.config.MinScore {
			continue
		}
		results = append(results, Result{
			Job:       job,
			Score:     score,
			HardMatch: hardMatch,
			Reasons:   reasons,
		})
	}
	explanation.AfterHardFilter = afterHard
	explanation.AfterScoreFilter = len(results)

	if len(results) == 0 {
		if afterHard == 0 {
			explanation.Reason = models.NoMatchAllFilteredHard
		} else {
			explanation.Reason = models.NoMatchAllFilteredScore
		}
		return &Outcome{NoMatch: explanation}, nil
	}

	sort.Slice(results, func(i, j int) bool { return results[i].Score > results[j].Score })
	if opts.Limit > 0 && len(results) > opts.Limit {
		results = results[:opts.Limit]
	}

	if err := s.persist(ctx, candidate, results); err != nil {
		return nil, err
	}

	s.logger.Info().
		Str("candidate_id", candidate.ID).
		Int("vector_candidates", len(vectorCandidates)).
		Int("matches", len(results)).
		Msg("Matching run complete")

	return &Outcome{Results: results}, nil
}

// MatchAll runs matching for every active candidate, continuing past
// per-candidate failures.
func (s *Service) MatchAll(ctx context.Context, opts Options) (int, error) {
	candidates, err := s.candidates.ListActiveCandidates(ctx)
	if err != nil {
		return 0, err
	}

	matched := 0
	for _, candidate := range candidates {
		select {
		case <-ctx.Done():
			return matched, ctx.Err()
		default:
		}
		if _, err := s.Match(ctx, candidate, opts); err != nil {
			s.logger.Warn().Err(err).Str("candidate_id", candidate.ID).Msg("Matching failed for candidate")
			continue
		}
		matched++
	}
	return matched, nil
}

// passesHardFilters applies every declared hard constraint.
func (s *Service) passesHardFilters(candidate *models.CandidateProfile, job *models.Job, companyName string) bool {
	if !job.IsActive {
		return false
	}
	if !candidate.AllowsRoleFamily(job.RoleFamily) {
		return false
	}
	if candidate.Seniority != "" && job.Seniority != "" && !candidate.Seniority.WithinOneStep(job.Seniority) {
		return false
	}
	if job.LocationType != models.LocationAbsent && !candidate.AllowsLocationType(job.LocationType) {
		return false
	}
	if candidate.MinSalary != nil && job.MaxSalary != nil && *job.MaxSalary < *candidate.MinSalary {
		return false
	}
	if !allowsEmploymentType(candidate.RoleTypes, job.EmploymentType) {
		return false
	}
	if companyName != "" && candidate.Excludes(companyName) {
		return false
	}
	return true
}

// allowsEmploymentType maps candidate role-type preferences onto employment
// types: permanent<->full_time or part_time, contract<->contract,
// freelance<->freelance.
// An empty preference list allows everything.
func allowsEmploymentType(roleTypes []string, employment models.EmploymentType) bool {
	if len(roleTypes) == 0 || employment == models.EmploymentAbsent {
		return true
	}
	for _, roleType := range roleTypes {
		switch strings.ToLower(roleType) {
		case "permanent":
			if employment == models.EmploymentFullTime || employment == models.EmploymentPartTime {
				return true
			}
		case "contract":
			if employment == models.EmploymentContract {
				return true
			}
		case "freelance":
			if employment == models.EmploymentFreelance {
				return true
			}
		}
	}
	return false
}

// score computes the weighted soft score and its per-dimension reasons.
// Dimensions contributing zero weight are omitted from the reasons.
func (s *Service) score(candidate *models.CandidateProfile, job *models.Job) (float64, models.MatchReasons) {
	var reasons models.MatchReasons
	total := 0.0

	record := func(dimension string, weight, signal float64, detail string) {
		contribution := weight * signal
		total += contribution
		if contribution > 0 {
			reasons.Dimensions = append(reasons.Dimensions, models.MatchReasonDimension{
				Dimension: dimension,
				Weight:    weight,
				Signal:    signal,
				Detail:    detail,
			})
		}
	}

	// Semantic similarity
	similarity := CosineSimilarity(candidate.Embedding, job.Embedding)
	record("semantic_similarity", weightSemantic, similarity,
		fmt.Sprintf("profile and job are %.0f%% semantically similar", similarity*100))

	// Role family: exact 1, adjacent 0.5, no preference 0.5 neutral, else 0
	roleSignal := 0.0
	roleDetail := fmt.Sprintf("%s is outside your preferred role families", job.RoleFamily)
	if len(candidate.RoleFamilies) == 0 {
		roleSignal = 0.5
		roleDetail = "no role family preference set"
	} else if candidate.AllowsRoleFamily(job.RoleFamily) {
		roleSignal = 1.0
		roleDetail = fmt.Sprintf("%s matches your preferred role family", job.RoleFamily)
	} else if adjacentToAny(candidate.RoleFamilies, job.RoleFamily) {
		roleSignal = 0.5
		roleDetail = fmt.Sprintf("%s is adjacent to your preferred role families", job.RoleFamily)
	}
	record("role_family", weightRoleFamily, roleSignal, roleDetail)

	// Seniority: exact 1, one-step 0.5, else 0
	senioritySignal := 0.0
	seniorityDetail := "seniority differs from your preference"
	switch {
	case candidate.Seniority == "" || job.Seniority == "":
		senioritySignal = 0.5
		seniorityDetail = "seniority not specified on one side"
	case candidate.Seniority == job.Seniority:
		senioritySignal = 1.0
		seniorityDetail = fmt.Sprintf("exact seniority match (%s)", job.Seniority)
	case candidate.Seniority.WithinOneStep(job.Seniority):
		senioritySignal = 0.5
		seniorityDetail = fmt.Sprintf("%s is one step from your %s preference", job.Seniority, candidate.Seniority)
	}
	record("seniority", weightSeniority, senioritySignal, seniorityDetail)

	// Skill overlap: |cand ∩ job| / max(1, |job.skills|)
	overlap := skillOverlap(candidate.SkillSet(), job.Skills)
	skillSignal := float64(overlap) / math.Max(1, float64(len(job.Skills)))
	record("skill_overlap", weightSkills, skillSignal,
		fmt.Sprintf("%d of %d required skills in your profile", overlap, len(job.Skills)))

	// Freshness
	record("freshness", weightFreshness, job.FreshnessScore,
		freshnessDetail(job))

	// Salary fit: 1 if the job's maximum meets the candidate's minimum
	salarySignal := 0.0
	salaryDetail := "salary not disclosed"
	if candidate.MinSalary != nil && job.MaxSalary != nil {
		if *job.MaxSalary >= *candidate.MinSalary {
			salarySignal = 1.0
			salaryDetail = "salary range meets your minimum"
		} else {
			salaryDetail = "salary range below your minimum"
		}
	}
	record("salary_fit", weightSalary, salarySignal, salaryDetail)

	// Clamp to [0,1]
	if total > 1 {
		total = 1
	}
	if total < 0 {
		total = 0
	}
	return total, reasons
}

// persist upserts each scored pair. The newer score overwrites on re-match;
// usage timestamps are preserved by the storage layer's upsert.
func (s *Service) persist(ctx context.Context, candidate *models.CandidateProfile, results []Result) error {
	now := time.Now()
	for _, result := range results {
		match := &models.Match{
			ID:          models.NewMatchID(),
			CandidateID: candidate.ID,
			JobID:       result.Job.ID,
			Score:       result.Score,
			HardMatch:   result.HardMatch,
			Reasons:     result.Reasons,
			CreatedAt:   now,
			UpdatedAt:   now,
		}
		if err := s.matches.UpsertMatch(ctx, match); err != nil {
			return err
		}

		if s.events != nil {
			payload := map[string]interface{}{
				"candidate_id": candidate.ID,
				"job_id":       result.Job.ID,
				"score":        result.Score,
				"timestamp":    now,
			}
			common.SafeGo(s.logger, "publishMatchCreated", func() {
				s.events.Publish(context.Background(), interfaces.Event{
					Type:    interfaces.EventMatchCreated,
					Payload: payload,
				})
			})
		}
	}
	return s.candidates.MarkMatched(ctx, candidate.ID)
}

// companyNames resolves company display names for the candidate set
func (s *Service) companyNames(ctx context.Context, jobs []*models.Job) (map[string]string, error) {
	names := make(map[string]string)
	for _, job := range jobs {
		if _, done := names[job.CompanyID]; done {
			continue
		}
		company, err := s.companies.GetCompany(ctx, job.CompanyID)
		if err != nil {
			return nil, err
		}
		if company != nil {
			names[job.CompanyID] = company.Name
		}
	}
	return names, nil
}

// CosineSimilarity computes the cosine of the angle between two vectors,
// zero when either is empty or lengths differ.
func CosineSimilarity(a, b []float32) float64 {
	if len(a) == 0 || len(a) != len(b) {
		return 0
	}
	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}

// adjacentFamilies encodes which role families sit close enough that a job
// in one is a plausible half-credit match for a candidate preferring the other.
var adjacentFamilies = map[models.RoleFamily][]models.RoleFamily{
	models.RoleSoftwareEngineering:   {models.RoleDevOpsSRE, models.RoleDataEngineering, models.RoleEngineeringManagement},
	models.RoleDevOpsSRE:             {models.RoleSoftwareEngineering, models.RoleSecurity},
	models.RoleDataEngineering:       {models.RoleSoftwareEngineering, models.RoleDataScience},
	models.RoleDataScience:           {models.RoleDataEngineering},
	models.RoleEngineeringManagement: {models.RoleSoftwareEngineering, models.RoleProductManagement},
	models.RoleProductManagement:     {models.RoleEngineeringManagement, models.RoleDesign},
	models.RoleDesign:                {models.RoleProductManagement},
	models.RoleSecurity:              {models.RoleDevOpsSRE},
	models.RoleQA:                    {models.RoleSoftwareEngineering},
}

// adjacentToAny reports whether jobFamily is adjacent to any preferred family
func adjacentToAny(preferred []models.RoleFamily, jobFamily models.RoleFamily) bool {
	for _, family := range preferred {
		for _, adjacent := range adjacentFamilies[family] {
			if adjacent == jobFamily {
				return true
			}
		}
	}
	return false
}

func skillOverlap(candidateSkills map[string]struct{}, jobSkills []string) int {
	overlap := 0
	for _, skill := range jobSkills {
		if _, ok := candidateSkills[skill]; ok {
			overlap++
		}
	}
	return overlap
}

func freshnessDetail(job *models.Job) string {
	if job.PostedAt == nil {
		return "posting date unknown"
	}
	days := int(time.Since(*job.PostedAt).Hours() / 24)
	if days <= 1 {
		return "posted within the last day"
	}
	return fmt.Sprintf("posted %d days ago", days)
}
