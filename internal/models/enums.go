package models

// ATSType identifies the applicant tracking system backing a company's
// careers site, or the absence of a recognized one.
type ATSType string

const (
	ATSGreenhouse ATSType = "greenhouse"
	ATSLever      ATSType = "lever"
	ATSAshby      ATSType = "ashby"
	ATSWorkday    ATSType = "workday"
	ATSCustom     ATSType = "custom"
	ATSUnknown    ATSType = "unknown"
)

// RoleFamily is the closed set of 14 role families a job title normalizes to.
type RoleFamily string

const (
	RoleSoftwareEngineering   RoleFamily = "software_engineering"
	RoleEngineeringManagement RoleFamily = "engineering_management"
	RoleDataEngineering       RoleFamily = "data_engineering"
	RoleDataScience           RoleFamily = "data_science"
	RoleProductManagement     RoleFamily = "product_management"
	RoleDesign                RoleFamily = "design"
	RoleDevOpsSRE             RoleFamily = "devops_sre"
	RoleSecurity              RoleFamily = "security"
	RoleQA                    RoleFamily = "qa"
	RoleSales                 RoleFamily = "sales"
	RoleMarketing             RoleFamily = "marketing"
	RoleSupport               RoleFamily = "support"
	RoleOperations            RoleFamily = "operations"
	RoleOther                 RoleFamily = "other"
)

// AllRoleFamilies lists the closed set in classifier precedence order.
// Order matters: more specific families (e.g. engineering_management) must
// be checked before the families they would otherwise be absorbed into.
var AllRoleFamilies = []RoleFamily{
	RoleEngineeringManagement,
	RoleSoftwareEngineering,
	RoleDataEngineering,
	RoleDataScience,
	RoleProductManagement,
	RoleDesign,
	RoleDevOpsSRE,
	RoleSecurity,
	RoleQA,
	RoleSales,
	RoleMarketing,
	RoleSupport,
	RoleOperations,
	RoleOther,
}

// Seniority is the closed set of 9 seniority levels.
type Seniority string

const (
	SeniorityIntern    Seniority = "intern"
	SeniorityJunior    Seniority = "junior"
	SeniorityMid       Seniority = "mid"
	SeniorityNoLevel   Seniority = ""
	SenioritySenior    Seniority = "senior"
	SeniorityStaff     Seniority = "staff"
	SeniorityPrincipal Seniority = "principal"
	SeniorityDirector  Seniority = "director"
	SeniorityVP        Seniority = "vp"
	SeniorityCLevel    Seniority = "c_level"
)

// seniorityRank orders seniority for "one-step tolerance" comparisons.
// Absent seniority (empty string) is not ranked and never matches by tolerance.
var seniorityRank = map[Seniority]int{
	SeniorityIntern:    0,
	SeniorityJunior:    1,
	SeniorityMid:       2,
	SenioritySenior:    3,
	SeniorityStaff:     4,
	SeniorityPrincipal: 5,
	SeniorityDirector:  6,
	SeniorityVP:        7,
	SeniorityCLevel:    8,
}

// WithinOneStep reports whether s and other are equal or adjacent on the
// seniority ladder. Absent values on either side never satisfy tolerance.
func (s Seniority) WithinOneStep(other Seniority) bool {
	if s == "" || other == "" {
		return false
	}
	a, ok1 := seniorityRank[s]
	b, ok2 := seniorityRank[other]
	if !ok1 || !ok2 {
		return false
	}
	diff := a - b
	if diff < 0 {
		diff = -diff
	}
	return diff <= 1
}

// LocationType classifies where a job can be performed from.
type LocationType string

const (
	LocationRemote LocationType = "remote"
	LocationHybrid LocationType = "hybrid"
	LocationOnsite LocationType = "onsite"
	LocationAbsent LocationType = ""
)

// EmploymentType is the closed set of employment arrangements.
type EmploymentType string

const (
	EmploymentFullTime   EmploymentType = "full_time"
	EmploymentPartTime   EmploymentType = "part_time"
	EmploymentContract   EmploymentType = "contract"
	EmploymentFreelance  EmploymentType = "freelance"
	EmploymentInternship EmploymentType = "internship"
	EmploymentAbsent     EmploymentType = ""
)

// DelistReason records why a canonical job was deactivated.
type DelistReason string

const (
	DelistRemovedFromATS  DelistReason = "removed_from_ats"
	DelistPageNotFound    DelistReason = "page_not_found"
	DelistCompanyInactive DelistReason = "company_inactive"
)

// RunStatus is the lifecycle state of a pipeline run.
type RunStatus string

const (
	RunStatusRunning   RunStatus = "running"
	RunStatusCompleted RunStatus = "completed"
	RunStatusFailed    RunStatus = "failed"
)

// QueueItemStatus is the discovery queue item state machine.
type QueueItemStatus string

const (
	QueueItemPending    QueueItemStatus = "pending"
	QueueItemProcessing QueueItemStatus = "processing"
	QueueItemCompleted  QueueItemStatus = "completed"
	QueueItemFailed     QueueItemStatus = "failed"
	QueueItemSkipped    QueueItemStatus = "skipped"
	QueueItemReview     QueueItemStatus = "review"
)

// NoMatchReason classifies why a match query returned no results.
type NoMatchReason string

const (
	NoMatchEmptyCatalog       NoMatchReason = "empty_catalog"
	NoMatchNoVectorCandidates NoMatchReason = "no_vector_candidates"
	NoMatchAllFilteredHard    NoMatchReason = "all_filtered_hard"
	NoMatchAllFilteredScore   NoMatchReason = "all_filtered_score"
)

// EmbeddingDimension is the fixed dimensionality D of every stored vector.
const EmbeddingDimension = 384

// FreshnessHalfLifeDays is the half-life used by the freshness decay curve.
const FreshnessHalfLifeDays = 7.0
