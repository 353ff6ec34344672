package normalizer

import (
	"regexp"

	"github.com/ternarybob/hunt/internal/models"
)

// roleFamilyRule is one ordered classifier rule: the first pattern matching
// the lowercased title wins.
type roleFamilyRule struct {
	family  models.RoleFamily
	pattern *regexp.Regexp
}

// roleFamilyRules is the classifier table. ORDER IS LOAD-BEARING:
//
//	 1. engineering_management  - "Engineering Manager" must not land in SE
//	 2. devops_sre              - "DevOps Engineer" before the generic engineer rule
//	 3. security                - "Security Engineer" likewise
//	 4. qa                      - "QA Engineer", "Test Engineer" likewise
//	 5. data_engineering        - "Data Engineer" before data_science's "data" terms
//	 6. data_science            - scientist/ML/analyst titles
//	 7. software_engineering    - the broad engineer/developer bucket
//	 8. product_management      - "Product Manager" after EM so "Engineering Manager" is caught above
//	 9. design                  - designers and UX
//	10. sales                   - account executives and sales
//	11. marketing               - growth and marketing
//	12. support                 - customer support/success
//	13. operations              - people/finance/legal/ops catch-all
//	14. other                   - fallthrough, no pattern
var roleFamilyRules = []roleFamilyRule{
	{models.RoleEngineeringManagement, regexp.MustCompile(`engineering\s+(manager|lead|director)|(head|director|vp)\s+of\s+engineering`)},
	{models.RoleDevOpsSRE, regexp.MustCompile(`devops|site\s+reliability|sre\b|platform\s+engineer|infrastructure\s+engineer|cloud\s+engineer`)},
	{models.RoleSecurity, regexp.MustCompile(`security|appsec|infosec|penetration\s+tester`)},
	{models.RoleQA, regexp.MustCompile(`\bqa\b|quality\s+(assurance|engineer)|test\s+engineer|sdet\b`)},
	{models.RoleDataEngineering, regexp.MustCompile(`data\s+engineer|analytics\s+engineer|etl\b|data\s+platform|data\s+infrastructure`)},
	{models.RoleDataScience, regexp.MustCompile(`data\s+scien|machine\s+learning|\bml\b|\bai\b|deep\s+learning|data\s+analyst|business\s+intelligence`)},
	{models.RoleSoftwareEngineering, regexp.MustCompile(`software|developer|engineer|programmer|backend|back.end|frontend|front.end|full.stack|mobile|ios\b|android`)},
	{models.RoleProductManagement, regexp.MustCompile(`product\s+(manager|owner|lead)|\bpm\b|head\s+of\s+product`)},
	{models.RoleDesign, regexp.MustCompile(`design|\bux\b|\bui\b|user\s+(experience|interface)|researcher`)},
	{models.RoleSales, regexp.MustCompile(`sales|account\s+(executive|manager)|business\s+development|\bbdr\b|\bsdr\b`)},
	{models.RoleMarketing, regexp.MustCompile(`marketing|growth|content|seo\b|brand|communications`)},
	{models.RoleSupport, regexp.MustCompile(`support|customer\s+(success|service|experience)|help\s*desk`)},
	{models.RoleOperations, regexp.MustCompile(`operations|\bops\b|people|talent|recruit|finance|accounting|legal|counsel|office\s+manager|executive\s+assistant`)},
}

// ClassifyRoleFamily maps a job title to its role family via the ordered rule
// table. Unmatched titles fall to RoleOther.
func ClassifyRoleFamily(title string) models.RoleFamily {
	lowered := lower(title)
	for _, rule := range roleFamilyRules {
		if rule.pattern.MatchString(lowered) {
			return rule.family
		}
	}
	return models.RoleOther
}
