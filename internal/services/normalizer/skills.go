package normalizer

import (
	"regexp"
	"strings"
)

// skillsVocabulary maps lowered token forms (after stemming) to normalized
// skill tags. Multiple surface forms collapse onto one tag.
var skillsVocabulary = map[string]string{
	"go":            "go",
	"golang":        "go",
	"python":        "python",
	"java":          "java",
	"kotlin":        "kotlin",
	"scala":         "scala",
	"rust":          "rust",
	"ruby":          "ruby",
	"rails":         "rails",
	"php":           "php",
	"javascript":    "javascript",
	"js":            "javascript",
	"typescript":    "typescript",
	"ts":            "typescript",
	"react":         "react",
	"vue":           "vue",
	"angular":       "angular",
	"node":          "nodejs",
	"nodejs":        "nodejs",
	"swift":         "swift",
	"objective-c":   "objective-c",
	"c":             "c",
	"c++":           "c++",
	"cpp":           "c++",
	"c#":            "c#",
	"dotnet":        ".net",
	".net":          ".net",
	"sql":           "sql",
	"postgresql":    "postgresql",
	"postgres":      "postgresql",
	"mysql":         "mysql",
	"sqlite":        "sqlite",
	"mongodb":       "mongodb",
	"redis":         "redis",
	"elasticsearch": "elasticsearch",
	"kafka":         "kafka",
	"rabbitmq":      "rabbitmq",
	"spark":         "spark",
	"airflow":       "airflow",
	"dbt":           "dbt",
	"snowflake":     "snowflake",
	"bigquery":      "bigquery",
	"aws":           "aws",
	"gcp":           "gcp",
	"azure":         "azure",
	"kubernetes":    "kubernetes",
	"k8s":           "kubernetes",
	"docker":        "docker",
	"terraform":     "terraform",
	"ansible":       "ansible",
	"linux":         "linux",
	"git":           "git",
	"graphql":       "graphql",
	"grpc":          "grpc",
	"rest":          "rest",
	"tensorflow":    "tensorflow",
	"pytorch":       "pytorch",
	"pandas":        "pandas",
	"numpy":         "numpy",
	"figma":         "figma",
	"sketch":        "sketch",
	"tableau":       "tableau",
	"looker":        "looker",
	"salesforce":    "salesforce",
	"hubspot":       "hubspot",
	"jira":          "jira",
}

// skillToken splits description text into candidate tokens. Keeps +, #, .
// and - so "c++", "c#", ".net", and "objective-c" survive tokenization.
var skillToken = regexp.MustCompile(`[a-zA-Z][a-zA-Z0-9+#.\-]*|\.[nN][eE][tT]`)

// ExtractSkills intersects description tokens against the curated skills
// vocabulary with lightweight stemming, returning a de-duplicated set in
// first-seen order.
func ExtractSkills(text string) []string {
	if text == "" {
		return nil
	}

	seen := map[string]bool{}
	var skills []string
	for _, token := range skillToken.FindAllString(text, -1) {
		key := strings.TrimRight(lower(token), ".") // sentence-final period
		normalized, ok := skillsVocabulary[key]
		if !ok {
			// Exact form misses fall back to the stemmed form
			normalized, ok = skillsVocabulary[stem(key)]
		}
		if !ok {
			continue
		}
		if !seen[normalized] {
			seen[normalized] = true
			skills = append(skills, normalized)
		}
	}
	return skills
}

// stem strips lightweight plural/possessive suffixes so "containers" matches
// the vocabulary's singular forms. Short tokens and symbol-bearing tokens are
// left alone ("k8s", "c++").
func stem(token string) string {
	if len(token) <= 3 || strings.ContainsAny(token, "+#.") {
		return token
	}
	token = strings.TrimSuffix(token, "'s")
	if strings.HasSuffix(token, "es") && len(token) > 4 {
		return token[:len(token)-2]
	}
	if strings.HasSuffix(token, "s") && !strings.HasSuffix(token, "ss") {
		return token[:len(token)-1]
	}
	return token
}

// lower is strings.ToLower, named for brevity at call sites in this package
func lower(s string) string {
	return strings.ToLower(s)
}
