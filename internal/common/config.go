// -----------------------------------------------------------------------
// Last Modified: Wednesday, 5th November 2025 6:08:59 pm
// Modified By: Bob McAllan
// -----------------------------------------------------------------------

package common

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/pelletier/go-toml/v2"
	"github.com/robfig/cron/v3"
	"github.com/ternarybob/arbor"
	"github.com/ternarybob/hunt/internal/interfaces"
)

// Config represents the application configuration
type Config struct {
	Environment string            `toml:"environment"`
	Server      ServerConfig      `toml:"server"`
	Storage     StorageConfig     `toml:"storage"`
	Logging     LoggingConfig     `toml:"logging"`
	Fetcher     FetcherConfig     `toml:"fetcher"`
	Discovery   DiscoveryConfig   `toml:"discovery"`
	Extractor   ExtractorConfig   `toml:"extractor"`
	Embeddings  EmbeddingsConfig  `toml:"embeddings"`
	LLM         LLMConfig         `toml:"llm"`
	Gemini      GeminiConfig      `toml:"gemini"`
	Claude      ClaudeConfig      `toml:"claude"`
	Matcher     MatcherConfig     `toml:"matcher"`
	Maintenance MaintenanceConfig `toml:"maintenance"`
	Pipeline    PipelineConfig    `toml:"pipeline"`
	Scheduler   SchedulerConfig   `toml:"scheduler"`
	Keys        KeysDirConfig     `toml:"keys"`
}

type ServerConfig struct {
	Host string `toml:"host"`
	Port int    `toml:"port"`
}

type StorageConfig struct {
	SQLite SQLiteConfig `toml:"sqlite"`
	Badger BadgerConfig `toml:"badger"`
}

// SQLiteConfig holds the relational store settings (the primary store)
type SQLiteConfig struct {
	Path           string `toml:"path"`
	CacheSizeMB    int    `toml:"cache_size_mb"`
	BusyTimeoutMS  int    `toml:"busy_timeout_ms"`
	WALMode        bool   `toml:"wal_mode"`
	ResetOnStartup bool   `toml:"reset_on_startup"`
	Environment    string `toml:"-"`
}

// BadgerConfig holds the KV store settings (scheduler state, secrets)
type BadgerConfig struct {
	Path     string `toml:"path"`
	InMemory bool   `toml:"in_memory"`
}

type LoggingConfig struct {
	Level      string   `toml:"level"`
	TimeFormat string   `toml:"time_format"`
	Output     []string `toml:"output"`
}

// FetcherConfig controls HTTP and rendered page acquisition
type FetcherConfig struct {
	UserAgents        []string          `toml:"user_agents"`
	PlainTimeoutSecs  int               `toml:"plain_timeout_secs"`
	RenderTimeoutSecs int               `toml:"render_timeout_secs"`
	MaxRetries        int               `toml:"max_retries"`
	RetryBaseMS       int               `toml:"retry_base_ms"`
	RetryAfterCapSecs int               `toml:"retry_after_cap_secs"`
	HostRatePerSec    float64           `toml:"host_rate_per_sec"`
	HostBurst         int               `toml:"host_burst"`
	ATSRatePerSec     float64           `toml:"ats_rate_per_sec"`
	ATSBurst          int               `toml:"ats_burst"`
	HostOverrides     map[string]string `toml:"host_overrides"` // host -> "rate,burst"
	RespectRobots     bool              `toml:"respect_robots"`
	BrowserPoolSize   int               `toml:"browser_pool_size"`
	BrowserHeadless   bool              `toml:"browser_headless"`
	BrowserNoSandbox  bool              `toml:"browser_no_sandbox"`
}

// DiscoveryConfig controls company discovery sources and queue intake
type DiscoveryConfig struct {
	EnabledSources      []string `toml:"enabled_sources"`
	SeedFile            string   `toml:"seed_file"`
	CatalogURL          string   `toml:"catalog_url"`
	TargetCountries     []string `toml:"target_countries"`
	DisallowedIndustry  []string `toml:"disallowed_industries"`
	DefaultProduceLimit int      `toml:"default_produce_limit"`
}

// ExtractorConfig controls per-ATS extraction and the LLM fallback
type ExtractorConfig struct {
	LLMMaxInputChars    int `toml:"llm_max_input_chars"`
	LLMRetryInputChars  int `toml:"llm_retry_input_chars"`
	WorkdayPageSize     int `toml:"workday_page_size"`
	EnrichSkipWindowMin int `toml:"enrich_skip_window_minutes"`
}

// EmbeddingsConfig controls the embedding backend
type EmbeddingsConfig struct {
	URL          string `toml:"url"`
	Model        string `toml:"model"`
	ModelVersion string `toml:"model_version"`
	Dimension    int    `toml:"dimension"`
	BatchSize    int    `toml:"batch_size"`
}

// GeminiConfig contains Google Gemini API configuration
type GeminiConfig struct {
	APIKey      string  `toml:"api_key"`
	Model       string  `toml:"model"`
	Temperature float32 `toml:"temperature"`
	MaxTokens   int     `toml:"max_tokens"`
}

// ClaudeConfig contains Anthropic Claude API configuration
type ClaudeConfig struct {
	APIKey      string  `toml:"api_key"`
	Model       string  `toml:"model"`
	Temperature float32 `toml:"temperature"`
	MaxTokens   int     `toml:"max_tokens"`
}

// LLMConfig selects the default provider for extraction calls
type LLMConfig struct {
	DefaultProvider string `toml:"default_provider"` // "gemini" or "claude"
}

// MatcherConfig controls candidate-job matching
type MatcherConfig struct {
	TopK             int     `toml:"top_k"`
	MinSimilarity    float64 `toml:"min_similarity"`
	MinScore         float64 `toml:"min_score"`
	PerCandidateSecs int     `toml:"per_candidate_secs"`
}

// MaintenanceConfig controls catalog re-verification
type MaintenanceConfig struct {
	VerifyRefreshDays int `toml:"verify_refresh_days"`
	CompanyBatchSize  int `toml:"company_batch_size"`
}

// PipelineConfig controls stage execution
type PipelineConfig struct {
	Workers              int `toml:"workers"`
	CompanyCrawlSecs     int `toml:"company_crawl_secs"`
	ProgressIntervalMS   int `toml:"progress_interval_ms"`
	SnapshotRetentionDays int `toml:"snapshot_retention_days"`
}

// SchedulerConfig controls the periodic full-pipeline driver
type SchedulerConfig struct {
	Enabled       bool `toml:"enabled"`
	IntervalHours int  `toml:"interval_hours"`
}

// KeysDirConfig points at the directory of TOML key/value files loaded into
// the KV store at startup (secrets referenced from config by {key-name})
type KeysDirConfig struct {
	Dir string `toml:"dir"`
}

// NewDefaultConfig creates a configuration with default values.
// Technical parameters are hardcoded here for production stability.
// Only user-facing settings should be exposed in hunt.toml.
func NewDefaultConfig() *Config {
	return &Config{
		Environment: "development",
		Server: ServerConfig{
			Host: "localhost",
			Port: 8080,
		},
		Storage: StorageConfig{
			SQLite: SQLiteConfig{
				Path:          "./data/hunt.db",
				CacheSizeMB:   64,
				BusyTimeoutMS: 5000,
				WALMode:       true,
			},
			Badger: BadgerConfig{
				Path: "./data/kv",
			},
		},
		Logging: LoggingConfig{
			Level:  "info",
			Output: []string{"console", "file"},
		},
		Fetcher: FetcherConfig{
			UserAgents: []string{
				"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0 Safari/537.36",
				"Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0 Safari/537.36",
				"Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0 Safari/537.36",
			},
			PlainTimeoutSecs:  30,
			RenderTimeoutSecs: 60,
			MaxRetries:        3,
			RetryBaseMS:       500,
			RetryAfterCapSecs: 120,
			HostRatePerSec:    1,
			HostBurst:         2,
			ATSRatePerSec:     5,
			ATSBurst:          10,
			RespectRobots:     true,
			BrowserPoolSize:   2,
			BrowserHeadless:   true,
			BrowserNoSandbox:  true,
		},
		Discovery: DiscoveryConfig{
			EnabledSources:      []string{"seed"},
			SeedFile:            "./data/seed_companies.toml",
			DefaultProduceLimit: 100,
		},
		Extractor: ExtractorConfig{
			LLMMaxInputChars:    24000,
			LLMRetryInputChars:  8000,
			WorkdayPageSize:     20,
			EnrichSkipWindowMin: 360,
		},
		Embeddings: EmbeddingsConfig{
			URL:          "http://localhost:11434",
			Model:        "all-minilm",
			ModelVersion: "1",
			Dimension:    384,
			BatchSize:    32,
		},
		LLM: LLMConfig{
			DefaultProvider: "gemini",
		},
		Gemini: GeminiConfig{
			Model:       "gemini-2.5-flash",
			Temperature: 0.1,
			MaxTokens:   8192,
		},
		Claude: ClaudeConfig{
			Model:       "claude-sonnet-4-20250514",
			Temperature: 0.1,
			MaxTokens:   8192,
		},
		Matcher: MatcherConfig{
			TopK:             200,
			MinSimilarity:    0.5,
			MinScore:         0.0,
			PerCandidateSecs: 10,
		},
		Maintenance: MaintenanceConfig{
			VerifyRefreshDays: 7,
			CompanyBatchSize:  50,
		},
		Pipeline: PipelineConfig{
			Workers:               8,
			CompanyCrawlSecs:      120,
			ProgressIntervalMS:    200,
			SnapshotRetentionDays: 30,
		},
		Scheduler: SchedulerConfig{
			Enabled:       false,
			IntervalHours: 6,
		},
		Keys: KeysDirConfig{
			Dir: "./keys",
		},
	}
}

// LoadFromFile loads configuration with priority: default -> file -> env -> CLI
// kvStorage can be nil (replacement will be skipped)
func LoadFromFile(kvStorage interfaces.KeyValueStorage, path string) (*Config, error) {
	if path == "" {
		return LoadFromFiles(kvStorage)
	}
	return LoadFromFiles(kvStorage, path)
}

// LoadFromFiles loads configuration from multiple files. Later files override
// earlier files. Priority system: CLI flags > Environment variables > Last
// config file > ... > First config file > Defaults.
// kvStorage can be nil (replacement will be skipped)
func LoadFromFiles(kvStorage interfaces.KeyValueStorage, paths ...string) (*Config, error) {
	// Start with defaults
	config := NewDefaultConfig()

	// Load and merge each config file in order (later files override earlier files)
	for i, path := range paths {
		if path == "" {
			continue
		}

		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
		}

		err = toml.Unmarshal(data, config)
		if err != nil {
			return nil, fmt.Errorf("failed to parse config file %s (file %d of %d): %w", path, i+1, len(paths), err)
		}
	}

	// Perform {key-name} replacement if KV storage is available
	if kvStorage != nil {
		ctx := context.Background()
		kvMap, err := kvStorage.GetAll(ctx)
		if err != nil {
			logger := arbor.NewLogger()
			logger.Warn().Err(err).Msg("Failed to fetch KV map for config replacement, skipping replacement")
		} else {
			logger := arbor.NewLogger()
			if err := ReplaceInStruct(config, kvMap, logger); err != nil {
				logger.Warn().Err(err).Msg("Failed to replace key references in config")
			} else {
				logger.Info().Int("keys", len(kvMap)).Msg("Applied key/value replacements to config")
			}
		}
	}

	// Apply environment variables (overrides all file configs and replacements)
	applyEnvOverrides(config)

	// SQLite reset guard needs to know the environment
	config.Storage.SQLite.Environment = config.Environment

	return config, nil
}

// applyEnvOverrides applies environment variable overrides to config
func applyEnvOverrides(config *Config) {
	// Environment configuration (highest priority: HUNT_ENV, fallback: GO_ENV)
	if env := os.Getenv("HUNT_ENV"); env != "" {
		config.Environment = env
	} else if env := os.Getenv("GO_ENV"); env != "" {
		config.Environment = env
	}

	// Server configuration
	if port := os.Getenv("HUNT_SERVER_PORT"); port != "" {
		if p, err := strconv.Atoi(port); err == nil {
			config.Server.Port = p
		}
	}
	if host := os.Getenv("HUNT_SERVER_HOST"); host != "" {
		config.Server.Host = host
	}

	// Storage configuration
	if sqlitePath := os.Getenv("HUNT_SQLITE_PATH"); sqlitePath != "" {
		config.Storage.SQLite.Path = sqlitePath
	}
	if badgerPath := os.Getenv("HUNT_BADGER_PATH"); badgerPath != "" {
		config.Storage.Badger.Path = badgerPath
	}

	// Logging configuration
	if level := os.Getenv("HUNT_LOG_LEVEL"); level != "" {
		config.Logging.Level = level
	}
	if output := os.Getenv("HUNT_LOG_OUTPUT"); output != "" {
		outputs := []string{}
		for _, o := range strings.Split(output, ",") {
			trimmed := strings.TrimSpace(o)
			if trimmed != "" {
				outputs = append(outputs, trimmed)
			}
		}
		if len(outputs) > 0 {
			config.Logging.Output = outputs
		}
	}

	// Fetcher configuration
	if ua := os.Getenv("CRAWL_USER_AGENT"); ua != "" {
		config.Fetcher.UserAgents = []string{ua}
	}
	if workers := os.Getenv("MAX_CONCURRENT_WORKERS"); workers != "" {
		if w, err := strconv.Atoi(workers); err == nil && w > 0 {
			config.Pipeline.Workers = w
		}
	}

	// Embeddings configuration
	if url := os.Getenv("HUNT_EMBEDDINGS_URL"); url != "" {
		config.Embeddings.URL = url
	}
	if model := os.Getenv("HUNT_EMBEDDINGS_MODEL"); model != "" {
		config.Embeddings.Model = model
	}
	if version := os.Getenv("EMBEDDING_MODEL_VERSION"); version != "" {
		config.Embeddings.ModelVersion = version
	}
	if dim := os.Getenv("EMBEDDING_DIM"); dim != "" {
		if d, err := strconv.Atoi(dim); err == nil && d > 0 {
			config.Embeddings.Dimension = d
		}
	}

	// LLM configuration
	if model := os.Getenv("LLM_MODEL"); model != "" {
		// A model string implies a provider (see llm.ProviderFactory.DetectProvider)
		if strings.HasPrefix(strings.ToLower(model), "claude") {
			config.LLM.DefaultProvider = "claude"
			config.Claude.Model = model
		} else {
			config.LLM.DefaultProvider = "gemini"
			config.Gemini.Model = model
		}
	}
	if apiKey := os.Getenv("HUNT_GEMINI_API_KEY"); apiKey != "" {
		config.Gemini.APIKey = apiKey
	}
	if apiKey := os.Getenv("HUNT_CLAUDE_API_KEY"); apiKey != "" {
		config.Claude.APIKey = apiKey
	}

	// Maintenance configuration
	if days := os.Getenv("VERIFY_REFRESH_DAYS"); days != "" {
		if d, err := strconv.Atoi(days); err == nil && d > 0 {
			config.Maintenance.VerifyRefreshDays = d
		}
	}

	// Scheduler configuration
	if hours := os.Getenv("DEFAULT_CRAWL_INTERVAL_HOURS"); hours != "" {
		if h, err := strconv.Atoi(hours); err == nil && h > 0 {
			config.Scheduler.IntervalHours = h
		}
	}
}

// ApplyFlagOverrides applies command-line flag overrides to config
func ApplyFlagOverrides(config *Config, port int, host string) {
	// Command-line flags have highest priority
	if port > 0 {
		config.Server.Port = port
	}
	if host != "" {
		config.Server.Host = host
	}
}

// ResolveAPIKey resolves an API key by name with environment variable priority.
// Resolution order: environment variables → KV store → config fallback → error.
// This ensures HUNT_* environment variables always take precedence.
func ResolveAPIKey(ctx context.Context, kvStorage interfaces.KeyValueStorage, name string, configFallback string) (string, error) {
	keyToEnvMapping := map[string][]string{
		"gemini_api_key":    {"HUNT_GEMINI_API_KEY", "GEMINI_API_KEY"},
		"anthropic_api_key": {"HUNT_CLAUDE_API_KEY"},
		"claude_api_key":    {"HUNT_CLAUDE_API_KEY"},
	}

	// For Claude, also check the standard ANTHROPIC_API_KEY env var
	if name == "anthropic_api_key" || name == "claude_api_key" {
		if envValue := os.Getenv("ANTHROPIC_API_KEY"); envValue != "" {
			return envValue, nil
		}
	}

	// Check environment variables (highest priority)
	if envVarNames, hasMappedEnv := keyToEnvMapping[name]; hasMappedEnv {
		for _, envVarName := range envVarNames {
			if envValue := os.Getenv(envVarName); envValue != "" {
				return envValue, nil
			}
		}
	}

	// Try to resolve from KV store (medium priority - file-based variables)
	if kvStorage != nil {
		apiKey, err := kvStorage.Get(ctx, name)
		if err == nil && apiKey != "" {
			return apiKey, nil
		}
	}

	// Fallback to config value (lowest priority)
	if configFallback != "" {
		return configFallback, nil
	}

	return "", fmt.Errorf("API key '%s' not found in environment, KV store, or config", name)
}

// ValidateIntervalHours validates a scheduler interval and confirms the
// derived cron expression parses. Minimum interval is 1 hour.
func ValidateIntervalHours(hours int) error {
	if hours < 1 {
		return fmt.Errorf("scheduler interval must be at least 1 hour, got %d", hours)
	}
	schedule := fmt.Sprintf("0 */%d * * *", hours)
	parser := cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow)
	if _, err := parser.Parse(schedule); err != nil {
		return fmt.Errorf("invalid derived cron expression %q: %w", schedule, err)
	}
	return nil
}

// IsProduction returns true if the environment is set to production
func (c *Config) IsProduction() bool {
	return strings.EqualFold(c.Environment, "production")
}

// DeepCloneConfig creates a deep copy of the Config struct. Long-lived
// goroutines read from a clone so a concurrent reload never races a reader.
func DeepCloneConfig(c *Config) *Config {
	if c == nil {
		return nil
	}

	clone := *c

	clone.Logging.Output = append([]string(nil), c.Logging.Output...)
	clone.Fetcher.UserAgents = append([]string(nil), c.Fetcher.UserAgents...)
	if c.Fetcher.HostOverrides != nil {
		clone.Fetcher.HostOverrides = make(map[string]string, len(c.Fetcher.HostOverrides))
		for k, v := range c.Fetcher.HostOverrides {
			clone.Fetcher.HostOverrides[k] = v
		}
	}
	clone.Discovery.EnabledSources = append([]string(nil), c.Discovery.EnabledSources...)
	clone.Discovery.TargetCountries = append([]string(nil), c.Discovery.TargetCountries...)
	clone.Discovery.DisallowedIndustry = append([]string(nil), c.Discovery.DisallowedIndustry...)

	return &clone
}
