// Package config loads and validates jobscout configuration via Viper.
package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/spf13/viper"

	"github.com/JakeFAU/ats-job-scout/internal/retry"
)

// Config captures all configuration knobs loaded via Viper.
type Config struct {
	Search     SearchConfig     `mapstructure:"search"`
	Direct     DirectConfig     `mapstructure:"direct"`
	HTTP       HTTPConfig       `mapstructure:"http"`
	Headless   HeadlessConfig   `mapstructure:"headless"`
	Pipeline   PipelineConfig   `mapstructure:"pipeline"`
	Validation ValidationConfig `mapstructure:"validation"`
	Enrich     EnrichConfig     `mapstructure:"enrich"`
	Storage    StorageConfig    `mapstructure:"storage"`
	Webhook    WebhookConfig    `mapstructure:"webhook"`
	PubSub     PubSubConfig     `mapstructure:"pubsub"`
	Metrics    MetricsConfig    `mapstructure:"metrics"`
	Logging    LoggingConfig    `mapstructure:"logging"`
	Serve      ServeConfig      `mapstructure:"serve"`
}

// SearchConfig drives query generation and the search engines.
type SearchConfig struct {
	Intent          string  `mapstructure:"intent"`
	MaxResults      int     `mapstructure:"max_results"`
	Concurrency     int     `mapstructure:"concurrency"`
	RetryAttempts   int     `mapstructure:"retry_attempts"`
	RetryBaseMs     int     `mapstructure:"retry_base_ms"`
	RetryMaxMs      int     `mapstructure:"retry_max_ms"`
	RetryJitter     bool    `mapstructure:"retry_jitter"`
	FallbackEnabled bool    `mapstructure:"fallback_enabled"`
	RequestsPerSec  float64 `mapstructure:"requests_per_second"`
	DuckDuckGoURL   string  `mapstructure:"duckduckgo_url"`
	GoogleURL       string  `mapstructure:"google_url"`
}

// DirectConfig lists the boards queried through platform APIs.
type DirectConfig struct {
	Enabled         bool     `mapstructure:"enabled"`
	CompaniesFile   string   `mapstructure:"companies_file"`
	Ashby           []string `mapstructure:"ashby"`
	Lever           []string `mapstructure:"lever"`
	Greenhouse      []string `mapstructure:"greenhouse"`
	SmartRecruiters []string `mapstructure:"smartrecruiters"`
}

// HTTPConfig configures page fetching.
type HTTPConfig struct {
	UserAgent        string  `mapstructure:"user_agent"`
	TimeoutSeconds   int     `mapstructure:"timeout_seconds"`
	MaxRetries       int     `mapstructure:"max_retries"`
	BackoffInitialMs int     `mapstructure:"backoff_initial_ms"`
	BackoffMaxMs     int     `mapstructure:"backoff_max_ms"`
	RespectRobots    bool    `mapstructure:"respect_robots"`
	PerHostRPS       float64 `mapstructure:"per_host_rps"`
	PerHostBurst     int     `mapstructure:"per_host_burst"`
	MaxBodyBytes     int     `mapstructure:"max_body_bytes"`
}

// HeadlessConfig configures the headless rendering subsystem.
type HeadlessConfig struct {
	Enabled         bool `mapstructure:"enabled"`
	MaxParallel     int  `mapstructure:"max_parallel"`
	NavTimeoutSec   int  `mapstructure:"nav_timeout_seconds"`
	SettleMs        int  `mapstructure:"settle_ms"`
	PromotionThresh int  `mapstructure:"promotion_threshold"`
}

// PipelineConfig bounds per-run work.
type PipelineConfig struct {
	Workers int `mapstructure:"workers"`
	// MaxJobs caps the postings fetched per run; 0 means no cap.
	MaxJobs int `mapstructure:"max_jobs"`
	// SkipFetchWithPayload parses API payloads without fetching the page.
	SkipFetchWithPayload bool `mapstructure:"skip_fetch_with_payload"`
}

// ValidationConfig tunes the job validator.
type ValidationConfig struct {
	ClosurePhrases      []string `mapstructure:"closure_phrases"`
	RequireKeywordMatch bool     `mapstructure:"require_keyword_match"`
}

// EnrichConfig tunes website resolution and contact scraping.
type EnrichConfig struct {
	Enabled            bool     `mapstructure:"enabled"`
	SearchFallback     bool     `mapstructure:"search_fallback"`
	ContactPaths       []string `mapstructure:"contact_paths"`
	ContactConcurrency int      `mapstructure:"contact_concurrency"`
}

// StorageConfig selects the artifact backend and names.
type StorageConfig struct {
	Backend    string `mapstructure:"backend"`
	Dir        string `mapstructure:"dir"`
	KeepBackup bool   `mapstructure:"keep_backup"`
	GCSBucket  string `mapstructure:"gcs_bucket"`
	Prefix     string `mapstructure:"prefix"`
	MasterPath string `mapstructure:"master_path"`
	DeltaPath  string `mapstructure:"delta_path"`
	ReportPath string `mapstructure:"report_path"`
}

// WebhookConfig configures delta delivery over HTTP.
type WebhookConfig struct {
	URL            string  `mapstructure:"url"`
	TimeoutSeconds int     `mapstructure:"timeout_seconds"`
	Attempts       int     `mapstructure:"attempts"`
	DelayMs        int     `mapstructure:"delay_ms"`
	Factor         float64 `mapstructure:"factor"`
	Batch          bool    `mapstructure:"batch"`
}

// PubSubConfig holds the optional Pub/Sub delivery target.
type PubSubConfig struct {
	ProjectID string `mapstructure:"project_id"`
	TopicName string `mapstructure:"topic_name"`
}

// MetricsConfig controls Pushgateway export after one-shot runs.
type MetricsConfig struct {
	PushgatewayURL string `mapstructure:"pushgateway_url"`
	JobName        string `mapstructure:"job_name"`
}

// LoggingConfig toggles zap development features.
type LoggingConfig struct {
	Development bool   `mapstructure:"development"`
	Level       string `mapstructure:"level"`
}

// ServeConfig configures the long-running mode.
type ServeConfig struct {
	Port       int    `mapstructure:"port"`
	Schedule   string `mapstructure:"schedule"`
	RunOnStart bool   `mapstructure:"run_on_start"`
	// APIKey, when set, is required on every control plane request.
	APIKey string `mapstructure:"api_key"`
}

// DefaultAshbyCompanies are boards that search engines index poorly.
var DefaultAshbyCompanies = []string{
	"pear", "deel", "cursor", "ramp", "notion", "linear",
	"onebrief", "articul8", "nightfall-ai", "melotech",
}

// Load builds a Config from defaults, an optional file and JOBSCOUT_*
// environment variables, then applies the companies overlay.
func Load(path string) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix("JOBSCOUT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := OverlayCompanies(&cfg, cfg.Direct.CompaniesFile); err != nil {
		return Config{}, err
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("search.intent", "")
	v.SetDefault("search.max_results", 20)
	v.SetDefault("search.concurrency", 2)
	v.SetDefault("search.retry_attempts", 2)
	v.SetDefault("search.retry_base_ms", 2000)
	v.SetDefault("search.retry_max_ms", 10000)
	v.SetDefault("search.retry_jitter", false)
	v.SetDefault("search.fallback_enabled", true)
	v.SetDefault("search.requests_per_second", 0.5)
	v.SetDefault("search.duckduckgo_url", "")
	v.SetDefault("search.google_url", "")
	v.SetDefault("direct.enabled", true)
	v.SetDefault("direct.companies_file", "")
	v.SetDefault("direct.ashby", DefaultAshbyCompanies)
	v.SetDefault("direct.lever", []string{})
	v.SetDefault("direct.greenhouse", []string{})
	v.SetDefault("direct.smartrecruiters", []string{})
	v.SetDefault("http.user_agent", "Mozilla/5.0 (compatible; jobscout/1.0; +https://github.com/JakeFAU/ats-job-scout)")
	v.SetDefault("http.timeout_seconds", 15)
	v.SetDefault("http.max_retries", 2)
	v.SetDefault("http.backoff_initial_ms", 250)
	v.SetDefault("http.backoff_max_ms", 4000)
	v.SetDefault("http.respect_robots", false)
	v.SetDefault("http.per_host_rps", 1.0)
	v.SetDefault("http.per_host_burst", 1)
	v.SetDefault("http.max_body_bytes", 5*1024*1024)
	v.SetDefault("headless.enabled", false)
	v.SetDefault("headless.max_parallel", 1)
	v.SetDefault("headless.nav_timeout_seconds", 25)
	v.SetDefault("headless.settle_ms", 750)
	v.SetDefault("headless.promotion_threshold", 2048)
	v.SetDefault("pipeline.workers", 4)
	v.SetDefault("pipeline.max_jobs", 0)
	v.SetDefault("pipeline.skip_fetch_with_payload", false)
	v.SetDefault("validation.closure_phrases", []string{})
	v.SetDefault("validation.require_keyword_match", false)
	v.SetDefault("enrich.enabled", true)
	v.SetDefault("enrich.search_fallback", true)
	v.SetDefault("enrich.contact_paths", []string{"/", "/careers", "/about", "/team"})
	v.SetDefault("enrich.contact_concurrency", 4)
	v.SetDefault("storage.backend", "local")
	v.SetDefault("storage.dir", "data")
	v.SetDefault("storage.keep_backup", true)
	v.SetDefault("storage.master_path", "master_jobs.csv")
	v.SetDefault("storage.delta_path", "delta_jobs.csv")
	v.SetDefault("storage.report_path", "last_run.json")
	v.SetDefault("webhook.url", "")
	v.SetDefault("webhook.timeout_seconds", 10)
	v.SetDefault("webhook.attempts", 3)
	v.SetDefault("webhook.delay_ms", 500)
	v.SetDefault("webhook.factor", 2.0)
	v.SetDefault("webhook.batch", false)
	v.SetDefault("metrics.pushgateway_url", "")
	v.SetDefault("metrics.job_name", "jobscout")
	v.SetDefault("logging.development", false)
	v.SetDefault("logging.level", "info")
	v.SetDefault("serve.port", 8080)
	v.SetDefault("serve.schedule", "@every 6h")
	v.SetDefault("serve.run_on_start", false)
	v.SetDefault("serve.api_key", "")
}

// Validate enforces required values and reasonable limits.
func (c Config) Validate() error {
	if c.Search.MaxResults <= 0 {
		return fmt.Errorf("search.max_results must be > 0")
	}
	if c.Search.Concurrency <= 0 {
		return fmt.Errorf("search.concurrency must be > 0")
	}
	if c.Pipeline.Workers <= 0 {
		return fmt.Errorf("pipeline.workers must be > 0")
	}
	if c.Pipeline.MaxJobs < 0 {
		return fmt.Errorf("pipeline.max_jobs must be >= 0")
	}
	if c.HTTP.TimeoutSeconds <= 0 {
		return fmt.Errorf("http.timeout_seconds must be > 0")
	}
	if c.Headless.Enabled && c.Headless.MaxParallel <= 0 {
		return fmt.Errorf("headless.max_parallel must be > 0 when headless is enabled")
	}
	switch c.Storage.Backend {
	case "local":
		if strings.TrimSpace(c.Storage.Dir) == "" {
			return fmt.Errorf("storage.dir is required for the local backend")
		}
	case "gcs":
		if c.Storage.GCSBucket == "" {
			return fmt.Errorf("storage.gcs_bucket is required for the gcs backend")
		}
	case "memory":
	default:
		return fmt.Errorf("storage.backend must be one of local, gcs, memory (got %q)", c.Storage.Backend)
	}
	if c.Storage.MasterPath == "" || c.Storage.DeltaPath == "" {
		return fmt.Errorf("storage.master_path and storage.delta_path are required")
	}
	if c.Storage.MasterPath == c.Storage.DeltaPath {
		return fmt.Errorf("storage.master_path and storage.delta_path must differ")
	}
	if c.Webhook.URL != "" {
		u, err := url.Parse(c.Webhook.URL)
		if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
			return fmt.Errorf("webhook.url must be an absolute http(s) URL")
		}
	}
	if (c.PubSub.ProjectID == "") != (c.PubSub.TopicName == "") {
		return fmt.Errorf("pubsub.project_id and pubsub.topic_name must be set together")
	}
	if c.Serve.Port <= 0 {
		return fmt.Errorf("serve.port must be > 0")
	}
	if _, err := cron.ParseStandard(c.Serve.Schedule); err != nil {
		return fmt.Errorf("serve.schedule: %w", err)
	}
	return nil
}

// SearchRetry returns the orchestrator's retry policy.
func (c Config) SearchRetry() retry.Policy {
	return retry.Policy{
		MaxAttempts: c.Search.RetryAttempts,
		BaseDelay:   time.Duration(c.Search.RetryBaseMs) * time.Millisecond,
		MaxDelay:    time.Duration(c.Search.RetryMaxMs) * time.Millisecond,
		Jitter:      c.Search.RetryJitter,
	}
}

// FetchRetry returns the page fetch retry policy. MaxRetries counts retries,
// so attempts are one more.
func (c Config) FetchRetry() retry.Policy {
	return retry.Policy{
		MaxAttempts: c.HTTP.MaxRetries + 1,
		BaseDelay:   time.Duration(c.HTTP.BackoffInitialMs) * time.Millisecond,
		MaxDelay:    time.Duration(c.HTTP.BackoffMaxMs) * time.Millisecond,
		Jitter:      true,
	}
}

// HTTPTimeout returns the per-request timeout.
func (c Config) HTTPTimeout() time.Duration {
	return time.Duration(c.HTTP.TimeoutSeconds) * time.Second
}
