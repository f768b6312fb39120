package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config holds all configuration options for the crawler
type Config struct {
	// Login credentials and client identity
	Instagram InstagramConfig `yaml:"instagram" json:"instagram"`

	// Platform endpoints and query hashes
	Endpoints EndpointsConfig `yaml:"endpoints" json:"endpoints"`

	// Pagination and job settings
	Crawl CrawlConfig `yaml:"crawl" json:"crawl"`

	// Rate limiting configuration
	RateLimit RateLimitConfig `yaml:"rate_limit" json:"rate_limit"`

	// Network retry configuration
	Retry RetryConfig `yaml:"retry" json:"retry"`

	// Output settings
	Output OutputConfig `yaml:"output" json:"output"`

	// Logging configuration
	Logging LoggingConfig `yaml:"logging" json:"logging"`
}

// InstagramConfig holds the login identity
type InstagramConfig struct {
	Username  string `yaml:"username" json:"username"`
	Password  string `yaml:"password,omitempty" json:"-"`
	UserAgent string `yaml:"user_agent" json:"user_agent"`
	// Account selects a stored credential set by username
	Account string `yaml:"account" json:"account"`
}

// EndpointsConfig holds the platform URLs and query hashes. It is passed
// explicitly to every component that issues requests and never mutated.
type EndpointsConfig struct {
	BaseURL        string `yaml:"base_url" json:"base_url"`
	LoginURL       string `yaml:"login_url" json:"login_url"`
	MediaHash      string `yaml:"media_hash" json:"media_hash"`
	QueryURL       string `yaml:"query_url" json:"query_url"`
	SearchURL      string `yaml:"search_url" json:"search_url"`
	TagExploreHash string `yaml:"tag_explore_hash" json:"tag_explore_hash"`
}

// CrawlConfig holds pagination settings
type CrawlConfig struct {
	// PageSize is the "first" variable of continuation queries
	PageSize int `yaml:"page_size" json:"page_size"`
	// MaxPages caps the pages fetched per profile, 0 means no cap
	MaxPages       int           `yaml:"max_pages" json:"max_pages"`
	ConcurrentJobs int           `yaml:"concurrent_jobs" json:"concurrent_jobs"`
	RequestTimeout time.Duration `yaml:"request_timeout" json:"request_timeout"`
	Checkpoint     bool          `yaml:"checkpoint" json:"checkpoint"`
}

// RateLimitConfig holds rate limiting configuration
type RateLimitConfig struct {
	RequestsPerMinute int `yaml:"requests_per_minute" json:"requests_per_minute"`
	BurstSize         int `yaml:"burst_size" json:"burst_size"`
}

// RetryConfig holds retry policy for the request engine
type RetryConfig struct {
	MaxAttempts    int           `yaml:"max_attempts" json:"max_attempts"`
	InitialBackoff time.Duration `yaml:"initial_backoff" json:"initial_backoff"`
	MaxBackoff     time.Duration `yaml:"max_backoff" json:"max_backoff"`
	Multiplier     float64       `yaml:"multiplier" json:"multiplier"`
}

// OutputConfig holds sink configuration
type OutputConfig struct {
	Directory string `yaml:"directory" json:"directory"`
	// Format is "json" (one file per record) or "jsonl" (one line per record)
	Format string `yaml:"format" json:"format"`
	// Filter is an optional jq expression applied to every record
	Filter            string `yaml:"filter" json:"filter"`
	OverwriteExisting bool   `yaml:"overwrite_existing" json:"overwrite_existing"`
	// KeepPartial emits the partial aggregate of a failed profile crawl
	KeepPartial bool `yaml:"keep_partial" json:"keep_partial"`
	Stdout      bool `yaml:"stdout" json:"stdout"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level      string `yaml:"level" json:"level"`
	File       string `yaml:"file" json:"file"`
	MaxSize    int    `yaml:"max_size" json:"max_size"`
	MaxBackups int    `yaml:"max_backups" json:"max_backups"`
	MaxAge     int    `yaml:"max_age" json:"max_age"`
	Compress   bool   `yaml:"compress" json:"compress"`
}

// DefaultEndpoints returns the production endpoints
func DefaultEndpoints() EndpointsConfig {
	return EndpointsConfig{
		BaseURL:        "https://www.instagram.com/",
		LoginURL:       "https://www.instagram.com/accounts/login/ajax/",
		MediaHash:      "e769aa130647d2354c40ea6a439bfc08",
		QueryURL:       "https://www.instagram.com/graphql/query/",
		SearchURL:      "https://www.instagram.com/web/search/topsearch/?context=blended&query=",
		TagExploreHash: "f92f56d47dc7a55b606908374b43a314",
	}
}

// ProfileURL is the landing page of a profile, which embeds the first page.
func (e EndpointsConfig) ProfileURL(userID string) string {
	base := e.BaseURL
	if !strings.HasSuffix(base, "/") {
		base += "/"
	}
	return base + url.PathEscape(userID) + "/"
}

// UserSearchURL builds a blended search request for accounts.
func (e EndpointsConfig) UserSearchURL(query string) string {
	return e.SearchURL + url.QueryEscape(query)
}

// TagSearchURL builds a blended search request for hashtags ("#" + query).
// A leading "#" in query is not doubled.
func (e EndpointsConfig) TagSearchURL(query string) string {
	return e.SearchURL + "%23" + url.QueryEscape(strings.TrimPrefix(query, "#"))
}

// Validate checks every endpoint is set and the URLs parse.
func (e EndpointsConfig) Validate() error {
	var errs []error
	urls := map[string]string{
		"base_url":   e.BaseURL,
		"login_url":  e.LoginURL,
		"query_url":  e.QueryURL,
		"search_url": e.SearchURL,
	}
	for name, raw := range urls {
		if raw == "" {
			errs = append(errs, fmt.Errorf("endpoint %s is required", name))
			continue
		}
		u, err := url.Parse(raw)
		if err != nil || u.Scheme == "" || u.Host == "" {
			errs = append(errs, fmt.Errorf("endpoint %s is not an absolute URL: %q", name, raw))
		}
	}
	if e.MediaHash == "" {
		errs = append(errs, errors.New("media_hash is required"))
	}
	if e.TagExploreHash == "" {
		errs = append(errs, errors.New("tag_explore_hash is required"))
	}
	return errors.Join(errs...)
}

// DefaultConfig returns a Config instance with sensible defaults
func DefaultConfig() *Config {
	return &Config{
		Instagram: InstagramConfig{
			UserAgent: "Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/121.0.0.0 Safari/537.36",
		},
		Endpoints: DefaultEndpoints(),
		Crawl: CrawlConfig{
			PageSize:       12,
			MaxPages:       500,
			ConcurrentJobs: 2,
			RequestTimeout: 30 * time.Second,
			Checkpoint:     true,
		},
		RateLimit: RateLimitConfig{
			RequestsPerMinute: 60,
			BurstSize:         5,
		},
		Retry: RetryConfig{
			MaxAttempts:    3,
			InitialBackoff: time.Second,
			MaxBackoff:     time.Minute,
			Multiplier:     2.0,
		},
		Output: OutputConfig{
			Directory: "./output",
			Format:    "json",
		},
		Logging: LoggingConfig{
			Level:      "info",
			MaxSize:    100,
			MaxBackups: 3,
			MaxAge:     7,
		},
	}
}

// LoadFromEnv loads configuration from IGCRAWLER_* environment variables
func (c *Config) LoadFromEnv() error {
	var errs []error

	setString := func(key string, dst *string) {
		if v := os.Getenv(key); v != "" {
			*dst = v
		}
	}
	setInt := func(key string, dst *int) {
		v := os.Getenv(key)
		if v == "" {
			return
		}
		n, err := strconv.Atoi(v)
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", key, err))
			return
		}
		*dst = n
	}
	setBool := func(key string, dst *bool) {
		if v := os.Getenv(key); v != "" {
			*dst = strings.EqualFold(v, "true") || v == "1"
		}
	}

	setString("IGCRAWLER_USERNAME", &c.Instagram.Username)
	setString("IGCRAWLER_PASSWORD", &c.Instagram.Password)
	setString("IGCRAWLER_USER_AGENT", &c.Instagram.UserAgent)
	setString("IGCRAWLER_ACCOUNT", &c.Instagram.Account)

	setString("IGCRAWLER_BASE_URL", &c.Endpoints.BaseURL)
	setString("IGCRAWLER_LOGIN_URL", &c.Endpoints.LoginURL)
	setString("IGCRAWLER_QUERY_URL", &c.Endpoints.QueryURL)
	setString("IGCRAWLER_SEARCH_URL", &c.Endpoints.SearchURL)
	setString("IGCRAWLER_MEDIA_HASH", &c.Endpoints.MediaHash)
	setString("IGCRAWLER_TAG_EXPLORE_HASH", &c.Endpoints.TagExploreHash)

	setInt("IGCRAWLER_MAX_PAGES", &c.Crawl.MaxPages)
	setInt("IGCRAWLER_CONCURRENT_JOBS", &c.Crawl.ConcurrentJobs)
	setInt("IGCRAWLER_REQUESTS_PER_MINUTE", &c.RateLimit.RequestsPerMinute)
	setInt("IGCRAWLER_MAX_RETRIES", &c.Retry.MaxAttempts)

	setString("IGCRAWLER_OUTPUT_DIR", &c.Output.Directory)
	setString("IGCRAWLER_OUTPUT_FORMAT", &c.Output.Format)
	setString("IGCRAWLER_FILTER", &c.Output.Filter)
	setBool("IGCRAWLER_KEEP_PARTIAL", &c.Output.KeepPartial)

	setString("IGCRAWLER_LOG_LEVEL", &c.Logging.Level)
	setString("IGCRAWLER_LOG_FILE", &c.Logging.File)

	return errors.Join(errs...)
}

// LoadFromFile loads configuration from a YAML file
func (c *Config) LoadFromFile(path string) error {
	// If path is empty, try default locations
	if path == "" {
		path = findConfigFile()
		if path == "" {
			return nil
		}
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}

	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("failed to parse config file: %w", err)
	}

	return nil
}

// ConfigLocations lists the files searched when no path is given, in order.
func ConfigLocations() []string {
	home := os.Getenv("HOME")
	return []string{
		"igcrawler.yaml",
		".igcrawler.yaml",
		".igcrawler.yml",
		filepath.Join(home, ".config", "igcrawler", "config.yaml"),
		filepath.Join(home, ".config", "igcrawler", "config.yml"),
		filepath.Join(home, ".igcrawler.yaml"),
	}
}

func findConfigFile() string {
	for _, loc := range ConfigLocations() {
		if _, err := os.Stat(loc); err == nil {
			return loc
		}
	}
	return ""
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	var errs []error

	if err := c.Endpoints.Validate(); err != nil {
		errs = append(errs, err)
	}

	if c.Crawl.PageSize <= 0 || c.Crawl.PageSize > 50 {
		errs = append(errs, errors.New("page size must be between 1 and 50"))
	}
	if c.Crawl.MaxPages < 0 {
		errs = append(errs, errors.New("max pages cannot be negative"))
	}
	if c.Crawl.ConcurrentJobs <= 0 {
		errs = append(errs, errors.New("concurrent jobs must be positive"))
	}
	if c.Crawl.ConcurrentJobs > 10 {
		errs = append(errs, errors.New("concurrent jobs should not exceed 10"))
	}
	if c.Crawl.RequestTimeout <= 0 {
		errs = append(errs, errors.New("request timeout must be positive"))
	}

	if c.RateLimit.RequestsPerMinute <= 0 {
		errs = append(errs, errors.New("requests per minute must be positive"))
	}
	if c.RateLimit.BurstSize <= 0 {
		errs = append(errs, errors.New("burst size must be positive"))
	}

	if c.Retry.MaxAttempts < 0 {
		errs = append(errs, errors.New("max retry attempts cannot be negative"))
	}
	if c.Retry.Multiplier < 1 {
		errs = append(errs, errors.New("retry multiplier must be at least 1"))
	}

	if !c.Output.Stdout && c.Output.Directory == "" {
		errs = append(errs, errors.New("output directory is required"))
	}
	switch strings.ToLower(c.Output.Format) {
	case "json", "jsonl":
	default:
		errs = append(errs, fmt.Errorf("invalid output format %q", c.Output.Format))
	}

	validLogLevels := map[string]bool{
		"debug": true, "info": true, "warn": true, "error": true, "disabled": true,
	}
	if !validLogLevels[strings.ToLower(c.Logging.Level)] {
		errs = append(errs, errors.New("invalid log level"))
	}

	return errors.Join(errs...)
}

// Save saves the configuration to a file
func (c *Config) Save(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// MergeCommandLineFlags merges command line flags into the configuration
func (c *Config) MergeCommandLineFlags(flags map[string]interface{}) {
	if v, ok := flags["username"].(string); ok && v != "" {
		c.Instagram.Username = v
	}
	if v, ok := flags["password"].(string); ok && v != "" {
		c.Instagram.Password = v
	}
	if v, ok := flags["account"].(string); ok && v != "" {
		c.Instagram.Account = v
	}
	if v, ok := flags["output"].(string); ok && v != "" {
		c.Output.Directory = v
	}
	if v, ok := flags["format"].(string); ok && v != "" {
		c.Output.Format = v
	}
	if v, ok := flags["filter"].(string); ok && v != "" {
		c.Output.Filter = v
	}
	if v, ok := flags["keep-partial"].(bool); ok {
		c.Output.KeepPartial = v
	}
	if v, ok := flags["stdout"].(bool); ok {
		c.Output.Stdout = v
	}
	if v, ok := flags["concurrent"].(int); ok && v > 0 {
		c.Crawl.ConcurrentJobs = v
	}
	if v, ok := flags["max-pages"].(int); ok && v >= 0 {
		c.Crawl.MaxPages = v
	}
	if v, ok := flags["page-size"].(int); ok && v > 0 {
		c.Crawl.PageSize = v
	}
	if v, ok := flags["checkpoint"].(bool); ok {
		c.Crawl.Checkpoint = v
	}
	if v, ok := flags["rate-limit"].(int); ok && v > 0 {
		c.RateLimit.RequestsPerMinute = v
	}
	if v, ok := flags["max-retries"].(int); ok && v >= 0 {
		c.Retry.MaxAttempts = v
	}
	if v, ok := flags["log-level"].(string); ok && v != "" {
		c.Logging.Level = v
	}
	if v, ok := flags["log-file"].(string); ok && v != "" {
		c.Logging.File = v
	}
}

// Load loads configuration from all sources with proper precedence
// Precedence order: Command line flags > Environment variables > .env file > Config file > Defaults
func Load(configPath string, flags map[string]interface{}) (*Config, error) {
	// .env files only fill variables that are not already set
	_ = godotenv.Load(".env")
	_ = godotenv.Load(filepath.Join(os.Getenv("HOME"), ".igcrawler.env"))

	config := DefaultConfig()

	if err := config.LoadFromFile(configPath); err != nil {
		return nil, fmt.Errorf("failed to load config file: %w", err)
	}

	if err := config.LoadFromEnv(); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	config.MergeCommandLineFlags(flags)

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return config, nil
}
