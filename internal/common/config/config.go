package config

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/edgecomet/blogkeywords/internal/common/configtypes"
	"github.com/edgecomet/blogkeywords/internal/common/yamlutil"
	"github.com/edgecomet/blogkeywords/pkg/pattern"
	"github.com/edgecomet/blogkeywords/pkg/types"
)

// Analyzer backends
const (
	BackendGemini = "gemini"
	BackendOpenAI = "openai"
)

const (
	DefaultUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/91.0.4472.124 Safari/537.36"

	defaultServerListen     = ":8090"
	defaultFetchTimeout     = 10 * time.Second
	defaultRetryTimeout     = 20 * time.Second
	defaultMaxBodySize      = 10 * 1024 * 1024
	defaultMaxArticles      = 10
	defaultArticleDelay     = 1 * time.Second
	defaultMinContentLength = 500
	defaultGeminiModel      = "gemini-2.0-flash-lite"
	defaultOpenAIModel      = "gpt-4o-mini"
	defaultMaxFiles         = 5
	defaultMaxRetries       = 3
	defaultRetryDelay       = 2 * time.Second
	defaultTemperature      = 0.2
	defaultTopP             = 0.8
	defaultTopK             = 40
	defaultMaxOutputTokens  = 1024
	defaultCacheTTL         = 1 * time.Hour
	defaultMetricsPath      = "/metrics"
	defaultMetricsNamespace = "blogkeywords"
)

// DefaultExcludePatterns are URL fragments that mark taxonomy, feed and admin pages
var DefaultExcludePatterns = []string{
	"/category/", "/tag/", "/author/", "/page/", "/wp-content/",
	"/feed/", "/comments/", "/trackback/", "/wp-json/",
	"/wp-admin/", "/login/", "/register/", "/search/",
}

// DefaultFallbackPatterns recognise article paths when no article container matched
var DefaultFallbackPatterns = []string{
	`~/(blog|article|post|news)/`,
	`~/\d{4}/\d{2}/`,
	`~/[^/]+/[^/]+/$`,
}

// Config is the application configuration
type Config struct {
	Workdir      string                          `yaml:"workdir"`
	Server       configtypes.ServerConfig        `yaml:"server"`
	Fetch        FetchConfig                     `yaml:"fetch"`
	Scrape       ScrapeConfig                    `yaml:"scrape"`
	Links        LinksConfig                     `yaml:"links"`
	Analyzer     AnalyzerConfig                  `yaml:"analyzer"`
	Cache        CacheConfig                     `yaml:"cache"`
	Redis        configtypes.RedisConfig         `yaml:"redis"`
	Log          configtypes.LogConfig           `yaml:"log"`
	Metrics      configtypes.MetricsConfig       `yaml:"metrics"`
	EventLogging *configtypes.EventLoggingConfig `yaml:"event_logging,omitempty"`
}

// FetchConfig controls how pages are downloaded
type FetchConfig struct {
	UserAgent      string         `yaml:"user_agent"`
	Timeout        types.Duration `yaml:"timeout"`
	RetryTimeout   types.Duration `yaml:"retry_timeout"`
	MaxBodySize    int            `yaml:"max_body_size"`
	SSRFProtection *bool          `yaml:"ssrf_protection,omitempty"` // Block requests to private IPs (default: true)
}

// SSRFEnabled reports whether private address protection is on
func (f *FetchConfig) SSRFEnabled() bool {
	return f.SSRFProtection == nil || *f.SSRFProtection
}

// ScrapeConfig bounds the article crawl and content cleaning
type ScrapeConfig struct {
	MaxArticles         int            `yaml:"max_articles"`
	ArticleDelay        types.Duration `yaml:"article_delay"`
	MinContentLength    int            `yaml:"min_content_length"`
	ReadabilityFallback *bool          `yaml:"readability_fallback,omitempty"`
}

// ReadabilityEnabled reports whether the readability extractor is tried before <body>
func (s *ScrapeConfig) ReadabilityEnabled() bool {
	return s.ReadabilityFallback == nil || *s.ReadabilityFallback
}

// LinksConfig customises article link filtering. Patterns use pkg/pattern syntax.
type LinksConfig struct {
	Exclude          []string `yaml:"exclude,omitempty"`     // replaces DefaultExcludePatterns
	ExcludeAdd       []string `yaml:"exclude_add,omitempty"` // appended to the effective exclude list
	FallbackInclude  []string `yaml:"fallback_include,omitempty"`
	compiledExclude  pattern.Set
	compiledFallback pattern.Set
}

// ExcludeSet returns the compiled exclusion patterns
func (l *LinksConfig) ExcludeSet() pattern.Set {
	return l.compiledExclude
}

// FallbackSet returns the compiled fallback article patterns
func (l *LinksConfig) FallbackSet() pattern.Set {
	return l.compiledFallback
}

// AnalyzerConfig configures the keyword extraction backend
type AnalyzerConfig struct {
	Backend         string         `yaml:"backend"`
	Model           string         `yaml:"model"`
	APIKey          string         `yaml:"api_key,omitempty"`
	APIKeyEnv       string         `yaml:"api_key_env"`
	EnvFile         string         `yaml:"env_file,omitempty"`
	BaseURL         string         `yaml:"base_url,omitempty"`
	MaxFiles        int            `yaml:"max_files"`
	MaxRetries      int            `yaml:"max_retries"`
	RetryDelay      types.Duration `yaml:"retry_delay"`
	Temperature     *float32       `yaml:"temperature,omitempty"`
	TopP            *float32       `yaml:"top_p,omitempty"`
	TopK            *float32       `yaml:"top_k,omitempty"`
	MaxOutputTokens int32          `yaml:"max_output_tokens"`
	PromptFile      string         `yaml:"prompt_file,omitempty"`
}

// CacheConfig configures the Redis page cache
type CacheConfig struct {
	Enabled     bool           `yaml:"enabled"`
	TTL         types.Duration `yaml:"ttl"`
	Compression string         `yaml:"compression,omitempty"` // none, snappy, lz4
}

// newConfig presets the fields whose zero value is a valid setting
// (max_articles: 0 saves only the main page, article_delay: 0 disables the
// pause), so only keys missing from the file fall back to the default.
func newConfig() *Config {
	return &Config{
		Scrape: ScrapeConfig{
			MaxArticles:  defaultMaxArticles,
			ArticleDelay: types.Duration(defaultArticleDelay),
		},
	}
}

// Default returns a configuration with every default applied
func Default() *Config {
	cfg := newConfig()
	cfg.applyDefaults()
	_ = cfg.compilePatterns()
	return cfg
}

// Load reads, defaults and validates configuration from a YAML file
func Load(configPath string) (*Config, error) {
	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	return Parse(data)
}

// Parse decodes configuration YAML strictly, applies defaults and validates
func Parse(data []byte) (*Config, error) {
	cfg := newConfig()
	if err := yamlutil.UnmarshalStrict(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	cfg.applyDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return cfg, nil
}

// applyDefaults applies default values to configuration fields
func (cfg *Config) applyDefaults() {
	if cfg.Workdir == "" {
		cfg.Workdir = filepath.Join(os.TempDir(), "blog-keywords")
	}
	if cfg.Server.Listen == "" {
		cfg.Server.Listen = defaultServerListen
	}

	// Fetch defaults
	if cfg.Fetch.UserAgent == "" {
		cfg.Fetch.UserAgent = DefaultUserAgent
	}
	if cfg.Fetch.Timeout == 0 {
		cfg.Fetch.Timeout = types.Duration(defaultFetchTimeout)
	}
	if cfg.Fetch.RetryTimeout == 0 {
		cfg.Fetch.RetryTimeout = types.Duration(defaultRetryTimeout)
	}
	if cfg.Fetch.MaxBodySize == 0 {
		cfg.Fetch.MaxBodySize = defaultMaxBodySize
	}

	// Scrape defaults; max_articles and article_delay are preset by newConfig
	if cfg.Scrape.MinContentLength == 0 {
		cfg.Scrape.MinContentLength = defaultMinContentLength
	}

	// Link filter defaults
	if len(cfg.Links.Exclude) == 0 {
		cfg.Links.Exclude = append([]string(nil), DefaultExcludePatterns...)
	}
	if len(cfg.Links.FallbackInclude) == 0 {
		cfg.Links.FallbackInclude = append([]string(nil), DefaultFallbackPatterns...)
	}

	// Analyzer defaults
	if cfg.Analyzer.Backend == "" {
		cfg.Analyzer.Backend = BackendGemini
	}
	if cfg.Analyzer.Model == "" {
		if cfg.Analyzer.Backend == BackendOpenAI {
			cfg.Analyzer.Model = defaultOpenAIModel
		} else {
			cfg.Analyzer.Model = defaultGeminiModel
		}
	}
	if cfg.Analyzer.APIKeyEnv == "" {
		if cfg.Analyzer.Backend == BackendOpenAI {
			cfg.Analyzer.APIKeyEnv = "OPENAI_API_KEY"
		} else {
			cfg.Analyzer.APIKeyEnv = "GEMINI_API_KEY"
		}
	}
	if cfg.Analyzer.MaxFiles == 0 {
		cfg.Analyzer.MaxFiles = defaultMaxFiles
	}
	if cfg.Analyzer.MaxRetries == 0 {
		cfg.Analyzer.MaxRetries = defaultMaxRetries
	}
	if cfg.Analyzer.RetryDelay == 0 {
		cfg.Analyzer.RetryDelay = types.Duration(defaultRetryDelay)
	}
	if cfg.Analyzer.Temperature == nil {
		cfg.Analyzer.Temperature = float32Ptr(defaultTemperature)
	}
	if cfg.Analyzer.TopP == nil {
		cfg.Analyzer.TopP = float32Ptr(defaultTopP)
	}
	if cfg.Analyzer.TopK == nil {
		cfg.Analyzer.TopK = float32Ptr(defaultTopK)
	}
	if cfg.Analyzer.MaxOutputTokens == 0 {
		cfg.Analyzer.MaxOutputTokens = defaultMaxOutputTokens
	}

	// Cache defaults
	if cfg.Cache.TTL == 0 {
		cfg.Cache.TTL = types.Duration(defaultCacheTTL)
	}
	if cfg.Cache.Compression == "" {
		cfg.Cache.Compression = types.CompressionSnappy
	}
	if cfg.Redis.Addr == "" {
		cfg.Redis.Addr = "localhost:6379"
	}

	// Log defaults: if both outputs are disabled, enable console
	if cfg.Log.Level == "" {
		cfg.Log.Level = configtypes.LogLevelInfo
	}
	if !cfg.Log.Console.Enabled && !cfg.Log.File.Enabled {
		cfg.Log.Console.Enabled = true
	}
	if cfg.Log.Console.Format == "" {
		cfg.Log.Console.Format = configtypes.LogFormatConsole
	}
	if cfg.Log.File.Format == "" {
		cfg.Log.File.Format = configtypes.LogFormatText
	}

	// Metrics defaults
	if cfg.Metrics.Path == "" {
		cfg.Metrics.Path = defaultMetricsPath
	}
	if cfg.Metrics.Namespace == "" {
		cfg.Metrics.Namespace = defaultMetricsNamespace
	}
}

// compilePatterns compiles link filter patterns into their runtime form
func (cfg *Config) compilePatterns() error {
	exclude, err := pattern.CompileAll(append(append([]string(nil), cfg.Links.Exclude...), cfg.Links.ExcludeAdd...))
	if err != nil {
		return fmt.Errorf("invalid links.exclude pattern: %w", err)
	}
	fallback, err := pattern.CompileAll(cfg.Links.FallbackInclude)
	if err != nil {
		return fmt.Errorf("invalid links.fallback_include pattern: %w", err)
	}
	cfg.Links.compiledExclude = exclude
	cfg.Links.compiledFallback = fallback
	return nil
}

var metricsNamespacePattern = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_]*$`)

// Validate checks configuration validity and compiles link patterns
func (cfg *Config) Validate() error {
	if err := configtypes.ValidateListenAddress(cfg.Server.Listen); err != nil {
		return fmt.Errorf("invalid server.listen: %w", err)
	}

	// Fetch validation
	if cfg.Fetch.Timeout <= 0 {
		return fmt.Errorf("fetch.timeout must be positive")
	}
	if cfg.Fetch.RetryTimeout < cfg.Fetch.Timeout {
		return fmt.Errorf("fetch.retry_timeout (%s) must be >= fetch.timeout (%s)", cfg.Fetch.RetryTimeout, cfg.Fetch.Timeout)
	}
	if cfg.Fetch.MaxBodySize < 0 {
		return fmt.Errorf("fetch.max_body_size must be >= 0, got %d", cfg.Fetch.MaxBodySize)
	}

	// Scrape validation
	if cfg.Scrape.MaxArticles < 0 {
		return fmt.Errorf("scrape.max_articles must be >= 0, got %d", cfg.Scrape.MaxArticles)
	}
	if cfg.Scrape.ArticleDelay < 0 {
		return fmt.Errorf("scrape.article_delay must be >= 0")
	}
	if cfg.Scrape.MinContentLength < 0 {
		return fmt.Errorf("scrape.min_content_length must be >= 0, got %d", cfg.Scrape.MinContentLength)
	}

	if err := cfg.compilePatterns(); err != nil {
		return err
	}

	// Analyzer validation
	switch cfg.Analyzer.Backend {
	case BackendGemini, BackendOpenAI:
	default:
		return fmt.Errorf("invalid analyzer.backend: %s (must be gemini or openai)", cfg.Analyzer.Backend)
	}
	if cfg.Analyzer.MaxFiles <= 0 {
		return fmt.Errorf("analyzer.max_files must be positive")
	}
	if cfg.Analyzer.MaxRetries <= 0 {
		return fmt.Errorf("analyzer.max_retries must be positive")
	}
	if cfg.Analyzer.RetryDelay < 0 {
		return fmt.Errorf("analyzer.retry_delay must be >= 0")
	}
	if t := *cfg.Analyzer.Temperature; t < 0 || t > 2 {
		return fmt.Errorf("analyzer.temperature must be between 0 and 2, got %v", t)
	}
	if p := *cfg.Analyzer.TopP; p < 0 || p > 1 {
		return fmt.Errorf("analyzer.top_p must be between 0 and 1, got %v", p)
	}
	if cfg.Analyzer.MaxOutputTokens < 0 {
		return fmt.Errorf("analyzer.max_output_tokens must be >= 0")
	}

	// Cache validation
	if cfg.Cache.Enabled {
		if cfg.Cache.TTL <= 0 {
			return fmt.Errorf("cache.ttl must be positive when cache enabled")
		}
		switch cfg.Cache.Compression {
		case types.CompressionNone, types.CompressionSnappy, types.CompressionLZ4:
		default:
			return fmt.Errorf("invalid cache.compression: %s (must be none, snappy, or lz4)", cfg.Cache.Compression)
		}
	}

	if err := validateLog(&cfg.Log); err != nil {
		return err
	}

	// Metrics validation
	if cfg.Metrics.Enabled {
		if err := configtypes.ValidateListenAddress(cfg.Metrics.Listen); err != nil {
			return fmt.Errorf("invalid metrics.listen: %w", err)
		}
		_, metricsPort, _ := configtypes.ParseListenAddress(cfg.Metrics.Listen)
		_, serverPort, _ := configtypes.ParseListenAddress(cfg.Server.Listen)
		if metricsPort == serverPort {
			return fmt.Errorf("metrics.listen port (%d) must differ from server.listen port (%d) when metrics enabled", metricsPort, serverPort)
		}
	}
	if !strings.HasPrefix(cfg.Metrics.Path, "/") {
		return fmt.Errorf("invalid metrics.path: %s (must start with /)", cfg.Metrics.Path)
	}
	if !metricsNamespacePattern.MatchString(cfg.Metrics.Namespace) {
		return fmt.Errorf("invalid metrics.namespace: %s (must match [a-zA-Z_][a-zA-Z0-9_]*)", cfg.Metrics.Namespace)
	}

	if cfg.EventLogging != nil && cfg.EventLogging.File.Enabled && cfg.EventLogging.File.Path == "" {
		return fmt.Errorf("event_logging.file.path is required when event file logging is enabled")
	}

	return nil
}

func validateLog(log *configtypes.LogConfig) error {
	validLogLevels := map[string]bool{
		configtypes.LogLevelDebug: true,
		configtypes.LogLevelInfo:  true,
		configtypes.LogLevelWarn:  true,
		configtypes.LogLevelError: true,
	}
	if !validLogLevels[log.Level] {
		return fmt.Errorf("invalid log.level: %s (must be debug, info, warn, or error)", log.Level)
	}

	if log.Console.Enabled && log.Console.Format != configtypes.LogFormatJSON && log.Console.Format != configtypes.LogFormatConsole {
		return fmt.Errorf("invalid log.console.format: %s (must be json or console)", log.Console.Format)
	}

	if log.File.Enabled {
		if log.File.Path == "" {
			return fmt.Errorf("log.file.path must be specified when file logging is enabled")
		}
		if log.File.Format != configtypes.LogFormatJSON && log.File.Format != configtypes.LogFormatText {
			return fmt.Errorf("invalid log.file.format: %s (must be json or text)", log.File.Format)
		}
		if log.File.Rotation.MaxSize < 0 || log.File.Rotation.MaxAge < 0 || log.File.Rotation.MaxBackups < 0 {
			return fmt.Errorf("log.file.rotation values must be >= 0")
		}
	}

	return nil
}

// GetConfigPath resolves the config file path
func GetConfigPath(path string) (string, error) {
	if path == "" {
		return "", fmt.Errorf("config path cannot be empty")
	}

	absPath, err := filepath.Abs(path)
	if err != nil {
		return "", fmt.Errorf("failed to resolve config path: %w", err)
	}

	if _, err := os.Stat(absPath); os.IsNotExist(err) {
		return "", fmt.Errorf("config file does not exist: %s", absPath)
	}

	return absPath, nil
}

func float32Ptr(v float32) *float32 {
	return &v
}
