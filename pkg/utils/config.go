package utils

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"newslens/pkg/models"
)

// Configuration validation errors.
var (
	ErrNoCategories        = errors.New("fetch.categories must not be empty")
	ErrUnknownCategory     = errors.New("fetch.categories contains an unknown category")
	ErrInvalidPeriod       = errors.New("fetch.period must be at least 10s")
	ErrInvalidTarget       = errors.New("fetch.target_total must be at least 1")
	ErrInvalidWorkers      = errors.New("fetch.workers must be at least 1")
	ErrInvalidLogLevel     = errors.New("log.level must be one of: debug, info, warn, error")
	ErrInvalidLogFormat    = errors.New("log.format must be 'console' or 'json'")
	ErrInvalidRateLimit    = errors.New("newsapi.requests_per_second must be positive")
	ErrUnknownFeedCategory = errors.New("rss.feeds key is not a known category")
)

// defaultCategories is what a scheduled cycle fetches.
var defaultCategories = []string{
	"technology", "politics", "business", "entertainment", "sports", "health", "science",
}

type AuthConfig struct {
	JWTSecret   string
	JWTIssuer   string
	JWTDuration time.Duration
}

func LoadAuthConfig() AuthConfig {
	secret := firstEnv("JWT_SECRET", "NEWSLENS_JWT_SECRET")
	if secret == "" {
		// dev default (change for demo / production)
		secret = "dev-secret-change-me"
	}

	issuer := os.Getenv("NEWSLENS_JWT_ISSUER")
	if issuer == "" {
		issuer = "newslens"
	}

	cfg := AuthConfig{
		JWTSecret:   secret,
		JWTIssuer:   issuer,
		JWTDuration: 7 * 24 * time.Hour,
	}

	// hours; a bad value keeps the default
	if ttl := os.Getenv("NEWSLENS_JWT_TTL_HOURS"); ttl != "" {
		if h, err := strconv.Atoi(ttl); err == nil && h > 0 {
			cfg.JWTDuration = time.Duration(h) * time.Hour
		}
	}
	return cfg
}

// Config is the service configuration. Environment variables set the
// defaults and an optional YAML file (NEWSLENS_CONFIG) overrides them.
type Config struct {
	Addr            string        `yaml:"addr"`
	EventsAddr      string        `yaml:"events_addr"`
	NotifyAddr      string        `yaml:"notify_addr"`
	EnableScheduler bool          `yaml:"enable_scheduler"`
	RedisURL        string        `yaml:"redis_url"`
	NATSURL         string        `yaml:"nats_url"`
	Fetch           FetchConfig   `yaml:"fetch"`
	NewsAPI         NewsAPIConfig `yaml:"newsapi"`
	RSS             RSSConfig     `yaml:"rss"`
	Log             LogConfig     `yaml:"log"`
}

// FetchConfig controls one ingestion cycle.
type FetchConfig struct {
	Categories   []string      `yaml:"categories"`
	Period       time.Duration `yaml:"period"`
	TargetTotal  int           `yaml:"target_total"`
	Workers      int           `yaml:"workers"`
	CycleTimeout time.Duration `yaml:"cycle_timeout"`
}

type NewsAPIConfig struct {
	APIKey            string        `yaml:"api_key"`
	BaseURL           string        `yaml:"base_url"`
	Country           string        `yaml:"country"`
	Timeout           time.Duration `yaml:"timeout"`
	RequestsPerSecond float64       `yaml:"requests_per_second"`
}

// HasKey reports whether a usable API key is configured.
func (c NewsAPIConfig) HasKey() bool {
	k := strings.TrimSpace(c.APIKey)
	return k != "" && k != "your_newsapi_key_here"
}

// RSSConfig maps category names to feed URLs.
type RSSConfig struct {
	Feeds map[string]string `yaml:"feeds"`
}

type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// DefaultConfig returns the built-in defaults without reading the
// environment.
func DefaultConfig() Config {
	return Config{
		Addr:            ":5000",
		EventsAddr:      ":7070",
		EnableScheduler: true,
		Fetch: FetchConfig{
			Categories:   append([]string(nil), defaultCategories...),
			Period:       3 * time.Minute,
			TargetTotal:  70,
			Workers:      8,
			CycleTimeout: 2 * time.Minute,
		},
		NewsAPI: NewsAPIConfig{
			BaseURL:           "https://newsapi.org/v2",
			Country:           "us",
			Timeout:           10 * time.Second,
			RequestsPerSecond: 2,
		},
		Log: LogConfig{Level: "info", Format: "console"},
	}
}

// Load reads .env (if present), then the environment, then the YAML file
// named by NEWSLENS_CONFIG, and validates the result.
func Load() (Config, error) {
	// .env is optional
	_ = godotenv.Load()

	cfg := DefaultConfig()
	cfg.applyEnv()

	if path := os.Getenv("NEWSLENS_CONFIG"); path != "" {
		if err := cfg.MergeFile(path); err != nil {
			return Config{}, err
		}
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("configuration validation failed: %w", err)
	}
	return cfg, nil
}

func (c *Config) applyEnv() {
	if v := firstEnv("NEWSLENS_ADDR", "PORT"); v != "" {
		if !strings.Contains(v, ":") {
			v = ":" + v
		}
		c.Addr = v
	}
	if v, ok := os.LookupEnv("NEWSLENS_EVENTS_ADDR"); ok {
		// empty disables the tcp event stream
		c.EventsAddr = v
	}
	if v := os.Getenv("ENABLE_SCHEDULER"); v != "" {
		c.EnableScheduler = !strings.EqualFold(v, "false")
	}
	if v := os.Getenv("NEWSLENS_NOTIFY_ADDR"); v != "" {
		c.NotifyAddr = v
	}
	c.RedisURL = os.Getenv("REDIS_URL")
	c.NATSURL = os.Getenv("NATS_URL")

	c.NewsAPI.APIKey = os.Getenv("NEWS_API_KEY")
	if v := os.Getenv("NEWSLENS_NEWSAPI_URL"); v != "" {
		c.NewsAPI.BaseURL = v
	}
	if v := os.Getenv("NEWSLENS_COUNTRY"); v != "" {
		c.NewsAPI.Country = v
	}

	if v := os.Getenv("NEWSLENS_CATEGORIES"); v != "" {
		var cats []string
		for _, p := range strings.Split(v, ",") {
			if p = strings.TrimSpace(p); p != "" {
				cats = append(cats, p)
			}
		}
		c.Fetch.Categories = cats
	}
	if v := os.Getenv("NEWSLENS_FETCH_PERIOD"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			c.Fetch.Period = d
		}
	}
	if v := os.Getenv("NEWSLENS_FETCH_TARGET"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.Fetch.TargetTotal = n
		}
	}

	if v := os.Getenv("NEWSLENS_LOG_LEVEL"); v != "" {
		c.Log.Level = strings.ToLower(v)
	}
	if v := os.Getenv("NEWSLENS_LOG_FORMAT"); v != "" {
		c.Log.Format = strings.ToLower(v)
	}
}

// MergeFile overlays the YAML file at path. Fields absent from the file keep
// their current values.
func (c *Config) MergeFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("failed to parse YAML: %w", err)
	}
	return nil
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if len(c.Fetch.Categories) == 0 {
		return ErrNoCategories
	}
	for i, name := range c.Fetch.Categories {
		if _, ok := models.ParseCategory(name); !ok {
			return fmt.Errorf("%w: categories[%d]=%q", ErrUnknownCategory, i, name)
		}
	}
	if c.Fetch.Period < 10*time.Second {
		return ErrInvalidPeriod
	}
	if c.Fetch.TargetTotal < 1 {
		return ErrInvalidTarget
	}
	if c.Fetch.Workers < 1 {
		return ErrInvalidWorkers
	}
	if c.NewsAPI.RequestsPerSecond <= 0 {
		return ErrInvalidRateLimit
	}
	for name := range c.RSS.Feeds {
		if _, ok := models.ParseCategory(name); !ok {
			return fmt.Errorf("%w: %q", ErrUnknownFeedCategory, name)
		}
	}

	switch c.Log.Level {
	case "debug", "info", "warn", "error":
	default:
		return ErrInvalidLogLevel
	}
	switch c.Log.Format {
	case "console", "json":
	default:
		return ErrInvalidLogFormat
	}
	return nil
}

// CategoryValues returns the configured categories as typed values. Call after
// Validate.
func (c FetchConfig) CategoryValues() []models.Category {
	out := make([]models.Category, 0, len(c.Categories))
	for _, name := range c.Categories {
		if cat, ok := models.ParseCategory(name); ok {
			out = append(out, cat)
		}
	}
	return out
}

func firstEnv(keys ...string) string {
	for _, k := range keys {
		if v := os.Getenv(k); v != "" {
			return v
		}
	}
	return ""
}
