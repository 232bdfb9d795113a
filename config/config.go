package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"slices"
	"strings"
	"time"

	"dario.cat/mergo"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// DefaultsKey names the partners entry every partner inherits from
const DefaultsKey = "defaults"

// knownPartners get env bindings for their credentials even when no config
// file mentions them.
var knownPartners = []string{"b2sign"}

// Config holds all configuration for the application
type Config struct {
	Server    ServerConfig
	Log       LogConfig
	Cache     CacheConfig
	RateLimit RateLimitConfig
	Quote     QuoteConfig
	Browser   BrowserConfig
	Telemetry TelemetryConfig
	Partners  map[string]PartnerConfig
}

// ServerConfig holds server-related configuration
type ServerConfig struct {
	Port           string        `mapstructure:"port"`
	Environment    string        `mapstructure:"environment"`
	AllowedOrigins []string      `mapstructure:"allowed_origins"`
	RequestTimeout time.Duration `mapstructure:"request_timeout"`
}

type LogConfig struct {
	Level string `mapstructure:"level"`
}

// CacheConfig holds cache-related configuration
type CacheConfig struct {
	Type       string        `mapstructure:"type"` // "memory" or "lru"
	TTL        time.Duration `mapstructure:"ttl"`
	MaxEntries int           `mapstructure:"max_entries"`
}

// RateLimitConfig holds rate limiting configuration
type RateLimitConfig struct {
	PerIP int `mapstructure:"per_ip"` // requests per minute
	Burst int `mapstructure:"burst"`
}

// QuoteConfig holds orchestration settings
type QuoteConfig struct {
	AttemptTimeout time.Duration `mapstructure:"attempt_timeout"`
	DefaultPartner string        `mapstructure:"default_partner"`
	JobTTL         time.Duration `mapstructure:"job_ttl"`
	// MaxJobs bounds the async job store; it is independent of the quote cache.
	MaxJobs        int           `mapstructure:"max_jobs"`
}

// BrowserConfig holds the headless Chrome settings shared by all partners
type BrowserConfig struct {
	ExecPath       string `mapstructure:"exec_path"`
	Headless       bool   `mapstructure:"headless"`
	UserAgent      string `mapstructure:"user_agent"`
	ViewportWidth  int    `mapstructure:"viewport_width"`
	ViewportHeight int    `mapstructure:"viewport_height"`
}

type TelemetryConfig struct {
	OTLPEndpoint string `mapstructure:"otlp_endpoint"`
	ServiceName  string `mapstructure:"service_name"`
}

// PartnerConfig holds one partner's credentials and tuning. Zero values are
// filled from the "defaults" entry.
type PartnerConfig struct {
	Disabled bool   `mapstructure:"disabled"`
	Username string `mapstructure:"username"`
	Password string `mapstructure:"password"`

	PoolSize         int           `mapstructure:"pool_size"`
	LoginAttempts    int           `mapstructure:"login_attempts"`
	LoginTimeout     time.Duration `mapstructure:"login_timeout"`
	MaxLifetime      time.Duration `mapstructure:"max_lifetime"`
	MaxFailures      int           `mapstructure:"max_failures"`
	MaxMemoryMB      int           `mapstructure:"max_memory_mb"`
	WatchdogInterval time.Duration `mapstructure:"watchdog_interval"`

	CandidateTimeout time.Duration `mapstructure:"candidate_timeout"`
	ResolveAttempts  int           `mapstructure:"resolve_attempts"`
	NavigateTimeout  time.Duration `mapstructure:"navigate_timeout"`
	ResultsTimeout   time.Duration `mapstructure:"results_timeout"`

	MinInterval time.Duration `mapstructure:"min_interval"`
	Burst       int           `mapstructure:"burst"`
}

// Load loads configuration from environment variables and config files
func Load() (*Config, error) {
	if err := loadDotEnv(); err != nil {
		return nil, err
	}

	v := viper.New()

	// Set config name and paths
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./config")
	v.AddConfigPath("/etc/shipquote/")

	// Environment variable settings
	v.SetEnvPrefix("SHIPQUOTE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Set default values
	setDefaults(v)

	// Read config file (optional - will use env vars if file doesn't exist)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("unable to decode config: %w", err)
	}

	// Validate configuration
	if err := validate(&config); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &config, nil
}

// loadDotEnv reads .env outside production. Variables already set win.
func loadDotEnv() error {
	if strings.EqualFold(os.Getenv("SHIPQUOTE_SERVER_ENVIRONMENT"), "production") {
		return nil
	}
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("error reading .env: %w", err)
	}
	return nil
}

// setDefaults sets default configuration values
func setDefaults(v *viper.Viper) {
	// Server defaults
	v.SetDefault("server.port", "8080")
	v.SetDefault("server.environment", "development")
	v.SetDefault("server.allowed_origins", []string{"http://localhost:3000"})
	v.SetDefault("server.request_timeout", "120s")

	v.SetDefault("log.level", "info")

	// Cache defaults
	v.SetDefault("cache.type", "memory")
	v.SetDefault("cache.ttl", "30m")
	v.SetDefault("cache.max_entries", 2048)

	// Rate limit defaults
	v.SetDefault("ratelimit.per_ip", 30)
	v.SetDefault("ratelimit.burst", 5)

	v.SetDefault("quote.attempt_timeout", "90s")
	v.SetDefault("quote.default_partner", "b2sign")
	v.SetDefault("quote.job_ttl", "1h")
	v.SetDefault("quote.max_jobs", 1024)

	v.SetDefault("browser.headless", true)
	v.SetDefault("browser.viewport_width", 1366)
	v.SetDefault("browser.viewport_height", 900)

	v.SetDefault("telemetry.service_name", "shipquote")

	// Partner defaults
	v.SetDefault("partners.defaults.pool_size", 1)
	v.SetDefault("partners.defaults.login_attempts", 3)
	v.SetDefault("partners.defaults.login_timeout", "45s")
	v.SetDefault("partners.defaults.max_lifetime", "4h")
	v.SetDefault("partners.defaults.max_failures", 3)
	v.SetDefault("partners.defaults.max_memory_mb", 1024)
	v.SetDefault("partners.defaults.watchdog_interval", "1m")
	v.SetDefault("partners.defaults.candidate_timeout", "3s")
	v.SetDefault("partners.defaults.resolve_attempts", 2)
	v.SetDefault("partners.defaults.navigate_timeout", "30s")
	v.SetDefault("partners.defaults.results_timeout", "20s")
	v.SetDefault("partners.defaults.min_interval", "2s")
	v.SetDefault("partners.defaults.burst", 1)
	for _, id := range knownPartners {
		v.SetDefault("partners."+id+".username", "")
		v.SetDefault("partners."+id+".password", "")
		v.SetDefault("partners."+id+".disabled", false)
	}
}

// Partner returns the settings of one partner merged over the defaults entry
func (c *Config) Partner(id string) (PartnerConfig, error) {
	pc, ok := c.Partners[id]
	if !ok || id == DefaultsKey {
		return PartnerConfig{}, fmt.Errorf("partner %q is not configured", id)
	}
	if err := mergo.Merge(&pc, c.Partners[DefaultsKey]); err != nil {
		return PartnerConfig{}, fmt.Errorf("merge defaults into partner %q: %w", id, err)
	}
	return pc, nil
}

// EnabledPartners lists configured partners that are not disabled, sorted
func (c *Config) EnabledPartners() []string {
	ids := make([]string, 0, len(c.Partners))
	for id, pc := range c.Partners {
		if id == DefaultsKey || pc.Disabled {
			continue
		}
		ids = append(ids, id)
	}
	slices.Sort(ids)
	return ids
}

func (c *Config) IsProduction() bool {
	return strings.EqualFold(c.Server.Environment, "production")
}

// validate validates the configuration
func validate(config *Config) error {
	if config.Cache.Type != "memory" && config.Cache.Type != "lru" {
		return fmt.Errorf("cache type must be 'memory' or 'lru', got: %s", config.Cache.Type)
	}
	if config.Cache.TTL <= 0 {
		return fmt.Errorf("cache TTL must be positive, got: %s", config.Cache.TTL)
	}
	if config.Cache.Type == "lru" && config.Cache.MaxEntries <= 0 {
		return fmt.Errorf("cache max entries must be positive when cache type is 'lru'")
	}
	if config.Quote.AttemptTimeout <= 0 {
		return fmt.Errorf("quote attempt timeout must be positive, got: %s", config.Quote.AttemptTimeout)
	}
	if config.Quote.MaxJobs < 0 {
		return fmt.Errorf("quote max jobs must not be negative, got: %d", config.Quote.MaxJobs)
	}

	enabled := config.EnabledPartners()
	if len(enabled) == 0 {
		return fmt.Errorf("at least one partner must be enabled")
	}
	for _, id := range enabled {
		pc, err := config.Partner(id)
		if err != nil {
			return err
		}
		env := "SHIPQUOTE_PARTNERS_" + strings.ToUpper(id)
		if pc.Username == "" || pc.Password == "" {
			return fmt.Errorf("partner %s credentials are required (set %s_USERNAME and %s_PASSWORD)", id, env, env)
		}
		if pc.PoolSize <= 0 {
			return fmt.Errorf("partner %s pool size must be positive, got: %d", id, pc.PoolSize)
		}
	}
	if config.Quote.DefaultPartner != "" && !slices.Contains(enabled, config.Quote.DefaultPartner) {
		return fmt.Errorf("default partner %q is not enabled", config.Quote.DefaultPartner)
	}

	return nil
}
