package config

import (
	"fmt"
	"os"
	"time"

	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v2"
)

// Config represents the complete application configuration
type Config struct {
	Server   ServerConfig   `yaml:"server" envconfig:"SERVER"`
	Security SecurityConfig `yaml:"security" envconfig:"SECURITY"`
	Logging  LoggingConfig  `yaml:"logging" envconfig:"LOGGING"`
	Cache    CacheConfig    `yaml:"cache" envconfig:"CACHE"`
	Provider ProviderConfig `yaml:"provider" envconfig:"PROVIDER"`
	Export   ExportConfig   `yaml:"export" envconfig:"EXPORT"`
}

// ServerConfig contains HTTP server configuration
type ServerConfig struct {
	Port            int           `yaml:"port" envconfig:"PORT" default:"8080"`
	ReadTimeout     time.Duration `yaml:"read_timeout" envconfig:"READ_TIMEOUT" default:"15s"`
	WriteTimeout    time.Duration `yaml:"write_timeout" envconfig:"WRITE_TIMEOUT" default:"15s"`
	IdleTimeout     time.Duration `yaml:"idle_timeout" envconfig:"IDLE_TIMEOUT" default:"60s"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" envconfig:"SHUTDOWN_TIMEOUT" default:"30s"`
	// InvokeTimeout bounds a single operation invocation on both the
	// synchronous and the streaming path. A handler that outlives it keeps
	// running but its result is discarded.
	InvokeTimeout time.Duration `yaml:"invoke_timeout" envconfig:"INVOKE_TIMEOUT" default:"60s"`
}

// SecurityConfig contains security-related configuration
type SecurityConfig struct {
	AllowedOrigins []string        `yaml:"allowed_origins" envconfig:"ALLOWED_ORIGINS" default:"*"`
	EnableCORS     bool            `yaml:"enable_cors" envconfig:"ENABLE_CORS" default:"true"`
	RateLimit      RateLimitConfig `yaml:"rate_limit" envconfig:"RATE_LIMIT"`
}

// RateLimitConfig contains rate limiting configuration
type RateLimitConfig struct {
	Enabled bool    `yaml:"enabled" envconfig:"ENABLED" default:"true"`
	RPS     float64 `yaml:"rps" envconfig:"RPS" default:"100"`
	Burst   int     `yaml:"burst" envconfig:"BURST" default:"50"`
}

// LoggingConfig contains logging configuration
type LoggingConfig struct {
	Level    string `yaml:"level" envconfig:"LEVEL" default:"info"`
	Format   string `yaml:"format" envconfig:"FORMAT" default:"json"`
	Output   string `yaml:"output" envconfig:"OUTPUT" default:"stdout"`
	FilePath string `yaml:"file_path" envconfig:"FILE_PATH" default:"logs/app.log"`
}

// CacheConfig selects the cache backend and the two TTL tiers.
// Mode is one of "memory", "redis" or "disabled"; redis mode requires Addr.
type CacheConfig struct {
	Mode string `yaml:"mode" envconfig:"MODE" default:"memory"`
	Addr string `yaml:"addr" envconfig:"ADDR" default:"localhost:6379"`
	// DefaultTTL suits slow-changing data (profiles, history, news).
	DefaultTTL time.Duration `yaml:"default_ttl" envconfig:"DEFAULT_TTL" default:"10m"`
	// VolatileTTL suits near-real-time data (quotes, market movers).
	VolatileTTL time.Duration `yaml:"volatile_ttl" envconfig:"VOLATILE_TTL" default:"15s"`
	// SweepInterval controls how often the memory backend evicts expired
	// entries. Entries also expire lazily on read.
	SweepInterval time.Duration `yaml:"sweep_interval" envconfig:"SWEEP_INTERVAL" default:"1m"`
}

// ProviderConfig configures the upstream market-data provider client.
type ProviderConfig struct {
	BaseURL   string        `yaml:"base_url" envconfig:"BASE_URL" default:"https://query1.finance.example.com"`
	Timeout   time.Duration `yaml:"timeout" envconfig:"TIMEOUT" default:"10s"`
	UserAgent string        `yaml:"user_agent" envconfig:"USER_AGENT" default:"fintools/1.0"`
	// RenderNews switches the news fetcher to a headless-browser renderer
	// for article pages that need JavaScript to produce readable content.
	RenderNews bool `yaml:"render_news" envconfig:"RENDER_NEWS" default:"false"`
	// BatchConcurrency bounds concurrent upstream calls per batch request.
	BatchConcurrency int `yaml:"batch_concurrency" envconfig:"BATCH_CONCURRENCY" default:"8"`
}

// ExportConfig configures file exports produced by operations.
type ExportConfig struct {
	Dir string `yaml:"dir" envconfig:"DIR" default:"exports"`
}

// Load loads configuration from environment variables and config file
func Load() (*Config, error) {
	var cfg Config

	if err := envconfig.Process("FINTOOLS", &cfg); err != nil {
		return nil, fmt.Errorf("failed to load config from env: %w", err)
	}

	if configFile := findConfigFile(); configFile != "" {
		fileCfg, err := loadFromFile(configFile)
		if err != nil {
			return nil, fmt.Errorf("failed to load config from file: %w", err)
		}
		cfg = merge(*fileCfg, cfg)
	}

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &cfg, nil
}

// loadFromFile loads configuration from a YAML file
func loadFromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// merge merges file config with env config (env takes precedence)
func merge(fileCfg, envCfg Config) Config {
	if envCfg.Server.Port == 0 {
		envCfg.Server.Port = fileCfg.Server.Port
	}
	if envCfg.Cache.Mode == "" {
		envCfg.Cache.Mode = fileCfg.Cache.Mode
	}
	if envCfg.Cache.Addr == "" {
		envCfg.Cache.Addr = fileCfg.Cache.Addr
	}
	if envCfg.Provider.BaseURL == "" {
		envCfg.Provider.BaseURL = fileCfg.Provider.BaseURL
	}
	return envCfg
}

// validate validates the configuration
func (c *Config) validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d", c.Server.Port)
	}

	if c.Server.InvokeTimeout <= 0 {
		return fmt.Errorf("invoke timeout must be positive")
	}

	switch c.Cache.Mode {
	case CacheModeMemory, CacheModeRedis, CacheModeDisabled:
	default:
		return fmt.Errorf("invalid cache mode: %q (expected %s, %s or %s)",
			c.Cache.Mode, CacheModeMemory, CacheModeRedis, CacheModeDisabled)
	}

	if c.Cache.Mode == CacheModeRedis && c.Cache.Addr == "" {
		return fmt.Errorf("cache mode %q requires an address", CacheModeRedis)
	}

	if c.Cache.DefaultTTL <= 0 || c.Cache.VolatileTTL <= 0 {
		return fmt.Errorf("cache TTLs must be positive")
	}

	if c.Provider.BaseURL == "" {
		return fmt.Errorf("provider base URL is required")
	}

	if c.Provider.BatchConcurrency <= 0 {
		c.Provider.BatchConcurrency = 8
	}

	return nil
}

// findConfigFile returns the path to the config file, if any
func findConfigFile() string {
	locations := []string{
		"config.yaml",
		"configs/config.yaml",
	}

	for _, location := range locations {
		if _, err := os.Stat(location); err == nil {
			return location
		}
	}

	return ""
}

// Default returns default configuration
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Port:            8080,
			ReadTimeout:     15 * time.Second,
			WriteTimeout:    15 * time.Second,
			IdleTimeout:     60 * time.Second,
			ShutdownTimeout: 30 * time.Second,
			InvokeTimeout:   60 * time.Second,
		},
		Security: SecurityConfig{
			AllowedOrigins: []string{"*"},
			EnableCORS:     true,
			RateLimit: RateLimitConfig{
				Enabled: true,
				RPS:     100,
				Burst:   50,
			},
		},
		Logging: LoggingConfig{
			Level:    "info",
			Format:   "json",
			Output:   "stdout",
			FilePath: "logs/app.log",
		},
		Cache: CacheConfig{
			Mode:          CacheModeMemory,
			Addr:          "localhost:6379",
			DefaultTTL:    10 * time.Minute,
			VolatileTTL:   15 * time.Second,
			SweepInterval: time.Minute,
		},
		Provider: ProviderConfig{
			BaseURL:          "https://query1.finance.example.com",
			Timeout:          10 * time.Second,
			UserAgent:        "fintools/1.0",
			BatchConcurrency: 8,
		},
		Export: ExportConfig{
			Dir: "exports",
		},
	}
}
