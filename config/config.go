package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all configuration for the application
type Config struct {
	Server     ServerConfig
	Retailers  RetailersConfig
	Scrape     ScrapeConfig
	Cache      CacheConfig
	ImageProxy ImageProxyConfig `mapstructure:"image_proxy"`
	Matching   MatchingConfig
	RateLimit  RateLimitConfig
	Log        LogConfig
}

// ServerConfig holds server-related configuration
type ServerConfig struct {
	Port           string   `mapstructure:"port"`
	Environment    string   `mapstructure:"environment"`
	AllowedOrigins []string `mapstructure:"allowed_origins"`
	PublicBaseURL  string   `mapstructure:"public_base_url"`
}

// RetailersConfig holds per-retailer upstream settings
type RetailersConfig struct {
	BQ          RetailerConfig `mapstructure:"bq"`
	Screwfix    RetailerConfig `mapstructure:"screwfix"`
	Toolstation RetailerConfig `mapstructure:"toolstation"`
}

// RetailerConfig holds the origin and request budget for one retailer
type RetailerConfig struct {
	BaseURL string        `mapstructure:"base_url"`
	Timeout time.Duration `mapstructure:"timeout"`
	Enabled bool          `mapstructure:"enabled"`
}

// ScrapeConfig holds settings shared by every outbound scraper
type ScrapeConfig struct {
	UserAgent         string  `mapstructure:"user_agent"`
	CloudflareBypass  bool    `mapstructure:"cloudflare_bypass"`
	RequestsPerSecond float64 `mapstructure:"requests_per_second"`
	Burst             int     `mapstructure:"burst"`
	Retries           int     `mapstructure:"retries"`
}

// CacheConfig holds cache-related configuration
type CacheConfig struct {
	Type     string        `mapstructure:"type"` // "memory" or "redis"
	RedisURL string        `mapstructure:"redis_url"`
	TTL      time.Duration `mapstructure:"ttl"`
}

// ImageProxyConfig holds image proxy configuration
type ImageProxyConfig struct {
	Path         string        `mapstructure:"path"`
	AllowedHosts []string      `mapstructure:"allowed_hosts"`
	CacheSize    int           `mapstructure:"cache_size"`
	CacheTTL     time.Duration `mapstructure:"cache_ttl"`
	MaxBytes     int64         `mapstructure:"max_bytes"`
}

// MatchingConfig holds product grouping parameters
type MatchingConfig struct {
	Threshold float64       `mapstructure:"threshold"`
	Weights   WeightsConfig `mapstructure:"weights"`
}

// WeightsConfig holds the per-signal similarity weights
type WeightsConfig struct {
	Term        float64 `mapstructure:"term"`
	Spec        float64 `mapstructure:"spec"`
	Partial     float64 `mapstructure:"partial"`
	Levenshtein float64 `mapstructure:"levenshtein"`
	Numbers     float64 `mapstructure:"numbers"`
}

// RateLimitConfig holds rate limiting configuration
type RateLimitConfig struct {
	PerIP int `mapstructure:"per_ip"` // requests per minute
}

// LogConfig holds logging configuration
type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"` // "text" or "json"
}

// DefaultBQHosts are the B&Q image CDN hosts the proxy may fetch from
var DefaultBQHosts = []string{
	"assets.diy.com", "www.diy.com", "media.diy.com",
	"images.diy.com", "img.diy.com",
	"s7g10.scene7.com", "s7g1.scene7.com", "scene7.com",
}

// Load loads configuration from environment variables and config files
func Load() (*Config, error) {
	v := viper.New()

	// Set config name and paths
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./config")
	v.AddConfigPath("/etc/pricescout/")

	// Environment variable settings
	v.SetEnvPrefix("PRICESCOUT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

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

	if err := validate(&config); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &config, nil
}

// setDefaults sets default configuration values
func setDefaults(v *viper.Viper) {
	// Server defaults
	v.SetDefault("server.port", "8080")
	v.SetDefault("server.environment", "development")
	v.SetDefault("server.allowed_origins", []string{"*"})
	v.SetDefault("server.public_base_url", "")

	// Retailer defaults
	v.SetDefault("retailers.bq.base_url", "https://www.diy.com")
	v.SetDefault("retailers.bq.timeout", "10s")
	v.SetDefault("retailers.bq.enabled", true)
	v.SetDefault("retailers.screwfix.base_url", "https://www.screwfix.com")
	v.SetDefault("retailers.screwfix.timeout", "10s")
	v.SetDefault("retailers.screwfix.enabled", true)
	v.SetDefault("retailers.toolstation.base_url", "https://www.toolstation.com")
	v.SetDefault("retailers.toolstation.timeout", "20s")
	v.SetDefault("retailers.toolstation.enabled", true)

	// Scraper defaults
	v.SetDefault("scrape.user_agent", "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/126.0.0.0 Safari/537.36")
	v.SetDefault("scrape.cloudflare_bypass", false)
	v.SetDefault("scrape.requests_per_second", 2.0)
	v.SetDefault("scrape.burst", 4)
	v.SetDefault("scrape.retries", 2)

	// Cache defaults
	v.SetDefault("cache.type", "memory")
	v.SetDefault("cache.redis_url", "")
	v.SetDefault("cache.ttl", "10m")

	// Image proxy defaults
	v.SetDefault("image_proxy.path", "/api/v1/image-proxy")
	v.SetDefault("image_proxy.allowed_hosts", DefaultBQHosts)
	v.SetDefault("image_proxy.cache_size", 256)
	v.SetDefault("image_proxy.cache_ttl", "24h")
	v.SetDefault("image_proxy.max_bytes", 5<<20)

	// Matching defaults
	v.SetDefault("matching.threshold", 0.5)
	v.SetDefault("matching.weights.term", 0.25)
	v.SetDefault("matching.weights.spec", 0.35)
	v.SetDefault("matching.weights.partial", 0.20)
	v.SetDefault("matching.weights.levenshtein", 0.15)
	v.SetDefault("matching.weights.numbers", 0.05)

	// Rate limit defaults
	v.SetDefault("ratelimit.per_ip", 120)

	// Log defaults
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "text")
}

// validate validates the configuration
func validate(config *Config) error {
	if config.Cache.Type != "memory" && config.Cache.Type != "redis" {
		return fmt.Errorf("cache type must be 'memory' or 'redis', got: %s", config.Cache.Type)
	}

	if config.Cache.Type == "redis" && config.Cache.RedisURL == "" {
		return fmt.Errorf("Redis URL is required when cache type is 'redis'")
	}

	for name, rc := range map[string]RetailerConfig{
		"bq":          config.Retailers.BQ,
		"screwfix":    config.Retailers.Screwfix,
		"toolstation": config.Retailers.Toolstation,
	} {
		if rc.Enabled && rc.BaseURL == "" {
			return fmt.Errorf("retailer %s is enabled but has no base_url", name)
		}
		if rc.Timeout <= 0 {
			return fmt.Errorf("retailer %s timeout must be positive, got: %s", name, rc.Timeout)
		}
	}

	if config.Matching.Threshold <= 0 || config.Matching.Threshold >= 1 {
		return fmt.Errorf("matching threshold must be between 0 and 1, got: %v", config.Matching.Threshold)
	}

	w := config.Matching.Weights
	if w.Term < 0 || w.Spec < 0 || w.Partial < 0 || w.Levenshtein < 0 || w.Numbers < 0 {
		return fmt.Errorf("matching weights must not be negative")
	}

	if config.Log.Format != "text" && config.Log.Format != "json" {
		return fmt.Errorf("log format must be 'text' or 'json', got: %s", config.Log.Format)
	}

	return nil
}
