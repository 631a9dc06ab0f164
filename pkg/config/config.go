package config

import (
	"errors"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config holds all configuration options for the media resolver
type Config struct {
	// Outbound HTTP fetches
	Fetch FetchConfig `yaml:"fetch" json:"fetch"`

	// Strategy cascade tuning
	Resolver ResolverConfig `yaml:"resolver" json:"resolver"`

	// External metadata extractor
	Metadata MetadataConfig `yaml:"metadata" json:"metadata"`

	// HTTP service
	Server ServerConfig `yaml:"server" json:"server"`

	// Logging configuration
	Logging LoggingConfig `yaml:"logging" json:"logging"`
}

// FetchConfig holds the browser-like client settings
type FetchConfig struct {
	UserAgent       string        `yaml:"user_agent" json:"user_agent"`
	Accept          string        `yaml:"accept" json:"accept"`
	AcceptLanguage  string        `yaml:"accept_language" json:"accept_language"`
	EmbedTimeout    time.Duration `yaml:"embed_timeout" json:"embed_timeout"`
	DocumentTimeout time.Duration `yaml:"document_timeout" json:"document_timeout"`
	MaxBodyBytes    int64         `yaml:"max_body_bytes" json:"max_body_bytes"`
	MaxAttempts     int           `yaml:"max_attempts" json:"max_attempts"`

	// EmbedRequestsPerMinute paces embed page fetches; 0 disables pacing
	EmbedRequestsPerMinute int `yaml:"embed_requests_per_minute" json:"embed_requests_per_minute"`
}

// ResolverConfig holds the cascade settings
type ResolverConfig struct {
	ImageExtensions    []string `yaml:"image_extensions" json:"image_extensions"`
	ImgBlocklist       []string `yaml:"img_blocklist" json:"img_blocklist"`
	DisabledStrategies []string `yaml:"disabled_strategies" json:"disabled_strategies"`
	MaxSearchDepth     int      `yaml:"max_search_depth" json:"max_search_depth"`
}

// MetadataConfig holds the external extractor settings
type MetadataConfig struct {
	Enabled bool          `yaml:"enabled" json:"enabled"`
	Binary  string        `yaml:"binary" json:"binary"`
	Timeout time.Duration `yaml:"timeout" json:"timeout"`
}

// ServerConfig holds HTTP service settings
type ServerConfig struct {
	Addr              string `yaml:"addr" json:"addr"`
	RequestsPerMinute int    `yaml:"requests_per_minute" json:"requests_per_minute"`

	// TrustedProxies are the IPs or CIDRs whose X-Forwarded-For is believed.
	// Empty means client addresses come from the TCP peer only.
	TrustedProxies []string `yaml:"trusted_proxies" json:"trusted_proxies"`
	MaxClients     int      `yaml:"max_clients" json:"max_clients"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level string `yaml:"level" json:"level"`
	File  string `yaml:"file" json:"file"`
}

// DefaultConfig returns a Config instance with sensible defaults
func DefaultConfig() *Config {
	return &Config{
		Fetch: FetchConfig{
			UserAgent:       "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36",
			Accept:          "text/html,application/xhtml+xml,application/xml;q=0.9,image/webp,*/*;q=0.8",
			AcceptLanguage:  "en-US,en;q=0.9",
			EmbedTimeout:    12 * time.Second,
			DocumentTimeout: 10 * time.Second,
			MaxBodyBytes:    8 << 20,
			MaxAttempts:     1,

			EmbedRequestsPerMinute: 30,
		},
		Resolver: ResolverConfig{
			ImageExtensions: []string{".jpg", ".jpeg", ".png", ".webp", ".gif", ".heic"},
			ImgBlocklist:    []string{"icon", "logo", "pixel", "tracker"},
			MaxSearchDepth:  48,
		},
		Metadata: MetadataConfig{
			Enabled: true,
			Binary:  "yt-dlp",
			Timeout: 15 * time.Second,
		},
		Server: ServerConfig{
			Addr:              ":8080",
			RequestsPerMinute: 60,
			MaxClients:        10000,
		},
		Logging: LoggingConfig{
			Level: "info",
		},
	}
}

// LoadFromEnv loads configuration from environment variables
func (c *Config) LoadFromEnv() error {
	var errs []error

	if ua := os.Getenv("POSTMEDIA_USER_AGENT"); ua != "" {
		c.Fetch.UserAgent = ua
	}
	if v := os.Getenv("POSTMEDIA_EMBED_TIMEOUT"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			errs = append(errs, fmt.Errorf("POSTMEDIA_EMBED_TIMEOUT: %w", err))
		} else {
			c.Fetch.EmbedTimeout = d
		}
	}
	if v := os.Getenv("POSTMEDIA_DOCUMENT_TIMEOUT"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			errs = append(errs, fmt.Errorf("POSTMEDIA_DOCUMENT_TIMEOUT: %w", err))
		} else {
			c.Fetch.DocumentTimeout = d
		}
	}
	if v := os.Getenv("POSTMEDIA_MAX_ATTEMPTS"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			errs = append(errs, fmt.Errorf("POSTMEDIA_MAX_ATTEMPTS: %w", err))
		} else {
			c.Fetch.MaxAttempts = n
		}
	}
	if v := os.Getenv("POSTMEDIA_EMBED_REQUESTS_PER_MINUTE"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			errs = append(errs, fmt.Errorf("POSTMEDIA_EMBED_REQUESTS_PER_MINUTE: %w", err))
		} else {
			c.Fetch.EmbedRequestsPerMinute = n
		}
	}
	if v := os.Getenv("POSTMEDIA_METADATA_ENABLED"); v != "" {
		c.Metadata.Enabled = strings.ToLower(v) == "true"
	}
	if v := os.Getenv("POSTMEDIA_YTDLP_BINARY"); v != "" {
		c.Metadata.Binary = v
	}
	if v := os.Getenv("POSTMEDIA_DISABLED_STRATEGIES"); v != "" {
		c.Resolver.DisabledStrategies = splitList(v)
	}
	if v := os.Getenv("POSTMEDIA_ADDR"); v != "" {
		c.Server.Addr = v
	}
	if v := os.Getenv("POSTMEDIA_REQUESTS_PER_MINUTE"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			errs = append(errs, fmt.Errorf("POSTMEDIA_REQUESTS_PER_MINUTE: %w", err))
		} else {
			c.Server.RequestsPerMinute = n
		}
	}
	if v := os.Getenv("POSTMEDIA_TRUSTED_PROXIES"); v != "" {
		c.Server.TrustedProxies = splitList(v)
	}
	if v := os.Getenv("POSTMEDIA_LOG_LEVEL"); v != "" {
		c.Logging.Level = v
	}
	if v := os.Getenv("POSTMEDIA_LOG_FILE"); v != "" {
		c.Logging.File = v
	}

	return errors.Join(errs...)
}

func splitList(v string) []string {
	var out []string
	for _, part := range strings.Split(v, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// LoadFromFile loads configuration from a YAML file
func (c *Config) LoadFromFile(path string) error {
	if path == "" {
		path = findConfigFile()
		if path == "" {
			return nil // No config file found, not an error
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

// findConfigFile searches for config file in standard locations
func findConfigFile() string {
	home := os.Getenv("HOME")
	locations := []string{
		".postmedia.yaml",
		".postmedia.yml",
		filepath.Join(home, ".config", "postmedia", "config.yaml"),
		filepath.Join(home, ".config", "postmedia", "config.yml"),
	}

	for _, loc := range locations {
		if _, err := os.Stat(loc); err == nil {
			return loc
		}
	}

	return ""
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	var errs []error

	if c.Fetch.UserAgent == "" {
		errs = append(errs, errors.New("user agent is required"))
	}
	if c.Fetch.EmbedTimeout <= 0 {
		errs = append(errs, errors.New("embed timeout must be positive"))
	}
	if c.Fetch.DocumentTimeout <= 0 {
		errs = append(errs, errors.New("document timeout must be positive"))
	}
	if c.Fetch.MaxAttempts < 1 {
		errs = append(errs, errors.New("max attempts must be at least 1"))
	}
	if c.Fetch.MaxBodyBytes < 0 {
		errs = append(errs, errors.New("max body bytes cannot be negative"))
	}
	if c.Fetch.EmbedRequestsPerMinute < 0 {
		errs = append(errs, errors.New("embed requests per minute cannot be negative"))
	}

	if len(c.Resolver.ImageExtensions) == 0 {
		errs = append(errs, errors.New("at least one image extension is required"))
	}
	for _, ext := range c.Resolver.ImageExtensions {
		if !strings.HasPrefix(ext, ".") {
			errs = append(errs, fmt.Errorf("image extension %q must start with a dot", ext))
		}
	}
	if c.Resolver.MaxSearchDepth <= 0 {
		errs = append(errs, errors.New("max search depth must be positive"))
	}

	if c.Metadata.Enabled {
		if c.Metadata.Binary == "" {
			errs = append(errs, errors.New("metadata binary is required when metadata is enabled"))
		}
		if c.Metadata.Timeout <= 0 {
			errs = append(errs, errors.New("metadata timeout must be positive"))
		}
	}

	if c.Server.RequestsPerMinute < 0 {
		errs = append(errs, errors.New("requests per minute cannot be negative"))
	}
	if c.Server.MaxClients < 0 {
		errs = append(errs, errors.New("max clients cannot be negative"))
	}
	for _, p := range c.Server.TrustedProxies {
		if !validProxy(p) {
			errs = append(errs, fmt.Errorf("trusted proxy %q is not an IP or CIDR", p))
		}
	}

	validLogLevels := map[string]bool{
		"debug": true, "info": true, "warn": true, "error": true, "disabled": true,
	}
	if !validLogLevels[strings.ToLower(c.Logging.Level)] {
		errs = append(errs, errors.New("invalid log level"))
	}

	return errors.Join(errs...)
}

func validProxy(p string) bool {
	if strings.Contains(p, "/") {
		_, _, err := net.ParseCIDR(p)
		return err == nil
	}
	return net.ParseIP(p) != nil
}

// StrategyEnabled reports whether the named strategy is not disabled
func (c *Config) StrategyEnabled(name string) bool {
	for _, d := range c.Resolver.DisabledStrategies {
		if strings.EqualFold(d, name) {
			return false
		}
	}
	return true
}

// Save saves the configuration to a file
func (c *Config) Save(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// MergeCommandLineFlags merges command line flags into the configuration
func (c *Config) MergeCommandLineFlags(flags map[string]interface{}) {
	if addr, ok := flags["addr"].(string); ok && addr != "" {
		c.Server.Addr = addr
	}
	if level, ok := flags["log-level"].(string); ok && level != "" {
		c.Logging.Level = level
	}
	if noMeta, ok := flags["no-metadata"].(bool); ok && noMeta {
		c.Metadata.Enabled = false
	}
	if attempts, ok := flags["max-attempts"].(int); ok && attempts > 0 {
		c.Fetch.MaxAttempts = attempts
	}
	if timeout, ok := flags["timeout"].(time.Duration); ok && timeout > 0 {
		c.Fetch.EmbedTimeout = timeout
		c.Fetch.DocumentTimeout = timeout
		c.Metadata.Timeout = timeout
	}
	if disabled, ok := flags["disable"].([]string); ok && len(disabled) > 0 {
		c.Resolver.DisabledStrategies = append(c.Resolver.DisabledStrategies, disabled...)
	}
}

// Load loads configuration from all sources with proper precedence
// Precedence order: Command line flags > Environment variables > .env file > Config file > Defaults
func Load(configPath string, flags map[string]interface{}) (*Config, error) {
	_ = godotenv.Load(".env")
	_ = godotenv.Load(filepath.Join(os.Getenv("HOME"), ".postmedia.env"))

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
