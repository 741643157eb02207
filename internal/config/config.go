package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// envPrefix namespaces environment overrides, e.g. TEXTCAST_DATABASE_PATH
const envPrefix = "TEXTCAST_"

type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Database  DatabaseConfig  `yaml:"database"`
	Storage   StorageConfig   `yaml:"storage"`
	Pricing   PricingConfig   `yaml:"pricing"`
	Import    ImportConfig    `yaml:"import"`
	Campaign  CampaignConfig  `yaml:"campaign"`
	Sandbox   SandboxConfig   `yaml:"sandbox"`
	RateLimit RateLimitConfig `yaml:"rate_limit"`
	Metrics   MetricsConfig   `yaml:"metrics"`
	Logging   LoggingConfig   `yaml:"logging"`
}

type ServerConfig struct {
	ListenAddr string `yaml:"listen_addr"`
	// APIKey, when set, is required in the X-API-Key header of every API call
	APIKey string `yaml:"api_key"`
	// APIKeyHash is a bcrypt hash accepted in place of a plain APIKey
	APIKeyHash string `yaml:"api_key_hash"`
}

type DatabaseConfig struct {
	Path string `yaml:"path"`
}

type StorageConfig struct {
	// BoltPath holds templates and campaign drafts
	BoltPath string `yaml:"bolt_path"`
}

// DefaultSegmentPrice is the per-segment price used when segment_price is
// absent. An explicit zero is kept.
const DefaultSegmentPrice = 0.0075

type PricingConfig struct {
	SegmentSize  int     `yaml:"segment_size"`
	SegmentPrice float64 `yaml:"segment_price"`
}

type ImportConfig struct {
	MaxRows     int   `yaml:"max_rows"`
	MaxBytes    int64 `yaml:"max_bytes"`
	ErrorSample int   `yaml:"error_sample"`
}

type CampaignConfig struct {
	BlockOverLimit bool   `yaml:"block_over_limit"`
	OptOutText     string `yaml:"opt_out_text"`
	LinkBase       string `yaml:"link_base"`
}

// SandboxConfig controls capture of submitted payloads in place of transmission
type SandboxConfig struct {
	Enabled          bool    `yaml:"enabled"`
	SimulateErrors   bool    `yaml:"simulate_errors"`
	ErrorProbability float64 `yaml:"error_probability"`
}

// RateLimitConfig caps messages handed off by campaign submissions
type RateLimitConfig struct {
	Enabled bool         `yaml:"enabled"`
	Global  *LimitConfig `yaml:"global"`
	Actor   *LimitConfig `yaml:"actor"`
}

// LimitConfig contains limit values; zero means unlimited
type LimitConfig struct {
	MessagesPerHour int `yaml:"messages_per_hour"`
	MessagesPerDay  int `yaml:"messages_per_day"`
}

type MetricsConfig struct {
	Enabled    bool     `yaml:"enabled"`
	ListenAddr string   `yaml:"listen_addr"`
	Path       string   `yaml:"path"`
	AllowedIPs []string `yaml:"allowed_ips"`
}

type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// Load reads the YAML file at path, applies TEXTCAST_* environment
// overrides and defaults, and validates the result. An empty path yields
// the defaults plus environment overrides.
func Load(path string) (*Config, error) {
	cfg := &Config{Pricing: PricingConfig{SegmentPrice: DefaultSegmentPrice}}

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file: %w", err)
		}
	}

	if err := applyEnv(cfg); err != nil {
		return nil, fmt.Errorf("invalid environment override: %w", err)
	}

	setDefaults(cfg)

	if err := validate(cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

func setDefaults(cfg *Config) {
	if cfg.Server.ListenAddr == "" {
		cfg.Server.ListenAddr = ":8080"
	}
	if cfg.Database.Path == "" {
		cfg.Database.Path = "/var/lib/textcast/contacts.db"
	}
	if cfg.Storage.BoltPath == "" {
		cfg.Storage.BoltPath = "/var/lib/textcast/drafts.db"
	}
	if cfg.Pricing.SegmentSize == 0 {
		cfg.Pricing.SegmentSize = 160
	}
	if cfg.Import.MaxRows == 0 {
		cfg.Import.MaxRows = 2000
	}
	if cfg.Import.MaxBytes == 0 {
		cfg.Import.MaxBytes = 10 * 1024 * 1024
	}
	if cfg.Import.ErrorSample == 0 {
		cfg.Import.ErrorSample = 5
	}
	if cfg.Campaign.OptOutText == "" {
		cfg.Campaign.OptOutText = "Reply STOP to opt out"
	}
	if cfg.Metrics.ListenAddr == "" {
		cfg.Metrics.ListenAddr = ":9090"
	}
	if cfg.Metrics.Path == "" {
		cfg.Metrics.Path = "/metrics"
	}
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = "json"
	}
}

func validate(cfg *Config) error {
	if cfg.Server.APIKeyHash != "" && !strings.HasPrefix(cfg.Server.APIKeyHash, "$2") {
		return fmt.Errorf("server.api_key_hash must be a bcrypt hash")
	}
	if cfg.Pricing.SegmentSize < 1 {
		return fmt.Errorf("pricing.segment_size must be positive")
	}
	if cfg.Pricing.SegmentPrice < 0 {
		return fmt.Errorf("pricing.segment_price must not be negative")
	}
	if cfg.Import.MaxRows < 1 {
		return fmt.Errorf("import.max_rows must be positive")
	}
	if cfg.Import.MaxBytes < 1 {
		return fmt.Errorf("import.max_bytes must be positive")
	}
	if cfg.Import.ErrorSample < 1 {
		return fmt.Errorf("import.error_sample must be positive")
	}
	if cfg.Metrics.Enabled && cfg.Metrics.ListenAddr == cfg.Server.ListenAddr {
		return fmt.Errorf("metrics.listen_addr must differ from server.listen_addr")
	}
	if cfg.Sandbox.ErrorProbability < 0 || cfg.Sandbox.ErrorProbability > 1 {
		return fmt.Errorf("sandbox.error_probability must be between 0 and 1")
	}
	for name, l := range map[string]*LimitConfig{"global": cfg.RateLimit.Global, "actor": cfg.RateLimit.Actor} {
		if l != nil && (l.MessagesPerHour < 0 || l.MessagesPerDay < 0) {
			return fmt.Errorf("rate_limit.%s limits must not be negative", name)
		}
	}
	switch strings.ToLower(cfg.Logging.Format) {
	case "json", "text":
	default:
		return fmt.Errorf("logging.format must be json or text, got %q", cfg.Logging.Format)
	}
	return nil
}

// applyEnv overrides file values with TEXTCAST_* variables
func applyEnv(cfg *Config) error {
	strs := map[string]*string{
		"LISTEN_ADDR":         &cfg.Server.ListenAddr,
		"API_KEY":             &cfg.Server.APIKey,
		"API_KEY_HASH":        &cfg.Server.APIKeyHash,
		"DATABASE_PATH":       &cfg.Database.Path,
		"BOLT_PATH":           &cfg.Storage.BoltPath,
		"OPT_OUT_TEXT":        &cfg.Campaign.OptOutText,
		"LINK_BASE":           &cfg.Campaign.LinkBase,
		"METRICS_LISTEN_ADDR": &cfg.Metrics.ListenAddr,
		"LOG_LEVEL":           &cfg.Logging.Level,
		"LOG_FORMAT":          &cfg.Logging.Format,
	}
	for key, dst := range strs {
		if v, ok := os.LookupEnv(envPrefix + key); ok {
			*dst = v
		}
	}

	if v, ok := os.LookupEnv(envPrefix + "SEGMENT_SIZE"); ok {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("%sSEGMENT_SIZE: %w", envPrefix, err)
		}
		cfg.Pricing.SegmentSize = n
	}
	if v, ok := os.LookupEnv(envPrefix + "SEGMENT_PRICE"); ok {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return fmt.Errorf("%sSEGMENT_PRICE: %w", envPrefix, err)
		}
		cfg.Pricing.SegmentPrice = f
	}
	if v, ok := os.LookupEnv(envPrefix + "IMPORT_MAX_ROWS"); ok {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("%sIMPORT_MAX_ROWS: %w", envPrefix, err)
		}
		cfg.Import.MaxRows = n
	}
	if v, ok := os.LookupEnv(envPrefix + "BLOCK_OVER_LIMIT"); ok {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("%sBLOCK_OVER_LIMIT: %w", envPrefix, err)
		}
		cfg.Campaign.BlockOverLimit = b
	}
	if v, ok := os.LookupEnv(envPrefix + "METRICS_ENABLED"); ok {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("%sMETRICS_ENABLED: %w", envPrefix, err)
		}
		cfg.Metrics.Enabled = b
	}
	return nil
}
