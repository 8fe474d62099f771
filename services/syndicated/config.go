package syndicated

import (
	"fmt"
	"math/big"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"

	"tokensyndicate/crypto"
)

// Duration wraps time.Duration to support YAML and TOML unmarshalling.
type Duration struct {
	time.Duration
}

// UnmarshalYAML parses human readable duration strings.
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	if value == nil {
		return nil
	}
	if value.Kind != yaml.ScalarNode {
		return fmt.Errorf("duration must be string")
	}
	return d.UnmarshalText([]byte(value.Value))
}

// UnmarshalText implements encoding.TextUnmarshaler for TOML.
func (d *Duration) UnmarshalText(text []byte) error {
	raw := strings.TrimSpace(string(text))
	if raw == "" {
		d.Duration = 0
		return nil
	}
	parsed, err := time.ParseDuration(raw)
	if err != nil {
		return fmt.Errorf("parse duration %q: %w", raw, err)
	}
	d.Duration = parsed
	return nil
}

// Config captures the runtime configuration for syndicated.
type Config struct {
	ListenAddress   string          `yaml:"listen" toml:"listen"`
	Environment     string          `yaml:"env" toml:"env"`
	DataDir         string          `yaml:"data_dir" toml:"data_dir"`
	FactoryAddress  string          `yaml:"factory_address" toml:"factory_address"`
	PauseOnStart    bool            `yaml:"pause" toml:"pause"`
	ShutdownTimeout Duration        `yaml:"shutdown_timeout" toml:"shutdown_timeout"`
	JournalSize     int             `yaml:"journal_size" toml:"journal_size"`
	Auth            AuthConfig      `yaml:"auth" toml:"auth"`
	RateLimit       RateLimitConfig `yaml:"rate_limit" toml:"rate_limit"`
	Quota           QuotaConfig     `yaml:"quota" toml:"quota"`
	Log             LogConfig       `yaml:"log" toml:"log"`
	Telemetry       TelemetryConfig `yaml:"telemetry" toml:"telemetry"`
	Tokens          []TokenConfig   `yaml:"tokens" toml:"tokens"`
}

// AuthConfig secures mutating and admin routes.
type AuthConfig struct {
	BearerToken     string `yaml:"bearer_token" toml:"bearer_token"`
	BearerTokenFile string `yaml:"bearer_token_file" toml:"bearer_token_file"`
	// Disabled opens every route; intended for local development only.
	Disabled bool `yaml:"disabled" toml:"disabled"`
}

// RateLimitConfig throttles clients by IP. X-Real-IP and X-Forwarded-For are
// only honoured on connections from TrustedProxies (CIDRs or single IPs).
type RateLimitConfig struct {
	RequestsPerMinute float64  `yaml:"requests_per_minute" toml:"requests_per_minute"`
	Burst             int      `yaml:"burst" toml:"burst"`
	TrustedProxies    []string `yaml:"trusted_proxies" toml:"trusted_proxies"`
}

// QuotaConfig bounds per-principal activity on deposit and donation routes.
type QuotaConfig struct {
	MaxRequestsPerEpoch uint32 `yaml:"max_requests_per_epoch" toml:"max_requests_per_epoch"`
	MaxValuePerEpoch    uint64 `yaml:"max_value_per_epoch" toml:"max_value_per_epoch"`
	EpochSeconds        uint32 `yaml:"epoch_seconds" toml:"epoch_seconds"`
}

// LogConfig controls structured logging output.
type LogConfig struct {
	Level      string `yaml:"level" toml:"level"`
	File       string `yaml:"file" toml:"file"`
	MaxSizeMB  int    `yaml:"max_size_mb" toml:"max_size_mb"`
	MaxBackups int    `yaml:"max_backups" toml:"max_backups"`
	MaxAgeDays int    `yaml:"max_age_days" toml:"max_age_days"`
}

// TelemetryConfig configures the OTLP exporters.
type TelemetryConfig struct {
	Endpoint    string  `yaml:"endpoint" toml:"endpoint"`
	Insecure    bool    `yaml:"insecure" toml:"insecure"`
	Headers     string  `yaml:"headers" toml:"headers"`
	Traces      bool    `yaml:"traces" toml:"traces"`
	Metrics     bool    `yaml:"metrics" toml:"metrics"`
	SampleRatio float64 `yaml:"sample_ratio" toml:"sample_ratio"`
}

// TokenConfig declares a presale token the daemon hosts. Funding bounds are
// unix seconds.
type TokenConfig struct {
	Address      string `yaml:"address" toml:"address"`
	ExchangeRate uint64 `yaml:"exchange_rate" toml:"exchange_rate"`
	SupplyCap    string `yaml:"supply_cap" toml:"supply_cap"`
	FundingStart uint64 `yaml:"funding_start" toml:"funding_start"`
	FundingEnd   uint64 `yaml:"funding_end" toml:"funding_end"`
}

// LoadConfig reads configuration from path. Files ending in .toml are decoded
// as TOML, everything else as YAML.
func LoadConfig(path string) (Config, error) {
	cfg := Config{}
	contents, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("open config: %w", err)
	}
	if strings.EqualFold(filepath.Ext(path), ".toml") {
		if _, err := toml.Decode(string(contents), &cfg); err != nil {
			return cfg, fmt.Errorf("decode config: %w", err)
		}
	} else if err := yaml.Unmarshal(contents, &cfg); err != nil {
		return cfg, fmt.Errorf("decode config: %w", err)
	}
	if env := strings.TrimSpace(os.Getenv("SYNDICATE_ENV")); env != "" {
		cfg.Environment = env
	}
	applyDefaults(&cfg)
	if err := cfg.Auth.normalise(); err != nil {
		return cfg, fmt.Errorf("auth: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func applyDefaults(cfg *Config) {
	if cfg.ListenAddress == "" {
		cfg.ListenAddress = ":7090"
	}
	if cfg.ShutdownTimeout.Duration == 0 {
		cfg.ShutdownTimeout.Duration = 10 * time.Second
	}
	if cfg.JournalSize <= 0 {
		cfg.JournalSize = 4096
	}
	if cfg.RateLimit.RequestsPerMinute <= 0 {
		cfg.RateLimit.RequestsPerMinute = 600
	}
	if cfg.RateLimit.Burst <= 0 {
		cfg.RateLimit.Burst = 60
	}
	if cfg.Quota.EpochSeconds == 0 {
		cfg.Quota.EpochSeconds = 60
	}
	if cfg.Log.MaxSizeMB <= 0 {
		cfg.Log.MaxSizeMB = 100
	}
}

// Validate checks the configuration for values the daemon cannot run with.
func (c Config) Validate() error {
	if strings.TrimSpace(c.FactoryAddress) != "" {
		if _, err := crypto.ParseAddress(c.FactoryAddress); err != nil {
			return fmt.Errorf("factory_address: %w", err)
		}
	}
	if !c.Auth.Disabled && strings.TrimSpace(c.Auth.BearerToken) == "" {
		return fmt.Errorf("configure auth.bearer_token or set auth.disabled")
	}
	if _, err := parseTrustedProxies(c.RateLimit.TrustedProxies); err != nil {
		return fmt.Errorf("rate_limit.trusted_proxies: %w", err)
	}
	if c.Telemetry.SampleRatio < 0 || c.Telemetry.SampleRatio > 1 {
		return fmt.Errorf("telemetry.sample_ratio must be within [0, 1]")
	}
	seen := make(map[[20]byte]struct{}, len(c.Tokens))
	for i, token := range c.Tokens {
		addr, err := crypto.ParseAddress(token.Address)
		if err != nil {
			return fmt.Errorf("tokens[%d].address: %w", i, err)
		}
		if _, dup := seen[addr]; dup {
			return fmt.Errorf("tokens[%d]: duplicate address %s", i, token.Address)
		}
		seen[addr] = struct{}{}
		if token.ExchangeRate == 0 {
			return fmt.Errorf("tokens[%d].exchange_rate must be positive", i)
		}
		supply, ok := new(big.Int).SetString(strings.TrimSpace(token.SupplyCap), 10)
		if !ok || supply.Sign() <= 0 {
			return fmt.Errorf("tokens[%d].supply_cap must be a positive integer", i)
		}
		if token.FundingStart >= token.FundingEnd {
			return fmt.Errorf("tokens[%d]: funding_start must precede funding_end", i)
		}
	}
	return nil
}

func (a *AuthConfig) normalise() error {
	token := strings.TrimSpace(a.BearerToken)
	if path := strings.TrimSpace(a.BearerTokenFile); path != "" {
		contents, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("read bearer_token_file: %w", err)
		}
		token = strings.TrimSpace(string(contents))
	}
	a.BearerToken = token
	return nil
}
