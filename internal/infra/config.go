package infra

import (
	"fmt"
	"os"
	"time"

	"swap_rfq/internal/domain"

	"gopkg.in/yaml.v3"
)

const (
	// DefaultUserAgent is a browser-like user agent string to avoid bot detection
	DefaultUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"
)

// ExchangeConfig holds one venue's endpoints and retry tuning.
type ExchangeConfig struct {
	RestURL     string `yaml:"rest_url"`
	WSURL       string `yaml:"ws_url"`
	MaxRetries  int    `yaml:"max_retries"`
	BaseDelayMS int    `yaml:"base_delay_ms"`
	MaxDelayMS  int    `yaml:"max_delay_ms"`
}

// BaseDelay returns the configured base backoff delay, defaulting to 1s.
func (e ExchangeConfig) BaseDelay() time.Duration {
	if e.BaseDelayMS <= 0 {
		return time.Second
	}
	return time.Duration(e.BaseDelayMS) * time.Millisecond
}

// MaxDelay returns the configured backoff ceiling, defaulting to 10s.
func (e ExchangeConfig) MaxDelay() time.Duration {
	if e.MaxDelayMS <= 0 {
		return 10 * time.Second
	}
	return time.Duration(e.MaxDelayMS) * time.Millisecond
}

// Config holds the full application configuration, loaded from YAML and
// then overridden by environment variables for deployment-specific values.
type Config struct {
	App struct {
		Name    string `yaml:"name"`
		Version string `yaml:"version"`
	} `yaml:"app"`

	API struct {
		Binance  ExchangeConfig `yaml:"binance"`
		Coinbase ExchangeConfig `yaml:"coinbase"`
	} `yaml:"api"`

	Pairs []domain.AssetPair `yaml:"pairs"`

	Aggregation struct {
		IntervalSec int `yaml:"interval_sec"`
	} `yaml:"aggregation"`

	RFQ struct {
		TimelockSec int64 `yaml:"timelock_sec"`
	} `yaml:"rfq"`

	Storage struct {
		Path string `yaml:"path"`
	} `yaml:"storage"`

	Logging struct {
		Level string `yaml:"level"`
	} `yaml:"logging"`
}

// LoadConfig reads and parses the configuration file.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}

	overrideWithEnv(&cfg)
	cfg.applyDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &cfg, nil
}

func (c *Config) applyDefaults() {
	if c.Aggregation.IntervalSec <= 0 {
		c.Aggregation.IntervalSec = 60
	}
	if c.RFQ.TimelockSec <= 0 {
		c.RFQ.TimelockSec = 3600
	}
	if c.Storage.Path == "" {
		c.Storage.Path = "data/swaprfq.db"
	}
}

// Validate checks configuration validity
func (c *Config) Validate() error {
	if c.API.Binance.RestURL == "" {
		return &domain.ConfigError{Field: "api.binance.rest_url", Err: fmt.Errorf("required")}
	}
	if c.API.Coinbase.RestURL == "" {
		return &domain.ConfigError{Field: "api.coinbase.rest_url", Err: fmt.Errorf("required")}
	}
	if len(c.Pairs) == 0 {
		return &domain.ConfigError{Field: "pairs", Err: fmt.Errorf("at least one asset pair is required")}
	}
	for i, p := range c.Pairs {
		if p.BaseAsset == "" || p.QuoteAsset == "" {
			return &domain.ConfigError{Field: fmt.Sprintf("pairs[%d]", i), Err: fmt.Errorf("base and quote are required")}
		}
	}
	return nil
}

// overrideWithEnv applies environment variable overrides when present.
func overrideWithEnv(cfg *Config) {
	if path := os.Getenv("RFQ_DB_PATH"); path != "" {
		cfg.Storage.Path = path
	}
	if level := os.Getenv("RFQ_LOG_LEVEL"); level != "" {
		cfg.Logging.Level = level
	}
}

// TimelockDuration returns the order timelock as a duration.
func (c *Config) TimelockDuration() time.Duration {
	return time.Duration(c.RFQ.TimelockSec) * time.Second
}

// AggregationInterval returns the price update cadence.
func (c *Config) AggregationInterval() time.Duration {
	return time.Duration(c.Aggregation.IntervalSec) * time.Second
}
