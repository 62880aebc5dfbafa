// Package config provides configuration management for the option analysis engine.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/spf13/viper"

	"github.com/smq100/inish-optionanalysis-sub000/internal/logging"
)

// Config holds all application configuration.
type Config struct {
	Pricing    PricingConfig     `mapstructure:"pricing"`
	Grid       GridConfig        `mapstructure:"grid"`
	Batch      BatchConfig       `mapstructure:"batch"`
	MarketData MarketDataConfig  `mapstructure:"market_data"`
	Store      StoreConfig       `mapstructure:"store"`
	Logging    logging.LogConfig `mapstructure:"logging"`
}

// PricingConfig holds pricing model configuration.
type PricingConfig struct {
	Method           string  `mapstructure:"method"`      // black-scholes, monte-carlo
	Simulations      int     `mapstructure:"simulations"` // Monte Carlo path count
	Seed             uint64  `mapstructure:"seed"`        // 0 seeds from the clock
	DividendYield    float64 `mapstructure:"dividend_yield"`
	ImpliedVolCutoff float64 `mapstructure:"implied_vol_cutoff"`
	LookbackDays     int     `mapstructure:"lookback_days"`
}

// GridConfig holds value table grid configuration.
type GridConfig struct {
	DateStepDays int `mapstructure:"date_step_days"`
	HalfRows     int `mapstructure:"half_rows"`
}

// BatchConfig holds batch analysis configuration.
type BatchConfig struct {
	MaxWorkers int  `mapstructure:"max_workers"`
	Persist    bool `mapstructure:"persist"`
}

// MarketDataConfig holds market data provider configuration.
type MarketDataConfig struct {
	DataDir         string        `mapstructure:"data_dir"`
	RiskFreeRate    float64       `mapstructure:"risk_free_rate"` // fallback when no rates file exists
	CacheTTL        time.Duration `mapstructure:"cache_ttl"`
	RetryAttempts   int           `mapstructure:"retry_attempts"`
	RateLimit       float64       `mapstructure:"rate_limit"` // requests per second, 0 disables
	CircuitFailures int           `mapstructure:"circuit_failures"`
}

// StoreConfig holds persistence configuration.
type StoreConfig struct {
	Path      string        `mapstructure:"path"`
	Freshness time.Duration `mapstructure:"freshness"`
}

// DefaultConfigDir returns the default configuration directory.
func DefaultConfigDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".config/optionanalysis"
	}
	return filepath.Join(home, ".config", "optionanalysis")
}

// Default returns the built-in configuration.
func Default() *Config {
	dir := DefaultConfigDir()
	return &Config{
		Pricing: PricingConfig{
			Method:           "black-scholes",
			Simulations:      100000,
			Seed:             42,
			DividendYield:    0,
			ImpliedVolCutoff: 0.020,
			LookbackDays:     365,
		},
		Grid: GridConfig{
			DateStepDays: 1,
			HalfRows:     20,
		},
		Batch: BatchConfig{
			MaxWorkers: 8,
		},
		MarketData: MarketDataConfig{
			DataDir:         filepath.Join(dir, "data"),
			RiskFreeRate:    0.03,
			CacheTTL:        15 * time.Minute,
			RetryAttempts:   3,
			RateLimit:       0,
			CircuitFailures: 5,
		},
		Store: StoreConfig{
			Path:      filepath.Join(dir, "options.db"),
			Freshness: 12 * time.Hour,
		},
		Logging: logging.DefaultLogConfig(),
	}
}

// Load loads configuration from the specified directory.
// If configDir is empty, uses the default config directory.
func Load(configDir string) (*Config, error) {
	if configDir == "" {
		configDir = DefaultConfigDir()
	}

	cfg := Default()

	if err := loadConfigFile(configDir, "config", cfg); err != nil {
		return nil, fmt.Errorf("loading config.toml: %w", err)
	}

	applyEnvOverrides(cfg)

	cfg.MarketData.DataDir = ExpandHome(cfg.MarketData.DataDir)
	cfg.Store.Path = ExpandHome(cfg.Store.Path)
	cfg.Logging.FilePath = ExpandHome(cfg.Logging.FilePath)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return cfg, nil
}

func loadConfigFile(configDir, name string, cfg *Config) error {
	v := viper.New()
	v.SetConfigName(name)
	v.SetConfigType("toml")
	v.AddConfigPath(configDir)
	setDefaults(v, cfg)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			// First run: write a template and continue with defaults.
			return createTemplateConfig(configDir, name)
		}
		return err
	}

	return v.Unmarshal(cfg)
}

func setDefaults(v *viper.Viper, cfg *Config) {
	v.SetDefault("pricing.method", cfg.Pricing.Method)
	v.SetDefault("pricing.simulations", cfg.Pricing.Simulations)
	v.SetDefault("pricing.seed", cfg.Pricing.Seed)
	v.SetDefault("pricing.dividend_yield", cfg.Pricing.DividendYield)
	v.SetDefault("pricing.implied_vol_cutoff", cfg.Pricing.ImpliedVolCutoff)
	v.SetDefault("pricing.lookback_days", cfg.Pricing.LookbackDays)
	v.SetDefault("grid.date_step_days", cfg.Grid.DateStepDays)
	v.SetDefault("grid.half_rows", cfg.Grid.HalfRows)
	v.SetDefault("batch.max_workers", cfg.Batch.MaxWorkers)
	v.SetDefault("batch.persist", cfg.Batch.Persist)
	v.SetDefault("market_data.data_dir", cfg.MarketData.DataDir)
	v.SetDefault("market_data.risk_free_rate", cfg.MarketData.RiskFreeRate)
	v.SetDefault("market_data.cache_ttl", cfg.MarketData.CacheTTL)
	v.SetDefault("market_data.retry_attempts", cfg.MarketData.RetryAttempts)
	v.SetDefault("market_data.rate_limit", cfg.MarketData.RateLimit)
	v.SetDefault("market_data.circuit_failures", cfg.MarketData.CircuitFailures)
	v.SetDefault("store.path", cfg.Store.Path)
	v.SetDefault("store.freshness", cfg.Store.Freshness)
	v.SetDefault("logging.level", cfg.Logging.Level)
	v.SetDefault("logging.console", cfg.Logging.Console)
	v.SetDefault("logging.file", cfg.Logging.File)
	v.SetDefault("logging.file_path", cfg.Logging.FilePath)
	v.SetDefault("logging.max_size", cfg.Logging.MaxSize)
	v.SetDefault("logging.max_backups", cfg.Logging.MaxBackups)
	v.SetDefault("logging.max_age", cfg.Logging.MaxAge)
}

func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("OPTIONS_DATA_DIR"); v != "" {
		cfg.MarketData.DataDir = v
	}
	if v := os.Getenv("OPTIONS_RISK_FREE_RATE"); v != "" {
		if rate, err := strconv.ParseFloat(v, 64); err == nil {
			cfg.MarketData.RiskFreeRate = rate
		}
	}
	if v := os.Getenv("OPTIONS_LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
	if v := os.Getenv("OPTIONS_PRICING_METHOD"); v != "" {
		cfg.Pricing.Method = v
	}
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if c.Pricing.Method != "black-scholes" && c.Pricing.Method != "monte-carlo" {
		return fmt.Errorf("invalid pricing method: %s (must be 'black-scholes' or 'monte-carlo')", c.Pricing.Method)
	}
	if c.Pricing.Simulations <= 0 {
		return fmt.Errorf("simulations must be positive")
	}
	if c.Pricing.ImpliedVolCutoff < 0 {
		return fmt.Errorf("implied_vol_cutoff must be non-negative")
	}
	if c.Pricing.LookbackDays < 2 {
		return fmt.Errorf("lookback_days must be at least 2")
	}
	if c.Grid.DateStepDays <= 0 {
		return fmt.Errorf("date_step_days must be positive")
	}
	if c.Grid.HalfRows <= 0 {
		return fmt.Errorf("half_rows must be positive")
	}
	if c.Batch.MaxWorkers <= 0 {
		return fmt.Errorf("max_workers must be positive")
	}
	if c.MarketData.RiskFreeRate < -0.05 || c.MarketData.RiskFreeRate > 0.5 {
		return fmt.Errorf("risk_free_rate must be a decimal fraction between -0.05 and 0.5")
	}
	if c.MarketData.RetryAttempts <= 0 {
		return fmt.Errorf("retry_attempts must be positive")
	}
	return nil
}
