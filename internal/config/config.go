// Package config loads the simulation's YAML configuration file and
// applies environment-variable overrides, following the shape of
// chenjiangme-jupitor's internal/config package.
package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/efxlab/simulator/internal/lotmgr"
)

// Config is the top-level configuration for the efxsim binary.
type Config struct {
	ReportingCurrency string      `yaml:"reporting_currency"`
	LotTracking       LotTracking `yaml:"lot_tracking"`
	Inputs            Inputs      `yaml:"inputs"`
	Outputs           Outputs     `yaml:"outputs"`
	Logging           Logging     `yaml:"logging"`
	Dashboard         Dashboard   `yaml:"dashboard"`
	AuditStore        AuditStore  `yaml:"audit_store"`
}

// LotTracking mirrors spec §6.4's lot-tracking configuration surface.
type LotTracking struct {
	Enabled              bool     `yaml:"enabled"`
	MatchingRule         string   `yaml:"matching_rule"`
	RiskPairs            []string `yaml:"risk_pairs"`
	TradePairs           []string `yaml:"trade_pairs"`
	HedgePairs           []string `yaml:"hedge_pairs"`
	HedgeFillsCreateLots *bool    `yaml:"hedge_fills_create_lots"`
}

// Inputs names the Parquet event sources to merge, per spec §6.1.
type Inputs struct {
	Directory string   `yaml:"directory"`
	Files     []string `yaml:"files"`
}

// Outputs names where run artifacts land.
type Outputs struct {
	Directory  string `yaml:"directory"`
	AuditLog   string `yaml:"audit_log"`
	Snapshots  string `yaml:"snapshots"`
	FinalState string `yaml:"final_state"`
}

// Logging configures the process-wide slog logger.
type Logging struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// Dashboard configures the optional live-dashboard HTTP server.
type Dashboard struct {
	Enabled  bool   `yaml:"enabled"`
	Addr     string `yaml:"addr"`
	RedisURL string `yaml:"redis_url"`
}

// AuditStore selects and configures the durable record sink.
type AuditStore struct {
	Driver      string `yaml:"driver"` // "jsonl" or "postgres"
	PostgresDSN string `yaml:"postgres_dsn"`
}

// Load reads the YAML configuration file at path, parses it, and applies
// environment-variable overrides.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}

	cfg := &Config{}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("config: parse %s: %w", path, err)
	}

	applyEnvOverrides(cfg)
	return cfg, nil
}

// applyEnvOverrides checks well-known environment variables and overrides
// the corresponding configuration fields when set.
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("EFXSIM_REPORTING_CURRENCY"); v != "" {
		cfg.ReportingCurrency = v
	}
	if v := os.Getenv("EFXSIM_LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
	if v := os.Getenv("EFXSIM_DASHBOARD_ADDR"); v != "" {
		cfg.Dashboard.Addr = v
	}
	if v := os.Getenv("EFXSIM_REDIS_URL"); v != "" {
		cfg.Dashboard.RedisURL = v
	}
	if v := os.Getenv("EFXSIM_POSTGRES_DSN"); v != "" {
		cfg.AuditStore.PostgresDSN = v
	}
	if v := os.Getenv("EFXSIM_OUTPUT_DIR"); v != "" {
		cfg.Outputs.Directory = v
	}
}

// LotManagerConfig converts the YAML lot-tracking section into a
// lotmgr.Config, defaulting HedgeFillsCreateLots to true per spec.md §9.
func (c Config) LotManagerConfig() lotmgr.Config {
	hedgeFillsCreateLots := true
	if c.LotTracking.HedgeFillsCreateLots != nil {
		hedgeFillsCreateLots = *c.LotTracking.HedgeFillsCreateLots
	}
	return lotmgr.Config{
		Enabled:              c.LotTracking.Enabled,
		MatchingRule:         c.LotTracking.MatchingRule,
		ReportingCurrency:    c.ReportingCurrency,
		RiskPairs:            c.LotTracking.RiskPairs,
		TradePairs:           c.LotTracking.TradePairs,
		HedgePairs:           c.LotTracking.HedgePairs,
		HedgeFillsCreateLots: hedgeFillsCreateLots,
	}
}

// Validate checks the configuration for internal consistency.
func (c Config) Validate() error {
	if c.ReportingCurrency == "" {
		return fmt.Errorf("config: reporting_currency is required")
	}
	if c.LotTracking.Enabled {
		if c.LotTracking.MatchingRule != "" && c.LotTracking.MatchingRule != "FIFO" {
			return fmt.Errorf("config: matching_rule %q not supported, only FIFO is defined", c.LotTracking.MatchingRule)
		}
		if err := c.LotManagerConfig().Validate(); err != nil {
			return err
		}
	}
	return nil
}
