package config

import (
	"os"
	"path/filepath"
	"testing"
)

const sampleYAML = `
reporting_currency: USD
lot_tracking:
  enabled: true
  matching_rule: FIFO
  risk_pairs: ["EUR/USD", "GBP/USD"]
  trade_pairs: ["EUR/USD", "GBP/USD", "EUR/GBP"]
  hedge_pairs: ["EUR/USD"]
inputs:
  directory: examples/data
  files: ["market_updates.parquet", "client_trades.parquet"]
outputs:
  directory: out
  audit_log: audit.jsonl
  snapshots: snapshots.parquet
  final_state: final_state.json
logging:
  level: INFO
  format: json
dashboard:
  enabled: false
`

func writeTempConfig(t *testing.T, body string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("failed to write temp config: %v", err)
	}
	return path
}

func TestLoad_ParsesYAML(t *testing.T) {
	path := writeTempConfig(t, sampleYAML)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.ReportingCurrency != "USD" {
		t.Errorf("expected reporting_currency USD, got %s", cfg.ReportingCurrency)
	}
	if len(cfg.LotTracking.RiskPairs) != 2 {
		t.Errorf("expected two risk pairs, got %v", cfg.LotTracking.RiskPairs)
	}
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load("/nonexistent/config.yaml")
	if err == nil {
		t.Errorf("expected an error for a missing file")
	}
}

func TestApplyEnvOverrides_ReportingCurrency(t *testing.T) {
	t.Setenv("EFXSIM_REPORTING_CURRENCY", "EUR")
	path := writeTempConfig(t, sampleYAML)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.ReportingCurrency != "EUR" {
		t.Errorf("expected env override to EUR, got %s", cfg.ReportingCurrency)
	}
}

func TestApplyEnvOverrides_OutputDir(t *testing.T) {
	t.Setenv("EFXSIM_OUTPUT_DIR", "/tmp/run-1")
	path := writeTempConfig(t, sampleYAML)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Outputs.Directory != "/tmp/run-1" {
		t.Errorf("expected overridden output directory, got %s", cfg.Outputs.Directory)
	}
}

func TestLotManagerConfig_DefaultsHedgeFillsCreateLotsTrue(t *testing.T) {
	path := writeTempConfig(t, sampleYAML)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !cfg.LotManagerConfig().HedgeFillsCreateLots {
		t.Errorf("expected HedgeFillsCreateLots to default to true when unset")
	}
}

func TestLotManagerConfig_RespectsExplicitFalse(t *testing.T) {
	body := `
reporting_currency: USD
lot_tracking:
  enabled: true
  matching_rule: FIFO
  risk_pairs: ["EUR/USD"]
  hedge_fills_create_lots: false
`
	path := writeTempConfig(t, body)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.LotManagerConfig().HedgeFillsCreateLots {
		t.Errorf("expected HedgeFillsCreateLots to respect an explicit false")
	}
}

func TestValidate_RequiresReportingCurrency(t *testing.T) {
	cfg := &Config{}
	if err := cfg.Validate(); err == nil {
		t.Errorf("expected an error when reporting_currency is empty")
	}
}

func TestValidate_RejectsNonFIFOMatchingRule(t *testing.T) {
	cfg := &Config{
		ReportingCurrency: "USD",
		LotTracking: LotTracking{
			Enabled:      true,
			MatchingRule: "LIFO",
		},
	}
	if err := cfg.Validate(); err == nil {
		t.Errorf("expected an error for an unsupported matching_rule")
	}
}
