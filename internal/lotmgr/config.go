// Package lotmgr manages per-risk-pair lot queues, assigns lot IDs
// deterministically in dispatch order, and aggregates net positions and
// unrealized P&L across risk pairs (spec §3.5, §4.4).
package lotmgr

import "fmt"

// Config is the lot-tracking configuration surface (spec §6.4): which
// pairs clients may trade, which pairs the desk holds risk in, and which
// pairs the desk may hedge in.
type Config struct {
	Enabled              bool
	MatchingRule         string // only "FIFO" is defined
	ReportingCurrency    string
	RiskPairs            []string
	TradePairs           []string
	HedgePairs           []string
	HedgeFillsCreateLots bool // default true; see SPEC_FULL.md §D
}

// Validate checks the disjoint-by-purpose pair-set rules from spec §3.5:
// every risk pair must be quoted against the reporting currency, and every
// hedge pair must be a risk pair.
func (c Config) Validate() error {
	riskSet := make(map[string]bool, len(c.RiskPairs))
	for _, pair := range c.RiskPairs {
		base, quote := splitPair(pair)
		if base == "" || quote == "" {
			return fmt.Errorf("lotmgr: invalid risk pair format %q", pair)
		}
		if quote != c.ReportingCurrency {
			return fmt.Errorf("lotmgr: risk pair %q must be quoted in reporting currency %q", pair, c.ReportingCurrency)
		}
		riskSet[pair] = true
	}
	for _, pair := range c.HedgePairs {
		if !riskSet[pair] {
			return fmt.Errorf("lotmgr: hedge pair %q must be a subset of risk_pairs", pair)
		}
	}
	return nil
}

// IsRiskPair reports whether pair is configured as a direct risk pair.
func (c Config) IsRiskPair(pair string) bool {
	return contains(c.RiskPairs, pair)
}

// IsTradePair reports whether pair is allowed for client trades.
func (c Config) IsTradePair(pair string) bool {
	return contains(c.TradePairs, pair)
}

// IsCross reports whether pair is a tradeable cross that is not itself a
// risk pair.
func (c Config) IsCross(pair string) bool {
	return c.IsTradePair(pair) && !c.IsRiskPair(pair)
}

// IsHedgePair reports whether pair is configured as a hedge pair.
func (c Config) IsHedgePair(pair string) bool {
	return contains(c.HedgePairs, pair)
}

func contains(list []string, item string) bool {
	for _, v := range list {
		if v == item {
			return true
		}
	}
	return false
}

func splitPair(pair string) (base, quote string) {
	for i := 0; i < len(pair); i++ {
		if pair[i] == '/' {
			return pair[:i], pair[i+1:]
		}
	}
	return pair, ""
}
