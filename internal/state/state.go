// Package state implements the immutable accounting-state model: cash
// balances, net positions, the market-rate cache, and the pure transition
// primitives that produce a new state from an old one.
//
// Every transition returns a new *State; nothing in this package mutates a
// State a caller is still holding a reference to. Structural sharing is
// used for the maps that don't change between two transitions, so a
// transition copies only the one map it changes rather than the whole
// state.
package state

import (
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"github.com/efxlab/simulator/internal/event"
	"github.com/efxlab/simulator/internal/lotmgr"
)

// MarketRate is the most recently observed quote for a currency pair.
type MarketRate struct {
	Bid       decimal.Decimal
	Ask       decimal.Decimal
	Mid       decimal.Decimal
	Timestamp time.Time
}

// State is the complete, value-semantic simulation state. Zero value is a
// usable empty state with an empty reporting currency; New sets one.
type State struct {
	cashBalances map[string]decimal.Decimal
	positions    map[string]decimal.Decimal
	marketRates  map[string]MarketRate
	configValues map[string]string

	reportingCurrency string
	eventCount        int64

	// LotManager is present iff lot tracking is enabled in configuration.
	// nil means lot tracking is off for this run.
	LotManager *lotmgr.Manager
}

// New returns an initial state with the given reporting currency and an
// optional lot manager (nil disables lot tracking).
func New(reportingCurrency string, manager *lotmgr.Manager) *State {
	return &State{
		cashBalances:      map[string]decimal.Decimal{},
		positions:         map[string]decimal.Decimal{},
		marketRates:       map[string]MarketRate{},
		configValues:      map[string]string{},
		reportingCurrency: reportingCurrency,
		LotManager:        manager,
	}
}

// clone performs a shallow copy of s. Each With* method then replaces only
// the one map it touches, giving structural sharing of the rest.
func (s *State) clone() *State {
	cp := *s
	return &cp
}

// CashBalance returns the balance for a currency; absent currencies are
// zero (I1/I2).
func (s *State) CashBalance(currency string) decimal.Decimal {
	if v, ok := s.cashBalances[currency]; ok {
		return v
	}
	return decimal.Zero
}

// Position returns the desk's net base-currency position for a pair;
// absent pairs are zero.
func (s *State) Position(pair string) decimal.Decimal {
	if v, ok := s.positions[pair]; ok {
		return v
	}
	return decimal.Zero
}

// MarketRate returns the most recent quote for a pair, and whether one has
// been observed.
func (s *State) MarketRate(pair string) (MarketRate, bool) {
	r, ok := s.marketRates[pair]
	return r, ok
}

// MarketMid returns the cached mid for a pair, and whether one has been
// observed. Satisfies convert.RateSource.
func (s *State) MarketMid(pair string) (decimal.Decimal, bool) {
	r, ok := s.marketRates[pair]
	if !ok {
		return decimal.Decimal{}, false
	}
	return r.Mid, true
}

// ReportingCurrency returns the currency exposures and P&L are summarized
// in.
func (s *State) ReportingCurrency() string {
	return s.reportingCurrency
}

// EventCount returns the number of events dispatched since initialization
// (I3).
func (s *State) EventCount() int64 {
	return s.eventCount
}

// ConfigValue returns a free-form configuration value set via ConfigUpdate
// events whose key is not "reporting_currency".
func (s *State) ConfigValue(key string) (string, bool) {
	v, ok := s.configValues[key]
	return v, ok
}

// CashCurrencies returns every currency with a recorded cash balance, in
// sorted order (determinism across serialization boundaries).
func (s *State) CashCurrencies() []string {
	return sortedKeys(s.cashBalances)
}

// PositionPairs returns every pair with a recorded position, in sorted
// order.
func (s *State) PositionPairs() []string {
	return sortedKeys(s.positions)
}

// MarketPairs returns every pair with a cached quote, in sorted order.
func (s *State) MarketPairs() []string {
	return sortedKeys(s.marketRates)
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// WithCash returns a new state with delta added to currency's balance.
func (s *State) WithCash(currency string, delta decimal.Decimal) *State {
	next := s.clone()
	balances := make(map[string]decimal.Decimal, len(s.cashBalances)+1)
	for k, v := range s.cashBalances {
		balances[k] = v
	}
	balances[currency] = s.CashBalance(currency).Add(delta)
	next.cashBalances = balances
	return next
}

// WithPosition returns a new state with delta added to pair's net
// position.
func (s *State) WithPosition(pair string, delta decimal.Decimal) *State {
	next := s.clone()
	positions := make(map[string]decimal.Decimal, len(s.positions)+1)
	for k, v := range s.positions {
		positions[k] = v
	}
	positions[pair] = s.Position(pair).Add(delta)
	next.positions = positions
	return next
}

// WithMarketRate returns a new state with pair's cached quote replaced.
func (s *State) WithMarketRate(pair string, bid, ask, mid decimal.Decimal, timestamp time.Time) *State {
	next := s.clone()
	rates := make(map[string]MarketRate, len(s.marketRates)+1)
	for k, v := range s.marketRates {
		rates[k] = v
	}
	rates[pair] = MarketRate{Bid: bid, Ask: ask, Mid: mid, Timestamp: timestamp}
	next.marketRates = rates
	return next
}

// WithReportingCurrency returns a new state with the reporting currency
// changed. Only reachable via a ConfigUpdate event whose key is
// "reporting_currency" (§3.3).
func (s *State) WithReportingCurrency(currency string) *State {
	next := s.clone()
	next.reportingCurrency = currency
	return next
}

// WithConfigValue returns a new state with a free-form config entry set.
func (s *State) WithConfigValue(key, value string) *State {
	next := s.clone()
	values := make(map[string]string, len(s.configValues)+1)
	for k, v := range s.configValues {
		values[k] = v
	}
	values[key] = value
	next.configValues = values
	return next
}

// WithLotManager returns a new state with the lot manager replaced.
func (s *State) WithLotManager(manager *lotmgr.Manager) *State {
	next := s.clone()
	next.LotManager = manager
	return next
}

// IncrementEventCount returns a new state with EventCount advanced by one.
func (s *State) IncrementEventCount() *State {
	next := s.clone()
	next.eventCount = s.eventCount + 1
	return next
}

// ApplyTrade applies the cash/position effect of a trade (client or hedge)
// to state, per spec §4.2:
//
//	client BUY:  desk sells base, receives quote: Δbase = -notional, Δquote = +notional*price, Δposition = -notional
//	client SELL: desk buys base, pays quote:      Δbase = +notional, Δquote = -notional*price, Δposition = +notional
func ApplyTrade(s *State, pair string, side event.Side, notional, price decimal.Decimal) *State {
	base, quote := event.SplitPair(pair)
	quoteAmount := notional.Mul(price)

	var baseDelta, quoteDelta, positionDelta decimal.Decimal
	if side == event.Buy {
		baseDelta = notional.Neg()
		quoteDelta = quoteAmount
		positionDelta = notional.Neg()
	} else {
		baseDelta = notional
		quoteDelta = quoteAmount.Neg()
		positionDelta = notional
	}

	next := s.WithCash(base, baseDelta)
	next = next.WithCash(quote, quoteDelta)
	next = next.WithPosition(pair, positionDelta)
	return next
}
