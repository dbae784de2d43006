// Package event defines the immutable event variants dispatched by the
// simulation processor and the global ordering key used to sequence them.
//
// All monetary, quantity, and price fields use shopspring/decimal — never
// float64 — so that accounting values never cross a handler boundary with
// less than exact precision.
package event

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// Side is the trade side from the client's perspective. BUY means the
// client bought base currency from the desk; SELL means the client sold
// base currency to the desk.
type Side string

const (
	Buy  Side = "BUY"
	Sell Side = "SELL"
)

// Opposite returns the other side.
func (s Side) Opposite() Side {
	if s == Buy {
		return Sell
	}
	return Buy
}

// Valid reports whether s is one of the two defined sides.
func (s Side) Valid() bool {
	return s == Buy || s == Sell
}

// Kind identifies an event variant for dispatch.
type Kind string

const (
	KindClientTrade  Kind = "client_trade"
	KindMarketUpdate Kind = "market_update"
	KindHedgeOrder   Kind = "hedge_order"
	KindHedgeFill    Kind = "hedge_fill"
	KindConfigUpdate Kind = "config_update"
	KindClockTick    Kind = "clock_tick"
)

// Key is the global ordering key. Events are ordered by (Timestamp,
// SequenceID); the pair must be unique across the entire input.
type Key struct {
	Timestamp  time.Time
	SequenceID int64
}

// Less reports whether k sorts strictly before other.
func (k Key) Less(other Key) bool {
	if !k.Timestamp.Equal(other.Timestamp) {
		return k.Timestamp.Before(other.Timestamp)
	}
	return k.SequenceID < other.SequenceID
}

// Equal reports whether k and other share the same ordering position.
// Two events with equal keys are a contract violation (§6.1).
func (k Key) Equal(other Key) bool {
	return k.Timestamp.Equal(other.Timestamp) && k.SequenceID == other.SequenceID
}

// Event is implemented by every event variant. Kind identifies the variant
// for dispatch; OrderKey returns the global ordering key.
type Event interface {
	Kind() Kind
	OrderKey() Key
}

// base carries the fields every event shares.
type base struct {
	Timestamp  time.Time
	SequenceID int64
}

func newBase(timestamp time.Time, sequenceID int64) (base, error) {
	if sequenceID < 0 {
		return base{}, fmt.Errorf("event: sequence_id must be non-negative, got %d", sequenceID)
	}
	return base{Timestamp: timestamp, SequenceID: sequenceID}, nil
}

func (b base) OrderKey() Key {
	return Key{Timestamp: b.Timestamp, SequenceID: b.SequenceID}
}

// ClientTrade is a trade executed with a client.
//
// Example: client buys 1,000,000 EUR/USD at 1.1000 — the desk sells EUR to
// the client and receives USD: Side is Buy, Notional is 1_000_000, Price is
// 1.1000, and the desk's cash effect is -1M EUR / +1.1M USD.
type ClientTrade struct {
	base
	CurrencyPair string
	Side         Side
	Notional     decimal.Decimal
	Price        decimal.Decimal
	ClientID     string
	TradeID      string
}

// NewClientTrade validates and constructs a ClientTrade event.
func NewClientTrade(timestamp time.Time, sequenceID int64, pair string, side Side, notional, price decimal.Decimal, clientID, tradeID string) (ClientTrade, error) {
	b, err := newBase(timestamp, sequenceID)
	if err != nil {
		return ClientTrade{}, err
	}
	if !side.Valid() {
		return ClientTrade{}, fmt.Errorf("event: invalid side %q", side)
	}
	if notional.Sign() <= 0 {
		return ClientTrade{}, fmt.Errorf("event: notional must be positive, got %s", notional)
	}
	if price.Sign() <= 0 {
		return ClientTrade{}, fmt.Errorf("event: price must be positive, got %s", price)
	}
	if !isPair(pair) {
		return ClientTrade{}, fmt.Errorf("event: currency_pair must be BASE/QUOTE, got %q", pair)
	}
	return ClientTrade{
		base:         b,
		CurrencyPair: pair,
		Side:         side,
		Notional:     notional,
		Price:        price,
		ClientID:     clientID,
		TradeID:      tradeID,
	}, nil
}

func (ClientTrade) Kind() Kind { return KindClientTrade }

// NewRawClientTrade constructs a ClientTrade checking only the structural
// invariants the ordering/dispatch machinery itself depends on
// (sequence_id, currency_pair shape). Business-rule fields (side,
// notional, price) are left for the handler to validate, so a malformed
// row from an input file surfaces as a validation-error record instead of
// aborting the whole load (spec §7).
func NewRawClientTrade(timestamp time.Time, sequenceID int64, pair string, side Side, notional, price decimal.Decimal, clientID, tradeID string) (ClientTrade, error) {
	b, err := newBase(timestamp, sequenceID)
	if err != nil {
		return ClientTrade{}, err
	}
	if !isPair(pair) {
		return ClientTrade{}, fmt.Errorf("event: currency_pair must be BASE/QUOTE, got %q", pair)
	}
	return ClientTrade{
		base:         b,
		CurrencyPair: pair,
		Side:         side,
		Notional:     notional,
		Price:        price,
		ClientID:     clientID,
		TradeID:      tradeID,
	}, nil
}

// MarketUpdate carries a refreshed bid/ask/mid quote for a currency pair.
type MarketUpdate struct {
	base
	CurrencyPair string
	Bid          decimal.Decimal
	Ask          decimal.Decimal
	Mid          decimal.Decimal
}

// NewMarketUpdate validates and constructs a MarketUpdate event.
func NewMarketUpdate(timestamp time.Time, sequenceID int64, pair string, bid, ask, mid decimal.Decimal) (MarketUpdate, error) {
	b, err := newBase(timestamp, sequenceID)
	if err != nil {
		return MarketUpdate{}, err
	}
	if !isPair(pair) {
		return MarketUpdate{}, fmt.Errorf("event: currency_pair must be BASE/QUOTE, got %q", pair)
	}
	if bid.Sign() <= 0 || ask.Sign() <= 0 || mid.Sign() <= 0 {
		return MarketUpdate{}, fmt.Errorf("event: bid/ask/mid must be positive")
	}
	if bid.GreaterThan(ask) {
		return MarketUpdate{}, fmt.Errorf("event: bid %s must be <= ask %s", bid, ask)
	}
	if mid.LessThan(bid) || mid.GreaterThan(ask) {
		return MarketUpdate{}, fmt.Errorf("event: mid %s must be between bid %s and ask %s", mid, bid, ask)
	}
	return MarketUpdate{base: b, CurrencyPair: pair, Bid: bid, Ask: ask, Mid: mid}, nil
}

func (MarketUpdate) Kind() Kind { return KindMarketUpdate }

// NewRawMarketUpdate constructs a MarketUpdate checking only sequence_id
// and currency_pair shape. The crossed-quote check (bid <= ask, mid within
// spread) is left for HandleMarketUpdate, so a crossed quote from an input
// file flows through as a validation-error record rather than aborting
// the whole load (spec §7).
func NewRawMarketUpdate(timestamp time.Time, sequenceID int64, pair string, bid, ask, mid decimal.Decimal) (MarketUpdate, error) {
	b, err := newBase(timestamp, sequenceID)
	if err != nil {
		return MarketUpdate{}, err
	}
	if !isPair(pair) {
		return MarketUpdate{}, fmt.Errorf("event: currency_pair must be BASE/QUOTE, got %q", pair)
	}
	return MarketUpdate{base: b, CurrencyPair: pair, Bid: bid, Ask: ask, Mid: mid}, nil
}

// HedgeOrder is an order placed to hedge desk exposure. It does not affect
// state until a matching HedgeFill arrives.
type HedgeOrder struct {
	base
	OrderID      string
	CurrencyPair string
	Side         Side
	Notional     decimal.Decimal
	LimitPrice   *decimal.Decimal // nil for a market order
}

// NewHedgeOrder validates and constructs a HedgeOrder event.
func NewHedgeOrder(timestamp time.Time, sequenceID int64, orderID, pair string, side Side, notional decimal.Decimal, limitPrice *decimal.Decimal) (HedgeOrder, error) {
	b, err := newBase(timestamp, sequenceID)
	if err != nil {
		return HedgeOrder{}, err
	}
	if !side.Valid() {
		return HedgeOrder{}, fmt.Errorf("event: invalid side %q", side)
	}
	if notional.Sign() <= 0 {
		return HedgeOrder{}, fmt.Errorf("event: notional must be positive, got %s", notional)
	}
	if limitPrice != nil && limitPrice.Sign() <= 0 {
		return HedgeOrder{}, fmt.Errorf("event: limit_price must be positive, got %s", *limitPrice)
	}
	return HedgeOrder{
		base:         b,
		OrderID:      orderID,
		CurrencyPair: pair,
		Side:         side,
		Notional:     notional,
		LimitPrice:   limitPrice,
	}, nil
}

func (HedgeOrder) Kind() Kind { return KindHedgeOrder }

// NewRawHedgeOrder constructs a HedgeOrder checking only sequence_id and
// currency_pair shape; side/notional/limit_price are left for
// HandleHedgeOrder to validate (spec §7).
func NewRawHedgeOrder(timestamp time.Time, sequenceID int64, orderID, pair string, side Side, notional decimal.Decimal, limitPrice *decimal.Decimal) (HedgeOrder, error) {
	b, err := newBase(timestamp, sequenceID)
	if err != nil {
		return HedgeOrder{}, err
	}
	if !isPair(pair) {
		return HedgeOrder{}, fmt.Errorf("event: currency_pair must be BASE/QUOTE, got %q", pair)
	}
	return HedgeOrder{
		base:         b,
		OrderID:      orderID,
		CurrencyPair: pair,
		Side:         side,
		Notional:     notional,
		LimitPrice:   limitPrice,
	}, nil
}

// HedgeFill confirms execution of a hedge order, with the same accounting
// effect as a ClientTrade but for the desk's own hedging activity.
type HedgeFill struct {
	base
	OrderID      string
	CurrencyPair string
	Side         Side
	Notional     decimal.Decimal
	FillPrice    decimal.Decimal
	Slippage     decimal.Decimal
}

// NewHedgeFill validates and constructs a HedgeFill event.
func NewHedgeFill(timestamp time.Time, sequenceID int64, orderID, pair string, side Side, notional, fillPrice, slippage decimal.Decimal) (HedgeFill, error) {
	b, err := newBase(timestamp, sequenceID)
	if err != nil {
		return HedgeFill{}, err
	}
	if !side.Valid() {
		return HedgeFill{}, fmt.Errorf("event: invalid side %q", side)
	}
	if notional.Sign() <= 0 {
		return HedgeFill{}, fmt.Errorf("event: notional must be positive, got %s", notional)
	}
	if fillPrice.Sign() <= 0 {
		return HedgeFill{}, fmt.Errorf("event: fill_price must be positive, got %s", fillPrice)
	}
	return HedgeFill{
		base:         b,
		OrderID:      orderID,
		CurrencyPair: pair,
		Side:         side,
		Notional:     notional,
		FillPrice:    fillPrice,
		Slippage:     slippage,
	}, nil
}

func (HedgeFill) Kind() Kind { return KindHedgeFill }

// NewRawHedgeFill constructs a HedgeFill checking only sequence_id and
// currency_pair shape; side/notional/fill_price are left for
// HandleHedgeFill to validate (spec §7).
func NewRawHedgeFill(timestamp time.Time, sequenceID int64, orderID, pair string, side Side, notional, fillPrice, slippage decimal.Decimal) (HedgeFill, error) {
	b, err := newBase(timestamp, sequenceID)
	if err != nil {
		return HedgeFill{}, err
	}
	if !isPair(pair) {
		return HedgeFill{}, fmt.Errorf("event: currency_pair must be BASE/QUOTE, got %q", pair)
	}
	return HedgeFill{
		base:         b,
		OrderID:      orderID,
		CurrencyPair: pair,
		Side:         side,
		Notional:     notional,
		FillPrice:    fillPrice,
		Slippage:     slippage,
	}, nil
}

// ConfigUpdate changes a simulation parameter mid-run (e.g. the reporting
// currency).
type ConfigUpdate struct {
	base
	ConfigKey   string
	ConfigValue string
}

// NewConfigUpdate validates and constructs a ConfigUpdate event.
func NewConfigUpdate(timestamp time.Time, sequenceID int64, key, value string) (ConfigUpdate, error) {
	b, err := newBase(timestamp, sequenceID)
	if err != nil {
		return ConfigUpdate{}, err
	}
	if key == "" {
		return ConfigUpdate{}, fmt.Errorf("event: config_key cannot be empty")
	}
	return ConfigUpdate{base: b, ConfigKey: key, ConfigValue: value}, nil
}

func (ConfigUpdate) Kind() Kind { return KindConfigUpdate }

// ClockTick is a periodic marker that triggers a state snapshot.
type ClockTick struct {
	base
	TickLabel string
}

// NewClockTick validates and constructs a ClockTick event.
func NewClockTick(timestamp time.Time, sequenceID int64, tickLabel string) (ClockTick, error) {
	b, err := newBase(timestamp, sequenceID)
	if err != nil {
		return ClockTick{}, err
	}
	if tickLabel == "" {
		return ClockTick{}, fmt.Errorf("event: tick_label cannot be empty")
	}
	return ClockTick{base: b, TickLabel: tickLabel}, nil
}

func (ClockTick) Kind() Kind { return KindClockTick }

// SplitPair splits "BASE/QUOTE" into its two currency codes. The caller
// must have already validated the pair with isPair (or equivalent).
func SplitPair(pair string) (base, quote string) {
	for i := 0; i < len(pair); i++ {
		if pair[i] == '/' {
			return pair[:i], pair[i+1:]
		}
	}
	return pair, ""
}

func isPair(pair string) bool {
	base, quote := SplitPair(pair)
	return base != "" && quote != "" && base+"/"+quote == pair
}
