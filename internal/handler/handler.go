package handler

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/efxlab/simulator/internal/convert"
	"github.com/efxlab/simulator/internal/decompose"
	"github.com/efxlab/simulator/internal/event"
	"github.com/efxlab/simulator/internal/lotmgr"
	"github.com/efxlab/simulator/internal/state"
)

// HandleMarketUpdate validates bid <= ask and stores the quote, or emits a
// validation_error leaving state unchanged.
func HandleMarketUpdate(s *state.State, ev event.MarketUpdate) (*state.State, []Record) {
	if ev.Bid.GreaterThan(ev.Ask) {
		return s.IncrementEventCount(), []Record{validationError(ev.Timestamp, fmt.Sprintf("bid %s exceeds ask %s for %s", ev.Bid, ev.Ask, ev.CurrencyPair))}
	}

	next := s.WithMarketRate(ev.CurrencyPair, ev.Bid, ev.Ask, ev.Mid, ev.Timestamp).IncrementEventCount()
	rec := Record{
		Timestamp:  ev.Timestamp,
		RecordType: TypeMarketUpdate,
		Data: map[string]any{
			"currency_pair": ev.CurrencyPair,
			"bid":           ev.Bid.String(),
			"ask":           ev.Ask.String(),
			"mid":           ev.Mid.String(),
		},
	}
	return next, []Record{rec}
}

// HandleClientTrade validates side/notional/price and, if valid, applies
// the trade's accounting effect and, if lot tracking is enabled,
// decomposes it into risk-pair legs and drives the lot manager against
// each (spec §4.5, §4.3, §4.4). An invalid payload emits a
// validation_error record and leaves state unchanged (spec §7).
func HandleClientTrade(s *state.State, ev event.ClientTrade) (*state.State, []Record) {
	if msg := validateTrade(ev.Side, ev.Notional, ev.Price); msg != "" {
		return s.IncrementEventCount(), []Record{validationError(ev.Timestamp, msg)}
	}

	next := state.ApplyTrade(s, ev.CurrencyPair, ev.Side, ev.Notional, ev.Price)

	base, quote := event.SplitPair(ev.CurrencyPair)
	quoteAmount := ev.Notional.Mul(ev.Price)
	records := []Record{{
		Timestamp:  ev.Timestamp,
		RecordType: TypeClientTrade,
		Data: map[string]any{
			"trade_id":       ev.TradeID,
			"client_id":      ev.ClientID,
			"currency_pair":  ev.CurrencyPair,
			"side":           string(ev.Side),
			"notional":       ev.Notional.String(),
			"price":          ev.Price.String(),
			"quote_amount":   quoteAmount.String(),
			"base_currency":  base,
			"quote_currency": quote,
		},
	}}

	if next.LotManager != nil {
		lotRecords, updatedManager := applyLotLegs(s, next.LotManager, ev.CurrencyPair, ev.Side, ev.Notional, ev.Price, ev.Timestamp, ev.TradeID)
		next = next.WithLotManager(updatedManager)
		records = append(records, lotRecords...)
	}

	next = next.IncrementEventCount()
	return next, records
}

// HandleHedgeOrder validates side/notional/limit_price and logs the
// order; the order does not itself touch cash or positions until a
// HedgeFill arrives. An invalid payload emits a validation_error record
// and leaves state unchanged (spec §7).
func HandleHedgeOrder(s *state.State, ev event.HedgeOrder) (*state.State, []Record) {
	if !ev.Side.Valid() {
		return s.IncrementEventCount(), []Record{validationError(ev.Timestamp, fmt.Sprintf("invalid side %q", ev.Side))}
	}
	if ev.Notional.Sign() <= 0 {
		return s.IncrementEventCount(), []Record{validationError(ev.Timestamp, fmt.Sprintf("notional must be positive, got %s", ev.Notional))}
	}
	if ev.LimitPrice != nil && ev.LimitPrice.Sign() <= 0 {
		return s.IncrementEventCount(), []Record{validationError(ev.Timestamp, fmt.Sprintf("limit_price must be positive, got %s", *ev.LimitPrice))}
	}

	next := s.IncrementEventCount()
	var limitPrice any
	if ev.LimitPrice != nil {
		limitPrice = ev.LimitPrice.String()
	}
	rec := Record{
		Timestamp:  ev.Timestamp,
		RecordType: TypeHedgeOrder,
		Data: map[string]any{
			"order_id":      ev.OrderID,
			"currency_pair": ev.CurrencyPair,
			"side":          string(ev.Side),
			"notional":      ev.Notional.String(),
			"limit_price":   limitPrice,
		},
	}
	return next, []Record{rec}
}

// HandleHedgeFill validates side/notional/fill_price and, if valid,
// applies accounting identical to a client trade, then slippage against
// the quote currency, then optionally drives the lot manager exactly as
// ClientTrade does (gated by lotmgr.Config's HedgeFillsCreateLots, spec
// §9 open question). An invalid payload emits a validation_error record
// and leaves state unchanged (spec §7).
func HandleHedgeFill(s *state.State, ev event.HedgeFill) (*state.State, []Record) {
	if msg := validateTrade(ev.Side, ev.Notional, ev.FillPrice); msg != "" {
		return s.IncrementEventCount(), []Record{validationError(ev.Timestamp, msg)}
	}

	next := state.ApplyTrade(s, ev.CurrencyPair, ev.Side, ev.Notional, ev.FillPrice)

	if ev.Slippage.Sign() != 0 {
		_, quoteCcy := event.SplitPair(ev.CurrencyPair)
		next = next.WithCash(quoteCcy, ev.Slippage.Neg())
	}

	records := []Record{{
		Timestamp:  ev.Timestamp,
		RecordType: TypeHedgeFill,
		Data: map[string]any{
			"order_id":      ev.OrderID,
			"currency_pair": ev.CurrencyPair,
			"side":          string(ev.Side),
			"notional":      ev.Notional.String(),
			"fill_price":    ev.FillPrice.String(),
			"slippage":      ev.Slippage.String(),
		},
	}}

	if next.LotManager != nil && next.LotManager.Config().HedgeFillsCreateLots {
		lotRecords, updatedManager := applyLotLegs(s, next.LotManager, ev.CurrencyPair, ev.Side, ev.Notional, ev.FillPrice, ev.Timestamp, ev.OrderID)
		next = next.WithLotManager(updatedManager)
		records = append(records, lotRecords...)
	}

	next = next.IncrementEventCount()
	return next, records
}

// HandleConfigUpdate changes the reporting currency if config_key is
// "reporting_currency"; otherwise stores the value under the free-form
// config map.
func HandleConfigUpdate(s *state.State, ev event.ConfigUpdate) (*state.State, []Record) {
	var next *state.State
	if ev.ConfigKey == "reporting_currency" {
		next = s.WithReportingCurrency(ev.ConfigValue)
	} else {
		next = s.WithConfigValue(ev.ConfigKey, ev.ConfigValue)
	}
	next = next.IncrementEventCount()

	rec := Record{
		Timestamp:  ev.Timestamp,
		RecordType: TypeConfigUpdate,
		Data: map[string]any{
			"config_key":   ev.ConfigKey,
			"config_value": ev.ConfigValue,
		},
	}
	return next, []Record{rec}
}

// HandleClockTick emits a snapshot of every derived quantity the spec
// names; state is mutated only to advance event_count.
func HandleClockTick(s *state.State, ev event.ClockTick) (*state.State, []Record) {
	next := s.IncrementEventCount()

	conv := convert.New(s)
	cashBalances := make(map[string]any)
	totalEquity := decimal.Zero
	for _, ccy := range s.CashCurrencies() {
		bal := s.CashBalance(ccy)
		cashBalances[ccy] = bal.String()
		if converted, err := conv.Convert(bal, ccy, s.ReportingCurrency()); err == nil {
			totalEquity = totalEquity.Add(converted)
		}
	}

	positions := make(map[string]any)
	exposures := make(map[string]any)
	for _, pair := range s.PositionPairs() {
		pos := s.Position(pair)
		positions[pair] = pos.String()
		base, _ := event.SplitPair(pair)
		if converted, err := conv.Convert(pos, base, s.ReportingCurrency()); err == nil {
			exposures[pair] = converted.String()
		}
	}

	netPositions := make(map[string]any)
	var totalUnrealized decimal.Decimal
	var lotStats lotmgr.LotCountStats
	if s.LotManager != nil {
		mids := make(map[string]decimal.Decimal)
		for _, pair := range s.LotManager.RiskPairs() {
			netPositions[pair] = s.LotManager.NetPosition(pair).String()
			if rate, ok := s.MarketMid(pair); ok {
				mids[pair] = rate
			}
		}
		totalUnrealized = s.LotManager.TotalUnrealizedPnL(mids)
		lotStats = s.LotManager.Stats()
	}

	rec := Record{
		Timestamp:  ev.Timestamp,
		RecordType: TypeSnapshot,
		Data: map[string]any{
			"tick_label":              ev.TickLabel,
			"cash_balances":           cashBalances,
			"positions":               positions,
			"exposures":               exposures,
			"total_equity_reporting":  totalEquity.String(),
			"reporting_currency":      s.ReportingCurrency(),
			"event_count":             s.EventCount(),
			"net_positions":           netPositions,
			"total_unrealized_pnl":    totalUnrealized.String(),
			"open_lot_count":          lotStats.TotalOpen,
			"closed_lot_count":        lotStats.TotalClosed,
		},
	}
	return next, []Record{rec}
}

// applyLotLegs decomposes a trade into risk-pair legs against the
// pre-trade state snapshot and drives the lot manager per leg (spec
// §4.3, §4.4), shared by HandleClientTrade and HandleHedgeFill.
//
// A missing rate or an unconfigured risk pair fails the decomposition as
// a whole (no partial lot creation): a single lot_tracking_error record
// is emitted and the manager is returned unchanged.
func applyLotLegs(s *state.State, manager *lotmgr.Manager, pair string, side event.Side, notional, price decimal.Decimal, timestamp time.Time, originID string) ([]Record, *lotmgr.Manager) {
	conv := convert.New(s)
	decomposer := decompose.New(conv, manager.Config().ReportingCurrency)

	legs, err := decomposer.Decompose(pair, side, notional, price)
	if err != nil {
		return []Record{lotTrackingError(timestamp, "missing-rate", pair, err.Error())}, manager
	}

	next := manager
	var records []Record
	for i, leg := range legs {
		updated, matches, created, err := next.ProcessLeg(leg.RiskPair, leg.Side, leg.Quantity, leg.ReferencePrice, timestamp, originID, i, pair)
		if err != nil {
			return []Record{lotTrackingError(timestamp, "decomposition-error", leg.RiskPair, err.Error())}, manager
		}
		next = updated

		for _, m := range matches {
			records = append(records, Record{
				Timestamp:  timestamp,
				RecordType: TypeLotMatch,
				Data: map[string]any{
					"matched_lot_id": m.MatchedLot.ID,
					"risk_pair":      m.RiskPair,
					"matched_qty":    m.MatchedQuantity.String(),
					"close_price":    m.ClosePrice.String(),
					"realized_pnl":   m.RealizedPnL.String(),
					"closed_fully":   m.ClosedFully,
					"origin_trade_id": originID,
				},
			})
		}
		if created != nil {
			records = append(records, Record{
				Timestamp:  timestamp,
				RecordType: TypeLotCreated,
				Data: map[string]any{
					"lot_id":          created.Lot.ID,
					"risk_pair":       created.Lot.RiskPair,
					"side":            string(created.Lot.Side),
					"quantity":        created.Lot.Quantity.String(),
					"trade_price":     created.Lot.TradePrice.String(),
					"origin_trade_id": originID,
					"origin_pair":     pair,
					"decomposition_path": leg.Path,
				},
			})
		}
	}

	return records, next
}

func lotTrackingError(ts time.Time, errorKind, riskPair, message string) Record {
	return Record{
		Timestamp:  ts,
		RecordType: TypeLotTrackingError,
		Data: map[string]any{
			"error_kind": errorKind,
			"risk_pair":  riskPair,
			"message":    message,
		},
	}
}

// validateTrade checks the fields ClientTrade and HedgeFill have in
// common, returning a non-empty message on a schema violation (spec §7,
// "e.g., bid > ask, negative quantity").
func validateTrade(side event.Side, notional, price decimal.Decimal) string {
	if !side.Valid() {
		return fmt.Sprintf("invalid side %q", side)
	}
	if notional.Sign() <= 0 {
		return fmt.Sprintf("notional must be positive, got %s", notional)
	}
	if price.Sign() <= 0 {
		return fmt.Sprintf("price must be positive, got %s", price)
	}
	return ""
}

func validationError(ts time.Time, message string) Record {
	return Record{
		Timestamp:  ts,
		RecordType: TypeValidationError,
		Data: map[string]any{
			"message": message,
		},
	}
}
