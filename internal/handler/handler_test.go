package handler

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/efxlab/simulator/internal/event"
	"github.com/efxlab/simulator/internal/lotmgr"
	"github.com/efxlab/simulator/internal/state"
)

func d(f float64) decimal.Decimal {
	return decimal.NewFromFloat(f)
}

var epoch = time.Date(2025, 1, 1, 9, 0, 0, 0, time.UTC)

func recordsOfType(records []Record, recordType string) []Record {
	var out []Record
	for _, r := range records {
		if r.RecordType == recordType {
			out = append(out, r)
		}
	}
	return out
}

// --- HandleMarketUpdate ---

func TestHandleMarketUpdate_StoresRate(t *testing.T) {
	s := state.New("USD", nil)
	ev, _ := event.NewMarketUpdate(epoch, 1, "EUR/USD", d(1.0998), d(1.1002), d(1.1000))

	next, records := HandleMarketUpdate(s, ev)

	if len(recordsOfType(records, TypeMarketUpdate)) != 1 {
		t.Fatalf("expected one market_update record, got %+v", records)
	}
	mid, ok := next.MarketMid("EUR/USD")
	if !ok || !mid.Equal(d(1.1000)) {
		t.Errorf("expected cached mid 1.1000, got %s, ok=%v", mid, ok)
	}
}

func TestHandleMarketUpdate_UnchangedStateOnValidationError(t *testing.T) {
	s := state.New("USD", nil)

	// NewMarketUpdate already rejects a crossed quote; this constructs
	// the zero-value struct directly to exercise the handler's own
	// bid<=ask guard as defense-in-depth against a non-validating caller.
	ev := event.MarketUpdate{
		CurrencyPair: "EUR/USD",
		Bid:          d(1.1),
		Ask:          d(1.0999),
		Mid:          d(1.1),
	}

	next, records := HandleMarketUpdate(s, ev)
	if len(recordsOfType(records, TypeValidationError)) != 1 {
		t.Errorf("expected a validation_error record")
	}
	if _, ok := next.MarketMid("EUR/USD"); ok {
		t.Errorf("expected no rate to be cached on validation failure")
	}
}

// --- HandleClientTrade ---

func TestHandleClientTrade_AppliesAccounting(t *testing.T) {
	s := state.New("USD", nil)
	ev, _ := event.NewClientTrade(epoch, 1, "EUR/USD", event.Buy, d(1_000_000), d(1.10), "client-1", "trade-1")

	next, records := HandleClientTrade(s, ev)

	if !next.CashBalance("EUR").Equal(d(-1_000_000)) {
		t.Errorf("expected -1,000,000 EUR, got %s", next.CashBalance("EUR"))
	}
	if !next.CashBalance("USD").Equal(d(1_100_000)) {
		t.Errorf("expected +1,100,000 USD, got %s", next.CashBalance("USD"))
	}
	if len(recordsOfType(records, TypeClientTrade)) != 1 {
		t.Fatalf("expected one client_trade record")
	}
}

func TestHandleClientTrade_DirectPair_CreatesLot(t *testing.T) {
	manager := lotmgr.New(lotmgr.Config{
		Enabled:           true,
		ReportingCurrency: "USD",
		RiskPairs:         []string{"EUR/USD"},
		TradePairs:        []string{"EUR/USD"},
	})
	s := state.New("USD", manager)
	ev, _ := event.NewClientTrade(epoch, 1, "EUR/USD", event.Buy, d(1_000_000), d(1.10), "client-1", "trade-1")

	next, records := HandleClientTrade(s, ev)

	created := recordsOfType(records, TypeLotCreated)
	if len(created) != 1 {
		t.Fatalf("expected one lot_created record, got %+v", records)
	}
	if next.LotManager.OpenLots("EUR/USD")[0].TradePrice.String() != "1.1" {
		t.Errorf("expected the new lot's trade price to be the client's execution price")
	}
}

func TestHandleClientTrade_Cross_DecomposesIntoTwoLots(t *testing.T) {
	manager := lotmgr.New(lotmgr.Config{
		Enabled:           true,
		ReportingCurrency: "USD",
		RiskPairs:         []string{"EUR/USD", "GBP/USD"},
		TradePairs:        []string{"EUR/USD", "GBP/USD", "EUR/GBP"},
	})
	s := state.New("USD", manager)
	s = s.WithMarketRate("EUR/USD", d(1.0998), d(1.1002), d(1.10), epoch)
	s = s.WithMarketRate("GBP/USD", d(1.2698), d(1.2702), d(1.27), epoch)

	ev, _ := event.NewClientTrade(epoch, 1, "EUR/GBP", event.Buy, d(1_000_000), d(0.8661), "client-1", "trade-1")
	next, records := HandleClientTrade(s, ev)

	created := recordsOfType(records, TypeLotCreated)
	if len(created) != 2 {
		t.Fatalf("expected two lot_created records for a cross, got %d", len(created))
	}
	if next.LotManager.Stats().TotalOpen != 2 {
		t.Errorf("expected two open lots across EUR/USD and GBP/USD")
	}
}

func TestHandleClientTrade_MissingRate_EmitsLotTrackingErrorAndAppliesCash(t *testing.T) {
	manager := lotmgr.New(lotmgr.Config{
		Enabled:           true,
		ReportingCurrency: "USD",
		RiskPairs:         []string{"EUR/USD", "GBP/USD"},
		TradePairs:        []string{"EUR/USD", "GBP/USD", "EUR/GBP"},
	})
	s := state.New("USD", manager)
	s = s.WithMarketRate("EUR/USD", d(1.0998), d(1.1002), d(1.10), epoch)
	// GBP/USD is never quoted.

	ev, _ := event.NewClientTrade(epoch, 1, "EUR/GBP", event.Buy, d(1_000_000), d(0.8661), "client-1", "trade-1")
	next, records := HandleClientTrade(s, ev)

	errRecords := recordsOfType(records, TypeLotTrackingError)
	if len(errRecords) != 1 {
		t.Fatalf("expected exactly one lot_tracking_error record, got %+v", records)
	}
	if errRecords[0].Data["error_kind"] != "missing-rate" {
		t.Errorf("expected error_kind missing-rate, got %v", errRecords[0].Data["error_kind"])
	}
	if len(recordsOfType(records, TypeLotCreated)) != 0 {
		t.Errorf("expected no lots created when decomposition fails")
	}
	// Cash/position accounting for the client trade itself still applies:
	// the client bought EUR, so the desk's EUR balance is debited.
	if !next.CashBalance("EUR").Equal(d(-1_000_000)) {
		t.Errorf("expected the client trade's own cash effect to apply regardless of lot tracking failure")
	}
	if next.LotManager.Stats().TotalOpen != 0 {
		t.Errorf("expected the lot manager to be unchanged on decomposition failure")
	}
}

func TestHandleClientTrade_UnchangedStateOnValidationError(t *testing.T) {
	s := state.New("USD", nil)

	// NewClientTrade already rejects a non-positive notional; this
	// constructs the struct directly, mirroring how a loader that skips
	// the validating constructor would pass a malformed row through.
	ev := event.ClientTrade{
		CurrencyPair: "EUR/USD",
		Side:         event.Buy,
		Notional:     d(-1_000_000),
		Price:        d(1.10),
		ClientID:     "client-1",
		TradeID:      "trade-1",
	}

	next, records := HandleClientTrade(s, ev)
	if len(recordsOfType(records, TypeValidationError)) != 1 {
		t.Errorf("expected a validation_error record")
	}
	if !next.CashBalance("EUR").IsZero() || !next.CashBalance("USD").IsZero() {
		t.Errorf("expected no cash effect on validation failure")
	}
}

// --- HandleHedgeOrder ---

func TestHandleHedgeOrder_NoStateEffectBesidesEventCount(t *testing.T) {
	s := state.New("USD", nil)
	ev, _ := event.NewHedgeOrder(epoch, 1, "ho-1", "EUR/USD", event.Buy, d(500_000), nil)

	next, records := HandleHedgeOrder(s, ev)

	if next.EventCount() != 1 {
		t.Errorf("expected event count 1, got %d", next.EventCount())
	}
	if !next.CashBalance("EUR").IsZero() {
		t.Errorf("a hedge order must not touch cash")
	}
	if len(recordsOfType(records, TypeHedgeOrder)) != 1 {
		t.Errorf("expected one hedge_order record")
	}
}

func TestHandleHedgeOrder_UnchangedStateOnValidationError(t *testing.T) {
	s := state.New("USD", nil)
	ev := event.HedgeOrder{
		OrderID:      "ho-1",
		CurrencyPair: "EUR/USD",
		Side:         "SIDEWAYS",
		Notional:     d(500_000),
	}

	next, records := HandleHedgeOrder(s, ev)
	if len(recordsOfType(records, TypeValidationError)) != 1 {
		t.Errorf("expected a validation_error record")
	}
	if next.EventCount() != 1 {
		t.Errorf("expected event count to still advance by one on a validation error")
	}
}

// --- HandleHedgeFill ---

func TestHandleHedgeFill_AppliesAccountingAndSlippage(t *testing.T) {
	s := state.New("USD", nil)
	ev, _ := event.NewHedgeFill(epoch, 1, "ho-1", "EUR/USD", event.Buy, d(500_000), d(1.1005), d(50))

	next, _ := HandleHedgeFill(s, ev)

	if !next.CashBalance("EUR").Equal(d(-500_000)) {
		t.Errorf("expected -500,000 EUR, got %s", next.CashBalance("EUR"))
	}
	wantUSD := d(500_000).Mul(d(1.1005)).Sub(d(50))
	if !next.CashBalance("USD").Equal(wantUSD) {
		t.Errorf("expected USD %s after slippage, got %s", wantUSD, next.CashBalance("USD"))
	}
}

func TestHandleHedgeFill_UnchangedStateOnValidationError(t *testing.T) {
	s := state.New("USD", nil)
	ev := event.HedgeFill{
		OrderID:      "ho-1",
		CurrencyPair: "EUR/USD",
		Side:         event.Buy,
		Notional:     d(-500_000),
		FillPrice:    d(1.1005),
		Slippage:     d(0),
	}

	next, records := HandleHedgeFill(s, ev)

	if len(recordsOfType(records, TypeValidationError)) != 1 {
		t.Fatalf("expected exactly one validation_error record, got %d", len(recordsOfType(records, TypeValidationError)))
	}
	if !next.CashBalance("EUR").IsZero() || !next.CashBalance("USD").IsZero() {
		t.Errorf("expected no cash effect from a rejected hedge fill, got EUR=%s USD=%s", next.CashBalance("EUR"), next.CashBalance("USD"))
	}
}

func TestHandleHedgeFill_RespectsHedgeFillsCreateLotsGate(t *testing.T) {
	manager := lotmgr.New(lotmgr.Config{
		Enabled:              true,
		ReportingCurrency:    "USD",
		RiskPairs:            []string{"EUR/USD"},
		HedgePairs:           []string{"EUR/USD"},
		HedgeFillsCreateLots: false,
	})
	s := state.New("USD", manager)
	ev, _ := event.NewHedgeFill(epoch, 1, "ho-1", "EUR/USD", event.Buy, d(500_000), d(1.10), d(0))

	next, records := HandleHedgeFill(s, ev)

	if len(recordsOfType(records, TypeLotCreated)) != 0 {
		t.Errorf("expected no lot records when hedge_fills_create_lots is false")
	}
	if next.LotManager.Stats().TotalOpen != 0 {
		t.Errorf("expected the lot manager to be untouched")
	}
}

func TestHandleHedgeFill_CreatesLotsWhenGateEnabled(t *testing.T) {
	manager := lotmgr.New(lotmgr.Config{
		Enabled:              true,
		ReportingCurrency:    "USD",
		RiskPairs:            []string{"EUR/USD"},
		HedgePairs:           []string{"EUR/USD"},
		HedgeFillsCreateLots: true,
	})
	s := state.New("USD", manager)
	ev, _ := event.NewHedgeFill(epoch, 1, "ho-1", "EUR/USD", event.Buy, d(500_000), d(1.10), d(0))

	next, records := HandleHedgeFill(s, ev)

	if len(recordsOfType(records, TypeLotCreated)) != 1 {
		t.Errorf("expected one lot_created record when the gate is enabled")
	}
	if next.LotManager.Stats().TotalOpen != 1 {
		t.Errorf("expected one open lot")
	}
}

// --- HandleConfigUpdate ---

func TestHandleConfigUpdate_ReportingCurrency(t *testing.T) {
	s := state.New("USD", nil)
	ev, _ := event.NewConfigUpdate(epoch, 1, "reporting_currency", "EUR")

	next, _ := HandleConfigUpdate(s, ev)
	if next.ReportingCurrency() != "EUR" {
		t.Errorf("expected reporting currency EUR, got %s", next.ReportingCurrency())
	}
}

func TestHandleConfigUpdate_FreeFormKey(t *testing.T) {
	s := state.New("USD", nil)
	ev, _ := event.NewConfigUpdate(epoch, 1, "max_position", "10000000")

	next, _ := HandleConfigUpdate(s, ev)
	v, ok := next.ConfigValue("max_position")
	if !ok || v != "10000000" {
		t.Errorf("expected max_position=10000000, got %s, ok=%v", v, ok)
	}
}

// --- HandleClockTick ---

func TestHandleClockTick_EmitsOneSnapshot(t *testing.T) {
	s := state.New("USD", nil)
	s = s.WithMarketRate("EUR/USD", d(1.0998), d(1.1002), d(1.10), epoch)
	s = s.WithCash("USD", d(1_000_000))
	ev, _ := event.NewClockTick(epoch, 1, "T+1H")

	_, records := HandleClockTick(s, ev)
	if len(recordsOfType(records, TypeSnapshot)) != 1 {
		t.Fatalf("expected exactly one snapshot record, got %+v", records)
	}
	data := records[0].Data
	if data["reporting_currency"] != "USD" {
		t.Errorf("expected reporting_currency USD in snapshot")
	}
	if data["tick_label"] != "T+1H" {
		t.Errorf("expected tick_label T+1H in snapshot")
	}
}

func TestHandleClockTick_TotalEquityConvertsCashToReporting(t *testing.T) {
	s := state.New("USD", nil)
	s = s.WithMarketRate("EUR/USD", d(1.0998), d(1.1002), d(1.10), epoch)
	s = s.WithCash("EUR", d(1_000_000))
	ev, _ := event.NewClockTick(epoch, 1, "T+1H")

	_, records := HandleClockTick(s, ev)
	totalEquity := records[0].Data["total_equity_reporting"]
	if totalEquity != d(1_100_000).String() {
		t.Errorf("expected total_equity_reporting 1,100,000, got %v", totalEquity)
	}
}
