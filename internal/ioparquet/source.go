package ioparquet

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/parquet-go/parquet-go"
	"github.com/shopspring/decimal"

	"github.com/efxlab/simulator/internal/event"
)

// LoadClientTrades reads a client_trade Parquet file into ClientTrade
// events. Business-rule fields (side, notional, price) are not validated
// here — a malformed row still reaches HandleClientTrade, which is where
// spec §7 requires a validation-error record to be emitted, not a load
// failure. Only an unparseable decimal field, a malformed pair or a
// negative sequence_id aborts the load: there's no well-formed event to
// hand to a handler.
func LoadClientTrades(path string, logger *slog.Logger) ([]event.Event, error) {
	rows, err := parquet.ReadFile[ClientTradeRecord](path)
	if err != nil {
		return nil, fmt.Errorf("ioparquet: read %s: %w", path, err)
	}

	events := make([]event.Event, 0, len(rows))
	for _, r := range rows {
		notional, err := decimal.NewFromString(r.Notional)
		if err != nil {
			return nil, fmt.Errorf("ioparquet: %s: invalid notional %q: %w", path, r.Notional, err)
		}
		price, err := decimal.NewFromString(r.Price)
		if err != nil {
			return nil, fmt.Errorf("ioparquet: %s: invalid price %q: %w", path, r.Price, err)
		}
		ev, err := event.NewRawClientTrade(
			microsToTime(r.TimestampMicros), r.SequenceID, r.CurrencyPair,
			event.Side(r.Side), notional, price, r.ClientID, r.TradeID,
		)
		if err != nil {
			return nil, fmt.Errorf("ioparquet: %s: %w", path, err)
		}
		events = append(events, ev)
	}

	logger.Info("events_loaded", "file", path, "event_type", "client_trade", "count", len(events))
	return events, nil
}

// LoadMarketUpdates reads a market_update Parquet file into MarketUpdate
// events. A crossed quote (bid > ask) is not rejected here: it reaches
// HandleMarketUpdate, which emits a validation-error record and leaves
// state unchanged, per spec §7's recoverable-error policy.
func LoadMarketUpdates(path string, logger *slog.Logger) ([]event.Event, error) {
	rows, err := parquet.ReadFile[MarketUpdateRecord](path)
	if err != nil {
		return nil, fmt.Errorf("ioparquet: read %s: %w", path, err)
	}

	events := make([]event.Event, 0, len(rows))
	for _, r := range rows {
		bid, err := decimal.NewFromString(r.Bid)
		if err != nil {
			return nil, fmt.Errorf("ioparquet: %s: invalid bid %q: %w", path, r.Bid, err)
		}
		ask, err := decimal.NewFromString(r.Ask)
		if err != nil {
			return nil, fmt.Errorf("ioparquet: %s: invalid ask %q: %w", path, r.Ask, err)
		}
		mid, err := decimal.NewFromString(r.Mid)
		if err != nil {
			return nil, fmt.Errorf("ioparquet: %s: invalid mid %q: %w", path, r.Mid, err)
		}
		ev, err := event.NewRawMarketUpdate(microsToTime(r.TimestampMicros), r.SequenceID, r.CurrencyPair, bid, ask, mid)
		if err != nil {
			return nil, fmt.Errorf("ioparquet: %s: %w", path, err)
		}
		events = append(events, ev)
	}

	logger.Info("events_loaded", "file", path, "event_type", "market_update", "count", len(events))
	return events, nil
}

// LoadConfigUpdates reads a config_update Parquet file into ConfigUpdate
// events.
func LoadConfigUpdates(path string, logger *slog.Logger) ([]event.Event, error) {
	rows, err := parquet.ReadFile[ConfigUpdateRecord](path)
	if err != nil {
		return nil, fmt.Errorf("ioparquet: read %s: %w", path, err)
	}

	events := make([]event.Event, 0, len(rows))
	for _, r := range rows {
		ev, err := event.NewConfigUpdate(microsToTime(r.TimestampMicros), r.SequenceID, r.ConfigKey, r.ConfigValue)
		if err != nil {
			return nil, fmt.Errorf("ioparquet: %s: %w", path, err)
		}
		events = append(events, ev)
	}

	logger.Info("events_loaded", "file", path, "event_type", "config_update", "count", len(events))
	return events, nil
}

// LoadHedgeOrders reads a hedge_order Parquet file into HedgeOrder events.
// Business-rule fields are left for HandleHedgeOrder to validate (spec
// §7), the same as LoadClientTrades.
func LoadHedgeOrders(path string, logger *slog.Logger) ([]event.Event, error) {
	rows, err := parquet.ReadFile[HedgeOrderRecord](path)
	if err != nil {
		return nil, fmt.Errorf("ioparquet: read %s: %w", path, err)
	}

	events := make([]event.Event, 0, len(rows))
	for _, r := range rows {
		notional, err := decimal.NewFromString(r.Notional)
		if err != nil {
			return nil, fmt.Errorf("ioparquet: %s: invalid notional %q: %w", path, r.Notional, err)
		}
		var limitPrice *decimal.Decimal
		if r.LimitPrice != "" {
			lp, err := decimal.NewFromString(r.LimitPrice)
			if err != nil {
				return nil, fmt.Errorf("ioparquet: %s: invalid limit_price %q: %w", path, r.LimitPrice, err)
			}
			limitPrice = &lp
		}
		ev, err := event.NewRawHedgeOrder(microsToTime(r.TimestampMicros), r.SequenceID, r.OrderID, r.CurrencyPair, event.Side(r.Side), notional, limitPrice)
		if err != nil {
			return nil, fmt.Errorf("ioparquet: %s: %w", path, err)
		}
		events = append(events, ev)
	}

	logger.Info("events_loaded", "file", path, "event_type", "hedge_order", "count", len(events))
	return events, nil
}

// LoadHedgeFills reads a hedge_fill Parquet file into HedgeFill events.
// Business-rule fields are left for HandleHedgeFill to validate (spec
// §7), the same as LoadClientTrades.
func LoadHedgeFills(path string, logger *slog.Logger) ([]event.Event, error) {
	rows, err := parquet.ReadFile[HedgeFillRecord](path)
	if err != nil {
		return nil, fmt.Errorf("ioparquet: read %s: %w", path, err)
	}

	events := make([]event.Event, 0, len(rows))
	for _, r := range rows {
		notional, err := decimal.NewFromString(r.Notional)
		if err != nil {
			return nil, fmt.Errorf("ioparquet: %s: invalid notional %q: %w", path, r.Notional, err)
		}
		fillPrice, err := decimal.NewFromString(r.FillPrice)
		if err != nil {
			return nil, fmt.Errorf("ioparquet: %s: invalid fill_price %q: %w", path, r.FillPrice, err)
		}
		slippage := decimal.Zero
		if r.Slippage != "" {
			slippage, err = decimal.NewFromString(r.Slippage)
			if err != nil {
				return nil, fmt.Errorf("ioparquet: %s: invalid slippage %q: %w", path, r.Slippage, err)
			}
		}
		ev, err := event.NewRawHedgeFill(microsToTime(r.TimestampMicros), r.SequenceID, r.OrderID, r.CurrencyPair, event.Side(r.Side), notional, fillPrice, slippage)
		if err != nil {
			return nil, fmt.Errorf("ioparquet: %s: %w", path, err)
		}
		events = append(events, ev)
	}

	logger.Info("events_loaded", "file", path, "event_type", "hedge_fill", "count", len(events))
	return events, nil
}

// LoadClockTicks reads a clock_tick Parquet file into ClockTick events.
func LoadClockTicks(path string, logger *slog.Logger) ([]event.Event, error) {
	rows, err := parquet.ReadFile[ClockTickRecord](path)
	if err != nil {
		return nil, fmt.Errorf("ioparquet: read %s: %w", path, err)
	}

	events := make([]event.Event, 0, len(rows))
	for _, r := range rows {
		ev, err := event.NewClockTick(microsToTime(r.TimestampMicros), r.SequenceID, r.TickLabel)
		if err != nil {
			return nil, fmt.Errorf("ioparquet: %s: %w", path, err)
		}
		events = append(events, ev)
	}

	logger.Info("events_loaded", "file", path, "event_type", "clock_tick", "count", len(events))
	return events, nil
}

func microsToTime(micros int64) time.Time {
	return time.UnixMicro(micros).UTC()
}
