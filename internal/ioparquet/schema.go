// Package ioparquet reads and writes simulation events as columnar
// Parquet files, one file per event kind, following the layout of the
// original implementation's pyarrow-based io_layer and the column-store
// conventions of chenjiangme-jupitor's internal/store/parquet.go.
package ioparquet

// Decimal, price, and quantity fields are stored as canonical decimal
// strings rather than floats, matching the original's CLIENT_TRADE_SCHEMA
// family — Parquet has no arbitrary-precision decimal-as-string
// convention issue here since we never round-trip through float64.

// ClientTradeRecord is the on-disk schema for a client_trade event file.
type ClientTradeRecord struct {
	TimestampMicros int64  `parquet:"timestamp,timestamp(microsecond)"`
	SequenceID      int64  `parquet:"sequence_id"`
	CurrencyPair    string `parquet:"currency_pair"`
	Side            string `parquet:"side"`
	Notional        string `parquet:"notional"`
	Price           string `parquet:"price"`
	ClientID        string `parquet:"client_id"`
	TradeID         string `parquet:"trade_id"`
}

// MarketUpdateRecord is the on-disk schema for a market_update event file.
type MarketUpdateRecord struct {
	TimestampMicros int64  `parquet:"timestamp,timestamp(microsecond)"`
	SequenceID      int64  `parquet:"sequence_id"`
	CurrencyPair    string `parquet:"currency_pair"`
	Bid             string `parquet:"bid"`
	Ask             string `parquet:"ask"`
	Mid             string `parquet:"mid"`
}

// ConfigUpdateRecord is the on-disk schema for a config_update event file.
type ConfigUpdateRecord struct {
	TimestampMicros int64  `parquet:"timestamp,timestamp(microsecond)"`
	SequenceID      int64  `parquet:"sequence_id"`
	ConfigKey       string `parquet:"config_key"`
	ConfigValue     string `parquet:"config_value"`
}

// HedgeOrderRecord is the on-disk schema for a hedge_order event file.
// LimitPrice is the empty string when the order has no limit.
type HedgeOrderRecord struct {
	TimestampMicros int64  `parquet:"timestamp,timestamp(microsecond)"`
	SequenceID      int64  `parquet:"sequence_id"`
	OrderID         string `parquet:"order_id"`
	CurrencyPair    string `parquet:"currency_pair"`
	Side            string `parquet:"side"`
	Notional        string `parquet:"notional"`
	LimitPrice      string `parquet:"limit_price,optional"`
}

// HedgeFillRecord is the on-disk schema for a hedge_fill event file.
type HedgeFillRecord struct {
	TimestampMicros int64  `parquet:"timestamp,timestamp(microsecond)"`
	SequenceID      int64  `parquet:"sequence_id"`
	OrderID         string `parquet:"order_id"`
	CurrencyPair    string `parquet:"currency_pair"`
	Side            string `parquet:"side"`
	Notional        string `parquet:"notional"`
	FillPrice       string `parquet:"fill_price"`
	Slippage        string `parquet:"slippage"`
}

// ClockTickRecord is the on-disk schema for a clock_tick event file.
type ClockTickRecord struct {
	TimestampMicros int64  `parquet:"timestamp,timestamp(microsecond)"`
	SequenceID      int64  `parquet:"sequence_id"`
	TickLabel       string `parquet:"tick_label"`
}

// SnapshotRecord is the on-disk schema for writing clock-tick snapshot
// output records back out for analytics, mirroring write_snapshots_parquet
// in the original io_layer.py.
type SnapshotRecord struct {
	TimestampMicros       int64  `parquet:"timestamp,timestamp(microsecond)"`
	TickLabel             string `parquet:"tick_label"`
	EventCount            int64  `parquet:"event_count"`
	ReportingCurrency     string `parquet:"reporting_currency"`
	TotalEquityReporting  string `parquet:"total_equity_reporting"`
	CashBalancesJSON      string `parquet:"cash_balances_json"`
	PositionsJSON         string `parquet:"positions_json"`
	ExposuresJSON         string `parquet:"exposures_json"`
}
