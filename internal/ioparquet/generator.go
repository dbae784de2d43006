package ioparquet

import (
	"fmt"
	"log/slog"
	"math/rand"
	"os"
	"path/filepath"
	"time"

	"github.com/parquet-go/parquet-go"
	"github.com/shopspring/decimal"
)

// baseRates mirrors the original generate_sample_data's starting quotes.
var baseRates = map[string]decimal.Decimal{
	"EUR/USD": decimal.RequireFromString("1.1000"),
	"GBP/USD": decimal.RequireFromString("1.2700"),
	"USD/JPY": decimal.RequireFromString("110.00"),
	"AUD/USD": decimal.RequireFromString("0.7300"),
}

var samplePairs = []string{"EUR/USD", "GBP/USD", "USD/JPY", "AUD/USD"}

// GenerateSampleData writes synthetic market_updates.parquet,
// client_trades.parquet, and clock_ticks.parquet files to outDir —
// the Go equivalent of the original's generate_sample_data, made
// reproducible by taking an explicit seed (the original used unseeded
// global random state).
func GenerateSampleData(outDir string, numTrades, numTicks int, seed int64, logger *slog.Logger) error {
	if err := os.MkdirAll(outDir, 0o755); err != nil {
		return fmt.Errorf("ioparquet: mkdir %s: %w", outDir, err)
	}

	rng := rand.New(rand.NewSource(seed))
	baseTime := time.Date(2025, 1, 1, 9, 0, 0, 0, time.UTC)

	var seq int64

	marketRows := make([]MarketUpdateRecord, 0, numTicks)
	for i := 0; i < numTicks; i++ {
		ts := baseTime.Add(time.Duration(i*10) * time.Second)
		pair := samplePairs[rng.Intn(len(samplePairs))]
		base := baseRates[pair]
		spread := base.Mul(decimal.NewFromFloat(0.0001))
		wobble := decimal.NewFromFloat(rng.NormFloat64() * 0.001)
		mid := base.Mul(decimal.NewFromInt(1).Add(wobble))
		bid := mid.Sub(spread.Div(decimal.NewFromInt(2)))
		ask := mid.Add(spread.Div(decimal.NewFromInt(2)))

		marketRows = append(marketRows, MarketUpdateRecord{
			TimestampMicros: ts.UnixMicro(),
			SequenceID:      seq,
			CurrencyPair:    pair,
			Bid:             bid.String(),
			Ask:             ask.String(),
			Mid:             mid.String(),
		})
		seq++
	}
	if err := writeGenerated(filepath.Join(outDir, "market_updates.parquet"), marketRows); err != nil {
		return err
	}
	logger.Info("generated_market_updates", "count", numTicks)

	tradeRows := make([]ClientTradeRecord, 0, numTrades)
	sides := []string{"BUY", "SELL"}
	for i := 0; i < numTrades; i++ {
		ts := baseTime.Add(time.Duration(rng.Intn(numTicks*10+1)) * time.Second)
		pair := samplePairs[rng.Intn(len(samplePairs))]
		side := sides[rng.Intn(len(sides))]
		notional := decimal.NewFromInt(int64(100_000 + rng.Intn(9_900_001)))
		wobble := decimal.NewFromFloat(rng.NormFloat64() * 0.002)
		price := baseRates[pair].Mul(decimal.NewFromInt(1).Add(wobble))

		tradeRows = append(tradeRows, ClientTradeRecord{
			TimestampMicros: ts.UnixMicro(),
			SequenceID:      seq,
			CurrencyPair:    pair,
			Side:            side,
			Notional:        notional.String(),
			Price:           price.String(),
			ClientID:        fmt.Sprintf("CLIENT_%d", 1+rng.Intn(20)),
			TradeID:         fmt.Sprintf("TRADE_%06d", i+1),
		})
		seq++
	}
	if err := writeGenerated(filepath.Join(outDir, "client_trades.parquet"), tradeRows); err != nil {
		return err
	}
	logger.Info("generated_client_trades", "count", numTrades)

	tickRows := make([]ClockTickRecord, 0, 8)
	for hour := 0; hour < 8; hour++ {
		ts := baseTime.Add(time.Duration(hour) * time.Hour)
		tickRows = append(tickRows, ClockTickRecord{
			TimestampMicros: ts.UnixMicro(),
			SequenceID:      seq,
			TickLabel:       fmt.Sprintf("T+%dH", hour),
		})
		seq++
	}
	if err := writeGenerated(filepath.Join(outDir, "clock_ticks.parquet"), tickRows); err != nil {
		return err
	}
	logger.Info("generated_clock_ticks", "count", len(tickRows))

	return nil
}

func writeGenerated[T any](path string, rows []T) error {
	if err := parquet.WriteFile(path, rows); err != nil {
		return fmt.Errorf("ioparquet: write %s: %w", path, err)
	}
	return nil
}
