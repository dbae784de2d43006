// Package decompose reduces a trade in any allowed trade pair to one or
// more legs in the desk's configured risk pairs (spec §4.3).
package decompose

import (
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/efxlab/simulator/internal/convert"
	"github.com/efxlab/simulator/internal/event"
)

// Leg is (risk_pair, side, quantity, reference_price) from the desk's
// perspective — already inverted from the client's side.
type Leg struct {
	RiskPair       string
	Side           event.Side
	Quantity       decimal.Decimal
	ReferencePrice decimal.Decimal
	Path           string // decomposition_path, for diagnostics/records
}

// MissingRateError wraps a convert.MissingRateError encountered while
// decomposing a cross, so callers can distinguish decomposition failures
// from other errors without depending on the convert package's error type
// directly.
type MissingRateError struct {
	TradePair string
	Err       error
}

func (e MissingRateError) Error() string {
	return fmt.Sprintf("decompose: cannot decompose %s: %v", e.TradePair, e.Err)
}

func (e MissingRateError) Unwrap() error { return e.Err }

// Decomposer turns client trades into risk-pair legs. It touches no state;
// every call receives the rates it needs through its convert.Converter.
type Decomposer struct {
	converter         *convert.Converter
	reportingCurrency string
}

// New creates a Decomposer using the given converter and reporting
// currency.
func New(converter *convert.Converter, reportingCurrency string) *Decomposer {
	return &Decomposer{converter: converter, reportingCurrency: reportingCurrency}
}

// Decompose reduces a trade to one leg (trade pair is itself a risk pair,
// i.e. quoted against the reporting currency) or two legs (a cross).
func (d *Decomposer) Decompose(tradePair string, clientSide event.Side, quantity, executionPrice decimal.Decimal) ([]Leg, error) {
	base, quote := event.SplitPair(tradePair)
	deskSide := clientSide.Opposite()

	if quote == d.reportingCurrency {
		return []Leg{{
			RiskPair:       tradePair,
			Side:           deskSide,
			Quantity:       quantity,
			ReferencePrice: executionPrice,
			Path:           tradePair,
		}}, nil
	}

	// Cross trade: client BUY of `quantity` of A/B at price π gains the
	// client `quantity` A and costs `quantity*π` B. The desk takes the
	// opposite side in each of A's and B's risk pairs against R.
	baseRiskPair := base + "/" + d.reportingCurrency
	baseRate, err := d.converter.Rate(base, d.reportingCurrency)
	if err != nil {
		return nil, MissingRateError{TradePair: tradePair, Err: err}
	}

	quoteRiskPair := quote + "/" + d.reportingCurrency
	quoteRate, err := d.converter.Rate(quote, d.reportingCurrency)
	if err != nil {
		return nil, MissingRateError{TradePair: tradePair, Err: err}
	}

	// Client BUY: desk sells A, buys B. Client SELL inverts both.
	deskSideBase := event.Sell
	deskSideQuote := event.Buy
	if clientSide == event.Sell {
		deskSideBase = event.Buy
		deskSideQuote = event.Sell
	}

	quoteAmount := quantity.Mul(executionPrice)

	legs := []Leg{
		{
			RiskPair:       baseRiskPair,
			Side:           deskSideBase,
			Quantity:       quantity,
			ReferencePrice: baseRate,
			Path:           tradePair + "->" + baseRiskPair,
		},
		{
			RiskPair:       quoteRiskPair,
			Side:           deskSideQuote,
			Quantity:       quoteAmount,
			ReferencePrice: quoteRate,
			Path:           tradePair + "->" + quoteRiskPair,
		},
	}
	return legs, nil
}
