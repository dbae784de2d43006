// Package convert implements the currency-conversion service that resolves
// arbitrary pair rates from the state's cached market quotes (spec §4.1).
package convert

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// RateSource is the minimal read-only view a Converter needs from engine
// state: the mid of a cached quote for a pair, if one exists. Accepting an
// interface here (rather than *state.State directly) keeps this package
// free of a dependency on the state package, avoiding a cycle since state
// does not need to know about conversion.
type RateSource interface {
	MarketMid(pair string) (decimal.Decimal, bool)
}

// MissingRateError is returned when no cached quote can resolve a rate,
// directly or by inversion (spec §4.1 step 4).
type MissingRateError struct {
	From, To string
}

func (e MissingRateError) Error() string {
	return fmt.Sprintf("convert: no market rate available for %s/%s or %s/%s", e.From, e.To, e.To, e.From)
}

// Converter resolves rates and converts amounts using only the mid of
// cached quotes — no triangulation through a third currency is attempted
// here; that is the decomposer's job.
type Converter struct {
	source RateSource
}

// New creates a Converter over the given rate source.
func New(source RateSource) *Converter {
	return &Converter{source: source}
}

// inversionPrecision is the number of decimal places kept when inverting a
// cached mid. shopspring/decimal's default Div rounds to 16 places, well
// short of the 28 significant digits spec.md §3.1 requires of any value
// that crosses a handler boundary; DivRound at this precision is the only
// rounding the engine performs when inverting a rate (spec.md §9).
const inversionPrecision = 28

// Rate resolves the rate to convert one unit of from into to, trying (in
// order): identity, the direct pair's mid, the inverse pair's inverted
// mid. Returns MissingRateError if neither is cached.
func (c *Converter) Rate(from, to string) (decimal.Decimal, error) {
	if from == to {
		return decimal.NewFromInt(1), nil
	}

	if mid, ok := c.source.MarketMid(from + "/" + to); ok {
		return mid, nil
	}

	if mid, ok := c.source.MarketMid(to + "/" + from); ok {
		return decimal.NewFromInt(1).DivRound(mid, inversionPrecision), nil
	}

	return decimal.Decimal{}, MissingRateError{From: from, To: to}
}

// Convert converts amount (denominated in from) into to using the
// resolved mid rate.
func (c *Converter) Convert(amount decimal.Decimal, from, to string) (decimal.Decimal, error) {
	rate, err := c.Rate(from, to)
	if err != nil {
		return decimal.Decimal{}, err
	}
	return amount.Mul(rate), nil
}
