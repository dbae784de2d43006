// Package lot implements the single-lot object and the per-risk-pair FIFO
// lot queue with match semantics (spec §3.4, §4.4).
package lot

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/efxlab/simulator/internal/event"
)

// Lot is an immutable opening of risk in a direct (risk) pair. Reductions
// return a new Lot rather than mutating the receiver.
type Lot struct {
	ID              string
	RiskPair        string
	Side            event.Side
	Quantity        decimal.Decimal // remaining, open quantity
	OriginalQty     decimal.Decimal
	TradePrice      decimal.Decimal
	OpenTimestamp   time.Time
	OriginTradeID   string
	OriginLegIndex  int
	OriginPair      string // the client's traded pair, may differ from RiskPair
	CloseTimestamp  *time.Time
	ClosePrice      *decimal.Decimal
}

// IsClosed reports whether the lot has been fully matched.
func (l Lot) IsClosed() bool {
	return l.CloseTimestamp != nil
}

// ReduceQuantity returns a new Lot with its quantity reduced by amount.
// amount must be positive and no greater than the current quantity (L1).
func (l Lot) ReduceQuantity(amount decimal.Decimal) (Lot, error) {
	if amount.Sign() <= 0 {
		return Lot{}, fmt.Errorf("lot: reduction amount must be positive, got %s", amount)
	}
	if amount.GreaterThan(l.Quantity) {
		return Lot{}, fmt.Errorf("lot: cannot reduce by %s, only %s remaining", amount, l.Quantity)
	}
	next := l
	next.Quantity = l.Quantity.Sub(amount)
	return next, nil
}

// Close returns a new Lot marked fully closed at the given timestamp/price.
// The caller must already have reduced Quantity to zero.
func (l Lot) Close(timestamp time.Time, closePrice decimal.Decimal) Lot {
	next := l
	next.CloseTimestamp = &timestamp
	next.ClosePrice = &closePrice
	return next
}

// UnrealizedPnL computes mark-to-market P&L on an open lot at current mid
// m: (m - TradePrice) * Quantity for a BUY lot, the mirror for a SELL lot.
func (l Lot) UnrealizedPnL(mid decimal.Decimal) decimal.Decimal {
	if l.IsClosed() {
		return decimal.Zero
	}
	diff := mid.Sub(l.TradePrice)
	if l.Side == event.Sell {
		diff = diff.Neg()
	}
	return diff.Mul(l.Quantity)
}

// RealizedPnL computes the P&L recognized when quantityClosed units of the
// lot are matched at closePrice (spec §4.4).
func (l Lot) RealizedPnL(quantityClosed, closePrice decimal.Decimal) decimal.Decimal {
	diff := closePrice.Sub(l.TradePrice)
	if l.Side == event.Sell {
		diff = diff.Neg()
	}
	return diff.Mul(quantityClosed)
}
