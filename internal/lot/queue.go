package lot

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/efxlab/simulator/internal/event"
)

// Match describes one matched open lot, produced by Queue.Match.
type Match struct {
	MatchedLot      Lot // the lot as it was before this match (pre-reduction)
	MatchedQuantity decimal.Decimal
	RealizedPnL     decimal.Decimal
	RiskPair        string
	ClosePrice      decimal.Decimal
	ClosedFully     bool
}

// Queue is a FIFO queue of lots for a single risk pair. Open holds lots in
// arrival order (L2); Closed is an append-only history.
//
// Queue is a value type holding slices; callers that want persistent-state
// semantics should copy the slices before mutation, exactly as Manager
// does when it produces a new Manager snapshot per dispatch.
type Queue struct {
	RiskPair string
	Open     []Lot
	Closed   []Lot
}

// NewQueue creates an empty queue for a risk pair.
func NewQueue(riskPair string) Queue {
	return Queue{RiskPair: riskPair}
}

// Append adds a brand-new lot to the tail of the open list (step 1/3 of
// §4.4's algorithm: no opposite-side lots exist to match against).
func (q Queue) Append(l Lot) Queue {
	next := q.cloneOpen()
	next.Open = append(next.Open, l)
	return next
}

// AllSameSide reports whether every open lot shares the same side, which
// is true vacuously for an empty queue (L2).
func (q Queue) AllSameSide(side event.Side) bool {
	for _, l := range q.Open {
		if l.Side != side {
			return false
		}
	}
	return true
}

// Match applies an incoming desk leg of the given side and quantity against
// the queue's open lots in FIFO order, matching only lots of the opposite
// side. It returns the updated queue, the matches produced, and any
// quantity left unmatched (which the caller opens as a new lot — step 3 of
// §4.4 — since Match itself never creates lots, only reduces/closes them).
func (q Queue) Match(quantity decimal.Decimal, side event.Side, closePrice decimal.Decimal, closeTimestamp time.Time) (Queue, []Match, decimal.Decimal, error) {
	if quantity.Sign() <= 0 {
		return q, nil, decimal.Zero, fmt.Errorf("lot: match quantity must be positive, got %s", quantity)
	}

	opposite := side.Opposite()
	remaining := quantity

	var matches []Match
	newOpen := make([]Lot, 0, len(q.Open))
	newClosed := append([]Lot{}, q.Closed...)

	for _, l := range q.Open {
		if remaining.Sign() <= 0 || l.Side != opposite {
			newOpen = append(newOpen, l)
			continue
		}

		matchedQty := l.Quantity
		if remaining.LessThan(matchedQty) {
			matchedQty = remaining
		}
		realized := l.RealizedPnL(matchedQty, closePrice)

		if matchedQty.Equal(l.Quantity) {
			reduced, err := l.ReduceQuantity(matchedQty)
			if err != nil {
				return q, nil, decimal.Zero, err
			}
			closed := reduced.Close(closeTimestamp, closePrice)
			newClosed = append(newClosed, closed)
			matches = append(matches, Match{
				MatchedLot:      l,
				MatchedQuantity: matchedQty,
				RealizedPnL:     realized,
				RiskPair:        q.RiskPair,
				ClosePrice:      closePrice,
				ClosedFully:     true,
			})
		} else {
			reduced, err := l.ReduceQuantity(matchedQty)
			if err != nil {
				return q, nil, decimal.Zero, err
			}
			newOpen = append(newOpen, reduced)
			matches = append(matches, Match{
				MatchedLot:      l,
				MatchedQuantity: matchedQty,
				RealizedPnL:     realized,
				RiskPair:        q.RiskPair,
				ClosePrice:      closePrice,
				ClosedFully:     false,
			})
		}

		remaining = remaining.Sub(matchedQty)
	}

	next := Queue{RiskPair: q.RiskPair, Open: newOpen, Closed: newClosed}
	return next, matches, remaining, nil
}

// NetPosition returns the signed net quantity across open lots: +quantity
// for BUY lots, -quantity for SELL lots (spec T3).
func (q Queue) NetPosition() decimal.Decimal {
	net := decimal.Zero
	for _, l := range q.Open {
		if l.Side == event.Buy {
			net = net.Add(l.Quantity)
		} else {
			net = net.Sub(l.Quantity)
		}
	}
	return net
}

// TotalUnrealizedPnL sums UnrealizedPnL across all open lots at the given
// mid.
func (q Queue) TotalUnrealizedPnL(mid decimal.Decimal) decimal.Decimal {
	total := decimal.Zero
	for _, l := range q.Open {
		total = total.Add(l.UnrealizedPnL(mid))
	}
	return total
}

func (q Queue) cloneOpen() Queue {
	next := Queue{RiskPair: q.RiskPair, Closed: q.Closed}
	next.Open = append([]Lot{}, q.Open...)
	return next
}
