package lotmgr

import (
	"fmt"
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"github.com/efxlab/simulator/internal/event"
	"github.com/efxlab/simulator/internal/lot"
)

// Manager is an immutable snapshot of all risk-pair lot queues plus the
// monotonic lot-ID counter. Every mutating operation returns a new
// *Manager; the counter only advances when a lot is actually created,
// exactly once per creation, in dispatch order (O3, L3).
type Manager struct {
	config  Config
	queues  map[string]lot.Queue
	counter int64
}

// New creates a Manager with an empty queue for every configured risk
// pair.
func New(config Config) *Manager {
	queues := make(map[string]lot.Queue, len(config.RiskPairs))
	for _, pair := range config.RiskPairs {
		queues[pair] = lot.NewQueue(pair)
	}
	return &Manager{config: config, queues: queues}
}

// Config returns the lot-tracking configuration.
func (m *Manager) Config() Config {
	return m.config
}

func (m *Manager) clone() *Manager {
	queues := make(map[string]lot.Queue, len(m.queues))
	for k, v := range m.queues {
		queues[k] = v
	}
	return &Manager{config: m.config, queues: queues, counter: m.counter}
}

// Created describes a newly opened lot, for the caller to turn into a
// lot_created output record.
type Created struct {
	Lot lot.Lot
}

// ErrUnknownRiskPair is returned when a leg targets a risk pair the
// manager was not configured with.
type ErrUnknownRiskPair struct {
	RiskPair string
}

func (e ErrUnknownRiskPair) Error() string {
	return fmt.Sprintf("lotmgr: risk pair %q not configured", e.RiskPair)
}

// ProcessLeg applies one decomposed leg (spec §4.4) to the risk pair's
// queue: if the queue is empty or every open lot shares the leg's side, the
// leg opens a brand-new lot; otherwise it is matched FIFO against the
// opposite-side lots, and any leftover quantity opens a new (flipped) lot.
//
// Returns the updated manager, the matches produced (possibly none), and
// the newly created lot if one was opened (possibly nil).
func (m *Manager) ProcessLeg(
	riskPair string,
	side event.Side,
	quantity decimal.Decimal,
	referencePrice decimal.Decimal,
	timestamp time.Time,
	originTradeID string,
	originLegIndex int,
	originPair string,
) (*Manager, []lot.Match, *Created, error) {
	queue, ok := m.queues[riskPair]
	if !ok {
		return m, nil, nil, ErrUnknownRiskPair{RiskPair: riskPair}
	}

	next := m.clone()

	if len(queue.Open) == 0 || queue.AllSameSide(side) {
		created, newQueue := next.openLot(queue, side, quantity, referencePrice, timestamp, originTradeID, originLegIndex, originPair)
		next.queues[riskPair] = newQueue
		return next, nil, &created, nil
	}

	matchedQueue, matches, remaining, err := queue.Match(quantity, side, referencePrice, timestamp)
	if err != nil {
		return m, nil, nil, err
	}

	if remaining.Sign() > 0 {
		created, newQueue := next.openLot(matchedQueue, side, remaining, referencePrice, timestamp, originTradeID, originLegIndex, originPair)
		next.queues[riskPair] = newQueue
		return next, matches, &created, nil
	}

	next.queues[riskPair] = matchedQueue
	return next, matches, nil, nil
}

func (m *Manager) openLot(
	queue lot.Queue,
	side event.Side,
	quantity decimal.Decimal,
	price decimal.Decimal,
	timestamp time.Time,
	originTradeID string,
	originLegIndex int,
	originPair string,
) (Created, lot.Queue) {
	m.counter++
	newLot := lot.Lot{
		ID:             fmt.Sprintf("LOT-%08d", m.counter),
		RiskPair:       queue.RiskPair,
		Side:           side,
		Quantity:       quantity,
		OriginalQty:    quantity,
		TradePrice:     price,
		OpenTimestamp:  timestamp,
		OriginTradeID:  originTradeID,
		OriginLegIndex: originLegIndex,
		OriginPair:     originPair,
	}
	return Created{Lot: newLot}, queue.Append(newLot)
}

// NetPosition returns the net open-lot position for a risk pair (T3).
func (m *Manager) NetPosition(riskPair string) decimal.Decimal {
	q, ok := m.queues[riskPair]
	if !ok {
		return decimal.Zero
	}
	return q.NetPosition()
}

// RiskPairs returns every configured risk pair, sorted.
func (m *Manager) RiskPairs() []string {
	pairs := make([]string, 0, len(m.queues))
	for pair := range m.queues {
		pairs = append(pairs, pair)
	}
	sort.Strings(pairs)
	return pairs
}

// AllNetPositions returns net positions for every configured risk pair.
func (m *Manager) AllNetPositions() map[string]decimal.Decimal {
	out := make(map[string]decimal.Decimal, len(m.queues))
	for pair, q := range m.queues {
		out[pair] = q.NetPosition()
	}
	return out
}

// OpenLots returns a copy of the open lots for a risk pair, in FIFO order.
func (m *Manager) OpenLots(riskPair string) []lot.Lot {
	q, ok := m.queues[riskPair]
	if !ok {
		return nil
	}
	return append([]lot.Lot{}, q.Open...)
}

// ClosedLots returns a copy of the closed-lot history for a risk pair.
func (m *Manager) ClosedLots(riskPair string) []lot.Lot {
	q, ok := m.queues[riskPair]
	if !ok {
		return nil
	}
	return append([]lot.Lot{}, q.Closed...)
}

// TotalUnrealizedPnL sums unrealized P&L across every risk pair using the
// supplied current mids; a risk pair with no entry in mids contributes
// zero (its open lots, if any, simply aren't marked).
func (m *Manager) TotalUnrealizedPnL(mids map[string]decimal.Decimal) decimal.Decimal {
	total := decimal.Zero
	for pair, q := range m.queues {
		if mid, ok := mids[pair]; ok {
			total = total.Add(q.TotalUnrealizedPnL(mid))
		}
	}
	return total
}

// LotCountStats reports open/closed lot counts per risk pair plus totals,
// for ClockTick snapshots and CLI summaries.
type LotCountStats struct {
	TotalOpen   int
	TotalClosed int
	PerPair     map[string]PairLotCounts
}

// PairLotCounts holds the open/closed lot counts for a single risk pair.
type PairLotCounts struct {
	Open   int
	Closed int
}

// Stats computes LotCountStats across all configured risk pairs.
func (m *Manager) Stats() LotCountStats {
	stats := LotCountStats{PerPair: make(map[string]PairLotCounts, len(m.queues))}
	for pair, q := range m.queues {
		stats.TotalOpen += len(q.Open)
		stats.TotalClosed += len(q.Closed)
		stats.PerPair[pair] = PairLotCounts{Open: len(q.Open), Closed: len(q.Closed)}
	}
	return stats
}
