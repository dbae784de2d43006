package processor

import (
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/efxlab/simulator/internal/event"
	"github.com/efxlab/simulator/internal/handler"
	"github.com/efxlab/simulator/internal/state"
)

func d(f float64) decimal.Decimal {
	return decimal.NewFromFloat(f)
}

var epoch = time.Date(2025, 1, 1, 9, 0, 0, 0, time.UTC)

type fakeSink struct {
	records []handler.Record
	failAt  int // fail on the Nth Write call (0 disables)
	calls   int
}

func (s *fakeSink) Write(rec handler.Record) error {
	s.calls++
	if s.failAt != 0 && s.calls == s.failAt {
		return errors.New("sink unavailable")
	}
	s.records = append(s.records, rec)
	return nil
}

func mustTrade(t *testing.T, ts time.Time, seq int64, pair string, side event.Side, notional, price float64, id string) event.Event {
	t.Helper()
	ev, err := event.NewClientTrade(ts, seq, pair, side, d(notional), d(price), "client-1", id)
	if err != nil {
		t.Fatalf("unexpected error constructing event: %v", err)
	}
	return ev
}

func mustMarketUpdate(t *testing.T, ts time.Time, seq int64, pair string, bid, ask, mid float64) event.Event {
	t.Helper()
	ev, err := event.NewMarketUpdate(ts, seq, pair, d(bid), d(ask), d(mid))
	if err != nil {
		t.Fatalf("unexpected error constructing event: %v", err)
	}
	return ev
}

func TestRun_MergesAndOrdersAcrossSources(t *testing.T) {
	source1 := []event.Event{
		mustTrade(t, epoch.Add(2*time.Hour), 0, "EUR/USD", event.Buy, 500_000, 1.10, "trade-2"),
	}
	source2 := []event.Event{
		mustTrade(t, epoch, 0, "EUR/USD", event.Buy, 1_000_000, 1.10, "trade-1"),
	}

	proc := New(state.New("USD", nil), nil)
	sink := &fakeSink{}
	if err := proc.Run([][]event.Event{source1, source2}, sink); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(sink.records) != 2 {
		t.Fatalf("expected two client_trade records, got %d", len(sink.records))
	}
	if sink.records[0].Data["trade_id"] != "trade-1" {
		t.Errorf("expected trade-1 dispatched first (earlier timestamp), got %v", sink.records[0].Data["trade_id"])
	}
}

func TestRun_StableOrderBySequenceIDOnTie(t *testing.T) {
	source := []event.Event{
		mustTrade(t, epoch, 2, "EUR/USD", event.Buy, 100, 1.10, "trade-b"),
		mustTrade(t, epoch, 1, "EUR/USD", event.Buy, 100, 1.10, "trade-a"),
	}

	proc := New(state.New("USD", nil), nil)
	sink := &fakeSink{}
	if err := proc.Run([][]event.Event{source}, sink); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if sink.records[0].Data["trade_id"] != "trade-a" {
		t.Errorf("expected trade-a (sequence_id 1) to dispatch before trade-b, got %v", sink.records[0].Data["trade_id"])
	}
}

func TestRun_DuplicateOrderingKeyIsFatal(t *testing.T) {
	source := []event.Event{
		mustTrade(t, epoch, 1, "EUR/USD", event.Buy, 100, 1.10, "trade-a"),
		mustTrade(t, epoch, 1, "EUR/USD", event.Sell, 100, 1.10, "trade-b"),
	}

	proc := New(state.New("USD", nil), nil)
	sink := &fakeSink{}
	err := proc.Run([][]event.Event{source}, sink)

	if _, ok := err.(FatalError); !ok {
		t.Fatalf("expected a FatalError, got %v", err)
	}

	var fatals []handler.Record
	for _, r := range sink.records {
		if r.RecordType == handler.TypeFatalError {
			fatals = append(fatals, r)
		}
	}
	if len(fatals) != 1 {
		t.Fatalf("expected exactly one fatal_error record, got %d", len(fatals))
	}
	if !fatals[0].Timestamp.Equal(epoch) {
		t.Errorf("expected the fatal_error timestamp to be derived from the colliding event, got %s", fatals[0].Timestamp)
	}
}

func TestRun_SinkFailureAbortsWithFatalError(t *testing.T) {
	source := []event.Event{
		mustTrade(t, epoch, 1, "EUR/USD", event.Buy, 100, 1.10, "trade-a"),
		mustTrade(t, epoch.Add(time.Hour), 1, "EUR/USD", event.Sell, 100, 1.10, "trade-b"),
	}

	proc := New(state.New("USD", nil), nil)
	sink := &fakeSink{failAt: 1}
	err := proc.Run([][]event.Event{source}, sink)

	if _, ok := err.(FatalError); !ok {
		t.Fatalf("expected a FatalError when the sink fails, got %v", err)
	}
}

func TestRun_DeterministicAcrossRepeatedRuns(t *testing.T) {
	build := func() [][]event.Event {
		return [][]event.Event{
			{
				mustMarketUpdate(t, epoch, 0, "EUR/USD", 1.0998, 1.1002, 1.1000),
				mustTrade(t, epoch.Add(time.Minute), 0, "EUR/USD", event.Buy, 1_000_000, 1.1001, "trade-1"),
			},
		}
	}

	run := func() []handler.Record {
		proc := New(state.New("USD", nil), nil)
		sink := &fakeSink{}
		if err := proc.Run(build(), sink); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		return sink.records
	}

	a, b := run(), run()
	if len(a) != len(b) {
		t.Fatalf("expected the same number of records across repeated runs, got %d vs %d", len(a), len(b))
	}
	for i := range a {
		if a[i].RecordType != b[i].RecordType || !a[i].Timestamp.Equal(b[i].Timestamp) {
			t.Errorf("record %d differs across runs: %+v vs %+v", i, a[i], b[i])
		}
	}
}
