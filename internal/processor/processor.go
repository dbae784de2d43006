// Package processor merges event sources into one globally-ordered
// sequence and dispatches each event to the matching handler (spec §4.6).
package processor

import (
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/efxlab/simulator/internal/event"
	"github.com/efxlab/simulator/internal/handler"
	"github.com/efxlab/simulator/internal/state"
)

// Sink accepts output records in dispatch order (spec §6.2). Sink
// implementations must preserve order; the processor never reorders or
// buffers records across dispatches.
type Sink interface {
	Write(rec handler.Record) error
}

// FatalError is the error the processor returns when a dispatch breaks an
// invariant: a handler panic, a duplicate ordering key across sources, an
// unknown event type, or a sink write failure.
type FatalError struct {
	Reason string
}

func (e FatalError) Error() string {
	return fmt.Sprintf("processor: fatal error: %s", e.Reason)
}

// Processor runs the single-threaded, strictly sequential dispatch loop.
type Processor struct {
	state  *state.State
	logger *slog.Logger
}

// New creates a Processor over the given initial state.
func New(initial *state.State, logger *slog.Logger) *Processor {
	if logger == nil {
		logger = slog.Default()
	}
	return &Processor{state: initial, logger: logger}
}

// State returns the processor's current state.
func (p *Processor) State() *state.State {
	return p.state
}

// Run merges every source's events, stable-sorts by (timestamp,
// sequence_id), checks for duplicate ordering keys, then dispatches each
// event in order, forwarding output records to sink.
//
// On a duplicate ordering key, a handler-internal panic, an unknown event
// type or a sink write failure, Run emits a final fatal_error record to
// sink (best effort) and returns a FatalError; the caller must treat the
// run as aborted.
func (p *Processor) Run(sources [][]event.Event, sink Sink) error {
	var merged []event.Event
	for _, source := range sources {
		merged = append(merged, source...)
	}

	sort.SliceStable(merged, func(i, j int) bool {
		return merged[i].OrderKey().Less(merged[j].OrderKey())
	})

	if dup, ok := firstDuplicateKey(merged); ok {
		reason := fmt.Sprintf("duplicate ordering key (timestamp=%s, sequence_id=%d)", dup.Timestamp.Format(time.RFC3339Nano), dup.SequenceID)
		p.emitFatal(sink, dup.Timestamp, reason)
		return FatalError{Reason: reason}
	}

	for i, ev := range merged {
		if err := p.dispatch(i, ev, sink); err != nil {
			reason := fmt.Sprintf("dispatch index %d: %v", i, err)
			p.emitFatal(sink, ev.OrderKey().Timestamp, reason)
			return FatalError{Reason: reason}
		}
	}

	p.logger.Info("processing_completed",
		"event_count", len(merged),
		"final_event_count", p.state.EventCount(),
	)
	return nil
}

func (p *Processor) dispatch(index int, ev event.Event, sink Sink) (dispatchErr error) {
	defer func() {
		if r := recover(); r != nil {
			dispatchErr = fmt.Errorf("handler panic: %v", r)
		}
	}()

	var (
		next    *state.State
		records []handler.Record
	)

	switch e := ev.(type) {
	case event.MarketUpdate:
		next, records = handler.HandleMarketUpdate(p.state, e)
	case event.ClientTrade:
		next, records = handler.HandleClientTrade(p.state, e)
	case event.HedgeOrder:
		next, records = handler.HandleHedgeOrder(p.state, e)
	case event.HedgeFill:
		next, records = handler.HandleHedgeFill(p.state, e)
	case event.ConfigUpdate:
		next, records = handler.HandleConfigUpdate(p.state, e)
	case event.ClockTick:
		next, records = handler.HandleClockTick(p.state, e)
	default:
		return fmt.Errorf("unknown event type %T", ev)
	}

	p.state = next
	for _, rec := range records {
		if err := sink.Write(rec); err != nil {
			return fmt.Errorf("sink write failed: %w", err)
		}
	}

	p.logger.Debug("event_processed",
		"event_kind", string(ev.Kind()),
		"timestamp", ev.OrderKey().Timestamp.Format(time.RFC3339Nano),
		"sequence_id", ev.OrderKey().SequenceID,
	)
	return nil
}

func (p *Processor) emitFatal(sink Sink, ts time.Time, reason string) {
	p.logger.Error("event_processing_failed", "error", reason)
	_ = sink.Write(handler.Record{
		Timestamp:  ts,
		RecordType: handler.TypeFatalError,
		Data: map[string]any{
			"message": reason,
		},
	})
}

func firstDuplicateKey(events []event.Event) (event.Key, bool) {
	for i := 1; i < len(events); i++ {
		if events[i].OrderKey().Equal(events[i-1].OrderKey()) {
			return events[i].OrderKey(), true
		}
	}
	return event.Key{}, false
}
