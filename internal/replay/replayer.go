package replay

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"CascadeReplay/internal/capture"
	"CascadeReplay/internal/event"
	"CascadeReplay/internal/instrument"
	"CascadeReplay/internal/ledger"
	"CascadeReplay/internal/marketdata"
	"CascadeReplay/internal/observability"
	"CascadeReplay/internal/stream"
)

// Config wires the replayer's collaborators. Feed and Metrics may be
// nil; OnRecord and OnEvent may be nil.
type Config struct {
	Registry *instrument.Registry
	Store    *ledger.Store

	// Feed is the primary mark price source (asset context series).
	// Last-trade prices observed during replay serve as fallback.
	Feed marketdata.Source

	Metrics *observability.Metrics
	Logger  zerolog.Logger

	// OnRecord receives each trigger capture as it is taken
	OnRecord func(*capture.Record)

	// OnEvent is called after every applied event (progress reporting)
	OnEvent func(applied int64)
}

// Replayer drives the deterministic single-threaded replay: it pulls
// events from a merged stream and mutates the ledger store, capturing
// pre-application snapshots at forced-deleveraging triggers.
type Replayer struct {
	registry  *instrument.Registry
	store     *ledger.Store
	lastTrade *marketdata.LastTrade
	marks     marketdata.Source

	metrics  *observability.Metrics
	log      zerolog.Logger
	onRecord func(*capture.Record)
	onEvent  func(int64)

	stats Stats
}

// New creates a replayer over an already-seeded ledger store.
func New(cfg Config) *Replayer {
	lastTrade := marketdata.NewLastTrade()

	var marks marketdata.Source
	if cfg.Feed != nil {
		marks = marketdata.NewLayered(cfg.Feed, lastTrade)
	} else {
		marks = lastTrade
	}

	return &Replayer{
		registry:  cfg.Registry,
		store:     cfg.Store,
		lastTrade: lastTrade,
		marks:     marks,
		metrics:   cfg.Metrics,
		log:       cfg.Logger,
		onRecord:  cfg.OnRecord,
		onEvent:   cfg.OnEvent,
	}
}

// Run drains the merger to exhaustion. Cancellation is checked between
// events; an event is never applied halfway. On success the returned
// Summary carries the final counters and state digest.
func (r *Replayer) Run(ctx context.Context, m *stream.Merger) (*Summary, error) {
	started := time.Now()

	for {
		select {
		case <-ctx.Done():
			r.log.Warn().
				Int64("last_applied_seq", r.stats.LastAppliedSeq).
				Int64("events_applied", r.stats.EventsApplied).
				Msg("replay cancelled")
			return nil, ctx.Err()
		default:
		}

		evt, err := m.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("merge: %w", err)
		}

		if err := r.Apply(evt); err != nil {
			return nil, err
		}

		if r.onEvent != nil {
			r.onEvent(r.stats.EventsApplied)
		}
	}

	if r.metrics != nil {
		r.metrics.ReplayDuration.Set(time.Since(started).Seconds())
		r.metrics.ReplayAccounts.Set(float64(r.store.Len()))
	}

	summary := &Summary{
		Stats:       r.stats,
		Accounts:    r.store.Len(),
		LateJoiners: r.store.LateJoiners(),
		StateHash:   StateHash(r.store),
	}

	r.log.Info().
		Int64("events_applied", summary.EventsApplied).
		Int64("liquidation_fills", summary.LiquidationFills).
		Int64("records_captured", summary.RecordsCaptured).
		Int64("unknown_instrument_skips", summary.UnknownInstrumentSkips).
		Int64("unbalanced_transfer_skips", summary.UnbalancedTransferSkips).
		Int("accounts", summary.Accounts).
		Str("state_hash", summary.StateHash).
		Dur("elapsed", time.Since(started)).
		Msg("replay complete")

	return summary, nil
}

// Apply dispatches one event to its handler. The event union is
// closed; anything unrecognized is a programming error.
func (r *Replayer) Apply(evt event.Event) error {
	switch e := evt.(type) {
	case *event.Fill:
		r.applyFill(e)
	case *event.FundingPayment:
		r.applyFunding(e)
	case *event.Transfer:
		r.applyTransfer(e)
	default:
		return fmt.Errorf("unhandled event kind %s", evt.Kind())
	}

	r.stats.EventsApplied++
	if r.stats.FirstEventTime == 0 {
		r.stats.FirstEventTime = evt.Time()
	}
	r.stats.LastEventTime = evt.Time()
	r.stats.LastAppliedSeq = evt.Seq()

	if r.metrics != nil {
		r.metrics.ReplayEventsApplied.WithLabelValues(evt.Kind().String()).Inc()
		r.metrics.ReplayLastTimestamp.Set(float64(evt.Time()))
	}

	return nil
}

// Stats returns a copy of the running counters.
func (r *Replayer) Stats() Stats {
	return r.stats
}

// Marks returns the layered mark price source the replayer valued
// captures with, for post-run queries over the final state.
func (r *Replayer) Marks() marketdata.Source {
	return r.marks
}

func (r *Replayer) applyFill(e *event.Fill) {
	l := r.store.GetOrCreate(e.Account)

	// Snapshot BEFORE the fill mutates the ledger
	if e.ADLTrigger {
		rec := capture.Take(e.Account, l, r.marks, e.Timestamp)
		rec.TriggerSeq = e.Sequence
		rec.Coin = e.Coin
		rec.Side = e.Direction
		rec.TriggerPrice = e.Price
		rec.TriggerSize = e.Size
		rec.Notional = e.Price.Mul(e.Size)
		rec.ClosedPnL = e.ClosedPnL
		rec.Counterparty = e.Liquidated

		mark, ok := r.marks.At(e.Coin, e.Timestamp)
		rec.FillPosition(l.Position(e.Coin), mark, ok)

		r.emitRecord(rec)
	}

	sizeDelta := e.SignedSize()
	if _, ok := r.registry.Lookup(e.Coin); !ok {
		// Position effect is skipped but the fee still hits cash
		sizeDelta = decimal.Zero
		r.stats.UnknownInstrumentSkips++
		if r.metrics != nil {
			r.metrics.ReplayEventsSkipped.WithLabelValues("unknown_instrument").Inc()
		}
		r.log.Warn().
			Str("coin", e.Coin).
			Str("account", e.Account).
			Int64("seq", e.Sequence).
			Msg("fill on unknown instrument, position effect skipped")
	}

	effect := l.ApplyFill(e.Coin, sizeDelta, e.Price, e.Fee)
	r.lastTrade.Observe(e.Coin, e.Price)

	r.stats.FillsApplied++
	if e.IsLiquidation() {
		r.stats.LiquidationFills++
	}
	if r.metrics != nil {
		r.metrics.ReplayFillActions.WithLabelValues(effect.Action.String()).Inc()
	}
}

func (r *Replayer) applyFunding(e *event.FundingPayment) {
	l := r.store.GetOrCreate(e.Account)
	l.ApplyCashDelta(e.Amount)
	r.stats.FundingApplied++
}

func (r *Replayer) applyTransfer(e *event.Transfer) {
	if e.From == "" && e.To == "" {
		r.stats.UnbalancedTransferSkips++
		if r.metrics != nil {
			r.metrics.ReplayEventsSkipped.WithLabelValues("unbalanced_transfer").Inc()
		}
		r.log.Warn().
			Str("kind", e.Type.String()).
			Int64("seq", e.Sequence).
			Msg("transfer names no account, skipped")
		return
	}

	// A liquidation override is a forced settlement: capture the
	// affected account the same way an ADL fill is captured.
	if e.Type == event.TransferLiquidationOverride {
		acct := e.To
		if acct == "" {
			acct = e.From
		}
		l := r.store.GetOrCreate(acct)
		rec := capture.Take(acct, l, r.marks, e.Timestamp)
		rec.TriggerSeq = e.Sequence
		rec.Side = e.Type.String()
		rec.Notional = e.Amount
		r.emitRecord(rec)
	}

	if e.From != "" {
		r.store.GetOrCreate(e.From).ApplyCashDelta(e.Amount.Neg())
	}
	if e.To != "" {
		r.store.GetOrCreate(e.To).ApplyCashDelta(e.Amount)
	}
	r.stats.TransfersApplied++
}

func (r *Replayer) emitRecord(rec *capture.Record) {
	r.stats.RecordsCaptured++
	if rec.Incomplete {
		r.stats.RecordsIncomplete++
	}
	if rec.NegativeEquity {
		r.stats.RecordsNegativeEquity++
	}

	if r.metrics != nil {
		r.metrics.CapturesTotal.Inc()
		if rec.Incomplete {
			r.metrics.CapturesIncomplete.Inc()
		}
		if rec.NegativeEquity {
			r.metrics.CapturesNegativeEquity.Inc()
		}
	}

	if r.onRecord != nil {
		r.onRecord(rec)
	}
}
