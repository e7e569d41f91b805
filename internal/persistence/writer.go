package persistence

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"CascadeReplay/internal/capture"
	"CascadeReplay/internal/report"
)

// RecordWriter writes trigger records and run summaries to Postgres
// using multi-row INSERT. COPY via pgx would be faster; multi-row
// INSERT through database/sql keeps the driver surface small for the
// volumes a single cascade produces.
type RecordWriter struct {
	db    *sql.DB
	runID uuid.UUID
}

// NewRecordWriter binds a writer to one run. Every row carries the
// run id so repeated runs over the same window stay distinguishable.
func NewRecordWriter(db *sql.DB, runID uuid.UUID) *RecordWriter {
	return &RecordWriter{db: db, runID: runID}
}

// RunID returns the run identity rows are written under.
func (w *RecordWriter) RunID() uuid.UUID {
	return w.runID
}

// WriteRecordBatch inserts a batch of trigger records.
// Re-inserting the same (run_id, account, coin, time, seq) row is a
// no-op, so a retried batch cannot double-write.
func (w *RecordWriter) WriteRecordBatch(ctx context.Context, records []*capture.Record) error {
	if len(records) == 0 {
		return nil
	}

	query := `INSERT INTO replay.trigger_records
		(run_id, captured_at, trigger_seq, account, coin, side, trigger_price,
		 trigger_size, notional, closed_pnl, counterparty, cash, account_value,
		 gross_notional, unrealized_pnl, leverage, leverage_defined,
		 negative_equity, position_size, entry_price, position_pnl, incomplete)
		VALUES `

	const cols = 22
	values := make([]string, 0, len(records))
	args := make([]interface{}, 0, len(records)*cols)

	for i, r := range records {
		base := i * cols
		ph := make([]string, cols)
		for j := range ph {
			ph[j] = fmt.Sprintf("$%d", base+j+1)
		}
		values = append(values, "("+strings.Join(ph, ", ")+")")

		args = append(args,
			w.runID, time.UnixMilli(r.Time).UTC(), r.TriggerSeq, r.Account, r.Coin, r.Side,
			r.TriggerPrice.String(), r.TriggerSize.String(),
			r.Notional.String(), r.ClosedPnL.String(), r.Counterparty,
			r.Cash.String(), r.AccountValue.String(), r.GrossNotional.String(),
			r.UnrealizedPnL.String(), r.Leverage.String(), r.LeverageDefined,
			r.NegativeEquity, r.PositionSize.String(), r.EntryPrice.String(),
			r.PositionPnL.String(), r.Incomplete,
		)
	}

	query += strings.Join(values, ", ")
	query += " ON CONFLICT (run_id, account, coin, captured_at, trigger_seq) DO NOTHING"

	_, err := w.db.ExecContext(ctx, query, args...)
	return err
}

// WriteRunSummary inserts the end-of-run summary row.
func (w *RecordWriter) WriteRunSummary(ctx context.Context, summary *report.RunSummary) error {
	payload, err := json.Marshal(summary)
	if err != nil {
		return fmt.Errorf("marshal run summary: %w", err)
	}

	_, err = w.db.ExecContext(ctx, `
		INSERT INTO replay.runs (run_id, window_start, window_end, events_applied, records_captured, state_hash, summary)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (run_id) DO UPDATE SET
			events_applied = EXCLUDED.events_applied,
			records_captured = EXCLUDED.records_captured,
			state_hash = EXCLUDED.state_hash,
			summary = EXCLUDED.summary`,
		w.runID, summary.WindowStart, summary.WindowEnd,
		summary.Replay.EventsApplied, summary.Replay.RecordsCaptured,
		summary.Replay.StateHash, payload,
	)
	return err
}
