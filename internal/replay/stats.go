package replay

// Stats counts what a replay run did. Every skip bucket surfaces in
// the final run summary so silent data loss is visible.
type Stats struct {
	EventsApplied    int64 `json:"events_applied"`
	FillsApplied     int64 `json:"fills_applied"`
	LiquidationFills int64 `json:"liquidation_fills"`
	FundingApplied   int64 `json:"funding_applied"`
	TransfersApplied int64 `json:"transfers_applied"`

	UnknownInstrumentSkips  int64 `json:"unknown_instrument_skips"`
	UnbalancedTransferSkips int64 `json:"unbalanced_transfer_skips"`

	RecordsCaptured       int64 `json:"records_captured"`
	RecordsIncomplete     int64 `json:"records_incomplete"`
	RecordsNegativeEquity int64 `json:"records_negative_equity"`

	FirstEventTime int64 `json:"first_event_time"`
	LastEventTime  int64 `json:"last_event_time"`

	// Checkpoint of the last applied event, for resume diagnostics
	LastAppliedSeq int64 `json:"last_applied_seq"`
}

// Summary is the end-of-run report: counters plus the final state
// digest. Two runs over the same inputs must produce identical
// summaries.
type Summary struct {
	Stats

	Accounts    int    `json:"accounts"`
	LateJoiners int64  `json:"late_joiners"`
	StateHash   string `json:"state_hash"`
}
