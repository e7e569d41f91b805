package capture

import (
	"github.com/shopspring/decimal"
)

// Record is the pre-application snapshot of one account taken at the
// moment a forced-deleveraging trigger reaches it. All fields reflect
// state BEFORE the trigger event mutates the ledger.
type Record struct {
	Time    int64  `json:"time"`
	Account string `json:"account"`
	Coin    string `json:"coin"`

	// TriggerSeq is the sequence number of the triggering event. It
	// disambiguates captures of the same account/coin within one
	// millisecond, which partial forced closes do produce.
	TriggerSeq int64 `json:"trigger_seq"`

	// Trigger details
	Side         string          `json:"side"`
	TriggerPrice decimal.Decimal `json:"trigger_price"`
	TriggerSize  decimal.Decimal `json:"trigger_size"`
	Notional     decimal.Decimal `json:"notional"`
	ClosedPnL    decimal.Decimal `json:"closed_pnl"`
	Counterparty string          `json:"counterparty,omitempty"`

	// Account state
	Cash          decimal.Decimal `json:"cash"`
	AccountValue  decimal.Decimal `json:"account_value"`
	GrossNotional decimal.Decimal `json:"gross_notional"`
	UnrealizedPnL decimal.Decimal `json:"unrealized_pnl"`
	OpenPositions int             `json:"open_positions"`

	// Leverage is gross notional over account value. When account
	// value is zero or negative the ratio is meaningless, so Leverage
	// holds zero and LeverageDefined is false.
	Leverage        decimal.Decimal `json:"leverage"`
	LeverageDefined bool            `json:"leverage_defined"`
	NegativeEquity  bool            `json:"negative_equity"`

	// Trigger-coin position before the event
	PositionSize decimal.Decimal `json:"position_size"`
	EntryPrice   decimal.Decimal `json:"entry_price"`
	PositionPnL  decimal.Decimal `json:"position_pnl"`

	// Incomplete marks records where one or more positions had no
	// mark price; their contributions are missing from the account
	// aggregates above.
	Incomplete   bool     `json:"incomplete,omitempty"`
	MissingMarks []string `json:"missing_marks,omitempty"`
}

// PnLPercent returns position PnL relative to the entry notional of
// the trigger-coin position, in percent.
func (r *Record) PnLPercent() decimal.Decimal {
	entryNotional := r.PositionSize.Abs().Mul(r.EntryPrice)
	if entryNotional.IsZero() {
		return decimal.Zero
	}
	return r.PositionPnL.Div(entryNotional).Mul(decimal.NewFromInt(100))
}
