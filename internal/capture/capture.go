package capture

import (
	"sort"

	"github.com/shopspring/decimal"

	"CascadeReplay/internal/ledger"
	"CascadeReplay/internal/marketdata"
)

// Take snapshots one account's state against mark prices at ts.
// Trigger-specific fields (coin, price, size, counterparty) are left
// for the caller to fill in.
//
// Positions with no mark price are excluded from the aggregates and
// flag the record incomplete instead of failing the run.
func Take(account string, l *ledger.Ledger, marks marketdata.Source, ts int64) *Record {
	rec := &Record{
		Time:          ts,
		Account:       account,
		Cash:          l.Cash,
		OpenPositions: l.OpenPositions(),
	}

	gross := decimal.Zero
	upnl := decimal.Zero
	for coin, pos := range l.Positions {
		mark, ok := marks.At(coin, ts)
		if !ok {
			rec.Incomplete = true
			rec.MissingMarks = append(rec.MissingMarks, coin)
			continue
		}
		gross = gross.Add(pos.Notional(mark))
		upnl = upnl.Add(pos.UnrealizedPnL(mark))
	}
	sort.Strings(rec.MissingMarks)

	rec.GrossNotional = gross
	rec.UnrealizedPnL = upnl
	rec.AccountValue = l.Cash.Add(upnl)

	if rec.AccountValue.Sign() > 0 {
		rec.Leverage = gross.Div(rec.AccountValue)
		rec.LeverageDefined = true
	}
	rec.NegativeEquity = rec.AccountValue.Sign() < 0

	return rec
}

// FillPosition copies the trigger-coin position fields onto the
// record. mark prices the open exposure; pass ok=false when no mark
// was available for the coin.
func (r *Record) FillPosition(pos *ledger.Position, mark decimal.Decimal, ok bool) {
	if pos == nil {
		return
	}
	r.PositionSize = pos.Size
	r.EntryPrice = pos.AvgEntryPrice
	if ok {
		r.PositionPnL = pos.UnrealizedPnL(mark)
	}
}
