package ledger

import (
	"github.com/shopspring/decimal"
)

// Ledger holds the full replayed state of one perp account.
//
// Cash follows margin accounting: opening or increasing a position
// never debits notional. The only cash movements are realized PnL,
// fees, funding payments and transfers.
type Ledger struct {
	Cash        decimal.Decimal
	Positions   map[string]*Position
	RealizedPnL decimal.Decimal
	FeesPaid    decimal.Decimal
}

// NewLedger creates an empty ledger with zero cash.
func NewLedger() *Ledger {
	return &Ledger{
		Positions: make(map[string]*Position),
	}
}

// FillEffect reports what a fill did to the ledger
type FillEffect struct {
	Action     FillAction
	Realized   decimal.Decimal
	ClosedSize decimal.Decimal
	PriorSize  decimal.Decimal
	NewSize    decimal.Decimal
}

// ApplyFill mutates the ledger with one fill. sizeDelta is signed
// (positive buy, negative sell), price and fee are the fill price and
// the fee charged to this account.
//
// Realized PnL on the closed portion is credited to cash BEFORE the
// fee is deducted. Average entry price is volume-weighted on same-side
// increases, kept on reductions, and reset to the fill price when the
// position flips through zero.
func (l *Ledger) ApplyFill(coin string, sizeDelta, price, fee decimal.Decimal) FillEffect {
	pos, ok := l.Positions[coin]
	if !ok {
		pos = &Position{}
		l.Positions[coin] = pos
	}

	prior := pos.Size
	effect := FillEffect{Action: FillActionNone, PriorSize: prior}

	// Realize PnL on whatever portion of the prior position the fill
	// closes. A fill extending the position closes nothing.
	if prior.Sign() != 0 && sizeDelta.Sign() != 0 && prior.Sign() != sizeDelta.Sign() {
		closed := decimal.Min(sizeDelta.Abs(), prior.Abs())
		sideSign := decimal.NewFromInt(int64(prior.Sign()))
		realized := price.Sub(pos.AvgEntryPrice).Mul(closed).Mul(sideSign)

		l.Cash = l.Cash.Add(realized)
		l.RealizedPnL = l.RealizedPnL.Add(realized)
		effect.Realized = realized
		effect.ClosedSize = closed
	}

	next := prior.Add(sizeDelta)
	switch {
	case sizeDelta.IsZero():
		// fee-only fill, position untouched

	case next.IsZero():
		effect.Action = FillActionClose
		pos.Size = decimal.Zero
		pos.AvgEntryPrice = decimal.Zero

	case prior.IsZero():
		effect.Action = FillActionOpen
		pos.Size = next
		pos.AvgEntryPrice = price

	case prior.Sign() != next.Sign():
		// Flip: the surviving exposure was acquired at the fill price
		effect.Action = FillActionFlip
		pos.Size = next
		pos.AvgEntryPrice = price

	case prior.Sign() == sizeDelta.Sign():
		effect.Action = FillActionIncrease
		notional := prior.Abs().Mul(pos.AvgEntryPrice).Add(sizeDelta.Abs().Mul(price))
		pos.Size = next
		pos.AvgEntryPrice = notional.Div(next.Abs())

	default:
		// Partial reduce keeps the entry price of the remainder
		effect.Action = FillActionReduce
		pos.Size = next
	}

	l.Cash = l.Cash.Sub(fee)
	l.FeesPaid = l.FeesPaid.Add(fee)
	effect.NewSize = pos.Size

	if pos.IsFlat() {
		delete(l.Positions, coin)
	}

	return effect
}

// ApplyCashDelta adds a signed amount to cash (funding, transfers).
func (l *Ledger) ApplyCashDelta(amount decimal.Decimal) {
	l.Cash = l.Cash.Add(amount)
}

// Position returns the position for a coin, or nil if flat.
func (l *Ledger) Position(coin string) *Position {
	return l.Positions[coin]
}

// OpenPositions returns the number of non-flat positions.
func (l *Ledger) OpenPositions() int {
	return len(l.Positions)
}
