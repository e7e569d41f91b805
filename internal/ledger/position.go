package ledger

import (
	"github.com/shopspring/decimal"
)

// Position is one account's exposure in a single perp market.
// Size is signed: positive long, negative short.
type Position struct {
	Size          decimal.Decimal
	AvgEntryPrice decimal.Decimal
}

// IsFlat returns true if the position has no exposure.
func (p *Position) IsFlat() bool {
	return p.Size.IsZero()
}

// SideSign returns +1 for long, -1 for short, 0 for flat.
func (p *Position) SideSign() int64 {
	return int64(p.Size.Sign())
}

// UnrealizedPnL values the open exposure against a mark price.
func (p *Position) UnrealizedPnL(mark decimal.Decimal) decimal.Decimal {
	return mark.Sub(p.AvgEntryPrice).Mul(p.Size)
}

// Notional returns |size| * mark.
func (p *Position) Notional(mark decimal.Decimal) decimal.Decimal {
	return p.Size.Abs().Mul(mark)
}

// FillAction classifies how a fill changes a position
type FillAction int32

const (
	FillActionNone FillAction = iota
	FillActionOpen
	FillActionIncrease
	FillActionReduce
	FillActionClose
	FillActionFlip
)

func (fa FillAction) String() string {
	switch fa {
	case FillActionOpen:
		return "Open"
	case FillActionIncrease:
		return "Increase"
	case FillActionReduce:
		return "Reduce"
	case FillActionClose:
		return "Close"
	case FillActionFlip:
		return "Flip"
	default:
		return "None"
	}
}
