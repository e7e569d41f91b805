package event

import (
	"strings"

	"github.com/shopspring/decimal"
)

// Side represents fill direction
type Side int32

const (
	SideUnknown Side = iota
	SideBuy
	SideSell
)

// ParseSide maps the exchange side code ("B" bid, "A" ask) to a Side.
func ParseSide(code string) Side {
	switch code {
	case "B":
		return SideBuy
	case "A":
		return SideSell
	default:
		return SideUnknown
	}
}

func (s Side) String() string {
	switch s {
	case SideBuy:
		return "Buy"
	case SideSell:
		return "Sell"
	default:
		return "Unknown"
	}
}

// Sign returns +1 for buy, -1 for sell, 0 otherwise.
func (s Side) Sign() int64 {
	switch s {
	case SideBuy:
		return 1
	case SideSell:
		return -1
	default:
		return 0
	}
}

// Fill is a matched perp trade attributed to one account.
// Size is always positive; the signed position delta comes from Side.
type Fill struct {
	Account string
	Coin    string
	Side    Side
	Price   decimal.Decimal
	Size    decimal.Decimal
	Fee     decimal.Decimal

	// Exchange-reported closed PnL, carried for reporting only.
	// The ledger computes its own realized PnL from entry price.
	ClosedPnL decimal.Decimal

	// Direction label as reported upstream, e.g. "Open Long",
	// "Auto-Deleveraging", "Liquidated Isolated Long"
	Direction string

	// ADLTrigger marks forced deleveraging fills; the replayer captures
	// a pre-application snapshot of the account when set.
	ADLTrigger bool

	// Counterparty whose liquidation forced this fill (ADL only)
	Liquidated string

	Timestamp int64
	Sequence  int64
}

func (f *Fill) Kind() Kind  { return KindFill }
func (f *Fill) Time() int64 { return f.Timestamp }
func (f *Fill) Seq() int64  { return f.Sequence }

// SignedSize returns the position delta: positive for buys,
// negative for sells.
func (f *Fill) SignedSize() decimal.Decimal {
	if f.Side == SideSell {
		return f.Size.Neg()
	}
	return f.Size
}

// IsLiquidation reports whether the fill was forced by the
// liquidation engine rather than placed by the account.
func (f *Fill) IsLiquidation() bool {
	return strings.Contains(f.Direction, "Liquidated")
}
