package event

import (
	"github.com/shopspring/decimal"
)

// FundingPayment is a periodic funding settlement against one account.
// Amount is signed from the account's perspective: positive credits
// cash, negative debits it.
type FundingPayment struct {
	Account string
	Coin    string
	Amount  decimal.Decimal

	Timestamp int64
	Sequence  int64
}

func (f *FundingPayment) Kind() Kind  { return KindFundingPayment }
func (f *FundingPayment) Time() int64 { return f.Timestamp }
func (f *FundingPayment) Seq() int64  { return f.Sequence }
