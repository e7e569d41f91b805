package event

import (
	"github.com/shopspring/decimal"
)

// TransferKind classifies cash movements outside of trading
type TransferKind int32

const (
	TransferUnknown TransferKind = iota
	TransferDeposit
	TransferWithdrawal
	TransferInternal
	TransferSpot
	TransferVaultDeposit
	TransferVaultWithdrawal
	TransferVaultCommission
	TransferReward
	TransferLiquidationOverride
)

func (tk TransferKind) String() string {
	switch tk {
	case TransferDeposit:
		return "Deposit"
	case TransferWithdrawal:
		return "Withdrawal"
	case TransferInternal:
		return "Internal"
	case TransferSpot:
		return "Spot"
	case TransferVaultDeposit:
		return "VaultDeposit"
	case TransferVaultWithdrawal:
		return "VaultWithdrawal"
	case TransferVaultCommission:
		return "VaultCommission"
	case TransferReward:
		return "Reward"
	case TransferLiquidationOverride:
		return "LiquidationOverride"
	default:
		return "Unknown"
	}
}

// Transfer moves cash into, out of, or between perp accounts.
// Amount is always positive; direction comes from which of From/To is
// set. Deposits and pure credits (vault commission, reward) leave From
// empty; withdrawals leave To empty; internal transfers set both.
type Transfer struct {
	From   string
	To     string
	Amount decimal.Decimal
	Type   TransferKind

	Timestamp int64
	Sequence  int64
}

func (t *Transfer) Kind() Kind  { return KindTransfer }
func (t *Transfer) Time() int64 { return t.Timestamp }
func (t *Transfer) Seq() int64  { return t.Sequence }

// CreditOnly reports whether the transfer mints cash at To without a
// matching debit anywhere in the ledger.
func (t *Transfer) CreditOnly() bool {
	switch t.Type {
	case TransferVaultCommission, TransferReward:
		return true
	default:
		return false
	}
}
