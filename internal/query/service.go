package query

import (
	"errors"
	"sort"

	"github.com/shopspring/decimal"

	"CascadeReplay/internal/ledger"
	"CascadeReplay/internal/marketdata"
)

// ErrAccountNotFound is returned for accounts the replay never saw.
var ErrAccountNotFound = errors.New("account not found")

// Service answers read-only questions about a finished replay.
// It must only be constructed after the run completes; the underlying
// store is not safe against concurrent mutation.
type Service struct {
	store *ledger.Store
	marks marketdata.Source
	asOf  int64
}

// NewService wraps a finalized store. asOf is the timestamp used to
// mark open positions, normally the end of the replay window.
func NewService(store *ledger.Store, marks marketdata.Source, asOf int64) *Service {
	return &Service{store: store, marks: marks, asOf: asOf}
}

// PositionView is one open position valued at the as-of mark.
type PositionView struct {
	Coin          string
	Size          decimal.Decimal
	EntryPrice    decimal.Decimal
	Mark          decimal.Decimal
	Marked        bool
	UnrealizedPnL decimal.Decimal
}

// AccountState is the final replayed state of one account.
type AccountState struct {
	Account       string
	Cash          decimal.Decimal
	RealizedPnL   decimal.Decimal
	FeesPaid      decimal.Decimal
	UnrealizedPnL decimal.Decimal
	AccountValue  decimal.Decimal
	Positions     []PositionView
}

// AccountState returns the final state of one account.
func (s *Service) AccountState(account string) (*AccountState, error) {
	l, ok := s.store.Get(account)
	if !ok {
		return nil, ErrAccountNotFound
	}

	state := &AccountState{
		Account:     account,
		Cash:        l.Cash,
		RealizedPnL: l.RealizedPnL,
		FeesPaid:    l.FeesPaid,
	}

	coins := make([]string, 0, len(l.Positions))
	for coin := range l.Positions {
		coins = append(coins, coin)
	}
	sort.Strings(coins)

	for _, coin := range coins {
		pos := l.Positions[coin]
		view := PositionView{
			Coin:       coin,
			Size:       pos.Size,
			EntryPrice: pos.AvgEntryPrice,
		}
		if mark, ok := s.marks.At(coin, s.asOf); ok {
			view.Mark = mark
			view.Marked = true
			view.UnrealizedPnL = pos.UnrealizedPnL(mark)
			state.UnrealizedPnL = state.UnrealizedPnL.Add(view.UnrealizedPnL)
		}
		state.Positions = append(state.Positions, view)
	}

	state.AccountValue = state.Cash.Add(state.UnrealizedPnL)
	return state, nil
}

// NegativeEquityAccounts scans every account and returns those whose
// as-of account value is below zero, sorted most negative first.
func (s *Service) NegativeEquityAccounts() []AccountState {
	var out []AccountState
	for _, acct := range s.store.Accounts() {
		state, err := s.AccountState(acct)
		if err != nil {
			continue
		}
		if state.AccountValue.Sign() < 0 {
			out = append(out, *state)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].AccountValue.LessThan(out[j].AccountValue)
	})
	return out
}

// Totals sums headline numbers across every account.
type Totals struct {
	Accounts      int
	TotalCash     decimal.Decimal
	TotalRealized decimal.Decimal
	TotalFees     decimal.Decimal
	OpenPositions int
}

// Totals returns ledger-wide aggregates.
func (s *Service) Totals() Totals {
	t := Totals{Accounts: s.store.Len(), TotalCash: s.store.TotalCash()}
	for _, acct := range s.store.Accounts() {
		l, _ := s.store.Get(acct)
		t.TotalRealized = t.TotalRealized.Add(l.RealizedPnL)
		t.TotalFees = t.TotalFees.Add(l.FeesPaid)
		t.OpenPositions += l.OpenPositions()
	}
	return t
}
