package query

import (
	"errors"
	"testing"

	"github.com/shopspring/decimal"

	"CascadeReplay/internal/ledger"
	"CascadeReplay/internal/marketdata"
)

func d(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func buildService(t *testing.T) (*Service, *ledger.Store) {
	t.Helper()

	store := ledger.NewStore()
	a := store.Seed("0xaaa", d("1000"))
	a.ApplyFill("BTC", d("2"), d("90"), d("1"))

	b := store.Seed("0xbbb", d("-10"))
	b.ApplyFill("ETH", d("-5"), d("100"), decimal.Zero)

	feed := marketdata.NewFeed()
	feed.Add("BTC", 5000, d("100"))
	feed.Add("ETH", 5000, d("110"))
	feed.Finalize()

	return NewService(store, feed, 5000), store
}

func TestAccountState(t *testing.T) {
	svc, _ := buildService(t)

	state, err := svc.AccountState("0xaaa")
	if err != nil {
		t.Fatalf("account state: %v", err)
	}
	if !state.Cash.Equal(d("999")) {
		t.Errorf("cash = %s, want 999", state.Cash)
	}
	if len(state.Positions) != 1 || state.Positions[0].Coin != "BTC" {
		t.Fatalf("positions = %+v, want one BTC", state.Positions)
	}
	pos := state.Positions[0]
	if !pos.Marked || !pos.UnrealizedPnL.Equal(d("20")) {
		t.Errorf("BTC upnl = %s marked=%v, want 20", pos.UnrealizedPnL, pos.Marked)
	}
	if !state.AccountValue.Equal(d("1019")) {
		t.Errorf("account value = %s, want 1019", state.AccountValue)
	}
}

func TestAccountStateNotFound(t *testing.T) {
	svc, _ := buildService(t)
	if _, err := svc.AccountState("0xnope"); !errors.Is(err, ErrAccountNotFound) {
		t.Fatalf("err = %v, want ErrAccountNotFound", err)
	}
}

func TestNegativeEquityAccounts(t *testing.T) {
	svc, _ := buildService(t)

	// 0xbbb: cash -10, short 5 ETH from 100 marked 110 -> upnl -50, value -60
	neg := svc.NegativeEquityAccounts()
	if len(neg) != 1 || neg[0].Account != "0xbbb" {
		t.Fatalf("negative equity = %+v, want only 0xbbb", neg)
	}
	if !neg[0].AccountValue.Equal(d("-60")) {
		t.Errorf("account value = %s, want -60", neg[0].AccountValue)
	}
}

func TestTotals(t *testing.T) {
	svc, store := buildService(t)

	totals := svc.Totals()
	if totals.Accounts != 2 {
		t.Errorf("accounts = %d, want 2", totals.Accounts)
	}
	if !totals.TotalCash.Equal(store.TotalCash()) {
		t.Errorf("total cash mismatch")
	}
	if totals.OpenPositions != 2 {
		t.Errorf("open positions = %d, want 2", totals.OpenPositions)
	}
	if !totals.TotalFees.Equal(d("1")) {
		t.Errorf("fees = %s, want 1", totals.TotalFees)
	}
}
