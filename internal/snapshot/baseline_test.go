package snapshot

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/shopspring/decimal"

	"CascadeReplay/internal/ledger"
)

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
	return path
}

func TestLoadSeedsCashAndPositions(t *testing.T) {
	dir := t.TempDir()

	values := writeFile(t, dir, "account_values.json", `[
		{"user": "0xaaa", "account_value": 1500.25},
		{"user": "0xbbb", "account_value": 10}
	]`)
	positions := writeFile(t, dir, "positions.json", `[
		{"market_name": "hyperliquid:BTC", "positions": [
			{"user": "0xaaa", "size": 2.5, "entry_price": 60000, "notional_size": 150000, "account_value": 1500.25}
		]},
		{"market_name": "hyperliquid:ETH", "positions": [
			{"user": "0xccc", "size": -10, "entry_price": 4000, "notional_size": 40000, "account_value": 777},
			{"user": "0xaaa", "size": 0, "entry_price": 0, "notional_size": 0, "account_value": 1500.25}
		]}
	]`)

	store := ledger.NewStore()
	base, err := Load(store, values, positions, 1760126694218)
	if err != nil {
		t.Fatalf("load: %v", err)
	}

	if base.Accounts != 3 {
		t.Errorf("accounts = %d, want 3", base.Accounts)
	}

	a, _ := store.Get("0xaaa")
	if !a.Cash.Equal(decimal.RequireFromString("1500.25")) {
		t.Errorf("0xaaa cash = %s, want 1500.25", a.Cash)
	}
	btc := a.Position("BTC")
	if btc == nil || !btc.Size.Equal(decimal.RequireFromString("2.5")) {
		t.Fatalf("0xaaa BTC position = %+v, want size 2.5", btc)
	}
	if !btc.AvgEntryPrice.Equal(decimal.NewFromInt(60000)) {
		t.Errorf("0xaaa BTC entry = %s, want 60000", btc.AvgEntryPrice)
	}
	// Flat rows must not create positions
	if a.Position("ETH") != nil {
		t.Errorf("flat ETH row created a position")
	}

	// Position-only account seeded from its row's account value
	c, ok := store.Get("0xccc")
	if !ok {
		t.Fatalf("0xccc not seeded")
	}
	if !c.Cash.Equal(decimal.NewFromInt(777)) {
		t.Errorf("0xccc cash = %s, want 777", c.Cash)
	}
	if store.LateJoiners() != 0 {
		t.Errorf("baseline seeding counted as late joiners")
	}
}

func TestLoadMissingFile(t *testing.T) {
	store := ledger.NewStore()
	if _, err := Load(store, "nope.json", "also-nope.json", 0); err == nil {
		t.Fatalf("expected error for missing file")
	}
}
