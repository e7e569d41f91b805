package ingestion

import (
	"io"
	"testing"

	"github.com/shopspring/decimal"

	"CascadeReplay/internal/event"
)

func drainMisc(t *testing.T, src *MiscSource) []event.Event {
	t.Helper()
	var out []event.Event
	for {
		evt, err := src.Next()
		if err == io.EOF {
			return out
		}
		if err != nil {
			t.Fatalf("next: %v", err)
		}
		out = append(out, evt)
	}
}

func TestMiscSourceFundingDeltas(t *testing.T) {
	input := `{"events": [{"time": "2025-10-10T21:00:00.123456789Z", "inner": {"Funding": {"deltas": [{"user": "0xaaa", "coin": "BTC", "funding_amount": "-0.75"}, {"user": "0xbbb", "coin": "BTC", "funding_amount": "0.75"}]}}}]}
`
	src := NewMiscSource("misc", readerFor(input), Window{}, nil, nopLogger())
	events := drainMisc(t, src)

	if len(events) != 2 {
		t.Fatalf("events = %d, want 2", len(events))
	}
	fp := events[0].(*event.FundingPayment)
	if fp.Account != "0xaaa" || fp.Coin != "BTC" {
		t.Errorf("funding = %s %s, want 0xaaa BTC", fp.Account, fp.Coin)
	}
	if !fp.Amount.Equal(decimal.RequireFromString("-0.75")) {
		t.Errorf("amount = %s, want -0.75", fp.Amount)
	}
	if fp.Timestamp != 1760130000123 {
		t.Errorf("timestamp = %d, want 1760130000123", fp.Timestamp)
	}
}

func TestMiscSourceLedgerUpdates(t *testing.T) {
	input := `{"events": [{"time": "2025-10-10T21:00:00Z", "inner": {"LedgerUpdate": {"users": ["0xaaa"], "delta": {"type": "deposit", "usdc": "100"}}}}, {"time": "2025-10-10T21:00:01Z", "inner": {"LedgerUpdate": {"users": ["0xbbb"], "delta": {"type": "withdraw", "usdc": "40"}}}}, {"time": "2025-10-10T21:00:02Z", "inner": {"LedgerUpdate": {"users": ["0xccc"], "delta": {"type": "accountClassTransfer", "usdc": "25", "toPerp": false}}}}, {"time": "2025-10-10T21:00:03Z", "inner": {"LedgerUpdate": {"users": ["0xddd"], "delta": {"type": "internalTransfer", "usdc": "7", "user": "0xddd", "destination": "0xeee"}}}}]}
`
	src := NewMiscSource("misc", readerFor(input), Window{}, nil, nopLogger())
	events := drainMisc(t, src)

	if len(events) != 4 {
		t.Fatalf("events = %d, want 4", len(events))
	}

	dep := events[0].(*event.Transfer)
	if dep.Type != event.TransferDeposit || dep.To != "0xaaa" || dep.From != "" {
		t.Errorf("deposit = %+v, want credit to 0xaaa", dep)
	}

	wd := events[1].(*event.Transfer)
	if wd.Type != event.TransferWithdrawal || wd.From != "0xbbb" || wd.To != "" {
		t.Errorf("withdrawal = %+v, want debit from 0xbbb", wd)
	}

	spot := events[2].(*event.Transfer)
	if spot.Type != event.TransferSpot || spot.From != "0xccc" || spot.To != "" {
		t.Errorf("spot transfer = %+v, want perp debit from 0xccc", spot)
	}

	internal := events[3].(*event.Transfer)
	if internal.Type != event.TransferInternal || internal.From != "0xddd" || internal.To != "0xeee" {
		t.Errorf("internal = %+v, want 0xddd -> 0xeee", internal)
	}
	if !internal.Amount.Equal(decimal.NewFromInt(7)) {
		t.Errorf("amount = %s, want 7", internal.Amount)
	}
}

func TestMiscSourceVaultAndRewardKinds(t *testing.T) {
	input := `{"events": [{"time": "2025-10-10T21:00:00Z", "inner": {"LedgerUpdate": {"users": ["0xaaa"], "delta": {"type": "vaultDeposit", "usdc": "50", "vault": "0xvlt"}}}}, {"time": "2025-10-10T21:00:01Z", "inner": {"LedgerUpdate": {"users": ["0xaaa"], "delta": {"type": "vaultDistribution", "usdc": "3"}}}}, {"time": "2025-10-10T21:00:02Z", "inner": {"LedgerUpdate": {"users": ["0xaaa"], "delta": {"type": "liquidation", "usdc": "11"}}}}]}
`
	src := NewMiscSource("misc", readerFor(input), Window{}, nil, nopLogger())
	events := drainMisc(t, src)

	if len(events) != 3 {
		t.Fatalf("events = %d, want 3", len(events))
	}

	vd := events[0].(*event.Transfer)
	if vd.Type != event.TransferVaultDeposit || vd.From != "0xaaa" || vd.To != "0xvlt" {
		t.Errorf("vault deposit = %+v, want 0xaaa -> 0xvlt", vd)
	}

	comm := events[1].(*event.Transfer)
	if comm.Type != event.TransferVaultCommission || !comm.CreditOnly() {
		t.Errorf("vault distribution = %+v, want credit-only commission", comm)
	}

	liq := events[2].(*event.Transfer)
	if liq.Type != event.TransferLiquidationOverride || liq.To != "0xaaa" {
		t.Errorf("liquidation override = %+v, want credit to 0xaaa", liq)
	}
}

func TestParseEventTime(t *testing.T) {
	cases := []struct {
		raw  string
		want int64
	}{
		{"2025-10-10T21:00:00Z", 1760130000000},
		{"2025-10-10T21:00:00.5Z", 1760130000500},
		// Fraction longer than nanoseconds gets clamped
		{"2025-10-10T21:00:00.123456789012Z", 1760130000123},
		{"2025-10-10T21:00:00+00:00", 1760130000000},
	}
	for _, tc := range cases {
		got, err := parseEventTime(tc.raw)
		if err != nil {
			t.Errorf("parseEventTime(%q): %v", tc.raw, err)
			continue
		}
		if got != tc.want {
			t.Errorf("parseEventTime(%q) = %d, want %d", tc.raw, got, tc.want)
		}
	}
}

func TestLoadAssetContexts(t *testing.T) {
	input := `{"time": 1000, "ctxs": [{"coin": "BTC", "markPx": "60000"}, {"coin": "ETH", "markPx": "4000"}]}
{"time": 2000, "ctxs": [{"coin": "BTC", "markPx": "61000"}, {"coin": "ZERO", "markPx": "0"}]}
`
	feed, err := LoadAssetContexts(readerFor(input))
	if err != nil {
		t.Fatalf("load: %v", err)
	}

	px, ok := feed.At("BTC", 1900)
	if !ok || !px.Equal(decimal.NewFromInt(61000)) {
		t.Errorf("BTC@1900 = %s ok=%v, want 61000", px, ok)
	}
	if _, ok := feed.At("ZERO", 2000); ok {
		t.Errorf("zero mark prices must be dropped")
	}
}
