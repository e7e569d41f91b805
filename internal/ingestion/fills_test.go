package ingestion

import (
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"CascadeReplay/internal/event"
)

func nopLogger() zerolog.Logger {
	return zerolog.Nop()
}

func readerFor(s string) io.ReadCloser {
	return io.NopCloser(strings.NewReader(s))
}

func drainFills(t *testing.T, src *FillSource) []*event.Fill {
	t.Helper()
	var out []*event.Fill
	for {
		evt, err := src.Next()
		if err == io.EOF {
			return out
		}
		if err != nil {
			t.Fatalf("next: %v", err)
		}
		out = append(out, evt.(*event.Fill))
	}
}

func TestFillSourceParsesBlocks(t *testing.T) {
	input := `{"events": [["0xaaa", {"coin": "BTC", "px": "60000.5", "sz": "0.25", "side": "B", "time": 1000, "dir": "Open Long", "closedPnl": "0.0", "fee": "1.5"}]]}
{"events": [["0xbbb", {"coin": "ETH", "px": "4000", "sz": "2", "side": "A", "time": 2000, "dir": "Auto-Deleveraging", "closedPnl": "-12.5", "fee": "0", "liquidation": {"liquidatedUser": "0xdead"}}]]}
`
	src := NewFillSource("fills", readerFor(input), Window{}, nil, nopLogger())
	fills := drainFills(t, src)

	if len(fills) != 2 {
		t.Fatalf("fills = %d, want 2", len(fills))
	}

	f := fills[0]
	if f.Account != "0xaaa" || f.Coin != "BTC" {
		t.Errorf("fill[0] = %s %s, want 0xaaa BTC", f.Account, f.Coin)
	}
	if f.Side != event.SideBuy {
		t.Errorf("side = %s, want Buy", f.Side)
	}
	if !f.Price.Equal(decimal.RequireFromString("60000.5")) || !f.Size.Equal(decimal.RequireFromString("0.25")) {
		t.Errorf("px/sz = %s/%s, want 60000.5/0.25", f.Price, f.Size)
	}
	if f.ADLTrigger {
		t.Errorf("plain open flagged as ADL trigger")
	}

	adl := fills[1]
	if !adl.ADLTrigger {
		t.Errorf("ADL fill not flagged")
	}
	if adl.Liquidated != "0xdead" {
		t.Errorf("counterparty = %q, want 0xdead", adl.Liquidated)
	}
	if !adl.ClosedPnL.Equal(decimal.RequireFromString("-12.5")) {
		t.Errorf("closed pnl = %s, want -12.5", adl.ClosedPnL)
	}
	if fills[0].Sequence >= fills[1].Sequence {
		t.Errorf("sequences not monotonic: %d then %d", fills[0].Sequence, fills[1].Sequence)
	}
}

func TestFillSourceFiltersSpotCoins(t *testing.T) {
	input := `{"events": [["0xaaa", {"coin": "@107", "px": "1", "sz": "1", "side": "B", "time": 1000, "dir": "Buy"}], ["0xaaa", {"coin": "PURR/USDC", "px": "1", "sz": "1", "side": "B", "time": 1000, "dir": "Buy"}], ["0xaaa", {"coin": "BTC", "px": "60000", "sz": "1", "side": "B", "time": 1000, "dir": "Open Long"}]]}
`
	src := NewFillSource("fills", readerFor(input), Window{}, nil, nopLogger())
	fills := drainFills(t, src)

	if len(fills) != 1 || fills[0].Coin != "BTC" {
		t.Fatalf("fills = %+v, want only the BTC fill", fills)
	}
}

func TestFillSourceWindowFilter(t *testing.T) {
	input := `{"events": [["0xaaa", {"coin": "BTC", "px": "1", "sz": "1", "side": "B", "time": 500, "dir": "Buy"}], ["0xaaa", {"coin": "BTC", "px": "1", "sz": "1", "side": "B", "time": 1500, "dir": "Buy"}], ["0xaaa", {"coin": "BTC", "px": "1", "sz": "1", "side": "B", "time": 2500, "dir": "Buy"}]]}
`
	src := NewFillSource("fills", readerFor(input), Window{Start: 1000, End: 2000}, nil, nopLogger())
	fills := drainFills(t, src)

	if len(fills) != 1 || fills[0].Timestamp != 1500 {
		t.Fatalf("fills = %+v, want only the in-window fill at 1500", fills)
	}
}

func TestAssembleParts(t *testing.T) {
	dir := t.TempDir()
	writePart := func(name, content string) {
		if err := os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644); err != nil {
			t.Fatal(err)
		}
	}
	writePart("archive.tar.xz.part-001", "hello ")
	writePart("archive.tar.xz.part-000", "well ")
	writePart("archive.tar.xz.part-002", "world")

	dest := filepath.Join(dir, "archive.tar.xz")
	got, err := AssembleParts(dir, "archive.tar.xz", dest)
	if err != nil {
		t.Fatalf("assemble: %v", err)
	}
	data, err := os.ReadFile(got)
	if err != nil {
		t.Fatal(err)
	}
	if string(data) != "well hello world" {
		t.Errorf("assembled = %q, want parts in lexical order", data)
	}
}
