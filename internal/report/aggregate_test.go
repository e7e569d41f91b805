package report

import (
	"bytes"
	"strings"
	"testing"

	"github.com/shopspring/decimal"

	"CascadeReplay/internal/capture"
)

func d(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func sampleRecords() []*capture.Record {
	return []*capture.Record{
		{
			Time: 1000, Account: "0xaaa", Coin: "BTC",
			TriggerPrice: d("100"), TriggerSize: d("2"), Notional: d("200"),
			ClosedPnL: d("10"), AccountValue: d("500"),
			Leverage: d("4"), LeverageDefined: true,
			PositionSize: d("2"), EntryPrice: d("90"), PositionPnL: d("20"),
		},
		{
			Time: 2000, Account: "0xaaa", Coin: "ETH",
			TriggerPrice: d("50"), TriggerSize: d("-4"), Notional: d("200"),
			ClosedPnL: d("-30"), AccountValue: d("500"),
			Leverage: d("2"), LeverageDefined: true,
			PositionSize: d("-4"), EntryPrice: d("50"), PositionPnL: d("0"),
		},
		{
			Time: 3000, Account: "0xbbb", Coin: "BTC",
			TriggerPrice: d("100"), TriggerSize: d("1"), Notional: d("100"),
			ClosedPnL: d("5"), AccountValue: d("-40"), NegativeEquity: true,
			PositionSize: d("1"), EntryPrice: d("120"), PositionPnL: d("-20"),
		},
	}
}

func TestAggregateCoinSummaries(t *testing.T) {
	a := Aggregate(sampleRecords())

	if len(a.Coins) != 2 {
		t.Fatalf("coins = %d, want 2", len(a.Coins))
	}
	// Sorted by total notional descending: BTC 300 first
	btc := a.Coins[0]
	if btc.Coin != "BTC" {
		t.Fatalf("coins[0] = %s, want BTC", btc.Coin)
	}
	if btc.Events != 2 || btc.Users != 2 {
		t.Errorf("BTC events/users = %d/%d, want 2/2", btc.Events, btc.Users)
	}
	if !btc.NetVolume.Equal(d("3")) {
		t.Errorf("BTC net volume = %s, want 3", btc.NetVolume)
	}
	if !btc.TotalNotional.Equal(d("300")) {
		t.Errorf("BTC notional = %s, want 300", btc.TotalNotional)
	}
	if btc.NegativeEquity != 1 {
		t.Errorf("BTC negative equity = %d, want 1", btc.NegativeEquity)
	}
}

func TestAggregateUserSummaries(t *testing.T) {
	a := Aggregate(sampleRecords())

	if len(a.Users) != 2 {
		t.Fatalf("users = %d, want 2", len(a.Users))
	}
	// 0xaaa has 400 notional, 0xbbb 100
	u := a.Users[0]
	if u.Account != "0xaaa" || u.Events != 2 {
		t.Fatalf("users[0] = %s events=%d, want 0xaaa with 2", u.Account, u.Events)
	}
	if !u.TotalClosedPnL.Equal(d("-20")) {
		t.Errorf("closed pnl = %s, want -20", u.TotalClosedPnL)
	}
	if !u.AvgLeverage.Equal(d("3")) {
		t.Errorf("avg leverage = %s, want 3", u.AvgLeverage)
	}
	if u.NegativeEquity {
		t.Errorf("0xaaa flagged negative equity")
	}
	if !a.Users[1].NegativeEquity {
		t.Errorf("0xbbb not flagged negative equity")
	}
}

func TestAggregateFindings(t *testing.T) {
	a := Aggregate(sampleRecords())
	f := a.Findings

	// Only the two defined leverages count
	if !f.AverageLeverage.Equal(d("3")) {
		t.Errorf("avg leverage = %s, want 3", f.AverageLeverage)
	}
	if !f.MedianLeverage.Equal(d("3")) {
		t.Errorf("median leverage = %s, want 3", f.MedianLeverage)
	}
	if !f.MaxLeverage.Equal(d("4")) {
		t.Errorf("max leverage = %s, want 4", f.MaxLeverage)
	}
	if f.NegativeEquityCount != 1 {
		t.Errorf("negative equity count = %d, want 1", f.NegativeEquityCount)
	}
	if !f.NegativeEquityTotal.Equal(d("-40")) {
		t.Errorf("negative equity total = %s, want -40", f.NegativeEquityTotal)
	}
	if !f.TotalNotional.Equal(d("500")) {
		t.Errorf("total notional = %s, want 500", f.TotalNotional)
	}
	// One of three records has positive pnl percent
	want := d("100").Div(d("3"))
	if !f.ProfitablePct.Equal(want) {
		t.Errorf("profitable pct = %s, want %s", f.ProfitablePct, want)
	}
}

func TestAggregateEmpty(t *testing.T) {
	a := Aggregate(nil)
	if len(a.Users) != 0 || len(a.Coins) != 0 {
		t.Errorf("non-empty aggregates from no records")
	}
	if !a.Findings.AverageLeverage.IsZero() || !a.Findings.ProfitablePct.IsZero() {
		t.Errorf("non-zero findings from no records")
	}
}

func TestMedianEvenCount(t *testing.T) {
	got := median([]decimal.Decimal{d("1"), d("9"), d("3"), d("5")})
	if !got.Equal(d("4")) {
		t.Errorf("median = %s, want 4", got)
	}
}

func TestWriteRecordsCSV(t *testing.T) {
	var buf bytes.Buffer
	if err := WriteRecordsCSV(&buf, sampleRecords()); err != nil {
		t.Fatalf("write: %v", err)
	}

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 4 {
		t.Fatalf("lines = %d, want header + 3 rows", len(lines))
	}
	if !strings.HasPrefix(lines[0], "time,trigger_seq,account,coin") {
		t.Errorf("header = %q", lines[0])
	}
	if !strings.Contains(lines[1], "0xaaa") || !strings.Contains(lines[1], "BTC") {
		t.Errorf("row 1 = %q", lines[1])
	}
}

func TestWriteNetVolumeMarkdown(t *testing.T) {
	a := Aggregate(sampleRecords())

	var buf bytes.Buffer
	if err := WriteNetVolumeMarkdown(&buf, a, 1760130900000, 1760131620000); err != nil {
		t.Fatalf("write: %v", err)
	}

	out := buf.String()
	for _, want := range []string{
		"# Forced Deleveraging Net Volume",
		"| 1 | BTC |",
		"**Trigger events**: 3",
		"Negative equity accounts: 1",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("markdown missing %q", want)
		}
	}
}
