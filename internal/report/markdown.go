package report

import (
	"fmt"
	"io"
	"time"

	"github.com/shopspring/decimal"
)

// WriteNetVolumeMarkdown renders the per-coin net volume table as a
// markdown report with headline totals.
func WriteNetVolumeMarkdown(w io.Writer, a *Analysis, windowStart, windowEnd int64) error {
	totalEvents := 0
	totalNotional := decimal.Zero
	totalPnL := decimal.Zero
	for _, c := range a.Coins {
		totalEvents += c.Events
		totalNotional = totalNotional.Add(c.TotalNotional)
		totalPnL = totalPnL.Add(c.TotalClosedPnL)
	}

	fmtMs := func(ms int64) string {
		return time.UnixMilli(ms).UTC().Format("2006-01-02 15:04:05 UTC")
	}

	var err error
	p := func(format string, args ...interface{}) {
		if err != nil {
			return
		}
		_, err = fmt.Fprintf(w, format, args...)
	}

	p("# Forced Deleveraging Net Volume\n\n")
	p("**Window**: %s to %s\n\n", fmtMs(windowStart), fmtMs(windowEnd))
	p("## Summary\n\n")
	p("- **Tickers affected**: %d\n", len(a.Coins))
	p("- **Trigger events**: %d\n", totalEvents)
	p("- **Total net notional**: $%s\n", totalNotional.StringFixed(0))
	p("- **Total closed PnL**: $%s\n\n", totalPnL.StringFixed(0))

	p("## Net Volume by Ticker\n\n")
	p("| Rank | Ticker | Net Volume | Net Notional (USD) | Avg Price | Events | Closed PnL |\n")
	p("|------|--------|------------|--------------------|-----------|--------|------------|\n")
	for i, c := range a.Coins {
		p("| %d | %s | %s | $%s | $%s | %d | $%s |\n",
			i+1, c.Coin, c.NetVolume.StringFixed(4), c.TotalNotional.StringFixed(0),
			c.AvgPrice.StringFixed(2), c.Events, c.TotalClosedPnL.StringFixed(0))
	}

	p("\n## Key Findings\n\n")
	p("- Average leverage at trigger: %sx\n", a.Findings.AverageLeverage.StringFixed(2))
	p("- Median leverage at trigger: %sx\n", a.Findings.MedianLeverage.StringFixed(2))
	p("- Profitable positions: %s%%\n", a.Findings.ProfitablePct.StringFixed(1))
	p("- Negative equity accounts: %d (total $%s)\n",
		a.Findings.NegativeEquityCount, a.Findings.NegativeEquityTotal.StringFixed(2))

	return err
}
