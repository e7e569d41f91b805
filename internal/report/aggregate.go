package report

import (
	"sort"

	"github.com/shopspring/decimal"

	"CascadeReplay/internal/capture"
)

// UserSummary aggregates every trigger record for one account.
type UserSummary struct {
	Account        string          `json:"account"`
	Events         int             `json:"events"`
	TotalNotional  decimal.Decimal `json:"total_notional"`
	TotalClosedPnL decimal.Decimal `json:"total_closed_pnl"`
	AvgLeverage    decimal.Decimal `json:"avg_leverage"`
	AvgPnLPercent  decimal.Decimal `json:"avg_pnl_percent"`
	FirstValue     decimal.Decimal `json:"first_account_value"`
	NegativeEquity bool            `json:"negative_equity"`
}

// CoinSummary aggregates every trigger record for one coin.
type CoinSummary struct {
	Coin           string          `json:"coin"`
	Events         int             `json:"events"`
	Users          int             `json:"users"`
	NetVolume      decimal.Decimal `json:"net_volume"`
	TotalNotional  decimal.Decimal `json:"total_notional"`
	TotalClosedPnL decimal.Decimal `json:"total_closed_pnl"`
	AvgPrice       decimal.Decimal `json:"avg_price"`
	AvgLeverage    decimal.Decimal `json:"avg_leverage"`
	NegativeEquity int             `json:"negative_equity"`
}

// KeyFindings are the headline numbers of a run.
type KeyFindings struct {
	AverageLeverage     decimal.Decimal `json:"average_leverage"`
	MedianLeverage      decimal.Decimal `json:"median_leverage"`
	MaxLeverage         decimal.Decimal `json:"max_leverage"`
	AveragePnLPercent   decimal.Decimal `json:"average_pnl_percent"`
	ProfitablePct       decimal.Decimal `json:"profitable_positions_pct"`
	NegativeEquityCount int             `json:"negative_equity_count"`
	NegativeEquityTotal decimal.Decimal `json:"negative_equity_total"`
	TotalNotional       decimal.Decimal `json:"total_notional"`
}

// Analysis is the full aggregate view over one run's trigger records.
type Analysis struct {
	Users    []UserSummary
	Coins    []CoinSummary
	Findings KeyFindings
}

// Aggregate groups trigger records by account and by coin and computes
// the key findings. Leverage statistics cover only records where
// leverage is defined; negative-equity totals sum account values of
// flagged records.
func Aggregate(records []*capture.Record) *Analysis {
	users := make(map[string]*UserSummary)
	coins := make(map[string]*CoinSummary)
	coinUsers := make(map[string]map[string]struct{})

	var leverages, pnlPcts []decimal.Decimal
	findings := KeyFindings{}
	profitable := 0

	for _, rec := range records {
		u, ok := users[rec.Account]
		if !ok {
			u = &UserSummary{Account: rec.Account, FirstValue: rec.AccountValue}
			users[rec.Account] = u
		}
		u.Events++
		u.TotalNotional = u.TotalNotional.Add(rec.Notional)
		u.TotalClosedPnL = u.TotalClosedPnL.Add(rec.ClosedPnL)
		u.AvgLeverage = u.AvgLeverage.Add(rec.Leverage)
		u.AvgPnLPercent = u.AvgPnLPercent.Add(rec.PnLPercent())
		u.NegativeEquity = u.NegativeEquity || rec.NegativeEquity

		c, ok := coins[rec.Coin]
		if !ok {
			c = &CoinSummary{Coin: rec.Coin}
			coins[rec.Coin] = c
			coinUsers[rec.Coin] = make(map[string]struct{})
		}
		c.Events++
		c.NetVolume = c.NetVolume.Add(rec.TriggerSize)
		c.TotalNotional = c.TotalNotional.Add(rec.Notional)
		c.TotalClosedPnL = c.TotalClosedPnL.Add(rec.ClosedPnL)
		c.AvgPrice = c.AvgPrice.Add(rec.TriggerPrice)
		c.AvgLeverage = c.AvgLeverage.Add(rec.Leverage)
		if rec.NegativeEquity {
			c.NegativeEquity++
		}
		coinUsers[rec.Coin][rec.Account] = struct{}{}

		findings.TotalNotional = findings.TotalNotional.Add(rec.Notional)
		if rec.NegativeEquity {
			findings.NegativeEquityCount++
			findings.NegativeEquityTotal = findings.NegativeEquityTotal.Add(rec.AccountValue)
		}
		if rec.LeverageDefined {
			leverages = append(leverages, rec.Leverage)
			if rec.Leverage.GreaterThan(findings.MaxLeverage) {
				findings.MaxLeverage = rec.Leverage
			}
		}
		pct := rec.PnLPercent()
		pnlPcts = append(pnlPcts, pct)
		if pct.Sign() > 0 {
			profitable++
		}
	}

	findings.AverageLeverage = mean(leverages)
	findings.MedianLeverage = median(leverages)
	findings.AveragePnLPercent = mean(pnlPcts)
	if len(records) > 0 {
		findings.ProfitablePct = decimal.NewFromInt(int64(profitable)).
			Div(decimal.NewFromInt(int64(len(records)))).
			Mul(decimal.NewFromInt(100))
	}

	analysis := &Analysis{Findings: findings}

	for _, u := range users {
		n := decimal.NewFromInt(int64(u.Events))
		u.AvgLeverage = u.AvgLeverage.Div(n)
		u.AvgPnLPercent = u.AvgPnLPercent.Div(n)
		analysis.Users = append(analysis.Users, *u)
	}
	sort.Slice(analysis.Users, func(i, j int) bool {
		return analysis.Users[i].TotalNotional.GreaterThan(analysis.Users[j].TotalNotional)
	})

	for coin, c := range coins {
		n := decimal.NewFromInt(int64(c.Events))
		c.AvgPrice = c.AvgPrice.Div(n)
		c.AvgLeverage = c.AvgLeverage.Div(n)
		c.Users = len(coinUsers[coin])
		analysis.Coins = append(analysis.Coins, *c)
	}
	sort.Slice(analysis.Coins, func(i, j int) bool {
		return analysis.Coins[i].TotalNotional.GreaterThan(analysis.Coins[j].TotalNotional)
	})

	return analysis
}

func mean(xs []decimal.Decimal) decimal.Decimal {
	if len(xs) == 0 {
		return decimal.Zero
	}
	sum := decimal.Zero
	for _, x := range xs {
		sum = sum.Add(x)
	}
	return sum.Div(decimal.NewFromInt(int64(len(xs))))
}

func median(xs []decimal.Decimal) decimal.Decimal {
	if len(xs) == 0 {
		return decimal.Zero
	}
	sorted := make([]decimal.Decimal, len(xs))
	copy(sorted, xs)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].LessThan(sorted[j]) })

	mid := len(sorted) / 2
	if len(sorted)%2 == 1 {
		return sorted[mid]
	}
	return sorted[mid-1].Add(sorted[mid]).Div(decimal.NewFromInt(2))
}
