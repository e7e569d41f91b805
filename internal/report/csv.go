package report

import (
	"encoding/csv"
	"io"
	"strconv"
	"time"

	"CascadeReplay/internal/capture"
)

// WriteRecordsCSV writes one row per trigger record.
func WriteRecordsCSV(w io.Writer, records []*capture.Record) error {
	cw := csv.NewWriter(w)

	header := []string{
		"time", "trigger_seq", "account", "coin", "side", "trigger_price", "trigger_size",
		"notional", "closed_pnl", "position_size", "entry_price",
		"position_pnl", "pnl_percent", "cash", "account_value",
		"gross_notional", "unrealized_pnl", "leverage", "leverage_defined",
		"negative_equity", "counterparty", "incomplete",
	}
	if err := cw.Write(header); err != nil {
		return err
	}

	for _, r := range records {
		row := []string{
			time.UnixMilli(r.Time).UTC().Format(time.RFC3339Nano),
			strconv.FormatInt(r.TriggerSeq, 10),
			r.Account,
			r.Coin,
			r.Side,
			r.TriggerPrice.String(),
			r.TriggerSize.String(),
			r.Notional.String(),
			r.ClosedPnL.String(),
			r.PositionSize.String(),
			r.EntryPrice.String(),
			r.PositionPnL.String(),
			r.PnLPercent().StringFixed(4),
			r.Cash.String(),
			r.AccountValue.String(),
			r.GrossNotional.String(),
			r.UnrealizedPnL.String(),
			r.Leverage.String(),
			strconv.FormatBool(r.LeverageDefined),
			strconv.FormatBool(r.NegativeEquity),
			r.Counterparty,
			strconv.FormatBool(r.Incomplete),
		}
		if err := cw.Write(row); err != nil {
			return err
		}
	}

	cw.Flush()
	return cw.Error()
}

// WriteUserSummariesCSV writes one row per account.
func WriteUserSummariesCSV(w io.Writer, users []UserSummary) error {
	cw := csv.NewWriter(w)

	header := []string{
		"account", "events", "total_notional", "total_closed_pnl",
		"avg_leverage", "avg_pnl_percent", "first_account_value", "negative_equity",
	}
	if err := cw.Write(header); err != nil {
		return err
	}

	for _, u := range users {
		row := []string{
			u.Account,
			strconv.Itoa(u.Events),
			u.TotalNotional.String(),
			u.TotalClosedPnL.String(),
			u.AvgLeverage.StringFixed(4),
			u.AvgPnLPercent.StringFixed(4),
			u.FirstValue.String(),
			strconv.FormatBool(u.NegativeEquity),
		}
		if err := cw.Write(row); err != nil {
			return err
		}
	}

	cw.Flush()
	return cw.Error()
}

// WriteCoinSummariesCSV writes one row per coin.
func WriteCoinSummariesCSV(w io.Writer, coins []CoinSummary) error {
	cw := csv.NewWriter(w)

	header := []string{
		"coin", "events", "users", "net_volume", "total_notional",
		"total_closed_pnl", "avg_price", "avg_leverage", "negative_equity",
	}
	if err := cw.Write(header); err != nil {
		return err
	}

	for _, c := range coins {
		row := []string{
			c.Coin,
			strconv.Itoa(c.Events),
			strconv.Itoa(c.Users),
			c.NetVolume.String(),
			c.TotalNotional.String(),
			c.TotalClosedPnL.String(),
			c.AvgPrice.StringFixed(4),
			c.AvgLeverage.StringFixed(4),
			strconv.Itoa(c.NegativeEquity),
		}
		if err := cw.Write(row); err != nil {
			return err
		}
	}

	cw.Flush()
	return cw.Error()
}
