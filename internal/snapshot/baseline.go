package snapshot

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/shopspring/decimal"

	"CascadeReplay/internal/ledger"
)

// marketPrefix is stripped from market names in the positions dump,
// which qualifies them with the venue ("hyperliquid:BTC").
const marketPrefix = "hyperliquid:"

// Baseline is the loaded clearinghouse snapshot: every account's cash
// and open positions at the snapshot timestamp.
type Baseline struct {
	Time     int64
	Accounts int
}

type accountValueRow struct {
	User         string          `json:"user"`
	AccountValue decimal.Decimal `json:"account_value"`
}

type positionRow struct {
	User         string          `json:"user"`
	Size         decimal.Decimal `json:"size"`
	EntryPrice   decimal.Decimal `json:"entry_price"`
	NotionalSize decimal.Decimal `json:"notional_size"`
	AccountValue decimal.Decimal `json:"account_value"`
}

type marketPositions struct {
	MarketName string        `json:"market_name"`
	Positions  []positionRow `json:"positions"`
}

// Load seeds the ledger store from the two clearinghouse snapshot
// dumps: per-account values and per-market open positions. Accounts
// that appear only in the positions dump are seeded with the account
// value carried on their position row.
func Load(store *ledger.Store, accountValuesPath, positionsPath string, snapshotTime int64) (*Baseline, error) {
	raw, err := os.ReadFile(accountValuesPath)
	if err != nil {
		return nil, fmt.Errorf("read account values: %w", err)
	}
	var values []accountValueRow
	if err := json.Unmarshal(raw, &values); err != nil {
		return nil, fmt.Errorf("parse account values: %w", err)
	}

	for _, row := range values {
		store.Seed(row.User, row.AccountValue)
	}

	raw, err = os.ReadFile(positionsPath)
	if err != nil {
		return nil, fmt.Errorf("read positions: %w", err)
	}
	var markets []marketPositions
	if err := json.Unmarshal(raw, &markets); err != nil {
		return nil, fmt.Errorf("parse positions: %w", err)
	}

	for _, market := range markets {
		coin := strings.TrimPrefix(market.MarketName, marketPrefix)
		for _, pos := range market.Positions {
			l, ok := store.Get(pos.User)
			if !ok {
				l = store.Seed(pos.User, pos.AccountValue)
			}
			if pos.Size.IsZero() {
				continue
			}
			l.Positions[coin] = &ledger.Position{
				Size:          pos.Size,
				AvgEntryPrice: pos.EntryPrice,
			}
		}
	}

	return &Baseline{Time: snapshotTime, Accounts: store.Len()}, nil
}
