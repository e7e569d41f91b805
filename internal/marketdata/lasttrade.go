package marketdata

import (
	"github.com/shopspring/decimal"
)

// LastTrade tracks the most recent traded price per coin as fills
// stream through the replayer. It backs mark price lookups for coins
// with no feed coverage.
type LastTrade struct {
	prices map[string]decimal.Decimal
}

// NewLastTrade creates an empty tracker.
func NewLastTrade() *LastTrade {
	return &LastTrade{prices: make(map[string]decimal.Decimal)}
}

// Observe records a traded price for a coin.
func (lt *LastTrade) Observe(coin string, price decimal.Decimal) {
	lt.prices[coin] = price
}

// At returns the last observed price. The query timestamp is ignored:
// the tracker only knows the most recent trade before "now" in replay
// order, which is exactly the fallback semantics wanted.
func (lt *LastTrade) At(coin string, _ int64) (decimal.Decimal, bool) {
	px, ok := lt.prices[coin]
	return px, ok
}
