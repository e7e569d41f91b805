package marketdata

import (
	"sort"

	"github.com/shopspring/decimal"
)

// PricePoint is one observed mark price.
type PricePoint struct {
	Time  int64 // epoch ms
	Price decimal.Decimal
}

// Feed serves mark prices from pre-loaded time series, one per coin.
// Lookups return the series point nearest in time to the query.
type Feed struct {
	series map[string][]PricePoint
}

// NewFeed creates an empty feed.
func NewFeed() *Feed {
	return &Feed{series: make(map[string][]PricePoint)}
}

// Add appends a price point to a coin's series. Call Finalize after
// the last Add before serving lookups.
func (f *Feed) Add(coin string, ts int64, price decimal.Decimal) {
	f.series[coin] = append(f.series[coin], PricePoint{Time: ts, Price: price})
}

// Finalize sorts every series by time.
func (f *Feed) Finalize() {
	for _, pts := range f.series {
		sort.Slice(pts, func(i, j int) bool { return pts[i].Time < pts[j].Time })
	}
}

// At returns the price point nearest to ts for the coin.
func (f *Feed) At(coin string, ts int64) (decimal.Decimal, bool) {
	pts := f.series[coin]
	if len(pts) == 0 {
		return decimal.Decimal{}, false
	}

	i := sort.Search(len(pts), func(i int) bool { return pts[i].Time >= ts })
	switch {
	case i == 0:
		return pts[0].Price, true
	case i == len(pts):
		return pts[len(pts)-1].Price, true
	}

	// Pick the closer neighbor; ties resolve to the earlier point
	if ts-pts[i-1].Time <= pts[i].Time-ts {
		return pts[i-1].Price, true
	}
	return pts[i].Price, true
}

// Coins returns the number of coins with at least one point.
func (f *Feed) Coins() int {
	return len(f.series)
}
