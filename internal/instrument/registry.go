package instrument

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/shopspring/decimal"
)

// Perp prices carry at most maxPriceDecimals-szDecimals decimal places.
const maxPriceDecimals = 6

// Instrument describes one tradable perp market.
type Instrument struct {
	Symbol      string
	SzDecimals  int32
	PxDecimals  int32
	MaxLeverage int32
	Delisted    bool
}

// LotSize returns the smallest size increment.
func (i *Instrument) LotSize() decimal.Decimal {
	return decimal.New(1, -i.SzDecimals)
}

// RoundSize truncates a size to the instrument's lot grid.
func (i *Instrument) RoundSize(sz decimal.Decimal) decimal.Decimal {
	return sz.Truncate(i.SzDecimals)
}

// RoundPrice truncates a price to the instrument's tick grid.
func (i *Instrument) RoundPrice(px decimal.Decimal) decimal.Decimal {
	return px.Truncate(i.PxDecimals)
}

// Registry maps perp symbols to their metadata. Lookups for symbols
// not in the registry signal unknown-instrument handling upstream:
// the fill's position effect is skipped while cash effects still apply.
type Registry struct {
	bySymbol map[string]*Instrument
}

// NewRegistry builds a registry from explicit instrument definitions.
func NewRegistry(instruments []Instrument) *Registry {
	r := &Registry{bySymbol: make(map[string]*Instrument, len(instruments))}
	for i := range instruments {
		ins := instruments[i]
		if ins.PxDecimals == 0 {
			ins.PxDecimals = maxPriceDecimals - ins.SzDecimals
		}
		r.bySymbol[ins.Symbol] = &ins
	}
	return r
}

// Lookup returns the instrument for a symbol.
func (r *Registry) Lookup(symbol string) (*Instrument, bool) {
	ins, ok := r.bySymbol[symbol]
	return ins, ok
}

// Len returns the number of registered instruments.
func (r *Registry) Len() int {
	return len(r.bySymbol)
}

// metaFile mirrors the exchange perp metadata dump.
type metaFile struct {
	Universe []struct {
		Name        string `json:"name"`
		SzDecimals  int32  `json:"szDecimals"`
		MaxLeverage int32  `json:"maxLeverage"`
		IsDelisted  bool   `json:"isDelisted"`
	} `json:"universe"`
}

// LoadFile reads a perp metadata JSON dump and builds a registry.
func LoadFile(path string) (*Registry, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read instrument metadata: %w", err)
	}

	var meta metaFile
	if err := json.Unmarshal(raw, &meta); err != nil {
		return nil, fmt.Errorf("parse instrument metadata: %w", err)
	}

	instruments := make([]Instrument, 0, len(meta.Universe))
	for _, u := range meta.Universe {
		instruments = append(instruments, Instrument{
			Symbol:      u.Name,
			SzDecimals:  u.SzDecimals,
			MaxLeverage: u.MaxLeverage,
			Delisted:    u.IsDelisted,
		})
	}

	return NewRegistry(instruments), nil
}
