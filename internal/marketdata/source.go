package marketdata

import (
	"github.com/shopspring/decimal"
)

// Source answers "what was this coin worth at this time".
// The second return is false when no usable price exists; callers
// flag the affected output rather than abort the run.
type Source interface {
	At(coin string, ts int64) (decimal.Decimal, bool)
}

// Layered consults sources in order and returns the first hit.
type Layered struct {
	sources []Source
}

// NewLayered stacks mark price sources by priority.
func NewLayered(sources ...Source) *Layered {
	return &Layered{sources: sources}
}

func (l *Layered) At(coin string, ts int64) (decimal.Decimal, bool) {
	for _, s := range l.sources {
		if px, ok := s.At(coin, ts); ok {
			return px, true
		}
	}
	return decimal.Decimal{}, false
}
