package ingestion

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"CascadeReplay/internal/event"
	"CascadeReplay/internal/observability"
)

// Archive lines can carry whole blocks of fills; allow large lines.
const maxLineBytes = 64 << 20

const adlDirection = "Auto-Deleveraging"

// Window bounds a replay run in epoch milliseconds, inclusive.
type Window struct {
	Start int64
	End   int64
}

// Contains reports whether ts falls inside the window. A zero window
// admits everything.
func (w Window) Contains(ts int64) bool {
	if w.Start == 0 && w.End == 0 {
		return true
	}
	return ts >= w.Start && ts <= w.End
}

// fillWire mirrors one fill payload in an archive block. Numeric
// fields arrive as JSON strings.
type fillWire struct {
	Coin        string          `json:"coin"`
	Px          decimal.Decimal `json:"px"`
	Sz          decimal.Decimal `json:"sz"`
	Side        string          `json:"side"`
	Time        int64           `json:"time"`
	Dir         string          `json:"dir"`
	ClosedPnl   decimal.Decimal `json:"closedPnl"`
	Fee         decimal.Decimal `json:"fee"`
	Liquidation *struct {
		LiquidatedUser string `json:"liquidatedUser"`
	} `json:"liquidation"`
}

// fillBlock is one archive line: a block of (user, fill) pairs.
type fillBlock struct {
	Events []json.RawMessage `json:"events"`
}

// FillSource streams fill events from a JSON-lines fills archive.
// Spot-market fills are dropped, window filtering is applied, and each
// emitted fill gets a monotonic per-source sequence number.
type FillSource struct {
	name    string
	sc      *bufio.Scanner
	closer  io.Closer
	window  Window
	metrics *observability.Metrics
	log     zerolog.Logger

	queue []*event.Fill
	seq   int64
}

// NewFillSource wraps a fills archive reader. metrics may be nil.
func NewFillSource(name string, r io.ReadCloser, window Window, metrics *observability.Metrics, log zerolog.Logger) *FillSource {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 1<<20), maxLineBytes)
	return &FillSource{
		name:    name,
		sc:      sc,
		closer:  r,
		window:  window,
		metrics: metrics,
		log:     log,
	}
}

func (s *FillSource) Name() string { return s.name }

// Fills sort after ledger events on equal timestamps.
func (s *FillSource) Priority() int { return 1 }

func (s *FillSource) Next() (event.Event, error) {
	for len(s.queue) == 0 {
		if !s.sc.Scan() {
			if err := s.sc.Err(); err != nil {
				return nil, fmt.Errorf("read %s: %w", s.name, err)
			}
			s.closer.Close()
			return nil, io.EOF
		}

		line := s.sc.Bytes()
		if len(line) == 0 {
			continue
		}
		if s.metrics != nil {
			s.metrics.IngestLinesRead.WithLabelValues(s.name).Inc()
		}

		if err := s.parseBlock(line); err != nil {
			if s.metrics != nil {
				s.metrics.IngestParseErrors.WithLabelValues(s.name).Inc()
			}
			return nil, fmt.Errorf("parse %s: %w", s.name, err)
		}
	}

	f := s.queue[0]
	s.queue = s.queue[1:]
	return f, nil
}

func (s *FillSource) parseBlock(line []byte) error {
	var block fillBlock
	if err := json.Unmarshal(line, &block); err != nil {
		return err
	}

	for _, raw := range block.Events {
		// Each entry is a [user, fill] pair
		var pair [2]json.RawMessage
		if err := json.Unmarshal(raw, &pair); err != nil {
			return fmt.Errorf("fill pair: %w", err)
		}

		var user string
		if err := json.Unmarshal(pair[0], &user); err != nil {
			return fmt.Errorf("fill user: %w", err)
		}
		var wire fillWire
		if err := json.Unmarshal(pair[1], &wire); err != nil {
			return fmt.Errorf("fill payload: %w", err)
		}

		if isSpotCoin(wire.Coin) {
			if s.metrics != nil {
				s.metrics.IngestSpotFiltered.Inc()
			}
			continue
		}
		if !s.window.Contains(wire.Time) {
			if s.metrics != nil {
				s.metrics.IngestOutOfWindow.Inc()
			}
			continue
		}

		s.seq++
		f := &event.Fill{
			Account:    user,
			Coin:       wire.Coin,
			Side:       event.ParseSide(wire.Side),
			Price:      wire.Px,
			Size:       wire.Sz,
			Fee:        wire.Fee,
			ClosedPnL:  wire.ClosedPnl,
			Direction:  wire.Dir,
			ADLTrigger: strings.Contains(wire.Dir, adlDirection),
			Timestamp:  wire.Time,
			Sequence:   s.seq,
		}
		if wire.Liquidation != nil {
			f.Liquidated = wire.Liquidation.LiquidatedUser
		}

		if s.metrics != nil {
			s.metrics.IngestEventsParsed.WithLabelValues(s.name, "Fill").Inc()
		}
		s.queue = append(s.queue, f)
	}

	return nil
}

// isSpotCoin filters spot-market symbols: index-addressed pairs
// ("@123") and named spot pairs.
func isSpotCoin(coin string) bool {
	return strings.HasPrefix(coin, "@") || strings.Contains(coin, "/")
}
