package ingestion

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"CascadeReplay/internal/event"
	"CascadeReplay/internal/observability"
)

// miscBlock is one archive line: a block of ledger/funding events.
type miscBlock struct {
	Events []miscEvent `json:"events"`
}

type miscEvent struct {
	Time  string    `json:"time"`
	Inner miscInner `json:"inner"`
}

type miscInner struct {
	Funding *struct {
		Deltas []fundingDelta `json:"deltas"`
	} `json:"Funding"`
	LedgerUpdate *ledgerUpdate `json:"LedgerUpdate"`
}

type fundingDelta struct {
	User          string          `json:"user"`
	Coin          string          `json:"coin"`
	FundingAmount decimal.Decimal `json:"funding_amount"`
}

type ledgerUpdate struct {
	Users []string    `json:"users"`
	Delta ledgerDelta `json:"delta"`
}

type ledgerDelta struct {
	Type        string          `json:"type"`
	Usdc        decimal.Decimal `json:"usdc"`
	ToPerp      bool            `json:"toPerp"`
	User        string          `json:"user"`
	Destination string          `json:"destination"`
	Vault       string          `json:"vault"`
}

// MiscSource streams funding and transfer events from a JSON-lines
// ledger archive.
type MiscSource struct {
	name    string
	sc      *bufio.Scanner
	closer  io.Closer
	window  Window
	metrics *observability.Metrics
	log     zerolog.Logger

	queue []event.Event
	seq   int64
}

// NewMiscSource wraps a misc-events archive reader. metrics may be nil.
func NewMiscSource(name string, r io.ReadCloser, window Window, metrics *observability.Metrics, log zerolog.Logger) *MiscSource {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 1<<20), maxLineBytes)
	return &MiscSource{
		name:    name,
		sc:      sc,
		closer:  r,
		window:  window,
		metrics: metrics,
		log:     log,
	}
}

func (s *MiscSource) Name() string { return s.name }

// Ledger events settle before fills at the same timestamp.
func (s *MiscSource) Priority() int { return 0 }

func (s *MiscSource) Next() (event.Event, error) {
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

	evt := s.queue[0]
	s.queue = s.queue[1:]
	return evt, nil
}

func (s *MiscSource) parseBlock(line []byte) error {
	var block miscBlock
	if err := json.Unmarshal(line, &block); err != nil {
		return err
	}

	for _, me := range block.Events {
		ts, err := parseEventTime(me.Time)
		if err != nil {
			return fmt.Errorf("event time %q: %w", me.Time, err)
		}
		if !s.window.Contains(ts) {
			if s.metrics != nil {
				s.metrics.IngestOutOfWindow.Inc()
			}
			continue
		}

		if me.Inner.Funding != nil {
			for _, delta := range me.Inner.Funding.Deltas {
				s.seq++
				s.emit("FundingPayment", &event.FundingPayment{
					Account:   delta.User,
					Coin:      delta.Coin,
					Amount:    delta.FundingAmount,
					Timestamp: ts,
					Sequence:  s.seq,
				})
			}
		}

		if me.Inner.LedgerUpdate != nil {
			s.parseLedgerUpdate(me.Inner.LedgerUpdate, ts)
		}
	}

	return nil
}

func (s *MiscSource) parseLedgerUpdate(lu *ledgerUpdate, ts int64) {
	delta := lu.Delta

	emitFor := func(build func(user string) *event.Transfer) {
		for _, user := range lu.Users {
			s.seq++
			t := build(user)
			t.Timestamp = ts
			t.Sequence = s.seq
			s.emit("Transfer", t)
		}
	}

	switch delta.Type {
	case "deposit":
		emitFor(func(user string) *event.Transfer {
			return &event.Transfer{To: user, Amount: delta.Usdc, Type: event.TransferDeposit}
		})

	case "withdraw":
		emitFor(func(user string) *event.Transfer {
			return &event.Transfer{From: user, Amount: delta.Usdc, Type: event.TransferWithdrawal}
		})

	case "accountClassTransfer":
		// Cash crossing between the account's spot and perp wallets;
		// only the perp side is visible to the ledger.
		emitFor(func(user string) *event.Transfer {
			t := &event.Transfer{Amount: delta.Usdc, Type: event.TransferSpot}
			if delta.ToPerp {
				t.To = user
			} else {
				t.From = user
			}
			return t
		})

	case "internalTransfer", "subAccountTransfer":
		s.seq++
		s.emit("Transfer", &event.Transfer{
			From:      delta.User,
			To:        delta.Destination,
			Amount:    delta.Usdc,
			Type:      event.TransferInternal,
			Timestamp: ts,
			Sequence:  s.seq,
		})

	case "vaultDeposit":
		emitFor(func(user string) *event.Transfer {
			return &event.Transfer{From: user, To: delta.Vault, Amount: delta.Usdc, Type: event.TransferVaultDeposit}
		})

	case "vaultWithdraw":
		emitFor(func(user string) *event.Transfer {
			return &event.Transfer{From: delta.Vault, To: user, Amount: delta.Usdc, Type: event.TransferVaultWithdrawal}
		})

	case "vaultDistribution":
		emitFor(func(user string) *event.Transfer {
			return &event.Transfer{To: user, Amount: delta.Usdc, Type: event.TransferVaultCommission}
		})

	case "reward", "rewardsClaim":
		emitFor(func(user string) *event.Transfer {
			return &event.Transfer{To: user, Amount: delta.Usdc, Type: event.TransferReward}
		})

	case "liquidation":
		// Forced settlement applied by the liquidation engine outside
		// of normal matching.
		emitFor(func(user string) *event.Transfer {
			return &event.Transfer{To: user, Amount: delta.Usdc, Type: event.TransferLiquidationOverride}
		})

	default:
		s.log.Debug().Str("type", delta.Type).Msg("unmapped ledger delta, ignored")
	}
}

func (s *MiscSource) emit(kind string, evt event.Event) {
	if s.metrics != nil {
		s.metrics.IngestEventsParsed.WithLabelValues(s.name, kind).Inc()
	}
	s.queue = append(s.queue, evt)
}

// parseEventTime parses archive timestamps (RFC3339, sometimes with
// more fractional digits than nanoseconds) into epoch milliseconds.
func parseEventTime(raw string) (int64, error) {
	body, zone := raw, "Z"
	if strings.HasSuffix(body, "Z") {
		body = body[:len(body)-1]
	} else if i := strings.LastIndexAny(body, "+-"); i > len("2006-01-02T") {
		zone = body[i:]
		body = body[:i]
	}

	// Clamp the fractional part to nanosecond precision
	if i := strings.IndexByte(body, '.'); i >= 0 {
		frac := body[i+1:]
		if len(frac) > 9 {
			body = body[:i+1] + frac[:9]
		}
	}

	t, err := time.Parse(time.RFC3339Nano, body+zone)
	if err != nil {
		return 0, err
	}
	return t.UnixMilli(), nil
}
