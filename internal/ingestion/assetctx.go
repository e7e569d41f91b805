package ingestion

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"

	"github.com/shopspring/decimal"

	"CascadeReplay/internal/marketdata"
)

// assetCtxLine is one asset-context sample: mark prices for every
// perp at one timestamp.
type assetCtxLine struct {
	Time int64 `json:"time"`
	Ctxs []struct {
		Coin   string          `json:"coin"`
		MarkPx decimal.Decimal `json:"markPx"`
	} `json:"ctxs"`
}

// LoadAssetContexts reads an asset-context JSON-lines archive into a
// mark price feed. The archive is optional; when absent the replayer
// falls back to last-trade prices alone.
func LoadAssetContexts(r io.ReadCloser) (*marketdata.Feed, error) {
	defer r.Close()

	feed := marketdata.NewFeed()
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 1<<20), maxLineBytes)

	for sc.Scan() {
		line := sc.Bytes()
		if len(line) == 0 {
			continue
		}
		var sample assetCtxLine
		if err := json.Unmarshal(line, &sample); err != nil {
			return nil, fmt.Errorf("parse asset context: %w", err)
		}
		for _, ctx := range sample.Ctxs {
			if ctx.MarkPx.IsZero() {
				continue
			}
			feed.Add(ctx.Coin, sample.Time, ctx.MarkPx)
		}
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("read asset contexts: %w", err)
	}

	feed.Finalize()
	return feed, nil
}
