package replay

import (
	"crypto/sha256"
	"encoding/hex"
	"sort"

	"CascadeReplay/internal/ledger"
)

// StateHash computes a canonical SHA-256 digest over every account
// ledger. Accounts and positions are visited in sorted order so the
// digest is a determinism check: same inputs, same hash.
func StateHash(store *ledger.Store) string {
	h := sha256.New()

	for _, acct := range store.Accounts() {
		l, _ := store.Get(acct)

		h.Write([]byte(acct))
		h.Write([]byte{'|'})
		h.Write([]byte(l.Cash.String()))
		h.Write([]byte{'|'})
		h.Write([]byte(l.RealizedPnL.String()))

		coins := make([]string, 0, len(l.Positions))
		for coin := range l.Positions {
			coins = append(coins, coin)
		}
		sort.Strings(coins)

		for _, coin := range coins {
			pos := l.Positions[coin]
			h.Write([]byte{'|'})
			h.Write([]byte(coin))
			h.Write([]byte{':'})
			h.Write([]byte(pos.Size.String()))
			h.Write([]byte{'@'})
			h.Write([]byte(pos.AvgEntryPrice.String()))
		}
		h.Write([]byte{'\n'})
	}

	return hex.EncodeToString(h.Sum(nil))
}
