package ledger

import (
	"sort"

	"github.com/shopspring/decimal"
)

// Store holds every account ledger for one replay run.
//
// The store is NOT safe for concurrent use. The replay core is
// single-threaded and owns it exclusively; read-only access is allowed
// only after the run finishes.
type Store struct {
	ledgers map[string]*Ledger

	// Accounts first seen after the baseline snapshot
	lateJoiners int64
}

// NewStore creates an empty store.
func NewStore() *Store {
	return &Store{
		ledgers: make(map[string]*Ledger),
	}
}

// Seed installs a baseline ledger for an account. Intended for
// snapshot loading before the first event is applied; overwrites any
// existing ledger under the same account.
func (s *Store) Seed(account string, cash decimal.Decimal) *Ledger {
	l := NewLedger()
	l.Cash = cash
	s.ledgers[account] = l
	return l
}

// Get returns the ledger for an account if it exists.
func (s *Store) Get(account string) (*Ledger, bool) {
	l, ok := s.ledgers[account]
	return l, ok
}

// GetOrCreate returns the account's ledger, creating a zero ledger for
// accounts that first appear mid-stream.
func (s *Store) GetOrCreate(account string) *Ledger {
	if l, ok := s.ledgers[account]; ok {
		return l
	}
	l := NewLedger()
	s.ledgers[account] = l
	s.lateJoiners++
	return l
}

// Len returns the number of tracked accounts.
func (s *Store) Len() int {
	return len(s.ledgers)
}

// LateJoiners returns how many accounts were created after the
// baseline was seeded.
func (s *Store) LateJoiners() int64 {
	return s.lateJoiners
}

// Accounts returns all tracked account addresses in sorted order.
// Sorting keeps iteration deterministic for hashing and reports.
func (s *Store) Accounts() []string {
	out := make([]string, 0, len(s.ledgers))
	for acct := range s.ledgers {
		out = append(out, acct)
	}
	sort.Strings(out)
	return out
}

// TotalCash sums cash across every account.
func (s *Store) TotalCash() decimal.Decimal {
	total := decimal.Zero
	for _, l := range s.ledgers {
		total = total.Add(l.Cash)
	}
	return total
}
