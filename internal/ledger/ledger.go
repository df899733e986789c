// Package ledger provides the in-memory bet ledger: a single-slot-per-key
// map from participant to active wager. It is the authoritative admission
// check for local mode and tests; production deployments use the durable
// postgres ledger, which has the same semantics.
package ledger

import (
	"context"
	"sync"

	"github.com/ethereum/go-ethereum/common"

	"github.com/alanyoungcy/coinflip/internal/domain"
)

// Ledger is a mutex-guarded wager map. The check-and-set in Open is one
// critical section, so two concurrent placements by the same participant
// can never both observe an empty slot.
type Ledger struct {
	mu     sync.Mutex
	wagers map[common.Address]domain.Wager
}

// New creates an empty Ledger.
func New() *Ledger {
	return &Ledger{wagers: make(map[common.Address]domain.Wager)}
}

// HasActive reports whether the participant has an active wager.
func (l *Ledger) HasActive(_ context.Context, participant common.Address) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.wagers[participant].Active(), nil
}

// Open installs a new active wager, failing with ErrAlreadyActive when the
// slot is occupied.
func (l *Ledger) Open(_ context.Context, w domain.Wager) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.wagers[w.Participant].Active() {
		return domain.ErrAlreadyActive
	}
	l.wagers[w.Participant] = w
	return nil
}

// Get returns the active wager or ErrNoActiveWager.
func (l *Ledger) Get(_ context.Context, participant common.Address) (domain.Wager, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	w := l.wagers[participant]
	if !w.Active() {
		return domain.Wager{}, domain.ErrNoActiveWager
	}
	return w, nil
}

// Close resets the participant's slot. Closing an inactive slot is a caller
// sequencing bug and returns ErrLedgerDoubleClose.
func (l *Ledger) Close(_ context.Context, participant common.Address) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if !l.wagers[participant].Active() {
		return domain.ErrLedgerDoubleClose
	}
	delete(l.wagers, participant)
	return nil
}

// Compile-time interface check.
var _ domain.BetLedger = (*Ledger)(nil)
