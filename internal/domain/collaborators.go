package domain

import (
	"context"
	"time"

	"github.com/ethereum/go-ethereum/common"
)

// Treasury is the shared liquidity reserve. Stakes flow in, winnings flow
// out, and the engine reads its balance for the per-bet solvency gate.
// Implementations must fail closed: a transfer either moves the full amount
// or moves nothing.
type Treasury interface {
	// Balance returns the reserve's own balance.
	Balance(ctx context.Context) (int64, error)

	// BalanceOf returns a participant's token balance.
	BalanceOf(ctx context.Context, participant common.Address) (int64, error)

	// TransferIn moves a stake from the participant into the reserve.
	TransferIn(ctx context.Context, from common.Address, amount int64) error

	// TransferOut disburses winnings from the reserve to the participant.
	TransferOut(ctx context.Context, to common.Address, amount int64) error
}

// RandomnessSource is the two-phase randomness oracle: a request is issued
// immediately and a verified random value becomes available later.
type RandomnessSource interface {
	// Request issues a fresh randomness request and returns its id. Ids are
	// unique per call and never reused.
	Request(ctx context.Context) (RequestID, error)

	// Verified returns the verified random value for a request. It returns
	// ErrRandomnessNotReady while the value is pending and
	// ErrRandomnessUnknown for an id that was never issued.
	Verified(ctx context.Context, id RequestID) ([32]byte, error)
}

// StakePolicy reports the current minimum allowed stake. The value may
// change between calls; the engine reads it fresh on every placement and
// never caches it.
type StakePolicy interface {
	Minimum(ctx context.Context) (int64, error)
}

// BetLedger is the per-participant record of the active wager. It enforces
// at-most-one-active-wager; all other validation belongs to the engine.
type BetLedger interface {
	// HasActive reports whether the participant has an active wager.
	HasActive(ctx context.Context, participant common.Address) (bool, error)

	// Open installs a new active wager. It returns ErrAlreadyActive when the
	// participant already has one; the check and the install are a single
	// atomic step.
	Open(ctx context.Context, w Wager) error

	// Get returns the active wager or ErrNoActiveWager.
	Get(ctx context.Context, participant common.Address) (Wager, error)

	// Close resets the participant's slot to inactive. Closing an inactive
	// slot returns ErrLedgerDoubleClose; the engine sequences calls so that
	// never happens.
	Close(ctx context.Context, participant common.Address) error
}

// LockManager serializes operations on a shared key across service
// instances. Acquire returns ErrLockHeld when the key is already locked.
type LockManager interface {
	Acquire(ctx context.Context, key string, ttl time.Duration) (func(), error)
}
