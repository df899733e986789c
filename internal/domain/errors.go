package domain

import "errors"

// User errors: rejected synchronously with no state mutation; safe to retry
// with corrected input.
var (
	ErrAlreadyActive       = errors.New("participant already has an active wager")
	ErrInvalidChoice       = errors.New("choice must be heads (1) or tails (2)")
	ErrInsufficientBalance = errors.New("participant balance below stake")
	ErrBetOutOfRange       = errors.New("stake outside the acceptable range")
	ErrNoActiveWager       = errors.New("cannot play without betting")
)

// Collaborator errors.
var (
	// ErrRandomnessNotReady means the random value for a request has not been
	// verified yet. Recoverable: the caller retries resolution later.
	ErrRandomnessNotReady = errors.New("random value not yet verified")

	// ErrTransferFailed means the stake transfer into the reserve failed.
	// Placement checks this before any ledger mutation, so no partial state
	// is left behind.
	ErrTransferFailed = errors.New("stake transfer failed")

	// ErrPayoutFailed means the winning disbursement failed after the wager
	// was already cleared. The obligation is recorded for out-of-band
	// recovery; the engine never retries it automatically.
	ErrPayoutFailed = errors.New("payout transfer failed")
)

// Logic errors: a sequencing bug in the caller or the ledger. Fatal for the
// call, never retried.
var (
	ErrRandomnessUnknown = errors.New("unknown randomness request")
	ErrLedgerDoubleClose = errors.New("close called without an active wager")
)

// Administrative errors.
var (
	ErrUnauthorized     = errors.New("caller lacks the administrative role")
	ErrNotACollaborator = errors.New("target does not satisfy the stake policy contract")
)

// ErrLockHeld is returned by the lock manager when a per-participant
// operation is already in flight on another instance.
var ErrLockHeld = errors.New("lock already held")

// IsUserError reports whether err belongs to the synchronously-rejected
// class that leaves all state unchanged.
func IsUserError(err error) bool {
	return errors.Is(err, ErrAlreadyActive) ||
		errors.Is(err, ErrInvalidChoice) ||
		errors.Is(err, ErrInsufficientBalance) ||
		errors.Is(err, ErrBetOutOfRange) ||
		errors.Is(err, ErrNoActiveWager)
}

// IsTransient reports whether err is safe to retry later without any
// corrective action.
func IsTransient(err error) bool {
	return errors.Is(err, ErrRandomnessNotReady) || errors.Is(err, ErrLockHeld)
}
