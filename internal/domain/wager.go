// Package domain defines the core types of the coinflip service: the wager
// record, the two-outcome choice, the error taxonomy, and the narrow
// interfaces behind which the external collaborators (treasury, randomness
// source, stake policy) live.
package domain

import (
	"time"

	"github.com/ethereum/go-ethereum/common"
)

// Choice is one of the two symmetric outcomes of a flip. The zero value
// doubles as "no active wager" in ledger storage.
type Choice uint8

const (
	ChoiceNone  Choice = 0
	ChoiceHeads Choice = 1
	ChoiceTails Choice = 2
)

// Valid reports whether c is a playable choice.
func (c Choice) Valid() bool {
	return c == ChoiceHeads || c == ChoiceTails
}

// String returns the display name of the choice.
func (c Choice) String() string {
	switch c {
	case ChoiceHeads:
		return "heads"
	case ChoiceTails:
		return "tails"
	default:
		return "none"
	}
}

// RequestID correlates a wager to its pending randomness request. It is
// unique per request and consumed exactly once at resolution.
type RequestID string

// Wager is a participant's single active bet. PotentialPayout is fixed at
// placement time and never recomputed.
type Wager struct {
	Participant     common.Address
	Choice          Choice
	Stake           int64
	PotentialPayout int64
	RequestID       RequestID
	PlacedAt        time.Time
}

// Active reports whether the wager slot is occupied. Choice != ChoiceNone is
// the single source of truth for activity.
func (w Wager) Active() bool {
	return w.Choice != ChoiceNone
}

// Payout ratio applied to every stake: 196/100, truncating integer division.
// On a fair 50/50 flip this yields a 98% return-to-player expectation.
const (
	PayoutNumerator   int64 = 196
	PayoutDenominator int64 = 100
)

// PotentialPayout computes the amount payable if the wager wins.
func PotentialPayout(stake int64) int64 {
	return stake * PayoutNumerator / PayoutDenominator
}
