package domain

import (
	"context"
	"encoding/hex"
	"time"

	"github.com/ethereum/go-ethereum/common"
)

// Event names, emitted in the order the engine performs the corresponding
// steps.
const (
	EventDeployed           = "Deployed"
	EventBetStarted         = "BetStarted"
	EventVerifiedGameNumber = "VerifiedGameNumber"
	EventBetFinished        = "BetFinished"
	EventProviderChanged    = "ProviderChanged"
)

// Event is a single observability record. Unused fields stay empty; the
// Name determines which ones are meaningful.
type Event struct {
	Name        string    `json:"name"`
	At          time.Time `json:"at"`
	Participant string    `json:"participant,omitempty"`
	Choice      uint8     `json:"choice,omitempty"`
	Stake       int64     `json:"stake,omitempty"`
	RequestID   string    `json:"request_id,omitempty"`
	RandomValue string    `json:"random_value,omitempty"`
	Outcome     uint8     `json:"outcome,omitempty"`
	GameID      string    `json:"game_id,omitempty"`
	Won         *bool     `json:"won,omitempty"`
	Paid        *bool     `json:"paid,omitempty"`
	Payout      int64     `json:"payout,omitempty"`
	Provider    string    `json:"provider,omitempty"`
}

// Emitter receives engine events. Emission is observability only; emitters
// must not influence settlement and failures are logged, not propagated.
type Emitter interface {
	Emit(ctx context.Context, e Event)
}

// NewDeployed records service startup.
func NewDeployed(gameID string) Event {
	return Event{Name: EventDeployed, At: time.Now().UTC(), GameID: gameID}
}

// NewBetStarted records a successful placement.
func NewBetStarted(participant common.Address, choice Choice, stake int64, id RequestID) Event {
	return Event{
		Name:        EventBetStarted,
		At:          time.Now().UTC(),
		Participant: participant.Hex(),
		Choice:      uint8(choice),
		Stake:       stake,
		RequestID:   string(id),
	}
}

// NewVerifiedGameNumber records the audited outcome derivation inputs.
func NewVerifiedGameNumber(randomValue [32]byte, outcome Choice, gameID string) Event {
	return Event{
		Name:        EventVerifiedGameNumber,
		At:          time.Now().UTC(),
		RandomValue: hex.EncodeToString(randomValue[:]),
		Outcome:     uint8(outcome),
		GameID:      gameID,
	}
}

// NewBetFinished records a settlement. A won wager whose payout transfer
// failed carries Paid=false and a zero Payout; the obligation is settled out
// of band.
func NewBetFinished(participant common.Address, won, paid bool, payout int64) Event {
	return Event{
		Name:        EventBetFinished,
		At:          time.Now().UTC(),
		Participant: participant.Hex(),
		Won:         &won,
		Paid:        &paid,
		Payout:      payout,
	}
}

// NewProviderChanged records an administrative stake-policy swap.
func NewProviderChanged(provider string) Event {
	return Event{Name: EventProviderChanged, At: time.Now().UTC(), Provider: provider}
}
