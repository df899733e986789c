// Package engine implements the bet-resolution core: placement validation
// with the solvency gate, outcome derivation from verified randomness, and
// idempotent settlement against the shared reserve.
package engine

import (
	"context"
	"encoding/hex"
	"fmt"
	"log/slog"
	"math"
	"sync"
	"sync/atomic"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"github.com/alanyoungcy/coinflip/internal/domain"
)

// reserveCoverageFactor caps a single bet's payout at 1% of the current
// reserve balance: the reserve must cover at least 100x the potential payout
// at placement time. The cap is per bet and deliberately ignores other
// concurrently active wagers.
const reserveCoverageFactor = 100

// Config carries the engine's fixed parameters.
type Config struct {
	// GameID is mixed into every outcome derivation.
	GameID string
}

// Engine is the bet-resolution core. All participant-visible state changes
// flow through Place and Resolve; the aggregate counters are exposed only
// through Stats.
type Engine struct {
	cfg        Config
	ledger     domain.BetLedger
	treasury   domain.Treasury
	randomness domain.RandomnessSource
	emitter    domain.Emitter
	history    domain.SettlementStore
	logger     *slog.Logger

	policyMu sync.RWMutex
	policy   domain.StakePolicy

	// One logical operation per participant at a time, within this process.
	// Cross-instance sequencing is the lock manager's job at the API layer.
	// Entries are reference counted and removed when the last holder
	// releases, so the table size is bounded by in-flight operations.
	participantsMu sync.Mutex
	participants   map[common.Address]*participantLock

	totalStaked atomic.Int64
	totalPaid   atomic.Int64
}

// New creates an Engine. emitter and history may be nil, in which case
// events and settlement rows are dropped.
func New(
	cfg Config,
	ledger domain.BetLedger,
	treasury domain.Treasury,
	randomness domain.RandomnessSource,
	policy domain.StakePolicy,
	emitter domain.Emitter,
	history domain.SettlementStore,
	logger *slog.Logger,
) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{
		cfg:          cfg,
		ledger:       ledger,
		treasury:     treasury,
		randomness:   randomness,
		policy:       policy,
		emitter:      emitter,
		history:      history,
		participants: make(map[common.Address]*participantLock),
		logger:       logger.With(slog.String("component", "engine")),
	}
}

// participantLock is one reference-counted entry in the keyed mutex table.
type participantLock struct {
	sync.Mutex
	refs int
}

// lockParticipant serializes engine operations for a single participant. The
// returned func releases the lock and drops the table entry once no other
// caller holds a reference.
func (e *Engine) lockParticipant(p common.Address) func() {
	e.participantsMu.Lock()
	l, ok := e.participants[p]
	if !ok {
		l = &participantLock{}
		e.participants[p] = l
	}
	l.refs++
	e.participantsMu.Unlock()

	l.Lock()
	return func() {
		l.Unlock()
		e.participantsMu.Lock()
		l.refs--
		if l.refs == 0 {
			delete(e.participants, p)
		}
		e.participantsMu.Unlock()
	}
}

// Place validates and installs a new wager. Preconditions are checked in a
// fixed order and the first failure wins; the stake transfer is the last
// step before any ledger mutation, so a failed transfer leaves no partial
// state. On success it returns the randomness request id the caller later
// resolves against.
func (e *Engine) Place(ctx context.Context, participant common.Address, choice domain.Choice, stake int64) (domain.RequestID, error) {
	unlock := e.lockParticipant(participant)
	defer unlock()

	active, err := e.ledger.HasActive(ctx, participant)
	if err != nil {
		return "", fmt.Errorf("engine: ledger lookup: %w", err)
	}
	if active {
		return "", domain.ErrAlreadyActive
	}

	if !choice.Valid() {
		return "", domain.ErrInvalidChoice
	}

	balance, err := e.treasury.BalanceOf(ctx, participant)
	if err != nil {
		return "", fmt.Errorf("engine: participant balance: %w", err)
	}
	if balance < stake {
		return "", domain.ErrInsufficientBalance
	}

	if stake <= 0 || stake > math.MaxInt64/domain.PayoutNumerator {
		return "", domain.ErrBetOutOfRange
	}
	payout := domain.PotentialPayout(stake)

	reserve, err := e.treasury.Balance(ctx)
	if err != nil {
		return "", fmt.Errorf("engine: reserve balance: %w", err)
	}
	minimum, err := e.stakePolicy().Minimum(ctx)
	if err != nil {
		return "", fmt.Errorf("engine: minimum stake: %w", err)
	}
	if reserve/reserveCoverageFactor < payout || stake < minimum {
		return "", domain.ErrBetOutOfRange
	}

	if err := e.treasury.TransferIn(ctx, participant, stake); err != nil {
		return "", fmt.Errorf("%w: %v", domain.ErrTransferFailed, err)
	}

	requestID, err := e.randomness.Request(ctx)
	if err != nil {
		// The stake is already in the reserve; surface the failure loudly so
		// the operational recovery flow can reconcile it.
		e.logger.Error("randomness request failed after stake transfer",
			slog.String("participant", participant.Hex()),
			slog.Int64("stake", stake),
			slog.String("error", err.Error()),
		)
		return "", fmt.Errorf("engine: request randomness: %w", err)
	}

	w := domain.Wager{
		Participant:     participant,
		Choice:          choice,
		Stake:           stake,
		PotentialPayout: payout,
		RequestID:       requestID,
		PlacedAt:        time.Now().UTC(),
	}
	if err := e.ledger.Open(ctx, w); err != nil {
		return "", fmt.Errorf("engine: open wager: %w", err)
	}

	e.totalStaked.Add(stake)
	e.emit(ctx, domain.NewBetStarted(participant, choice, stake, requestID))

	e.logger.Info("bet placed",
		slog.String("participant", participant.Hex()),
		slog.String("choice", choice.String()),
		slog.Int64("stake", stake),
		slog.Int64("potential_payout", payout),
		slog.String("request_id", string(requestID)),
	)
	return requestID, nil
}

// Resolve settles the participant's active wager against the verified random
// value. The wager is cleared strictly before any payout transfer, so a
// reentrant or retried call observes no active wager and cannot
// double-settle. It returns whether the participant won.
func (e *Engine) Resolve(ctx context.Context, participant common.Address) (bool, error) {
	unlock := e.lockParticipant(participant)
	defer unlock()

	w, err := e.ledger.Get(ctx, participant)
	if err != nil {
		return false, err
	}

	randomValue, err := e.randomness.Verified(ctx, w.RequestID)
	if err != nil {
		return false, err
	}

	outcome := Outcome(randomValue, participant, e.cfg.GameID)
	e.emit(ctx, domain.NewVerifiedGameNumber(randomValue, outcome, e.cfg.GameID))

	// Clear before the payout transfer. This is the non-reentrancy
	// guarantee: once cleared, a nested call sees ErrNoActiveWager.
	if err := e.ledger.Close(ctx, participant); err != nil {
		return false, fmt.Errorf("engine: close wager: %w", err)
	}

	won := outcome == w.Choice
	paid := false

	if won {
		if err := e.treasury.TransferOut(ctx, participant, w.PotentialPayout); err != nil {
			// The wager is already cleared; the win is now a reserve-side
			// obligation reconciled out of band, never retried here.
			e.recordSettlement(ctx, w, outcome, randomValue, true, false)
			e.emit(ctx, domain.NewBetFinished(participant, true, false, 0))
			e.logger.Error("payout failed after wager cleared",
				slog.String("participant", participant.Hex()),
				slog.Int64("payout", w.PotentialPayout),
				slog.String("error", err.Error()),
			)
			return false, fmt.Errorf("%w: %v", domain.ErrPayoutFailed, err)
		}
		e.totalPaid.Add(w.PotentialPayout)
		paid = true
	}

	e.recordSettlement(ctx, w, outcome, randomValue, won, paid)
	payout := int64(0)
	if won {
		payout = w.PotentialPayout
	}
	e.emit(ctx, domain.NewBetFinished(participant, won, paid, payout))

	e.logger.Info("bet settled",
		slog.String("participant", participant.Hex()),
		slog.String("choice", w.Choice.String()),
		slog.String("outcome", outcome.String()),
		slog.Bool("won", won),
		slog.Int64("payout", payout),
	)
	return won, nil
}

// AnnounceDeployed publishes the startup event for this game instance.
func (e *Engine) AnnounceDeployed(ctx context.Context) {
	e.emit(ctx, domain.NewDeployed(e.cfg.GameID))
}

// ActiveWager returns the participant's active wager, or ErrNoActiveWager.
func (e *Engine) ActiveWager(ctx context.Context, participant common.Address) (domain.Wager, error) {
	return e.ledger.Get(ctx, participant)
}

// SetStakePolicy swaps the minimum-stake provider. The candidate is probed
// first; a provider that cannot report a minimum is rejected with
// ErrNotACollaborator. Authorization is the caller's responsibility.
func (e *Engine) SetStakePolicy(ctx context.Context, policy domain.StakePolicy, name string) error {
	if policy == nil {
		return domain.ErrNotACollaborator
	}
	if _, err := policy.Minimum(ctx); err != nil {
		return fmt.Errorf("%w: %v", domain.ErrNotACollaborator, err)
	}

	e.policyMu.Lock()
	e.policy = policy
	e.policyMu.Unlock()

	e.emit(ctx, domain.NewProviderChanged(name))
	e.logger.Info("stake policy provider changed", slog.String("provider", name))
	return nil
}

func (e *Engine) stakePolicy() domain.StakePolicy {
	e.policyMu.RLock()
	defer e.policyMu.RUnlock()
	return e.policy
}

// Stats is a snapshot of the process-wide aggregate counters and the fixed
// game parameters.
type Stats struct {
	GameID            string `json:"game_id"`
	TotalStaked       int64  `json:"total_staked"`
	TotalPaid         int64  `json:"total_paid"`
	PayoutNumerator   int64  `json:"payout_numerator"`
	PayoutDenominator int64  `json:"payout_denominator"`
}

// Stats returns the current aggregate counters.
func (e *Engine) Stats() Stats {
	return Stats{
		GameID:            e.cfg.GameID,
		TotalStaked:       e.totalStaked.Load(),
		TotalPaid:         e.totalPaid.Load(),
		PayoutNumerator:   domain.PayoutNumerator,
		PayoutDenominator: domain.PayoutDenominator,
	}
}

func (e *Engine) emit(ctx context.Context, ev domain.Event) {
	if e.emitter == nil {
		return
	}
	e.emitter.Emit(ctx, ev)
}

func (e *Engine) recordSettlement(ctx context.Context, w domain.Wager, outcome domain.Choice, randomValue [32]byte, won, paid bool) {
	if e.history == nil {
		return
	}
	payout := int64(0)
	if won {
		payout = w.PotentialPayout
	}
	s := domain.Settlement{
		Participant: w.Participant.Hex(),
		Choice:      w.Choice,
		Outcome:     outcome,
		Stake:       w.Stake,
		Payout:      payout,
		Won:         won,
		Paid:        paid,
		RequestID:   w.RequestID,
		RandomValue: hex.EncodeToString(randomValue[:]),
		SettledAt:   time.Now().UTC(),
	}
	if err := e.history.Insert(ctx, s); err != nil {
		e.logger.Error("record settlement",
			slog.String("participant", w.Participant.Hex()),
			slog.Bool("paid", paid),
			slog.String("error", err.Error()),
		)
	}
}
