package engine

import (
	"context"
	"errors"
	"math/big"
	"sync"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alanyoungcy/coinflip/internal/domain"
	"github.com/alanyoungcy/coinflip/internal/ledger"
	"github.com/alanyoungcy/coinflip/internal/policy"
	"github.com/alanyoungcy/coinflip/internal/randomness"
	"github.com/alanyoungcy/coinflip/internal/treasury"
)

const testGameID = "coinflip-test"

var (
	alice = common.HexToAddress("0x00000000000000000000000000000000000000aa")
	bob   = common.HexToAddress("0x00000000000000000000000000000000000000bb")
)

// captureEmitter records every emitted event for assertions.
type captureEmitter struct {
	mu     sync.Mutex
	events []domain.Event
}

func (c *captureEmitter) Emit(_ context.Context, e domain.Event) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.events = append(c.events, e)
}

func (c *captureEmitter) named(name string) []domain.Event {
	c.mu.Lock()
	defer c.mu.Unlock()
	var out []domain.Event
	for _, e := range c.events {
		if e.Name == name {
			out = append(out, e)
		}
	}
	return out
}

// memHistory is an in-memory settlement store for tests.
type memHistory struct {
	mu   sync.Mutex
	rows []domain.Settlement
}

func (h *memHistory) Insert(_ context.Context, s domain.Settlement) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	s.ID = int64(len(h.rows) + 1)
	h.rows = append(h.rows, s)
	return nil
}

func (h *memHistory) ListRecent(_ context.Context, _ domain.ListOpts) ([]domain.Settlement, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	out := make([]domain.Settlement, len(h.rows))
	copy(out, h.rows)
	return out, nil
}

func (h *memHistory) ListSince(ctx context.Context, _ time.Time) ([]domain.Settlement, error) {
	return h.ListRecent(ctx, domain.ListOpts{})
}

type fixture struct {
	engine   *Engine
	treasury *treasury.Memory
	random   *randomness.Memory
	emitter  *captureEmitter
	history  *memHistory
}

func newFixture(t *testing.T, reserve, minStake int64) *fixture {
	t.Helper()
	f := &fixture{
		treasury: treasury.NewMemory(reserve),
		random:   randomness.NewMemory(),
		emitter:  &captureEmitter{},
		history:  &memHistory{},
	}
	f.engine = New(
		Config{GameID: testGameID},
		ledger.New(),
		f.treasury,
		f.random,
		policy.Static{Min: minStake},
		f.emitter,
		f.history,
		nil,
	)
	return f
}

func TestPlaceHappyPath(t *testing.T) {
	f := newFixture(t, 100_000, 100)
	f.treasury.Credit(alice, 1_000)
	ctx := context.Background()

	requestID, err := f.engine.Place(ctx, alice, domain.ChoiceHeads, 100)
	require.NoError(t, err)
	require.NotEmpty(t, requestID)

	w, err := f.engine.ActiveWager(ctx, alice)
	require.NoError(t, err)
	assert.Equal(t, domain.ChoiceHeads, w.Choice)
	assert.Equal(t, int64(100), w.Stake)
	assert.Equal(t, int64(196), w.PotentialPayout)
	assert.Equal(t, requestID, w.RequestID)

	// The stake moved into the reserve.
	balance, err := f.treasury.BalanceOf(ctx, alice)
	require.NoError(t, err)
	assert.Equal(t, int64(900), balance)

	assert.Equal(t, int64(100), f.engine.Stats().TotalStaked)
	require.Len(t, f.emitter.named(domain.EventBetStarted), 1)
}

func TestPlaceSecondBetRejected(t *testing.T) {
	f := newFixture(t, 100_000, 100)
	f.treasury.Credit(alice, 1_000)
	ctx := context.Background()

	_, err := f.engine.Place(ctx, alice, domain.ChoiceTails, 100)
	require.NoError(t, err)

	_, err = f.engine.Place(ctx, alice, domain.ChoiceHeads, 100)
	assert.ErrorIs(t, err, domain.ErrAlreadyActive)

	// An active wager masks every later check, including choice validity.
	_, err = f.engine.Place(ctx, alice, domain.Choice(7), 100)
	assert.ErrorIs(t, err, domain.ErrAlreadyActive)
}

func TestPlaceInvalidChoice(t *testing.T) {
	f := newFixture(t, 100_000, 100)
	f.treasury.Credit(alice, 1_000)
	ctx := context.Background()

	for _, c := range []domain.Choice{domain.ChoiceNone, 3, 255} {
		_, err := f.engine.Place(ctx, alice, c, 100)
		assert.ErrorIs(t, err, domain.ErrInvalidChoice)
	}
}

func TestPlaceInsufficientBalance(t *testing.T) {
	f := newFixture(t, 100_000, 100)
	f.treasury.Credit(alice, 50)
	ctx := context.Background()

	_, err := f.engine.Place(ctx, alice, domain.ChoiceHeads, 100)
	assert.ErrorIs(t, err, domain.ErrInsufficientBalance)

	// Balance is checked before the stake range, so an affordable but
	// sub-minimum stake reports the range error instead.
	_, err = f.engine.Place(ctx, alice, domain.ChoiceHeads, 50)
	assert.ErrorIs(t, err, domain.ErrBetOutOfRange)
}

func TestPlaceReserveCannotCoverPayout(t *testing.T) {
	// reserve/100 = 10 is far below the 1176 payout on a 600 stake.
	f := newFixture(t, 1_000, 100)
	f.treasury.Credit(alice, 600)
	ctx := context.Background()

	_, err := f.engine.Place(ctx, alice, domain.ChoiceHeads, 600)
	assert.ErrorIs(t, err, domain.ErrBetOutOfRange)

	// Nothing was transferred or recorded.
	balance, err := f.treasury.BalanceOf(ctx, alice)
	require.NoError(t, err)
	assert.Equal(t, int64(600), balance)
	assert.Equal(t, int64(0), f.engine.Stats().TotalStaked)
}

func TestPlaceBelowMinimumStake(t *testing.T) {
	f := newFixture(t, 1_000_000, 500)
	f.treasury.Credit(alice, 1_000)
	ctx := context.Background()

	_, err := f.engine.Place(ctx, alice, domain.ChoiceHeads, 499)
	assert.ErrorIs(t, err, domain.ErrBetOutOfRange)

	_, err = f.engine.Place(ctx, alice, domain.ChoiceHeads, 500)
	assert.NoError(t, err)
}

func TestPlaceNonPositiveStake(t *testing.T) {
	f := newFixture(t, 100_000, 100)
	ctx := context.Background()

	_, err := f.engine.Place(ctx, alice, domain.ChoiceHeads, 0)
	assert.ErrorIs(t, err, domain.ErrBetOutOfRange)

	_, err = f.engine.Place(ctx, alice, domain.ChoiceHeads, -5)
	assert.ErrorIs(t, err, domain.ErrBetOutOfRange)
}

func TestResolveNotReady(t *testing.T) {
	f := newFixture(t, 100_000, 100)
	f.treasury.Credit(alice, 1_000)
	ctx := context.Background()

	_, err := f.engine.Place(ctx, alice, domain.ChoiceHeads, 100)
	require.NoError(t, err)

	_, err = f.engine.Resolve(ctx, alice)
	assert.ErrorIs(t, err, domain.ErrRandomnessNotReady)

	// The wager survives a not-ready attempt and resolves later.
	w, err := f.engine.ActiveWager(ctx, alice)
	require.NoError(t, err)
	require.NoError(t, f.random.Fulfill(w.RequestID, [32]byte{42}))

	_, err = f.engine.Resolve(ctx, alice)
	assert.NoError(t, err)
}

func TestResolveWin(t *testing.T) {
	f := newFixture(t, 100_000, 100)
	f.treasury.Credit(alice, 1_000)
	ctx := context.Background()

	value := [32]byte{1, 2, 3}
	winning := Outcome(value, alice, testGameID)

	_, err := f.engine.Place(ctx, alice, winning, 100)
	require.NoError(t, err)

	w, err := f.engine.ActiveWager(ctx, alice)
	require.NoError(t, err)
	require.NoError(t, f.random.Fulfill(w.RequestID, value))

	won, err := f.engine.Resolve(ctx, alice)
	require.NoError(t, err)
	assert.True(t, won)

	balance, err := f.treasury.BalanceOf(ctx, alice)
	require.NoError(t, err)
	assert.Equal(t, int64(900+196), balance)

	stats := f.engine.Stats()
	assert.Equal(t, int64(100), stats.TotalStaked)
	assert.Equal(t, int64(196), stats.TotalPaid)

	_, err = f.engine.ActiveWager(ctx, alice)
	assert.ErrorIs(t, err, domain.ErrNoActiveWager)

	require.Len(t, f.history.rows, 1)
	assert.True(t, f.history.rows[0].Won)
	assert.True(t, f.history.rows[0].Paid)
	assert.Equal(t, int64(196), f.history.rows[0].Payout)

	require.Len(t, f.emitter.named(domain.EventVerifiedGameNumber), 1)
	finished := f.emitter.named(domain.EventBetFinished)
	require.Len(t, finished, 1)
	require.NotNil(t, finished[0].Won)
	assert.True(t, *finished[0].Won)
	require.NotNil(t, finished[0].Paid)
	assert.True(t, *finished[0].Paid)
	assert.Equal(t, int64(196), finished[0].Payout)
}

func TestResolveLoss(t *testing.T) {
	f := newFixture(t, 100_000, 100)
	f.treasury.Credit(alice, 1_000)
	ctx := context.Background()

	value := [32]byte{9, 9, 9}
	winning := Outcome(value, alice, testGameID)
	losing := domain.ChoiceHeads
	if winning == domain.ChoiceHeads {
		losing = domain.ChoiceTails
	}

	_, err := f.engine.Place(ctx, alice, losing, 100)
	require.NoError(t, err)

	w, err := f.engine.ActiveWager(ctx, alice)
	require.NoError(t, err)
	require.NoError(t, f.random.Fulfill(w.RequestID, value))

	won, err := f.engine.Resolve(ctx, alice)
	require.NoError(t, err)
	assert.False(t, won)

	// The stake stays in the reserve.
	balance, err := f.treasury.BalanceOf(ctx, alice)
	require.NoError(t, err)
	assert.Equal(t, int64(900), balance)
	assert.Equal(t, int64(0), f.engine.Stats().TotalPaid)

	require.Len(t, f.history.rows, 1)
	assert.False(t, f.history.rows[0].Won)
	assert.False(t, f.history.rows[0].Paid)
}

func TestResolveWithoutBet(t *testing.T) {
	f := newFixture(t, 100_000, 100)

	_, err := f.engine.Resolve(context.Background(), bob)
	assert.ErrorIs(t, err, domain.ErrNoActiveWager)
}

// failingPayoutTreasury accepts stakes but rejects every payout.
type failingPayoutTreasury struct {
	*treasury.Memory
}

func (f *failingPayoutTreasury) TransferOut(context.Context, common.Address, int64) error {
	return errors.New("treasury unavailable")
}

func TestResolvePayoutFailure(t *testing.T) {
	mem := treasury.NewMemory(100_000)
	mem.Credit(alice, 1_000)
	random := randomness.NewMemory()
	emitter := &captureEmitter{}
	history := &memHistory{}
	eng := New(
		Config{GameID: testGameID},
		ledger.New(),
		&failingPayoutTreasury{Memory: mem},
		random,
		policy.Static{Min: 100},
		emitter,
		history,
		nil,
	)
	ctx := context.Background()

	value := [32]byte{7}
	winning := Outcome(value, alice, testGameID)

	_, err := eng.Place(ctx, alice, winning, 100)
	require.NoError(t, err)

	w, err := eng.ActiveWager(ctx, alice)
	require.NoError(t, err)
	require.NoError(t, random.Fulfill(w.RequestID, value))

	_, err = eng.Resolve(ctx, alice)
	require.ErrorIs(t, err, domain.ErrPayoutFailed)

	// The wager was cleared before the payout attempt, and the unpaid win
	// is recorded for reconciliation.
	_, err = eng.ActiveWager(ctx, alice)
	assert.ErrorIs(t, err, domain.ErrNoActiveWager)
	assert.Equal(t, int64(0), eng.Stats().TotalPaid)

	require.Len(t, history.rows, 1)
	assert.True(t, history.rows[0].Won)
	assert.False(t, history.rows[0].Paid)

	// The settlement is still announced so downstream consumers see the
	// wager leave the active set.
	finished := emitter.named(domain.EventBetFinished)
	require.Len(t, finished, 1)
	require.NotNil(t, finished[0].Won)
	assert.True(t, *finished[0].Won)
	require.NotNil(t, finished[0].Paid)
	assert.False(t, *finished[0].Paid)
	assert.Equal(t, int64(0), finished[0].Payout)
}

// observingTreasury checks the ledger state at the moment the payout
// transfer runs.
type observingTreasury struct {
	*treasury.Memory
	ledger   domain.BetLedger
	observed error
}

func (o *observingTreasury) TransferOut(ctx context.Context, to common.Address, amount int64) error {
	_, o.observed = o.ledger.Get(ctx, to)
	return o.Memory.TransferOut(ctx, to, amount)
}

func TestWagerClearedBeforePayout(t *testing.T) {
	mem := treasury.NewMemory(100_000)
	mem.Credit(alice, 1_000)
	led := ledger.New()
	obs := &observingTreasury{Memory: mem, ledger: led}
	random := randomness.NewMemory()
	eng := New(
		Config{GameID: testGameID},
		led,
		obs,
		random,
		policy.Static{Min: 100},
		nil,
		nil,
		nil,
	)
	ctx := context.Background()

	value := [32]byte{5}
	winning := Outcome(value, alice, testGameID)

	_, err := eng.Place(ctx, alice, winning, 100)
	require.NoError(t, err)

	w, err := eng.ActiveWager(ctx, alice)
	require.NoError(t, err)
	require.NoError(t, random.Fulfill(w.RequestID, value))

	won, err := eng.Resolve(ctx, alice)
	require.NoError(t, err)
	require.True(t, won)

	// During the payout transfer the slot was already cleared, so any
	// nested attempt to act on the wager would find nothing to settle.
	assert.ErrorIs(t, obs.observed, domain.ErrNoActiveWager)
}

func TestParticipantsIndependent(t *testing.T) {
	f := newFixture(t, 100_000, 100)
	f.treasury.Credit(alice, 1_000)
	f.treasury.Credit(bob, 1_000)
	ctx := context.Background()

	_, err := f.engine.Place(ctx, alice, domain.ChoiceHeads, 100)
	require.NoError(t, err)

	// Alice's active wager does not block Bob.
	_, err = f.engine.Place(ctx, bob, domain.ChoiceTails, 200)
	require.NoError(t, err)

	assert.Equal(t, int64(300), f.engine.Stats().TotalStaked)
}

func TestSetStakePolicy(t *testing.T) {
	f := newFixture(t, 1_000_000, 500)
	f.treasury.Credit(alice, 1_000)
	ctx := context.Background()

	_, err := f.engine.Place(ctx, alice, domain.ChoiceHeads, 200)
	require.ErrorIs(t, err, domain.ErrBetOutOfRange)

	require.NoError(t, f.engine.SetStakePolicy(ctx, policy.Static{Min: 100}, "static"))

	_, err = f.engine.Place(ctx, alice, domain.ChoiceHeads, 200)
	require.NoError(t, err)

	changed := f.emitter.named(domain.EventProviderChanged)
	require.Len(t, changed, 1)
	assert.Equal(t, "static", changed[0].Provider)
}

// brokenPolicy cannot report a minimum.
type brokenPolicy struct{}

func (brokenPolicy) Minimum(context.Context) (int64, error) {
	return 0, errors.New("unreachable")
}

func TestSetStakePolicyRejectsBrokenProvider(t *testing.T) {
	f := newFixture(t, 100_000, 100)
	f.treasury.Credit(alice, 1_000)
	ctx := context.Background()

	err := f.engine.SetStakePolicy(ctx, brokenPolicy{}, "broken")
	assert.ErrorIs(t, err, domain.ErrNotACollaborator)

	err = f.engine.SetStakePolicy(ctx, nil, "nil")
	assert.ErrorIs(t, err, domain.ErrNotACollaborator)

	// The previous provider stays in effect.
	_, err = f.engine.Place(ctx, alice, domain.ChoiceHeads, 100)
	assert.NoError(t, err)
}

func TestParticipantLockTableReleased(t *testing.T) {
	f := newFixture(t, 100_000, 100)
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 64; i++ {
		participant := common.BigToAddress(big.NewInt(int64(i + 1)))
		f.treasury.Credit(participant, 1_000)
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := f.engine.Place(ctx, participant, domain.ChoiceHeads, 100)
			require.NoError(t, err)
			_, err = f.engine.Resolve(ctx, participant)
			assert.ErrorIs(t, err, domain.ErrRandomnessNotReady)
		}()
	}
	wg.Wait()

	// Every lock entry is dropped once its last holder releases it.
	f.engine.participantsMu.Lock()
	remaining := len(f.engine.participants)
	f.engine.participantsMu.Unlock()
	assert.Zero(t, remaining)
}

func TestStatsSnapshot(t *testing.T) {
	f := newFixture(t, 100_000, 100)
	stats := f.engine.Stats()
	assert.Equal(t, testGameID, stats.GameID)
	assert.Equal(t, int64(196), stats.PayoutNumerator)
	assert.Equal(t, int64(100), stats.PayoutDenominator)
}
