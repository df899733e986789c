package ledger

import (
	"context"
	"sync"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alanyoungcy/coinflip/internal/domain"
)

var participant = common.HexToAddress("0x00000000000000000000000000000000000000aa")

func wagerFor(p common.Address) domain.Wager {
	return domain.Wager{
		Participant:     p,
		Choice:          domain.ChoiceHeads,
		Stake:           100,
		PotentialPayout: 196,
		RequestID:       "req-1",
	}
}

func TestOpenAndGet(t *testing.T) {
	l := New()
	ctx := context.Background()

	active, err := l.HasActive(ctx, participant)
	require.NoError(t, err)
	assert.False(t, active)

	require.NoError(t, l.Open(ctx, wagerFor(participant)))

	active, err = l.HasActive(ctx, participant)
	require.NoError(t, err)
	assert.True(t, active)

	w, err := l.Get(ctx, participant)
	require.NoError(t, err)
	assert.Equal(t, domain.RequestID("req-1"), w.RequestID)
}

func TestOpenTwiceRejected(t *testing.T) {
	l := New()
	ctx := context.Background()

	require.NoError(t, l.Open(ctx, wagerFor(participant)))
	assert.ErrorIs(t, l.Open(ctx, wagerFor(participant)), domain.ErrAlreadyActive)
}

func TestGetWithoutWager(t *testing.T) {
	l := New()

	_, err := l.Get(context.Background(), participant)
	assert.ErrorIs(t, err, domain.ErrNoActiveWager)
}

func TestCloseClearsWager(t *testing.T) {
	l := New()
	ctx := context.Background()

	require.NoError(t, l.Open(ctx, wagerFor(participant)))
	require.NoError(t, l.Close(ctx, participant))

	_, err := l.Get(ctx, participant)
	assert.ErrorIs(t, err, domain.ErrNoActiveWager)

	// A second close reports the double-clear.
	assert.ErrorIs(t, l.Close(ctx, participant), domain.ErrLedgerDoubleClose)
}

func TestConcurrentOpenAdmitsOne(t *testing.T) {
	l := New()
	ctx := context.Background()

	const attempts = 32
	var wg sync.WaitGroup
	errs := make([]error, attempts)
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			errs[i] = l.Open(ctx, wagerFor(participant))
		}(i)
	}
	wg.Wait()

	admitted := 0
	for _, err := range errs {
		if err == nil {
			admitted++
		} else {
			assert.ErrorIs(t, err, domain.ErrAlreadyActive)
		}
	}
	assert.Equal(t, 1, admitted)
}
