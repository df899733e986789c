package treasury

import (
	"context"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var account = common.HexToAddress("0x00000000000000000000000000000000000000aa")

func TestTransferInMovesStakeToReserve(t *testing.T) {
	m := NewMemory(1_000)
	m.Credit(account, 500)
	ctx := context.Background()

	require.NoError(t, m.TransferIn(ctx, account, 200))

	reserve, err := m.Balance(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1_200), reserve)

	balance, err := m.BalanceOf(ctx, account)
	require.NoError(t, err)
	assert.Equal(t, int64(300), balance)
}

func TestTransferInFailsClosed(t *testing.T) {
	m := NewMemory(1_000)
	m.Credit(account, 100)
	ctx := context.Background()

	assert.Error(t, m.TransferIn(ctx, account, 200))

	// Nothing moved.
	reserve, err := m.Balance(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1_000), reserve)
	balance, err := m.BalanceOf(ctx, account)
	require.NoError(t, err)
	assert.Equal(t, int64(100), balance)
}

func TestTransferOutMovesPayoutToAccount(t *testing.T) {
	m := NewMemory(1_000)
	ctx := context.Background()

	require.NoError(t, m.TransferOut(ctx, account, 196))

	reserve, err := m.Balance(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(804), reserve)

	balance, err := m.BalanceOf(ctx, account)
	require.NoError(t, err)
	assert.Equal(t, int64(196), balance)
}

func TestTransferOutFailsClosed(t *testing.T) {
	m := NewMemory(100)
	ctx := context.Background()

	assert.Error(t, m.TransferOut(ctx, account, 200))

	reserve, err := m.Balance(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(100), reserve)
}

func TestBalanceOfUnknownAccount(t *testing.T) {
	m := NewMemory(0)

	balance, err := m.BalanceOf(context.Background(), account)
	require.NoError(t, err)
	assert.Equal(t, int64(0), balance)
}
