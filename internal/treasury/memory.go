// Package treasury provides the in-memory reserve used by tests and local
// mode. The durable implementation lives in store/postgres and shares the
// same fail-closed transfer semantics.
package treasury

import (
	"context"
	"fmt"
	"sync"

	"github.com/ethereum/go-ethereum/common"

	"github.com/alanyoungcy/coinflip/internal/domain"
)

// Memory is a mutex-guarded account map plus the reserve's own balance.
// Transfers either move the full amount or move nothing.
type Memory struct {
	mu       sync.Mutex
	reserve  int64
	accounts map[common.Address]int64
}

// NewMemory creates a Memory treasury seeded with the given reserve balance.
func NewMemory(reserve int64) *Memory {
	return &Memory{
		reserve:  reserve,
		accounts: make(map[common.Address]int64),
	}
}

// Credit adds funds to a participant account. Test and local-mode helper.
func (m *Memory) Credit(participant common.Address, amount int64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.accounts[participant] += amount
}

// Balance returns the reserve's balance.
func (m *Memory) Balance(_ context.Context) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.reserve, nil
}

// BalanceOf returns a participant's balance.
func (m *Memory) BalanceOf(_ context.Context, participant common.Address) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.accounts[participant], nil
}

// TransferIn moves a stake from the participant into the reserve.
func (m *Memory) TransferIn(_ context.Context, from common.Address, amount int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if amount <= 0 {
		return fmt.Errorf("treasury: non-positive transfer amount %d", amount)
	}
	if m.accounts[from] < amount {
		return fmt.Errorf("treasury: account %s holds %d, need %d", from.Hex(), m.accounts[from], amount)
	}
	m.accounts[from] -= amount
	m.reserve += amount
	return nil
}

// TransferOut disburses winnings from the reserve. It fails closed when the
// reserve cannot cover the full amount.
func (m *Memory) TransferOut(_ context.Context, to common.Address, amount int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if amount <= 0 {
		return fmt.Errorf("treasury: non-positive transfer amount %d", amount)
	}
	if m.reserve < amount {
		return fmt.Errorf("treasury: reserve holds %d, need %d", m.reserve, amount)
	}
	m.reserve -= amount
	m.accounts[to] += amount
	return nil
}

// Compile-time interface check.
var _ domain.Treasury = (*Memory)(nil)
