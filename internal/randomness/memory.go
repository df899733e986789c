// Package randomness implements the two-phase randomness oracle: requests
// are issued immediately and verified random values become available later.
// The Redis-backed beacon is the production implementation; Memory serves
// tests and local mode with manual or automatic fulfillment.
package randomness

import (
	"context"
	"crypto/rand"
	"fmt"
	"sync"

	"github.com/google/uuid"

	"github.com/alanyoungcy/coinflip/internal/domain"
)

// Memory is an in-process randomness source. Requests stay pending until
// Fulfill is called, which keeps the not-ready path testable.
type Memory struct {
	mu      sync.Mutex
	pending map[domain.RequestID]struct{}
	values  map[domain.RequestID][32]byte

	// AutoFulfill draws a random value at request time, for local mode where
	// nobody drives fulfillment by hand.
	AutoFulfill bool
}

// NewMemory creates an empty Memory source.
func NewMemory() *Memory {
	return &Memory{
		pending: make(map[domain.RequestID]struct{}),
		values:  make(map[domain.RequestID][32]byte),
	}
}

// Request issues a fresh request id, unique per call.
func (m *Memory) Request(_ context.Context) (domain.RequestID, error) {
	id := domain.RequestID(uuid.NewString())

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.AutoFulfill {
		var v [32]byte
		if _, err := rand.Read(v[:]); err != nil {
			return "", fmt.Errorf("randomness: draw value: %w", err)
		}
		m.values[id] = v
		return id, nil
	}
	m.pending[id] = struct{}{}
	return id, nil
}

// Fulfill marks a pending request verified with the given value.
func (m *Memory) Fulfill(id domain.RequestID, value [32]byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.pending[id]; !ok {
		return domain.ErrRandomnessUnknown
	}
	delete(m.pending, id)
	m.values[id] = value
	return nil
}

// Verified returns the verified value, ErrRandomnessNotReady while pending,
// or ErrRandomnessUnknown for an id that was never issued.
func (m *Memory) Verified(_ context.Context, id domain.RequestID) ([32]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if v, ok := m.values[id]; ok {
		return v, nil
	}
	if _, ok := m.pending[id]; ok {
		return [32]byte{}, domain.ErrRandomnessNotReady
	}
	return [32]byte{}, domain.ErrRandomnessUnknown
}

// Compile-time interface check.
var _ domain.RandomnessSource = (*Memory)(nil)
