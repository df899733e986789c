// Package policy provides minimum-stake providers. Static serves a fixed
// configured floor; the dynamic Redis-backed provider lives in cache/redis
// and reads the current value on every call.
package policy

import (
	"context"

	"github.com/alanyoungcy/coinflip/internal/domain"
)

// Static reports a fixed minimum stake.
type Static struct {
	Min int64
}

// Minimum returns the configured floor.
func (s Static) Minimum(_ context.Context) (int64, error) {
	return s.Min, nil
}

// Compile-time interface check.
var _ domain.StakePolicy = Static{}
