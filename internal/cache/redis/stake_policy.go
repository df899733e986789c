package redis

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/redis/go-redis/v9"

	"github.com/alanyoungcy/coinflip/internal/domain"
)

// minimumStakeKey holds the current minimum stake in the token's smallest
// denomination.
const minimumStakeKey = "policy:minimum_stake"

// StakePolicy is the dynamic minimum-stake provider. Minimum reads the
// current value on every call; operators change the floor by writing the
// key, with no engine restart.
type StakePolicy struct {
	rdb *redis.Client

	// Fallback is served when the key is unset, so a fresh deployment does
	// not reject every bet.
	Fallback int64
}

// NewStakePolicy creates a StakePolicy backed by the given Client.
func NewStakePolicy(c *Client, fallback int64) *StakePolicy {
	return &StakePolicy{rdb: c.Underlying(), Fallback: fallback}
}

// Minimum returns the current minimum stake.
func (p *StakePolicy) Minimum(ctx context.Context) (int64, error) {
	val, err := p.rdb.Get(ctx, minimumStakeKey).Result()
	if errors.Is(err, redis.Nil) {
		return p.Fallback, nil
	}
	if err != nil {
		return 0, fmt.Errorf("redis: read minimum stake: %w", err)
	}

	n, err := strconv.ParseInt(val, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("redis: minimum stake %q is not an integer: %w", val, err)
	}
	return n, nil
}

// SetMinimum writes a new minimum stake for all instances to pick up on
// their next read.
func (p *StakePolicy) SetMinimum(ctx context.Context, minimum int64) error {
	if minimum < 0 {
		return fmt.Errorf("redis: negative minimum stake %d", minimum)
	}
	if err := p.rdb.Set(ctx, minimumStakeKey, strconv.FormatInt(minimum, 10), 0).Err(); err != nil {
		return fmt.Errorf("redis: write minimum stake: %w", err)
	}
	return nil
}

// Compile-time interface check.
var _ domain.StakePolicy = (*StakePolicy)(nil)
