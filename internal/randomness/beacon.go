package randomness

import (
	"context"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	cacheredis "github.com/alanyoungcy/coinflip/internal/cache/redis"
	"github.com/alanyoungcy/coinflip/internal/crypto"
	"github.com/alanyoungcy/coinflip/internal/domain"
)

const (
	// requestTTL bounds how long an unresolved request row lives. Resolution
	// after expiry surfaces as ErrRandomnessUnknown, the same class as a
	// request that never existed.
	requestTTL = 7 * 24 * time.Hour

	statusPending  = "pending"
	statusVerified = "verified"

	pendingSetKey = "rnd:pending"
)

func requestKey(id domain.RequestID) string {
	return "rnd:req:" + string(id)
}

// Beacon is the Redis-backed randomness source. Request writes a pending
// row; the Fulfiller draws and attests a seed asynchronously; Verified
// releases the value only after re-checking the operator attestation.
type Beacon struct {
	rdb      *redis.Client
	operator common.Address
}

// NewBeacon creates a Beacon that trusts attestations from the given
// operator address.
func NewBeacon(c *cacheredis.Client, operator common.Address) *Beacon {
	return &Beacon{rdb: c.Underlying(), operator: operator}
}

// Request issues a fresh request id and stores a pending row for the
// fulfiller to pick up.
func (b *Beacon) Request(ctx context.Context) (domain.RequestID, error) {
	id := domain.RequestID(uuid.NewString())
	key := requestKey(id)

	pipe := b.rdb.TxPipeline()
	pipe.HSet(ctx, key,
		"status", statusPending,
		"requested_at", time.Now().UTC().Format(time.RFC3339Nano),
	)
	pipe.Expire(ctx, key, requestTTL)
	pipe.SAdd(ctx, pendingSetKey, string(id))
	if _, err := pipe.Exec(ctx); err != nil {
		return "", fmt.Errorf("randomness: store request: %w", err)
	}
	return id, nil
}

// Verified returns the attested random value for a request. Pending rows
// return ErrRandomnessNotReady; missing or expired rows return
// ErrRandomnessUnknown. A row whose attestation does not verify is rejected
// outright.
func (b *Beacon) Verified(ctx context.Context, id domain.RequestID) ([32]byte, error) {
	fields, err := b.rdb.HGetAll(ctx, requestKey(id)).Result()
	if err != nil {
		return [32]byte{}, fmt.Errorf("randomness: read request %s: %w", id, err)
	}
	if len(fields) == 0 {
		return [32]byte{}, domain.ErrRandomnessUnknown
	}
	if fields["status"] != statusVerified {
		return [32]byte{}, domain.ErrRandomnessNotReady
	}

	seedBytes, err := hex.DecodeString(fields["seed"])
	if err != nil || len(seedBytes) != 32 {
		return [32]byte{}, fmt.Errorf("randomness: request %s has malformed seed", id)
	}
	attestation, err := hex.DecodeString(fields["attestation"])
	if err != nil {
		return [32]byte{}, fmt.Errorf("randomness: request %s has malformed attestation", id)
	}

	var seed [32]byte
	copy(seed[:], seedBytes)

	if err := crypto.VerifyAttestation(b.operator, string(id), seed, attestation); err != nil {
		return [32]byte{}, fmt.Errorf("randomness: request %s: %w", id, err)
	}
	return seed, nil
}

// Compile-time interface check.
var _ domain.RandomnessSource = (*Beacon)(nil)
