package randomness

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	cacheredis "github.com/alanyoungcy/coinflip/internal/cache/redis"
	"github.com/alanyoungcy/coinflip/internal/crypto"
	"github.com/alanyoungcy/coinflip/internal/domain"
)

const fulfillBatchSize = 64

// Fulfiller drains pending randomness requests: it draws a seed from the
// system CSPRNG, signs the attestation with the operator key, and marks the
// row verified. It is the asynchronous half of the two-phase oracle.
type Fulfiller struct {
	rdb      *redis.Client
	attestor *crypto.Attestor
	interval time.Duration
	logger   *slog.Logger
}

// NewFulfiller creates a Fulfiller polling at the given interval.
func NewFulfiller(c *cacheredis.Client, attestor *crypto.Attestor, interval time.Duration, logger *slog.Logger) *Fulfiller {
	if logger == nil {
		logger = slog.Default()
	}
	return &Fulfiller{
		rdb:      c.Underlying(),
		attestor: attestor,
		interval: interval,
		logger:   logger.With(slog.String("component", "fulfiller")),
	}
}

// Run polls the pending set until the context is cancelled.
func (f *Fulfiller) Run(ctx context.Context) error {
	ticker := time.NewTicker(f.interval)
	defer ticker.Stop()

	f.logger.Info("randomness fulfiller started",
		slog.String("operator", f.attestor.Address().Hex()),
		slog.Duration("interval", f.interval),
	)

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if err := f.drain(ctx); err != nil && ctx.Err() == nil {
				f.logger.Error("drain pending requests", slog.String("error", err.Error()))
			}
		}
	}
}

// drain fulfills up to one batch of pending requests.
func (f *Fulfiller) drain(ctx context.Context) error {
	ids, err := f.rdb.SPopN(ctx, pendingSetKey, fulfillBatchSize).Result()
	if err != nil {
		return fmt.Errorf("randomness: pop pending: %w", err)
	}

	for _, raw := range ids {
		id := domain.RequestID(raw)
		if err := f.fulfill(ctx, id); err != nil {
			f.logger.Error("fulfill request",
				slog.String("request_id", raw),
				slog.String("error", err.Error()),
			)
		}
	}
	return nil
}

func (f *Fulfiller) fulfill(ctx context.Context, id domain.RequestID) error {
	key := requestKey(id)

	// The row may have expired between request and fulfillment; skip rather
	// than resurrect it.
	exists, err := f.rdb.Exists(ctx, key).Result()
	if err != nil {
		return fmt.Errorf("randomness: check request: %w", err)
	}
	if exists == 0 {
		return nil
	}

	var seed [32]byte
	if _, err := rand.Read(seed[:]); err != nil {
		return fmt.Errorf("randomness: draw seed: %w", err)
	}

	attestation, err := f.attestor.Attest(string(id), seed)
	if err != nil {
		return err
	}

	if err := f.rdb.HSet(ctx, key,
		"status", statusVerified,
		"seed", hex.EncodeToString(seed[:]),
		"attestation", hex.EncodeToString(attestation),
		"verified_at", time.Now().UTC().Format(time.RFC3339Nano),
	).Err(); err != nil {
		return fmt.Errorf("randomness: store verified value: %w", err)
	}

	f.logger.Debug("request fulfilled", slog.String("request_id", string(id)))
	return nil
}
