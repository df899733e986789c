package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/alanyoungcy/coinflip/internal/domain"
)

// Ledger implements domain.BetLedger on the wagers table. The participant
// primary key makes the open check-and-set a single atomic insert, so the
// at-most-one-active-wager invariant holds across service instances.
type Ledger struct {
	pool *pgxpool.Pool
}

// NewLedger creates a Ledger backed by the given connection pool.
func NewLedger(pool *pgxpool.Pool) *Ledger {
	return &Ledger{pool: pool}
}

// HasActive reports whether the participant has an active wager row.
func (l *Ledger) HasActive(ctx context.Context, participant common.Address) (bool, error) {
	var exists bool
	err := l.pool.QueryRow(ctx,
		"SELECT EXISTS(SELECT 1 FROM wagers WHERE participant = $1)",
		participant.Hex(),
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("postgres: check active wager: %w", err)
	}
	return exists, nil
}

// Open installs a new active wager. A conflicting row means the participant
// already has one.
func (l *Ledger) Open(ctx context.Context, w domain.Wager) error {
	const query = `
		INSERT INTO wagers (participant, choice, stake, potential_payout, request_id, placed_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (participant) DO NOTHING`

	tag, err := l.pool.Exec(ctx, query,
		w.Participant.Hex(), int16(w.Choice), w.Stake, w.PotentialPayout,
		string(w.RequestID), w.PlacedAt,
	)
	if err != nil {
		return fmt.Errorf("postgres: open wager: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrAlreadyActive
	}
	return nil
}

// Get returns the active wager or ErrNoActiveWager.
func (l *Ledger) Get(ctx context.Context, participant common.Address) (domain.Wager, error) {
	const query = `
		SELECT choice, stake, potential_payout, request_id, placed_at
		FROM wagers WHERE participant = $1`

	w := domain.Wager{Participant: participant}
	var choice int16
	var requestID string

	err := l.pool.QueryRow(ctx, query, participant.Hex()).
		Scan(&choice, &w.Stake, &w.PotentialPayout, &requestID, &w.PlacedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Wager{}, domain.ErrNoActiveWager
	}
	if err != nil {
		return domain.Wager{}, fmt.Errorf("postgres: get wager: %w", err)
	}

	w.Choice = domain.Choice(choice)
	w.RequestID = domain.RequestID(requestID)
	return w, nil
}

// Close deletes the participant's wager row. Deleting an absent row is a
// caller sequencing bug.
func (l *Ledger) Close(ctx context.Context, participant common.Address) error {
	tag, err := l.pool.Exec(ctx,
		"DELETE FROM wagers WHERE participant = $1", participant.Hex())
	if err != nil {
		return fmt.Errorf("postgres: close wager: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrLedgerDoubleClose
	}
	return nil
}

// Compile-time interface check.
var _ domain.BetLedger = (*Ledger)(nil)
