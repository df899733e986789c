package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/alanyoungcy/coinflip/internal/domain"
)

// SettlementStore implements domain.SettlementStore on the append-only
// settlements table.
type SettlementStore struct {
	pool *pgxpool.Pool
}

// NewSettlementStore creates a SettlementStore backed by the given pool.
func NewSettlementStore(pool *pgxpool.Pool) *SettlementStore {
	return &SettlementStore{pool: pool}
}

// Insert appends one settlement row.
func (s *SettlementStore) Insert(ctx context.Context, st domain.Settlement) error {
	const query = `
		INSERT INTO settlements
			(participant, choice, outcome, stake, payout, won, paid, request_id, random_value, settled_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`

	_, err := s.pool.Exec(ctx, query,
		st.Participant, int16(st.Choice), int16(st.Outcome), st.Stake, st.Payout,
		st.Won, st.Paid, string(st.RequestID), st.RandomValue, st.SettledAt,
	)
	if err != nil {
		return fmt.Errorf("postgres: insert settlement: %w", err)
	}
	return nil
}

// ListRecent returns settlements newest first with pagination.
func (s *SettlementStore) ListRecent(ctx context.Context, opts domain.ListOpts) ([]domain.Settlement, error) {
	limit := opts.Limit
	if limit <= 0 {
		limit = 50
	}

	const query = `
		SELECT id, participant, choice, outcome, stake, payout, won, paid, request_id, random_value, settled_at
		FROM settlements ORDER BY settled_at DESC LIMIT $1 OFFSET $2`

	rows, err := s.pool.Query(ctx, query, limit, opts.Offset)
	if err != nil {
		return nil, fmt.Errorf("postgres: list settlements: %w", err)
	}
	defer rows.Close()

	return scanSettlements(rows)
}

// ListSince returns settlements at or after the given time, oldest first.
// The archiver uses this for incremental exports.
func (s *SettlementStore) ListSince(ctx context.Context, since time.Time) ([]domain.Settlement, error) {
	const query = `
		SELECT id, participant, choice, outcome, stake, payout, won, paid, request_id, random_value, settled_at
		FROM settlements WHERE settled_at >= $1 ORDER BY settled_at ASC`

	rows, err := s.pool.Query(ctx, query, since)
	if err != nil {
		return nil, fmt.Errorf("postgres: list settlements since: %w", err)
	}
	defer rows.Close()

	return scanSettlements(rows)
}

func scanSettlements(rows pgx.Rows) ([]domain.Settlement, error) {
	var out []domain.Settlement
	for rows.Next() {
		var st domain.Settlement
		var choice, outcome int16
		var requestID string

		if err := rows.Scan(
			&st.ID, &st.Participant, &choice, &outcome, &st.Stake, &st.Payout,
			&st.Won, &st.Paid, &requestID, &st.RandomValue, &st.SettledAt,
		); err != nil {
			return nil, fmt.Errorf("postgres: scan settlement: %w", err)
		}

		st.Choice = domain.Choice(choice)
		st.Outcome = domain.Choice(outcome)
		st.RequestID = domain.RequestID(requestID)
		out = append(out, st)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: settlement rows: %w", err)
	}
	return out, nil
}

// Compile-time interface check.
var _ domain.SettlementStore = (*SettlementStore)(nil)
