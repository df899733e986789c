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

// Treasury implements domain.Treasury on the accounts table. The reserve is
// the row addressed by the house address; every transfer is one transaction
// with a conditional balance update, so it either moves the full amount or
// moves nothing.
type Treasury struct {
	pool  *pgxpool.Pool
	house common.Address
}

// NewTreasury creates a Treasury whose reserve lives at the house address.
func NewTreasury(pool *pgxpool.Pool, house common.Address) *Treasury {
	return &Treasury{pool: pool, house: house}
}

// EnsureHouseAccount creates the reserve row if it does not exist yet.
// Called once at startup.
func (t *Treasury) EnsureHouseAccount(ctx context.Context) error {
	_, err := t.pool.Exec(ctx,
		"INSERT INTO accounts (address) VALUES ($1) ON CONFLICT (address) DO NOTHING",
		t.house.Hex(),
	)
	if err != nil {
		return fmt.Errorf("postgres: ensure house account: %w", err)
	}
	return nil
}

// Balance returns the reserve's balance.
func (t *Treasury) Balance(ctx context.Context) (int64, error) {
	return t.balanceOf(ctx, t.house)
}

// BalanceOf returns a participant's balance. Unknown accounts read as zero.
func (t *Treasury) BalanceOf(ctx context.Context, participant common.Address) (int64, error) {
	return t.balanceOf(ctx, participant)
}

func (t *Treasury) balanceOf(ctx context.Context, addr common.Address) (int64, error) {
	var balance int64
	err := t.pool.QueryRow(ctx,
		"SELECT balance FROM accounts WHERE address = $1", addr.Hex(),
	).Scan(&balance)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("postgres: balance of %s: %w", addr.Hex(), err)
	}
	return balance, nil
}

// TransferIn moves a stake from the participant into the reserve.
func (t *Treasury) TransferIn(ctx context.Context, from common.Address, amount int64) error {
	return t.transfer(ctx, from, t.house, amount)
}

// TransferOut disburses winnings from the reserve to the participant.
func (t *Treasury) TransferOut(ctx context.Context, to common.Address, amount int64) error {
	return t.transfer(ctx, t.house, to, amount)
}

// transfer debits src and credits dst in one transaction. The conditional
// debit is the fail-closed check: zero rows affected means insufficient
// funds and the transaction rolls back untouched.
func (t *Treasury) transfer(ctx context.Context, src, dst common.Address, amount int64) error {
	if amount <= 0 {
		return fmt.Errorf("postgres: non-positive transfer amount %d", amount)
	}

	tx, err := t.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("postgres: begin transfer: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	tag, err := tx.Exec(ctx,
		`UPDATE accounts SET balance = balance - $2, updated_at = NOW()
		 WHERE address = $1 AND balance >= $2`,
		src.Hex(), amount,
	)
	if err != nil {
		return fmt.Errorf("postgres: debit %s: %w", src.Hex(), err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("postgres: account %s cannot cover %d", src.Hex(), amount)
	}

	if _, err := tx.Exec(ctx,
		`INSERT INTO accounts (address, balance) VALUES ($1, $2)
		 ON CONFLICT (address) DO UPDATE
		 SET balance = accounts.balance + EXCLUDED.balance, updated_at = NOW()`,
		dst.Hex(), amount,
	); err != nil {
		return fmt.Errorf("postgres: credit %s: %w", dst.Hex(), err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("postgres: commit transfer: %w", err)
	}
	return nil
}

// Credit adds funds to an account outside the bet flow (deposits, reserve
// top-ups). Operational helper, not part of the engine's interface.
func (t *Treasury) Credit(ctx context.Context, addr common.Address, amount int64) error {
	if amount <= 0 {
		return fmt.Errorf("postgres: non-positive credit amount %d", amount)
	}
	_, err := t.pool.Exec(ctx,
		`INSERT INTO accounts (address, balance) VALUES ($1, $2)
		 ON CONFLICT (address) DO UPDATE
		 SET balance = accounts.balance + EXCLUDED.balance, updated_at = NOW()`,
		addr.Hex(), amount,
	)
	if err != nil {
		return fmt.Errorf("postgres: credit %s: %w", addr.Hex(), err)
	}
	return nil
}

// Compile-time interface check.
var _ domain.Treasury = (*Treasury)(nil)
