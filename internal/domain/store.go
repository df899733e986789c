package domain

import (
	"context"
	"time"
)

// ListOpts provides pagination and time filtering for list queries.
type ListOpts struct {
	Limit  int
	Offset int
	Since  *time.Time
	Until  *time.Time
}

// Settlement is one finished bet. Paid is false only for the
// payout-failed-after-clear case, which the operational recovery flow
// reconciles out of band.
type Settlement struct {
	ID          int64
	Participant string
	Choice      Choice
	Outcome     Choice
	Stake       int64
	Payout      int64
	Won         bool
	Paid        bool
	RequestID   RequestID
	RandomValue string
	SettledAt   time.Time
}

// SettlementStore persists the append-only settlement history.
type SettlementStore interface {
	Insert(ctx context.Context, s Settlement) error
	ListRecent(ctx context.Context, opts ListOpts) ([]Settlement, error)
	ListSince(ctx context.Context, since time.Time) ([]Settlement, error)
}

// AuditEntry is a single audit log row.
type AuditEntry struct {
	ID        int64
	Event     string
	Detail    map[string]any
	CreatedAt time.Time
}

// AuditStore persists an append-only audit log.
type AuditStore interface {
	Log(ctx context.Context, event string, detail map[string]any) error
	List(ctx context.Context, opts ListOpts) ([]AuditEntry, error)
}
