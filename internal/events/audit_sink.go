package events

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/alanyoungcy/coinflip/internal/domain"
)

// AuditSink appends every event to the durable audit log.
type AuditSink struct {
	store domain.AuditStore
}

// NewAuditSink creates an AuditSink over the given store.
func NewAuditSink(store domain.AuditStore) *AuditSink {
	return &AuditSink{store: store}
}

// Emit writes the event's fields as the audit detail map.
func (s *AuditSink) Emit(ctx context.Context, e domain.Event) error {
	payload, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("events: marshal %s: %w", e.Name, err)
	}
	var detail map[string]any
	if err := json.Unmarshal(payload, &detail); err != nil {
		return fmt.Errorf("events: detail %s: %w", e.Name, err)
	}
	delete(detail, "name")
	return s.store.Log(ctx, e.Name, detail)
}
