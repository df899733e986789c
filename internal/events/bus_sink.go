package events

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/alanyoungcy/coinflip/internal/domain"
)

// Channel is the Redis pub/sub channel carrying all bet events as JSON.
const Channel = "coinflip:events"

// Publisher is the pub/sub half of the Redis bus.
type Publisher interface {
	Publish(ctx context.Context, channel string, payload []byte) error
}

// BusSink publishes events to the Redis channel the websocket hub bridges.
type BusSink struct {
	bus Publisher
}

// NewBusSink creates a BusSink over the given publisher.
func NewBusSink(bus Publisher) *BusSink {
	return &BusSink{bus: bus}
}

// Emit publishes the event as JSON.
func (s *BusSink) Emit(ctx context.Context, e domain.Event) error {
	payload, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("events: marshal %s: %w", e.Name, err)
	}
	return s.bus.Publish(ctx, Channel, payload)
}
