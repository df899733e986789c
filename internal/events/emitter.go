// Package events fans engine events out to the configured sinks: the Redis
// pub/sub channel the websocket hub bridges, an optional Kafka topic, the
// postgres audit log, and Prometheus counters. Emission is observability
// only; sink failures are logged and never reach the engine.
package events

import (
	"context"
	"log/slog"

	"github.com/alanyoungcy/coinflip/internal/domain"
)

// Sink receives one event.
type Sink interface {
	Emit(ctx context.Context, e domain.Event) error
}

// Fanout delivers every event to all sinks.
type Fanout struct {
	sinks  []Sink
	logger *slog.Logger
}

// NewFanout creates a Fanout over the given sinks. Nil sinks are skipped.
func NewFanout(logger *slog.Logger, sinks ...Sink) *Fanout {
	if logger == nil {
		logger = slog.Default()
	}
	kept := make([]Sink, 0, len(sinks))
	for _, s := range sinks {
		if s != nil {
			kept = append(kept, s)
		}
	}
	return &Fanout{
		sinks:  kept,
		logger: logger.With(slog.String("component", "events")),
	}
}

// Emit delivers e to every sink, logging failures.
func (f *Fanout) Emit(ctx context.Context, e domain.Event) {
	for _, s := range f.sinks {
		if err := s.Emit(ctx, e); err != nil {
			f.logger.Error("emit event",
				slog.String("event", e.Name),
				slog.String("error", err.Error()),
			)
		}
	}
}

// Compile-time interface check.
var _ domain.Emitter = (*Fanout)(nil)
