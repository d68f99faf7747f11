package event

import (
	"context"
	"log/slog"
)

// Store persists and retrieves events.
type Store interface {
	// Append persists one or more events atomically.
	Append(ctx context.Context, events ...Event) error
	// Load returns all events for an aggregate, ordered by version.
	Load(ctx context.Context, aggregateID string) ([]Event, error)
	// LoadByType returns events filtered by type.
	LoadByType(ctx context.Context, eventType Type) ([]Event, error)
}

// Record appends events to s. The audit trail never decides the outcome of
// an operation, so a failure is logged and dropped.
func Record(ctx context.Context, s Store, logger *slog.Logger, events ...Event) {
	if s == nil || len(events) == 0 {
		return
	}
	if err := s.Append(ctx, events...); err != nil {
		logger.ErrorContext(ctx, "failed to append events",
			slog.String("type", string(events[0].Type)),
			slog.String("aggregate_id", events[0].AggregateID),
			slog.Any("error", err),
		)
	}
}
