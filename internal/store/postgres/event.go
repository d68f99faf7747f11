package postgres

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/jensholdgaard/clubhub/internal/event"
)

// EventStore implements event.Store backed by Postgres.
type EventStore struct {
	c *conn
}

// Append inserts events in order. Outside a transaction it opens one of its
// own so the batch stays atomic.
func (s *EventStore) Append(ctx context.Context, events ...event.Event) error {
	db, ok := s.c.q.(*sqlx.DB)
	if !ok {
		return s.insert(ctx, s.c.q, events)
	}

	tx, err := db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if err := s.insert(ctx, tx, events); err != nil {
		return err
	}
	return tx.Commit()
}

func (s *EventStore) insert(ctx context.Context, q sqlx.ExecerContext, events []event.Event) error {
	now := s.c.clk.Now()
	for _, e := range events {
		if e.ID == "" {
			e.ID = newID()
		}
		if e.CreatedAt.IsZero() {
			e.CreatedAt = now
		}
		data := e.Data
		if len(data) == 0 {
			data = []byte("{}")
		}
		if _, err := q.ExecContext(ctx,
			`INSERT INTO events (id, aggregate_id, type, data, version, created_at) VALUES ($1, $2, $3, $4, $5, $6)`,
			e.ID, e.AggregateID, e.Type, string(data), e.Version, e.CreatedAt); err != nil {
			return fmt.Errorf("inserting event (aggregate=%s, version=%d): %w", e.AggregateID, e.Version, err)
		}
	}
	return nil
}

func (s *EventStore) Load(ctx context.Context, aggregateID string) ([]event.Event, error) {
	var events []event.Event
	err := sqlx.SelectContext(ctx, s.c.q, &events,
		`SELECT id, aggregate_id, type, data, version, created_at
		 FROM events WHERE aggregate_id = $1 ORDER BY version ASC, seq ASC`, aggregateID)
	if err != nil {
		return nil, fmt.Errorf("loading events: %w", err)
	}
	return events, nil
}

func (s *EventStore) LoadByType(ctx context.Context, eventType event.Type) ([]event.Event, error) {
	var events []event.Event
	err := sqlx.SelectContext(ctx, s.c.q, &events,
		`SELECT id, aggregate_id, type, data, version, created_at
		 FROM events WHERE type = $1 ORDER BY seq ASC`, eventType)
	if err != nil {
		return nil, fmt.Errorf("loading events by type: %w", err)
	}
	return events, nil
}
