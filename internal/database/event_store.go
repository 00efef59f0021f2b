package database

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"chinese-srs/internal/events"

	"github.com/google/uuid"
)

// EventStore is the Postgres-backed outbox (events.OutboxStore) behind
// component I (spec §4.I/§9 "outbox table drained by a background
// publisher"). One row per event, keyed by event_id for idempotent
// consumer-side dedup.
type EventStore struct {
	db *sql.DB
}

// NewEventStore creates a Postgres-backed outbox store.
func NewEventStore(db *sql.DB) *EventStore {
	return &EventStore{db: db}
}

// Publish implements events.Sink by inserting each event as a row in the
// same table Drain later reads from. Uses a transaction so a batch either
// all lands or none does, matching "no partial writes" (spec §5).
func (s *EventStore) Publish(ctx context.Context, evts []events.Event) error {
	if len(evts) == 0 {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("event_store: begin: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO event_outbox (event_id, event_type, stream_id, occurred_at, payload, dispatched)
		VALUES ($1, $2, $3, $4, $5, false)
		ON CONFLICT (event_id) DO NOTHING
	`)
	if err != nil {
		return fmt.Errorf("event_store: prepare: %w", err)
	}
	defer stmt.Close()

	for _, evt := range evts {
		payload, err := json.Marshal(evt.Payload)
		if err != nil {
			return fmt.Errorf("event_store: marshal payload for %s: %w", evt.Type, err)
		}
		if _, err := stmt.ExecContext(ctx, evt.EventID, string(evt.Type), evt.StreamID, evt.At, payload); err != nil {
			return fmt.Errorf("event_store: insert %s: %w", evt.Type, err)
		}
	}

	return tx.Commit()
}

// ListUndispatched returns outbox rows not yet marked dispatched, oldest
// first, for the drain job to redeliver (spec §5 "retry asynchronously").
func (s *EventStore) ListUndispatched(ctx context.Context, limit int, since time.Time) ([]events.Event, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT event_id, event_type, stream_id, occurred_at, payload
		FROM event_outbox
		WHERE dispatched = false AND occurred_at >= $1
		ORDER BY occurred_at ASC
		LIMIT $2
	`, since, limit)
	if err != nil {
		return nil, fmt.Errorf("event_store: list_undispatched: %w", err)
	}
	defer rows.Close()

	var out []events.Event
	for rows.Next() {
		var evt events.Event
		var eventType, streamID string
		var rawPayload []byte
		if err := rows.Scan(&evt.EventID, &eventType, &streamID, &evt.At, &rawPayload); err != nil {
			return nil, fmt.Errorf("event_store: scan: %w", err)
		}
		evt.Type = events.Type(eventType)
		evt.StreamID = streamID

		var payload map[string]interface{}
		if err := json.Unmarshal(rawPayload, &payload); err != nil {
			return nil, fmt.Errorf("event_store: unmarshal payload: %w", err)
		}
		evt.Payload = payload
		out = append(out, evt)
	}
	return out, rows.Err()
}

// MarkDispatched flags an outbox row as delivered so it is excluded from
// future drain passes. Idempotent: marking an already-dispatched or
// nonexistent row is not an error, since consumers must already be
// idempotent by event_id per spec §4.I.
func (s *EventStore) MarkDispatched(ctx context.Context, eventID uuid.UUID) error {
	_, err := s.db.ExecContext(ctx, `UPDATE event_outbox SET dispatched = true WHERE event_id = $1`, eventID)
	if err != nil {
		return fmt.Errorf("event_store: mark_dispatched: %w", err)
	}
	return nil
}
