package events

import (
	"context"
	"log"
	"time"

	"github.com/google/uuid"
)

// Sink is the durable, at-least-once publish target (spec §6, "Event
// sink"). A Postgres-backed outbox (see OutboxStore) is the production
// implementation; tests can substitute an in-memory one.
type Sink interface {
	Publish(ctx context.Context, evts []Event) error
}

// Subscriber receives events after they have been durably enqueued. The
// Projection Updater (component J) is the only production subscriber.
type Subscriber interface {
	Handle(ctx context.Context, evt Event) error
}

// Emitter is component I (Event Emitter, spec §4.I). It writes events to the
// durable sink synchronously with (ideally, in the same transaction as) the
// state write that produced them, and fans them out to in-process
// subscribers — mirroring the outbox-plus-dispatch pattern without
// requiring a message broker.
type Emitter struct {
	sink        Sink
	subscribers []Subscriber
}

// NewEmitter builds an Emitter around a durable Sink.
func NewEmitter(sink Sink) *Emitter {
	return &Emitter{sink: sink}
}

// Subscribe registers a Subscriber to receive every event after it is
// durably enqueued. Not safe for concurrent use with Emit; call during
// startup wiring only.
func (e *Emitter) Subscribe(s Subscriber) {
	e.subscribers = append(e.subscribers, s)
}

// Emit persists evts to the outbox and then best-effort dispatches them to
// subscribers. Per spec §7/§9, event-bus unavailability must not fail the
// caller's operation once the state write has already succeeded — Emit
// logs the enqueue failure and returns without dispatching to subscribers
// rather than propagating it, trusting the outbox drain job (Drain) to retry.
func (e *Emitter) Emit(ctx context.Context, evts ...Event) {
	if len(evts) == 0 {
		return
	}
	for i := range evts {
		if evts[i].EventID == uuid.Nil {
			evts[i].EventID = uuid.New()
		}
	}

	if err := e.sink.Publish(ctx, evts); err != nil {
		log.Printf("⚠️ event sink publish failed, events will be retried by the outbox drain: %v", err)
		return
	}

	for _, evt := range evts {
		for _, sub := range e.subscribers {
			if err := sub.Handle(ctx, evt); err != nil {
				log.Printf("⚠️ subscriber failed to handle event %s (%s): %v", evt.EventID, evt.Type, err)
			}
		}
	}
}

// Drain is invoked periodically (e.g. by a cron-style worker, spec §5's
// "retry asynchronously") to redeliver outbox rows that were never marked
// dispatched — because the process crashed between Publish and the fan-out
// loop above, or a subscriber errored.
func (e *Emitter) Drain(ctx context.Context, store OutboxStore, batchSize int, since time.Time) error {
	pending, err := store.ListUndispatched(ctx, batchSize, since)
	if err != nil {
		return err
	}
	for _, evt := range pending {
		ok := true
		for _, sub := range e.subscribers {
			if err := sub.Handle(ctx, evt); err != nil {
				log.Printf("⚠️ subscriber failed on outbox drain for event %s (%s): %v", evt.EventID, evt.Type, err)
				ok = false
			}
		}
		if !ok {
			continue // leave undispatched so the next drain retries it
		}
		if err := store.MarkDispatched(ctx, evt.EventID); err != nil {
			log.Printf("⚠️ failed to mark event %s dispatched: %v", evt.EventID, err)
		}
	}
	return nil
}

// OutboxStore is the durable event log behind Sink, queried by Drain for
// redelivery. Rows are append-only, keyed by event_id, and carry the
// event's stream_id.
type OutboxStore interface {
	Sink
	ListUndispatched(ctx context.Context, limit int, since time.Time) ([]Event, error)
	MarkDispatched(ctx context.Context, eventID uuid.UUID) error
}
