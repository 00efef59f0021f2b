package projection

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"chinese-srs/internal/events"

	"github.com/google/uuid"
)

// MasteryStatus is the coarse read-model status surfaced to dashboards,
// distinct from scheduler.Status: it buckets by repetition-count thresholds
// for display rather than driving scheduling decisions (supplemented
// feature, spec §10).
type MasteryStatus string

const (
	MasteryLearning MasteryStatus = "Learning"
	MasteryFamiliar MasteryStatus = "Familiar"
	MasteryMastered MasteryStatus = "Mastered"
)

// MasteryFromRepetitions converts a repetition count into a MasteryStatus.
// Familiar at 3+ correct repetitions, Mastered at 8+, matching the
// "threshold crossings" language in spec §4.J without inventing a new
// SM-2 branch.
func MasteryFromRepetitions(reps int) MasteryStatus {
	switch {
	case reps >= 8:
		return MasteryMastered
	case reps >= 3:
		return MasteryFamiliar
	default:
		return MasteryLearning
	}
}

// DailyAggregate is one user-day's rollup (supplemented feature, spec §10:
// "daily session counts").
type DailyAggregate struct {
	UserID        uuid.UUID
	Date          time.Time
	SessionsCount int
	ReviewsCount  int
	CorrectCount  int
}

// Store is the read-model persistence contract for the Projection Updater.
// Updates are idempotent by event_id (spec §4.J): Updater.Handle skips an
// event that AlreadyProcessed reports, and calls MarkProcessed after the
// projection mutation, so a redelivered event that was marked is a no-op.
// The check, the mutation and the marker are separate calls, not one
// transaction.
type Store interface {
	// AlreadyProcessed reports whether eventID has already been folded into
	// the read model, for the idempotent-by-event_id guarantee.
	AlreadyProcessed(ctx context.Context, eventID uuid.UUID) (bool, error)
	MarkProcessed(ctx context.Context, eventID uuid.UUID) error

	UpsertMastery(ctx context.Context, userID, itemID uuid.UUID, status MasteryStatus, at time.Time) error
	IncrementDailyAggregate(ctx context.Context, userID uuid.UUID, date time.Time, sessions, reviews, correct int) error
	IncrementStreak(ctx context.Context, userID uuid.UUID, correct bool, at time.Time) error
}

// Updater implements component J (Projection Updater, spec §4.J): a
// Subscriber that folds the event stream into read-only views. It trusts
// event timestamps, never receive order, when two updates could otherwise
// race (e.g. two ReviewRecorded events for the same item arriving
// out of order across partitions).
type Updater struct {
	store Store
}

// NewUpdater builds a projection Updater over the given read-model store.
func NewUpdater(store Store) *Updater {
	return &Updater{store: store}
}

// Handle implements events.Subscriber.
func (u *Updater) Handle(ctx context.Context, evt events.Event) error {
	processed, err := u.store.AlreadyProcessed(ctx, evt.EventID)
	if err != nil {
		return fmt.Errorf("projection: already_processed check: %w", err)
	}
	if processed {
		return nil
	}

	switch evt.Type {
	case events.TypeReviewRecorded:
		var payload events.ReviewRecorded
		if err := decodePayload(evt.Payload, &payload); err != nil {
			return err
		}
		day := truncateToDate(payload.At)
		correct := 0
		if payload.Quality >= 3 {
			correct = 1
		}
		if err := u.store.IncrementDailyAggregate(ctx, payload.UserID, day, 0, 1, correct); err != nil {
			return fmt.Errorf("projection: increment daily aggregate: %w", err)
		}
		if err := u.store.IncrementStreak(ctx, payload.UserID, payload.Quality >= 3, payload.At); err != nil {
			return fmt.Errorf("projection: increment streak: %w", err)
		}

	case events.TypeSessionStarted:
		var payload events.SessionStarted
		if err := decodePayload(evt.Payload, &payload); err != nil {
			return err
		}
		day := truncateToDate(payload.At)
		if err := u.store.IncrementDailyAggregate(ctx, payload.UserID, day, 1, 0, 0); err != nil {
			return fmt.Errorf("projection: increment daily aggregate: %w", err)
		}

	case events.TypeItemMasteryUpdated:
		var payload events.ItemMasteryUpdated
		if err := decodePayload(evt.Payload, &payload); err != nil {
			return err
		}
		if err := u.store.UpsertMastery(ctx, payload.UserID, payload.ItemID, MasteryStatus(payload.NewStatus), payload.At); err != nil {
			return fmt.Errorf("projection: upsert mastery: %w", err)
		}
	}

	return u.store.MarkProcessed(ctx, evt.EventID)
}

// decodePayload handles both the in-process fan-out path (evt.Payload is
// already the typed struct) and the outbox-drain redelivery path (evt.
// Payload is a map[string]interface{} from JSON round-tripping) by just
// re-marshaling through JSON either way.
func decodePayload(payload interface{}, out interface{}) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("projection: re-marshal payload: %w", err)
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("projection: decode payload: %w", err)
	}
	return nil
}

func truncateToDate(t time.Time) time.Time {
	u := t.UTC()
	return time.Date(u.Year(), u.Month(), u.Day(), 0, 0, 0, 0, time.UTC)
}
