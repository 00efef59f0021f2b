package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"chinese-srs/internal/projection"

	"github.com/google/uuid"
)

// ProjectionStore is the Postgres-backed read model behind the Projection
// Updater (component J, spec §4.J).
type ProjectionStore struct {
	db *sql.DB
}

// NewProjectionStore creates a Postgres-backed projection.Store.
func NewProjectionStore(db *sql.DB) *ProjectionStore {
	return &ProjectionStore{db: db}
}

// AlreadyProcessed implements projection.Store's idempotency check.
func (s *ProjectionStore) AlreadyProcessed(ctx context.Context, eventID uuid.UUID) (bool, error) {
	var exists bool
	err := s.db.QueryRowContext(ctx,
		`SELECT EXISTS(SELECT 1 FROM projection_processed_events WHERE event_id = $1)`, eventID,
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("projection_store: already_processed: %w", err)
	}
	return exists, nil
}

// MarkProcessed implements projection.Store.
func (s *ProjectionStore) MarkProcessed(ctx context.Context, eventID uuid.UUID) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO projection_processed_events (event_id, processed_at) VALUES ($1, NOW())
		 ON CONFLICT (event_id) DO NOTHING`, eventID)
	if err != nil {
		return fmt.Errorf("projection_store: mark_processed: %w", err)
	}
	return nil
}

// UpsertMastery implements projection.Store, tolerating out-of-order
// delivery by only advancing the status when `at` is newer than the
// currently recorded update time (spec §4.J: "use event timestamps as the
// authority, not receive order").
func (s *ProjectionStore) UpsertMastery(ctx context.Context, userID, itemID uuid.UUID, status projection.MasteryStatus, at time.Time) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO item_mastery_projection (user_id, item_id, status, updated_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (user_id, item_id) DO UPDATE
		SET status = EXCLUDED.status, updated_at = EXCLUDED.updated_at
		WHERE item_mastery_projection.updated_at <= EXCLUDED.updated_at
	`, userID, itemID, string(status), at)
	if err != nil {
		return fmt.Errorf("projection_store: upsert_mastery: %w", err)
	}
	return nil
}

// IncrementDailyAggregate implements projection.Store.
func (s *ProjectionStore) IncrementDailyAggregate(ctx context.Context, userID uuid.UUID, date time.Time, sessions, reviews, correct int) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO daily_learning_aggregates (user_id, day, sessions_count, reviews_count, correct_count)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (user_id, day) DO UPDATE
		SET sessions_count = daily_learning_aggregates.sessions_count + EXCLUDED.sessions_count,
			reviews_count  = daily_learning_aggregates.reviews_count  + EXCLUDED.reviews_count,
			correct_count  = daily_learning_aggregates.correct_count  + EXCLUDED.correct_count
	`, userID, date, sessions, reviews, correct)
	if err != nil {
		return fmt.Errorf("projection_store: increment_daily_aggregate: %w", err)
	}
	return nil
}

// IncrementStreak implements projection.Store: a correct review on the day
// following the last-recorded streak day extends it; a correct review on
// the same day is a no-op; anything else (gap, or incorrect) resets to 0
// (incorrect) or 1 (correct, fresh start).
func (s *ProjectionStore) IncrementStreak(ctx context.Context, userID uuid.UUID, correct bool, at time.Time) error {
	day := truncateToDateUTC(at)

	var lastDay sql.NullTime
	var current int
	err := s.db.QueryRowContext(ctx,
		`SELECT last_day, current_streak FROM user_streaks WHERE user_id = $1`, userID,
	).Scan(&lastDay, &current)
	if err == sql.ErrNoRows {
		lastDay = sql.NullTime{}
		current = 0
	} else if err != nil {
		return fmt.Errorf("projection_store: load streak: %w", err)
	}

	newStreak := current
	switch {
	case !correct:
		newStreak = 0
	case !lastDay.Valid:
		newStreak = 1
	case lastDay.Time.Equal(day):
		// same day, no change
	case lastDay.Time.Equal(day.AddDate(0, 0, -1)):
		newStreak = current + 1
	default:
		newStreak = 1 // gap: restart
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO user_streaks (user_id, last_day, current_streak)
		VALUES ($1, $2, $3)
		ON CONFLICT (user_id) DO UPDATE
		SET last_day = EXCLUDED.last_day, current_streak = EXCLUDED.current_streak
	`, userID, day, newStreak)
	if err != nil {
		return fmt.Errorf("projection_store: save streak: %w", err)
	}
	return nil
}

func truncateToDateUTC(t time.Time) time.Time {
	u := t.UTC()
	return time.Date(u.Year(), u.Month(), u.Day(), 0, 0, 0, 0, time.UTC)
}
