package database

import (
	"context"
	"database/sql"
	"fmt"

	"chinese-srs/internal/scheduler"

	"github.com/google/uuid"
)

// ReviewLogStore is the append-only review history backing the Performance
// Analyzer's OutcomeSource (component E, spec §4.E). Rows are written
// alongside every judge() call by the orchestrator.
type ReviewLogStore struct {
	db *sql.DB
}

// NewReviewLogStore creates a Postgres-backed scheduler.OutcomeSource.
func NewReviewLogStore(db *sql.DB) *ReviewLogStore {
	return &ReviewLogStore{db: db}
}

// Append records one graded review. Append-only: never updated or deleted.
func (s *ReviewLogStore) Append(ctx context.Context, outcome scheduler.ReviewOutcome) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO review_log (user_id, item_id, quality, response_time_ms, at)
		VALUES ($1, $2, $3, $4, $5)
	`, outcome.UserID, outcome.ItemID, outcome.Quality, outcome.ResponseTimeMs, outcome.At)
	if err != nil {
		return fmt.Errorf("review_log_store: append: %w", err)
	}
	return nil
}

// RecentOutcomes implements scheduler.OutcomeSource.
func (s *ReviewLogStore) RecentOutcomes(ctx context.Context, userID uuid.UUID, window int) ([]scheduler.ReviewOutcome, error) {
	if window <= 0 {
		window = 50
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT user_id, item_id, quality, response_time_ms, at
		FROM review_log
		WHERE user_id = $1
		ORDER BY at DESC
		LIMIT $2
	`, userID, window)
	if err != nil {
		return nil, fmt.Errorf("review_log_store: recent_outcomes: %w", err)
	}
	defer rows.Close()

	var out []scheduler.ReviewOutcome
	for rows.Next() {
		var o scheduler.ReviewOutcome
		if err := rows.Scan(&o.UserID, &o.ItemID, &o.Quality, &o.ResponseTimeMs, &o.At); err != nil {
			return nil, fmt.Errorf("review_log_store: scan: %w", err)
		}
		out = append(out, o)
	}
	return out, rows.Err()
}
