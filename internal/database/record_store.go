package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"chinese-srs/internal/scheduler"

	"github.com/google/uuid"
	"github.com/lib/pq"
)

// RecordStore is the Postgres-backed implementation of scheduler.Store
// (component A, spec §4.A), superseding LearningRepository's ad hoc
// vocabulary-specific queries with the generic item_learning_records table
// the scheduler package operates over.
type RecordStore struct {
	db *sql.DB
}

// NewRecordStore creates a Postgres-backed scheduler.Store.
func NewRecordStore(db *sql.DB) *RecordStore {
	return &RecordStore{db: db}
}

const recordColumns = `user_id, item_id, easiness_factor, repetition_count, interval_days,
	next_review_date, status, total_reviews, correct_count, streak_count,
	average_response_time_ms, last_review_at, last_quality, version`

func scanRecord(row interface{ Scan(...interface{}) error }) (*scheduler.ItemLearningRecord, error) {
	var r scheduler.ItemLearningRecord
	var status string
	var lastQuality sql.NullInt64
	var lastReviewAt sql.NullTime

	err := row.Scan(
		&r.UserID, &r.ItemID, &r.EasinessFactor, &r.RepetitionCount, &r.IntervalDays,
		&r.NextReviewDate, &status, &r.TotalReviews, &r.CorrectCount, &r.StreakCount,
		&r.AverageResponseTimeMs, &lastReviewAt, &lastQuality, &r.Version,
	)
	if err != nil {
		return nil, err
	}
	r.Status = scheduler.Status(status)
	if lastQuality.Valid {
		q := int(lastQuality.Int64)
		r.LastQuality = &q
	}
	if lastReviewAt.Valid {
		r.LastReviewAt = &lastReviewAt.Time
	}
	return &r, nil
}

// Get implements scheduler.Store.
func (s *RecordStore) Get(ctx context.Context, userID, itemID uuid.UUID) (*scheduler.ItemLearningRecord, error) {
	query := `SELECT ` + recordColumns + ` FROM item_learning_records WHERE user_id = $1 AND item_id = $2`
	row := s.db.QueryRowContext(ctx, query, userID, itemID)
	r, err := scanRecord(row)
	if err == sql.ErrNoRows {
		return nil, scheduler.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("record_store: get: %w", err)
	}
	return r, nil
}

// GetMany implements scheduler.Store.
func (s *RecordStore) GetMany(ctx context.Context, userID uuid.UUID, itemIDs []uuid.UUID) (map[uuid.UUID]*scheduler.ItemLearningRecord, error) {
	out := make(map[uuid.UUID]*scheduler.ItemLearningRecord, len(itemIDs))
	if len(itemIDs) == 0 {
		return out, nil
	}
	query := `SELECT ` + recordColumns + ` FROM item_learning_records WHERE user_id = $1 AND item_id = ANY($2)`
	rows, err := s.db.QueryContext(ctx, query, userID, pq.Array(itemIDs))
	if err != nil {
		return nil, fmt.Errorf("record_store: get_many: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		r, err := scanRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("record_store: scan: %w", err)
		}
		out[r.ItemID] = r
	}
	return out, rows.Err()
}

// Upsert implements scheduler.Store with optimistic concurrency:
// expectedVersion must match the stored row's version, or 0 if the record
// does not exist yet (spec §5). Returns a KindVersionConflict scheduler
// error on mismatch.
func (s *RecordStore) Upsert(ctx context.Context, r *scheduler.ItemLearningRecord, expectedVersion int64) (*scheduler.ItemLearningRecord, error) {
	newVersion := expectedVersion + 1

	if expectedVersion == 0 {
		query := `
			INSERT INTO item_learning_records (` + recordColumns + `)
			VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14)
			ON CONFLICT (user_id, item_id) DO NOTHING
			RETURNING ` + recordColumns
		row := s.db.QueryRowContext(ctx, query,
			r.UserID, r.ItemID, r.EasinessFactor, r.RepetitionCount, r.IntervalDays,
			r.NextReviewDate, string(r.Status), r.TotalReviews, r.CorrectCount, r.StreakCount,
			r.AverageResponseTimeMs, r.LastReviewAt, r.LastQuality, newVersion,
		)
		out, err := scanRecord(row)
		if err == sql.ErrNoRows {
			return nil, scheduler.NewError(scheduler.KindVersionConflict, "record already exists", nil)
		}
		if err != nil {
			return nil, fmt.Errorf("record_store: insert: %w", err)
		}
		return out, nil
	}

	query := `
		UPDATE item_learning_records
		SET easiness_factor = $1, repetition_count = $2, interval_days = $3, next_review_date = $4,
			status = $5, total_reviews = $6, correct_count = $7, streak_count = $8,
			average_response_time_ms = $9, last_review_at = $10, last_quality = $11, version = $12
		WHERE user_id = $13 AND item_id = $14 AND version = $15
		RETURNING ` + recordColumns
	row := s.db.QueryRowContext(ctx, query,
		r.EasinessFactor, r.RepetitionCount, r.IntervalDays, r.NextReviewDate,
		string(r.Status), r.TotalReviews, r.CorrectCount, r.StreakCount,
		r.AverageResponseTimeMs, r.LastReviewAt, r.LastQuality, newVersion,
		r.UserID, r.ItemID, expectedVersion,
	)
	out, err := scanRecord(row)
	if err == sql.ErrNoRows {
		return nil, scheduler.NewError(scheduler.KindVersionConflict, "version mismatch or record missing", nil)
	}
	if err != nil {
		return nil, fmt.Errorf("record_store: update: %w", err)
	}
	return out, nil
}

// QueryDue implements scheduler.Store.
func (s *RecordStore) QueryDue(ctx context.Context, userID uuid.UUID, asOf time.Time, limit int, filter scheduler.StatusFilter) ([]*scheduler.ItemLearningRecord, error) {
	query := `SELECT ` + recordColumns + ` FROM item_learning_records WHERE user_id = $1 AND next_review_date <= $2`
	args := []interface{}{userID, asOf}

	if len(filter) > 0 {
		statuses := make([]string, len(filter))
		for i, st := range filter {
			statuses[i] = string(st)
		}
		query += fmt.Sprintf(" AND status = ANY($%d)", len(args)+1)
		args = append(args, pq.Array(statuses))
	}

	query += " ORDER BY next_review_date ASC"
	if limit > 0 {
		query += fmt.Sprintf(" LIMIT $%d", len(args)+1)
		args = append(args, limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("record_store: query_due: %w", err)
	}
	defer rows.Close()

	var out []*scheduler.ItemLearningRecord
	for rows.Next() {
		r, err := scanRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("record_store: scan: %w", err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// QueryNew implements scheduler.Store: returns item IDs from candidateItemIDs
// the user has no learning record for yet.
func (s *RecordStore) QueryNew(ctx context.Context, userID uuid.UUID, candidateItemIDs []uuid.UUID, limit int) ([]uuid.UUID, error) {
	if len(candidateItemIDs) == 0 {
		return nil, nil
	}
	query := `
		SELECT c.item_id FROM unnest($2::uuid[]) AS c(item_id)
		WHERE NOT EXISTS (
			SELECT 1 FROM item_learning_records r
			WHERE r.user_id = $1 AND r.item_id = c.item_id
		)
		LIMIT $3
	`
	rows, err := s.db.QueryContext(ctx, query, userID, pq.Array(candidateItemIDs), limit)
	if err != nil {
		return nil, fmt.Errorf("record_store: query_new: %w", err)
	}
	defer rows.Close()

	var out []uuid.UUID
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("record_store: scan: %w", err)
		}
		out = append(out, id)
	}
	return out, rows.Err()
}

// CountByStatus implements scheduler.Store.
func (s *RecordStore) CountByStatus(ctx context.Context, userID uuid.UUID, asOf time.Time) (map[scheduler.Status]int, error) {
	query := `SELECT status, COUNT(*) FROM item_learning_records WHERE user_id = $1 GROUP BY status`
	rows, err := s.db.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("record_store: count_by_status: %w", err)
	}
	defer rows.Close()

	counts := make(map[scheduler.Status]int)
	for rows.Next() {
		var status string
		var n int
		if err := rows.Scan(&status, &n); err != nil {
			return nil, fmt.Errorf("record_store: scan: %w", err)
		}
		counts[scheduler.Status(status)] = n
	}
	return counts, rows.Err()
}
