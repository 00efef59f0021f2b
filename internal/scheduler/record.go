package scheduler

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Status is the lifecycle state of an ItemLearningRecord. Overdue is derived
// at read time from NextReviewDate, never stored.
type Status string

const (
	StatusNew        Status = "New"
	StatusLearning   Status = "Learning"
	StatusReview     Status = "Review"
	StatusOverdue    Status = "Overdue"
	StatusSuspended  Status = "Suspended"
)

const (
	minEasinessFactor = 1.3
	maxEasinessFactor = 2.5
	defaultEasinessFactor = 2.5
	initialIntervalDays   = 1
)

// ItemLearningRecord is the durable per-(user,item) SM-2 state described in
// spec §3. It is created on first exposure and never physically deleted.
type ItemLearningRecord struct {
	UserID       uuid.UUID
	ItemID       uuid.UUID
	EasinessFactor float64
	RepetitionCount int
	IntervalDays    int
	NextReviewDate  time.Time
	Status          Status

	TotalReviews  int
	CorrectCount  int
	StreakCount   int

	AverageResponseTimeMs float64

	LastReviewAt *time.Time
	LastQuality  *int

	Version int64
}

// NewRecord creates the default record for an item's first exposure.
func NewRecord(userID, itemID uuid.UUID, now time.Time) *ItemLearningRecord {
	return &ItemLearningRecord{
		UserID:         userID,
		ItemID:         itemID,
		EasinessFactor: defaultEasinessFactor,
		IntervalDays:   0,
		NextReviewDate: now,
		Status:         StatusNew,
		Version:        1,
	}
}

// DerivedStatus computes the display status, promoting a stored Learning/
// Review record to Overdue when its due date has passed. Suspended records
// are never reclassified.
func (r *ItemLearningRecord) DerivedStatus(asOf time.Time) Status {
	if r.Status == StatusSuspended || r.Status == StatusNew {
		return r.Status
	}
	if r.NextReviewDate.Before(truncateToDate(asOf)) {
		return StatusOverdue
	}
	return r.Status
}

// OverdueDays returns how many whole days past due the record is, 0 if not overdue.
func (r *ItemLearningRecord) OverdueDays(asOf time.Time) int {
	due := truncateToDate(r.NextReviewDate)
	today := truncateToDate(asOf)
	if !today.After(due) {
		return 0
	}
	return int(today.Sub(due).Hours() / 24)
}

func truncateToDate(t time.Time) time.Time {
	u := t.UTC()
	return time.Date(u.Year(), u.Month(), u.Day(), 0, 0, 0, 0, time.UTC)
}

// ApplyOutcome folds a graded review into the record's bookkeeping fields
// (counters, running average, streak) — the SM-2 state transition itself is
// computed separately by CalculateSM2 and assigned by the caller. Kept apart
// so the pure SM-2 math never touches counters it doesn't own.
func (r *ItemLearningRecord) ApplyOutcome(quality int, responseTimeMs uint32, at time.Time) {
	r.TotalReviews++
	if quality >= 3 {
		r.CorrectCount++
		r.StreakCount++
	} else {
		r.StreakCount = 0
	}

	if r.TotalReviews == 1 {
		r.AverageResponseTimeMs = float64(responseTimeMs)
	} else {
		n := float64(r.TotalReviews)
		r.AverageResponseTimeMs += (float64(responseTimeMs) - r.AverageResponseTimeMs) / n
	}

	q := quality
	r.LastQuality = &q
	t := at
	r.LastReviewAt = &t
}

// StatusFromReps derives the coarse lifecycle status from repetition count,
// applied after an SM-2 transition is written back.
func StatusFromReps(rep int) Status {
	switch {
	case rep == 0:
		return StatusLearning
	case rep <= 2:
		return StatusLearning
	default:
		return StatusReview
	}
}

// StatusFilter restricts query_due/query_new to a subset of statuses; nil
// means "any".
type StatusFilter []Status

// Store is the contract for component A (ItemLearningRecord store, spec §4.A).
// Implementations must provide optimistic concurrency via Version and
// read-your-writes within a single user partition.
type Store interface {
	Get(ctx context.Context, userID, itemID uuid.UUID) (*ItemLearningRecord, error)
	GetMany(ctx context.Context, userID uuid.UUID, itemIDs []uuid.UUID) (map[uuid.UUID]*ItemLearningRecord, error)

	// Upsert writes a record using optimistic concurrency: expectedVersion
	// must match the currently stored version (0 for "does not exist yet").
	// Returns ErrVersionConflict (Kind KindVersionConflict) on mismatch.
	Upsert(ctx context.Context, record *ItemLearningRecord, expectedVersion int64) (*ItemLearningRecord, error)

	// QueryDue returns records with NextReviewDate <= asOf, ordered by
	// (overdue_days desc, priority desc).
	QueryDue(ctx context.Context, userID uuid.UUID, asOf time.Time, limit int, filter StatusFilter) ([]*ItemLearningRecord, error)

	// QueryNew returns up to limit known-vocabulary item IDs the user has
	// no record for yet, or whose record is StatusNew.
	QueryNew(ctx context.Context, userID uuid.UUID, candidateItemIDs []uuid.UUID, limit int) ([]uuid.UUID, error)

	CountByStatus(ctx context.Context, userID uuid.UUID, asOf time.Time) (map[Status]int, error)
}
