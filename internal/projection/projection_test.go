package projection

import (
	"context"
	"sync"
	"testing"
	"time"

	"chinese-srs/internal/events"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type dailyKey struct {
	userID uuid.UUID
	date   time.Time
}

type fakeStore struct {
	mu        sync.Mutex
	processed map[uuid.UUID]bool
	daily     map[dailyKey]DailyAggregate
	streaks   map[uuid.UUID]int
	lastDay   map[uuid.UUID]time.Time
	mastery   map[string]MasteryStatus
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		processed: map[uuid.UUID]bool{},
		daily:     map[dailyKey]DailyAggregate{},
		streaks:   map[uuid.UUID]int{},
		lastDay:   map[uuid.UUID]time.Time{},
		mastery:   map[string]MasteryStatus{},
	}
}

func (s *fakeStore) AlreadyProcessed(ctx context.Context, eventID uuid.UUID) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.processed[eventID], nil
}

func (s *fakeStore) MarkProcessed(ctx context.Context, eventID uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.processed[eventID] = true
	return nil
}

func (s *fakeStore) UpsertMastery(ctx context.Context, userID, itemID uuid.UUID, status MasteryStatus, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.mastery[userID.String()+":"+itemID.String()] = status
	return nil
}

func (s *fakeStore) IncrementDailyAggregate(ctx context.Context, userID uuid.UUID, date time.Time, sessions, reviews, correct int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := dailyKey{userID: userID, date: date}
	agg := s.daily[key]
	agg.UserID, agg.Date = userID, date
	agg.SessionsCount += sessions
	agg.ReviewsCount += reviews
	agg.CorrectCount += correct
	s.daily[key] = agg
	return nil
}

func (s *fakeStore) IncrementStreak(ctx context.Context, userID uuid.UUID, correct bool, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !correct {
		s.streaks[userID] = 0
		return nil
	}
	s.streaks[userID]++
	return nil
}

func TestMasteryFromRepetitions(t *testing.T) {
	assert.Equal(t, MasteryLearning, MasteryFromRepetitions(0))
	assert.Equal(t, MasteryLearning, MasteryFromRepetitions(2))
	assert.Equal(t, MasteryFamiliar, MasteryFromRepetitions(3))
	assert.Equal(t, MasteryFamiliar, MasteryFromRepetitions(7))
	assert.Equal(t, MasteryMastered, MasteryFromRepetitions(8))
	assert.Equal(t, MasteryMastered, MasteryFromRepetitions(20))
}

func TestUpdater_Handle_ReviewRecorded(t *testing.T) {
	store := newFakeStore()
	updater := NewUpdater(store)
	userID := uuid.New()
	at := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)

	evt := events.Event{
		EventID: uuid.New(), Type: events.TypeReviewRecorded,
		Payload: events.ReviewRecorded{UserID: userID, ItemID: uuid.New(), Quality: 4, At: at},
	}

	require.NoError(t, updater.Handle(context.Background(), evt))

	day := truncateToDate(at)
	agg := store.daily[dailyKey{userID: userID, date: day}]
	assert.Equal(t, 1, agg.ReviewsCount)
	assert.Equal(t, 1, agg.CorrectCount)
	assert.Equal(t, 1, store.streaks[userID])
	assert.True(t, store.processed[evt.EventID])
}

func TestUpdater_Handle_ReviewRecorded_Incorrect(t *testing.T) {
	store := newFakeStore()
	updater := NewUpdater(store)
	userID := uuid.New()

	evt := events.Event{
		EventID: uuid.New(), Type: events.TypeReviewRecorded,
		Payload: events.ReviewRecorded{UserID: userID, ItemID: uuid.New(), Quality: 1, At: time.Now()},
	}

	require.NoError(t, updater.Handle(context.Background(), evt))
	assert.Equal(t, 0, store.streaks[userID])
}

func TestUpdater_Handle_IdempotentByEventID(t *testing.T) {
	store := newFakeStore()
	updater := NewUpdater(store)
	userID := uuid.New()
	evt := events.Event{
		EventID: uuid.New(), Type: events.TypeReviewRecorded,
		Payload: events.ReviewRecorded{UserID: userID, ItemID: uuid.New(), Quality: 5, At: time.Now()},
	}

	require.NoError(t, updater.Handle(context.Background(), evt))
	require.NoError(t, updater.Handle(context.Background(), evt)) // redelivered

	var total int
	for _, agg := range store.daily {
		total += agg.ReviewsCount
	}
	assert.Equal(t, 1, total, "redelivered event must not double-count")
}

func TestUpdater_Handle_SessionStarted(t *testing.T) {
	store := newFakeStore()
	updater := NewUpdater(store)
	userID := uuid.New()
	at := time.Now()

	evt := events.Event{
		EventID: uuid.New(), Type: events.TypeSessionStarted,
		Payload: events.SessionStarted{SessionID: uuid.New(), UserID: userID, ItemCount: 10, At: at},
	}

	require.NoError(t, updater.Handle(context.Background(), evt))
	agg := store.daily[dailyKey{userID: userID, date: truncateToDate(at)}]
	assert.Equal(t, 1, agg.SessionsCount)
}

func TestUpdater_Handle_ItemMasteryUpdated(t *testing.T) {
	store := newFakeStore()
	updater := NewUpdater(store)
	userID, itemID := uuid.New(), uuid.New()

	evt := events.Event{
		EventID: uuid.New(), Type: events.TypeItemMasteryUpdated,
		Payload: events.ItemMasteryUpdated{UserID: userID, ItemID: itemID, OldStatus: "Learning", NewStatus: "Familiar", At: time.Now()},
	}

	require.NoError(t, updater.Handle(context.Background(), evt))
	assert.Equal(t, MasteryFamiliar, store.mastery[userID.String()+":"+itemID.String()])
}

func TestUpdater_Handle_UnknownTypeStillMarksProcessed(t *testing.T) {
	store := newFakeStore()
	updater := NewUpdater(store)

	evt := events.Event{EventID: uuid.New(), Type: events.TypeItemPresented, Payload: events.ItemPresented{}}
	require.NoError(t, updater.Handle(context.Background(), evt))
	assert.True(t, store.processed[evt.EventID])
}

func TestUpdater_Handle_DecodesMapPayloadFromOutboxDrain(t *testing.T) {
	store := newFakeStore()
	updater := NewUpdater(store)
	userID := uuid.New()
	at := time.Now()

	// Simulate the outbox-drain redelivery path, where Payload arrives as a
	// generic map rather than the original typed struct.
	evt := events.Event{
		EventID: uuid.New(), Type: events.TypeReviewRecorded,
		Payload: map[string]interface{}{
			"UserID":  userID.String(),
			"ItemID":  uuid.New().String(),
			"Quality": float64(4),
			"At":      at.Format(time.RFC3339Nano),
		},
	}

	require.NoError(t, updater.Handle(context.Background(), evt))
	day := truncateToDate(at)
	agg := store.daily[dailyKey{userID: userID, date: day}]
	assert.Equal(t, 1, agg.ReviewsCount)
}
