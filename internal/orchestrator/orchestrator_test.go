package orchestrator

import (
	"context"
	"sync"
	"testing"
	"time"

	"chinese-srs/internal/events"
	"chinese-srs/internal/scheduler"
	"chinese-srs/internal/session"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// --- fakes -------------------------------------------------------------

type fakeRecordStore struct {
	mu      sync.Mutex
	records map[string]*scheduler.ItemLearningRecord
	due     []*scheduler.ItemLearningRecord
	newIDs  []uuid.UUID

	upsertConflictsRemaining int
}

func newFakeRecordStore() *fakeRecordStore {
	return &fakeRecordStore{records: map[string]*scheduler.ItemLearningRecord{}}
}

func recordKey(userID, itemID uuid.UUID) string { return userID.String() + ":" + itemID.String() }

func (s *fakeRecordStore) Get(ctx context.Context, userID, itemID uuid.UUID) (*scheduler.ItemLearningRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.records[recordKey(userID, itemID)]
	if !ok {
		return nil, scheduler.ErrNotFound
	}
	copyR := *r
	return &copyR, nil
}

func (s *fakeRecordStore) GetMany(ctx context.Context, userID uuid.UUID, itemIDs []uuid.UUID) (map[uuid.UUID]*scheduler.ItemLearningRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := map[uuid.UUID]*scheduler.ItemLearningRecord{}
	for _, id := range itemIDs {
		if r, ok := s.records[recordKey(userID, id)]; ok {
			out[id] = r
		}
	}
	return out, nil
}

func (s *fakeRecordStore) Upsert(ctx context.Context, record *scheduler.ItemLearningRecord, expectedVersion int64) (*scheduler.ItemLearningRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.upsertConflictsRemaining > 0 {
		s.upsertConflictsRemaining--
		return nil, scheduler.NewError(scheduler.KindVersionConflict, "version mismatch", nil)
	}

	key := recordKey(record.UserID, record.ItemID)
	existing, ok := s.records[key]
	current := int64(0)
	if ok {
		current = existing.Version
	}
	if current != expectedVersion {
		return nil, scheduler.NewError(scheduler.KindVersionConflict, "version mismatch", nil)
	}
	record.Version = expectedVersion + 1
	copyR := *record
	s.records[key] = &copyR
	return &copyR, nil
}

func (s *fakeRecordStore) QueryDue(ctx context.Context, userID uuid.UUID, asOf time.Time, limit int, filter scheduler.StatusFilter) ([]*scheduler.ItemLearningRecord, error) {
	return s.due, nil
}

func (s *fakeRecordStore) QueryNew(ctx context.Context, userID uuid.UUID, candidateItemIDs []uuid.UUID, limit int) ([]uuid.UUID, error) {
	return s.newIDs, nil
}

func (s *fakeRecordStore) CountByStatus(ctx context.Context, userID uuid.UUID, asOf time.Time) (map[scheduler.Status]int, error) {
	return nil, nil
}

type fakeSessionStore struct {
	mu       sync.Mutex
	sessions map[uuid.UUID]*session.Session
	active   map[uuid.UUID]uuid.UUID // userID -> sessionID

	// raceBeforeUpdate, if set, fires once (under the store's lock) at the
	// start of the next Update call, simulating a concurrent writer
	// committing first. It is cleared after firing.
	raceBeforeUpdate func(sessions map[uuid.UUID]*session.Session)
}

func newFakeSessionStore() *fakeSessionStore {
	return &fakeSessionStore{
		sessions: map[uuid.UUID]*session.Session{},
		active:   map[uuid.UUID]uuid.UUID{},
	}
}

func (s *fakeSessionStore) Save(ctx context.Context, sess *session.Session) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if existing, ok := s.active[sess.UserID]; ok && existing != sess.SessionID {
		return session.ErrAlreadyActive
	}
	cp := *sess
	s.sessions[sess.SessionID] = &cp
	if !sess.IsTerminal() {
		s.active[sess.UserID] = sess.SessionID
	}
	return nil
}

func (s *fakeSessionStore) Update(ctx context.Context, sess *session.Session, expectedVersion int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if fn := s.raceBeforeUpdate; fn != nil {
		s.raceBeforeUpdate = nil
		fn(s.sessions)
	}
	current, ok := s.sessions[sess.SessionID]
	if !ok {
		return session.ErrNotFound
	}
	if current.Version != expectedVersion {
		return session.ErrVersionConflict
	}
	sess.Version = expectedVersion + 1
	cp := *sess
	s.sessions[sess.SessionID] = &cp
	if sess.IsTerminal() {
		delete(s.active, sess.UserID)
	}
	return nil
}

func (s *fakeSessionStore) Get(ctx context.Context, sessionID uuid.UUID) (*session.Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.sessions[sessionID]
	if !ok {
		return nil, session.ErrNotFound
	}
	cp := *sess
	return &cp, nil
}

func (s *fakeSessionStore) GetActiveForUser(ctx context.Context, userID uuid.UUID) (*session.Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	id, ok := s.active[userID]
	if !ok {
		return nil, session.ErrNotFound
	}
	cp := *s.sessions[id]
	return &cp, nil
}

func (s *fakeSessionStore) Delete(ctx context.Context, sessionID uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sessions, sessionID)
	return nil
}

type fakeItemSource struct {
	candidateIDs []uuid.UUID
}

func (f *fakeItemSource) GetItemDetails(ctx context.Context, itemIDs []uuid.UUID) (map[uuid.UUID]ItemDetails, error) {
	out := make(map[uuid.UUID]ItemDetails, len(itemIDs))
	for _, id := range itemIDs {
		out[id] = ItemDetails{ItemID: id, Chinese: "你好", Pinyin: "ni hao", English: "hello"}
	}
	return out, nil
}

func (f *fakeItemSource) CandidateItemIDs(ctx context.Context, hskLevel *int) ([]uuid.UUID, error) {
	return f.candidateIDs, nil
}

type fakeReviewLog struct {
	mu       sync.Mutex
	appended []scheduler.ReviewOutcome
}

func (f *fakeReviewLog) Append(ctx context.Context, outcome scheduler.ReviewOutcome) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.appended = append(f.appended, outcome)
	return nil
}

func (f *fakeReviewLog) RecentOutcomes(ctx context.Context, userID uuid.UUID, window int) ([]scheduler.ReviewOutcome, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.appended, nil
}

type fakeAnalysisCache struct {
	mu      sync.Mutex
	entries map[uuid.UUID]*scheduler.Analysis
}

func newFakeAnalysisCache() *fakeAnalysisCache {
	return &fakeAnalysisCache{entries: map[uuid.UUID]*scheduler.Analysis{}}
}

func (c *fakeAnalysisCache) Get(ctx context.Context, userID uuid.UUID) (*scheduler.Analysis, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	a, ok := c.entries[userID]
	return a, ok
}

func (c *fakeAnalysisCache) Set(ctx context.Context, userID uuid.UUID, analysis *scheduler.Analysis, ttl time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[userID] = analysis
}

type fakeEventSink struct {
	mu        sync.Mutex
	published []events.Event
}

func (s *fakeEventSink) Publish(ctx context.Context, evts []events.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.published = append(s.published, evts...)
	return nil
}

func (s *fakeEventSink) typeCounts() map[events.Type]int {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := map[events.Type]int{}
	for _, e := range s.published {
		out[e.Type]++
	}
	return out
}

// --- test harness --------------------------------------------------------

type harness struct {
	facade  *Facade
	records *fakeRecordStore
	sess    *fakeSessionStore
	items   *fakeItemSource
	reviews *fakeReviewLog
	sink    *fakeEventSink
	clock   *scheduler.FixedClock
}

func newHarness(itemCount int) *harness {
	return newHarnessWithRevealTimeout(itemCount, 3*time.Second)
}

func newHarnessWithRevealTimeout(itemCount int, revealTimeout time.Duration) *harness {
	now := time.Date(2026, 2, 1, 9, 0, 0, 0, time.UTC)
	clock := scheduler.NewFixedClock(now)

	records := newFakeRecordStore()
	sessStore := newFakeSessionStore()
	candidates := make([]uuid.UUID, itemCount)
	for i := range candidates {
		candidates[i] = uuid.New()
	}
	items := &fakeItemSource{candidateIDs: candidates}
	records.newIDs = candidates
	reviews := &fakeReviewLog{}
	sink := &fakeEventSink{}
	emitter := events.NewEmitter(sink)
	analyzer := scheduler.NewAnalyzer(reviews, newFakeAnalysisCache(), clock)

	facade := New(Config{
		Records: records, Sessions: sessStore, Items: items, Reviews: reviews,
		Analyzer: analyzer, Emitter: emitter, Clock: clock,
		NewRatio: 0.2, OverdueCap: 0.6, RevealTimeout: revealTimeout, AutoConfirmQuality: 3,
	})

	return &harness{facade: facade, records: records, sess: sessStore, items: items, reviews: reviews, sink: sink, clock: clock}
}

// --- tests -----------------------------------------------------------------

func TestFacade_StartSession_Success(t *testing.T) {
	h := newHarness(5)
	userID := uuid.New()

	out, err := h.facade.StartSession(context.Background(), StartSessionInput{UserID: userID, ItemCount: 3})
	require.NoError(t, err)
	assert.Len(t, out.Items, 3)
	assert.Equal(t, 1, h.sink.typeCounts()[events.TypeSessionStarted])
}

func TestFacade_StartSession_RejectsOutOfRangeItemCount(t *testing.T) {
	h := newHarness(5)
	_, err := h.facade.StartSession(context.Background(), StartSessionInput{UserID: uuid.New(), ItemCount: 0})
	require.Error(t, err)
	assert.Equal(t, scheduler.KindInvalidInput, scheduler.KindOf(err))

	_, err = h.facade.StartSession(context.Background(), StartSessionInput{UserID: uuid.New(), ItemCount: 101})
	require.Error(t, err)
	assert.Equal(t, scheduler.KindInvalidInput, scheduler.KindOf(err))
}

func TestFacade_StartSession_RejectsSecondActiveSession(t *testing.T) {
	h := newHarness(5)
	userID := uuid.New()

	_, err := h.facade.StartSession(context.Background(), StartSessionInput{UserID: userID, ItemCount: 2})
	require.NoError(t, err)

	_, err = h.facade.StartSession(context.Background(), StartSessionInput{UserID: userID, ItemCount: 2})
	require.Error(t, err)
	assert.Equal(t, scheduler.KindSessionAlreadyActive, scheduler.KindOf(err))
}

func TestFacade_FullLifecycle_JudgeRecordsReview(t *testing.T) {
	h := newHarness(3)
	userID := uuid.New()

	out, err := h.facade.StartSession(context.Background(), StartSessionInput{UserID: userID, ItemCount: 1})
	require.NoError(t, err)
	require.Len(t, out.Items, 1)
	itemID := out.Items[0].ItemID

	item, err := h.facade.NextItem(context.Background(), out.SessionID)
	require.NoError(t, err)
	assert.Equal(t, itemID, item.ItemID)

	require.NoError(t, h.facade.RevealAnswer(context.Background(), out.SessionID, itemID))

	judgeOut, err := h.facade.Judge(context.Background(), JudgeInput{
		SessionID: out.SessionID, ItemID: itemID, IsCorrect: true, ResponseTimeMs: 1500,
	})
	require.NoError(t, err)
	assert.Equal(t, 5, judgeOut.Quality) // <=3000ms correct -> quality 5

	record, err := h.records.Get(context.Background(), userID, itemID)
	require.NoError(t, err)
	assert.Equal(t, 1, record.RepetitionCount)
	assert.Equal(t, 1, record.TotalReviews)

	counts := h.sink.typeCounts()
	assert.Equal(t, 1, counts[events.TypeItemPresented])
	assert.Equal(t, 1, counts[events.TypeAnswerRevealed])
	assert.Equal(t, 1, counts[events.TypeCorrectnessJudged])
	assert.Equal(t, 1, counts[events.TypeReviewRecorded])
	assert.Equal(t, 1, counts[events.TypeReviewScheduled])
	assert.Equal(t, 1, counts[events.TypeSessionCompleted], "single-item session should auto-complete on judge")

	// Review log should have recorded the outcome too.
	assert.Len(t, h.reviews.appended, 1)
}

func TestFacade_RevealTimerFired_AutoConfirmsAndCompletesSession(t *testing.T) {
	h := newHarnessWithRevealTimeout(3, 10*time.Millisecond)
	userID := uuid.New()

	out, err := h.facade.StartSession(context.Background(), StartSessionInput{UserID: userID, ItemCount: 1})
	require.NoError(t, err)
	itemID := out.Items[0].ItemID

	_, err = h.facade.NextItem(context.Background(), out.SessionID)
	require.NoError(t, err)

	// Don't reveal or judge; let the reveal timer fire and auto-confirm.
	require.Eventually(t, func() bool {
		return h.sink.typeCounts()[events.TypeSessionCompleted] == 1
	}, time.Second, 5*time.Millisecond, "timer fire should auto-reveal, auto-judge, and complete the session")

	counts := h.sink.typeCounts()
	assert.Equal(t, 1, counts[events.TypeAnswerRevealed], "timer fire must reveal before judging")
	assert.Equal(t, 1, counts[events.TypeCorrectnessJudged])
	assert.Equal(t, 1, counts[events.TypeReviewRecorded])

	sess, err := h.sess.Get(context.Background(), out.SessionID)
	require.NoError(t, err)
	require.Len(t, sess.Items, 1)
	assert.Equal(t, session.JudgmentAutoConfirmed, sess.Items[0].Judgment)

	record, err := h.records.Get(context.Background(), userID, itemID)
	require.NoError(t, err)
	assert.Equal(t, 1, record.TotalReviews)
}

func TestFacade_Judge_RetriesOnVersionConflict(t *testing.T) {
	h := newHarness(3)
	userID := uuid.New()

	out, err := h.facade.StartSession(context.Background(), StartSessionInput{UserID: userID, ItemCount: 1})
	require.NoError(t, err)
	itemID := out.Items[0].ItemID

	_, err = h.facade.NextItem(context.Background(), out.SessionID)
	require.NoError(t, err)
	require.NoError(t, h.facade.RevealAnswer(context.Background(), out.SessionID, itemID))

	h.records.upsertConflictsRemaining = 2 // fail twice, then succeed within maxRetries=3

	judgeOut, err := h.facade.Judge(context.Background(), JudgeInput{
		SessionID: out.SessionID, ItemID: itemID, IsCorrect: true, ResponseTimeMs: 1000,
	})
	require.NoError(t, err)
	assert.Equal(t, 5, judgeOut.Quality)
}

func TestFacade_Judge_ExhaustsRetriesReturnsVersionConflict(t *testing.T) {
	h := newHarness(3)
	userID := uuid.New()

	out, err := h.facade.StartSession(context.Background(), StartSessionInput{UserID: userID, ItemCount: 1})
	require.NoError(t, err)
	itemID := out.Items[0].ItemID

	_, err = h.facade.NextItem(context.Background(), out.SessionID)
	require.NoError(t, err)
	require.NoError(t, h.facade.RevealAnswer(context.Background(), out.SessionID, itemID))

	h.records.upsertConflictsRemaining = 10 // always conflict

	_, err = h.facade.Judge(context.Background(), JudgeInput{
		SessionID: out.SessionID, ItemID: itemID, IsCorrect: true, ResponseTimeMs: 1000,
	})
	require.Error(t, err)
	assert.Equal(t, scheduler.KindVersionConflict, scheduler.KindOf(err))
}

// TestFacade_Judge_ConcurrentJudgeRaceSurfacesAlreadyJudged drives the S5
// scenario: two judge calls race on the same item, the second writer's
// sessions.Update loses on a session version conflict. It must reload and
// surface AlreadyJudged (per §4.G/§6's judge error list), not a bare
// VersionConflict.
func TestFacade_Judge_ConcurrentJudgeRaceSurfacesAlreadyJudged(t *testing.T) {
	h := newHarness(2)
	userID := uuid.New()

	out, err := h.facade.StartSession(context.Background(), StartSessionInput{UserID: userID, ItemCount: 2})
	require.NoError(t, err)
	itemID := out.Items[0].ItemID

	_, err = h.facade.NextItem(context.Background(), out.SessionID)
	require.NoError(t, err)
	require.NoError(t, h.facade.RevealAnswer(context.Background(), out.SessionID, itemID))

	h.sess.raceBeforeUpdate = func(sessions map[uuid.UUID]*session.Session) {
		stored := sessions[out.SessionID]
		winner := *stored
		winnerItems := make([]session.SessionItem, len(stored.Items))
		copy(winnerItems, stored.Items)
		winner.Items = winnerItems
		_, jerr := winner.Judge(session.JudgmentUserConfirmedCorrect, 500, h.clock.Now())
		require.NoError(t, jerr)
		winner.Version = stored.Version + 1
		sessions[out.SessionID] = &winner
	}

	_, err = h.facade.Judge(context.Background(), JudgeInput{
		SessionID: out.SessionID, ItemID: itemID, IsCorrect: true, ResponseTimeMs: 1000,
	})
	require.Error(t, err)
	assert.True(t, session.IsAlreadyJudged(err), "expected AlreadyJudged, got %v", err)
}

func TestFacade_Judge_SecondJudgeOnSameItemIsRejected(t *testing.T) {
	h := newHarness(3)
	userID := uuid.New()

	out, err := h.facade.StartSession(context.Background(), StartSessionInput{UserID: userID, ItemCount: 1})
	require.NoError(t, err)
	itemID := out.Items[0].ItemID

	_, err = h.facade.NextItem(context.Background(), out.SessionID)
	require.NoError(t, err)
	require.NoError(t, h.facade.RevealAnswer(context.Background(), out.SessionID, itemID))

	_, err = h.facade.Judge(context.Background(), JudgeInput{SessionID: out.SessionID, ItemID: itemID, IsCorrect: true, ResponseTimeMs: 1000})
	require.NoError(t, err)

	// Session is now Completed (single item), so a second judge call fails
	// at loadInProgress rather than reaching the AlreadyJudged state error.
	_, err = h.facade.Judge(context.Background(), JudgeInput{SessionID: out.SessionID, ItemID: itemID, IsCorrect: true, ResponseTimeMs: 1000})
	require.Error(t, err)
	assert.Equal(t, scheduler.KindInvalidState, scheduler.KindOf(err))
}

func TestFacade_AbandonSession(t *testing.T) {
	h := newHarness(3)
	userID := uuid.New()

	out, err := h.facade.StartSession(context.Background(), StartSessionInput{UserID: userID, ItemCount: 2})
	require.NoError(t, err)

	require.NoError(t, h.facade.AbandonSession(context.Background(), out.SessionID, session.AbandonReasonUserRequested))
	assert.Equal(t, 1, h.sink.typeCounts()[events.TypeSessionAbandoned])

	// User should now be able to start a new session.
	_, err = h.facade.StartSession(context.Background(), StartSessionInput{UserID: userID, ItemCount: 2})
	require.NoError(t, err)
}

func TestFacade_CompleteSession(t *testing.T) {
	h := newHarness(3)
	userID := uuid.New()

	out, err := h.facade.StartSession(context.Background(), StartSessionInput{UserID: userID, ItemCount: 2})
	require.NoError(t, err)

	require.NoError(t, h.facade.CompleteSession(context.Background(), out.SessionID))
	assert.Equal(t, 1, h.sink.typeCounts()[events.TypeSessionCompleted])
}

func TestFacade_GetDueItems(t *testing.T) {
	h := newHarness(3)
	userID := uuid.New()
	h.records.due = []*scheduler.ItemLearningRecord{
		{UserID: userID, ItemID: uuid.New(), Status: scheduler.StatusReview},
	}

	records, err := h.facade.GetDueItems(context.Background(), userID, 10, nil)
	require.NoError(t, err)
	assert.Len(t, records, 1)
}

// TestFacade_GetDueItems_OrdersByOverdueDaysThenPriority verifies the
// dashboard read applies §4.A's (overdue_days desc, priority desc)
// ordering rather than relying solely on the store's next_review_date sort.
func TestFacade_GetDueItems_OrdersByOverdueDaysThenPriority(t *testing.T) {
	h := newHarness(3)
	userID := uuid.New()
	asOf := h.clock.Now()

	lessOverdueButHighPriority := &scheduler.ItemLearningRecord{
		UserID: userID, ItemID: uuid.New(), Status: scheduler.StatusReview,
		NextReviewDate: asOf.Add(-24 * time.Hour), // 1 day overdue
		EasinessFactor: 1.3,                       // low EF -> high priority
		TotalReviews:   10, CorrectCount: 2,        // high error rate
	}
	mostOverdue := &scheduler.ItemLearningRecord{
		UserID: userID, ItemID: uuid.New(), Status: scheduler.StatusReview,
		NextReviewDate: asOf.Add(-72 * time.Hour), // 3 days overdue
		EasinessFactor: 2.5,
		TotalReviews:   10, CorrectCount: 10,
	}
	tiedLowPriority := &scheduler.ItemLearningRecord{
		UserID: userID, ItemID: uuid.New(), Status: scheduler.StatusReview,
		NextReviewDate: asOf.Add(-24 * time.Hour), // same overdue_days as the first
		EasinessFactor: 2.5,
		TotalReviews:   10, CorrectCount: 10,
	}
	// Deliberately out of priority order, matching a bare next_review_date
	// ASC store ordering where both 1-day-overdue records tie.
	h.records.due = []*scheduler.ItemLearningRecord{tiedLowPriority, lessOverdueButHighPriority, mostOverdue}

	records, err := h.facade.GetDueItems(context.Background(), userID, 10, &asOf)
	require.NoError(t, err)
	require.Len(t, records, 3)
	assert.Equal(t, mostOverdue.ItemID, records[0].ItemID, "most overdue must sort first regardless of priority")
	assert.Equal(t, lessOverdueButHighPriority.ItemID, records[1].ItemID, "within a tied overdue_days, higher priority must sort first")
	assert.Equal(t, tiedLowPriority.ItemID, records[2].ItemID)
}

func TestFacade_GetActiveSession_NoneReturnsNil(t *testing.T) {
	h := newHarness(3)
	sess, err := h.facade.GetActiveSession(context.Background(), uuid.New())
	require.NoError(t, err)
	assert.Nil(t, sess)
}
