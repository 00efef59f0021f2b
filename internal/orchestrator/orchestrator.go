package orchestrator

import (
	"context"
	"sort"
	"time"

	"chinese-srs/internal/events"
	"chinese-srs/internal/scheduler"
	"chinese-srs/internal/session"

	"github.com/google/uuid"
)

// ItemDetails is the read-only collaborator surface from a vocabulary
// source (spec §6: "Vocabulary source: get_item_details(item_ids[]) ->
// map<item_id, details>").
type ItemDetails struct {
	ItemID  uuid.UUID
	Chinese string
	Pinyin  string
	English string
}

// ItemSource abstracts the vocabulary collaborator so the orchestrator
// never imports internal/models directly (keeps scheduling logic
// independent of any one content domain, per spec §9).
type ItemSource interface {
	GetItemDetails(ctx context.Context, itemIDs []uuid.UUID) (map[uuid.UUID]ItemDetails, error)
	CandidateItemIDs(ctx context.Context, hskLevel *int) ([]uuid.UUID, error)
}

// ReviewLog is the append-only history backing the Performance Analyzer.
type ReviewLog interface {
	Append(ctx context.Context, outcome scheduler.ReviewOutcome) error
}

// Facade implements component K (Orchestrator/API facade, spec §4.K): it
// composes components A-J with no scheduling logic of its own.
type Facade struct {
	records    scheduler.Store
	sessions   session.Store
	items      ItemSource
	reviews    ReviewLog
	analyzer   *scheduler.Analyzer
	emitter    *events.Emitter
	timers     *session.TimerCoordinator
	clock      scheduler.Clock
	selection  scheduler.SelectionConfig
	grader     scheduler.GraderConfig
	maxRetries int
}

// Config bundles the Facade's collaborators and tunables (from
// config.SchedulerConfig).
type Config struct {
	Records    scheduler.Store
	Sessions   session.Store
	Items      ItemSource
	Reviews    ReviewLog
	Analyzer   *scheduler.Analyzer
	Emitter    *events.Emitter
	Clock      scheduler.Clock
	NewRatio   float64
	OverdueCap float64
	RevealTimeout time.Duration
	AutoConfirmQuality int
}

// New builds a Facade and wires its internal reveal-timer coordinator.
func New(cfg Config) *Facade {
	if cfg.Clock == nil {
		cfg.Clock = scheduler.RealClock{}
	}
	aq := cfg.AutoConfirmQuality
	f := &Facade{
		records:  cfg.Records,
		sessions: cfg.Sessions,
		items:    cfg.Items,
		reviews:  cfg.Reviews,
		analyzer: cfg.Analyzer,
		emitter:  cfg.Emitter,
		clock:    cfg.Clock,
		selection: scheduler.SelectionConfig{
			Strategy:        scheduler.DefaultStrategy,
			NewRatio:        cfg.NewRatio,
			OverdueCapRatio: cfg.OverdueCap,
		},
		grader:     scheduler.GraderConfig{AutoConfirmQuality: &aq},
		maxRetries: 3,
	}
	f.timers = session.NewTimerCoordinator(cfg.RevealTimeout, f.handleTimerFired)
	return f
}

// StartSessionInput is the start_session request (spec §6).
type StartSessionInput struct {
	UserID    uuid.UUID
	ItemCount int
	Strategy  string
	TimeLimit *time.Duration
	HSKLevel  *int
}

// StartSessionOutput is start_session's response.
type StartSessionOutput struct {
	SessionID uuid.UUID
	Items     []ItemDetails
}

// StartSession implements start_session (spec §6).
func (f *Facade) StartSession(ctx context.Context, in StartSessionInput) (*StartSessionOutput, error) {
	if in.ItemCount < 1 || in.ItemCount > 100 {
		return nil, scheduler.NewError(scheduler.KindInvalidInput, "item_count must be in [1,100]", nil)
	}

	if active, err := f.sessions.GetActiveForUser(ctx, in.UserID); err == nil && active != nil && !active.IsTerminal() {
		return nil, scheduler.NewError(scheduler.KindSessionAlreadyActive, "user already has an active session", map[string]interface{}{
			"session_id": active.SessionID,
		})
	}

	now := f.clock.Now()

	analysis, err := f.analyzer.Analyze(ctx, in.UserID)
	recentAccuracy := 1.0
	if err == nil {
		recentAccuracy = analysis.RecentAccuracy
	}

	candidateIDs, err := f.items.CandidateItemIDs(ctx, in.HSKLevel)
	if err != nil {
		return nil, scheduler.Wrap(scheduler.KindUnavailable, "failed to load candidate items", err)
	}

	selCfg := f.selection
	selCfg.ItemCount = in.ItemCount
	itemIDs, err := scheduler.Select(ctx, f.records, in.UserID, now, candidateIDs, selCfg, recentAccuracy)
	if err != nil {
		return nil, err
	}

	strategy := in.Strategy
	if strategy == "" {
		strategy = string(scheduler.DefaultStrategy)
	}

	sessionID := uuid.New()
	cfg := session.Config{ItemCount: len(itemIDs), Strategy: strategy, TimeLimit: in.TimeLimit, HSKLevel: in.HSKLevel}
	sess := session.New(sessionID, in.UserID, itemIDs, cfg, now)
	if err := sess.Start(); err != nil {
		return nil, err
	}

	if err := f.sessions.Save(ctx, sess); err != nil {
		if err == session.ErrAlreadyActive {
			return nil, scheduler.NewError(scheduler.KindSessionAlreadyActive, "user already has an active session", nil)
		}
		return nil, scheduler.Wrap(scheduler.KindUnavailable, "failed to save session", err)
	}

	details, err := f.items.GetItemDetails(ctx, itemIDs)
	if err != nil {
		return nil, scheduler.Wrap(scheduler.KindUnavailable, "failed to load item details", err)
	}

	ordered := make([]ItemDetails, 0, len(itemIDs))
	for _, id := range itemIDs {
		if d, ok := details[id]; ok {
			ordered = append(ordered, d)
		}
	}

	f.emitter.Emit(ctx, events.Event{
		Type:     events.TypeSessionStarted,
		StreamID: sessionID.String(),
		At:       now,
		Payload: events.SessionStarted{
			SessionID: sessionID, UserID: in.UserID, ItemCount: len(itemIDs), Strategy: strategy, At: now,
		},
	})

	return &StartSessionOutput{SessionID: sessionID, Items: ordered}, nil
}

// GetActiveSession implements get_active_session (spec §6).
func (f *Facade) GetActiveSession(ctx context.Context, userID uuid.UUID) (*session.Session, error) {
	sess, err := f.sessions.GetActiveForUser(ctx, userID)
	if err == session.ErrNotFound {
		return nil, nil
	}
	if err != nil {
		return nil, scheduler.Wrap(scheduler.KindUnavailable, "failed to load active session", err)
	}
	return sess, nil
}

// NextItem implements next_item (spec §6): returns an item_snapshot and
// presents it (starting its reveal timer), matching the "present" phase of
// §4.F.
func (f *Facade) NextItem(ctx context.Context, sessionID uuid.UUID) (*session.SessionItem, error) {
	sess, err := f.loadInProgress(ctx, sessionID)
	if err != nil {
		return nil, err
	}

	now := f.clock.Now()
	item, err := sess.Present(now)
	if err != nil {
		return nil, err
	}

	if err := f.sessions.Update(ctx, sess, sess.Version); err != nil {
		return nil, f.mapSessionErr(err)
	}

	f.timers.Start(ctx, sessionID, item.ItemID)

	f.emitter.Emit(ctx, events.Event{
		Type: events.TypeItemPresented, StreamID: sessionID.String(), At: now,
		Payload: events.ItemPresented{SessionID: sessionID, ItemID: item.ItemID, OrderIndex: item.OrderIndex, At: now},
	})

	return item, nil
}

// RevealAnswer implements reveal_answer (spec §6).
func (f *Facade) RevealAnswer(ctx context.Context, sessionID, itemID uuid.UUID) error {
	sess, err := f.loadInProgress(ctx, sessionID)
	if err != nil {
		return err
	}

	now := f.clock.Now()
	_, err = sess.Reveal(session.RevealUserRequested, now)
	if err != nil {
		return err
	}

	if err := f.sessions.Update(ctx, sess, sess.Version); err != nil {
		return f.mapSessionErr(err)
	}

	f.emitter.Emit(ctx, events.Event{
		Type: events.TypeAnswerRevealed, StreamID: sessionID.String(), At: now,
		Payload: events.AnswerRevealed{SessionID: sessionID, ItemID: itemID, Trigger: string(session.RevealUserRequested), At: now},
	})
	return nil
}

// JudgeInput is the judge() request (spec §6).
type JudgeInput struct {
	SessionID      uuid.UUID
	ItemID         uuid.UUID
	IsCorrect      bool
	NearMiss       bool
	ResponseTimeMs uint32
}

// JudgeOutput carries the updated SM-2 state (spec §6 "updated_stats").
type JudgeOutput struct {
	Quality        int
	EasinessFactor float64
	IntervalDays   int
	NextReviewDate time.Time
}

// Judge implements judge() (spec §6): grades the response, applies
// judgment to the session, runs the SM-2 transition against the record
// store with retry-on-conflict, and emits the full event set.
func (f *Facade) Judge(ctx context.Context, in JudgeInput) (*JudgeOutput, error) {
	sess, err := f.loadInProgress(ctx, in.SessionID)
	if err != nil {
		return nil, err
	}

	quality := scheduler.GradeQuality(in.IsCorrect, in.ResponseTimeMs, in.NearMiss)
	judgment := session.JudgmentUserConfirmedIncorrect
	if in.IsCorrect {
		judgment = session.JudgmentUserConfirmedCorrect
	}

	return f.applyJudgment(ctx, sess, in.ItemID, judgment, quality, in.ResponseTimeMs)
}

// handleTimerFired is the session.JudgeFunc invoked when a reveal timer
// elapses with no user judgment. Per spec §4.G the server-authoritative
// timeout is "reveal(TimeLimit) then judge(AutoConfirmed)" — the item was
// only presented, never revealed, so it must be revealed here before it can
// be judged.
func (f *Facade) handleTimerFired(ctx context.Context, sessionID, itemID uuid.UUID) error {
	sess, err := f.sessions.Get(ctx, sessionID)
	if err != nil {
		return nil // session gone; nothing to auto-judge
	}
	if sess.IsTerminal() {
		return nil
	}

	now := f.clock.Now()
	item, err := sess.Current()
	if err != nil || item == nil || item.ItemID != itemID {
		return nil // item no longer current; user must have already judged it
	}

	if item.AnswerRevealedAt == nil {
		if _, err := sess.Reveal(session.RevealTimeLimit, now); err != nil {
			return nil // user revealed/judged concurrently; nothing to do
		}
		if err := f.sessions.Update(ctx, sess, sess.Version); err != nil {
			return f.mapSessionErr(err)
		}
		f.emitter.Emit(ctx, events.Event{
			Type: events.TypeAnswerRevealed, StreamID: sessionID.String(), At: now,
			Payload: events.AnswerRevealed{SessionID: sessionID, ItemID: itemID, Trigger: string(session.RevealTimeLimit), At: now},
		})
	}

	quality := scheduler.GradeAutoConfirmed(f.grader)
	_, err = f.applyJudgment(ctx, sess, itemID, session.JudgmentAutoConfirmed, quality, 0)
	return err
}

func (f *Facade) applyJudgment(ctx context.Context, sess *session.Session, itemID uuid.UUID, judgment session.Judgment, quality int, responseTimeMs uint32) (*JudgeOutput, error) {
	now := f.clock.Now()

	if _, err := sess.Judge(judgment, responseTimeMs, now); err != nil {
		return nil, err
	}
	f.timers.Cancel(sess.SessionID, itemID)

	if err := f.sessions.Update(ctx, sess, sess.Version); err != nil {
		if err == session.ErrVersionConflict {
			if reloaded, rerr := f.sessions.Get(ctx, sess.SessionID); rerr == nil {
				for i := range reloaded.Items {
					if reloaded.Items[i].ItemID == itemID && reloaded.Items[i].JudgedAt != nil {
						return nil, &session.StateError{Kind: session.KindAlreadyJudged, CurrentState: string(reloaded.Status), Action: "judge"}
					}
				}
			}
		}
		return nil, f.mapSessionErr(err)
	}

	f.emitter.Emit(ctx, events.Event{
		Type: events.TypeCorrectnessJudged, StreamID: sess.SessionID.String(), At: now,
		Payload: events.CorrectnessJudged{
			SessionID: sess.SessionID, ItemID: itemID, Judgment: string(judgment), ResponseTimeMs: responseTimeMs, At: now,
		},
	})

	out, err := f.recordReview(ctx, sess.UserID, itemID, quality, responseTimeMs, now)
	if err != nil {
		return nil, err
	}

	if sess.IsTerminal() {
		f.timers.CancelSession(sess.SessionID)
		f.emitter.Emit(ctx, events.Event{
			Type: events.TypeSessionCompleted, StreamID: sess.SessionID.String(), At: now,
			Payload: events.SessionCompleted{SessionID: sess.SessionID, TotalItems: len(sess.Items), CorrectCount: sess.CorrectCount(), At: now},
		})
	}

	return out, nil
}

// recordReview applies the SM-2 transition against the record store, with
// retry-on-conflict up to 3 times per spec §5/§7, then emits ReviewRecorded
// and ReviewScheduled.
func (f *Facade) recordReview(ctx context.Context, userID, itemID uuid.UUID, quality int, responseTimeMs uint32, now time.Time) (*JudgeOutput, error) {
	var lastErr error
	for attempt := 0; attempt < f.maxRetries; attempt++ {
		record, err := f.records.Get(ctx, userID, itemID)
		expectedVersion := int64(0)
		if err != nil && scheduler.KindOf(err) != scheduler.KindNotFound {
			return nil, scheduler.Wrap(scheduler.KindUnavailable, "failed to load record", err)
		}
		if record == nil {
			record = scheduler.NewRecord(userID, itemID, now)
			expectedVersion = 0
		} else {
			expectedVersion = record.Version
		}

		oldStatus := record.DerivedStatus(now)

		sm2 := scheduler.CalculateSM2(scheduler.SM2Input{
			Quality:         quality,
			EasinessFactor:  record.EasinessFactor,
			RepetitionCount: record.RepetitionCount,
			IntervalDays:    record.IntervalDays,
		}, now)

		record.EasinessFactor = sm2.EasinessFactor
		record.RepetitionCount = sm2.RepetitionCount
		record.IntervalDays = sm2.IntervalDays
		record.NextReviewDate = sm2.NextReviewDate
		record.Status = scheduler.StatusFromReps(sm2.RepetitionCount)
		record.ApplyOutcome(quality, responseTimeMs, now)

		updated, err := f.records.Upsert(ctx, record, expectedVersion)
		if err != nil {
			if scheduler.KindOf(err) == scheduler.KindVersionConflict {
				lastErr = err
				continue
			}
			return nil, scheduler.Wrap(scheduler.KindUnavailable, "failed to upsert record", err)
		}

		if f.reviews != nil {
			_ = f.reviews.Append(ctx, scheduler.ReviewOutcome{
				UserID: userID, ItemID: itemID, Quality: quality, ResponseTimeMs: responseTimeMs, At: now,
			})
		}

		f.emitter.Emit(ctx,
			events.Event{
				Type: events.TypeReviewRecorded, StreamID: userID.String(), At: now,
				Payload: events.ReviewRecorded{UserID: userID, ItemID: itemID, Quality: quality, ResponseTimeMs: responseTimeMs, At: now},
			},
			events.Event{
				Type: events.TypeReviewScheduled, StreamID: userID.String(), At: now,
				Payload: events.ReviewScheduled{
					UserID: userID, ItemID: itemID, NextReviewDate: updated.NextReviewDate,
					IntervalDays: updated.IntervalDays, EasinessFactor: updated.EasinessFactor, At: now,
				},
			},
		)

		if newStatus := updated.DerivedStatus(now); newStatus != oldStatus {
			f.emitter.Emit(ctx, events.Event{
				Type: events.TypeItemMasteryUpdated, StreamID: userID.String(), At: now,
				Payload: events.ItemMasteryUpdated{
					UserID: userID, ItemID: itemID, OldStatus: string(oldStatus), NewStatus: string(newStatus), At: now,
				},
			})
		}

		return &JudgeOutput{
			Quality: quality, EasinessFactor: updated.EasinessFactor,
			IntervalDays: updated.IntervalDays, NextReviewDate: updated.NextReviewDate,
		}, nil
	}

	return nil, scheduler.Wrap(scheduler.KindVersionConflict, "exhausted retries on version conflict", lastErr)
}

// CompleteSession implements complete_session (spec §6).
func (f *Facade) CompleteSession(ctx context.Context, sessionID uuid.UUID) error {
	sess, err := f.loadInProgress(ctx, sessionID)
	if err != nil {
		return err
	}

	now := f.clock.Now()
	if err := sess.Complete(now); err != nil {
		return err
	}
	if err := f.sessions.Update(ctx, sess, sess.Version); err != nil {
		return f.mapSessionErr(err)
	}
	f.timers.CancelSession(sessionID)

	f.emitter.Emit(ctx, events.Event{
		Type: events.TypeSessionCompleted, StreamID: sessionID.String(), At: now,
		Payload: events.SessionCompleted{SessionID: sessionID, TotalItems: len(sess.Items), CorrectCount: sess.CorrectCount(), At: now},
	})
	return nil
}

// AbandonSession implements abandon_session (spec §6).
func (f *Facade) AbandonSession(ctx context.Context, sessionID uuid.UUID, reason session.AbandonReason) error {
	sess, err := f.sessions.Get(ctx, sessionID)
	if err != nil {
		if err == session.ErrNotFound {
			return scheduler.NewError(scheduler.KindNotFound, "session not found", nil)
		}
		return scheduler.Wrap(scheduler.KindUnavailable, "failed to load session", err)
	}

	now := f.clock.Now()
	if err := sess.Abandon(reason, now); err != nil {
		return err
	}
	if err := f.sessions.Update(ctx, sess, sess.Version); err != nil {
		return f.mapSessionErr(err)
	}
	f.timers.CancelSession(sessionID)

	f.emitter.Emit(ctx, events.Event{
		Type: events.TypeSessionAbandoned, StreamID: sessionID.String(), At: now,
		Payload: events.SessionAbandoned{SessionID: sessionID, Reason: string(reason), At: now},
	})
	return nil
}

// SweepExpiredSessions implements the periodic TTL sweep job described in
// spec §4.H: any active session whose last activity exceeds the session
// TTL is abandoned with reason TimedOut. sessionTTL is the same duration
// passed to session.NewRedisStore; the sweep is defense-in-depth for
// sessions Redis hasn't expired yet but that have gone stale past the
// threshold (e.g. a server that missed firing a reveal timer).
func (f *Facade) SweepExpiredSessions(ctx context.Context, sessionTTL time.Duration) error {
	lister, ok := f.sessions.(session.ActiveLister)
	if !ok {
		return nil // Store implementation doesn't support listing; nothing to sweep
	}

	active, err := lister.ListActive(ctx)
	if err != nil {
		return scheduler.Wrap(scheduler.KindUnavailable, "failed to list active sessions", err)
	}

	now := f.clock.Now()
	for _, sess := range active {
		lastActivity := sess.StartedAt
		for _, item := range sess.Items {
			for _, t := range []*time.Time{item.PresentedAt, item.AnswerRevealedAt, item.JudgedAt} {
				if t != nil && t.After(lastActivity) {
					lastActivity = *t
				}
			}
		}
		if now.Sub(lastActivity) <= sessionTTL {
			continue
		}
		if err := sess.Abandon(session.AbandonReasonTimedOut, now); err != nil {
			continue // already terminal; nothing to do
		}
		if err := f.sessions.Update(ctx, sess, sess.Version); err != nil {
			continue
		}
		f.timers.CancelSession(sess.SessionID)
		f.emitter.Emit(ctx, events.Event{
			Type: events.TypeSessionAbandoned, StreamID: sess.SessionID.String(), At: now,
			Payload: events.SessionAbandoned{SessionID: sess.SessionID, Reason: string(session.AbandonReasonTimedOut), At: now},
		})
	}
	return nil
}

// DrainOutbox redelivers undispatched events to subscribers (spec §5's
// "retry asynchronously"), for a periodic background job to call alongside
// SweepExpiredSessions.
func (f *Facade) DrainOutbox(ctx context.Context, store events.OutboxStore, batchSize int, since time.Time) error {
	return f.emitter.Drain(ctx, store, batchSize, since)
}

// GetDueItems implements get_due_items (spec §6): read-only calendar/
// dashboard query, bypassing session/selection machinery entirely.
func (f *Facade) GetDueItems(ctx context.Context, userID uuid.UUID, limit int, asOf *time.Time) ([]*scheduler.ItemLearningRecord, error) {
	at := f.clock.Now()
	if asOf != nil {
		at = *asOf
	}
	records, err := f.records.QueryDue(ctx, userID, at, limit, nil)
	if err != nil {
		return nil, scheduler.Wrap(scheduler.KindUnavailable, "failed to query due items", err)
	}

	// QueryDue only orders by next_review_date; apply §4.A's secondary
	// priority sort here so the dashboard read matches session selection's
	// (overdue_days desc, priority desc) ordering.
	sort.SliceStable(records, func(i, j int) bool {
		oi, oj := records[i].OverdueDays(at), records[j].OverdueDays(at)
		if oi != oj {
			return oi > oj
		}
		return duePriority(records[i], at) > duePriority(records[j], at)
	})

	return records, nil
}

// duePriority scores a record the way scheduler's session-selection priority
// formula does (spec §4.D rule 2), without the difficulty-band bias that
// only applies inside an active selection: w1*overdue_days + w2*(1/ef) +
// w3*recent_error_rate.
func duePriority(r *scheduler.ItemLearningRecord, asOf time.Time) float64 {
	const w1, w2, w3 = 1.0, 2.0, 1.0

	overdue := float64(r.OverdueDays(asOf))
	invEF := 0.0
	if r.EasinessFactor > 0 {
		invEF = 1.0 / r.EasinessFactor
	}
	errorRate := 0.0
	if r.TotalReviews > 0 {
		errorRate = 1.0 - float64(r.CorrectCount)/float64(r.TotalReviews)
	}

	return w1*overdue + w2*invEF + w3*errorRate
}

func (f *Facade) loadInProgress(ctx context.Context, sessionID uuid.UUID) (*session.Session, error) {
	sess, err := f.sessions.Get(ctx, sessionID)
	if err != nil {
		if err == session.ErrNotFound {
			return nil, scheduler.NewError(scheduler.KindNotFound, "session not found", nil)
		}
		return nil, scheduler.Wrap(scheduler.KindUnavailable, "failed to load session", err)
	}
	if sess.Status != session.StatusInProgress {
		return nil, scheduler.NewError(scheduler.KindInvalidState, "session not in progress", map[string]interface{}{
			"current_state": sess.Status,
		})
	}
	return sess, nil
}

func (f *Facade) mapSessionErr(err error) error {
	switch err {
	case session.ErrVersionConflict:
		return scheduler.NewError(scheduler.KindVersionConflict, "session version conflict", nil)
	case session.ErrAlreadyActive:
		return scheduler.NewError(scheduler.KindSessionAlreadyActive, "user already has an active session", nil)
	case session.ErrNotFound:
		return scheduler.NewError(scheduler.KindNotFound, "session not found", nil)
	default:
		return scheduler.Wrap(scheduler.KindUnavailable, "session store failure", err)
	}
}
