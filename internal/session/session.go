package session

import (
	"time"

	"github.com/google/uuid"
)

// Status is the lifecycle state of a LearningSession (spec §3/§4.F).
type Status string

const (
	StatusNotStarted Status = "NotStarted"
	StatusInProgress Status = "InProgress"
	StatusCompleted  Status = "Completed"
	StatusAbandoned  Status = "Abandoned"
)

// RevealTrigger records why an item's answer was revealed.
type RevealTrigger string

const (
	RevealUserRequested RevealTrigger = "UserRequested"
	RevealTimeLimit     RevealTrigger = "TimeLimit"
)

// Judgment is the outcome recorded for an item.
type Judgment string

const (
	JudgmentAutoConfirmed         Judgment = "AutoConfirmed"
	JudgmentUserConfirmedCorrect  Judgment = "UserConfirmedCorrect"
	JudgmentUserConfirmedIncorrect Judgment = "UserConfirmedIncorrect"
)

// AbandonReason explains why a session ended without completing.
type AbandonReason string

const (
	AbandonReasonUserRequested AbandonReason = "UserRequested"
	AbandonReasonTimedOut      AbandonReason = "TimedOut"
)

// SessionItem is the value object inside a session tracking one item's
// presentation lifecycle (spec §3).
type SessionItem struct {
	ItemID     uuid.UUID
	OrderIndex int

	PresentedAt      *time.Time
	AnswerRevealedAt *time.Time
	JudgedAt         *time.Time

	RevealTrigger RevealTrigger
	Judgment      Judgment

	ResponseTimeMs uint32
}

// TimeToRevealMs is the derived present->reveal latency, 0 if not yet revealed.
func (i *SessionItem) TimeToRevealMs() uint32 {
	if i.PresentedAt == nil || i.AnswerRevealedAt == nil {
		return 0
	}
	return uint32(i.AnswerRevealedAt.Sub(*i.PresentedAt).Milliseconds())
}

// TimeToJudgeMs is the derived present->judge latency, 0 if not yet judged.
func (i *SessionItem) TimeToJudgeMs() uint32 {
	if i.PresentedAt == nil || i.JudgedAt == nil {
		return 0
	}
	return uint32(i.JudgedAt.Sub(*i.PresentedAt).Milliseconds())
}

func (i *SessionItem) isPresented() bool { return i.PresentedAt != nil }
func (i *SessionItem) isRevealed() bool  { return i.AnswerRevealedAt != nil }
func (i *SessionItem) isJudged() bool    { return i.JudgedAt != nil }

// Config is the per-session configuration supplied at start_session time
// (spec §3).
type Config struct {
	ItemCount  int
	Strategy   string
	TimeLimit  *time.Duration
	HSKLevel   *int
}

// Session is the short-lived LearningSession aggregate (component F, spec
// §3/§4.F). Mutated only through its methods, which enforce the state
// machine's preconditions; persistence is the caller's responsibility via
// Store.
type Session struct {
	SessionID uuid.UUID
	UserID    uuid.UUID
	StartedAt time.Time
	EndedAt   *time.Time

	Status Status
	Items  []SessionItem

	CurrentIndex int
	Config       Config

	Version int64
}

// New creates a NotStarted session for the given item batch. The caller
// (orchestrator) is responsible for having already selected the items via
// the Item Selector (component D).
func New(sessionID, userID uuid.UUID, itemIDs []uuid.UUID, cfg Config, now time.Time) *Session {
	items := make([]SessionItem, len(itemIDs))
	for i, id := range itemIDs {
		items[i] = SessionItem{ItemID: id, OrderIndex: i}
	}
	return &Session{
		SessionID: sessionID,
		UserID:    userID,
		StartedAt: now,
		Status:    StatusNotStarted,
		Items:     items,
		Config:    cfg,
		Version:   1,
	}
}

// Start transitions NotStarted -> InProgress.
func (s *Session) Start() error {
	if s.Status != StatusNotStarted {
		return invalidState(s.Status, "start")
	}
	s.Status = StatusInProgress
	return nil
}

// current returns a pointer to the item at CurrentIndex, or nil if the
// session has no more items.
func (s *Session) current() *SessionItem {
	if s.CurrentIndex >= len(s.Items) {
		return nil
	}
	return &s.Items[s.CurrentIndex]
}

// Current returns the item the caller should currently interact with, or
// a StateError of kind KindNoMoreItems once the batch is exhausted while the
// session is still InProgress.
func (s *Session) Current() (*SessionItem, error) {
	if s.Status != StatusInProgress {
		return nil, invalidState(s.Status, "next_item")
	}
	item := s.current()
	if item == nil {
		return nil, &StateError{Kind: KindNoMoreItems, CurrentState: string(s.Status), Action: "next_item"}
	}
	return item, nil
}

// Present records that the current item was shown to the user. Per spec
// §4.F this requires the previous item (if any) to already carry a
// judgment — present does not itself advance CurrentIndex; Judge does.
func (s *Session) Present(now time.Time) (*SessionItem, error) {
	if s.Status != StatusInProgress {
		return nil, invalidState(s.Status, "present")
	}
	item := s.current()
	if item == nil {
		return nil, &StateError{Kind: KindNoMoreItems, CurrentState: string(s.Status), Action: "present"}
	}
	if s.CurrentIndex > 0 {
		prev := &s.Items[s.CurrentIndex-1]
		if !prev.isJudged() {
			return nil, invalidState(s.Status, "present")
		}
	}
	if item.isPresented() {
		return item, nil // idempotent re-presentation of the same item
	}
	t := now
	item.PresentedAt = &t
	return item, nil
}

// Reveal records the answer being shown for the current item, either because
// the user asked for it or because the reveal timer elapsed.
func (s *Session) Reveal(trigger RevealTrigger, now time.Time) (*SessionItem, error) {
	if s.Status != StatusInProgress {
		return nil, invalidState(s.Status, "reveal")
	}
	item := s.current()
	if item == nil {
		return nil, &StateError{Kind: KindNoMoreItems, CurrentState: string(s.Status), Action: "reveal"}
	}
	if !item.isPresented() {
		return nil, invalidState(s.Status, "reveal")
	}
	if item.isRevealed() {
		return nil, invalidState(s.Status, "reveal")
	}
	t := now
	item.AnswerRevealedAt = &t
	item.RevealTrigger = trigger
	return item, nil
}

// Judge records the user's (or the timer's) judgment for the current item
// and advances CurrentIndex. First writer wins: re-judging an already-judged
// item returns a StateError of kind KindAlreadyJudged rather than silently
// overwriting it (spec
// §4.G / §8 property 8).
func (s *Session) Judge(judgment Judgment, responseTimeMs uint32, now time.Time) (*SessionItem, error) {
	if s.Status != StatusInProgress {
		return nil, invalidState(s.Status, "judge")
	}
	item := s.current()
	if item == nil {
		return nil, &StateError{Kind: KindNoMoreItems, CurrentState: string(s.Status), Action: "judge"}
	}
	if !item.isRevealed() {
		return nil, invalidState(s.Status, "judge")
	}
	if item.isJudged() {
		return nil, &StateError{Kind: KindAlreadyJudged, CurrentState: string(s.Status), Action: "judge"}
	}

	t := now
	item.JudgedAt = &t
	item.Judgment = judgment
	item.ResponseTimeMs = responseTimeMs

	s.CurrentIndex++
	if s.CurrentIndex >= len(s.Items) {
		s.complete(now)
	}
	return item, nil
}

// complete marks the session Completed. Unexported: completion on natural
// exhaustion happens inside Judge; explicit early completion goes through
// Complete.
func (s *Session) complete(now time.Time) {
	s.Status = StatusCompleted
	t := now
	s.EndedAt = &t
}

// Complete ends the session early (caller-initiated), regardless of whether
// every item has been judged.
func (s *Session) Complete(now time.Time) error {
	if s.Status != StatusInProgress {
		return invalidState(s.Status, "complete")
	}
	s.complete(now)
	return nil
}

// Abandon ends the session without completing it (caller request or TTL
// sweep).
func (s *Session) Abandon(reason AbandonReason, now time.Time) error {
	if s.Status != StatusInProgress && s.Status != StatusNotStarted {
		return invalidState(s.Status, "abandon")
	}
	s.Status = StatusAbandoned
	t := now
	s.EndedAt = &t
	return nil
}

// IsTerminal reports whether the session rejects further mutation.
func (s *Session) IsTerminal() bool {
	return s.Status == StatusCompleted || s.Status == StatusAbandoned
}

// CorrectCount counts items judged as correct (UserConfirmedCorrect or
// AutoConfirmed, which defaults to "correct" per spec §4.C/§9).
func (s *Session) CorrectCount() int {
	n := 0
	for _, item := range s.Items {
		if item.Judgment == JudgmentUserConfirmedCorrect || item.Judgment == JudgmentAutoConfirmed {
			n++
		}
	}
	return n
}
