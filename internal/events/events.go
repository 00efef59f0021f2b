package events

import (
	"time"

	"github.com/google/uuid"
)

// Type tags the closed set of domain events the core emits (spec §4.I).
// Consumers switch on Type; there is no polymorphic event hierarchy.
type Type string

const (
	TypeSessionStarted      Type = "SessionStarted"
	TypeItemPresented       Type = "ItemPresented"
	TypeAnswerRevealed      Type = "AnswerRevealed"
	TypeCorrectnessJudged   Type = "CorrectnessJudged"
	TypeReviewRecorded      Type = "ReviewRecorded"
	TypeReviewScheduled     Type = "ReviewScheduled"
	TypeSessionCompleted    Type = "SessionCompleted"
	TypeItemMasteryUpdated  Type = "ItemMasteryUpdated"
	TypeSessionAbandoned    Type = "SessionAbandoned"
)

// Event is the envelope persisted to the outbox and handed to consumers.
// When emitted, Payload is the struct below matching Type; events read back
// from the outbox carry it as a JSON-decoded map[string]interface{}.
type Event struct {
	EventID   uuid.UUID
	Type      Type
	StreamID  string // session_id for session-scoped events, user_id otherwise
	At        time.Time
	Payload   interface{}
}

// SessionStarted is emitted once start_session succeeds.
type SessionStarted struct {
	SessionID uuid.UUID
	UserID    uuid.UUID
	ItemCount int
	Strategy  string
	At        time.Time
}

// ItemPresented is an internal/optional event per spec §4.I.
type ItemPresented struct {
	SessionID  uuid.UUID
	ItemID     uuid.UUID
	OrderIndex int
	At         time.Time
}

// AnswerRevealed is an internal/optional event per spec §4.I.
type AnswerRevealed struct {
	SessionID uuid.UUID
	ItemID    uuid.UUID
	Trigger   string
	At        time.Time
}

// CorrectnessJudged is emitted whenever judge() records an outcome.
type CorrectnessJudged struct {
	SessionID      uuid.UUID
	ItemID         uuid.UUID
	Judgment       string
	ResponseTimeMs uint32
	At             time.Time
}

// ReviewRecorded is emitted once per judged review, independent of the
// session it occurred in (feeds the mastery/streak projections).
type ReviewRecorded struct {
	UserID         uuid.UUID
	ItemID         uuid.UUID
	Quality        int
	ResponseTimeMs uint32
	At             time.Time
}

// ReviewScheduled carries the SM-2 output for the item's next exposure.
type ReviewScheduled struct {
	UserID       uuid.UUID
	ItemID       uuid.UUID
	NextReviewDate time.Time
	IntervalDays   int
	EasinessFactor float64
	At             time.Time
}

// SessionCompleted is emitted when a session reaches Completed.
type SessionCompleted struct {
	SessionID    uuid.UUID
	TotalItems   int
	CorrectCount int
	At           time.Time
}

// SessionAbandoned is emitted when a session is abandoned, including by the
// TTL sweep (spec §4.H).
type SessionAbandoned struct {
	SessionID uuid.UUID
	Reason    string
	At        time.Time
}

// ItemMasteryUpdated is emitted on a mastery-status threshold crossing
// (spec §4.J / supplemented features).
type ItemMasteryUpdated struct {
	UserID    uuid.UUID
	ItemID    uuid.UUID
	OldStatus string
	NewStatus string
	At        time.Time
}
