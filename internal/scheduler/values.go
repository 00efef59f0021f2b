package scheduler

import (
	"time"

	"github.com/google/uuid"
)

// Quality is the 0..5 grading of a single recall attempt (spec GLOSSARY).
type Quality int

// ReviewOutcome is the immutable fact of one graded review (spec §3).
type ReviewOutcome struct {
	UserID         uuid.UUID
	ItemID         uuid.UUID
	Quality        int
	ResponseTimeMs uint32
	At             time.Time
}

// Clock is the injected time source required by spec §9 ("The clock enters
// only at the orchestrator boundary via an injected source") so the
// calculator core and session aggregate stay deterministically testable.
type Clock interface {
	Now() time.Time
}

// RealClock is the production Clock backed by the system wall clock.
type RealClock struct{}

func (RealClock) Now() time.Time { return time.Now() }

// FixedClock is a test Clock that always returns a fixed instant unless
// advanced, matching the "deterministic clock source" requirement of
// spec §4.G.
type FixedClock struct {
	at time.Time
}

// NewFixedClock builds a FixedClock starting at t.
func NewFixedClock(t time.Time) *FixedClock {
	return &FixedClock{at: t}
}

func (c *FixedClock) Now() time.Time { return c.at }

// Advance moves the fixed clock forward by d.
func (c *FixedClock) Advance(d time.Duration) {
	c.at = c.at.Add(d)
}

// Set pins the fixed clock to t.
func (c *FixedClock) Set(t time.Time) {
	c.at = t
}
