package session

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"
)

// RevealTimeout is the spec default reveal-timer deadline (§4.G, §9 Open
// Questions: "3 seconds, configurable").
const RevealTimeout = 3 * time.Second

// JudgeFunc is invoked by the timer when it fires with no prior user
// judgment. Implementations should call Session.Judge(JudgmentAutoConfirmed, ...)
// against the orchestrator's store and swallow IsAlreadyJudged races: the
// user may have judged the item in the small window between the timer
// firing and the goroutine acquiring its lock.
type JudgeFunc func(ctx context.Context, sessionID, itemID uuid.UUID) error

// TimerCoordinator manages one reveal-timer per (session, item) pair,
// implementing component G (spec §4.G). It never holds the session's own
// lock; AlreadyJudged races are resolved by the caller's JudgeFunc via the
// session's own first-writer-wins Judge method.
//
// Tests that need determinism call Start with a pre-expired timeout (e.g.
// 1ms) and synchronize on the onFire callback rather than faking the clock:
// time.AfterFunc has no fake-clock seam in the teacher's stack.
type TimerCoordinator struct {
	mu      sync.Mutex
	timers  map[string]*time.Timer
	timeout time.Duration
	onFire  JudgeFunc
}

// NewTimerCoordinator builds a coordinator with the given timeout and
// firing callback.
func NewTimerCoordinator(timeout time.Duration, onFire JudgeFunc) *TimerCoordinator {
	if timeout <= 0 {
		timeout = RevealTimeout
	}
	return &TimerCoordinator{
		timers:  make(map[string]*time.Timer),
		timeout: timeout,
		onFire:  onFire,
	}
}

func timerKey(sessionID, itemID uuid.UUID) string {
	return sessionID.String() + ":" + itemID.String()
}

// Start arms a reveal timer for (sessionID, itemID). If one is already
// armed for that pair it is replaced (Stop is called on the old timer
// first) — present() is idempotent per session.go, so re-arming on a
// duplicate present is harmless.
func (c *TimerCoordinator) Start(ctx context.Context, sessionID, itemID uuid.UUID) {
	key := timerKey(sessionID, itemID)

	c.mu.Lock()
	defer c.mu.Unlock()

	if existing, ok := c.timers[key]; ok {
		existing.Stop()
	}

	c.timers[key] = time.AfterFunc(c.timeout, func() {
		c.fire(ctx, sessionID, itemID, key)
	})
}

func (c *TimerCoordinator) fire(ctx context.Context, sessionID, itemID uuid.UUID, key string) {
	c.mu.Lock()
	delete(c.timers, key)
	c.mu.Unlock()

	if c.onFire == nil {
		return
	}
	if err := c.onFire(ctx, sessionID, itemID); err != nil {
		if IsAlreadyJudged(err) {
			return // user beat the timer; expected, not an error
		}
		log.Printf("⚠️ reveal timer callback failed for session=%s item=%s: %v", sessionID, itemID, err)
	}
}

// Cancel disarms the reveal timer for (sessionID, itemID), called when the
// user judges before the timer fires.
func (c *TimerCoordinator) Cancel(sessionID, itemID uuid.UUID) {
	key := timerKey(sessionID, itemID)

	c.mu.Lock()
	defer c.mu.Unlock()

	if t, ok := c.timers[key]; ok {
		t.Stop()
		delete(c.timers, key)
	}
}

// CancelSession disarms every timer belonging to a session (called on
// complete/abandon).
func (c *TimerCoordinator) CancelSession(sessionID uuid.UUID) {
	prefix := sessionID.String() + ":"

	c.mu.Lock()
	defer c.mu.Unlock()

	for key, t := range c.timers {
		if len(key) >= len(prefix) && key[:len(prefix)] == prefix {
			t.Stop()
			delete(c.timers, key)
		}
	}
}

// Pending reports how many timers are currently armed, for tests and
// diagnostics.
func (c *TimerCoordinator) Pending() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.timers)
}
