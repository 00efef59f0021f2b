package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// ErrVersionConflict is returned by RedisStore.Update when the caller's
// expectedVersion does not match the stored version (optimistic
// concurrency, spec §5).
var ErrVersionConflict = errors.New("session: version conflict")

// ErrNotFound is returned when a session lookup misses.
var ErrNotFound = errors.New("session: not found")

// ErrAlreadyActive is returned by Save when a new session would violate the
// one-active-session-per-user constraint (spec §4.H / §5).
var ErrAlreadyActive = errors.New("session: user already has an active session")

// Store is the contract for component H (spec §4.H: save/load/delete/
// list_active_for_user), satisfied by RedisStore in production and an
// in-memory fake in tests.
type Store interface {
	Save(ctx context.Context, sess *Session) error
	Update(ctx context.Context, sess *Session, expectedVersion int64) error
	Get(ctx context.Context, sessionID uuid.UUID) (*Session, error)
	GetActiveForUser(ctx context.Context, userID uuid.UUID) (*Session, error)
	Delete(ctx context.Context, sessionID uuid.UUID) error
}

// ActiveLister is an optional capability of a Store (implemented by
// RedisStore) powering the TTL sweep job; kept separate from Store so a
// minimal in-memory fake doesn't need to implement a full keyspace scan.
type ActiveLister interface {
	ListActive(ctx context.Context) ([]*Session, error)
}

// record is the JSON wire shape persisted to Redis, decoupled from Session
// so renames/refactors of the in-memory struct don't silently change the
// storage format.
type record struct {
	SessionID    uuid.UUID     `json:"session_id"`
	UserID       uuid.UUID     `json:"user_id"`
	StartedAt    time.Time     `json:"started_at"`
	EndedAt      *time.Time    `json:"ended_at,omitempty"`
	Status       Status        `json:"status"`
	Items        []SessionItem `json:"items"`
	CurrentIndex int           `json:"current_index"`
	Config       Config        `json:"config"`
	Version      int64         `json:"version"`
}

func toRecord(s *Session) *record {
	return &record{
		SessionID:    s.SessionID,
		UserID:       s.UserID,
		StartedAt:    s.StartedAt,
		EndedAt:      s.EndedAt,
		Status:       s.Status,
		Items:        s.Items,
		CurrentIndex: s.CurrentIndex,
		Config:       s.Config,
		Version:      s.Version,
	}
}

func (r *record) toSession() *Session {
	return &Session{
		SessionID:    r.SessionID,
		UserID:       r.UserID,
		StartedAt:    r.StartedAt,
		EndedAt:      r.EndedAt,
		Status:       r.Status,
		Items:        r.Items,
		CurrentIndex: r.CurrentIndex,
		Config:       r.Config,
		Version:      r.Version,
	}
}

// RedisStore is the Redis-backed Session Store (component H, spec §4.H). It
// keys sessions by ID and maintains a secondary per-user pointer to enforce
// "at most one active session per user", mirroring the
// redis-as-ephemeral-state pattern the teacher uses for rate limiting.
type RedisStore struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisStore builds a RedisStore with the given TTL (spec default 2h,
// per config.SchedulerConfig.SessionTTL).
func NewRedisStore(client *redis.Client, ttl time.Duration) *RedisStore {
	if ttl <= 0 {
		ttl = 2 * time.Hour
	}
	return &RedisStore{client: client, ttl: ttl}
}

func sessionKey(id uuid.UUID) string {
	return fmt.Sprintf("session:%s", id.String())
}

func activeUserKey(userID uuid.UUID) string {
	return fmt.Sprintf("session:active_user:%s", userID.String())
}

// Save persists a new session, enforcing the one-active-session-per-user
// constraint via SETNX on the per-user pointer key.
func (s *RedisStore) Save(ctx context.Context, sess *Session) error {
	if sess.Status == StatusNotStarted || sess.Status == StatusInProgress {
		ok, err := s.client.SetNX(ctx, activeUserKey(sess.UserID), sess.SessionID.String(), s.ttl).Result()
		if err != nil {
			return fmt.Errorf("session: check active pointer: %w", err)
		}
		if !ok {
			existing, err := s.client.Get(ctx, activeUserKey(sess.UserID)).Result()
			if err == nil && existing != sess.SessionID.String() {
				return ErrAlreadyActive
			}
		}
	}

	data, err := json.Marshal(toRecord(sess))
	if err != nil {
		return fmt.Errorf("session: marshal: %w", err)
	}

	if err := s.client.Set(ctx, sessionKey(sess.SessionID), data, s.ttl).Err(); err != nil {
		return fmt.Errorf("session: set: %w", err)
	}
	return nil
}

// Update writes back a mutated session with an optimistic-concurrency check
// against expectedVersion (spec §5), bumping Version on success.
func (s *RedisStore) Update(ctx context.Context, sess *Session, expectedVersion int64) error {
	current, err := s.Get(ctx, sess.SessionID)
	if err != nil {
		return err
	}
	if current.Version != expectedVersion {
		return ErrVersionConflict
	}

	sess.Version = expectedVersion + 1
	data, err := json.Marshal(toRecord(sess))
	if err != nil {
		return fmt.Errorf("session: marshal: %w", err)
	}

	ttl := s.ttl
	if sess.IsTerminal() {
		// Keep a short-lived tombstone so a racing reveal-timer callback can
		// still observe the terminal state instead of hitting ErrNotFound.
		ttl = 5 * time.Minute
		if err := s.client.Del(ctx, activeUserKey(sess.UserID)).Err(); err != nil {
			return fmt.Errorf("session: clear active pointer: %w", err)
		}
	}

	if err := s.client.Set(ctx, sessionKey(sess.SessionID), data, ttl).Err(); err != nil {
		return fmt.Errorf("session: set: %w", err)
	}
	return nil
}

// Get loads a session by ID.
func (s *RedisStore) Get(ctx context.Context, sessionID uuid.UUID) (*Session, error) {
	data, err := s.client.Get(ctx, sessionKey(sessionID)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("session: get: %w", err)
	}

	var r record
	if err := json.Unmarshal(data, &r); err != nil {
		return nil, fmt.Errorf("session: unmarshal: %w", err)
	}
	return r.toSession(), nil
}

// GetActiveForUser returns the user's current NotStarted/InProgress session,
// if any.
func (s *RedisStore) GetActiveForUser(ctx context.Context, userID uuid.UUID) (*Session, error) {
	idStr, err := s.client.Get(ctx, activeUserKey(userID)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("session: get active pointer: %w", err)
	}

	id, err := uuid.Parse(idStr)
	if err != nil {
		return nil, fmt.Errorf("session: parse active pointer: %w", err)
	}
	return s.Get(ctx, id)
}

// Delete removes a session and its active-user pointer (if owned).
func (s *RedisStore) Delete(ctx context.Context, sessionID uuid.UUID) error {
	sess, err := s.Get(ctx, sessionID)
	if err != nil && !errors.Is(err, ErrNotFound) {
		return err
	}
	if sess != nil {
		if err := s.client.Del(ctx, activeUserKey(sess.UserID)).Err(); err != nil {
			return fmt.Errorf("session: clear active pointer: %w", err)
		}
	}
	if err := s.client.Del(ctx, sessionKey(sessionID)).Err(); err != nil {
		return fmt.Errorf("session: delete: %w", err)
	}
	return nil
}

// ListActive scans for all NotStarted/InProgress sessions, for the TTL
// sweep job (spec §4.H: "expired sessions are swept and emit
// SessionAbandoned{reason: TimedOut}"). Uses SCAN rather than KEYS so it
// never blocks Redis on a large keyspace.
func (s *RedisStore) ListActive(ctx context.Context) ([]*Session, error) {
	var sessions []*Session
	var cursor uint64
	for {
		keys, next, err := s.client.Scan(ctx, cursor, "session:active_user:*", 100).Result()
		if err != nil {
			return nil, fmt.Errorf("session: scan active pointers: %w", err)
		}
		for _, key := range keys {
			idStr, err := s.client.Get(ctx, key).Result()
			if err != nil {
				continue // pointer expired between SCAN and GET; not an error
			}
			id, err := uuid.Parse(idStr)
			if err != nil {
				continue
			}
			sess, err := s.Get(ctx, id)
			if err != nil {
				continue
			}
			sessions = append(sessions, sess)
		}
		cursor = next
		if cursor == 0 {
			break
		}
	}
	return sessions, nil
}
