package session

import "fmt"

// StateErrorKind enumerates the ways a session state transition can be
// rejected (spec §4.F/§4.G).
type StateErrorKind string

const (
	KindInvalidState  StateErrorKind = "InvalidState"
	KindNoMoreItems   StateErrorKind = "NoMoreItems"
	KindAlreadyJudged StateErrorKind = "AlreadyJudged"
)

// StateError is returned when a session method is called in a state that
// does not permit it.
type StateError struct {
	Kind         StateErrorKind
	CurrentState string
	Action       string
}

func (e *StateError) Error() string {
	return fmt.Sprintf("session: cannot %s while %s (%s)", e.Action, e.CurrentState, e.Kind)
}

func invalidState(current Status, action string) *StateError {
	return &StateError{Kind: KindInvalidState, CurrentState: string(current), Action: action}
}

// IsAlreadyJudged reports whether err is the AlreadyJudged race condition
// described in spec §4.G (two concurrent judge/timer calls on one item).
func IsAlreadyJudged(err error) bool {
	se, ok := err.(*StateError)
	return ok && se.Kind == KindAlreadyJudged
}
