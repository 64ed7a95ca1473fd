package core

import (
	"errors"
	"fmt"
)

// ErrTitleNotFound reports an unknown canonical key.
var ErrTitleNotFound = errors.New("title not found")

// InvolvedError reports a claim by a user who already holds or is
// queued for the title.
type InvolvedError struct {
	Title string
	User  string
}

func (e *InvolvedError) Error() string {
	return fmt.Sprintf("%s is already involved with %s", e.User, e.Title)
}

// NotHolderError reports a release attempted by someone other than the
// current holder.
type NotHolderError struct {
	Title  string
	User   string
	Holder string
}

func (e *NotHolderError) Error() string {
	if e.Holder == "" {
		return fmt.Sprintf("%s does not hold %s (title is unclaimed)", e.User, e.Title)
	}
	return fmt.Sprintf("%s does not hold %s (held by %s)", e.User, e.Title, e.Holder)
}

// NotDueError reports an acknowledge or snooze on a title that is not
// awaiting handoff.
type NotDueError struct {
	Title  string
	Status Status
}

func (e *NotDueError) Error() string {
	return fmt.Sprintf("%s is not due (status %s)", e.Title, e.Status)
}

// NoSuccessorError reports a due title with an empty queue. The state
// machine never produces this on its own; it is surfaced, logged, and
// left for an operator rather than repaired automatically.
type NoSuccessorError struct {
	Title string
}

func (e *NoSuccessorError) Error() string {
	return fmt.Sprintf("%s is due but has no successor in queue", e.Title)
}

// PersistenceError wraps a store failure. The operation that hit it did
// not commit; callers may retry the whole operation.
type PersistenceError struct {
	Op  string
	Err error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("persist %s: %v", e.Op, e.Err)
}

func (e *PersistenceError) Unwrap() error {
	return e.Err
}
