package session

import (
	"errors"
	"fmt"
)

// ErrTaskNotFound means the id is not in the session's current list.
var ErrTaskNotFound = errors.New("task not in current list")

// PersistenceError wraps a failed store write. Writes are single calls, so
// nothing was applied.
type PersistenceError struct {
	Op     string
	TaskID string
	Err    error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Op, e.TaskID, e.Err)
}

func (e *PersistenceError) Unwrap() error { return e.Err }

// LoadError wraps a failed reload. The session keeps its last good list.
type LoadError struct {
	Err error
}

func (e *LoadError) Error() string {
	return fmt.Sprintf("reload failed: %v", e.Err)
}

func (e *LoadError) Unwrap() error { return e.Err }
