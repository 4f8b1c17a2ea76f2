package integrate

import (
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/MrWong99/scribe/internal/record"
)

var (
	// ErrInvalidMeta is returned for an invalid meeting type, an empty
	// meeting name or an empty transcript.
	ErrInvalidMeta = errors.New("integrate: invalid input")

	// ErrPersistence matches every [*PersistenceError].
	ErrPersistence = errors.New("integrate: persistence failed")

	// ErrDuplicateTranscript matches every [*DuplicateError].
	ErrDuplicateTranscript = errors.New("integrate: transcript already processed")
)

// PersistenceError reports a store failure. Nothing from the failed Process
// call is visible in the store.
type PersistenceError struct {
	// Op is the store operation that failed: "lookup", "load" or "commit".
	Op  string
	Err error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("integrate: %s: %v", e.Op, e.Err)
}

func (e *PersistenceError) Unwrap() error { return e.Err }

// Is reports whether target is [ErrPersistence].
func (e *PersistenceError) Is(target error) bool { return target == ErrPersistence }

// DuplicateError is returned when a transcript with the same normalised
// content was processed before.
type DuplicateError struct {
	// MeetingID is the meeting created from the earlier transcript. It is
	// uuid.Nil if the duplicate was only detected at commit and the existing
	// meeting could not be read back.
	MeetingID   uuid.UUID
	ContentHash string
}

func (e *DuplicateError) Error() string {
	if e.MeetingID == uuid.Nil {
		return fmt.Sprintf("integrate: transcript %.12s already processed", e.ContentHash)
	}
	return fmt.Sprintf("integrate: transcript %.12s already processed as meeting %s", e.ContentHash, e.MeetingID)
}

// Is reports whether target is [ErrDuplicateTranscript].
func (e *DuplicateError) Is(target error) bool { return target == ErrDuplicateTranscript }

// UnmatchedEntityWarning records an extracted name that did not resolve to a
// canonical entity. It is a diagnostic, not an error.
type UnmatchedEntityWarning struct {
	Category record.Category `json:"category"`
	Name     string          `json:"name"`

	// Task is the name of the task the name was an assignee of, or "" for
	// meeting participants.
	Task string `json:"task,omitempty"`
}

func (w UnmatchedEntityWarning) String() string {
	if w.Task != "" {
		return fmt.Sprintf("no %s match for assignee %q of task %q", w.Category, w.Name, w.Task)
	}
	return fmt.Sprintf("no %s match for %q", w.Category, w.Name)
}
