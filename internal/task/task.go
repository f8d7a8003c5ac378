// Package task defines the task model shared by the local store, the sync
// engine, and the remote adapters.
package task

import (
	"fmt"
	"maps"
	"slices"
	"time"

	"github.com/google/uuid"
)

// Status is the lifecycle state of a task.
type Status string

// Lifecycle states. A new task starts as StatusPending.
const (
	StatusPending    Status = "pending"
	StatusInProgress Status = "in_progress"
	StatusCompleted  Status = "completed"
	StatusCancelled  Status = "cancelled"
	StatusArchived   Status = "archived"
)

// validStatuses are the allowed lifecycle states.
var validStatuses = []Status{
	StatusPending, StatusInProgress, StatusCompleted, StatusCancelled, StatusArchived,
}

// Valid reports whether s is a known lifecycle state.
func (s Status) Valid() bool {
	return slices.Contains(validStatuses, s)
}

// Priority is the urgency level of a task.
type Priority int

// Priority bounds.
const (
	PriorityLow    Priority = 1
	PriorityMedium Priority = 2
	PriorityHigh   Priority = 3
	PriorityUrgent Priority = 4

	MinPriority     = PriorityLow
	MaxPriority     = PriorityUrgent
	DefaultPriority = PriorityMedium
)

// Valid reports whether p is within the allowed priority range.
func (p Priority) Valid() bool {
	return p >= MinPriority && p <= MaxPriority
}

// Task is a user-visible unit of work. Identity is the ID; two tasks are the
// same entity for merge purposes when their IDs match.
type Task struct {
	ID          string
	Title       string
	Description string
	Status      Status
	Priority    Priority

	// DueAt is the optional due timestamp. When DueAllDay is set the time
	// component is insignificant and only the calendar date matters.
	DueAt     *time.Time
	DueAllDay bool

	// ParentID links a subtask to its parent. At most one level of nesting
	// is permitted: a task with a non-empty ParentID cannot itself be a
	// parent.
	ParentID string

	Tags []string

	// Metadata carries free-form annotations (AI output, entity links).
	// Opaque to the sync core; preserved verbatim through merge and replay.
	Metadata map[string]any

	CreatedAt time.Time
	UpdatedAt time.Time
}

// NewID generates a time-ordered client-side task ID.
// UUIDv7 so IDs minted offline still sort by creation time.
func NewID() (string, error) {
	id, err := uuid.NewV7()
	if err != nil {
		return "", fmt.Errorf("generate uuidv7: %w", err)
	}

	return id.String(), nil
}

// Clone returns a deep copy of t. Mutating the copy never aliases the
// original's tag slice or metadata map.
func (t *Task) Clone() *Task {
	if t == nil {
		return nil
	}

	c := *t

	if t.DueAt != nil {
		due := *t.DueAt
		c.DueAt = &due
	}

	c.Tags = slices.Clone(t.Tags)

	if t.Metadata != nil {
		c.Metadata = maps.Clone(t.Metadata)
	}

	return &c
}

// Validate checks the structural invariants of a task value.
// Parent depth is a store-level invariant and is checked there, where the
// parent can be resolved.
func (t *Task) Validate() error {
	if t.ID == "" {
		return fmt.Errorf("%w: id is empty", ErrInvalid)
	}

	if t.Title == "" {
		return fmt.Errorf("%w: title is empty", ErrInvalid)
	}

	if !t.Status.Valid() {
		return fmt.Errorf("%w: unknown status %q", ErrInvalid, t.Status)
	}

	if !t.Priority.Valid() {
		return fmt.Errorf("%w: priority %d out of range", ErrInvalid, t.Priority)
	}

	return nil
}
