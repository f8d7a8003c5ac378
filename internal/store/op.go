package store

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/csaptu/tasksync/internal/task"
)

// OpKind is the mutation a queued operation replays against the server.
type OpKind string

// Operation kinds.
const (
	OpCreate OpKind = "create"
	OpUpdate OpKind = "update"
	OpDelete OpKind = "delete"
)

// EntityType tags the entity an operation targets. Only tasks are defined
// today; the tag keeps the queue format open for other entity kinds.
type EntityType string

// EntityTask is the task entity type.
const EntityTask EntityType = "task"

// Operation is one pending mutation in the queue. Immutable once created
// except for the retry-count and error fields, which the sync engine bumps
// on failure.
type Operation struct {
	ID         string          `json:"id"`
	EntityID   string          `json:"entity_id"`
	EntityType EntityType      `json:"entity_type"`
	Kind       OpKind          `json:"type"`
	Data       json.RawMessage `json:"data,omitempty"`
	CreatedAt  time.Time       `json:"created_at"`
	RetryCount int             `json:"retry_count"`
	Error      string          `json:"error,omitempty"`
}

// CreatePayload carries the full initial field set of an optimistically
// created task, including its client-minted id so the server can adopt it.
type CreatePayload struct {
	ID          string         `json:"id"`
	Title       string         `json:"title"`
	Description string         `json:"description,omitempty"`
	Priority    task.Priority  `json:"priority"`
	DueAt       string         `json:"due_at,omitempty"`
	DueAllDay   bool           `json:"due_all_day,omitempty"`
	ParentID    string         `json:"parent_id,omitempty"`
	Tags        []string       `json:"tags,omitempty"`
	Metadata    map[string]any `json:"metadata,omitempty"`
}

// UpdatePayload is the delta of a single update call: only the fields that
// actually changed are set, so replaying an earlier queued operation for the
// same entity is never redundantly overwritten in full.
//
// ClearDue is an explicit flag because a nullable due date cannot otherwise
// distinguish "leave as is" from "set to empty".
type UpdatePayload struct {
	Title       *string        `json:"title,omitempty"`
	Description *string        `json:"description,omitempty"`
	Status      *task.Status   `json:"status,omitempty"`
	Priority    *task.Priority `json:"priority,omitempty"`
	DueAt       *string        `json:"due_at,omitempty"`
	DueAllDay   *bool          `json:"due_all_day,omitempty"`
	ClearDue    bool           `json:"clear_due,omitempty"`
	ParentID    *string        `json:"parent_id,omitempty"`
	Tags        *[]string      `json:"tags,omitempty"`
	Metadata    map[string]any `json:"metadata,omitempty"`
}

// Empty reports whether the payload carries no change at all.
func (p *UpdatePayload) Empty() bool {
	return p.Title == nil && p.Description == nil && p.Status == nil &&
		p.Priority == nil && p.DueAt == nil && p.DueAllDay == nil &&
		!p.ClearDue && p.ParentID == nil && p.Tags == nil && p.Metadata == nil
}

// newOperation builds a queued operation with a fresh UUIDv7 id.
func newOperation(kind OpKind, entityType EntityType, entityID string, data json.RawMessage, now time.Time) (*Operation, error) {
	id, err := uuid.NewV7()
	if err != nil {
		return nil, fmt.Errorf("generate operation id: %w", err)
	}

	return &Operation{
		ID:         id.String(),
		EntityID:   entityID,
		EntityType: entityType,
		Kind:       kind,
		Data:       data,
		CreatedAt:  now.UTC(),
	}, nil
}

// DecodeCreatePayload parses an operation's data as a create payload.
func DecodeCreatePayload(op *Operation) (*CreatePayload, error) {
	var p CreatePayload

	err := json.Unmarshal(op.Data, &p)
	if err != nil {
		return nil, fmt.Errorf("decode create payload: %w", err)
	}

	return &p, nil
}

// DecodeUpdatePayload parses an operation's data as an update payload.
func DecodeUpdatePayload(op *Operation) (*UpdatePayload, error) {
	var p UpdatePayload

	err := json.Unmarshal(op.Data, &p)
	if err != nil {
		return nil, fmt.Errorf("decode update payload: %w", err)
	}

	return &p, nil
}
