package task

import (
	"encoding/json"
	"fmt"
	"time"
)

// taskJSON is the wire and persistence form of a Task. Timestamps are
// ISO-8601 strings so readers in other languages stay compatible.
type taskJSON struct {
	ID          string         `json:"id"`
	Title       string         `json:"title"`
	Description string         `json:"description,omitempty"`
	Status      Status         `json:"status"`
	Priority    Priority       `json:"priority"`
	DueAt       string         `json:"due_at,omitempty"`
	DueAllDay   bool           `json:"due_all_day,omitempty"`
	ParentID    string         `json:"parent_id,omitempty"`
	Tags        []string       `json:"tags,omitempty"`
	Metadata    map[string]any `json:"metadata,omitempty"`
	CreatedAt   string         `json:"created_at"`
	UpdatedAt   string         `json:"updated_at"`
}

// MarshalJSON serializes a task.
//
// Due dates carry calendar intent: an all-day value serializes as local
// midnight with its UTC offset so readers in other zones keep the same
// calendar date, while a timed value serializes in UTC. Creation and update
// timestamps always serialize in UTC.
func (t Task) MarshalJSON() ([]byte, error) {
	out := taskJSON{
		ID:          t.ID,
		Title:       t.Title,
		Description: t.Description,
		Status:      t.Status,
		Priority:    t.Priority,
		DueAllDay:   t.DueAllDay,
		ParentID:    t.ParentID,
		Tags:        t.Tags,
		Metadata:    t.Metadata,
		CreatedAt:   t.CreatedAt.UTC().Format(time.RFC3339),
		UpdatedAt:   t.UpdatedAt.UTC().Format(time.RFC3339),
	}

	if t.DueAt != nil {
		out.DueAt = EncodeDue(*t.DueAt, t.DueAllDay)
	}

	return json.Marshal(out)
}

// UnmarshalJSON restores a task from its wire form.
func (t *Task) UnmarshalJSON(data []byte) error {
	var in taskJSON

	err := json.Unmarshal(data, &in)
	if err != nil {
		return fmt.Errorf("decode task: %w", err)
	}

	createdAt, err := parseTimestamp(in.CreatedAt)
	if err != nil {
		return fmt.Errorf("decode task created_at: %w", err)
	}

	updatedAt, err := parseTimestamp(in.UpdatedAt)
	if err != nil {
		return fmt.Errorf("decode task updated_at: %w", err)
	}

	*t = Task{
		ID:          in.ID,
		Title:       in.Title,
		Description: in.Description,
		Status:      in.Status,
		Priority:    in.Priority,
		DueAllDay:   in.DueAllDay,
		ParentID:    in.ParentID,
		Tags:        in.Tags,
		Metadata:    in.Metadata,
		CreatedAt:   createdAt,
		UpdatedAt:   updatedAt,
	}

	if in.DueAt != "" {
		due, err := time.Parse(time.RFC3339, in.DueAt)
		if err != nil {
			return fmt.Errorf("decode task due_at: %w", err)
		}

		t.DueAt = &due
	}

	return nil
}

// EncodeDue formats a due timestamp for transport. All-day values keep the
// calendar date by serializing local midnight with the zone offset; timed
// values serialize in UTC.
func EncodeDue(due time.Time, allDay bool) string {
	if allDay {
		midnight := time.Date(due.Year(), due.Month(), due.Day(), 0, 0, 0, 0, due.Location())

		return midnight.Format(time.RFC3339)
	}

	return due.UTC().Format(time.RFC3339)
}

func parseTimestamp(s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, nil
	}

	ts, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return time.Time{}, err
	}

	return ts.UTC(), nil
}
