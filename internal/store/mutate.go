package store

import (
	"context"
	"encoding/json"
	"fmt"
	"reflect"
	"slices"
	"strings"
	"time"

	"github.com/csaptu/tasksync/internal/task"
)

// Fields is a partial description of a task used by CreateTask and
// UpdateTask. Nil pointers mean "leave as is" (or "use the default" on
// create). ClearDue is separate from DueAt because a nil due date cannot
// distinguish "leave as is" from "remove".
type Fields struct {
	Title       *string
	Description *string
	Status      *task.Status
	Priority    *task.Priority
	DueAt       *time.Time
	DueAllDay   *bool
	ClearDue    bool
	ParentID    *string
	Tags        *[]string
	Metadata    map[string]any
}

// CreateTask mints a client-side id, inserts the new task into the
// optimistic partition, and enqueues a create operation carrying the full
// initial field set. Usable while fully offline; the returned task is
// immediately visible in MergedView.
func (s *Store) CreateTask(ctx context.Context, fields Fields) (*task.Task, error) {
	s.mu.Lock()
	t, err := s.createLocked(ctx, fields)
	s.mu.Unlock()

	if err != nil {
		return nil, err
	}

	s.notify()

	return t, nil
}

func (s *Store) createLocked(ctx context.Context, fields Fields) (*task.Task, error) {
	title := ""
	if fields.Title != nil {
		title = strings.TrimSpace(*fields.Title)
	}

	if title == "" {
		return nil, ErrTitleEmpty
	}

	id, err := task.NewID()
	if err != nil {
		return nil, fmt.Errorf("create task: %w", err)
	}

	now := s.now().UTC()

	t := &task.Task{
		ID:        id,
		Title:     title,
		Status:    task.StatusPending,
		Priority:  task.DefaultPriority,
		CreatedAt: now,
		UpdatedAt: now,
	}

	if fields.Description != nil {
		t.Description = *fields.Description
	}

	if fields.Priority != nil {
		if !fields.Priority.Valid() {
			return nil, fmt.Errorf("create task: %w: priority %d", task.ErrInvalid, *fields.Priority)
		}

		t.Priority = *fields.Priority
	}

	if fields.DueAt != nil {
		due := *fields.DueAt
		t.DueAt = &due
	}

	if fields.DueAllDay != nil {
		t.DueAllDay = *fields.DueAllDay
	}

	if fields.ParentID != nil && *fields.ParentID != "" {
		err = s.checkParentLocked(*fields.ParentID)
		if err != nil {
			return nil, err
		}

		t.ParentID = *fields.ParentID
	}

	if fields.Tags != nil {
		t.Tags = slices.Clone(*fields.Tags)
	}

	if fields.Metadata != nil {
		t.Metadata = fields.Metadata
	}

	payload := CreatePayload{
		ID:          t.ID,
		Title:       t.Title,
		Description: t.Description,
		Priority:    t.Priority,
		DueAllDay:   t.DueAllDay,
		ParentID:    t.ParentID,
		Tags:        t.Tags,
		Metadata:    t.Metadata,
	}

	if t.DueAt != nil {
		payload.DueAt = task.EncodeDue(*t.DueAt, t.DueAllDay)
	}

	data, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("create task: encode payload: %w", err)
	}

	_, err = s.queue.enqueue(OpCreate, EntityTask, t.ID, data, now)
	if err != nil {
		return nil, fmt.Errorf("create task: %w", err)
	}

	s.optimistic[t.ID] = t
	s.version++

	err = s.persist(ctx)
	if err != nil {
		return nil, err
	}

	return t.Clone(), nil
}

// UpdateTask applies a partial mutation to the current view of a task and
// enqueues an update operation carrying only the fields that actually
// changed. Returns ErrNotFound if the id is absent from both partitions.
// An update that changes nothing returns the current value without
// enqueueing.
func (s *Store) UpdateTask(ctx context.Context, id string, fields Fields) (*task.Task, error) {
	s.mu.Lock()
	t, err := s.updateLocked(ctx, id, fields)
	s.mu.Unlock()

	if err != nil {
		return nil, err
	}

	s.notify()

	return t, nil
}

func (s *Store) updateLocked(ctx context.Context, id string, fields Fields) (*task.Task, error) {
	current := s.resolveLocked(id)
	if current == nil {
		return nil, fmt.Errorf("update task %q: %w", id, ErrNotFound)
	}

	next := current.Clone()

	delta, err := s.applyFieldsLocked(next, fields)
	if err != nil {
		return nil, fmt.Errorf("update task %q: %w", id, err)
	}

	if delta.Empty() {
		return current.Clone(), nil
	}

	now := s.now().UTC()
	next.UpdatedAt = now

	data, err := json.Marshal(delta)
	if err != nil {
		return nil, fmt.Errorf("update task %q: encode payload: %w", id, err)
	}

	_, err = s.queue.enqueue(OpUpdate, EntityTask, id, data, now)
	if err != nil {
		return nil, fmt.Errorf("update task %q: %w", id, err)
	}

	s.optimistic[id] = next
	s.version++

	err = s.persist(ctx)
	if err != nil {
		return nil, err
	}

	return next.Clone(), nil
}

// applyFieldsLocked mutates next in place and returns the delta payload of
// the fields that differ from the current value.
func (s *Store) applyFieldsLocked(next *task.Task, fields Fields) (*UpdatePayload, error) {
	delta := &UpdatePayload{}

	if fields.Title != nil {
		title := strings.TrimSpace(*fields.Title)
		if title == "" {
			return nil, ErrTitleEmpty
		}

		if title != next.Title {
			next.Title = title
			delta.Title = &title
		}
	}

	if fields.Description != nil && *fields.Description != next.Description {
		next.Description = *fields.Description
		delta.Description = fields.Description
	}

	if fields.Status != nil {
		if !fields.Status.Valid() {
			return nil, fmt.Errorf("%w: unknown status %q", task.ErrInvalid, *fields.Status)
		}

		if *fields.Status != next.Status {
			next.Status = *fields.Status
			delta.Status = fields.Status
		}
	}

	if fields.Priority != nil {
		if !fields.Priority.Valid() {
			return nil, fmt.Errorf("%w: priority %d", task.ErrInvalid, *fields.Priority)
		}

		if *fields.Priority != next.Priority {
			next.Priority = *fields.Priority
			delta.Priority = fields.Priority
		}
	}

	if fields.ParentID != nil && *fields.ParentID != next.ParentID {
		if *fields.ParentID != "" {
			err := s.checkParentLocked(*fields.ParentID)
			if err != nil {
				return nil, err
			}

			if s.hasChildrenLocked(next.ID) {
				return nil, ErrNestingTooDeep
			}
		}

		next.ParentID = *fields.ParentID
		delta.ParentID = fields.ParentID
	}

	if fields.Tags != nil && !slices.Equal(*fields.Tags, next.Tags) {
		tags := slices.Clone(*fields.Tags)
		next.Tags = tags
		delta.Tags = &tags
	}

	if fields.Metadata != nil && !reflect.DeepEqual(fields.Metadata, next.Metadata) {
		next.Metadata = fields.Metadata
		delta.Metadata = fields.Metadata
	}

	s.applyDue(next, fields, delta)

	return delta, nil
}

// applyDue handles the three-way due-date semantics: clear, set, or leave
// untouched when unspecified.
func (s *Store) applyDue(next *task.Task, fields Fields, delta *UpdatePayload) {
	if fields.ClearDue {
		if next.DueAt != nil {
			next.DueAt = nil
			next.DueAllDay = false
			delta.ClearDue = true
		}

		return
	}

	allDay := next.DueAllDay
	if fields.DueAllDay != nil {
		allDay = *fields.DueAllDay
	}

	if fields.DueAt != nil {
		changed := next.DueAt == nil || !next.DueAt.Equal(*fields.DueAt) || allDay != next.DueAllDay
		if changed {
			due := *fields.DueAt
			next.DueAt = &due
			next.DueAllDay = allDay

			encoded := task.EncodeDue(due, allDay)
			delta.DueAt = &encoded

			if fields.DueAllDay != nil {
				delta.DueAllDay = fields.DueAllDay
			}
		}

		return
	}

	// No new due value: an all-day toggle alone still counts as a change
	// when a due date exists.
	if fields.DueAllDay != nil && next.DueAt != nil && allDay != next.DueAllDay {
		next.DueAllDay = allDay
		delta.DueAllDay = fields.DueAllDay

		encoded := task.EncodeDue(*next.DueAt, allDay)
		delta.DueAt = &encoded
	}
}

// CompleteTask marks a task completed.
func (s *Store) CompleteTask(ctx context.Context, id string) (*task.Task, error) {
	status := task.StatusCompleted

	return s.UpdateTask(ctx, id, Fields{Status: &status})
}

// UncompleteTask returns a completed task to pending.
func (s *Store) UncompleteTask(ctx context.Context, id string) (*task.Task, error) {
	status := task.StatusPending

	return s.UpdateTask(ctx, id, Fields{Status: &status})
}

// DeleteTask hides a task locally and enqueues a delete operation. The
// optimistic entry for the id is always purged first so deleted-ids and
// optimistic-tasks never overlap.
func (s *Store) DeleteTask(ctx context.Context, id string) error {
	s.mu.Lock()
	err := s.deleteLocked(ctx, id)
	s.mu.Unlock()

	if err != nil {
		return err
	}

	s.notify()

	return nil
}

func (s *Store) deleteLocked(ctx context.Context, id string) error {
	if s.resolveLocked(id) == nil {
		return fmt.Errorf("delete task %q: %w", id, ErrNotFound)
	}

	delete(s.optimistic, id)
	s.deleted[id] = struct{}{}

	_, err := s.queue.enqueue(OpDelete, EntityTask, id, nil, s.now().UTC())
	if err != nil {
		return fmt.Errorf("delete task %q: %w", id, err)
	}

	s.version++

	return s.persist(ctx)
}

// OnSyncSuccess confirms an operation. A missing operation id is a no-op so
// a duplicate callback is safe. On create/update the entity moves from the
// optimistic partition into server-tasks using the authoritative result; on
// delete the id is discarded from deleted-ids and server-tasks. The
// operation always leaves the queue.
func (s *Store) OnSyncSuccess(ctx context.Context, operationID string, serverResult *task.Task) error {
	s.mu.Lock()

	op := s.queue.get(operationID)
	if op == nil {
		s.mu.Unlock()

		return nil
	}

	switch op.Kind {
	case OpCreate, OpUpdate:
		delete(s.optimistic, op.EntityID)

		if serverResult != nil {
			s.server[serverResult.ID] = serverResult.Clone()
		}
	case OpDelete:
		delete(s.deleted, op.EntityID)
		delete(s.server, op.EntityID)
	}

	s.queue.remove(operationID)
	s.version++

	err := s.persist(ctx)
	s.mu.Unlock()

	if err != nil {
		return err
	}

	s.notify()

	return nil
}

// OnSyncError records a failed attempt on the operation: retry count up,
// error string replaced. Task partitions are untouched; the optimistic view
// stands until the caller explicitly rolls back.
func (s *Store) OnSyncError(ctx context.Context, operationID, errMsg string) error {
	s.mu.Lock()

	found := s.queue.markFailed(operationID, errMsg)
	if !found {
		s.mu.Unlock()

		return nil
	}

	err := s.persist(ctx)
	s.mu.Unlock()

	return err
}

// Rollback explicitly abandons an operation. For create/update the
// optimistic entry is discarded, reverting to the server's version (the task
// disappears if the server never had it). For delete the id leaves
// deleted-ids and the task reappears. The operation leaves the queue.
func (s *Store) Rollback(ctx context.Context, operationID string) error {
	s.mu.Lock()

	op := s.queue.get(operationID)
	if op == nil {
		s.mu.Unlock()

		return fmt.Errorf("rollback %q: %w", operationID, ErrOperationNotFound)
	}

	switch op.Kind {
	case OpCreate, OpUpdate:
		delete(s.optimistic, op.EntityID)
	case OpDelete:
		delete(s.deleted, op.EntityID)
	}

	s.queue.remove(operationID)
	s.version++

	err := s.persist(ctx)
	s.mu.Unlock()

	if err != nil {
		return err
	}

	s.notify()

	return nil
}

// ClearPending is the administrative reset for explicit user-triggered
// recovery: queue, optimistic tasks, and deleted ids are emptied.
// Server-tasks are untouched.
func (s *Store) ClearPending(ctx context.Context) error {
	s.mu.Lock()

	s.queue.reset()
	s.optimistic = make(map[string]*task.Task)
	s.deleted = make(map[string]struct{})
	s.version++

	err := s.persist(ctx)
	s.mu.Unlock()

	if err != nil {
		return err
	}

	s.notify()

	return nil
}

// checkParentLocked validates that a parent id resolves to a visible root
// task.
func (s *Store) checkParentLocked(parentID string) error {
	parent := s.resolveLocked(parentID)
	if parent == nil {
		return fmt.Errorf("parent %q: %w", parentID, ErrParentNotFound)
	}

	if parent.ParentID != "" {
		return ErrNestingTooDeep
	}

	return nil
}
