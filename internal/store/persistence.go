package store

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/csaptu/tasksync/internal/task"
)

// Fixed persistence keys. The adapter stores one serialized list per key.
const (
	keyOperations      = "sync_operations"
	keyOptimisticTasks = "optimistic_tasks"
	keyDeletedIDs      = "deleted_task_ids"
)

// load restores the queue, optimistic tasks, and deleted ids written by a
// previous run. Server-tasks are not persisted; a refresh repopulates them.
func (s *Store) load(ctx context.Context) error {
	if s.persistence == nil {
		return nil
	}

	rawOps, err := s.persistence.ReadList(ctx, keyOperations)
	if err != nil {
		return fmt.Errorf("load operations: %w", err)
	}

	for _, raw := range rawOps {
		var op Operation

		err = json.Unmarshal([]byte(raw), &op)
		if err != nil {
			return fmt.Errorf("load operations: decode: %w", err)
		}

		s.queue.ops = append(s.queue.ops, &op)
	}

	rawTasks, err := s.persistence.ReadList(ctx, keyOptimisticTasks)
	if err != nil {
		return fmt.Errorf("load optimistic tasks: %w", err)
	}

	for _, raw := range rawTasks {
		var t task.Task

		err = json.Unmarshal([]byte(raw), &t)
		if err != nil {
			return fmt.Errorf("load optimistic tasks: decode: %w", err)
		}

		s.optimistic[t.ID] = &t
	}

	ids, err := s.persistence.ReadList(ctx, keyDeletedIDs)
	if err != nil {
		return fmt.Errorf("load deleted ids: %w", err)
	}

	for _, id := range ids {
		// Deleted ids always shadow an optimistic entry, never coexist.
		delete(s.optimistic, id)
		s.deleted[id] = struct{}{}
	}

	return nil
}

// persist writes the three pending-state lists. Caller holds s.mu. The
// in-memory mutation stands even when the write fails; the caller surfaces
// the error so the user can retry.
func (s *Store) persist(ctx context.Context) error {
	if s.persistence == nil {
		return nil
	}

	rawOps := make([]string, 0, len(s.queue.ops))

	for _, op := range s.queue.ops {
		data, err := json.Marshal(op)
		if err != nil {
			return fmt.Errorf("persist operations: encode: %w", err)
		}

		rawOps = append(rawOps, string(data))
	}

	err := s.persistence.WriteList(ctx, keyOperations, rawOps)
	if err != nil {
		return fmt.Errorf("persist operations: %w", err)
	}

	rawTasks := make([]string, 0, len(s.optimistic))

	for _, t := range s.optimistic {
		data, err := json.Marshal(t)
		if err != nil {
			return fmt.Errorf("persist optimistic tasks: encode: %w", err)
		}

		rawTasks = append(rawTasks, string(data))
	}

	err = s.persistence.WriteList(ctx, keyOptimisticTasks, rawTasks)
	if err != nil {
		return fmt.Errorf("persist optimistic tasks: %w", err)
	}

	ids := make([]string, 0, len(s.deleted))
	for id := range s.deleted {
		ids = append(ids, id)
	}

	err = s.persistence.WriteList(ctx, keyDeletedIDs, ids)
	if err != nil {
		return fmt.Errorf("persist deleted ids: %w", err)
	}

	return nil
}
