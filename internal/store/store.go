// Package store holds the offline-first local task state: the last-known
// server snapshot, optimistic local edits, locally deleted ids, and the
// ordered queue of operations that must eventually replay against the server.
package store

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/csaptu/tasksync/internal/persist"
	"github.com/csaptu/tasksync/internal/task"
)

// Store is the single source of truth for what the UI should currently show
// and what must eventually reach the server. Safe for concurrent use; every
// read-modify-write sequence runs under one mutex so mutations never
// interleave.
type Store struct {
	mu sync.Mutex

	// server holds tasks as last confirmed by the server.
	server map[string]*task.Task

	// optimistic holds tasks created or edited locally but not yet
	// confirmed. An id present here shadows the same id in server.
	optimistic map[string]*task.Task

	// deleted holds ids removed locally but not yet confirmed deleted.
	// An id here is never also a key in optimistic.
	deleted map[string]struct{}

	queue queue

	// version forces change notification even when a mutation overwrites a
	// task with an equivalent value.
	version uint64

	persistence persist.Store
	onChange    func()
	now         func() time.Time
}

// Options configures Open. All fields are optional.
type Options struct {
	// Persistence durably stores the queue, optimistic tasks, and deleted
	// ids across relaunches. Nil keeps state in memory only.
	Persistence persist.Store

	// OnChange runs after every mutation that changed state, outside the
	// store's lock. Callers use it to re-render or to nudge the sync
	// engine. It runs on the mutating goroutine, so it must not block and
	// must not synchronously start a sync pass: mutations also happen from
	// inside a drain's confirmation callbacks. Hand the signal to a
	// non-blocking trigger instead, e.g. the engine's Nudge.
	OnChange func()

	// Now overrides the clock, for tests.
	Now func() time.Time
}

// Open builds a store and restores any persisted pending state.
func Open(ctx context.Context, opts Options) (*Store, error) {
	s := &Store{
		server:      make(map[string]*task.Task),
		optimistic:  make(map[string]*task.Task),
		deleted:     make(map[string]struct{}),
		persistence: opts.Persistence,
		onChange:    opts.OnChange,
		now:         opts.Now,
	}

	if s.now == nil {
		s.now = time.Now
	}

	err := s.load(ctx)
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}

	return s, nil
}

// SetServerTasks wholesale-replaces the server-tasks partition after a full
// refresh. Optimistic tasks and deleted ids are untouched.
func (s *Store) SetServerTasks(tasks []*task.Task) {
	s.mu.Lock()

	s.server = make(map[string]*task.Task, len(tasks))
	for _, t := range tasks {
		s.server[t.ID] = t.Clone()
	}

	s.version++
	s.mu.Unlock()

	s.notify()
}

// UpdateTaskFromServer merges one authoritative record into server-tasks and
// drops any optimistic entry for the same id. Server truth wins once it
// arrives, even outside the operation-confirmation path.
func (s *Store) UpdateTaskFromServer(ctx context.Context, t *task.Task) error {
	return s.UpdateTasksFromServer(ctx, []*task.Task{t})
}

// UpdateTasksFromServer merges several authoritative records at once.
func (s *Store) UpdateTasksFromServer(ctx context.Context, tasks []*task.Task) error {
	s.mu.Lock()

	for _, t := range tasks {
		s.server[t.ID] = t.Clone()
		delete(s.optimistic, t.ID)
	}

	s.version++

	err := s.persist(ctx)
	s.mu.Unlock()

	if err != nil {
		return err
	}

	s.notify()

	return nil
}

// MergedView projects the state the UI should show: server tasks overlaid by
// optimistic tasks, minus every locally deleted id. Optimistic always wins
// over stale server data for the same id, and no id appears twice. Order is
// unspecified; ordering is a presentation concern.
func (s *Store) MergedView() []*task.Task {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]*task.Task, 0, len(s.server)+len(s.optimistic))

	for id, t := range s.server {
		if _, gone := s.deleted[id]; gone {
			continue
		}

		if _, shadowed := s.optimistic[id]; shadowed {
			continue
		}

		out = append(out, t.Clone())
	}

	for id, t := range s.optimistic {
		if _, gone := s.deleted[id]; gone {
			continue
		}

		out = append(out, t.Clone())
	}

	return out
}

// Get returns the current view of one task (optimistic wins), or nil if the
// id is locally deleted or unknown.
func (s *Store) Get(id string) *task.Task {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.resolveLocked(id).Clone()
}

// PendingOperations returns a FIFO snapshot of the queue. The copies are
// safe to read while the store keeps mutating.
func (s *Store) PendingOperations() []*Operation {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.queue.snapshot()
}

// PeekPending returns FIFO copies of the queued operations whose retry
// count is still below maxRetries. Exhausted operations stay queued and
// visible through PendingOperations; they are only filtered from this view.
func (s *Store) PeekPending(maxRetries int) []*Operation {
	s.mu.Lock()
	defer s.mu.Unlock()

	pending := s.queue.peekPending(maxRetries)

	out := make([]*Operation, 0, len(pending))

	for _, op := range pending {
		c := *op
		out = append(out, &c)
	}

	return out
}

// PendingCount returns the number of queued operations, including ones past
// the retry ceiling.
func (s *Store) PendingCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.queue.len()
}

// Version returns the monotonic mutation counter.
func (s *Store) Version() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.version
}

// resolveLocked returns the current view of a task: optimistic if present,
// else server, nil if locally deleted or unknown. Caller holds s.mu.
func (s *Store) resolveLocked(id string) *task.Task {
	if _, gone := s.deleted[id]; gone {
		return nil
	}

	if t, ok := s.optimistic[id]; ok {
		return t
	}

	if t, ok := s.server[id]; ok {
		return t
	}

	return nil
}

// hasChildrenLocked reports whether any visible task lists id as its parent.
func (s *Store) hasChildrenLocked(id string) bool {
	for childID, t := range s.optimistic {
		if _, gone := s.deleted[childID]; !gone && t.ParentID == id {
			return true
		}
	}

	for childID, t := range s.server {
		if _, gone := s.deleted[childID]; gone {
			continue
		}

		if _, shadowed := s.optimistic[childID]; shadowed {
			continue
		}

		if t.ParentID == id {
			return true
		}
	}

	return false
}

func (s *Store) notify() {
	if s.onChange != nil {
		s.onChange()
	}
}
