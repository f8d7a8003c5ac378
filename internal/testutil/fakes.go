// Package testutil provides deterministic fakes for the sync core's
// external collaborators: the remote service, persistence, connectivity,
// and the clock.
package testutil

import (
	"context"
	"errors"
	"slices"
	"sync"
	"time"

	"github.com/csaptu/tasksync/internal/store"
	"github.com/csaptu/tasksync/internal/task"
)

// RemoteCall records one dispatched adapter call for assertions.
type RemoteCall struct {
	Kind     store.OpKind
	EntityID string
	Create   *store.CreatePayload
	Update   *store.UpdatePayload
}

// FakeRemote is an in-memory remote service. Tests can inject per-call
// failures and inspect the exact call sequence.
type FakeRemote struct {
	mu    sync.Mutex
	tasks map[string]*task.Task
	calls []RemoteCall

	// FailNext makes the next n calls fail with FailErr.
	failNext int
	failErr  error

	// FailAll makes every call fail until cleared.
	failAll bool
}

// NewFakeRemote returns an empty fake remote.
func NewFakeRemote() *FakeRemote {
	return &FakeRemote{
		tasks:   make(map[string]*task.Task),
		failErr: errors.New("injected remote failure"),
	}
}

// FailNext arranges for the next n calls to fail.
func (f *FakeRemote) FailNext(n int) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.failNext = n
}

// SetFailAll toggles unconditional failure, simulating an unreachable
// server.
func (f *FakeRemote) SetFailAll(fail bool) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.failAll = fail
}

// Calls returns a copy of the recorded call sequence.
func (f *FakeRemote) Calls() []RemoteCall {
	f.mu.Lock()
	defer f.mu.Unlock()

	return slices.Clone(f.calls)
}

// CallCount returns how many adapter calls were dispatched.
func (f *FakeRemote) CallCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()

	return len(f.calls)
}

// Seed stores tasks server-side without recording calls.
func (f *FakeRemote) Seed(tasks ...*task.Task) {
	f.mu.Lock()
	defer f.mu.Unlock()

	for _, t := range tasks {
		f.tasks[t.ID] = t.Clone()
	}
}

// Task returns the server-side copy of id, or nil.
func (f *FakeRemote) Task(id string) *task.Task {
	f.mu.Lock()
	defer f.mu.Unlock()

	return f.tasks[id].Clone()
}

func (f *FakeRemote) failCheck() error {
	if f.failAll {
		return f.failErr
	}

	if f.failNext > 0 {
		f.failNext--

		return f.failErr
	}

	return nil
}

// Create stores a new server-side task adopting the client id.
func (f *FakeRemote) Create(_ context.Context, payload *store.CreatePayload) (*task.Task, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.calls = append(f.calls, RemoteCall{Kind: store.OpCreate, EntityID: payload.ID, Create: payload})

	err := f.failCheck()
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()

	t := &task.Task{
		ID:          payload.ID,
		Title:       payload.Title,
		Description: payload.Description,
		Status:      task.StatusPending,
		Priority:    payload.Priority,
		DueAllDay:   payload.DueAllDay,
		ParentID:    payload.ParentID,
		Tags:        slices.Clone(payload.Tags),
		Metadata:    payload.Metadata,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	if payload.DueAt != "" {
		due, parseErr := time.Parse(time.RFC3339, payload.DueAt)
		if parseErr != nil {
			return nil, parseErr
		}

		t.DueAt = &due
	}

	f.tasks[t.ID] = t

	return t.Clone(), nil
}

// Update applies a delta to the server-side task.
func (f *FakeRemote) Update(_ context.Context, id string, payload *store.UpdatePayload) (*task.Task, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.calls = append(f.calls, RemoteCall{Kind: store.OpUpdate, EntityID: id, Update: payload})

	err := f.failCheck()
	if err != nil {
		return nil, err
	}

	t, ok := f.tasks[id]
	if !ok {
		return nil, errors.New("remote: task not found")
	}

	next := t.Clone()

	if payload.Title != nil {
		next.Title = *payload.Title
	}

	if payload.Description != nil {
		next.Description = *payload.Description
	}

	if payload.Status != nil {
		next.Status = *payload.Status
	}

	if payload.Priority != nil {
		next.Priority = *payload.Priority
	}

	if payload.ParentID != nil {
		next.ParentID = *payload.ParentID
	}

	if payload.Tags != nil {
		next.Tags = slices.Clone(*payload.Tags)
	}

	if payload.Metadata != nil {
		next.Metadata = payload.Metadata
	}

	if payload.ClearDue {
		next.DueAt = nil
		next.DueAllDay = false
	} else if payload.DueAt != nil {
		due, parseErr := time.Parse(time.RFC3339, *payload.DueAt)
		if parseErr != nil {
			return nil, parseErr
		}

		next.DueAt = &due

		if payload.DueAllDay != nil {
			next.DueAllDay = *payload.DueAllDay
		}
	}

	next.UpdatedAt = time.Now().UTC()
	f.tasks[id] = next

	return next.Clone(), nil
}

// Delete removes the server-side task.
func (f *FakeRemote) Delete(_ context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.calls = append(f.calls, RemoteCall{Kind: store.OpDelete, EntityID: id})

	err := f.failCheck()
	if err != nil {
		return err
	}

	delete(f.tasks, id)

	return nil
}

// List returns all server-side tasks.
func (f *FakeRemote) List(_ context.Context) ([]*task.Task, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	err := f.failCheck()
	if err != nil {
		return nil, err
	}

	out := make([]*task.Task, 0, len(f.tasks))
	for _, t := range f.tasks {
		out = append(out, t.Clone())
	}

	return out, nil
}

// MemoryPersist is an in-memory persistence adapter. Writes count so tests
// can assert durability happened.
type MemoryPersist struct {
	mu     sync.Mutex
	lists  map[string][]string
	writes int
}

// NewMemoryPersist returns an empty in-memory persistence store.
func NewMemoryPersist() *MemoryPersist {
	return &MemoryPersist{lists: make(map[string][]string)}
}

// ReadList returns the stored list for key; missing keys read empty.
func (m *MemoryPersist) ReadList(_ context.Context, key string) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	return slices.Clone(m.lists[key]), nil
}

// WriteList replaces the stored list for key.
func (m *MemoryPersist) WriteList(_ context.Context, key string, values []string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.lists[key] = slices.Clone(values)
	m.writes++

	return nil
}

// Writes returns how many WriteList calls happened.
func (m *MemoryPersist) Writes() int {
	m.mu.Lock()
	defer m.mu.Unlock()

	return m.writes
}

// FakeNotifier is a hand-driven connectivity signal.
type FakeNotifier struct {
	mu     sync.Mutex
	online bool
	ch     chan bool
}

// NewFakeNotifier starts in the given state.
func NewFakeNotifier(online bool) *FakeNotifier {
	return &FakeNotifier{online: online, ch: make(chan bool, 8)}
}

// Online returns the current state.
func (f *FakeNotifier) Online() bool {
	f.mu.Lock()
	defer f.mu.Unlock()

	return f.online
}

// Subscribe returns the transition channel.
func (f *FakeNotifier) Subscribe() <-chan bool {
	return f.ch
}

// Set flips the state and pushes the transition.
func (f *FakeNotifier) Set(online bool) {
	f.mu.Lock()
	f.online = online
	f.mu.Unlock()

	f.ch <- online
}
