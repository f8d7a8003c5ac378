// Package server is the in-memory reference implementation of the task CRUD
// contract the HTTP remote adapter speaks. It exists as a development and
// test fixture; production deployments bring their own server.
package server

import (
	"encoding/json"
	"net/http"
	"slices"
	"sync"
	"time"

	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"github.com/csaptu/tasksync/internal/store"
	"github.com/csaptu/tasksync/internal/task"
)

// Server holds the canonical task set behind the REST surface.
type Server struct {
	mu    sync.Mutex
	tasks map[string]*task.Task
	log   *zap.Logger
	now   func() time.Time
}

// New builds a server with an empty task set.
func New(log *zap.Logger) *Server {
	if log == nil {
		log = zap.NewNop()
	}

	return &Server{
		tasks: make(map[string]*task.Task),
		log:   log,
		now:   time.Now,
	}
}

// Handler returns the routed HTTP surface.
func (s *Server) Handler() http.Handler {
	r := mux.NewRouter()

	r.HandleFunc("/v1/tasks", s.handleList).Methods(http.MethodGet)
	r.HandleFunc("/v1/tasks", s.handleCreate).Methods(http.MethodPost)
	r.HandleFunc("/v1/tasks/{id}", s.handleUpdate).Methods(http.MethodPatch)
	r.HandleFunc("/v1/tasks/{id}", s.handleDelete).Methods(http.MethodDelete)
	r.HandleFunc("/v1/healthz", s.handleHealth).Methods(http.MethodGet, http.MethodHead)

	return r
}

// Seed inserts tasks directly, for tests and demos.
func (s *Server) Seed(tasks ...*task.Task) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, t := range tasks {
		s.tasks[t.ID] = t.Clone()
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleList(w http.ResponseWriter, _ *http.Request) {
	s.mu.Lock()

	out := make([]*task.Task, 0, len(s.tasks))
	for _, t := range s.tasks {
		out = append(out, t.Clone())
	}

	s.mu.Unlock()

	// Stable order keeps responses diffable in tests.
	slices.SortFunc(out, func(a, b *task.Task) int {
		switch {
		case a.ID < b.ID:
			return -1
		case a.ID > b.ID:
			return 1
		default:
			return 0
		}
	})

	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleCreate(w http.ResponseWriter, r *http.Request) {
	var payload store.CreatePayload

	err := json.NewDecoder(r.Body).Decode(&payload)
	if err != nil {
		writeError(w, http.StatusBadRequest, "malformed body")

		return
	}

	if payload.Title == "" {
		writeError(w, http.StatusUnprocessableEntity, "title is required")

		return
	}

	now := s.now().UTC()

	t := &task.Task{
		ID:          payload.ID,
		Title:       payload.Title,
		Description: payload.Description,
		Status:      task.StatusPending,
		Priority:    payload.Priority,
		DueAllDay:   payload.DueAllDay,
		ParentID:    payload.ParentID,
		Tags:        payload.Tags,
		Metadata:    payload.Metadata,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	// Clients mint their own ids; adopt them so optimistic entries line up.
	if t.ID == "" {
		id, idErr := task.NewID()
		if idErr != nil {
			writeError(w, http.StatusInternalServerError, "id generation failed")

			return
		}

		t.ID = id
	}

	if !t.Priority.Valid() {
		t.Priority = task.DefaultPriority
	}

	if payload.DueAt != "" {
		due, parseErr := time.Parse(time.RFC3339, payload.DueAt)
		if parseErr != nil {
			writeError(w, http.StatusUnprocessableEntity, "malformed due_at")

			return
		}

		t.DueAt = &due
	}

	s.mu.Lock()
	s.tasks[t.ID] = t
	s.mu.Unlock()

	s.log.Debug("stored task", zap.String("id", t.ID))
	writeJSON(w, http.StatusCreated, t)
}

func (s *Server) handleUpdate(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]

	var payload store.UpdatePayload

	err := json.NewDecoder(r.Body).Decode(&payload)
	if err != nil {
		writeError(w, http.StatusBadRequest, "malformed body")

		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	t, ok := s.tasks[id]
	if !ok {
		writeError(w, http.StatusNotFound, "task not found")

		return
	}

	next := t.Clone()

	err = applyPatch(next, &payload)
	if err != nil {
		writeError(w, http.StatusUnprocessableEntity, err.Error())

		return
	}

	next.UpdatedAt = s.now().UTC()
	s.tasks[id] = next

	writeJSON(w, http.StatusOK, next)
}

func (s *Server) handleDelete(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]

	s.mu.Lock()
	_, ok := s.tasks[id]
	delete(s.tasks, id)
	s.mu.Unlock()

	if !ok {
		writeError(w, http.StatusNotFound, "task not found")

		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// applyPatch replays an update delta onto the canonical record, mirroring
// the client's last-writer-wins-by-replacement semantics.
func applyPatch(t *task.Task, p *store.UpdatePayload) error {
	if p.Title != nil {
		t.Title = *p.Title
	}

	if p.Description != nil {
		t.Description = *p.Description
	}

	if p.Status != nil {
		if !p.Status.Valid() {
			return task.ErrInvalid
		}

		t.Status = *p.Status
	}

	if p.Priority != nil {
		if !p.Priority.Valid() {
			return task.ErrInvalid
		}

		t.Priority = *p.Priority
	}

	if p.ParentID != nil {
		t.ParentID = *p.ParentID
	}

	if p.Tags != nil {
		t.Tags = *p.Tags
	}

	if p.Metadata != nil {
		t.Metadata = p.Metadata
	}

	if p.ClearDue {
		t.DueAt = nil
		t.DueAllDay = false

		return nil
	}

	if p.DueAllDay != nil {
		t.DueAllDay = *p.DueAllDay
	}

	if p.DueAt != nil {
		due, err := time.Parse(time.RFC3339, *p.DueAt)
		if err != nil {
			return task.ErrInvalid
		}

		t.DueAt = &due
	}

	return nil
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
