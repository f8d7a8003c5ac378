package store_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/csaptu/tasksync/internal/store"
	"github.com/csaptu/tasksync/internal/task"
	"github.com/csaptu/tasksync/internal/testutil"
)

func newStore(t *testing.T, persistence *testutil.MemoryPersist) *store.Store {
	t.Helper()

	var p store.Options

	p.Now = testutil.NewClock().Now
	if persistence != nil {
		p.Persistence = persistence
	}

	s, err := store.Open(t.Context(), p)
	if err != nil {
		t.Fatalf("open store: %v", err)
	}

	return s
}

func strp(s string) *string { return &s }

func mustCreate(t *testing.T, s *store.Store, title string) *task.Task {
	t.Helper()

	created, err := s.CreateTask(t.Context(), store.Fields{Title: strp(title)})
	if err != nil {
		t.Fatalf("create %q: %v", title, err)
	}

	return created
}

func serverTask(id, title string) *task.Task {
	now := time.Date(2023, 6, 1, 0, 0, 0, 0, time.UTC)

	return &task.Task{
		ID:        id,
		Title:     title,
		Status:    task.StatusPending,
		Priority:  task.DefaultPriority,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

func viewIDs(s *store.Store) map[string]string {
	out := make(map[string]string)

	for _, t := range s.MergedView() {
		out[t.ID] = t.Title
	}

	return out
}

func Test_CreateTask_Works_Fully_Offline(t *testing.T) {
	t.Parallel()

	persistence := testutil.NewMemoryPersist()
	s := newStore(t, persistence)

	created := mustCreate(t, s, "Buy milk")

	if created.ID == "" {
		t.Fatal("created task has no id")
	}

	if created.Status != task.StatusPending {
		t.Fatalf("status = %q, want pending", created.Status)
	}

	view := viewIDs(s)
	if view[created.ID] != "Buy milk" {
		t.Fatalf("merged view missing created task: %v", view)
	}

	if s.PendingCount() != 1 {
		t.Fatalf("pending count = %d, want 1", s.PendingCount())
	}

	if persistence.Writes() == 0 {
		t.Fatal("create did not persist")
	}
}

func Test_CreateTask_Rejects_Empty_Title(t *testing.T) {
	t.Parallel()

	s := newStore(t, nil)

	_, err := s.CreateTask(t.Context(), store.Fields{Title: strp("   ")})
	if !errors.Is(err, store.ErrTitleEmpty) {
		t.Fatalf("err = %v, want ErrTitleEmpty", err)
	}
}

func Test_MergedView_Prefers_Optimistic_Over_Server(t *testing.T) {
	t.Parallel()

	s := newStore(t, nil)
	s.SetServerTasks([]*task.Task{serverTask("t1", "server title")})

	_, err := s.UpdateTask(t.Context(), "t1", store.Fields{Title: strp("local title")})
	if err != nil {
		t.Fatalf("update: %v", err)
	}

	view := viewIDs(s)
	if view["t1"] != "local title" {
		t.Fatalf("view shows %q, want optimistic value", view["t1"])
	}

	if len(view) != 1 {
		t.Fatalf("view has %d entries, want 1 (no duplicate ids)", len(view))
	}
}

func Test_MergedView_Hides_Deleted_Ids(t *testing.T) {
	t.Parallel()

	s := newStore(t, nil)
	s.SetServerTasks([]*task.Task{serverTask("t1", "doomed"), serverTask("t2", "stays")})

	err := s.DeleteTask(t.Context(), "t1")
	if err != nil {
		t.Fatalf("delete: %v", err)
	}

	view := viewIDs(s)

	if _, ok := view["t1"]; ok {
		t.Fatal("deleted id still visible")
	}

	if _, ok := view["t2"]; !ok {
		t.Fatal("unrelated task disappeared")
	}
}

func Test_DeleteTask_Purges_Optimistic_Entry_First(t *testing.T) {
	t.Parallel()

	s := newStore(t, nil)
	created := mustCreate(t, s, "temp")

	err := s.DeleteTask(t.Context(), created.ID)
	if err != nil {
		t.Fatalf("delete: %v", err)
	}

	if _, ok := viewIDs(s)[created.ID]; ok {
		t.Fatal("deleted optimistic task still visible")
	}

	// Deleted ids shadow every partition.
	_, err = s.UpdateTask(t.Context(), created.ID, store.Fields{Title: strp("zombie")})
	if !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
}

func Test_DeleteTask_Returns_NotFound_For_Unknown_Id(t *testing.T) {
	t.Parallel()

	s := newStore(t, nil)

	err := s.DeleteTask(t.Context(), "ghost")
	if !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
}

func Test_UpdateTask_Returns_NotFound_For_Unknown_Id(t *testing.T) {
	t.Parallel()

	s := newStore(t, nil)

	_, err := s.UpdateTask(t.Context(), "ghost", store.Fields{Title: strp("x")})
	if !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
}

func Test_UpdateTask_Payload_Contains_Only_Changed_Fields(t *testing.T) {
	t.Parallel()

	s := newStore(t, nil)
	s.SetServerTasks([]*task.Task{serverTask("t1", "same title")})

	priority := task.PriorityUrgent

	_, err := s.UpdateTask(t.Context(), "t1", store.Fields{
		Title:    strp("same title"),
		Priority: &priority,
	})
	if err != nil {
		t.Fatalf("update: %v", err)
	}

	ops := s.PendingOperations()
	if len(ops) != 1 {
		t.Fatalf("queue has %d ops, want 1", len(ops))
	}

	payload, err := store.DecodeUpdatePayload(ops[0])
	if err != nil {
		t.Fatalf("decode payload: %v", err)
	}

	if payload.Title != nil {
		t.Fatal("unchanged title leaked into delta payload")
	}

	if payload.Priority == nil || *payload.Priority != task.PriorityUrgent {
		t.Fatal("changed priority missing from delta payload")
	}
}

func Test_UpdateTask_Without_Changes_Enqueues_Nothing(t *testing.T) {
	t.Parallel()

	s := newStore(t, nil)
	s.SetServerTasks([]*task.Task{serverTask("t1", "same")})

	_, err := s.UpdateTask(t.Context(), "t1", store.Fields{Title: strp("same")})
	if err != nil {
		t.Fatalf("update: %v", err)
	}

	if s.PendingCount() != 0 {
		t.Fatalf("no-op update enqueued %d operations", s.PendingCount())
	}
}

func Test_ClearDue_Is_Distinct_From_Due_Unset(t *testing.T) {
	t.Parallel()

	s := newStore(t, nil)

	base := serverTask("t1", "due soon")
	due := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	base.DueAt = &due
	s.SetServerTasks([]*task.Task{base})

	// Due date omitted entirely: existing value stays.
	updated, err := s.UpdateTask(t.Context(), "t1", store.Fields{Title: strp("renamed")})
	if err != nil {
		t.Fatalf("update: %v", err)
	}

	if updated.DueAt == nil || !updated.DueAt.Equal(due) {
		t.Fatal("omitted due date should stay untouched")
	}

	// Explicit clear removes it.
	updated, err = s.UpdateTask(t.Context(), "t1", store.Fields{ClearDue: true})
	if err != nil {
		t.Fatalf("clear: %v", err)
	}

	if updated.DueAt != nil {
		t.Fatal("clear-due left the due date in place")
	}

	ops := s.PendingOperations()

	payload, err := store.DecodeUpdatePayload(ops[len(ops)-1])
	if err != nil {
		t.Fatalf("decode payload: %v", err)
	}

	if !payload.ClearDue {
		t.Fatal("clear flag missing from delta payload")
	}
}

func Test_CompleteTask_And_UncompleteTask_Flip_Status(t *testing.T) {
	t.Parallel()

	s := newStore(t, nil)
	s.SetServerTasks([]*task.Task{serverTask("t1", "chore")})

	completed, err := s.CompleteTask(t.Context(), "t1")
	if err != nil {
		t.Fatalf("complete: %v", err)
	}

	if completed.Status != task.StatusCompleted {
		t.Fatalf("status = %q, want completed", completed.Status)
	}

	reopened, err := s.UncompleteTask(t.Context(), "t1")
	if err != nil {
		t.Fatalf("uncomplete: %v", err)
	}

	if reopened.Status != task.StatusPending {
		t.Fatalf("status = %q, want pending", reopened.Status)
	}
}

func Test_Subtask_Nesting_Is_Limited_To_One_Level(t *testing.T) {
	t.Parallel()

	s := newStore(t, nil)

	root := mustCreate(t, s, "root")

	child, err := s.CreateTask(t.Context(), store.Fields{
		Title:    strp("child"),
		ParentID: &root.ID,
	})
	if err != nil {
		t.Fatalf("create child: %v", err)
	}

	_, err = s.CreateTask(t.Context(), store.Fields{
		Title:    strp("grandchild"),
		ParentID: &child.ID,
	})
	if !errors.Is(err, store.ErrNestingTooDeep) {
		t.Fatalf("err = %v, want ErrNestingTooDeep", err)
	}

	// A parent with children cannot itself become a subtask.
	other := mustCreate(t, s, "other root")

	_, err = s.UpdateTask(t.Context(), root.ID, store.Fields{ParentID: &other.ID})
	if !errors.Is(err, store.ErrNestingTooDeep) {
		t.Fatalf("err = %v, want ErrNestingTooDeep", err)
	}
}

func Test_CreateTask_Rejects_Unknown_Parent(t *testing.T) {
	t.Parallel()

	s := newStore(t, nil)

	_, err := s.CreateTask(t.Context(), store.Fields{
		Title:    strp("orphan"),
		ParentID: strp("ghost"),
	})
	if !errors.Is(err, store.ErrParentNotFound) {
		t.Fatalf("err = %v, want ErrParentNotFound", err)
	}
}

func Test_OnSyncSuccess_Moves_Entity_To_Server_Partition(t *testing.T) {
	t.Parallel()

	s := newStore(t, nil)
	created := mustCreate(t, s, "report")

	ops := s.PendingOperations()

	canonical := created.Clone()
	canonical.Metadata = map[string]any{"server": "annotated"}

	err := s.OnSyncSuccess(t.Context(), ops[0].ID, canonical)
	if err != nil {
		t.Fatalf("on sync success: %v", err)
	}

	if s.PendingCount() != 0 {
		t.Fatal("confirmed operation still queued")
	}

	view := s.MergedView()
	if len(view) != 1 || view[0].Metadata["server"] != "annotated" {
		t.Fatal("authoritative server result not reflected in view")
	}
}

func Test_OnSyncSuccess_Is_Idempotent(t *testing.T) {
	t.Parallel()

	s := newStore(t, nil)
	created := mustCreate(t, s, "once")

	ops := s.PendingOperations()

	err := s.OnSyncSuccess(t.Context(), ops[0].ID, created)
	if err != nil {
		t.Fatalf("first callback: %v", err)
	}

	// Duplicate callback for the same operation id.
	err = s.OnSyncSuccess(t.Context(), ops[0].ID, created)
	if err != nil {
		t.Fatalf("second callback: %v", err)
	}

	if len(s.MergedView()) != 1 {
		t.Fatal("duplicate callback corrupted the view")
	}
}

func Test_OnSyncSuccess_For_Delete_Discards_Id_Everywhere(t *testing.T) {
	t.Parallel()

	s := newStore(t, nil)
	s.SetServerTasks([]*task.Task{serverTask("t1", "doomed")})

	err := s.DeleteTask(t.Context(), "t1")
	if err != nil {
		t.Fatalf("delete: %v", err)
	}

	ops := s.PendingOperations()

	err = s.OnSyncSuccess(t.Context(), ops[0].ID, nil)
	if err != nil {
		t.Fatalf("on sync success: %v", err)
	}

	if s.PendingCount() != 0 {
		t.Fatal("confirmed delete still queued")
	}

	if len(s.MergedView()) != 0 {
		t.Fatal("deleted task still visible after confirmation")
	}
}

func Test_OnSyncError_Bumps_Retry_Without_Touching_View(t *testing.T) {
	t.Parallel()

	s := newStore(t, nil)
	created := mustCreate(t, s, "flaky")

	ops := s.PendingOperations()

	err := s.OnSyncError(t.Context(), ops[0].ID, "connection refused")
	if err != nil {
		t.Fatalf("on sync error: %v", err)
	}

	ops = s.PendingOperations()
	if ops[0].RetryCount != 1 || ops[0].Error != "connection refused" {
		t.Fatalf("retry bookkeeping wrong: %+v", ops[0])
	}

	// The optimistic view never reverts on failure.
	if _, ok := viewIDs(s)[created.ID]; !ok {
		t.Fatal("failing sync removed the optimistic task")
	}
}

func Test_Rollback_Create_Removes_Task_And_Operation(t *testing.T) {
	t.Parallel()

	s := newStore(t, nil)
	created := mustCreate(t, s, "abandoned")

	ops := s.PendingOperations()

	err := s.Rollback(t.Context(), ops[0].ID)
	if err != nil {
		t.Fatalf("rollback: %v", err)
	}

	if _, ok := viewIDs(s)[created.ID]; ok {
		t.Fatal("rolled back create still visible")
	}

	if s.PendingCount() != 0 {
		t.Fatal("rolled back operation still queued")
	}
}

func Test_Rollback_Update_Reverts_To_Server_Version(t *testing.T) {
	t.Parallel()

	s := newStore(t, nil)
	s.SetServerTasks([]*task.Task{serverTask("t1", "server truth")})

	_, err := s.UpdateTask(t.Context(), "t1", store.Fields{Title: strp("local edit")})
	if err != nil {
		t.Fatalf("update: %v", err)
	}

	ops := s.PendingOperations()

	err = s.Rollback(t.Context(), ops[0].ID)
	if err != nil {
		t.Fatalf("rollback: %v", err)
	}

	if viewIDs(s)["t1"] != "server truth" {
		t.Fatal("rollback did not revert to the server version")
	}
}

func Test_Rollback_Delete_Makes_Task_Reappear(t *testing.T) {
	t.Parallel()

	s := newStore(t, nil)
	s.SetServerTasks([]*task.Task{serverTask("t1", "back again")})

	err := s.DeleteTask(t.Context(), "t1")
	if err != nil {
		t.Fatalf("delete: %v", err)
	}

	ops := s.PendingOperations()

	err = s.Rollback(t.Context(), ops[0].ID)
	if err != nil {
		t.Fatalf("rollback: %v", err)
	}

	if _, ok := viewIDs(s)["t1"]; !ok {
		t.Fatal("rolled back delete did not restore the task")
	}
}

func Test_Rollback_Unknown_Operation_Fails(t *testing.T) {
	t.Parallel()

	s := newStore(t, nil)

	err := s.Rollback(t.Context(), "ghost-op")
	if !errors.Is(err, store.ErrOperationNotFound) {
		t.Fatalf("err = %v, want ErrOperationNotFound", err)
	}
}

func Test_UpdateTasksFromServer_Wins_Over_Optimistic(t *testing.T) {
	t.Parallel()

	s := newStore(t, nil)
	s.SetServerTasks([]*task.Task{serverTask("t1", "v1")})

	_, err := s.UpdateTask(t.Context(), "t1", store.Fields{Title: strp("local v2")})
	if err != nil {
		t.Fatalf("update: %v", err)
	}

	// Out-of-band canonical record, e.g. pushed after a server-side change.
	err = s.UpdateTaskFromServer(t.Context(), serverTask("t1", "canonical v3"))
	if err != nil {
		t.Fatalf("update from server: %v", err)
	}

	if viewIDs(s)["t1"] != "canonical v3" {
		t.Fatal("server truth did not replace the optimistic entry")
	}
}

func Test_ClearPending_Keeps_Server_Tasks(t *testing.T) {
	t.Parallel()

	s := newStore(t, nil)
	s.SetServerTasks([]*task.Task{serverTask("t1", "safe")})

	mustCreate(t, s, "draft")

	err := s.DeleteTask(t.Context(), "t1")
	if err != nil {
		t.Fatalf("delete: %v", err)
	}

	err = s.ClearPending(t.Context())
	if err != nil {
		t.Fatalf("clear pending: %v", err)
	}

	if s.PendingCount() != 0 {
		t.Fatal("queue not emptied")
	}

	view := viewIDs(s)
	if len(view) != 1 || view["t1"] != "safe" {
		t.Fatalf("server partition damaged by reset: %v", view)
	}
}

func Test_PeekPending_Filters_Exhausted_Operations(t *testing.T) {
	t.Parallel()

	s := newStore(t, nil)
	mustCreate(t, s, "first")
	mustCreate(t, s, "second")

	ops := s.PendingOperations()

	for range 3 {
		err := s.OnSyncError(t.Context(), ops[0].ID, "boom")
		if err != nil {
			t.Fatalf("on sync error: %v", err)
		}
	}

	pending := s.PeekPending(3)
	if len(pending) != 1 {
		t.Fatalf("peek returned %d ops, want 1", len(pending))
	}

	if pending[0].ID != ops[1].ID {
		t.Fatal("peek returned the exhausted operation")
	}

	// The exhausted operation stays queued for diagnostics.
	if s.PendingCount() != 2 {
		t.Fatalf("pending count = %d, want 2", s.PendingCount())
	}
}

func Test_Operations_Stay_FIFO_For_Same_Entity(t *testing.T) {
	t.Parallel()

	s := newStore(t, nil)
	s.SetServerTasks([]*task.Task{serverTask("t1", "start")})

	_, err := s.UpdateTask(t.Context(), "t1", store.Fields{Title: strp("x")})
	if err != nil {
		t.Fatalf("first update: %v", err)
	}

	_, err = s.UpdateTask(t.Context(), "t1", store.Fields{Title: strp("y")})
	if err != nil {
		t.Fatalf("second update: %v", err)
	}

	ops := s.PendingOperations()
	if len(ops) != 2 {
		t.Fatalf("queue has %d ops, want 2", len(ops))
	}

	first, err := store.DecodeUpdatePayload(ops[0])
	if err != nil {
		t.Fatalf("decode first: %v", err)
	}

	second, err := store.DecodeUpdatePayload(ops[1])
	if err != nil {
		t.Fatalf("decode second: %v", err)
	}

	if *first.Title != "x" || *second.Title != "y" {
		t.Fatalf("replay order broken: %q then %q", *first.Title, *second.Title)
	}
}

func Test_Open_Restores_Persisted_Pending_State(t *testing.T) {
	t.Parallel()

	persistence := testutil.NewMemoryPersist()

	s := newStore(t, persistence)
	s.SetServerTasks([]*task.Task{serverTask("t1", "doomed")})

	created := mustCreate(t, s, "draft")

	err := s.DeleteTask(t.Context(), "t1")
	if err != nil {
		t.Fatalf("delete: %v", err)
	}

	// Relaunch: a fresh store over the same persistence.
	reopened := newStore(t, persistence)

	if reopened.PendingCount() != 2 {
		t.Fatalf("restored queue has %d ops, want 2", reopened.PendingCount())
	}

	view := viewIDs(reopened)

	if _, ok := view[created.ID]; !ok {
		t.Fatal("optimistic task lost across relaunch")
	}

	// Server tasks live in memory only, but the deleted id must survive
	// so the next refresh cannot resurrect the task.
	reopened.SetServerTasks([]*task.Task{serverTask("t1", "doomed")})

	if _, ok := viewIDs(reopened)["t1"]; ok {
		t.Fatal("deleted id lost across relaunch")
	}
}

func Test_Version_Advances_On_Every_Mutation(t *testing.T) {
	t.Parallel()

	s := newStore(t, nil)

	before := s.Version()
	s.SetServerTasks([]*task.Task{serverTask("t1", "same value")})
	s.SetServerTasks([]*task.Task{serverTask("t1", "same value")})

	if s.Version() != before+2 {
		t.Fatalf("version = %d, want %d", s.Version(), before+2)
	}
}

func Test_OnChange_Fires_After_Mutations(t *testing.T) {
	t.Parallel()

	var notified int

	s, err := store.Open(context.Background(), store.Options{
		OnChange: func() { notified++ },
		Now:      testutil.NewClock().Now,
	})
	if err != nil {
		t.Fatalf("open store: %v", err)
	}

	_, err = s.CreateTask(context.Background(), store.Fields{Title: strp("ping")})
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	s.SetServerTasks(nil)

	if notified != 2 {
		t.Fatalf("onChange fired %d times, want 2", notified)
	}
}
