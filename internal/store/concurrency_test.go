package store_test

import (
	"sync"
	"testing"

	"github.com/csaptu/tasksync/internal/store"
	"github.com/csaptu/tasksync/internal/task"
	"github.com/csaptu/tasksync/internal/testutil"
)

// Exercises the store under mixed concurrent mutation and reads. Run with
// -race; the assertions only check that nothing is lost or duplicated.
func Test_Store_Survives_Concurrent_Mutation_And_Reads(t *testing.T) {
	t.Parallel()

	const writers = 8
	const perWriter = 25

	s := newStore(t, testutil.NewMemoryPersist())
	s.SetServerTasks([]*task.Task{serverTask("base", "shared")})

	var wg sync.WaitGroup

	for w := range writers {
		wg.Add(1)

		go func() {
			defer wg.Done()

			for range perWriter {
				_, err := s.CreateTask(t.Context(), store.Fields{Title: strp("w")})
				if err != nil {
					t.Errorf("writer %d: create: %v", w, err)

					return
				}
			}
		}()
	}

	wg.Add(1)

	go func() {
		defer wg.Done()

		for range writers * perWriter {
			_ = s.MergedView()
			_ = s.PendingOperations()
			_ = s.Version()
			_, _ = s.UpdateTask(t.Context(), "base", store.Fields{Description: strp("touched")})
		}
	}()

	wg.Wait()

	view := s.MergedView()
	if len(view) != writers*perWriter+1 {
		t.Fatalf("view has %d tasks, want %d", len(view), writers*perWriter+1)
	}

	seen := make(map[string]bool, len(view))
	for _, tk := range view {
		if seen[tk.ID] {
			t.Fatalf("id %q appears twice in the merged view", tk.ID)
		}

		seen[tk.ID] = true
	}
}
