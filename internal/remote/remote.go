// Package remote defines the network contract the sync engine drains the
// operation queue against, plus the HTTP implementation of it.
package remote

import (
	"context"

	"github.com/csaptu/tasksync/internal/store"
	"github.com/csaptu/tasksync/internal/task"
)

// Service performs the actual create/update/delete/list calls against the
// server. Each call either returns the canonical task state or fails with an
// error the engine records on the operation as a string.
type Service interface {
	Create(ctx context.Context, payload *store.CreatePayload) (*task.Task, error)
	Update(ctx context.Context, id string, payload *store.UpdatePayload) (*task.Task, error)
	Delete(ctx context.Context, id string) error
	List(ctx context.Context) ([]*task.Task, error)
}
