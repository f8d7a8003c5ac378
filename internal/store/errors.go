package store

import "errors"

// ErrNotFound reports a mutation targeting an id absent from both the
// server-tasks and optimistic-tasks partitions.
// Callers should use errors.Is(err, ErrNotFound).
var ErrNotFound = errors.New("task not found")

// ErrOperationNotFound reports a rollback targeting an operation id that is
// no longer queued.
var ErrOperationNotFound = errors.New("operation not found")

// ErrTitleEmpty reports a create with an empty title.
var ErrTitleEmpty = errors.New("title is empty")

// ErrParentNotFound reports a parent id that resolves to no known task.
var ErrParentNotFound = errors.New("parent task not found")

// ErrNestingTooDeep reports an attempt to nest a task under a task that is
// itself a subtask. Only one level of nesting is permitted.
var ErrNestingTooDeep = errors.New("subtask nesting too deep")
