package store

import (
	"encoding/json"
	"slices"
	"time"
)

// queue is the ordered log of not-yet-confirmed operations, in submission
// order. Not safe for concurrent use; the owning Store's mutex guards it.
type queue struct {
	ops []*Operation
}

// enqueue appends a new operation with retryCount=0 and no error.
// It never rejects.
func (q *queue) enqueue(kind OpKind, entityType EntityType, entityID string, data json.RawMessage, now time.Time) (*Operation, error) {
	op, err := newOperation(kind, entityType, entityID, data, now)
	if err != nil {
		return nil, err
	}

	q.ops = append(q.ops, op)

	return op, nil
}

// get returns the queued operation with the given id, or nil.
func (q *queue) get(opID string) *Operation {
	for _, op := range q.ops {
		if op.ID == opID {
			return op
		}
	}

	return nil
}

// markFailed increments the retry count and records the error.
// The operation stays queued for a future retry. Reports whether the
// operation was found.
func (q *queue) markFailed(opID, errMsg string) bool {
	op := q.get(opID)
	if op == nil {
		return false
	}

	op.RetryCount++
	op.Error = errMsg

	return true
}

// remove deletes the operation on success or explicit rollback, preserving
// the relative order of the remainder.
func (q *queue) remove(opID string) bool {
	for i, op := range q.ops {
		if op.ID == opID {
			q.ops = slices.Delete(q.ops, i, i+1)

			return true
		}
	}

	return false
}

// peekPending returns queued operations in FIFO order whose retry count is
// below the ceiling. Operations beyond the ceiling stay queued so they
// remain visible for diagnostics; they are only filtered from the view.
func (q *queue) peekPending(maxRetries int) []*Operation {
	pending := make([]*Operation, 0, len(q.ops))

	for _, op := range q.ops {
		if op.RetryCount >= maxRetries {
			continue
		}

		pending = append(pending, op)
	}

	return pending
}

// snapshot returns shallow copies of every queued operation in FIFO order.
func (q *queue) snapshot() []*Operation {
	out := make([]*Operation, 0, len(q.ops))

	for _, op := range q.ops {
		c := *op
		out = append(out, &c)
	}

	return out
}

func (q *queue) len() int {
	return len(q.ops)
}

func (q *queue) reset() {
	q.ops = nil
}
