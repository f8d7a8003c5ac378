package task

import "errors"

// ErrInvalid reports a task value that violates a structural invariant.
// Callers should use errors.Is(err, ErrInvalid).
var ErrInvalid = errors.New("invalid task")
