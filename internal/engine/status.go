package engine

// Status is the aggregate sync state the UI shows as an indicator.
type Status string

// Aggregate states, derived from (connectivity, in-flight flag, queue).
const (
	StatusSynced  Status = "synced"
	StatusSyncing Status = "syncing"
	StatusPending Status = "pending"
	StatusOffline Status = "offline"
	StatusError   Status = "error"
)

// Status recomputes the aggregate state. It is a pure function of current
// connectivity, the drain flag, and the queue; never a cached value.
//
// Priority order: offline beats everything; an active drain reports syncing;
// a non-empty queue reports pending, or error when every queued operation
// has exhausted its retries and no pass will attempt them again.
func (e *Engine) Status() Status {
	e.mu.Lock()
	online := e.online
	draining := e.machine.Current() == stateSyncing
	e.mu.Unlock()

	if !online {
		return StatusOffline
	}

	if draining {
		return StatusSyncing
	}

	if e.store.PendingCount() == 0 {
		return StatusSynced
	}

	if len(e.store.PeekPending(MaxRetries)) == 0 {
		return StatusError
	}

	return StatusPending
}

// notifyStatus invokes the status callback when the derived state changed
// since the last notification.
func (e *Engine) notifyStatus() {
	status := e.Status()

	e.mu.Lock()
	changed := status != e.last
	e.last = status
	cb := e.onStatus
	e.mu.Unlock()

	if changed && cb != nil {
		cb(status)
	}
}
