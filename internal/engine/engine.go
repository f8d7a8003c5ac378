// Package engine drives the operation queue: it decides when to talk to the
// network, serializes concurrent sync attempts, and translates queued
// operations into remote service calls, feeding results back into the store.
package engine

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/looplab/fsm"
	"go.uber.org/zap"

	"github.com/csaptu/tasksync/internal/remote"
	"github.com/csaptu/tasksync/internal/store"
	"github.com/csaptu/tasksync/internal/task"
)

// MaxRetries is the per-operation attempt ceiling. An operation that has
// failed this many times is skipped on later passes but stays queued so the
// pending count stays honest and diagnostics can still see it.
const MaxRetries = 3

// defaultInterval is the periodic sync cadence.
const defaultInterval = 30 * time.Second

// refreshRetries bounds the backoff retries inside one Refresh call. The
// list call is idempotent, so retrying it cannot duplicate work.
const refreshRetries = 2

// State machine vocabulary.
const (
	stateIdle    = "idle"
	stateSyncing = "syncing"

	eventBegin  = "begin"
	eventFinish = "finish"
)

// Engine owns the sync schedule for one store/remote pair. Construct with
// New, then Start and Stop explicitly; there is no ambient singleton.
type Engine struct {
	store  *store.Store
	remote remote.Service
	conn   Notifier
	log    *zap.Logger

	interval time.Duration
	onStatus func(Status)

	mu sync.Mutex
	// machine is the Idle/Syncing state machine. Guarded by mu.
	machine *fsm.FSM
	// inflight is non-nil while a drain is active and is closed when it
	// completes, so triggers that arrive mid-drain can await it.
	inflight chan struct{}
	online   bool
	last     Status
	started  bool
	stopped  bool

	// nudge carries Nudge signals to the scheduler goroutine. Buffered so
	// a nudge never blocks the sender, whatever lock it holds.
	nudge chan struct{}

	stop chan struct{}
	wg   sync.WaitGroup
}

// Config wires an Engine. Store and Remote are required.
type Config struct {
	Store  *store.Store
	Remote remote.Service

	// Connectivity is optional: some surfaces skip the subscription to
	// avoid intrusive OS prompts and rely on request failures instead.
	// Without it the engine assumes the network is reachable.
	Connectivity Notifier

	// Interval is the periodic sync cadence. Zero means defaultInterval.
	Interval time.Duration

	// OnStatus runs whenever the aggregate status changes.
	OnStatus func(Status)

	Logger *zap.Logger
}

// New builds an engine. It does nothing until Start.
func New(cfg Config) (*Engine, error) {
	if cfg.Store == nil {
		return nil, errors.New("engine: store is nil")
	}

	if cfg.Remote == nil {
		return nil, errors.New("engine: remote service is nil")
	}

	interval := cfg.Interval
	if interval <= 0 {
		interval = defaultInterval
	}

	log := cfg.Logger
	if log == nil {
		log = zap.NewNop()
	}

	e := &Engine{
		store:    cfg.Store,
		remote:   cfg.Remote,
		conn:     cfg.Connectivity,
		log:      log,
		interval: interval,
		onStatus: cfg.OnStatus,
		online:   true,
		last:     StatusSynced,
		nudge:    make(chan struct{}, 1),
		stop:     make(chan struct{}),
	}

	e.machine = fsm.NewFSM(
		stateIdle,
		fsm.Events{
			{Name: eventBegin, Src: []string{stateIdle}, Dst: stateSyncing},
			{Name: eventFinish, Src: []string{stateSyncing}, Dst: stateIdle},
		},
		fsm.Callbacks{},
	)

	if e.conn != nil {
		e.online = e.conn.Online()
	}

	return e, nil
}

// Nudge signals the scheduler that local state changed and a sync pass may
// have work. It never blocks and never syncs inline, so it is safe to call
// from the store's on-change callback, including reentrantly while a drain
// is applying its own confirmations. Before Start (or after Stop) the
// signal is simply dropped.
func (e *Engine) Nudge() {
	select {
	case e.nudge <- struct{}{}:
	default:
	}
}

// Start arms the periodic timer, subscribes to connectivity changes when a
// notifier is wired, and kicks one immediate sync attempt. An engine is
// single use: once stopped it cannot be started again.
func (e *Engine) Start(ctx context.Context) error {
	e.mu.Lock()

	if e.started {
		e.mu.Unlock()

		return errors.New("engine: already started")
	}

	if e.stopped {
		e.mu.Unlock()

		return errors.New("engine: already stopped")
	}

	e.started = true
	e.mu.Unlock()

	e.wg.Add(1)

	go e.runTimer(ctx)

	if e.conn != nil {
		e.wg.Add(1)

		go e.watchConnectivity(ctx)
	}

	go func() {
		err := e.SyncNow(ctx)
		if err != nil {
			e.log.Warn("initial sync attempt", zap.Error(err))
		}
	}()

	return nil
}

// Stop cancels the timer and the connectivity subscription. An in-flight
// drain is not aborted; callers awaiting SyncNow still observe completion.
func (e *Engine) Stop() {
	e.mu.Lock()

	if !e.started || e.stopped {
		e.mu.Unlock()

		return
	}

	e.stopped = true
	close(e.stop)
	e.mu.Unlock()

	e.wg.Wait()
}

// SyncNow requests an on-demand sync pass. It shares the single entry point
// with the timer and connectivity triggers, so concurrent callers never
// produce overlapping drains.
func (e *Engine) SyncNow(ctx context.Context) error {
	return e.syncIfNeeded(ctx, true)
}

// syncIfNeeded is the single scheduling entry point. Offline or an empty
// queue is a no-op. If a drain is already in flight the caller awaits its
// completion signal, re-checks the queue, and tries once more rather than
// looping.
func (e *Engine) syncIfNeeded(ctx context.Context, retryAfterInflight bool) error {
	e.mu.Lock()

	if !e.online {
		e.mu.Unlock()

		return nil
	}

	if ch := e.inflight; ch != nil {
		e.mu.Unlock()

		select {
		case <-ch:
		case <-ctx.Done():
			return ctx.Err()
		}

		if !retryAfterInflight {
			return nil
		}

		return e.syncIfNeeded(ctx, false)
	}

	if e.store.PendingCount() == 0 {
		e.mu.Unlock()

		return nil
	}

	done := make(chan struct{})
	e.inflight = done

	err := e.machine.Event(ctx, eventBegin)
	if err != nil {
		e.inflight = nil
		close(done)
		e.mu.Unlock()

		return fmt.Errorf("engine: enter syncing: %w", err)
	}

	e.mu.Unlock()
	e.notifyStatus()

	drainErr := e.drain(ctx)

	e.mu.Lock()
	e.inflight = nil

	err = e.machine.Event(ctx, eventFinish)
	if err != nil {
		e.log.Warn("leave syncing", zap.Error(err))
	}

	e.mu.Unlock()
	close(done)
	e.notifyStatus()

	return drainErr
}

// drain replays the snapshotted queue strictly in FIFO order. Operations at
// the retry ceiling are skipped but stay queued. One operation's failure is
// recorded on the operation and never aborts the rest of the batch.
func (e *Engine) drain(ctx context.Context) error {
	ops := e.store.PendingOperations()

	for _, op := range ops {
		err := ctx.Err()
		if err != nil {
			return err
		}

		if op.RetryCount >= MaxRetries {
			e.log.Debug("skipping exhausted operation",
				zap.String("op", op.ID),
				zap.Int("retries", op.RetryCount))

			continue
		}

		result, dispatchErr := e.dispatch(ctx, op)
		if dispatchErr != nil {
			e.log.Info("operation failed",
				zap.String("op", op.ID),
				zap.String("kind", string(op.Kind)),
				zap.Error(dispatchErr))

			err = e.store.OnSyncError(ctx, op.ID, dispatchErr.Error())
			if err != nil {
				e.log.Warn("record operation failure", zap.Error(err))
			}

			continue
		}

		err = e.store.OnSyncSuccess(ctx, op.ID, result)
		if err != nil {
			e.log.Warn("record operation success", zap.Error(err))
		}
	}

	return nil
}

// dispatch translates one operation into the matching remote call. The
// returned task is the canonical server state for create/update, nil for
// delete.
func (e *Engine) dispatch(ctx context.Context, op *store.Operation) (*task.Task, error) {
	if op.EntityType != store.EntityTask {
		return nil, fmt.Errorf("unknown entity type %q", op.EntityType)
	}

	switch op.Kind {
	case store.OpCreate:
		payload, err := store.DecodeCreatePayload(op)
		if err != nil {
			return nil, err
		}

		return e.remote.Create(ctx, payload)
	case store.OpUpdate:
		payload, err := store.DecodeUpdatePayload(op)
		if err != nil {
			return nil, err
		}

		return e.remote.Update(ctx, op.EntityID, payload)
	case store.OpDelete:
		return nil, e.remote.Delete(ctx, op.EntityID)
	default:
		return nil, fmt.Errorf("unknown operation kind %q", op.Kind)
	}
}

// Refresh fetches the authoritative list and replaces the server-tasks
// partition. Failures are swallowed: stale local data beats a hard error
// when the user already has a usable offline view. The list call is
// idempotent, so it retries with exponential backoff before giving up.
func (e *Engine) Refresh(ctx context.Context) {
	var tasks []*task.Task

	listOnce := func() error {
		fetched, err := e.remote.List(ctx)
		if err != nil {
			return err
		}

		tasks = fetched

		return nil
	}

	policy := backoff.WithContext(
		backoff.WithMaxRetries(backoff.NewExponentialBackOff(), refreshRetries), ctx)

	err := backoff.Retry(listOnce, policy)
	if err != nil {
		e.log.Warn("refresh failed, keeping local snapshot", zap.Error(err))

		return
	}

	e.store.SetServerTasks(tasks)
	e.notifyStatus()
}

// runTimer fires the periodic sync and consumes nudges from local
// mutations.
func (e *Engine) runTimer(ctx context.Context) {
	defer e.wg.Done()

	ticker := time.NewTicker(e.interval)
	defer ticker.Stop()

	for {
		select {
		case <-e.stop:
			return
		case <-ctx.Done():
			return
		case <-ticker.C:
			err := e.syncIfNeeded(ctx, true)
			if err != nil {
				e.log.Warn("periodic sync", zap.Error(err))
			}
		case <-e.nudge:
			err := e.syncIfNeeded(ctx, true)
			if err != nil {
				e.log.Warn("sync after local change", zap.Error(err))
			}
		}
	}
}

// watchConnectivity reacts to connectivity transitions: going offline flips
// the status, coming back online immediately retries pending work.
func (e *Engine) watchConnectivity(ctx context.Context) {
	defer e.wg.Done()

	ch := e.conn.Subscribe()

	for {
		select {
		case <-e.stop:
			return
		case <-ctx.Done():
			return
		case online, ok := <-ch:
			if !ok {
				return
			}

			e.mu.Lock()
			changed := e.online != online
			e.online = online
			e.mu.Unlock()

			if !changed {
				continue
			}

			e.notifyStatus()

			if online {
				err := e.syncIfNeeded(ctx, true)
				if err != nil {
					e.log.Warn("sync after reconnect", zap.Error(err))
				}
			}
		}
	}
}
