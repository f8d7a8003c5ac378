package cli

import (
	"context"
	"fmt"
	"path/filepath"

	"go.uber.org/zap"

	"github.com/csaptu/tasksync/internal/engine"
	"github.com/csaptu/tasksync/internal/persist"
	"github.com/csaptu/tasksync/internal/remote"
	"github.com/csaptu/tasksync/internal/store"
)

// app is the composition root: one explicitly constructed store/engine pair
// per invocation, no ambient singletons.
type app struct {
	cfg    Config
	store  *store.Store
	engine *engine.Engine
	log    *zap.Logger
	closer func() error
}

// newApp wires persistence, the remote client, the store, and the engine
// from config.
func newApp(ctx context.Context, cfg Config, log *zap.Logger) (*app, error) {
	if log == nil {
		log = zap.NewNop()
	}

	var (
		persistence persist.Store
		closer      func() error
	)

	switch cfg.Storage {
	case StorageSQLite:
		db, err := persist.OpenSQLite(ctx, filepath.Join(cfg.DataDir, "tasksync.sqlite"))
		if err != nil {
			return nil, err
		}

		persistence = db
		closer = db.Close
	default:
		files, err := persist.NewFiles(cfg.DataDir)
		if err != nil {
			return nil, err
		}

		persistence = files
	}

	a := &app{cfg: cfg, log: log, closer: closer}

	// The callback must stay non-blocking: it fires on the mutating
	// goroutine, including from inside a drain's own confirmations. Nudge
	// only signals the scheduler, so that is safe.
	st, err := store.Open(ctx, store.Options{
		Persistence: persistence,
		OnChange: func() {
			if a.engine != nil {
				a.engine.Nudge()
			}
		},
	})
	if err != nil {
		return nil, fmt.Errorf("open local state: %w", err)
	}

	client, err := remote.NewClient(remote.ClientConfig{
		BaseURL: cfg.ServerURL,
		Timeout: cfg.RequestTimeout(),
		Logger:  log,
	})
	if err != nil {
		return nil, err
	}

	eng, err := engine.New(engine.Config{
		Store:    st,
		Remote:   client,
		Interval: cfg.SyncInterval(),
		Logger:   log,
	})
	if err != nil {
		return nil, err
	}

	a.store = st
	a.engine = eng

	return a, nil
}

// Close releases resources held by the persistence adapter.
func (a *app) Close() error {
	if a.closer == nil {
		return nil
	}

	return a.closer()
}
