package cli

import (
	"context"

	flag "github.com/spf13/pflag"
	"go.uber.org/zap"

	"github.com/csaptu/tasksync/internal/engine"
	"github.com/csaptu/tasksync/internal/remote"
)

// WatchCmd returns the watch command.
func WatchCmd(cfg Config) *Command {
	return &Command{
		Flags: flag.NewFlagSet("watch", flag.ContinueOnError),
		Usage: "watch",
		Short: "Run the periodic sync loop",
		Long:  "Run the full engine lifecycle: connectivity probing, periodic drains, and an immediate first attempt. Returns when interrupted.",
		Exec: func(ctx context.Context, o *IO, _ []string) error {
			return execWatch(ctx, o, cfg)
		},
	}
}

func execWatch(ctx context.Context, o *IO, cfg Config) error {
	log, err := zap.NewProduction()
	if err != nil {
		return err
	}
	defer func() { _ = log.Sync() }()

	a, err := newAppWithEngine(ctx, cfg, log, o)
	if err != nil {
		return err
	}
	defer func() { _ = a.Close() }()

	o.Println("watching; syncing every", cfg.SyncInterval())

	<-ctx.Done()

	a.engine.Stop()
	o.Println("stopped")

	return nil
}

// newAppWithEngine builds the watch-mode wiring: a prober against the
// server's health endpoint and a started engine reporting status changes.
func newAppWithEngine(ctx context.Context, cfg Config, log *zap.Logger, o *IO) (*app, error) {
	a, err := newApp(ctx, cfg, log)
	if err != nil {
		return nil, err
	}

	prober := engine.NewProber(cfg.ServerURL+"/v1/healthz", log)
	prober.Start(ctx)

	client, err := remote.NewClient(remote.ClientConfig{
		BaseURL: cfg.ServerURL,
		Timeout: cfg.RequestTimeout(),
		Logger:  log,
	})
	if err != nil {
		return nil, err
	}

	eng, err := engine.New(engine.Config{
		Store:        a.store,
		Remote:       client,
		Connectivity: prober,
		Interval:     cfg.SyncInterval(),
		Logger:       log,
		OnStatus: func(s engine.Status) {
			o.Println("status:", s)
		},
	})
	if err != nil {
		return nil, err
	}

	err = eng.Start(ctx)
	if err != nil {
		return nil, err
	}

	// The store's on-change callback nudges a.engine, so the started
	// engine must be the one it reaches.
	a.engine = eng

	prev := a.closer
	a.closer = func() error {
		prober.Stop()

		if prev != nil {
			return prev()
		}

		return nil
	}

	return a, nil
}
