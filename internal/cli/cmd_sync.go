package cli

import (
	"context"

	flag "github.com/spf13/pflag"
)

// SyncCmd returns the sync command.
func SyncCmd(cfg Config) *Command {
	fs := flag.NewFlagSet("sync", flag.ContinueOnError)
	fs.Bool("push-only", false, "Drain the queue without refreshing")

	return &Command{
		Flags: fs,
		Usage: "sync [flags]",
		Short: "Push pending operations and refresh",
		Long:  "Drain the operation queue once, then replace the local server snapshot with the authoritative list.",
		Exec: func(ctx context.Context, o *IO, _ []string) error {
			return execSync(ctx, o, cfg, fs)
		},
	}
}

func execSync(ctx context.Context, o *IO, cfg Config, fs *flag.FlagSet) error {
	a, err := newApp(ctx, cfg, nil)
	if err != nil {
		return err
	}
	defer func() { _ = a.Close() }()

	before := a.store.PendingCount()

	err = a.engine.SyncNow(ctx)
	if err != nil {
		return err
	}

	pushOnly, _ := fs.GetBool("push-only")
	if !pushOnly {
		a.engine.Refresh(ctx)
	}

	after := a.store.PendingCount()

	o.Printf("synced: %d operation(s) confirmed, %d still pending\n", before-after, after)
	o.Println("status:", a.engine.Status())

	return nil
}
