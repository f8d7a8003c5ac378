package cli

import (
	"context"

	flag "github.com/spf13/pflag"
)

// StatusCmd returns the status command.
func StatusCmd(cfg Config) *Command {
	return &Command{
		Flags: flag.NewFlagSet("status", flag.ContinueOnError),
		Usage: "status",
		Short: "Show the aggregate sync status",
		Long:  "Report the derived aggregate state without touching the network.",
		Exec: func(ctx context.Context, o *IO, _ []string) error {
			return execStatus(ctx, o, cfg)
		},
	}
}

func execStatus(ctx context.Context, o *IO, cfg Config) error {
	a, err := newApp(ctx, cfg, nil)
	if err != nil {
		return err
	}
	defer func() { _ = a.Close() }()

	o.Println("status:", a.engine.Status())
	o.Printf("pending operations: %d\n", a.store.PendingCount())
	o.Printf("tasks in view: %d\n", len(a.store.MergedView()))

	return nil
}
