package cli

import (
	"context"

	flag "github.com/spf13/pflag"
)

// RmCmd returns the rm command.
func RmCmd(cfg Config) *Command {
	return &Command{
		Flags: flag.NewFlagSet("rm", flag.ContinueOnError),
		Usage: "rm <id>",
		Short: "Delete a task",
		Long:  "Hide the task locally and queue the delete for the next sync.",
		Exec: func(ctx context.Context, o *IO, args []string) error {
			return execRm(ctx, o, cfg, args)
		},
	}
}

func execRm(ctx context.Context, o *IO, cfg Config, args []string) error {
	if len(args) < 1 {
		return errIDRequired
	}

	a, err := newApp(ctx, cfg, nil)
	if err != nil {
		return err
	}
	defer func() { _ = a.Close() }()

	err = a.store.DeleteTask(ctx, args[0])
	if err != nil {
		return err
	}

	o.Println("deleted", args[0])

	return nil
}
