package cli

import (
	"context"

	flag "github.com/spf13/pflag"
)

// DoneCmd returns the done command.
func DoneCmd(cfg Config) *Command {
	return &Command{
		Flags: flag.NewFlagSet("done", flag.ContinueOnError),
		Usage: "done <id>",
		Short: "Mark a task completed",
		Exec: func(ctx context.Context, o *IO, args []string) error {
			return execDone(ctx, o, cfg, args, true)
		},
	}
}

// UndoneCmd returns the undone command.
func UndoneCmd(cfg Config) *Command {
	return &Command{
		Flags: flag.NewFlagSet("undone", flag.ContinueOnError),
		Usage: "undone <id>",
		Short: "Return a task to pending",
		Exec: func(ctx context.Context, o *IO, args []string) error {
			return execDone(ctx, o, cfg, args, false)
		},
	}
}

func execDone(ctx context.Context, o *IO, cfg Config, args []string, complete bool) error {
	if len(args) < 1 {
		return errIDRequired
	}

	a, err := newApp(ctx, cfg, nil)
	if err != nil {
		return err
	}
	defer func() { _ = a.Close() }()

	id := args[0]

	if complete {
		_, err = a.store.CompleteTask(ctx, id)
	} else {
		_, err = a.store.UncompleteTask(ctx, id)
	}

	if err != nil {
		return err
	}

	if complete {
		o.Println("completed", id)
	} else {
		o.Println("reopened", id)
	}

	return nil
}
