package cli

import (
	"context"
	"errors"

	flag "github.com/spf13/pflag"
)

var errOperationIDRequired = errors.New("operation id is required")

// RollbackCmd returns the rollback command.
func RollbackCmd(cfg Config) *Command {
	return &Command{
		Flags: flag.NewFlagSet("rollback", flag.ContinueOnError),
		Usage: "rollback <operation-id>",
		Short: "Abandon a queued operation",
		Long:  "Abandon one queued operation, reverting its optimistic effect.",
		Exec: func(ctx context.Context, o *IO, args []string) error {
			return execRollback(ctx, o, cfg, args)
		},
	}
}

func execRollback(ctx context.Context, o *IO, cfg Config, args []string) error {
	if len(args) < 1 {
		return errOperationIDRequired
	}

	a, err := newApp(ctx, cfg, nil)
	if err != nil {
		return err
	}
	defer func() { _ = a.Close() }()

	err = a.store.Rollback(ctx, args[0])
	if err != nil {
		return err
	}

	o.Println("rolled back", args[0])

	return nil
}

// ClearPendingCmd returns the clear-pending command.
func ClearPendingCmd(cfg Config) *Command {
	return &Command{
		Flags: flag.NewFlagSet("clear-pending", flag.ContinueOnError),
		Usage: "clear-pending",
		Short: "Drop all pending local state",
		Long:  "User-triggered state recovery: drop the queue and all optimistic state, keep the server snapshot.",
		Exec: func(ctx context.Context, o *IO, _ []string) error {
			return execClearPending(ctx, o, cfg)
		},
	}
}

func execClearPending(ctx context.Context, o *IO, cfg Config) error {
	a, err := newApp(ctx, cfg, nil)
	if err != nil {
		return err
	}
	defer func() { _ = a.Close() }()

	err = a.store.ClearPending(ctx)
	if err != nil {
		return err
	}

	o.Println("pending state cleared")

	return nil
}
