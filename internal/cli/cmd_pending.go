package cli

import (
	"context"

	flag "github.com/spf13/pflag"

	"github.com/csaptu/tasksync/internal/engine"
)

// PendingCmd returns the pending command.
func PendingCmd(cfg Config) *Command {
	return &Command{
		Flags: flag.NewFlagSet("pending", flag.ContinueOnError),
		Usage: "pending",
		Short: "List queued operations",
		Long:  "List the operation queue, including operations past the retry ceiling. Those never drop silently; this is their diagnostic surface.",
		Exec: func(ctx context.Context, o *IO, _ []string) error {
			return execPending(ctx, o, cfg)
		},
	}
}

func execPending(ctx context.Context, o *IO, cfg Config) error {
	a, err := newApp(ctx, cfg, nil)
	if err != nil {
		return err
	}
	defer func() { _ = a.Close() }()

	ops := a.store.PendingOperations()
	if len(ops) == 0 {
		o.Println("queue is empty")

		return nil
	}

	for _, op := range ops {
		state := "queued"
		if op.RetryCount >= engine.MaxRetries {
			state = "exhausted"
		}

		o.Printf("%s  %s %s -> %s  retries=%d  %s\n",
			op.ID, op.Kind, op.EntityType, op.EntityID, op.RetryCount, state)

		if op.Error != "" {
			o.Printf("    last error: %s\n", op.Error)
		}
	}

	return nil
}
