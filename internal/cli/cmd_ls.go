package cli

import (
	"context"
	"slices"
	"strings"
	"time"

	flag "github.com/spf13/pflag"

	"github.com/csaptu/tasksync/internal/task"
)

// LsCmd returns the ls command.
func LsCmd(cfg Config) *Command {
	fs := flag.NewFlagSet("ls", flag.ContinueOnError)
	fs.StringP("status", "s", "", "Filter by status")
	fs.BoolP("all", "a", false, "Include completed, cancelled, and archived")

	return &Command{
		Flags: fs,
		Usage: "ls [flags]",
		Short: "List the merged local view",
		Long:  "List the merged local view: server truth overlaid with optimistic edits, minus local deletes.",
		Exec: func(ctx context.Context, o *IO, _ []string) error {
			return execLs(ctx, o, cfg, fs)
		},
	}
}

func execLs(ctx context.Context, o *IO, cfg Config, fs *flag.FlagSet) error {
	a, err := newApp(ctx, cfg, nil)
	if err != nil {
		return err
	}
	defer func() { _ = a.Close() }()

	status, _ := fs.GetString("status")
	all, _ := fs.GetBool("all")

	tasks := a.store.MergedView()

	tasks = slices.DeleteFunc(tasks, func(t *task.Task) bool {
		if status != "" {
			return string(t.Status) != status
		}

		if !all {
			return t.Status == task.StatusCompleted ||
				t.Status == task.StatusCancelled ||
				t.Status == task.StatusArchived
		}

		return false
	})

	// Ordering is applied here, not in the core.
	slices.SortFunc(tasks, func(x, y *task.Task) int {
		return x.UpdatedAt.Compare(y.UpdatedAt)
	})

	for _, t := range tasks {
		printTaskLine(o, t)
	}

	return nil
}

func printTaskLine(o *IO, t *task.Task) {
	due := ""

	if t.DueAt != nil {
		if t.DueAllDay {
			due = " due:" + t.DueAt.Format("2006-01-02")
		} else {
			due = " due:" + t.DueAt.Local().Format(time.RFC3339)
		}
	}

	tags := ""
	if len(t.Tags) > 0 {
		tags = " #" + strings.Join(t.Tags, " #")
	}

	indent := ""
	if t.ParentID != "" {
		indent = "  "
	}

	o.Printf("%s%s  [%s] p%d %s%s%s\n", indent, t.ID, t.Status, t.Priority, t.Title, due, tags)
}
