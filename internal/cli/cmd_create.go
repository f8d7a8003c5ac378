package cli

import (
	"context"
	"fmt"
	"strings"
	"time"

	flag "github.com/spf13/pflag"

	"github.com/csaptu/tasksync/internal/store"
	"github.com/csaptu/tasksync/internal/task"
)

// CreateCmd returns the create command.
func CreateCmd(cfg Config) *Command {
	fs := flag.NewFlagSet("create", flag.ContinueOnError)
	fs.StringP("title", "t", "", "Task title (required)")
	fs.StringP("description", "d", "", "Task description")
	fs.IntP("priority", "p", int(task.DefaultPriority), "Priority 1-4")
	fs.String("due", "", "Due date (2006-01-02 for all-day, RFC3339 for timed)")
	fs.String("parent", "", "Parent task id")
	fs.StringSlice("tag", nil, "Tag (repeatable)")

	return &Command{
		Flags: fs,
		Usage: "create -t <title> [flags]",
		Short: "Create a task (works offline)",
		Long:  "Create a task optimistically. No network involved; the create operation waits in the queue for the next sync.",
		Exec: func(ctx context.Context, o *IO, _ []string) error {
			return execCreate(ctx, o, cfg, fs)
		},
	}
}

func execCreate(ctx context.Context, o *IO, cfg Config, fs *flag.FlagSet) error {
	a, err := newApp(ctx, cfg, nil)
	if err != nil {
		return err
	}
	defer func() { _ = a.Close() }()

	title, _ := fs.GetString("title")
	fields := store.Fields{Title: &title}

	if fs.Changed("description") {
		description, _ := fs.GetString("description")
		fields.Description = &description
	}

	priority, _ := fs.GetInt("priority")
	p := task.Priority(priority)
	fields.Priority = &p

	if fs.Changed("parent") {
		parent, _ := fs.GetString("parent")
		fields.ParentID = &parent
	}

	if fs.Changed("tag") {
		tags, _ := fs.GetStringSlice("tag")
		fields.Tags = &tags
	}

	if due, _ := fs.GetString("due"); due != "" {
		dueAt, allDay, parseErr := parseDue(due)
		if parseErr != nil {
			return parseErr
		}

		fields.DueAt = &dueAt
		fields.DueAllDay = &allDay
	}

	created, err := a.store.CreateTask(ctx, fields)
	if err != nil {
		return err
	}

	o.Println("created", created.ID)
	o.Printf("pending operations: %d\n", a.store.PendingCount())

	return nil
}

// parseDue accepts a bare date (all-day) or a full RFC3339 timestamp.
func parseDue(s string) (time.Time, bool, error) {
	if !strings.Contains(s, "T") {
		d, err := time.ParseInLocation("2006-01-02", s, time.Local)
		if err != nil {
			return time.Time{}, false, fmt.Errorf("parse due date %q: %w", s, err)
		}

		return d, true, nil
	}

	d, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return time.Time{}, false, fmt.Errorf("parse due timestamp %q: %w", s, err)
	}

	return d, false, nil
}
