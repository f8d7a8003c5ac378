package cli

import (
	"context"
	"errors"

	flag "github.com/spf13/pflag"

	"github.com/csaptu/tasksync/internal/store"
	"github.com/csaptu/tasksync/internal/task"
)

var errIDRequired = errors.New("task id is required")

// EditCmd returns the edit command.
func EditCmd(cfg Config) *Command {
	fs := flag.NewFlagSet("edit", flag.ContinueOnError)
	fs.StringP("title", "t", "", "New title")
	fs.StringP("description", "d", "", "New description")
	fs.StringP("status", "s", "", "New status")
	fs.IntP("priority", "p", 0, "New priority 1-4")
	fs.String("due", "", "New due date (2006-01-02 or RFC3339)")
	fs.Bool("clear-due", false, "Remove the due date")
	fs.String("parent", "", "New parent id (empty string detaches)")
	fs.StringSlice("tag", nil, "Replace tags (repeatable)")

	return &Command{
		Flags: fs,
		Usage: "edit <id> [flags]",
		Short: "Update task fields",
		Long:  "Apply a partial update. Only flags actually passed end up in the queued operation's payload.",
		Exec: func(ctx context.Context, o *IO, args []string) error {
			return execEdit(ctx, o, cfg, fs, args)
		},
	}
}

func execEdit(ctx context.Context, o *IO, cfg Config, fs *flag.FlagSet, args []string) error {
	if len(args) < 1 {
		return errIDRequired
	}

	id := args[0]

	clearDue, _ := fs.GetBool("clear-due")
	fields := store.Fields{ClearDue: clearDue}

	if fs.Changed("title") {
		title, _ := fs.GetString("title")
		fields.Title = &title
	}

	if fs.Changed("description") {
		description, _ := fs.GetString("description")
		fields.Description = &description
	}

	if fs.Changed("status") {
		status, _ := fs.GetString("status")
		st := task.Status(status)
		fields.Status = &st
	}

	if fs.Changed("priority") {
		priority, _ := fs.GetInt("priority")
		p := task.Priority(priority)
		fields.Priority = &p
	}

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

	a, err := newApp(ctx, cfg, nil)
	if err != nil {
		return err
	}
	defer func() { _ = a.Close() }()

	updated, err := a.store.UpdateTask(ctx, id, fields)
	if err != nil {
		return err
	}

	o.Println("updated", updated.ID)

	return nil
}
