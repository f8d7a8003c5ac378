// Package cli implements the tasksync command line: local-first task
// mutations over the sync core, with explicit sync and diagnostics commands.
package cli

import (
	"context"
	"io"
	"os"
)

// commands returns every command wired against cfg, in help order.
func commands(cfg Config) []*Command {
	return []*Command{
		CreateCmd(cfg),
		LsCmd(cfg),
		EditCmd(cfg),
		DoneCmd(cfg),
		UndoneCmd(cfg),
		RmCmd(cfg),
		SyncCmd(cfg),
		StatusCmd(cfg),
		PendingCmd(cfg),
		RollbackCmd(cfg),
		ClearPendingCmd(cfg),
		WatchCmd(cfg),
	}
}

// Run is the main entry point. Returns the exit code.
func Run(ctx context.Context, out, errOut io.Writer, args []string, env map[string]string) int {
	o := NewIO(out, errOut)

	if len(args) < 2 {
		printUsage(o, commands(DefaultConfig()))

		return 0
	}

	name := args[1]
	rest := args[2:]

	if name == "-h" || name == "--help" || name == "help" {
		printUsage(o, commands(DefaultConfig()))

		return 0
	}

	workDir, err := os.Getwd()
	if err != nil {
		o.Errorln("error: cannot get working directory:", err)

		return 1
	}

	cfg, err := LoadConfig(workDir, env["TASKSYNC_CONFIG"], env)
	if err != nil {
		o.Errorln("error:", err)

		return 1
	}

	cmds := commands(cfg)

	for _, c := range cmds {
		if c.Name() == name {
			return c.Run(ctx, o, rest)
		}
	}

	o.Errorln("error: unknown command:", name)
	printUsage(o, cmds)

	return 1
}

func printUsage(o *IO, cmds []*Command) {
	o.Println("tasksync - offline-first task manager")
	o.Println()
	o.Println("Usage: tasksync <command> [flags]")
	o.Println()
	o.Println("Commands:")

	for _, c := range cmds {
		o.Println(c.HelpLine())
	}
}
