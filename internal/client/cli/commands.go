package cli

import (
	"context"
	"fmt"
)

type command struct {
	run  func(c *Cli, ctx context.Context, args []string) error
	name string
	args string
	help string
	// min минимальное число аргументов
	min int
	// detached команда работает с локальным хранилищем без открытой сессии
	detached bool
}

var commands []command

func init() {
	commands = []command{
		{name: "tree", help: "Show the project file tree", run: (*Cli).runTree},
		{name: "cat", args: "<path>", min: 1, help: "Print file contents", run: (*Cli).runCat},
		{name: "touch", args: "<path>", min: 1, help: "Create an empty file", run: (*Cli).runTouch},
		{name: "mkdir", args: "<path>", min: 1, help: "Create a folder with missing parents", run: (*Cli).runMkdir},
		{name: "write", args: "<path> <text>", min: 2, help: "Replace file contents", run: (*Cli).runWrite},
		{name: "insert", args: "<path> <pos|end> <text>", min: 3, help: "Insert text at a position", run: (*Cli).runInsert},
		{name: "delete", args: "<path> <pos> <len>", min: 3, help: "Delete a range of characters", run: (*Cli).runDelete},
		{name: "mv", args: "<path> <folder|/>", min: 2, help: "Move a file or folder", run: (*Cli).runMove},
		{name: "rename", args: "<path> <name>", min: 2, help: "Rename a file or folder", run: (*Cli).runRename},
		{name: "rm", args: "[-f] <path>", min: 1, help: "Remove a file or folder recursively", run: (*Cli).runRemove},
		{name: "status", help: "Show connection and presence status", run: (*Cli).runStatus},
		{name: "ack-loss", help: "Dismiss a reported data loss", run: (*Cli).runAckLoss},
		{name: "server", help: "Show coordinator health and session statistics", run: (*Cli).runServer},
		{name: "watch", help: "Print changes and presence until interrupted", run: (*Cli).runWatch},
		{name: "shell", help: "Run commands interactively", run: (*Cli).runShell},
		{name: "reset", args: "[-f]", help: "Delete local state of the project", detached: true},
	}
}

func lookup(name string) (command, bool) {
	for _, cmd := range commands {
		if cmd.name == name {
			return cmd, true
		}
	}
	return command{}, false
}

// Known сообщает, что команда существует
func Known(name string) bool {
	if name == "help" {
		return true
	}
	_, ok := lookup(name)
	return ok
}

// Detached сообщает, что команда выполняется без открытой сессии (см. Reset)
func Detached(name string) bool {
	cmd, ok := lookup(name)
	return ok && cmd.detached
}

// Run выполняет команду args[0] с аргументами args[1:]
func (c *Cli) Run(ctx context.Context, args []string) error {
	if len(args) == 0 {
		return fmt.Errorf("%w: missing command", ErrUsage)
	}

	name := args[0]
	if name == "help" {
		PrintUsage(c.io)
		return nil
	}

	cmd, ok := lookup(name)
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownCommand, name)
	}
	if cmd.detached {
		return fmt.Errorf("%w: %s cannot run inside an open session", ErrUsage, cmd.name)
	}
	if len(args)-1 < cmd.min {
		return fmt.Errorf("%w: %s %s", ErrUsage, cmd.name, cmd.args)
	}

	return cmd.run(c, ctx, args[1:])
}
