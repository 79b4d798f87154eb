package cli

import (
	"bufio"
	"context"
	"fmt"
	"strings"
)

// printlnFn is a test seam for user-facing output.
var printlnFn = fmt.Println

// execIface is the command surface the REPL dispatches to. Every command
// receives the words after the command name.
type execIface interface {
	isLoggedIn(ctx context.Context) bool
	Register(ctx context.Context, args []string) error
	Login(ctx context.Context, args []string) error
	Logout(ctx context.Context, args []string) error
	Status(ctx context.Context, args []string) error

	Add(ctx context.Context, args []string) error
	Edit(ctx context.Context, args []string) error
	Delete(ctx context.Context, args []string) error
	List(ctx context.Context, args []string) error
	Show(ctx context.Context, args []string) error
	Search(ctx context.Context, args []string) error

	Goal(ctx context.Context, args []string) error
	Goals(ctx context.Context, args []string) error
	CheckIn(ctx context.Context, args []string) error
	Remind(ctx context.Context, args []string) error
	Reminders(ctx context.Context, args []string) error
	Pref(ctx context.Context, args []string) error

	Sync(ctx context.Context, args []string) error
	Restore(ctx context.Context, args []string) error
}

const (
	helpGuest = "Available commands: register, login, status, add, edit, delete, (l)ist, show, search, " +
		"goal, goals, checkin, remind, reminders, pref, exit"
	helpSignedIn = "Available commands: status, add, edit, delete, (l)ist, show, search, " +
		"goal, goals, checkin, remind, reminders, pref, sync, restore, logout, exit"
)

// runREPL reads one command per line and dispatches it to a until EOF or
// "exit". A failing command prints its error and the loop carries on. The
// journal works signed out; only sync and restore need a session.
//
// Commands prompt for missing input on the same reader, so the loop reads
// lines itself instead of scanning ahead.
func runREPL(ctx context.Context, a execIface, statusFn func() string, reader *bufio.Reader) {
	for {
		printlnFn(fmt.Sprintf("journal %s> ", statusFn()))
		line, readErr := reader.ReadString('\n')
		if readErr != nil && line == "" {
			return
		}
		parts := strings.Fields(line)
		if len(parts) == 0 {
			if readErr != nil {
				return
			}
			continue
		}
		cmd, args := parts[0], parts[1:]

		var err error
		switch cmd {
		case "help":
			if a.isLoggedIn(ctx) {
				printlnFn(helpSignedIn)
			} else {
				printlnFn(helpGuest)
			}

		case "register":
			err = a.Register(ctx, args)
		case "login":
			err = a.Login(ctx, args)
		case "logout":
			err = a.Logout(ctx, args)
		case "status":
			err = a.Status(ctx, args)

		case "add":
			err = a.Add(ctx, args)
		case "edit":
			err = a.Edit(ctx, args)
		case "delete", "rm":
			err = a.Delete(ctx, args)
		case "l", "list":
			err = a.List(ctx, args)
		case "show":
			err = a.Show(ctx, args)
		case "search":
			err = a.Search(ctx, args)

		case "goal":
			err = a.Goal(ctx, args)
		case "goals":
			err = a.Goals(ctx, args)
		case "checkin":
			err = a.CheckIn(ctx, args)
		case "remind":
			err = a.Remind(ctx, args)
		case "reminders":
			err = a.Reminders(ctx, args)
		case "pref":
			err = a.Pref(ctx, args)

		case "sync":
			err = a.Sync(ctx, args)
		case "restore":
			err = a.Restore(ctx, args)

		case "exit", "quit":
			printlnFn("Bye!")
			return

		default:
			printlnFn("Unknown command:", cmd)
		}

		if err != nil {
			printlnFn("error:", err)
		}
		if readErr != nil {
			return
		}
	}
}
