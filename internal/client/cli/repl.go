package cli

import (
	"bufio"
	"context"
	"fmt"
	"strings"
)

// printlnFn is a test seam for user-facing output. In tests, replace it with a stub.
var printlnFn = fmt.Println

// execIface defines the minimal command surface the REPL needs to operate.
// The real App type satisfies this interface; tests can provide a lightweight stub.
type execIface interface {
	isLoggedIn() bool
	Activity()
	Login(ctx context.Context) error
	Logout(ctx context.Context) error
	Me(ctx context.Context) error
	WhoAmI() error
	Can(permission string) error
	Continue() error
	Status() error
}

// runREPL starts a simple read-eval-print loop for the authkeeper CLI.
//
// It reads a line from the provided scanner, parses the first token as the
// command, and dispatches to methods on 'a'. Unknown commands are reported
// back to the user. The loop exits on scanner EOF or when the user types
// "exit" or "quit".
//
// Every dispatched command counts as user activity, so typing anything
// resets the inactivity timer and dismisses a pending idle warning.
//
// Prompt & Commands
//
// The prompt shows the current status (from statusFn) and accepts commands:
//
//	Not logged in:
//	  - help           show available commands
//	  - login          authenticate
//	  - status         show the session state
//	  - exit | quit    leave the program
//
//	Logged in:
//	  - help           show available commands
//	  - me             fetch a fresh profile from the server
//	  - whoami         show the cached profile
//	  - can <perm>     check a permission, e.g. can auth.add_user
//	  - continue       dismiss the idle warning
//	  - status         show the session state
//	  - logout         log out
//	  - exit | quit    leave the program
//
// Any errors returned by command handlers are ignored here; handlers print
// their own messages. This keeps the REPL loop resilient and focused on I/O.
func runREPL(ctx context.Context, a execIface, statusFn func() string, scanner *bufio.Scanner) {
	for {
		printlnFn(fmt.Sprintf("ak %s> ", statusFn()))
		if !scanner.Scan() {
			return
		}
		line := scanner.Text()
		parts := strings.Fields(line)
		if len(parts) == 0 {
			continue
		}
		cmd := parts[0]
		args := parts[1:]

		switch cmd {
		case "help":
			if a.isLoggedIn() {
				printlnFn("Available commands: me, whoami, can <permission>, continue, status, logout, exit")
			} else {
				printlnFn("Available commands: login, status, exit")
			}

		case "login":
			_ = a.Login(ctx)

		case "logout":
			_ = a.Logout(ctx)

		case "me":
			_ = a.Me(ctx)

		case "whoami":
			_ = a.WhoAmI()

		case "can":
			if len(args) == 0 {
				printlnFn("Usage: can <permission>")
			} else {
				_ = a.Can(args[0])
			}

		case "continue":
			_ = a.Continue()

		case "status":
			_ = a.Status()

		case "exit", "quit":
			printlnFn("Bye!")
			return

		default:
			printlnFn("Unknown command:", cmd)
		}

		a.Activity()
	}
}
