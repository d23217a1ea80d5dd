package cli

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
)

// printlnFn is a test seam for user-facing output. In tests, replace it with a stub.
var printlnFn = fmt.Println

// execIface defines the minimal command surface the REPL needs to operate.
// The real App type satisfies this interface; tests can provide a lightweight stub.
type execIface interface {
	isLoggedIn() bool
	Login(ctx context.Context) error
	Signup(ctx context.Context) error
	OAuth(ctx context.Context, args []string) error
	Logout(ctx context.Context) error
	Status(ctx context.Context) error
	WhoAmI(ctx context.Context) error
	Redirect(ctx context.Context) error
	Storage(ctx context.Context, args []string) error
}

// runREPL starts a simple read–eval–print loop for the options client.
//
// It reads a line from the provided reader, parses the first token as the
// command, and dispatches to methods on 'a'. Unknown commands are reported
// back to the user. Command handlers prompt on the same reader. The loop
// exits on EOF, on context cancellation or when the user types "exit" or
// "quit".
//
//	Signed out:
//	  - login | signup           — enter credentials
//	  - oauth <provider> [scopes] — sign in with a provider
//
//	Signed in:
//	  - logout
//
//	Always:
//	  - status | whoami | redirect | help | exit | quit
//	  - storage <area> [get <key> | clear] — inspect a storage area
//
// Any errors returned by command handlers are ignored here; handlers report
// their own errors. This keeps the REPL loop resilient and focused on I/O.
func runREPL(ctx context.Context, a execIface, statusFn func() string, reader *bufio.Reader) {
	for {
		if ctx.Err() != nil {
			return
		}
		printlnFn(fmt.Sprintf("options (%s) > ", statusFn()))
		line, err := reader.ReadString('\n')
		if err != nil && (!errors.Is(err, io.EOF) || line == "") {
			return
		}
		parts := strings.Fields(line)
		if len(parts) == 0 {
			continue
		}
		cmd, args := parts[0], parts[1:]

		switch cmd {
		case "help":
			if a.isLoggedIn() {
				printlnFn("Available commands: logout, status, whoami, redirect, storage, exit")
			} else {
				printlnFn("Available commands: login, signup, oauth <provider> [scopes], status, whoami, redirect, storage, exit")
			}

		case "login":
			_ = a.Login(ctx)

		case "signup", "register":
			_ = a.Signup(ctx)

		case "oauth":
			_ = a.OAuth(ctx, args)

		case "logout":
			_ = a.Logout(ctx)

		case "status":
			_ = a.Status(ctx)

		case "whoami":
			_ = a.WhoAmI(ctx)

		case "redirect":
			_ = a.Redirect(ctx)

		case "storage":
			_ = a.Storage(ctx, args)

		case "exit", "quit":
			printlnFn("Bye!")
			return

		default:
			printlnFn("Unknown command:", cmd)
		}
	}
}
