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
	isAdmin() bool
	reportError(ctx context.Context, err error)

	Go(ctx context.Context, hash string) error
	Register(ctx context.Context) error
	Verify(ctx context.Context, token string) error
	Login(ctx context.Context) error
	Logout(ctx context.Context) error
	Reset(ctx context.Context) error
	Delete(ctx context.Context, id string) error
	Request(ctx context.Context) error
}

// pageCommands navigate straight to the route of the same name.
var pageCommands = map[string]string{
	"home":        "/",
	"profile":     "/profile",
	"requests":    "/requests",
	"accounts":    "/accounts",
	"employees":   "/employees",
	"departments": "/departments",
}

func helpText(loggedIn, admin bool) string {
	switch {
	case admin:
		return "Available commands: go <route>, home, profile, request, requests, accounts, delete <id>, employees, departments, reset, logout, exit"
	case loggedIn:
		return "Available commands: go <route>, home, profile, request, requests, reset, logout, exit"
	default:
		return "Available commands: go <route>, home, register, verify [ticket], login, reset, exit"
	}
}

// runREPL starts a simple read-eval-print loop.
//
// It reads a line from reader, parses the first token as the command, and
// dispatches to methods on 'a'. The prompt shows the session status from
// statusFn. Errors returned by command handlers are handed to
// a.reportError and the loop continues. The loop exits on EOF or when the
// user types "exit" or "quit".
func runREPL(ctx context.Context, a execIface, statusFn func() string, reader *bufio.Reader) {
	for {
		printlnFn(fmt.Sprintf("ipt (%s)> ", statusFn()))
		line, rerr := reader.ReadString('\n')
		if rerr != nil && line == "" {
			return
		}
		parts := strings.Fields(line)
		if len(parts) == 0 {
			continue
		}
		cmd, args := parts[0], parts[1:]

		var err error
		switch cmd {
		case "help":
			printlnFn(helpText(a.isLoggedIn(), a.isAdmin()))

		case "go":
			if len(args) == 0 {
				printlnFn("Usage: go <route>")
				continue
			}
			err = a.Go(ctx, args[0])

		case "home", "profile", "requests", "accounts", "employees", "departments":
			err = a.Go(ctx, pageCommands[cmd])

		case "register":
			err = a.Register(ctx)

		case "verify":
			token := ""
			if len(args) > 0 {
				token = args[0]
			}
			err = a.Verify(ctx, token)

		case "login":
			err = a.Login(ctx)

		case "logout":
			err = a.Logout(ctx)

		case "reset":
			err = a.Reset(ctx)

		case "delete":
			if len(args) == 0 {
				printlnFn("Usage: delete <account id>")
				continue
			}
			err = a.Delete(ctx, args[0])

		case "request":
			err = a.Request(ctx)

		case "exit", "quit":
			printlnFn("Bye!")
			return

		default:
			printlnFn("Unknown command:", cmd)
		}

		if err != nil {
			a.reportError(ctx, err)
		}
	}
}
