package cli

import (
	"bufio"
	"context"
	"fmt"
	"strings"
)

// printlnFn is a test seam for user-facing output. In tests, replace it with a stub.
var printlnFn = fmt.Println

// execIface is the command surface the REPL drives. App satisfies it; tests
// provide a stub.
type execIface interface {
	isLoggedIn() bool
	Register(ctx context.Context) error
	Login(ctx context.Context) error
	Logout(ctx context.Context) error
	WhoAmI(ctx context.Context) error
	Profile(ctx context.Context, id string) error
	UpdateProfile(ctx context.Context) error
	Picture(ctx context.Context) error
	Verify(ctx context.Context) error
	DeleteAccount(ctx context.Context) error
}

// runREPL reads commands from scanner until EOF or exit/quit. Command
// errors are printed and the loop continues.
func runREPL(ctx context.Context, a execIface, statusFn func() string, scanner *bufio.Scanner) {
	for {
		printlnFn(fmt.Sprintf("ak> %s > ", statusFn()))
		if !scanner.Scan() {
			return
		}
		parts := strings.Fields(scanner.Text())
		if len(parts) == 0 {
			continue
		}
		cmd, args := parts[0], parts[1:]

		var err error
		switch cmd {
		case "help":
			if a.isLoggedIn() {
				printlnFn("Available commands: whoami, profile [id], update, picture, verify, delete, logout, exit")
			} else {
				printlnFn("Available commands: register, login, verify, profile <id>, exit")
			}

		case "register":
			err = a.Register(ctx)

		case "login":
			err = a.Login(ctx)

		case "logout":
			err = a.Logout(ctx)

		case "whoami":
			err = a.WhoAmI(ctx)

		case "profile":
			id := ""
			if len(args) > 0 {
				id = args[0]
			}
			err = a.Profile(ctx, id)

		case "update":
			err = a.UpdateProfile(ctx)

		case "picture":
			err = a.Picture(ctx)

		case "verify":
			err = a.Verify(ctx)

		case "delete":
			err = a.DeleteAccount(ctx)

		case "exit", "quit":
			printlnFn("Bye!")
			return

		default:
			printlnFn("Unknown command:", cmd)
		}

		if err != nil {
			printlnFn("Error:", err)
		}
	}
}
