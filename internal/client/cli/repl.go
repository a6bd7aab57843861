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
	Register(ctx context.Context) error
	Login(ctx context.Context) error
	Profile(ctx context.Context) error
	Refresh(ctx context.Context) error
	Logout(ctx context.Context) error
	Departments(ctx context.Context) error
	AddDepartment(ctx context.Context) error
	Status(ctx context.Context) error
}

// runREPL reads commands from reader and dispatches them to a until the
// user types "exit" or "quit", or input ends.
//
//	Not logged in:
//	  - help           show available commands
//	  - register       create an account
//	  - login          open a session
//	  - exit | quit    leave the program
//
//	Logged in, additionally:
//	  - profile        show your profile
//	  - refresh        rotate the session tokens
//	  - departments    list departments
//	  - adddept        create a department (staff only)
//	  - status         update another user's status (staff only)
//	  - logout         end the session
//
// Command errors are printed and the loop carries on.
func runREPL(ctx context.Context, a execIface, statusFn func() string, reader *bufio.Reader) {
	for {
		printlnFn(fmt.Sprintf("sk %s> ", statusFn()))
		line, err := readLine(reader)
		if err != nil && line == "" {
			return
		}
		parts := strings.Fields(line)
		if len(parts) == 0 {
			continue
		}
		cmd := parts[0]

		var cmdErr error
		switch cmd {
		case "help":
			if a.isLoggedIn() {
				printlnFn("Available commands: profile, refresh, departments, adddept, status, logout, exit")
			} else {
				printlnFn("Available commands: register, login, exit")
			}

		case "register":
			cmdErr = a.Register(ctx)

		case "login":
			cmdErr = a.Login(ctx)

		case "profile":
			cmdErr = a.Profile(ctx)

		case "refresh":
			cmdErr = a.Refresh(ctx)

		case "departments":
			cmdErr = a.Departments(ctx)

		case "adddept":
			cmdErr = a.AddDepartment(ctx)

		case "status":
			cmdErr = a.Status(ctx)

		case "logout":
			cmdErr = a.Logout(ctx)

		case "exit", "quit":
			printlnFn("Bye!")
			return

		default:
			printlnFn("Unknown command:", cmd)
		}

		if cmdErr != nil {
			printlnFn("Error:", cmdErr)
		}
	}
}
