package cli

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/dmitrijs2005/staffkeeper/internal/client/api"
	"github.com/dmitrijs2005/staffkeeper/internal/common"
)

// getSimpleText, getPassword and getFields are indirections used to
// facilitate testing.
var (
	getSimpleText = GetSimpleText
	getPassword   = GetPassword
	getFields     = GetFields
)

var errAlreadyLoggedIn = errors.New("already logged in, logout first")

// Register prompts for the registration form and creates an account. It
// does not log in.
func (a *App) Register(ctx context.Context) error {
	var in api.RegisterRequest
	var err error

	prompts := []struct {
		text string
		dst  *string
	}{
		{"Enter username", &in.Username},
		{"Enter email", &in.Email},
		{"Gender (M, F or U)", &in.Gender},
		{"Position (optional)", &in.Position},
		{"Phone number (optional)", &in.PhoneNumber},
	}
	for _, p := range prompts {
		if *p.dst, err = getSimpleText(a.reader, p.text, a.out); err != nil {
			return err
		}
	}

	dept, err := getSimpleText(a.reader, "Department id (optional)", a.out)
	if err != nil {
		return err
	}
	if dept != "" {
		id, err := strconv.ParseInt(dept, 10, 64)
		if err != nil {
			return errors.New("department id must be a number")
		}
		in.DepartmentID = &id
	}

	password, err := getPassword(a.reader, "Enter password", a.out)
	if err != nil {
		return err
	}
	defer common.WipeByteArray(password)

	confirm, err := getPassword(a.reader, "Repeat password", a.out)
	if err != nil {
		return err
	}
	defer common.WipeByteArray(confirm)

	in.Password = string(password)
	in.PasswordConfirm = string(confirm)

	u, err := a.api.Register(ctx, in)
	if err != nil {
		return err
	}

	fmt.Fprintf(a.out, "Registered %s (id %s). You can login now.\n", u.Username, u.ID)
	return nil
}

// Login prompts for credentials and opens a session.
func (a *App) Login(ctx context.Context) error {
	if a.isLoggedIn() {
		return errAlreadyLoggedIn
	}

	userName, err := getSimpleText(a.reader, "Enter username", a.out)
	if err != nil {
		return err
	}

	password, err := getPassword(a.reader, "Enter password", a.out)
	if err != nil {
		return err
	}
	defer common.WipeByteArray(password)

	u, err := a.api.Login(ctx, userName, string(password))
	if err != nil {
		return err
	}

	name := userName
	if u != nil && u.Username != "" {
		name = u.Username
	}
	a.setUser(name)
	a.setMode(ModeOnline)
	fmt.Fprintln(a.out, "Login successful")
	return nil
}

// Refresh rotates the session tokens.
func (a *App) Refresh(ctx context.Context) error {
	if err := a.api.Refresh(ctx); err != nil {
		if !a.isLoggedIn() {
			a.setUser("")
		}
		return err
	}
	fmt.Fprintf(a.out, "Session refreshed, access token valid until %s\n",
		a.api.AccessExpiresAt().Local().Format(time.DateTime))
	return nil
}

// Logout revokes the session on the server and forgets it locally.
func (a *App) Logout(ctx context.Context) error {
	err := a.api.Logout(ctx)
	a.setUser("")
	if err != nil {
		return err
	}
	fmt.Fprintln(a.out, "Logged out")
	return nil
}
