package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/dmitrijs2005/staffkeeper/internal/client/api"
)

// Profile prints the logged-in user.
func (a *App) Profile(ctx context.Context) error {
	u, err := a.api.Profile(ctx)
	if err != nil {
		return err
	}
	printUser(a.out, u)
	return nil
}

// Departments prints every department.
func (a *App) Departments(ctx context.Context) error {
	list, err := a.api.Departments(ctx)
	if err != nil {
		return err
	}
	if len(list) == 0 {
		fmt.Fprintln(a.out, "No departments")
		return nil
	}

	tw := tabwriter.NewWriter(a.out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tNAME\tDESCRIPTION")
	for _, d := range list {
		fmt.Fprintf(tw, "%d\t%s\t%s\n", d.ID, d.Name, d.Description)
	}
	return tw.Flush()
}

// AddDepartment prompts for a name and description and creates the
// department.
func (a *App) AddDepartment(ctx context.Context) error {
	name, err := getSimpleText(a.reader, "Department name", a.out)
	if err != nil {
		return err
	}
	description, err := getSimpleText(a.reader, "Description (optional)", a.out)
	if err != nil {
		return err
	}

	d, err := a.api.CreateDepartment(ctx, name, description)
	if err != nil {
		return err
	}
	fmt.Fprintf(a.out, "Created department %d %s\n", d.ID, d.Name)
	return nil
}

// Status updates status fields of another user. "avatar=<path>" uploads a
// file, an empty value clears a nullable field.
func (a *App) Status(ctx context.Context) error {
	userID, err := getSimpleText(a.reader, "User id", a.out)
	if err != nil {
		return err
	}
	if userID == "" {
		return errors.New("user id is required")
	}

	fields, err := getFields(a.reader,
		"Fields to change: work_status, current_destination, position, department_id, date_of_leaving, avatar", a.out)
	if err != nil {
		return err
	}

	var avatarPath string
	if p, ok := fields["avatar"]; ok && p != "" {
		avatarPath = p
		delete(fields, "avatar")
	}

	u, err := a.api.UpdateStatus(ctx, userID, fields, avatarPath)
	if err != nil {
		return err
	}
	printUser(a.out, u)
	return nil
}

func printUser(w io.Writer, u *api.User) {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	row := func(k, v string) {
		if v != "" {
			fmt.Fprintf(tw, "%s:\t%s\n", k, v)
		}
	}

	row("ID", u.ID)
	row("Username", u.Username)
	row("Email", u.Email)
	if !u.DateJoined.IsZero() {
		row("Joined", u.DateJoined.Local().Format(time.DateTime))
	}
	if u.Department != nil {
		row("Department", u.Department.Name)
	}
	row("Gender", u.Gender)
	row("Position", u.Position)
	row("Work status", u.WorkStatus)
	row("Destination", u.CurrentDestination)
	row("Date of joining", deref(u.DateOfJoining))
	row("Date of leaving", deref(u.DateOfLeaving))
	row("Phone", u.PhoneNumber)
	row("Emergency contact", u.EmergencyContact)
	row("Avatar", deref(u.AvatarURL))
	if u.IsStaff {
		row("Staff", "yes")
	}
	_ = tw.Flush()
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
