package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/eventosacademicos/campus-agenda/internal/core/domain"
	"github.com/eventosacademicos/campus-agenda/internal/core/service"
)

const usersUsage = `usage: agenda users <list|pending|show|approve|update|delete> [flags]`

func (a *app) cmdUsers(ctx context.Context, args []string) error {
	if len(args) == 0 {
		fmt.Fprintln(os.Stderr, usersUsage)
		return fmt.Errorf("missing users subcommand")
	}
	switch args[0] {
	case "list":
		return a.usersList(ctx, args[1:])
	case "pending":
		return a.usersPending(ctx)
	case "show":
		return a.usersShow(ctx, args[1:])
	case "approve":
		return a.usersApprove(ctx, args[1:])
	case "update":
		return a.usersUpdate(ctx, args[1:])
	case "delete":
		return a.usersDelete(ctx, args[1:])
	default:
		fmt.Fprintln(os.Stderr, usersUsage)
		return fmt.Errorf("unknown users subcommand %q", args[0])
	}
}

func (a *app) usersList(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("users list", flag.ContinueOnError)
	typeFlag := fs.String("type", "", "filter by account type (STUDENT, TEACHER, ADMIN)")
	if err := fs.Parse(args); err != nil {
		return err
	}

	var (
		users []domain.User
		err   error
	)
	if *typeFlag != "" {
		users, err = a.users.ByType(ctx, domain.UserType(strings.ToUpper(*typeFlag)))
	} else {
		users, err = a.users.Summaries(ctx)
	}
	if err != nil {
		return err
	}
	renderUsers(os.Stdout, users)
	return nil
}

func (a *app) usersPending(ctx context.Context) error {
	users, err := a.users.Pending(ctx)
	if err != nil {
		return err
	}
	if len(users) == 0 {
		fmt.Println("no pending registrations")
		return nil
	}
	renderUsers(os.Stdout, users)
	return nil
}

func (a *app) usersShow(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("users show", flag.ContinueOnError)
	id := fs.Int64("id", 0, "user id")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *id == 0 {
		return fmt.Errorf("-id is required")
	}
	u, err := a.users.ByID(ctx, *id)
	if err != nil {
		return err
	}
	fmt.Printf("%s (%s)\nemail: %s\nphone: %s\nregistration: %s\napproved: %v\n",
		u.Username, u.UserType, u.Email, u.Phone, u.RegistrationNumber, u.Approved)
	return nil
}

func (a *app) usersApprove(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("users approve", flag.ContinueOnError)
	id := fs.Int64("id", 0, "user id")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *id == 0 {
		return fmt.Errorf("-id is required")
	}
	if err := a.users.Approve(ctx, *id); err != nil {
		return err
	}
	fmt.Printf("approved user %d\n", *id)
	return nil
}

func (a *app) usersUpdate(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("users update", flag.ContinueOnError)
	id := fs.Int64("id", 0, "user id")
	var form service.UserForm
	fs.StringVar(&form.Username, "username", "", "username")
	fs.StringVar(&form.Email, "email", "", "email address")
	fs.StringVar(&form.Phone, "phone", "", "phone number")
	fs.StringVar(&form.RegistrationNumber, "registration", "", "registration number")
	typeFlag := fs.String("type", "", "account type")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *id == 0 {
		return fmt.Errorf("-id is required")
	}
	form.UserType = domain.UserType(strings.ToUpper(*typeFlag))

	u, err := a.users.Update(ctx, *id, form)
	if err != nil {
		return err
	}
	fmt.Printf("updated user %d (%s)\n", u.ID, u.Username)
	return nil
}

func (a *app) usersDelete(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("users delete", flag.ContinueOnError)
	id := fs.Int64("id", 0, "user id")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *id == 0 {
		return fmt.Errorf("-id is required")
	}
	if err := a.users.Delete(ctx, *id); err != nil {
		return err
	}
	fmt.Printf("deleted user %d\n", *id)
	return nil
}

func renderUsers(out *os.File, users []domain.User) {
	if len(users) == 0 {
		fmt.Fprintln(out, "no users")
		return
	}
	w := tabwriter.NewWriter(out, 2, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tUSERNAME\tTYPE\tEMAIL\tAPPROVED")
	for _, u := range users {
		fmt.Fprintf(w, "%d\t%s\t%s\t%s\t%v\n", u.ID, u.Username, u.UserType, u.Email, u.Approved)
	}
	_ = w.Flush()
}
