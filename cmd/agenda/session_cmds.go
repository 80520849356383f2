package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"os"
	"strings"

	"github.com/eventosacademicos/campus-agenda/internal/core/domain"
	"github.com/eventosacademicos/campus-agenda/internal/core/service"
)

func (a *app) cmdLogin(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("login", flag.ContinueOnError)
	username := fs.String("username", "", "account username")
	password := fs.String("password", "", "account password (prompted when omitted)")
	if err := fs.Parse(args); err != nil {
		return err
	}

	if *username == "" {
		v, err := prompt("username: ")
		if err != nil {
			return err
		}
		*username = v
	}
	if *password == "" {
		v, err := prompt("password: ")
		if err != nil {
			return err
		}
		*password = v
	}

	if err := a.session.Login(ctx, *username, *password); err != nil {
		return err
	}
	cur := a.session.Current()
	fmt.Printf("logged in as %s (%s)\n", cur.User.Username, cur.User.UserType)
	return nil
}

func (a *app) cmdRegister(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("register", flag.ContinueOnError)
	var form service.RegisterForm
	fs.StringVar(&form.Username, "username", "", "desired username")
	fs.StringVar(&form.Email, "email", "", "email address")
	fs.StringVar(&form.Phone, "phone", "", "phone number")
	fs.StringVar(&form.RegistrationNumber, "registration", "", "registration number")
	userType := fs.String("type", string(domain.UserStudent), "account type: STUDENT, TEACHER or ADMIN")
	fs.StringVar(&form.Password, "password", "", "password (prompted when omitted)")
	if err := fs.Parse(args); err != nil {
		return err
	}
	form.UserType = domain.UserType(strings.ToUpper(*userType))

	if form.Password == "" {
		v, err := prompt("password: ")
		if err != nil {
			return err
		}
		form.Password = v
		confirm, err := prompt("confirm password: ")
		if err != nil {
			return err
		}
		form.ConfirmPassword = confirm
	} else {
		form.ConfirmPassword = form.Password
	}

	if err := a.session.Register(ctx, form); err != nil {
		return err
	}
	fmt.Println("registration submitted; an administrator must approve the account before login")
	return nil
}

func (a *app) cmdWhoami() error {
	cur := a.session.Current()
	if !cur.Authenticated() {
		fmt.Println("not logged in")
		return nil
	}
	u := cur.User
	fmt.Printf("%s (%s)\nemail: %s\nphone: %s\nregistration: %s\napproved: %v\n",
		u.Username, u.UserType, u.Email, u.Phone, u.RegistrationNumber, u.Approved)
	return nil
}

func prompt(label string) (string, error) {
	fmt.Fprint(os.Stderr, label)
	reader := bufio.NewReader(os.Stdin)
	line, err := reader.ReadString('\n')
	if err != nil {
		return "", fmt.Errorf("read input: %w", err)
	}
	return strings.TrimSpace(line), nil
}
