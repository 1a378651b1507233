package main

import (
	"context"
	"fmt"

	"github.com/zhuluh247/MySchool/core/user"
)

// addUser creates a user. The password policy applies.
func (cli *commandLine) addUser(name, email string, role user.Role, pwd string) error {
	ctx := context.Background()
	nu := user.NewUser{Name: name, Email: email, Password: pwd, PasswordConfirm: pwd, Role: role}
	if err := nu.Validate(ctx, cli.validate, cli.users); err != nil {
		return err
	}
	usr, err := cli.users.Create(ctx, nu)
	if err != nil {
		return err
	}
	_, _ = fmt.Fprintf(cli.out, "created %s %s (%s)\n", usr.Role, usr.Email, usr.ID)
	return nil
}

// resetPassword sets a new password without applying the password policy.
func (cli *commandLine) resetPassword(email, pwd string) error {
	ctx := context.Background()
	usr, err := cli.users.GetByEmail(ctx, email)
	if err != nil {
		return err
	}
	return cli.users.SetPassword(ctx, usr, pwd)
}
