package main

import (
	"database/sql"
	"errors"
	"flag"
	"fmt"
	"io"
	"syscall"

	"github.com/go-playground/validator/v10"
	"golang.org/x/term"

	"github.com/zhuluh247/MySchool/core/result"
	"github.com/zhuluh247/MySchool/core/user"
)

var (
	readPasswordFunc = term.ReadPassword // mockable

	errHelp = errors.New("help provided")
)

type commandLine struct {
	out      io.Writer
	openDB   func() (*sql.DB, error)
	users    *user.Service
	results  *result.Service
	validate *validator.Validate
}

func (cli *commandLine) printUsage() {
	_, _ = fmt.Fprintln(cli.out, "Usage:")
	_, _ = fmt.Fprintln(cli.out, "  migrate COMMAND [ARGS]                              - run a goose command against the postgres database")
	_, _ = fmt.Fprintln(cli.out, "  adduser -email EMAIL -name NAME -role ROLE          - create a user")
	_, _ = fmt.Fprintln(cli.out, "  resetpassword -email EMAIL                          - reset user's password")
	_, _ = fmt.Fprintln(cli.out, "  positions -class CLASS -term TERM                   - compute the positions of a class")
}

func (cli *commandLine) run(args []string) error {
	if len(args) < 2 {
		cli.printUsage()
		return errHelp
	}

	addUserCmd := flag.NewFlagSet("adduser", flag.ContinueOnError)
	addUserEmail := addUserCmd.String("email", "", "The user's email. The password will be prompted next.")
	addUserName := addUserCmd.String("name", "", "The user's full name.")
	addUserRole := addUserCmd.String("role", string(user.RoleProprietor), "proprietor, teacher or parent.")

	resetPasswordCmd := flag.NewFlagSet("resetpassword", flag.ContinueOnError)
	resetPasswordEmail := resetPasswordCmd.String("email", "", "The user's email. The password will be prompted next.")

	positionsCmd := flag.NewFlagSet("positions", flag.ContinueOnError)
	positionsClass := positionsCmd.String("class", "", "The class name.")
	positionsTerm := positionsCmd.Int("term", 0, "The term: 1, 2 or 3.")

	for _, fs := range []*flag.FlagSet{addUserCmd, resetPasswordCmd, positionsCmd} {
		fs.SetOutput(cli.out)
	}

	switch args[1] {
	case "migrate":
		if len(args) < 3 {
			cli.printUsage()
			return errHelp
		}
		return cli.migrate(args[2:])

	case "adduser":
		if err := addUserCmd.Parse(args[2:]); err != nil {
			return errHelp
		}
		if *addUserEmail == "" || *addUserName == "" {
			addUserCmd.Usage()
			return errHelp
		}
		pwd, err := cli.promptPassword()
		if err != nil {
			return err
		}
		if pwd == "" {
			addUserCmd.Usage()
			return errHelp
		}
		return cli.addUser(*addUserName, *addUserEmail, user.Role(*addUserRole), pwd)

	case "resetpassword":
		if err := resetPasswordCmd.Parse(args[2:]); err != nil {
			return errHelp
		}
		if *resetPasswordEmail == "" {
			resetPasswordCmd.Usage()
			return errHelp
		}
		pwd, err := cli.promptPassword()
		if err != nil {
			return err
		}
		if pwd == "" {
			resetPasswordCmd.Usage()
			return errHelp
		}
		return cli.resetPassword(*resetPasswordEmail, pwd)

	case "positions":
		if err := positionsCmd.Parse(args[2:]); err != nil {
			return errHelp
		}
		if *positionsClass == "" || *positionsTerm == 0 {
			positionsCmd.Usage()
			return errHelp
		}
		return cli.computePositions(*positionsClass, *positionsTerm)

	default:
		cli.printUsage()
		return errHelp
	}
}

func (cli *commandLine) promptPassword() (string, error) {
	_, _ = fmt.Fprint(cli.out, "Enter password:")
	pwd, err := readPasswordFunc(int(syscall.Stdin))
	_, _ = fmt.Fprintln(cli.out)
	if err != nil {
		return "", err
	}
	return string(pwd), nil
}
