package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"syscall"

	"golang.org/x/term"

	"conference/internal/auth"
)

var (
	readPasswordFunc = term.ReadPassword // mockable

	errHelp = errors.New("help provided")
)

type commandLine struct {
	accounts *auth.Service
	migrate  func(command string, args ...string) error
	out      io.Writer
}

func (cli *commandLine) printUsage() {
	fmt.Fprintln(cli.out, "Usage:")
	fmt.Fprintln(cli.out, "  migrate COMMAND [ARGS]            - run goose migrations (up, down, status, version, ...)")
	fmt.Fprintln(cli.out, "  createadmin -email EMAIL [-role R] - create a staff account; the password is prompted next")
}

func (cli *commandLine) run(ctx context.Context, args []string) error {
	if len(args) < 2 {
		cli.printUsage()
		return errHelp
	}

	createCmd := flag.NewFlagSet("createadmin", flag.ContinueOnError)
	createCmd.SetOutput(cli.out)
	email := createCmd.String("email", "", "The account email.")
	role := createCmd.String("role", string(auth.RoleAdmin), "admin or volunteer.")

	switch args[1] {
	case "migrate":
		if len(args) < 3 {
			cli.printUsage()
			return errHelp
		}
		return cli.migrate(args[2], args[3:]...)
	case "createadmin":
		if err := createCmd.Parse(args[2:]); err != nil {
			return err
		}
		r, ok := auth.ParseRole(*role)
		if *email == "" || !ok {
			createCmd.Usage()
			return errHelp
		}
		fmt.Fprint(cli.out, "Enter password:")
		pwd, err := readPasswordFunc(int(syscall.Stdin))
		fmt.Fprintln(cli.out)
		if err != nil {
			return err
		}
		if len(pwd) == 0 {
			createCmd.Usage()
			return errHelp
		}
		acc, err := cli.accounts.CreateAccount(ctx, *email, string(pwd), r)
		if err != nil {
			return err
		}
		fmt.Fprintf(cli.out, "created %s account %s (%s)\n", acc.Role, acc.Email, acc.ID)
		return nil
	default:
		cli.printUsage()
		return errHelp
	}
}
